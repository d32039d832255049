package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"pdf-translator/internal/config"
	"pdf-translator/internal/docx"
	"pdf-translator/internal/pdf"
	"pdf-translator/internal/pdf/pdftest"
	"pdf-translator/internal/pipeline"
	"pdf-translator/internal/types"
)

type upperBackend struct {
	calls []string
	err   error
}

func (b *upperBackend) TranslateChunk(ctx context.Context, chunk, targetLang string) (string, error) {
	b.calls = append(b.calls, chunk)
	if b.err != nil {
		return "", b.err
	}
	return strings.ToUpper(chunk), nil
}

type docxConverter struct {
	calls int
	err   error
}

func (c *docxConverter) ToEditable(ctx context.Context, pdfPath, docxPath string) error {
	c.calls++
	if c.err != nil {
		return c.err
	}
	doc, err := docx.NewDocument("Hello world.", "", "Goodbye.")
	if err != nil {
		return err
	}
	return doc.Save(docxPath)
}

type copyRenderer struct {
	err error
}

func (r *copyRenderer) ToPDF(ctx context.Context, docxPath, pdfPath string) error {
	if r.err != nil {
		return r.err
	}
	return os.WriteFile(pdfPath, pdftest.Build("rendered"), 0644)
}

type appFixture struct {
	dir       string
	input     string
	cfg       *types.Config
	configMgr *config.ConfigManager
	backend   *upperBackend
	converter *docxConverter
	renderer  *copyRenderer
	out       *bytes.Buffer
}

func newAppFixture(t *testing.T) *appFixture {
	t.Helper()
	dir := t.TempDir()

	configMgr, err := config.NewConfigManager(filepath.Join(dir, "config", "config.yaml"))
	if err != nil {
		t.Fatalf("NewConfigManager() returned error: %v", err)
	}
	cfg := configMgr.GetConfig()
	cfg.AuthKey = "test-key"
	cfg.RequestDelay = 0
	cfg.WorkDirectory = filepath.Join(dir, "work")
	cfg.CachePath = filepath.Join(dir, "cache.db")

	return &appFixture{
		dir:       dir,
		input:     pdftest.Write(t, dir, "guide.pdf", "Hello world. Goodbye."),
		cfg:       cfg,
		configMgr: configMgr,
		backend:   &upperBackend{},
		converter: &docxConverter{},
		renderer:  &copyRenderer{},
		out:       &bytes.Buffer{},
	}
}

func (f *appFixture) app(t *testing.T) *App {
	t.Helper()
	app := NewAppWithConfig(f.configMgr, f.out)
	app.backend = f.backend
	app.converter = f.converter
	app.renderer = f.renderer
	if err := app.startup(context.Background()); err != nil {
		t.Fatalf("startup() returned error: %v", err)
	}
	t.Cleanup(app.shutdown)
	return app
}

func (f *appFixture) request() pipeline.Request {
	return pipeline.Request{
		InputPath:  f.input,
		TargetLang: "ES",
		OutputPath: filepath.Join(f.dir, "out", "guide_ES.pdf"),
	}
}

func TestApp_Startup(t *testing.T) {
	f := newAppFixture(t)
	app := f.app(t)

	if app.pipeline == nil || app.chunked == nil {
		t.Fatal("pipeline and translator should be initialized after startup")
	}
	if app.caching == nil || app.cache == nil {
		t.Error("translation cache should be enabled when a cache path is configured")
	}
	if app.errorMgr == nil {
		t.Error("error manager should be initialized after startup")
	}
}

func TestApp_StartupWithoutCache(t *testing.T) {
	f := newAppFixture(t)
	f.cfg.CacheDisabled = true
	app := f.app(t)

	if app.cache != nil || app.caching != nil {
		t.Error("cache should be disabled")
	}
	if app.translator != app.chunked {
		t.Error("translator should be the chunked translator when the cache is disabled")
	}
}

func TestApp_StartupConfigErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(cfg *types.Config)
	}{
		{"missing DeepL key", func(cfg *types.Config) { cfg.AuthKey = "" }},
		{"missing OpenAI key", func(cfg *types.Config) { cfg.Engine = types.EngineOpenAI; cfg.OpenAIAPIKey = "" }},
		{"unknown engine", func(cfg *types.Config) { cfg.Engine = "babelfish" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("DEEPL_AUTH_KEY", "")
			f := newAppFixture(t)
			tt.mutate(f.cfg)
			app := NewAppWithConfig(f.configMgr, nil)
			err := app.startup(context.Background())
			if !types.IsCode(err, types.ErrConfig) {
				t.Errorf("expected ErrConfig, got %v", err)
			}
		})
	}
}

func TestApp_StartupAuthKeyFromEnv(t *testing.T) {
	t.Setenv("DEEPL_AUTH_KEY", "env-key")
	f := newAppFixture(t)
	f.cfg.AuthKey = ""

	app := NewAppWithConfig(f.configMgr, nil)
	app.converter = f.converter
	app.renderer = f.renderer
	if err := app.startup(context.Background()); err != nil {
		t.Fatalf("startup() returned error: %v", err)
	}
	defer app.shutdown()
	if app.deepl == nil {
		t.Error("DeepL client should be created from the environment key")
	}
}

func TestApp_TranslatePDF(t *testing.T) {
	f := newAppFixture(t)
	app := f.app(t)

	result, err := app.TranslatePDF(context.Background(), f.request(), false)
	if err != nil {
		t.Fatalf("TranslatePDF() returned error: %v", err)
	}
	if result.Degraded {
		t.Error("result should not be degraded")
	}
	if err := pdf.ValidatePDF(result.OutputPath); err != nil {
		t.Errorf("output is not a valid PDF: %v", err)
	}
	if got := strings.Join(f.backend.calls, "|"); got != "Hello world.|Goodbye." {
		t.Errorf("backend calls = %q", got)
	}

	app.Summary(result)
	if !strings.Contains(f.out.String(), "Translation completed! Output saved to: "+result.OutputPath) {
		t.Errorf("summary missing from output:\n%s", f.out.String())
	}

	// second run is served from the cache
	if _, err := app.TranslatePDF(context.Background(), f.request(), false); err != nil {
		t.Fatalf("second TranslatePDF() returned error: %v", err)
	}
	if len(f.backend.calls) != 2 {
		t.Errorf("expected no new requests, got %d calls", len(f.backend.calls))
	}
	if app.caching.Hits() != 2 {
		t.Errorf("cache hits = %d, want 2", app.caching.Hits())
	}
}

func TestApp_CacheScopedByOptions(t *testing.T) {
	f := newAppFixture(t)
	first := f.app(t)
	if _, err := first.TranslatePDF(context.Background(), f.request(), false); err != nil {
		t.Fatalf("TranslatePDF() returned error: %v", err)
	}
	first.shutdown()

	f.cfg.Formality = "less"
	second := f.app(t)
	if _, err := second.TranslatePDF(context.Background(), f.request(), false); err != nil {
		t.Fatalf("TranslatePDF() returned error: %v", err)
	}
	if second.caching.Hits() != 0 {
		t.Errorf("cache hits = %d, translations from other options must not be reused", second.caching.Hits())
	}
	if len(f.backend.calls) != 4 {
		t.Errorf("backend calls = %d, want 4", len(f.backend.calls))
	}
}

func TestCacheScope(t *testing.T) {
	base := &types.Config{Engine: types.EngineDeepL, OpenAIModel: "gpt-4o-mini"}
	variants := []*types.Config{
		{Engine: types.EngineDeepL, Formality: "more", OpenAIModel: "gpt-4o-mini"},
		{Engine: types.EngineDeepL, SourceLang: "EN", OpenAIModel: "gpt-4o-mini"},
		{Engine: types.EngineOpenAI, OpenAIModel: "gpt-4o-mini"},
	}
	seen := map[string]bool{cacheScope(base): true}
	for _, cfg := range variants {
		scope := cacheScope(cfg)
		if seen[scope] {
			t.Errorf("scope %q reused for %+v", scope, cfg)
		}
		seen[scope] = true
	}

	llmA := &types.Config{Engine: types.EngineOpenAI, OpenAIModel: "gpt-4o-mini"}
	llmB := &types.Config{Engine: types.EngineOpenAI, OpenAIModel: "gpt-4o"}
	if cacheScope(llmA) == cacheScope(llmB) {
		t.Error("different models should not share a scope")
	}
	if cacheScope(base) != cacheScope(&types.Config{Engine: types.EngineDeepL, OpenAIModel: "gpt-4o"}) {
		t.Error("the OpenAI model should not affect the DeepL scope")
	}
}

func TestApp_TranslatePDFDegraded(t *testing.T) {
	f := newAppFixture(t)
	f.renderer.err = pdf.NewPDFError(pdf.ErrToolNotFound, "LibreOffice not found", nil)
	app := f.app(t)

	result, err := app.TranslatePDF(context.Background(), f.request(), false)
	if err != nil {
		t.Fatalf("TranslatePDF() returned error: %v", err)
	}
	if !result.Degraded || filepath.Ext(result.OutputPath) != ".docx" {
		t.Errorf("expected a degraded DOCX result, got %+v", result)
	}

	app.Summary(result)
	if !strings.Contains(f.out.String(), "Translated DOCX saved to:") {
		t.Errorf("summary should mention the DOCX fallback:\n%s", f.out.String())
	}
}

func TestApp_FailureJournal(t *testing.T) {
	f := newAppFixture(t)
	f.backend.err = types.NewAppError(types.ErrQuotaExceeded, "DeepL quota exceeded", nil)
	app := f.app(t)

	if _, err := app.TranslatePDF(context.Background(), f.request(), false); !types.IsCode(err, types.ErrQuotaExceeded) {
		t.Fatalf("expected quota error, got %v", err)
	}
	record, ok := app.errorMgr.GetError(f.input)
	if !ok {
		t.Fatal("failure should be recorded")
	}
	if record.Stage != "translate" || record.Code != string(types.ErrQuotaExceeded) || record.TargetLang != "ES" {
		t.Errorf("unexpected record: %+v", record)
	}

	f.backend.err = nil
	if _, err := app.TranslatePDF(context.Background(), f.request(), false); err != nil {
		t.Fatalf("TranslatePDF() returned error: %v", err)
	}
	if _, ok := app.errorMgr.GetError(f.input); ok {
		t.Error("a successful run should remove the failure record")
	}
}

func TestApp_ConvertFailureRecorded(t *testing.T) {
	f := newAppFixture(t)
	f.converter.err = pdf.NewPDFError(pdf.ErrConvertFailed, "PDF to DOCX conversion failed", nil)
	app := f.app(t)

	if _, err := app.TranslatePDF(context.Background(), f.request(), false); err == nil {
		t.Fatal("expected an error")
	}
	record, ok := app.errorMgr.GetError(f.input)
	if !ok || record.Stage != "convert" || record.Code != string(pdf.ErrConvertFailed) {
		t.Errorf("unexpected record: %+v", record)
	}
}

func TestApp_CheckQuota(t *testing.T) {
	tests := []struct {
		name      string
		count     int64
		limit     int64
		wantQuota bool
	}{
		{"enough left", 0, 500000, false},
		{"exhausted", 499990, 500000, true},
		{"no limit reported", 10, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/v2/usage" {
					http.NotFound(w, r)
					return
				}
				json.NewEncoder(w).Encode(map[string]int64{"character_count": tt.count, "character_limit": tt.limit})
			}))
			defer server.Close()

			f := newAppFixture(t)
			f.cfg.DeepLAPIURL = server.URL + "/v2/translate"
			app := NewAppWithConfig(f.configMgr, f.out)
			app.converter = f.converter
			app.renderer = f.renderer
			if err := app.startup(context.Background()); err != nil {
				t.Fatalf("startup() returned error: %v", err)
			}
			defer app.shutdown()

			err := app.checkQuota(context.Background(), f.input)
			if got := types.IsCode(err, types.ErrQuotaExceeded); got != tt.wantQuota {
				t.Errorf("quota exceeded = %v (err %v), want %v", got, err, tt.wantQuota)
			}
			if tt.wantQuota {
				if _, err := app.TranslatePDF(context.Background(), f.request(), true); err == nil {
					t.Error("TranslatePDF should refuse to start")
				}
				if f.converter.calls != 0 {
					t.Error("nothing should be converted when the quota is insufficient")
				}
			}
		})
	}
}

func TestApp_CheckQuotaUnreadablePDF(t *testing.T) {
	f := newAppFixture(t)
	broken := filepath.Join(f.dir, "broken.pdf")
	if err := os.WriteFile(broken, []byte("%PDF-1.4 truncated"), 0644); err != nil {
		t.Fatal(err)
	}
	app := NewAppWithConfig(f.configMgr, f.out)
	app.converter = f.converter
	app.renderer = f.renderer
	if err := app.startup(context.Background()); err != nil {
		t.Fatalf("startup() returned error: %v", err)
	}
	defer app.shutdown()

	if err := app.checkQuota(context.Background(), broken); err != nil {
		t.Errorf("checkQuota() should be skipped for a PDF it cannot measure, got %v", err)
	}
}

func TestErrorCode(t *testing.T) {
	if got := errorCode(types.NewAppError(types.ErrAPICall, "x", nil)); got != string(types.ErrAPICall) {
		t.Errorf("errorCode(AppError) = %q", got)
	}
	quota := types.NewAppError(types.ErrQuotaExceeded, "DeepL quota exceeded", nil)
	walkErr := types.NewAppErrorWithDetails(types.ErrTranslation, "failed to translate paragraph", "body paragraph 1/2", quota)
	if got := errorCode(&pipeline.StageError{Stage: pipeline.StageTranslate, Err: walkErr}); got != string(types.ErrQuotaExceeded) {
		t.Errorf("errorCode(re-coded quota error) = %q", got)
	}
	if got := errorCode(&pipeline.StageError{Stage: pipeline.StageRender, Err: pdf.NewPDFError(pdf.ErrRenderFailed, "x", nil)}); got != string(pdf.ErrRenderFailed) {
		t.Errorf("errorCode(PDFError) = %q", got)
	}
	if got := errorCode(os.ErrNotExist); got != "" {
		t.Errorf("errorCode(plain) = %q", got)
	}
}
