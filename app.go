package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"pdf-translator/internal/config"
	errs "pdf-translator/internal/errors"
	"pdf-translator/internal/logger"
	"pdf-translator/internal/pdf"
	"pdf-translator/internal/pipeline"
	"pdf-translator/internal/python"
	"pdf-translator/internal/translator"
	"pdf-translator/internal/types"
	"pdf-translator/internal/walker"
)

// ErrorsDirName is the failure journal directory next to the config file
const ErrorsDirName = "errors"

// App wires configuration, the translation engine, the format converters and
// the failure journal for one command invocation.
type App struct {
	config *config.ConfigManager
	out    io.Writer

	deepl      *translator.DeepLClient // nil unless the DeepL engine is selected
	chunked    *translator.ChunkedTranslator
	cache      *translator.Cache
	caching    *translator.CachingTranslator
	translator translator.TextTranslator
	pipeline   *pipeline.Pipeline
	errorMgr   *errs.ErrorManager

	// set before startup to replace the default stages
	backend   translator.Backend
	converter pdf.EditableConverter
	renderer  pdf.PDFRenderer
}

// NewAppWithConfig creates an App on top of a loaded ConfigManager.
// Status output goes to out.
func NewAppWithConfig(configMgr *config.ConfigManager, out io.Writer) *App {
	if out == nil {
		out = io.Discard
	}
	return &App{config: configMgr, out: out}
}

// startup builds the translation engine and the pipeline from the current
// configuration. The cache and the failure journal are optional: failing to
// open them is logged and the run continues without them.
func (a *App) startup(ctx context.Context) error {
	logger.Info("application starting up")
	cfg := a.config.GetConfig()

	python.Configure(python.Config{Interpreter: cfg.PythonPath})

	if a.backend == nil {
		backend, err := a.newBackend(ctx, cfg)
		if err != nil {
			return err
		}
		a.backend = backend
	}
	a.chunked = translator.NewChunkedTranslator(a.backend, translator.Options{
		MaxChunkChars:    cfg.MaxChunkChars,
		RequestDelay:     cfg.RequestDelay,
		RateLimitWait:    cfg.RateLimitWait,
		RateLimitRetries: cfg.RateLimitRetries,
	})
	a.translator = a.chunked

	if cachePath := a.config.GetCachePath(); cachePath != "" {
		cache, err := translator.OpenCache(cachePath)
		if err != nil {
			logger.Warn("translation cache unavailable, continuing without it", logger.String("path", cachePath), logger.Err(err))
		} else {
			a.cache = cache
			a.caching = translator.NewCachingTranslator(a.chunked, cache, cacheScope(cfg))
			a.translator = a.caching
			logger.Debug("translation cache opened", logger.String("path", cachePath), logger.Int("entries", cache.Len()))
		}
	}

	if a.converter == nil {
		a.converter = pdf.NewPdf2DocxConverter(pdf.Pdf2DocxConfig{
			Timeout:  cfg.ConversionTimeout,
			Progress: func(message string) { fmt.Fprintf(a.out, "  %s\n", message) },
		})
	}
	if a.renderer == nil {
		a.renderer = pdf.NewLibreOfficeRenderer(pdf.LibreOfficeConfig{
			Binary:  cfg.LibreOfficePath,
			Timeout: cfg.ConversionTimeout,
		})
	}

	p, err := pipeline.New(pipeline.Config{
		Converter:  a.converter,
		Renderer:   a.renderer,
		Translator: a.translator,
		WorkDir:    cfg.WorkDirectory,
		Progress:   a.printProgress,
		Status: func(stage pipeline.Stage, message string) {
			fmt.Fprintf(a.out, "%s...\n", message)
		},
	})
	if err != nil {
		return err
	}
	a.pipeline = p

	errorMgr, err := errs.NewErrorManager(filepath.Join(filepath.Dir(a.config.GetConfigPath()), ErrorsDirName))
	if err != nil {
		logger.Warn("failed to initialize error manager", logger.Err(err))
	} else {
		a.errorMgr = errorMgr
	}

	logger.Info("application startup complete", logger.String("engine", cfg.Engine))
	return nil
}

func (a *App) newBackend(ctx context.Context, cfg *types.Config) (translator.Backend, error) {
	switch cfg.Engine {
	case types.EngineDeepL:
		authKey := a.config.GetAuthKey()
		if authKey == "" {
			return nil, types.NewAppError(types.ErrConfig,
				"DeepL auth key is required (--auth-key or "+config.EnvDeepLAuthKey+")", nil)
		}
		a.deepl = translator.NewDeepLClient(translator.DeepLConfig{
			AuthKey:    authKey,
			APIURL:     cfg.DeepLAPIURL,
			SourceLang: cfg.SourceLang,
			Formality:  cfg.Formality,
		})
		return a.deepl, nil
	case types.EngineOpenAI:
		return translator.NewLLMBackend(ctx, translator.LLMConfig{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.OpenAIModel,
		})
	default:
		return nil, types.NewAppErrorWithDetails(types.ErrConfig, "unknown translation engine", cfg.Engine, nil)
	}
}

// cacheScope lists the settings that change a translation for the configured engine.
func cacheScope(cfg *types.Config) string {
	switch cfg.Engine {
	case types.EngineOpenAI:
		return translator.CacheScope(cfg.Engine, cfg.OpenAIBaseURL, cfg.OpenAIModel)
	default:
		return translator.CacheScope(cfg.Engine, cfg.SourceLang, cfg.Formality)
	}
}

// TranslatePDF runs the pipeline for req. Failures are recorded in the
// failure journal; success removes an earlier record for the same input.
// With checkQuota set, the DeepL account must have enough characters left
// for the text of the PDF before anything is converted.
func (a *App) TranslatePDF(ctx context.Context, req pipeline.Request, checkQuota bool) (*pipeline.Result, error) {
	if checkQuota {
		if err := a.checkQuota(ctx, req.InputPath); err != nil {
			a.recordFailure(req, errs.StageInspect, err)
			return nil, err
		}
	}

	result, err := a.pipeline.Run(ctx, req)
	if err != nil {
		stage := errs.StageSetup
		var stageErr *pipeline.StageError
		if errors.As(err, &stageErr) {
			stage = errs.ErrorStage(stageErr.Stage)
		}
		a.recordFailure(req, stage, err)
		return nil, err
	}

	if a.errorMgr != nil {
		if err := a.errorMgr.RemoveError(req.InputPath); err != nil {
			logger.Warn("failed to update error journal", logger.Err(err))
		}
	}
	return result, nil
}

func (a *App) checkQuota(ctx context.Context, inputPath string) error {
	if a.deepl == nil {
		logger.Warn("quota check is only available for the DeepL engine")
		return nil
	}

	info, err := pdf.NewPDFParser().GetPDFInfo(inputPath)
	if err != nil {
		logger.Warn("cannot estimate the PDF's text, skipping quota check", logger.String("path", inputPath), logger.Err(err))
		return nil
	}
	usage, err := a.deepl.Usage(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "DeepL usage: %d of %d characters, about %d needed\n",
		usage.CharacterCount, usage.CharacterLimit, info.CharCount)
	if usage.CharacterLimit > 0 && int64(info.CharCount) > usage.Remaining() {
		return types.NewAppErrorWithDetails(types.ErrQuotaExceeded, "not enough DeepL quota left",
			fmt.Sprintf("%d characters needed, %d remaining", info.CharCount, usage.Remaining()), nil)
	}
	return nil
}

func (a *App) recordFailure(req pipeline.Request, stage errs.ErrorStage, err error) {
	if a.errorMgr == nil {
		return
	}
	if rerr := a.errorMgr.RecordError(req.InputPath, req.TargetLang, stage, errorCode(err), err.Error()); rerr != nil {
		logger.Warn("failed to record error", logger.Err(rerr))
	}
}

// errorCode returns the application or PDF error code carried by err.
func errorCode(err error) string {
	if code := types.RootCodeOf(err); code != "" {
		return string(code)
	}
	var pdfErr *pdf.PDFError
	if errors.As(err, &pdfErr) {
		return string(pdfErr.Code)
	}
	return ""
}

func (a *App) printProgress(p walker.Progress) {
	fmt.Fprintf(a.out, "  Translating paragraph %d/%d (%s)\n", p.Index, p.Total, p.Area)
}

// Summary prints the outcome of a run.
func (a *App) Summary(result *pipeline.Result) {
	if result.Degraded {
		fmt.Fprintf(a.out, "PDF conversion failed: %v\n", result.RenderErr)
		fmt.Fprintf(a.out, "Translated DOCX saved to: %s\n", result.OutputPath)
	} else {
		fmt.Fprintf(a.out, "Translation completed! Output saved to: %s\n", result.OutputPath)
	}
	fmt.Fprintf(a.out, "Paragraphs: %d translated, %d blank", result.Stats.Translated, result.Stats.Skipped)
	if a.caching != nil {
		fmt.Fprintf(a.out, ", %d from cache", a.caching.Hits())
	}
	fmt.Fprintf(a.out, "\nRequests: %d, characters sent: %d, time: %s\n",
		a.chunked.Requests(), a.chunked.Characters(), result.Elapsed.Round(time.Second))
	if result.WorkDir != "" {
		fmt.Fprintf(a.out, "Working files kept in: %s\n", result.WorkDir)
	}
}

// shutdown releases the cache.
func (a *App) shutdown() {
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			logger.Warn("failed to close translation cache", logger.Err(err))
		}
		a.cache = nil
	}
	logger.Info("application shutdown complete")
}
