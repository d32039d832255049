// Package pipeline runs a PDF translation end to end: the PDF is converted
// to DOCX, every paragraph of the DOCX is translated and the result is
// converted back to PDF.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"pdf-translator/internal/docx"
	"pdf-translator/internal/logger"
	"pdf-translator/internal/pdf"
	"pdf-translator/internal/types"
	"pdf-translator/internal/walker"
)

const (
	// WorkDirPrefix prefixes every per-run working directory
	WorkDirPrefix = "pdftrans-"
	// SourceDocxName is the converter output inside the working directory
	SourceDocxName = "source.docx"
	// TranslatedDocxName is the translated document inside the working directory
	TranslatedDocxName = "translated.docx"
)

// Stage names a step of the pipeline.
type Stage string

const (
	StageInspect   Stage = "inspect"
	StageConvert   Stage = "convert"
	StageTranslate Stage = "translate"
	StageRender    Stage = "render"
)

// StageError is returned by Run when a stage fails fatally.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Inspector reads basic facts about the input PDF.
type Inspector interface {
	GetPDFInfo(pdfPath string) (*pdf.PDFInfo, error)
}

// Config wires the stages of a Pipeline.
type Config struct {
	Converter  pdf.EditableConverter
	Renderer   pdf.PDFRenderer
	Translator walker.Translator
	// Inspector defaults to pdf.NewPDFParser()
	Inspector Inspector
	// WorkDir is the parent of per-run working directories; empty uses the system temp dir
	WorkDir string
	// Progress receives paragraph progress; may be nil
	Progress walker.ProgressFunc
	// Status is told when a stage starts; may be nil
	Status func(stage Stage, message string)
}

// Request describes one translation run.
type Request struct {
	InputPath  string
	TargetLang string
	// OutputPath defaults to DefaultOutputPath(InputPath, TargetLang)
	OutputPath string
	// KeepWorkDir leaves the working directory in place after the run
	KeepWorkDir bool
}

// Result describes a completed run.
type Result struct {
	RunID      string
	OutputPath string
	// Degraded is set when the PDF could not be rendered and the translated
	// DOCX was delivered instead
	Degraded  bool
	RenderErr error
	// WorkDir is empty once the working directory has been removed
	WorkDir   string
	PageCount int
	Stats     walker.Stats
	Elapsed   time.Duration
}

// Pipeline sequences inspection, conversion, translation and rendering.
type Pipeline struct {
	cfg Config
}

// New creates a Pipeline. Converter, Renderer and Translator are required.
func New(cfg Config) (*Pipeline, error) {
	switch {
	case cfg.Converter == nil:
		return nil, types.NewAppError(types.ErrConfig, "pipeline needs a PDF to DOCX converter", nil)
	case cfg.Renderer == nil:
		return nil, types.NewAppError(types.ErrConfig, "pipeline needs a DOCX to PDF renderer", nil)
	case cfg.Translator == nil:
		return nil, types.NewAppError(types.ErrConfig, "pipeline needs a translator", nil)
	}
	if cfg.Inspector == nil {
		cfg.Inspector = pdf.NewPDFParser()
	}
	if cfg.WorkDir == "" {
		cfg.WorkDir = os.TempDir()
	}
	return &Pipeline{cfg: cfg}, nil
}

// DefaultOutputPath returns "<input base name>_<lang>.pdf" in the current directory.
func DefaultOutputPath(inputPath, targetLang string) string {
	base := filepath.Base(inputPath)
	return strings.TrimSuffix(base, filepath.Ext(base)) + "_" + targetLang + ".pdf"
}

// FallbackPath returns outputPath with its extension replaced by ".docx".
func FallbackPath(outputPath string) string {
	return strings.TrimSuffix(outputPath, filepath.Ext(outputPath)) + ".docx"
}

// Run translates req.InputPath. A failure to render the PDF is not fatal:
// the translated DOCX is copied next to the requested output and the result
// is marked Degraded. Every other failure is returned as a *StageError.
// The working directory is removed on every path unless req.KeepWorkDir is set.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()

	if err := validateRequest(req); err != nil {
		return nil, err
	}
	output := req.OutputPath
	if output == "" {
		output = DefaultOutputPath(req.InputPath, req.TargetLang)
	}

	result := &Result{RunID: uuid.NewString(), OutputPath: output}
	log := []logger.Field{logger.String("run", result.RunID), logger.String("input", req.InputPath)}
	logger.Info("translation run started", append(log, logger.String("lang", req.TargetLang), logger.String("output", output))...)

	p.status(StageInspect, "Inspecting PDF")
	// inspection is advisory; the converter decides whether the file is usable
	if info, err := p.cfg.Inspector.GetPDFInfo(req.InputPath); err != nil {
		logger.Warn("PDF inspection failed, continuing with conversion", append(log, logger.Err(err))...)
	} else {
		result.PageCount = info.PageCount
		if !info.IsTextPDF {
			logger.Warn("PDF has no extractable text, the translation may be empty", log...)
		}
	}

	workDir := filepath.Join(p.cfg.WorkDir, WorkDirPrefix+result.RunID)
	if err := os.MkdirAll(workDir, 0755); err != nil {
		return nil, &StageError{Stage: StageConvert, Err: types.NewAppError(types.ErrInternal, "failed to create working directory", err)}
	}
	result.WorkDir = workDir
	defer func() {
		if req.KeepWorkDir {
			logger.Info("working directory kept", append(log, logger.String("workDir", workDir))...)
			return
		}
		if err := os.RemoveAll(workDir); err != nil {
			logger.Warn("failed to remove working directory", append(log, logger.String("workDir", workDir), logger.Err(err))...)
			return
		}
		result.WorkDir = ""
	}()

	sourceDocx := filepath.Join(workDir, SourceDocxName)
	p.status(StageConvert, "Converting PDF to DOCX")
	if err := p.cfg.Converter.ToEditable(ctx, req.InputPath, sourceDocx); err != nil {
		return nil, &StageError{Stage: StageConvert, Err: err}
	}

	doc, err := docx.Open(sourceDocx)
	if err != nil {
		return nil, &StageError{Stage: StageConvert, Err: types.NewAppError(types.ErrConversion, "converter produced an unreadable DOCX", err)}
	}

	p.status(StageTranslate, "Translating paragraphs")
	result.Stats, err = walker.TranslateDocument(ctx, doc, p.cfg.Translator, req.TargetLang, p.cfg.Progress)
	if err != nil {
		return nil, &StageError{Stage: StageTranslate, Err: err}
	}

	translatedDocx := filepath.Join(workDir, TranslatedDocxName)
	if err := doc.Save(translatedDocx); err != nil {
		return nil, &StageError{Stage: StageTranslate, Err: err}
	}

	p.status(StageRender, "Converting DOCX to PDF")
	if dir := filepath.Dir(output); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, &StageError{Stage: StageRender, Err: types.NewAppError(types.ErrInternal, "failed to create output directory", err)}
		}
	}
	if renderErr := p.cfg.Renderer.ToPDF(ctx, translatedDocx, output); renderErr != nil {
		if ctx.Err() != nil {
			return nil, &StageError{Stage: StageRender, Err: renderErr}
		}
		fallback := FallbackPath(output)
		logger.Warn("PDF rendering failed, saving translated DOCX instead",
			append(log, logger.String("fallback", fallback), logger.Err(renderErr))...)
		if err := copyFile(translatedDocx, fallback); err != nil {
			return nil, &StageError{Stage: StageRender, Err: fmt.Errorf("%w (saving DOCX fallback: %v)", renderErr, err)}
		}
		result.OutputPath = fallback
		result.Degraded = true
		result.RenderErr = renderErr
	}

	result.Elapsed = time.Since(start)
	logger.Info("translation run finished", append(log,
		logger.String("output", result.OutputPath),
		logger.Bool("degraded", result.Degraded),
		logger.Int("translated", result.Stats.Translated),
		logger.Float64("elapsedSeconds", result.Elapsed.Seconds()))...)
	return result, nil
}

func (p *Pipeline) status(stage Stage, message string) {
	logger.Debug(message, logger.String("stage", string(stage)))
	if p.cfg.Status != nil {
		p.cfg.Status(stage, message)
	}
}

func validateRequest(req Request) error {
	if req.TargetLang == "" {
		return types.NewAppError(types.ErrInvalidInput, "target language is required", nil)
	}
	st, err := os.Stat(req.InputPath)
	if err != nil {
		if os.IsNotExist(err) {
			return types.NewAppErrorWithDetails(types.ErrFileNotFound, "input file not found", req.InputPath, err)
		}
		return types.NewAppError(types.ErrInvalidInput, "cannot access input file", err)
	}
	if st.IsDir() {
		return types.NewAppErrorWithDetails(types.ErrInvalidInput, "input is a directory", req.InputPath, nil)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
