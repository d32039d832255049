package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"

	"pdf-translator/internal/config"
	errs "pdf-translator/internal/errors"
	"pdf-translator/internal/logger"
	"pdf-translator/internal/pipeline"
	"pdf-translator/internal/translator"
	"pdf-translator/internal/types"
)

// Exit codes
const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

// LogFileName is the default log file next to the config file
const LogFileName = "pdf-translator.log"

// cliOptions holds the command line flags shared by all commands
type cliOptions struct {
	configPath string
	authKey    string
	verbose    bool
	logFile    string

	output      string
	engine      string
	sourceLang  string
	formality   string
	keepTemp    bool
	workDir     string
	cachePath   string
	noCache     bool
	checkQuota  bool
	libreOffice string
	python      string

	clear  bool
	export string
}

// printHelp displays the help information for command line usage.
func printHelp(w io.Writer) {
	fmt.Fprintln(w, "PDF Translator - translate a PDF through DOCX with DeepL and convert it back to PDF")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  pdf-translator [options] <pdf_path> <target_lang>")
	fmt.Fprintln(w, "  pdf-translator usage [--auth-key KEY]")
	fmt.Fprintln(w, "  pdf-translator failures [--clear] [--export FILE]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Options:")
	fmt.Fprintln(w, "  --auth-key <KEY>     DeepL API key (default $"+config.EnvDeepLAuthKey+")")
	fmt.Fprintln(w, "  --output <PATH>      translated PDF path (default <name>_<LANG>.pdf)")
	fmt.Fprintln(w, "  --config <PATH>      config file (default ~/.config/pdf-translator/config.yaml)")
	fmt.Fprintln(w, "  --engine <NAME>      translation engine: deepl or openai")
	fmt.Fprintln(w, "  --source-lang <LANG> source language, detected when empty")
	fmt.Fprintln(w, "  --formality <VALUE>  DeepL formality: default, more, less, prefer_more, prefer_less")
	fmt.Fprintln(w, "  --keep-temp          keep the working directory with the intermediate DOCX files")
	fmt.Fprintln(w, "  --work-dir <DIR>     parent directory for working directories")
	fmt.Fprintln(w, "  --cache <PATH>       translation cache file")
	fmt.Fprintln(w, "  --no-cache           do not use the translation cache")
	fmt.Fprintln(w, "  --check-quota        check the DeepL character quota before translating")
	fmt.Fprintln(w, "  --libreoffice <PATH> LibreOffice executable used to render the PDF")
	fmt.Fprintln(w, "  --python <PATH>      Python interpreter with pdf2docx, instead of the managed one")
	fmt.Fprintln(w, "  --verbose            log to the console")
	fmt.Fprintln(w, "  --log-file <PATH>    log file")
	fmt.Fprintln(w, "  -h, --help           show this help")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Examples:")
	fmt.Fprintln(w, "  pdf-translator guide.pdf ES --auth-key XXX")
	fmt.Fprintln(w, "  pdf-translator --output out/guide_de.pdf guide.pdf DE")
}

func newFlagSet(name string, opts *cliOptions, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { printHelp(stderr) }

	fs.StringVar(&opts.configPath, "config", "", "config file path")
	fs.StringVar(&opts.authKey, "auth-key", "", "DeepL API key")
	fs.BoolVar(&opts.verbose, "verbose", false, "log to the console")
	fs.StringVar(&opts.logFile, "log-file", "", "log file path")

	switch name {
	case "usage":
	case "failures":
		fs.BoolVar(&opts.clear, "clear", false, "remove all failure records")
		fs.StringVar(&opts.export, "export", "", "write failed input paths to a file")
	default:
		fs.StringVar(&opts.output, "output", "", "path for the translated PDF")
		fs.StringVar(&opts.engine, "engine", "", "translation engine (deepl, openai)")
		fs.StringVar(&opts.sourceLang, "source-lang", "", "source language")
		fs.StringVar(&opts.formality, "formality", "", "DeepL formality")
		fs.BoolVar(&opts.keepTemp, "keep-temp", false, "keep the working directory")
		fs.StringVar(&opts.workDir, "work-dir", "", "parent of working directories")
		fs.StringVar(&opts.cachePath, "cache", "", "translation cache file")
		fs.BoolVar(&opts.noCache, "no-cache", false, "disable the translation cache")
		fs.BoolVar(&opts.checkQuota, "check-quota", false, "check the DeepL quota first")
		fs.StringVar(&opts.libreOffice, "libreoffice", "", "LibreOffice executable")
		fs.StringVar(&opts.python, "python", "", "Python interpreter with pdf2docx")
	}
	return fs
}

// parseArgs parses flags that may appear before, between or after the
// positional arguments, and returns the positional arguments.
func parseArgs(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		args = fs.Args()
		if len(args) == 0 {
			return positional, nil
		}
		positional = append(positional, args[0])
		args = args[1:]
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes the command line and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) > 0 {
		switch args[0] {
		case "usage":
			return runUsage(ctx, args[1:], stdout, stderr)
		case "failures":
			return runFailures(args[1:], stdout, stderr)
		}
	}
	return runTranslate(ctx, args, stdout, stderr)
}

func runTranslate(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	var opts cliOptions
	fs := newFlagSet("pdf-translator", &opts, stderr)
	positional, err := parseArgs(fs, args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}
	if len(positional) != 2 {
		fmt.Fprintln(stderr, "Error: expected <pdf_path> and <target_lang>")
		fmt.Fprintln(stderr)
		printHelp(stderr)
		return exitUsage
	}
	inputPath := positional[0]

	if st, err := os.Stat(inputPath); err != nil || st.IsDir() {
		fmt.Fprintf(stderr, "Error: File %s not found\n", inputPath)
		return exitError
	}
	targetLang, err := translator.NormalizeTargetLang(positional[1])
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitError
	}

	configMgr, err := setup(fs, &opts)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitError
	}
	defer logger.Close()

	app := NewAppWithConfig(configMgr, stdout)
	if err := app.startup(ctx); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitError
	}
	defer app.shutdown()

	cfg := configMgr.GetConfig()
	req := pipeline.Request{
		InputPath:   inputPath,
		TargetLang:  targetLang,
		OutputPath:  opts.output,
		KeepWorkDir: cfg.KeepWorkDir,
	}
	fmt.Fprintf(stdout, "Translating %s to %s\n", inputPath, translator.LanguageName(targetLang))

	result, err := app.TranslatePDF(ctx, req, opts.checkQuota)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		if types.IsCode(err, types.ErrQuotaExceeded) {
			fmt.Fprintln(stderr, "The DeepL character quota is exhausted; no output was written.")
		}
		return exitError
	}

	app.Summary(result)
	return exitOK
}

// setup loads the configuration, applies the flags that were given on the
// command line on top of it and initializes logging.
func setup(fs *flag.FlagSet, opts *cliOptions) (*config.ConfigManager, error) {
	configMgr, err := config.NewConfigManager(opts.configPath)
	if err != nil {
		return nil, err
	}
	if err := configMgr.Load(); err != nil {
		return nil, err
	}

	cfg := configMgr.GetConfig()
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "auth-key":
			cfg.AuthKey = opts.authKey
		case "engine":
			cfg.Engine = opts.engine
		case "source-lang":
			cfg.SourceLang = opts.sourceLang
		case "formality":
			cfg.Formality = opts.formality
		case "keep-temp":
			cfg.KeepWorkDir = opts.keepTemp
		case "work-dir":
			cfg.WorkDirectory = opts.workDir
		case "cache":
			cfg.CachePath = opts.cachePath
		case "no-cache":
			cfg.CacheDisabled = opts.noCache
		case "libreoffice":
			cfg.LibreOfficePath = opts.libreOffice
		case "python":
			cfg.PythonPath = opts.python
		case "log-file":
			cfg.LogFile = opts.logFile
		}
	})

	logCfg := logger.DefaultConfig()
	logCfg.LogFilePath = cfg.LogFile
	if logCfg.LogFilePath == "" {
		logCfg.LogFilePath = filepath.Join(filepath.Dir(configMgr.GetConfigPath()), LogFileName)
	}
	if opts.verbose {
		logCfg.Level = logger.LevelDebug
		logCfg.EnableConsole = true
	}
	if err := logger.Init(logCfg); err != nil {
		return nil, types.NewAppError(types.ErrConfig, "failed to initialize logging", err)
	}
	return configMgr, nil
}

func runUsage(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	var opts cliOptions
	fs := newFlagSet("usage", &opts, stderr)
	if _, err := parseArgs(fs, args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}

	configMgr, err := setup(fs, &opts)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitError
	}
	defer logger.Close()

	cfg := configMgr.GetConfig()
	client := translator.NewDeepLClient(translator.DeepLConfig{AuthKey: configMgr.GetAuthKey(), APIURL: cfg.DeepLAPIURL})
	usage, err := client.Usage(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitError
	}

	fmt.Fprintf(stdout, "Endpoint: %s\n", client.APIURL())
	fmt.Fprintf(stdout, "Characters used: %d of %d (%d remaining)\n",
		usage.CharacterCount, usage.CharacterLimit, usage.Remaining())
	return exitOK
}

func runFailures(args []string, stdout, stderr io.Writer) int {
	var opts cliOptions
	fs := newFlagSet("failures", &opts, stderr)
	if _, err := parseArgs(fs, args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}

	configMgr, err := setup(fs, &opts)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitError
	}
	defer logger.Close()

	errorMgr, err := errs.NewErrorManager(filepath.Join(filepath.Dir(configMgr.GetConfigPath()), ErrorsDirName))
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitError
	}

	if opts.export != "" {
		if err := errorMgr.ExportInputs(opts.export); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return exitError
		}
		fmt.Fprintf(stdout, "Failed inputs written to %s\n", opts.export)
	}
	if opts.clear {
		if err := errorMgr.ClearAll(); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return exitError
		}
		fmt.Fprintln(stdout, "Failure records cleared")
		return exitOK
	}

	records := errorMgr.ListErrors()
	if len(records) == 0 {
		fmt.Fprintln(stdout, "No failed translations")
		return exitOK
	}
	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "INPUT\tLANG\tSTAGE\tRETRIES\tLAST ERROR")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", r.ID, r.TargetLang, errs.GetStageDisplayName(r.Stage), r.RetryCount, r.ErrorMsg)
	}
	tw.Flush()
	return exitOK
}
