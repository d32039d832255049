// Package python provides utilities for managing a local Python environment using uv.
// It automatically downloads uv and creates an isolated virtual environment,
// ensuring the application doesn't affect or get affected by the system Python.
package python

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"pdf-translator/internal/logger"
)

// AppDataDirName is the directory name used in user's home directory
const AppDataDirName = ".pdf-translator"

// Env manages a local Python virtual environment using uv.
// It provides automatic setup of uv and venv, package installation,
// and script execution capabilities.
type Env struct {
	BaseDir    string // Base directory for .tools and .venv
	ToolsDir   string // .tools directory path (contains uv)
	VenvDir    string // .venv directory path
	UvPath     string // Path to uv executable
	PythonPath string // Path to python in venv, or the external interpreter

	external  bool
	mu        sync.Mutex
	setupDone bool
}

// Config holds configuration for creating a new Env
type Config struct {
	BaseDir string // Base directory, defaults to user home directory
	// Interpreter, when set, is used as is instead of a managed venv.
	// Packages are then installed with "python -m pip".
	Interpreter string
}

// getDefaultBaseDir returns the default base directory for Python environment.
func getDefaultBaseDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, AppDataDirName), nil
}

// New creates a new Env for managing Python environment.
// If baseDir is empty, it uses ~/.pdf-translator directory.
func New(cfg Config) (*Env, error) {
	baseDir := cfg.BaseDir
	if baseDir == "" {
		var err error
		baseDir, err = getDefaultBaseDir()
		if err != nil {
			return nil, err
		}
	}

	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	toolsDir := filepath.Join(baseDir, ".tools")
	venvDir := filepath.Join(baseDir, ".venv")

	env := &Env{
		BaseDir:  baseDir,
		ToolsDir: toolsDir,
		VenvDir:  venvDir,
	}

	if cfg.Interpreter != "" {
		env.PythonPath = cfg.Interpreter
		env.external = true
		return env, nil
	}

	// Set platform-specific paths
	if runtime.GOOS == "windows" {
		env.UvPath = filepath.Join(toolsDir, "uv.exe")
		env.PythonPath = filepath.Join(venvDir, "Scripts", "python.exe")
	} else {
		env.UvPath = filepath.Join(toolsDir, "uv")
		env.PythonPath = filepath.Join(venvDir, "bin", "python")
	}

	return env, nil
}

// EnsureSetup ensures uv is installed and venv is created.
// This method is idempotent and thread-safe.
func (e *Env) EnsureSetup(ctx context.Context, progressFn func(message string)) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.setupDone {
		return nil
	}

	progress := func(msg string) {
		logger.Debug("python env", logger.String("step", msg))
		if progressFn != nil {
			progressFn(msg)
		}
	}

	if e.external {
		progress("Checking Python interpreter...")
		if !e.isVenvValid(ctx) {
			return fmt.Errorf("python interpreter %s is not usable", e.PythonPath)
		}
		e.setupDone = true
		return nil
	}

	// 1. Ensure uv is available
	progress("Checking uv...")
	if err := e.ensureUv(ctx, progress); err != nil {
		return fmt.Errorf("failed to setup uv: %w", err)
	}

	// 2. Ensure venv exists
	progress("Checking Python virtual environment...")
	if err := e.ensureVenv(ctx, progress); err != nil {
		return fmt.Errorf("failed to setup venv: %w", err)
	}

	e.setupDone = true
	progress("Python environment ready")
	return nil
}

// ensureUv downloads uv if not present
func (e *Env) ensureUv(ctx context.Context, progress func(string)) error {
	if e.isUvInstalled(ctx) {
		progress("uv already installed")
		return nil
	}

	progress("Downloading uv...")

	if err := os.MkdirAll(e.ToolsDir, 0755); err != nil {
		return fmt.Errorf("failed to create tools directory: %w", err)
	}

	url := e.getUvDownloadURL()
	if url == "" {
		return fmt.Errorf("unsupported platform: %s/%s", runtime.GOOS, runtime.GOARCH)
	}

	archivePath, err := e.downloadFile(ctx, url, e.ToolsDir)
	if err != nil {
		return fmt.Errorf("failed to download uv: %w", err)
	}
	defer os.Remove(archivePath)

	progress("Extracting uv...")
	if err := e.extractUv(ctx, archivePath); err != nil {
		return fmt.Errorf("failed to extract uv: %w", err)
	}

	if !e.isUvInstalled(ctx) {
		return fmt.Errorf("uv installation verification failed")
	}

	progress("uv installed")
	return nil
}

// isUvInstalled checks if uv is installed and executable
func (e *Env) isUvInstalled(ctx context.Context) bool {
	if _, err := os.Stat(e.UvPath); err != nil {
		return false
	}

	cmd := exec.CommandContext(ctx, e.UvPath, "--version")
	HideConsole(cmd)
	return cmd.Run() == nil
}

// getUvDownloadURL returns the download URL for uv based on the current platform
func (e *Env) getUvDownloadURL() string {
	// uv release URLs from https://github.com/astral-sh/uv/releases
	baseURL := "https://github.com/astral-sh/uv/releases/latest/download"

	switch runtime.GOOS {
	case "windows":
		if runtime.GOARCH == "amd64" {
			return baseURL + "/uv-x86_64-pc-windows-msvc.zip"
		}
		if runtime.GOARCH == "arm64" {
			return baseURL + "/uv-aarch64-pc-windows-msvc.zip"
		}
	case "darwin":
		if runtime.GOARCH == "arm64" {
			return baseURL + "/uv-aarch64-apple-darwin.tar.gz"
		}
		if runtime.GOARCH == "amd64" {
			return baseURL + "/uv-x86_64-apple-darwin.tar.gz"
		}
	case "linux":
		if runtime.GOARCH == "amd64" {
			return baseURL + "/uv-x86_64-unknown-linux-gnu.tar.gz"
		}
		if runtime.GOARCH == "arm64" {
			return baseURL + "/uv-aarch64-unknown-linux-gnu.tar.gz"
		}
	}
	return ""
}

// downloadFile downloads a file from URL to the specified directory
func (e *Env) downloadFile(ctx context.Context, url, destDir string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	destPath := filepath.Join(destDir, filepath.Base(url))
	out, err := os.Create(destPath)
	if err != nil {
		return "", err
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		os.Remove(destPath)
		return "", err
	}

	return destPath, nil
}

// extractUv extracts the uv archive based on file type
func (e *Env) extractUv(ctx context.Context, archivePath string) error {
	if strings.HasSuffix(archivePath, ".zip") {
		return e.extractZip(archivePath)
	}
	return e.extractTarGz(ctx, archivePath)
}

// extractZip extracts the uv executable from a zip archive
func (e *Env) extractZip(archivePath string) error {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return err
	}
	defer r.Close()

	uvName := "uv"
	if runtime.GOOS == "windows" {
		uvName = "uv.exe"
	}

	for _, f := range r.File {
		if filepath.Base(f.Name) != uvName {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return err
		}
		defer rc.Close()

		out, err := os.OpenFile(e.UvPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0755)
		if err != nil {
			return err
		}
		defer out.Close()

		_, err = io.Copy(out, rc)
		return err
	}

	return fmt.Errorf("uv executable not found in archive")
}

// extractTarGz extracts a tar.gz archive using system tar command
func (e *Env) extractTarGz(ctx context.Context, archivePath string) error {
	cmd := exec.CommandContext(ctx, "tar", "-xzf", archivePath, "-C", e.ToolsDir, "--strip-components=1")
	HideConsole(cmd)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("tar extraction failed: %s: %w", string(output), err)
	}

	return os.Chmod(e.UvPath, 0755)
}

// ensureVenv creates the virtual environment if it doesn't exist
func (e *Env) ensureVenv(ctx context.Context, progress func(string)) error {
	if e.isVenvValid(ctx) {
		progress("Python virtual environment exists")
		return nil
	}

	progress("Creating Python virtual environment...")

	// Remove existing broken venv if any
	if _, err := os.Stat(e.VenvDir); err == nil {
		os.RemoveAll(e.VenvDir)
	}

	// uv will download Python if needed
	cmd := exec.CommandContext(ctx, e.UvPath, "venv", e.VenvDir, "--python", "3.11")
	HideConsole(cmd)
	cmd.Dir = e.BaseDir
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("failed to create venv: %s: %w", string(output), err)
	}

	if !e.isVenvValid(ctx) {
		return fmt.Errorf("venv creation verification failed")
	}

	progress("Python virtual environment created")
	return nil
}

// isVenvValid checks if the interpreter exists and runs
func (e *Env) isVenvValid(ctx context.Context) bool {
	if !e.external {
		if _, err := os.Stat(e.PythonPath); err != nil {
			return false
		}
	}

	cmd := exec.CommandContext(ctx, e.PythonPath, "--version")
	HideConsole(cmd)
	return cmd.Run() == nil
}

// InstallPackages installs Python packages using uv pip
func (e *Env) InstallPackages(ctx context.Context, packages []string, progress func(string)) error {
	if len(packages) == 0 {
		return nil
	}

	if err := e.EnsureSetup(ctx, progress); err != nil {
		return err
	}

	if progress != nil {
		progress(fmt.Sprintf("Installing Python packages: %s", strings.Join(packages, ", ")))
	}
	logger.Info("installing python packages", logger.String("packages", strings.Join(packages, ",")))

	var cmd *exec.Cmd
	if e.external {
		args := append([]string{"-m", "pip", "install"}, packages...)
		cmd = exec.CommandContext(ctx, e.PythonPath, args...)
	} else {
		args := append([]string{"pip", "install", "--python", e.PythonPath}, packages...)
		cmd = exec.CommandContext(ctx, e.UvPath, args...)
	}
	HideConsole(cmd)
	cmd.Dir = e.BaseDir
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("failed to install packages: %s: %w", string(output), err)
	}

	if progress != nil {
		progress("Python packages installed")
	}
	return nil
}

// EnsurePackages ensures the specified packages are installed.
// It checks if packages are already installed before installing.
func (e *Env) EnsurePackages(ctx context.Context, packages []string, progress func(string)) error {
	if len(packages) == 0 {
		return nil
	}

	if err := e.EnsureSetup(ctx, progress); err != nil {
		return err
	}

	var missing []string
	for _, pkg := range packages {
		if !e.isPackageInstalled(ctx, pkg) {
			missing = append(missing, pkg)
		}
	}

	if len(missing) == 0 {
		if progress != nil {
			progress("All Python packages installed")
		}
		return nil
	}

	return e.InstallPackages(ctx, missing, progress)
}

// isPackageInstalled checks if a package is installed in the venv
func (e *Env) isPackageInstalled(ctx context.Context, pkg string) bool {
	cmd := exec.CommandContext(ctx, e.PythonPath, "-c", fmt.Sprintf("import %s", ModuleName(pkg)))
	HideConsole(cmd)
	return cmd.Run() == nil
}

// ModuleName returns the importable module name of a pip requirement:
// "pdf2docx>=0.5" -> "pdf2docx", "python-docx" -> "python_docx".
func ModuleName(pkg string) string {
	name := pkg
	for _, sep := range []string{">=", "<=", "==", "~=", ">", "<", "["} {
		if idx := strings.Index(name, sep); idx > 0 {
			name = name[:idx]
		}
	}
	return strings.ReplaceAll(strings.TrimSpace(name), "-", "_")
}

// RunScript runs a Python script in the virtual environment and returns its
// combined output.
func (e *Env) RunScript(ctx context.Context, scriptPath string, args ...string) (string, error) {
	if err := e.EnsureSetup(ctx, nil); err != nil {
		return "", err
	}

	cmdArgs := append([]string{scriptPath}, args...)
	cmd := exec.CommandContext(ctx, e.PythonPath, cmdArgs...)
	HideConsole(cmd)
	cmd.Dir = e.BaseDir

	output, err := cmd.CombinedOutput()
	return string(output), err
}

// GetPythonPath returns the path to the Python executable
func (e *Env) GetPythonPath() string {
	return e.PythonPath
}

// IsReady returns true if the environment is fully set up
func (e *Env) IsReady(ctx context.Context) bool {
	if e.external {
		return e.isVenvValid(ctx)
	}
	return e.isUvInstalled(ctx) && e.isVenvValid(ctx)
}
