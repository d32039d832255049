package python

import (
	"context"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func TestModuleName(t *testing.T) {
	tests := []struct {
		pkg  string
		want string
	}{
		{"pdf2docx", "pdf2docx"},
		{"pdf2docx>=0.5.8", "pdf2docx"},
		{"python-docx==1.1", "python_docx"},
		{"requests[socks]", "requests"},
		{" numpy ~= 1.26", "numpy"},
	}
	for _, tt := range tests {
		if got := ModuleName(tt.pkg); got != tt.want {
			t.Errorf("ModuleName(%q) = %q, want %q", tt.pkg, got, tt.want)
		}
	}
}

func TestNew_ManagedPaths(t *testing.T) {
	base := t.TempDir()
	env, err := New(Config{BaseDir: base})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	if env.VenvDir != filepath.Join(base, ".venv") || env.ToolsDir != filepath.Join(base, ".tools") {
		t.Errorf("unexpected dirs: %s, %s", env.VenvDir, env.ToolsDir)
	}
	if !strings.HasPrefix(env.GetPythonPath(), env.VenvDir) {
		t.Errorf("python path %s is outside the venv", env.GetPythonPath())
	}
	wantUv := "uv"
	if runtime.GOOS == "windows" {
		wantUv = "uv.exe"
	}
	if filepath.Base(env.UvPath) != wantUv {
		t.Errorf("uv path = %s", env.UvPath)
	}
	if env.IsReady(context.Background()) {
		t.Error("fresh environment should not be ready")
	}
}

func TestNew_ExternalInterpreter(t *testing.T) {
	env, err := New(Config{BaseDir: t.TempDir(), Interpreter: "/usr/bin/python3"})
	if err != nil {
		t.Fatal(err)
	}
	if env.GetPythonPath() != "/usr/bin/python3" || env.UvPath != "" {
		t.Errorf("external interpreter not used: python=%s uv=%s", env.GetPythonPath(), env.UvPath)
	}
}

func TestEnsureSetup_BrokenInterpreter(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "no-such-python")
	env, err := New(Config{BaseDir: t.TempDir(), Interpreter: missing})
	if err != nil {
		t.Fatal(err)
	}
	if err := env.EnsureSetup(context.Background(), nil); err == nil {
		t.Error("expected an error for a missing interpreter")
	}
	if _, err := env.RunScript(context.Background(), "script.py"); err == nil {
		t.Error("RunScript should fail when setup fails")
	}
}
