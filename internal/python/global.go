package python

import (
	"context"
	"sync"
)

var (
	globalEnv     *Env
	globalEnvOnce sync.Once
	globalEnvErr  error
	globalConfig  Config
)

// RequiredPackages lists the Python packages required for PDF to DOCX conversion
var RequiredPackages = []string{
	"pdf2docx", // PDF layout analysis and DOCX generation
}

// Configure sets the configuration used by GetGlobalEnv. It has no effect
// once the global environment has been created.
func Configure(cfg Config) {
	globalConfig = cfg
}

// GetGlobalEnv returns the global Python environment instance.
// It initializes the environment on first call.
func GetGlobalEnv() (*Env, error) {
	globalEnvOnce.Do(func() {
		globalEnv, globalEnvErr = New(globalConfig)
	})
	return globalEnv, globalEnvErr
}

// EnsureGlobalEnv ensures the global Python environment is set up with required packages.
// This is the main entry point for other packages to use.
func EnsureGlobalEnv(ctx context.Context, progressFn func(message string)) (*Env, error) {
	env, err := GetGlobalEnv()
	if err != nil {
		return nil, err
	}

	if err := env.EnsureSetup(ctx, progressFn); err != nil {
		return nil, err
	}

	if err := env.EnsurePackages(ctx, RequiredPackages, progressFn); err != nil {
		return nil, err
	}
	return env, nil
}
