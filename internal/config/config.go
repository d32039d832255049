// Package config provides configuration management for the PDF translator.
package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"pdf-translator/internal/logger"
	"pdf-translator/internal/types"
)

const (
	// DefaultConfigFileName is the default configuration file name
	DefaultConfigFileName = "config.yaml"
	// AppDirName is the directory under the user config dir holding config and cache
	AppDirName = "pdf-translator"

	// EnvDeepLAuthKey is the environment variable name for the DeepL credential
	EnvDeepLAuthKey = "DEEPL_AUTH_KEY"
	// EnvDeepLAPIURL overrides the DeepL translate endpoint
	EnvDeepLAPIURL = "DEEPL_API_URL"
	// EnvOpenAIAPIKey is the environment variable name for OpenAI API key
	EnvOpenAIAPIKey = "OPENAI_API_KEY"
	// EnvOpenAIBaseURL is the environment variable name for OpenAI base URL
	EnvOpenAIBaseURL = "OPENAI_BASE_URL"

	DefaultEngine        = types.EngineDeepL
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	DefaultOpenAIModel   = "gpt-4o-mini"

	// DefaultMaxChunkChars is the DeepL per-request character budget
	DefaultMaxChunkChars = 5000
	// DefaultRequestDelay is slept after every successful request
	DefaultRequestDelay = 500 * time.Millisecond
	// DefaultRateLimitWait is slept after an HTTP 429 before the chunk is retried
	DefaultRateLimitWait = 60 * time.Second
	// DefaultRateLimitRetries bounds how often one chunk is re-sent after 429
	DefaultRateLimitRetries = 3
	// DefaultConversionTimeout bounds each external conversion process
	DefaultConversionTimeout = 10 * time.Minute
	// DefaultCacheFileName is the translation cache file under the app dir
	DefaultCacheFileName = "translations.db"
)

// ConfigManager manages application configuration
type ConfigManager struct {
	configPath string
	config     *types.Config
}

// NewConfigManager creates a new ConfigManager with the specified config path.
// If configPath is empty, it uses the default path in the user's config directory.
func NewConfigManager(configPath string) (*ConfigManager, error) {
	if configPath == "" {
		dir, err := AppDir()
		if err != nil {
			return nil, err
		}
		configPath = filepath.Join(dir, DefaultConfigFileName)
	}

	logger.Debug("ConfigManager initialized", logger.String("configPath", configPath))
	return &ConfigManager{
		configPath: configPath,
		config:     defaultConfig(),
	}, nil
}

// AppDir returns ~/.config/pdf-translator (or the platform equivalent).
func AppDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		homeDir, herr := os.UserHomeDir()
		if herr != nil {
			logger.Error("failed to get user home directory", herr)
			return "", types.NewAppError(types.ErrConfig, "failed to locate config directory", herr)
		}
		base = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(base, AppDirName), nil
}

// defaultConfig returns a Config with default values
func defaultConfig() *types.Config {
	return &types.Config{
		Engine:            DefaultEngine,
		OpenAIBaseURL:     DefaultOpenAIBaseURL,
		OpenAIModel:       DefaultOpenAIModel,
		MaxChunkChars:     DefaultMaxChunkChars,
		RequestDelay:      DefaultRequestDelay,
		RateLimitWait:     DefaultRateLimitWait,
		RateLimitRetries:  DefaultRateLimitRetries,
		ConversionTimeout: DefaultConversionTimeout,
	}
}

// Load loads configuration from the config file.
// A missing file leaves the defaults in place; a malformed file is an error.
// Environment variables fill credentials the file leaves empty.
func (m *ConfigManager) Load() error {
	logger.Debug("loading configuration", logger.String("path", m.configPath))

	cfg := defaultConfig()
	data, err := os.ReadFile(m.configPath)
	switch {
	case os.IsNotExist(err):
		logger.Debug("config file not found, using defaults", logger.String("path", m.configPath))
	case err != nil:
		logger.Error("failed to read config file", err, logger.String("path", m.configPath))
		return types.NewAppError(types.ErrConfig, "failed to read config file", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			logger.Error("invalid config file format", err, logger.String("path", m.configPath))
			return types.NewAppErrorWithDetails(types.ErrConfig, "invalid config file", m.configPath, err)
		}
		logger.Info("configuration loaded",
			logger.String("path", m.configPath),
			logger.String("engine", cfg.Engine),
			logger.Int("authKeyLength", len(cfg.AuthKey)))
	}

	applyEnv(cfg)
	applyDefaults(cfg)
	m.config = cfg
	return nil
}

func applyEnv(cfg *types.Config) {
	if cfg.AuthKey == "" {
		cfg.AuthKey = os.Getenv(EnvDeepLAuthKey)
	}
	if cfg.DeepLAPIURL == "" {
		cfg.DeepLAPIURL = os.Getenv(EnvDeepLAPIURL)
	}
	if cfg.OpenAIAPIKey == "" {
		cfg.OpenAIAPIKey = os.Getenv(EnvOpenAIAPIKey)
	}
	if env := os.Getenv(EnvOpenAIBaseURL); env != "" && (cfg.OpenAIBaseURL == "" || cfg.OpenAIBaseURL == DefaultOpenAIBaseURL) {
		cfg.OpenAIBaseURL = env
	}
}

// applyDefaults fills zero values left by a partial config file
func applyDefaults(cfg *types.Config) {
	if cfg.Engine == "" {
		cfg.Engine = DefaultEngine
	}
	if cfg.OpenAIBaseURL == "" {
		cfg.OpenAIBaseURL = DefaultOpenAIBaseURL
	}
	if cfg.OpenAIModel == "" {
		cfg.OpenAIModel = DefaultOpenAIModel
	}
	if cfg.MaxChunkChars <= 0 {
		cfg.MaxChunkChars = DefaultMaxChunkChars
	}
	if cfg.RequestDelay < 0 {
		cfg.RequestDelay = DefaultRequestDelay
	}
	if cfg.RateLimitWait <= 0 {
		cfg.RateLimitWait = DefaultRateLimitWait
	}
	if cfg.RateLimitRetries < 0 {
		cfg.RateLimitRetries = 0
	}
	if cfg.ConversionTimeout <= 0 {
		cfg.ConversionTimeout = DefaultConversionTimeout
	}
}

// Save saves the current configuration to the config file.
func (m *ConfigManager) Save() error {
	logger.Debug("saving configuration", logger.String("path", m.configPath))

	dir := filepath.Dir(m.configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		logger.Error("failed to create config directory", err, logger.String("dir", dir))
		return types.NewAppError(types.ErrConfig, "failed to create config directory", err)
	}

	data, err := yaml.Marshal(m.config)
	if err != nil {
		logger.Error("failed to marshal config", err)
		return types.NewAppError(types.ErrConfig, "failed to marshal config", err)
	}

	// the file carries credentials
	if err := os.WriteFile(m.configPath, data, 0600); err != nil {
		logger.Error("failed to write config file", err, logger.String("path", m.configPath))
		return types.NewAppError(types.ErrConfig, "failed to write config file", err)
	}

	logger.Info("configuration saved", logger.String("path", m.configPath))
	return nil
}

// GetConfig returns the current configuration.
func (m *ConfigManager) GetConfig() *types.Config {
	if m.config == nil {
		return defaultConfig()
	}
	return m.config
}

// GetConfigPath returns the path to the config file.
func (m *ConfigManager) GetConfigPath() string {
	return m.configPath
}

// GetAuthKey returns the DeepL credential, preferring the config file over the environment.
func (m *ConfigManager) GetAuthKey() string {
	if m.config != nil && m.config.AuthKey != "" {
		return m.config.AuthKey
	}
	return os.Getenv(EnvDeepLAuthKey)
}

// GetCachePath returns the translation cache location, or "" when caching is disabled.
func (m *ConfigManager) GetCachePath() string {
	cfg := m.GetConfig()
	if cfg.CacheDisabled {
		return ""
	}
	if cfg.CachePath != "" {
		return cfg.CachePath
	}
	return filepath.Join(filepath.Dir(m.configPath), DefaultCacheFileName)
}
