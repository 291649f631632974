package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"

	"github.com/hupe1980/reactmesh/engine"
	"github.com/hupe1980/reactmesh/model"
	"github.com/hupe1980/reactmesh/model/retry"
)

// EnvPrefix is the prefix of every environment variable read by Load.
const EnvPrefix = "REACT"

// Settings is the process configuration.
type Settings struct {
	Provider    string  `default:"openai"`
	Model       string
	APIKey      string  `envconfig:"API_KEY"`
	BaseURL     string  `envconfig:"BASE_URL"`
	Temperature float64 `default:"0"`

	MaxInteractions   int           `envconfig:"MAX_INTERACTIONS" default:"3"`
	TokenBudget       int           `envconfig:"TOKEN_BUDGET" default:"5000"`
	CallTimeout       time.Duration `envconfig:"CALL_TIMEOUT" default:"60s"`
	ObserveOnFallback bool          `envconfig:"OBSERVE_ON_FALLBACK" default:"false"`
	MaxConcurrentRuns int           `envconfig:"MAX_CONCURRENT_RUNS" default:"0"`
	RunTimeout        time.Duration `envconfig:"RUN_TIMEOUT" default:"5m"`

	RetryMaxRetries      uint          `envconfig:"RETRY_MAX_RETRIES" default:"3"`
	RetryInitialInterval time.Duration `envconfig:"RETRY_INITIAL_INTERVAL" default:"500ms"`
	RetryMaxInterval     time.Duration `envconfig:"RETRY_MAX_INTERVAL" default:"10s"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"text"`

	ListenAddr   string  `envconfig:"LISTEN_ADDR" default:":8080"`
	APIToken     string  `envconfig:"API_TOKEN"`
	Catalog      string  `envconfig:"CATALOG"`
	OTLPEndpoint string  `envconfig:"OTLP_ENDPOINT"`
	SampleRatio  float64 `envconfig:"SAMPLE_RATIO" default:"1"`
}

// LoadOptions controls where Load looks for configuration.
type LoadOptions struct {
	// DotEnv is loaded into the environment if it exists. Variables already
	// set are not overridden.
	DotEnv string

	// File is an optional viper readable config file (yaml, toml, json,
	// env). Its keys are exported as REACT_<KEY> unless already set.
	File string
}

// Load reads the settings.
func Load(optFns ...func(o *LoadOptions)) (*Settings, error) {
	opts := LoadOptions{
		DotEnv: ".env",
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if err := loadDotEnv(opts.DotEnv); err != nil {
		return nil, fmt.Errorf("config: load %s: %w", opts.DotEnv, err)
	}

	if opts.File != "" {
		if err := exportFile(opts.File); err != nil {
			return nil, fmt.Errorf("config: load %s: %w", opts.File, err)
		}
	}

	var s Settings
	if err := envconfig.Process(EnvPrefix, &s); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}

	return &s, nil
}

// Validate reports inconsistent settings.
func (s *Settings) Validate() error {
	switch {
	case s.MaxInteractions <= 0:
		return fmt.Errorf("config: %s_MAX_INTERACTIONS must be positive", EnvPrefix)
	case s.TokenBudget <= 0:
		return fmt.Errorf("config: %s_TOKEN_BUDGET must be positive", EnvPrefix)
	case s.CallTimeout < 0:
		return fmt.Errorf("config: %s_CALL_TIMEOUT must not be negative", EnvPrefix)
	case s.RunTimeout < 0:
		return fmt.Errorf("config: %s_RUN_TIMEOUT must not be negative", EnvPrefix)
	case s.MaxConcurrentRuns < 0:
		return fmt.Errorf("config: %s_MAX_CONCURRENT_RUNS must not be negative", EnvPrefix)
	}

	return nil
}

// EngineConfig returns the orchestration config for provider.
func (s *Settings) EngineConfig(provider model.Provider) engine.Config {
	return engine.Config{
		MaxInteractions:   s.MaxInteractions,
		TokenBudget:       s.TokenBudget,
		Provider:          provider,
		CallTimeout:       s.CallTimeout,
		ObserveOnFallback: s.ObserveOnFallback,
	}
}

// RetryOptions applies the retry settings.
func (s *Settings) RetryOptions(o *retry.Options) {
	o.MaxRetries = s.RetryMaxRetries
	o.InitialInterval = s.RetryInitialInterval
	o.MaxInterval = s.RetryMaxInterval
}

// loadDotEnv loads path. Missing files are ignored.
func loadDotEnv(path string) error {
	if path == "" {
		return nil
	}

	err := godotenv.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}

	return err
}

func exportFile(path string) error {
	v := viper.New()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return err
	}

	for _, key := range v.AllKeys() {
		name := EnvPrefix + "_" + strings.ToUpper(strings.NewReplacer(".", "_", "-", "_").Replace(key))

		if _, set := os.LookupEnv(name); set {
			continue
		}

		if err := os.Setenv(name, v.GetString(key)); err != nil {
			return err
		}
	}

	return nil
}

// WithDotEnv sets the .env path. Empty disables loading.
func WithDotEnv(path string) func(o *LoadOptions) {
	return func(o *LoadOptions) {
		o.DotEnv = path
	}
}

// WithFile sets the config file path.
func WithFile(path string) func(o *LoadOptions) {
	return func(o *LoadOptions) {
		o.File = path
	}
}
