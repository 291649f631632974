package config

import (
	"context"
	"fmt"
	"strings"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"

	"github.com/hupe1980/reactmesh/logging"
	"github.com/hupe1980/reactmesh/model"
	"github.com/hupe1980/reactmesh/model/anthropic"
	"github.com/hupe1980/reactmesh/model/gemini"
	"github.com/hupe1980/reactmesh/model/ollama"
	"github.com/hupe1980/reactmesh/model/openai"
	"github.com/hupe1980/reactmesh/model/openaicompat"
	"github.com/hupe1980/reactmesh/model/retry"
)

// Provider names accepted in REACT_PROVIDER.
const (
	ProviderOpenAI       = "openai"
	ProviderAnthropic    = "anthropic"
	ProviderOpenAICompat = "openaicompat"
	ProviderOllama       = "ollama"
	ProviderGemini       = "gemini"
)

// Providers lists the supported provider names.
func Providers() []string {
	return []string{ProviderOpenAI, ProviderAnthropic, ProviderOpenAICompat, ProviderOllama, ProviderGemini}
}

// CloseFunc releases provider resources.
type CloseFunc func() error

// NewProvider builds the configured provider wrapped with the retry
// decorator. A retry budget of zero returns the bare provider.
func NewProvider(ctx context.Context, s *Settings, logger logging.Logger) (model.Provider, CloseFunc, error) {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}

	closer := CloseFunc(func() error { return nil })

	var p model.Provider

	switch strings.ToLower(s.Provider) {
	case ProviderOpenAI:
		p = openai.New(func(o *openai.Options) {
			setString(&o.Model, s.Model)
			setString(&o.APIKey, s.APIKey)
			setString(&o.BaseURL, s.BaseURL)
			o.MaxCompletionTokens = int64(s.TokenBudget)
			if s.Temperature != 0 {
				o.Temperature = s.Temperature
			}
		})
	case ProviderAnthropic:
		p = anthropic.New(func(o *anthropic.Options) {
			if s.Model != "" {
				o.Model = anthropicsdk.Model(s.Model)
			}
			setString(&o.APIKey, s.APIKey)
			setString(&o.BaseURL, s.BaseURL)
			o.MaxTokens = int64(s.TokenBudget)
			if s.Temperature != 0 {
				o.Temperature = s.Temperature
			}
		})
	case ProviderOpenAICompat:
		if s.BaseURL == "" {
			return nil, nil, fmt.Errorf("config: provider %s requires %s_BASE_URL", ProviderOpenAICompat, EnvPrefix)
		}

		p = openaicompat.New(func(o *openaicompat.Options) {
			setString(&o.Model, s.Model)
			setString(&o.APIKey, s.APIKey)
			o.BaseURL = s.BaseURL
			o.MaxTokens = s.TokenBudget
			if s.Temperature != 0 {
				o.Temperature = float32(s.Temperature)
			}
		})
	case ProviderOllama:
		op, err := ollama.New(func(o *ollama.Options) {
			setString(&o.Model, s.Model)
			setString(&o.Host, s.BaseURL)
			o.NumPredict = s.TokenBudget
			if s.Temperature != 0 {
				o.Temperature = s.Temperature
			}
		})
		if err != nil {
			return nil, nil, fmt.Errorf("config: %w", err)
		}

		p = op
	case ProviderGemini:
		gp, err := gemini.New(ctx, func(o *gemini.Options) {
			setString(&o.Model, s.Model)
			setString(&o.APIKey, s.APIKey)
			o.MaxOutputTokens = int32(s.TokenBudget) //nolint:gosec // validated positive
			if s.Temperature != 0 {
				o.Temperature = float32(s.Temperature)
			}
		})
		if err != nil {
			return nil, nil, fmt.Errorf("config: %w", err)
		}

		p = gp
		closer = gp.Close
	default:
		return nil, nil, fmt.Errorf("config: unknown provider %q (supported: %s)", s.Provider, strings.Join(Providers(), ", "))
	}

	if s.RetryMaxRetries == 0 {
		return p, closer, nil
	}

	return retry.Wrap(p, s.RetryOptions, func(o *retry.Options) {
		o.Logger = logger
	}), closer, nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
