package llm

import (
	"fmt"
	"strings"
	"time"

	contractx "github.com/tanpawarit/freight-aiflow/agent/contract"
	openrouterx "github.com/tanpawarit/freight-aiflow/pkg/openrouter"
)

type Config struct {
	BaseURL            string        `envconfig:"BASE_URL" split_words:"true" default:"https://openrouter.ai/api/v1"`
	APIKey             string        `envconfig:"API_KEY" split_words:"true"`
	Model              string        `envconfig:"MODEL" split_words:"true" default:"openai/gpt-4o-mini"`
	MaxCompletionToken int           `envconfig:"MAX_COMPLETION_TOKEN" split_words:"true" default:"600"`
	Temperature        float32       `envconfig:"TEMPERATURE" split_words:"true" default:"0.4"`
	Timeout            time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"30s"`
	MaxRetries         int           `envconfig:"MAX_RETRIES" split_words:"true" default:"2"`
	SiteURL            string        `envconfig:"SITE_URL" split_words:"true"`
	SiteName           string        `envconfig:"SITE_NAME" split_words:"true"`

	MarketAnalystModel       string  `envconfig:"MARKET_ANALYST_MODEL" split_words:"true"`
	MarketAnalystTemperature float32 `envconfig:"MARKET_ANALYST_TEMPERATURE" split_words:"true" default:"-1"`
}

// Enabled reports whether an API key is configured.
func (c Config) Enabled() bool {
	return strings.TrimSpace(c.APIKey) != ""
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("%w: openrouter api key is required", contractx.ErrInvalidInput)
	}
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("%w: default model is required", contractx.ErrInvalidInput)
	}
	return nil
}

// OpenRouterFor resolves the model settings used by the agents of one capability.
func (c Config) OpenRouterFor(kind contractx.CapabilityKind) openrouterx.Config {
	modelName := strings.TrimSpace(c.Model)
	temp := c.Temperature

	switch kind {
	case contractx.CapabilityMarketAnalysis:
		if v := strings.TrimSpace(c.MarketAnalystModel); v != "" {
			modelName = v
		}
		if c.MarketAnalystTemperature >= 0 {
			temp = c.MarketAnalystTemperature
		}
	}

	maxCompletionToken := c.MaxCompletionToken
	return openrouterx.Config{
		BaseURL:            strings.TrimSpace(c.BaseURL),
		APIKey:             strings.TrimSpace(c.APIKey),
		Model:              modelName,
		MaxCompletionToken: &maxCompletionToken,
		Temperature:        temp,
		Timeout:            c.Timeout,
		MaxRetries:         c.MaxRetries,
		SiteURL:            strings.TrimSpace(c.SiteURL),
		SiteName:           strings.TrimSpace(c.SiteName),
	}
}
