package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	openaisdk "github.com/openai/openai-go"
	contractx "github.com/tanpawarit/freight-aiflow/agent/contract"
	promptx "github.com/tanpawarit/freight-aiflow/agent/prompt"
	openrouterx "github.com/tanpawarit/freight-aiflow/pkg/openrouter"
)

const maxRecommendations = 5

var ErrEmptyCompletion = errors.New("model returned no recommendations")

// Recommender asks a chat model for sector recommendations.
type Recommender struct {
	client       *openaisdk.Client
	model        string
	temperature  float64
	maxTokens    int
	systemPrompt string
}

var _ contractx.Recommender = (*Recommender)(nil)

func NewRecommender(client *openaisdk.Client, cfg openrouterx.Config) (*Recommender, error) {
	if client == nil {
		return nil, errors.New("openai client is required")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		return nil, fmt.Errorf("%w: model is required", contractx.ErrInvalidInput)
	}
	maxTokens := 0
	if cfg.MaxCompletionToken != nil {
		maxTokens = *cfg.MaxCompletionToken
	}

	return &Recommender{
		client:       client,
		model:        model,
		temperature:  float64(cfg.Temperature),
		maxTokens:    maxTokens,
		systemPrompt: promptx.LoadPromptSet().MarketAnalyst,
	}, nil
}

type marketPayload struct {
	Sector           string  `json:"sector"`
	MarketSize       float64 `json:"market_size_usd"`
	GrowthRate       float64 `json:"growth_rate"`
	CompetitionLevel string  `json:"competition_level"`
	Opportunities    int     `json:"opportunities"`
	Threats          int     `json:"threats"`
}

func (r *Recommender) Recommend(ctx context.Context, sector string, data contractx.MarketData) ([]string, error) {
	input, err := json.Marshal(marketPayload{
		Sector:           sector,
		MarketSize:       data.MarketSize,
		GrowthRate:       data.GrowthRate,
		CompetitionLevel: data.CompetitionLevel,
		Opportunities:    data.Opportunities,
		Threats:          data.Threats,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal market payload: %w", err)
	}

	params := openaisdk.ChatCompletionNewParams{
		Model: openaisdk.ChatModel(r.model),
		Messages: []openaisdk.ChatCompletionMessageParamUnion{
			openaisdk.SystemMessage(r.systemPrompt),
			openaisdk.UserMessage(string(input)),
		},
		Temperature: openaisdk.Float(r.temperature),
	}
	if r.maxTokens > 0 {
		params.MaxCompletionTokens = openaisdk.Int(int64(r.maxTokens))
	}

	resp, err := r.client.Chat.Completions.New(ctx, params, openrouterx.RequestOptions(r.model)...)
	if err != nil {
		return nil, fmt.Errorf("market recommendation completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, ErrEmptyCompletion
	}

	recs := parseRecommendations(resp.Choices[0].Message.Content)
	if len(recs) == 0 {
		return nil, ErrEmptyCompletion
	}
	return recs, nil
}

// parseRecommendations accepts a JSON array, optionally fenced, or falls back to one
// recommendation per non-empty line.
func parseRecommendations(content string) []string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var raw []string
	bulleted := false
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		raw = strings.Split(content, "\n")
		bulleted = true
	}

	out := make([]string, 0, len(raw))
	for _, item := range raw {
		item = strings.TrimSpace(item)
		if bulleted {
			item = strings.TrimSpace(strings.TrimLeft(item, "-*0123456789.) "))
		}
		if item == "" {
			continue
		}
		out = append(out, item)
		if len(out) == maxRecommendations {
			break
		}
	}
	return out
}
