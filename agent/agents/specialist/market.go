package specialist

import (
	"context"
	"strings"

	contractx "github.com/tanpawarit/freight-aiflow/agent/contract"
)

type marketDescriptor struct {
	Op     string `json:"op"`
	Sector string `json:"sector"`
}

// DefaultRecommendations is served when no recommender is configured or it fails.
func DefaultRecommendations() []string {
	return []string{
		"Focus on emerging markets",
		"Invest in technology automation",
		"Expand service offerings",
		"Build strategic partnerships",
	}
}

type marketAnalysisHandler struct {
	tk Toolkit
}

func (h *marketAnalysisHandler) Capability() contractx.CapabilityKind {
	return contractx.CapabilityMarketAnalysis
}

func (h *marketAnalysisHandler) Handle(ctx context.Context, raw contractx.Request) (any, error) {
	req, err := requestAs[contractx.MarketAnalysisRequest](raw)
	if err != nil {
		return nil, err
	}
	sector := strings.TrimSpace(req.Sector)

	data, err := h.tk.MarketCache.GetOrCompute(ctx, marketDescriptor{Op: "market", Sector: strings.ToLower(sector)}, h.tk.MarketTTL,
		func(ctx context.Context) (contractx.MarketData, error) {
			return h.tk.Source.FetchMarket(ctx, sector)
		})
	if err != nil {
		return nil, err
	}

	return contractx.MarketIntelligence{
		Sector:          sector,
		MarketSize:      data.MarketSize,
		GrowthRate:      data.GrowthRate,
		Competition:     data.CompetitionLevel,
		Opportunities:   data.Opportunities,
		Threats:         data.Threats,
		Recommendations: h.recommend(ctx, sector, data),
	}, nil
}

func (h *marketAnalysisHandler) recommend(ctx context.Context, sector string, data contractx.MarketData) []string {
	if h.tk.Recommender == nil {
		return DefaultRecommendations()
	}
	recs, err := h.tk.Recommender.Recommend(ctx, sector, data)
	if err != nil || len(recs) == 0 {
		h.tk.Logger.Warn().Err(err).Str("sector", sector).Msg("recommender unavailable, using defaults")
		return DefaultRecommendations()
	}
	return recs
}
