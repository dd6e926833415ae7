package intel

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	cachex "github.com/tanpawarit/freight-aiflow/agent/cache"
	contractx "github.com/tanpawarit/freight-aiflow/agent/contract"
)

const (
	defaultIndustryWeight = 0.5
	defaultCompanyTTL     = 24 * time.Hour

	largeRevenue      = 50_000_000
	largeHeadcount    = 200
	contactRevenue    = 10_000_000
	contactHeadcount  = 100
	highPriorityAbove = 80
	midPriorityAbove  = 60
)

// DefaultIndustryWeights is the freight intensity of each industry on [0,1].
func DefaultIndustryWeights() map[string]float64 {
	return map[string]float64{
		"Manufacturing":   0.9,
		"Retail":          0.8,
		"Construction":    0.7,
		"Food & Beverage": 0.8,
		"Automotive":      0.9,
		"Technology":      0.3,
	}
}

type Config struct {
	IndustryWeights map[string]float64
	CompanyTTL      time.Duration
}

type companyDescriptor struct {
	Op   string `json:"op"`
	Name string `json:"name"`
}

// Service scores companies for freight potential and reachability.
type Service struct {
	source  contractx.ExternalDataSource
	cache   *cachex.Cache[contractx.CompanyProfile]
	weights map[string]float64
	ttl     time.Duration
}

func New(source contractx.ExternalDataSource, cache *cachex.Cache[contractx.CompanyProfile], cfg Config) (*Service, error) {
	if source == nil {
		return nil, errors.New("external data source is required")
	}
	if cache == nil {
		return nil, errors.New("company cache is required")
	}

	table := cfg.IndustryWeights
	if len(table) == 0 {
		table = DefaultIndustryWeights()
	}
	weights := make(map[string]float64, len(table))
	for industry, w := range table {
		weights[normalize(industry)] = clamp(w, 0, 1)
	}

	ttl := cfg.CompanyTTL
	if ttl <= 0 {
		ttl = defaultCompanyTTL
	}

	return &Service{
		source:  source,
		cache:   cache,
		weights: weights,
		ttl:     ttl,
	}, nil
}

// Analyze fetches the company profile (memoised per normalised name) and scores it.
func (s *Service) Analyze(ctx context.Context, company string) (contractx.CompanyAnalysis, error) {
	name := strings.TrimSpace(company)
	if name == "" {
		return contractx.CompanyAnalysis{}, fmt.Errorf("%w: company name is required", contractx.ErrInvalidInput)
	}

	profile, err := s.cache.GetOrCompute(ctx, companyDescriptor{Op: "company", Name: normalize(name)}, s.ttl,
		func(ctx context.Context) (contractx.CompanyProfile, error) {
			return s.source.FetchCompany(ctx, name)
		})
	if err != nil {
		return contractx.CompanyAnalysis{}, fmt.Errorf("fetch company %q: %w", name, err)
	}

	return s.Score(profile), nil
}

// Score applies the scoring rules to an already-known profile.
func (s *Service) Score(profile contractx.CompanyProfile) contractx.CompanyAnalysis {
	freight := FreightPotential(profile, s.Weight(profile.Industry))
	contact := ContactScore(profile)
	return contractx.CompanyAnalysis{
		CompanyName:      profile.Name,
		Industry:         profile.Industry,
		Revenue:          profile.Revenue,
		EmployeeCount:    profile.Employees,
		FreightPotential: freight,
		ContactScore:     contact,
		Priority:         PriorityFor(freight, contact),
	}
}

func (s *Service) Weight(industry string) float64 {
	if w, ok := s.weights[normalize(industry)]; ok {
		return w
	}
	return defaultIndustryWeight
}

func FreightPotential(profile contractx.CompanyProfile, weight float64) float64 {
	score := clamp(weight, 0, 1) * 100
	if profile.Revenue > largeRevenue {
		score += 20
	}
	if profile.Employees > largeHeadcount {
		score += 15
	}
	return clamp(score, 0, 100)
}

func ContactScore(profile contractx.CompanyProfile) float64 {
	score := 70.0
	if profile.Public {
		score += 10
	}
	if profile.Employees > contactHeadcount {
		score += 10
	}
	if profile.Revenue > contactRevenue {
		score += 10
	}
	return clamp(score, 0, 100)
}

func PriorityFor(freightPotential, contactScore float64) contractx.Priority {
	combined := (freightPotential + contactScore) / 2
	switch {
	case combined > highPriorityAbove:
		return contractx.PriorityHigh
	case combined > midPriorityAbove:
		return contractx.PriorityMedium
	default:
		return contractx.PriorityLow
	}
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
