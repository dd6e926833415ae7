package specialist

import (
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	cachex "github.com/tanpawarit/freight-aiflow/agent/cache"
	contractx "github.com/tanpawarit/freight-aiflow/agent/contract"
	intelx "github.com/tanpawarit/freight-aiflow/agent/intel"
	voicex "github.com/tanpawarit/freight-aiflow/agent/voice"
)

const (
	defaultRatePerMile   = 2.75
	defaultProspectLimit = 25
	defaultRouteTTL      = 24 * time.Hour
	defaultMarketTTL     = 10 * time.Minute
)

// Toolkit is the shared set of collaborators the capability handlers draw on.
// Documents and Recommender are optional.
type Toolkit struct {
	Source      contractx.ExternalDataSource
	Intel       *intelx.Service
	Voice       *voicex.Manager
	Documents   contractx.DocumentStore
	Recommender contractx.Recommender
	RouteCache  *cachex.Cache[float64]
	MarketCache *cachex.Cache[contractx.MarketData]

	RouteTTL      time.Duration
	MarketTTL     time.Duration
	RatePerMile   float64
	ProspectLimit int

	Now    func() time.Time
	Logger zerolog.Logger
}

func (tk Toolkit) withDefaults() Toolkit {
	if tk.RouteTTL <= 0 {
		tk.RouteTTL = defaultRouteTTL
	}
	if tk.MarketTTL <= 0 {
		tk.MarketTTL = defaultMarketTTL
	}
	if tk.RatePerMile <= 0 {
		tk.RatePerMile = defaultRatePerMile
	}
	if tk.ProspectLimit <= 0 || tk.ProspectLimit > contractx.MaxProspects {
		tk.ProspectLimit = defaultProspectLimit
	}
	if tk.Now == nil {
		tk.Now = time.Now
	}
	return tk
}

// BuildHandlers wires one handler per capability from tk.
func BuildHandlers(tk Toolkit) (map[contractx.CapabilityKind]Handler, error) {
	if tk.Source == nil {
		return nil, errors.New("external data source is required")
	}
	if tk.Intel == nil {
		return nil, errors.New("business intelligence service is required")
	}
	if tk.Voice == nil {
		return nil, errors.New("voice session manager is required")
	}
	if tk.RouteCache == nil || tk.MarketCache == nil {
		return nil, errors.New("route and market caches are required")
	}
	tk = tk.withDefaults()

	handlers := []Handler{
		&prospectingHandler{tk: tk},
		&coldCallingHandler{tk: tk},
		&rateQuotingHandler{tk: tk},
		&loadCoordinationHandler{tk: tk},
		&customerServiceHandler{tk: tk},
		&complianceHandler{tk: tk},
		&marketAnalysisHandler{tk: tk},
		&dispatchHandler{tk: tk},
	}

	out := make(map[contractx.CapabilityKind]Handler, len(handlers))
	for _, h := range handlers {
		out[h.Capability()] = h
	}
	for _, kind := range contractx.Capabilities() {
		if _, ok := out[kind]; !ok {
			return nil, fmt.Errorf("no handler for capability %s", kind)
		}
	}
	return out, nil
}

// requestAs accepts both T and *T, since requests decoded from JSON arrive as pointers.
func requestAs[T contractx.Request](req contractx.Request) (T, error) {
	switch r := any(req).(type) {
	case T:
		return r, nil
	case *T:
		if r != nil {
			return *r, nil
		}
	}
	var zero T
	return zero, fmt.Errorf("%w: unexpected request type %T", contractx.ErrInvalidInput, req)
}

func phoneFor(seed string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(strings.ToLower(strings.TrimSpace(seed))))
	return fmt.Sprintf("555-%04d", h.Sum32()%10000)
}

func trackingFor(loadID string) string {
	return "TRK-" + strings.TrimSpace(loadID)
}
