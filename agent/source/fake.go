package source

import (
	"context"
	"hash/fnv"
	"strings"
	"sync"
	"time"

	contractx "github.com/tanpawarit/freight-aiflow/agent/contract"
)

var (
	fakeIndustries = []string{
		"Manufacturing", "Retail", "Construction", "Food & Beverage",
		"Automotive", "Technology", "Healthcare", "Logistics",
	}
	fakeLocations = []string{
		"California", "Texas", "Florida", "New York", "Illinois",
		"Pennsylvania", "Ohio", "Georgia", "Michigan", "North Carolina",
	}
	fakeOutcomes = []contractx.CallOutcome{
		contractx.OutcomeAppointment,
		contractx.OutcomeCallback,
		contractx.OutcomeNotInterested,
		contractx.OutcomeVoicemail,
		contractx.OutcomeBusy,
	}
	fakeSafetyRatings = []string{"satisfactory", "satisfactory", "conditional", "unrated", "unsatisfactory"}
)

// DefaultRouteTable holds the lanes with a known mileage. Lookups are symmetric.
func DefaultRouteTable() map[string]float64 {
	return map[string]float64{
		routeKey("Chicago, IL", "Atlanta, GA"):     700,
		routeKey("Los Angeles, CA", "Phoenix, AZ"): 370,
		routeKey("Dallas, TX", "Houston, TX"):      240,
		routeKey("New York, NY", "Boston, MA"):     215,
		routeKey("Seattle, WA", "Portland, OR"):    175,
		routeKey("Chicago, IL", "Detroit, MI"):     283,
		routeKey("Memphis, TN", "Nashville, TN"):   212,
		routeKey("Atlanta, GA", "Miami, FL"):       662,
	}
}

type FakeOption func(*Fake)

// WithLatency delays every call by d, honouring context cancellation.
func WithLatency(d time.Duration) FakeOption {
	return func(f *Fake) {
		if d > 0 {
			f.latency = d
		}
	}
}

func WithCompany(profile contractx.CompanyProfile) FakeOption {
	return func(f *Fake) {
		f.companies[normalize(profile.Name)] = profile
	}
}

func WithDistance(origin, destination string, miles float64) FakeOption {
	return func(f *Fake) {
		f.routes[routeKey(origin, destination)] = miles
	}
}

func WithCarrier(record contractx.CarrierRecord) FakeOption {
	return func(f *Fake) {
		f.carriers[normalize(record.CarrierID)] = record
	}
}

// WithError makes every call fail with err.
func WithError(err error) FakeOption {
	return func(f *Fake) {
		f.err = err
	}
}

// Fake is a deterministic stand-in for the third-party APIs. The same input always
// produces the same answer, so cached and uncached paths can be compared in tests.
type Fake struct {
	latency   time.Duration
	err       error
	companies map[string]contractx.CompanyProfile
	routes    map[string]float64
	carriers  map[string]contractx.CarrierRecord

	mu    sync.Mutex
	calls map[string]int
}

var (
	_ contractx.ExternalDataSource = (*Fake)(nil)
	_ contractx.HealthChecker      = (*Fake)(nil)
)

func NewFake(opts ...FakeOption) *Fake {
	f := &Fake{
		companies: make(map[string]contractx.CompanyProfile),
		routes:    DefaultRouteTable(),
		carriers:  make(map[string]contractx.CarrierRecord),
		calls:     make(map[string]int),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return f
}

// Calls reports how many times op was invoked.
func (f *Fake) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *Fake) Check(ctx context.Context) error {
	return f.wait(ctx, "check")
}

func (f *Fake) FetchCompany(ctx context.Context, name string) (contractx.CompanyProfile, error) {
	if err := f.wait(ctx, "company"); err != nil {
		return contractx.CompanyProfile{}, err
	}
	if p, ok := f.companies[normalize(name)]; ok {
		return p, nil
	}

	h := hash("company", name)
	return contractx.CompanyProfile{
		Name:      strings.TrimSpace(name),
		Industry:  fakeIndustries[h%uint64(len(fakeIndustries))],
		Revenue:   float64(1_000_000 + (h>>8)%100_000_000),
		Employees: int(50 + (h>>16)%1000),
		Location:  fakeLocations[(h>>24)%uint64(len(fakeLocations))],
		Founded:   int(1970 + (h>>32)%50),
		Public:    (h>>40)%10 >= 7,
	}, nil
}

func (f *Fake) RouteDistance(ctx context.Context, origin, destination string) (float64, error) {
	if err := f.wait(ctx, "route"); err != nil {
		return 0, err
	}
	key := routeKey(origin, destination)
	if miles, ok := f.routes[key]; ok {
		return miles, nil
	}
	return float64(100 + hash("route", key)%2000), nil
}

func (f *Fake) FetchMarket(ctx context.Context, sector string) (contractx.MarketData, error) {
	if err := f.wait(ctx, "market"); err != nil {
		return contractx.MarketData{}, err
	}
	h := hash("market", sector)
	competition := "medium"
	if h%2 == 0 {
		competition = "high"
	}
	return contractx.MarketData{
		MarketSize:       float64(1_000_000_000 + (h>>4)%50_000_000_000),
		GrowthRate:       0.02 + float64((h>>12)%1500)/10000,
		CompetitionLevel: competition,
		Opportunities:    int(100 + (h>>20)%1000),
		Threats:          int(5 + (h>>28)%50),
	}, nil
}

func (f *Fake) PlaceCall(ctx context.Context, target, campaign string) (contractx.CallOutcome, error) {
	if err := f.wait(ctx, "call"); err != nil {
		return "", err
	}
	return fakeOutcomes[hash("call", target, campaign)%uint64(len(fakeOutcomes))], nil
}

func (f *Fake) ResolveInquiry(ctx context.Context, sessionID string) (bool, error) {
	if err := f.wait(ctx, "inquiry"); err != nil {
		return false, err
	}
	return hash("inquiry", sessionID)%10 < 9, nil
}

func (f *Fake) FetchCarrier(ctx context.Context, carrierID string) (contractx.CarrierRecord, error) {
	if err := f.wait(ctx, "carrier"); err != nil {
		return contractx.CarrierRecord{}, err
	}
	if rec, ok := f.carriers[normalize(carrierID)]; ok {
		return rec, nil
	}

	h := hash("carrier", carrierID)
	return contractx.CarrierRecord{
		CarrierID:          strings.TrimSpace(carrierID),
		AuthorityActive:    h%10 != 0,
		LiabilityInsurance: float64(500_000 + ((h>>8)%4)*250_000),
		CargoInsurance:     float64(50_000 + ((h>>16)%4)*50_000),
		SafetyRating:       fakeSafetyRatings[(h>>24)%uint64(len(fakeSafetyRatings))],
	}, nil
}

func (f *Fake) wait(ctx context.Context, op string) error {
	f.mu.Lock()
	f.calls[op]++
	f.mu.Unlock()

	if f.latency > 0 {
		timer := time.NewTimer(f.latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	} else if err := ctx.Err(); err != nil {
		return err
	}
	return f.err
}

func hash(parts ...string) uint64 {
	h := fnv.New64a()
	for _, p := range parts {
		_, _ = h.Write([]byte(normalize(p)))
		_, _ = h.Write([]byte{0})
	}
	return h.Sum64()
}

func routeKey(origin, destination string) string {
	a, b := normalize(origin), normalize(destination)
	if b < a {
		a, b = b, a
	}
	return a + "|" + b
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
