package specialist

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	cachex "github.com/tanpawarit/freight-aiflow/agent/cache"
	contractx "github.com/tanpawarit/freight-aiflow/agent/contract"
	documentx "github.com/tanpawarit/freight-aiflow/agent/document"
	intelx "github.com/tanpawarit/freight-aiflow/agent/intel"
	metricsx "github.com/tanpawarit/freight-aiflow/agent/metrics"
	sourcex "github.com/tanpawarit/freight-aiflow/agent/source"
	voicex "github.com/tanpawarit/freight-aiflow/agent/voice"
)

var fixedNow = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type fixture struct {
	source   *sourcex.Fake
	agg      *metricsx.Aggregator
	voice    *voicex.Manager
	docs     *documentx.MemoryStore
	handlers map[contractx.CapabilityKind]Handler
}

type fakeRecommender struct {
	recs  []string
	err   error
	calls int
}

func (f *fakeRecommender) Recommend(context.Context, string, contractx.MarketData) ([]string, error) {
	f.calls++
	return f.recs, f.err
}

func newFixture(t *testing.T, rec contractx.Recommender, opts ...sourcex.FakeOption) *fixture {
	t.Helper()

	src := sourcex.NewFake(opts...)
	return buildFixture(t, src, src, rec)
}

// buildFixture wires handlers to src; fake backs the call counters used by assertions.
func buildFixture(t *testing.T, fake *sourcex.Fake, src contractx.ExternalDataSource, rec contractx.Recommender) *fixture {
	t.Helper()

	companies, err := cachex.New("company", cachex.NewMemoryBackend[contractx.CompanyProfile]())
	if err != nil {
		t.Fatalf("cache.New(company) error = %v", err)
	}
	routes, err := cachex.New("route", cachex.NewMemoryBackend[float64]())
	if err != nil {
		t.Fatalf("cache.New(route) error = %v", err)
	}
	markets, err := cachex.New("market", cachex.NewMemoryBackend[contractx.MarketData]())
	if err != nil {
		t.Fatalf("cache.New(market) error = %v", err)
	}
	intel, err := intelx.New(src, companies, intelx.Config{})
	if err != nil {
		t.Fatalf("intel.New() error = %v", err)
	}
	agg := metricsx.NewAggregator()
	mgr, err := voicex.NewManager(agg, voicex.Config{})
	if err != nil {
		t.Fatalf("voice.NewManager() error = %v", err)
	}
	docs := documentx.NewMemoryStore()

	handlers, err := BuildHandlers(Toolkit{
		Source:      src,
		Intel:       intel,
		Voice:       mgr,
		Documents:   docs,
		Recommender: rec,
		RouteCache:  routes,
		MarketCache: markets,
		Now:         func() time.Time { return fixedNow },
	})
	if err != nil {
		t.Fatalf("BuildHandlers() error = %v", err)
	}
	return &fixture{source: fake, agg: agg, voice: mgr, docs: docs, handlers: handlers}
}

func (f *fixture) handle(t *testing.T, req contractx.Request) (any, error) {
	t.Helper()
	h, ok := f.handlers[req.Capability()]
	if !ok {
		t.Fatalf("no handler for %s", req.Capability())
	}
	return h.Handle(context.Background(), req)
}

func TestBuildHandlersRequiresCollaborators(t *testing.T) {
	t.Parallel()

	if _, err := BuildHandlers(Toolkit{}); err == nil {
		t.Fatal("expected error for empty toolkit")
	}
}

func TestBuildHandlersCoversEveryCapability(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	for _, kind := range contractx.Capabilities() {
		h, ok := f.handlers[kind]
		if !ok {
			t.Fatalf("missing handler for %s", kind)
		}
		if h.Capability() != kind {
			t.Fatalf("handler for %s reports %s", kind, h.Capability())
		}
	}
}

func TestBuildQuoteChicagoAtlanta(t *testing.T) {
	t.Parallel()

	q := BuildQuote(contractx.QuoteRequest{Origin: "Chicago, IL", Destination: "Atlanta, GA"}, 700, 2.75, fixedNow)

	if q.BaseRate != 1925 {
		t.Fatalf("unexpected base rate: %v", q.BaseRate)
	}
	if q.FuelSurcharge != 288.75 {
		t.Fatalf("unexpected fuel surcharge: %v", q.FuelSurcharge)
	}
	if q.AccessorialCharges != 0 {
		t.Fatalf("unexpected accessorials: %v", q.AccessorialCharges)
	}
	if q.TotalRate != 2213.75 {
		t.Fatalf("unexpected total: %v", q.TotalRate)
	}
	if q.TransitDays != 2 {
		t.Fatalf("unexpected transit days: %d", q.TransitDays)
	}
	if q.Confidence != 0.95 {
		t.Fatalf("unexpected confidence: %v", q.Confidence)
	}
	if q.Equipment != contractx.EquipmentDryVan {
		t.Fatalf("unexpected equipment: %s", q.Equipment)
	}
	if !q.ValidUntil.Equal(fixedNow.Add(24 * time.Hour)) {
		t.Fatalf("unexpected validity: %s", q.ValidUntil)
	}
	if !strings.HasPrefix(q.QuoteID, "Q-") || len(q.QuoteID) != 10 {
		t.Fatalf("unexpected quote id: %q", q.QuoteID)
	}
}

func TestBuildQuoteAccessorials(t *testing.T) {
	t.Parallel()

	q := BuildQuote(contractx.QuoteRequest{
		Origin:      "Chicago, IL",
		Destination: "Atlanta, GA",
		Equipment:   contractx.EquipmentReefer,
		Hazmat:      true,
		Residential: true,
	}, 700, 2.75, fixedNow)

	if q.AccessorialCharges != 425 {
		t.Fatalf("unexpected accessorials: %v", q.AccessorialCharges)
	}
	if q.TotalRate != 2638.75 {
		t.Fatalf("unexpected total: %v", q.TotalRate)
	}
}

func TestBuildQuoteShortHaulIsOneDay(t *testing.T) {
	t.Parallel()

	q := BuildQuote(contractx.QuoteRequest{Origin: "A", Destination: "B"}, 40, 2.75, fixedNow)
	if q.TransitDays != 1 {
		t.Fatalf("unexpected transit days: %d", q.TransitDays)
	}
}

func TestRateQuotingSharesRouteCacheAcrossDirections(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)

	out, err := f.handle(t, &contractx.QuoteRequest{Origin: "Chicago, IL", Destination: "Atlanta, GA"})
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	q, ok := out.(contractx.FreightQuote)
	if !ok {
		t.Fatalf("unexpected output type %T", out)
	}
	if q.DistanceMiles != 700 || q.TotalRate != 2213.75 {
		t.Fatalf("unexpected quote: %+v", q)
	}

	if _, err := f.handle(t, contractx.QuoteRequest{Origin: "atlanta, ga", Destination: "Chicago, IL"}); err != nil {
		t.Fatalf("Handle() reverse error = %v", err)
	}
	if got := f.source.Calls("route"); got != 1 {
		t.Fatalf("expected one route lookup, got %d", got)
	}
}

func TestRateQuotingRejectsUnusableDistance(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil, sourcex.WithDistance("Nowhere", "Elsewhere", 0))
	_, err := f.handle(t, contractx.QuoteRequest{Origin: "Nowhere", Destination: "Elsewhere"})
	if !errors.Is(err, contractx.ErrTaskFailed) {
		t.Fatalf("expected ErrTaskFailed, got %v", err)
	}
}

func TestProspectingSortsByScore(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	out, err := f.handle(t, contractx.ProspectingRequest{Industry: "Manufacturing", Region: "Ohio", Limit: 5})
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	prospects, ok := out.([]contractx.ProspectResult)
	if !ok {
		t.Fatalf("unexpected output type %T", out)
	}
	if len(prospects) != 5 {
		t.Fatalf("expected 5 prospects, got %d", len(prospects))
	}
	for i := 1; i < len(prospects); i++ {
		prev := prospects[i-1].FreightPotential + prospects[i-1].ContactScore
		cur := prospects[i].FreightPotential + prospects[i].ContactScore
		if cur > prev {
			t.Fatalf("prospects not sorted at %d: %v > %v", i, cur, prev)
		}
	}
	for _, p := range prospects {
		if p.Region != "Ohio" || !strings.HasPrefix(p.Phone, "555-") || !strings.HasSuffix(p.Email, ".com") {
			t.Fatalf("unexpected prospect: %+v", p)
		}
	}
}

func TestProspectingDefaultLimit(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	out, err := f.handle(t, contractx.ProspectingRequest{Industry: "Retail"})
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if got := len(out.([]contractx.ProspectResult)); got != defaultProspectLimit {
		t.Fatalf("expected %d prospects, got %d", defaultProspectLimit, got)
	}
}

func TestColdCallingRecordsSession(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	out, err := f.handle(t, contractx.ColdCallRequest{Target: "Acme Foods", Campaign: "spring"})
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	res, ok := out.(contractx.CallResult)
	if !ok {
		t.Fatalf("unexpected output type %T", out)
	}

	want := contractx.CallCompleted
	switch res.Outcome {
	case contractx.OutcomeVoicemail:
		want = contractx.CallVoicemail
	case contractx.OutcomeBusy:
		want = contractx.CallBusy
	}
	if res.Status != want {
		t.Fatalf("outcome %s mapped to %s, want %s", res.Outcome, res.Status, want)
	}
	if res.CallID == "" || res.Target != "Acme Foods" || res.Campaign != "spring" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if got := len(f.voice.Sessions()); got != 0 {
		t.Fatalf("expected no live sessions, got %d", got)
	}
	if got := f.agg.Snapshot().TotalToday; got != 1 {
		t.Fatalf("expected one recorded call, got %d", got)
	}
}

func TestColdCallingAbandonsOnSourceError(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil, sourcex.WithError(errors.New("carrier network down")))
	if _, err := f.handle(t, contractx.ColdCallRequest{Target: "Acme Foods", Campaign: "spring"}); err == nil {
		t.Fatal("expected error")
	}
	if got := len(f.voice.Sessions()); got != 0 {
		t.Fatalf("expected no live sessions, got %d", got)
	}
	if got := f.agg.Snapshot().ByStatus[string(contractx.CallAbandoned)]; got != 1 {
		t.Fatalf("expected one abandoned call, got %d", got)
	}
}

type outcomeSource struct {
	*sourcex.Fake
	outcome contractx.CallOutcome
}

func (s outcomeSource) PlaceCall(context.Context, string, string) (contractx.CallOutcome, error) {
	return s.outcome, nil
}

func TestColdCallingRejectsUnknownOutcome(t *testing.T) {
	t.Parallel()

	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"outcome":"hung-up"}`)
	}))
	t.Cleanup(gateway.Close)
	client, err := sourcex.NewClient(sourcex.Config{URL: gateway.URL}, sourcex.WithHTTPClient(gateway.Client()))
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	fake := sourcex.NewFake()
	sources := map[string]contractx.ExternalDataSource{
		"gateway": client,
		"direct":  outcomeSource{Fake: fake, outcome: "hung-up"},
	}
	for name, src := range sources {
		f := buildFixture(t, fake, src, nil)
		_, err := f.handle(t, contractx.ColdCallRequest{Target: "Acme Foods", Campaign: "spring"})
		if !errors.Is(err, contractx.ErrTaskFailed) {
			t.Fatalf("%s: expected ErrTaskFailed, got %v", name, err)
		}
		if got := len(f.voice.Sessions()); got != 0 {
			t.Fatalf("%s: expected no live sessions, got %d", name, got)
		}
		snap := f.agg.Snapshot()
		if snap.ByStatus[string(contractx.CallAbandoned)] != 1 || snap.ByStatus[string(contractx.CallCompleted)] != 0 {
			t.Fatalf("%s: expected one abandoned call, got %v", name, snap.ByStatus)
		}
	}
}

func TestCustomerServiceResolution(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	out, err := f.handle(t, contractx.CustomerServiceRequest{SessionID: "S-100"})
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	res, ok := out.(contractx.ServiceResult)
	if !ok {
		t.Fatalf("unexpected output type %T", out)
	}

	resolved, err := sourcex.NewFake().ResolveInquiry(context.Background(), "S-100")
	if err != nil {
		t.Fatalf("ResolveInquiry() error = %v", err)
	}
	want := contractx.ServiceEscalated
	if resolved {
		want = contractx.ServiceResolved
	}
	if res.Resolution != want {
		t.Fatalf("unexpected resolution: %s", res.Resolution)
	}
	if res.SessionID != "S-100" || res.CallID == "" {
		t.Fatalf("unexpected result: %+v", res)
	}
	snap := f.agg.Snapshot()
	if snap.ByStatus[string(contractx.CallCompleted)] != 1 {
		t.Fatalf("expected a completed inbound call: %+v", snap.ByStatus)
	}
}

func TestComplianceCarrierRules(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil,
		sourcex.WithCarrier(contractx.CarrierRecord{
			CarrierID: "GOOD", AuthorityActive: true,
			LiabilityInsurance: 1_000_000, CargoInsurance: 100_000, SafetyRating: "satisfactory",
		}),
		sourcex.WithCarrier(contractx.CarrierRecord{
			CarrierID: "BAD", AuthorityActive: true,
			LiabilityInsurance: 500_000, CargoInsurance: 100_000, SafetyRating: "Unsatisfactory",
		}),
	)

	out, err := f.handle(t, contractx.ComplianceRequest{CarrierID: "GOOD"})
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	good := out.(contractx.ComplianceReport)
	if !good.Passed || len(good.Rules) != 4 {
		t.Fatalf("unexpected report: %+v", good)
	}
	if !good.CheckedAt.Equal(fixedNow) {
		t.Fatalf("unexpected checked_at: %s", good.CheckedAt)
	}

	out, err = f.handle(t, contractx.ComplianceRequest{CarrierID: "BAD"})
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	bad := out.(contractx.ComplianceReport)
	if bad.Passed {
		t.Fatalf("expected failing report: %+v", bad)
	}
	failed := map[string]bool{}
	for _, r := range bad.Rules {
		if !r.Passed {
			failed[r.Rule] = true
		}
	}
	if len(failed) != 2 || !failed["liability_insurance"] || !failed["safety_rating"] {
		t.Fatalf("unexpected failed rules: %v", failed)
	}
}

func TestComplianceVerifiesDocuments(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	ctx := context.Background()
	id, err := f.docs.Upload(ctx, contractx.Document{Name: "coi.pdf", Kind: documentx.KindInsurance})
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}

	out, err := f.handle(t, contractx.ComplianceRequest{DocumentIDs: []string{id}})
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if report := out.(contractx.ComplianceReport); !report.Passed {
		t.Fatalf("expected passing report: %+v", report)
	}
	doc, err := f.docs.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if doc.Status != contractx.DocumentVerified {
		t.Fatalf("expected verified document, got %s", doc.Status)
	}
}

func TestComplianceFailsMissingAndRejectedDocuments(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	ctx := context.Background()
	okID, err := f.docs.Upload(ctx, contractx.Document{Name: "bol.pdf", Kind: documentx.KindBillOfLading})
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	rejectedID, err := f.docs.Upload(ctx, contractx.Document{Name: "coi.pdf", Kind: documentx.KindInsurance, Status: contractx.DocumentRejected})
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}

	out, err := f.handle(t, contractx.ComplianceRequest{DocumentIDs: []string{okID, rejectedID, "missing-doc"}})
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	report := out.(contractx.ComplianceReport)
	if report.Passed {
		t.Fatalf("expected failing report: %+v", report)
	}
	if len(report.Rules) != 3 || !report.Rules[0].Passed || report.Rules[1].Passed || report.Rules[2].Passed {
		t.Fatalf("unexpected rules: %+v", report.Rules)
	}

	doc, err := f.docs.Get(ctx, okID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if doc.Status != contractx.DocumentUploaded {
		t.Fatalf("documents of a failing report stay unverified, got %s", doc.Status)
	}
}

func TestMarketAnalysisFallsBackToDefaults(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		rec  contractx.Recommender
	}{
		{name: "no recommender", rec: nil},
		{name: "recommender error", rec: &fakeRecommender{err: errors.New("rate limited")}},
		{name: "empty recommendations", rec: &fakeRecommender{}},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t, tc.rec)
			out, err := f.handle(t, contractx.MarketAnalysisRequest{Sector: "Retail"})
			if err != nil {
				t.Fatalf("Handle() error = %v", err)
			}
			mi := out.(contractx.MarketIntelligence)
			if strings.Join(mi.Recommendations, "|") != strings.Join(DefaultRecommendations(), "|") {
				t.Fatalf("unexpected recommendations: %v", mi.Recommendations)
			}
		})
	}
}

func TestMarketAnalysisUsesRecommenderAndCache(t *testing.T) {
	t.Parallel()

	rec := &fakeRecommender{recs: []string{"Target cold-chain shippers"}}
	f := newFixture(t, rec)

	for _, sector := range []string{"Retail", " retail "} {
		out, err := f.handle(t, contractx.MarketAnalysisRequest{Sector: sector})
		if err != nil {
			t.Fatalf("Handle() error = %v", err)
		}
		mi := out.(contractx.MarketIntelligence)
		if len(mi.Recommendations) != 1 || mi.Recommendations[0] != "Target cold-chain shippers" {
			t.Fatalf("unexpected recommendations: %v", mi.Recommendations)
		}
		if mi.MarketSize <= 0 || mi.Competition == "" {
			t.Fatalf("unexpected market data: %+v", mi)
		}
	}
	if got := f.source.Calls("market"); got != 1 {
		t.Fatalf("expected one market lookup, got %d", got)
	}
	if rec.calls != 2 {
		t.Fatalf("expected two recommender calls, got %d", rec.calls)
	}
}

func TestLoadCoordinationUploadsRateConfirmation(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	out, err := f.handle(t, &contractx.LoadCoordinationRequest{LoadID: "L-42"})
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	lc := out.(contractx.LoadCoordination)
	if lc.Status != "coordinated" || lc.Tracking != "TRK-L-42" {
		t.Fatalf("unexpected coordination: %+v", lc)
	}
	if !lc.PickupScheduled.Equal(fixedNow.Add(24*time.Hour)) || !lc.DeliveryScheduled.Equal(fixedNow.Add(72*time.Hour)) {
		t.Fatalf("unexpected schedule: %+v", lc)
	}

	doc, err := f.docs.Get(context.Background(), lc.DocumentID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if doc.Kind != documentx.KindRateConfirmation || doc.LoadID != "L-42" {
		t.Fatalf("unexpected document: %+v", doc)
	}
}

func TestDispatchUploadsDispatchSheet(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	out, err := f.handle(t, contractx.DispatchRequest{LoadID: "L-42", CarrierID: "C-7"})
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	d := out.(contractx.DispatchResult)
	if d.Status != "dispatched" || d.CarrierID != "C-7" || !strings.HasPrefix(d.DriverContact, "555-") {
		t.Fatalf("unexpected dispatch: %+v", d)
	}
	if !d.DispatchedAt.Equal(fixedNow) {
		t.Fatalf("unexpected dispatched_at: %s", d.DispatchedAt)
	}

	doc, err := f.docs.Get(context.Background(), d.DocumentID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if doc.Kind != documentx.KindDispatchSheet {
		t.Fatalf("unexpected document kind: %s", doc.Kind)
	}
}

func TestRequestAsRejectsMismatchedType(t *testing.T) {
	t.Parallel()

	if _, err := requestAs[contractx.DispatchRequest](contractx.MarketAnalysisRequest{Sector: "x"}); !errors.Is(err, contractx.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	var nilReq *contractx.DispatchRequest
	if _, err := requestAs[contractx.DispatchRequest](nilReq); !errors.Is(err, contractx.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for nil pointer, got %v", err)
	}
}
