package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	specialistx "github.com/tanpawarit/freight-aiflow/agent/agents/specialist"
	cachex "github.com/tanpawarit/freight-aiflow/agent/cache"
	contractx "github.com/tanpawarit/freight-aiflow/agent/contract"
	intelx "github.com/tanpawarit/freight-aiflow/agent/intel"
	metricsx "github.com/tanpawarit/freight-aiflow/agent/metrics"
	voicex "github.com/tanpawarit/freight-aiflow/agent/voice"
)

const (
	defaultPoolSize        = 1
	defaultTaskTimeout     = 30 * time.Second
	defaultCompanyTTL      = 24 * time.Hour
	defaultRouteTTL        = 24 * time.Hour
	defaultMarketTTL       = 10 * time.Minute
	defaultLookupCost      = 0.05
	defaultJanitorInterval = 10 * time.Minute
	defaultUsageRetention  = 24 * time.Hour
	defaultHealthTimeout   = 5 * time.Second
)

// Config is read from AIFLOW_* variables. Zero values fall back to the defaults above;
// AcquireWait of zero means dispatch fails fast when no agent is idle.
type Config struct {
	PoolSize           int                `split_words:"true" default:"1"`
	PoolSizes          map[string]int     `split_words:"true"`
	TaskTimeout        time.Duration      `split_words:"true" default:"30s"`
	AcquireWait        time.Duration      `split_words:"true" default:"0s"`
	MaxConcurrentCalls int                `split_words:"true" default:"25"`
	CallQueueSize      int                `split_words:"true" default:"50"`
	CallQueueDisabled  bool               `split_words:"true" default:"false"`
	IndustryWeights    map[string]float64 `split_words:"true"`
	CompanyTTL         time.Duration      `split_words:"true" default:"24h"`
	RouteTTL           time.Duration      `split_words:"true" default:"24h"`
	MarketTTL          time.Duration      `split_words:"true" default:"10m"`
	RatePerMile        float64            `split_words:"true" default:"2.75"`
	ProspectLimit      int                `split_words:"true" default:"25"`
	LookupCost         float64            `split_words:"true" default:"0.05"`
	QuoteWinRate       float64            `split_words:"true" default:"0.3"`
	JanitorInterval    time.Duration      `split_words:"true" default:"10m"`
	UsageRetention     time.Duration      `split_words:"true" default:"24h"`
	HealthTimeout      time.Duration      `split_words:"true" default:"5s"`
}

func (c Config) withDefaults() Config {
	if c.PoolSize <= 0 {
		c.PoolSize = defaultPoolSize
	}
	if c.TaskTimeout <= 0 {
		c.TaskTimeout = defaultTaskTimeout
	}
	if c.AcquireWait < 0 {
		c.AcquireWait = 0
	}
	if c.CompanyTTL <= 0 {
		c.CompanyTTL = defaultCompanyTTL
	}
	if c.RouteTTL <= 0 {
		c.RouteTTL = defaultRouteTTL
	}
	if c.MarketTTL <= 0 {
		c.MarketTTL = defaultMarketTTL
	}
	if c.LookupCost <= 0 {
		c.LookupCost = defaultLookupCost
	}
	if c.JanitorInterval <= 0 {
		c.JanitorInterval = defaultJanitorInterval
	}
	if c.UsageRetention <= 0 {
		c.UsageRetention = defaultUsageRetention
	}
	if c.HealthTimeout <= 0 {
		c.HealthTimeout = defaultHealthTimeout
	}
	return c
}

// poolSize resolves the configured size for kind. Negative overrides are ignored; an
// explicit 0 leaves the capability without agents.
func (c Config) poolSize(kind contractx.CapabilityKind) int {
	for raw, n := range c.PoolSizes {
		parsed, err := contractx.ParseCapability(raw)
		if err == nil && parsed == kind && n >= 0 {
			return n
		}
	}
	return c.PoolSize
}

// Dependencies are the collaborators handed to the orchestrator. Only Source is
// required.
type Dependencies struct {
	Source      contractx.ExternalDataSource
	Documents   contractx.DocumentStore
	Recommender contractx.Recommender
	Aggregator  *metricsx.Aggregator
	Exporter    *metricsx.Exporter
	Redis       redis.UniversalClient
	Revenue     contractx.RevenueEstimator
}

type Option func(*Orchestrator)

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

type Orchestrator struct {
	deps   Dependencies
	cfg    Config
	now    func() time.Time
	logger zerolog.Logger
	events eventBus
	agg    *metricsx.Aggregator
	usage  *cachex.UsageTracker

	initMu      sync.Mutex
	initialized atomic.Bool

	// Set once by Initialize before initialized is stored.
	startedAt time.Time
	degraded  []string
	companies *cachex.Cache[contractx.CompanyProfile]
	routes    *cachex.Cache[float64]
	markets   *cachex.Cache[contractx.MarketData]
	intel     *intelx.Service
	voice     *voicex.Manager
	pools     map[contractx.CapabilityKind]*pool
	agents    map[string]*specialistx.Agent

	prospects atomic.Int64
}

func New(deps Dependencies, cfg Config, opts ...Option) (*Orchestrator, error) {
	if deps.Source == nil {
		return nil, errors.New("external data source is required")
	}

	o := &Orchestrator{
		deps:   deps,
		cfg:    cfg.withDefaults(),
		now:    time.Now,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}

	if o.deps.Revenue == nil {
		o.deps.Revenue = NewQuoteRevenueEstimator(o.cfg.QuoteWinRate)
	}
	o.agg = deps.Aggregator
	if o.agg == nil {
		o.agg = metricsx.NewAggregator(metricsx.WithClock(o.now), metricsx.WithExporter(deps.Exporter))
	}
	o.usage = cachex.NewUsageTracker(o.now)
	o.events.logger = o.logger
	o.events.onSend = func(kind EventKind) { o.deps.Exporter.ObserveEvent(string(kind)) }
	return o, nil
}

// Subscribe registers fn for every lifecycle event and returns a function that
// removes it. Events are delivered synchronously in subscription order; a panicking
// subscriber is logged and skipped.
func (o *Orchestrator) Subscribe(fn func(Event)) (unsubscribe func()) {
	return o.events.subscribe(fn)
}

// Initialize builds the caches, services and agent pools. Failing collaborators are
// logged, reported as system:error and leave the system running in a degraded mode;
// system:initialized is published once the pools are in place. A failure to build the
// pools themselves publishes only system:error, leaves the orchestrator uninitialized
// and returns ErrInitialization; Initialize may then be retried.
func (o *Orchestrator) Initialize(ctx context.Context) error {
	o.initMu.Lock()
	defer o.initMu.Unlock()
	if o.initialized.Load() {
		return nil
	}

	var degraded []string
	degrade := func(component string, err error) {
		degraded = append(degraded, component+": "+err.Error())
		o.logger.Error().Err(err).Str("component", component).Msg("component degraded")
		o.events.publish(Event{Kind: EventError, At: o.now(), Component: component, Cause: err.Error()})
	}

	redisReady := false
	if o.deps.Redis != nil {
		err := o.check(ctx, func(ctx context.Context) error { return o.deps.Redis.Ping(ctx).Err() })
		if err != nil {
			degrade("cache", fmt.Errorf("%w: redis unavailable, falling back to memory: %w", contractx.ErrInitialization, err))
		} else {
			redisReady = true
		}
	}

	var err error
	if o.companies, err = newCache[contractx.CompanyProfile](o, "company", redisReady); err != nil {
		return o.abort("cache", err)
	}
	if o.routes, err = newCache[float64](o, "route", redisReady); err != nil {
		return o.abort("cache", err)
	}
	if o.markets, err = newCache[contractx.MarketData](o, "market", redisReady); err != nil {
		return o.abort("cache", err)
	}

	if hc, ok := o.deps.Source.(contractx.HealthChecker); ok {
		if err := o.check(ctx, hc.Check); err != nil {
			degrade("source", fmt.Errorf("%w: %w", contractx.ErrInitialization, err))
		}
	}
	documents := o.deps.Documents
	if hc, ok := documents.(contractx.HealthChecker); ok {
		if err := o.check(ctx, hc.Check); err != nil {
			degrade("documents", fmt.Errorf("%w: %w", contractx.ErrInitialization, err))
			documents = nil
		}
	}
	recommender := o.deps.Recommender
	if hc, ok := recommender.(contractx.HealthChecker); ok {
		if err := o.check(ctx, hc.Check); err != nil {
			degrade("recommender", fmt.Errorf("%w: %w", contractx.ErrInitialization, err))
			recommender = nil
		}
	}

	if o.intel, err = intelx.New(o.deps.Source, o.companies, intelx.Config{
		IndustryWeights: o.cfg.IndustryWeights,
		CompanyTTL:      o.cfg.CompanyTTL,
	}); err != nil {
		return o.abort("intel", err)
	}

	voiceOpts := []voicex.Option{voicex.WithClock(o.now), voicex.WithLogger(o.logger)}
	o.voice, err = voicex.NewManager(o.agg, voicex.Config{
		MaxConcurrent: o.cfg.MaxConcurrentCalls,
		QueueSize:     o.cfg.CallQueueSize,
		DisableQueue:  o.cfg.CallQueueDisabled,
	}, voiceOpts...)
	if err != nil {
		degrade("voice", fmt.Errorf("%w: %w", contractx.ErrInitialization, err))
		if o.voice, err = voicex.NewManager(o.agg, voicex.Config{}, voiceOpts...); err != nil {
			return o.abort("voice", err)
		}
	}

	handlers, err := specialistx.BuildHandlers(specialistx.Toolkit{
		Source:        o.deps.Source,
		Intel:         o.intel,
		Voice:         o.voice,
		Documents:     documents,
		Recommender:   recommender,
		RouteCache:    o.routes,
		MarketCache:   o.markets,
		RouteTTL:      o.cfg.RouteTTL,
		MarketTTL:     o.cfg.MarketTTL,
		RatePerMile:   o.cfg.RatePerMile,
		ProspectLimit: o.cfg.ProspectLimit,
		Now:           o.now,
		Logger:        o.logger,
	})
	if err != nil {
		return o.abort("agents", err)
	}
	if err := o.buildPools(handlers); err != nil {
		return o.abort("agents", err)
	}

	o.degraded = degraded
	o.startedAt = o.now()
	o.initialized.Store(true)

	o.logger.Info().Int("agents", len(o.agents)).Strs("degraded", degraded).Msg("orchestrator initialized")
	o.events.publish(Event{Kind: EventInitialized, At: o.startedAt, Degraded: degraded})
	return nil
}

func (o *Orchestrator) buildPools(handlers map[contractx.CapabilityKind]specialistx.Handler) error {
	pools := make(map[contractx.CapabilityKind]*pool, len(handlers))
	agents := make(map[string]*specialistx.Agent)

	for _, kind := range contractx.Capabilities() {
		p := newPool(kind)
		for i := 1; i <= o.cfg.poolSize(kind); i++ {
			id := fmt.Sprintf("%s-%02d-%s", kind, i, uuid.NewString()[:8])
			a, err := specialistx.NewAgent(id, handlers[kind],
				specialistx.WithTimeout(o.cfg.TaskTimeout),
				specialistx.WithClock(o.now),
				specialistx.WithLogger(o.logger),
				specialistx.WithReleaseHook(p.notify),
			)
			if err != nil {
				return err
			}
			p.agents = append(p.agents, a)
			agents[id] = a
		}
		pools[kind] = p
	}

	o.pools = pools
	o.agents = agents
	return nil
}

func (o *Orchestrator) check(ctx context.Context, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.HealthTimeout)
	defer cancel()
	return fn(ctx)
}

func (o *Orchestrator) abort(component string, err error) error {
	err = fmt.Errorf("%w: %s: %w", contractx.ErrInitialization, component, err)
	o.logger.Error().Err(err).Str("component", component).Msg("orchestrator initialization failed")
	o.events.publish(Event{Kind: EventError, At: o.now(), Component: component, Cause: err.Error()})
	return err
}

func newCache[V any](o *Orchestrator, name string, useRedis bool) (*cachex.Cache[V], error) {
	var backend cachex.Backend[V] = cachex.NewMemoryBackend[V]()
	if useRedis {
		rb, err := cachex.NewRedisBackend[V](o.deps.Redis, name)
		if err != nil {
			return nil, err
		}
		backend = rb
	}
	return cachex.New[V](name, backend,
		cachex.WithClock(o.now),
		cachex.WithUsage(o.usage, name, o.cfg.LookupCost),
		cachex.WithLogger(o.logger),
	)
}

func (o *Orchestrator) Initialized() bool {
	return o.initialized.Load()
}

// AnalyzeCompany scores a single company through the shared, cached BI service.
func (o *Orchestrator) AnalyzeCompany(ctx context.Context, name string) (contractx.CompanyAnalysis, error) {
	if !o.initialized.Load() {
		return contractx.CompanyAnalysis{}, contractx.ErrNotInitialized
	}
	return o.intel.Analyze(ctx, name)
}

func (o *Orchestrator) CallCenterStats() (voicex.Snapshot, error) {
	if !o.initialized.Load() {
		return voicex.Snapshot{}, contractx.ErrNotInitialized
	}
	return o.voice.Snapshot(), nil
}

// Agents lists every registered agent in capability order.
func (o *Orchestrator) Agents() []contractx.AgentInfo {
	if !o.initialized.Load() {
		return nil
	}
	out := make([]contractx.AgentInfo, 0, len(o.agents))
	for _, kind := range contractx.Capabilities() {
		for _, a := range o.pools[kind].agents {
			out = append(out, a.Info())
		}
	}
	return out
}

func (o *Orchestrator) SetAgentOffline(id string) error {
	a, err := o.agent(id)
	if err != nil {
		return err
	}
	a.SetOffline()
	o.logger.Info().Str("agent_id", a.ID()).Msg("agent taken offline")
	return nil
}

func (o *Orchestrator) SetAgentOnline(id string) error {
	a, err := o.agent(id)
	if err != nil {
		return err
	}
	a.SetOnline()
	o.logger.Info().Str("agent_id", a.ID()).Msg("agent back online")
	return nil
}

func (o *Orchestrator) agent(id string) (*specialistx.Agent, error) {
	if !o.initialized.Load() {
		return nil, contractx.ErrNotInitialized
	}
	a, ok := o.agents[strings.TrimSpace(id)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", contractx.ErrAgentNotFound, id)
	}
	return a, nil
}

// UsageStats reports the lookup bill per external data source, sorted by source.
func (o *Orchestrator) UsageStats() []cachex.UsageStat {
	return o.usage.Snapshot()
}

// Run sweeps stale cache entries and idle usage stats until ctx is done.
func (o *Orchestrator) Run(ctx context.Context) error {
	if !o.initialized.Load() {
		return contractx.ErrNotInitialized
	}
	interval := o.cfg.JanitorInterval
	jobs := []func(){
		func() { o.companies.RunJanitor(ctx, interval, o.cfg.CompanyTTL) },
		func() { o.routes.RunJanitor(ctx, interval, o.cfg.RouteTTL) },
		func() { o.markets.RunJanitor(ctx, interval, o.cfg.MarketTTL) },
		func() {
			cachex.RunJanitor(ctx, interval, o.logger, func(context.Context) (int, error) {
				return o.usage.Cleanup(o.cfg.UsageRetention), nil
			})
		},
	}

	var wg sync.WaitGroup
	wg.Add(len(jobs))
	for _, job := range jobs {
		job := job
		go func() {
			defer wg.Done()
			job()
		}()
	}
	wg.Wait()
	return ctx.Err()
}
