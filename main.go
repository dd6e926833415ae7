package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"
	orchestratorx "github.com/tanpawarit/freight-aiflow/agent/agents/orchestrator"
	"github.com/tanpawarit/freight-aiflow/agent/api"
	contractx "github.com/tanpawarit/freight-aiflow/agent/contract"
	documentx "github.com/tanpawarit/freight-aiflow/agent/document"
	"github.com/tanpawarit/freight-aiflow/agent/llm"
	metricsx "github.com/tanpawarit/freight-aiflow/agent/metrics"
	sourcex "github.com/tanpawarit/freight-aiflow/agent/source"
	configx "github.com/tanpawarit/freight-aiflow/pkg/config"
	_ "github.com/tanpawarit/freight-aiflow/pkg/logger/autoload"
	openrouterx "github.com/tanpawarit/freight-aiflow/pkg/openrouter"
	qstashx "github.com/tanpawarit/freight-aiflow/pkg/qstash"
)

type AppConfig struct {
	Addr            string        `default:":8080"`
	Debug           bool          `default:"false"`
	ShutdownTimeout time.Duration `split_words:"true" default:"15s"`
	API             api.Config    `envconfig:"API"`
	orchestratorx.Config
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int `default:"0"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	appCfg := configx.MustNew[AppConfig]("AIFLOW")
	logger := log.Logger.With().Str("service", "aiflow").Logger()

	deps := orchestratorx.Dependencies{}

	sourceCfg := configx.MustNew[sourcex.Config]("SOURCE")
	if sourceCfg.Remote() {
		client, err := sourcex.NewClient(*sourceCfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to initialize data source")
		}
		deps.Source = client
	} else {
		logger.Warn().Msg("SOURCE_URL not set, using built-in fake data source")
		deps.Source = sourcex.NewFake(sourcex.WithLatency(sourceCfg.Latency))
	}

	postgresCfg := configx.MustNew[documentx.Config]("POSTGRES")
	if strings.TrimSpace(postgresCfg.DSN) != "" {
		db, err := documentx.OpenPostgres(*postgresCfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to open postgres")
		}
		defer db.Close()

		store, err := documentx.NewBunStore(db)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to initialize document store")
		}
		if err := store.CreateSchema(ctx); err != nil {
			logger.Fatal().Err(err).Msg("failed to create document schema")
		}
		deps.Documents = store
	} else {
		deps.Documents = documentx.NewMemoryStore()
	}

	redisCfg := configx.MustNew[RedisConfig]("REDIS")
	if strings.TrimSpace(redisCfg.Addr) != "" {
		rdb := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    []string{redisCfg.Addr},
			Password: redisCfg.Password,
			DB:       redisCfg.DB,
		})
		defer rdb.Close()
		deps.Redis = rdb
	}

	llmCfg := configx.MustNew[llm.Config]("OPENROUTER")
	if llmCfg.Enabled() {
		if err := llmCfg.Validate(); err != nil {
			logger.Fatal().Err(err).Msg("invalid openrouter config")
		}
		orCfg := llmCfg.OpenRouterFor(contractx.CapabilityMarketAnalysis)
		recommender, err := llm.NewRecommender(openrouterx.NewClient(orCfg), orCfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to initialize recommender")
		}
		deps.Recommender = recommender
	}

	exporter, err := metricsx.NewExporter(nil)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize metrics")
	}
	deps.Exporter = exporter

	orchestrator, err := orchestratorx.New(deps, appCfg.Config, orchestratorx.WithLogger(logger))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build orchestrator")
	}

	qstashCfg := configx.MustNew[qstashx.Config]("QSTASH")
	if qstashCfg.Enabled() {
		fwd := newForwarder(qstashx.MustNew(*qstashCfg), qstashCfg.Destination)
		defer orchestrator.Subscribe(fwd.enqueue)()
		go fwd.run(ctx)
	}

	if err := orchestrator.Initialize(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize orchestrator")
	}
	go func() {
		if err := orchestrator.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("maintenance loop stopped")
		}
	}()

	if appCfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := &http.Server{
		Addr:              appCfg.Addr,
		Handler:           api.NewRouter(orchestrator, exporter.Handler(), appCfg.API, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", appCfg.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server failed")
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), appCfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http server shutdown")
	}
	logger.Info().Msg("stopped")
}

// forwarder relays failure and lifecycle events to QStash off the dispatch path.
type forwarder struct {
	client      *qstashx.Client
	destination string
	events      chan orchestratorx.Event
}

func newForwarder(client *qstashx.Client, destination string) *forwarder {
	return &forwarder{client: client, destination: destination, events: make(chan orchestratorx.Event, 256)}
}

func (f *forwarder) enqueue(ev orchestratorx.Event) {
	if ev.Kind == orchestratorx.EventTaskCompleted {
		return
	}
	select {
	case f.events <- ev:
	default:
		log.Warn().Str("kind", string(ev.Kind)).Msg("event forward queue full, dropping")
	}
}

func (f *forwarder) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-f.events:
			if _, err := f.client.Publish(ctx, f.destination, ev); err != nil {
				log.Warn().Err(err).Str("kind", string(ev.Kind)).Msg("event forward failed")
			}
		}
	}
}
