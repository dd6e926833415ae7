package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	orchestratorx "github.com/tanpawarit/freight-aiflow/agent/agents/orchestrator"
	cachex "github.com/tanpawarit/freight-aiflow/agent/cache"
	contractx "github.com/tanpawarit/freight-aiflow/agent/contract"
	voicex "github.com/tanpawarit/freight-aiflow/agent/voice"
)

// Orchestrator is the operation surface served over HTTP.
type Orchestrator interface {
	Initialized() bool
	Dispatch(ctx context.Context, kind contractx.CapabilityKind, req contractx.Request) (contractx.Result, error)
	Snapshot(ctx context.Context) orchestratorx.SystemMetrics
	Agents() []contractx.AgentInfo
	SetAgentOffline(id string) error
	SetAgentOnline(id string) error
	AnalyzeCompany(ctx context.Context, name string) (contractx.CompanyAnalysis, error)
	CallCenterStats() (voicex.Snapshot, error)
	UsageStats() []cachex.UsageStat
}

type Config struct {
	AllowedOrigins []string `split_words:"true" default:"*"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

type handler struct {
	svc    Orchestrator
	logger zerolog.Logger
}

// NewRouter builds the HTTP handler. metrics is mounted at /metrics when non-nil.
// The gin mode is left to the caller.
func NewRouter(svc Orchestrator, metrics http.Handler, cfg Config, logger zerolog.Logger) http.Handler {
	h := &handler{svc: svc, logger: logger}
	engine := gin.New()
	engine.Use(gin.Recovery(), h.accessLog())

	engine.GET("/healthz", h.health)
	if metrics != nil {
		engine.GET("/metrics", gin.WrapH(metrics))
	}

	v1 := engine.Group("/v1")
	v1.POST("/dispatch/:capability", h.dispatch)
	v1.GET("/snapshot", h.snapshot)
	v1.GET("/agents", h.agents)
	v1.POST("/agents/:id/offline", h.setOffline)
	v1.POST("/agents/:id/online", h.setOnline)
	v1.GET("/companies/:name", h.analyzeCompany)
	v1.GET("/calls", h.calls)
	v1.GET("/usage", h.usage)

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	}).Handler(engine)
}

func (h *handler) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()
		h.logger.Debug().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(started)).
			Msg("http request")
	}
}

func (h *handler) health(c *gin.Context) {
	if !h.svc.Initialized() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "initializing"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *handler) dispatch(c *gin.Context) {
	kind, err := contractx.ParseCapability(c.Param("capability"))
	if err != nil {
		h.fail(c, err)
		return
	}
	raw, err := c.GetRawData()
	if err != nil {
		h.fail(c, errors.Join(contractx.ErrInvalidInput, err))
		return
	}
	req, err := contractx.DecodeRequest(kind, raw)
	if err != nil {
		h.fail(c, err)
		return
	}

	res, err := h.svc.Dispatch(c.Request.Context(), kind, req)
	if err != nil {
		c.JSON(StatusFor(res.Reason), res)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *handler) snapshot(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Snapshot(c.Request.Context()))
}

func (h *handler) agents(c *gin.Context) {
	if !h.svc.Initialized() {
		h.fail(c, contractx.ErrNotInitialized)
		return
	}
	c.JSON(http.StatusOK, gin.H{"agents": h.svc.Agents()})
}

func (h *handler) setOffline(c *gin.Context) {
	if err := h.svc.SetAgentOffline(c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handler) setOnline(c *gin.Context) {
	if err := h.svc.SetAgentOnline(c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handler) analyzeCompany(c *gin.Context) {
	out, err := h.svc.AnalyzeCompany(c.Request.Context(), c.Param("name"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *handler) calls(c *gin.Context) {
	out, err := h.svc.CallCenterStats()
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *handler) usage(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"sources": h.svc.UsageStats()})
}

func (h *handler) fail(c *gin.Context, err error) {
	reason := contractx.ReasonOf(err)
	status := StatusFor(reason)
	if errors.Is(err, contractx.ErrAgentNotFound) {
		status = http.StatusNotFound
		reason = ""
	}
	if status >= http.StatusInternalServerError {
		h.logger.Warn().Err(err).Str("path", c.FullPath()).Msg("request failed")
	}
	c.JSON(status, errorResponse{Error: err.Error(), Reason: reason})
}

// StatusFor maps a failure reason onto the HTTP status shown to clients.
func StatusFor(reason string) int {
	switch reason {
	case "":
		return http.StatusOK
	case contractx.ReasonInvalidInput:
		return http.StatusBadRequest
	case contractx.ReasonUnknownCapability:
		return http.StatusNotFound
	case contractx.ReasonNoAgentAvailable, contractx.ReasonNotInitialized:
		return http.StatusServiceUnavailable
	case contractx.ReasonTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}
