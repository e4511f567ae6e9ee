package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/navigo-ai/voicegate/pkg/agent"
	"github.com/navigo-ai/voicegate/pkg/gateway/config"
	"github.com/navigo-ai/voicegate/pkg/gateway/handlers"
	"github.com/navigo-ai/voicegate/pkg/gateway/lifecycle"
	"github.com/navigo-ai/voicegate/pkg/gateway/live/sessions"
	"github.com/navigo-ai/voicegate/pkg/gateway/metrics"
	"github.com/navigo-ai/voicegate/pkg/gateway/mw"
	"github.com/navigo-ai/voicegate/pkg/gateway/tools/uitools"
	"github.com/navigo-ai/voicegate/pkg/upstream"
)

type Server struct {
	cfg    config.Config
	logger *slog.Logger
	mux    *http.ServeMux

	agent        agent.Config
	dialer       upstream.Dialer
	tools        *uitools.Registry
	metrics      *metrics.Metrics
	lifecycle    *lifecycle.State
	liveSessions *sessions.Tracker
}

func New(cfg config.Config, dialer upstream.Dialer, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	agentCfg := agent.Default()
	if cfg.Model != "" {
		agentCfg.Model = cfg.Model
	}
	if cfg.Voice != "" {
		agentCfg.Voice = cfg.Voice
	}
	agentCfg.EnableSearch = cfg.EnableSearch

	s := &Server{
		cfg:          cfg,
		logger:       logger,
		mux:          http.NewServeMux(),
		agent:        agentCfg,
		dialer:       dialer,
		tools:        uitools.NewRegistry(),
		metrics:      metrics.New(cfg.MetricsNamespace),
		lifecycle:    &lifecycle.State{},
		liveSessions: sessions.NewTracker(),
	}

	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.Handle("/healthz", handlers.HealthHandler{})
	s.mux.Handle("/readyz", handlers.ReadyHandler{Config: s.cfg, Lifecycle: s.lifecycle})
	s.mux.Handle("/metrics", s.metrics.Handler())

	s.mux.Handle("/ws", handlers.LiveHandler{
		Config:       s.cfg,
		Upstream:     s.dialer,
		Agent:        s.agent,
		Tools:        s.tools,
		Logger:       s.logger,
		Lifecycle:    s.lifecycle,
		Metrics:      s.metrics,
		LiveSessions: s.liveSessions,
	})

	s.mux.Handle("/", handlers.NotFoundHandler{})
}

func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	h = mw.CORS(s.cfg, h)
	h = mw.Recover(s.logger, h)
	h = mw.AccessLog(s.logger, h)
	h = mw.RequestID(h)
	return h
}

// Lifecycle exposes the drain flag so the main loop can flip readiness
// before shutting down.
func (s *Server) Lifecycle() *lifecycle.State {
	return s.lifecycle
}

// SetDraining flips readiness so load balancers stop routing new sessions
// here. Active sessions keep running.
func (s *Server) SetDraining() {
	s.lifecycle.SetDraining(true)
}

// NotifyLiveSessionsDraining tells every active websocket session that the
// gateway is about to shut down.
func (s *Server) NotifyLiveSessionsDraining() {
	s.liveSessions.NotifyAll("draining", "gateway is shutting down")
}

// WaitLiveSessions blocks until all live sessions finish or ctx expires.
func (s *Server) WaitLiveSessions(ctx context.Context) bool {
	return s.liveSessions.Wait(ctx)
}

// CancelLiveSessions force-closes any sessions still running.
func (s *Server) CancelLiveSessions() {
	s.liveSessions.CancelAll()
}
