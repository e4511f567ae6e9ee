package handlers

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/navigo-ai/voicegate/pkg/agent"
	"github.com/navigo-ai/voicegate/pkg/gateway/config"
	"github.com/navigo-ai/voicegate/pkg/gateway/lifecycle"
	"github.com/navigo-ai/voicegate/pkg/gateway/live/session"
	"github.com/navigo-ai/voicegate/pkg/gateway/live/sessions"
	"github.com/navigo-ai/voicegate/pkg/gateway/metrics"
	"github.com/navigo-ai/voicegate/pkg/gateway/mw"
	"github.com/navigo-ai/voicegate/pkg/gateway/tools/uitools"
	"github.com/navigo-ai/voicegate/pkg/upstream"
)

// LiveHandler upgrades /ws requests and runs a live voice session until the
// client disconnects or the session is torn down.
type LiveHandler struct {
	Config       config.Config
	Upstream     upstream.Dialer
	Agent        agent.Config
	Tools        *uitools.Registry
	Logger       *slog.Logger
	Lifecycle    *lifecycle.State
	Metrics      *metrics.Metrics
	LiveSessions *sessions.Tracker
}

func (h LiveHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	reqID, _ := mw.RequestIDFrom(r.Context())

	if r.Method != http.MethodGet {
		writeErrorJSON(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed", reqID)
		return
	}
	if h.Lifecycle.IsDraining() {
		writeErrorJSON(w, http.StatusServiceUnavailable, "draining", "gateway is draining", reqID)
		return
	}
	if !h.originAllowed(r) {
		writeErrorJSON(w, http.StatusForbidden, "forbidden", "origin is not allowed", reqID)
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(*http.Request) bool { return true },
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	sessionID := "s_" + mw.RandHex(8)
	resumeHandle := strings.TrimSpace(r.URL.Query().Get("resume_handle"))
	startAt := time.Now()

	s, err := session.New(session.Dependencies{
		Conn:         conn,
		Logger:       h.Logger,
		Upstream:     h.Upstream,
		Agent:        h.Agent,
		Tools:        h.Tools,
		Metrics:      h.Metrics,
		SessionID:    sessionID,
		RequestID:    reqID,
		ResumeHandle: resumeHandle,
		StartTime:    startAt,
		Config: session.Config{
			MaxAudioFrameBytes:     h.Config.LiveMaxAudioFrameBytes,
			MaxJSONMessageBytes:    h.Config.LiveMaxJSONMessageBytes,
			MaxAudioFPS:            h.Config.LiveMaxAudioFPS,
			MaxAudioBytesPerSecond: h.Config.LiveMaxAudioBytesPerSecond,
			InboundBurstSeconds:    h.Config.LiveInboundBurstSeconds,
			ConnectTimeout:         h.Config.UpstreamConnectTimeout,
			PingInterval:           h.Config.LiveWSPingInterval,
			WriteTimeout:           h.Config.LiveWSWriteTimeout,
			ReadTimeout:            h.Config.LiveWSReadTimeout,
			MaxSessionDuration:     h.Config.LiveMaxSessionDuration,
			OutboundQueueSize:      h.Config.LiveOutboundQueueSize,
		},
	})
	if err != nil {
		if h.Logger != nil {
			h.Logger.Error("failed to initialize live session", "session_id", sessionID, "request_id", reqID, "error", err)
		}
		return
	}

	unregister := func() {}
	if h.LiveSessions != nil {
		unregister = h.LiveSessions.Register(sessionID, sessions.Handle{
			Cancel: s.Cancel,
			Notify: s.SendNotice,
		})
	}
	defer unregister()

	h.Metrics.RecordSessionStart()
	runErr := s.Run()
	status := "ok"
	if runErr != nil {
		status = "error"
	}
	h.Metrics.RecordSessionEnd(h.Agent.Model, status, time.Since(startAt))

	if runErr != nil && h.Logger != nil {
		h.Logger.Warn("live session ended with error", "session_id", sessionID, "request_id", reqID, "error", runErr)
	}
}

func (h LiveHandler) originAllowed(r *http.Request) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	if len(h.Config.AllowedOrigins) == 0 {
		return false
	}
	_, ok := h.Config.AllowedOrigins[origin]
	return ok
}
