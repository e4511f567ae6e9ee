package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/navigo-ai/voicegate/pkg/gateway/config"
	"github.com/navigo-ai/voicegate/pkg/gateway/lifecycle"
)

type HealthHandler struct{}

func (h HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

type ReadyHandler struct {
	Config    config.Config
	Lifecycle *lifecycle.State
}

func (h ReadyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	type readyResp struct {
		OK       bool     `json:"ok"`
		Draining bool     `json:"draining"`
		Issues   []string `json:"issues,omitempty"`
	}

	issues := make([]string, 0, 4)

	if strings.TrimSpace(h.Config.GeminiAPIKey) == "" {
		issues = append(issues, "upstream api key is not configured")
	}
	if h.Config.LiveMaxAudioFrameBytes <= 0 {
		issues = append(issues, "live max audio frame bytes must be > 0")
	}
	if h.Config.LiveMaxJSONMessageBytes <= 0 {
		issues = append(issues, "live max json message bytes must be > 0")
	}
	if h.Config.LiveMaxSessionDuration <= 0 {
		issues = append(issues, "live max session duration must be > 0")
	}
	if h.Config.UpstreamConnectTimeout <= 0 {
		issues = append(issues, "upstream connect timeout must be > 0")
	}

	draining := h.Lifecycle.IsDraining()
	ok := len(issues) == 0 && !draining
	status := http.StatusOK
	if !ok {
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(readyResp{
		OK:       ok,
		Draining: draining,
		Issues:   issues,
	})
}
