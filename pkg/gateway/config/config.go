package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds every tunable the gateway reads at startup. All values come
// from VOICEGATE_* environment variables with sensible defaults, except the
// upstream API key which follows the GEMINI_API_KEY / GOOGLE_API_KEY
// convention of the client SDKs.
type Config struct {
	Addr string

	// Upstream model credentials and defaults.
	GeminiAPIKey string
	Model        string
	Voice        string
	EnableSearch bool

	// CORS / WebSocket origin allowlist (empty => same-origin only).
	AllowedOrigins map[string]struct{}

	// Live WebSocket limits.
	LiveMaxAudioFrameBytes     int
	LiveMaxJSONMessageBytes    int64
	LiveMaxAudioFPS            int
	LiveMaxAudioBytesPerSecond int64
	LiveInboundBurstSeconds    int
	LiveWSPingInterval         time.Duration
	LiveWSWriteTimeout         time.Duration
	LiveWSReadTimeout          time.Duration
	LiveMaxSessionDuration     time.Duration
	LiveOutboundQueueSize      int

	// Dial timeout for connecting a new upstream session.
	UpstreamConnectTimeout time.Duration

	// Operational defaults.
	ReadHeaderTimeout   time.Duration
	ShutdownGracePeriod time.Duration

	MetricsNamespace string
}

func LoadFromEnv() (Config, error) {
	cfg := Config{
		Addr:                       envOr("VOICEGATE_ADDR", ":8080"),
		GeminiAPIKey:               envOr("GEMINI_API_KEY", envOr("GOOGLE_API_KEY", "")),
		Model:                      envOr("VOICEGATE_MODEL", ""),
		Voice:                      envOr("VOICEGATE_VOICE", ""),
		EnableSearch:               envBoolOr("VOICEGATE_ENABLE_SEARCH", true),
		AllowedOrigins:             make(map[string]struct{}),
		LiveMaxAudioFrameBytes:     envIntOr("VOICEGATE_LIVE_MAX_AUDIO_FRAME_BYTES", 64*1024),
		LiveMaxJSONMessageBytes:    envInt64Or("VOICEGATE_LIVE_MAX_JSON_MESSAGE_BYTES", 256*1024),
		LiveMaxAudioFPS:            envIntOr("VOICEGATE_LIVE_MAX_AUDIO_FPS", 120),
		LiveMaxAudioBytesPerSecond: envInt64Or("VOICEGATE_LIVE_MAX_AUDIO_BPS", 128*1024),
		LiveInboundBurstSeconds:    envIntOr("VOICEGATE_LIVE_INBOUND_BURST_SECONDS", 2),
		LiveWSPingInterval:         envDurationOr("VOICEGATE_LIVE_WS_PING_INTERVAL", 20*time.Second),
		LiveWSWriteTimeout:         envDurationOr("VOICEGATE_LIVE_WS_WRITE_TIMEOUT", 5*time.Second),
		LiveWSReadTimeout:          envDurationOr("VOICEGATE_LIVE_WS_READ_TIMEOUT", 0),
		LiveMaxSessionDuration:     envDurationOr("VOICEGATE_LIVE_MAX_SESSION_DURATION", 2*time.Hour),
		LiveOutboundQueueSize:      envIntOr("VOICEGATE_LIVE_OUTBOUND_QUEUE_SIZE", 128),
		UpstreamConnectTimeout:     envDurationOr("VOICEGATE_CONNECT_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout:          envDurationOr("VOICEGATE_READ_HEADER_TIMEOUT", 10*time.Second),
		ShutdownGracePeriod:        envDurationOr("VOICEGATE_SHUTDOWN_GRACE_PERIOD", 30*time.Second),
		MetricsNamespace:           envOr("VOICEGATE_METRICS_NAMESPACE", "voicegate"),
	}

	for _, origin := range splitCSV(os.Getenv("VOICEGATE_CORS_ORIGINS")) {
		cfg.AllowedOrigins[origin] = struct{}{}
	}

	if strings.TrimSpace(cfg.GeminiAPIKey) == "" {
		return Config{}, fmt.Errorf("GEMINI_API_KEY (or GOOGLE_API_KEY) must be set")
	}
	if cfg.LiveMaxAudioFrameBytes <= 0 {
		return Config{}, fmt.Errorf("VOICEGATE_LIVE_MAX_AUDIO_FRAME_BYTES must be > 0")
	}
	if cfg.LiveMaxJSONMessageBytes <= 0 {
		return Config{}, fmt.Errorf("VOICEGATE_LIVE_MAX_JSON_MESSAGE_BYTES must be > 0")
	}
	if cfg.LiveMaxAudioFPS < 0 {
		return Config{}, fmt.Errorf("VOICEGATE_LIVE_MAX_AUDIO_FPS must be >= 0")
	}
	if cfg.LiveMaxAudioBytesPerSecond < 0 {
		return Config{}, fmt.Errorf("VOICEGATE_LIVE_MAX_AUDIO_BPS must be >= 0")
	}
	if cfg.LiveInboundBurstSeconds < 0 {
		return Config{}, fmt.Errorf("VOICEGATE_LIVE_INBOUND_BURST_SECONDS must be >= 0")
	}
	if (cfg.LiveMaxAudioFPS > 0 || cfg.LiveMaxAudioBytesPerSecond > 0) && cfg.LiveInboundBurstSeconds < 1 {
		return Config{}, fmt.Errorf("VOICEGATE_LIVE_INBOUND_BURST_SECONDS must be >= 1 when inbound audio limits are enabled")
	}
	if cfg.LiveWSPingInterval <= 0 {
		return Config{}, fmt.Errorf("VOICEGATE_LIVE_WS_PING_INTERVAL must be > 0")
	}
	if cfg.LiveWSWriteTimeout <= 0 {
		return Config{}, fmt.Errorf("VOICEGATE_LIVE_WS_WRITE_TIMEOUT must be > 0")
	}
	if cfg.LiveWSReadTimeout < 0 {
		return Config{}, fmt.Errorf("VOICEGATE_LIVE_WS_READ_TIMEOUT must be >= 0")
	}
	if cfg.LiveMaxSessionDuration <= 0 {
		return Config{}, fmt.Errorf("VOICEGATE_LIVE_MAX_SESSION_DURATION must be > 0")
	}
	if cfg.LiveOutboundQueueSize <= 0 {
		return Config{}, fmt.Errorf("VOICEGATE_LIVE_OUTBOUND_QUEUE_SIZE must be > 0")
	}
	if cfg.UpstreamConnectTimeout <= 0 {
		return Config{}, fmt.Errorf("VOICEGATE_CONNECT_TIMEOUT must be > 0")
	}
	if cfg.ReadHeaderTimeout <= 0 {
		return Config{}, fmt.Errorf("VOICEGATE_READ_HEADER_TIMEOUT must be > 0")
	}
	if cfg.ShutdownGracePeriod <= 0 {
		return Config{}, fmt.Errorf("VOICEGATE_SHUTDOWN_GRACE_PERIOD must be > 0")
	}
	if strings.TrimSpace(cfg.MetricsNamespace) == "" {
		return Config{}, fmt.Errorf("VOICEGATE_METRICS_NAMESPACE must not be empty")
	}

	return cfg, nil
}

func envOr(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envInt64Or(key string, def int64) int64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func envIntOr(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func envBoolOr(key string, def bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	switch strings.ToLower(raw) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	case "0", "false", "f", "no", "n", "off":
		return false
	default:
		return def
	}
}

func envDurationOr(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return d
}

func splitCSV(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
