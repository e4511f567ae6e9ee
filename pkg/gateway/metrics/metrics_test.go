package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("scrape status=%d", rr.Code)
	}
	return rr.Body.String()
}

func TestMetrics_SessionLifecycle(t *testing.T) {
	m := New("vg_test")

	m.RecordSessionStart()
	body := scrape(t, m)
	if !strings.Contains(body, "vg_test_sessions_active 1") {
		t.Fatalf("expected one active session, got:\n%s", body)
	}

	m.RecordSessionEnd("gemini-live-test", "ok", 3*time.Second)
	body = scrape(t, m)
	if !strings.Contains(body, "vg_test_sessions_active 0") {
		t.Fatalf("expected zero active sessions, got:\n%s", body)
	}
	if !strings.Contains(body, `vg_test_sessions_total{status="ok"} 1`) {
		t.Fatalf("expected session total with ok status, got:\n%s", body)
	}
	if !strings.Contains(body, `vg_test_session_duration_seconds_count{model="gemini-live-test"} 1`) {
		t.Fatalf("expected duration observation, got:\n%s", body)
	}
}

func TestMetrics_StreamCounters(t *testing.T) {
	m := New("vg_test")

	m.RecordAudio("in", 100)
	m.RecordAudio("in", 50)
	m.RecordAudio("out", 200)
	m.RecordTurn()
	m.RecordInterruption()
	m.RecordMalformedFrame()
	m.RecordToolCall("display_card", "ok")

	body := scrape(t, m)
	for _, want := range []string{
		`vg_test_audio_bytes_total{direction="in"} 150`,
		`vg_test_audio_bytes_total{direction="out"} 200`,
		"vg_test_turns_total 1",
		"vg_test_interruptions_total 1",
		"vg_test_malformed_frames_total 1",
		`vg_test_tool_calls_total{status="ok",tool="display_card"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("missing %q in scrape output:\n%s", want, body)
		}
	}
}

func TestMetrics_NilReceiverIsSafe(t *testing.T) {
	var m *Metrics
	m.RecordSessionStart()
	m.RecordSessionEnd("x", "ok", time.Second)
	m.RecordAudio("in", 1)
	m.RecordTurn()
	m.RecordInterruption()
	m.RecordMalformedFrame()
	m.RecordToolCall("t", "ok")
}

func TestMetrics_ZeroByteAudioIgnored(t *testing.T) {
	m := New("vg_test")
	m.RecordAudio("in", 0)
	m.RecordAudio("in", -5)

	body := scrape(t, m)
	if strings.Contains(body, `vg_test_audio_bytes_total{direction="in"}`) {
		t.Fatalf("expected no audio series for empty frames, got:\n%s", body)
	}
}
