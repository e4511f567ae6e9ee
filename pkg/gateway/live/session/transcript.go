package session

import (
	"strings"

	"github.com/navigo-ai/voicegate/pkg/upstream"
)

// transcriptFragment is one client-facing transcript update. Partials carry
// only the newly produced delta; the final update carries the whole message.
type transcriptFragment struct {
	Source upstream.Source
	Text   string
	Final  bool
}

// turnSummary is the reconciled text of one completed turn.
type turnSummary struct {
	User      string
	Assistant string
}

type transcriptState struct {
	buf       strings.Builder
	finalSeen bool
}

// transcriptReconciler merges the upstream's streamed transcript fragments
// into ordered per-source updates. Within one message, partials arrive
// before the final; a partial arriving after a final starts the next
// message. State resets at each turn boundary.
type transcriptReconciler struct {
	states map[upstream.Source]*transcriptState
}

func newTranscriptReconciler() *transcriptReconciler {
	return &transcriptReconciler{states: make(map[upstream.Source]*transcriptState)}
}

func (r *transcriptReconciler) OnFragment(ev upstream.Transcript) (transcriptFragment, bool) {
	if ev.Text == "" && !ev.Final {
		return transcriptFragment{}, false
	}
	state := r.states[ev.Source]
	if state == nil {
		state = &transcriptState{}
		r.states[ev.Source] = state
	}
	if state.finalSeen {
		state.buf.Reset()
		state.finalSeen = false
	}
	state.buf.WriteString(ev.Text)
	if !ev.Final {
		return transcriptFragment{Source: ev.Source, Text: ev.Text}, true
	}
	state.finalSeen = true
	full := state.buf.String()
	if full == "" {
		return transcriptFragment{}, false
	}
	return transcriptFragment{Source: ev.Source, Text: full, Final: true}, true
}

// OnTurnComplete returns the accumulated turn text and resets all state.
func (r *transcriptReconciler) OnTurnComplete() turnSummary {
	summary := turnSummary{}
	if state := r.states[upstream.SourceUser]; state != nil {
		summary.User = state.buf.String()
	}
	if state := r.states[upstream.SourceAssistant]; state != nil {
		summary.Assistant = state.buf.String()
	}
	r.states = make(map[upstream.Source]*transcriptState)
	return summary
}
