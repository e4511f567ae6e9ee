package session

import (
	"testing"

	"github.com/navigo-ai/voicegate/pkg/upstream"
)

func TestReconciler_PartialsThenFinal(t *testing.T) {
	r := newTranscriptReconciler()

	frag, ok := r.OnFragment(upstream.Transcript{Source: upstream.SourceAssistant, Text: "Hel"})
	if !ok || frag.Text != "Hel" || frag.Final {
		t.Fatalf("first partial = %+v ok=%v", frag, ok)
	}
	frag, ok = r.OnFragment(upstream.Transcript{Source: upstream.SourceAssistant, Text: "lo th"})
	if !ok || frag.Text != "lo th" || frag.Final {
		t.Fatalf("second partial = %+v ok=%v", frag, ok)
	}
	frag, ok = r.OnFragment(upstream.Transcript{Source: upstream.SourceAssistant, Text: "ere.", Final: true})
	if !ok || !frag.Final {
		t.Fatalf("final = %+v ok=%v", frag, ok)
	}
	if frag.Text != "Hello there." {
		t.Fatalf("final text = %q, want full sentence", frag.Text)
	}
}

func TestReconciler_EmptyPartialSkipped(t *testing.T) {
	r := newTranscriptReconciler()
	if _, ok := r.OnFragment(upstream.Transcript{Source: upstream.SourceUser}); ok {
		t.Fatal("empty partial should produce no fragment")
	}
}

func TestReconciler_FinalWithEmptyTextFlushesAccumulated(t *testing.T) {
	r := newTranscriptReconciler()
	_, _ = r.OnFragment(upstream.Transcript{Source: upstream.SourceUser, Text: "where is "})
	_, _ = r.OnFragment(upstream.Transcript{Source: upstream.SourceUser, Text: "Jaipur"})

	frag, ok := r.OnFragment(upstream.Transcript{Source: upstream.SourceUser, Final: true})
	if !ok || !frag.Final {
		t.Fatalf("final = %+v ok=%v", frag, ok)
	}
	if frag.Text != "where is Jaipur" {
		t.Fatalf("final text = %q", frag.Text)
	}
}

func TestReconciler_PartialAfterFinalStartsNewMessage(t *testing.T) {
	r := newTranscriptReconciler()
	_, _ = r.OnFragment(upstream.Transcript{Source: upstream.SourceUser, Text: "hello", Final: true})

	frag, ok := r.OnFragment(upstream.Transcript{Source: upstream.SourceUser, Text: "and "})
	if !ok || frag.Final {
		t.Fatalf("fragment = %+v ok=%v", frag, ok)
	}
	frag, ok = r.OnFragment(upstream.Transcript{Source: upstream.SourceUser, Text: "goodbye", Final: true})
	if !ok || frag.Text != "and goodbye" {
		t.Fatalf("second final = %+v ok=%v", frag, ok)
	}
}

func TestReconciler_SourcesAreIndependent(t *testing.T) {
	r := newTranscriptReconciler()
	_, _ = r.OnFragment(upstream.Transcript{Source: upstream.SourceUser, Text: "question"})
	_, _ = r.OnFragment(upstream.Transcript{Source: upstream.SourceAssistant, Text: "answer"})

	summary := r.OnTurnComplete()
	if summary.User != "question" || summary.Assistant != "answer" {
		t.Fatalf("summary = %+v", summary)
	}

	// State resets at the boundary.
	frag, ok := r.OnFragment(upstream.Transcript{Source: upstream.SourceUser, Text: "next", Final: true})
	if !ok || frag.Text != "next" {
		t.Fatalf("post-boundary final = %+v ok=%v", frag, ok)
	}
}
