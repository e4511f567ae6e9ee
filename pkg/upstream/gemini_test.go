package upstream

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"google.golang.org/genai"
)

func TestBuildTools_SearchAndFunctions(t *testing.T) {
	tools := buildTools(Config{
		EnableSearch: true,
		Tools: []ToolDecl{
			{Name: "display_card", Description: "show a card"},
			{Name: "display_list", Description: "show a list"},
		},
	})
	if len(tools) != 2 {
		t.Fatalf("len(tools)=%d, want 2", len(tools))
	}
	if tools[0].GoogleSearch == nil {
		t.Fatal("first tool should be google search")
	}
	decls := tools[1].FunctionDeclarations
	if len(decls) != 2 {
		t.Fatalf("len(decls)=%d, want 2", len(decls))
	}
	if decls[0].Name != "display_card" || decls[1].Name != "display_list" {
		t.Fatalf("decl names = %q, %q", decls[0].Name, decls[1].Name)
	}
}

func TestBuildTools_Empty(t *testing.T) {
	if tools := buildTools(Config{}); len(tools) != 0 {
		t.Fatalf("len(tools)=%d, want 0", len(tools))
	}
}

func TestParamSchema(t *testing.T) {
	schema := paramSchema([]ParamDecl{
		{Name: "title", Type: "string", Required: true},
		{Name: "items", Type: "array", Required: true},
		{Name: "footer", Type: "string"},
	})
	if schema.Type != genai.TypeObject {
		t.Fatalf("type=%v", schema.Type)
	}
	if len(schema.Properties) != 3 {
		t.Fatalf("properties=%d, want 3", len(schema.Properties))
	}
	if schema.Properties["items"].Type != genai.TypeArray {
		t.Fatalf("items type=%v", schema.Properties["items"].Type)
	}
	if schema.Properties["items"].Items == nil || schema.Properties["items"].Items.Type != genai.TypeString {
		t.Fatal("array items should be strings")
	}
	if len(schema.Required) != 2 {
		t.Fatalf("required=%v", schema.Required)
	}
}

func TestParamSchema_NoParams(t *testing.T) {
	if paramSchema(nil) != nil {
		t.Fatal("expected nil schema for no params")
	}
}

// fakeLiveStream feeds scripted server messages to the pump. Once the script
// is exhausted Receive blocks until Close, then fails, matching how the real
// session behaves when the underlying connection goes away.
type fakeLiveStream struct {
	msgs    []*genai.LiveServerMessage
	recvErr error

	mu         sync.Mutex
	idx        int
	closeCalls int
	closed     chan struct{}
	closeOnce  sync.Once
}

func newFakeLiveStream(msgs []*genai.LiveServerMessage, recvErr error) *fakeLiveStream {
	return &fakeLiveStream{msgs: msgs, recvErr: recvErr, closed: make(chan struct{})}
}

func (f *fakeLiveStream) SendRealtimeInput(genai.LiveRealtimeInput) error      { return nil }
func (f *fakeLiveStream) SendClientContent(genai.LiveClientContentInput) error { return nil }
func (f *fakeLiveStream) SendToolResponse(genai.LiveToolResponseInput) error   { return nil }

func (f *fakeLiveStream) Receive() (*genai.LiveServerMessage, error) {
	f.mu.Lock()
	if f.idx < len(f.msgs) {
		msg := f.msgs[f.idx]
		f.idx++
		f.mu.Unlock()
		return msg, nil
	}
	f.mu.Unlock()
	if f.recvErr != nil {
		return nil, f.recvErr
	}
	<-f.closed
	return nil, io.EOF
}

func (f *fakeLiveStream) Close() error {
	f.mu.Lock()
	f.closeCalls++
	f.mu.Unlock()
	f.closeOnce.Do(func() { close(f.closed) })
	return nil
}

func audioMessage(pcm []byte) *genai.LiveServerMessage {
	return &genai.LiveServerMessage{
		ServerContent: &genai.LiveServerContent{
			ModelTurn: &genai.Content{
				Parts: []*genai.Part{{InlineData: &genai.Blob{Data: pcm}}},
			},
		},
	}
}

func drainUntilClosed(t *testing.T, events <-chan Event) []Event {
	t.Helper()
	var got []Event
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return got
			}
			got = append(got, ev)
		case <-deadline:
			t.Fatalf("events channel never closed; drained %d events", len(got))
		}
	}
}

func TestGeminiSession_CloseUnblocksFullEventBuffer(t *testing.T) {
	msgs := make([]*genai.LiveServerMessage, 0, 40)
	for i := 0; i < 40; i++ {
		msgs = append(msgs, audioMessage([]byte{byte(i)}))
	}
	stream := newFakeLiveStream(msgs, nil)
	s := newGeminiSession(stream, slog.New(slog.NewTextHandler(io.Discard, nil)), 16000)

	// Let the pump fill the buffer and park on the next send.
	waitUntil := time.Now().Add(2 * time.Second)
	for len(s.events) < cap(s.events) {
		if time.Now().After(waitUntil) {
			t.Fatalf("buffer never filled: %d/%d", len(s.events), cap(s.events))
		}
		time.Sleep(time.Millisecond)
	}

	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	got := drainUntilClosed(t, s.Events())
	for i, ev := range got {
		if _, isAudio := ev.(AudioChunk); !isAudio {
			t.Fatalf("event %d is %T, want AudioChunk", i, ev)
		}
	}
	if len(got) > len(msgs) {
		t.Fatalf("drained %d events, script only had %d", len(got), len(msgs))
	}
}

func TestGeminiSession_ReceiveErrorEmitsClosed(t *testing.T) {
	recvErr := errors.New("stream reset")
	stream := newFakeLiveStream([]*genai.LiveServerMessage{audioMessage([]byte{1, 2})}, recvErr)
	s := newGeminiSession(stream, slog.New(slog.NewTextHandler(io.Discard, nil)), 16000)

	got := drainUntilClosed(t, s.Events())
	if len(got) != 2 {
		t.Fatalf("got %d events, want audio then closed: %#v", len(got), got)
	}
	if _, ok := got[0].(AudioChunk); !ok {
		t.Fatalf("first event is %T, want AudioChunk", got[0])
	}
	closed, ok := got[1].(Closed)
	if !ok {
		t.Fatalf("last event is %T, want Closed", got[1])
	}
	if !errors.Is(closed.Err, recvErr) {
		t.Fatalf("closed err = %v, want %v", closed.Err, recvErr)
	}
}

func TestGeminiSession_TranslateEventOrder(t *testing.T) {
	msg := &genai.LiveServerMessage{
		SessionResumptionUpdate: &genai.LiveServerSessionResumptionUpdate{
			NewHandle: "h_42",
			Resumable: true,
		},
		ServerContent: &genai.LiveServerContent{
			InputTranscription:  &genai.Transcription{Text: "where to", Finished: true},
			OutputTranscription: &genai.Transcription{Text: "try Lisbon"},
			ModelTurn: &genai.Content{
				Parts: []*genai.Part{{InlineData: &genai.Blob{Data: []byte{9}}}},
			},
			TurnComplete: true,
		},
	}
	stream := newFakeLiveStream([]*genai.LiveServerMessage{msg}, io.EOF)
	s := newGeminiSession(stream, slog.New(slog.NewTextHandler(io.Discard, nil)), 16000)

	got := drainUntilClosed(t, s.Events())
	want := []string{"Handle", "user transcript", "assistant transcript", "audio", "turn complete", "closed"}
	if len(got) != len(want) {
		t.Fatalf("got %d events, want %d: %#v", len(got), len(want), got)
	}
	if h, ok := got[0].(Handle); !ok || h.ID != "h_42" || !h.Resumable {
		t.Fatalf("event 0 = %#v, want resumable handle h_42", got[0])
	}
	if tr, ok := got[1].(Transcript); !ok || tr.Source != SourceUser || !tr.Final {
		t.Fatalf("event 1 = %#v, want final user transcript", got[1])
	}
	if tr, ok := got[2].(Transcript); !ok || tr.Source != SourceAssistant || tr.Final {
		t.Fatalf("event 2 = %#v, want partial assistant transcript", got[2])
	}
	if _, ok := got[3].(AudioChunk); !ok {
		t.Fatalf("event 3 = %#v, want audio chunk", got[3])
	}
	if _, ok := got[4].(TurnComplete); !ok {
		t.Fatalf("event 4 = %#v, want turn complete", got[4])
	}
	if _, ok := got[5].(Closed); !ok {
		t.Fatalf("event 5 = %#v, want closed", got[5])
	}
}

func TestGeminiSession_CloseIsIdempotent(t *testing.T) {
	stream := newFakeLiveStream(nil, nil)
	s := newGeminiSession(stream, slog.New(slog.NewTextHandler(io.Discard, nil)), 16000)

	if err := s.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	stream.mu.Lock()
	calls := stream.closeCalls
	stream.mu.Unlock()
	if calls != 1 {
		t.Fatalf("inner Close called %d times, want 1", calls)
	}
	drainUntilClosed(t, s.Events())
}
