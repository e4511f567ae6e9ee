// Package upstream abstracts the realtime conversational model behind a
// small dial-and-stream surface. The gateway session code only ever sees
// Dialer, Session and the Event types below; the concrete Gemini Live
// binding lives in gemini.go.
package upstream

import "context"

// Config describes one upstream conversation.
type Config struct {
	Model             string
	Voice             string
	SystemInstruction string

	// InputSampleRateHz is the PCM16 rate of audio passed to SendAudio.
	InputSampleRateHz int

	// ResumeHandle, when non-empty, asks the upstream to continue a prior
	// conversation instead of starting fresh.
	ResumeHandle string

	InputTranscription  bool
	OutputTranscription bool

	// EnableSearch turns on the provider's built-in web search tool.
	EnableSearch bool

	// Tools are function declarations the model may call back into.
	Tools []ToolDecl
}

// ToolDecl declares one callable function in provider-neutral terms.
type ToolDecl struct {
	Name        string
	Description string
	Params      []ParamDecl
}

// ParamDecl describes one function parameter. Type is a JSON schema
// primitive: "string", "number", "integer", "boolean" or "array" (of
// strings).
type ParamDecl struct {
	Name        string
	Description string
	Type        string
	Required    bool
}

// Dialer establishes upstream sessions.
type Dialer interface {
	Connect(ctx context.Context, cfg Config) (Session, error)
}

// Session is one live upstream conversation. Events delivers the server
// stream until the session ends: the channel closes after at most one
// Closed event, and closes without one when the consumer called Close
// first. Close is idempotent.
type Session interface {
	SendAudio(pcm []byte) error
	SendVideo(jpeg []byte) error
	SendText(text string) error
	SendToolResponse(id, name string, result map[string]any) error
	Events() <-chan Event
	Close() error
}

// Event is the closed set of things an upstream session can report.
type Event interface {
	isEvent()
}

// Source identifies which side of the conversation a transcript belongs to.
type Source string

const (
	SourceUser      Source = "user"
	SourceAssistant Source = "assistant"
)

// AudioChunk is raw assistant PCM16 audio, in order.
type AudioChunk struct {
	PCM []byte
}

// Transcript is one transcript fragment. Final marks the fragment that
// completes the current message; non-final fragments are deltas.
type Transcript struct {
	Source Source
	Text   string
	Final  bool
}

// ToolCall asks the gateway to run a declared function and respond.
type ToolCall struct {
	ID   string
	Name string
	Args map[string]any
}

// TurnComplete marks the end of an assistant turn.
type TurnComplete struct{}

// Interrupted reports that user input cut the assistant off mid-turn.
type Interrupted struct{}

// Handle announces a resumption handle for the conversation.
type Handle struct {
	ID        string
	Resumable bool
}

// Closed is always the last event. Err is nil on clean shutdown.
type Closed struct {
	Err error
}

func (AudioChunk) isEvent()   {}
func (Transcript) isEvent()   {}
func (ToolCall) isEvent()     {}
func (TurnComplete) isEvent() {}
func (Interrupted) isEvent()  {}
func (Handle) isEvent()       {}
func (Closed) isEvent()       {}
