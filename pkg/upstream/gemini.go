package upstream

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"google.golang.org/genai"
)

// GeminiDialer connects sessions to the Gemini Live API.
type GeminiDialer struct {
	client *genai.Client
	logger *slog.Logger
}

// NewGeminiDialer builds a dialer from an API key.
func NewGeminiDialer(ctx context.Context, apiKey string, logger *slog.Logger) (*GeminiDialer, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &GeminiDialer{client: client, logger: logger}, nil
}

func (d *GeminiDialer) Connect(ctx context.Context, cfg Config) (Session, error) {
	lcfg := &genai.LiveConnectConfig{
		ResponseModalities: []genai.Modality{genai.ModalityAudio},
	}
	if cfg.SystemInstruction != "" {
		lcfg.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: cfg.SystemInstruction}},
		}
	}
	if cfg.Voice != "" {
		lcfg.SpeechConfig = &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: cfg.Voice},
			},
		}
	}
	if cfg.InputTranscription {
		lcfg.InputAudioTranscription = &genai.AudioTranscriptionConfig{}
	}
	if cfg.OutputTranscription {
		lcfg.OutputAudioTranscription = &genai.AudioTranscriptionConfig{}
	}
	// Always request resumption updates so the client can reconnect; pass
	// the prior handle when the client brought one.
	lcfg.SessionResumption = &genai.SessionResumptionConfig{Handle: cfg.ResumeHandle}
	lcfg.Tools = buildTools(cfg)

	inner, err := d.client.Live.Connect(ctx, cfg.Model, lcfg)
	if err != nil {
		return nil, fmt.Errorf("connect live session: %w", err)
	}

	return newGeminiSession(inner, d.logger, cfg.InputSampleRateHz), nil
}

func newGeminiSession(inner liveStream, logger *slog.Logger, rate int) *geminiSession {
	if rate <= 0 {
		rate = 16000
	}
	s := &geminiSession{
		inner:  inner,
		logger: logger,
		rate:   rate,
		events: make(chan Event, 32),
		done:   make(chan struct{}),
	}
	go s.pump()
	return s
}

func buildTools(cfg Config) []*genai.Tool {
	var tools []*genai.Tool
	if cfg.EnableSearch {
		tools = append(tools, &genai.Tool{GoogleSearch: &genai.GoogleSearch{}})
	}
	if len(cfg.Tools) == 0 {
		return tools
	}
	decls := make([]*genai.FunctionDeclaration, 0, len(cfg.Tools))
	for _, t := range cfg.Tools {
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  paramSchema(t.Params),
		})
	}
	return append(tools, &genai.Tool{FunctionDeclarations: decls})
}

func paramSchema(params []ParamDecl) *genai.Schema {
	if len(params) == 0 {
		return nil
	}
	schema := &genai.Schema{
		Type:       genai.TypeObject,
		Properties: make(map[string]*genai.Schema, len(params)),
	}
	for _, p := range params {
		prop := &genai.Schema{Description: p.Description}
		switch p.Type {
		case "number":
			prop.Type = genai.TypeNumber
		case "integer":
			prop.Type = genai.TypeInteger
		case "boolean":
			prop.Type = genai.TypeBoolean
		case "array":
			prop.Type = genai.TypeArray
			prop.Items = &genai.Schema{Type: genai.TypeString}
		default:
			prop.Type = genai.TypeString
		}
		schema.Properties[p.Name] = prop
		if p.Required {
			schema.Required = append(schema.Required, p.Name)
		}
	}
	return schema
}

// liveStream is the part of *genai.Session the event pump and senders use.
type liveStream interface {
	SendRealtimeInput(input genai.LiveRealtimeInput) error
	SendClientContent(input genai.LiveClientContentInput) error
	SendToolResponse(input genai.LiveToolResponseInput) error
	Receive() (*genai.LiveServerMessage, error)
	Close() error
}

type geminiSession struct {
	inner  liveStream
	logger *slog.Logger
	rate   int

	events    chan Event
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

func (s *geminiSession) SendAudio(pcm []byte) error {
	if len(pcm) == 0 {
		return nil
	}
	return s.inner.SendRealtimeInput(genai.LiveRealtimeInput{
		Media: &genai.Blob{
			Data:     pcm,
			MIMEType: fmt.Sprintf("audio/pcm;rate=%d", s.rate),
		},
	})
}

func (s *geminiSession) SendVideo(jpeg []byte) error {
	if len(jpeg) == 0 {
		return nil
	}
	return s.inner.SendRealtimeInput(genai.LiveRealtimeInput{
		Video: &genai.Blob{Data: jpeg, MIMEType: "image/jpeg"},
	})
}

func (s *geminiSession) SendText(text string) error {
	return s.inner.SendClientContent(genai.LiveClientContentInput{
		Turns: []*genai.Content{{
			Role:  genai.RoleUser,
			Parts: []*genai.Part{{Text: text}},
		}},
	})
}

func (s *geminiSession) SendToolResponse(id, name string, result map[string]any) error {
	return s.inner.SendToolResponse(genai.LiveToolResponseInput{
		FunctionResponses: []*genai.FunctionResponse{{
			ID:       id,
			Name:     name,
			Response: result,
		}},
	})
}

func (s *geminiSession) Events() <-chan Event {
	return s.events
}

func (s *geminiSession) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.closeErr = s.inner.Close()
	})
	return s.closeErr
}

// emit delivers one event unless the session has been closed. Consumers stop
// draining the events channel on teardown, so an unguarded send would park
// the pump goroutine forever once the buffer fills.
func (s *geminiSession) emit(ev Event) bool {
	select {
	case s.events <- ev:
		return true
	case <-s.done:
		return false
	}
}

// pump translates the Gemini server stream into Event values. It owns the
// events channel: at most one Closed event is emitted and then the channel
// is closed.
func (s *geminiSession) pump() {
	defer close(s.events)
	for {
		msg, err := s.inner.Receive()
		if err != nil {
			s.emit(Closed{Err: err})
			return
		}
		if msg == nil {
			s.emit(Closed{})
			return
		}
		if !s.translate(msg) {
			return
		}
	}
}

func (s *geminiSession) translate(msg *genai.LiveServerMessage) bool {
	if u := msg.SessionResumptionUpdate; u != nil && u.NewHandle != "" {
		if !s.emit(Handle{ID: u.NewHandle, Resumable: u.Resumable}) {
			return false
		}
	}
	if tc := msg.ToolCall; tc != nil {
		for _, fc := range tc.FunctionCalls {
			if fc == nil {
				continue
			}
			if !s.emit(ToolCall{ID: fc.ID, Name: fc.Name, Args: fc.Args}) {
				return false
			}
		}
	}
	sc := msg.ServerContent
	if sc == nil {
		return true
	}
	if t := sc.InputTranscription; t != nil && t.Text != "" {
		if !s.emit(Transcript{Source: SourceUser, Text: t.Text, Final: t.Finished}) {
			return false
		}
	}
	if t := sc.OutputTranscription; t != nil && t.Text != "" {
		if !s.emit(Transcript{Source: SourceAssistant, Text: t.Text, Final: t.Finished}) {
			return false
		}
	}
	if sc.ModelTurn != nil {
		for _, part := range sc.ModelTurn.Parts {
			if part == nil {
				continue
			}
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				if !s.emit(AudioChunk{PCM: part.InlineData.Data}) {
					return false
				}
			}
			if part.Text != "" {
				// Half-cascade models stream reply text in content parts
				// instead of output transcription.
				if !s.emit(Transcript{Source: SourceAssistant, Text: part.Text}) {
					return false
				}
			}
		}
	}
	if sc.Interrupted {
		if !s.emit(Interrupted{}) {
			return false
		}
	}
	if sc.TurnComplete {
		if !s.emit(TurnComplete{}) {
			return false
		}
	}
	return true
}
