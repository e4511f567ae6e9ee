// Package session multiplexes one live voice WebSocket against one upstream
// model conversation. A session runs three concurrent legs: a read loop
// relaying client frames upstream, an event loop relaying model output back
// to the client, and an outbound writer that keeps control envelopes ahead
// of bulk audio.
package session

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/navigo-ai/voicegate/pkg/agent"
	"github.com/navigo-ai/voicegate/pkg/audio"
	"github.com/navigo-ai/voicegate/pkg/gateway/live/protocol"
	"github.com/navigo-ai/voicegate/pkg/gateway/metrics"
	"github.com/navigo-ai/voicegate/pkg/gateway/tools/uitools"
	"github.com/navigo-ai/voicegate/pkg/upstream"
)

const outboundPriorityQueueSize = 16

type Config struct {
	MaxAudioFrameBytes     int
	MaxJSONMessageBytes    int64
	MaxAudioFPS            int
	MaxAudioBytesPerSecond int64
	InboundBurstSeconds    int
	ConnectTimeout         time.Duration
	PingInterval           time.Duration
	WriteTimeout           time.Duration
	ReadTimeout            time.Duration
	MaxSessionDuration     time.Duration
	OutboundQueueSize      int
}

type wsConn interface {
	wsWriter
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	ReadMessage() (messageType int, p []byte, err error)
}

type Dependencies struct {
	Conn         wsConn
	Logger       *slog.Logger
	Upstream     upstream.Dialer
	Agent        agent.Config
	Tools        *uitools.Registry
	Metrics      *metrics.Metrics
	SessionID    string
	RequestID    string
	ResumeHandle string
	Config       Config
	StartTime    time.Time
	Now          func() time.Time
}

// turnState tracks who currently holds the conversational floor.
type turnState int

const (
	turnIdle turnState = iota
	turnModelSpeaking
	turnUserSpeaking
)

func (t turnState) String() string {
	switch t {
	case turnModelSpeaking:
		return "model_speaking"
	case turnUserSpeaking:
		return "user_speaking"
	default:
		return "idle"
	}
}

type LiveSession struct {
	conn         wsConn
	logger       *slog.Logger
	dialer       upstream.Dialer
	agent        agent.Config
	tools        *uitools.Registry
	metrics      *metrics.Metrics
	sessionID    string
	requestID    string
	resumeHandle string
	cfg          Config
	startTime    time.Time
	now          func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	outboundPriority chan outboundFrame
	outboundNormal   chan outboundFrame

	// turnEpoch increments on barge-in; queued assistant audio from an
	// older epoch is stale and never written.
	turnEpoch atomic.Uint64
}

type inboundFrame struct {
	messageType int
	data        []byte
	err         error
}

func New(deps Dependencies) (*LiveSession, error) {
	if deps.Conn == nil {
		return nil, fmt.Errorf("connection is required")
	}
	if deps.Upstream == nil {
		return nil, fmt.Errorf("upstream dialer is required")
	}
	if deps.Agent.Model == "" {
		return nil, fmt.Errorf("agent model is required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Config.OutboundQueueSize <= 0 {
		deps.Config.OutboundQueueSize = 128
	}
	if deps.Config.ConnectTimeout <= 0 {
		deps.Config.ConnectTimeout = 15 * time.Second
	}
	if deps.StartTime.IsZero() {
		deps.StartTime = time.Now()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	ctx, cancel := context.WithCancel(context.Background())
	prioritySize := outboundPriorityQueueSize
	if deps.Config.OutboundQueueSize < prioritySize {
		prioritySize = deps.Config.OutboundQueueSize
	}
	return &LiveSession{
		conn:             deps.Conn,
		logger:           deps.Logger,
		dialer:           deps.Upstream,
		agent:            deps.Agent,
		tools:            deps.Tools,
		metrics:          deps.Metrics,
		sessionID:        deps.SessionID,
		requestID:        deps.RequestID,
		resumeHandle:     deps.ResumeHandle,
		cfg:              deps.Config,
		startTime:        deps.StartTime,
		now:              deps.Now,
		ctx:              ctx,
		cancel:           cancel,
		outboundPriority: make(chan outboundFrame, prioritySize),
		outboundNormal:   make(chan outboundFrame, deps.Config.OutboundQueueSize),
	}, nil
}

// Cancel asks the session to shut down. Safe to call from any goroutine.
func (s *LiveSession) Cancel() {
	s.cancel()
}

// SendNotice pushes an out-of-band error envelope to the client, e.g. when
// the server is draining. Safe to call from any goroutine.
func (s *LiveSession) SendNotice(code, message string) error {
	return s.sendSessionError(code, message)
}

func (s *LiveSession) upstreamConfig() upstream.Config {
	cfg := upstream.Config{
		Model:               s.agent.Model,
		Voice:               s.agent.Voice,
		SystemInstruction:   s.agent.Instruction,
		InputSampleRateHz:   protocol.InputSampleRateHz,
		ResumeHandle:        s.resumeHandle,
		InputTranscription:  true,
		OutputTranscription: true,
		EnableSearch:        s.agent.EnableSearch,
	}
	if s.tools != nil {
		cfg.Tools = s.tools.Declarations()
	}
	return cfg
}

// Run drives the session until the client disconnects, the upstream ends,
// or the session is canceled. It owns the connection and the upstream
// session; both are released exactly once before Run returns.
func (s *LiveSession) Run() error {
	defer s.cancel()

	if s.cfg.MaxJSONMessageBytes > 0 {
		s.conn.SetReadLimit(s.cfg.MaxJSONMessageBytes)
	}
	if s.cfg.ReadTimeout > 0 {
		_ = s.conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		s.conn.SetPongHandler(func(string) error {
			return s.conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		})
	}

	dialCtx, dialCancel := context.WithTimeout(s.ctx, s.cfg.ConnectTimeout)
	us, err := s.dialer.Connect(dialCtx, s.upstreamConfig())
	dialCancel()
	if err != nil {
		s.writeDirectError("upstream_unavailable", "could not reach the model service")
		return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer us.Close()

	readCh := make(chan inboundFrame, 64)
	writerErrCh := make(chan error, 1)
	go s.readLoop(readCh)
	go func() {
		w := outboundWriter{
			ws:       s.conn,
			ctx:      s.ctx,
			cfg:      s.cfg,
			priority: s.outboundPriority,
			normal:   s.outboundNormal,
			isStale:  s.isStaleEpoch,
		}
		writerErrCh <- w.Run()
		close(writerErrCh)
	}()

	flushAndClose := func() {
		s.cancel()
		wait := 100 * time.Millisecond
		if s.cfg.WriteTimeout > 0 && s.cfg.WriteTimeout < wait {
			wait = s.cfg.WriteTimeout
		}
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-writerErrCh:
		case <-timer.C:
		}
	}

	limiter := newInboundAudioLimiter(s.now, s.cfg.MaxAudioFPS, s.cfg.MaxAudioBytesPerSecond, s.cfg.InboundBurstSeconds)
	reconciler := newTranscriptReconciler()
	events := us.Events()

	var sessionTimer <-chan time.Time
	if s.cfg.MaxSessionDuration > 0 {
		t := time.NewTimer(s.cfg.MaxSessionDuration)
		defer t.Stop()
		sessionTimer = t.C
	}

	var (
		state       = turnIdle
		interrupted bool
		handle      = s.resumeHandle
	)

	s.logger.Info("live session started",
		slog.String("session_id", s.sessionID),
		slog.String("model", s.agent.Model),
		slog.Bool("resumed", s.resumeHandle != ""))

	for {
		select {
		case <-s.ctx.Done():
			flushAndClose()
			return nil

		case err := <-writerErrCh:
			if err != nil {
				return fmt.Errorf("outbound write: %w", err)
			}
			return nil

		case <-sessionTimer:
			_ = s.sendSessionError("session_timeout", "maximum session duration reached")
			flushAndClose()
			return nil

		case frame, ok := <-readCh:
			if !ok {
				readCh = nil
				continue
			}
			if frame.err != nil {
				if websocket.IsUnexpectedCloseError(frame.err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					s.logger.Warn("client connection lost", slog.String("session_id", s.sessionID), slog.Any("error", frame.err))
				} else {
					s.logger.Info("client disconnected", slog.String("session_id", s.sessionID))
				}
				flushAndClose()
				return nil
			}
			if err := s.handleClientFrame(us, frame, limiter, &state); err != nil {
				_ = s.sendSessionError("upstream_error", "could not forward input to the model")
				flushAndClose()
				return err
			}

		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			switch ev := ev.(type) {
			case upstream.AudioChunk:
				state = turnModelSpeaking
				s.metrics.RecordAudio("out", len(ev.PCM))
				if err := s.sendAssistantAudio(ev.PCM); err != nil {
					s.logger.Warn("dropping assistant audio on backpressure", slog.String("session_id", s.sessionID))
				}

			case upstream.Transcript:
				frag, ok := reconciler.OnFragment(ev)
				if !ok {
					continue
				}
				if frag.Source == upstream.SourceUser {
					_ = s.sendJSON(protocol.NewServerUserTranscript(frag.Text, frag.Final))
				} else {
					state = turnModelSpeaking
					_ = s.sendJSON(protocol.NewServerText(frag.Text, frag.Final))
				}

			case upstream.ToolCall:
				if err := s.handleToolCall(us, ev); err != nil {
					_ = s.sendSessionError("upstream_error", "could not respond to a tool call")
					flushAndClose()
					return err
				}

			case upstream.Interrupted:
				if !interrupted {
					interrupted = true
					s.turnEpoch.Add(1)
					s.metrics.RecordInterruption()
					_ = s.sendJSONPriority(protocol.NewServerInterrupted())
					s.logger.Info("assistant interrupted by user", slog.String("session_id", s.sessionID))
				}
				state = turnUserSpeaking

			case upstream.TurnComplete:
				summary := reconciler.OnTurnComplete()
				if interrupted {
					interrupted = false
				} else {
					s.metrics.RecordTurn()
					_ = s.sendJSON(protocol.NewServerTurnComplete(handle))
				}
				state = turnIdle
				s.logger.Info("turn complete",
					slog.String("session_id", s.sessionID),
					slog.String("user_text", summary.User),
					slog.String("assistant_text", summary.Assistant))

			case upstream.Handle:
				handle = ev.ID
				_ = s.sendJSON(protocol.NewServerSessionID(ev.ID))

			case upstream.Closed:
				if ev.Err != nil {
					_ = s.sendSessionError("upstream_closed", "model session ended unexpectedly")
					flushAndClose()
					return fmt.Errorf("%w: %v", ErrUpstreamClosed, ev.Err)
				}
				flushAndClose()
				return nil
			}
		}
	}
}

func (s *LiveSession) handleClientFrame(us upstream.Session, frame inboundFrame, limiter *inboundAudioLimiter, state *turnState) error {
	if frame.messageType != websocket.TextMessage {
		_ = s.sendSessionError("bad_request", "binary frames are not supported")
		return nil
	}
	msg, err := protocol.DecodeClientMessage(frame.data)
	if err != nil {
		var decErr *protocol.DecodeError
		if errors.As(err, &decErr) {
			_ = s.sendSessionError(decErr.Code, decErr.Message)
		} else {
			_ = s.sendSessionError("bad_request", "invalid frame")
		}
		return nil
	}

	switch msg := msg.(type) {
	case protocol.ClientAudio:
		pcm, err := audio.DecodeTransport(msg.Data)
		if err != nil {
			s.metrics.RecordMalformedFrame()
			s.logger.Warn("dropping malformed audio frame", slog.String("session_id", s.sessionID))
			return nil
		}
		if s.cfg.MaxAudioFrameBytes > 0 && len(pcm) > s.cfg.MaxAudioFrameBytes {
			_ = s.sendSessionError("frame_too_large", "audio frame exceeds limit")
			return nil
		}
		if !limiter.Allow(len(pcm)) {
			s.logger.Warn("dropping audio frame over inbound rate limit", slog.String("session_id", s.sessionID))
			return nil
		}
		if *state == turnModelSpeaking {
			s.logger.Debug("user audio while assistant speaking", slog.String("session_id", s.sessionID))
		} else {
			*state = turnUserSpeaking
		}
		if err := us.SendAudio(pcm); err != nil {
			return fmt.Errorf("forward audio: %w", err)
		}
		s.metrics.RecordAudio("in", len(pcm))
		return nil

	case protocol.ClientText:
		*state = turnUserSpeaking
		if err := us.SendText(msg.Data); err != nil {
			return fmt.Errorf("forward text: %w", err)
		}
		return nil

	case protocol.ClientVideo:
		jpeg, err := base64.StdEncoding.DecodeString(msg.Data)
		if err != nil {
			s.metrics.RecordMalformedFrame()
			s.logger.Warn("dropping malformed video frame", slog.String("session_id", s.sessionID))
			return nil
		}
		s.logger.Debug("forwarding video frame", slog.String("session_id", s.sessionID), slog.String("mode", msg.Mode))
		if err := us.SendVideo(jpeg); err != nil {
			return fmt.Errorf("forward video: %w", err)
		}
		return nil

	case protocol.ClientEnd:
		s.logger.Info("client ended input stream", slog.String("session_id", s.sessionID))
		return nil

	default:
		return nil
	}
}

func (s *LiveSession) handleToolCall(us upstream.Session, call upstream.ToolCall) error {
	if s.tools == nil || !s.tools.Has(call.Name) {
		s.metrics.RecordToolCall(call.Name, "unknown")
		s.logger.Warn("model requested unknown tool",
			slog.String("session_id", s.sessionID),
			slog.String("tool", call.Name))
		return us.SendToolResponse(call.ID, call.Name, map[string]any{"error": "unknown tool"})
	}

	envelope, result, err := s.tools.Execute(call.Name, call.Args)
	if err != nil {
		s.metrics.RecordToolCall(call.Name, "error")
		s.logger.Warn("tool call failed",
			slog.String("session_id", s.sessionID),
			slog.String("tool", call.Name),
			slog.Any("error", err))
		return us.SendToolResponse(call.ID, call.Name, result)
	}

	s.metrics.RecordToolCall(call.Name, "ok")
	if err := s.sendJSON(envelope); err != nil {
		s.logger.Warn("dropping ui envelope on backpressure",
			slog.String("session_id", s.sessionID),
			slog.String("tool", call.Name))
	}
	return us.SendToolResponse(call.ID, call.Name, result)
}

func (s *LiveSession) readLoop(out chan<- inboundFrame) {
	defer close(out)
	for {
		messageType, data, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case out <- inboundFrame{err: err}:
			case <-s.ctx.Done():
			}
			return
		}
		select {
		case out <- inboundFrame{messageType: messageType, data: data}:
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *LiveSession) isStaleEpoch(epoch uint64) bool {
	return epoch < s.turnEpoch.Load()
}

func (s *LiveSession) sendAssistantAudio(pcm []byte) error {
	payload, err := json.Marshal(protocol.NewServerAudio(audio.EncodeTransport(pcm)))
	if err != nil {
		return err
	}
	return s.enqueueNormal(outboundFrame{
		payload:          payload,
		isAssistantAudio: true,
		turnEpoch:        s.turnEpoch.Load(),
	})
}

func (s *LiveSession) sendSessionError(code, message string) error {
	return s.sendJSONPriority(protocol.NewServerError(code, message))
}

func (s *LiveSession) sendJSON(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.enqueueNormal(outboundFrame{payload: payload})
}

func (s *LiveSession) sendJSONPriority(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.enqueuePriority(outboundFrame{payload: payload})
}

func (s *LiveSession) enqueueNormal(frame outboundFrame) error {
	if frame.isAssistantAudio && s.isStaleEpoch(frame.turnEpoch) {
		return nil
	}
	select {
	case s.outboundNormal <- frame:
		return nil
	default:
		return errBackpressure
	}
}

func (s *LiveSession) enqueuePriority(frame outboundFrame) error {
	for i := 0; i < 4; i++ {
		select {
		case s.outboundPriority <- frame:
			return nil
		default:
		}
		select {
		case <-s.outboundPriority:
		default:
		}
	}
	select {
	case s.outboundPriority <- frame:
		return nil
	default:
		return errBackpressure
	}
}

// writeDirectError is used before the writer goroutine exists, when the
// upstream dial fails and the session never really starts.
func (s *LiveSession) writeDirectError(code, message string) {
	payload, err := json.Marshal(protocol.NewServerError(code, message))
	if err != nil {
		return
	}
	writeTimeout := s.cfg.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Second
	}
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	_ = s.conn.WriteMessage(websocket.TextMessage, payload)
	_ = s.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseInternalServerErr, ""), time.Now().Add(writeTimeout))
	_ = s.conn.Close()
}
