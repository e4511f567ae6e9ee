// Package sdk is a Go client for the voicegate live endpoint. It speaks the
// gateway's JSON envelope protocol over a WebSocket and pairs with the
// capture and playback helpers for terminal clients.
package sdk

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/navigo-ai/voicegate/pkg/audio"
	"github.com/navigo-ai/voicegate/pkg/gateway/live/protocol"
)

// Handlers carry the client-side callbacks for server events. Nil entries are
// skipped. Callbacks run on the client's read goroutine; do not block in them.
type Handlers struct {
	OnAudio          func(pcm []byte)
	OnText           func(text string, final bool)
	OnUserTranscript func(text string, final bool)
	OnTurnComplete   func(sessionID string)
	OnInterrupted    func()
	OnSessionID      func(id string)
	OnUI             func(kind string, data map[string]any)
	OnError          func(code, message string)
	OnClose          func(err error)
}

// Client is a live session handle. Safe for concurrent sends.
type Client struct {
	conn     *websocket.Conn
	handlers Handlers

	writeMu   sync.Mutex
	closeOnce sync.Once
	done      chan struct{}
}

// Dial connects to a gateway live endpoint. Accepts ws://, wss://, http:// or
// https:// URLs; HTTP schemes are rewritten to their WebSocket equivalents.
func Dial(ctx context.Context, rawURL string, handlers Handlers) (*Client, error) {
	wsURL, err := normalizeWSURL(rawURL)
	if err != nil {
		return nil, err
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", wsURL, err)
	}

	c := &Client{
		conn:     conn,
		handlers: handlers,
		done:     make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

func normalizeWSURL(rawURL string) (string, error) {
	rawURL = strings.TrimSpace(rawURL)
	switch {
	case rawURL == "":
		return "", fmt.Errorf("url is required")
	case strings.HasPrefix(rawURL, "ws://"), strings.HasPrefix(rawURL, "wss://"):
		return rawURL, nil
	case strings.HasPrefix(rawURL, "http://"):
		return "ws" + strings.TrimPrefix(rawURL, "http"), nil
	case strings.HasPrefix(rawURL, "https://"):
		return "wss" + strings.TrimPrefix(rawURL, "https"), nil
	default:
		return "", fmt.Errorf("unsupported url scheme in %q", rawURL)
	}
}

// SendAudio sends one microphone frame of 16 kHz mono PCM16.
func (c *Client) SendAudio(pcm []byte) error {
	return c.writeJSON(protocol.ClientAudio{Type: "audio", Data: audio.EncodeTransport(pcm)})
}

// SendText sends a typed user message.
func (c *Client) SendText(text string) error {
	return c.writeJSON(protocol.ClientText{Type: "text", Data: text})
}

// SendVideo sends one JPEG frame. Mode defaults to "webcam" server-side.
func (c *Client) SendVideo(jpeg []byte, mode string) error {
	return c.writeJSON(protocol.ClientVideo{Type: "video", Data: audio.EncodeTransport(jpeg), Mode: mode})
}

// SendEnd marks the end of the current user utterance.
func (c *Client) SendEnd() error {
	return c.writeJSON(protocol.ClientEnd{Type: "end"})
}

func (c *Client) writeJSON(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(v)
}

// Close tears down the connection. Safe to call more than once.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		err = c.conn.Close()
	})
	return err
}

// Done is closed when the read loop exits.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) readLoop() {
	defer close(c.done)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if c.handlers.OnClose != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					c.handlers.OnClose(nil)
				} else {
					c.handlers.OnClose(err)
				}
			}
			return
		}
		c.dispatch(data)
	}
}

func (c *Client) dispatch(data []byte) {
	var env struct {
		Type      string          `json:"type"`
		Data      json.RawMessage `json:"data"`
		Final     bool            `json:"final"`
		SessionID string          `json:"session_id"`
		Code      string          `json:"code"`
		Message   string          `json:"message"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return
	}

	switch env.Type {
	case "audio":
		if c.handlers.OnAudio == nil {
			return
		}
		var b64 string
		if json.Unmarshal(env.Data, &b64) != nil {
			return
		}
		pcm, err := audio.DecodeTransport(b64)
		if err != nil {
			return
		}
		c.handlers.OnAudio(pcm)
	case "text":
		if c.handlers.OnText == nil {
			return
		}
		var text string
		if json.Unmarshal(env.Data, &text) != nil {
			return
		}
		c.handlers.OnText(text, env.Final)
	case "user_transcript":
		if c.handlers.OnUserTranscript == nil {
			return
		}
		var text string
		if json.Unmarshal(env.Data, &text) != nil {
			return
		}
		c.handlers.OnUserTranscript(text, env.Final)
	case "turn_complete":
		if c.handlers.OnTurnComplete != nil {
			c.handlers.OnTurnComplete(env.SessionID)
		}
	case "interrupted":
		if c.handlers.OnInterrupted != nil {
			c.handlers.OnInterrupted()
		}
	case "session_id":
		if c.handlers.OnSessionID == nil {
			return
		}
		var id string
		if json.Unmarshal(env.Data, &id) != nil {
			return
		}
		c.handlers.OnSessionID(id)
	case "ui_content", "ui_card", "ui_list":
		if c.handlers.OnUI == nil {
			return
		}
		var payload map[string]any
		if json.Unmarshal(env.Data, &payload) != nil {
			return
		}
		c.handlers.OnUI(env.Type, payload)
	case "error":
		if c.handlers.OnError != nil {
			c.handlers.OnError(env.Code, env.Message)
		}
	}
}
