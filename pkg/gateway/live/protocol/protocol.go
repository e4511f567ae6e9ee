// Package protocol defines the JSON envelope vocabulary exchanged over a
// live voice WebSocket. Every frame in either direction is a JSON object
// with a "type" discriminator; client frames are decoded and validated by
// DecodeClientMessage, server frames are plain structs serialized by the
// session writer.
package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	// PCM shape of inbound microphone audio.
	InputSampleRateHz = 16000
	// PCM shape of outbound assistant audio.
	OutputSampleRateHz = 24000

	Channels = 1
)

type DecodeError struct {
	Code    string
	Message string
	Param   string
}

func (e *DecodeError) Error() string {
	if e == nil {
		return ""
	}
	if strings.TrimSpace(e.Param) == "" {
		return e.Message
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Param)
}

func badRequest(message, param string) *DecodeError {
	return &DecodeError{Code: "bad_request", Message: message, Param: param}
}

func unsupported(message, param string) *DecodeError {
	return &DecodeError{Code: "unsupported", Message: message, Param: param}
}

// ClientAudio carries one microphone frame: base64-encoded 16 kHz mono
// little-endian PCM16.
type ClientAudio struct {
	Type string `json:"type"`
	Data string `json:"data"`
}

// ClientText carries a typed user message sent alongside or instead of voice.
type ClientText struct {
	Type string `json:"type"`
	Data string `json:"data"`
}

// ClientVideo carries one base64 JPEG frame from the webcam or a screen share.
type ClientVideo struct {
	Type string `json:"type"`
	Data string `json:"data"`
	Mode string `json:"mode,omitempty"`
}

// ClientEnd signals that the client has stopped capturing for this utterance.
type ClientEnd struct {
	Type string `json:"type"`
}

// DecodeClientMessage parses and validates one inbound frame. The returned
// value is one of the Client* envelope types; errors are *DecodeError.
func DecodeClientMessage(data []byte) (any, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, badRequest("invalid json frame", "")
	}
	typ := strings.TrimSpace(envelope.Type)
	if typ == "" {
		return nil, badRequest("missing type", "type")
	}

	switch typ {
	case "audio":
		var msg ClientAudio
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid audio frame", "")
		}
		if strings.TrimSpace(msg.Data) == "" {
			return nil, badRequest("audio.data is required", "data")
		}
		return msg, nil
	case "text":
		var msg ClientText
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid text frame", "")
		}
		if strings.TrimSpace(msg.Data) == "" {
			return nil, badRequest("text.data is required", "data")
		}
		return msg, nil
	case "video":
		var msg ClientVideo
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid video frame", "")
		}
		if strings.TrimSpace(msg.Data) == "" {
			return nil, badRequest("video.data is required", "data")
		}
		if msg.Mode == "" {
			msg.Mode = "webcam"
		}
		return msg, nil
	case "end":
		var msg ClientEnd
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid end frame", "")
		}
		return msg, nil
	default:
		return nil, unsupported("unsupported message type", "type")
	}
}

// ServerAudio carries one assistant audio chunk: base64-encoded 24 kHz mono
// little-endian PCM16, played strictly in arrival order.
type ServerAudio struct {
	Type string `json:"type"`
	Data string `json:"data"`
}

// ServerText carries an assistant transcript fragment. Final marks the
// fragment that completes the current assistant message; everything before
// it is a provisional delta the client may overwrite.
type ServerText struct {
	Type  string `json:"type"`
	Data  string `json:"data"`
	Final bool   `json:"final"`
}

// ServerUserTranscript mirrors ServerText for the user's own speech.
type ServerUserTranscript struct {
	Type  string `json:"type"`
	Data  string `json:"data"`
	Final bool   `json:"final"`
}

// ServerTurnComplete marks the end of an assistant turn. SessionID carries
// the current resumption handle so the client can reconnect mid-conversation.
type ServerTurnComplete struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id,omitempty"`
}

// ServerInterrupted tells the client to discard buffered assistant audio
// because the user barged in.
type ServerInterrupted struct {
	Type string `json:"type"`
	Data string `json:"data"`
}

// ServerSessionID announces a new resumption handle as soon as the upstream
// grants one.
type ServerSessionID struct {
	Type string `json:"type"`
	Data string `json:"data"`
}

// ServerUI carries a display-tool payload. Type is one of "ui_content",
// "ui_card" or "ui_list"; Data is the tool-specific object.
type ServerUI struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

type ServerError struct {
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

func NewServerAudio(b64 string) ServerAudio {
	return ServerAudio{Type: "audio", Data: b64}
}

func NewServerText(text string, final bool) ServerText {
	return ServerText{Type: "text", Data: text, Final: final}
}

func NewServerUserTranscript(text string, final bool) ServerUserTranscript {
	return ServerUserTranscript{Type: "user_transcript", Data: text, Final: final}
}

func NewServerTurnComplete(sessionID string) ServerTurnComplete {
	return ServerTurnComplete{Type: "turn_complete", SessionID: sessionID}
}

func NewServerInterrupted() ServerInterrupted {
	return ServerInterrupted{Type: "interrupted", Data: "Response interrupted by user input"}
}

func NewServerSessionID(id string) ServerSessionID {
	return ServerSessionID{Type: "session_id", Data: id}
}

func NewServerError(code, message string) ServerError {
	return ServerError{Type: "error", Code: code, Message: message}
}
