package protocol

import (
	"encoding/json"
	"fmt"
)

// Part is one model turn part: inline audio, text, or both.
type Part struct {
	Text     string
	Audio    string // base64
	MIMEType string
}

// HasAudio reports whether the part carries inline audio.
func (p Part) HasAudio() bool {
	return p.Audio != ""
}

// Transcription is a cumulative transcript fragment.
type Transcription struct {
	Text string
}

// ServerContent is the payload of a serverContent message.
type ServerContent struct {
	Interrupted        bool
	ModelTurn          []Part
	TurnComplete       bool
	GenerationComplete bool
}

// ServerMessage is one parsed frame from the service. Fields absent in
// the frame are left at their zero value.
type ServerMessage struct {
	SetupComplete bool

	// Content is nil unless the frame carried serverContent.
	Content *ServerContent

	// Transcriptions may arrive inside serverContent or at the top level.
	InputTranscription  *Transcription
	OutputTranscription *Transcription
}

// Interrupted reports whether the service cut off the current utterance.
func (m *ServerMessage) Interrupted() bool {
	return m.Content != nil && m.Content.Interrupted
}

// TurnDone reports whether the frame closes the current turn.
func (m *ServerMessage) TurnDone() bool {
	return m.Content != nil && (m.Content.TurnComplete || m.Content.GenerationComplete)
}

// Parts returns the model turn parts, if any.
func (m *ServerMessage) Parts() []Part {
	if m.Content == nil {
		return nil
	}
	return m.Content.ModelTurn
}

// ParseServerMessage decodes a frame. Unknown fields are ignored; only
// invalid JSON is an error.
func ParseServerMessage(data []byte) (*ServerMessage, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("protocol: parse server message: %w", err)
	}

	msg := &ServerMessage{}
	if _, ok := raw["setupComplete"]; ok {
		msg.SetupComplete = true
	}

	content, _ := raw["serverContent"].(map[string]any)
	if content != nil {
		msg.Content = &ServerContent{
			Interrupted:        boolField(content, "interrupted"),
			TurnComplete:       boolField(content, "turnComplete"),
			GenerationComplete: boolField(content, "generationComplete"),
		}
		if turn, ok := content["modelTurn"].(map[string]any); ok {
			if parts, ok := turn["parts"].([]any); ok {
				for _, p := range parts {
					pm, ok := p.(map[string]any)
					if !ok {
						continue
					}
					msg.Content.ModelTurn = append(msg.Content.ModelTurn, parsePart(pm))
				}
			}
		}
	}

	msg.InputTranscription = transcription(raw, content, "inputTranscription")
	msg.OutputTranscription = transcription(raw, content, "outputTranscription")

	return msg, nil
}

// transcription prefers the top-level field, then the serverContent one.
func transcription(raw, content map[string]any, key string) *Transcription {
	for _, m := range []map[string]any{raw, content} {
		if m == nil {
			continue
		}
		if t, ok := m[key].(map[string]any); ok {
			if text := stringField(t, "text"); text != "" {
				return &Transcription{Text: text}
			}
		}
	}
	return nil
}

// parsePart accepts the field spellings seen across protocol versions.
func parsePart(p map[string]any) Part {
	part := Part{Text: stringField(p, "text")}

	inline := mapField(p, "inlineData", "inline_data", "inline")
	if inline != nil {
		part.Audio = stringField(inline, "data")
		part.MIMEType = stringField(inline, "mimeType", "mime_type")
	}
	if part.Audio == "" {
		if audio, ok := p["audio"].(map[string]any); ok {
			part.Audio = stringField(audio, "data")
		}
	}
	if part.Audio == "" {
		part.Audio = stringField(p, "audioData", "data")
	}
	if part.MIMEType == "" {
		part.MIMEType = stringField(p, "mimeType", "type")
	}
	return part
}

func boolField(m map[string]any, key string) bool {
	b, _ := m[key].(bool)
	return b
}

func stringField(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func mapField(m map[string]any, keys ...string) map[string]any {
	for _, k := range keys {
		if v, ok := m[k].(map[string]any); ok {
			return v
		}
	}
	return nil
}
