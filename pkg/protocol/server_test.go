package protocol

import (
	"testing"
)

func TestParseServerMessage(t *testing.T) {
	tests := []struct {
		name  string
		data  string
		check func(t *testing.T, m *ServerMessage)
	}{
		{
			name: "setup complete",
			data: `{"setupComplete":{}}`,
			check: func(t *testing.T, m *ServerMessage) {
				if !m.SetupComplete {
					t.Error("Expected SetupComplete")
				}
				if m.Content != nil {
					t.Error("Expected no content")
				}
			},
		},
		{
			name: "interrupted",
			data: `{"serverContent":{"interrupted":true}}`,
			check: func(t *testing.T, m *ServerMessage) {
				if !m.Interrupted() {
					t.Error("Expected Interrupted")
				}
			},
		},
		{
			name: "transcriptions in server content",
			data: `{"serverContent":{"inputTranscription":{"text":"hi"},"outputTranscription":{"text":"hello"}}}`,
			check: func(t *testing.T, m *ServerMessage) {
				if m.InputTranscription == nil || m.InputTranscription.Text != "hi" {
					t.Errorf("InputTranscription = %+v", m.InputTranscription)
				}
				if m.OutputTranscription == nil || m.OutputTranscription.Text != "hello" {
					t.Errorf("OutputTranscription = %+v", m.OutputTranscription)
				}
			},
		},
		{
			name: "top level transcription",
			data: `{"outputTranscription":{"text":"top"}}`,
			check: func(t *testing.T, m *ServerMessage) {
				if m.OutputTranscription == nil || m.OutputTranscription.Text != "top" {
					t.Errorf("OutputTranscription = %+v", m.OutputTranscription)
				}
			},
		},
		{
			name: "empty transcription ignored",
			data: `{"serverContent":{"inputTranscription":{"text":""}}}`,
			check: func(t *testing.T, m *ServerMessage) {
				if m.InputTranscription != nil {
					t.Errorf("Expected nil, got %+v", m.InputTranscription)
				}
			},
		},
		{
			name: "inline audio and text parts",
			data: `{"serverContent":{"modelTurn":{"parts":[
				{"inlineData":{"data":"AAA=","mimeType":"audio/pcm;rate=24000"}},
				{"text":"hello"}]}}}`,
			check: func(t *testing.T, m *ServerMessage) {
				parts := m.Parts()
				if len(parts) != 2 {
					t.Fatalf("Expected 2 parts, got %d", len(parts))
				}
				if !parts[0].HasAudio() || parts[0].MIMEType != "audio/pcm;rate=24000" {
					t.Errorf("part 0 = %+v", parts[0])
				}
				if parts[1].HasAudio() || parts[1].Text != "hello" {
					t.Errorf("part 1 = %+v", parts[1])
				}
			},
		},
		{
			name: "alternate part spellings",
			data: `{"serverContent":{"modelTurn":{"parts":[
				{"inline_data":{"data":"AQ==","mime_type":"audio/pcm;rate=16000"}},
				{"audio":{"data":"Ag=="}},
				{"audioData":"Aw==","type":"audio/pcm"},
				"junk"]}}}`,
			check: func(t *testing.T, m *ServerMessage) {
				parts := m.Parts()
				if len(parts) != 3 {
					t.Fatalf("Expected 3 parts, got %d", len(parts))
				}
				if parts[0].Audio != "AQ==" || parts[0].MIMEType != "audio/pcm;rate=16000" {
					t.Errorf("part 0 = %+v", parts[0])
				}
				if parts[1].Audio != "Ag==" {
					t.Errorf("part 1 = %+v", parts[1])
				}
				if parts[2].Audio != "Aw==" || parts[2].MIMEType != "audio/pcm" {
					t.Errorf("part 2 = %+v", parts[2])
				}
			},
		},
		{
			name: "turn complete",
			data: `{"serverContent":{"turnComplete":true}}`,
			check: func(t *testing.T, m *ServerMessage) {
				if !m.TurnDone() {
					t.Error("Expected TurnDone")
				}
			},
		},
		{
			name: "generation complete",
			data: `{"serverContent":{"generationComplete":true}}`,
			check: func(t *testing.T, m *ServerMessage) {
				if !m.TurnDone() {
					t.Error("Expected TurnDone")
				}
			},
		},
		{
			name: "unknown message",
			data: `{"usageMetadata":{"totalTokenCount":5}}`,
			check: func(t *testing.T, m *ServerMessage) {
				if m.SetupComplete || m.Content != nil || m.TurnDone() || m.Interrupted() {
					t.Errorf("Expected empty message, got %+v", m)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := ParseServerMessage([]byte(tt.data))
			if err != nil {
				t.Fatalf("ParseServerMessage() error = %v", err)
			}
			tt.check(t, m)
		})
	}
}

func TestParseServerMessage_Malformed(t *testing.T) {
	for _, data := range []string{"", "{", "not json", `["array"]`} {
		if _, err := ParseServerMessage([]byte(data)); err == nil {
			t.Errorf("Expected error for %q", data)
		}
	}
}
