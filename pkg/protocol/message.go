// Package protocol defines the frames exchanged with the Gemini Live
// BidiGenerateContent websocket.
package protocol

import (
	"encoding/json"
	"strings"

	"google.golang.org/genai"
)

// DefaultModel is the native-audio Live model.
const DefaultModel = "gemini-2.5-flash-native-audio-preview-12-2025"

// InputRate is the sample rate the service expects for realtime audio.
const InputRate = 16000

// ModelName returns the resource name for model, adding the "models/"
// prefix when missing.
func ModelName(model string) string {
	if model == "" {
		model = DefaultModel
	}
	if strings.HasPrefix(model, "models/") {
		return model
	}
	return "models/" + model
}

// =============================================================================
// Client → Server
// =============================================================================

// SetupFrame opens the session. It must be the first frame sent.
type SetupFrame struct {
	Setup *genai.LiveClientSetup `json:"setup"`
}

// NewSetup requests audio responses, transcription of both directions and
// server-side voice activity detection. An empty instruction is omitted.
func NewSetup(model, instruction string) SetupFrame {
	setup := &genai.LiveClientSetup{
		Model: ModelName(model),
		GenerationConfig: &genai.GenerationConfig{
			ResponseModalities: []genai.Modality{genai.ModalityAudio},
		},
		InputAudioTranscription:  &genai.AudioTranscriptionConfig{},
		OutputAudioTranscription: &genai.AudioTranscriptionConfig{},
		RealtimeInputConfig: &genai.RealtimeInputConfig{
			AutomaticActivityDetection: &genai.AutomaticActivityDetection{},
		},
	}

	if instruction = strings.TrimSpace(instruction); instruction != "" {
		setup.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: instruction}},
		}
	}

	return SetupFrame{Setup: setup}
}

// Blob is base64 media with its MIME type.
type Blob struct {
	Data     string `json:"data"`
	MIMEType string `json:"mimeType"`
}

// RealtimeInput carries streamed user audio.
type RealtimeInput struct {
	Audio          *Blob `json:"audio,omitempty"`
	AudioStreamEnd bool  `json:"audioStreamEnd,omitempty"`
}

// RealtimeInputFrame wraps RealtimeInput.
type RealtimeInputFrame struct {
	RealtimeInput RealtimeInput `json:"realtimeInput"`
}

// NewAudioIn wraps one base64 PCM16 block.
func NewAudioIn(data, mimeType string) RealtimeInputFrame {
	return RealtimeInputFrame{RealtimeInput: RealtimeInput{
		Audio: &Blob{Data: data, MIMEType: mimeType},
	}}
}

// NewAudioStreamEnd marks the end of user audio.
func NewAudioStreamEnd() RealtimeInputFrame {
	return RealtimeInputFrame{RealtimeInput: RealtimeInput{AudioStreamEnd: true}}
}

// Encode marshals a frame to JSON.
func Encode(frame any) ([]byte, error) {
	return json.Marshal(frame)
}
