package i18n

import (
	"testing"

	"github.com/teslashibe/go-livevoice/pkg/live"
)

func TestStatusLabel(t *testing.T) {
	tests := []struct {
		name string
		lang Lang
		snap live.Snapshot
		want string
	}{
		{"error wins", English, live.Snapshot{Status: live.StatusError, ErrorKind: live.KindTransport}, "Connection failed."},
		{"device error", English, live.Snapshot{Status: live.StatusError, ErrorKind: live.KindDevice}, "Microphone permission is required for live voice."},
		{"connecting", English, live.Snapshot{Status: live.StatusConnecting}, "Connecting..."},
		{"speaking while muted", English, live.Snapshot{Status: live.StatusSpeaking, Muted: true}, "Speaking"},
		{"muted", English, live.Snapshot{Status: live.StatusMuted, Muted: true}, "Muted"},
		{"listening", English, live.Snapshot{Status: live.StatusListening}, "Listening"},
		{"ready", English, live.Snapshot{Status: live.StatusReady}, "Ready"},
		{"idle", English, live.Snapshot{Status: live.StatusIdle}, ""},
		{"closed", English, live.Snapshot{Status: live.StatusClosed}, ""},
		{"arabic connecting", Arabic, live.Snapshot{Status: live.StatusConnecting}, "جار الاتصال..."},
		{"arabic listening", Arabic, live.Snapshot{Status: live.StatusListening}, "عم بسمع"},
		{"arabic speaking", Arabic, live.Snapshot{Status: live.StatusSpeaking}, "عم بحكي"},
		{"arabic muted", Arabic, live.Snapshot{Status: live.StatusMuted}, "صوتك مكتوم"},
		{"arabic ready", Arabic, live.Snapshot{Status: live.StatusReady}, "جاهز"},
		{"arabic error", Arabic, live.Snapshot{Status: live.StatusError, ErrorKind: live.KindCredential}, "حدث خطأ في الاتصال."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StatusLabel(tt.lang, tt.snap); got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestMessage_FallsBackToEnglish(t *testing.T) {
	if got := Message(Arabic, KeyMic); got != catalog[English][KeyMic] {
		t.Errorf("Expected English fallback, got %q", got)
	}
	if got := Message(Lang("fr"), KeyReady); got != "Ready" {
		t.Errorf("Expected Ready, got %q", got)
	}
}

func TestParse(t *testing.T) {
	tests := map[string]Lang{
		"en":    English,
		"EN-us": English,
		"ar_JO": Arabic,
		"":      Default,
		"de":    Default,
	}
	for in, want := range tests {
		if got := Parse(in); got != want {
			t.Errorf("Parse(%q): expected %q, got %q", in, want, got)
		}
	}
}
