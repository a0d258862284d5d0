package live

import (
	"encoding/json"
	"testing"
)

func TestStatus_Text(t *testing.T) {
	for s := StatusIdle; s <= StatusClosed; s++ {
		b, err := s.MarshalText()
		if err != nil {
			t.Fatalf("MarshalText(%d) failed: %v", s, err)
		}
		var got Status
		if err := got.UnmarshalText(b); err != nil {
			t.Fatalf("UnmarshalText(%q) failed: %v", b, err)
		}
		if got != s {
			t.Errorf("Expected %v, got %v", s, got)
		}
	}

	var s Status
	if err := s.UnmarshalText([]byte("bogus")); err == nil {
		t.Error("Expected error for unknown status")
	}
}

func TestSnapshot_JSON(t *testing.T) {
	b, err := json.Marshal(Snapshot{ID: "x", Status: StatusSpeaking, Muted: true})
	if err != nil {
		t.Fatal(err)
	}
	want := `{"id":"x","status":"speaking","muted":true}`
	if string(b) != want {
		t.Errorf("Expected %s, got %s", want, b)
	}
}

func TestStatus_Open(t *testing.T) {
	tests := []struct {
		status Status
		open   bool
	}{
		{StatusIdle, false},
		{StatusConnecting, false},
		{StatusReady, true},
		{StatusListening, true},
		{StatusSpeaking, true},
		{StatusMuted, true},
		{StatusError, false},
		{StatusClosed, false},
	}
	for _, tt := range tests {
		t.Run(tt.status.String(), func(t *testing.T) {
			if got := tt.status.Open(); got != tt.open {
				t.Errorf("Expected Open()=%v, got %v", tt.open, got)
			}
		})
	}
}
