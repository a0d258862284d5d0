package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-livevoice/pkg/i18n"
	"github.com/teslashibe/go-livevoice/pkg/live"
	"github.com/teslashibe/go-livevoice/pkg/metrics"
	"github.com/teslashibe/go-livevoice/pkg/transcript"
)

type fakeController struct {
	started  int
	stopped  int
	muted    bool
	startErr error
	stopErr  error
}

func (f *fakeController) Start(ctx context.Context) error {
	f.started++
	return f.startErr
}

func (f *fakeController) Stop() error {
	f.stopped++
	return f.stopErr
}

func (f *fakeController) SetMuted(muted bool) error {
	f.muted = muted
	return nil
}

func (f *fakeController) ToggleMute() (bool, error) {
	f.muted = !f.muted
	return f.muted, nil
}

func decode(t *testing.T, body io.Reader, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(body).Decode(v))
}

func TestServer_Status(t *testing.T) {
	s := NewServer(Config{Lang: i18n.Arabic}, nil, nil)

	s.StatusChanged(live.Snapshot{ID: "abc", Status: live.StatusListening})

	resp, err := s.App().Test(httptest.NewRequest("GET", "/api/status", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	var got map[string]any
	decode(t, resp.Body, &got)
	assert.Equal(t, "abc", got["id"])
	assert.Equal(t, "listening", got["status"])
	assert.Equal(t, "عم بسمع", got["label"])
	assert.Equal(t, true, got["rtl"])
}

func TestServer_Transcript(t *testing.T) {
	s := NewServer(Config{}, nil, nil)
	s.Transcript([]transcript.Turn{
		{ID: "1", Role: transcript.RoleUser, Text: "كيفك"},
		{ID: "2", Role: transcript.RoleModel, Text: "مرحبا بك"},
	})

	resp, err := s.App().Test(httptest.NewRequest("GET", "/api/transcript", nil))
	require.NoError(t, err)

	var got TranscriptView
	decode(t, resp.Body, &got)
	require.Len(t, got.Turns, 2)
	assert.Equal(t, "مرحبا بك", got.Turns[1].Text)
}

func TestServer_SessionControls(t *testing.T) {
	ctrl := &fakeController{}
	s := NewServer(Config{Lang: i18n.English}, ctrl, nil)
	app := s.App()

	tests := []struct {
		name   string
		path   string
		body   string
		status int
		check  func(t *testing.T)
	}{
		{"start", "/api/session/start", "", 200, func(t *testing.T) { assert.Equal(t, 1, ctrl.started) }},
		{"toggle mute", "/api/session/mute", "", 200, func(t *testing.T) { assert.True(t, ctrl.muted) }},
		{"explicit unmute", "/api/session/mute", `{"muted":false}`, 200, func(t *testing.T) { assert.False(t, ctrl.muted) }},
		{"bad body", "/api/session/mute", `{`, 400, nil},
		{"stop", "/api/session/stop", "", 200, func(t *testing.T) { assert.Equal(t, 1, ctrl.stopped) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", tt.path, strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")

			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
			if tt.check != nil {
				tt.check(t)
			}
		})
	}
}

func TestServer_StartFailure(t *testing.T) {
	ctrl := &fakeController{startErr: &live.Error{Kind: live.KindDevice, Err: errors.New("denied")}}
	s := NewServer(Config{Lang: i18n.English}, ctrl, nil)

	resp, err := s.App().Test(httptest.NewRequest("POST", "/api/session/start", nil))
	require.NoError(t, err)
	assert.Equal(t, 502, resp.StatusCode)

	var got map[string]string
	decode(t, resp.Body, &got)
	assert.Equal(t, "Microphone permission is required for live voice.", got["label"])
}

func TestServer_StopWithoutSession(t *testing.T) {
	s := NewServer(Config{}, &fakeController{stopErr: live.ErrNotStarted}, nil)

	resp, err := s.App().Test(httptest.NewRequest("POST", "/api/session/stop", nil))
	require.NoError(t, err)
	assert.Equal(t, 409, resp.StatusCode)
}

func TestServer_ReadOnly(t *testing.T) {
	s := NewServer(Config{}, nil, nil)

	resp, err := s.App().Test(httptest.NewRequest("POST", "/api/session/start", nil))
	require.NoError(t, err)
	assert.Equal(t, 501, resp.StatusCode)
}

func TestServer_Metrics(t *testing.T) {
	m := metrics.New()
	m.SessionStarted()
	s := NewServer(Config{Metrics: m.Handler()}, nil, nil)

	resp, err := s.App().Test(httptest.NewRequest("GET", "/metrics", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "livevoice_sessions_started_total 1")
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SessionsStarted))
}

func TestServer_WebsocketRequiresUpgrade(t *testing.T) {
	s := NewServer(Config{}, nil, nil)

	resp, err := s.App().Test(httptest.NewRequest("GET", "/ws/status", nil))
	require.NoError(t, err)
	assert.Equal(t, 426, resp.StatusCode)
}
