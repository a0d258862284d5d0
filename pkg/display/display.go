// Package display renders session status and finalized turns to a
// terminal.
package display

import (
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/teslashibe/go-livevoice/pkg/i18n"
	"github.com/teslashibe/go-livevoice/pkg/live"
	"github.com/teslashibe/go-livevoice/pkg/transcript"
)

var (
	connectingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#B58900"))
	listeningStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#859900"))
	speakingStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#268BD2")).Bold(true)
	mutedStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	errorStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#DC322F")).Bold(true)
	userStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#87CEEB"))
	modelStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFA07A"))
	faintStyle      = lipgloss.NewStyle().Faint(true)
)

// Terminal is a live.Observer printing one line per status change and
// one line per finalized turn.
type Terminal struct {
	w    io.Writer
	lang i18n.Lang

	mu        sync.Mutex
	lastLabel string
	printed   map[string]bool
}

// New creates a Terminal writing to w.
func New(w io.Writer, lang i18n.Lang) *Terminal {
	return &Terminal{
		w:       w,
		lang:    lang,
		printed: make(map[string]bool),
	}
}

// StatusChanged implements live.Observer.
func (t *Terminal) StatusChanged(s live.Snapshot) {
	label := i18n.StatusLabel(t.lang, s)

	t.mu.Lock()
	defer t.mu.Unlock()

	if label == "" || label == t.lastLabel {
		return
	}
	t.lastLabel = label
	fmt.Fprintln(t.w, statusStyle(s.Status).Render("● "+label))
}

// Error implements live.Observer. The error text itself is shown by the
// status line.
func (t *Terminal) Error(e *live.Error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintln(t.w, faintStyle.Render(e.Error()))
}

// Transcript implements live.Observer.
func (t *Terminal) Transcript(turns []transcript.Turn) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, turn := range turns {
		if !turn.Finalized || t.printed[turn.ID] {
			continue
		}
		t.printed[turn.ID] = true

		style := modelStyle
		if turn.Role == transcript.RoleUser {
			style = userStyle
		}
		fmt.Fprintf(t.w, "%s %s\n", style.Render(string(turn.Role)+":"), turn.Text)
	}
}

func statusStyle(s live.Status) lipgloss.Style {
	switch s {
	case live.StatusConnecting:
		return connectingStyle
	case live.StatusListening:
		return listeningStyle
	case live.StatusSpeaking:
		return speakingStyle
	case live.StatusMuted:
		return mutedStyle
	case live.StatusError:
		return errorStyle
	default:
		return lipgloss.NewStyle()
	}
}

var _ live.Observer = (*Terminal)(nil)
