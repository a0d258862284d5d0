// Package i18n holds the user-facing strings of the voice client.
package i18n

import (
	"strings"

	"github.com/teslashibe/go-livevoice/pkg/live"
)

// Lang is a UI language code.
type Lang string

const (
	English Lang = "en"
	Arabic  Lang = "ar"

	// Default is the language the app ships in.
	Default = Arabic
)

// Key names a message.
type Key string

const (
	KeyConnecting Key = "connecting"
	KeyListening  Key = "listening"
	KeySpeaking   Key = "speaking"
	KeyMuted      Key = "muted"
	KeyReady      Key = "ready"
	KeyError      Key = "error"
	KeyMic        Key = "mic"
	KeyTitle      Key = "title"
	KeySubtitle   Key = "subtitle"
	KeyEnd        Key = "end"
	KeyMute       Key = "mute"
	KeyUnmute     Key = "unmute"
)

var catalog = map[Lang]map[Key]string{
	English: {
		KeyConnecting: "Connecting...",
		KeyListening:  "Listening",
		KeySpeaking:   "Speaking",
		KeyMuted:      "Muted",
		KeyReady:      "Ready",
		KeyError:      "Connection failed.",
		KeyMic:        "Microphone permission is required for live voice.",
		KeyTitle:      "Live Voice",
		KeySubtitle:   "Speak and I will respond instantly.",
		KeyEnd:        "End",
		KeyMute:       "Mute",
		KeyUnmute:     "Unmute",
	},
	Arabic: {
		KeyConnecting: "جار الاتصال...",
		KeyListening:  "عم بسمع",
		KeySpeaking:   "عم بحكي",
		KeyMuted:      "صوتك مكتوم",
		KeyReady:      "جاهز",
		KeyError:      "حدث خطأ في الاتصال.",
		KeyTitle:      "محادثة لايف",
		KeySubtitle:   "احكي وانا برد فورا",
		KeyEnd:        "إنهاء",
		KeyMute:       "كتم",
		KeyUnmute:     "تشغيل",
	},
}

// Parse normalizes a language tag such as "ar-JO" or "EN". Unknown
// languages map to Default.
func Parse(tag string) Lang {
	if l := base(tag); Supported(string(l)) {
		return l
	}
	return Default
}

// Supported reports whether tag names a language with a catalog.
func Supported(tag string) bool {
	_, ok := catalog[base(tag)]
	return ok
}

func base(tag string) Lang {
	tag = strings.ToLower(strings.TrimSpace(tag))
	if i := strings.IndexAny(tag, "-_"); i >= 0 {
		tag = tag[:i]
	}
	return Lang(tag)
}

// Message returns the text for key, falling back to English.
func Message(lang Lang, key Key) string {
	if m, ok := catalog[lang]; ok {
		if s, ok := m[key]; ok {
			return s
		}
	}
	return catalog[English][key]
}

// RTL reports whether lang is written right to left.
func RTL(lang Lang) bool {
	return lang == Arabic
}

// StatusLabel returns the status line for a session. Errors win, then
// the handshake, then speaking, muted and listening. Sessions that are
// not running have no label.
func StatusLabel(lang Lang, s live.Snapshot) string {
	switch s.Status {
	case live.StatusError:
		return ErrorText(lang, s.ErrorKind)
	case live.StatusIdle, live.StatusClosed:
		return ""
	case live.StatusConnecting:
		return Message(lang, KeyConnecting)
	case live.StatusSpeaking:
		return Message(lang, KeySpeaking)
	case live.StatusMuted:
		return Message(lang, KeyMuted)
	case live.StatusListening:
		return Message(lang, KeyListening)
	default:
		return Message(lang, KeyReady)
	}
}

// ErrorText returns the message shown for a session error of kind k.
func ErrorText(lang Lang, k live.Kind) string {
	if k == live.KindDevice {
		return Message(lang, KeyMic)
	}
	return Message(lang, KeyError)
}
