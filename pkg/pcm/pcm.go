// Package pcm converts between float audio samples, 16-bit signed PCM and
// the base64 transport encoding used by the Live protocol.
package pcm

import (
	"encoding/base64"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// DefaultOutputRate is assumed for inline audio whose MIME type carries no rate.
const DefaultOutputRate = 24000

var rateRe = regexp.MustCompile(`rate=(\d+)`)

// FloatToPCM16 converts normalized float samples to PCM16.
// Values outside [-1, 1] are clamped, so 1.0 maps to 32767 and -1.0 to -32768.
func FloatToPCM16(samples []float32) []int16 {
	out := make([]int16, len(samples))
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		if s < 0 {
			out[i] = int16(s * 0x8000)
		} else {
			out[i] = int16(s * 0x7fff)
		}
	}
	return out
}

// PCM16ToFloat converts PCM16 samples to floats in [-1, 1).
func PCM16ToFloat(samples []int16) []float32 {
	out := make([]float32, len(samples))
	for i, s := range samples {
		out[i] = float32(s) / 32768
	}
	return out
}

// Int16ToBytes packs samples as little-endian bytes.
func Int16ToBytes(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		buf[i*2] = byte(s)
		buf[i*2+1] = byte(s >> 8)
	}
	return buf
}

// BytesToInt16 unpacks little-endian bytes. A trailing odd byte is ignored.
func BytesToInt16(data []byte) []int16 {
	out := make([]int16, len(data)/2)
	for i := range out {
		out[i] = int16(data[i*2]) | int16(data[i*2+1])<<8
	}
	return out
}

// EncodeBase64 encodes bytes with the standard base64 alphabet.
func EncodeBase64(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

// DecodeBase64 decodes standard base64, accepting a data URL prefix
// such as "data:audio/pcm;base64,".
func DecodeBase64(s string) ([]byte, error) {
	if i := strings.Index(s, "base64,"); i >= 0 {
		s = s[i+len("base64,"):]
	}
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("pcm: decode base64: %w", err)
	}
	return b, nil
}

// EncodeFloat converts float samples all the way to the wire representation.
func EncodeFloat(samples []float32) string {
	return EncodeBase64(Int16ToBytes(FloatToPCM16(samples)))
}

// DecodeAudio turns a base64 payload into PCM16 samples.
func DecodeAudio(data string) ([]int16, error) {
	b, err := DecodeBase64(data)
	if err != nil {
		return nil, err
	}
	return BytesToInt16(b), nil
}

// RateFromMIME extracts the rate parameter from a MIME type like
// "audio/pcm;rate=24000". It returns fallback when no rate is present.
func RateFromMIME(mime string, fallback int) int {
	m := rateRe.FindStringSubmatch(mime)
	if m == nil {
		return fallback
	}
	rate, err := strconv.Atoi(m[1])
	if err != nil || rate <= 0 {
		return fallback
	}
	return rate
}

// MIMEType returns the PCM MIME type for the given rate.
func MIMEType(rate int) string {
	return "audio/pcm;rate=" + strconv.Itoa(rate)
}

// IsAudioMIME reports whether mime names an audio payload.
func IsAudioMIME(mime string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(mime)), "audio/")
}
