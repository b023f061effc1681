package fpl

import (
	"bytes"
	"fmt"
	"strings"

	"condor_feed/internal/condor"
	"condor_feed/internal/wire"
)

// Signature bytes matched directly against the raw payload. Both are
// acknowledged best-effort: they match observed captures, not a verified
// protocol field, and must not be extended beyond literal reproduction.
var (
	// "Base" with its length prefix: the default weather zone name.
	sigWeatherBase = []byte("\x04Base")

	// 1500.0 as raw little-endian float32 bits; its presence anywhere in
	// the payload marks the default start height.
	sigStartHeight1500 = []byte{0x00, 0x80, 0xbb, 0x44}
)

// decodeSettings recovers the settings bundle from the 2f 00 datagram by
// scanning for every plausible length-prefixed string and pattern-matching
// over the collection. No fixed schema for this packet is known; the
// heuristics below mirror what offset analysis established empirically.
func decodeSettings(b []byte) (*Settings, error) {
	if len(b) < 4 {
		return nil, fmt.Errorf("settings datagram %d bytes: %w", len(b), condor.ErrTooShort)
	}

	strs := scanStrings(b, 4)

	s := &Settings{
		Description: longest(strs),
		PlaneClass:  pickPlaneClass(strs),
		WeatherZone: pickWeatherZone(b, strs),
	}
	if bytes.Contains(b, sigStartHeight1500) {
		s.StartHeightM = 1500
		s.HasStartHeight = true
	}
	return s, nil
}

// scanStrings collects every plausible length-prefixed ASCII string from
// off onward, stepping one byte at a time past anything that does not
// decode.
func scanStrings(b []byte, off int) []string {
	var strs []string
	c := wire.New(b)
	_ = c.Seek(off)
	for c.Remaining() > 0 {
		s, n, err := c.PeekLPString(1, 80)
		if err != nil {
			_ = c.Skip(1)
			continue
		}
		_ = c.Skip(n)
		strs = append(strs, s)
	}
	return strs
}

func longest(strs []string) string {
	best := ""
	for _, s := range strs {
		if len(s) > len(best) {
			best = s
		}
	}
	return best
}

// pickPlaneClass returns the first string that looks like a glider class
// name: class strings observed so far either contain a dash ("Club-A") or
// one of the class-family substrings.
func pickPlaneClass(strs []string) string {
	for _, s := range strs {
		lower := strings.ToLower(s)
		if strings.Contains(s, "-") ||
			strings.Contains(lower, "meter") ||
			strings.Contains(lower, "ms") ||
			strings.Contains(lower, "js") ||
			strings.Contains(lower, "as") {
			return s
		}
	}
	return ""
}

// pickWeatherZone prefers the literal "Base" signature, then an exact
// "Base" string, then the first short string in the bundle.
func pickWeatherZone(b []byte, strs []string) string {
	if bytes.Contains(b, sigWeatherBase) {
		return "Base"
	}
	for _, s := range strs {
		if strings.TrimSpace(s) == "Base" {
			return "Base"
		}
	}
	for _, s := range strs {
		if len(s) <= 8 {
			return s
		}
	}
	return ""
}
