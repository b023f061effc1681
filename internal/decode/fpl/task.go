package fpl

import (
	"bytes"
	"fmt"

	"condor_feed/internal/condor"
	"condor_feed/internal/wire"
)

// Turnpoint counts outside this range mean the primary offset parse landed
// in the wrong place and the fallback marker search should run instead.
const (
	minTurnpoints = 1
	maxTurnpoints = 64
)

// decodeTask parses the task datagram: a landscape name followed by a
// turnpoint count and that many turnpoint entries.
//
// The primary strategy reads the landscape string right after the 4-byte
// header. Some captures carry extra leading bytes that break that offset;
// the fallback locates the length-prefixed landscape literally (the known
// 3-character landscape code with its length byte) and resumes from there.
func decodeTask(b []byte) (*Task, error) {
	if len(b) < 4 {
		return nil, fmt.Errorf("task datagram %d bytes: %w", len(b), condor.ErrTooShort)
	}

	c := wire.New(b)
	_ = c.Seek(4)

	landscape, count, err := readTaskHeader(c)
	if err != nil {
		landscape, count, err = readTaskHeaderByMarker(b, c)
		if err != nil {
			return nil, err
		}
	}

	tps := make([]Turnpoint, 0, count)
	for i := uint32(0); i < count; i++ {
		tp, err := readTurnpoint(c)
		if err != nil {
			return nil, fmt.Errorf("turnpoint %d of %d: %w", i+1, count, err)
		}
		tps = append(tps, tp)
	}

	return &Task{Landscape: landscape, Turnpoints: tps}, nil
}

func readTaskHeader(c *wire.Cursor) (string, uint32, error) {
	landscape, err := c.ReadLPString(1, 32)
	if err != nil {
		return "", 0, err
	}
	count, err := c.ReadU32()
	if err != nil {
		return "", 0, err
	}
	if count < minTurnpoints || count > maxTurnpoints {
		return "", 0, fmt.Errorf("implausible turnpoint count %d", count)
	}
	return landscape, count, nil
}

// landscapeMarker is the length-prefixed form of the known default
// landscape code, used as an anchor when the primary offset parse fails.
var landscapeMarker = []byte("\x03AA3")

func readTaskHeaderByMarker(b []byte, c *wire.Cursor) (string, uint32, error) {
	idx := bytes.Index(b, landscapeMarker)
	if idx == -1 {
		return "", 0, fmt.Errorf("task datagram: landscape string not found")
	}
	_ = c.Seek(idx + len(landscapeMarker))

	count, err := c.ReadU32()
	if err != nil {
		return "", 0, fmt.Errorf("task datagram: %w", err)
	}
	if count < minTurnpoints || count > maxTurnpoints {
		return "", 0, fmt.Errorf("task datagram: implausible turnpoint count %d", count)
	}
	return "AA3", count, nil
}

func readTurnpoint(c *wire.Cursor) (Turnpoint, error) {
	var tp Turnpoint
	var err error

	if tp.Name, err = c.ReadLPString(1, 64); err != nil {
		return tp, err
	}
	if tp.X, err = c.ReadF64(); err != nil {
		return tp, err
	}
	if tp.Y, err = c.ReadF32(); err != nil {
		return tp, err
	}
	if tp.RadiusM, err = c.ReadU32(); err != nil {
		return tp, err
	}
	if tp.AngleDeg, err = c.ReadU32(); err != nil {
		return tp, err
	}
	if tp.AltitudeM, err = c.ReadF32(); err != nil {
		return tp, err
	}
	return tp, nil
}
