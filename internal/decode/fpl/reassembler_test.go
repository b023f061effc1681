package fpl

import (
	"encoding/binary"
	"math"
	"strings"
	"testing"

	"condor_feed/internal/condor"
)

func lp(s string) []byte {
	return append([]byte{byte(len(s))}, s...)
}

func putU32(b []byte, v uint32) []byte {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	return append(b, buf[:]...)
}

func putU16(b []byte, v uint16) []byte {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], v)
	return append(b, buf[:]...)
}

func putF32(b []byte, v float32) []byte {
	return putU32(b, math.Float32bits(v))
}

func putF64(b []byte, v float64) []byte {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
	return append(b, buf[:]...)
}

func taskDatagram(landscape string, tps []Turnpoint) []byte {
	b := []byte{0x1f, 0x00, 0x00, 0x00}
	b = append(b, lp(landscape)...)
	b = putU32(b, uint32(len(tps)))
	for _, tp := range tps {
		b = append(b, lp(tp.Name)...)
		b = putF64(b, tp.X)
		b = putF32(b, tp.Y)
		b = putU32(b, tp.RadiusM)
		b = putU32(b, tp.AngleDeg)
		b = putF32(b, tp.AltitudeM)
	}
	return b
}

func disabledFirst(seq uint16, total uint32, ids []uint16) []byte {
	b := []byte{0x07, 0x00}
	b = putU16(b, seq)
	b = putU32(b, total)
	for _, id := range ids {
		b = putU16(b, id)
	}
	return b
}

func disabledCont(seq uint16, ids []uint16) []byte {
	b := []byte{0x0f, 0x00}
	b = putU16(b, seq)
	for _, id := range ids {
		b = putU16(b, id)
	}
	return b
}

func settingsDatagram() []byte {
	b := []byte{0x2f, 0x00, 0x00, 0x00}
	b = append(b, lp("Club-A")...)
	b = append(b, sigWeatherBase...)
	b = append(b, lp("Ridge run to the border and back, thermals to 2000m")...)
	b = append(b, sigStartHeight1500...)
	return b
}

var testTurnpoints = []Turnpoint{
	{Name: "Start Lesce", X: 12000.5, Y: -3400.25, RadiusM: 3000, AngleDeg: 180, AltitudeM: 1200},
	{Name: "TP1 Lienz", X: 84000, Y: 22000, RadiusM: 500, AngleDeg: 360, AltitudeM: 900},
	{Name: "Finish", X: 12500, Y: -3500, RadiusM: 1000, AngleDeg: 180, AltitudeM: 600},
}

func TestDecodeTask(t *testing.T) {
	task, err := decodeTask(taskDatagram("SLO", testTurnpoints))
	if err != nil {
		t.Fatalf("decodeTask() error = %v", err)
	}
	if task.Landscape != "SLO" {
		t.Errorf("Landscape = %q, want SLO", task.Landscape)
	}
	if len(task.Turnpoints) != 3 {
		t.Fatalf("len(Turnpoints) = %d, want 3", len(task.Turnpoints))
	}
	if task.Turnpoints[0] != testTurnpoints[0] {
		t.Errorf("Turnpoints[0] = %+v, want %+v", task.Turnpoints[0], testTurnpoints[0])
	}
	if task.Turnpoints[2].Name != "Finish" {
		t.Errorf("Turnpoints[2].Name = %q, want Finish", task.Turnpoints[2].Name)
	}
}

func TestDecodeTaskMarkerFallback(t *testing.T) {
	// Garbage where the landscape string belongs forces the marker search.
	b := []byte{0x1f, 0x00, 0x00, 0x00, 0xff, 0xff}
	b = append(b, landscapeMarker...)
	b = putU32(b, 1)
	tp := testTurnpoints[0]
	b = append(b, lp(tp.Name)...)
	b = putF64(b, tp.X)
	b = putF32(b, tp.Y)
	b = putU32(b, tp.RadiusM)
	b = putU32(b, tp.AngleDeg)
	b = putF32(b, tp.AltitudeM)

	task, err := decodeTask(b)
	if err != nil {
		t.Fatalf("decodeTask() error = %v", err)
	}
	if task.Landscape != "AA3" {
		t.Errorf("Landscape = %q, want AA3", task.Landscape)
	}
	if len(task.Turnpoints) != 1 || task.Turnpoints[0] != tp {
		t.Errorf("Turnpoints = %+v, want [%+v]", task.Turnpoints, tp)
	}
}

func TestDecodeTaskImplausibleCount(t *testing.T) {
	b := []byte{0x1f, 0x00, 0x00, 0x00}
	b = append(b, lp("SLO")...)
	b = putU32(b, 500)
	if _, err := decodeTask(b); err == nil {
		t.Error("decodeTask() with count 500: expected error, got nil")
	}
}

func TestDecodeSettings(t *testing.T) {
	s, err := decodeSettings(settingsDatagram())
	if err != nil {
		t.Fatalf("decodeSettings() error = %v", err)
	}
	if s.PlaneClass != "Club-A" {
		t.Errorf("PlaneClass = %q, want Club-A", s.PlaneClass)
	}
	if s.WeatherZone != "Base" {
		t.Errorf("WeatherZone = %q, want Base", s.WeatherZone)
	}
	if !strings.HasPrefix(s.Description, "Ridge run") {
		t.Errorf("Description = %q, want the long string", s.Description)
	}
	if !s.HasStartHeight || s.StartHeightM != 1500 {
		t.Errorf("start height = (%v, %d), want (true, 1500)", s.HasStartHeight, s.StartHeightM)
	}
}

// A plan with no disabled-zone chunks completes as soon as task and
// settings are both in; the total stays unknown.
func TestReassemblerCompletesWithoutDisabled(t *testing.T) {
	r := NewReassembler()

	plan, skip, err := r.Apply(condor.TagFplTask, taskDatagram("SLO", testTurnpoints))
	if err != nil || skip != condor.SkipNone || plan != nil {
		t.Fatalf("task apply = (%v, %v, %v), want (nil, SkipNone, nil)", plan, skip, err)
	}

	plan, skip, err = r.Apply(condor.TagFplSettings, settingsDatagram())
	if err != nil || skip != condor.SkipNone {
		t.Fatalf("settings apply error = (%v, %v)", skip, err)
	}
	if plan == nil {
		t.Fatal("settings apply: expected completed plan, got nil")
	}
	if plan.DisabledZones.TotalKnown {
		t.Error("TotalKnown = true with no disabled chunks, want false")
	}
	if !r.Done() {
		t.Error("Done() = false after completion")
	}
}

func TestReassemblerWaitsForDisabledTotal(t *testing.T) {
	r := NewReassembler()

	if _, _, err := r.Apply(condor.TagFplTask, taskDatagram("SLO", testTurnpoints)); err != nil {
		t.Fatalf("task apply error = %v", err)
	}
	if _, _, err := r.Apply(condor.TagFplDisabledFirst, disabledFirst(1, 3, []uint16{10, 11})); err != nil {
		t.Fatalf("first chunk error = %v", err)
	}

	plan, _, err := r.Apply(condor.TagFplSettings, settingsDatagram())
	if err != nil {
		t.Fatalf("settings apply error = %v", err)
	}
	if plan != nil {
		t.Fatal("plan completed with 2 of 3 disabled IDs")
	}

	// Continuation re-sends ID 11 and adds 12; value dedup keeps it one
	// entry and the total is reached.
	plan, _, err = r.Apply(condor.TagFplDisabledCont, disabledCont(2, []uint16{11, 12}))
	if err != nil {
		t.Fatalf("continuation error = %v", err)
	}
	if plan == nil {
		t.Fatal("continuation: expected completed plan, got nil")
	}

	dz := plan.DisabledZones
	if !dz.TotalKnown || dz.ExpectedTotal != 3 {
		t.Errorf("total = (%v, %d), want (true, 3)", dz.TotalKnown, dz.ExpectedTotal)
	}
	if len(dz.IDs) != 3 || dz.IDs[0] != 10 || dz.IDs[1] != 11 || dz.IDs[2] != 12 {
		t.Errorf("IDs = %v, want [10 11 12]", dz.IDs)
	}
}

func TestReassemblerDuplicateChunkSkipped(t *testing.T) {
	r := NewReassembler()

	if _, _, err := r.Apply(condor.TagFplDisabledFirst, disabledFirst(7, 4, []uint16{1, 2})); err != nil {
		t.Fatalf("first chunk error = %v", err)
	}

	_, skip, err := r.Apply(condor.TagFplDisabledFirst, disabledFirst(7, 4, []uint16{1, 2}))
	if err != nil {
		t.Fatalf("duplicate chunk error = %v", err)
	}
	if skip != condor.SkipDuplicateChunk {
		t.Errorf("skip = %v, want SkipDuplicateChunk", skip)
	}
	if len(r.ids) != 2 {
		t.Errorf("len(ids) after duplicate = %d, want 2", len(r.ids))
	}
}

// Once latched, every further fragment is ignored for the session.
func TestReassemblerLatchesOnce(t *testing.T) {
	r := NewReassembler()

	if _, _, err := r.Apply(condor.TagFplTask, taskDatagram("SLO", testTurnpoints)); err != nil {
		t.Fatalf("task apply error = %v", err)
	}
	plan, _, err := r.Apply(condor.TagFplSettings, settingsDatagram())
	if err != nil || plan == nil {
		t.Fatalf("settings apply = (%v, %v), want completed plan", plan, err)
	}

	plan, skip, err := r.Apply(condor.TagFplTask, taskDatagram("SLO", testTurnpoints))
	if err != nil {
		t.Fatalf("post-latch apply error = %v", err)
	}
	if plan != nil {
		t.Error("post-latch apply returned a second plan")
	}
	if skip != condor.SkipPlanComplete {
		t.Errorf("skip = %v, want SkipPlanComplete", skip)
	}
}

func TestReassemblerCapsIDsAtTotal(t *testing.T) {
	r := NewReassembler()

	// A corrupt chunk claims more IDs than the expected total.
	if _, _, err := r.Apply(condor.TagFplDisabledFirst, disabledFirst(1, 2, []uint16{1, 2, 3, 4})); err != nil {
		t.Fatalf("first chunk error = %v", err)
	}
	if len(r.ids) > 2 {
		t.Errorf("len(ids) = %d, want at most the expected total 2", len(r.ids))
	}
}

// A re-sent ID inside a continuation must not consume a slot: with one
// slot left, the chunk [11, 12, 13] still appends 12 (and only 12).
func TestReassemblerResentIDDoesNotConsumeSlot(t *testing.T) {
	r := NewReassembler()

	if _, _, err := r.Apply(condor.TagFplDisabledFirst, disabledFirst(1, 3, []uint16{10, 11})); err != nil {
		t.Fatalf("first chunk error = %v", err)
	}
	if _, _, err := r.Apply(condor.TagFplDisabledCont, disabledCont(2, []uint16{11, 12, 13})); err != nil {
		t.Fatalf("continuation error = %v", err)
	}

	if len(r.ids) != 3 || r.ids[0] != 10 || r.ids[1] != 11 || r.ids[2] != 12 {
		t.Errorf("ids = %v, want [10 11 12]", r.ids)
	}
}

func TestApplyTooShort(t *testing.T) {
	r := NewReassembler()
	for _, tag := range []condor.Tag{condor.TagFplTask, condor.TagFplDisabledFirst, condor.TagFplSettings} {
		if _, _, err := r.Apply(tag, []byte{0x00, 0x00}); err == nil {
			t.Errorf("Apply(%v, 2 bytes): expected error, got nil", tag)
		}
	}
}
