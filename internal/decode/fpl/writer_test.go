package fpl

import (
	"strings"
	"testing"
)

func completedPlan() *CompletedFlightPlan {
	return &CompletedFlightPlan{
		Task: Task{
			Landscape: "SLO",
			Turnpoints: []Turnpoint{
				{Name: "Start", X: 1000, Y: 2000, RadiusM: 3000, AngleDeg: 180, AltitudeM: 1200.5},
				{Name: "Finish", X: 1500, Y: 2500, RadiusM: 1000, AngleDeg: 360, AltitudeM: 600},
			},
		},
		DisabledZones: DisabledZones{
			ExpectedTotal: 2,
			TotalKnown:    true,
			IDs:           []uint16{10, 12},
		},
		Settings: Settings{
			Description:    "Two line\r\ndescription",
			PlaneClass:     "Club-A",
			WeatherZone:    "Base",
			StartHeightM:   1500,
			HasStartHeight: true,
		},
	}
}

func TestRender(t *testing.T) {
	out := Render(completedPlan(), nil)

	for _, want := range []string{
		"[Task]\n",
		"Landscape=SLO\n",
		"Count=2\n",
		"TPName0=Start\n",
		"TPPosX0=1000.000000\n",
		"TPAltitude0=1200.50\n",
		"TPName1=Finish\n",
		"DisabledAirspaces=10,12\n",
		"[Plane]\nClass=Club-A\n",
		"[WeatherZone0]\nName=Base\n",
		"StartHeight=1500\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Render() missing %q in:\n%s", want, out)
		}
	}

	// CRLF in the description must collapse to spaces; .fpl values are
	// single-line.
	if !strings.Contains(out, "Text=Two line  description\n") {
		t.Errorf("Render() description not flattened:\n%s", out)
	}
}

func TestRenderWithProjector(t *testing.T) {
	project := func(x, y float64) (float64, float64, error) {
		return 46.0 + y/100000, 14.0 + x/100000, nil
	}
	out := Render(completedPlan(), project)

	if !strings.Contains(out, "TPLat0=46.020000\n") {
		t.Errorf("Render() missing TPLat0 in:\n%s", out)
	}
	if !strings.Contains(out, "TPLon0=14.010000\n") {
		t.Errorf("Render() missing TPLon0 in:\n%s", out)
	}
}

func TestRenderOmitsEmptySections(t *testing.T) {
	plan := completedPlan()
	plan.DisabledZones.IDs = nil
	plan.Settings = Settings{}

	out := Render(plan, nil)
	for _, absent := range []string{"DisabledAirspaces", "Class=", "WZCount", "StartHeight=", "Text="} {
		if strings.Contains(out, absent) {
			t.Errorf("Render() contains %q for an empty section:\n%s", absent, out)
		}
	}
}
