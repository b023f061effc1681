package fpl

import (
	"fmt"
	"strings"

	"condor_feed/internal/geo"
)

// Render serializes a completed plan into the INI-style .fpl format the
// simulator reads back. The key set is best-effort, matched against .fpl
// files produced by the simulator itself.
//
// project may be nil; when set, each turnpoint additionally gets TPLat/TPLon
// keys, which the simulator ignores but make the file easier to inspect.
func Render(plan *CompletedFlightPlan, project geo.Projector) string {
	var sb strings.Builder

	sb.WriteString("[Task]\n")
	fmt.Fprintf(&sb, "Landscape=%s\n", plan.Task.Landscape)
	fmt.Fprintf(&sb, "Count=%d\n", len(plan.Task.Turnpoints))
	for i, tp := range plan.Task.Turnpoints {
		fmt.Fprintf(&sb, "TPName%d=%s\n", i, tp.Name)
		fmt.Fprintf(&sb, "TPPosX%d=%.6f\n", i, tp.X)
		fmt.Fprintf(&sb, "TPPosY%d=%.6f\n", i, tp.Y)
		fmt.Fprintf(&sb, "TPRadius%d=%d\n", i, tp.RadiusM)
		fmt.Fprintf(&sb, "TPAngle%d=%d\n", i, tp.AngleDeg)
		fmt.Fprintf(&sb, "TPAltitude%d=%.2f\n", i, tp.AltitudeM)
	}
	if project != nil {
		for i, tp := range plan.Task.Turnpoints {
			lat, lon, err := project(tp.X, float64(tp.Y))
			if err != nil {
				continue
			}
			fmt.Fprintf(&sb, "TPLat%d=%.6f\n", i, lat)
			fmt.Fprintf(&sb, "TPLon%d=%.6f\n", i, lon)
		}
	}
	if len(plan.DisabledZones.IDs) > 0 {
		parts := make([]string, len(plan.DisabledZones.IDs))
		for i, id := range plan.DisabledZones.IDs {
			parts[i] = fmt.Sprintf("%d", id)
		}
		fmt.Fprintf(&sb, "DisabledAirspaces=%s\n", strings.Join(parts, ","))
	}

	sb.WriteString("\n[Plane]\n")
	if plan.Settings.PlaneClass != "" {
		fmt.Fprintf(&sb, "Class=%s\n", plan.Settings.PlaneClass)
	}

	sb.WriteString("\n[Weather]\n")
	if plan.Settings.WeatherZone != "" {
		sb.WriteString("WZCount=1\n")
		sb.WriteString("\n[WeatherZone0]\n")
		fmt.Fprintf(&sb, "Name=%s\n", plan.Settings.WeatherZone)
	}

	sb.WriteString("\n[GameOptions]\n")
	if plan.Settings.HasStartHeight {
		fmt.Fprintf(&sb, "StartHeight=%d\n", plan.Settings.StartHeightM)
	}

	sb.WriteString("\n[Description]\n")
	if plan.Settings.Description != "" {
		desc := strings.NewReplacer("\r", " ", "\n", " ").Replace(plan.Settings.Description)
		fmt.Fprintf(&sb, "Text=%s\n", desc)
	}

	return sb.String()
}
