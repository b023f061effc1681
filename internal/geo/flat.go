package geo

import "math"

// metersPerDegLat is close enough for the small extents a landscape
// covers; longitude scale follows from the reference latitude.
const metersPerDegLat = 111320.0

// FlatProjector returns an equirectangular projector anchored at the
// landscape's reference corner. Landscape calibration headers give the
// corner's latitude and longitude; within a few hundred kilometres the
// flat approximation stays inside a grid cell of error.
func FlatProjector(refLat, refLon float64) Projector {
	scaleLon := metersPerDegLat * math.Cos(refLat*math.Pi/180)
	return func(x, y float64) (float64, float64, error) {
		if math.IsNaN(x) || math.IsNaN(y) || math.IsInf(x, 0) || math.IsInf(y, 0) {
			return 0, 0, ErrProjection
		}
		lat := refLat + y/metersPerDegLat
		lon := refLon + x/scaleLon
		return lat, lon, nil
	}
}
