package geomeasure

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// segment is one measured leg of a line.
type segment struct {
	from, to orb.Point
	meters   float64 // this leg
	total    float64 // cumulative through this leg
}

// measureSegments splits ls into consecutive legs with great-circle lengths.
// Totals accumulate raw meters so display rounding never compounds.
func measureSegments(ls orb.LineString) []segment {
	if len(ls) < 2 {
		return nil
	}
	segs := make([]segment, 0, len(ls)-1)
	total := 0.0
	for i := 0; i < len(ls)-1; i++ {
		d := geo.DistanceHaversine(ls[i], ls[i+1])
		total += d
		segs = append(segs, segment{from: ls[i], to: ls[i+1], meters: d, total: total})
	}
	return segs
}

// LineLength returns the great-circle length of ls in meters.
func LineLength(ls orb.LineString) float64 {
	segs := measureSegments(ls)
	if len(segs) == 0 {
		return 0
	}
	return segs[len(segs)-1].total
}
