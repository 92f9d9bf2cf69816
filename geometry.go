package geomeasure

import (
	"math"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// labelPoint places an area label. It uses the area centroid unless that
// falls outside the polygon, in which case it takes the middle of the widest
// interior span on the horizontal line through the centroid.
func labelPoint(poly orb.Polygon) orb.Point {
	c, _ := planar.CentroidArea(poly)
	if planar.PolygonContains(poly, c) {
		return c
	}

	y := c.Lat()
	var xs []float64
	for _, ring := range poly {
		for i, j := 0, len(ring)-1; i < len(ring); j, i = i, i+1 {
			a, b := ring[j], ring[i]
			if (a.Lat() > y) == (b.Lat() > y) {
				continue
			}
			xs = append(xs, a.Lon()+(y-a.Lat())*(b.Lon()-a.Lon())/(b.Lat()-a.Lat()))
		}
	}
	sort.Float64s(xs)

	best, bestWidth := c, -1.0
	for i := 0; i+1 < len(xs); i += 2 {
		if w := xs[i+1] - xs[i]; w > bestWidth {
			bestWidth = w
			best = orb.Point{(xs[i] + xs[i+1]) / 2, y}
		}
	}
	if bestWidth < 0 || math.IsNaN(best.Lon()) {
		return c
	}
	return best
}
