package geomeasure

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/planar"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLabelPoint_Convex(t *testing.T) {
	square := orb.Polygon{{{0, 0}, {2, 0}, {2, 2}, {0, 2}, {0, 0}}}
	p := labelPoint(square)
	assert.InDelta(t, 1, p.Lon(), 1e-9)
	assert.InDelta(t, 1, p.Lat(), 1e-9)
}

func TestLabelPoint_RingWithHole(t *testing.T) {
	// The centroid of a square donut sits in the hole.
	poly := orb.Polygon{
		{{0, 0}, {4, 0}, {4, 4}, {0, 4}, {0, 0}},
		{{1, 1}, {3, 1}, {3, 3}, {1, 3}, {1, 1}},
	}
	p := labelPoint(poly)
	assert.True(t, planar.PolygonContains(poly, p), "label %v", p)
	assert.InDelta(t, 0.5, p.Lon(), 1e-9)
	assert.InDelta(t, 2, p.Lat(), 1e-9)
}

func TestLineLength(t *testing.T) {
	ls := orb.LineString{{0, 0}, {0, 1}, {1, 1}}
	want := geo.DistanceHaversine(ls[0], ls[1]) + geo.DistanceHaversine(ls[1], ls[2])
	assert.InDelta(t, want, LineLength(ls), 1e-6)
	assert.Zero(t, LineLength(orb.LineString{{1, 1}}))

	segs := measureSegments(ls)
	require.Len(t, segs, 2)
	assert.InDelta(t, segs[0].meters+segs[1].meters, segs[1].total, 1e-9)
}

func TestRegisterMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, RegisterMetrics(reg))
	assert.Error(t, RegisterMetrics(reg), "second registration collides")
}
