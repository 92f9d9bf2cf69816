package geomeasure

import (
	"fmt"
	"math"
	"strconv"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/geojson"
)

// LineResult holds the annotations derived from a line.
type LineResult struct {
	// Feature is a copy of the source with the overall distance attached.
	Feature  *geojson.Feature
	Segments []*geojson.Feature
	Nodes    []*geojson.Feature
}

// Annotations returns segments followed by nodes.
func (r LineResult) Annotations() []*geojson.Feature {
	out := make([]*geojson.Feature, 0, len(r.Segments)+len(r.Nodes))
	out = append(out, r.Segments...)
	return append(out, r.Nodes...)
}

// PolygonResult holds the annotation derived from a polygon.
type PolygonResult struct {
	Feature *geojson.Feature
	Label   *geojson.Feature
}

// PointResult holds the annotation derived from a point.
type PointResult struct {
	Feature *geojson.Feature
	Label   *geojson.Feature
}

// FeatureID renders a feature id as a string. Numeric ids lose any trailing ".0".
func FeatureID(f *geojson.Feature) string {
	if f == nil {
		return ""
	}
	switch id := f.ID.(type) {
	case nil:
		return ""
	case string:
		return id
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	default:
		return fmt.Sprint(id)
	}
}

// SegmentID is the id of the i-th segment of line id.
func SegmentID(id string, i int) string { return id + "-" + strconv.Itoa(i) }

// NodeID is the id of the i-th vertex node of line id.
func NodeID(id string, i int) string { return id + "-node-" + strconv.Itoa(i) }

// AreaLabelID is the id of the area label of polygon id.
func AreaLabelID(id string) string { return id + "-area-label" }

// MeasureLine splits a LineString into measured segments and vertex nodes.
// Node elevation is read from q when elevation is enabled without a terrain
// source. Any other geometry is returned unmodified with no annotations.
func MeasureLine(f *geojson.Feature, cfg Config, q TerrainQuerier) (LineResult, error) {
	ls, ok := geometryOf[orb.LineString](f)
	if !ok || len(ls) < 2 {
		return LineResult{Feature: f}, nil
	}
	id := FeatureID(f)
	segs := measureSegments(ls)

	res := LineResult{
		Feature:  cloneFeature(f),
		Segments: make([]*geojson.Feature, 0, len(segs)),
		Nodes:    make([]*geojson.Feature, 0, len(segs)+1),
	}

	start, err := lineNode(NodeID(id, 0), id, ls[0], 0, 0, cfg, q)
	if err != nil {
		return LineResult{Feature: f}, err
	}
	res.Nodes = append(res.Nodes, start)

	var last measured
	for i, s := range segs {
		m, err := measureLeg(s.meters, s.total, cfg)
		if err != nil {
			return LineResult{Feature: f}, err
		}
		last = m

		seg := geojson.NewFeature(orb.LineString{s.from, s.to})
		seg.ID = SegmentID(id, i)
		seg.Properties[PropOriginalID] = id
		m.apply(seg.Properties)
		res.Segments = append(res.Segments, seg)

		end, err := lineNode(NodeID(id, i+1), id, s.to, s.meters, s.total, cfg, q)
		if err != nil {
			return LineResult{Feature: f}, err
		}
		res.Nodes = append(res.Nodes, end)
	}

	res.Feature.Properties[PropDistance] = last.total.Value
	res.Feature.Properties[PropUnit] = last.total.Symbol
	return res, nil
}

// MeasurePolygon computes the spherical area of a Polygon and a label point
// carrying it. Any other geometry is returned unmodified with no label.
func MeasurePolygon(f *geojson.Feature, cfg Config) (PolygonResult, error) {
	poly, ok := geometryOf[orb.Polygon](f)
	if !ok || len(poly) == 0 || len(poly[0]) < 3 {
		return PolygonResult{Feature: f}, nil
	}
	id := FeatureID(f)

	m, err := cfg.area(math.Abs(geo.Area(poly)))
	if err != nil {
		return PolygonResult{Feature: f}, err
	}

	src := cloneFeature(f)
	src.Properties[PropArea] = m.Value
	src.Properties[PropUnit] = m.Symbol

	label := geojson.NewFeature(labelPoint(poly))
	label.ID = AreaLabelID(id)
	label.Properties[PropOriginalID] = id
	label.Properties[PropArea] = m.Value
	label.Properties[PropUnit] = m.Symbol

	return PolygonResult{Feature: src, Label: label}, nil
}

// MeasurePoint builds the elevation label of a Point. The label keeps the
// source id. Elevation is read from q only when elevation is enabled without
// a terrain source; raster elevation is attached later by LookupElevations.
func MeasurePoint(f *geojson.Feature, cfg Config, q TerrainQuerier) PointResult {
	p, ok := geometryOf[orb.Point](f)
	if !ok {
		return PointResult{Feature: f}
	}
	id := FeatureID(f)

	src := cloneFeature(f)
	label := geojson.NewFeature(p)
	label.ID = id
	label.Properties[PropOriginalID] = id

	if cfg.directElevation() && q != nil {
		if v, ok := q.QueryTerrainElevation(p); ok && !math.IsNaN(v) {
			e := cfg.elevation(v)
			setElevation(src, e)
			setElevation(label, e)
		}
	}
	return PointResult{Feature: src, Label: label}
}

type measured struct {
	leg, total Measurement
}

func measureLeg(meters, total float64, cfg Config) (measured, error) {
	leg, err := cfg.distance(meters)
	if err != nil {
		return measured{}, err
	}
	sum, err := cfg.distance(total)
	if err != nil {
		return measured{}, err
	}
	return measured{leg: leg, total: sum}, nil
}

func (m measured) apply(props geojson.Properties) {
	props[PropDistance] = m.leg.Value
	props[PropUnit] = m.leg.Symbol
	props[PropTotal] = m.total.Value
	props[PropTotalUnit] = m.total.Symbol
}

func lineNode(nodeID, originalID string, p orb.Point, meters, total float64, cfg Config, q TerrainQuerier) (*geojson.Feature, error) {
	m, err := measureLeg(meters, total, cfg)
	if err != nil {
		return nil, err
	}
	node := geojson.NewFeature(p)
	node.ID = nodeID
	node.Properties[PropOriginalID] = originalID
	m.apply(node.Properties)

	if cfg.directElevation() && q != nil {
		if v, ok := q.QueryTerrainElevation(p); ok && !math.IsNaN(v) {
			setElevation(node, cfg.elevation(v))
		}
	}
	return node, nil
}

func geometryOf[G orb.Geometry](f *geojson.Feature) (G, bool) {
	var zero G
	if f == nil || f.Geometry == nil {
		return zero, false
	}
	g, ok := f.Geometry.(G)
	return g, ok
}

func cloneFeature(f *geojson.Feature) *geojson.Feature {
	c := geojson.NewFeature(orb.Clone(f.Geometry))
	c.ID = f.ID
	c.BBox = f.BBox
	if f.Properties != nil {
		c.Properties = f.Properties.Clone()
	}
	return c
}
