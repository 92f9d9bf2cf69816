package geomeasure

import (
	"fmt"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Mode is the drawing behavior that produced a feature.
type Mode int

const (
	ModeUnknown Mode = iota
	ModePoint
	ModeMarker
	ModeLineString
	ModeFreehandLineString
	ModePolygon
	ModeRectangle
	ModeAngledRectangle
	ModeCircle
	ModeFreehand
	ModeSector
	ModeSensor
	ModeSelect
	ModeRender
)

var modeNames = map[Mode]string{
	ModePoint:              "point",
	ModeMarker:             "marker",
	ModeLineString:         "linestring",
	ModeFreehandLineString: "freehand-linestring",
	ModePolygon:            "polygon",
	ModeRectangle:          "rectangle",
	ModeAngledRectangle:    "angled-rectangle",
	ModeCircle:             "circle",
	ModeFreehand:           "freehand",
	ModeSector:             "sector",
	ModeSensor:             "sensor",
	ModeSelect:             "select",
	ModeRender:             "render",
}

func (m Mode) String() string {
	if s, ok := modeNames[m]; ok {
		return s
	}
	return "unknown"
}

// ParseMode maps a mode tag to a Mode.
func ParseMode(s string) (Mode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for m, name := range modeNames {
		if name == s {
			return m, nil
		}
	}
	return ModeUnknown, fmt.Errorf("unknown mode %q", s)
}

// FeatureMode reads the mode tag from a feature's properties.
func FeatureMode(f *geojson.Feature) Mode {
	if f == nil {
		return ModeUnknown
	}
	tag, _ := f.Properties[PropMode].(string)
	m, err := ParseMode(tag)
	if err != nil {
		return ModeUnknown
	}
	return m
}

// Category is a family of annotations with its own collection.
type Category int

const (
	CategoryPoint Category = iota
	CategoryLine
	CategoryPolygon
)

// Categories lists every category in dispatch order.
var Categories = []Category{CategoryPoint, CategoryLine, CategoryPolygon}

func (c Category) String() string {
	switch c {
	case CategoryPoint:
		return "point"
	case CategoryLine:
		return "line"
	case CategoryPolygon:
		return "polygon"
	}
	return "unknown"
}

// produces reports which category a mode draws, if any. Select can edit any
// geometry and is resolved from the geometry itself.
func (m Mode) produces() (Category, bool) {
	switch m {
	case ModePoint, ModeMarker:
		return CategoryPoint, true
	case ModeLineString, ModeFreehandLineString:
		return CategoryLine, true
	case ModePolygon, ModeRectangle, ModeAngledRectangle, ModeCircle, ModeFreehand, ModeSector, ModeSensor:
		return CategoryPolygon, true
	case ModeSelect, ModeRender, ModeUnknown:
		return 0, false
	}
	return 0, false
}

// categoryFor resolves the annotation category of a source feature. Render
// features and geometries that disagree with their mode are not annotated.
func categoryFor(mode Mode, g orb.Geometry) (Category, bool) {
	var geom Category
	switch g.(type) {
	case orb.Point:
		geom = CategoryPoint
	case orb.LineString:
		geom = CategoryLine
	case orb.Polygon:
		geom = CategoryPolygon
	default:
		return 0, false
	}

	switch mode {
	case ModeSelect:
		return geom, true
	case ModeRender, ModeUnknown:
		return 0, false
	}
	c, ok := mode.produces()
	if !ok || c != geom {
		return 0, false
	}
	return c, true
}
