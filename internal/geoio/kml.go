package geoio

import (
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/twpayne/go-kml"

	"github.com/Hikitak/geomeasure"
)

// Layer is one named annotation collection.
type Layer struct {
	Name       string
	Collection *geojson.FeatureCollection
}

// WriteKML writes the layers as a KML document with one folder per layer.
// Each placemark is named after the annotation id and described by its label.
func WriteKML(w io.Writer, name string, layers []Layer) error {
	doc := []kml.Element{kml.Name(name)}
	for _, l := range layers {
		if l.Collection == nil {
			continue
		}
		folder := []kml.Element{kml.Name(l.Name)}
		for _, f := range l.Collection.Features {
			if pm := placemark(f); pm != nil {
				folder = append(folder, pm)
			}
		}
		doc = append(doc, kml.Folder(folder...))
	}
	return kml.KML(kml.Document(doc...)).WriteIndent(w, "", "  ")
}

func placemark(f *geojson.Feature) kml.Element {
	g := geometry(f.Geometry)
	if g == nil {
		return nil
	}
	return kml.Placemark(
		kml.Name(geomeasure.FeatureID(f)),
		kml.Description(Label(f)),
		g,
	)
}

func geometry(g orb.Geometry) kml.Element {
	switch g := g.(type) {
	case orb.Point:
		return kml.Point(kml.Coordinates(coordinate(g)))
	case orb.LineString:
		return kml.LineString(kml.Coordinates(coordinates(g)...))
	case orb.Polygon:
		if len(g) == 0 {
			return nil
		}
		children := []kml.Element{kml.OuterBoundaryIs(kml.LinearRing(kml.Coordinates(coordinates(g[0])...)))}
		for _, hole := range g[1:] {
			children = append(children, kml.InnerBoundaryIs(kml.LinearRing(kml.Coordinates(coordinates(hole)...))))
		}
		return kml.Polygon(children...)
	}
	return nil
}

func coordinate(p orb.Point) kml.Coordinate {
	return kml.Coordinate{Lon: p.Lon(), Lat: p.Lat()}
}

func coordinates(ps []orb.Point) []kml.Coordinate {
	out := make([]kml.Coordinate, len(ps))
	for i, p := range ps {
		out[i] = coordinate(p)
	}
	return out
}

// Label renders the measured properties of an annotation as display text,
// for example "12.5 km (total 20 km)", "3.2 ha" or "812 m".
func Label(f *geojson.Feature) string {
	p := f.Properties
	var parts []string
	if v, ok := p[geomeasure.PropArea].(float64); ok {
		parts = append(parts, value(v, p[geomeasure.PropUnit]))
	} else if v, ok := p[geomeasure.PropDistance].(float64); ok {
		s := value(v, p[geomeasure.PropUnit])
		if t, ok := p[geomeasure.PropTotal].(float64); ok && t != v {
			s += " (total " + value(t, p[geomeasure.PropTotalUnit]) + ")"
		}
		parts = append(parts, s)
	}
	if v, ok := p[geomeasure.PropElevation].(float64); ok && !math.IsNaN(v) {
		parts = append(parts, value(v, p[geomeasure.PropElevationUnit]))
	}
	return strings.Join(parts, ", ")
}

func value(v float64, unit interface{}) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if u, ok := unit.(string); ok && u != "" {
		s += " " + u
	}
	return s
}
