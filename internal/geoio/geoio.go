// Package geoio moves drawn features and annotation collections in and out of
// the tool: GeoJSON and encoded polylines in, GeoJSON and KML out.
package geoio

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/twpayne/go-polyline"

	"github.com/Hikitak/geomeasure"
)

var ErrEmptyPolyline = errors.New("geoio: empty polyline")

// ReadFeatures decodes a GeoJSON FeatureCollection, a single Feature or a
// bare geometry and normalizes it with Normalize.
func ReadFeatures(r io.Reader) ([]*geojson.Feature, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}

	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("decode geojson: %w", err)
	}

	var features []*geojson.Feature
	switch head.Type {
	case "FeatureCollection":
		fc, err := geojson.UnmarshalFeatureCollection(data)
		if err != nil {
			return nil, fmt.Errorf("decode feature collection: %w", err)
		}
		features = fc.Features
	case "Feature":
		f, err := geojson.UnmarshalFeature(data)
		if err != nil {
			return nil, fmt.Errorf("decode feature: %w", err)
		}
		features = []*geojson.Feature{f}
	default:
		g, err := geojson.UnmarshalGeometry(data)
		if err != nil {
			return nil, fmt.Errorf("decode geometry: %w", err)
		}
		features = []*geojson.Feature{geojson.NewFeature(g.Geometry())}
	}
	return Normalize(features), nil
}

// Normalize gives every feature an id and a mode tag. Missing ids become
// "feature-<index>"; a missing mode becomes "select" so the geometry decides
// the annotation category.
func Normalize(features []*geojson.Feature) []*geojson.Feature {
	for i, f := range features {
		if f == nil {
			continue
		}
		if geomeasure.FeatureID(f) == "" {
			f.ID = "feature-" + strconv.Itoa(i)
		}
		if f.Properties == nil {
			f.Properties = geojson.Properties{}
		}
		if _, ok := f.Properties[geomeasure.PropMode].(string); !ok {
			f.Properties[geomeasure.PropMode] = geomeasure.ModeSelect.String()
		}
	}
	return features
}

// DecodePolyline decodes a Google encoded polyline into a line feature.
func DecodePolyline(id, encoded string) (*geojson.Feature, error) {
	if encoded == "" {
		return nil, ErrEmptyPolyline
	}
	coords, _, err := polyline.DecodeCoords([]byte(encoded))
	if err != nil {
		return nil, fmt.Errorf("decode polyline: %w", err)
	}

	ls := make(orb.LineString, 0, len(coords))
	for _, c := range coords {
		// Polylines are lat,lng.
		ls = append(ls, orb.Point{c[1], c[0]})
	}
	f := geojson.NewFeature(ls)
	f.ID = id
	f.Properties[geomeasure.PropMode] = geomeasure.ModeLineString.String()
	return f, nil
}

// WriteGeoJSON writes fc as indented GeoJSON.
func WriteGeoJSON(w io.Writer, fc *geojson.FeatureCollection) error {
	data, err := json.MarshalIndent(fc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode geojson: %w", err)
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}
