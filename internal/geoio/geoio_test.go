package geoio

import (
	"bytes"
	"strings"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hikitak/geomeasure"
)

func TestReadFeatures_Collection(t *testing.T) {
	in := `{"type":"FeatureCollection","features":[
		{"type":"Feature","id":"a","properties":{"mode":"linestring"},"geometry":{"type":"LineString","coordinates":[[0,0],[0,1]]}},
		{"type":"Feature","properties":{},"geometry":{"type":"Point","coordinates":[5,6]}}
	]}`

	features, err := ReadFeatures(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, features, 2)

	assert.Equal(t, "a", geomeasure.FeatureID(features[0]))
	assert.Equal(t, geomeasure.ModeLineString, geomeasure.FeatureMode(features[0]))

	assert.Equal(t, "feature-1", geomeasure.FeatureID(features[1]))
	assert.Equal(t, geomeasure.ModeSelect, geomeasure.FeatureMode(features[1]))
	assert.Equal(t, orb.Point{5, 6}, features[1].Geometry)
}

func TestReadFeatures_SingleFeatureAndGeometry(t *testing.T) {
	features, err := ReadFeatures(strings.NewReader(`{"type":"Feature","id":7,"geometry":{"type":"Point","coordinates":[1,2]},"properties":null}`))
	require.NoError(t, err)
	require.Len(t, features, 1)
	assert.Equal(t, "7", geomeasure.FeatureID(features[0]))

	features, err = ReadFeatures(strings.NewReader(`{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,0]]]}`))
	require.NoError(t, err)
	require.Len(t, features, 1)
	assert.IsType(t, orb.Polygon{}, features[0].Geometry)
	assert.Equal(t, "feature-0", geomeasure.FeatureID(features[0]))
}

func TestReadFeatures_Invalid(t *testing.T) {
	_, err := ReadFeatures(strings.NewReader(`not json`))
	assert.Error(t, err)
	_, err = ReadFeatures(strings.NewReader(`{"type":"Circle"}`))
	assert.Error(t, err)
}

func TestDecodePolyline(t *testing.T) {
	f, err := DecodePolyline("route", "_p~iF~ps|U_ulLnnqC_mqNvxq`@")
	require.NoError(t, err)

	ls, ok := f.Geometry.(orb.LineString)
	require.True(t, ok)
	require.Len(t, ls, 3)
	assert.InDelta(t, -120.2, ls[0].Lon(), 1e-6)
	assert.InDelta(t, 38.5, ls[0].Lat(), 1e-6)
	assert.InDelta(t, -126.453, ls[2].Lon(), 1e-6)
	assert.InDelta(t, 43.252, ls[2].Lat(), 1e-6)
	assert.Equal(t, "route", f.ID)
	assert.Equal(t, geomeasure.ModeLineString, geomeasure.FeatureMode(f))

	_, err = DecodePolyline("x", "")
	assert.ErrorIs(t, err, ErrEmptyPolyline)
}

func TestWriteGeoJSON(t *testing.T) {
	fc := geojson.NewFeatureCollection()
	f := geojson.NewFeature(orb.Point{1, 2})
	f.ID = "p"
	fc.Append(f)

	var buf bytes.Buffer
	require.NoError(t, WriteGeoJSON(&buf, fc))

	back, err := geojson.UnmarshalFeatureCollection(buf.Bytes())
	require.NoError(t, err)
	require.Len(t, back.Features, 1)
	assert.Equal(t, orb.Point{1, 2}, back.Features[0].Geometry)
}

func TestLabel(t *testing.T) {
	seg := geojson.NewFeature(orb.LineString{{0, 0}, {0, 1}})
	seg.Properties[geomeasure.PropDistance] = 12.5
	seg.Properties[geomeasure.PropUnit] = "km"
	seg.Properties[geomeasure.PropTotal] = 20.0
	seg.Properties[geomeasure.PropTotalUnit] = "km"
	assert.Equal(t, "12.5 km (total 20 km)", Label(seg))

	first := geojson.NewFeature(orb.LineString{{0, 0}, {0, 1}})
	first.Properties[geomeasure.PropDistance] = 3.0
	first.Properties[geomeasure.PropUnit] = "m"
	first.Properties[geomeasure.PropTotal] = 3.0
	first.Properties[geomeasure.PropTotalUnit] = "m"
	assert.Equal(t, "3 m", Label(first))

	area := geojson.NewFeature(orb.Point{})
	area.Properties[geomeasure.PropArea] = 3.2
	area.Properties[geomeasure.PropUnit] = "ha"
	assert.Equal(t, "3.2 ha", Label(area))

	node := geojson.NewFeature(orb.Point{})
	node.Properties[geomeasure.PropDistance] = 0.0
	node.Properties[geomeasure.PropUnit] = "m"
	node.Properties[geomeasure.PropElevation] = 812.0
	node.Properties[geomeasure.PropElevationUnit] = "m"
	assert.Equal(t, "0 m, 812 m", Label(node))

	assert.Equal(t, "", Label(geojson.NewFeature(orb.Point{})))
}

func TestWriteKML(t *testing.T) {
	lines := geojson.NewFeatureCollection()
	seg := geojson.NewFeature(orb.LineString{{0, 0}, {0, 1}})
	seg.ID = "l1-0"
	seg.Properties[geomeasure.PropDistance] = 111.19
	seg.Properties[geomeasure.PropUnit] = "km"
	lines.Append(seg)

	areas := geojson.NewFeatureCollection()
	label := geojson.NewFeature(orb.Point{0.5, 0.5})
	label.ID = "p1-area-label"
	label.Properties[geomeasure.PropArea] = 12.3
	label.Properties[geomeasure.PropUnit] = "km²"
	areas.Append(label)
	areas.Append(geojson.NewFeature(orb.MultiPoint{{1, 1}}))

	var buf bytes.Buffer
	err := WriteKML(&buf, "measurements", []Layer{
		{Name: "lines", Collection: lines},
		{Name: "areas", Collection: areas},
		{Name: "empty"},
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "<kml")
	assert.Contains(t, out, "<name>measurements</name>")
	assert.Equal(t, 2, strings.Count(out, "<Folder>"))
	assert.Equal(t, 2, strings.Count(out, "<Placemark>"))
	assert.Contains(t, out, "<name>l1-0</name>")
	assert.Contains(t, out, "<description>111.19 km</description>")
	assert.Contains(t, out, "<LineString>")
	assert.Contains(t, out, "<Point>")
	assert.Contains(t, out, "12.3 km²")
}
