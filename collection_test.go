package geomeasure

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func annotationFeature(id, source string, elevation *float64) *geojson.Feature {
	f := geojson.NewFeature(orb.Point{1, 1})
	f.ID = id
	f.Properties[PropOriginalID] = source
	if elevation != nil {
		f.Properties[PropElevation] = *elevation
		f.Properties[PropElevationUnit] = "m"
	}
	return f
}

func TestAnnotationSet_MergePrefersElevation(t *testing.T) {
	e := 120.0
	withElev := annotationFeature("a-node-1", "a", &e)
	without := annotationFeature("a-node-1", "a", nil)

	s := newAnnotationSet(nil)
	s.merge(withElev)
	s.merge(without)
	got, ok := s.get("a-node-1")
	require.True(t, ok)
	assert.Same(t, withElev, got)

	// The elevated feature also replaces a bare one.
	s = newAnnotationSet(nil)
	s.merge(without)
	s.merge(withElev)
	got, _ = s.get("a-node-1")
	assert.Same(t, withElev, got)
	assert.Equal(t, 1, s.len())
}

func TestAnnotationSet_MergeNewerWins(t *testing.T) {
	first := annotationFeature("x", "x", nil)
	second := annotationFeature("x", "x", nil)
	second.Geometry = orb.Point{2, 2}

	s := newAnnotationSet(nil)
	s.merge(first)
	s.merge(second)
	got, _ := s.get("x")
	assert.Same(t, second, got)
}

func TestAnnotationSet_RemoveOriginal(t *testing.T) {
	fc := geojson.NewFeatureCollection()
	fc.Append(annotationFeature("a-0", "a", nil))
	fc.Append(annotationFeature("b-0", "b", nil))
	fc.Append(annotationFeature("a-node-0", "a", nil))
	fc.Append(annotationFeature("c", "", nil))

	s := newAnnotationSet(fc)
	assert.Equal(t, 2, s.removeOriginal("a", false))
	assert.Equal(t, []string{"b-0", "c"}, ids(s.features()))

	assert.Equal(t, 0, s.removeOriginal("c", false))
	assert.Equal(t, 1, s.removeOriginal("c", true))
	assert.Equal(t, []string{"b-0"}, ids(s.collection().Features))
}

func TestAnnotationSet_Retain(t *testing.T) {
	s := newAnnotationSet(nil)
	s.merge(annotationFeature("a-0", "a", nil))
	s.merge(annotationFeature("b-0", "b", nil))
	s.merge(annotationFeature("c-0", "c", nil))

	removed := s.retain(func(id string) bool { return id != "b" })
	assert.Equal(t, 1, removed)
	assert.Equal(t, []string{"a-0", "c-0"}, ids(s.features()))
}

func TestOriginalID(t *testing.T) {
	f := geojson.NewFeature(orb.Point{})
	assert.Equal(t, "", originalID(f))
	f.Properties[PropOriginalID] = 4.0
	assert.Equal(t, "4", originalID(f))
	f.Properties[PropOriginalID] = "abc"
	assert.Equal(t, "abc", originalID(f))
	assert.Equal(t, "", originalID(nil))
}
