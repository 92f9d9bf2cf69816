package geomeasure

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// annotationSet is a working copy of one annotation collection, keyed by id
// and keeping first-insertion order.
type annotationSet struct {
	order []string
	byID  map[string]*geojson.Feature
}

func newAnnotationSet(fc *geojson.FeatureCollection) *annotationSet {
	s := &annotationSet{byID: make(map[string]*geojson.Feature)}
	if fc != nil {
		for _, f := range fc.Features {
			s.merge(f)
		}
	}
	return s
}

// merge inserts f. On an id collision the feature carrying elevation wins;
// otherwise the newer feature replaces the older one.
func (s *annotationSet) merge(f *geojson.Feature) {
	if f == nil {
		return
	}
	id := FeatureID(f)
	old, exists := s.byID[id]
	if !exists {
		s.order = append(s.order, id)
		s.byID[id] = f
		return
	}
	if hasElevation(old) && !hasElevation(f) {
		return
	}
	s.byID[id] = f
}

// removeOriginal drops every feature derived from sourceID. With matchID it
// also drops a feature whose own id is sourceID.
func (s *annotationSet) removeOriginal(sourceID string, matchID bool) int {
	removed := 0
	for id, f := range s.byID {
		if originalID(f) == sourceID || (matchID && id == sourceID) {
			delete(s.byID, id)
			removed++
		}
	}
	if removed > 0 {
		s.compact()
	}
	return removed
}

// retain keeps only features whose source is still present.
func (s *annotationSet) retain(present func(string) bool) int {
	removed := 0
	for id, f := range s.byID {
		if !present(originalID(f)) {
			delete(s.byID, id)
			removed++
		}
	}
	if removed > 0 {
		s.compact()
	}
	return removed
}

func (s *annotationSet) get(id string) (*geojson.Feature, bool) {
	f, ok := s.byID[id]
	return f, ok
}

func (s *annotationSet) len() int { return len(s.byID) }

func (s *annotationSet) features() []*geojson.Feature {
	out := make([]*geojson.Feature, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id])
	}
	return out
}

func (s *annotationSet) collection() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	fc.Features = s.features()
	return fc
}

func (s *annotationSet) compact() {
	kept := s.order[:0]
	for _, id := range s.order {
		if _, ok := s.byID[id]; ok {
			kept = append(kept, id)
		}
	}
	s.order = kept
}

func originalID(f *geojson.Feature) string {
	if f == nil || f.Properties == nil {
		return ""
	}
	switch v := f.Properties[PropOriginalID].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return FeatureID(&geojson.Feature{ID: v})
	}
}

func sameGeometry(a, b *geojson.Feature) bool {
	if a == nil || b == nil {
		return false
	}
	return orb.Equal(a.Geometry, b.Geometry)
}
