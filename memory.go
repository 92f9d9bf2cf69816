package geomeasure

import (
	"sort"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// MemoryDraw is an in-process drawing engine. It stores copies of features
// and publishes lifecycle events to subscribers after each change.
type MemoryDraw struct {
	mu       sync.RWMutex
	features map[string]*geojson.Feature
	order    []string
	subs     map[int]func(Event)
	nextSub  int
}

// NewMemoryDraw creates an empty drawing.
func NewMemoryDraw() *MemoryDraw {
	return &MemoryDraw{
		features: make(map[string]*geojson.Feature),
		subs:     make(map[int]func(Event)),
	}
}

// Add stores features and emits one create event. Features without an id are skipped.
func (d *MemoryDraw) Add(features ...*geojson.Feature) []string {
	d.mu.Lock()
	var ids []string
	for _, f := range features {
		id := FeatureID(f)
		if id == "" {
			continue
		}
		if _, exists := d.features[id]; !exists {
			d.order = append(d.order, id)
		}
		d.features[id] = cloneFeature(f)
		ids = append(ids, id)
	}
	d.mu.Unlock()

	if len(ids) > 0 {
		d.emit(Event{Kind: EventCreate, IDs: ids})
	}
	return ids
}

// Update replaces an existing feature and emits an update event.
func (d *MemoryDraw) Update(f *geojson.Feature) bool {
	id := FeatureID(f)
	d.mu.Lock()
	if _, ok := d.features[id]; !ok {
		d.mu.Unlock()
		return false
	}
	d.features[id] = cloneFeature(f)
	d.mu.Unlock()

	d.emit(Event{Kind: EventUpdate, IDs: []string{id}})
	return true
}

// Remove deletes ids, or everything when none are given, and emits a delete event.
func (d *MemoryDraw) Remove(ids ...string) {
	d.mu.Lock()
	if len(ids) == 0 {
		d.features = make(map[string]*geojson.Feature)
		d.order = nil
	} else {
		for _, id := range ids {
			delete(d.features, id)
		}
		kept := d.order[:0]
		for _, id := range d.order {
			if _, ok := d.features[id]; ok {
				kept = append(kept, id)
			}
		}
		d.order = kept
	}
	d.mu.Unlock()

	d.emit(Event{Kind: EventDelete, IDs: ids})
}

// Finish emits a finish event for id.
func (d *MemoryDraw) Finish(id string) {
	d.emit(Event{Kind: EventFinish, IDs: []string{id}})
}

// Deselect emits a deselect event.
func (d *MemoryDraw) Deselect() {
	d.emit(Event{Kind: EventDeselect})
}

// Snapshot returns copies of every feature in insertion order.
func (d *MemoryDraw) Snapshot() []*geojson.Feature {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]*geojson.Feature, 0, len(d.order))
	for _, id := range d.order {
		out = append(out, cloneFeature(d.features[id]))
	}
	return out
}

// Feature returns a copy of the feature with id.
func (d *MemoryDraw) Feature(id string) (*geojson.Feature, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	f, ok := d.features[id]
	if !ok {
		return nil, false
	}
	return cloneFeature(f), true
}

// SetProperties merges props into the stored feature without emitting events.
func (d *MemoryDraw) SetProperties(id string, props map[string]interface{}) {
	d.mu.Lock()
	defer d.mu.Unlock()
	f, ok := d.features[id]
	if !ok {
		return
	}
	if f.Properties == nil {
		f.Properties = geojson.Properties{}
	}
	for k, v := range props {
		f.Properties[k] = v
	}
}

// Subscribe registers fn for every subsequent event.
func (d *MemoryDraw) Subscribe(fn func(Event)) func() {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := d.nextSub
	d.nextSub++
	d.subs[key] = fn
	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		delete(d.subs, key)
	}
}

func (d *MemoryDraw) emit(ev Event) {
	d.mu.RLock()
	keys := make([]int, 0, len(d.subs))
	for k := range d.subs {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	subs := make([]func(Event), 0, len(keys))
	for _, k := range keys {
		subs = append(subs, d.subs[k])
	}
	d.mu.RUnlock()

	for _, fn := range subs {
		fn(ev)
	}
}

// MemoryMap is an in-process renderer holding named feature collections.
type MemoryMap struct {
	mu          sync.RWMutex
	collections map[string]*geojson.FeatureCollection
	terrain     func(orb.Point) (float64, bool)
}

// NewMemoryMap creates a renderer. terrain may be nil when no terrain is loaded.
func NewMemoryMap(terrain func(orb.Point) (float64, bool)) *MemoryMap {
	return &MemoryMap{collections: make(map[string]*geojson.FeatureCollection), terrain: terrain}
}

// Collection returns the named collection.
func (m *MemoryMap) Collection(name string) (*geojson.FeatureCollection, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	fc, ok := m.collections[name]
	return fc, ok
}

// SetCollection replaces the named collection.
func (m *MemoryMap) SetCollection(name string, fc *geojson.FeatureCollection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.collections[name] = fc
}

// QueryTerrainElevation reads the loaded terrain, if any.
func (m *MemoryMap) QueryTerrainElevation(p orb.Point) (float64, bool) {
	if m.terrain == nil {
		return 0, false
	}
	return m.terrain(p)
}
