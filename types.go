// Package geomeasure derives measurement annotations (segment distances,
// cumulative totals, polygon areas and vertex elevations) from user drawn
// geometries and keeps the derived feature collections in step with the
// drawing as it changes.
package geomeasure

import (
	"context"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Annotation property keys.
const (
	PropMode          = "mode"
	PropOriginalID    = "originalId"
	PropDistance      = "distance"
	PropUnit          = "unit"
	PropTotal         = "total"
	PropTotalUnit     = "totalUnit"
	PropArea          = "area"
	PropElevation     = "elevation"
	PropElevationUnit = "elevationUnit"
)

// DrawEngine is the owner of the source geometries.
type DrawEngine interface {
	// Snapshot returns every feature currently drawn.
	Snapshot() []*geojson.Feature
	// Feature returns the feature with the given id, if still present.
	Feature(id string) (*geojson.Feature, bool)
}

// EventSource delivers drawing lifecycle events.
type EventSource interface {
	Subscribe(fn func(Event)) (unsubscribe func())
}

// Renderer stores annotation collections and answers direct terrain queries.
type Renderer interface {
	Collection(name string) (*geojson.FeatureCollection, bool)
	SetCollection(name string, fc *geojson.FeatureCollection)
	TerrainQuerier
}

// TerrainQuerier reads elevation from terrain the host already has loaded.
type TerrainQuerier interface {
	QueryTerrainElevation(p orb.Point) (float64, bool)
}

// ElevationReader resolves elevation in meters from a raster terrain source.
// A non-finite result means the source has no value at p.
type ElevationReader interface {
	Elevation(ctx context.Context, p orb.Point, zoom int) (float64, error)
}

// ElevationCache stores raw elevation meters keyed by ElevationCacheKey.
// A stored NaN marks a location known to have no value.
type ElevationCache interface {
	Get(key string) (float64, bool)
	Set(key string, value float64)
	Delete(key string) bool
}

// EventKind identifies a drawing lifecycle event.
type EventKind int

const (
	EventCreate EventKind = iota
	EventUpdate
	EventDelete
	EventFinish
	EventDeselect
)

func (k EventKind) String() string {
	switch k {
	case EventCreate:
		return "create"
	case EventUpdate:
		return "update"
	case EventDelete:
		return "delete"
	case EventFinish:
		return "finish"
	case EventDeselect:
		return "deselect"
	}
	return "unknown"
}

// Event is a drawing lifecycle notification. A delete with no IDs means all.
type Event struct {
	Kind EventKind
	IDs  []string
}
