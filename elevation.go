package geomeasure

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"go.uber.org/zap"

	"github.com/Hikitak/geomeasure/terrain"
)

// ReaderFactory builds the terrain reader used for one lookup batch.
type ReaderFactory func(src terrain.Source) ElevationReader

// DefaultReaderFactory reads tiles over HTTP with the terrain package defaults.
func DefaultReaderFactory(src terrain.Source) ElevationReader {
	return terrain.NewReader(src)
}

// LookupOptions configures LookupElevations.
type LookupOptions struct {
	Config    Config
	Cache     ElevationCache
	NewReader ReaderFactory
	Logger    *zap.Logger
}

// ElevationCacheKey rounds p to five decimals (about a meter) so nearby
// points share a lookup.
func ElevationCacheKey(p orb.Point) string {
	return fmt.Sprintf("elevation_%.5f_%.5f", p.Lon(), p.Lat())
}

// LookupElevations attaches raster elevation to point features, reading each
// cache key once. Without a terrain source it returns the input unchanged.
// Order is kept; a failed lookup leaves its features unset.
func LookupElevations(ctx context.Context, features []*geojson.Feature, opts LookupOptions) []*geojson.Feature {
	cfg := opts.Config
	if cfg.TerrainSource == nil || len(features) == 0 {
		return features
	}
	newReader := opts.NewReader
	if newReader == nil {
		newReader = DefaultReaderFactory
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var keys []string
	groups := make(map[string]*lookupGroup)
	seen := make(map[*geojson.Feature]bool, len(features))
	for _, f := range features {
		if f == nil || seen[f] {
			continue
		}
		seen[f] = true
		p, ok := f.Geometry.(orb.Point)
		if !ok {
			continue
		}
		key := ElevationCacheKey(p)
		g, ok := groups[key]
		if !ok {
			g = &lookupGroup{key: key, at: p}
			groups[key] = g
			keys = append(keys, key)
		}
		g.features = append(g.features, f)
	}
	if len(keys) == 0 {
		return features
	}

	reader := newReader(*cfg.TerrainSource)
	zoom := cfg.TerrainSource.MaxZoom

	var wg sync.WaitGroup
	for _, key := range keys {
		wg.Add(1)
		go func(g *lookupGroup) {
			defer wg.Done()
			v, ok := g.lookup(ctx, reader, zoom, opts.Cache, logger)
			if !ok {
				return
			}
			m := cfg.elevation(v)
			for _, f := range g.features {
				setElevation(f, m)
			}
		}(groups[key])
	}
	wg.Wait()

	out := make([]*geojson.Feature, len(features))
	copy(out, features)
	return out
}

// lookupGroup is the set of features that resolve to one cache key.
type lookupGroup struct {
	key      string
	at       orb.Point
	features []*geojson.Feature
}

// lookup returns the elevation in meters for the group. Failed reads are not
// cached, and whatever the cache already holds for the key is left alone.
func (g *lookupGroup) lookup(ctx context.Context, reader ElevationReader, zoom int, c ElevationCache, logger *zap.Logger) (float64, bool) {
	if c != nil {
		if v, ok := c.Get(g.key); ok {
			if math.IsNaN(v) {
				elevationLookups.WithLabelValues("unavailable").Inc()
				return 0, false
			}
			elevationLookups.WithLabelValues("hit").Inc()
			return v, true
		}
	}

	v, err := reader.Elevation(ctx, g.at, zoom)
	if err != nil {
		elevationLookups.WithLabelValues("error").Inc()
		logger.Debug("elevation lookup failed", zap.String("key", g.key), zap.Error(err))
		return 0, false
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		elevationLookups.WithLabelValues("unavailable").Inc()
		if c != nil {
			c.Set(g.key, math.NaN())
		}
		return 0, false
	}

	elevationLookups.WithLabelValues("miss").Inc()
	if c != nil {
		c.Set(g.key, v)
	}
	return v, true
}

func setElevation(f *geojson.Feature, m Measurement) {
	if f.Properties == nil {
		f.Properties = geojson.Properties{}
	}
	f.Properties[PropElevation] = m.Value
	f.Properties[PropElevationUnit] = m.Symbol
}

func hasElevation(f *geojson.Feature) bool {
	if f == nil || f.Properties == nil {
		return false
	}
	v, ok := f.Properties[PropElevation].(float64)
	return ok && !math.IsNaN(v)
}
