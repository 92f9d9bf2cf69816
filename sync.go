package geomeasure

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"go.uber.org/zap"

	"github.com/Hikitak/geomeasure/cache"
)

// FinishDelay is how long a finished geometry waits before its raster
// elevation is fetched, so rapid vertex commits collapse into one lookup.
const FinishDelay = 300 * time.Millisecond

// Default annotation collection names.
const (
	PointCollection   = "geomeasure-point-labels"
	LineCollection    = "geomeasure-line-labels"
	PolygonCollection = "geomeasure-polygon-labels"
)

// PropertyWriter is implemented by drawing engines that accept measured
// properties back onto their source features. Writing must not emit events.
type PropertyWriter interface {
	SetProperties(id string, props map[string]interface{})
}

// Synchronizer keeps the point, line and polygon annotation collections
// consistent with the drawing engine's features. It is safe for concurrent
// use; asynchronous elevation results are applied under the same lock.
type Synchronizer struct {
	mu        sync.Mutex
	draw      DrawEngine
	renderer  Renderer
	cfg       atomic.Pointer[Config]
	cache     ElevationCache
	newReader ReaderFactory
	logger    *zap.Logger
	names     map[Category]string
	active    map[Category]bool

	finishDelay time.Duration
	finish      *debouncer
	tasks       sync.WaitGroup

	ctx         context.Context
	cancel      context.CancelFunc
	unsubscribe []func()
}

// SyncOption configures a Synchronizer.
type SyncOption func(*Synchronizer)

// WithConfig sets the initial configuration. It is not validated here; use
// SetConfig for validated updates.
func WithConfig(cfg Config) SyncOption {
	return func(s *Synchronizer) { s.cfg.Store(&cfg) }
}

// WithElevationCache replaces the default in-memory elevation cache.
func WithElevationCache(c ElevationCache) SyncOption {
	return func(s *Synchronizer) { s.cache = c }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) SyncOption {
	return func(s *Synchronizer) { s.logger = l }
}

// WithReaderFactory replaces how terrain readers are built for each batch.
func WithReaderFactory(f ReaderFactory) SyncOption {
	return func(s *Synchronizer) { s.newReader = f }
}

// WithFinishDelay overrides FinishDelay.
func WithFinishDelay(d time.Duration) SyncOption {
	return func(s *Synchronizer) { s.finishDelay = d }
}

// WithCollectionNames overrides the renderer collection names.
func WithCollectionNames(point, line, polygon string) SyncOption {
	return func(s *Synchronizer) {
		s.names = map[Category]string{CategoryPoint: point, CategoryLine: line, CategoryPolygon: polygon}
	}
}

// NewSynchronizer creates a Synchronizer with no active categories.
func NewSynchronizer(draw DrawEngine, renderer Renderer, opts ...SyncOption) *Synchronizer {
	s := &Synchronizer{
		draw:        draw,
		renderer:    renderer,
		cache:       cache.New[string, float64](),
		newReader:   DefaultReaderFactory,
		logger:      zap.NewNop(),
		names:       map[Category]string{CategoryPoint: PointCollection, CategoryLine: LineCollection, CategoryPolygon: PolygonCollection},
		active:      make(map[Category]bool),
		finishDelay: FinishDelay,
	}
	def := DefaultConfig()
	s.cfg.Store(&def)
	for _, opt := range opts {
		opt(s)
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.finish = newDebouncer(s.finishDelay, &s.tasks)
	return s
}

// Config returns the current configuration.
func (s *Synchronizer) Config() Config {
	return *s.cfg.Load()
}

// SetConfig validates and installs cfg, then recomputes every annotation.
// If ctx ends before the recomputation completes, the previous configuration
// is restored and the collections are left as they were.
func (s *Synchronizer) SetConfig(ctx context.Context, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	prev, next := s.cfg.Load(), &cfg
	s.cfg.Store(next)
	if err := s.Recalc(ctx); err != nil {
		s.cfg.CompareAndSwap(next, prev)
		return err
	}
	s.logger.Debug("measurement config changed",
		zap.Stringer("unit_system", cfg.UnitSystem),
		zap.Stringer("distance_unit", cfg.DistanceUnit),
		zap.Stringer("area_unit", cfg.AreaUnit))
	return nil
}

// CollectionName returns the renderer collection used for c.
func (s *Synchronizer) CollectionName(c Category) string {
	return s.names[c]
}

// Activate enables the categories produced by modes and disables the rest.
// Enabled categories get an empty collection if they have none; categories
// switched off are cleared.
func (s *Synchronizer) Activate(modes ...Mode) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.active
	s.active = make(map[Category]bool)
	for _, m := range modes {
		if c, ok := m.produces(); ok {
			s.active[c] = true
		}
	}
	for _, c := range Categories {
		if !s.active[c] {
			if prev[c] {
				s.renderer.SetCollection(s.names[c], geojson.NewFeatureCollection())
			}
			continue
		}
		if _, ok := s.renderer.Collection(s.names[c]); !ok {
			s.renderer.SetCollection(s.names[c], geojson.NewFeatureCollection())
		}
	}
}

// Active reports whether category c is enabled.
func (s *Synchronizer) Active(c Category) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active[c]
}

// Attach subscribes to src. Close unsubscribes.
func (s *Synchronizer) Attach(src EventSource) {
	unsub := src.Subscribe(func(ev Event) { s.Handle(s.ctx, ev) })
	s.mu.Lock()
	s.unsubscribe = append(s.unsubscribe, unsub)
	s.mu.Unlock()
}

// Handle applies one drawing event.
func (s *Synchronizer) Handle(ctx context.Context, ev Event) {
	s.logger.Debug("draw event", zap.Stringer("kind", ev.Kind), zap.Strings("ids", ev.IDs))
	annotationPasses.WithLabelValues(ev.Kind.String()).Inc()

	switch ev.Kind {
	case EventCreate, EventUpdate:
		s.measure(ctx, ev.IDs, nil)
	case EventFinish:
		if !s.Config().rasterElevation() {
			return
		}
		for _, id := range ev.IDs {
			s.finish.schedule(id, func() { s.refreshElevation([]string{id}) })
		}
	case EventDeselect:
		if !s.Config().rasterElevation() {
			return
		}
		s.refreshElevation(s.elevatedSourceIDs())
	case EventDelete:
		s.delete(ev.IDs)
	}
}

// MeasurePoint recomputes the annotation of one point feature.
func (s *Synchronizer) MeasurePoint(ctx context.Context, id string) {
	c := CategoryPoint
	s.measure(ctx, []string{id}, &c)
}

// MeasureLine recomputes the annotations of one line feature.
func (s *Synchronizer) MeasureLine(ctx context.Context, id string) {
	c := CategoryLine
	s.measure(ctx, []string{id}, &c)
}

// MeasurePolygon recomputes the annotation of one polygon feature.
func (s *Synchronizer) MeasurePolygon(ctx context.Context, id string) {
	c := CategoryPolygon
	s.measure(ctx, []string{id}, &c)
}

// Recalc rebuilds every active collection from the current snapshot. With a
// terrain source configured, raster elevation is then fetched in the background.
// A cancelled ctx leaves every collection untouched and returns ctx.Err().
func (s *Synchronizer) Recalc(ctx context.Context) error {
	annotationPasses.WithLabelValues("recalc").Inc()

	s.mu.Lock()
	cfg := s.Config()
	sets := make(map[Category]*annotationSet)
	for _, c := range Categories {
		if s.active[c] {
			sets[c] = newAnnotationSet(nil)
		}
	}

	var elevated []string
	for _, f := range s.draw.Snapshot() {
		if ctx.Err() != nil {
			break
		}
		id := FeatureID(f)
		c, ok := categoryFor(FeatureMode(f), f.Geometry)
		if !ok || sets[c] == nil {
			continue
		}
		for _, a := range s.annotate(id, f, c, cfg) {
			sets[c].merge(a)
		}
		if c != CategoryPolygon {
			elevated = append(elevated, id)
		}
	}
	if err := ctx.Err(); err != nil {
		s.mu.Unlock()
		return err
	}
	for c, set := range sets {
		s.renderer.SetCollection(s.names[c], set.collection())
	}
	s.mu.Unlock()

	if cfg.rasterElevation() && len(elevated) > 0 {
		s.refreshElevation(elevated)
	}
	return nil
}

// Wait blocks until pending debounced tasks and background elevation
// lookups have finished.
func (s *Synchronizer) Wait() {
	s.tasks.Wait()
}

// Close unsubscribes from event sources, drops pending debounced tasks,
// cancels in-flight lookups and waits for them to return.
func (s *Synchronizer) Close() {
	s.mu.Lock()
	unsubs := s.unsubscribe
	s.unsubscribe = nil
	s.mu.Unlock()

	for _, u := range unsubs {
		u()
	}
	s.finish.stopAll()
	s.cancel()
	s.tasks.Wait()
}

// measure recomputes the annotations of ids. A nil only means any category.
// Nothing is written if ctx ends partway through.
func (s *Synchronizer) measure(ctx context.Context, ids []string, only *Category) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg := s.Config()
	present := s.presence()
	sets := make(map[Category]*annotationSet)
	load := func(c Category) *annotationSet {
		if set, ok := sets[c]; ok {
			return set
		}
		fc, _ := s.renderer.Collection(s.names[c])
		set := newAnnotationSet(fc)
		sets[c] = set
		return set
	}

	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		f, ok := s.draw.Feature(id)
		if !ok || !present[id] {
			// Edited away while the event was in flight.
			for _, c := range Categories {
				if s.active[c] {
					load(c).removeOriginal(id, c == CategoryPoint)
				}
			}
			continue
		}

		c, ok := categoryFor(FeatureMode(f), f.Geometry)
		if !ok || !s.active[c] || (only != nil && *only != c) {
			continue
		}

		set := load(c)
		set.removeOriginal(id, c == CategoryPoint)
		for _, a := range s.annotate(id, f, c, cfg) {
			if !present[originalID(a)] {
				continue
			}
			set.merge(a)
		}
	}

	if ctx.Err() != nil {
		return
	}
	for c, set := range sets {
		set.retain(func(id string) bool { return present[id] })
		s.renderer.SetCollection(s.names[c], set.collection())
	}
}

// annotate runs the measurement for category c and writes measured source
// properties back when the drawing engine accepts them. Errors degrade to no
// annotations.
func (s *Synchronizer) annotate(id string, f *geojson.Feature, c Category, cfg Config) []*geojson.Feature {
	var (
		src  *geojson.Feature
		out  []*geojson.Feature
		err  error
		keys []string
	)
	switch c {
	case CategoryPoint:
		res := MeasurePoint(f, cfg, s.renderer)
		src, keys = res.Feature, []string{PropElevation, PropElevationUnit}
		if res.Label != nil {
			out = []*geojson.Feature{res.Label}
		}
	case CategoryLine:
		var res LineResult
		res, err = MeasureLine(f, cfg, s.renderer)
		src, out, keys = res.Feature, res.Annotations(), []string{PropDistance, PropUnit}
	case CategoryPolygon:
		var res PolygonResult
		res, err = MeasurePolygon(f, cfg)
		src, keys = res.Feature, []string{PropArea, PropUnit}
		if res.Label != nil {
			out = []*geojson.Feature{res.Label}
		}
	}
	if err != nil {
		s.logger.Warn("measurement skipped", zap.String("id", id), zap.Stringer("category", c), zap.Error(err))
		return nil
	}

	if w, ok := s.draw.(PropertyWriter); ok && src != nil && src != f {
		props := make(map[string]interface{}, len(keys))
		for _, k := range keys {
			if v, ok := src.Properties[k]; ok {
				props[k] = v
			}
		}
		if len(props) > 0 {
			w.SetProperties(id, props)
		}
	}
	return out
}

// delete purges the annotations of ids, or every annotation when ids is empty.
func (s *Synchronizer) delete(ids []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(ids) == 0 {
		s.finish.stopAll()
		for _, c := range Categories {
			if s.active[c] {
				s.renderer.SetCollection(s.names[c], geojson.NewFeatureCollection())
			}
		}
		return
	}

	for _, id := range ids {
		s.finish.cancel(id)
	}
	for _, c := range Categories {
		if !s.active[c] {
			continue
		}
		fc, _ := s.renderer.Collection(s.names[c])
		set := newAnnotationSet(fc)
		removed := 0
		for _, id := range ids {
			removed += set.removeOriginal(id, c == CategoryPoint)
		}
		if removed > 0 {
			s.renderer.SetCollection(s.names[c], set.collection())
		}
	}
}

// elevationBatch is one background lookup: clones of the annotations that
// should carry elevation, and the config they were built with.
type elevationBatch struct {
	cfg    *Config
	points []*geojson.Feature
	nodes  []*geojson.Feature
}

// refreshElevation fetches raster elevation for the point labels and line
// nodes of ids in the background. Lookups live until Close.
func (s *Synchronizer) refreshElevation(ids []string) {
	if len(ids) == 0 {
		return
	}
	s.mu.Lock()
	batch := elevationBatch{cfg: s.cfg.Load()}
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	if s.active[CategoryPoint] {
		if fc, ok := s.renderer.Collection(s.names[CategoryPoint]); ok {
			for _, f := range fc.Features {
				if want[originalID(f)] {
					batch.points = append(batch.points, cloneFeature(f))
				}
			}
		}
	}
	if s.active[CategoryLine] {
		if fc, ok := s.renderer.Collection(s.names[CategoryLine]); ok {
			for _, f := range fc.Features {
				if _, isNode := geometryOf[orb.Point](f); isNode && want[originalID(f)] {
					batch.nodes = append(batch.nodes, cloneFeature(f))
				}
			}
		}
	}
	s.mu.Unlock()

	if len(batch.points)+len(batch.nodes) == 0 || !batch.cfg.rasterElevation() {
		return
	}

	s.tasks.Add(1)
	go func() {
		defer s.tasks.Done()
		opts := LookupOptions{Config: *batch.cfg, Cache: s.cache, NewReader: s.newReader, Logger: s.logger}
		all := LookupElevations(s.ctx, append(append([]*geojson.Feature{}, batch.points...), batch.nodes...), opts)
		s.applyElevation(batch, all[:len(batch.points)], all[len(batch.points):])
	}()
}

// applyElevation writes background results. A result is dropped when the
// config changed meanwhile, when its source is gone, or when the annotation
// it was cloned from has moved or disappeared.
func (s *Synchronizer) applyElevation(batch elevationBatch, points, nodes []*geojson.Feature) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cfg.Load() != batch.cfg {
		s.logger.Debug("elevation results dropped after config change")
		return
	}
	present := s.presence()

	apply := func(c Category, results []*geojson.Feature) {
		if len(results) == 0 || !s.active[c] {
			return
		}
		fc, _ := s.renderer.Collection(s.names[c])
		set := newAnnotationSet(fc)
		changed := 0
		for _, r := range results {
			if !hasElevation(r) {
				continue
			}
			if !present[originalID(r)] {
				s.logger.Debug("elevation dropped for deleted feature", zap.String("id", FeatureID(r)))
				continue
			}
			cur, ok := set.get(FeatureID(r))
			if !ok || !sameGeometry(cur, r) {
				continue
			}
			updated := cloneFeature(cur)
			updated.Properties[PropElevation] = r.Properties[PropElevation]
			updated.Properties[PropElevationUnit] = r.Properties[PropElevationUnit]
			set.merge(updated)
			changed++
		}
		if changed > 0 {
			s.renderer.SetCollection(s.names[c], set.collection())
		}
	}
	apply(CategoryPoint, points)
	apply(CategoryLine, nodes)
}

// elevatedSourceIDs lists the point and line features in the snapshot.
func (s *Synchronizer) elevatedSourceIDs() []string {
	var ids []string
	for _, f := range s.draw.Snapshot() {
		c, ok := categoryFor(FeatureMode(f), f.Geometry)
		if ok && c != CategoryPolygon {
			ids = append(ids, FeatureID(f))
		}
	}
	return ids
}

func (s *Synchronizer) presence() map[string]bool {
	snap := s.draw.Snapshot()
	present := make(map[string]bool, len(snap))
	for _, f := range snap {
		present[FeatureID(f)] = true
	}
	return present
}
