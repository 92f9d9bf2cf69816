// Command geomeasure measures drawn geometries from GeoJSON or an encoded
// polyline and writes the resulting annotation collections.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/paulmach/orb/geojson"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"go.uber.org/zap"

	"github.com/Hikitak/geomeasure"
	"github.com/Hikitak/geomeasure/cache"
	"github.com/Hikitak/geomeasure/internal/config"
	"github.com/Hikitak/geomeasure/internal/geoio"
	"github.com/Hikitak/geomeasure/terrain"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "geomeasure:", err)
		os.Exit(1)
	}
}

type options struct {
	in       string
	polyline string
	format   string
	out      string
	metrics  string
	envFile  string
}

func parseFlags(args []string) (options, error) {
	var o options
	fs := flag.NewFlagSet("geomeasure", flag.ContinueOnError)
	fs.StringVar(&o.in, "in", "-", "GeoJSON input file, - for stdin")
	fs.StringVar(&o.polyline, "polyline", "", "measure this encoded polyline instead of reading GeoJSON")
	fs.StringVar(&o.format, "format", "geojson", "output format: geojson or kml")
	fs.StringVar(&o.out, "out", "-", "output file, - for stdout")
	fs.StringVar(&o.metrics, "metrics-out", "", "write Prometheus metrics in text format to this file")
	fs.StringVar(&o.envFile, "env", ".env", "dotenv file to load")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if o.format != "geojson" && o.format != "kml" {
		return o, fmt.Errorf("unknown format %q", o.format)
	}
	return o, nil
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	opts, err := parseFlags(args)
	if err != nil {
		return err
	}
	cfg, err := config.Load(opts.envFile)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	reg := prometheus.NewRegistry()
	if err := geomeasure.RegisterMetrics(reg); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	features, err := readInput(opts, stdin)
	if err != nil {
		return err
	}
	logger.Info("input loaded", zap.Int("features", len(features)))

	elevCache, closeCache, err := openCache(cfg.Cache, logger)
	if err != nil {
		return err
	}
	defer closeCache()

	syncOpts := []geomeasure.SyncOption{
		geomeasure.WithConfig(cfg.Measure),
		geomeasure.WithElevationCache(elevCache),
		geomeasure.WithLogger(logger),
	}
	if src := cfg.Measure.TerrainSource; src != nil {
		// One reader for the whole run so decoded tiles are shared between batches.
		reader := terrain.NewReader(*src, terrain.WithRateLimit(cfg.Terrain.RPS), terrain.WithLogger(logger))
		syncOpts = append(syncOpts, geomeasure.WithReaderFactory(func(terrain.Source) geomeasure.ElevationReader { return reader }))
	}

	draw := geomeasure.NewMemoryDraw()
	view := geomeasure.NewMemoryMap(nil)
	s := geomeasure.NewSynchronizer(draw, view, syncOpts...)
	defer s.Close()

	s.Activate(geomeasure.ModePoint, geomeasure.ModeLineString, geomeasure.ModePolygon)
	draw.Add(features...)
	if err := s.Recalc(ctx); err != nil {
		return err
	}
	s.Wait()
	if err := ctx.Err(); err != nil {
		return err
	}

	w, closeOut, err := openOutput(opts.out, stdout)
	if err != nil {
		return err
	}
	defer closeOut()

	layers := []geoio.Layer{{Name: "sources", Collection: sourceCollection(draw)}}
	for _, c := range geomeasure.Categories {
		fc, _ := view.Collection(s.CollectionName(c))
		layers = append(layers, geoio.Layer{Name: s.CollectionName(c), Collection: fc})
	}
	if err := writeOutput(w, opts.format, layers); err != nil {
		return err
	}

	if opts.metrics != "" {
		if err := writeMetrics(opts.metrics, reg); err != nil {
			return err
		}
	}
	return nil
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	zc := zap.NewProductionConfig()
	zc.Level = lvl
	zc.OutputPaths = []string{"stderr"}
	return zc.Build()
}

func readInput(opts options, stdin io.Reader) ([]*geojson.Feature, error) {
	if opts.polyline != "" {
		f, err := geoio.DecodePolyline("polyline", opts.polyline)
		if err != nil {
			return nil, err
		}
		return []*geojson.Feature{f}, nil
	}

	r := stdin
	if opts.in != "-" {
		f, err := os.Open(opts.in)
		if err != nil {
			return nil, fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		r = f
	}
	return geoio.ReadFeatures(r)
}

func openCache(cc config.CacheConfig, logger *zap.Logger) (geomeasure.ElevationCache, func(), error) {
	if cc.RedisURL != "" {
		rc, err := cache.OpenRedisCache(cc.RedisURL, cc.TTL, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("redis: %w", err)
		}
		logger.Info("elevation cache", zap.String("backend", "redis"))
		return rc, func() { _ = rc.Close() }, nil
	}
	mc := cache.New[string, float64](cache.WithMaxSize(cc.MaxSize), cache.WithTTL(cc.TTL))
	return mc, func() {
		st := mc.Stats()
		logger.Debug("elevation cache stats",
			zap.Int("size", st.Size),
			zap.Uint64("hits", st.Hits),
			zap.Uint64("misses", st.Misses))
	}, nil
}

func openOutput(path string, stdout io.Writer) (io.Writer, func(), error) {
	if path == "-" {
		return stdout, func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("create output: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}

func sourceCollection(draw *geomeasure.MemoryDraw) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	fc.Features = draw.Snapshot()
	return fc
}

func writeOutput(w io.Writer, format string, layers []geoio.Layer) error {
	switch format {
	case "kml":
		return geoio.WriteKML(w, "geomeasure", layers)
	case "geojson":
		all := geojson.NewFeatureCollection()
		for _, l := range layers {
			if l.Collection != nil {
				all.Features = append(all.Features, l.Collection.Features...)
			}
		}
		return geoio.WriteGeoJSON(w, all)
	}
	return errors.New("unknown format " + format)
}

func writeMetrics(path string, g prometheus.Gatherer) error {
	mfs, err := g.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create metrics file: %w", err)
	}
	defer f.Close()

	enc := expfmt.NewEncoder(f, expfmt.FmtText)
	for _, mf := range mfs {
		if err := enc.Encode(mf); err != nil {
			return fmt.Errorf("encode metrics: %w", err)
		}
	}
	return nil
}
