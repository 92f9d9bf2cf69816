// Package terrain reads elevation from raster-encoded terrain tiles
// (Mapbox Terrain-RGB or Terrarium) served over HTTP.
package terrain

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/Hikitak/geomeasure/cache"
)

var (
	ErrInvalidSource = errors.New("terrain: invalid source")
	ErrTileStatus    = errors.New("terrain: unexpected tile status")
)

// Encoding is the pixel encoding of a terrain tile.
type Encoding string

const (
	EncodingMapboxRGB Encoding = "mapbox-rgb"
	EncodingTerrarium Encoding = "terrarium"
)

// Source describes a raster terrain tile set.
type Source struct {
	URL      string   `json:"url"`      // template with {z}, {x} and {y}
	Encoding Encoding `json:"encoding"` // mapbox-rgb or terrarium
	TileSize int      `json:"tileSize"` // nominal tile size in pixels
	MinZoom  int      `json:"minzoom"`
	MaxZoom  int      `json:"maxzoom"`
	TMS      bool     `json:"tms"` // rows counted from the south
}

// Validate checks the URL template, encoding and zoom range.
func (s Source) Validate() error {
	if s.URL == "" {
		return fmt.Errorf("%w: empty url", ErrInvalidSource)
	}
	for _, p := range []string{"{z}", "{x}", "{y}"} {
		if !strings.Contains(s.URL, p) {
			return fmt.Errorf("%w: url is missing %s", ErrInvalidSource, p)
		}
	}
	if s.Encoding != EncodingMapboxRGB && s.Encoding != EncodingTerrarium {
		return fmt.Errorf("%w: encoding %q", ErrInvalidSource, s.Encoding)
	}
	if s.MinZoom < 0 || s.MaxZoom < s.MinZoom || s.MaxZoom > 24 {
		return fmt.Errorf("%w: zoom range %d-%d", ErrInvalidSource, s.MinZoom, s.MaxZoom)
	}
	if s.TileSize < 0 {
		return fmt.Errorf("%w: tile size %d", ErrInvalidSource, s.TileSize)
	}
	return nil
}

// TileURL expands the template for t, flipping the row for TMS sources.
func (s Source) TileURL(t maptile.Tile) string {
	y := t.Y
	if s.TMS {
		y = uint32(1)<<uint32(t.Z) - 1 - t.Y
	}
	r := strings.NewReplacer(
		"{z}", strconv.Itoa(int(t.Z)),
		"{x}", strconv.FormatUint(uint64(t.X), 10),
		"{y}", strconv.FormatUint(uint64(y), 10),
	)
	return r.Replace(s.URL)
}

// Reader fetches and decodes terrain tiles for one Source.
type Reader struct {
	src     Source
	client  *http.Client
	limiter *rate.Limiter
	tiles   *cache.MemoryCache[string, image.Image]
	group   singleflight.Group
	logger  *zap.Logger
}

// Option configures a Reader.
type Option func(*Reader)

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) Option {
	return func(r *Reader) { r.client = c }
}

// WithRateLimit caps tile requests per second. Zero disables the limit.
func WithRateLimit(rps int) Option {
	return func(r *Reader) {
		if rps <= 0 {
			r.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		r.limiter = rate.NewLimiter(rate.Limit(rps), rps)
	}
}

// WithTileCacheSize bounds the number of decoded tiles kept in memory.
func WithTileCacheSize(n int) Option {
	return func(r *Reader) { r.tiles = cache.New[string, image.Image](cache.WithMaxSize(n)) }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Reader) { r.logger = l }
}

// NewReader creates a reader for src. The source is not validated here.
func NewReader(src Source, opts ...Option) *Reader {
	r := &Reader{
		src:     src,
		client:  &http.Client{Timeout: 10 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(20), 20),
		tiles:   cache.New[string, image.Image](cache.WithMaxSize(64)),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Elevation returns the height in meters at p, reading the tile at zoom
// clamped into the source's zoom range. A transparent pixel yields NaN.
func (r *Reader) Elevation(ctx context.Context, p orb.Point, zoom int) (float64, error) {
	zoom = max(r.src.MinZoom, min(zoom, r.src.MaxZoom))
	tile, fx, fy := locate(p, zoom)

	img, err := r.tile(ctx, tile)
	if err != nil {
		return 0, err
	}

	b := img.Bounds()
	px := b.Min.X + max(0, min(int(fx*float64(b.Dx())), b.Dx()-1))
	py := b.Min.Y + max(0, min(int(fy*float64(b.Dy())), b.Dy()-1))
	return decodePixel(r.src.Encoding, img, px, py), nil
}

func (r *Reader) tile(ctx context.Context, t maptile.Tile) (image.Image, error) {
	url := r.src.TileURL(t)
	if img, ok := r.tiles.Get(url); ok {
		return img, nil
	}

	v, err, _ := r.group.Do(url, func() (interface{}, error) {
		if img, ok := r.tiles.Get(url); ok {
			return img, nil
		}
		img, err := r.fetch(ctx, url)
		if err != nil {
			tileFetches.WithLabelValues("error").Inc()
			return nil, err
		}
		tileFetches.WithLabelValues("ok").Inc()
		r.tiles.Set(url, img)
		return img, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(image.Image), nil
}

func (r *Reader) fetch(ctx context.Context, url string) (image.Image, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build tile request: %w", err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch tile: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %d for %s", ErrTileStatus, resp.StatusCode, url)
	}

	img, err := png.Decode(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("decode tile %s: %w", url, err)
	}
	r.logger.Debug("terrain tile fetched", zap.String("url", url))
	return img, nil
}

// locate returns the tile containing p at zoom and p's fractional position inside it.
// maptile bounds latitude itself; longitude is clamped so the antimeridian
// maps onto the last column.
func locate(p orb.Point, zoom int) (maptile.Tile, float64, float64) {
	z := maptile.Zoom(zoom)
	p = orb.Point{math.Max(-180, math.Min(180, p.Lon())), p.Lat()}

	f := maptile.Fraction(p, z)
	t := maptile.At(p, z)
	last := uint32(1)<<uint32(z) - 1
	t.X, t.Y = min(t.X, last), min(t.Y, last)
	return t, unit(f.X() - float64(t.X)), unit(f.Y() - float64(t.Y))
}

func unit(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// decodePixel converts an encoded pixel to meters.
func decodePixel(enc Encoding, img image.Image, x, y int) float64 {
	r16, g16, b16, a16 := img.At(x, y).RGBA()
	if a16 == 0 {
		return math.NaN()
	}
	r, g, b := float64(r16>>8), float64(g16>>8), float64(b16>>8)
	if enc == EncodingTerrarium {
		return r*256 + g + b/256 - 32768
	}
	return -10000 + (r*256*256+g*256+b)*0.1
}
