package main

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hikitak/geomeasure"
)

const lineInput = `{"type":"FeatureCollection","features":[
	{"type":"Feature","id":"l1","properties":{"mode":"linestring"},"geometry":{"type":"LineString","coordinates":[[0,0],[0,1],[1,1]]}},
	{"type":"Feature","id":"p1","properties":{"mode":"polygon"},"geometry":{"type":"Polygon","coordinates":[[[0,0],[0,1],[1,1],[1,0],[0,0]]]}},
	{"type":"Feature","id":"pt","properties":{"mode":"point"},"geometry":{"type":"Point","coordinates":[0.5,0.5]}}
]}`

func setEnv(t *testing.T, kv map[string]string) {
	for _, k := range []string{
		"GEOMEASURE_UNIT_SYSTEM", "GEOMEASURE_DISTANCE_UNIT", "GEOMEASURE_AREA_UNIT",
		"GEOMEASURE_PRECISION", "GEOMEASURE_ELEVATION", "TERRAIN_URL", "TERRAIN_ENCODING",
		"TERRAIN_MAX_ZOOM", "TERRAIN_RPS", "CACHE_TTL_SECONDS", "REDIS_URL",
	} {
		t.Setenv(k, "")
	}
	t.Setenv("LOG_LEVEL", "error")
	for k, v := range kv {
		t.Setenv(k, v)
	}
}

func runCLI(t *testing.T, stdin string, args ...string) (*geojson.FeatureCollection, string) {
	t.Helper()
	args = append([]string{"-env", filepath.Join(t.TempDir(), "none.env")}, args...)
	var out bytes.Buffer
	require.NoError(t, run(context.Background(), args, strings.NewReader(stdin), &out))
	if strings.HasPrefix(strings.TrimSpace(out.String()), "<?xml") {
		return nil, out.String()
	}
	fc, err := geojson.UnmarshalFeatureCollection(out.Bytes())
	require.NoError(t, err)
	return fc, out.String()
}

func byID(fc *geojson.FeatureCollection) map[string]*geojson.Feature {
	out := make(map[string]*geojson.Feature)
	for _, f := range fc.Features {
		// Point labels share their source id; keep the annotation.
		if _, ok := f.Properties[geomeasure.PropOriginalID]; ok || out[geomeasure.FeatureID(f)] == nil {
			out[geomeasure.FeatureID(f)] = f
		}
	}
	return out
}

func TestRun_GeoJSON(t *testing.T) {
	setEnv(t, nil)
	fc, _ := runCLI(t, lineInput)

	// 3 sources, 5 line annotations, 1 area label, 1 point label.
	require.Len(t, fc.Features, 10)
	got := byID(fc)
	for _, id := range []string{"l1-0", "l1-1", "l1-node-0", "l1-node-1", "l1-node-2", "p1-area-label"} {
		assert.Contains(t, got, id)
	}
	assert.Equal(t, "km", got["l1-1"].Properties[geomeasure.PropTotalUnit])
	assert.Equal(t, "km²", got["p1-area-label"].Properties[geomeasure.PropUnit])
}

func TestRun_ImperialKML(t *testing.T) {
	setEnv(t, map[string]string{"GEOMEASURE_UNIT_SYSTEM": "imperial"})
	_, out := runCLI(t, lineInput, "-format", "kml")

	assert.Contains(t, out, "<Folder>")
	assert.Contains(t, out, "<name>l1-node-2</name>")
	assert.Contains(t, out, " mi")
	assert.Contains(t, out, " mi²")
}

func TestRun_Polyline(t *testing.T) {
	setEnv(t, nil)
	fc, _ := runCLI(t, "", "-polyline", "_p~iF~ps|U_ulLnnqC_mqNvxq`@")

	got := byID(fc)
	assert.Contains(t, got, "polyline-1")
	assert.Contains(t, got, "polyline-node-2")
	assert.Len(t, fc.Features, 1+2+3)
}

func TestRun_MetricsFile(t *testing.T) {
	setEnv(t, nil)
	path := filepath.Join(t.TempDir(), "metrics.txt")
	runCLI(t, lineInput, "-metrics-out", path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `geomeasure_annotation_passes_total{kind="recalc"}`)
}

func TestRun_RasterElevationWithRedis(t *testing.T) {
	tile := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			tile.Set(x, y, color.NRGBA{R: 129, G: 244, B: 0, A: 255})
		}
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_ = png.Encode(w, tile)
	}))
	defer srv.Close()
	mr := miniredis.RunT(t)

	setEnv(t, map[string]string{
		"GEOMEASURE_ELEVATION": "true",
		"TERRAIN_URL":          srv.URL + "/{z}/{x}/{y}.png",
		"TERRAIN_ENCODING":     "terrarium",
		"TERRAIN_MAX_ZOOM":     "5",
		"TERRAIN_RPS":          "0",
		"REDIS_URL":            "redis://" + mr.Addr(),
	})
	fc, _ := runCLI(t, lineInput)

	got := byID(fc)
	assert.Equal(t, 500.0, got["l1-node-1"].Properties[geomeasure.PropElevation])
	assert.Equal(t, "m", got["l1-node-1"].Properties[geomeasure.PropElevationUnit])
	assert.False(t, hasKey(got["l1-0"], geomeasure.PropElevation))

	keys := mr.Keys()
	assert.NotEmpty(t, keys)
	for _, k := range keys {
		assert.True(t, strings.HasPrefix(k, "geomeasure:elevation:elevation_"), k)
	}
}

func TestRun_Errors(t *testing.T) {
	setEnv(t, nil)
	env := filepath.Join(t.TempDir(), "none.env")
	ctx := context.Background()

	err := run(ctx, []string{"-env", env, "-format", "svg"}, strings.NewReader(lineInput), &bytes.Buffer{})
	assert.Error(t, err)

	err = run(ctx, []string{"-env", env, "-in", filepath.Join(t.TempDir(), "missing.geojson")}, nil, &bytes.Buffer{})
	assert.Error(t, err)

	err = run(ctx, []string{"-env", env}, strings.NewReader("{"), &bytes.Buffer{})
	assert.Error(t, err)

	t.Setenv("GEOMEASURE_UNIT_SYSTEM", "nautical")
	err = run(ctx, []string{"-env", env}, strings.NewReader(lineInput), &bytes.Buffer{})
	assert.Error(t, err)
}

func hasKey(f *geojson.Feature, key string) bool {
	_, ok := f.Properties[key]
	return ok
}
