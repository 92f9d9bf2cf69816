// Package config reads the command line tool's settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/Hikitak/geomeasure"
	"github.com/Hikitak/geomeasure/terrain"
)

// Config is the resolved tool configuration.
type Config struct {
	Measure  geomeasure.Config
	Terrain  TerrainConfig
	Cache    CacheConfig
	LogLevel string
}

// TerrainConfig holds reader settings that are not part of the tile source.
type TerrainConfig struct {
	RPS int
}

// CacheConfig selects and sizes the elevation cache.
type CacheConfig struct {
	MaxSize  int
	TTL      time.Duration
	RedisURL string
}

// Load reads .env files, if present, and then the environment. Variables
// already set in the environment win over .env values.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		_ = godotenv.Load(f)
	}

	m := geomeasure.DefaultConfig()
	var err error
	if m.UnitSystem, err = geomeasure.ParseUnitSystem(getEnv("GEOMEASURE_UNIT_SYSTEM", "metric")); err != nil {
		return nil, fmt.Errorf("GEOMEASURE_UNIT_SYSTEM: %w", err)
	}
	if m.DistanceUnit, err = geomeasure.ParseUnitMode(getEnv("GEOMEASURE_DISTANCE_UNIT", "auto")); err != nil {
		return nil, fmt.Errorf("GEOMEASURE_DISTANCE_UNIT: %w", err)
	}
	if m.AreaUnit, err = geomeasure.ParseUnitMode(getEnv("GEOMEASURE_AREA_UNIT", "auto")); err != nil {
		return nil, fmt.Errorf("GEOMEASURE_AREA_UNIT: %w", err)
	}
	precision, err := getInt("GEOMEASURE_PRECISION", m.DistancePrecision)
	if err != nil {
		return nil, err
	}
	m.DistancePrecision, m.AreaPrecision = precision, precision
	if m.ComputeElevation, err = getBool("GEOMEASURE_ELEVATION", false); err != nil {
		return nil, err
	}

	if url := getEnv("TERRAIN_URL", ""); url != "" {
		src := &terrain.Source{
			URL:      url,
			Encoding: terrain.Encoding(getEnv("TERRAIN_ENCODING", string(terrain.EncodingMapboxRGB))),
		}
		if src.TileSize, err = getInt("TERRAIN_TILE_SIZE", 256); err != nil {
			return nil, err
		}
		if src.MinZoom, err = getInt("TERRAIN_MIN_ZOOM", 0); err != nil {
			return nil, err
		}
		if src.MaxZoom, err = getInt("TERRAIN_MAX_ZOOM", 14); err != nil {
			return nil, err
		}
		if src.TMS, err = getBool("TERRAIN_TMS", false); err != nil {
			return nil, err
		}
		m.TerrainSource = src
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}

	cfg := &Config{Measure: m, LogLevel: getEnv("LOG_LEVEL", "info")}
	if cfg.Terrain.RPS, err = getInt("TERRAIN_RPS", 20); err != nil {
		return nil, err
	}
	if cfg.Cache.MaxSize, err = getInt("CACHE_MAX_SIZE", 1000); err != nil {
		return nil, err
	}
	ttl, err := getInt("CACHE_TTL_SECONDS", 0)
	if err != nil {
		return nil, err
	}
	cfg.Cache.TTL = time.Duration(ttl) * time.Second
	cfg.Cache.RedisURL = getEnv("REDIS_URL", "")
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) (int, error) {
	v := getEnv(key, "")
	if v == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getBool(key string, defaultValue bool) (bool, error) {
	v := getEnv(key, "")
	if v == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}
