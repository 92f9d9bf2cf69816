package geomeasure

import (
	"errors"
	"fmt"

	"github.com/Hikitak/geomeasure/terrain"
)

// ErrInvalidConfig wraps every configuration validation failure.
var ErrInvalidConfig = errors.New("geomeasure: invalid config")

// Config controls how measurements are converted and whether elevation is
// attached. It is treated as an immutable value: callers replace it whole.
type Config struct {
	UnitSystem         UnitSystem
	DistanceUnit       UnitMode
	AreaUnit           UnitMode
	ElevationUnit      UnitMode
	DistancePrecision  int
	AreaPrecision      int
	ElevationPrecision int
	Symbols            SymbolTable

	// ComputeElevation attaches elevation to points and line vertices.
	ComputeElevation bool
	// TerrainSource, when set, resolves elevation from raster tiles instead
	// of the host renderer's loaded terrain.
	TerrainSource *terrain.Source
}

// DefaultConfig returns metric auto units with two decimals.
func DefaultConfig() Config {
	return Config{
		UnitSystem:         Metric,
		DistancePrecision:  2,
		AreaPrecision:      2,
		ElevationPrecision: 0,
		Symbols:            DefaultSymbols(),
	}
}

// Validate checks forced units against their families and the terrain source.
func (c Config) Validate() error {
	if c.DistancePrecision < 0 || c.AreaPrecision < 0 || c.ElevationPrecision < 0 {
		return fmt.Errorf("%w: negative precision", ErrInvalidConfig)
	}
	if c.DistanceUnit.Custom == nil && c.DistanceUnit.Unit != "" {
		if _, ok := distanceFactors[c.DistanceUnit.Unit]; !ok {
			return fmt.Errorf("%w: distance unit %q", ErrInvalidConfig, c.DistanceUnit.Unit)
		}
	}
	if c.AreaUnit.Custom == nil && c.AreaUnit.Unit != "" {
		if _, ok := areaFactors[c.AreaUnit.Unit]; !ok {
			return fmt.Errorf("%w: area unit %q", ErrInvalidConfig, c.AreaUnit.Unit)
		}
	}
	if u := c.ElevationUnit.Unit; c.ElevationUnit.Custom == nil && u != "" && u != Meter && u != Foot {
		return fmt.Errorf("%w: elevation unit %q", ErrInvalidConfig, u)
	}
	if c.TerrainSource != nil {
		if err := c.TerrainSource.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}
	return nil
}

// rasterElevation reports whether elevation comes from the raster pipeline.
func (c Config) rasterElevation() bool {
	return c.ComputeElevation && c.TerrainSource != nil
}

// directElevation reports whether elevation is read from the host renderer.
func (c Config) directElevation() bool {
	return c.ComputeElevation && c.TerrainSource == nil
}

func (c Config) distance(meters float64) (Measurement, error) {
	m, err := ConvertDistance(meters, c.UnitSystem, c.DistanceUnit, c.Symbols)
	if err != nil {
		return m, err
	}
	m.Value = Round(m.Value, c.DistancePrecision)
	return m, nil
}

func (c Config) area(squareMeters float64) (Measurement, error) {
	m, err := ConvertArea(squareMeters, c.UnitSystem, c.AreaUnit, c.Symbols)
	if err != nil {
		return m, err
	}
	m.Value = Round(m.Value, c.AreaPrecision)
	return m, nil
}

func (c Config) elevation(meters float64) Measurement {
	m := ConvertElevation(meters, c.UnitSystem, c.ElevationUnit, c.Symbols)
	m.Value = Round(m.Value, c.ElevationPrecision)
	return m
}
