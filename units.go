package geomeasure

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Unit is a canonical unit key. Display strings come from a SymbolTable.
type Unit string

const (
	Kilometer        Unit = "kilometer"
	Meter            Unit = "meter"
	Centimeter       Unit = "centimeter"
	Mile             Unit = "mile"
	Foot             Unit = "foot"
	Inch             Unit = "inch"
	SquareMeters     Unit = "square-meters"
	SquareKilometers Unit = "square-kilometers"
	Ares             Unit = "ares"
	Hectares         Unit = "hectares"
	SquareFeet       Unit = "square-feet"
	SquareYards      Unit = "square-yards"
	Acres            Unit = "acres"
	SquareMiles      Unit = "square-miles"
)

var (
	// ErrUnknownUnit is returned when a forced unit is not one of the canonical keys.
	ErrUnknownUnit = errors.New("geomeasure: unknown unit")
	// ErrUnitFamily is returned when an area unit is forced on a distance or vice versa.
	ErrUnitFamily = errors.New("geomeasure: unit does not measure this quantity")
)

// Conversion factors to the base unit (meters or square meters).
var (
	distanceFactors = map[Unit]float64{
		Kilometer:  1000,
		Meter:      1,
		Centimeter: 0.01,
		Mile:       1609.344,
		Foot:       0.3048,
		Inch:       0.0254,
	}
	areaFactors = map[Unit]float64{
		SquareKilometers: 1_000_000,
		Hectares:         10_000,
		Ares:             100,
		SquareMeters:     1,
		SquareMiles:      2_589_988.11,
		Acres:            4_046.856,
		SquareYards:      0.83612736,
		SquareFeet:       1 / squareFeetPerSquareMeter,
	}
)

const (
	feetPerMeter             = 3.28084
	feetPerMile              = 5280
	inchesPerFoot            = 12
	squareFeetPerSquareMeter = 10.7639
)

// SymbolTable maps canonical units to display strings.
type SymbolTable map[Unit]string

var defaultSymbols = SymbolTable{
	Kilometer:        "km",
	Meter:            "m",
	Centimeter:       "cm",
	Mile:             "mi",
	Foot:             "ft",
	Inch:             "in",
	SquareMeters:     "m²",
	SquareKilometers: "km²",
	Ares:             "a",
	Hectares:         "ha",
	SquareFeet:       "ft²",
	SquareYards:      "yd²",
	Acres:            "ac",
	SquareMiles:      "mi²",
}

// DefaultSymbols returns a copy of the built-in symbol table.
func DefaultSymbols() SymbolTable {
	t := make(SymbolTable, len(defaultSymbols))
	for k, v := range defaultSymbols {
		t[k] = v
	}
	return t
}

// Symbol returns the display string for u, falling back to the default table.
func (t SymbolTable) Symbol(u Unit) string {
	if s, ok := t[u]; ok && s != "" {
		return s
	}
	if s, ok := defaultSymbols[u]; ok {
		return s
	}
	return string(u)
}

// UnitSystem selects the family used by auto conversion.
type UnitSystem int

const (
	Metric UnitSystem = iota
	Imperial
)

func (s UnitSystem) String() string {
	if s == Imperial {
		return "imperial"
	}
	return "metric"
}

// ParseUnitSystem accepts "metric" or "imperial".
func ParseUnitSystem(s string) (UnitSystem, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "metric":
		return Metric, nil
	case "imperial":
		return Imperial, nil
	}
	return Metric, fmt.Errorf("unit system %q: %w", s, ErrUnknownUnit)
}

// Measurement is a converted value with its unit and display symbol.
type Measurement struct {
	Value  float64
	Unit   Unit
	Symbol string
}

// ConversionFunc receives the raw base value and returns the display measurement.
type ConversionFunc func(base float64) Measurement

// UnitMode is the forced-unit parameter. The zero value means auto.
type UnitMode struct {
	Unit   Unit
	Custom ConversionFunc
}

// Auto selects units from thresholds.
var Auto = UnitMode{}

// Force always converts into u.
func Force(u Unit) UnitMode { return UnitMode{Unit: u} }

// Custom delegates the conversion to fn.
func Custom(fn ConversionFunc) UnitMode { return UnitMode{Custom: fn} }

// IsAuto reports whether no unit is forced.
func (m UnitMode) IsAuto() bool { return m.Unit == "" && m.Custom == nil }

func (m UnitMode) String() string {
	switch {
	case m.Custom != nil:
		return "custom"
	case m.Unit == "":
		return "auto"
	}
	return string(m.Unit)
}

// ParseUnitMode accepts "auto" or a canonical unit key.
func ParseUnitMode(s string) (UnitMode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || s == "auto" {
		return Auto, nil
	}
	u := Unit(s)
	if _, ok := distanceFactors[u]; ok {
		return Force(u), nil
	}
	if _, ok := areaFactors[u]; ok {
		return Force(u), nil
	}
	return Auto, fmt.Errorf("%q: %w", s, ErrUnknownUnit)
}

// ConvertDistance converts meters into a display measurement. The result is not rounded.
func ConvertDistance(meters float64, system UnitSystem, mode UnitMode, symbols SymbolTable) (Measurement, error) {
	if mode.Custom != nil {
		return mode.Custom(meters), nil
	}
	if mode.Unit != "" {
		return forced(meters, mode.Unit, distanceFactors, symbols)
	}

	if system == Imperial {
		feet := meters * feetPerMeter
		// Thresholds use feet rounded to a tenth so values near a boundary do not flicker.
		rounded := math.Round(feet*10) / 10
		switch {
		case rounded >= feetPerMile:
			return measurement(feet/feetPerMile, Mile, symbols), nil
		case rounded >= 1:
			return measurement(feet, Foot, symbols), nil
		default:
			return measurement(feet*inchesPerFoot, Inch, symbols), nil
		}
	}

	switch {
	case meters >= 1000:
		return measurement(meters/1000, Kilometer, symbols), nil
	case meters >= 1:
		return measurement(meters, Meter, symbols), nil
	default:
		return measurement(meters*100, Centimeter, symbols), nil
	}
}

// ConvertArea converts square meters into a display measurement. The result is not rounded.
func ConvertArea(squareMeters float64, system UnitSystem, mode UnitMode, symbols SymbolTable) (Measurement, error) {
	if mode.Custom != nil {
		return mode.Custom(squareMeters), nil
	}
	if mode.Unit != "" {
		return forced(squareMeters, mode.Unit, areaFactors, symbols)
	}

	var u Unit
	if system == Imperial {
		switch {
		case squareMeters >= areaFactors[SquareMiles]:
			u = SquareMiles
		case squareMeters >= areaFactors[Acres]:
			u = Acres
		case squareMeters >= areaFactors[SquareYards]:
			u = SquareYards
		default:
			u = SquareFeet
		}
	} else {
		switch {
		case squareMeters >= areaFactors[SquareKilometers]:
			u = SquareKilometers
		case squareMeters >= areaFactors[Hectares]:
			u = Hectares
		case squareMeters >= areaFactors[Ares]:
			u = Ares
		default:
			u = SquareMeters
		}
	}
	if u == SquareFeet {
		return measurement(squareMeters*squareFeetPerSquareMeter, u, symbols), nil
	}
	return measurement(squareMeters/areaFactors[u], u, symbols), nil
}

// ConvertElevation converts meters into meters or feet. A forced Meter or Foot
// overrides the unit system; any other forced unit is ignored.
func ConvertElevation(meters float64, system UnitSystem, mode UnitMode, symbols SymbolTable) Measurement {
	if mode.Custom != nil {
		return mode.Custom(meters)
	}
	u := mode.Unit
	if u != Meter && u != Foot {
		u = Meter
		if system == Imperial {
			u = Foot
		}
	}
	if u == Foot {
		return measurement(meters*feetPerMeter, Foot, symbols)
	}
	return measurement(meters, Meter, symbols)
}

// ToBase re-derives the base value (meters or square meters) of m.
func ToBase(m Measurement) (float64, error) {
	if m.Unit == SquareFeet {
		return m.Value / squareFeetPerSquareMeter, nil
	}
	if f, ok := distanceFactors[m.Unit]; ok {
		return m.Value * f, nil
	}
	if f, ok := areaFactors[m.Unit]; ok {
		return m.Value * f, nil
	}
	return 0, fmt.Errorf("%q: %w", m.Unit, ErrUnknownUnit)
}

// Round rounds value to precision decimal places. Negative precision is treated as zero.
func Round(value float64, precision int) float64 {
	if precision < 0 {
		precision = 0
	}
	p := math.Pow(10, float64(precision))
	return math.Round(value*p) / p
}

func forced(base float64, u Unit, family map[Unit]float64, symbols SymbolTable) (Measurement, error) {
	f, ok := family[u]
	if !ok {
		if _, known := distanceFactors[u]; known {
			return Measurement{}, fmt.Errorf("%q: %w", u, ErrUnitFamily)
		}
		if _, known := areaFactors[u]; known {
			return Measurement{}, fmt.Errorf("%q: %w", u, ErrUnitFamily)
		}
		return Measurement{}, fmt.Errorf("%q: %w", u, ErrUnknownUnit)
	}
	if u == SquareFeet {
		return measurement(base*squareFeetPerSquareMeter, u, symbols), nil
	}
	return measurement(base/f, u, symbols), nil
}

func measurement(v float64, u Unit, symbols SymbolTable) Measurement {
	return Measurement{Value: v, Unit: u, Symbol: symbols.Symbol(u)}
}
