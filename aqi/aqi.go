// Package aqi converts particulate-matter concentrations into the US EPA
// Air Quality Index via piecewise-linear interpolation over the published
// breakpoint tables. The package is pure computation and carries no
// dependency on the sensor or the store.
package aqi

import (
	"fmt"
	"math"
)

// Level is one of the six ordered EPA air quality categories.
type Level string

const (
	LevelGood          Level = "Good"
	LevelModerate      Level = "Moderate"
	LevelSensitive     Level = "Unhealthy for Sensitive Groups"
	LevelUnhealthy     Level = "Unhealthy"
	LevelVeryUnhealthy Level = "Very Unhealthy"
	LevelHazardous     Level = "Hazardous"
)

// Pollutant identifies which input produced the reported index.
type Pollutant string

const (
	PollutantPM25 Pollutant = "PM2.5"
	PollutantPM10 Pollutant = "PM10"
)

// MaxIndex is the ceiling of the AQI scale. Concentrations beyond the last
// breakpoint segment cap at this value.
const MaxIndex = 500

// Breakpoint is a single linear piece of the interpolation function:
// concentrations in [CLow, CHigh] map onto indices in [ILow, IHigh].
type Breakpoint struct {
	CLow  float64
	CHigh float64
	ILow  int
	IHigh int
}

// PM25Breakpoints is the US EPA PM2.5 (µg/m³, 24h) table.
var PM25Breakpoints = []Breakpoint{
	{0.0, 12.0, 0, 50},
	{12.1, 35.4, 51, 100},
	{35.5, 55.4, 101, 150},
	{55.5, 150.4, 151, 200},
	{150.5, 250.4, 201, 300},
	{250.5, 350.4, 301, 400},
	{350.5, 500.4, 401, 500},
}

// PM10Breakpoints is the US EPA PM10 (µg/m³, 24h) table.
var PM10Breakpoints = []Breakpoint{
	{0, 54, 0, 50},
	{55, 154, 51, 100},
	{155, 254, 101, 150},
	{255, 354, 151, 200},
	{355, 424, 201, 300},
	{425, 504, 301, 400},
	{505, 604, 401, 500},
}

var healthMessages = map[Level]string{
	LevelGood:          "Air quality is satisfactory",
	LevelModerate:      "Air quality is acceptable for most people",
	LevelSensitive:     "Sensitive groups may experience health effects",
	LevelUnhealthy:     "Everyone may experience health effects",
	LevelVeryUnhealthy: "Health alert: everyone may experience serious health effects",
	LevelHazardous:     "Emergency conditions: everyone affected",
}

// Result is a derived AQI report. It is computed fresh from a reading and
// never treated as authoritative stored state.
type Result struct {
	Value         int
	Level         Level
	Color         string
	Source        Pollutant
	PM25Index     int
	PM10Index     *int
	HealthMessage string
}

// InvalidConcentrationError reports a concentration input outside the
// physically meaningful range.
type InvalidConcentrationError struct {
	Pollutant Pollutant
	Value     float64
}

func (e *InvalidConcentrationError) Error() string {
	return fmt.Sprintf("invalid %s concentration %.1f: must be non-negative", e.Pollutant, e.Value)
}

// Compute derives the AQI for a PM2.5 concentration, optionally comparing
// against a PM10 concentration. When both are supplied the higher of the two
// indices wins and Source records which pollutant produced it; ties go to
// PM2.5. Negative inputs are rejected.
func Compute(pm25 float64, pm10 *float64) (Result, error) {
	pm25Index, err := FromPM25(pm25)
	if err != nil {
		return Result{}, err
	}

	result := Result{
		Value:     pm25Index,
		Source:    PollutantPM25,
		PM25Index: pm25Index,
	}

	if pm10 != nil {
		pm10Index, err := FromPM10(*pm10)
		if err != nil {
			return Result{}, err
		}
		result.PM10Index = &pm10Index

		if pm10Index > pm25Index {
			result.Value = pm10Index
			result.Source = PollutantPM10
		}
	}

	result.Level, result.Color = LevelFor(result.Value)
	result.HealthMessage = healthMessages[result.Level]

	return result, nil
}

// FromPM25 maps a PM2.5 concentration (µg/m³) onto the AQI scale.
func FromPM25(concentration float64) (int, error) {
	if concentration < 0 {
		return 0, &InvalidConcentrationError{Pollutant: PollutantPM25, Value: concentration}
	}
	return interpolate(concentration, PM25Breakpoints), nil
}

// FromPM10 maps a PM10 concentration (µg/m³) onto the AQI scale.
func FromPM10(concentration float64) (int, error) {
	if concentration < 0 {
		return 0, &InvalidConcentrationError{Pollutant: PollutantPM10, Value: concentration}
	}
	return interpolate(concentration, PM10Breakpoints), nil
}

// LevelFor maps an index onto its category and color band. Boundaries sit at
// 50, 100, 150, 200 and 300.
func LevelFor(index int) (Level, string) {
	switch {
	case index <= 50:
		return LevelGood, "Green"
	case index <= 100:
		return LevelModerate, "Yellow"
	case index <= 150:
		return LevelSensitive, "Orange"
	case index <= 200:
		return LevelUnhealthy, "Red"
	case index <= 300:
		return LevelVeryUnhealthy, "Purple"
	default:
		return LevelHazardous, "Maroon"
	}
}

// HealthMessage returns the advisory text for a level.
func HealthMessage(level Level) string {
	return healthMessages[level]
}

func interpolate(concentration float64, table []Breakpoint) int {
	last := table[len(table)-1]
	if concentration > last.CHigh {
		// Beyond the table: cap at the scale maximum.
		return last.IHigh
	}

	segment := last
	for _, bp := range table {
		if concentration <= bp.CHigh {
			segment = bp
			break
		}
	}

	ratio := float64(segment.IHigh-segment.ILow) / (segment.CHigh - segment.CLow)
	index := int(math.Round(ratio*(concentration-segment.CLow))) + segment.ILow

	if index > MaxIndex {
		index = MaxIndex
	}
	if index < 0 {
		index = 0
	}
	return index
}
