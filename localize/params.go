package localize

import (
	"fmt"
	"math"
)

const (
	// DefaultArenaHalfWidth is the distance from the arena centre to each wall (inches)
	DefaultArenaHalfWidth = 72.0

	// MMToInch converts the driver's native millimetres to inches
	MMToInch = 1.0 / 25.4

	// ConfidenceMax is the top of the driver's confidence scale
	ConfidenceMax = 64.0

	// NoiseCoefficient scales measured distance into a standard deviation
	NoiseCoefficient = 0.2

	// MaxRangeMM is the driver's "nothing in range" reading
	MaxRangeMM = 9999.0

	// MinStdDev floors degenerate standard deviations (inches)
	MinStdDev = 0.01

	// MinConfidenceRatio is the lowest confidence, as a fraction of
	// ConfidenceMax, used in the noise model. Zero confidence yields the
	// widest distribution rather than dividing by zero.
	MinConfidenceRatio = 1e-6
)

// Params holds the sensor noise and unit constants used by a DistanceModel.
// Values are fixed once a model is constructed.
type Params struct {
	MMToInch         float64 `yaml:"mmToInch" json:"mmToInch"`
	ConfidenceMax    float64 `yaml:"confidenceMax" json:"confidenceMax"`
	NoiseCoefficient float64 `yaml:"noiseCoefficient" json:"noiseCoefficient"`
	MaxRangeMM       float64 `yaml:"maxRangeMM" json:"maxRangeMM"`
	MinStdDev        float64 `yaml:"minStdDev" json:"minStdDev"`
}

// DefaultParams returns the parameters of the stock distance sensor
func DefaultParams() Params {
	return Params{
		MMToInch:         MMToInch,
		ConfidenceMax:    ConfidenceMax,
		NoiseCoefficient: NoiseCoefficient,
		MaxRangeMM:       MaxRangeMM,
		MinStdDev:        MinStdDev,
	}
}

// withDefaults fills unset (zero) fields from DefaultParams
func (p Params) withDefaults() Params {
	d := DefaultParams()
	if p.MMToInch == 0 {
		p.MMToInch = d.MMToInch
	}
	if p.ConfidenceMax == 0 {
		p.ConfidenceMax = d.ConfidenceMax
	}
	if p.NoiseCoefficient == 0 {
		p.NoiseCoefficient = d.NoiseCoefficient
	}
	if p.MaxRangeMM == 0 {
		p.MaxRangeMM = d.MaxRangeMM
	}
	if p.MinStdDev == 0 {
		p.MinStdDev = d.MinStdDev
	}
	return p
}

// Validate checks that every parameter is usable
func (p Params) Validate() error {
	if !(p.MMToInch > 0) || math.IsInf(p.MMToInch, 0) {
		return fmt.Errorf("mmToInch must be positive, got %v", p.MMToInch)
	}
	if !(p.ConfidenceMax > 0) {
		return fmt.Errorf("confidenceMax must be positive, got %v", p.ConfidenceMax)
	}
	if !(p.NoiseCoefficient > 0) {
		return fmt.Errorf("noiseCoefficient must be positive, got %v", p.NoiseCoefficient)
	}
	if !(p.MaxRangeMM > 0) {
		return fmt.Errorf("maxRangeMM must be positive, got %v", p.MaxRangeMM)
	}
	if !(p.MinStdDev > 0) {
		return fmt.Errorf("minStdDev must be positive, got %v", p.MinStdDev)
	}
	return nil
}

// MaxRange is the no-information threshold in inches
func (p Params) MaxRange() float64 {
	return p.MaxRangeMM * p.MMToInch
}

// Convert turns a raw driver sample into a cached reading.
//
// Confidence is clamped to [MinConfidenceRatio·ConfidenceMax, ConfidenceMax]
// so the standard deviation keeps growing as confidence falls. A standard
// deviation below MinStdDev (zero distance) is floored to MinStdDev.
// Negative or non-finite distances become the max-range reading.
func (p Params) Convert(raw RawMeasurement) CachedReading {
	mm := raw.DistanceMM
	if math.IsNaN(mm) || math.IsInf(mm, 0) || mm < 0 {
		mm = p.MaxRangeMM
	}
	distance := mm * p.MMToInch

	conf := raw.Confidence
	if minConf := MinConfidenceRatio * p.ConfidenceMax; math.IsNaN(conf) || conf < minConf {
		conf = minConf
	}
	if conf > p.ConfidenceMax {
		conf = p.ConfidenceMax
	}

	stddev := p.NoiseCoefficient * distance / math.Sqrt(conf/p.ConfidenceMax)
	if math.IsNaN(stddev) || math.IsInf(stddev, 0) || stddev < p.MinStdDev {
		stddev = p.MinStdDev
	}

	return CachedReading{Distance: distance, StdDev: stddev}
}
