package localize

import "fmt"

// Point represents a 2D coordinate in the arena frame (inches)
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Pose is a robot pose hypothesis in the arena frame.
// X and Y are in inches, Theta in radians (0 = East, CCW).
type Pose struct {
	X     float64 `json:"x" csv:"x"`
	Y     float64 `json:"y" csv:"y"`
	Theta float64 `json:"theta" csv:"theta"`
}

// Position returns the translational part of the pose
func (p Pose) Position() Point {
	return Point{X: p.X, Y: p.Y}
}

func (p Pose) String() string {
	return fmt.Sprintf("(%.2f, %.2f, %.3f rad)", p.X, p.Y, p.Theta)
}

// SensorMount is the fixed placement of a range sensor in the robot frame.
// X/Y are inches from the robot centre, Theta is the facing offset in radians.
type SensorMount struct {
	X     float64 `yaml:"x" json:"x"`
	Y     float64 `yaml:"y" json:"y"`
	Theta float64 `yaml:"theta" json:"theta"`
}

// RawMeasurement is one sample in the driver's native units
type RawMeasurement struct {
	DistanceMM float64 `json:"distance"`
	Confidence float64 `json:"confidence"`
}

// CachedReading is a refreshed sample converted to arena units
type CachedReading struct {
	Distance float64 `json:"distance"` // inches
	StdDev   float64 `json:"stddev"`   // inches
}

// Likelihood is the result of scoring one pose. It is either informative,
// carrying a Gaussian density, or carries no information because the sensor
// saw nothing within range. The zero value is NoInformation.
type Likelihood struct {
	value       float64
	informative bool
}

// Informative wraps a density value
func Informative(v float64) Likelihood {
	return Likelihood{value: v, informative: true}
}

// NoInformation is the result for readings that must not update weights
func NoInformation() Likelihood {
	return Likelihood{}
}

// Value returns the density and whether the likelihood is informative
func (l Likelihood) Value() (float64, bool) {
	return l.value, l.informative
}

// IsInformative reports whether the likelihood carries a density
func (l Likelihood) IsInformative() bool {
	return l.informative
}

// ValueOr returns the density, or fallback when there is no information
func (l Likelihood) ValueOr(fallback float64) float64 {
	if !l.informative {
		return fallback
	}
	return l.value
}

func (l Likelihood) String() string {
	if !l.informative {
		return "no-information"
	}
	return fmt.Sprintf("%.6g", l.value)
}
