package localize

import "math"

const twoPi = 2 * math.Pi

// AngleDiff returns the signed shortest rotation from heading a to heading b,
// wrapped to (-π, π].
func AngleDiff(a, b float64) float64 {
	d := math.Remainder(b-a, twoPi)
	// Remainder rounds ties to even, so an exact half turn can come back as -π
	if d <= -math.Pi {
		d += twoPi
	}
	return d
}

// NormalizeAngle normalizes an angle in radians to the range [0, 2π).
func NormalizeAngle(rad float64) float64 {
	rad = math.Mod(rad, twoPi)
	if rad < 0 {
		rad += twoPi
	}
	if rad >= twoPi {
		rad = 0
	}
	return rad
}

// Radians converts degrees to radians
func Radians(deg float64) float64 {
	return deg * math.Pi / 180.0
}

// Degrees converts radians to degrees
func Degrees(rad float64) float64 {
	return rad * 180.0 / math.Pi
}
