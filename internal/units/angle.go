package units

import "math"

// Radians converts degrees to radians.
func Radians(deg float64) float64 {
	return deg * math.Pi / 180.0
}

// Degrees converts radians to degrees.
func Degrees(rad float64) float64 {
	return rad * 180.0 / math.Pi
}

// WrapTwoPi wraps an angle in radians into [0, 2*pi).
func WrapTwoPi(rad float64) float64 {
	wrapped := math.Mod(rad, 2*math.Pi)
	if wrapped < 0 {
		wrapped += 2 * math.Pi
	}
	return wrapped
}

// Wrap360 wraps an angle in degrees into [0, 360).
func Wrap360(deg float64) float64 {
	wrapped := math.Mod(deg, 360.0)
	if wrapped < 0 {
		wrapped += 360.0
	}
	return wrapped
}

// WrapPi wraps an angle in radians into [-pi, pi).
func WrapPi(rad float64) float64 {
	return WrapTwoPi(rad+math.Pi) - math.Pi
}
