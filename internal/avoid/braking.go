package avoid

import "math"

// MaxSpeedFromBrakingDistance returns the maximum horizontal speed from
// which the vehicle can come to a full stop within dist meters under a
// jerk- and acceleration-limited braking profile. With b = 4*a^2/j the
// closed form is v = (-b + sqrt(b^2 + 8*a*d)) / 2, which is zero at d = 0
// and strictly increasing in d.
func MaxSpeedFromBrakingDistance(maxJerk, maxAccel, dist float64) float64 {
	if dist <= 0 || maxJerk <= 0 || maxAccel <= 0 {
		return 0
	}
	b := 4 * maxAccel * maxAccel / maxJerk
	v := 0.5 * (-b + math.Sqrt(b*b+8*maxAccel*dist))
	if v < 0 {
		return 0
	}
	return v
}
