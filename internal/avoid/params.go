package avoid

// Params are the engine's detection and kinematic tunables. They are
// immutable during a cycle but may change between cycles; the engine pulls
// a fresh copy at the start of every ModifySetpoint call.
type Params struct {
	// KeepOutDistance is the minimum clearance to preserve between the
	// vehicle and any obstacle, in meters. A value <= 0 deactivates the
	// engine (Active returns false).
	KeepOutDistance float64

	// DetectionHalfAngle is the angular half-width, in radians, of the
	// cone centered on the setpoint direction within which obstacle bins
	// are evaluated.
	DetectionHalfAngle float64

	// PositionGain translates a distance margin into an achievable speed,
	// matching the position controller's proportional gain (1/s).
	PositionGain float64

	// SensorLatency is the sensing-to-decision delay in seconds. The
	// distance covered at the current speed during this delay is deducted
	// from the available stopping distance.
	SensorLatency float64

	// MaxJerk and MaxAccel parameterize the jerk-limited braking model,
	// in m/s^3 and m/s^2.
	MaxJerk  float64
	MaxAccel float64
}

// DefaultParams returns conservative multirotor defaults.
func DefaultParams() Params {
	return Params{
		KeepOutDistance:    4.0,
		DetectionHalfAngle: 0.523598775598, // 30 degrees
		PositionGain:       0.95,
		SensorLatency:      0.1,
		MaxJerk:            8.0,
		MaxAccel:           3.0,
	}
}
