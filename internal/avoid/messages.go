package avoid

import (
	"math"
	"time"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r2"
)

// UnknownDistance marks a map entry carrying no obstacle information. An
// unknown bearing is never treated as clear; it simply contributes no
// constraint.
const UnknownDistance uint16 = math.MaxUint16

// RangeReading is a single measurement from an onboard point range sensor.
type RangeReading struct {
	// Distance is the measured distance in meters. Readings outside the
	// (MinRange, MaxRange) valid band are discarded by the engine.
	Distance float64
	MinRange float64
	MaxRange float64

	// FieldOfView is the sensor's horizontal field of view in radians. A
	// reading covers every bearing bin the field of view touches; zero
	// means the single bin at the sensor's bearing.
	FieldOfView float64

	Orientation Orientation
	Stamp       time.Time
}

// ObstacleMap reports obstacle distances across many bearings at a fixed
// angular resolution, in a world-stabilized frame. Offboard sources publish
// it as engine input; the engine publishes the fused map in the same shape.
type ObstacleMap struct {
	// IncrementDeg is the angular width of one entry in degrees.
	IncrementDeg float64
	// AngleOffsetDeg shifts entry 0 away from world bearing zero.
	AngleOffsetDeg float64
	// MinDistanceCM and MaxDistanceCM bound the valid measurement band in
	// centimeters.
	MinDistanceCM uint16
	MaxDistanceCM uint16
	// DistancesCM[i] is the distance at bearing i*IncrementDeg +
	// AngleOffsetDeg in centimeters, or UnknownDistance.
	DistancesCM []uint16
	Stamp       time.Time
}

// Setpoint is the operator's commanded horizontal velocity together with
// the vehicle state the shaper needs to bound it.
type Setpoint struct {
	// Desired is the commanded horizontal velocity, world frame, m/s.
	Desired r2.Vec
	// MaxSpeed is the vehicle's configured maximum horizontal speed.
	MaxSpeed float64
	Position r2.Vec
	Velocity r2.Vec
	Stamp    time.Time
}

// Attitude is a snapshot of the vehicle orientation.
type Attitude struct {
	Quat  quat.Number
	Stamp time.Time
}

// Constraints records the setpoint shaper's work for one control cycle.
type Constraints struct {
	Stamp       time.Time
	Original    r2.Vec
	Adapted     r2.Vec
	Interfering bool
	// SpeedBound[i] is the maximum permitted speed toward bin i this
	// cycle in m/s, or +Inf where the bin imposed no bound.
	SpeedBound [NumBins]float64
}

// Command is a mode-layer vehicle command identifier.
type Command uint8

const (
	// CommandHold requests the vehicle loiter at its current position.
	CommandHold Command = iota + 1
)

// VehicleCommand is an instruction to the vehicle's mode layer.
type VehicleCommand struct {
	Command Command
	Stamp   time.Time
}

// Publisher receives the engine's per-cycle outputs. Implementations must
// not retain the ObstacleMap's DistancesCM slice past the call: the engine
// reuses its backing array between cycles.
type Publisher interface {
	PublishObstacleMap(ObstacleMap)
	PublishConstraints(Constraints)
	PublishCommand(VehicleCommand)
}

// Source is a non-blocking latest-value snapshot of a message stream. A
// snapshot may be arbitrarily old; consumers detect staleness from the
// returned stamp.
type Source[T any] interface {
	Snapshot() (value T, stamp time.Time, ok bool)
}
