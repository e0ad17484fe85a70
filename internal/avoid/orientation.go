package avoid

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/num/quat"

	"github.com/banshee-data/proximity.guard/internal/units"
)

// Mount identifies how a range sensor is attached to the airframe. The set
// is closed: every variant maps to a defined bearing offset.
type Mount uint8

const (
	MountForward Mount = iota
	MountRight
	MountLeft
	MountBackward
	// MountCustom carries its own rotation quaternion in Orientation.Quat.
	MountCustom
)

// String returns the mount name used in logs and CLI flags.
func (m Mount) String() string {
	switch m {
	case MountForward:
		return "forward"
	case MountRight:
		return "right"
	case MountLeft:
		return "left"
	case MountBackward:
		return "backward"
	case MountCustom:
		return "custom"
	default:
		return "unknown"
	}
}

// ParseMount maps a mount name to its Mount value. Custom mounts cannot
// be named; they carry a quaternion and are constructed in code.
func ParseMount(s string) (Mount, error) {
	switch s {
	case "forward":
		return MountForward, nil
	case "right":
		return MountRight, nil
	case "left":
		return MountLeft, nil
	case "backward":
		return MountBackward, nil
	}
	return 0, fmt.Errorf("unknown mount %q", s)
}

// Orientation describes a sensor's mounting orientation on the vehicle.
type Orientation struct {
	Mount Mount

	// Quat is the mounting rotation for MountCustom; ignored for the
	// fixed variants.
	Quat quat.Number

	// OffsetDeg is an optional fixed mount-specific angular offset in
	// degrees, added to the variant's base offset when non-zero.
	OffsetDeg float64
}

// YawOffset returns the sensor's bearing offset in radians relative to the
// vehicle body: forward 0, right +pi/2, left -pi/2, backward pi, custom
// the yaw extracted from Quat, each plus OffsetDeg. Total and pure.
func (o Orientation) YawOffset() float64 {
	var offset float64
	switch o.Mount {
	case MountRight:
		offset = math.Pi / 2
	case MountLeft:
		offset = -math.Pi / 2
	case MountBackward:
		offset = math.Pi
	case MountCustom:
		offset = Yaw(o.Quat)
	}
	if o.OffsetDeg != 0 {
		offset += units.Radians(o.OffsetDeg)
	}
	return offset
}

// Yaw extracts the heading angle psi from an orientation quaternion using
// the ZYX Euler convention.
func Yaw(q quat.Number) float64 {
	return math.Atan2(2*(q.Real*q.Kmag+q.Imag*q.Jmag), 1-2*(q.Jmag*q.Jmag+q.Kmag*q.Kmag))
}

// Pitch extracts the pitch angle theta from an orientation quaternion,
// clamped to avoid NaN from floating point drift at the gimbal poles.
func Pitch(q quat.Number) float64 {
	s := 2 * (q.Real*q.Jmag - q.Kmag*q.Imag)
	if s > 1 {
		s = 1
	} else if s < -1 {
		s = -1
	}
	return math.Asin(s)
}

// RotateZ composes q with a rotation of angle radians about the body Z
// axis, rotating the attitude into a sensor frame yawed by angle.
func RotateZ(q quat.Number, angle float64) quat.Number {
	half := angle / 2
	return quat.Mul(q, quat.Number{Real: math.Cos(half), Kmag: math.Sin(half)})
}

// QuatFromYaw builds a pure-yaw orientation quaternion.
func QuatFromYaw(yaw float64) quat.Number {
	half := yaw / 2
	return quat.Number{Real: math.Cos(half), Kmag: math.Sin(half)}
}
