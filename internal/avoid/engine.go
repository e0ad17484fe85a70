package avoid

import (
	"log"
	"math"
	"time"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/banshee-data/proximity.guard/internal/timeutil"
	"github.com/banshee-data/proximity.guard/internal/units"
)

// MaxRangeSensors is the number of independent onboard range-sensor
// streams the engine fuses. The bound is an invariant of the engine, not
// an incidental array size.
const MaxRangeSensors = 4

// minSetpointNorm is the magnitude below which a setpoint has no usable
// direction to project constraints onto.
const minSetpointNorm = 1e-3

// interferenceTolerance is the per-component deviation, as a fraction of
// the maximum speed, beyond which the shaped setpoint counts as differing
// from the commanded one.
const interferenceTolerance = 0.05

// EngineConfig wires an Engine to its snapshot sources and outputs.
type EngineConfig struct {
	// Attitude supplies the vehicle orientation used to world-stabilize
	// onboard readings.
	Attitude Source[Attitude]

	// Ranges are the onboard point-sensor streams; nil slots are skipped.
	Ranges [MaxRangeSensors]Source[RangeReading]

	// Offboard supplies the wide-field obstacle map; may be nil.
	Offboard Source[ObstacleMap]

	// Publisher receives the fused map, constraints records and failsafe
	// commands; may be nil.
	Publisher Publisher

	// Params is consulted once per cycle, making the tunables live
	// without engine restarts. Nil selects DefaultParams.
	Params func() Params

	// Clock defaults to timeutil.RealClock.
	Clock timeutil.Clock
}

// Engine owns the bearing map and performs one fuse-and-constrain pass per
// control cycle. It is confined to a single control goroutine; invocation
// is strictly sequential and methods must not be called concurrently.
type Engine struct {
	attitude  Source[Attitude]
	ranges    [MaxRangeSensors]Source[RangeReading]
	offboard  Source[ObstacleMap]
	publisher Publisher
	params    func() Params
	clock     timeutil.Clock

	obstacleMap *BearingMap
	fusedBuf    []uint16
	bounds      [NumBins]float64

	interfering bool
	failsafe    failsafe
}

// NewEngine creates an engine with an empty bearing map.
func NewEngine(cfg EngineConfig) *Engine {
	params := cfg.Params
	if params == nil {
		defaults := DefaultParams()
		params = func() Params { return defaults }
	}
	clock := cfg.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Engine{
		attitude:    cfg.Attitude,
		ranges:      cfg.Ranges,
		offboard:    cfg.Offboard,
		publisher:   cfg.Publisher,
		params:      params,
		clock:       clock,
		obstacleMap: NewBearingMap(),
		fusedBuf:    make([]uint16, NumBins),
	}
}

// Active reports whether collision prevention is enabled: a positive
// keep-out distance activates the engine.
func (e *Engine) Active() bool {
	return e.params().KeepOutDistance > 0
}

// Interfering reports whether the last cycle altered the caller's setpoint.
func (e *Engine) Interfering() bool {
	return e.interfering
}

// ModifySetpoint refreshes the bearing map from the latest sensor
// snapshots and constrains setpoint in place so the vehicle can still stop
// before violating the keep-out distance in every detected direction.
// curPos is accepted for interface completeness with the position loop;
// the constraint itself is velocity-based. It returns true iff the
// setpoint was altered beyond tolerance this cycle.
func (e *Engine) ModifySetpoint(setpoint *r2.Vec, maxSpeed float64, curPos, curVel r2.Vec) bool {
	_ = curPos
	now := e.clock.Now()
	p := e.params()

	e.refreshObstacleMap(now)

	original := *setpoint
	e.constrain(setpoint, curVel, p, now)

	interfering := exceedsTolerance(original, *setpoint, maxSpeed)
	if interfering && !e.interfering {
		log.Printf("collision prevention: constraining operator setpoint")
	}
	e.interfering = interfering

	commandedBin := BinIndex(units.Degrees(math.Atan2(original.Y, original.X)))
	if e.failsafe.observe(now, interfering, commandedBin) {
		log.Printf("collision prevention: operator persistently commanding into obstacle, requesting position hold")
		if e.publisher != nil {
			e.publisher.PublishCommand(VehicleCommand{Command: CommandHold, Stamp: now})
		}
	}

	if e.publisher != nil {
		e.publisher.PublishConstraints(Constraints{
			Stamp:       now,
			Original:    original,
			Adapted:     *setpoint,
			Interfering: interfering,
			SpeedBound:  e.bounds,
		})
	}
	return interfering
}

// refreshObstacleMap folds the latest onboard and offboard snapshots into
// the bearing map, expires stale bins and publishes the fused map.
func (e *Engine) refreshObstacleMap(now time.Time) {
	if e.attitude != nil {
		att, stamp, ok := e.attitude.Snapshot()
		if ok && now.Sub(stamp) < RangeStreamTimeout {
			// Onboard readings can only be world-stabilized against a
			// fresh heading; without one they are skipped and their bins
			// expire naturally.
			vehicleYaw := Yaw(att.Quat)
			for _, src := range e.ranges {
				if src == nil {
					continue
				}
				reading, rstamp, rok := src.Snapshot()
				if !rok || now.Sub(rstamp) >= RangeStreamTimeout {
					continue
				}
				e.addRangeReading(reading, att.Quat, vehicleYaw, rstamp, now)
			}
		}
	}

	if e.offboard != nil {
		om, stamp, ok := e.offboard.Snapshot()
		if ok && now.Sub(stamp) < RangeStreamTimeout {
			e.addOffboardMap(om, stamp, now)
		}
	}

	e.obstacleMap.Expire(now)

	if e.publisher != nil {
		e.publisher.PublishObstacleMap(e.obstacleMap.Snapshot(e.fusedBuf, now))
	}
}

// addRangeReading places one onboard point measurement into the map,
// spread across every bin its field of view touches and compensated for
// vehicle tilt.
func (e *Engine) addRangeReading(r RangeReading, attQ quat.Number, vehicleYaw float64, stamp, now time.Time) {
	if r.Distance <= r.MinRange || r.Distance >= r.MaxRange {
		return
	}
	e.obstacleMap.Widen(metersToCM(r.MinRange), metersToCM(r.MaxRange))

	sensorYawBody := r.Orientation.YawOffset()
	worldDeg := units.Degrees(units.WrapTwoPi(vehicleYaw + sensorYawBody))

	halfFOVDeg := units.Degrees(r.FieldOfView) / 2
	lower := int(math.Floor((worldDeg - halfFOVDeg) / BinWidthDeg))
	upper := int(math.Floor((worldDeg + halfFOVDeg) / BinWidthDeg))
	if lower < 0 {
		lower++
	}
	if upper < 0 {
		upper++
	}

	// Project the slant measurement onto the horizontal plane using the
	// pitch of the attitude rotated into the sensor frame.
	tilt := math.Cos(Pitch(RotateZ(attQ, sensorYawBody)))
	cm := metersToCM(r.Distance * tilt)

	for bin := lower; bin <= upper; bin++ {
		e.obstacleMap.Merge(bin, cm, stamp, now)
	}
}

// addOffboardMap resamples a wide-field obstacle message (which carries its
// own angular increment and offset) into the internal bins.
func (e *Engine) addOffboardMap(om ObstacleMap, stamp, now time.Time) {
	if om.IncrementDeg <= 0 || len(om.DistancesCM) == 0 {
		return
	}
	e.obstacleMap.Widen(om.MinDistanceCM, om.MaxDistanceCM)

	for i := 0; i < NumBins; i++ {
		rel := units.Wrap360(BinBearingDeg(i) - om.AngleOffsetDeg)
		idx := int(math.Ceil(rel/om.IncrementDeg)) % len(om.DistancesCM)
		if cm := om.DistancesCM[idx]; cm != UnknownDistance {
			e.obstacleMap.Merge(i, cm, stamp, now)
		}
	}
}

// constrain scales the setpoint down, direction preserved, to the most
// conservative speed bound across every candidate bearing. With no fresh
// data anywhere, or no usable setpoint direction, it leaves the setpoint
// untouched.
func (e *Engine) constrain(setpoint *r2.Vec, curVel r2.Vec, p Params, now time.Time) {
	for i := range e.bounds {
		e.bounds[i] = math.Inf(1)
	}

	norm := r2.Norm(*setpoint)
	if norm < minSetpointNorm || !e.obstacleMap.HasFreshData(now) {
		return
	}

	dir := r2.Scale(1/norm, *setpoint)
	velMax := norm

	keepOut := p.KeepOutDistance
	if envelope := e.obstacleMap.MinDistanceM(); envelope > keepOut {
		keepOut = envelope
	}
	cosHalfAngle := math.Cos(p.DetectionHalfAngle)
	setpointBin := BinIndex(units.Degrees(math.Atan2(dir.Y, dir.X)))

	for i := 0; i < NumBins; i++ {
		dist, ok := e.obstacleMap.ConstrainableDistance(i, now)
		if !ok {
			continue
		}

		binAngle := units.Radians(BinBearingDeg(i))
		binDir := r2.Vec{X: math.Cos(binAngle), Y: math.Sin(binAngle)}
		alignment := r2.Dot(dir, binDir)

		// The bin holding the setpoint direction is always a candidate;
		// everything else must fall inside the detection cone.
		if i != setpointBin && (alignment <= 0 || alignment <= cosHalfAngle) {
			continue
		}

		velParallel := math.Max(0, r2.Dot(curVel, binDir))
		stopDist := dist - keepOut - velParallel*p.SensorLatency
		if stopDist < 0 {
			stopDist = 0
		}

		bound := math.Min(
			p.PositionGain*stopDist,
			MaxSpeedFromBrakingDistance(p.MaxJerk, p.MaxAccel, stopDist),
		)
		e.bounds[i] = bound

		if velMaxBin := bound * alignment; velMaxBin >= 0 && velMaxBin < velMax {
			velMax = velMaxBin
		}
	}

	*setpoint = r2.Scale(velMax, dir)
}

func exceedsTolerance(original, adapted r2.Vec, maxSpeed float64) bool {
	tol := interferenceTolerance * maxSpeed
	return math.Abs(original.X-adapted.X) > tol || math.Abs(original.Y-adapted.Y) > tol
}

func metersToCM(m float64) uint16 {
	cm := m * 100
	if cm <= 0 {
		return 0
	}
	if cm >= float64(UnknownDistance-1) {
		return UnknownDistance - 1
	}
	return uint16(cm)
}
