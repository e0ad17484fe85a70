package avoid

import (
	"math"
	"time"

	"github.com/banshee-data/proximity.guard/internal/units"
)

const (
	// NumBins is the fixed angular resolution of the bearing map: 36 bins
	// of 10 degrees covering the full circle.
	NumBins     = 36
	BinWidthDeg = 360 / NumBins

	// RangeStreamTimeout is the staleness threshold. A reading whose age
	// reaches this value reads back as unknown, never as clear.
	RangeStreamTimeout = 500 * time.Millisecond
)

// BearingMap is a fixed-resolution circular buffer of directional obstacle
// readings in a world-stabilized bearing frame. It is the engine's only
// cross-cycle state and is owned by exactly one engine instance.
type BearingMap struct {
	distancesCM [NumBins]uint16
	stamps      [NumBins]time.Time

	// Valid measurement envelope in centimeters, widened as sources
	// contribute. minDistanceCM starts at UnknownDistance so the first
	// contribution always narrows it.
	minDistanceCM uint16
	maxDistanceCM uint16

	// stamp is the latest contributing message stamp.
	stamp time.Time
}

// NewBearingMap returns a map with every bin unknown.
func NewBearingMap() *BearingMap {
	m := &BearingMap{minDistanceCM: UnknownDistance}
	for i := range m.distancesCM {
		m.distancesCM[i] = UnknownDistance
	}
	return m
}

// BinIndex maps a world bearing in degrees to its bin.
func BinIndex(bearingDeg float64) int {
	return wrapBin(int(math.Floor(units.Wrap360(bearingDeg) / BinWidthDeg)))
}

// BinBearingDeg returns the world bearing of bin i's lower edge.
func BinBearingDeg(i int) float64 {
	return float64(wrapBin(i) * BinWidthDeg)
}

func wrapBin(i int) int {
	return ((i % NumBins) + NumBins) % NumBins
}

func (m *BearingMap) freshAt(i int, now time.Time) bool {
	return !m.stamps[i].IsZero() && now.Sub(m.stamps[i]) < RangeStreamTimeout
}

// Merge writes a reading into bin i (wrapped) under the conservative
// policy: when the bin already holds a fresh entry the smaller distance
// wins, while a fresh entry replaces a stale one outright regardless of
// magnitude. The bin keeps the fresher of the two stamps.
func (m *BearingMap) Merge(i int, cm uint16, stamp time.Time, now time.Time) {
	i = wrapBin(i)
	if m.freshAt(i, now) && m.distancesCM[i] != UnknownDistance {
		if m.distancesCM[i] < cm {
			cm = m.distancesCM[i]
		}
		if m.stamps[i].After(stamp) {
			stamp = m.stamps[i]
		}
	}
	m.distancesCM[i] = cm
	m.stamps[i] = stamp
	if stamp.After(m.stamp) {
		m.stamp = stamp
	}
}

// Distance returns bin i's reading in meters. ok is false when the bin is
// unknown or its age has reached the staleness threshold.
func (m *BearingMap) Distance(i int, now time.Time) (float64, bool) {
	i = wrapBin(i)
	if !m.freshAt(i, now) || m.distancesCM[i] == UnknownDistance {
		return 0, false
	}
	return float64(m.distancesCM[i]) / 100.0, true
}

// ConstrainableDistance is Distance restricted to the valid measurement
// envelope: readings at or outside the contributing sensors' min/max band
// carry no constraint.
func (m *BearingMap) ConstrainableDistance(i int, now time.Time) (float64, bool) {
	i = wrapBin(i)
	cm := m.distancesCM[i]
	if !m.freshAt(i, now) || cm == UnknownDistance {
		return 0, false
	}
	if cm <= m.minDistanceCM || cm >= m.maxDistanceCM {
		return 0, false
	}
	return float64(cm) / 100.0, true
}

// Widen extends the valid measurement envelope to cover [minCM, maxCM].
func (m *BearingMap) Widen(minCM, maxCM uint16) {
	if minCM < m.minDistanceCM {
		m.minDistanceCM = minCM
	}
	if maxCM > m.maxDistanceCM {
		m.maxDistanceCM = maxCM
	}
}

// MinDistanceM returns the envelope minimum in meters, or 0 if no source
// has contributed yet.
func (m *BearingMap) MinDistanceM() float64 {
	if m.minDistanceCM == UnknownDistance {
		return 0
	}
	return float64(m.minDistanceCM) / 100.0
}

// Expire overwrites every stale entry with UnknownDistance.
func (m *BearingMap) Expire(now time.Time) {
	for i := range m.distancesCM {
		if m.distancesCM[i] != UnknownDistance && !m.freshAt(i, now) {
			m.distancesCM[i] = UnknownDistance
		}
	}
}

// HasFreshData reports whether any source contributed within the staleness
// threshold.
func (m *BearingMap) HasFreshData(now time.Time) bool {
	return !m.stamp.IsZero() && now.Sub(m.stamp) < RangeStreamTimeout
}

// Snapshot fills buf (len NumBins) with the current fused distances and
// returns the map as an obstacle-distance record. The returned record
// aliases buf.
func (m *BearingMap) Snapshot(buf []uint16, now time.Time) ObstacleMap {
	for i := range m.distancesCM {
		if m.freshAt(i, now) {
			buf[i] = m.distancesCM[i]
		} else {
			buf[i] = UnknownDistance
		}
	}
	minCM := m.minDistanceCM
	if minCM == UnknownDistance {
		minCM = 0
	}
	return ObstacleMap{
		IncrementDeg:  BinWidthDeg,
		MinDistanceCM: minCM,
		MaxDistanceCM: m.maxDistanceCM,
		DistancesCM:   buf,
		Stamp:         m.stamp,
	}
}
