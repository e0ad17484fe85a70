package avoid

import (
	"testing"
	"time"
)

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestBinIndex(t *testing.T) {
	tests := []struct {
		bearingDeg float64
		want       int
	}{
		{0, 0},
		{9.99, 0},
		{10, 1},
		{355, 35},
		{360, 0},
		{-5, 35},
		{725, 2},
	}
	for _, tc := range tests {
		if got := BinIndex(tc.bearingDeg); got != tc.want {
			t.Errorf("BinIndex(%v) = %d, want %d", tc.bearingDeg, got, tc.want)
		}
	}
}

func TestBinBearingDeg_Wraps(t *testing.T) {
	if got := BinBearingDeg(37); got != 10 {
		t.Errorf("BinBearingDeg(37) = %v, want 10", got)
	}
	if got := BinBearingDeg(-1); got != 350 {
		t.Errorf("BinBearingDeg(-1) = %v, want 350", got)
	}
}

func TestBearingMap_UnsetBinIsUnknown(t *testing.T) {
	m := NewBearingMap()
	for i := 0; i < NumBins; i++ {
		if _, ok := m.Distance(i, t0); ok {
			t.Fatalf("bin %d readable before any write", i)
		}
	}
	if m.HasFreshData(t0) {
		t.Error("empty map reports fresh data")
	}
}

func TestBearingMap_MergeMinWinsWhenBothFresh(t *testing.T) {
	m := NewBearingMap()
	now := t0

	m.Merge(3, 300, t0.Add(-100*time.Millisecond), now)
	m.Merge(3, 150, t0.Add(-50*time.Millisecond), now)

	d, ok := m.Distance(3, now)
	if !ok || d != 1.5 {
		t.Fatalf("Distance = %v ok=%v, want 1.5 true", d, ok)
	}

	// Same bin, reversed magnitudes: the staler-but-fresh larger reading
	// must not displace the smaller one.
	m.Merge(4, 150, t0.Add(-50*time.Millisecond), now)
	m.Merge(4, 300, t0.Add(-100*time.Millisecond), now)

	d, ok = m.Distance(4, now)
	if !ok || d != 1.5 {
		t.Fatalf("Distance after reverse merge = %v ok=%v, want 1.5 true", d, ok)
	}
}

func TestBearingMap_FreshReplacesStaleOutright(t *testing.T) {
	m := NewBearingMap()

	// 0.5 m written long ago, then a farther fresh reading arrives: the
	// fresh one wins regardless of magnitude.
	m.Merge(7, 50, t0.Add(-10*time.Second), t0.Add(-10*time.Second))
	m.Merge(7, 900, t0, t0)

	d, ok := m.Distance(7, t0)
	if !ok || d != 9.0 {
		t.Fatalf("Distance = %v ok=%v, want 9.0 true", d, ok)
	}
}

func TestBearingMap_StalenessBoundary(t *testing.T) {
	m := NewBearingMap()
	m.Merge(0, 200, t0, t0)

	// Just below the threshold the reading is included.
	justBelow := t0.Add(RangeStreamTimeout - time.Nanosecond)
	if _, ok := m.Distance(0, justBelow); !ok {
		t.Error("reading just below the staleness threshold excluded")
	}

	// Exactly at the threshold it is excluded.
	atThreshold := t0.Add(RangeStreamTimeout)
	if _, ok := m.Distance(0, atThreshold); ok {
		t.Error("reading exactly at the staleness threshold included")
	}
}

func TestBearingMap_ExpireMarksUnknown(t *testing.T) {
	m := NewBearingMap()
	m.Merge(5, 120, t0, t0)

	later := t0.Add(time.Second)
	m.Expire(later)

	if _, ok := m.Distance(5, later); ok {
		t.Error("expired bin still readable")
	}

	buf := make([]uint16, NumBins)
	snap := m.Snapshot(buf, later)
	if snap.DistancesCM[5] != UnknownDistance {
		t.Errorf("snapshot bin 5 = %d, want UnknownDistance", snap.DistancesCM[5])
	}
}

func TestBearingMap_ConstrainableDistanceEnvelope(t *testing.T) {
	m := NewBearingMap()
	m.Widen(20, 4000)

	m.Merge(0, 300, t0, t0)  // inside envelope
	m.Merge(1, 10, t0, t0)   // below minimum valid range
	m.Merge(2, 5000, t0, t0) // beyond maximum valid range

	if d, ok := m.ConstrainableDistance(0, t0); !ok || d != 3.0 {
		t.Errorf("bin 0: d=%v ok=%v, want 3.0 true", d, ok)
	}
	if _, ok := m.ConstrainableDistance(1, t0); ok {
		t.Error("bin 1 below envelope should not constrain")
	}
	if _, ok := m.ConstrainableDistance(2, t0); ok {
		t.Error("bin 2 beyond envelope should not constrain")
	}
}

func TestBearingMap_SnapshotShape(t *testing.T) {
	m := NewBearingMap()
	m.Widen(20, 4000)
	m.Merge(12, 250, t0, t0)

	buf := make([]uint16, NumBins)
	snap := m.Snapshot(buf, t0)

	if snap.IncrementDeg != BinWidthDeg {
		t.Errorf("IncrementDeg = %v, want %v", snap.IncrementDeg, BinWidthDeg)
	}
	if len(snap.DistancesCM) != NumBins {
		t.Fatalf("len(DistancesCM) = %d, want %d", len(snap.DistancesCM), NumBins)
	}
	if snap.DistancesCM[12] != 250 {
		t.Errorf("bin 12 = %d, want 250", snap.DistancesCM[12])
	}
	if snap.MinDistanceCM != 20 || snap.MaxDistanceCM != 4000 {
		t.Errorf("envelope = [%d, %d], want [20, 4000]", snap.MinDistanceCM, snap.MaxDistanceCM)
	}
	if !snap.Stamp.Equal(t0) {
		t.Errorf("Stamp = %v, want %v", snap.Stamp, t0)
	}
}
