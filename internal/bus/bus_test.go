package bus

import (
	"sync"
	"testing"
	"time"
)

func TestTopic_EmptySnapshot(t *testing.T) {
	var topic Topic[int]
	_, _, ok := topic.Snapshot()
	if ok {
		t.Error("Snapshot of empty topic reported ok=true")
	}
}

func TestTopic_LatestValueWins(t *testing.T) {
	var topic Topic[string]
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	topic.Publish("first", base)
	topic.Publish("second", base.Add(10*time.Millisecond))

	value, stamp, ok := topic.Snapshot()
	if !ok {
		t.Fatal("Snapshot reported ok=false after publish")
	}
	if value != "second" {
		t.Errorf("value = %q, want %q", value, "second")
	}
	if !stamp.Equal(base.Add(10 * time.Millisecond)) {
		t.Errorf("stamp = %v, want %v", stamp, base.Add(10*time.Millisecond))
	}
}

func TestTopic_SnapshotDoesNotConsume(t *testing.T) {
	var topic Topic[int]
	topic.Publish(7, time.Now())

	for i := 0; i < 3; i++ {
		value, _, ok := topic.Snapshot()
		if !ok || value != 7 {
			t.Fatalf("snapshot %d: value=%v ok=%v, want 7 true", i, value, ok)
		}
	}
}

func TestTopic_ConcurrentPublishSnapshot(t *testing.T) {
	var topic Topic[int]
	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			topic.Publish(i, time.Now())
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			topic.Snapshot()
		}
	}()
	wg.Wait()
}

func TestInstanceGroup_SlotsAreIndependent(t *testing.T) {
	var group InstanceGroup[float64]
	now := time.Now()

	group.Instance(0).Publish(1.5, now)
	group.Instance(3).Publish(9.0, now)

	if v, _, ok := group.Snapshot(0); !ok || v != 1.5 {
		t.Errorf("slot 0: v=%v ok=%v, want 1.5 true", v, ok)
	}
	if _, _, ok := group.Snapshot(1); ok {
		t.Error("slot 1 should be empty")
	}
	if v, _, ok := group.Snapshot(3); !ok || v != 9.0 {
		t.Errorf("slot 3: v=%v ok=%v, want 9.0 true", v, ok)
	}
}

func TestInstanceGroup_OutOfRangePanics(t *testing.T) {
	var group InstanceGroup[int]
	defer func() {
		if recover() == nil {
			t.Error("Instance(MaxInstances) did not panic")
		}
	}()
	group.Instance(MaxInstances)
}
