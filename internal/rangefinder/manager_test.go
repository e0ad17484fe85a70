package rangefinder

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/banshee-data/proximity.guard/internal/avoid"
	"github.com/banshee-data/proximity.guard/internal/bus"
	"github.com/banshee-data/proximity.guard/internal/timeutil"
)

func probedPort() *TestablePort {
	port := NewTestablePort()
	port.BlockReads = true
	port.AddReadData([]byte(probeResponse))
	return port
}

func TestSelectorCandidates(t *testing.T) {
	tests := []struct {
		name string
		sel  Selector
		want []string
	}{
		{"any", Selector{}, []string{"/dev/ttyUSB0", "/dev/ttyUSB1", "/dev/ttyS1", "/dev/ttyAMA0"}},
		{"external", Selector{Bus: BusExternal}, []string{"/dev/ttyUSB0", "/dev/ttyUSB1"}},
		{"internal", Selector{Bus: BusInternal}, []string{"/dev/ttyS1", "/dev/ttyAMA0"}},
		{"device overrides bus", Selector{Bus: BusExternal, Device: "/dev/custom"}, []string{"/dev/custom"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if diff := cmp.Diff(tc.want, tc.sel.candidates()); diff != "" {
				t.Errorf("candidates mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestManager_StartTriesCandidatesInOrder(t *testing.T) {
	factory := NewMockFactory()
	// First candidate absent, second probes successfully.
	factory.Ports["/dev/ttyUSB1"] = probedPort()

	topic := &bus.Topic[avoid.RangeReading]{}
	m := NewManager(factory, topic, timeutil.NewMockClock(t0))
	t.Cleanup(func() { m.Stop() })

	if err := m.Start(Selector{Bus: BusExternal}, avoid.Orientation{Mount: avoid.MountForward}); err != nil {
		t.Fatalf("Start: %v", err)
	}

	want := []string{"/dev/ttyUSB0", "/dev/ttyUSB1"}
	if diff := cmp.Diff(want, factory.OpenedPaths()); diff != "" {
		t.Errorf("open order mismatch (-want +got):\n%s", diff)
	}
	if !m.Running() {
		t.Error("manager not running after successful Start")
	}
}

func TestManager_StartAllCandidatesFail(t *testing.T) {
	factory := NewMockFactory() // nothing mapped, every open fails

	m := NewManager(factory, &bus.Topic[avoid.RangeReading]{}, timeutil.NewMockClock(t0))
	err := m.Start(Selector{}, avoid.Orientation{})
	if !errors.Is(err, ErrNoDevice) {
		t.Fatalf("Start error = %v, want ErrNoDevice", err)
	}
	if m.Running() {
		t.Error("manager running after failed Start")
	}
	if got := len(factory.OpenedPaths()); got != 4 {
		t.Errorf("opened %d candidates, want 4", got)
	}
}

func TestManager_ProbeFailureMovesToNextCandidate(t *testing.T) {
	factory := NewMockFactory()
	// First candidate opens but does not identify; second is a real sensor.
	silent := NewTestablePort()
	factory.Ports["/dev/ttyUSB0"] = silent
	factory.Ports["/dev/ttyUSB1"] = probedPort()

	m := NewManager(factory, &bus.Topic[avoid.RangeReading]{}, timeutil.NewMockClock(t0))
	t.Cleanup(func() { m.Stop() })

	if err := m.Start(Selector{Bus: BusExternal}, avoid.Orientation{}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !silent.Closed {
		t.Error("failed probe left the port open")
	}
	info, err := m.Info()
	if err != nil {
		t.Fatalf("Info: %v", err)
	}
	if info.Path != "/dev/ttyUSB1" {
		t.Errorf("running on %s, want /dev/ttyUSB1", info.Path)
	}
}

func TestManager_DoubleStartIsWarningNoOp(t *testing.T) {
	factory := NewMockFactory()
	factory.Ports["/dev/ttyUSB0"] = probedPort()

	m := NewManager(factory, &bus.Topic[avoid.RangeReading]{}, timeutil.NewMockClock(t0))
	t.Cleanup(func() { m.Stop() })

	if err := m.Start(Selector{}, avoid.Orientation{}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	opened := len(factory.OpenedPaths())

	if err := m.Start(Selector{}, avoid.Orientation{}); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("second Start error = %v, want ErrAlreadyRunning", err)
	}
	if len(factory.OpenedPaths()) != opened {
		t.Error("second Start opened ports despite running instance")
	}
}

func TestManager_LifecycleWhenIdle(t *testing.T) {
	m := NewManager(NewMockFactory(), &bus.Topic[avoid.RangeReading]{}, timeutil.NewMockClock(t0))

	if err := m.Stop(); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Stop when idle = %v, want ErrNotRunning", err)
	}
	if _, err := m.Info(); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Info when idle = %v, want ErrNotRunning", err)
	}
	if _, err := m.Regdump(); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Regdump when idle = %v, want ErrNotRunning", err)
	}
}

func TestManager_StopThenRestart(t *testing.T) {
	factory := NewMockFactory()
	factory.Ports["/dev/ttyUSB0"] = probedPort()

	m := NewManager(factory, &bus.Topic[avoid.RangeReading]{}, timeutil.NewMockClock(t0))
	if err := m.Start(Selector{}, avoid.Orientation{}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := m.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if m.Running() {
		t.Error("running after Stop")
	}

	factory.Ports["/dev/ttyUSB0"] = probedPort()
	if err := m.Start(Selector{}, avoid.Orientation{}); err != nil {
		t.Fatalf("restart: %v", err)
	}
	m.Stop()
}
