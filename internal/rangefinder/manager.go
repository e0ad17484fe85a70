package rangefinder

import (
	"errors"
	"log"
	"sync"

	"github.com/banshee-data/proximity.guard/internal/avoid"
	"github.com/banshee-data/proximity.guard/internal/bus"
	"github.com/banshee-data/proximity.guard/internal/timeutil"
)

// Lifecycle misuse is reported, never fatal: callers treat these as
// warnings and carry on.
var (
	ErrAlreadyRunning = errors.New("rangefinder already running")
	ErrNotRunning     = errors.New("no rangefinder running")
	ErrNoDevice       = errors.New("no rangefinder found")
)

// Bus narrows which transport candidates Start will try.
type Bus int

const (
	BusAny Bus = iota
	BusExternal
	BusInternal
)

// Selector picks the port candidates for Start. A non-empty Device
// overrides the bus preference list with that single path.
type Selector struct {
	Bus    Bus
	Device string
}

// Candidate paths in fixed preference order: external adapters first,
// then on-board UARTs.
var (
	externalPorts = []string{"/dev/ttyUSB0", "/dev/ttyUSB1"}
	internalPorts = []string{"/dev/ttyS1", "/dev/ttyAMA0"}
)

func (s Selector) candidates() []string {
	if s.Device != "" {
		return []string{s.Device}
	}
	switch s.Bus {
	case BusExternal:
		return externalPorts
	case BusInternal:
		return internalPorts
	default:
		paths := make([]string, 0, len(externalPorts)+len(internalPorts))
		paths = append(paths, externalPorts...)
		paths = append(paths, internalPorts...)
		return paths
	}
}

// Manager owns at most one running rangefinder driver.
type Manager struct {
	factory PortFactory
	topic   *bus.Topic[avoid.RangeReading]
	clock   timeutil.Clock

	mu     sync.Mutex
	driver *Driver
}

// NewManager creates a Manager publishing readings onto topic. A nil
// factory opens real serial ports.
func NewManager(factory PortFactory, topic *bus.Topic[avoid.RangeReading], clock timeutil.Clock) *Manager {
	if factory == nil {
		factory = SerialFactory{}
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Manager{factory: factory, topic: topic, clock: clock}
}

// Start probes each candidate port in preference order and keeps the
// first one that detects hardware. Returns ErrAlreadyRunning if a
// driver is active and ErrNoDevice if every candidate fails.
func (m *Manager) Start(sel Selector, orientation avoid.Orientation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.driver != nil {
		return ErrAlreadyRunning
	}

	for _, path := range sel.candidates() {
		port, err := m.factory.Open(path, DefaultPortMode())
		if err != nil {
			log.Printf("rangefinder: %s: %v", path, err)
			continue
		}
		driver, err := NewDriver(path, port, orientation, m.topic, m.clock)
		if err != nil {
			log.Printf("rangefinder: probe %s: %v", path, err)
			continue
		}
		m.driver = driver
		log.Printf("rangefinder: started on %s (%s)", path, driver.Ident())
		return nil
	}
	return ErrNoDevice
}

// Stop tears down the active driver. Returns ErrNotRunning when idle.
func (m *Manager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.driver == nil {
		return ErrNotRunning
	}
	m.driver.Stop()
	m.driver = nil
	log.Printf("rangefinder: stopped")
	return nil
}

// Running reports whether a driver instance is active.
func (m *Manager) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.driver != nil
}

// Info returns the active driver's diagnostic snapshot.
func (m *Manager) Info() (Info, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.driver == nil {
		return Info{}, ErrNotRunning
	}
	return m.driver.Info(), nil
}

// Regdump returns the active driver's register map.
func (m *Manager) Regdump() (map[byte]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.driver == nil {
		return nil, ErrNotRunning
	}
	return m.driver.Regdump(), nil
}
