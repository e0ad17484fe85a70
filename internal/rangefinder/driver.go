package rangefinder

import (
	"bufio"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/banshee-data/proximity.guard/internal/avoid"
	"github.com/banshee-data/proximity.guard/internal/bus"
	"github.com/banshee-data/proximity.guard/internal/timeutil"
)

const (
	identCommand   = "?\r\n"
	regdumpCommand = "R\r\n"

	// Sensor envelope published with every reading.
	MinRangeM = 0.05
	MaxRangeM = 35.0

	// Beam divergence of the sensor, radians.
	fieldOfViewRad = 0.008

	probeTimeout  = 2 * time.Second
	probeMaxLines = 64
)

// Driver owns one probed rangefinder port. It parses the distance
// stream and publishes timestamped readings onto a bus topic until
// stopped. Construction probes the hardware; a failed probe closes the
// port and leaves nothing behind.
type Driver struct {
	path        string
	port        Porter
	reader      *bufio.Reader
	orientation avoid.Orientation
	topic       *bus.Topic[avoid.RangeReading]
	clock       timeutil.Clock

	ident string

	mu           sync.Mutex
	registers    map[byte]byte
	readings     uint64
	parseErrors  uint64
	lastDistance float64
	lastStamp    time.Time

	stopOnce sync.Once
	loopDone chan struct{}
}

// Info is a point-in-time diagnostic snapshot of a running driver.
type Info struct {
	Path          string    `json:"path"`
	Ident         string    `json:"ident"`
	Orientation   string    `json:"orientation"`
	Readings      uint64    `json:"readings"`
	ParseErrors   uint64    `json:"parse_errors"`
	LastDistanceM float64   `json:"last_distance_m"`
	LastStamp     time.Time `json:"last_stamp"`
}

// NewDriver probes the port for rangefinder hardware and, on success,
// starts the streaming read loop. On probe failure the port is closed
// and an error returned; no instance remains.
func NewDriver(path string, port Porter, orientation avoid.Orientation, topic *bus.Topic[avoid.RangeReading], clock timeutil.Clock) (*Driver, error) {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	d := &Driver{
		path:        path,
		port:        port,
		reader:      bufio.NewReader(port),
		orientation: orientation,
		topic:       topic,
		clock:       clock,
		registers:   make(map[byte]byte),
		loopDone:    make(chan struct{}),
	}
	if err := d.probe(); err != nil {
		port.Close()
		return nil, err
	}
	go d.run()
	return d, nil
}

// probe sends the identify command and captures a register dump. The
// device may already be streaming distance lines, which are tolerated
// and dropped during the probe.
func (d *Driver) probe() error {
	if tp, ok := d.port.(TimeoutPorter); ok {
		if err := tp.SetReadTimeout(probeTimeout); err != nil {
			return fmt.Errorf("set read timeout: %w", err)
		}
	}

	if _, err := d.port.Write([]byte(identCommand)); err != nil {
		return fmt.Errorf("send identify: %w", err)
	}
	found := false
	for i := 0; i < probeMaxLines; i++ {
		line, err := d.reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("read identify response: %w", err)
		}
		if ClassifyLine(line) == LineIdent {
			d.ident = trimLine(line)
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("%s: no identify response", d.path)
	}

	if _, err := d.port.Write([]byte(regdumpCommand)); err != nil {
		return fmt.Errorf("send register dump: %w", err)
	}
	for i := 0; i < probeMaxLines; i++ {
		line, err := d.reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("read register dump: %w", err)
		}
		switch ClassifyLine(line) {
		case LineRegEnd:
			return nil
		case LineRegister:
			addr, value, err := ParseRegister(line)
			if err != nil {
				return err
			}
			d.registers[addr] = value
		}
	}
	return fmt.Errorf("%s: register dump not terminated", d.path)
}

// run is the streaming read loop. It exits when the port is closed.
func (d *Driver) run() {
	defer close(d.loopDone)

	scanner := bufio.NewScanner(d.reader)
	for scanner.Scan() {
		line := scanner.Text()
		switch ClassifyLine(line) {
		case LineDistance:
			cm, err := ParseDistanceCM(line)
			if err != nil {
				d.mu.Lock()
				d.parseErrors++
				d.mu.Unlock()
				log.Printf("rangefinder %s: %v", d.path, err)
				continue
			}
			d.publish(float64(cm) / 100)
		case LineRegister:
			addr, value, err := ParseRegister(line)
			if err == nil {
				d.mu.Lock()
				d.registers[addr] = value
				d.mu.Unlock()
			}
		}
	}
	if err := scanner.Err(); err != nil {
		log.Printf("rangefinder %s: read loop ended: %v", d.path, err)
	}
}

func (d *Driver) publish(distanceM float64) {
	now := d.clock.Now()
	d.topic.Publish(avoid.RangeReading{
		Distance:    distanceM,
		MinRange:    MinRangeM,
		MaxRange:    MaxRangeM,
		FieldOfView: fieldOfViewRad,
		Orientation: d.orientation,
		Stamp:       now,
	}, now)

	d.mu.Lock()
	d.readings++
	d.lastDistance = distanceM
	d.lastStamp = now
	d.mu.Unlock()
}

// Stop closes the port and waits for the read loop to exit.
func (d *Driver) Stop() {
	d.stopOnce.Do(func() {
		d.port.Close()
		<-d.loopDone
	})
}

// Ident returns the identify string captured at probe time.
func (d *Driver) Ident() string { return d.ident }

// Info returns a diagnostic snapshot of the driver.
func (d *Driver) Info() Info {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Info{
		Path:          d.path,
		Ident:         d.ident,
		Orientation:   d.orientation.Mount.String(),
		Readings:      d.readings,
		ParseErrors:   d.parseErrors,
		LastDistanceM: d.lastDistance,
		LastStamp:     d.lastStamp,
	}
}

// Regdump returns a copy of the sensor's register map as captured at
// probe time, merged with any register lines seen since.
func (d *Driver) Regdump() map[byte]byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[byte]byte, len(d.registers))
	for k, v := range d.registers {
		out[k] = v
	}
	return out
}

func trimLine(line string) string {
	for len(line) > 0 && (line[len(line)-1] == '\n' || line[len(line)-1] == '\r') {
		line = line[:len(line)-1]
	}
	return line
}
