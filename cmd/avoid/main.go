// Command avoid runs the collision-avoidance daemon: it ingests onboard
// rangefinder readings and offboard obstacle maps, shapes incoming
// velocity setpoints against the fused map each control cycle, and
// records everything to sqlite.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/banshee-data/proximity.guard/internal/avoid"
	"github.com/banshee-data/proximity.guard/internal/bus"
	"github.com/banshee-data/proximity.guard/internal/config"
	"github.com/banshee-data/proximity.guard/internal/offboard"
	"github.com/banshee-data/proximity.guard/internal/rangefinder"
	"github.com/banshee-data/proximity.guard/internal/telemetry"
	"github.com/banshee-data/proximity.guard/internal/version"
)

var (
	devMode    = flag.Bool("dev", false, "Run with a synthetic rangefinder instead of real hardware")
	listen     = flag.String("listen", ":8080", "Listen address")
	broker     = flag.String("broker", "", "MQTT broker URL (empty disables MQTT)")
	dbFile     = flag.String("db", "avoid.db", "Telemetry database path")
	configPath = flag.String("config", "", "Tuning config JSON path")
	hz         = flag.Int("hz", 50, "Control cycle rate")
	rotation   = flag.String("rotation", "forward", "Rangefinder mounting rotation")
	device     = flag.String("port", "", "Rangefinder device path (empty tries the candidate list)")
)

// setpointTimeout bounds how old a commanded setpoint may be before the
// control loop stops acting on it.
const setpointTimeout = 500 * time.Millisecond

func main() {
	flag.Parse()

	log.Printf("proximity-guard %s (%s) built %s", version.Version, version.GitSHA, version.BuildTime)

	if *listen == "" {
		log.Fatal("Listen address is required")
	}
	if *hz <= 0 {
		log.Fatal("Control rate must be positive")
	}

	tuning := config.EmptyTuningConfig()
	if *configPath != "" {
		var err error
		tuning, err = config.LoadTuningConfig(*configPath)
		if err != nil {
			log.Fatalf("Failed to load tuning config: %v", err)
		}
		log.Printf("Loaded tuning config from %s", *configPath)
	}
	var cfg atomic.Pointer[config.TuningConfig]
	cfg.Store(tuning)

	rangeGroup := &bus.InstanceGroup[avoid.RangeReading]{}
	attitudeTopic := &bus.Topic[avoid.Attitude]{}
	mapTopic := &bus.Topic[avoid.ObstacleMap]{}
	setpointTopic := &bus.Topic[avoid.Setpoint]{}

	mount, err := avoid.ParseMount(*rotation)
	if err != nil {
		log.Fatalf("Bad -rotation: %v", err)
	}

	var factory rangefinder.PortFactory
	if *devMode {
		factory = synthFactory{}
	}
	manager := rangefinder.NewManager(factory, rangeGroup.Instance(0), nil)
	err = manager.Start(rangefinder.Selector{Device: *device}, avoid.Orientation{Mount: mount})
	if err != nil {
		// The engine still constrains from offboard maps without an
		// onboard sensor; the driver can be started later over HTTP.
		log.Printf("Rangefinder unavailable: %v", err)
	}
	defer manager.Stop()

	db, err := telemetry.NewDB(*dbFile)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	mqttClient, err := offboard.NewClient(offboard.Config{Broker: *broker}, mapTopic, attitudeTopic, setpointTopic, nil)
	if err != nil {
		log.Fatalf("Failed to create MQTT client: %v", err)
	}

	publishers := []avoid.Publisher{telemetry.NewRecorder(db)}
	if mqttClient != nil {
		publishers = append(publishers, mqttClient)
		defer mqttClient.Disconnect()
	}

	engine := avoid.NewEngine(avoid.EngineConfig{
		Attitude: attitudeTopic,
		Ranges: [avoid.MaxRangeSensors]avoid.Source[avoid.RangeReading]{
			rangeGroup.Instance(0),
			rangeGroup.Instance(1),
			rangeGroup.Instance(2),
			rangeGroup.Instance(3),
		},
		Offboard:  mapTopic,
		Publisher: fanout(publishers),
		Params:    func() avoid.Params { return cfg.Load().Params() },
	})

	mux := http.NewServeMux()
	db.AttachAdminRoutes(mux)
	manager.AttachAdminRoutes(mux)
	attachParamRoutes(mux, &cfg)

	server := &http.Server{Addr: *listen, Handler: mux}

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Printf("Listening on %s", *listen)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("HTTP server: %v", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		controlLoop(ctx, engine, setpointTopic, *hz)
	}()

	<-ctx.Done()
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown: %v", err)
	}
	wg.Wait()
}

// controlLoop shapes the latest commanded setpoint once per tick. With no
// fresh setpoint, or with shaping disabled, the cycle is a no-op.
func controlLoop(ctx context.Context, engine *avoid.Engine, setpoints *bus.Topic[avoid.Setpoint], hz int) {
	ticker := time.NewTicker(time.Second / time.Duration(hz))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sp, stamp, ok := setpoints.Snapshot()
			if !ok || time.Since(stamp) > setpointTimeout {
				continue
			}
			if !engine.Active() {
				continue
			}
			v := sp.Desired
			engine.ModifySetpoint(&v, sp.MaxSpeed, sp.Position, sp.Velocity)
		}
	}
}

// fanout distributes engine outputs to every configured publisher.
type fanout []avoid.Publisher

func (f fanout) PublishObstacleMap(m avoid.ObstacleMap) {
	for _, p := range f {
		p.PublishObstacleMap(m)
	}
}

func (f fanout) PublishConstraints(c avoid.Constraints) {
	for _, p := range f {
		p.PublishConstraints(c)
	}
}

func (f fanout) PublishCommand(c avoid.VehicleCommand) {
	for _, p := range f {
		p.PublishCommand(c)
	}
}

// attachParamRoutes serves the live tuning surface. The JSON schema is
// the tuning config file schema; posted configs replace the current one
// wholesale after validation.
func attachParamRoutes(mux *http.ServeMux, cfg *atomic.Pointer[config.TuningConfig]) {
	mux.HandleFunc("GET /api/avoid/params", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(cfg.Load())
	})
	mux.HandleFunc("POST /api/avoid/params", func(w http.ResponseWriter, r *http.Request) {
		next := config.EmptyTuningConfig()
		if err := json.NewDecoder(r.Body).Decode(next); err != nil {
			http.Error(w, fmt.Sprintf("bad params JSON: %v", err), http.StatusBadRequest)
			return
		}
		if err := next.Validate(); err != nil {
			http.Error(w, fmt.Sprintf("invalid params: %v", err), http.StatusBadRequest)
			return
		}
		cfg.Store(next)
		log.Printf("Tuning updated: %+v", next.Params())
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(next)
	})
}

// synthFactory fabricates a rangefinder for -dev runs: every path opens
// a port that answers the probe and then streams a slowly swinging
// distance at 20 Hz.
type synthFactory struct{}

func (synthFactory) Open(path string, mode *rangefinder.PortMode) (rangefinder.Porter, error) {
	r, w := io.Pipe()

	go func() {
		if _, err := io.WriteString(w, "LL40LS v3 fw 2.11 sn 00000\r\nR 00 1f\r\nR END\r\n"); err != nil {
			return
		}
		ticker := time.NewTicker(50 * time.Millisecond)
		defer ticker.Stop()
		start := time.Now()
		for range ticker.C {
			t := time.Since(start).Seconds()
			cm := 800 + int(500*math.Sin(t/3))
			if _, err := fmt.Fprintf(w, "D %d\r\n", cm); err != nil {
				return
			}
		}
	}()

	return &synthPort{PipeReader: r, w: w}, nil
}

type synthPort struct {
	*io.PipeReader
	w *io.PipeWriter
}

func (p *synthPort) Write(b []byte) (int, error) { return len(b), nil }

func (p *synthPort) Close() error {
	p.w.CloseWithError(io.EOF)
	return p.PipeReader.Close()
}
