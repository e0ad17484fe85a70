// Package offboard bridges the avoidance engine to an MQTT broker. It
// ingests wide-field obstacle maps and attitude published by companion
// computers and republishes the engine's per-cycle outputs.
package offboard

import (
	"encoding/json"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/banshee-data/proximity.guard/internal/avoid"
	"github.com/banshee-data/proximity.guard/internal/bus"
	"github.com/banshee-data/proximity.guard/internal/timeutil"
)

// Topic layout on the broker.
const (
	TopicObstacleMap = "avoid/obstacle_map"
	TopicAttitude    = "avoid/attitude"
	TopicSetpoint    = "avoid/setpoint"
	TopicFusedMap    = "avoid/fused_map"
	TopicConstraints = "avoid/constraints"
	TopicCommand     = "avoid/command"
)

// Config holds broker connection settings.
type Config struct {
	Broker   string
	ClientID string
	Username string
	Password string
}

// Client manages the MQTT connection and subscriptions for offboard
// obstacle data.
type Client struct {
	client mqtt.Client
	clock  timeutil.Clock

	maps      *bus.Topic[avoid.ObstacleMap]
	attitude  *bus.Topic[avoid.Attitude]
	setpoints *bus.Topic[avoid.Setpoint]

	mu          sync.RWMutex
	isConnected bool
}

// NewClient creates and starts an MQTT client. An empty broker disables
// MQTT entirely and returns (nil, nil); callers must tolerate a nil
// client. Connection runs in the background with retry; subscriptions
// are re-established on every reconnect.
func NewClient(cfg Config, maps *bus.Topic[avoid.ObstacleMap], attitude *bus.Topic[avoid.Attitude], setpoints *bus.Topic[avoid.Setpoint], clock timeutil.Clock) (*Client, error) {
	if cfg.Broker == "" {
		log.Println("MQTT disabled: no broker configured")
		return nil, nil
	}
	if maps == nil || attitude == nil || setpoints == nil {
		return nil, fmt.Errorf("MQTT enabled but no ingest topics provided")
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}

	c := &Client{
		clock:     clock,
		maps:      maps,
		attitude:  attitude,
		setpoints: setpoints,
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)

	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "proximity-guard"
	}
	opts.SetClientID(clientID)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetCleanSession(false)
	opts.SetOrderMatters(false)

	opts.SetOnConnectHandler(c.onConnect)
	opts.SetConnectionLostHandler(c.onConnectionLost)
	opts.SetReconnectingHandler(c.onReconnecting)

	c.client = mqtt.NewClient(opts)

	go c.connectWithRetry()

	return c, nil
}

// connectWithRetry attempts to connect to the broker with exponential backoff.
func (c *Client) connectWithRetry() {
	retryDelay := 1 * time.Second
	maxRetryDelay := 60 * time.Second

	for {
		log.Println("Connecting to MQTT broker...")

		token := c.client.Connect()
		if token.WaitTimeout(10 * time.Second) {
			if token.Error() == nil {
				log.Println("Successfully connected to MQTT broker")
				c.setConnected(true)
				return
			}
			log.Printf("MQTT connection failed: %v", token.Error())
		} else {
			log.Println("MQTT connection timeout")
		}

		log.Printf("Retrying MQTT connection in %v...", retryDelay)
		time.Sleep(retryDelay)
		retryDelay *= 2
		if retryDelay > maxRetryDelay {
			retryDelay = maxRetryDelay
		}
	}
}

func (c *Client) onConnect(client mqtt.Client) {
	log.Println("MQTT connected, subscribing to offboard topics...")
	c.setConnected(true)

	subs := map[string]mqtt.MessageHandler{
		TopicObstacleMap: func(_ mqtt.Client, msg mqtt.Message) {
			if err := c.handleObstacleMap(msg.Payload()); err != nil {
				log.Printf("Error decoding obstacle map: %v", err)
			}
		},
		TopicAttitude: func(_ mqtt.Client, msg mqtt.Message) {
			if err := c.handleAttitude(msg.Payload()); err != nil {
				log.Printf("Error decoding attitude: %v", err)
			}
		},
		TopicSetpoint: func(_ mqtt.Client, msg mqtt.Message) {
			if err := c.handleSetpoint(msg.Payload()); err != nil {
				log.Printf("Error decoding setpoint: %v", err)
			}
		},
	}
	for topic, handler := range subs {
		token := client.Subscribe(topic, 0, handler)
		if token.WaitTimeout(5*time.Second) && token.Error() != nil {
			log.Printf("Error subscribing to %s: %v", topic, token.Error())
		} else {
			log.Printf("Successfully subscribed to %s", topic)
		}
	}
}

// onConnectionLost is typically a transient event; auto-reconnect retries.
func (c *Client) onConnectionLost(client mqtt.Client, err error) {
	log.Printf("MQTT connection interrupted (%v), auto-reconnect will retry", err)
	c.setConnected(false)
}

func (c *Client) onReconnecting(client mqtt.Client, opts *mqtt.ClientOptions) {
	log.Println("MQTT reconnecting...")
}

func (c *Client) setConnected(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.isConnected = v
}

// IsConnected reports whether the broker connection is up.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.isConnected
}

// Disconnect closes the broker connection.
func (c *Client) Disconnect() {
	c.client.Disconnect(250)
	c.setConnected(false)
}

// Wire formats. Quaternions travel as [w, x, y, z]; unbounded speed
// limits travel as -1 since JSON cannot carry +Inf.

type obstacleMapWire struct {
	IncrementDeg   float64   `json:"increment_deg"`
	AngleOffsetDeg float64   `json:"angle_offset_deg,omitempty"`
	MinDistanceCM  uint16    `json:"min_distance_cm"`
	MaxDistanceCM  uint16    `json:"max_distance_cm"`
	DistancesCM    []uint16  `json:"distances_cm"`
	Stamp          time.Time `json:"stamp"`
}

type attitudeWire struct {
	Q     [4]float64 `json:"q"`
	Stamp time.Time  `json:"stamp"`
}

type setpointWire struct {
	Desired  [2]float64 `json:"desired"`
	MaxSpeed float64    `json:"max_speed"`
	Position [2]float64 `json:"position"`
	Velocity [2]float64 `json:"velocity"`
	Stamp    time.Time  `json:"stamp"`
}

type constraintsWire struct {
	Stamp       time.Time  `json:"stamp"`
	Original    [2]float64 `json:"original"`
	Adapted     [2]float64 `json:"adapted"`
	Interfering bool       `json:"interfering"`
	SpeedBounds []float64  `json:"speed_bounds"`
}

type commandWire struct {
	Command uint8     `json:"command"`
	Stamp   time.Time `json:"stamp"`
}

func (c *Client) handleObstacleMap(payload []byte) error {
	var w obstacleMapWire
	if err := json.Unmarshal(payload, &w); err != nil {
		return fmt.Errorf("obstacle map payload: %w", err)
	}
	if w.IncrementDeg <= 0 {
		return fmt.Errorf("obstacle map payload: non-positive increment %v", w.IncrementDeg)
	}
	if len(w.DistancesCM) == 0 {
		return fmt.Errorf("obstacle map payload: no distances")
	}
	stamp := w.Stamp
	if stamp.IsZero() {
		stamp = c.clock.Now()
	}
	c.maps.Publish(avoid.ObstacleMap{
		IncrementDeg:   w.IncrementDeg,
		AngleOffsetDeg: w.AngleOffsetDeg,
		MinDistanceCM:  w.MinDistanceCM,
		MaxDistanceCM:  w.MaxDistanceCM,
		DistancesCM:    w.DistancesCM,
		Stamp:          stamp,
	}, stamp)
	return nil
}

func (c *Client) handleAttitude(payload []byte) error {
	var w attitudeWire
	if err := json.Unmarshal(payload, &w); err != nil {
		return fmt.Errorf("attitude payload: %w", err)
	}
	norm := math.Sqrt(w.Q[0]*w.Q[0] + w.Q[1]*w.Q[1] + w.Q[2]*w.Q[2] + w.Q[3]*w.Q[3])
	if norm < 1e-6 {
		return fmt.Errorf("attitude payload: zero quaternion")
	}
	stamp := w.Stamp
	if stamp.IsZero() {
		stamp = c.clock.Now()
	}
	c.attitude.Publish(avoid.Attitude{
		Quat: quat.Number{
			Real: w.Q[0] / norm,
			Imag: w.Q[1] / norm,
			Jmag: w.Q[2] / norm,
			Kmag: w.Q[3] / norm,
		},
		Stamp: stamp,
	}, stamp)
	return nil
}

func (c *Client) handleSetpoint(payload []byte) error {
	var w setpointWire
	if err := json.Unmarshal(payload, &w); err != nil {
		return fmt.Errorf("setpoint payload: %w", err)
	}
	if w.MaxSpeed <= 0 {
		return fmt.Errorf("setpoint payload: non-positive max speed %v", w.MaxSpeed)
	}
	stamp := w.Stamp
	if stamp.IsZero() {
		stamp = c.clock.Now()
	}
	c.setpoints.Publish(avoid.Setpoint{
		Desired:  r2.Vec{X: w.Desired[0], Y: w.Desired[1]},
		MaxSpeed: w.MaxSpeed,
		Position: r2.Vec{X: w.Position[0], Y: w.Position[1]},
		Velocity: r2.Vec{X: w.Velocity[0], Y: w.Velocity[1]},
		Stamp:    stamp,
	}, stamp)
	return nil
}

// PublishObstacleMap implements avoid.Publisher by republishing the
// fused map to the broker. Dropped silently while disconnected.
func (c *Client) PublishObstacleMap(m avoid.ObstacleMap) {
	if !c.IsConnected() {
		return
	}
	distances := make([]uint16, len(m.DistancesCM))
	copy(distances, m.DistancesCM)
	c.publishJSON(TopicFusedMap, obstacleMapWire{
		IncrementDeg:   m.IncrementDeg,
		AngleOffsetDeg: m.AngleOffsetDeg,
		MinDistanceCM:  m.MinDistanceCM,
		MaxDistanceCM:  m.MaxDistanceCM,
		DistancesCM:    distances,
		Stamp:          m.Stamp,
	})
}

// PublishConstraints implements avoid.Publisher.
func (c *Client) PublishConstraints(ct avoid.Constraints) {
	if !c.IsConnected() {
		return
	}
	bounds := make([]float64, len(ct.SpeedBound))
	for i, b := range ct.SpeedBound {
		if math.IsInf(b, 1) {
			bounds[i] = -1
		} else {
			bounds[i] = b
		}
	}
	c.publishJSON(TopicConstraints, constraintsWire{
		Stamp:       ct.Stamp,
		Original:    [2]float64{ct.Original.X, ct.Original.Y},
		Adapted:     [2]float64{ct.Adapted.X, ct.Adapted.Y},
		Interfering: ct.Interfering,
		SpeedBounds: bounds,
	})
}

// PublishCommand implements avoid.Publisher.
func (c *Client) PublishCommand(cmd avoid.VehicleCommand) {
	if !c.IsConnected() {
		return
	}
	c.publishJSON(TopicCommand, commandWire{
		Command: uint8(cmd.Command),
		Stamp:   cmd.Stamp,
	})
}

func (c *Client) publishJSON(topic string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("Error encoding %s payload: %v", topic, err)
		return
	}
	c.client.Publish(topic, 0, false, data)
}
