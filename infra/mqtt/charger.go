package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

// ErrNoState is returned by readings before the charger reported its state.
var ErrNoState = errors.New("no charger state received")

// ChargerState is the retained state message a charger publishes on
// <prefix>/<id>/state.
type ChargerState struct {
	Connected bool `json:"connected"`
	Charging  bool `json:"charging"`
	// EnergyKWh is the cumulative energy counter of the charger.
	EnergyKWh float64 `json:"energy_kwh"`
	// SoC is reported by chargers that can read the battery level.
	SoC       *float64 `json:"soc,omitempty"`
	Timestamp int64    `json:"timestamp"`
}

// Command is the switch order published on <prefix>/<id>/command.
type Command struct {
	CommandID   string `json:"command_id"`
	ApplianceID string `json:"appliance_id"`
	On          bool   `json:"on"`
	PowerW      int    `json:"power_w,omitempty"`
	Timestamp   int64  `json:"timestamp"`
}

// Charger is the MQTT view of one charger. It is the vehicle state source,
// the energy counter, the optional SOC source and the switch of an
// appliance.
type Charger struct {
	client *PahoClient
	id     string

	mu       sync.RWMutex
	state    ChargerState
	received bool
}

// Charger subscribes to the state topic of the charger id.
func (p *PahoClient) Charger(id string) (*Charger, error) {
	c := &Charger{client: p, id: id}
	if err := p.subscribe(p.topic(id, "state"), p.cfg.qos("state"), c.onState); err != nil {
		return nil, err
	}
	return c, nil
}

func (p *PahoClient) topic(id, leaf string) string {
	return fmt.Sprintf("%s/%s/%s", p.cfg.TopicPrefix, id, leaf)
}

func (c *Charger) onState(_ paho.Client, msg paho.Message) {
	var s ChargerState
	if err := json.Unmarshal(msg.Payload(), &s); err != nil {
		c.client.log.Errorf("charger %s: invalid state message: %v", c.id, err)
		return
	}
	c.mu.Lock()
	c.state = s
	c.received = true
	c.mu.Unlock()
}

// State returns the last reported state.
func (c *Charger) State() (ChargerState, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state, c.received
}

func (c *Charger) IsVehicleConnected() bool {
	s, _ := c.State()
	return s.Connected
}

func (c *Charger) IsCharging() bool {
	s, _ := c.State()
	return s.Charging
}

// ReadCounter returns the cumulative energy counter in kWh.
func (c *Charger) ReadCounter(context.Context) (float64, error) {
	s, ok := c.State()
	if !ok {
		return 0, fmt.Errorf("charger %s: %w", c.id, ErrNoState)
	}
	return s.EnergyKWh, nil
}

// StateOfCharge returns the battery level last reported by the charger.
func (c *Charger) StateOfCharge(context.Context) (float64, error) {
	s, ok := c.State()
	if !ok {
		return 0, fmt.Errorf("charger %s: %w", c.id, ErrNoState)
	}
	if s.SoC == nil {
		return 0, fmt.Errorf("charger %s: state of charge not reported", c.id)
	}
	return *s.SoC, nil
}

// SetSwitch publishes a switch command and waits for its acknowledgment when
// an ack timeout is configured.
func (c *Charger) SetSwitch(ctx context.Context, on bool, powerW int) error {
	cmd := Command{
		CommandID:   uuid.NewString(),
		ApplianceID: c.id,
		On:          on,
		PowerW:      powerW,
		Timestamp:   time.Now().UnixMilli(),
	}
	payload, err := json.Marshal(cmd)
	if err != nil {
		return err
	}
	p := c.client
	topic := p.topic(c.id, "command")
	if err := p.publish(ctx, topic, p.cfg.qos("command"), payload); err != nil {
		return fmt.Errorf("charger %s: switch: %w", c.id, err)
	}
	p.log.Infof("sent command %s (on=%t) to %s", cmd.CommandID, on, topic)
	if p.cfg.AckTimeoutMS <= 0 {
		return nil
	}
	p.expectAck(cmd.CommandID)
	return p.WaitForAck(ctx, cmd.CommandID, time.Duration(p.cfg.AckTimeoutMS)*time.Millisecond)
}
