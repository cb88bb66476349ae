// Package modbus reads cumulative energy counters from meters and switches
// wallboxes over Modbus TCP.
package modbus

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/simonvetter/modbus"

	"github.com/kilianp07/chargeplan/core/logger"
)

// Config describes where the energy counter lives on the meter.
type Config struct {
	// Host is the host:port of the Modbus TCP endpoint.
	Host     string `json:"host"`
	UnitID   uint8  `json:"unit_id"`
	Register uint16 `json:"register"`
	// RegisterType is "holding" (default) or "input".
	RegisterType string `json:"register_type"`
	// DataType is "float32" (default), "uint32" or "uint64", big endian.
	DataType string `json:"data_type"`
	// Scale converts the raw value to kWh, e.g. 0.001 for a Wh counter.
	Scale     float64 `json:"scale"`
	TimeoutMS int     `json:"timeout_ms"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.RegisterType == "" {
		c.RegisterType = "holding"
	}
	if c.DataType == "" {
		c.DataType = "float32"
	}
	if c.Scale == 0 {
		c.Scale = 1
	}
	if c.TimeoutMS <= 0 {
		c.TimeoutMS = 2000
	}
}

// Validate checks mandatory fields.
func (c Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("modbus: host is required")
	}
	if c.RegisterType != "holding" && c.RegisterType != "input" {
		return fmt.Errorf("modbus: unknown register_type %q", c.RegisterType)
	}
	if _, ok := registerCount[c.DataType]; !ok {
		return fmt.Errorf("modbus: unknown data_type %q", c.DataType)
	}
	return nil
}

var registerCount = map[string]uint16{"float32": 2, "uint32": 2, "uint64": 4}

type registerClient interface {
	Open() error
	Close() error
	SetUnitId(id uint8) error
	ReadRegisters(addr uint16, quantity uint16, regType modbus.RegType) ([]uint16, error)
	WriteCoil(addr uint16, value bool) error
	WriteRegister(addr uint16, value uint16) error
}

var newClient = func(host string, timeout time.Duration) (registerClient, error) {
	return modbus.NewClient(&modbus.ClientConfiguration{
		URL:     "tcp://" + host,
		Timeout: timeout,
	})
}

// conn is a lazily opened connection re-created after a failed request.
type conn struct {
	host    string
	unitID  uint8
	timeout time.Duration
	log     logger.Logger

	mu              sync.Mutex
	client          registerClient
	shouldReconnect bool
}

func newConn(host string, unitID uint8, timeoutMS int, log logger.Logger) *conn {
	if log == nil {
		log = logger.Nop{}
	}
	return &conn{
		host:            host,
		unitID:          unitID,
		timeout:         time.Duration(timeoutMS) * time.Millisecond,
		log:             log,
		shouldReconnect: true,
	}
}

// do runs fn on a healthy client.
func (c *conn) do(ctx context.Context, fn func(registerClient) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.reconnectIfNecessary(); err != nil {
		return fmt.Errorf("reconnect: %w", err)
	}
	if err := fn(c.client); err != nil {
		c.shouldReconnect = true
		return err
	}
	return nil
}

// Close releases the connection.
func (c *conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client == nil {
		return nil
	}
	err := c.client.Close()
	c.client = nil
	c.shouldReconnect = true
	return err
}

func (c *conn) reconnectIfNecessary() error {
	if !c.shouldReconnect {
		return nil
	}
	// the old connection is dirty, a failed close changes nothing
	if c.client != nil {
		_ = c.client.Close()
	}
	cl, err := newClient(c.host, c.timeout)
	if err != nil {
		return fmt.Errorf("create modbus client: %w", err)
	}
	if err := cl.Open(); err != nil {
		return fmt.Errorf("open modbus client: %w", err)
	}
	if err := cl.SetUnitId(c.unitID); err != nil {
		_ = cl.Close()
		return fmt.Errorf("set unit id: %w", err)
	}
	c.client = cl
	c.shouldReconnect = false
	c.log.Infof("connected modbus client to %s", c.host)
	return nil
}

// CounterReader reads the energy counter register. The connection is opened
// lazily and re-created after a failed read.
type CounterReader struct {
	cfg  Config
	conn *conn
}

// NewCounterReader validates cfg and returns a reader. No connection is made
// until the first read.
func NewCounterReader(cfg Config, log logger.Logger) (*CounterReader, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &CounterReader{cfg: cfg, conn: newConn(cfg.Host, cfg.UnitID, cfg.TimeoutMS, log)}, nil
}

// ReadCounter returns the counter value in kWh.
func (r *CounterReader) ReadCounter(ctx context.Context) (float64, error) {
	regType := modbus.HOLDING_REGISTER
	if r.cfg.RegisterType == "input" {
		regType = modbus.INPUT_REGISTER
	}
	var regs []uint16
	err := r.conn.do(ctx, func(c registerClient) error {
		var err error
		if regs, err = c.ReadRegisters(r.cfg.Register, registerCount[r.cfg.DataType], regType); err != nil {
			return fmt.Errorf("read register %d on %s: %w", r.cfg.Register, r.cfg.Host, err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	v, err := decode(r.cfg.DataType, regs)
	if err != nil {
		return 0, err
	}
	return v * r.cfg.Scale, nil
}

// Close releases the connection.
func (r *CounterReader) Close() error { return r.conn.Close() }

func decode(dataType string, regs []uint16) (float64, error) {
	if len(regs) != int(registerCount[dataType]) {
		return 0, fmt.Errorf("expected %d registers for %s, got %d", registerCount[dataType], dataType, len(regs))
	}
	b := make([]byte, len(regs)*2)
	for i, v := range regs {
		binary.BigEndian.PutUint16(b[i*2:], v)
	}
	switch dataType {
	case "float32":
		return float64(math.Float32frombits(binary.BigEndian.Uint32(b))), nil
	case "uint32":
		return float64(binary.BigEndian.Uint32(b)), nil
	default:
		return float64(binary.BigEndian.Uint64(b)), nil
	}
}
