package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withMock(t *testing.T, mc *mockClient) {
	t.Helper()
	newMQTTClient = func(o *paho.ClientOptions) pahoClient { mc.opts = o; return mc }
	t.Cleanup(func() { newMQTTClient = func(opts *paho.ClientOptions) pahoClient { return paho.NewClient(opts) } })
}

func TestQoSSettings(t *testing.T) {
	mc := &mockClient{}
	withMock(t, mc)
	cfg := Config{Broker: "tcp://localhost:1883", ClientID: "id", QoS: map[string]byte{"command": 2, "ack": 1, "state": 1}}
	cli, err := NewPahoClient(cfg, nil)
	require.NoError(t, err)
	ch, err := cli.Charger("F-001")
	require.NoError(t, err)

	assert.Equal(t, byte(1), mc.subscription("chargeplan/+/ack").qos)
	assert.Equal(t, byte(1), mc.subscription("chargeplan/F-001/state").qos)

	require.NoError(t, ch.SetSwitch(context.Background(), true, 4000))
	pubs := mc.publishes()
	require.Len(t, pubs, 1)
	assert.Equal(t, "chargeplan/F-001/command", pubs[0].topic)
	assert.Equal(t, byte(2), pubs[0].qos)

	var cmd Command
	require.NoError(t, json.Unmarshal(pubs[0].payload, &cmd))
	assert.Equal(t, "F-001", cmd.ApplianceID)
	assert.True(t, cmd.On)
	assert.Equal(t, 4000, cmd.PowerW)
	assert.NotEmpty(t, cmd.CommandID)
}

func TestChargerState(t *testing.T) {
	mc := &mockClient{}
	withMock(t, mc)
	cli, err := NewPahoClient(Config{Broker: "tcp://localhost:1883"}, nil)
	require.NoError(t, err)
	ch, err := cli.Charger("F-001")
	require.NoError(t, err)
	ctx := context.Background()

	_, err = ch.ReadCounter(ctx)
	assert.ErrorIs(t, err, ErrNoState)
	assert.False(t, ch.IsVehicleConnected())

	mc.deliver("chargeplan/F-001/state", `{"connected":true,"charging":true,"energy_kwh":12.5}`)
	assert.True(t, ch.IsVehicleConnected())
	assert.True(t, ch.IsCharging())
	kwh, err := ch.ReadCounter(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 12.5, kwh, 1e-9)
	_, err = ch.StateOfCharge(ctx)
	assert.Error(t, err)

	mc.deliver("chargeplan/F-001/state", `{"connected":true,"charging":false,"energy_kwh":13,"soc":61.5}`)
	soc, err := ch.StateOfCharge(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 61.5, soc, 1e-9)
	assert.False(t, ch.IsCharging())

	mc.deliver("chargeplan/F-001/state", `not json`)
	kwh, _ = ch.ReadCounter(ctx)
	assert.InDelta(t, 13, kwh, 1e-9, "invalid messages keep the last state")
}

func TestSubscriptionsRenewedOnReconnect(t *testing.T) {
	mc := &mockClient{}
	withMock(t, mc)
	cli, err := NewPahoClient(Config{Broker: "tcp://localhost:1883"}, nil)
	require.NoError(t, err)
	_, err = cli.Charger("F-001")
	require.NoError(t, err)

	mc.reset()
	mc.opts.OnConnect(mc)
	assert.NotNil(t, mc.subscription("chargeplan/+/ack").handler)
	assert.NotNil(t, mc.subscription("chargeplan/F-001/state").handler)
}

func TestSwitchWaitsForAck(t *testing.T) {
	mc := &mockClient{}
	withMock(t, mc)
	cli, err := NewPahoClient(Config{Broker: "tcp://localhost:1883", AckTimeoutMS: 2000}, nil)
	require.NoError(t, err)
	ch, err := cli.Charger("F-001")
	require.NoError(t, err)

	errc := make(chan error, 1)
	go func() { errc <- ch.SetSwitch(context.Background(), false, 0) }()

	require.Eventually(t, func() bool {
		cli.mu.Lock()
		defer cli.mu.Unlock()
		return len(cli.ackChans) == 1
	}, time.Second, time.Millisecond)
	var cmd Command
	require.NoError(t, json.Unmarshal(mc.publishes()[0].payload, &cmd))
	mc.deliver("chargeplan/+/ack", fmt.Sprintf(`{"command_id":%q}`, cmd.CommandID))
	require.NoError(t, <-errc)
}

func TestLWTConfigured(t *testing.T) {
	mc := &mockClient{}
	withMock(t, mc)
	cfg := Config{Broker: "tcp://localhost:1883", ClientID: "id", LWTTopic: "lwt", LWTPayload: "bye", LWTQoS: 1}
	cli, err := NewPahoClient(cfg, nil)
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	if !mc.opts.WillEnabled {
		t.Fatalf("will not enabled")
	}
	if mc.opts.WillTopic != "lwt" || string(mc.opts.WillPayload) != "bye" {
		t.Fatalf("will options incorrect")
	}
	cli.Disconnect()
	if len(mc.publishes()) != 0 {
		t.Fatalf("unexpected publish on disconnect")
	}
}

func TestRetryLogic(t *testing.T) {
	mc := &mockClient{publishErrs: []error{fmt.Errorf("net fail"), nil}}
	withMock(t, mc)
	cfg := Config{Broker: "tcp://localhost:1883", ClientID: "id", MaxRetries: 1, BackoffMS: 1}
	cli, err := NewPahoClient(cfg, nil)
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	ch, _ := cli.Charger("veh1")
	if err := ch.SetSwitch(context.Background(), true, 0); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(mc.publishes()) != 2 {
		t.Fatalf("expected retries")
	}
}

func TestRetryExhausted(t *testing.T) {
	fail := errors.New("net fail")
	mc := &mockClient{publishErrs: []error{fail, fail}}
	withMock(t, mc)
	cli, err := NewPahoClient(Config{Broker: "tcp://localhost:1883", MaxRetries: 1, BackoffMS: 1}, nil)
	require.NoError(t, err)
	ch, _ := cli.Charger("veh1")
	err = ch.SetSwitch(context.Background(), true, 0)
	assert.ErrorIs(t, err, fail)
	assert.Len(t, mc.publishes(), 2)
}

func TestWaitForAckTimeout(t *testing.T) {
	mc := &mockClient{}
	withMock(t, mc)
	cli, err := NewPahoClient(Config{Broker: "tcp://localhost:1883", ClientID: "id", AckTimeoutMS: 1}, nil)
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	ch, _ := cli.Charger("veh1")
	err = ch.SetSwitch(context.Background(), true, 0)
	if !errors.Is(err, ErrAckTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}
	if err := cli.WaitForAck(context.Background(), "nope", time.Millisecond); err == nil {
		t.Fatalf("unknown command accepted")
	}
}

// mockClient implements pahoClient and paho.Client for tests.
type mockClient struct {
	opts *paho.ClientOptions

	mu          sync.Mutex
	subscribed  map[string]subscription
	published   []published
	publishErrs []error
}

type published struct {
	topic   string
	qos     byte
	payload []byte
}

func (m *mockClient) subscription(topic string) subscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.subscribed[topic]
}

func (m *mockClient) publishes() []published {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]published(nil), m.published...)
}

func (m *mockClient) reset() {
	m.mu.Lock()
	m.subscribed = nil
	m.mu.Unlock()
}

func (m *mockClient) deliver(topic, payload string) {
	m.subscription(topic).handler(m, mockMessage{topic: topic, p: []byte(payload)})
}

func (m *mockClient) IsConnected() bool { return true }
func (m *mockClient) Connect() paho.Token {
	if m.opts != nil && m.opts.OnConnect != nil {
		m.opts.OnConnect(m)
	}
	return &dummyToken{}
}
func (m *mockClient) Disconnect(uint) {}
func (m *mockClient) Publish(topic string, qos byte, _ bool, payload interface{}) paho.Token {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, _ := payload.([]byte)
	m.published = append(m.published, published{topic, qos, b})
	if len(m.publishErrs) > 0 {
		err := m.publishErrs[0]
		m.publishErrs = m.publishErrs[1:]
		return &dummyToken{err: err}
	}
	return &dummyToken{}
}
func (m *mockClient) Subscribe(topic string, qos byte, h paho.MessageHandler) paho.Token {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.subscribed == nil {
		m.subscribed = map[string]subscription{}
	}
	m.subscribed[topic] = subscription{qos: qos, handler: h}
	return &dummyToken{}
}
func (m *mockClient) SubscribeMultiple(map[string]byte, paho.MessageHandler) paho.Token {
	return &dummyToken{}
}
func (m *mockClient) Unsubscribe(...string) paho.Token        { return &dummyToken{} }
func (m *mockClient) AddRoute(string, paho.MessageHandler)    {}
func (m *mockClient) OptionsReader() paho.ClientOptionsReader { return paho.ClientOptionsReader{} }
func (m *mockClient) IsConnectionOpen() bool                  { return true }

type dummyToken struct{ err error }

func (d dummyToken) Wait() bool                     { return true }
func (d dummyToken) WaitTimeout(time.Duration) bool { return true }
func (d dummyToken) Done() <-chan struct{}          { ch := make(chan struct{}); close(ch); return ch }
func (d dummyToken) Error() error                   { return d.err }

type mockMessage struct {
	topic string
	p     []byte
}

func (m mockMessage) Duplicate() bool   { return false }
func (m mockMessage) Qos() byte         { return 0 }
func (m mockMessage) Retained() bool    { return false }
func (m mockMessage) Topic() string     { return m.topic }
func (m mockMessage) MessageID() uint16 { return 0 }
func (m mockMessage) Payload() []byte   { return m.p }
func (m mockMessage) Ack()              {}
