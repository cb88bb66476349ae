package sentry

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/chargeplan/core/reporting"
)

func TestNewWithoutDSNIsNop(t *testing.T) {
	r, err := New(Config{})
	require.NoError(t, err)
	assert.IsType(t, reporting.Nop{}, r)
	assert.Error(t, Config{TracesSampleRate: 2}.Validate())
}

func TestCaptureErrorWithTags(t *testing.T) {
	var (
		mu     sync.Mutex
		events []*sentry.Event
	)
	r, err := newReporter(sentry.ClientOptions{
		Dsn: "https://public@example.com/1",
		BeforeSend: func(ev *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			mu.Lock()
			events = append(events, ev)
			mu.Unlock()
			return nil
		},
	})
	require.NoError(t, err)

	r.CaptureError(errors.New("switch failed"), map[string]string{"appliance_id": "F-001"})
	r.CaptureError(nil, nil)
	r.Flush(time.Second)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, events, 1)
	assert.Equal(t, "F-001", events[0].Tags["appliance_id"])
	require.NotEmpty(t, events[0].Exception)
	assert.Equal(t, "switch failed", events[0].Exception[0].Value)
}

func TestRecoverRepanics(t *testing.T) {
	r, err := newReporter(sentry.ClientOptions{
		Dsn:        "https://public@example.com/1",
		BeforeSend: func(*sentry.Event, *sentry.EventHint) *sentry.Event { return nil },
	})
	require.NoError(t, err)
	assert.Panics(t, func() {
		defer r.Recover()
		panic("boom")
	})
}
