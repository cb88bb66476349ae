package metrics

import (
	"errors"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/chargeplan/core/factory"
)

type recordSink struct {
	count int
	err   error
}

func (r *recordSink) RecordChargerState(ChargerStateEvent) error {
	r.count++
	return r.err
}

func (r *recordSink) RecordPlan(PlanEvent) error {
	r.count++
	return r.err
}

// TestMultiSink ensures events are forwarded to all sinks even when one fails.
func TestMultiSink(t *testing.T) {
	s1 := &recordSink{err: errors.New("down")}
	s2 := &recordSink{}
	m := NewMultiSink(s1, s2)
	if err := m.RecordChargerState(ChargerStateEvent{}); err == nil {
		t.Fatalf("expected error from first sink")
	}
	if err := m.RecordPlan(PlanEvent{}); err == nil {
		t.Fatalf("expected error from first sink")
	}
	if s1.count != 2 || s2.count != 2 {
		t.Fatalf("events not forwarded")
	}
}

func TestNewSink(t *testing.T) {
	s, err := NewSink(nil)
	if err != nil {
		t.Fatalf("create nop default: %v", err)
	}
	if _, ok := s.(NopSink); !ok {
		t.Fatalf("expected NopSink, got %T", s)
	}

	var cfg Config
	if err := yaml.Unmarshal([]byte("sinks:\n  - type: nop\n  - type: nop\n"), &cfg); err != nil {
		t.Fatalf("yaml unmarshal: %v", err)
	}
	s, err = NewSink(cfg.Sinks)
	if err != nil {
		t.Fatalf("create multi: %v", err)
	}
	m, ok := s.(*MultiSink)
	if !ok || len(m.Sinks) != 2 {
		t.Fatalf("expected MultiSink with 2 sinks, got %T", s)
	}

	if _, err := NewSink([]factory.ModuleConfig{{Type: "missing"}}); err == nil {
		t.Fatal("expected error for unknown type")
	}
}
