package iomon_test

import (
	"bytes"
	"errors"
	"log"
	"testing"

	"github.com/shopfloor/shearlock/internal/shear/iomon"
	"github.com/shopfloor/shearlock/internal/shear/types"
)

// scriptedDAQ returns digital samples in the order they were queued per
// channel, repeating the last one once the script runs out.
type scriptedDAQ struct {
	digital map[string][]bool
	errs    map[string]error
	analog  map[string]float64
}

func newScriptedDAQ() *scriptedDAQ {
	return &scriptedDAQ{
		digital: make(map[string][]bool),
		errs:    make(map[string]error),
		analog:  make(map[string]float64),
	}
}

func (d *scriptedDAQ) queue(channel string, samples ...bool) {
	d.digital[channel] = append(d.digital[channel], samples...)
}

func (d *scriptedDAQ) ReadDigitalInput(channel string) (bool, error) {
	if err := d.errs[channel]; err != nil {
		return false, err
	}
	s := d.digital[channel]
	if len(s) == 0 {
		return false, nil
	}
	v := s[0]
	if len(s) > 1 {
		d.digital[channel] = s[1:]
	}
	return v, nil
}

func (d *scriptedDAQ) ReadAnalogInput(channel string) (float64, error) {
	if err := d.errs[channel]; err != nil {
		return 0, err
	}
	return d.analog[channel], nil
}

func (d *scriptedDAQ) SetDigitalOutput(string, bool) error { return nil }
func (d *scriptedDAQ) Connect() error                      { return nil }
func (d *scriptedDAQ) Connected() bool                     { return true }
func (d *scriptedDAQ) Close() error                        { return nil }

func newTestMonitor(daq *scriptedDAQ, cfg iomon.Config) *iomon.Monitor {
	logger := log.New(bytes.NewBuffer(nil), "", 0)
	return iomon.New(daq, cfg, nil, logger)
}

func TestPoll_RisingEdgeEmitsOnce(t *testing.T) {
	daq := newScriptedDAQ()
	daq.queue("FIO5", true) // stable HIGH from here on
	m := newTestMonitor(daq, iomon.Config{DigitalChannels: []string{"FIO5"}})

	events := m.Poll()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Channel != "FIO5" || !events[0].State {
		t.Errorf("expected FIO5 rising edge, got %+v", events[0])
	}

	// Level unchanged: edge-triggered means no further events.
	if events := m.Poll(); len(events) != 0 {
		t.Errorf("expected no event for steady level, got %d", len(events))
	}
}

func TestPoll_FloatingInputForcedLow(t *testing.T) {
	daq := newScriptedDAQ()
	// Three disagreeing samples: the line is floating.
	daq.queue("FIO5", true, false, true)
	m := newTestMonitor(daq, iomon.Config{DigitalChannels: []string{"FIO5"}})

	// Forced default is LOW, which matches the initial baseline, so a
	// floating input never produces a change event.
	if events := m.Poll(); len(events) != 0 {
		t.Fatalf("floating input must not emit, got %d events", len(events))
	}
}

func TestPoll_FloatingAfterHighFallsBackToDefault(t *testing.T) {
	daq := newScriptedDAQ()
	daq.queue("FIO5", true, true, true) // solid HIGH
	daq.queue("FIO5", true, false, false)
	m := newTestMonitor(daq, iomon.Config{DigitalChannels: []string{"FIO5"}})

	if events := m.Poll(); len(events) != 1 {
		t.Fatalf("expected rising edge, got %d events", len(events))
	}
	// Now the line floats: forced LOW, which is a falling edge.
	events := m.Poll()
	if len(events) != 1 {
		t.Fatalf("expected forced-low edge, got %d events", len(events))
	}
	if events[0].State {
		t.Error("floating line must be reported at the default LOW level")
	}
}

func TestPoll_ErrorOnOneChannelDoesNotAbortOthers(t *testing.T) {
	daq := newScriptedDAQ()
	daq.errs["FIO4"] = errors.New("read failed")
	daq.queue("FIO5", true)
	m := newTestMonitor(daq, iomon.Config{DigitalChannels: []string{"FIO4", "FIO5"}})

	events := m.Poll()
	if len(events) != 1 {
		t.Fatalf("expected the healthy channel to still report, got %d events", len(events))
	}
	if events[0].Channel != "FIO5" {
		t.Errorf("expected FIO5 event, got %s", events[0].Channel)
	}
}

func TestPoll_AnalogThreshold(t *testing.T) {
	daq := newScriptedDAQ()
	daq.analog["AIN0"] = 0.05
	m := newTestMonitor(daq, iomon.Config{AnalogChannels: []string{"AIN0"}})

	// Jitter below the threshold is ignored.
	if events := m.Poll(); len(events) != 0 {
		t.Fatalf("expected sub-threshold jitter to be ignored, got %d events", len(events))
	}

	daq.analog["AIN0"] = 0.75
	events := m.Poll()
	if len(events) != 1 {
		t.Fatalf("expected analog change event, got %d", len(events))
	}
	if events[0].Kind != types.InputAnalog || events[0].Value != 0.75 {
		t.Errorf("unexpected analog event: %+v", events[0])
	}

	// Small drift from the new baseline stays quiet.
	daq.analog["AIN0"] = 0.79
	if events := m.Poll(); len(events) != 0 {
		t.Errorf("expected drift below threshold to be ignored, got %d events", len(events))
	}
}
