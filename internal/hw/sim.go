package hw

import (
	"errors"
	"sync"
)

// ErrNotConnected is returned by any device operation attempted while
// the underlying hardware is absent.
var ErrNotConnected = errors.New("hw: device not connected")

// SimReader is an in-process stand-in for the HID reader, used in dev
// environments and tests.  QueueReport enqueues a raw report that the
// next ReadReport call returns.
type SimReader struct {
	mu        sync.Mutex
	connected bool
	reports   [][]byte
}

func NewSimReader() *SimReader { return &SimReader{} }

func (r *SimReader) QueueReport(report []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, report)
}

func (r *SimReader) ReadReport() ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.connected {
		return nil, ErrNotConnected
	}
	if len(r.reports) == 0 {
		return nil, nil
	}
	rep := r.reports[0]
	r.reports = r.reports[1:]
	return rep, nil
}

func (r *SimReader) Connect() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connected = true
	return nil
}

func (r *SimReader) Connected() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.connected
}

func (r *SimReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connected = false
	return nil
}

// SimDAQ is an in-process stand-in for the DAQ unit.  Inputs are set by
// tests or a dev console; outputs record what the controller commanded.
type SimDAQ struct {
	mu        sync.Mutex
	connected bool
	digital   map[string]bool
	analog    map[string]float64
	outputs   map[string]bool
}

func NewSimDAQ() *SimDAQ {
	return &SimDAQ{
		digital: make(map[string]bool),
		analog:  make(map[string]float64),
		outputs: make(map[string]bool),
	}
}

func (d *SimDAQ) SetDigitalInput(channel string, state bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.digital[channel] = state
}

func (d *SimDAQ) SetAnalogInput(channel string, value float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.analog[channel] = value
}

// Output reports the last level the controller commanded on a channel.
func (d *SimDAQ) Output(channel string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.outputs[channel]
}

func (d *SimDAQ) ReadDigitalInput(channel string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.connected {
		return false, ErrNotConnected
	}
	return d.digital[channel], nil
}

func (d *SimDAQ) ReadAnalogInput(channel string) (float64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.connected {
		return 0, ErrNotConnected
	}
	return d.analog[channel], nil
}

func (d *SimDAQ) SetDigitalOutput(channel string, level bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.connected {
		return ErrNotConnected
	}
	d.outputs[channel] = level
	return nil
}

func (d *SimDAQ) Connect() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.connected = true
	return nil
}

func (d *SimDAQ) Connected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.connected
}

func (d *SimDAQ) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.connected = false
	return nil
}
