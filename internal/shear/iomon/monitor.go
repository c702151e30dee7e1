// Package iomon polls the DAQ's sensor lines on a fixed interval and
// turns confirmed level changes into edge-triggered events.  Digital
// reads are debounced by multi-sampling: a floating, unterminated input
// reads as indeterminate on this class of hardware, and reporting that
// noise upstream could spuriously reset the unlock timer.
package iomon

import (
	"context"
	"log"
	"time"

	"github.com/shopfloor/shearlock/internal/hw"
	"github.com/shopfloor/shearlock/internal/shear/types"
)

type Config struct {
	DigitalChannels []string
	AnalogChannels  []string

	// PollInterval is the period between full polls.  Defaults to 100ms.
	PollInterval time.Duration

	// SampleCount rapid samples are taken per digital read, SampleGap
	// apart.  If they disagree the channel is judged floating and forced
	// to FloatingDefault.  Defaults: 3 samples, 1ms apart, LOW.
	SampleCount     int
	SampleGap       time.Duration
	FloatingDefault bool

	// AnalogThreshold is the minimum delta that counts as an analog
	// change.  Defaults to 0.1.
	AnalogThreshold float64

	// RetryInterval is the wait between reconnect attempts after the
	// DAQ drops.  Defaults to 5s.
	RetryInterval time.Duration
}

func (c *Config) applyDefaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = 100 * time.Millisecond
	}
	if c.SampleCount <= 0 {
		c.SampleCount = 3
	}
	if c.SampleGap <= 0 {
		c.SampleGap = time.Millisecond
	}
	if c.AnalogThreshold <= 0 {
		c.AnalogThreshold = 0.1
	}
	if c.RetryInterval <= 0 {
		c.RetryInterval = 5 * time.Second
	}
}

// Monitor owns the last-stable-value state for every watched channel.
// Poll may be driven manually (tests) or via Start's background loop.
type Monitor struct {
	daq      hw.DAQ
	cfg      Config
	onChange func(types.ChangeEvent)
	logger   *log.Logger

	lastDigital map[string]bool
	lastAnalog  map[string]float64

	now   func() time.Time
	sleep func(time.Duration)

	nextRetry time.Time
	cancel    context.CancelFunc
	done      chan struct{}
}

func New(daq hw.DAQ, cfg Config, onChange func(types.ChangeEvent), logger *log.Logger) *Monitor {
	cfg.applyDefaults()
	return &Monitor{
		daq:         daq,
		cfg:         cfg,
		onChange:    onChange,
		logger:      logger,
		lastDigital: make(map[string]bool),
		lastAnalog:  make(map[string]float64),
		now:         func() time.Time { return time.Now().UTC() },
		sleep:       time.Sleep,
		done:        make(chan struct{}),
	}
}

// Poll reads every monitored channel once and returns the confirmed
// transitions.  A read error on one channel is logged and skipped; the
// remaining channels still poll.
func (m *Monitor) Poll() []types.ChangeEvent {
	now := m.now()
	var events []types.ChangeEvent

	for _, ch := range m.cfg.DigitalChannels {
		state, err := m.readStable(ch)
		if err != nil {
			m.logger.Printf("input monitor: read %s: %v", ch, err)
			continue
		}
		if state == m.lastDigital[ch] {
			continue
		}
		m.lastDigital[ch] = state
		events = append(events, types.ChangeEvent{
			Channel: ch,
			Kind:    types.InputDigital,
			State:   state,
			At:      now,
		})
	}

	for _, ch := range m.cfg.AnalogChannels {
		value, err := m.daq.ReadAnalogInput(ch)
		if err != nil {
			m.logger.Printf("input monitor: read %s: %v", ch, err)
			continue
		}
		last := m.lastAnalog[ch]
		if diff := value - last; diff < m.cfg.AnalogThreshold && diff > -m.cfg.AnalogThreshold {
			continue
		}
		m.lastAnalog[ch] = value
		events = append(events, types.ChangeEvent{
			Channel: ch,
			Kind:    types.InputAnalog,
			Value:   value,
			At:      now,
		})
	}

	return events
}

// readStable takes the configured number of rapid samples.  Agreement
// is the stable reading; disagreement means the line is floating and
// the configured default level is reported instead of the noise.
func (m *Monitor) readStable(channel string) (bool, error) {
	first, err := m.daq.ReadDigitalInput(channel)
	if err != nil {
		return false, err
	}
	for i := 1; i < m.cfg.SampleCount; i++ {
		m.sleep(m.cfg.SampleGap)
		s, err := m.daq.ReadDigitalInput(channel)
		if err != nil {
			return false, err
		}
		if s != first {
			return m.cfg.FloatingDefault, nil
		}
	}
	return first, nil
}

// Start begins the background polling loop.  The loop exits when ctx is
// cancelled or Stop is called.
func (m *Monitor) Start(ctx context.Context) {
	ctx, m.cancel = context.WithCancel(ctx)
	go m.loop(ctx)
	m.logger.Printf("input monitor started (channels=%d digital, %d analog, poll=%s)",
		len(m.cfg.DigitalChannels), len(m.cfg.AnalogChannels), m.cfg.PollInterval)
}

// Stop signals the loop to exit and waits for it to finish.
func (m *Monitor) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	<-m.done
}

func (m *Monitor) loop(ctx context.Context) {
	defer close(m.done)

	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.step()
		}
	}
}

func (m *Monitor) step() {
	now := m.now()

	if !m.daq.Connected() {
		if now.Before(m.nextRetry) {
			return
		}
		if err := m.daq.Connect(); err != nil {
			m.logger.Printf("input monitor: daq connect: %v", err)
			m.nextRetry = now.Add(m.cfg.RetryInterval)
			return
		}
		m.logger.Printf("input monitor: daq connected")
	}

	for _, ev := range m.Poll() {
		if m.onChange != nil {
			m.onChange(ev)
		}
	}
}
