// Package lock owns the shear's access state machine.  Every mutation
// of the lock state — card decisions, motion edges, timer expiry,
// manual commands, emergency stop — is serialized under one mutex, so
// racing producers can never leave a transition half-applied or a timer
// both cancelled and fired.
package lock

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/shopfloor/shearlock/internal/hw"
	"github.com/shopfloor/shearlock/internal/shear/broadcast"
	"github.com/shopfloor/shearlock/internal/shear/store"
	"github.com/shopfloor/shearlock/internal/shear/types"
)

var (
	ErrUnknownChannel = errors.New("unknown output channel")
	ErrInvalidMode    = errors.New("mode must be auto or manual")
	ErrNotManualMode  = errors.New("channel is not in manual mode")
)

// greenPulse / redPulse are how long the decision LEDs stay lit.
const (
	greenPulse = 2 * time.Second
	redPulse   = time.Second
)

type Config struct {
	Outputs hw.Outputs
	Audit   store.ScanEventStore
	Queue   *broadcast.Queue
	Logger  *log.Logger

	// Settings is the initial runtime configuration.  The caller
	// validates it; see types.Settings.Validate.
	Settings types.Settings

	// Persist, if set, is called with the new settings before they are
	// applied by UpdateSettings.  A persist failure leaves the prior
	// settings in force.
	Persist func(types.Settings) error
}

// channelState tracks one physical output.  autoLevel is what the state
// machine wants the channel at; level is what was last physically
// commanded.  They diverge while the channel is in manual mode.
type channelState struct {
	mode      types.OutputMode
	level     bool
	autoLevel bool
}

type Controller struct {
	mu sync.Mutex

	outputs hw.Outputs
	audit   store.ScanEventStore
	queue   *broadcast.Queue
	logger  *log.Logger
	persist func(types.Settings) error

	settings types.Settings

	locked       bool
	unlockedAt   time.Time
	unlockedBy   string
	unlockedCard string
	cycles       int

	// Expiry timer bookkeeping.  gen invalidates superseded timers: a
	// stale AfterFunc that fires after a restart sees a newer gen and
	// does nothing.
	gen       uint64
	expiry    *time.Timer
	expiresAt time.Time

	// Named pulse timers (LED off), restarted not stacked.
	pulses map[string]*time.Timer

	channels map[string]*channelState

	now func() time.Time
}

func New(cfg Config) *Controller {
	c := &Controller{
		outputs:  cfg.Outputs,
		audit:    cfg.Audit,
		queue:    cfg.Queue,
		logger:   cfg.Logger,
		persist:  cfg.Persist,
		settings: cfg.Settings,
		locked:   true,
		pulses:   make(map[string]*time.Timer),
		channels: make(map[string]*channelState),
		now:      func() time.Time { return time.Now().UTC() },
	}

	for _, ch := range types.OutputChannels {
		c.channels[ch] = &channelState{mode: types.ModeAuto}
	}
	c.channels[types.LEDGreen] = &channelState{mode: types.ModeAuto}
	c.channels[types.LEDRed] = &channelState{mode: types.ModeAuto}

	// Known safe starting point: relay de-energized, LEDs dark.
	c.mu.Lock()
	for ch := range c.channels {
		c.drive(ch, false)
	}
	c.mu.Unlock()

	return c
}

// Close cancels any pending timers.  The physical outputs are left in
// their last commanded state; shutting the process down must not
// silently unlock the shear.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	if c.expiry != nil {
		c.expiry.Stop()
	}
	for _, t := range c.pulses {
		t.Stop()
	}
}

// Unlock moves the shear to Unlocked on an authorized decision.  A
// fresh authorization while already unlocked restarts the timer and
// resets the cycle counter, exactly like a fresh unlock.
func (c *Controller) Unlock(actor, cardID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.locked = false
	c.unlockedAt = now
	c.unlockedBy = actor
	c.unlockedCard = cardID
	c.cycles = 0

	c.drive(c.settings.OutputChannel, true)
	c.restartExpiry(c.unlockDuration())
	c.pulse(types.LEDGreen, greenPulse)

	c.logger.Printf("shear unlocked by %s (card=%s, timeout=%ds)", actor, cardID, c.settings.TimeoutSeconds)
	c.publishStatus()
}

// DenyFeedback pulses the red LED after a non-authorized decision.  No
// state transition is involved.
func (c *Controller) DenyFeedback() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pulse(types.LEDRed, redPulse)
}

// ManualUnlock is the operator's unlock command from the UI.
func (c *Controller) ManualUnlock(actor string) {
	c.auditEvent(store.ResultManualUnlock, "", actor)
	c.Unlock(actor, "")
}

// ManualLock locks immediately, cancelling any running timer.
func (c *Controller) ManualLock() {
	c.lockNow(store.ResultManualLock)
}

// EmergencyStop forces Locked.  Idempotent: repeat calls re-assert the
// relay level but audit only the actual transition.
func (c *Controller) EmergencyStop() {
	c.lockNow(store.ResultEmergency)
}

// EmergencyUnlock is the system-error escape hatch.  What it does is
// policy, not code: the configured error action decides.
func (c *Controller) EmergencyUnlock(reason string) {
	c.mu.Lock()
	action := c.settings.ErrorAction
	c.mu.Unlock()

	switch action {
	case types.ErrorActionUnlock:
		c.logger.Printf("emergency unlock (%s): error_action=unlock", reason)
		c.auditEvent(store.ResultErrorUnlock, "", reason)
		c.Unlock("system", "")
	case types.ErrorActionLock:
		c.logger.Printf("emergency unlock request (%s): error_action=lock, forcing lock", reason)
		c.lockNow(store.ResultEmergency)
	case types.ErrorActionMaintain:
		c.logger.Printf("emergency unlock request (%s): error_action=maintain, no-op", reason)
	}
}

// HandleInputChange consumes edges from the input monitor.  Only the
// configured motion channel drives the state machine; everything else
// is logged for the record.
func (c *Controller) HandleInputChange(ev types.ChangeEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ev.Kind != types.InputDigital || ev.Channel != c.settings.MotionChannel {
		c.logger.Printf("input change: %s %s=%v/%v", ev.Kind, ev.Channel, ev.State, ev.Value)
		return
	}

	if !ev.State {
		// Falling edge: blade returned to rest.  No timer effect.
		c.logger.Printf("motion cleared on %s", ev.Channel)
		return
	}

	if c.locked {
		c.logger.Printf("motion on %s while locked, ignoring", ev.Channel)
		return
	}

	c.cycles++
	c.restartExpiry(c.unlockDuration())
	c.auditEventLocked(store.ResultMotionReset, c.unlockedCard, c.unlockedBy)
	c.logger.Printf("motion edge: timer reset, cycles=%d", c.cycles)
	c.publishStatus()
}

// SetOutputMode switches a channel between controller-driven (auto) and
// operator-driven (manual).  Returning to auto resynchronizes the
// physical level to the current logical state, never a stale default.
func (c *Controller) SetOutputMode(channel string, mode types.OutputMode) error {
	if mode != types.ModeAuto && mode != types.ModeManual {
		return ErrInvalidMode
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	st, ok := c.channels[channel]
	if !ok {
		return ErrUnknownChannel
	}
	if st.mode == mode {
		return nil
	}
	st.mode = mode
	if mode == types.ModeAuto {
		c.apply(channel, st.autoLevel)
	}
	c.logger.Printf("output %s mode=%s", channel, mode)
	c.publishStatus()
	return nil
}

// SetOutput drives a channel directly.  Honored only in manual mode;
// the logical lock state is untouched either way.
func (c *Controller) SetOutput(channel string, level bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, ok := c.channels[channel]
	if !ok {
		return ErrUnknownChannel
	}
	if st.mode != types.ModeManual {
		return ErrNotManualMode
	}
	c.apply(channel, level)
	c.publishStatus()
	return nil
}

// UpdateSettings validates, persists, then applies new runtime
// settings.  Any failure leaves the previous settings fully in force.
func (c *Controller) UpdateSettings(s types.Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	if c.persist != nil {
		if err := c.persist(s); err != nil {
			return err
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	old := c.settings
	c.settings = s

	if old.OutputChannel != s.OutputChannel {
		// Move the relay: old pin released, new pin picks up the
		// current logical state.
		c.drive(old.OutputChannel, false)
		c.drive(s.OutputChannel, !c.locked)
	}

	c.logger.Printf("settings updated: timeout=%ds output=%s motion=%s error_action=%s",
		s.TimeoutSeconds, s.OutputChannel, s.MotionChannel, s.ErrorAction)
	c.publishStatus()
	return nil
}

// Settings returns the current runtime settings.
func (c *Controller) Settings() types.Settings {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settings
}

// Status is a consistent snapshot: the remaining time it reports can
// never belong to a timer that has already been superseded.
func (c *Controller) Status() types.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusLocked()
}

func (c *Controller) statusLocked() types.Status {
	st := types.Status{
		Locked:  c.locked,
		Cycles:  c.cycles,
		Outputs: make(map[string]types.ChannelStatus, len(c.channels)),
	}
	if !c.locked {
		st.UnlockedBy = c.unlockedBy
		t := c.unlockedAt
		st.UnlockedAt = &t
		if remaining := c.expiresAt.Sub(c.now()); remaining > 0 {
			st.SecondsRemaining = int(remaining.Round(time.Second) / time.Second)
		}
	}
	for name, ch := range c.channels {
		st.Outputs[name] = types.ChannelStatus{Mode: ch.mode, Level: ch.level}
	}
	return st
}

// ── internals (all require c.mu held) ───────────────────────────────────────

func (c *Controller) unlockDuration() time.Duration {
	return time.Duration(c.settings.TimeoutSeconds) * time.Second
}

// drive records the logical level for a channel and, in auto mode,
// commands the hardware.  Manual channels keep their frozen physical
// level; the logical level is applied when they return to auto.
func (c *Controller) drive(channel string, level bool) {
	st, ok := c.channels[channel]
	if !ok {
		return
	}
	st.autoLevel = level
	if st.mode != types.ModeAuto {
		return
	}
	c.apply(channel, level)
}

// apply commands the hardware unconditionally and records the level.
func (c *Controller) apply(channel string, level bool) {
	st := c.channels[channel]
	st.level = level
	if err := c.outputs.SetDigitalOutput(channel, level); err != nil {
		// Hardware gone: the logical state still advances, the output
		// resyncs when the DAQ returns.  Never crash a transition.
		c.logger.Printf("set output %s=%v: %v", channel, level, err)
	}
}

// restartExpiry cancels the running unlock timer and schedules a fresh
// one.  Restart is atomic under c.mu: a stale timer that already fired
// will observe the bumped generation and give up.
func (c *Controller) restartExpiry(d time.Duration) {
	c.gen++
	gen := c.gen
	c.expiresAt = c.now().Add(d)
	if c.expiry != nil {
		c.expiry.Stop()
	}
	c.expiry = time.AfterFunc(d, func() { c.expire(gen) })
}

func (c *Controller) expire(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen || c.locked {
		// Superseded by a motion reset, a fresh unlock, or a manual
		// lock that won the race.
		return
	}
	c.lockNowLocked(store.ResultTimeoutLock)
	c.logger.Printf("unlock timer expired, shear locked")
}

func (c *Controller) lockNow(result string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.locked {
		// Already locked: re-assert the relay, skip audit/broadcast.
		c.drive(c.settings.OutputChannel, false)
		return
	}
	c.lockNowLocked(result)
}

func (c *Controller) lockNowLocked(result string) {
	card, actor := c.unlockedCard, c.unlockedBy

	c.locked = true
	c.gen++ // cancel any in-flight expiry
	if c.expiry != nil {
		c.expiry.Stop()
	}
	c.unlockedAt = time.Time{}
	c.unlockedBy = ""
	c.unlockedCard = ""

	c.drive(c.settings.OutputChannel, false)
	c.auditEventLocked(result, card, actor)
	c.publishStatus()
}

// pulse turns a channel on and schedules it off after d.  Re-pulsing
// restarts the off-timer rather than stacking a second one.
func (c *Controller) pulse(channel string, d time.Duration) {
	c.drive(channel, true)
	if t, ok := c.pulses[channel]; ok {
		t.Stop()
	}
	c.pulses[channel] = time.AfterFunc(d, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.drive(channel, false)
	})
}

func (c *Controller) publishStatus() {
	if c.queue == nil {
		return
	}
	st := c.statusLocked()
	c.queue.Publish(broadcast.Event{Type: broadcast.EventStatus, Status: &st})
}

// auditEvent appends without holding c.mu.
func (c *Controller) auditEvent(result, cardID, actor string) {
	if c.audit == nil {
		return
	}
	rec := store.ScanEventRecord{CardID: cardID, Result: result, ActorName: actor, ScannedAt: time.Now().UTC()}
	if err := c.audit.Append(context.Background(), rec); err != nil {
		c.logger.Printf("audit append (%s): %v", result, err)
	}
}

// auditEventLocked is auditEvent for call sites already under c.mu.
// The append happens before the paired broadcast publish so a consumer
// never sees an event whose audit row is missing.
func (c *Controller) auditEventLocked(result, cardID, actor string) {
	if c.audit == nil {
		return
	}
	rec := store.ScanEventRecord{CardID: cardID, Result: result, ActorName: actor, ScannedAt: c.now()}
	if err := c.audit.Append(context.Background(), rec); err != nil {
		c.logger.Printf("audit append (%s): %v", result, err)
	}
}
