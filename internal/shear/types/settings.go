package types

import "errors"

// ErrorAction governs what an emergency-unlock-on-system-error request
// does to the shear.
type ErrorAction string

const (
	ErrorActionUnlock   ErrorAction = "unlock"
	ErrorActionLock     ErrorAction = "lock"
	ErrorActionMaintain ErrorAction = "maintain"
)

// OutputMode selects who drives a physical output channel: the lock
// controller (auto) or an operator command (manual).
type OutputMode string

const (
	ModeAuto   OutputMode = "auto"
	ModeManual OutputMode = "manual"
)

// Designated DAQ pins.  The shear relay and the motion sensor must each
// sit on one of two wired pins; anything else is a mis-configuration.
var (
	OutputChannels = []string{"FIO6", "FIO7"}
	MotionChannels = []string{"FIO4", "FIO5"}
)

// Status LED channels, pulsed on access decisions.
const (
	LEDGreen = "EIO1"
	LEDRed   = "EIO2"
)

const (
	MinTimeoutSeconds = 10
	MaxTimeoutSeconds = 3600
)

// Validation errors are per-field so a caller can reject exactly the
// offending setting and leave the rest intact.
var (
	ErrTimeoutOutOfRange    = errors.New("timeout_seconds must be between 10 and 3600")
	ErrInvalidOutputChannel = errors.New("output_channel must be one of the designated output pins")
	ErrInvalidMotionChannel = errors.New("motion_channel must be one of the designated input pins")
	ErrInvalidErrorAction   = errors.New("error_action must be one of unlock, lock, maintain")
)

// Settings is the operator-adjustable runtime configuration of the lock
// controller.  It is persisted across restarts; see config.SaveSettings.
type Settings struct {
	TimeoutSeconds int         `json:"timeout_seconds" toml:"timeout_seconds"`
	OutputChannel  string      `json:"output_channel" toml:"output_channel"`
	MotionChannel  string      `json:"motion_channel" toml:"motion_channel"`
	ErrorAction    ErrorAction `json:"error_action" toml:"error_action"`
}

// Validate checks every field and returns the first violation.  Values
// are never clamped; an out-of-range setting is the caller's mistake to
// fix.
func (s Settings) Validate() error {
	if s.TimeoutSeconds < MinTimeoutSeconds || s.TimeoutSeconds > MaxTimeoutSeconds {
		return ErrTimeoutOutOfRange
	}
	if !contains(OutputChannels, s.OutputChannel) {
		return ErrInvalidOutputChannel
	}
	if !contains(MotionChannels, s.MotionChannel) {
		return ErrInvalidMotionChannel
	}
	switch s.ErrorAction {
	case ErrorActionUnlock, ErrorActionLock, ErrorActionMaintain:
	default:
		return ErrInvalidErrorAction
	}
	return nil
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
