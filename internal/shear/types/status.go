package types

import "time"

// ChannelStatus reports how one physical output is currently driven.
type ChannelStatus struct {
	Mode  OutputMode `json:"mode"`
	Level bool       `json:"level"`
}

// Status is a point-in-time snapshot of the lock controller, served to
// the UI layer.
type Status struct {
	Locked           bool                     `json:"locked"`
	SecondsRemaining int                      `json:"seconds_remaining"`
	Cycles           int                      `json:"cycles"`
	UnlockedBy       string                   `json:"unlocked_by,omitempty"`
	UnlockedAt       *time.Time               `json:"unlocked_at,omitempty"`
	Outputs          map[string]ChannelStatus `json:"outputs"`
}
