package types

import "time"

// Outcome classifies a single access attempt.
type Outcome string

const (
	OutcomeAuthorized Outcome = "authorized"
	OutcomePending    Outcome = "pending"
	OutcomeUnknown    Outcome = "unknown"
	OutcomeError      Outcome = "error"
)

// CardScan is one completed card presentation, emitted by the frame
// assembler once a full identifier has been reconstructed from the
// reader's raw reports.
type CardScan struct {
	CardID string    `json:"card_id"`
	RawHex string    `json:"raw_hex"`
	ReadAt time.Time `json:"read_at"`
}

// ChangeEvent is an edge-triggered sensor transition from the input
// monitor.  Kind selects which value field is meaningful.
type ChangeEvent struct {
	Channel string    `json:"channel"`
	Kind    InputKind `json:"kind"`
	State   bool      `json:"state,omitempty"` // digital channels
	Value   float64   `json:"value,omitempty"` // analog channels
	At      time.Time `json:"at"`
}

type InputKind string

const (
	InputDigital InputKind = "digital"
	InputAnalog  InputKind = "analog"
)
