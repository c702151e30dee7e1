// Package hw defines the narrow capability interfaces the core uses to
// talk to the physical devices: the USB HID card reader and the DAQ
// unit that carries the sensor inputs and the lock relay.  The concrete
// drivers (USB enumeration, register-level DAQ protocol) live behind
// these interfaces and are out of the core's hands.
package hw

// ReportReader reads fixed-size raw reports from the proximity-card
// reader.  ReadReport returns (nil, nil) when no report is pending.
type ReportReader interface {
	ReadReport() ([]byte, error)
	Connect() error
	Connected() bool
	Close() error
}

// DAQ exposes the data-acquisition unit's I/O lines.
type DAQ interface {
	ReadDigitalInput(channel string) (bool, error)
	ReadAnalogInput(channel string) (float64, error)
	SetDigitalOutput(channel string, level bool) error
	Connect() error
	Connected() bool
	Close() error
}

// Outputs is the write-only slice of DAQ the lock controller needs.
type Outputs interface {
	SetDigitalOutput(channel string, level bool) error
}
