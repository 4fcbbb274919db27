package storage

import (
	"errors"
	"fmt"
)

// Quality tags a measurement with the collector's confidence in the value
type Quality string

const (
	// QualityGood marks a trusted value
	QualityGood Quality = "Good"
	// QualityUncertain marks a value of doubtful validity
	QualityUncertain Quality = "Uncertain"
)

// Measurement is one append-only telemetry sample bound to a channel
type Measurement struct {
	ChannelID int64
	Value     float64
	Quality   Quality
	Timestamp string
}

// ErrChannelNotFound reports that no channel matches a (device, name) pair
var ErrChannelNotFound = errors.New("channel not found")

var errNotConnected = errors.New("not connected to database")

// ConnError reports a failed connection attempt or a dead connection
type ConnError struct {
	Err error
}

func (e *ConnError) Error() string {
	return fmt.Sprintf("database connection failed: %v", e.Err)
}

func (e *ConnError) Unwrap() error { return e.Err }

// QueryError reports a failed statement; writes are rolled back by the driver
type QueryError struct {
	Op  string
	Err error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// Store is the persistence gateway consumed by the collector
type Store interface {
	// Connect ensures a live connection, reopening a dead one
	Connect() error
	// ResolveChannel maps (device_id, channel_name) to a channel id;
	// returns ErrChannelNotFound when no channel matches
	ResolveChannel(deviceID int64, name string) (int64, error)
	// InsertMeasurement appends one measurement row
	InsertMeasurement(m Measurement) error
	// Close is idempotent
	Close() error
}

// Recorder mirrors inserted measurements to a secondary sink
type Recorder interface {
	Record(deviceID int64, name string, m Measurement) error
}
