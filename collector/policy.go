package collector

import (
	"fmt"
	"time"

	"github.com/NguyenNhut0910/RaspberryPi4B-Server/logger"
	"github.com/NguyenNhut0910/RaspberryPi4B-Server/storage"
)

// RetryPolicy bounds reconnect attempts with a fixed inter-attempt delay
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration

	// Sleep overrides time.Sleep in tests
	Sleep func(time.Duration)
}

// DefaultRetryPolicy returns the standard 5 attempts x 2s budget
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 5, Delay: 2 * time.Second}
}

// Do runs op until it succeeds or the attempt budget is exhausted,
// returning the last error
func (p RetryPolicy) Do(what string, op func() error) error {
	sleep := p.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = op(); err == nil {
			return nil
		}
		logger.Warn("%s attempt %d/%d failed: %v", what, attempt, attempts, err)
		if attempt < attempts {
			sleep(p.Delay)
		}
	}
	return err
}

// QualityPolicy selects how measurement quality is classified. The sign
// based rule matches the original deployment; always-good matches later
// firmware revisions.
type QualityPolicy int

const (
	// QualitySign tags Good when value > 0, Uncertain otherwise
	QualitySign QualityPolicy = iota
	// QualityAlwaysGood tags Good regardless of sign
	QualityAlwaysGood
)

// ParseQualityPolicy parses the quality_policy configuration value
func ParseQualityPolicy(s string) (QualityPolicy, error) {
	switch s {
	case "", "sign":
		return QualitySign, nil
	case "always_good":
		return QualityAlwaysGood, nil
	default:
		return QualitySign, fmt.Errorf("unknown quality policy %q, using sign", s)
	}
}

// Classify tags a value according to the policy
func (p QualityPolicy) Classify(value float64) storage.Quality {
	if p == QualityAlwaysGood || value > 0 {
		return storage.QualityGood
	}
	return storage.QualityUncertain
}

// DeviceIDPolicy selects how a missing or non-numeric device id is handled
type DeviceIDPolicy int

const (
	// DeviceDefaultZero degrades to device 0 with a warning
	DeviceDefaultZero DeviceIDPolicy = iota
	// DeviceReject drops the whole message
	DeviceReject
)

// ParseDeviceIDPolicy parses the device_id_policy configuration value
func ParseDeviceIDPolicy(s string) (DeviceIDPolicy, error) {
	switch s {
	case "", "default_zero":
		return DeviceDefaultZero, nil
	case "reject":
		return DeviceReject, nil
	default:
		return DeviceDefaultZero, fmt.Errorf("unknown device id policy %q, using default_zero", s)
	}
}
