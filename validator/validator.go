package validator

import (
	"fmt"

	"github.com/NguyenNhut0910/RaspberryPi4B-Server/config"
)

// Validator checks a single measurement value
type Validator interface {
	// Validate returns an error when the value is not acceptable
	Validate(value float64) error
}

// Range validates that a value lies inside [Min, Max]
type Range struct {
	Min float64
	Max float64
}

// Validate implements Validator
func (r Range) Validate(value float64) error {
	if value < r.Min || value > r.Max {
		return fmt.Errorf("value %v outside range [%v, %v]", value, r.Min, r.Max)
	}
	return nil
}

// Set maps channel names to their validators
type Set map[string]Validator

// Validate applies the validator registered for the channel name, if any
func (s Set) Validate(name string, value float64) error {
	v, ok := s[name]
	if !ok {
		return nil
	}
	return v.Validate(value)
}

// FromConfig builds a validator set from configured channel ranges;
// nil when no ranges are configured
func FromConfig(ranges map[string]config.Range) Set {
	if len(ranges) == 0 {
		return nil
	}
	set := make(Set, len(ranges))
	for name, r := range ranges {
		set[name] = Range{Min: r.Min, Max: r.Max}
	}
	return set
}
