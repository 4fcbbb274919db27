package collector

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NguyenNhut0910/RaspberryPi4B-Server/storage"
)

func TestRetryPolicySucceedsWithinBudget(t *testing.T) {
	var sleeps []time.Duration
	p := RetryPolicy{
		MaxAttempts: 5,
		Delay:       2 * time.Second,
		Sleep:       func(d time.Duration) { sleeps = append(sleeps, d) },
	}

	calls := 0
	err := p.Do("connect", func() error {
		calls++
		if calls < 3 {
			return errors.New("not yet")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{2 * time.Second, 2 * time.Second}, sleeps)
}

func TestRetryPolicyExhaustsBudget(t *testing.T) {
	var sleeps int
	p := RetryPolicy{
		MaxAttempts: 5,
		Delay:       2 * time.Second,
		Sleep:       func(time.Duration) { sleeps++ },
	}

	calls := 0
	last := errors.New("still down")
	err := p.Do("connect", func() error {
		calls++
		return last
	})

	assert.Equal(t, last, err)
	assert.Equal(t, 5, calls)
	assert.Equal(t, 4, sleeps, "no sleep after the final attempt")
}

func TestRetryPolicyZeroAttemptsRunsOnce(t *testing.T) {
	p := RetryPolicy{Sleep: func(time.Duration) {}}

	calls := 0
	err := p.Do("connect", func() error {
		calls++
		return errors.New("down")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestParseQualityPolicy(t *testing.T) {
	p, err := ParseQualityPolicy("sign")
	require.NoError(t, err)
	assert.Equal(t, QualitySign, p)

	p, err = ParseQualityPolicy("always_good")
	require.NoError(t, err)
	assert.Equal(t, QualityAlwaysGood, p)

	p, err = ParseQualityPolicy("")
	require.NoError(t, err)
	assert.Equal(t, QualitySign, p)

	p, err = ParseQualityPolicy("bogus")
	assert.Error(t, err)
	assert.Equal(t, QualitySign, p)
}

func TestQualityClassify(t *testing.T) {
	assert.Equal(t, storage.QualityGood, QualitySign.Classify(0.1))
	assert.Equal(t, storage.QualityUncertain, QualitySign.Classify(0))
	assert.Equal(t, storage.QualityUncertain, QualitySign.Classify(-5))
	assert.Equal(t, storage.QualityGood, QualityAlwaysGood.Classify(-5))
}

func TestParseDeviceIDPolicy(t *testing.T) {
	p, err := ParseDeviceIDPolicy("default_zero")
	require.NoError(t, err)
	assert.Equal(t, DeviceDefaultZero, p)

	p, err = ParseDeviceIDPolicy("reject")
	require.NoError(t, err)
	assert.Equal(t, DeviceReject, p)

	p, err = ParseDeviceIDPolicy("bogus")
	assert.Error(t, err)
	assert.Equal(t, DeviceDefaultZero, p)
}
