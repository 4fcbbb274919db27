package collector

import (
	"encoding/json"
	"errors"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/NguyenNhut0910/RaspberryPi4B-Server/logger"
	"github.com/NguyenNhut0910/RaspberryPi4B-Server/storage"
	"github.com/NguyenNhut0910/RaspberryPi4B-Server/validator"
)

// Reserved payload keys that never become measurements
var reservedKeys = map[string]struct{}{
	"device":     {},
	"area_id":    {},
	"machine":    {},
	"timestamp":  {},
	"factory_id": {},
	"gateway_id": {},
}

// Normalizer rewrites a raw payload before JSON extraction
type Normalizer func(payload []byte) ([]byte, error)

// Options configures a Collector
type Options struct {
	Retry     RetryPolicy
	Quality   QualityPolicy
	DeviceID  DeviceIDPolicy
	Ranges    validator.Set
	Normalize Normalizer
	Archive   storage.Recorder
}

// Collector turns inbound telemetry messages into persisted measurements
type Collector struct {
	store     storage.Store
	retry     RetryPolicy
	deviceID  DeviceIDPolicy
	normalize Normalizer
	archive   storage.Recorder

	// guards the hot-reloadable policies below
	mu      sync.Mutex
	quality QualityPolicy
	ranges  validator.Set

	now func() time.Time
}

// New creates a collector writing through the given store
func New(store storage.Store, opts Options) *Collector {
	if opts.Retry.MaxAttempts <= 0 {
		opts.Retry = DefaultRetryPolicy()
	}
	return &Collector{
		store:     store,
		retry:     opts.Retry,
		deviceID:  opts.DeviceID,
		normalize: opts.Normalize,
		archive:   opts.Archive,
		quality:   opts.Quality,
		ranges:    opts.Ranges,
		now:       time.Now,
	}
}

// SetQualityPolicy swaps the quality classification policy at runtime
func (c *Collector) SetQualityPolicy(p QualityPolicy) {
	c.mu.Lock()
	c.quality = p
	c.mu.Unlock()
}

// SetRanges swaps the per-channel range validators at runtime
func (c *Collector) SetRanges(s validator.Set) {
	c.mu.Lock()
	c.ranges = s
	c.mu.Unlock()
}

// HandleMessage processes one inbound message. It never reports an error to
// the transport: delivery is QoS 0 with no application-level nack, so every
// failure ends in a log line and a dropped or partially persisted message.
func (c *Collector) HandleMessage(topic string, payload []byte) {
	if c.normalize != nil {
		normalized, err := c.normalize(payload)
		if err != nil {
			logger.Error("dropping message on topic %s: %v", topic, err)
			return
		}
		payload = normalized
	}

	var fields map[string]interface{}
	if err := json.Unmarshal(payload, &fields); err != nil {
		logger.Error("dropping message on topic %s: invalid JSON: %v", topic, err)
		return
	}

	deviceID, ok := c.extractDeviceID(fields)
	if !ok {
		logger.Warn("dropping message on topic %s: missing or non-numeric device id", topic)
		return
	}

	timestamp := c.extractTimestamp(fields)

	// Re-validate database liveness before this message's first write.
	// This blocks the consumer loop during an outage; the subscription
	// itself stays alive.
	if err := c.retry.Do("database connect", c.store.Connect); err != nil {
		logger.Error("dropping message on topic %s: database not ready: %v", topic, err)
		return
	}

	for _, name := range candidateFields(fields) {
		value, ok := fields[name].(float64)
		if !ok {
			// non-numeric field
			continue
		}

		if err := c.checkRange(name, value); err != nil {
			logger.Warn("skipping %s for device=%d: %v", name, deviceID, err)
			continue
		}

		channelID, err := c.store.ResolveChannel(deviceID, name)
		if errors.Is(err, storage.ErrChannelNotFound) {
			logger.Warn("channel not found for device=%d, channel_name=%s", deviceID, name)
			continue
		}
		if err != nil {
			logger.Error("abandoning message on topic %s: lookup of %s failed: %v", topic, name, err)
			return
		}

		m := storage.Measurement{
			ChannelID: channelID,
			Value:     value,
			Quality:   c.classify(value),
			Timestamp: timestamp,
		}

		if err := c.store.InsertMeasurement(m); err != nil {
			logger.Error("abandoning message on topic %s: insert of %s failed: %v", topic, name, err)
			return
		}
		logger.Debug("inserted %s=%v for device=%d channel_id=%d", name, value, deviceID, channelID)

		if c.archive != nil {
			if err := c.archive.Record(deviceID, name, m); err != nil {
				logger.Warn("archive write for %s failed: %v", name, err)
			}
		}
	}
}

// candidateFields returns the non-reserved field names in deterministic order
func candidateFields(fields map[string]interface{}) []string {
	names := make([]string, 0, len(fields))
	for name := range fields {
		if _, reserved := reservedKeys[name]; reserved {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (c *Collector) extractDeviceID(fields map[string]interface{}) (int64, bool) {
	switch v := fields["device"].(type) {
	case float64:
		return int64(v), true
	case string:
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			return id, true
		}
	}

	if c.deviceID == DeviceReject {
		return 0, false
	}
	logger.Warn("missing or non-numeric device id, defaulting to device 0")
	return 0, true
}

func (c *Collector) extractTimestamp(fields map[string]interface{}) string {
	if ts, ok := fields["timestamp"].(string); ok && ts != "" {
		return ts
	}
	return c.now().Format(time.RFC3339)
}

func (c *Collector) classify(value float64) storage.Quality {
	c.mu.Lock()
	p := c.quality
	c.mu.Unlock()
	return p.Classify(value)
}

func (c *Collector) checkRange(name string, value float64) error {
	c.mu.Lock()
	s := c.ranges
	c.mu.Unlock()
	if s == nil {
		return nil
	}
	return s.Validate(name, value)
}
