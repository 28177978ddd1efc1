package event

import "time"

// TelemetryEvent is one observation pushed by a producer. Events are
// immutable once ingested; the engine never mutates them.
type TelemetryEvent struct {
	// Type is the event category, e.g. "metric", "log", "request".
	Type string `json:"type"`

	// Name identifies the event within its type, e.g. "checkout.latency".
	Name string `json:"name"`

	// Timestamp is when the event occurred at the producer.
	Timestamp time.Time `json:"timestamp"`

	// Status is an optional producer-defined state, e.g. "error".
	Status string `json:"status,omitempty"`

	// Properties holds arbitrary attributes. Numeric values stored here are
	// visible to metric extraction alongside Measurements.
	Properties map[string]any `json:"properties,omitempty"`

	// Measurements holds named numeric readings.
	Measurements map[string]float64 `json:"measurements,omitempty"`
}

// BucketKey returns the buffer bucket this event belongs to.
func (e TelemetryEvent) BucketKey() string {
	return e.Type + ":" + e.Name
}

// Metric extracts a numeric value for the named metric, checking
// Measurements first and falling back to Properties. The second return
// is false when the metric is absent or non-numeric.
func (e TelemetryEvent) Metric(name string) (float64, bool) {
	if v, ok := e.Measurements[name]; ok {
		return v, true
	}
	switch v := e.Properties[name].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint64:
		return float64(v), true
	}
	return 0, false
}
