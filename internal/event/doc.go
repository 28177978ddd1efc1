// Package event defines the telemetry event model and the bounded in-memory
// buffer that feeds rule evaluation.
//
// Buffer keeps one FIFO ring per "{type}:{name}" bucket. When a bucket
// exceeds its configured capacity (default 1000) the oldest entry is evicted.
// Contents are lost on restart: only recent history is statistically relevant
// to the evaluators, so the buffer trades completeness for bounded memory.
//
// EventsFor returns copies, so callers may read concurrently with ingestion.
// Order within a bucket is insertion order; order across buckets is bucket
// iteration order, not global time order. Evaluators that need temporal
// ordering sort explicitly.
package event
