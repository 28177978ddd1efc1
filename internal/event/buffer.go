package event

import (
	"sync"
	"time"
)

// DefaultBucketCap is the per-bucket event limit used when the caller
// passes a non-positive capacity.
const DefaultBucketCap = 1000

// Buffer is a thread-safe, bounded in-memory event history keyed by
// "{type}:{name}". Each bucket is a FIFO ring: once a bucket holds cap
// events, ingesting another evicts the oldest.
type Buffer struct {
	mu      sync.RWMutex
	buckets map[string][]TelemetryEvent
	cap     int
	now     func() time.Time // injectable for deterministic tests
}

// NewBuffer creates a Buffer holding at most bucketCap events per bucket.
func NewBuffer(bucketCap int) *Buffer {
	if bucketCap <= 0 {
		bucketCap = DefaultBucketCap
	}
	return &Buffer{
		buckets: make(map[string][]TelemetryEvent),
		cap:     bucketCap,
		now:     time.Now,
	}
}

// Ingest appends ev to its bucket, evicting the oldest entry if the bucket
// is full. Events with a zero Timestamp are stamped with the current time.
func (b *Buffer) Ingest(ev TelemetryEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ev.Timestamp.IsZero() {
		ev.Timestamp = b.now()
	}

	key := ev.BucketKey()
	bucket := b.buckets[key]
	if len(bucket) >= b.cap {
		// Shift rather than re-slice so the backing array does not grow
		// without bound as old entries are evicted.
		copy(bucket, bucket[1:])
		bucket[len(bucket)-1] = ev
	} else {
		bucket = append(bucket, ev)
	}
	b.buckets[key] = bucket
}

// EventsFor returns copies of all buffered events whose type is in types
// and, when names is non-empty, whose name is in names. Order is insertion
// order within each bucket; buckets are concatenated in map iteration order.
func (b *Buffer) EventsFor(types, names []string) []TelemetryEvent {
	typeSet := toSet(types)
	nameSet := toSet(names)

	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []TelemetryEvent
	for _, bucket := range b.buckets {
		if len(bucket) == 0 {
			continue
		}
		first := bucket[0]
		if _, ok := typeSet[first.Type]; !ok {
			continue
		}
		if len(nameSet) > 0 {
			if _, ok := nameSet[first.Name]; !ok {
				continue
			}
		}
		out = append(out, bucket...)
	}
	return out
}

// Len returns the number of events currently held in the bucket for the
// given type and name.
func (b *Buffer) Len(eventType, name string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.buckets[eventType+":"+name])
}

// BucketCount returns the number of distinct buckets currently held.
func (b *Buffer) BucketCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.buckets)
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, it := range items {
		set[it] = struct{}{}
	}
	return set
}
