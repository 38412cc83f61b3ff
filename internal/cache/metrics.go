// AngelaMos | 2026
// metrics.go

package cache

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type Metrics interface {
	Hit(prefix string)
	Miss(prefix string)
}

type NopMetrics struct{}

func (NopMetrics) Hit(string)  {}
func (NopMetrics) Miss(string) {}

type PrefixStats struct {
	Prefix  string  `json:"prefix"`
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}

type counters struct {
	hits   atomic.Int64
	misses atomic.Int64
}

// Recorder counts hits and misses per key prefix in process and mirrors
// them to otel counters.
type Recorder struct {
	mu       sync.RWMutex
	prefixes map[string]*counters

	hitCounter  metric.Int64Counter
	missCounter metric.Int64Counter
}

func NewRecorder(meter metric.Meter) (*Recorder, error) {
	hits, err := meter.Int64Counter(
		"cache.hits",
		metric.WithDescription("cache lookups served from the cache"),
	)
	if err != nil {
		return nil, err
	}

	misses, err := meter.Int64Counter(
		"cache.misses",
		metric.WithDescription("cache lookups that fell through"),
	)
	if err != nil {
		return nil, err
	}

	return &Recorder{
		prefixes:    make(map[string]*counters),
		hitCounter:  hits,
		missCounter: misses,
	}, nil
}

func (r *Recorder) Hit(prefix string) {
	r.counter(prefix).hits.Add(1)
	r.hitCounter.Add(
		context.Background(),
		1,
		metric.WithAttributes(attribute.String("prefix", prefix)),
	)
}

func (r *Recorder) Miss(prefix string) {
	r.counter(prefix).misses.Add(1)
	r.missCounter.Add(
		context.Background(),
		1,
		metric.WithAttributes(attribute.String("prefix", prefix)),
	)
}

func (r *Recorder) counter(prefix string) *counters {
	r.mu.RLock()
	c, ok := r.prefixes[prefix]
	r.mu.RUnlock()
	if ok {
		return c
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok = r.prefixes[prefix]; ok {
		return c
	}
	c = &counters{}
	r.prefixes[prefix] = c
	return c
}

// Snapshot returns the counters sorted by prefix.
func (r *Recorder) Snapshot() []PrefixStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]PrefixStats, 0, len(r.prefixes))
	for prefix, c := range r.prefixes {
		hits := c.hits.Load()
		misses := c.misses.Load()

		var rate float64
		if total := hits + misses; total > 0 {
			rate = float64(hits) / float64(total)
		}

		out = append(out, PrefixStats{
			Prefix:  prefix,
			Hits:    hits,
			Misses:  misses,
			HitRate: rate,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Prefix < out[j].Prefix
	})

	return out
}
