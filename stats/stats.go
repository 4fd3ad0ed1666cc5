// Package stats collects per-utterance decode statistics (spec.md
// §6's "average tokens per TokenSet, active-per-frame,
// activation/deactivation counts, LMLA cache hit/miss") and a bounded
// window of recent utterance latencies, exported as Prometheus gauges
// via the OTel SDK.
package stats

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/kho/lvrec/lmla"
	"github.com/kho/lvrec/search"
)

// Snapshot is a point-in-time view of decode statistics, derived from
// search.Stats and an lmla.Tree's cache counters.
type Snapshot struct {
	AvgTokensPerSet   float64
	AvgActivePerFrame float64
	Activations       int64
	Deactivations     int64
	LmlaCacheHits     int64
	LmlaCacheMisses   int64
	Latency           LatencyPercentiles
	Utterances        int64
	PruneStarvations  int64
}

// LatencyPercentiles holds p50/p95 of recent per-utterance decode
// wall-time, mirroring the teacher's discord.LatencyPercentiles shape.
type LatencyPercentiles struct {
	P50 time.Duration
	P95 time.Duration
}

// Collector accumulates decode statistics across utterances. Safe for
// concurrent use.
type Collector struct {
	mu sync.Mutex

	sumTokens, numSets  int64
	activations, deacts int64
	pruneStarvations    int64
	utterances          int64
	latency             latencyBuffer
}

// NewCollector creates a Collector retaining up to windowSize recent
// latency samples (100 if windowSize <= 0, the teacher's default).
func NewCollector(windowSize int) *Collector {
	if windowSize <= 0 {
		windowSize = 100
	}
	return &Collector{latency: newLatencyBuffer(windowSize)}
}

// RecordUtterance folds one utterance's search.Stats and wall-clock
// decode duration into the running totals. Call once per utterance,
// after Decoder.Final.
func (c *Collector) RecordUtterance(s search.Stats, d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sumTokens += s.SumTokensPerSet
	c.numSets += s.NumTokenSets
	c.activations += s.NumActivations
	c.deacts += s.NumDeactivations
	c.utterances++
	c.latency.add(d)
}

// RecordPruneStarvation marks an utterance whose search emptied
// before the end of the utterance (spec.md §7's RuntimePruneStarvation,
// non-fatal).
func (c *Collector) RecordPruneStarvation() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pruneStarvations++
}

// Snapshot returns a point-in-time view of all recorded statistics.
// tree may be nil if LM look-ahead caching isn't in use.
func (c *Collector) Snapshot(tree *lmla.Tree) Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Snapshot{
		Activations:      c.activations,
		Deactivations:    c.deacts,
		Latency:          c.latency.percentiles(),
		Utterances:       c.utterances,
		PruneStarvations: c.pruneStarvations,
	}
	if c.numSets > 0 {
		s.AvgTokensPerSet = float64(c.sumTokens) / float64(c.numSets)
	}
	if c.utterances > 0 {
		s.AvgActivePerFrame = float64(c.activations-c.deacts) / float64(c.utterances)
	}
	if tree != nil {
		s.LmlaCacheHits = tree.CacheHits
		s.LmlaCacheMisses = tree.CacheMisses
	}
	return s
}

// latencyBuffer is a bounded ring buffer of decode-latency samples,
// generalized from the teacher's discord.latencyBuffer (one buffer per
// pipeline stage there; one buffer per decode stream here).
type latencyBuffer struct {
	data []time.Duration
	size int
	pos  int
	full bool
}

func newLatencyBuffer(size int) latencyBuffer {
	return latencyBuffer{data: make([]time.Duration, size), size: size}
}

func (lb *latencyBuffer) add(d time.Duration) {
	lb.data[lb.pos] = d
	lb.pos++
	if lb.pos >= lb.size {
		lb.pos = 0
		lb.full = true
	}
}

func (lb *latencyBuffer) percentiles() LatencyPercentiles {
	n := lb.pos
	if lb.full {
		n = lb.size
	}
	if n == 0 {
		return LatencyPercentiles{}
	}
	sorted := make([]time.Duration, n)
	if lb.full {
		copy(sorted, lb.data)
	} else {
		copy(sorted, lb.data[:n])
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	return LatencyPercentiles{
		P50: percentile(sorted, 0.50),
		P95: percentile(sorted, 0.95),
	}
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
