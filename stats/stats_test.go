package stats

import (
	"testing"
	"time"

	"github.com/kho/lvrec/search"
	"github.com/stretchr/testify/assert"
)

func TestCollectorSnapshot(t *testing.T) {
	c := NewCollector(10)
	c.RecordUtterance(search.Stats{SumTokensPerSet: 30, NumTokenSets: 10, NumActivations: 5, NumDeactivations: 3}, 50*time.Millisecond)
	c.RecordUtterance(search.Stats{SumTokensPerSet: 20, NumTokenSets: 10, NumActivations: 7, NumDeactivations: 4}, 80*time.Millisecond)

	snap := c.Snapshot(nil)
	assert.Equal(t, int64(2), snap.Utterances)
	assert.InDelta(t, 2.5, snap.AvgTokensPerSet, 1e-9) // (30+20)/(10+10)
	assert.Equal(t, int64(12), snap.Activations)
	assert.Equal(t, int64(7), snap.Deactivations)
	assert.Equal(t, 80*time.Millisecond, snap.Latency.P95)
}

func TestCollectorPruneStarvation(t *testing.T) {
	c := NewCollector(10)
	c.RecordPruneStarvation()
	c.RecordPruneStarvation()
	assert.Equal(t, int64(2), c.Snapshot(nil).PruneStarvations)
}
