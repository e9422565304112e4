package stats

import (
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/thushan/porter/internal/core/ports"
)

// Collector tracks per-model gateway activity with lock-free counters.
// Hot-path updates are per-key atomics; Snapshot is the only operation
// that walks the map and it's for status endpoints, not the request path.
type Collector struct {
	models *xsync.Map[string, *modelData]
}

type modelData struct {
	requests       atomic.Int64
	rejections     atomic.Int64
	completions    atomic.Int64
	bytesOut       atomic.Int64
	totalLatencyMs atomic.Int64
}

func NewCollector() *Collector {
	return &Collector{
		models: xsync.NewMap[string, *modelData](),
	}
}

func (c *Collector) get(model string) *modelData {
	data, _ := c.models.LoadOrCompute(model, func() (*modelData, bool) {
		return &modelData{}, false
	})
	return data
}

func (c *Collector) RecordRequest(model string) {
	c.get(model).requests.Add(1)
}

func (c *Collector) RecordRejection(model string) {
	c.get(model).rejections.Add(1)
}

func (c *Collector) RecordCompletion(model string, latency time.Duration, bytesOut int64) {
	data := c.get(model)
	data.completions.Add(1)
	data.bytesOut.Add(bytesOut)
	data.totalLatencyMs.Add(latency.Milliseconds())
}

func (c *Collector) Snapshot() map[string]ports.ModelStats {
	snapshot := make(map[string]ports.ModelStats)
	c.models.Range(func(model string, data *modelData) bool {
		snapshot[model] = ports.ModelStats{
			Requests:       data.requests.Load(),
			Rejections:     data.rejections.Load(),
			Completions:    data.completions.Load(),
			BytesOut:       data.bytesOut.Load(),
			TotalLatencyMs: data.totalLatencyMs.Load(),
		}
		return true
	})
	return snapshot
}
