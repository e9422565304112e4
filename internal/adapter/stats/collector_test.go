package stats

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_RecordsPerModel(t *testing.T) {
	c := NewCollector()

	c.RecordRequest("llama3")
	c.RecordRequest("llama3")
	c.RecordRejection("llama3")
	c.RecordCompletion("llama3", 150*time.Millisecond, 2048)

	c.RecordRequest("qwen")

	snapshot := c.Snapshot()
	require.Contains(t, snapshot, "llama3")
	require.Contains(t, snapshot, "qwen")

	llama := snapshot["llama3"]
	assert.Equal(t, int64(2), llama.Requests)
	assert.Equal(t, int64(1), llama.Rejections)
	assert.Equal(t, int64(1), llama.Completions)
	assert.Equal(t, int64(2048), llama.BytesOut)
	assert.Equal(t, int64(150), llama.TotalLatencyMs)

	assert.Equal(t, int64(1), snapshot["qwen"].Requests)
	assert.Zero(t, snapshot["qwen"].Completions)
}

func TestCollector_EmptySnapshot(t *testing.T) {
	c := NewCollector()
	assert.Empty(t, c.Snapshot())
}

func TestCollector_ConcurrentUpdates(t *testing.T) {
	const workers = 20
	const perWorker = 100

	c := NewCollector()
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				c.RecordRequest("llama3")
				c.RecordCompletion("llama3", time.Millisecond, 10)
			}
		}()
	}
	wg.Wait()

	snapshot := c.Snapshot()["llama3"]
	assert.Equal(t, int64(workers*perWorker), snapshot.Requests)
	assert.Equal(t, int64(workers*perWorker), snapshot.Completions)
	assert.Equal(t, int64(workers*perWorker*10), snapshot.BytesOut)
}
