package core

import (
	"encoding/json"
	"fmt"

	"github.com/searchktools/tiny-server/core/pools"
)

// Stats is a point-in-time view of the engine
type Stats struct {
	ActiveConnections int64             `json:"active_connections"`
	ResponsesSent     uint64            `json:"responses_sent"`
	Buffers           pools.BufferStats `json:"buffers"`
	BufferHitRate     float64           `json:"buffer_hit_rate"`
}

// Stats returns current connection and buffer pool counters
func (e *Engine) Stats() Stats {
	buffers := e.buffers.Stats()
	return Stats{
		ActiveConnections: e.active.Load(),
		ResponsesSent:     e.served.Load(),
		Buffers:           buffers,
		BufferHitRate:     buffers.HitRate(),
	}
}

// StatsJSON returns the statistics as a JSON string
func (e *Engine) StatsJSON() string {
	data, _ := json.MarshalIndent(e.Stats(), "", "  ")
	return string(data)
}

// StatsText returns the statistics as human-readable text
func (e *Engine) StatsText() string {
	stats := e.Stats()
	return fmt.Sprintf(`Engine Statistics
=================

Connections:
  Active:         %d
  Responses sent: %d

Buffer Pool:
  Reader gets:    %d (%d allocated)
  Writer gets:    %d (%d allocated)
  Hit Rate:       %.2f%%
`,
		stats.ActiveConnections, stats.ResponsesSent,
		stats.Buffers.ReaderGets, stats.Buffers.ReaderNews,
		stats.Buffers.WriterGets, stats.Buffers.WriterNews,
		stats.BufferHitRate*100,
	)
}
