// Package observability aggregates runtime counters for the health endpoint.
package observability

import (
	"log/slog"
	"os"
	"runtime"
	"sync/atomic"

	"github.com/shirou/gopsutil/process"
)

// Stats collects delivery counters from the realtime layer. All counters are
// atomic; Snapshot reads are lock free.
type Stats struct {
	log *slog.Logger

	connections     int64
	messagesSaved   uint64
	eventsDelivered uint64
	eventsDropped   uint64
}

func NewStats(log *slog.Logger) *Stats {
	return &Stats{log: log}
}

func (s *Stats) ConnectionOpened() { atomic.AddInt64(&s.connections, 1) }
func (s *Stats) ConnectionClosed() { atomic.AddInt64(&s.connections, -1) }
func (s *Stats) MessageSaved()     { atomic.AddUint64(&s.messagesSaved, 1) }
func (s *Stats) EventDelivered()   { atomic.AddUint64(&s.eventsDelivered, 1) }
func (s *Stats) EventDropped()     { atomic.AddUint64(&s.eventsDropped, 1) }

// Snapshot merges the chat counters with Go memory stats and the process
// cpu/ram usage reported by the OS.
func (s *Stats) Snapshot() map[string]any {
	snapshot := map[string]any{
		"connections":      atomic.LoadInt64(&s.connections),
		"messages_saved":   atomic.LoadUint64(&s.messagesSaved),
		"events_delivered": atomic.LoadUint64(&s.eventsDelivered),
		"events_dropped":   atomic.LoadUint64(&s.eventsDropped),
	}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	snapshot["alloc_mem_mb"] = m.Alloc / 1024 / 1024
	snapshot["num_gc"] = m.NumGC
	snapshot["goroutines"] = runtime.NumGoroutine()

	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		s.log.Debug("process metrics unavailable", "error", err)
		return snapshot
	}
	if cpu, err := p.CPUPercent(); err == nil {
		snapshot["cpu_percent"] = cpu
	}
	if ram, err := p.MemoryPercent(); err == nil {
		snapshot["ram_percent"] = ram
	}
	return snapshot
}
