package simulation

import (
	"sync"
	"time"

	"github.com/GriffinCanCode/ringsim/internal/domain/buffer"
)

// Journal keeps the operation log and the consumed-item history. Both are
// bounded and evict the oldest entry first; one lock covers both.
type Journal struct {
	mu         sync.Mutex
	logCap     int
	historyCap int
	logs       []string
	history    []buffer.Item
}

// NewJournal creates an empty journal
func NewJournal(logCap, historyCap int) *Journal {
	return &Journal{
		logCap:     logCap,
		historyCap: historyCap,
		logs:       make([]string, 0, logCap),
		history:    make([]buffer.Item, 0, historyCap),
	}
}

// Log appends a "[HH:MM:SS] message" line and returns it
func (j *Journal) Log(at time.Time, message string) string {
	line := "[" + at.Format("15:04:05") + "] " + message

	j.mu.Lock()
	defer j.mu.Unlock()

	j.logs = append(j.logs, line)
	if len(j.logs) > j.logCap {
		j.logs = j.logs[len(j.logs)-j.logCap:]
	}
	return line
}

// Record appends a consumed item
func (j *Journal) Record(item buffer.Item) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.history = append(j.history, item)
	if len(j.history) > j.historyCap {
		j.history = j.history[len(j.history)-j.historyCap:]
	}
}

// Logs returns a copy of the log, oldest first
func (j *Journal) Logs() []string {
	j.mu.Lock()
	defer j.mu.Unlock()

	out := make([]string, len(j.logs))
	copy(out, j.logs)
	return out
}

// History returns a copy of the consumed history, oldest first
func (j *Journal) History() []buffer.Item {
	j.mu.Lock()
	defer j.mu.Unlock()

	out := make([]buffer.Item, len(j.history))
	copy(out, j.history)
	return out
}
