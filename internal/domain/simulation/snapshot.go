package simulation

import (
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/GriffinCanCode/ringsim/internal/domain/buffer"
)

// SlotView is the JSON form of one slot
type SlotView struct {
	Index       int          `json:"index"`
	Value       int64        `json:"value"`
	ProducerID  string       `json:"producerId,omitempty"`
	ConsumerID  string       `json:"consumerId,omitempty"`
	Timestamp   *time.Time   `json:"timestamp,omitempty"`
	WaitTimeMs  int64        `json:"waitTime"`
	RemainingMs int64        `json:"remainingTime"`
	Consumed    bool         `json:"consumed"`
	State       buffer.State `json:"state"`
}

// NewSlotView converts a slot copy into its JSON form
func NewSlotView(it buffer.Item) SlotView {
	v := SlotView{
		Index:       it.Index,
		Value:       it.Value,
		ProducerID:  it.ProducerID,
		ConsumerID:  it.ConsumerID,
		WaitTimeMs:  it.WaitTime.Milliseconds(),
		RemainingMs: it.Remaining.Milliseconds(),
		Consumed:    it.Consumed,
		State:       it.State,
	}
	if !it.CreatedAt.IsZero() {
		ts := it.CreatedAt
		v.Timestamp = &ts
	}
	return v
}

func slotViews(items []buffer.Item) []SlotView {
	out := make([]SlotView, len(items))
	for i, it := range items {
		out[i] = NewSlotView(it)
	}
	return out
}

// Stats are the aggregate counters of a session
type Stats struct {
	ProducedTotal   int64 `json:"totalProduced"`
	ConsumedTotal   int64 `json:"totalConsumed"`
	FullWaitEvents  int64 `json:"bufferFullCount"`
	EmptyWaitEvents int64 `json:"bufferEmptyCount"`
}

// WaitStats summarize how long consumed items waited, over the history window
type WaitStats struct {
	Count    int     `json:"count"`
	MeanMs   float64 `json:"meanMs"`
	StdDevMs float64 `json:"stdDevMs"`
	P50Ms    float64 `json:"p50Ms"`
	P95Ms    float64 `json:"p95Ms"`
	MaxMs    float64 `json:"maxMs"`
}

// ComputeWaitStats derives WaitStats from consumed items
func ComputeWaitStats(history []buffer.Item) WaitStats {
	if len(history) == 0 {
		return WaitStats{}
	}

	waits := make([]float64, len(history))
	for i, it := range history {
		waits[i] = float64(it.WaitTime) / float64(time.Millisecond)
	}
	sort.Float64s(waits)

	ws := WaitStats{
		Count:  len(waits),
		MeanMs: stat.Mean(waits, nil),
		P50Ms:  stat.Quantile(0.5, stat.Empirical, waits, nil),
		P95Ms:  stat.Quantile(0.95, stat.Empirical, waits, nil),
		MaxMs:  floats.Max(waits),
	}
	if len(waits) > 1 {
		ws.StdDevMs = stat.StdDev(waits, nil)
	}
	return ws
}

// Snapshot is an independent copy of the engine state. Nothing in it aliases
// engine memory.
type Snapshot struct {
	SessionID  string       `json:"sessionId,omitempty"`
	Running    bool         `json:"running"`
	BufferSize int          `json:"bufferSize"`
	ItemCount  int64        `json:"itemCount"`
	Settings   SettingsView `json:"settings"`
	Buffer     []SlotView   `json:"buffer"`
	Producers  []WorkerView `json:"producers"`
	Consumers  []WorkerView `json:"consumers"`
	Stats      Stats        `json:"stats"`
	WaitStats  WaitStats    `json:"waitStats"`
	Logs       []string     `json:"logs"`
	TakenAt    time.Time    `json:"takenAt"`
}

// StateCounts tallies the snapshot's slots per state label
func (s Snapshot) StateCounts() map[buffer.State]int {
	counts := make(map[buffer.State]int, len(buffer.States()))
	for _, st := range buffer.States() {
		counts[st] = 0
	}
	for _, v := range s.Buffer {
		counts[v.State]++
	}
	return counts
}

// HistoryView is the JSON form of one consumed item
type HistoryView = SlotView

// HistoryViews converts consumed items into their JSON form
func HistoryViews(items []buffer.Item) []HistoryView {
	return slotViews(items)
}
