package simulation

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/GriffinCanCode/ringsim/internal/domain/buffer"
)

// Role distinguishes producers from consumers
type Role int

const (
	RoleProducer Role = iota
	RoleConsumer
)

func (r Role) String() string {
	if r == RoleConsumer {
		return "consumer"
	}
	return "producer"
}

func (r Role) prefix() string {
	if r == RoleConsumer {
		return "C"
	}
	return "P"
}

// Worker is one producer or consumer. Its counters are read by snapshots while
// its goroutine runs, so they are atomic. The waiting flag belongs to the run the
// worker is attached to; a goroutine of an earlier run cannot change it.
type Worker struct {
	id      string
	role    Role
	waiting atomic.Bool
	handled atomic.Int64
	cursor  buffer.Cursor

	mu  sync.Mutex
	run *run
}

func newWorker(role Role, n int) *Worker {
	w := &Worker{
		id:   fmt.Sprintf("%s%d", role.prefix(), n),
		role: role,
	}
	w.waiting.Store(true)
	return w
}

func newRoster(role Role, count int) []*Worker {
	roster := make([]*Worker, count)
	for i := range roster {
		roster[i] = newWorker(role, i+1)
	}
	return roster
}

// attach binds the worker to r before its goroutine is spawned
func (w *Worker) attach(r *run) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.run = r
}

// detach releases the worker from its run and marks it waiting
func (w *Worker) detach() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.run = nil
	w.waiting.Store(true)
}

// setWaiting updates the waiting flag if r is still the worker's run
func (w *Worker) setWaiting(r *run, waiting bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.run == r {
		w.waiting.Store(waiting)
	}
}

// ID returns the worker name, e.g. "P1"
func (w *Worker) ID() string { return w.id }

// Role returns whether the worker produces or consumes
func (w *Worker) Role() Role { return w.role }

// WorkerView is a copy of a worker's state
type WorkerView struct {
	ID           string `json:"id"`
	Waiting      bool   `json:"waiting"`
	ItemsHandled int64  `json:"itemsHandled"`
	NextScan     int    `json:"nextScanIndex"`
}

func (w *Worker) view() WorkerView {
	return WorkerView{
		ID:           w.id,
		Waiting:      w.waiting.Load(),
		ItemsHandled: w.handled.Load(),
		NextScan:     w.cursor.Position(),
	}
}

func viewRoster(roster []*Worker) []WorkerView {
	out := make([]WorkerView, len(roster))
	for i, w := range roster {
		out[i] = w.view()
	}
	return out
}
