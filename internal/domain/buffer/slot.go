package buffer

import (
	"sync"
	"time"
)

// Guard is evaluated under the slot lock before a transition commits.
// A nil guard always admits.
type Guard func() bool

func (g Guard) admit() bool {
	return g == nil || g()
}

// Item is an immutable copy of one slot taken under its lock
type Item struct {
	Index      int           `json:"index"`
	Value      int64         `json:"value"`
	ProducerID string        `json:"producerId,omitempty"`
	ConsumerID string        `json:"consumerId,omitempty"`
	CreatedAt  time.Time     `json:"timestamp"`
	WaitTime   time.Duration `json:"-"`
	Remaining  time.Duration `json:"-"`
	Consumed   bool          `json:"consumed"`
	State      State         `json:"state"`
}

// Owner returns the worker attributed to an in-flight slot
func (it Item) Owner() string {
	switch it.State {
	case StateProducing:
		return it.ProducerID
	case StateConsuming:
		return it.ConsumerID
	default:
		return ""
	}
}

// Slot is one fixed cell of the ring. Every read and write happens under mu.
type Slot struct {
	mu    sync.Mutex
	index int

	state      State
	value      int64
	producerID string
	consumerID string
	createdAt  time.Time
	waitTime   time.Duration
	consumed   bool

	// Timing of the current in-flight phase
	phaseStart time.Time
	budget     time.Duration
	remaining  time.Duration
	paused     bool
}

func newSlot(index int) *Slot {
	return &Slot{index: index, state: StateEmpty}
}

// Index returns the fixed position of the slot in its ring
func (s *Slot) Index() int {
	return s.index
}

// View returns a copy of the slot
func (s *Slot) View(now time.Time) Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked(now)
}

func (s *Slot) viewLocked(now time.Time) Item {
	item := Item{
		Index:      s.index,
		Value:      s.value,
		ProducerID: s.producerID,
		ConsumerID: s.consumerID,
		CreatedAt:  s.createdAt,
		WaitTime:   s.waitTime,
		Consumed:   s.consumed,
		State:      s.state,
	}
	if s.state.InFlight() {
		item.Remaining = s.remainingLocked(now)
	}
	return item
}

func (s *Slot) remainingLocked(now time.Time) time.Duration {
	if s.paused {
		return s.remaining
	}
	left := s.budget - now.Sub(s.phaseStart)
	if left < 0 {
		return 0
	}
	return left
}

// tryBeginProduce moves an Empty or Consumed slot to Producing for owner
func (s *Slot) tryBeginProduce(owner string, budget time.Duration, now time.Time, guard Guard) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.state.Producible() || !guard.admit() {
		return false
	}

	s.state = StateProducing
	s.producerID = owner
	s.consumerID = ""
	s.value = 0
	s.createdAt = now
	s.waitTime = 0
	s.consumed = false
	s.arm(budget, now)
	return true
}

// consumable peeks whether the slot holds a completed item
func (s *Slot) consumable() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateCompleted
}

// AssignValue attaches an item value to a slot owner is producing into.
// The value is drawn from next only once; later calls return the assigned value.
func (s *Slot) AssignValue(owner string, next func() int64, guard Guard) (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateProducing || s.producerID != owner || !guard.admit() {
		return 0, false
	}
	if s.value == 0 {
		s.value = next()
	}
	return s.value, true
}

// CompleteProduce moves a slot owner is producing into to Completed.
// commit runs under the slot lock after the transition.
func (s *Slot) CompleteProduce(owner string, now time.Time, guard Guard, commit func(Item)) (Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateProducing || s.producerID != owner || !guard.admit() {
		return Item{}, false
	}

	s.state = StateCompleted
	s.disarm()

	item := s.viewLocked(now)
	if commit != nil {
		commit(item)
	}
	return item, true
}

// BeginConsume claims a Completed slot for owner. It re-validates the state, so a
// slot peeked by several consumers is granted to exactly one.
func (s *Slot) BeginConsume(owner string, budget time.Duration, now time.Time, guard Guard) (Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateCompleted || !guard.admit() {
		return Item{}, false
	}

	s.state = StateConsuming
	s.consumerID = owner
	s.arm(budget, now)
	return s.viewLocked(now), true
}

// CompleteConsume moves a slot owner is consuming to Consumed and records how long
// the item waited since production started.
func (s *Slot) CompleteConsume(owner string, now time.Time, guard Guard, commit func(Item)) (Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateConsuming || s.consumerID != owner || !guard.admit() {
		return Item{}, false
	}

	s.state = StateConsumed
	s.consumed = true
	s.waitTime = now.Sub(s.createdAt)
	s.disarm()

	item := s.viewLocked(now)
	if commit != nil {
		commit(item)
	}
	return item, true
}

// Rearm restarts the clock of a paused in-flight phase owned by owner and returns
// the delay left to simulate.
func (s *Slot) Rearm(owner string, now time.Time, guard Guard) (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.state.InFlight() || s.ownerLocked() != owner || !guard.admit() {
		return 0, false
	}

	left := s.remainingLocked(now)
	s.arm(left, now)
	return left, true
}

func (s *Slot) ownerLocked() string {
	switch s.state {
	case StateProducing:
		return s.producerID
	case StateConsuming:
		return s.consumerID
	}
	return ""
}

// pauseLocked freezes the remaining delay of an in-flight phase
func (s *Slot) pauseLocked(now time.Time) {
	if !s.state.InFlight() || s.paused {
		return
	}
	s.remaining = s.remainingLocked(now)
	s.paused = true
}

func (s *Slot) arm(budget time.Duration, now time.Time) {
	s.phaseStart = now
	s.budget = budget
	s.remaining = 0
	s.paused = false
}

func (s *Slot) disarm() {
	s.phaseStart = time.Time{}
	s.budget = 0
	s.remaining = 0
	s.paused = false
}
