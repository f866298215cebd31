package buffer

import (
	"sync/atomic"
	"time"
)

// Cursor is a worker's persisted scan start. It survives across discovery calls so
// each worker rotates through the ring independently.
type Cursor struct {
	next atomic.Int64
}

// Position returns the index the next scan starts from
func (c *Cursor) Position() int {
	return int(c.next.Load())
}

func (c *Cursor) set(i int) {
	c.next.Store(int64(i))
}

// Ring is a fixed array of slots. The slice is never resized after construction,
// so it is read without a global lock; each slot guards itself.
type Ring struct {
	slots []*Slot
}

// NewRing allocates size Empty slots
func NewRing(size int) *Ring {
	if size < 0 {
		size = 0
	}
	slots := make([]*Slot, size)
	for i := range slots {
		slots[i] = newSlot(i)
	}
	return &Ring{slots: slots}
}

// Len returns the number of slots
func (r *Ring) Len() int {
	return len(r.slots)
}

// Slot returns the slot at index i
func (r *Ring) Slot(i int) *Slot {
	return r.slots[i]
}

// ClaimProducible scans at most Len slots from the cursor and moves the first
// Empty or Consumed one to Producing for owner. Each candidate is locked only for
// its own check-and-transition. On a hit the cursor moves past the claimed slot;
// on a miss it advances by one so the next scan starts elsewhere.
func (r *Ring) ClaimProducible(owner string, c *Cursor, budget time.Duration, now time.Time, guard Guard) (*Slot, bool) {
	n := len(r.slots)
	if n == 0 {
		return nil, false
	}

	start := c.Position() % n
	for checked := 0; checked < n; checked++ {
		i := (start + checked) % n
		slot := r.slots[i]
		if slot.tryBeginProduce(owner, budget, now, guard) {
			c.set((i + 1) % n)
			return slot, true
		}
	}

	c.set((start + 1) % n)
	return nil, false
}

// PeekConsumable scans like ClaimProducible for a Completed slot but does not
// claim it. The caller commits with Slot.BeginConsume, which re-validates.
func (r *Ring) PeekConsumable(c *Cursor) (*Slot, bool) {
	n := len(r.slots)
	if n == 0 {
		return nil, false
	}

	start := c.Position() % n
	for checked := 0; checked < n; checked++ {
		i := (start + checked) % n
		slot := r.slots[i]
		if slot.consumable() {
			c.set((i + 1) % n)
			return slot, true
		}
	}

	c.set((start + 1) % n)
	return nil, false
}

// Quiesce takes every slot lock in index order, hands fn a copy of all slots and
// releases the locks after fn returns. Workers never hold two slot locks, so the
// ordered acquisition cannot deadlock. Anything fn reads that workers only update
// under a slot lock is consistent with the copies.
func (r *Ring) Quiesce(now time.Time, fn func(items []Item)) {
	for _, slot := range r.slots {
		slot.mu.Lock()
	}
	defer func() {
		for i := len(r.slots) - 1; i >= 0; i-- {
			r.slots[i].mu.Unlock()
		}
	}()

	items := make([]Item, len(r.slots))
	for i, slot := range r.slots {
		items[i] = slot.viewLocked(now)
	}
	fn(items)
}

// Pause freezes the remaining delay of every in-flight slot and returns copies of
// them. It runs under the same ordered barrier as Quiesce, so once it returns no
// commit guarded by a since-disabled run can still land.
func (r *Ring) Pause(now time.Time) []Item {
	var inFlight []Item
	r.Quiesce(now, func([]Item) {
		for _, slot := range r.slots {
			if slot.state.InFlight() {
				slot.pauseLocked(now)
				inFlight = append(inFlight, slot.viewLocked(now))
			}
		}
	})
	return inFlight
}

// Snapshot returns copies of all slots taken under the barrier
func (r *Ring) Snapshot(now time.Time) []Item {
	var out []Item
	r.Quiesce(now, func(items []Item) {
		out = items
	})
	return out
}

// CountStates tallies slots per state
func CountStates(items []Item) map[State]int {
	counts := make(map[State]int, len(States()))
	for _, s := range States() {
		counts[s] = 0
	}
	for _, it := range items {
		counts[it.State]++
	}
	return counts
}
