package buffer

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateTransitions(t *testing.T) {
	tests := []struct {
		from State
		to   State
		want bool
	}{
		{StateEmpty, StateProducing, true},
		{StateProducing, StateCompleted, true},
		{StateCompleted, StateConsuming, true},
		{StateConsuming, StateConsumed, true},
		{StateConsumed, StateProducing, true},
		{StateEmpty, StateCompleted, false},
		{StateProducing, StateConsuming, false},
		{StateCompleted, StateProducing, false},
		{StateConsuming, StateEmpty, false},
		{StateConsumed, StateConsuming, false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s to %s", tt.from, tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransition(tt.to))
		})
	}
}

func TestStateText(t *testing.T) {
	for _, s := range States() {
		text, err := s.MarshalText()
		require.NoError(t, err)

		var decoded State
		require.NoError(t, decoded.UnmarshalText(text))
		assert.Equal(t, s, decoded)
	}

	var s State
	assert.Error(t, s.UnmarshalText([]byte("bogus")))
	assert.Equal(t, "unknown", State(42).String())
}

func TestSlotFullCycle(t *testing.T) {
	ring := NewRing(1)
	cursor := &Cursor{}
	now := time.Now()

	slot, ok := ring.ClaimProducible("P1", cursor, time.Second, now, nil)
	require.True(t, ok)
	assert.Equal(t, StateProducing, slot.View(now).State)
	assert.Equal(t, "P1", slot.View(now).ProducerID)

	var seq int64
	next := func() int64 { seq++; return seq }
	value, ok := slot.AssignValue("P1", next, nil)
	require.True(t, ok)
	assert.Equal(t, int64(1), value)

	// Assignment is sticky
	value, ok = slot.AssignValue("P1", next, nil)
	require.True(t, ok)
	assert.Equal(t, int64(1), value)

	committed := false
	item, ok := slot.CompleteProduce("P1", now, nil, func(Item) { committed = true })
	require.True(t, ok)
	assert.True(t, committed)
	assert.Equal(t, StateCompleted, item.State)

	item, ok = slot.BeginConsume("C1", time.Second, now, nil)
	require.True(t, ok)
	assert.Equal(t, StateConsuming, item.State)
	assert.Equal(t, "C1", item.ConsumerID)

	later := now.Add(250 * time.Millisecond)
	item, ok = slot.CompleteConsume("C1", later, nil, nil)
	require.True(t, ok)
	assert.Equal(t, StateConsumed, item.State)
	assert.True(t, item.Consumed)
	assert.Equal(t, 250*time.Millisecond, item.WaitTime)

	// Consumed is eligible for production again and clears consumer data
	slot, ok = ring.ClaimProducible("P2", cursor, time.Second, later, nil)
	require.True(t, ok)
	view := slot.View(later)
	assert.Equal(t, StateProducing, view.State)
	assert.Empty(t, view.ConsumerID)
	assert.Zero(t, view.WaitTime)
	assert.False(t, view.Consumed)
}

func TestSlotRejectsForeignOwner(t *testing.T) {
	ring := NewRing(1)
	now := time.Now()

	slot, ok := ring.ClaimProducible("P1", &Cursor{}, 0, now, nil)
	require.True(t, ok)

	_, ok = slot.CompleteProduce("P2", now, nil, nil)
	assert.False(t, ok)

	_, ok = slot.AssignValue("P2", func() int64 { return 9 }, nil)
	assert.False(t, ok)

	_, ok = slot.BeginConsume("C1", 0, now, nil)
	assert.False(t, ok, "producing slot must not be consumable")

	_, ok = slot.CompleteProduce("P1", now, nil, nil)
	require.True(t, ok)

	_, ok = slot.BeginConsume("C1", 0, now, nil)
	require.True(t, ok)

	_, ok = slot.CompleteConsume("C2", now, nil, nil)
	assert.False(t, ok)
}

func TestGuardBlocksCommit(t *testing.T) {
	ring := NewRing(2)
	now := time.Now()
	closed := Guard(func() bool { return false })

	_, ok := ring.ClaimProducible("P1", &Cursor{}, 0, now, closed)
	assert.False(t, ok)

	slot, ok := ring.ClaimProducible("P1", &Cursor{}, 0, now, nil)
	require.True(t, ok)

	_, ok = slot.CompleteProduce("P1", now, closed, nil)
	assert.False(t, ok)
	assert.Equal(t, StateProducing, slot.View(now).State)
}

func TestClaimProducibleRoundRobin(t *testing.T) {
	ring := NewRing(3)
	cursor := &Cursor{}
	now := time.Now()

	for want := 0; want < 3; want++ {
		slot, ok := ring.ClaimProducible("P1", cursor, 0, now, nil)
		require.True(t, ok)
		assert.Equal(t, want, slot.Index())
		assert.Equal(t, (want+1)%3, cursor.Position())
	}

	// Ring is full: miss advances the cursor by one
	start := cursor.Position()
	_, ok := ring.ClaimProducible("P1", cursor, 0, now, nil)
	assert.False(t, ok)
	assert.Equal(t, (start+1)%3, cursor.Position())
}

func TestClaimSkipsBusySlots(t *testing.T) {
	ring := NewRing(3)
	now := time.Now()

	// Occupy slot 1 only
	other := &Cursor{}
	other.set(1)
	slot, ok := ring.ClaimProducible("P2", other, 0, now, nil)
	require.True(t, ok)
	require.Equal(t, 1, slot.Index())

	cursor := &Cursor{}
	cursor.set(1)
	slot, ok = ring.ClaimProducible("P1", cursor, 0, now, nil)
	require.True(t, ok)
	assert.Equal(t, 2, slot.Index())
}

func TestPeekConsumable(t *testing.T) {
	ring := NewRing(3)
	now := time.Now()
	cursor := &Cursor{}

	_, ok := ring.PeekConsumable(cursor)
	assert.False(t, ok)
	assert.Equal(t, 1, cursor.Position())

	claim := &Cursor{}
	claim.set(2)
	slot, ok := ring.ClaimProducible("P1", claim, 0, now, nil)
	require.True(t, ok)
	_, ok = slot.CompleteProduce("P1", now, nil, nil)
	require.True(t, ok)

	peeked, ok := ring.PeekConsumable(cursor)
	require.True(t, ok)
	assert.Equal(t, 2, peeked.Index())

	// Peeking does not claim
	assert.Equal(t, StateCompleted, peeked.View(now).State)
}

func TestEmptyRing(t *testing.T) {
	ring := NewRing(0)
	assert.Equal(t, 0, ring.Len())

	_, ok := ring.ClaimProducible("P1", &Cursor{}, 0, time.Now(), nil)
	assert.False(t, ok)
	_, ok = ring.PeekConsumable(&Cursor{})
	assert.False(t, ok)
	assert.Empty(t, ring.Snapshot(time.Now()))
}

func TestPauseAndRearm(t *testing.T) {
	ring := NewRing(2)
	start := time.Now()

	slot, ok := ring.ClaimProducible("P1", &Cursor{}, time.Second, start, nil)
	require.True(t, ok)

	paused := ring.Pause(start.Add(300 * time.Millisecond))
	require.Len(t, paused, 1)
	assert.Equal(t, "P1", paused[0].Owner())
	assert.Equal(t, 700*time.Millisecond, paused[0].Remaining)

	// Frozen while paused
	assert.Equal(t, 700*time.Millisecond, slot.View(start.Add(5*time.Second)).Remaining)

	_, ok = slot.Rearm("P2", start, nil)
	assert.False(t, ok)

	resumeAt := start.Add(10 * time.Second)
	left, ok := slot.Rearm("P1", resumeAt, nil)
	require.True(t, ok)
	assert.Equal(t, 700*time.Millisecond, left)

	// Second pause measures from the rearm point
	paused = ring.Pause(resumeAt.Add(200 * time.Millisecond))
	require.Len(t, paused, 1)
	assert.Equal(t, 500*time.Millisecond, paused[0].Remaining)
}

func TestConcurrentClaimsAreExclusive(t *testing.T) {
	const (
		size    = 8
		workers = 16
	)
	ring := NewRing(size)
	now := time.Now()

	var claimed atomic.Int64
	var wg sync.WaitGroup
	owners := make([]string, size)
	var mu sync.Mutex

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			cursor := &Cursor{}
			for {
				slot, ok := ring.ClaimProducible(id, cursor, 0, now, nil)
				if !ok {
					return
				}
				claimed.Add(1)
				mu.Lock()
				assert.Empty(t, owners[slot.Index()], "slot %d claimed twice", slot.Index())
				owners[slot.Index()] = id
				mu.Unlock()
			}
		}(fmt.Sprintf("P%d", w+1))
	}
	wg.Wait()

	assert.Equal(t, int64(size), claimed.Load())
	counts := CountStates(ring.Snapshot(now))
	assert.Equal(t, size, counts[StateProducing])
	assert.Equal(t, 0, counts[StateEmpty])
}

func TestConcurrentBeginConsumeSingleWinner(t *testing.T) {
	ring := NewRing(1)
	now := time.Now()

	slot, ok := ring.ClaimProducible("P1", &Cursor{}, 0, now, nil)
	require.True(t, ok)
	_, ok = slot.CompleteProduce("P1", now, nil, nil)
	require.True(t, ok)

	var winners atomic.Int64
	var wg sync.WaitGroup
	for c := 0; c < 10; c++ {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			peeked, found := ring.PeekConsumable(&Cursor{})
			if !found {
				return
			}
			if _, ok := peeked.BeginConsume(id, 0, now, nil); ok {
				winners.Add(1)
			}
		}(fmt.Sprintf("C%d", c+1))
	}
	wg.Wait()

	assert.Equal(t, int64(1), winners.Load())
}
