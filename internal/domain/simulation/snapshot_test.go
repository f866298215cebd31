package simulation

import (
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/ringsim/internal/domain/buffer"
)

func TestComputeWaitStats(t *testing.T) {
	assert.Equal(t, WaitStats{}, ComputeWaitStats(nil))

	one := ComputeWaitStats([]buffer.Item{{WaitTime: 40 * time.Millisecond}})
	assert.Equal(t, 1, one.Count)
	assert.InDelta(t, 40, one.MeanMs, 1e-9)
	assert.Zero(t, one.StdDevMs)

	var history []buffer.Item
	for _, ms := range []int{50, 10, 40, 20, 30} {
		history = append(history, buffer.Item{WaitTime: time.Duration(ms) * time.Millisecond})
	}

	ws := ComputeWaitStats(history)
	assert.Equal(t, 5, ws.Count)
	assert.InDelta(t, 30, ws.MeanMs, 1e-9)
	assert.InDelta(t, 30, ws.P50Ms, 1e-9)
	assert.InDelta(t, 50, ws.P95Ms, 1e-9)
	assert.InDelta(t, 50, ws.MaxMs, 1e-9)
	assert.InDelta(t, 15.811, ws.StdDevMs, 1e-3)
}

func TestSlotViewJSON(t *testing.T) {
	created := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	view := NewSlotView(buffer.Item{
		Index:      2,
		Value:      17,
		ProducerID: "P1",
		ConsumerID: "C2",
		CreatedAt:  created,
		WaitTime:   1500 * time.Millisecond,
		Consumed:   true,
		State:      buffer.StateConsumed,
	})

	raw, err := sonic.Marshal(view)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"index": 2,
		"value": 17,
		"producerId": "P1",
		"consumerId": "C2",
		"timestamp": "2024-03-01T09:00:00Z",
		"waitTime": 1500,
		"remainingTime": 0,
		"consumed": true,
		"state": "consumed"
	}`, string(raw))

	empty := NewSlotView(buffer.Item{Index: 0, State: buffer.StateEmpty})
	assert.Nil(t, empty.Timestamp)
}

func TestSnapshotStateCounts(t *testing.T) {
	snap := Snapshot{Buffer: []SlotView{
		{State: buffer.StateEmpty},
		{State: buffer.StateCompleted},
		{State: buffer.StateCompleted},
	}}

	counts := snap.StateCounts()
	assert.Len(t, counts, len(buffer.States()))
	assert.Equal(t, 1, counts[buffer.StateEmpty])
	assert.Equal(t, 2, counts[buffer.StateCompleted])
	assert.Equal(t, 0, counts[buffer.StateConsuming])
}
