package simulation

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/ringsim/internal/domain/buffer"
	"github.com/GriffinCanCode/ringsim/internal/infrastructure/logging"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()

	opts := DefaultOptions()
	opts.Backoff = 5 * time.Millisecond
	e := NewEngine(opts, logging.NewNop())

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		assert.NoError(t, e.Shutdown(ctx))
	})
	return e
}

func params(k, producers, consumers int, produce, consume time.Duration) Params {
	return Params{
		BufferSize:       k,
		ProducerCount:    producers,
		ConsumerCount:    consumers,
		SimulationSpeed:  time.Second,
		ProductionDelay:  produce,
		ConsumptionDelay: consume,
	}
}

func assertBalanced(t *testing.T, snap Snapshot) {
	t.Helper()

	counts := snap.StateCounts()
	holding := int64(counts[buffer.StateCompleted] + counts[buffer.StateConsuming])

	assert.Equal(t, holding, snap.Stats.ProducedTotal-snap.Stats.ConsumedTotal)
	assert.Equal(t, holding, snap.ItemCount)
	assert.LessOrEqual(t, holding, int64(snap.BufferSize))
	assert.GreaterOrEqual(t, holding, int64(0))
}

func TestInitRejectsInvalidParams(t *testing.T) {
	tests := []struct {
		name  string
		p     Params
		field string
	}{
		{"buffer too small", params(0, 1, 1, 0, 0), "bufferSize"},
		{"buffer too large", params(21, 1, 1, 0, 0), "bufferSize"},
		{"no producers", params(5, 0, 1, 0, 0), "producerCount"},
		{"too many consumers", params(5, 1, 21, 0, 0), "consumerCount"},
		{"negative production delay", params(5, 1, 1, -time.Millisecond, 0), "productionDelay"},
		{"consumption delay above max", params(5, 1, 1, 0, 6*time.Second), "consumptionDelay"},
		{"unknown policy", func() Params { p := params(5, 1, 1, 0, 0); p.DelayPolicy = "chaotic"; return p }(), "delayPolicy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(t)
			require.NoError(t, e.Init(params(3, 1, 1, time.Second, time.Second)))
			before := e.Status()

			err := e.Init(tt.p)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidConfig))

			var cfgErr *ConfigurationError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, tt.field, cfgErr.Field)

			after := e.Status()
			assert.Equal(t, before.SessionID, after.SessionID)
			assert.Equal(t, 3, after.BufferSize)
		})
	}
}

func TestDormantEngine(t *testing.T) {
	e := newTestEngine(t)

	assert.ErrorIs(t, e.Start(), ErrNotInitialized)
	assert.ErrorIs(t, e.Continue(), ErrNotInitialized)
	assert.False(t, e.IsRunning())

	e.Stop()
	e.Reset()

	snap := e.Status()
	assert.Empty(t, snap.SessionID)
	assert.Equal(t, 0, snap.BufferSize)
	assert.Empty(t, snap.Buffer)
	assert.Empty(t, snap.Logs)
	assert.Empty(t, e.History())
}

func TestInitAllocatesSession(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.Init(params(4, 2, 3, time.Second, 2*time.Second)))

	snap := e.Status()
	assert.True(t, strings.HasPrefix(snap.SessionID, "sess_"))
	assert.False(t, snap.Running)
	assert.Equal(t, 4, snap.BufferSize)
	require.Len(t, snap.Buffer, 4)
	for i, slot := range snap.Buffer {
		assert.Equal(t, i, slot.Index)
		assert.Equal(t, buffer.StateEmpty, slot.State)
	}

	require.Len(t, snap.Producers, 2)
	require.Len(t, snap.Consumers, 3)
	assert.Equal(t, "P1", snap.Producers[0].ID)
	assert.Equal(t, "C3", snap.Consumers[2].ID)
	for _, w := range append(snap.Producers, snap.Consumers...) {
		assert.True(t, w.Waiting)
	}

	assert.Equal(t, int64(1000), snap.Settings.ProductionDelayMs)
	assert.Equal(t, int64(2000), snap.Settings.ConsumptionDelayMs)
	assert.Equal(t, PolicyFixed, snap.Settings.DelayPolicy)

	require.Len(t, snap.Logs, 1)
	assert.Regexp(t, `^\[\d{2}:\d{2}:\d{2}\] System initialized`, snap.Logs[0])
}

func TestStartAndStopAreIdempotent(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.Init(params(2, 1, 1, 50*time.Millisecond, 50*time.Millisecond)))

	require.NoError(t, e.Start())
	require.NoError(t, e.Start())
	assert.True(t, e.IsRunning())

	e.Stop()
	e.Stop()
	assert.False(t, e.IsRunning())

	starts := 0
	for _, line := range e.Status().Logs {
		if strings.HasSuffix(line, "Simulation started") {
			starts++
		}
	}
	assert.Equal(t, 1, starts)
}

func TestCountersStayBalanced(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.Init(params(4, 3, 2, 0, 0)))
	require.NoError(t, e.Start())

	deadline := time.Now().Add(300 * time.Millisecond)
	for time.Now().Before(deadline) {
		assertBalanced(t, e.Status())
	}

	e.Stop()
	snap := e.Status()
	assertBalanced(t, snap)
	assert.Greater(t, snap.Stats.ConsumedTotal, int64(0))
}

func TestItemValuesStrictlyIncrease(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.Init(params(1, 1, 1, 0, 0)))
	require.NoError(t, e.Start())

	require.Eventually(t, func() bool {
		return e.Status().Stats.ConsumedTotal >= 20
	}, 3*time.Second, 5*time.Millisecond)
	e.Stop()

	history := e.History()
	require.NotEmpty(t, history)
	for i := 1; i < len(history); i++ {
		// one slot, so items are consumed in production order with no gaps
		assert.Equal(t, history[i-1].Value+1, history[i].Value)
	}
}

func TestSingleSlotAlternates(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.Init(params(1, 1, 1, 0, 0)))
	require.NoError(t, e.Start())

	deadline := time.Now().Add(200 * time.Millisecond)
	for time.Now().Before(deadline) {
		snap := e.Status()
		diff := snap.Stats.ProducedTotal - snap.Stats.ConsumedTotal
		assert.GreaterOrEqual(t, diff, int64(0))
		assert.LessOrEqual(t, diff, int64(1))
		assertBalanced(t, snap)
	}
}

// successor returns the only legal next state of s
func successor(s buffer.State) buffer.State {
	for _, to := range buffer.States() {
		if s.CanTransition(to) {
			return to
		}
	}
	return s
}

// forwardSteps counts the transitions needed to get from one state to another,
// or -1 when to is not reachable in less than one full cycle.
func forwardSteps(from, to buffer.State) (steps int, enteredProducing bool) {
	st := from
	for steps = 0; steps < 4; steps++ {
		if st == to {
			return steps, enteredProducing
		}
		st = successor(st)
		if st == buffer.StateProducing {
			enteredProducing = true
		}
	}
	return -1, enteredProducing
}

// watchSlots polls Status for d and checks every slot only moves forward along
// the cycle between two polls. It returns the number of observed moves.
func watchSlots(t *testing.T, e *Engine, d time.Duration) int {
	t.Helper()

	moves := 0
	prev := e.Status().Buffer
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
		cur := e.Status().Buffer
		require.Len(t, cur, len(prev))

		for i := range cur {
			before, after := prev[i], cur[i]
			steps, entered := forwardSteps(before.State, after.State)
			require.GreaterOrEqual(t, steps, 0, "slot %d moved %s -> %s", i, before.State, after.State)
			moves += steps

			if before.Value != after.Value && !entered {
				// the only change inside one phase is the value drawn right after the claim
				assert.Equal(t, buffer.StateProducing, before.State, "slot %d value changed outside production", i)
				assert.Zero(t, before.Value, "slot %d value reassigned", i)
			}
		}
		prev = cur
	}
	return moves
}

func TestSlotsOnlyMoveForward(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.Init(params(2, 2, 2, 15*time.Millisecond, 15*time.Millisecond)))
	require.NoError(t, e.Start())

	moves := watchSlots(t, e, 600*time.Millisecond)
	assert.Positive(t, moves)
}

func TestSingleSlotCyclesInOrder(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.Init(params(1, 1, 1, 10*time.Millisecond, 10*time.Millisecond)))
	require.NoError(t, e.Start())

	moves := watchSlots(t, e, 400*time.Millisecond)
	assert.GreaterOrEqual(t, moves, 8)

	snap := e.Status()
	diff := snap.Stats.ProducedTotal - snap.Stats.ConsumedTotal
	assert.GreaterOrEqual(t, diff, int64(0))
	assert.LessOrEqual(t, diff, int64(1))
}

func TestProducersOutpaceConsumer(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.Init(params(3, 2, 1, 0, 20*time.Millisecond)))
	require.NoError(t, e.Start())

	require.Eventually(t, func() bool {
		return e.Status().Stats.FullWaitEvents > 0
	}, 2*time.Second, 5*time.Millisecond)
	first := e.Status().Stats.FullWaitEvents

	require.Eventually(t, func() bool {
		return e.Status().Stats.FullWaitEvents > first
	}, 2*time.Second, 5*time.Millisecond)

	snap := e.Status()
	assert.LessOrEqual(t, snap.Stats.ConsumedTotal, snap.Stats.ProducedTotal)
	assertBalanced(t, snap)
}

func TestStopFreezesRing(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.Init(params(3, 2, 2, 60*time.Millisecond, 60*time.Millisecond)))
	require.NoError(t, e.Start())

	time.Sleep(250 * time.Millisecond)
	e.Stop()
	before := e.Status()

	time.Sleep(300 * time.Millisecond)
	after := e.Status()

	assert.False(t, after.Running)
	assert.Equal(t, before.Buffer, after.Buffer)
	assert.Equal(t, before.Stats.ProducedTotal, after.Stats.ProducedTotal)
	assert.Equal(t, before.Stats.ConsumedTotal, after.Stats.ConsumedTotal)
	for _, w := range append(after.Producers, after.Consumers...) {
		assert.True(t, w.Waiting, w.ID)
	}
}

func TestContinueFinishesInFlightSlot(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.Init(params(2, 1, 1, 300*time.Millisecond, 300*time.Millisecond)))
	require.NoError(t, e.Start())

	time.Sleep(100 * time.Millisecond)
	e.Stop()

	stopped := e.Status()
	slot := stopped.Buffer[0]
	require.Equal(t, buffer.StateProducing, slot.State)
	assert.Equal(t, "P1", slot.ProducerID)
	assert.Equal(t, int64(1), slot.Value)
	assert.Greater(t, slot.RemainingMs, int64(0))
	assert.LessOrEqual(t, slot.RemainingMs, int64(300))

	time.Sleep(time.Duration(slot.RemainingMs)*time.Millisecond + 100*time.Millisecond)
	assert.Equal(t, int64(0), e.Status().Stats.ProducedTotal)

	require.NoError(t, e.Continue())
	assert.True(t, e.IsRunning())

	require.Eventually(t, func() bool {
		return e.Status().Stats.ProducedTotal >= 1
	}, 2*time.Second, 10*time.Millisecond)

	e.Stop()
	assertBalanced(t, e.Status())
	assert.Contains(t, strings.Join(e.Status().Logs, "\n"), "P1 resumed producing item in slot 0")
}

func TestResetClearsSession(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.Init(params(3, 2, 2, 0, 0)))
	require.NoError(t, e.Start())

	require.Eventually(t, func() bool {
		return e.Status().Stats.ConsumedTotal > 0
	}, 2*time.Second, 5*time.Millisecond)
	previous := e.Status().SessionID

	e.Reset()
	snap := e.Status()

	assert.False(t, snap.Running)
	assert.NotEqual(t, previous, snap.SessionID)
	assert.Equal(t, Stats{}, snap.Stats)
	assert.Equal(t, int64(0), snap.ItemCount)
	assert.Empty(t, snap.Logs)
	assert.Empty(t, e.History())
	require.Len(t, snap.Buffer, 3)
	for _, slot := range snap.Buffer {
		assert.Equal(t, buffer.StateEmpty, slot.State)
	}
	assert.Len(t, snap.Producers, 2)
	assert.Len(t, snap.Consumers, 2)

	def := DefaultParams()
	assert.Equal(t, def.ProductionDelay.Milliseconds(), snap.Settings.ProductionDelayMs)
	assert.Equal(t, def.ConsumptionDelay.Milliseconds(), snap.Settings.ConsumptionDelayMs)
}

func TestInitStopsRunningSession(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.Init(params(2, 1, 1, 0, 0)))
	require.NoError(t, e.Start())

	require.Eventually(t, func() bool {
		return e.Status().Stats.ProducedTotal > 0
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, e.Init(params(5, 1, 1, 0, 0)))
	assert.False(t, e.IsRunning())

	// Workers of the old session may still be unwinding; none of them may touch
	// the new one.
	time.Sleep(50 * time.Millisecond)
	snap := e.Status()
	assert.Equal(t, Stats{}, snap.Stats)
	for _, slot := range snap.Buffer {
		assert.Equal(t, buffer.StateEmpty, slot.State)
	}
}

func TestSnapshotIsIndependent(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.Init(params(2, 1, 1, time.Second, time.Second)))

	snap := e.Status()
	snap.Buffer[0].State = buffer.StateCompleted
	snap.Producers[0].ID = "mutated"
	snap.Logs[0] = "mutated"

	fresh := e.Status()
	assert.Equal(t, buffer.StateEmpty, fresh.Buffer[0].State)
	assert.Equal(t, "P1", fresh.Producers[0].ID)
	assert.NotEqual(t, "mutated", fresh.Logs[0])
}

type flakyPolicy struct {
	faults atomic.Int64
}

func (p *flakyPolicy) Name() string { return "flaky" }

func (p *flakyPolicy) Next(base time.Duration) time.Duration {
	if p.faults.Add(1) <= 3 {
		panic("delay source unavailable")
	}
	return base
}

func TestWorkerFaultIsRecovered(t *testing.T) {
	e := newTestEngine(t).WithDelayPolicy(&flakyPolicy{})

	p := params(2, 1, 1, 20*time.Millisecond, 20*time.Millisecond)
	p.DelayPolicy = "flaky"
	require.NoError(t, e.Init(p))
	require.NoError(t, e.Start())

	require.Eventually(t, func() bool {
		return e.Status().Stats.ConsumedTotal > 0
	}, 2*time.Second, 5*time.Millisecond)

	assert.Contains(t, strings.Join(e.Status().Logs, "\n"), "fault: delay source unavailable")
	assert.True(t, e.IsRunning())
}

type mockRecorder struct {
	mock.Mock
}

func (m *mockRecorder) ObserveLifecycle(op string) { m.Called(op) }
func (m *mockRecorder) ObserveProduced(worker string) { m.Called(worker) }
func (m *mockRecorder) ObserveConsumed(worker string, wait time.Duration) { m.Called(worker, wait) }
func (m *mockRecorder) ObserveWait(role string) { m.Called(role) }
func (m *mockRecorder) ObserveSlotStates(counts map[string]int) { m.Called(counts) }

func TestRecorderObservesEngine(t *testing.T) {
	rec := &mockRecorder{}
	rec.On("ObserveLifecycle", mock.Anything).Return()
	rec.On("ObserveProduced", mock.Anything).Return().Maybe()
	rec.On("ObserveConsumed", mock.Anything, mock.Anything).Return().Maybe()
	rec.On("ObserveWait", mock.Anything).Return().Maybe()
	rec.On("ObserveSlotStates", mock.Anything).Return()

	e := newTestEngine(t).WithRecorder(rec)
	require.NoError(t, e.Init(params(1, 1, 1, 0, 0)))
	require.NoError(t, e.Start())

	require.Eventually(t, func() bool {
		return e.Status().Stats.ConsumedTotal > 0
	}, 2*time.Second, 5*time.Millisecond)
	e.Stop()
	e.Reset()

	for _, op := range []string{"init", "start", "stop", "reset"} {
		rec.AssertCalled(t, "ObserveLifecycle", op)
	}
	rec.AssertCalled(t, "ObserveProduced", "P1")
	rec.AssertCalled(t, "ObserveConsumed", "C1", mock.AnythingOfType("time.Duration"))
	rec.AssertCalled(t, "ObserveSlotStates", mock.MatchedBy(func(counts map[string]int) bool {
		return len(counts) == len(buffer.States())
	}))
}
