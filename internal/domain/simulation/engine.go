package simulation

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/ringsim/internal/domain/buffer"
	"github.com/GriffinCanCode/ringsim/internal/infrastructure/logging"
	"github.com/GriffinCanCode/ringsim/internal/shared/id"
)

// session is everything one Init allocates. Workers keep a pointer to the session
// they were spawned for, so a later Init never sees their late writes.
type session struct {
	id        string
	params    Params
	policy    DelayPolicy
	ring      *buffer.Ring
	producers []*Worker
	consumers []*Worker
	journal   *Journal

	seq        atomic.Int64
	produced   atomic.Int64
	consumed   atomic.Int64
	fullWaits  atomic.Int64
	emptyWaits atomic.Int64
	itemCount  atomic.Int64
}

func (s *session) nextValue() int64 {
	return s.seq.Add(1)
}

func (s *session) stats() Stats {
	return Stats{
		ProducedTotal:   s.produced.Load(),
		ConsumedTotal:   s.consumed.Load(),
		FullWaitEvents:  s.fullWaits.Load(),
		EmptyWaitEvents: s.emptyWaits.Load(),
	}
}

// run is one Running phase. Stop disables it; a disabled run never commits a
// slot transition because its guard is checked under the slot lock.
type run struct {
	ctx    context.Context
	cancel context.CancelFunc
	active atomic.Bool
}

func (r *run) guard() buffer.Guard {
	return r.active.Load
}

// Engine owns the simulation lifecycle. Its mutex serializes lifecycle calls and
// snapshots; worker goroutines never take it.
type Engine struct {
	mu       sync.Mutex
	opts     Options
	logger   *logging.Logger
	recorder Recorder
	policies map[string]DelayPolicy
	now      func() time.Time

	sess    *session
	current *run
	workers sync.WaitGroup
}

// NewEngine creates a dormant engine
func NewEngine(opts Options, logger *logging.Logger) *Engine {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Engine{
		opts:     opts.withFallbacks(),
		logger:   logger,
		recorder: nopRecorder{},
		policies: builtinPolicies(),
		now:      time.Now,
	}
}

// WithRecorder adds metrics tracking to the engine
func (e *Engine) WithRecorder(r Recorder) *Engine {
	if r != nil {
		e.recorder = r
	}
	return e
}

// WithDelayPolicy registers an additional delay policy under its name
func (e *Engine) WithDelayPolicy(p DelayPolicy) *Engine {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.policies[p.Name()] = p
	return e
}

// Options returns the engine options
func (e *Engine) Options() Options {
	return e.opts
}

// Init validates p, stops any running session and allocates a fresh one
func (e *Engine) Init(p Params) error {
	if p.DelayPolicy == "" {
		p.DelayPolicy = e.opts.Defaults.DelayPolicy
	}
	if p.SimulationSpeed == 0 {
		p.SimulationSpeed = e.opts.Defaults.SimulationSpeed
	}
	if err := e.opts.Limits.Validate(p); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	policy, ok := e.policies[p.DelayPolicy]
	if !ok {
		return &ConfigurationError{Field: "delayPolicy", Value: p.DelayPolicy, Reason: "unknown policy"}
	}

	e.stopLocked()
	e.sess = e.newSession(p, policy)

	e.sess.journal.Log(e.now(), fmt.Sprintf("System initialized: buffer size=%d, producers=%d, consumers=%d",
		p.BufferSize, p.ProducerCount, p.ConsumerCount))
	e.recorder.ObserveLifecycle("init")
	e.logger.Info("Simulation initialized",
		zap.String("session", e.sess.id),
		zap.Int("buffer_size", p.BufferSize),
		zap.Int("producers", p.ProducerCount),
		zap.Int("consumers", p.ConsumerCount),
		zap.Duration("production_delay", p.ProductionDelay),
		zap.Duration("consumption_delay", p.ConsumptionDelay),
		zap.String("delay_policy", p.DelayPolicy),
	)
	return nil
}

func (e *Engine) newSession(p Params, policy DelayPolicy) *session {
	return &session{
		id:        id.NewSessionID().String(),
		params:    p,
		policy:    policy,
		ring:      buffer.NewRing(p.BufferSize),
		producers: newRoster(RoleProducer, p.ProducerCount),
		consumers: newRoster(RoleConsumer, p.ConsumerCount),
		journal:   NewJournal(e.opts.LogCapacity, e.opts.HistoryCapacity),
	}
}

// Start spawns one goroutine per worker. It is a no-op while running.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.sess == nil {
		return ErrNotInitialized
	}
	if e.current != nil {
		return nil
	}

	r := e.newRunLocked()
	for _, w := range e.sess.producers {
		e.spawn(r, e.sess, w, nil)
	}
	for _, w := range e.sess.consumers {
		e.spawn(r, e.sess, w, nil)
	}

	e.sess.journal.Log(e.now(), "Simulation started")
	e.recorder.ObserveLifecycle("start")
	e.logger.Info("Simulation started", zap.String("session", e.sess.id))
	return nil
}

// Continue resumes a stopped session without reallocating. Workers that owned an
// in-flight slot first finish its remaining delay and transition, then fall into
// their normal loop.
func (e *Engine) Continue() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.sess == nil {
		return ErrNotInitialized
	}
	if e.current != nil {
		return nil
	}

	pending := make(map[string][]buffer.Item)
	for _, it := range e.sess.ring.Snapshot(e.now()) {
		if owner := it.Owner(); owner != "" {
			pending[owner] = append(pending[owner], it)
		}
	}

	r := e.newRunLocked()
	resumed := 0
	for _, w := range e.sess.producers {
		resumed += len(pending[w.id])
		e.spawn(r, e.sess, w, pending[w.id])
	}
	for _, w := range e.sess.consumers {
		resumed += len(pending[w.id])
		e.spawn(r, e.sess, w, pending[w.id])
	}

	e.sess.journal.Log(e.now(), fmt.Sprintf("Simulation continued (%d in-flight slots resumed)", resumed))
	e.recorder.ObserveLifecycle("continue")
	e.logger.Info("Simulation continued",
		zap.String("session", e.sess.id),
		zap.Int("resumed_slots", resumed),
	)
	return nil
}

// Stop signals every worker to exit and returns without waiting for them. Once it
// returns no slot transition of the stopped run can commit. Ring contents are left
// as they are.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stopLocked() {
		e.sess.journal.Log(e.now(), "Simulation stopped")
		e.recorder.ObserveLifecycle("stop")
		e.logger.Info("Simulation stopped", zap.String("session", e.sess.id))
	}
}

func (e *Engine) stopLocked() bool {
	r := e.current
	if r == nil {
		return false
	}

	r.active.Store(false)
	r.cancel()
	e.current = nil

	// Barrier: any commit that passed its guard before the flag flipped
	// finishes before Pause acquires that slot's lock.
	paused := e.sess.ring.Pause(e.now())

	for _, w := range e.sess.producers {
		w.detach()
	}
	for _, w := range e.sess.consumers {
		w.detach()
	}

	if len(paused) > 0 {
		e.logger.Debug("In-flight slots paused", zap.Int("count", len(paused)))
	}
	return true
}

// Reset stops the session and clears every counter, the log and the history.
// The ring keeps its size and the rosters their counts; delays return to defaults.
// An engine that was never initialized stays dormant.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.stopLocked()
	e.recorder.ObserveLifecycle("reset")

	if e.sess == nil {
		e.logger.Info("Simulation reset while dormant")
		return
	}

	p := e.opts.Defaults
	p.BufferSize = e.sess.params.BufferSize
	p.ProducerCount = e.sess.params.ProducerCount
	p.ConsumerCount = e.sess.params.ConsumerCount

	policy, ok := e.policies[p.DelayPolicy]
	if !ok {
		policy = FixedDelay{}
		p.DelayPolicy = PolicyFixed
	}

	e.sess = e.newSession(p, policy)
	e.logger.Info("Simulation reset", zap.String("session", e.sess.id))
}

// IsRunning reports whether a run is active
func (e *Engine) IsRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current != nil
}

// Status returns a deep copy of the engine state. Slots, counters and the journal
// are read under the ring barrier, so the counters agree with the slot states.
func (e *Engine) Status() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	snap := Snapshot{
		Running: e.current != nil,
		TakenAt: now,
	}

	s := e.sess
	if s == nil {
		snap.Settings = e.opts.Defaults.view()
		snap.Buffer = []SlotView{}
		snap.Producers = []WorkerView{}
		snap.Consumers = []WorkerView{}
		snap.Logs = []string{}
		return snap
	}

	var history []buffer.Item
	s.ring.Quiesce(now, func(items []buffer.Item) {
		snap.Buffer = slotViews(items)
		snap.Stats = s.stats()
		snap.ItemCount = s.itemCount.Load()
		snap.Producers = viewRoster(s.producers)
		snap.Consumers = viewRoster(s.consumers)
		snap.Logs = s.journal.Logs()
		history = s.journal.History()
	})

	snap.SessionID = s.id
	snap.BufferSize = s.ring.Len()
	snap.Settings = s.params.view()
	snap.WaitStats = ComputeWaitStats(history)

	counts := make(map[string]int, len(buffer.States()))
	for st, n := range snap.StateCounts() {
		counts[st.String()] = n
	}
	e.recorder.ObserveSlotStates(counts)

	return snap
}

// History returns a copy of the consumed-item history
func (e *Engine) History() []buffer.Item {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.sess == nil {
		return []buffer.Item{}
	}
	return e.sess.journal.History()
}

// Shutdown stops the simulation and waits for every worker goroutine to exit
func (e *Engine) Shutdown(ctx context.Context) error {
	e.Stop()

	done := make(chan struct{})
	go func() {
		e.workers.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for workers: %w", ctx.Err())
	}
}

func (e *Engine) newRunLocked() *run {
	ctx, cancel := context.WithCancel(context.Background())
	r := &run{ctx: ctx, cancel: cancel}
	r.active.Store(true)
	e.current = r
	return r
}

func (e *Engine) spawn(r *run, s *session, w *Worker, pending []buffer.Item) {
	w.attach(r)
	e.workers.Add(1)
	go func() {
		defer e.workers.Done()
		defer w.setWaiting(r, true)

		for _, it := range pending {
			if !e.step(r, s, w, func() bool { return e.resume(r, s, w, it) }) {
				return
			}
		}

		once := e.produceOnce
		if w.role == RoleConsumer {
			once = e.consumeOnce
		}
		for r.active.Load() {
			if !e.step(r, s, w, func() bool { return once(r, s, w) }) {
				return
			}
		}
	}()
}

// step runs one loop iteration, recovering a fault so it only costs this worker
// one backoff. It returns false once the run has ended.
func (e *Engine) step(r *run, s *session, w *Worker, fn func() bool) (alive bool) {
	defer func() {
		if rec := recover(); rec != nil {
			e.logger.Error("Worker fault recovered",
				zap.String("session", s.id),
				zap.String("worker", w.id),
				zap.Any("panic", rec),
			)
			e.logf(s, "%s fault: %v", w.id, rec)
			alive = e.sleep(r, e.opts.Backoff)
		}
	}()
	return fn()
}

// sleep waits d or until the run is stopped. It returns false on stop.
func (e *Engine) sleep(r *run, d time.Duration) bool {
	if d <= 0 {
		return r.ctx.Err() == nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-r.ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (e *Engine) produceOnce(r *run, s *session, w *Worker) bool {
	delay := s.policy.Next(s.params.ProductionDelay)
	slot, ok := s.ring.ClaimProducible(w.id, &w.cursor, delay, e.now(), r.guard())
	if !ok {
		if !r.active.Load() {
			return false
		}
		w.setWaiting(r, true)
		s.fullWaits.Add(1)
		e.recorder.ObserveWait(RoleProducer.String())
		e.logf(s, "%s waiting: no free slot", w.id)
		return e.sleep(r, e.opts.Backoff)
	}

	w.setWaiting(r, false)
	e.logf(s, "%s started producing in slot %d", w.id, slot.Index())

	if _, ok := slot.AssignValue(w.id, s.nextValue, r.guard()); !ok {
		return r.active.Load()
	}
	if !e.sleep(r, delay) {
		return false
	}
	return e.finishProduction(r, s, w, slot)
}

func (e *Engine) finishProduction(r *run, s *session, w *Worker, slot *buffer.Slot) bool {
	item, ok := slot.CompleteProduce(w.id, e.now(), r.guard(), func(buffer.Item) {
		s.itemCount.Add(1)
		s.produced.Add(1)
		w.handled.Add(1)
	})
	if !ok {
		return r.active.Load()
	}

	e.recorder.ObserveProduced(w.id)
	e.logf(s, "%s completed item %d in slot %d", w.id, item.Value, item.Index)
	return true
}

func (e *Engine) consumeOnce(r *run, s *session, w *Worker) bool {
	slot, ok := s.ring.PeekConsumable(&w.cursor)
	if !ok {
		if !r.active.Load() {
			return false
		}
		w.setWaiting(r, true)
		s.emptyWaits.Add(1)
		e.recorder.ObserveWait(RoleConsumer.String())
		e.logf(s, "%s waiting: no completed item", w.id)
		return e.sleep(r, e.opts.Backoff)
	}

	delay := s.policy.Next(s.params.ConsumptionDelay)
	item, ok := slot.BeginConsume(w.id, delay, e.now(), r.guard())
	if !ok {
		// Another consumer won the slot between peek and commit
		return r.active.Load()
	}

	w.setWaiting(r, false)
	e.logf(s, "%s started consuming item %d in slot %d", w.id, item.Value, item.Index)

	if !e.sleep(r, delay) {
		return false
	}
	return e.finishConsumption(r, s, w, slot)
}

func (e *Engine) finishConsumption(r *run, s *session, w *Worker, slot *buffer.Slot) bool {
	item, ok := slot.CompleteConsume(w.id, e.now(), r.guard(), func(it buffer.Item) {
		s.itemCount.Add(-1)
		s.consumed.Add(1)
		w.handled.Add(1)
		s.journal.Record(it)
	})
	if !ok {
		return r.active.Load()
	}

	e.recorder.ObserveConsumed(w.id, item.WaitTime)
	e.logf(s, "%s consumed item %d in slot %d (waited %dms)", w.id, item.Value, item.Index, item.WaitTime.Milliseconds())
	return true
}

// resume finishes an in-flight slot w owned when the previous run stopped
func (e *Engine) resume(r *run, s *session, w *Worker, it buffer.Item) bool {
	slot := s.ring.Slot(it.Index)
	left, ok := slot.Rearm(w.id, e.now(), r.guard())
	if !ok {
		return r.active.Load()
	}

	w.setWaiting(r, false)
	e.logf(s, "%s resumed %s item in slot %d (%dms left)", w.id, it.State, it.Index, left.Milliseconds())

	if it.State == buffer.StateProducing {
		if _, ok := slot.AssignValue(w.id, s.nextValue, r.guard()); !ok {
			return r.active.Load()
		}
	}
	if !e.sleep(r, left) {
		return false
	}

	if it.State == buffer.StateProducing {
		return e.finishProduction(r, s, w, slot)
	}
	return e.finishConsumption(r, s, w, slot)
}

func (e *Engine) logf(s *session, format string, args ...interface{}) {
	line := s.journal.Log(e.now(), fmt.Sprintf(format, args...))
	e.logger.Debug(line, zap.String("session", s.id))
}
