package simulation

import "time"

// Recorder receives engine events for metrics export
type Recorder interface {
	ObserveLifecycle(op string)
	ObserveProduced(worker string)
	ObserveConsumed(worker string, wait time.Duration)
	ObserveWait(role string)
	ObserveSlotStates(counts map[string]int)
}

type nopRecorder struct{}

func (nopRecorder) ObserveLifecycle(string) {}
func (nopRecorder) ObserveProduced(string) {}
func (nopRecorder) ObserveConsumed(string, time.Duration) {}
func (nopRecorder) ObserveWait(string) {}
func (nopRecorder) ObserveSlotStates(map[string]int) {}
