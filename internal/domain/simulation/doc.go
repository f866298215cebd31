// Package simulation runs producer and consumer workers against a slot ring.
//
// An Engine moves through Dormant, Initialized, Running and Stopped. Init
// allocates a session (ring, rosters, counters, journal); Start and Continue
// open a run, one goroutine per worker; Stop closes the run and freezes the
// remaining delay of every in-flight slot so Continue can finish it later.
//
// Counters change only inside the slot transition they describe, under that
// slot's lock. Status reads them under the ring barrier, so every snapshot
// satisfies producedTotal - consumedTotal == itemCount == holding slots.
package simulation
