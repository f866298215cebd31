// Package buffer implements the slot ring shared by producers and consumers.
//
// Each slot owns its own mutex and cycles through five states:
//
//	empty -> producing -> completed -> consuming -> consumed -> producing -> ...
//
// Transitions happen only under the slot's lock and validate both the current
// state and, after a simulated delay, that the slot is still attributed to the
// acting worker. Discovery is round-robin per worker: every worker keeps a Cursor
// and a scan visits each slot at most once.
//
// Quiesce and Pause take all slot locks in index order. They are the only
// operations holding more than one slot lock and are used for consistent
// snapshots and for the stop barrier.
package buffer
