// Package state provides thread-safe per-instance state for the bot.
//
// # Overview
//
// Each running bot instance reports its connection phase, nick, query
// activity and connection failures to a shared Store. The dashboard and
// the reconnect supervisor read it back through copies.
//
// # Architecture
//
//	Producers (sessions):              Consumers:
//	┌──────────────────────┐          ┌───────────────────────┐
//	│ SetPhase()           │          │ dashboard tick        │
//	│ QueryStarted()       │─────────→│ store.Snapshot()      │
//	│ QueryFinished()      │ (RWMutex)│                       │
//	│ RecordFailure()      │          │ supervisor backoff    │
//	└──────────────────────┘          └───────────────────────┘
//
// Listing state is not copied into the store on every change. Register
// takes a StatusFunc, usually a Coordinator's Status method, which is read
// when a snapshot is taken.
//
// # Error Semantics
//
// RecordFailure keeps the previous nick and counters, records the error
// and increments ConsecutiveFailures. Reaching PhaseRegistered resets the
// counter. IsOffline reports two or more failures in a row.
//
// # Defensive Copying
//
// Snapshot and Instance return values, and errors are re-wrapped, so the
// dashboard never shares mutable state with sessions.
//
// # Zero Value
//
// A zero Store is ready to use. Updates for unregistered instances are
// ignored.
package state
