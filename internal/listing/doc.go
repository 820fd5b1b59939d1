// Package listing implements the channel listing cache and the coordination
// of the queries that read it.
//
// # Overview
//
// The bot answers search requests against the server's channel list. Fetching
// that list is slow and the server answers it asynchronously (a LIST command
// followed by a stream of RPL_LIST replies and a final RPL_LISTEND), so the
// list is cached for TTL and refreshed on demand.
//
// # Components
//
//   - query.go: Query, parsed from "list <pattern> [options]" tokens
//   - entry.go: Entry, one RPL_LIST row, and its match predicate
//   - cache.go: Cache, entries plus the last refresh time
//   - coordinator.go: Coordinator, the guarded available/refreshing state
//   - processor.go: Processor, which answers one Query
//
// # Concurrency Model
//
// One Coordinator exists per IRC session. Two kinds of goroutines use it:
//
//	Query goroutines (many):          Session read loop (one):
//	┌──────────────────────┐          ┌──────────────────────┐
//	│ Trigger(force)       │──LIST──→ │ RequestRefresh()     │
//	│ Await(ctx)  (blocks) │          │ AddRecord() per 322  │
//	│ filter snapshot      │ ←─wake── │ Complete() on 323    │
//	└──────────────────────┘          └──────────────────────┘
//
// Every field of the Coordinator and its Cache is read and written under a
// single mutex. Trigger flips the state to refreshing and sends the request
// in the same critical section, so concurrent queries that arrive during a
// refresh join it instead of sending another LIST. Await re-checks the state
// after each wake-up and takes its snapshot under the lock that observed
// availability, so no query ever sees a partially received listing.
//
// Waiting has no timeout. If the session stops delivering replies the
// waiters stay blocked until their context is cancelled or the session calls
// Abort, which releases them with ErrRefreshAborted.
//
// # Matching
//
// Patterns are shell-style globs (*, ?, [...], [!...]) matched
// case-insensitively against channel names and topics; user-count bounds are
// inclusive.
package listing
