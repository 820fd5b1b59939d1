// Package app is the composition root of alisbot.
//
// # Overview
//
// Run builds one supervised instance per configured IRC network and blocks
// until the context is cancelled or the dashboard is closed. Every instance
// owns:
//
//   - an irc.Session holding the connection and pacing replies
//   - a listing.Coordinator caching the server channel list
//   - a bot.Responder turning private messages into replies
//   - a metrics.Instance recording refreshes, requests and connections
//
// All instances share one state.Store, read by the dashboard, and one
// metrics registry, exposed over HTTP when an address is configured.
//
// # Components
//
//   - app.go: Run, errgroup wiring of supervisors, metrics and dashboard
//   - instance.go: per-network wiring of session, coordinator and responder
//   - supervisor.go: reconnect loop with exponential backoff
//
// # Reconnect Behavior
//
// A session that ends while the context is live is retried after a delay
// that doubles with each consecutive failure, starting from
// session.reconnect_base and capped at 30 seconds. Reaching registration
// resets the failure count. The coordinator outlives reconnects, so an
// interrupted refresh is aborted and waiting requests are answered before
// the next connection starts.
//
// # Error Handling
//
// Connection failures are never fatal: they are logged, counted in the
// store and retried. Run returns an error only when the metrics listener
// cannot bind or the dashboard fails to start. Cancellation and leaving the
// dashboard both return nil.
package app
