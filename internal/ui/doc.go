// Package ui provides the optional terminal dashboard for the bot.
//
// # Architecture Overview
//
// The dashboard is a Bubble Tea program. It polls the shared state.Store on
// a tick and renders one row per bot instance: connection phase, nick,
// listing state, channel count, listing age, queries in flight and the
// last connection error.
//
// # Package Structure
//
//   - app.go: Model, Update loop, key handling, commands and Run
//   - view.go: header, command bar, instances table, panes and help overlay
//   - keys.go: key bindings (bubbles/key)
//   - theme.go: color themes and lipgloss styles
//   - helpers.go: truncation, durations, IRC formatting removal
//
// # Panes
//
// The bottom half shows either the console or the log. The console sends
// a request to the selected instance through the same Handle path as a
// private message, so "list #go* --min 10" waits for and filters the live
// listing, and "help" prints the usage text. The log pane tails the bot's
// log file with logtail and colors lines by level.
//
// # Preferences
//
// The theme (T) and the selected instance are saved to the prefs file and
// restored on the next start.
//
// # Lifecycle
//
// Run blocks until the user quits, which returns ErrQuit so the caller can
// shut the bot down, or until the context is cancelled.
package ui
