// Package logtail reads the tail of the bot's log file for the dashboard.
//
// # Overview
//
// Read extracts the last N lines of a possibly large file in one pass with
// a ring buffer, using O(N) memory. Level classifies a line by severity so
// the dashboard can color it, whichever handler format wrote it.
//
// # Reading
//
//	lines, err := logtail.Read("~/.local/state/alisbot/alisbot.log", 200)
//
// A missing file is not an error: the dashboard simply shows an empty
// pane until the logger creates it. Lines longer than 1 MiB fail the read.
//
// # Levels
//
// Recognized forms:
//
//   - pretty: "12:00:00 INFO alisbot: ..." (also DEBU, WARN, ERRO)
//   - text:   "time=... level=INFO msg=..."
//   - json:   {"level":"INFO",...}
//
// Lines without a recognizable level return LevelUnknown.
package logtail
