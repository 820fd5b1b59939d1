// Package config loads bot instance files and process-wide settings.
//
// # Overview
//
// Each IRC network the bot joins is described by its own TOML instance
// file. Settings that apply to every instance (logging, reply pacing,
// query concurrency, reconnect backoff, metrics, dashboard) come from an
// optional settings file layered with environment variables and CLI flags.
//
// # Instance Discovery
//
// LoadInstances follows this resolution order:
//
//  1. Explicit files (-c), each validated individually
//  2. Otherwise every *.toml file in a directory (-d), sorted by name
//  3. If neither yields a usable file, example_config.toml in the working
//     directory
//
// Unreadable files, invalid TOML, files without a server and duplicate
// instance names are logged and skipped. Having no usable file at all is an
// error.
//
// # Instance Format
//
//	name = "libera"          # defaults to the file name without extension
//	server = "irc.libera.chat"
//	port = 6697              # 6697 with TLS, 6667 otherwise
//	use_tls = true
//	nickname = "alisbot"
//	username = "alisbot"     # defaults to nickname
//	realname = "alisbot channel search"
//	password = ""
//
// # Settings
//
// LoadSettings reads settings.toml from /etc/alisbot, ~/.config/alisbot or
// the working directory (later wins), or the file given with --settings.
// Environment variables use the ALISBOT_ prefix with dots replaced by
// underscores, for example ALISBOT_REPLY_INTERVAL=2s. Changed CLI flags
// override everything else.
//
// # Path Expansion
//
// Paths starting with ~ are expanded to the user's home directory and made
// absolute.
package config
