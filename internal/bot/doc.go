// Package bot implements the request surface of the channel search bot:
// it parses private messages, runs list queries and renders the replies,
// including the usage and introduction texts.
package bot
