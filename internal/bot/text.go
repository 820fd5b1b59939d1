package bot

import (
	"fmt"
	"strings"
	"time"
)

const usageTemplate = `list-{nick} -- allows searching for channels with more flexibility than the /list command.
Usage:
  list <pattern> [OPTIONS]		shows a list of channels matching the pattern
Arguments:
  <pattern>					channel ` + bold + `name` + reset + ` matches <pattern> (Unix shell style glob pattern)
Options:
  -t --topic <pattern>		channel ` + bold + `topic` + reset + ` matches <pattern> (Unix shell style glob pattern)
  --max <n>					shows only channels with ` + bold + `at most` + reset + ` <n> users
  --min <n>					shows only channels with ` + bold + `at least` + reset + ` <n> users
  -f 						forces channel list update. By default, channel list is cached and expires after 5 minutes
 Examples:
 /msg {nick} list *searchterm*
 /msg {nick} list * --topic multiple*ordered*search*terms
 /msg {nick} list #foo* --min 50
 /msg {nick} list *bar? -f`

const introTemplate = `{nick} allows searching for channels with more flexibility than the /list command. For command syntax type:
/msg {nick} help`

const (
	bold  = "\x02"
	reset = "\x0f"
)

// UsageLines returns the help text for nick, one IRC line per element.
func UsageLines(nick string) []string {
	return splitLines(strings.ReplaceAll(usageTemplate, "{nick}", nick))
}

// IntroLines greets source and points at the help command.
func IntroLines(nick, source string) []string {
	lines := splitLines(strings.ReplaceAll(introTemplate, "{nick}", nick))
	lines[0] = fmt.Sprintf("Hey %s ! %s", source, lines[0])
	return lines
}

// Summary is the line sent after the results of a list query.
func Summary(total int, query fmt.Stringer, age time.Duration) string {
	return fmt.Sprintf("%sTotal: %d channel(s)%s matching: '%s'. Last list update was cached %s ago, run with -f to force fetching and get the most up-to-date results.",
		bold, total, reset, query, FormatAge(age))
}

// FormatAge renders whole seconds as XminYs, or Ys under a minute. Minutes
// are not folded into hours.
func FormatAge(d time.Duration) string {
	secs := int64(d / time.Second)
	if secs < 0 {
		secs = 0
	}
	if secs >= 60 {
		return fmt.Sprintf("%dmin%ds", secs/60, secs%60)
	}
	return fmt.Sprintf("%ds", secs)
}

// splitLines drops empty lines, which cannot be sent as messages.
func splitLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		out = append(out, line)
	}
	return out
}
