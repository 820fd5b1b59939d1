package listing

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/gobwas/glob"
	"github.com/spf13/pflag"
)

// ListCommand is the command word that introduces a search request.
const ListCommand = "list"

const (
	optTopic      = "topic"
	optTopicShort = "t"
	optMax        = "max"
	optMin        = "min"
	optForce      = "force"
	optForceShort = "f"
)

// Query describes a single search request. A Query is immutable once
// constructed; its patterns are compiled and its bounds validated up front.
type Query struct {
	name      pattern
	topic     *pattern
	maxCount  *uint32
	minCount  *uint32
	forceLoad bool
}

type pattern struct {
	source string
	glob   glob.Glob
}

func compilePattern(source string) (pattern, error) {
	lowered := strings.ToLower(source)
	g, err := glob.Compile(escapeLiterals(lowered))
	if err != nil {
		return pattern{}, err
	}
	return pattern{source: lowered, glob: g}, nil
}

func (p pattern) match(s string) bool {
	return p.glob.Match(s)
}

// escapeLiterals keeps braces and backslashes literal outside of character
// classes so patterns follow plain shell glob rules.
func escapeLiterals(p string) string {
	var b strings.Builder
	b.Grow(len(p))
	inClass := false
	for i, r := range p {
		switch {
		case inClass:
			if r == ']' && !classStart(p, i) {
				inClass = false
			}
		case r == '[':
			inClass = true
		case r == '{' || r == '}' || r == '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// classStart reports whether the ']' at i is the first member of a class,
// as in "[]]" or "[!]]", where it is literal.
func classStart(p string, i int) bool {
	return strings.HasSuffix(p[:i], "[") || strings.HasSuffix(p[:i], "[!")
}

// NewQuery builds a Query from raw option values. Empty topic, max and min
// values mean the option is absent.
func NewQuery(name, topic, max, min string, force bool) (Query, error) {
	if strings.TrimSpace(name) == "" {
		return Query{}, usageErrorf(nil, "no pattern specified on channel name")
	}
	q := Query{forceLoad: force}

	var err error
	if q.name, err = compilePattern(name); err != nil {
		return Query{}, usageErrorf(err, "invalid channel name pattern %q", name)
	}
	if topic != "" {
		tp, err := compilePattern(topic)
		if err != nil {
			return Query{}, usageErrorf(err, "invalid topic pattern %q", topic)
		}
		q.topic = &tp
	}
	if q.maxCount, err = parseBound(optMax, max); err != nil {
		return Query{}, err
	}
	if q.minCount, err = parseBound(optMin, min); err != nil {
		return Query{}, err
	}
	return q, nil
}

func parseBound(opt, value string) (*uint32, error) {
	if value == "" {
		return nil, nil
	}
	n, err := strconv.ParseUint(value, 10, 32)
	if err != nil {
		return nil, usageErrorf(err, "--%s expects a non-negative integer, got %q", opt, value)
	}
	v := uint32(n)
	return &v, nil
}

// ParseQuery turns the whitespace-split tokens of a request into a Query.
// The first token must be the list command, followed by exactly one channel
// name pattern and any of -t/--topic, --max, --min and -f/--force.
func ParseQuery(tokens []string) (Query, error) {
	if len(tokens) == 0 || !strings.EqualFold(tokens[0], ListCommand) {
		return Query{}, usageErrorf(nil, "expected %q command", ListCommand)
	}

	fs := pflag.NewFlagSet(ListCommand, pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.Usage = func() {}
	topic := fs.StringP(optTopic, optTopicShort, "", "channel topic matches pattern")
	max := fs.String(optMax, "", "shows only channels with at most <n> users")
	min := fs.String(optMin, "", "shows only channels with at least <n> users")
	force := fs.BoolP(optForce, optForceShort, false, "force channel list update")

	if err := fs.Parse(tokens[1:]); err != nil {
		return Query{}, usageErrorf(err, "invalid arguments")
	}

	args := fs.Args()
	switch {
	case len(args) == 0:
		return Query{}, usageErrorf(nil, "no pattern specified on channel name")
	case len(args) > 1:
		return Query{}, usageErrorf(nil, "unexpected arguments %q", args[1:])
	}
	if fs.Changed(optTopic) && *topic == "" {
		return Query{}, usageErrorf(nil, "empty topic pattern")
	}
	if fs.Changed(optMax) && *max == "" {
		return Query{}, usageErrorf(nil, "--%s expects a value", optMax)
	}
	if fs.Changed(optMin) && *min == "" {
		return Query{}, usageErrorf(nil, "--%s expects a value", optMin)
	}

	return NewQuery(args[0], *topic, *max, *min, *force)
}

// NamePattern returns the lower-cased channel name pattern.
func (q Query) NamePattern() string { return q.name.source }

// TopicPattern returns the topic pattern and whether one was given.
func (q Query) TopicPattern() (string, bool) {
	if q.topic == nil {
		return "", false
	}
	return q.topic.source, true
}

// MaxCount returns the upper user-count bound and whether one was given.
func (q Query) MaxCount() (uint32, bool) { return optional(q.maxCount) }

// MinCount returns the lower user-count bound and whether one was given.
func (q Query) MinCount() (uint32, bool) { return optional(q.minCount) }

// ForceRefresh reports whether the request asked for a fresh listing.
func (q Query) ForceRefresh() bool { return q.forceLoad }

func optional(v *uint32) (uint32, bool) {
	if v == nil {
		return 0, false
	}
	return *v, true
}

func (q Query) String() string {
	topic, max, min := "(None)", "(None)", "(None)"
	if q.topic != nil {
		topic = q.topic.source
	}
	if q.maxCount != nil {
		max = strconv.FormatUint(uint64(*q.maxCount), 10)
	}
	if q.minCount != nil {
		min = strconv.FormatUint(uint64(*q.minCount), 10)
	}
	return fmt.Sprintf("(channel name pattern: %s, topic pattern: %s, max users: %s, min users: %s)",
		q.name.source, topic, max, min)
}
