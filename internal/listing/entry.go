package listing

import (
	"fmt"
	"strconv"
	"strings"
)

// recordFields is the field count of an RPL_LIST record:
// [marker, channel, users, topic].
const recordFields = 4

// Entry is one row of the channel listing.
type Entry struct {
	Name  string
	Topic string
	Count uint32

	nameKey  string
	topicKey string
}

// NewEntry builds an Entry from already decoded values.
func NewEntry(name, topic string, count uint32) Entry {
	return Entry{
		Name:     name,
		Topic:    topic,
		Count:    count,
		nameKey:  strings.ToLower(name),
		topicKey: strings.ToLower(topic),
	}
}

// EntryFromRecord decodes a raw RPL_LIST record.
func EntryFromRecord(fields []string) (Entry, error) {
	if len(fields) != recordFields {
		return Entry{}, &ParseError{
			Fields: fields,
			Reason: fmt.Sprintf("expected %d fields, got %d", recordFields, len(fields)),
		}
	}
	count, err := strconv.ParseUint(strings.TrimSpace(fields[2]), 10, 32)
	if err != nil {
		return Entry{}, &ParseError{Fields: fields, Reason: "invalid user count", Err: err}
	}
	return NewEntry(fields[1], fields[3], uint32(count)), nil
}

// Matches reports whether the entry satisfies every constraint of q.
// Matching ignores case.
func (e Entry) Matches(q Query) bool {
	if !q.name.match(foldKey(e.nameKey, e.Name)) {
		return false
	}
	if q.topic != nil && !q.topic.match(foldKey(e.topicKey, e.Topic)) {
		return false
	}
	if q.maxCount != nil && e.Count > *q.maxCount {
		return false
	}
	if q.minCount != nil && e.Count < *q.minCount {
		return false
	}
	return true
}

func (e Entry) String() string {
	return fmt.Sprintf("%-25s %d: %s", e.Name, e.Count, e.Topic)
}

// foldKey returns the precomputed lower-case key, or folds raw when the
// Entry was built without NewEntry.
func foldKey(key, raw string) string {
	if key == "" && raw != "" {
		return strings.ToLower(raw)
	}
	return key
}
