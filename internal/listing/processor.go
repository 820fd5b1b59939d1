package listing

import (
	"context"
	"time"
)

// Result is the answer to one Query.
type Result struct {
	Lines []string
	Age   time.Duration
}

// Processor answers queries against a Coordinator's listing.
type Processor struct {
	coord *Coordinator
}

// NewProcessor returns a Processor bound to coord.
func NewProcessor(coord *Coordinator) *Processor {
	return &Processor{coord: coord}
}

// Process refreshes the listing if q forces it or the cache has expired,
// waits for any refresh in flight, and filters the resulting snapshot in
// arrival order. Results always come from a completed listing.
func (p *Processor) Process(ctx context.Context, q Query) (Result, error) {
	if _, err := p.coord.Trigger(q.ForceRefresh()); err != nil {
		return Result{}, err
	}
	snap, err := p.coord.Await(ctx)
	if err != nil {
		return Result{}, err
	}
	p.coord.log.Debug("processing request", "channels", len(snap.Entries), "query", q.String())

	var lines []string
	for _, e := range snap.Entries {
		if e.Matches(q) {
			lines = append(lines, e.String())
		}
	}
	return Result{Lines: lines, Age: snap.Age}, nil
}
