package listing

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"
)

// Refresh reasons reported to observers and logs.
const (
	ReasonForced  = "forced"
	ReasonExpired = "expired"
	ReasonWelcome = "welcome"
)

// Requester sends a listing request to the server. It is fire-and-forget:
// completion is learned only through Coordinator.Complete. Implementations
// must not call back into the Coordinator.
type Requester interface {
	RequestRefresh() error
}

// Observer is notified of coordinator transitions. Methods are called with
// the coordinator lock held and must not block.
type Observer interface {
	RefreshStarted(reason string)
	RefreshCompleted(entries int, elapsed time.Duration)
	RefreshAborted()
	RecordDropped()
	Waited(elapsed time.Duration)
}

// Options configure a Coordinator.
type Options struct {
	Requester Requester
	Logger    *slog.Logger
	Clock     Clock
	Observer  Observer
}

// Coordinator serializes listing refreshes and the reads that depend on
// them. The zero value is not usable; construct one with NewCoordinator.
//
// State, cache and the wake channel are guarded by mu. Waiters block on the
// current wake channel, which is closed and replaced on every transition to
// available.
type Coordinator struct {
	mu        sync.Mutex
	available bool
	aborted   bool
	waiting   int
	started   time.Time
	cache     *Cache
	wake      chan struct{}

	requester Requester
	observer  Observer
	log       *slog.Logger
	now       Clock
}

// NewCoordinator returns an available coordinator over an empty cache.
func NewCoordinator(opts Options) *Coordinator {
	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	observer := opts.Observer
	if observer == nil {
		observer = nopObserver{}
	}
	return &Coordinator{
		available: true,
		cache:     NewCache(now),
		wake:      make(chan struct{}),
		requester: opts.Requester,
		observer:  observer,
		log:       log,
		now:       now,
	}
}

// Trigger starts a refresh when force is set or the cache has expired, and
// reports whether this call initiated one. While a refresh is already in
// flight Trigger does nothing: at most one request is sent per refreshing
// period no matter how many callers ask.
func (c *Coordinator) Trigger(force bool) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.available {
		return false, nil
	}
	reason := ReasonForced
	if !force {
		if !c.cache.HasExpired() {
			return false, nil
		}
		reason = ReasonExpired
	}
	c.beginLocked(reason)
	return true, c.dispatchLocked(reason)
}

// SessionReady starts the initial refresh once the session is registered,
// regardless of cache state. If a refresh was initiated before registration
// its request could not be sent, so the same period is continued and the
// request is sent now.
func (c *Coordinator) SessionReady() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.available {
		c.beginLocked(ReasonWelcome)
	}
	return c.dispatchLocked(ReasonWelcome)
}

func (c *Coordinator) beginLocked(reason string) {
	c.available = false
	c.aborted = false
	c.started = c.now()
	c.cache.Reset()
	c.observer.RefreshStarted(reason)
}

func (c *Coordinator) dispatchLocked(reason string) error {
	if c.requester == nil {
		return nil
	}
	c.log.Debug("channel list request", "reason", reason)
	if err := c.requester.RequestRefresh(); err != nil {
		c.log.Warn("channel list request failed", "reason", reason, "error", err)
		c.abortLocked()
		return err
	}
	return nil
}

// AddRecord decodes an RPL_LIST record and appends it to the listing being
// refreshed. Malformed records and records that arrive outside a refresh
// are dropped; the returned error is informational only.
func (c *Coordinator) AddRecord(fields []string) error {
	entry, err := EntryFromRecord(fields)
	if err != nil {
		c.log.Debug("dropping malformed list record", "error", err)
		c.mu.Lock()
		c.observer.RecordDropped()
		c.mu.Unlock()
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.available {
		c.log.Debug("dropping list record outside refresh", "channel", entry.Name)
		c.observer.RecordDropped()
		return nil
	}
	c.cache.Append(entry)
	return nil
}

// Complete marks the end of the listing: the cache is stamped, the
// coordinator becomes available and every waiter is released.
func (c *Coordinator) Complete() {
	c.mu.Lock()
	defer c.mu.Unlock()

	pending := !c.available
	c.cache.StampNow()
	c.available = true
	c.aborted = false
	n := c.cache.Len()
	if pending {
		c.observer.RefreshCompleted(n, c.now().Sub(c.started))
		c.log.Debug("channel list request done", "channels", n)
	} else {
		c.log.Debug("list end without pending refresh", "channels", n)
	}
	c.broadcastLocked()
}

// Abort abandons an in-flight refresh after the session is lost. The cache
// is emptied and marked expired, and waiters return ErrRefreshAborted. A
// listing that is already available is left untouched.
func (c *Coordinator) Abort() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.available {
		return
	}
	c.abortLocked()
}

func (c *Coordinator) abortLocked() {
	c.cache.Invalidate()
	c.available = true
	c.aborted = true
	c.observer.RefreshAborted()
	c.broadcastLocked()
}

func (c *Coordinator) broadcastLocked() {
	close(c.wake)
	c.wake = make(chan struct{})
}

// Await blocks until no refresh is in flight and returns a snapshot taken
// under the same lock acquisition that observed availability. The wait has
// no timeout of its own; callers bound it through ctx.
func (c *Coordinator) Await(ctx context.Context) (Snapshot, error) {
	c.mu.Lock()
	var waitStart time.Time
	for !c.available {
		if waitStart.IsZero() {
			waitStart = c.now()
			c.log.Debug("waiting for channel list update")
		}
		wake := c.wake
		c.waiting++
		c.mu.Unlock()
		var err error
		select {
		case <-wake:
		case <-ctx.Done():
			err = ctx.Err()
		}
		c.mu.Lock()
		c.waiting--
		if err != nil {
			c.mu.Unlock()
			return Snapshot{}, err
		}
	}
	defer c.mu.Unlock()

	if !waitStart.IsZero() {
		c.observer.Waited(c.now().Sub(waitStart))
	}
	if c.aborted {
		return Snapshot{}, ErrRefreshAborted
	}
	return c.cache.Snapshot(), nil
}

// Status summarizes the coordinator for dashboards and metrics.
type Status struct {
	Available bool
	Aborted   bool
	Expired   bool
	Waiting   int
	Entries   int
	Age       time.Duration
}

// Status returns the current state without blocking on a refresh.
func (c *Coordinator) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{
		Available: c.available,
		Aborted:   c.aborted,
		Expired:   c.cache.HasExpired(),
		Waiting:   c.waiting,
		Entries:   c.cache.Len(),
		Age:       c.cache.Age(),
	}
}

type nopObserver struct{}

func (nopObserver) RefreshStarted(string) {}
func (nopObserver) RefreshCompleted(int, time.Duration) {}
func (nopObserver) RefreshAborted() {}
func (nopObserver) RecordDropped() {}
func (nopObserver) Waited(time.Duration) {}
