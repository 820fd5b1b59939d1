package listing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type mockRequester struct {
	calls atomic.Int32
	err   error
	sent  chan struct{}
}

func newMockRequester() *mockRequester {
	return &mockRequester{sent: make(chan struct{}, 16)}
}

func (r *mockRequester) RequestRefresh() error {
	r.calls.Add(1)
	r.sent <- struct{}{}
	return r.err
}

type countingObserver struct {
	mu        sync.Mutex
	started   []string
	completed int
	aborted   int
	dropped   int
	waited    int
}

func (o *countingObserver) RefreshStarted(reason string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.started = append(o.started, reason)
}

func (o *countingObserver) RefreshCompleted(int, time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.completed++
}

func (o *countingObserver) RefreshAborted() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.aborted++
}

func (o *countingObserver) RecordDropped() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.dropped++
}

func (o *countingObserver) Waited(time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.waited++
}

func newTestCoordinator(t *testing.T) (*Coordinator, *mockRequester, *fakeClock, *countingObserver) {
	t.Helper()
	req := newMockRequester()
	clock := newFakeClock()
	obs := &countingObserver{}
	c := NewCoordinator(Options{Requester: req, Clock: clock.Now, Observer: obs})
	return c, req, clock, obs
}

func waitSent(t *testing.T, r *mockRequester) {
	t.Helper()
	select {
	case <-r.sent:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for list request")
	}
}

func TestProcess_FreshCacheNeverBlocksOrRequests(t *testing.T) {
	c, req, _, _ := newTestCoordinator(t)
	p := NewProcessor(c)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	res, err := p.Process(ctx, mustQuery(t, "list *"))
	require.NoError(t, err)
	require.Empty(t, res.Lines)
	require.Zero(t, req.calls.Load())
}

func TestProcess_RoundTrip(t *testing.T) {
	c, req, clock, _ := newTestCoordinator(t)
	p := NewProcessor(c)

	type result struct {
		res Result
		err error
	}
	q := mustQuery(t, "list * -f")
	done := make(chan result, 1)
	go func() {
		res, err := p.Process(context.Background(), q)
		done <- result{res, err}
	}()

	waitSent(t, req)
	const n = 5
	for i := 0; i < n; i++ {
		require.NoError(t, c.AddRecord([]string{"bot", fmt.Sprintf("#chan%d", i), "3", "topic"}))
	}
	clock.Advance(2 * time.Second)
	c.Complete()

	r := <-done
	require.NoError(t, r.err)
	require.Len(t, r.res.Lines, n)
	for i, line := range r.res.Lines {
		require.Equal(t, NewEntry(fmt.Sprintf("#chan%d", i), "topic", 3).String(), line)
	}
	require.Zero(t, r.res.Age)
	require.EqualValues(t, 1, req.calls.Load())
}

func TestProcess_ExpiredCacheTriggersRefresh(t *testing.T) {
	c, req, clock, obs := newTestCoordinator(t)
	p := NewProcessor(c)
	clock.Advance(TTL + time.Second)

	q := mustQuery(t, "list *")
	done := make(chan error, 1)
	go func() {
		_, err := p.Process(context.Background(), q)
		done <- err
	}()
	waitSent(t, req)
	c.Complete()
	require.NoError(t, <-done)

	obs.mu.Lock()
	defer obs.mu.Unlock()
	require.Equal(t, []string{ReasonExpired}, obs.started)
	require.Equal(t, 1, obs.completed)
}

func TestProcess_ConcurrentForcedQueriesShareOneRefresh(t *testing.T) {
	c, req, _, _ := newTestCoordinator(t)
	p := NewProcessor(c)

	const queries = 2
	q := mustQuery(t, "list * -f")
	results := make(chan Result, queries)
	errs := make(chan error, queries)
	for i := 0; i < queries; i++ {
		go func() {
			res, err := p.Process(context.Background(), q)
			if err != nil {
				errs <- err
				return
			}
			results <- res
		}()
	}

	waitSent(t, req)
	require.Eventually(t, func() bool {
		return c.Status().Waiting == queries
	}, 5*time.Second, time.Millisecond)

	require.NoError(t, c.AddRecord([]string{"bot", "#one", "1", ""}))
	require.NoError(t, c.AddRecord([]string{"bot", "#two", "2", ""}))
	c.Complete()

	for i := 0; i < queries; i++ {
		select {
		case err := <-errs:
			t.Fatalf("query failed: %v", err)
		case res := <-results:
			require.Len(t, res.Lines, 2)
		}
	}
	require.EqualValues(t, 1, req.calls.Load())
}

func TestProcess_ManyJoinersOneRequest(t *testing.T) {
	c, req, _, _ := newTestCoordinator(t)
	p := NewProcessor(c)

	initiated, err := c.Trigger(true)
	require.NoError(t, err)
	require.True(t, initiated)
	waitSent(t, req)

	const queries = 20
	forced := mustQuery(t, "list * -f")
	plain := mustQuery(t, "list *")
	var wg sync.WaitGroup
	var failures atomic.Int32
	for i := 0; i < queries; i++ {
		q := plain
		if i%2 == 0 {
			q = forced
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := p.Process(context.Background(), q); err != nil {
				failures.Add(1)
			}
		}()
	}

	require.Eventually(t, func() bool {
		return c.Status().Waiting == queries
	}, 5*time.Second, time.Millisecond)
	c.Complete()
	wg.Wait()

	require.Zero(t, failures.Load())
	require.EqualValues(t, 1, req.calls.Load())
}

func TestProcess_QueryDuringRefreshWaits(t *testing.T) {
	c, req, _, _ := newTestCoordinator(t)
	p := NewProcessor(c)

	initiated, err := c.Trigger(true)
	require.NoError(t, err)
	require.True(t, initiated)
	waitSent(t, req)
	require.NoError(t, c.AddRecord([]string{"bot", "#partial", "1", ""}))

	q := mustQuery(t, "list *")
	done := make(chan Result, 1)
	go func() {
		res, err := p.Process(context.Background(), q)
		if err == nil {
			done <- res
		}
	}()

	require.Eventually(t, func() bool { return c.Status().Waiting == 1 }, 5*time.Second, time.Millisecond)
	select {
	case <-done:
		t.Fatal("query returned a partial listing")
	default:
	}

	require.NoError(t, c.AddRecord([]string{"bot", "#rest", "1", ""}))
	c.Complete()
	res := <-done
	require.Len(t, res.Lines, 2)
	require.EqualValues(t, 1, req.calls.Load())
}

func TestTrigger_SecondCallerDoesNotRequest(t *testing.T) {
	c, req, _, _ := newTestCoordinator(t)

	first, err := c.Trigger(true)
	require.NoError(t, err)
	require.True(t, first)
	second, err := c.Trigger(true)
	require.NoError(t, err)
	require.False(t, second)
	require.EqualValues(t, 1, req.calls.Load())

	c.Complete()
	third, err := c.Trigger(true)
	require.NoError(t, err)
	require.True(t, third)
	require.EqualValues(t, 2, req.calls.Load())
}

func TestAddRecord_DropsMalformedAndUnsolicited(t *testing.T) {
	c, _, _, obs := newTestCoordinator(t)

	_, err := c.Trigger(true)
	require.NoError(t, err)
	require.NoError(t, c.AddRecord([]string{"bot", "#ok", "1", ""}))

	err = c.AddRecord([]string{"", "#chan", "4"})
	var perr *ParseError
	require.True(t, errors.As(err, &perr))
	require.Equal(t, 1, c.Status().Entries)

	c.Complete()
	require.NoError(t, c.AddRecord([]string{"bot", "#late", "1", ""}))
	require.Equal(t, 1, c.Status().Entries)

	obs.mu.Lock()
	defer obs.mu.Unlock()
	require.Equal(t, 2, obs.dropped)
}

func TestComplete_StampsCompletionTime(t *testing.T) {
	c, _, clock, _ := newTestCoordinator(t)

	_, err := c.Trigger(true)
	require.NoError(t, err)
	clock.Advance(TTL + time.Minute)
	require.True(t, c.Status().Expired)

	c.Complete()
	st := c.Status()
	require.True(t, st.Available)
	require.False(t, st.Expired)
	require.Zero(t, st.Age)
}

func TestSessionReady_AlwaysRequests(t *testing.T) {
	c, req, _, obs := newTestCoordinator(t)

	require.NoError(t, c.SessionReady())
	require.False(t, c.Status().Available)
	require.EqualValues(t, 1, req.calls.Load())
	c.Complete()

	require.NoError(t, c.SessionReady())
	require.EqualValues(t, 2, req.calls.Load())

	obs.mu.Lock()
	defer obs.mu.Unlock()
	require.Equal(t, []string{ReasonWelcome, ReasonWelcome}, obs.started)
}

func TestAbort_ReleasesWaiters(t *testing.T) {
	c, req, _, obs := newTestCoordinator(t)
	p := NewProcessor(c)

	forced := mustQuery(t, "list * -f")
	plain := mustQuery(t, "list *")
	done := make(chan error, 1)
	go func() {
		_, err := p.Process(context.Background(), forced)
		done <- err
	}()
	waitSent(t, req)
	require.Eventually(t, func() bool { return c.Status().Waiting == 1 }, 5*time.Second, time.Millisecond)

	c.Abort()
	require.ErrorIs(t, <-done, ErrRefreshAborted)

	st := c.Status()
	require.True(t, st.Available)
	require.True(t, st.Aborted)
	require.True(t, st.Expired)
	require.Zero(t, st.Entries)

	obs.mu.Lock()
	require.Equal(t, 1, obs.aborted)
	obs.mu.Unlock()

	// The next query starts a new cycle.
	go func() {
		_, err := p.Process(context.Background(), plain)
		done <- err
	}()
	waitSent(t, req)
	c.Complete()
	require.NoError(t, <-done)
}

func TestAbort_KeepsAvailableListing(t *testing.T) {
	c, _, _, _ := newTestCoordinator(t)
	_, err := c.Trigger(true)
	require.NoError(t, err)
	require.NoError(t, c.AddRecord([]string{"bot", "#kept", "1", ""}))
	c.Complete()

	c.Abort()
	st := c.Status()
	require.False(t, st.Aborted)
	require.Equal(t, 1, st.Entries)
}

func TestTrigger_RequestFailureAborts(t *testing.T) {
	c, req, _, _ := newTestCoordinator(t)
	req.err = errors.New("not connected")

	_, err := NewProcessor(c).Process(context.Background(), mustQuery(t, "list * -f"))
	require.ErrorContains(t, err, "not connected")
	st := c.Status()
	require.True(t, st.Available)
	require.True(t, st.Aborted)
}

func TestAwait_ContextCancel(t *testing.T) {
	c, _, _, _ := newTestCoordinator(t)
	_, err := c.Trigger(true)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := c.Await(ctx)
		done <- err
	}()
	require.Eventually(t, func() bool { return c.Status().Waiting == 1 }, 5*time.Second, time.Millisecond)
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
	require.Zero(t, c.Status().Waiting)
	require.False(t, c.Status().Available)
}
