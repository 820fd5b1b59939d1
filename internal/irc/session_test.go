package irc

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/precambrien/alisbot/internal/bot"
	"github.com/precambrien/alisbot/internal/config"
	"github.com/precambrien/alisbot/internal/listing"
	"github.com/precambrien/alisbot/internal/state"
)

const serverName = "irc.test"

// fakeServer is the remote end of a net.Pipe speaking just enough IRC.
type fakeServer struct {
	t     *testing.T
	conn  net.Conn
	lines chan string
}

func newFakeServer(t *testing.T, conn net.Conn) *fakeServer {
	f := &fakeServer{t: t, conn: conn, lines: make(chan string, 256)}
	go func() {
		defer close(f.lines)
		sc := bufio.NewScanner(conn)
		for sc.Scan() {
			f.lines <- sc.Text()
		}
	}()
	t.Cleanup(func() { _ = conn.Close() })
	return f
}

func (f *fakeServer) send(format string, args ...any) {
	f.t.Helper()
	_, err := fmt.Fprintf(f.conn, format+"\r\n", args...)
	require.NoError(f.t, err)
}

// expect returns the next client line starting with prefix, collecting the
// lines skipped on the way.
func (f *fakeServer) expect(prefix string) (string, []string) {
	f.t.Helper()
	var skipped []string
	timeout := time.After(5 * time.Second)
	for {
		select {
		case line, ok := <-f.lines:
			require.True(f.t, ok, "connection closed waiting for %q", prefix)
			if strings.HasPrefix(line, prefix) {
				return line, skipped
			}
			skipped = append(skipped, line)
		case <-timeout:
			f.t.Fatalf("timed out waiting for %q (skipped %q)", prefix, skipped)
		}
	}
}

type harness struct {
	session *Session
	coord   *listing.Coordinator
	server  *fakeServer
	store   *state.Store
	done    chan error
	cancel  context.CancelFunc
}

func startHarness(t *testing.T) *harness {
	t.Helper()
	clientSide, serverSide := net.Pipe()

	inst := config.Instance{Name: "test", Server: serverName, Port: 6667, Nickname: "alisbot", Username: "alisbot", Realname: "alisbot"}
	store := &state.Store{}
	sess := NewSession(Options{
		Instance:      inst,
		Store:         store,
		ReplyInterval: time.Millisecond,
		ReplyBurst:    1,
		MaxQueries:    4,
		Dial: func(context.Context, config.Instance) (net.Conn, error) {
			return clientSide, nil
		},
	})
	coord := listing.NewCoordinator(listing.Options{Requester: sess})
	sess.Bind(coord, bot.NewResponder(bot.Options{
		Searcher: listing.NewProcessor(coord),
		Nick:     sess.Nick,
	}))
	store.Register(inst.Name, inst.Server, coord.Status)

	ctx, cancel := context.WithCancel(context.Background())
	h := &harness{
		session: sess,
		coord:   coord,
		server:  newFakeServer(t, serverSide),
		store:   store,
		done:    make(chan error, 1),
		cancel:  cancel,
	}
	go func() {
		_, err := sess.Run(ctx)
		h.done <- err
	}()
	t.Cleanup(func() {
		cancel()
		_ = serverSide.Close()
		select {
		case <-h.done:
		case <-time.After(5 * time.Second):
			t.Error("session did not stop")
		}
	})
	return h
}

// register completes the handshake and answers the welcome refresh.
func (h *harness) register(channels ...string) {
	h.server.expect("USER ")
	h.server.send(":%s 001 alisbot :Welcome to the test network", serverName)
	h.server.expect("LIST")
	for _, ch := range channels {
		h.server.send(":%s 322 alisbot %s", serverName, ch)
	}
	h.server.send(":%s 323 alisbot :End of /LIST", serverName)
}

func TestSession_WelcomeRefreshAndListQuery(t *testing.T) {
	h := startHarness(t)
	h.register(
		"#go 12 :Go programming",
		"#golang-fr 3 :Go en francais",
		"#rust 40 :Rust",
	)

	require.Eventually(t, func() bool {
		st := h.coord.Status()
		return st.Available && st.Entries == 3
	}, 5*time.Second, 5*time.Millisecond)

	h.server.send(":alice!a@example.org PRIVMSG alisbot :list #go*")

	first, _ := h.server.expect("PRIVMSG alice ")
	require.Contains(t, first, "#go ")
	require.Contains(t, first, "12: Go programming")
	second, _ := h.server.expect("PRIVMSG alice ")
	require.Contains(t, second, "#golang-fr")
	summary, _ := h.server.expect("PRIVMSG alice ")
	require.Contains(t, summary, "Total: 2 channel(s)")
	require.Contains(t, summary, "channel name pattern: #go*")

	snap, ok := h.store.Instance("test")
	require.True(t, ok)
	require.Equal(t, state.PhaseRegistered, snap.Phase)
	require.Equal(t, "alisbot", snap.Nick)
	require.Equal(t, 3, snap.Listing.Entries)
	require.Equal(t, "alisbot", h.session.Nick())
}

func TestSession_ForcedQueryDuringRefreshSendsOneList(t *testing.T) {
	h := startHarness(t)
	h.server.expect("USER ")
	h.server.send(":%s 001 alisbot :Welcome", serverName)
	h.server.expect("LIST")

	h.server.send(":bob!b@example.org PRIVMSG alisbot :list * -f")
	require.Eventually(t, func() bool {
		return h.coord.Status().Waiting == 1
	}, 5*time.Second, 5*time.Millisecond)

	h.server.send(":%s 322 alisbot #only 5 :one channel", serverName)
	h.server.send(":%s 323 alisbot :End of /LIST", serverName)

	_, skipped := h.server.expect("PRIVMSG bob ")
	for _, line := range skipped {
		require.NotEqual(t, "LIST", line, "second LIST sent during refresh")
	}
	summary, skipped := h.server.expect("PRIVMSG bob ")
	require.Contains(t, summary, "Total: 1 channel(s)")
	for _, line := range skipped {
		require.NotEqual(t, "LIST", line)
	}
}

func TestSession_IgnoresServerChannelAndUnaddressedMessages(t *testing.T) {
	h := startHarness(t)
	h.register("#a 1 :a")

	h.server.send(":%s PRIVMSG alisbot :list *", serverName)
	h.server.send(":carol!c@example.org PRIVMSG #lobby :list *")
	h.server.send(":carol!c@example.org PRIVMSG someoneelse :list *")
	h.server.send(":dave!d@example.org PRIVMSG alisbot :hi")

	line, skipped := h.server.expect("PRIVMSG ")
	require.True(t, strings.HasPrefix(line, "PRIVMSG dave "), "first reply went to %q", line)
	require.Contains(t, line, "Hey dave !")
	for _, l := range skipped {
		require.False(t, strings.HasPrefix(l, "PRIVMSG"), "unexpected reply %q", l)
	}
}

func TestSession_DisconnectAbortsRefresh(t *testing.T) {
	h := startHarness(t)
	h.server.expect("USER ")
	h.server.send(":%s 001 alisbot :Welcome", serverName)
	h.server.expect("LIST")
	h.server.send(":%s 322 alisbot #partial 2 :half a list", serverName)

	require.False(t, h.coord.Status().Available)
	require.NoError(t, h.server.conn.Close())

	select {
	case err := <-h.done:
		require.Error(t, err)
		h.done <- err
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after disconnect")
	}

	st := h.coord.Status()
	require.True(t, st.Available)
	require.True(t, st.Aborted)
	require.True(t, st.Expired)
	require.Zero(t, st.Entries)
	require.ErrorIs(t, h.session.RequestRefresh(), ErrNotConnected)
}

func TestSession_RunRequiresBind(t *testing.T) {
	s := NewSession(Options{Instance: config.Instance{Name: "x", Server: "irc.test", Port: 6667}})
	_, err := s.Run(context.Background())
	require.Error(t, err)
}
