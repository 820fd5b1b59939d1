package irc

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
	ircv3 "gopkg.in/irc.v3"

	"github.com/precambrien/alisbot/internal/config"
	"github.com/precambrien/alisbot/internal/listing"
	"github.com/precambrien/alisbot/internal/logger"
	"github.com/precambrien/alisbot/internal/state"
)

// Numeric replies handled by the session.
const (
	rplWelcome = "001"
	rplList    = "322"
	rplListEnd = "323"
)

// ErrNotConnected is returned by RequestRefresh without a live connection.
var ErrNotConnected = errors.New("not connected")

// Handler answers a private message with the lines to send back.
type Handler interface {
	Handle(ctx context.Context, source, text string) []string
}

// Listing is the part of the listing coordinator driven by server replies.
type Listing interface {
	SessionReady() error
	AddRecord(fields []string) error
	Complete()
	Abort()
}

// DialFunc opens the transport to an IRC server.
type DialFunc func(ctx context.Context, inst config.Instance) (net.Conn, error)

// Options configures a Session.
type Options struct {
	Instance      config.Instance
	Logger        *slog.Logger
	Store         *state.Store
	Dial          DialFunc
	ReplyInterval time.Duration
	ReplyBurst    int
	MaxQueries    int64
	PingFrequency time.Duration
	PingTimeout   time.Duration
}

// Session is one bot instance's link to its IRC network. Run serves a
// single connection; the caller reconnects. The listing and reply limiter
// outlive individual connections.
type Session struct {
	inst    config.Instance
	log     *slog.Logger
	store   *state.Store
	dial    DialFunc
	limiter *rate.Limiter
	queries *semaphore.Weighted
	ping    time.Duration
	pingTTL time.Duration

	listing Listing
	handler Handler

	mu         sync.Mutex
	client     *ircv3.Client
	connCtx    context.Context
	registered bool
	listSent   bool
	serverName string
	wg         sync.WaitGroup
}

// NewSession returns an unconnected session. Bind must be called before Run.
func NewSession(opts Options) *Session {
	interval := opts.ReplyInterval
	if interval <= 0 {
		interval = time.Second
	}
	burst := opts.ReplyBurst
	if burst < 1 {
		burst = 1
	}
	maxQueries := opts.MaxQueries
	if maxQueries < 1 {
		maxQueries = 16
	}
	dial := opts.Dial
	if dial == nil {
		dial = DialInstance
	}
	log := opts.Logger
	if log == nil {
		log = logger.Discard()
	}
	return &Session{
		inst:    opts.Instance,
		log:     log,
		store:   opts.Store,
		dial:    dial,
		limiter: rate.NewLimiter(rate.Every(interval), burst),
		queries: semaphore.NewWeighted(maxQueries),
		ping:    opts.PingFrequency,
		pingTTL: opts.PingTimeout,
	}
}

// Bind attaches the listing fed by server replies and the handler for
// private messages. The listing usually uses the session as its Requester,
// which is why this is not part of NewSession.
func (s *Session) Bind(l Listing, h Handler) {
	s.listing = l
	s.handler = h
}

// DialInstance connects over TCP, with TLS when the instance asks for it.
func DialInstance(ctx context.Context, inst config.Instance) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: 30 * time.Second, KeepAlive: time.Minute}
	if inst.UseTLS {
		td := &tls.Dialer{
			NetDialer: dialer,
			Config:    &tls.Config{ServerName: inst.Server, MinVersion: tls.VersionTLS12},
		}
		return td.DialContext(ctx, "tcp", inst.Addr())
	}
	return dialer.DialContext(ctx, "tcp", inst.Addr())
}

// Run connects, registers and serves until the connection drops or ctx is
// done. On return any refresh in flight is aborted and all query
// goroutines have finished. Registered reports whether the server welcomed
// the bot during this connection.
func (s *Session) Run(ctx context.Context) (registered bool, err error) {
	if s.listing == nil || s.handler == nil {
		return false, fmt.Errorf("session %s: not bound", s.inst.Name)
	}

	s.setPhase(state.PhaseConnecting, "")
	s.log.Info("connecting", "addr", s.inst.Addr(), "tls", s.inst.UseTLS)

	conn, err := s.dial(ctx, s.inst)
	if err != nil {
		return false, fmt.Errorf("dial %s: %w", s.inst.Addr(), err)
	}

	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	client := ircv3.NewClient(conn, ircv3.ClientConfig{
		Nick:          s.inst.Nickname,
		Pass:          s.inst.Password,
		User:          s.inst.Username,
		Name:          s.inst.Realname,
		PingFrequency: s.ping,
		PingTimeout:   s.pingTTL,
		Handler:       ircv3.HandlerFunc(s.handle),
	})

	s.mu.Lock()
	s.client = client
	s.connCtx = connCtx
	s.registered = false
	s.listSent = false
	s.serverName = ""
	s.mu.Unlock()

	runErr := client.RunContext(connCtx)
	cancel()
	_ = conn.Close()

	s.mu.Lock()
	registered = s.registered
	s.client = nil
	s.registered = false
	s.listSent = false
	s.mu.Unlock()

	s.listing.Abort()
	s.wg.Wait()

	if ctx.Err() != nil {
		s.setPhase(state.PhaseStopped, "")
		return registered, ctx.Err()
	}
	if runErr == nil {
		runErr = errors.New("connection closed")
	}
	return registered, fmt.Errorf("session %s: %w", s.inst.Name, runErr)
}

// RequestRefresh asks the server for its channel list. Before registration
// it does nothing: the welcome starts the refresh. At most one LIST is
// outstanding per connection.
func (s *Session) RequestRefresh() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		return ErrNotConnected
	}
	if !s.registered || s.listSent {
		return nil
	}
	if err := s.client.Write("LIST"); err != nil {
		return fmt.Errorf("send LIST: %w", err)
	}
	s.listSent = true
	return nil
}

// Nick returns the current nickname, or the configured one when offline.
func (s *Session) Nick() string {
	s.mu.Lock()
	client := s.client
	s.mu.Unlock()
	if client != nil {
		if nick := client.CurrentNick(); nick != "" {
			return nick
		}
	}
	return s.inst.Nickname
}

// handle runs on the client's read loop and must not block.
func (s *Session) handle(c *ircv3.Client, m *ircv3.Message) {
	switch m.Command {
	case rplWelcome:
		s.onWelcome(c, m)
	case rplList:
		if len(m.Params) < 2 {
			s.log.Debug("short list reply", "params", m.Params)
			return
		}
		_ = s.listing.AddRecord(m.Params)
	case rplListEnd:
		s.mu.Lock()
		s.listSent = false
		s.mu.Unlock()
		s.listing.Complete()
	case "PRIVMSG":
		s.onPrivmsg(c, m)
	}
}

func (s *Session) onWelcome(c *ircv3.Client, m *ircv3.Message) {
	server := ""
	if m.Prefix != nil {
		server = m.Prefix.Name
	}
	nick := c.CurrentNick()

	s.mu.Lock()
	s.registered = true
	s.serverName = server
	s.mu.Unlock()

	s.setPhase(state.PhaseRegistered, nick)
	s.log.Info("registered", "server", server, "nick", nick)
	if err := s.listing.SessionReady(); err != nil {
		s.log.Warn("initial channel list request failed", "error", err)
	}
}

func (s *Session) onPrivmsg(c *ircv3.Client, m *ircv3.Message) {
	if m.Prefix == nil || m.Prefix.Name == "" || len(m.Params) < 2 {
		return
	}
	if !strings.EqualFold(m.Params[0], c.CurrentNick()) {
		return
	}

	source := m.Prefix.Name
	text := m.Trailing()

	s.mu.Lock()
	if s.client != c || strings.EqualFold(source, s.serverName) {
		s.mu.Unlock()
		return
	}
	if !s.queries.TryAcquire(1) {
		s.mu.Unlock()
		s.log.Warn("too many requests in progress, ignoring", "source", source)
		return
	}
	ctx := s.connCtx
	s.wg.Add(1)
	s.mu.Unlock()

	s.queryStarted()
	go func() {
		defer s.wg.Done()
		defer s.queries.Release(1)
		defer s.queryFinished()

		lines := s.handler.Handle(ctx, source, text)
		if err := s.reply(ctx, c, source, lines); err != nil {
			s.log.Debug("reply interrupted", "source", source, "error", err)
		}
	}()
}

// reply sends lines to target, paced by the instance's limiter.
func (s *Session) reply(ctx context.Context, c *ircv3.Client, target string, lines []string) error {
	for _, line := range lines {
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}
		if err := c.WriteMessage(&ircv3.Message{
			Command: "PRIVMSG",
			Params:  []string{target, line},
		}); err != nil {
			return fmt.Errorf("send reply: %w", err)
		}
	}
	return nil
}

func (s *Session) setPhase(phase state.Phase, nick string) {
	if s.store != nil {
		s.store.SetPhase(s.inst.Name, phase, nick)
	}
}

func (s *Session) queryStarted() {
	if s.store != nil {
		s.store.QueryStarted(s.inst.Name)
	}
}

func (s *Session) queryFinished() {
	if s.store != nil {
		s.store.QueryFinished(s.inst.Name)
	}
}

var _ listing.Requester = (*Session)(nil)
