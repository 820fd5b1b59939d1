package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/precambrien/alisbot/internal/bot"
	"github.com/precambrien/alisbot/internal/config"
	"github.com/precambrien/alisbot/internal/irc"
	"github.com/precambrien/alisbot/internal/listing"
	"github.com/precambrien/alisbot/internal/metrics"
	"github.com/precambrien/alisbot/internal/state"
)

// instance wires one IRC network: session, listing coordinator, responder
// and metrics. The coordinator survives reconnects.
type instance struct {
	name      string
	session   *irc.Session
	coord     *listing.Coordinator
	responder *bot.Responder
	metrics   *metrics.Instance
	store     *state.Store
	log       *slog.Logger
	base      time.Duration
}

func newInstance(cfg config.Instance, settings config.Settings, log *slog.Logger, store *state.Store, m *metrics.Metrics, dial irc.DialFunc) *instance {
	log = log.With("instance", cfg.Name)
	im := m.Instance(cfg.Name)

	session := irc.NewSession(irc.Options{
		Instance:      cfg,
		Logger:        log.With("component", "session"),
		Store:         store,
		Dial:          dial,
		ReplyInterval: settings.Reply.Interval,
		ReplyBurst:    settings.Reply.Burst,
		MaxQueries:    settings.Queries.MaxConcurrent,
		PingFrequency: settings.Session.PingFrequency,
		PingTimeout:   settings.Session.PingTimeout,
	})
	coord := listing.NewCoordinator(listing.Options{
		Requester: session,
		Logger:    log.With("component", "listing"),
		Observer:  im,
	})
	responder := bot.NewResponder(bot.Options{
		Searcher: listing.NewProcessor(coord),
		Nick:     session.Nick,
		Logger:   log.With("component", "bot"),
		Recorder: im,
	})
	session.Bind(coord, responder)
	store.Register(cfg.Name, cfg.Server, coord.Status)

	return &instance{
		name:      cfg.Name,
		session:   session,
		coord:     coord,
		responder: responder,
		metrics:   im,
		store:     store,
		log:       log,
		base:      settings.Session.ReconnectBase,
	}
}

// Name and Handle let the dashboard console talk to the instance.
func (i *instance) Name() string { return i.name }

func (i *instance) Handle(ctx context.Context, source, text string) []string {
	return i.responder.Handle(ctx, source, text)
}
