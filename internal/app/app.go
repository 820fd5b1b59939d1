package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/precambrien/alisbot/internal/config"
	"github.com/precambrien/alisbot/internal/irc"
	"github.com/precambrien/alisbot/internal/logger"
	"github.com/precambrien/alisbot/internal/metrics"
	"github.com/precambrien/alisbot/internal/prefs"
	"github.com/precambrien/alisbot/internal/state"
	"github.com/precambrien/alisbot/internal/ui"
)

// Options configure the bot.
type Options struct {
	Instances []config.Instance
	Settings  config.Settings
	Logger    *slog.Logger
	LogPath   string       // shown in the dashboard log pane
	Dial      irc.DialFunc // nil dials TCP or TLS
}

// errStopped ends the group when the user leaves the dashboard.
var errStopped = errors.New("stopped")

// Run starts one supervised session per instance, the metrics endpoint and
// the dashboard when enabled, and blocks until ctx is cancelled or the
// dashboard is closed.
func Run(ctx context.Context, opts Options) error {
	if len(opts.Instances) == 0 {
		return fmt.Errorf("no instance to run")
	}
	log := opts.Logger
	if log == nil {
		log = logger.Discard()
	}

	store := &state.Store{}
	m := metrics.New()

	instances := make([]*instance, 0, len(opts.Instances))
	for _, cfg := range opts.Instances {
		instances = append(instances, newInstance(cfg, opts.Settings, log, store, m, opts.Dial))
	}

	g, gctx := errgroup.WithContext(ctx)

	if addr := opts.Settings.Metrics.Addr; addr != "" {
		g.Go(func() error { return m.Serve(gctx, addr, log) })
	}

	for _, inst := range instances {
		g.Go(func() error { return inst.supervise(gctx) })
	}

	if opts.Settings.UI.Enabled {
		targets := make([]ui.Target, 0, len(instances))
		for _, inst := range instances {
			targets = append(targets, inst)
		}
		g.Go(func() error {
			p := prefs.Load(opts.Settings.UI.PrefsPath)
			err := ui.Run(gctx, ui.Options{
				Store:     store,
				Targets:   targets,
				LogPath:   opts.LogPath,
				ThemeName: p.Theme,
				PrefsPath: opts.Settings.UI.PrefsPath,
				Instance:  p.Instance,
			})
			if errors.Is(err, ui.ErrQuit) {
				return errStopped
			}
			if err != nil && gctx.Err() == nil {
				return fmt.Errorf("dashboard: %w", err)
			}
			return nil
		})
	}

	log.Info("bot started", "instances", len(instances))
	err := g.Wait()
	log.Info("bot stopped")
	if errors.Is(err, errStopped) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
