package bot

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/precambrien/alisbot/internal/listing"
	"github.com/precambrien/alisbot/internal/logger"
)

// HelpCommand asks for the usage text.
const HelpCommand = "help"

// Outcomes reported to a Recorder.
const (
	OutcomeOK      = "ok"
	OutcomeUsage   = "usage"
	OutcomeHelp    = "help"
	OutcomeIntro   = "intro"
	OutcomeAborted = "aborted"
	OutcomeFailed  = "failed"
)

const abortedReply = "The channel list update was interrupted, please try again."

// Searcher answers list queries.
type Searcher interface {
	Process(ctx context.Context, q listing.Query) (listing.Result, error)
}

// Recorder is told how each request ended.
type Recorder interface {
	RequestHandled(outcome string, elapsed time.Duration)
}

// Responder turns private messages into reply lines.
type Responder struct {
	search   Searcher
	nick     func() string
	log      *slog.Logger
	recorder Recorder
}

// Options configures a Responder. Nick reports the bot's current nickname
// for the help text; it is called once per request.
type Options struct {
	Searcher Searcher
	Nick     func() string
	Logger   *slog.Logger
	Recorder Recorder
}

func NewResponder(opts Options) *Responder {
	r := &Responder{
		search:   opts.Searcher,
		nick:     opts.Nick,
		log:      opts.Logger,
		recorder: opts.Recorder,
	}
	if r.nick == nil {
		r.nick = func() string { return "alisbot" }
	}
	if r.log == nil {
		r.log = logger.Discard()
	}
	if r.recorder == nil {
		r.recorder = nopRecorder{}
	}
	return r
}

// Handle answers text sent by source. A nil result means nothing should be
// sent, which happens when ctx is cancelled while waiting for the listing.
func (r *Responder) Handle(ctx context.Context, source, text string) []string {
	start := time.Now()
	log := r.log.With("request_id", uuid.NewString(), "source", source)

	lines, outcome := r.dispatch(ctx, log, source, text)
	elapsed := time.Since(start)
	r.recorder.RequestHandled(outcome, elapsed)
	log.Debug("request handled", "outcome", outcome, "lines", len(lines), "duration_ms", elapsed.Milliseconds())
	return lines
}

func (r *Responder) dispatch(ctx context.Context, log *slog.Logger, source, text string) ([]string, string) {
	tokens := strings.Fields(strings.ToLower(text))
	nick := r.nick()

	if len(tokens) == 0 {
		return IntroLines(nick, source), OutcomeIntro
	}

	switch tokens[0] {
	case listing.ListCommand:
		q, err := listing.ParseQuery(tokens)
		if err != nil {
			log.Debug("invalid list request", "text", text, "error", err)
			return UsageLines(nick), OutcomeUsage
		}
		log.Info("list request", "query", q.String())

		res, err := r.search.Process(ctx, q)
		switch {
		case errors.Is(err, listing.ErrRefreshAborted):
			log.Warn("list request interrupted by aborted refresh")
			return []string{abortedReply}, OutcomeAborted
		case err != nil:
			log.Warn("list request failed", "error", err)
			if ctx.Err() != nil {
				return nil, OutcomeFailed
			}
			return []string{abortedReply}, OutcomeFailed
		}

		lines := make([]string, 0, len(res.Lines)+1)
		lines = append(lines, res.Lines...)
		lines = append(lines, Summary(len(res.Lines), q, res.Age))
		log.Debug("channels matching request", "matches", len(res.Lines))
		return lines, OutcomeOK
	case HelpCommand:
		return UsageLines(nick), OutcomeHelp
	default:
		return IntroLines(nick, source), OutcomeIntro
	}
}

type nopRecorder struct{}

func (nopRecorder) RequestHandled(string, time.Duration) {}
