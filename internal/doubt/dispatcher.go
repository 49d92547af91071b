package doubt

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/memohai/doubtsolver/internal/gemini"
	"github.com/memohai/doubtsolver/internal/imaging"
)

// Options tunes the dispatcher pipeline.
type Options struct {
	MinGap       time.Duration
	MaxDimension int
	JPEGQuality  int
}

// Dispatcher runs each doubt through authorization, rate limiting, image
// normalization and the answer service, and always produces one Reply.
// It keeps no per-call state and is safe for concurrent use.
type Dispatcher struct {
	access   Authorizer
	limiter  Limiter
	answerer Answerer
	recorder Recorder
	logger   *slog.Logger
	opts     Options
}

// NewDispatcher wires a dispatcher. recorder may be nil.
func NewDispatcher(log *slog.Logger, access Authorizer, limiter Limiter, answerer Answerer, recorder Recorder, opts Options) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	if recorder == nil {
		recorder = noopRecorder{}
	}
	if opts.MaxDimension <= 0 {
		opts.MaxDimension = 1600
	}
	return &Dispatcher{
		access:   access,
		limiter:  limiter,
		answerer: answerer,
		recorder: recorder,
		logger:   log.With(slog.String("service", "doubt")),
		opts:     opts,
	}
}

// Dispatch answers one doubt. Each doubt is attempted at most once; every
// failure is turned into a fallback reply.
func (d *Dispatcher) Dispatch(ctx context.Context, in Doubt) Reply {
	log := d.logger.With(
		slog.String("request_id", uuid.NewString()),
		slog.Int64("requester_id", in.RequesterID),
		slog.Int64("conversation_id", in.ConversationID),
	)
	reply := d.dispatch(ctx, log, in)
	reply.Text = Truncate(reply.Text, MaxReplyRunes)
	d.recorder.ObserveDoubt(string(reply.Outcome))

	attrs := []any{slog.String("outcome", string(reply.Outcome))}
	if reply.Err != nil {
		attrs = append(attrs, slog.Any("error", reply.Err))
	}
	switch reply.Outcome {
	case OutcomeSuccess:
		log.Info("doubt answered", attrs...)
	case OutcomeUpstreamError:
		log.Warn("doubt failed", attrs...)
	default:
		log.Info("doubt rejected", attrs...)
	}
	return reply
}

func (d *Dispatcher) dispatch(ctx context.Context, log *slog.Logger, in Doubt) Reply {
	allowed, err := d.access.IsAllowed(ctx, in.RequesterID, in.ConversationID)
	if err != nil {
		log.Error("access check failed", slog.Any("error", err))
		return Reply{Text: MsgUnauthorized, Outcome: OutcomeUnauthorized, Err: err}
	}
	if !allowed {
		return Reply{Text: MsgUnauthorized, Outcome: OutcomeUnauthorized}
	}

	// Empty doubts do not take a cooldown slot.
	if err := in.Validate(); err != nil {
		return Reply{Text: MsgEmptyDoubt, Outcome: OutcomeInvalid, Err: err}
	}

	if !d.limiter.TryAcquire(in.RequesterID, d.opts.MinGap) {
		return Reply{Text: MsgRateLimited, Outcome: OutcomeRateLimited}
	}

	var (
		question string
		image    *imaging.NormalizedImage
	)
	if in.HasImage() {
		raw := in.Image
		if len(raw) == 0 {
			raw, err = in.LoadImage(ctx)
			if err != nil {
				return Reply{Text: MsgImageUnreadable, Outcome: OutcomeImageUnreadable, Err: fmt.Errorf("load image: %w", err)}
			}
		}
		normalized, err := imaging.Normalize(raw, d.opts.MaxDimension, d.opts.JPEGQuality)
		if err != nil {
			return Reply{Text: MsgImageUnreadable, Outcome: OutcomeImageUnreadable, Err: err}
		}
		log.Debug("image normalized",
			slog.Int("bytes_in", len(raw)),
			slog.Int("bytes_out", len(normalized.Data)),
			slog.Int("width", normalized.Width),
			slog.Int("height", normalized.Height),
		)
		image = &normalized
		question = gemini.ImageQuestion(in.Text)
	} else {
		question = gemini.TextQuestion(in.Text)
	}

	if in.OnCalling != nil {
		in.OnCalling()
	}
	// The poll loop shutting down must not abort an answer that is already
	// on its way; the client timeout bounds the call instead.
	callCtx := context.WithoutCancel(ctx)
	started := time.Now()
	answer, err := d.answerer.Ask(callCtx, question, image)
	if err == nil && strings.TrimSpace(answer) == "" {
		err = &gemini.UpstreamError{Kind: gemini.KindNoCandidates, Detail: "empty answer text"}
	}
	d.recorder.ObserveAnswer(upstreamResult(err), time.Since(started))
	if err != nil {
		return Reply{Text: upstreamMessage(err), Outcome: OutcomeUpstreamError, Err: err}
	}
	return Reply{Text: answer, Outcome: OutcomeSuccess}
}
