package doubt

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/memohai/doubtsolver/internal/imaging"
)

// ErrEmptyDoubt is reported for a doubt with neither text nor image.
var ErrEmptyDoubt = errors.New("doubt has neither text nor image")

// Doubt is one inbound question.
type Doubt struct {
	RequesterID    int64
	ConversationID int64
	Text           string
	Image          []byte
	// LoadImage fetches the image when the transport defers the download.
	// It is called only after the requester passed the access and cooldown
	// checks, and only when Image is empty.
	LoadImage func(ctx context.Context) ([]byte, error)
	// OnCalling, when set, runs once right before the answer service is
	// called. Transports use it for a typing indicator.
	OnCalling func()
}

// Validate checks that the doubt carries something to answer.
func (d Doubt) Validate() error {
	if strings.TrimSpace(d.Text) == "" && !d.HasImage() {
		return ErrEmptyDoubt
	}
	return nil
}

// HasImage reports whether the doubt carries a photo, loaded or deferred.
func (d Doubt) HasImage() bool { return len(d.Image) > 0 || d.LoadImage != nil }

// Command is a slash command addressed to the bot. Name has no leading slash.
type Command struct {
	Name           string
	Args           string
	RequesterID    int64
	ConversationID int64
}

// Outcome tags how a dispatch ended.
type Outcome string

const (
	OutcomeSuccess         Outcome = "success"
	OutcomeRateLimited     Outcome = "rate_limited"
	OutcomeUnauthorized    Outcome = "unauthorized"
	OutcomeInvalid         Outcome = "invalid"
	OutcomeImageUnreadable Outcome = "image_unreadable"
	OutcomeUpstreamError   Outcome = "upstream_error"
	// OutcomeStoreError is only produced by commands that write the
	// allow-list.
	OutcomeStoreError Outcome = "store_error"
)

// Reply is the single message sent back for a doubt or command. Text is
// never empty and never longer than MaxReplyRunes.
type Reply struct {
	Text    string
	Outcome Outcome
	Err     error
}

// Authorizer is the access control surface the dispatcher needs.
type Authorizer interface {
	IsAllowed(ctx context.Context, requesterID, conversationID int64) (bool, error)
	IsOwner(requesterID int64) bool
	Grant(ctx context.Context, requesterID int64) (bool, error)
	Revoke(ctx context.Context, requesterID int64) (bool, error)
	AllowConversation(ctx context.Context, conversationID int64) (bool, error)
	DisallowConversation(ctx context.Context, conversationID int64) (bool, error)
	ListUsers(ctx context.Context) ([]int64, error)
	ListConversations(ctx context.Context) ([]int64, error)
}

// Limiter gates how often a requester may be served.
type Limiter interface {
	TryAcquire(requesterID int64, minGap time.Duration) bool
}

// Answerer produces an answer for a framed question.
type Answerer interface {
	Ask(ctx context.Context, question string, image *imaging.NormalizedImage) (string, error)
}

// Recorder receives dispatch metrics. *metrics.Collector satisfies it.
type Recorder interface {
	ObserveDoubt(outcome string)
	ObserveAnswer(result string, d time.Duration)
	ObserveCommand(command, outcome string)
}

type noopRecorder struct{}

func (noopRecorder) ObserveDoubt(string)                 {}
func (noopRecorder) ObserveAnswer(string, time.Duration) {}
func (noopRecorder) ObserveCommand(string, string)       {}
