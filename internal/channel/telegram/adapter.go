package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/memohai/doubtsolver/internal/doubt"
)

const (
	defaultPollTimeout      = 30
	defaultMaxDownloadBytes = 20 << 20
	defaultQueueSize        = 16
	defaultWorkerIdle       = 5 * time.Minute
	downloadTimeout         = 60 * time.Second
)

// Dispatcher turns inbound doubts and commands into replies.
type Dispatcher interface {
	Dispatch(ctx context.Context, in doubt.Doubt) doubt.Reply
	Command(ctx context.Context, cmd doubt.Command) doubt.Reply
}

// botAPI is the part of *tgbotapi.BotAPI the adapter uses.
type botAPI interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
}

// Options configures the adapter.
type Options struct {
	BotToken string
	// PollTimeout is the long-poll timeout in seconds.
	PollTimeout      int
	MaxDownloadBytes int64
	Debug            bool
	// QueueSize bounds the pending updates per conversation.
	QueueSize int
	// WorkerIdle is how long a conversation worker lingers without updates.
	WorkerIdle time.Duration
	HTTPClient *http.Client
}

// Adapter long-polls Telegram and hands every message to the dispatcher.
// Updates of one conversation are handled in order by a dedicated worker;
// distinct conversations run concurrently.
type Adapter struct {
	logger     *slog.Logger
	dispatcher Dispatcher
	opts       Options
	http       *http.Client

	bot        botAPI
	updates    tgbotapi.UpdatesChannel
	stopPoll   context.CancelFunc
	cancelWork context.CancelFunc
	done       chan struct{}
	quit       chan struct{}
	running    atomic.Bool

	mu      sync.Mutex
	workers map[int64]*chatWorker
	wg      sync.WaitGroup
}

// NewAdapter creates an adapter. The bot is connected by Start.
func NewAdapter(log *slog.Logger, dispatcher Dispatcher, opts Options) *Adapter {
	if log == nil {
		log = slog.Default()
	}
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = defaultPollTimeout
	}
	if opts.MaxDownloadBytes <= 0 {
		opts.MaxDownloadBytes = defaultMaxDownloadBytes
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if opts.WorkerIdle <= 0 {
		opts.WorkerIdle = defaultWorkerIdle
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: downloadTimeout}
	}
	adapter := &Adapter{
		logger:     log.With(slog.String("adapter", "telegram")),
		dispatcher: dispatcher,
		opts:       opts,
		http:       httpClient,
		workers:    make(map[int64]*chatWorker),
	}
	botLoggerOnce.Do(func() {
		_ = tgbotapi.SetLogger(&slogBotLogger{log: adapter.logger})
	})
	return adapter
}

// Start connects to Telegram and begins long polling until Stop is called.
func (a *Adapter) Start(_ context.Context) error {
	if a.bot == nil {
		bot, err := tgbotapi.NewBotAPIWithClient(a.opts.BotToken, tgbotapi.APIEndpoint, a.http)
		if err != nil {
			return fmt.Errorf("connect telegram bot: %w", err)
		}
		bot.Debug = a.opts.Debug
		a.logger.Info("bot connected", slog.String("username", bot.Self.UserName))
		a.bot = bot
	}
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = a.opts.PollTimeout
	updateConfig.AllowedUpdates = []string{"message"}
	a.updates = a.bot.GetUpdatesChan(updateConfig)

	// Polling and handling outlive the OnStart context.
	pollCtx, stopPoll := context.WithCancel(context.Background())
	workCtx, cancelWork := context.WithCancel(context.Background())
	a.stopPoll = stopPoll
	a.cancelWork = cancelWork
	a.done = make(chan struct{})
	a.quit = make(chan struct{})
	a.running.Store(true)
	go a.poll(pollCtx, workCtx)
	return nil
}

// Stop ends polling and waits for in-flight replies or ctx.
func (a *Adapter) Stop(ctx context.Context) error {
	if a.stopPoll == nil {
		return nil
	}
	a.logger.Info("stop")
	a.bot.StopReceivingUpdates()
	a.stopPoll()
	<-a.done
	// Drain so the library's polling goroutine can finish its send and the
	// in-flight getUpdates does not conflict with the next session.
	go func() {
		for range a.updates {
		}
	}()
	close(a.quit)

	finished := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
		a.cancelWork()
		return nil
	case <-ctx.Done():
		a.cancelWork()
		return errors.Join(errors.New("telegram workers still running"), ctx.Err())
	}
}

// Running reports whether the adapter is receiving updates.
func (a *Adapter) Running() bool { return a.running.Load() }

func (a *Adapter) poll(ctx, workCtx context.Context) {
	defer close(a.done)
	defer a.running.Store(false)
	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-a.updates:
			if !ok {
				a.logger.Info("updates channel closed")
				return
			}
			if update.Message == nil || update.Message.Chat == nil {
				continue
			}
			a.enqueue(workCtx, update.Message)
		}
	}
}

// enqueue routes msg to the worker of its conversation, starting one when
// needed. A full queue drops the message.
func (a *Adapter) enqueue(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	a.mu.Lock()
	defer a.mu.Unlock()
	w, ok := a.workers[chatID]
	if !ok {
		w = newChatWorker(chatID, a.opts.QueueSize)
		a.workers[chatID] = w
		a.wg.Add(1)
		go a.runWorker(ctx, w)
	}
	select {
	case w.queue <- msg:
	default:
		if !wantsReply(msg) {
			return
		}
		a.logger.Warn("conversation queue full, dropping message",
			slog.Int64("chat_id", chatID),
			slog.Int("message_id", msg.MessageID),
		)
		// One reply per message, sent off the poll loop: a 429 retry sleeps.
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			if err := a.sendReply(msg, doubt.MsgRateLimited); err != nil {
				a.logger.Error("send overflow reply failed", slog.Int64("chat_id", chatID), slog.Any("error", err))
			}
		}()
	}
}

func (a *Adapter) runWorker(ctx context.Context, w *chatWorker) {
	defer a.wg.Done()
	idle := time.NewTimer(a.opts.WorkerIdle)
	defer idle.Stop()
	for {
		select {
		case msg := <-w.queue:
			a.handleMessage(ctx, msg)
			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(a.opts.WorkerIdle)
		case <-idle.C:
			if a.retire(w) {
				return
			}
			idle.Reset(a.opts.WorkerIdle)
		case <-a.quit:
			if n := a.retireAll(w); n > 0 {
				a.logger.Warn("dropping queued messages on shutdown", slog.Int64("chat_id", w.chatID), slog.Int("count", n))
			}
			return
		case <-ctx.Done():
			a.retireAll(w)
			return
		}
	}
}

// retire removes an idle worker unless a message raced in.
func (a *Adapter) retire(w *chatWorker) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(w.queue) > 0 {
		return false
	}
	if a.workers[w.chatID] == w {
		delete(a.workers, w.chatID)
	}
	return true
}

// retireAll removes w regardless of its queue and returns how many queued
// messages were abandoned.
func (a *Adapter) retireAll(w *chatWorker) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.workers[w.chatID] == w {
		delete(a.workers, w.chatID)
	}
	return len(w.queue)
}

// activeWorkers is used by tests.
func (a *Adapter) activeWorkers() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.workers)
}

type chatWorker struct {
	chatID int64
	queue  chan *tgbotapi.Message
}

func newChatWorker(chatID int64, size int) *chatWorker {
	return &chatWorker{chatID: chatID, queue: make(chan *tgbotapi.Message, size)}
}

// The library logger is process-global.
var botLoggerOnce sync.Once

type slogBotLogger struct {
	log *slog.Logger
}

func (l *slogBotLogger) Println(v ...any) {
	l.log.Debug(fmt.Sprint(v...))
}

func (l *slogBotLogger) Printf(format string, v ...any) {
	l.log.Debug(fmt.Sprintf(format, v...))
}
