package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/memohai/doubtsolver/internal/doubt"
)

// ErrFileTooLarge is returned when a photo exceeds the download limit.
var ErrFileTooLarge = errors.New("telegram file too large")

const maxSendRetryAfter = 30 * time.Second

func (a *Adapter) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg == nil || msg.Chat == nil || msg.From == nil {
		return
	}
	log := a.logger.With(
		slog.Int64("chat_id", msg.Chat.ID),
		slog.Int64("user_id", msg.From.ID),
		slog.Int("message_id", msg.MessageID),
	)

	var reply doubt.Reply
	if msg.IsCommand() {
		reply = a.dispatcher.Command(ctx, doubt.Command{
			Name:           msg.Command(),
			Args:           msg.CommandArguments(),
			RequesterID:    msg.From.ID,
			ConversationID: msg.Chat.ID,
		})
	} else {
		in, ok := a.buildDoubt(msg, log)
		if !ok {
			return
		}
		chatID := msg.Chat.ID
		in.OnCalling = func() {
			if err := sendTyping(a.bot, chatID); err != nil {
				log.Debug("send typing action failed", slog.Any("error", err))
			}
		}
		reply = a.dispatcher.Dispatch(ctx, in)
	}

	if err := a.sendReply(msg, reply.Text); err != nil {
		log.Error("send reply failed", slog.String("outcome", string(reply.Outcome)), slog.Any("error", err))
	}
}

// buildDoubt turns msg into a doubt. Images are downloaded lazily, once the
// dispatcher has accepted the requester. It reports false for messages the
// bot should ignore: non-private chats without any text or image, such as
// stickers in a group.
func (a *Adapter) buildDoubt(msg *tgbotapi.Message, log *slog.Logger) (doubt.Doubt, bool) {
	in := doubt.Doubt{
		RequesterID:    msg.From.ID,
		ConversationID: msg.Chat.ID,
		Text:           strings.TrimSpace(msg.Text),
	}
	if fileID, size := imageFile(msg); fileID != "" {
		in.Text = strings.TrimSpace(msg.Caption)
		in.LoadImage = func(ctx context.Context) ([]byte, error) {
			data, err := a.download(ctx, fileID, size)
			if err != nil {
				log.Warn("download photo failed", slog.Any("error", err))
			}
			return data, err
		}
	}
	if in.Validate() != nil && !msg.Chat.IsPrivate() {
		return doubt.Doubt{}, false
	}
	return in, true
}

// wantsReply reports whether handleMessage would answer msg.
func wantsReply(msg *tgbotapi.Message) bool {
	if msg.From == nil {
		return false
	}
	if msg.IsCommand() || msg.Chat.IsPrivate() {
		return true
	}
	fileID, _ := imageFile(msg)
	return fileID != "" || strings.TrimSpace(msg.Text) != ""
}

// imageFile returns the file to download for a photo or an image document.
func imageFile(msg *tgbotapi.Message) (string, int64) {
	if len(msg.Photo) > 0 {
		photo := pickTelegramPhoto(msg.Photo)
		return photo.FileID, int64(photo.FileSize)
	}
	if msg.Document != nil && strings.HasPrefix(strings.ToLower(msg.Document.MimeType), "image/") {
		return msg.Document.FileID, int64(msg.Document.FileSize)
	}
	return "", 0
}

func (a *Adapter) download(ctx context.Context, fileID string, declaredSize int64) ([]byte, error) {
	limit := a.opts.MaxDownloadBytes
	if declaredSize > limit {
		return nil, fmt.Errorf("%w: %d bytes, max %d", ErrFileTooLarge, declaredSize, limit)
	}
	url, err := a.bot.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("resolve telegram file url: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build download request: %w", err)
	}
	resp, err := a.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("download file status: %d", resp.StatusCode)
	}
	if resp.ContentLength > limit {
		return nil, fmt.Errorf("%w: %d bytes, max %d", ErrFileTooLarge, resp.ContentLength, limit)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: max %d bytes", ErrFileTooLarge, limit)
	}
	return data, nil
}

// sendReply answers msg in its chat. A 429 is retried once after the
// advertised delay.
func (a *Adapter) sendReply(msg *tgbotapi.Message, text string) error {
	out := tgbotapi.NewMessage(msg.Chat.ID, doubt.Truncate(text, doubt.MaxReplyRunes))
	out.ReplyToMessageID = msg.MessageID
	out.AllowSendingWithoutReply = true
	_, err := a.bot.Send(out)
	if err == nil || !isTelegramTooManyRequests(err) {
		return err
	}
	wait := getTelegramRetryAfter(err)
	if wait <= 0 || wait > maxSendRetryAfter {
		return err
	}
	time.Sleep(wait)
	_, err = a.bot.Send(out)
	return err
}

func sendTyping(bot botAPI, chatID int64) error {
	_, err := bot.Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping))
	return err
}

func pickTelegramPhoto(items []tgbotapi.PhotoSize) tgbotapi.PhotoSize {
	if len(items) == 0 {
		return tgbotapi.PhotoSize{}
	}
	best := items[0]
	for _, item := range items[1:] {
		if item.Width*item.Height > best.Width*best.Height {
			best = item
			continue
		}
		if item.Width*item.Height == best.Width*best.Height && item.FileSize > best.FileSize {
			best = item
		}
	}
	return best
}

// telegramAPIError unwraps the library's error, which is returned by pointer
// from Request and by value elsewhere.
func telegramAPIError(err error) (tgbotapi.Error, bool) {
	var ptr *tgbotapi.Error
	if errors.As(err, &ptr) && ptr != nil {
		return *ptr, true
	}
	var val tgbotapi.Error
	if errors.As(err, &val) {
		return val, true
	}
	return tgbotapi.Error{}, false
}

func isTelegramTooManyRequests(err error) bool {
	apiErr, ok := telegramAPIError(err)
	return ok && apiErr.Code == http.StatusTooManyRequests
}

func getTelegramRetryAfter(err error) time.Duration {
	apiErr, ok := telegramAPIError(err)
	if ok && apiErr.RetryAfter > 0 {
		return time.Duration(apiErr.RetryAfter) * time.Second
	}
	return 0
}
