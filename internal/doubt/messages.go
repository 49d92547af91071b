package doubt

import (
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/memohai/doubtsolver/internal/gemini"
)

// MaxReplyRunes caps every outbound message.
const MaxReplyRunes = 4000

const ellipsis = "…"

const (
	MsgUnauthorized     = "⛔ You are not allowed to use this bot. Ask the owner for access."
	MsgRateLimited      = "⏳ Slow down! Please wait a few seconds before sending another doubt."
	MsgImageUnreadable  = "⚠️ Image read nahi ho pa rahi, clear photo bhejo."
	MsgServerBusy       = "⚠️ Abhi server busy hai, thoda baad try karo."
	MsgModelUnavailable = "⚠️ The configured AI model is not available. Please tell the bot owner."
	MsgUpstreamBusy     = "⚠️ Too many requests right now, please try again in a minute."
	MsgUpstreamRejected = "⚠️ The AI service rejected the request. Please try again later."
	MsgNoAnswer         = "⚠️ I could not answer that question. Try rephrasing it."
	MsgEmptyDoubt       = "📩 Send a text doubt or a photo of the question."
	MsgStoreFailed      = "⚠️ Could not update the allow-list right now, please try again."
)

// Welcome is sent for /start and /help.
const Welcome = "👋 NEET/JEE Doubt Solver Bot\n\n" +
	"📩 Text doubt bhejo\n" +
	"📸 Image doubt bhejo\n" +
	"📸+📝 Image ke sath text bhi bhej sakte ho\n\n" +
	"Main same language me answer dunga ✅"

const ownerHelp = "\n\nOwner commands:\n" +
	"/grant <user_id>, /revoke <user_id>\n" +
	"/allowchat [chat_id], /disallowchat [chat_id]\n" +
	"/users"

// upstreamMessage maps an answer service failure to user-facing text.
// Anything that is not an *gemini.UpstreamError is treated as transport.
func upstreamMessage(err error) string {
	var upstream *gemini.UpstreamError
	if !errors.As(err, &upstream) {
		return MsgServerBusy
	}
	switch upstream.Kind {
	case gemini.KindNoCandidates:
		return MsgNoAnswer
	case gemini.KindHTTP:
		switch {
		case upstream.IsModelUnsupported():
			return MsgModelUnavailable
		case upstream.IsRateLimited():
			return MsgUpstreamBusy
		case upstream.IsServerError():
			return MsgServerBusy
		default:
			return MsgUpstreamRejected
		}
	default:
		return MsgServerBusy
	}
}

// upstreamResult is the metrics label for an answer call.
func upstreamResult(err error) string {
	if err == nil {
		return "success"
	}
	var upstream *gemini.UpstreamError
	if errors.As(err, &upstream) {
		return string(upstream.Kind)
	}
	return string(gemini.KindTransport)
}

// Truncate limits text to maxRunes runes, ending with an ellipsis when cut.
// Invalid UTF-8 sequences are dropped.
func Truncate(text string, maxRunes int) string {
	text = strings.ToValidUTF8(text, "")
	if maxRunes <= 0 || utf8.RuneCountInString(text) <= maxRunes {
		return text
	}
	keep := maxRunes - utf8.RuneCountInString(ellipsis)
	if keep < 0 {
		keep = 0
	}
	count := 0
	for i := range text {
		if count == keep {
			return strings.TrimRightFunc(text[:i], isSpace) + ellipsis
		}
		count++
	}
	return text
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\n' || r == '\t' || r == '\r'
}
