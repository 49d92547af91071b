package doubt

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/samber/lo"
)

// Command names understood by the dispatcher.
const (
	CmdStart        = "start"
	CmdHelp         = "help"
	CmdID           = "id"
	CmdGrant        = "grant"
	CmdRevoke       = "revoke"
	CmdAllowChat    = "allowchat"
	CmdDisallowChat = "disallowchat"
	CmdUsers        = "users"
)

var knownCommands = []string{CmdStart, CmdHelp, CmdID, CmdGrant, CmdRevoke, CmdAllowChat, CmdDisallowChat, CmdUsers}

var ownerCommands = map[string]struct{}{
	CmdGrant:        {},
	CmdRevoke:       {},
	CmdAllowChat:    {},
	CmdDisallowChat: {},
	CmdUsers:        {},
}

// Command handles a slash command. Allow-list mutations are owner-only;
// anyone may ask for /start, /help and /id.
func (d *Dispatcher) Command(ctx context.Context, cmd Command) Reply {
	name := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(cmd.Name), "/"))
	log := d.logger.With(
		slog.String("command", name),
		slog.Int64("requester_id", cmd.RequesterID),
		slog.Int64("conversation_id", cmd.ConversationID),
	)

	reply := d.command(ctx, name, cmd)
	reply.Text = Truncate(reply.Text, MaxReplyRunes)
	d.recorder.ObserveCommand(commandLabel(name), string(reply.Outcome))
	if reply.Err != nil {
		log.Warn("command failed", slog.String("outcome", string(reply.Outcome)), slog.Any("error", reply.Err))
	} else {
		log.Info("command handled", slog.String("outcome", string(reply.Outcome)))
	}
	return reply
}

func (d *Dispatcher) command(ctx context.Context, name string, cmd Command) Reply {
	if _, ok := ownerCommands[name]; ok && !d.access.IsOwner(cmd.RequesterID) {
		return Reply{Text: MsgUnauthorized, Outcome: OutcomeUnauthorized}
	}

	switch name {
	case CmdStart, CmdHelp:
		text := Welcome
		if d.access.IsOwner(cmd.RequesterID) {
			text += ownerHelp
		}
		return Reply{Text: text, Outcome: OutcomeSuccess}
	case CmdID:
		return Reply{
			Text:    fmt.Sprintf("👤 Your id: %d\n💬 Chat id: %d", cmd.RequesterID, cmd.ConversationID),
			Outcome: OutcomeSuccess,
		}
	case CmdGrant:
		id, ok := requiredID(cmd.Args)
		if !ok {
			return usage("/grant <user_id>")
		}
		added, err := d.access.Grant(ctx, id)
		if err != nil {
			return storeFailure(err)
		}
		if !added {
			return Reply{Text: fmt.Sprintf("ℹ️ User %d already has access.", id), Outcome: OutcomeSuccess}
		}
		return Reply{Text: fmt.Sprintf("✅ User %d can now use the bot.", id), Outcome: OutcomeSuccess}
	case CmdRevoke:
		id, ok := requiredID(cmd.Args)
		if !ok {
			return usage("/revoke <user_id>")
		}
		removed, err := d.access.Revoke(ctx, id)
		if err != nil {
			return storeFailure(err)
		}
		if !removed {
			return Reply{Text: fmt.Sprintf("ℹ️ User %d was not on the allow-list.", id), Outcome: OutcomeSuccess}
		}
		return Reply{Text: fmt.Sprintf("🚫 User %d no longer has access.", id), Outcome: OutcomeSuccess}
	case CmdAllowChat:
		id, ok := optionalID(cmd.Args, cmd.ConversationID)
		if !ok {
			return usage("/allowchat [chat_id]")
		}
		added, err := d.access.AllowConversation(ctx, id)
		if err != nil {
			return storeFailure(err)
		}
		if !added {
			return Reply{Text: fmt.Sprintf("ℹ️ Chat %d is already allowed.", id), Outcome: OutcomeSuccess}
		}
		return Reply{Text: fmt.Sprintf("✅ Everyone in chat %d can now use the bot.", id), Outcome: OutcomeSuccess}
	case CmdDisallowChat:
		id, ok := optionalID(cmd.Args, cmd.ConversationID)
		if !ok {
			return usage("/disallowchat [chat_id]")
		}
		removed, err := d.access.DisallowConversation(ctx, id)
		if err != nil {
			return storeFailure(err)
		}
		if !removed {
			return Reply{Text: fmt.Sprintf("ℹ️ Chat %d was not allowed.", id), Outcome: OutcomeSuccess}
		}
		return Reply{Text: fmt.Sprintf("🚫 Chat %d is no longer allowed.", id), Outcome: OutcomeSuccess}
	case CmdUsers:
		users, err := d.access.ListUsers(ctx)
		if err != nil {
			return storeFailure(err)
		}
		chats, err := d.access.ListConversations(ctx)
		if err != nil {
			return storeFailure(err)
		}
		text := formatIDs("👥 Allowed users:", users) + "\n\n" + formatIDs("💬 Allowed chats:", chats)
		return Reply{Text: text, Outcome: OutcomeSuccess}
	default:
		return Reply{Text: Welcome, Outcome: OutcomeInvalid}
	}
}

// commandLabel keeps metric cardinality bounded.
func commandLabel(name string) string {
	if lo.Contains(knownCommands, name) {
		return name
	}
	return "unknown"
}

func usage(syntax string) Reply {
	return Reply{Text: "Usage: " + syntax, Outcome: OutcomeInvalid}
}

func storeFailure(err error) Reply {
	return Reply{Text: MsgStoreFailed, Outcome: OutcomeStoreError, Err: err}
}

// requiredID parses exactly one integer argument.
func requiredID(args string) (int64, bool) {
	fields := strings.Fields(args)
	if len(fields) != 1 {
		return 0, false
	}
	id, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// optionalID parses an integer argument, defaulting to fallback when absent.
func optionalID(args string, fallback int64) (int64, bool) {
	if strings.TrimSpace(args) == "" {
		return fallback, true
	}
	return requiredID(args)
}

func formatIDs(title string, ids []int64) string {
	if len(ids) == 0 {
		return title + " none"
	}
	lines := lo.Map(ids, func(id int64, _ int) string {
		return "• " + strconv.FormatInt(id, 10)
	})
	return title + "\n" + strings.Join(lines, "\n")
}
