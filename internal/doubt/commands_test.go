package doubt

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandOwnerOnly(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()

	for _, name := range []string{CmdGrant, CmdRevoke, CmdAllowChat, CmdDisallowChat, CmdUsers} {
		reply := h.dispatcher.Command(ctx, Command{Name: name, Args: "42", RequesterID: allowedID, ConversationID: privateID})
		assert.Equal(t, OutcomeUnauthorized, reply.Outcome, name)
		assert.Equal(t, MsgUnauthorized, reply.Text, name)
	}

	users, err := h.access.ListUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{allowedID}, users)
	chats, err := h.access.ListConversations(ctx)
	require.NoError(t, err)
	assert.Empty(t, chats)
}

func TestCommandGrantRevoke(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	cmd := func(name, args string) Reply {
		return h.dispatcher.Command(ctx, Command{Name: name, Args: args, RequesterID: ownerID, ConversationID: ownerID})
	}

	reply := cmd(CmdGrant, "77")
	assert.Equal(t, OutcomeSuccess, reply.Outcome)
	assert.Contains(t, reply.Text, "77 can now use")

	reply = cmd(CmdGrant, "77")
	assert.Equal(t, OutcomeSuccess, reply.Outcome)
	assert.Contains(t, reply.Text, "already has access")

	allowed, err := h.access.IsAllowed(ctx, 77, 77)
	require.NoError(t, err)
	assert.True(t, allowed)

	reply = cmd(CmdRevoke, "77")
	assert.Contains(t, reply.Text, "no longer has access")
	reply = cmd(CmdRevoke, "77")
	assert.Contains(t, reply.Text, "was not on the allow-list")

	allowed, err = h.access.IsAllowed(ctx, 77, 77)
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestCommandBadArguments(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	tests := []struct {
		name string
		args string
	}{
		{name: CmdGrant, args: ""},
		{name: CmdGrant, args: "abc"},
		{name: CmdGrant, args: "1 2"},
		{name: CmdRevoke, args: ""},
		{name: CmdAllowChat, args: "chat"},
		{name: CmdDisallowChat, args: "1.5"},
	}
	for _, tt := range tests {
		reply := h.dispatcher.Command(context.Background(), Command{Name: tt.name, Args: tt.args, RequesterID: ownerID, ConversationID: ownerID})
		assert.Equal(t, OutcomeInvalid, reply.Outcome, tt.name+" "+tt.args)
		assert.Contains(t, reply.Text, "Usage: /"+tt.name, tt.name+" "+tt.args)
	}
}

func TestCommandAllowChatDefaultsToCurrentConversation(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()

	reply := h.dispatcher.Command(ctx, Command{Name: "/AllowChat", RequesterID: ownerID, ConversationID: -1001})
	require.Equal(t, OutcomeSuccess, reply.Outcome)

	allowed, err := h.access.IsAllowed(ctx, strangerID, -1001)
	require.NoError(t, err)
	assert.True(t, allowed)

	reply = h.dispatcher.Command(ctx, Command{Name: CmdDisallowChat, Args: "-1001", RequesterID: ownerID, ConversationID: ownerID})
	assert.Contains(t, reply.Text, "no longer allowed")
	allowed, err = h.access.IsAllowed(ctx, strangerID, -1001)
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestCommandUsersListsBothSets(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	_, err := h.access.AllowConversation(ctx, -5)
	require.NoError(t, err)

	reply := h.dispatcher.Command(ctx, Command{Name: CmdUsers, RequesterID: ownerID, ConversationID: ownerID})
	require.Equal(t, OutcomeSuccess, reply.Outcome)
	assert.Equal(t, "👥 Allowed users:\n• 2\n\n💬 Allowed chats:\n• -5", reply.Text)
}

func TestCommandPublicCommands(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()

	reply := h.dispatcher.Command(ctx, Command{Name: CmdStart, RequesterID: strangerID, ConversationID: strangerID})
	assert.Equal(t, OutcomeSuccess, reply.Outcome)
	assert.Equal(t, Welcome, reply.Text)

	reply = h.dispatcher.Command(ctx, Command{Name: CmdHelp, RequesterID: ownerID, ConversationID: ownerID})
	assert.Contains(t, reply.Text, "/grant <user_id>")

	reply = h.dispatcher.Command(ctx, Command{Name: CmdID, RequesterID: strangerID, ConversationID: -7})
	assert.Equal(t, "👤 Your id: 3\n💬 Chat id: -7", reply.Text)

	reply = h.dispatcher.Command(ctx, Command{Name: "frobnicate", RequesterID: strangerID, ConversationID: strangerID})
	assert.Equal(t, OutcomeInvalid, reply.Outcome)
	assert.EqualValues(t, 0, h.gemini.calls.Load())
}

type failingWrites struct {
	Authorizer
}

func (failingWrites) IsOwner(int64) bool { return true }

func (failingWrites) Grant(context.Context, int64) (bool, error) {
	return false, errors.New("disk full")
}

func TestCommandStoreFailure(t *testing.T) {
	t.Parallel()

	d := NewDispatcher(nil, failingWrites{}, nil, nil, nil, Options{})
	reply := d.Command(context.Background(), Command{Name: CmdGrant, Args: "5", RequesterID: 1, ConversationID: 1})
	assert.Equal(t, OutcomeStoreError, reply.Outcome)
	assert.Equal(t, MsgStoreFailed, reply.Text)
	assert.Error(t, reply.Err)
}

func TestCommandRecordsMetrics(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.dispatcher.Command(context.Background(), Command{Name: CmdGrant, Args: "8", RequesterID: ownerID, ConversationID: ownerID})
	h.dispatcher.Command(context.Background(), Command{Name: CmdGrant, Args: "8", RequesterID: strangerID, ConversationID: strangerID})
	assert.Equal(t, []string{"grant:success", "grant:unauthorized"}, h.recorder.commands)
}
