package main

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/memohai/doubtsolver/internal/access"
	"github.com/memohai/doubtsolver/internal/logger"
)

// allowlistAction mutates one id and reports whether anything changed.
type allowlistAction func(ctx context.Context, svc *access.Service, id int64) (bool, error)

func newAllowlistCommand(path *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "allowlist",
		Short: "Inspect or edit the allow-list without the bot running",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "Print owners, allowed users and allowed chats",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withAccessService(cmd.Context(), *path, func(ctx context.Context, svc *access.Service) error {
					return printAllowlist(ctx, cmd.OutOrStdout(), svc)
				})
			},
		},
		newAllowlistMutation(path, "grant", "Allow a user", "already allowed",
			func(ctx context.Context, svc *access.Service, id int64) (bool, error) { return svc.Grant(ctx, id) }),
		newAllowlistMutation(path, "revoke", "Remove a user", "not on the allow-list",
			func(ctx context.Context, svc *access.Service, id int64) (bool, error) { return svc.Revoke(ctx, id) }),
		newAllowlistMutation(path, "allowchat", "Allow every member of a chat", "already allowed",
			func(ctx context.Context, svc *access.Service, id int64) (bool, error) {
				return svc.AllowConversation(ctx, id)
			}),
		newAllowlistMutation(path, "disallowchat", "Remove a chat", "not allowed",
			func(ctx context.Context, svc *access.Service, id int64) (bool, error) {
				return svc.DisallowConversation(ctx, id)
			}),
	)
	return cmd
}

func newAllowlistMutation(path *string, use, short, unchanged string, action allowlistAction) *cobra.Command {
	return &cobra.Command{
		Use:   use + " [--] <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid id %q: %w", args[0], err)
			}
			return withAccessService(cmd.Context(), *path, func(ctx context.Context, svc *access.Service) error {
				changed, err := action(ctx, svc, id)
				if err != nil {
					return err
				}
				if changed {
					fmt.Fprintf(cmd.OutOrStdout(), "%s %d: ok\n", use, id)
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "%s %d: %s\n", use, id, unchanged)
				}
				return nil
			})
		},
	}
}

func withAccessService(ctx context.Context, path string, fn func(context.Context, *access.Service) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := loadConfig(path)
	if err != nil {
		return err
	}
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	store, closeStore, err := openAccessStore(ctx, logger.L, cfg.Storage)
	if err != nil {
		return err
	}
	defer closeStore()
	svc := access.NewService(logger.L, store)
	if err := svc.SeedOwners(ctx, cfg.Access.OwnerIDs); err != nil {
		return err
	}
	return fn(ctx, svc)
}

func printAllowlist(ctx context.Context, w io.Writer, svc *access.Service) error {
	users, err := svc.ListUsers(ctx)
	if err != nil {
		return err
	}
	chats, err := svc.ListConversations(ctx)
	if err != nil {
		return err
	}
	printIDs(w, "owners", svc.Owners())
	printIDs(w, "users", users)
	printIDs(w, "chats", chats)
	return nil
}

func printIDs(w io.Writer, title string, ids []int64) {
	fmt.Fprintf(w, "%s (%d)\n", title, len(ids))
	for _, id := range ids {
		fmt.Fprintf(w, "  %d\n", id)
	}
}
