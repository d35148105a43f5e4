// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/kchat/internal/model"
	"github.com/jeranaias/kchat/internal/storage"
	"github.com/jeranaias/kchat/internal/util"
)

// Export formats accepted by sessions export.
const (
	FormatMarkdown = "md"
	FormatJSON     = "json"
)

// =============================================================================
// SESSIONS COMMAND
// =============================================================================

func (a *app) sessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "sessions",
		Aliases: []string{"session"},
		Short:   "Manage saved conversations",
	}
	cmd.AddCommand(a.sessionsListCmd(), a.sessionsExportCmd(), a.sessionsDeleteCmd())
	return cmd
}

// withStore runs fn against the configured chat list store.
func (a *app) withStore(fn func(store *storage.ChatListStore) error) error {
	cfg, err := a.config()
	if err != nil {
		return err
	}
	store, closeStore, err := openChatList(cfg)
	if err != nil {
		return err
	}
	defer closeStore()
	return fn(store)
}

func (a *app) sessionsListCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List saved conversations, most recent first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(func(store *storage.ChatListStore) error {
				metas, err := store.List(cmd.Context())
				if err != nil {
					return NewCommandError("sessions", "list", "could not read conversations", err)
				}
				out := cmd.OutOrStdout()
				if asJSON {
					return writeJSON(out, metas)
				}
				list := storage.FormatSessionList(metas)
				if !strings.HasSuffix(list, "\n") {
					list += "\n"
				}
				_, err = io.WriteString(out, list)
				return err
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	return cmd
}

func (a *app) sessionsExportCmd() *cobra.Command {
	var format, output string
	cmd := &cobra.Command{
		Use:   "export <id>",
		Short: "Export a conversation as Markdown or JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format = strings.ToLower(format)
			if format != FormatMarkdown && format != FormatJSON {
				return &UsageError{Message: fmt.Sprintf("unknown format %q (use md or json)", format)}
			}
			return a.withStore(func(store *storage.ChatListStore) error {
				conv, err := store.Find(cmd.Context(), args[0])
				if err != nil {
					return lookupError("export", args[0], err)
				}
				data, err := exportConversation(conv, format)
				if err != nil {
					return NewCommandError("sessions", "export", "could not encode conversation", err)
				}
				if output != "" {
					if err := util.AtomicWriteFile(output, data, 0600); err != nil {
						return NewCommandError("sessions", "export", "could not write "+output, err)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Exported %q to %s\n", conv.Title, output)
					return nil
				}
				_, err = cmd.OutOrStdout().Write(data)
				return err
			})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", FormatMarkdown, "output format: md or json")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to `file` instead of stdout")
	return cmd
}

func (a *app) sessionsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a conversation",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(func(store *storage.ChatListStore) error {
				removed, err := store.Delete(cmd.Context(), args[0])
				if err != nil {
					return lookupError("delete", args[0], err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted session %s (%s)\n", shortID(removed.ID), removed.Title)
				return nil
			})
		},
	}
}

// =============================================================================
// HELPERS
// =============================================================================

func exportConversation(conv *model.Conversation, format string) ([]byte, error) {
	if format == FormatJSON {
		data, err := storage.ExportJSON(conv)
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	}
	return []byte(storage.ExportMarkdown(conv)), nil
}

func lookupError(action, id string, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return NewCommandError("sessions", action, "no session matches "+id, err)
	}
	return NewCommandError("sessions", action, "could not read conversations", err)
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
