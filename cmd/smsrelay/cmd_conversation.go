package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/user/smsrelay/internal/state"
)

func init() {
	rootCmd.AddCommand(conversationCmd)
	conversationCmd.AddCommand(conversationListCmd, conversationShowCmd, conversationClearCmd)
}

var conversationCmd = &cobra.Command{
	Use:     "conversation",
	Aliases: []string{"conv"},
	Short:   "Manage bound conversations",
}

var conversationListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all conversations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		store := state.NewConversationStore(cfg.DataDir)

		list, err := store.List(context.Background())
		if err != nil {
			return fmt.Errorf("list conversations: %w", err)
		}

		if len(list) == 0 {
			fmt.Println("No conversations found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTITLE\tBOUND FROM\tUPDATED")
		for _, c := range list {
			from := "-"
			if c.SMS != nil {
				from = c.SMS.From
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				c.ID,
				c.Title,
				from,
				c.UpdatedAt.Format("2006-01-02 15:04:05"),
			)
		}
		return w.Flush()
	},
}

var conversationShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a conversation record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		store := state.NewConversationStore(cfg.DataDir)

		conv, err := store.Get(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("get conversation: %w", err)
		}
		if conv == nil {
			return fmt.Errorf("conversation not found: %s", args[0])
		}

		out, err := json.MarshalIndent(conv, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, string(out))
		return nil
	},
}

var conversationClearCmd = &cobra.Command{
	Use:   "clear <id|all>",
	Short: "Remove a conversation record or all of them",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()

		if args[0] == "all" {
			if err := os.RemoveAll(filepath.Join(cfg.DataDir, "conversations")); err != nil {
				return fmt.Errorf("remove conversations directory: %w", err)
			}
			fmt.Println("All conversations cleared.")
			return nil
		}

		// The store maps ids to filenames; going through it keeps clear
		// consistent with how the record was written.
		store := state.NewConversationStore(cfg.DataDir)
		if err := store.Delete(context.Background(), args[0]); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("conversation not found: %s", args[0])
			}
			return fmt.Errorf("remove conversation: %w", err)
		}
		fmt.Fprintf(os.Stdout, "Conversation %s cleared.\n", args[0])
		return nil
	},
}
