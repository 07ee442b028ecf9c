package cmd

import (
	"fmt"
	"time"

	"github.com/dialtonelabs/guestbook/internal/archive"

	"github.com/spf13/cobra"
)

var messagesCmd = &cobra.Command{
	Use:   "messages",
	Short: "List archived messages, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		storage, err := archive.NewFileStorage(cfg.Archive.Directory)
		if err != nil {
			return fmt.Errorf("failed to open archive: %w", err)
		}
		messages, err := archive.NewArchiver(storage).ListAll()
		if err != nil {
			return fmt.Errorf("failed to list messages: %w", err)
		}

		if len(messages) == 0 {
			fmt.Println("No messages archived yet")
			return nil
		}

		for _, msg := range messages {
			id, _ := msg["message_id"].(string)
			fmt.Printf("%s\n", id)
			if ts, ok := msg["timestamp"].(string); ok {
				if parsed, err := time.Parse(time.RFC3339, ts); err == nil {
					fmt.Printf("  recorded: %s\n", parsed.Format("2006-01-02 15:04:05"))
				} else {
					fmt.Printf("  recorded: %s\n", ts)
				}
			}
			if size, ok := msg["size_bytes"].(float64); ok {
				fmt.Printf("  size: %.1f KiB\n", size/1024)
			}
			if reason, ok := msg["reason"].(string); ok {
				fmt.Printf("  ended by: %s\n", reason)
			}
		}

		fmt.Printf("\n%d message(s)\n", len(messages))
		return nil
	},
}
