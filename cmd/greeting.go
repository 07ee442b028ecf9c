package cmd

import (
	"bufio"
	"fmt"
	"os"

	"github.com/dialtonelabs/guestbook/internal/audio"
	"github.com/dialtonelabs/guestbook/internal/guestbook"

	"github.com/spf13/cobra"
)

var greetingCmd = &cobra.Command{
	Use:   "greeting",
	Short: "Record a new greeting from the shell",
	Long: `Greeting records a new greeting into the configured greeting file,
exactly like holding the record-greeting button: a beep plays, then the
microphone records until you press Enter.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		backend := audio.NewALSABackend(cfg)
		gb := guestbook.New(cfg, backend, nil)

		gb.PressedRecordGreeting()

		fmt.Println("Recording greeting... Press Enter to stop")
		scanner := bufio.NewScanner(os.Stdin)
		scanner.Scan()

		gb.ReleasedRecordGreeting()
		gb.Close()

		fmt.Printf("Greeting saved to %s\n", cfg.Sounds.Greeting.File)
		return nil
	},
}
