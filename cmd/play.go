package cmd

import (
	"errors"
	"fmt"

	"github.com/dialtonelabs/guestbook/internal/archive"
	"github.com/dialtonelabs/guestbook/internal/audio"

	"github.com/spf13/cobra"
)

var playCmd = &cobra.Command{
	Use:   "play [message-id|greeting|beep|time_exceeded]",
	Short: "Play an archived message or a configured sound",
	Long: `Play renders an archived message through the phone speaker. The
argument is a message id from 'guestbook messages', or one of the sound
names greeting, beep and time_exceeded.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		target := args[0]
		volume, _ := cmd.Flags().GetFloat64("volume")

		path, err := resolvePlayTarget(target)
		if err != nil {
			return err
		}

		fmt.Printf("Playing: %s\n", path)

		backend := audio.NewALSABackend(cfg)
		backend.Play(path, volume, 0)
		return nil
	},
}

func resolvePlayTarget(target string) (string, error) {
	switch target {
	case "greeting":
		return cfg.Sounds.Greeting.File, nil
	case "beep":
		return cfg.Sounds.Beep.File, nil
	case "time_exceeded":
		return cfg.Sounds.TimeExceeded.File, nil
	}

	storage, err := archive.NewFileStorage(cfg.Archive.Directory)
	if err != nil {
		return "", fmt.Errorf("failed to open archive: %w", err)
	}
	path, _, err := archive.NewArchiver(storage).Retrieve(target)
	if errors.Is(err, archive.ErrNotFound) {
		return "", fmt.Errorf("no archived message or sound named %q", target)
	}
	if err != nil {
		return "", err
	}
	return path, nil
}

func init() {
	playCmd.Flags().Float64("volume", 1.0, "playback volume between 0.0 and 1.0")
}
