package cmd

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/dialtonelabs/guestbook/internal/archive"

	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show resolved paths, audio tools and archive status",
	Long: `Display the availability of the external audio tools, the resolved
file paths and a summary of the archive. Useful as a first check on a
freshly wired phone.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("=== AUDIO TOOLS ===\n")
		for _, tool := range []string{"aplay", "arecord", "amixer", "sox"} {
			path, err := exec.LookPath(tool)
			if err != nil {
				fmt.Printf("%s: NOT FOUND\n", tool)
				continue
			}
			fmt.Printf("%s: %s\n", tool, path)
		}

		fmt.Printf("\n=== AUDIO DEVICE ===\n")
		fmt.Printf("device: %s\n", cfg.Audio.Device)
		fmt.Printf("format: %s (%d Hz, %d channel(s))\n", cfg.Audio.Format, cfg.Audio.SampleRate, cfg.Audio.Channels)
		fmt.Printf("mixer_control: %s\n", cfg.Audio.MixerControl)

		fmt.Printf("\n=== SOUNDS ===\n")
		printSound("greeting", cfg.Sounds.Greeting.File)
		printSound("beep", cfg.Sounds.Beep.File)
		printSound("time_exceeded", cfg.Sounds.TimeExceeded.File)

		fmt.Printf("\n=== SWITCHES ===\n")
		fmt.Printf("hook: %s\n", describeSwitch(cfg.Hook.GPIO, cfg.Hook.Type))
		fmt.Printf("record_greeting: %s\n", describeSwitch(cfg.RecordGreeting.GPIO, cfg.RecordGreeting.Type))
		if cfg.Shutdown.GPIO == 0 {
			fmt.Printf("shutdown: disabled\n")
		} else {
			fmt.Printf("shutdown: GPIO %d (hold %s)\n", cfg.Shutdown.GPIO, cfg.Shutdown.HoldTime)
		}

		fmt.Printf("\n=== STORAGE ===\n")
		fmt.Printf("recordings: %s\n", cfg.Recording.Directory)
		fmt.Printf("archive: %s\n", cfg.Archive.Directory)

		storage, err := archive.NewFileStorage(cfg.Archive.Directory)
		if err != nil {
			fmt.Printf("messages: unavailable (%v)\n", err)
			return nil
		}
		messages, err := storage.List()
		if err != nil {
			fmt.Printf("messages: unavailable (%v)\n", err)
			return nil
		}
		fmt.Printf("messages: %d\n", len(messages))

		return nil
	},
}

func printSound(name, path string) {
	if _, err := os.Stat(path); err != nil {
		fmt.Printf("%s: %s (MISSING)\n", name, path)
		return
	}
	fmt.Printf("%s: %s\n", name, path)
}

func describeSwitch(gpio int, switchType string) string {
	if gpio == 0 {
		return "disabled"
	}
	return fmt.Sprintf("GPIO %d (%s)", gpio, switchType)
}
