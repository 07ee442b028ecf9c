package cmd

import (
	"fmt"
	"os/exec"
	"strings"

	"github.com/spf13/cobra"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List ALSA playback and capture devices",
	Long: `List the sound cards ALSA knows about, as reported by aplay -l and
arecord -l. Use the card and device numbers to build the audio.device
value, e.g. card 1 device 0 becomes hw:1,0.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("=== PLAYBACK DEVICES (aplay -l) ===\n")
		printDeviceList("aplay")

		fmt.Printf("\n=== CAPTURE DEVICES (arecord -l) ===\n")
		printDeviceList("arecord")

		return nil
	},
}

func printDeviceList(tool string) {
	out, err := exec.Command(tool, "-l").CombinedOutput()
	if err != nil {
		fmt.Printf("%s -l failed: %v\n", tool, err)
		return
	}
	fmt.Println(strings.TrimRight(string(out), "\n"))
}
