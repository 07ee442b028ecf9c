package cmd

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dialtonelabs/guestbook/internal/archive"
	"github.com/dialtonelabs/guestbook/internal/audio"
	"github.com/dialtonelabs/guestbook/internal/guestbook"
	"github.com/dialtonelabs/guestbook/internal/hardware"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the guestbook daemon",
	Long: `Run starts the appliance: it opens the GPIO lines, wires the hook
switch and the buttons to the state machine, and serves callers until the
process is interrupted or the shutdown button is held.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		slog.Info("Starting guestbook", "config", cfgFile)

		backend := audio.NewALSABackend(cfg)

		var archiver *archive.Archiver
		storage, err := archive.NewFileStorage(cfg.Archive.Directory)
		if err != nil {
			slog.Error("Archive unavailable, finished messages stay in the recording directory", "error", err)
		} else {
			archiver = archive.NewArchiver(storage)
		}

		gb := guestbook.New(cfg, backend, archiver)

		if chip, err := hardware.OpenRPi(); err != nil {
			slog.Error("GPIO unavailable, daemon will not react to hardware inputs", "error", err)
		} else {
			defer chip.Close()
			if err := gb.SetupHook(chip); err != nil {
				slog.Error("Hook switch unavailable", "error", err)
			}
			if err := gb.SetupRecordGreeting(chip); err != nil {
				slog.Error("Record-greeting button unavailable", "error", err)
			}
			if err := gb.SetupShutdown(chip); err != nil {
				slog.Error("Shutdown button unavailable", "error", err)
			}
		}

		slog.Info("Guestbook ready - Press Ctrl+C to stop")

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

		<-sigChan
		slog.Info("Shutting down...")

		gb.Close()
		return nil
	},
}
