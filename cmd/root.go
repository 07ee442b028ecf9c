package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/dialtonelabs/guestbook/internal/config"
	"github.com/dialtonelabs/guestbook/internal/logging"

	"github.com/spf13/cobra"
)

var (
	cfg          *config.Config
	cfgFile      string
	verboseLevel int
)

var rootCmd = &cobra.Command{
	Use:   "guestbook",
	Short: "Rotary phone audio guestbook",
	Long: `Guestbook turns a rotary phone into an audio guestbook: lifting the
handset plays a greeting and a beep, then records the caller until they
hang up or the time limit hits. Finished messages are archived with
metadata alongside.

The run command is the appliance daemon; the remaining commands manage
the greeting, the archive and the configuration from a shell.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// config init writes the file every other command reads, so it
		// runs without one.
		if cmd.Name() == "init" {
			logger, err := logging.New(config.LoggingConfig{Level: "info"}, verboseLevel)
			if err != nil {
				return err
			}
			slog.SetDefault(logger)
			return nil
		}

		if cfgFile == "" {
			cfgFile = os.ExpandEnv("$HOME/.config/guestbook.yaml")
		}

		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		logger, err := logging.New(cfg.Logging, verboseLevel)
		if err != nil {
			return fmt.Errorf("failed to set up logging: %w", err)
		}
		slog.SetDefault(logger)

		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/guestbook.yaml)")
	rootCmd.PersistentFlags().IntVarP(&verboseLevel, "verbose", "v", 0, "verbose level: 0=configured level, 1=debug")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(greetingCmd)
	rootCmd.AddCommand(playCmd)
	rootCmd.AddCommand(messagesCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(devicesCmd)
}
