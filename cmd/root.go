package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/RyanBlaney/sonido-midi/logging"
)

var (
	configPath string
	logLevel   string
	logFormat  string

	flushLogs = func() {}
)

var rootCmd = &cobra.Command{
	Use:   "sonido-midi",
	Short: "Monophonic audio to MIDI transcription",
	Long: `sonido-midi transcribes monophonic recordings (voice, a single
instrument) into MIDI files. Pitch, voicing and onsets are estimated per
frame and segmented into notes with a hidden Markov model.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setupLogging()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "JSON options file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text, json)")
}

func setupLogging() error {
	level, err := logging.ParseLevel(logLevel)
	if err != nil {
		return err
	}

	switch logFormat {
	case "json":
		zl, err := logging.NewZapLogger(level)
		if err != nil {
			return fmt.Errorf("failed to create json logger: %w", err)
		}
		logging.SetGlobalLogger(zl)
		flushLogs = func() { _ = zl.Sync() }
	case "text", "":
		l := logging.NewDefaultLogger()
		l.SetLevel(level)
		logging.SetGlobalLogger(l)
	default:
		return fmt.Errorf("unknown log format %q", logFormat)
	}
	return nil
}

// Execute runs the root command. An interrupt cancels running conversions.
func Execute() error {
	defer func() { flushLogs() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}
