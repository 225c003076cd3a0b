package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/RyanBlaney/sonido-midi/converter"
)

var convertFlags conversionFlags

var convertCmd = &cobra.Command{
	Use:   "convert <input-audio> <output.mid>",
	Short: "Converts one audio file to MIDI",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := buildOptions(cmd, &convertFlags)
		if err != nil {
			return err
		}

		conv, err := converter.NewConverter(opts)
		if err != nil {
			return err
		}

		result, err := conv.ConvertFileToPath(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d notes at %.1f BPM (tuning %+.2f semitones) -> %s\n",
			args[0], len(result.Notes), result.BPM, result.Tuning, args[1])
		return nil
	},
}

func init() {
	addConversionFlags(convertCmd, &convertFlags)
	rootCmd.AddCommand(convertCmd)
}
