package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/RyanBlaney/sonido-midi/midifile"
	"github.com/RyanBlaney/sonido-midi/transcribe"
)

var inspectJSON bool

var inspectCmd = &cobra.Command{
	Use:   "inspect <file.mid>",
	Short: "Lists the notes of a MIDI file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		summary, err := midifile.ReadNotes(f)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if inspectJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(summary)
		}

		fmt.Fprintf(out, "tracks: %d  ticks/quarter: %d  tempo: %.2f BPM  notes: %d\n",
			summary.Tracks, summary.TicksPerQuarter, summary.Tempo, len(summary.Notes))

		tpq := float64(summary.TicksPerQuarter)
		for _, n := range summary.Notes {
			fmt.Fprintf(out, "%-4s %3d  beat %8.3f  length %7.3f  vel %3d\n",
				transcribe.NoteName(int(n.Key)), n.Key,
				float64(n.StartTick)/tpq, float64(n.EndTick-n.StartTick)/tpq, n.Velocity)
		}
		return nil
	},
}

func init() {
	inspectCmd.Flags().BoolVar(&inspectJSON, "json", false, "print JSON")
	rootCmd.AddCommand(inspectCmd)
}
