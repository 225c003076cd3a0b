package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/RyanBlaney/sonido-midi/converter"
)

var (
	batchFlags      conversionFlags
	batchNoProgress bool
)

var batchCmd = &cobra.Command{
	Use:   "batch <output-dir> <input-audio>...",
	Short: "Converts many audio files to MIDI in parallel",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := buildOptions(cmd, &batchFlags)
		if err != nil {
			return err
		}

		outDir := args[0]
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}

		conv, err := converter.NewConverter(opts)
		if err != nil {
			return err
		}

		jobs := batchJobs(outDir, args[1:])

		var progress converter.ProgressFunc
		var p *mpb.Progress
		if !batchNoProgress {
			p = mpb.New(mpb.WithWidth(64), mpb.WithOutput(cmd.ErrOrStderr()))
			bar := p.AddBar(int64(len(jobs)),
				mpb.PrependDecorators(
					decor.Name("Converting: "),
					decor.CountersNoUnit("%d / %d"),
				),
				mpb.AppendDecorators(
					decor.Percentage(),
					decor.EwmaETA(decor.ET_STYLE_GO, 60),
				),
			)
			progress = func(converter.BatchResult) {
				bar.Increment()
			}
		}

		results := conv.ConvertBatch(cmd.Context(), jobs, progress)
		if p != nil {
			p.Wait()
		}

		failed := 0
		out := cmd.OutOrStdout()
		for _, r := range results {
			if r.Err != nil {
				failed++
				fmt.Fprintf(out, "FAIL %s: %v\n", r.Job.Input, r.Err)
				continue
			}
			fmt.Fprintf(out, "ok   %s -> %s (%d notes, %.1f BPM)\n",
				r.Job.Input, r.Job.Output, len(r.Result.Notes), r.Result.BPM)
		}

		if failed > 0 {
			return fmt.Errorf("%d of %d conversions failed", failed, len(results))
		}
		return nil
	},
}

func init() {
	addConversionFlags(batchCmd, &batchFlags)
	batchCmd.Flags().BoolVar(&batchNoProgress, "no-progress", false, "disable the progress bar")
	rootCmd.AddCommand(batchCmd)
}

// batchJobs maps every input to <outDir>/<basename>.mid. Inputs sharing a
// basename get a numeric suffix.
func batchJobs(outDir string, inputs []string) []converter.Job {
	jobs := make([]converter.Job, len(inputs))
	seen := make(map[string]int)

	for i, in := range inputs {
		base := strings.TrimSuffix(filepath.Base(in), filepath.Ext(in))
		name := base
		if n := seen[base]; n > 0 {
			name = fmt.Sprintf("%s_%d", base, n)
		}
		seen[base]++
		jobs[i] = converter.Job{
			Input:  in,
			Output: filepath.Join(outDir, name+".mid"),
		}
	}
	return jobs
}
