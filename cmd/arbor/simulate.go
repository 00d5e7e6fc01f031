package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/internal/runtime"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate [dir]",
	Short: "Read a story headlessly with scripted choices",
	Long: `Plays a story without pacing, taking the option indexes given with
--choose in order, and prints the transcript. Nothing is persisted.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		story, _ := cmd.Flags().GetString("story")
		unit, _ := cmd.Flags().GetString("unit")
		if story == "" && unit == "" {
			return fmt.Errorf("--story or --unit is required")
		}
		choices, _ := cmd.Flags().GetIntSlice("choose")
		asJSON, _ := cmd.Flags().GetBool("json")

		stack, err := openStack(cmd, args)
		if err != nil {
			return err
		}
		defer stack.Close()

		tr, err := stack.Engine.Simulate(cmd.Context(), story, unit, choices)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if asJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(tr)
		}
		printTranscript(out, tr)
		return nil
	},
}

func printTranscript(w io.Writer, tr *arbor.Transcript) {
	for _, step := range tr.Steps {
		switch step.Kind {
		case runtime.StepText:
			if step.Text == nil {
				continue
			}
			if step.Text.SpeakerRef != "" {
				fmt.Fprintf(w, "%s: %s\n", step.Text.SpeakerRef, step.Text.Content)
			} else {
				fmt.Fprintln(w, step.Text.Content)
			}
		case runtime.StepChoice:
			for _, opt := range step.Options {
				fmt.Fprintf(w, "  [%d] %s\n", opt.Index, opt.Option.Text)
			}
		case runtime.StepChosen:
			fmt.Fprintf(w, "> [%d]\n", step.Chosen)
		case runtime.StepUnit:
			fmt.Fprintf(w, "== %s ==\n", step.UnitID)
		case runtime.StepEnded:
			if step.Ending != nil {
				fmt.Fprintf(w, "-- %s (%s) --\n", step.Ending.Title, step.Ending.EndingType)
			} else {
				fmt.Fprintf(w, "-- end of %s --\n", step.UnitID)
			}
		case runtime.StepStall, runtime.StepDenied:
			fmt.Fprintf(w, "!! %s: %s\n", step.Kind, step.Reason)
		}
	}
	fmt.Fprintf(w, "status: %s\n", tr.Status())
}

func init() {
	rootCmd.AddCommand(simulateCmd)
	simulateCmd.Flags().String("story", "", "Story to read")
	simulateCmd.Flags().String("unit", "", "Opening unit")
	simulateCmd.Flags().IntSlice("choose", nil, "Option indexes (0-based) to take at each choice, e.g. 0,1")
	simulateCmd.Flags().Bool("json", false, "Print the transcript as JSON")
}
