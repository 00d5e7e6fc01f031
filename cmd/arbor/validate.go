package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var errInvalidGraph = errors.New("validation failed")

var validateCmd = &cobra.Command{
	Use:   "validate [dir]",
	Short: "Check unit graphs for consistency",
	Long: `Checks every unit of the library, or the one given with --unit, and
reports start node problems, dangling edges, bad slots, condition syntax
errors, unreachable nodes and dead ends.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		stack, err := openStack(cmd, args)
		if err != nil {
			return err
		}
		defer stack.Close()

		ctx := cmd.Context()
		units := []string{}
		if unit, _ := cmd.Flags().GetString("unit"); unit != "" {
			units = append(units, unit)
		} else if units, err = stack.Engine.Units(ctx); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		failed := 0
		for _, unit := range units {
			report, err := stack.Engine.Validate(ctx, unit)
			if err != nil {
				return err
			}
			if len(report.Issues) == 0 {
				fmt.Fprintf(out, "%s: ok\n", unit)
				continue
			}
			fmt.Fprintf(out, "%s:\n", unit)
			for _, issue := range report.Issues {
				where := issue.NodeID
				if issue.EdgeID != "" {
					where = issue.EdgeID
				}
				fmt.Fprintf(out, "  %-7s %-20s %-12s %s\n", issue.Severity, issue.Code, where, issue.Message)
			}
			if !report.Valid() {
				failed++
			}
		}
		if failed > 0 {
			return fmt.Errorf("%w: %d of %d units have errors", errInvalidGraph, failed, len(units))
		}
		fmt.Fprintln(out, "Graph is valid! ✅")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().String("unit", "", "Validate only this unit")
}
