package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/arbor/internal/presentation/graph"
)

var graphCmd = &cobra.Command{
	Use:   "graph [dir]",
	Short: "Export a unit graph as a Mermaid diagram",
	Long: `Outputs a Mermaid flowchart (graph TD) of a unit. With --session the
nodes the reader visited and the current node are highlighted.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		unit, _ := cmd.Flags().GetString("unit")
		if unit == "" {
			return fmt.Errorf("--unit is required")
		}
		stack, err := openStack(cmd, args)
		if err != nil {
			return err
		}
		defer stack.Close()

		ctx := cmd.Context()
		g, err := stack.Engine.Inspect(ctx, unit)
		if err != nil {
			return fmt.Errorf("error inspecting graph: %w", err)
		}

		var overlay *graph.Overlay
		if sessionID, _ := cmd.Flags().GetString("session"); sessionID != "" {
			p, err := stack.Engine.Sessions().Load(ctx, sessionID)
			if err != nil {
				return err
			}
			overlay = &graph.Overlay{Visited: p.Trail, Current: p.NodeID}
		}
		fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(g, overlay))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().String("unit", "", "Unit to draw")
	graphCmd.Flags().String("session", "", "Overlay the trail of this session")
}
