package main

import (
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/internal/cli"
)

var playCmd = &cobra.Command{
	Use:   "play [dir]",
	Short: "Read a story interactively",
	Long: `Opens a reading session and plays it in the terminal.
A session id that already has saved progress is resumed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		stack, err := openStack(cmd, args)
		if err != nil {
			return err
		}
		defer stack.Close()

		opts := cli.PlayOptions{Version: arbor.Version}
		opts.StoryID, _ = cmd.Flags().GetString("story")
		opts.UnitID, _ = cmd.Flags().GetString("unit")
		opts.SessionID, _ = cmd.Flags().GetString("session")
		opts.ReaderID, _ = cmd.Flags().GetString("reader")
		opts.Variables, _ = cmd.Flags().GetString("vars")
		opts.Fresh, _ = cmd.Flags().GetBool("fresh")
		opts.JSON, _ = cmd.Flags().GetBool("json")
		opts.Headless, _ = cmd.Flags().GetBool("headless")
		if !cmd.Flags().Changed("headless") && !term.IsTerminal(int(os.Stdin.Fd())) {
			opts.Headless = true
		}

		ctx := cli.NewSignalContext(cmd.Context())
		defer ctx.Cancel()
		return cli.Play(ctx, stack.Engine, opts, cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(playCmd)

	playCmd.Flags().String("story", "", "Story to read")
	playCmd.Flags().String("unit", "", "Unit to open; without --story the unit plays on its own")
	playCmd.Flags().StringP("session", "s", "", "Session id; existing progress is resumed")
	playCmd.Flags().String("reader", "", "Reader id checked against entitlements")
	playCmd.Flags().String("vars", "", "Initial variables as a JSON object")
	playCmd.Flags().Bool("fresh", false, "Discard saved progress of the session before reading")
	playCmd.Flags().Bool("headless", false, "Plain text output without styling (default when Stdin is not a terminal)")
	playCmd.Flags().Bool("json", false, "Run in JSON mode (NDJSON input/output)")

	rootCmd.RunE = playCmd.RunE
	rootCmd.Flags().AddFlagSet(playCmd.Flags())
}
