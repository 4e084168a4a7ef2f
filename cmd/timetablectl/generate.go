package main

import (
	"github.com/spf13/cobra"

	"github.com/noah-isme/sma-timetable-engine/internal/app"
	"github.com/noah-isme/sma-timetable-engine/internal/service"
)

var generateDryRun bool

var generateCmd = &cobra.Command{
	Use:   "generate <classroom-id>",
	Short: "Regenerate a classroom grid around the other classrooms' bookings",
	Args:  cobra.ExactArgs(1),
	RunE:  runGenerate,
}

func init() {
	generateCmd.Flags().BoolVar(&generateDryRun, "dry-run", false, "print the grid without storing it")
	rootCmd.AddCommand(generateCmd)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx, app.Options{SkipPersist: generateDryRun})
	if err != nil {
		return err
	}
	defer a.Close() //nolint:errcheck

	snapshot, err := a.Timetable.Regenerate(ctx, args[0])
	if err != nil {
		if conflicts := service.ConflictsOf(err); len(conflicts) > 0 {
			_ = writeJSON(cmd.ErrOrStderr(), conflicts)
		}
		return err
	}
	return writeJSON(cmd.OutOrStdout(), snapshot)
}
