package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/noah-isme/sma-timetable-engine/internal/app"
	"github.com/noah-isme/sma-timetable-engine/internal/service"
)

var errInconsistent = errors.New("availability index is inconsistent")

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Rebuild the availability index from stored grids and report double bookings",
	RunE:  runAudit,
}

func init() {
	rootCmd.AddCommand(auditCmd)
}

func runAudit(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd.Context(), app.Options{SkipPersist: true})
	if err != nil {
		if conflicts := service.ConflictsOf(err); len(conflicts) > 0 {
			if werr := writeJSON(cmd.OutOrStdout(), conflicts); werr != nil {
				return werr
			}
			return fmt.Errorf("%w: %d stored conflicts", errInconsistent, len(conflicts))
		}
		return err
	}
	defer a.Close() //nolint:errcheck

	report := a.Timetable.Verify(cmd.Context())
	if err := writeJSON(cmd.OutOrStdout(), report); err != nil {
		return err
	}
	if !report.Consistent {
		return errInconsistent
	}
	return nil
}
