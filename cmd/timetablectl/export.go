package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/noah-isme/sma-timetable-engine/internal/app"
)

var (
	exportClassroom string
	exportTeacher   string
	exportOut       string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write timetables as CSV",
	Long:  "Writes one classroom, one teacher, or every allocation when neither flag is set.",
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().StringVar(&exportClassroom, "classroom", "", "classroom id")
	exportCmd.Flags().StringVar(&exportTeacher, "teacher", "", "teacher id")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output file (default stdout)")
	exportCmd.MarkFlagsMutuallyExclusive("classroom", "teacher")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx, app.Options{SkipPersist: true})
	if err != nil {
		return err
	}
	defer a.Close() //nolint:errcheck

	var payload []byte
	switch {
	case exportClassroom != "":
		payload, err = a.Export.ClassroomCSV(ctx, exportClassroom)
	case exportTeacher != "":
		payload, err = a.Export.TeacherCSV(ctx, exportTeacher)
	default:
		payload, err = a.Export.AllocationsCSV(ctx)
	}
	if err != nil {
		return err
	}

	if exportOut == "" {
		_, err = cmd.OutOrStdout().Write(payload)
		return err
	}
	if err := os.WriteFile(exportOut, payload, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", exportOut, err)
	}
	return nil
}
