package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/noah-isme/sma-attendance-api/internal/service"
)

// exitCode signals outstanding entries to scripts wrapping the tool.
func exitCode(report *service.CompletenessReport) int {
	if report != nil && report.Missing > 0 {
		return exitMissing
	}
	return exitOK
}

func writeJSON(w io.Writer, report *service.CompletenessReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

func writeTable(w io.Writer, report *service.CompletenessReport) error {
	fmt.Fprintf(w, "Range %s .. %s (evaluated through %s)\n", report.From, report.To, report.EffectiveEnd)
	fmt.Fprintf(w, "Active days %d, expected %d, recorded %d, missing %d (%.1f%% complete)\n\n",
		report.ActiveDays, report.Expected, report.Recorded, report.Missing, report.CompletionRate)

	if len(report.Groups) == 0 {
		_, err := fmt.Fprintln(w, "No missing entries.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TEACHER\tSTUDENT\tDATE")
	for _, group := range report.Groups {
		teacher := group.TeacherID
		if group.TeacherName != "" {
			teacher = fmt.Sprintf("%s (%s)", group.TeacherName, group.TeacherID)
		}
		for _, entry := range group.Missing {
			student := entry.StudentID
			if entry.StudentName != "" {
				student = fmt.Sprintf("%s (%s)", entry.StudentName, entry.StudentID)
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\n", teacher, student, entry.Date)
		}
	}
	return tw.Flush()
}
