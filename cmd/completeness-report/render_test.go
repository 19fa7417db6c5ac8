package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-attendance-api/internal/service"
	"github.com/noah-isme/sma-attendance-api/pkg/completeness"
	"github.com/noah-isme/sma-attendance-api/pkg/schoolcal"
)

func sampleReport() *service.CompletenessReport {
	return &service.CompletenessReport{
		Month:          "2025-01",
		From:           schoolcal.MustParseDate("2025-01-01"),
		To:             schoolcal.MustParseDate("2025-01-31"),
		EffectiveEnd:   schoolcal.MustParseDate("2025-01-07"),
		ActiveDays:     5,
		Expected:       10,
		Recorded:       9,
		Missing:        1,
		CompletionRate: 90,
		Groups: []completeness.Group{{
			TeacherID:   "teacher-1",
			TeacherName: "Bu Sari",
			Students:    2,
			Expected:    10,
			Missing: []completeness.Entry{
				{Date: schoolcal.MustParseDate("2025-01-07"), StudentID: "student-1", StudentName: "Rina"},
			},
		}},
	}
}

func TestWriteTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeTable(&buf, sampleReport()))

	out := buf.String()
	assert.Contains(t, out, "Range 2025-01-01 .. 2025-01-31 (evaluated through 2025-01-07)")
	assert.Contains(t, out, "missing 1 (90.0% complete)")
	assert.Contains(t, out, "Bu Sari (teacher-1)")
	assert.Contains(t, out, "Rina (student-1)")
}

func TestWriteTableWithoutGaps(t *testing.T) {
	report := sampleReport()
	report.Groups = nil
	var buf bytes.Buffer
	require.NoError(t, writeTable(&buf, report))
	assert.Contains(t, buf.String(), "No missing entries.")
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeJSON(&buf, sampleReport()))

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "2025-01-07", decoded["effective_end"])
	assert.EqualValues(t, 1, decoded["missing"])
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, exitMissing, exitCode(sampleReport()))

	complete := sampleReport()
	complete.Missing = 0
	complete.Groups = nil
	assert.Equal(t, exitOK, exitCode(complete))
}
