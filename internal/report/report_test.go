package report

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evalops/evalsync/internal/analysis"
	"github.com/evalops/evalsync/internal/types"
)

func norm(v float64) *float64 { return &v }

func npsResult(raw float64, normalized float64, cat types.Category) types.ScoreResult {
	return types.ScoreResult{Model: types.ModelNPS, Raw: raw, Normalized: norm(normalized), Category: cat}
}

func testCohort() *analysis.Cohort {
	return &analysis.Cohort{
		Year: 2024,
		People: []*analysis.PersonScore{
			{
				Person:       "maria",
				Year:         2024,
				DisplayName:  "Maria Silva",
				Rank:         1,
				Collaborator: npsResult(10, 100, types.CategoryExcellent),
				Group:        npsResult(5, 75, types.CategoryGood),
				Difference:   5,
				Behaviors: []analysis.BehaviorScore{
					{Driver: "delivery", Behavior: "ships on time"},
					{Driver: "delivery", Behavior: "owns outcomes"},
				},
				Drivers: []analysis.DriverScore{
					{
						Driver:       "delivery",
						Collaborator: npsResult(10, 100, types.CategoryExcellent),
						Group:        npsResult(8, 90, types.CategoryExcellent),
						Difference:   2,
						Behaviors:    2,
					},
				},
			},
			{
				Person:       "joao",
				Year:         2024,
				Rank:         2,
				Collaborator: npsResult(5, 75, types.CategoryGood),
				Group:        npsResult(6.5, 82.5, types.CategoryGood),
				Difference:   -1.5,
				Behaviors:    []analysis.BehaviorScore{{Driver: "delivery", Behavior: "ships on time"}},
			},
		},
		Skipped: []string{"zeca"},
	}
}

func testRecords() map[string]*types.PersonYearRecord {
	return map[string]*types.PersonYearRecord{
		"maria": {
			Person: "maria",
			Year:   2024,
			Attendance: []types.AttendanceRecord{
				{Date: "2024-01-10", Present: true},
				{Date: "2024-02-10", Present: true},
				{Date: "2024-03-10", Present: true},
				{Date: "2024-04-10", Present: false},
			},
			Payments: []types.PaymentRecord{
				{Date: "2024-01-31", Amount: 100},
				{Date: "2024-02-28", Amount: 50.5},
			},
		},
	}
}

func TestMarkdownCohortTable(t *testing.T) {
	md := Markdown(testCohort(), nil)

	assert.Contains(t, md, "# Evaluation cohort 2024")
	assert.Contains(t, md, "2 ranked, 1 skipped, scored with the nps model.")
	assert.Contains(t, md, "| 1 | Maria Silva (maria) | 10.00 (100.0) | 5.00 (75.0) | +5.00 | excellent |")
	assert.Contains(t, md, "| 2 | joao | 5.00 (75.0) | 6.50 (82.5) | -1.50 | good |")
}

func TestMarkdownDriverBreakdown(t *testing.T) {
	md := Markdown(testCohort(), nil)

	assert.Contains(t, md, "## Maria Silva (maria)")
	assert.Contains(t, md, "| delivery | 10.00 (100.0) | 8.00 (90.0) | +2.00 | 2 |")
	// joao carries no driver aggregate, so he gets no breakdown section.
	assert.NotContains(t, md, "## joao")
}

func TestMarkdownSkippedSection(t *testing.T) {
	md := Markdown(testCohort(), nil)
	assert.Contains(t, md, "## Skipped")
	assert.Contains(t, md, "- zeca")
}

func TestMarkdownLegacyScoresHaveNoNormalizedView(t *testing.T) {
	cohort := &analysis.Cohort{
		Year: 2023,
		People: []*analysis.PersonScore{{
			Person:       "ana",
			Year:         2023,
			Rank:         1,
			Collaborator: types.ScoreResult{Model: types.ModelLegacy, Raw: 3.25},
			Group:        types.ScoreResult{Model: types.ModelLegacy, Raw: 3},
			Difference:   0.25,
		}},
	}

	md := Markdown(cohort, nil)
	assert.Contains(t, md, "| 1 | ana | 3.25 | 3.00 | +0.25 | - |")
	assert.Contains(t, md, "scored with the legacy model")
}

func TestMarkdownAttendanceSection(t *testing.T) {
	md := Markdown(testCohort(), testRecords())

	assert.Contains(t, md, "## Attendance and payments")
	assert.Contains(t, md, "| Maria Silva (maria) | 75.0% | 150.50 |")

	// Without records the section is omitted entirely.
	assert.NotContains(t, Markdown(testCohort(), nil), "Attendance")
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, testCohort(), testRecords()))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, csvHeader, rows[0])
	assert.Equal(t, []string{
		"1", "maria", "Maria Silva",
		"10.00", "100.0", "5.00", "75.0",
		"5.00", "excellent", "2",
		"75.00", "150.50",
	}, rows[1])
	assert.Equal(t, []string{
		"2", "joao", "",
		"5.00", "75.0", "6.50", "82.5",
		"-1.50", "good", "1",
		"", "",
	}, rows[2])
}

func TestWriteCSVLegacyLeavesNormalizedEmpty(t *testing.T) {
	cohort := &analysis.Cohort{
		Year: 2023,
		People: []*analysis.PersonScore{{
			Person:       "ana",
			Rank:         1,
			Collaborator: types.ScoreResult{Model: types.ModelLegacy, Raw: 3.25},
			Group:        types.ScoreResult{Model: types.ModelLegacy, Raw: 3},
			Difference:   0.25,
		}},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, cohort, nil))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "", rows[1][4])
	assert.Equal(t, "", rows[1][6])
	assert.Equal(t, "", rows[1][8])
}

func TestWriteYear(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")

	paths, err := WriteYear(dir, testCohort(), testRecords())
	require.NoError(t, err)
	require.Len(t, paths, 2)

	assert.Equal(t, filepath.Join(dir, "comparative_2024.md"), paths[0])
	assert.Equal(t, filepath.Join(dir, "comparative_2024.csv"), paths[1])

	for _, path := range paths {
		body, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.NotEmpty(t, body)
	}
}

func TestWriteYearNilCohort(t *testing.T) {
	_, err := WriteYear(t.TempDir(), nil, nil)
	assert.Error(t, err)
}
