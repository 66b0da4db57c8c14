// Package report renders scored cohorts as markdown and CSV files.
//
// One pair of files is written per evaluated year, comparative_<year>.md and
// comparative_<year>.csv, so downstream tooling can diff a year's standing
// across sync runs.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/evalops/evalsync/internal/analysis"
	"github.com/evalops/evalsync/internal/types"
)

// WriteYear writes the markdown and CSV summaries for one cohort under dir,
// creating it as needed. records may be nil; when present it is keyed by
// person and supplies the attendance and payment figures. Returns the paths
// written.
func WriteYear(dir string, cohort *analysis.Cohort, records map[string]*types.PersonYearRecord) ([]string, error) {
	if cohort == nil {
		return nil, fmt.Errorf("nil cohort")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating report directory: %w", err)
	}

	mdPath := filepath.Join(dir, fmt.Sprintf("comparative_%d.md", cohort.Year))
	if err := os.WriteFile(mdPath, []byte(Markdown(cohort, records)), 0644); err != nil {
		return nil, fmt.Errorf("writing %s: %w", mdPath, err)
	}

	csvPath := filepath.Join(dir, fmt.Sprintf("comparative_%d.csv", cohort.Year))
	f, err := os.Create(csvPath)
	if err != nil {
		return nil, fmt.Errorf("create %q: %w", csvPath, err)
	}
	defer f.Close()
	if err := WriteCSV(f, cohort, records); err != nil {
		return nil, fmt.Errorf("writing %s: %w", csvPath, err)
	}

	return []string{mdPath, csvPath}, nil
}

// Markdown renders one cohort as a markdown document: the ranked table, a
// per-person driver breakdown, and attendance/payment figures when the
// records carry them.
func Markdown(cohort *analysis.Cohort, records map[string]*types.PersonYearRecord) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("# Evaluation cohort %d\n\n", cohort.Year))
	b.WriteString(fmt.Sprintf("%d ranked", len(cohort.People)))
	if len(cohort.Skipped) > 0 {
		b.WriteString(fmt.Sprintf(", %d skipped", len(cohort.Skipped)))
	}
	if len(cohort.People) > 0 {
		b.WriteString(fmt.Sprintf(", scored with the %s model", cohort.People[0].Collaborator.Model))
	}
	b.WriteString(".\n\n")

	if len(cohort.People) > 0 {
		b.WriteString("| Rank | Person | Collaborator | Group | Difference | Category |\n")
		b.WriteString("|-----:|--------|-------------:|------:|-----------:|----------|\n")
		for _, p := range cohort.People {
			b.WriteString(fmt.Sprintf("| %d | %s | %s | %s | %+.2f | %s |\n",
				p.Rank, displayName(p), fmtScore(p.Collaborator), fmtScore(p.Group),
				p.Difference, fmtCategory(p.Collaborator.Category)))
		}
		b.WriteString("\n")
	}

	for _, p := range cohort.People {
		if len(p.Drivers) == 0 {
			continue
		}
		b.WriteString(fmt.Sprintf("## %s\n\n", displayName(p)))
		b.WriteString("| Driver | Collaborator | Group | Difference | Behaviors |\n")
		b.WriteString("|--------|-------------:|------:|-----------:|----------:|\n")
		for _, d := range p.Drivers {
			b.WriteString(fmt.Sprintf("| %s | %s | %s | %+.2f | %d |\n",
				d.Driver, fmtScore(d.Collaborator), fmtScore(d.Group), d.Difference, d.Behaviors))
		}
		b.WriteString("\n")
	}

	if section := attendanceSection(cohort, records); section != "" {
		b.WriteString(section)
	}

	if len(cohort.Skipped) > 0 {
		b.WriteString("## Skipped\n\n")
		b.WriteString("Nothing scorable was found for:\n\n")
		for _, person := range sortedCopy(cohort.Skipped) {
			b.WriteString(fmt.Sprintf("- %s\n", person))
		}
		b.WriteString("\n")
	}

	return b.String()
}

// attendanceSection renders the attendance and payment table, or "" when no
// record carries either.
func attendanceSection(cohort *analysis.Cohort, records map[string]*types.PersonYearRecord) string {
	if len(records) == 0 {
		return ""
	}

	any := false
	for _, p := range cohort.People {
		r := records[p.Person]
		if r != nil && (len(r.Attendance) > 0 || len(r.Payments) > 0) {
			any = true
			break
		}
	}
	if !any {
		return ""
	}

	var b strings.Builder
	b.WriteString("## Attendance and payments\n\n")
	b.WriteString("| Person | Attendance | Payments |\n")
	b.WriteString("|--------|-----------:|---------:|\n")
	for _, p := range cohort.People {
		r := records[p.Person]
		if r == nil || (len(r.Attendance) == 0 && len(r.Payments) == 0) {
			continue
		}
		attendance := "-"
		if len(r.Attendance) > 0 {
			attendance = fmt.Sprintf("%.1f%%", r.AttendanceRate())
		}
		payments := "-"
		if len(r.Payments) > 0 {
			payments = fmt.Sprintf("%.2f", r.PaymentTotal())
		}
		b.WriteString(fmt.Sprintf("| %s | %s | %s |\n", displayName(p), attendance, payments))
	}
	b.WriteString("\n")
	return b.String()
}

func displayName(p *analysis.PersonScore) string {
	if p.DisplayName != "" && p.DisplayName != p.Person {
		return fmt.Sprintf("%s (%s)", p.DisplayName, p.Person)
	}
	return p.Person
}

// fmtScore renders a raw score with its normalized view when present, e.g.
// "10.00" or "10.00 (100.0)".
func fmtScore(r types.ScoreResult) string {
	if r.Normalized != nil {
		return fmt.Sprintf("%.2f (%.1f)", r.Raw, *r.Normalized)
	}
	return fmt.Sprintf("%.2f", r.Raw)
}

func fmtCategory(c types.Category) string {
	if c == types.CategoryNone {
		return "-"
	}
	return string(c)
}

func sortedCopy(values []string) []string {
	out := make([]string, len(values))
	copy(out, values)
	sort.Strings(out)
	return out
}
