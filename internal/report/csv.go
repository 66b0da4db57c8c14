package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/evalops/evalsync/internal/analysis"
	"github.com/evalops/evalsync/internal/types"
)

// csvHeader is the fixed column set of the comparative CSV. Normalized
// columns are empty under models without a normalized view; attendance and
// payment columns are empty when no record supplies them.
var csvHeader = []string{
	"rank", "person", "display_name",
	"collaborator_raw", "collaborator_normalized",
	"group_raw", "group_normalized",
	"difference", "category", "behaviors",
	"attendance_rate", "payment_total",
}

// WriteCSV renders one cohort as CSV rows in rank order. records may be nil.
func WriteCSV(out io.Writer, cohort *analysis.Cohort, records map[string]*types.PersonYearRecord) error {
	w := csv.NewWriter(out)
	if err := w.Write(csvHeader); err != nil {
		return err
	}

	for _, p := range cohort.People {
		row := []string{
			strconv.Itoa(p.Rank),
			p.Person,
			p.DisplayName,
			formatFloat(p.Collaborator.Raw),
			formatNormalized(p.Collaborator),
			formatFloat(p.Group.Raw),
			formatNormalized(p.Group),
			formatFloat(p.Difference),
			string(p.Collaborator.Category),
			strconv.Itoa(len(p.Behaviors)),
			"", "",
		}
		if r := records[p.Person]; r != nil {
			if len(r.Attendance) > 0 {
				row[10] = formatFloat(r.AttendanceRate())
			}
			if len(r.Payments) > 0 {
				row[11] = formatFloat(r.PaymentTotal())
			}
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flushing rows: %w", err)
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func formatNormalized(r types.ScoreResult) string {
	if r.Normalized == nil {
		return ""
	}
	return strconv.FormatFloat(*r.Normalized, 'f', 1, 64)
}
