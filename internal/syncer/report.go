package syncer

import (
	"sort"
	"time"

	"github.com/evalops/evalsync/internal/analysis"
	"github.com/evalops/evalsync/internal/types"
)

// UnitReport is the outcome of one (person, year) unit within a sync pass.
type UnitReport struct {
	Person      string                `json:"person"`
	Year        int                   `json:"year"`
	Dir         string                `json:"dir"`
	Outcome     types.UnitOutcome     `json:"outcome"`
	Diagnostics []types.Diagnostic    `json:"diagnostics,omitempty"`
	Score       *analysis.PersonScore `json:"score,omitempty"`
	Err         error                 `json:"-"`
}

// Report summarizes one sync pass. Every discovered unit lands in exactly
// one of the four counters.
type Report struct {
	RunID      string
	DataDir    string
	Model      types.Model
	StartedAt  time.Time
	FinishedAt time.Time
	Discovered int
	Processed  int
	Unchanged  int
	Issues     int
	Failed     int
	Units      []UnitReport
	Cohorts    map[int]*analysis.Cohort
}

// Duration returns the wall-clock time of the pass.
func (r *Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Clean reports whether every discovered unit synced without issues or
// failures.
func (r *Report) Clean() bool {
	return r.Issues == 0 && r.Failed == 0
}

// FailedUnits returns the units that hit a fatal fault.
func (r *Report) FailedUnits() []UnitReport {
	var failed []UnitReport
	for _, u := range r.Units {
		if u.Outcome == types.OutcomeFailed {
			failed = append(failed, u)
		}
	}
	return failed
}

// IssueUnits returns the units that processed with diagnostics.
func (r *Report) IssueUnits() []UnitReport {
	var issues []UnitReport
	for _, u := range r.Units {
		if u.Outcome == types.OutcomeIssues {
			issues = append(issues, u)
		}
	}
	return issues
}

// Years returns the cohort years of the pass in ascending order.
func (r *Report) Years() []int {
	years := make([]int, 0, len(r.Cohorts))
	for year := range r.Cohorts {
		years = append(years, year)
	}
	sort.Ints(years)
	return years
}
