package types

import (
	"errors"
	"fmt"
	"strings"
)

// VectorLen is the required length of a frequency vector. Every behavior
// evaluation distributes its answers over exactly six buckets.
const VectorLen = 6

// Frequency vector slot indices. Slot 0 ("not informed") never contributes
// to score denominators.
const (
	SlotNotInformed = iota
	SlotReference
	SlotAlways
	SlotAlmostAlways
	SlotRarely
	SlotSeldom
)

// FrequencyLabels are the display names for the six vector slots, in slot order.
var FrequencyLabels = [VectorLen]string{
	"n/a", "reference", "always", "almost always", "rarely", "seldom",
}

// FrequencyVector is a 6-slot count distribution over the qualitative
// frequency buckets, from "not informed" (slot 0) to "seldom" (slot 5).
// A vector whose informative slots (1..5) are all zero carries no signal
// and is not scorable.
type FrequencyVector []int

// Validate checks the vector invariant: exactly six non-negative counts.
func (v FrequencyVector) Validate() error {
	if len(v) != VectorLen {
		return fmt.Errorf("frequency vector must have %d slots (got %d)", VectorLen, len(v))
	}
	for i, n := range v {
		if n < 0 {
			return fmt.Errorf("frequency vector slot %d is negative (%d)", i, n)
		}
	}
	return nil
}

// Sum returns the total count across all slots, including "not informed".
func (v FrequencyVector) Sum() int {
	total := 0
	for _, n := range v {
		total += n
	}
	return total
}

// ScorableSum returns the count total over the informative slots (1..5).
// This is the denominator used by both scoring models.
func (v FrequencyVector) ScorableSum() int {
	if len(v) != VectorLen {
		return 0
	}
	total := 0
	for _, n := range v[1:] {
		total += n
	}
	return total
}

// IsScorable reports whether the vector is well-formed and carries at least
// one informative answer.
func (v FrequencyVector) IsScorable() bool {
	return v.Validate() == nil && v.ScorableSum() > 0
}

// Clone returns an independent copy of the vector.
func (v FrequencyVector) Clone() FrequencyVector {
	if v == nil {
		return nil
	}
	out := make(FrequencyVector, len(v))
	copy(out, v)
	return out
}

// GroupEvaluation is one evaluator's frequency distribution for a behavior,
// given for both the collaborator and the peer group.
type GroupEvaluation struct {
	Evaluator    string          `json:"evaluator"`
	Collaborator FrequencyVector `json:"collaborator"`
	Group        FrequencyVector `json:"group"`
	Weight       float64         `json:"weight,omitempty"`
}

// Behavior is a named, weighted evaluable trait within a driver.
type Behavior struct {
	Name        string            `json:"name"`
	Weight      float64           `json:"weight,omitempty"`
	Evaluations []GroupEvaluation `json:"evaluations"`
}

// Driver is a named, weighted competency grouping of behaviors.
type Driver struct {
	Name      string     `json:"name"`
	Weight    float64    `json:"weight,omitempty"`
	Behaviors []Behavior `json:"behaviors"`
}

// Profile holds the optional descriptive attributes merged from a unit's
// profile file.
type Profile struct {
	FullName    string `json:"full_name,omitempty"`
	EmployeeID  string `json:"employee_id,omitempty"`
	Position    string `json:"position,omitempty"`
	Department  string `json:"department,omitempty"`
	Manager     string `json:"manager,omitempty"`
	ManagerID   string `json:"manager_id,omitempty"`
	CareerTrack string `json:"career_track,omitempty"`
	IsManager   bool   `json:"is_manager,omitempty"`
	Frozen      bool   `json:"frozen,omitempty"`
	FrozenAt    string `json:"frozen_at,omitempty"`
}

// AttendanceRecord is one attendance entry from a unit's attendance file.
type AttendanceRecord struct {
	Date    string `json:"date"`
	Present bool   `json:"present"`
	Notes   string `json:"notes,omitempty"`
}

// PaymentRecord is one payment entry from a unit's payments file.
type PaymentRecord struct {
	Date      string  `json:"date"`
	Amount    float64 `json:"amount"`
	Reference string  `json:"reference,omitempty"`
}

// PersonYearRecord is the canonical record for one (person, year) unit,
// assembled by the normalizer from the evaluation file and any companion
// files found in the same directory. It is immutable once built; a re-sync
// produces a replacement record rather than mutating it.
type PersonYearRecord struct {
	Person      string             `json:"person"`
	Year        int                `json:"year"`
	DisplayName string             `json:"display_name,omitempty"`
	Drivers     []Driver           `json:"drivers,omitempty"`
	Profile     *Profile           `json:"profile,omitempty"`
	Attendance  []AttendanceRecord `json:"attendance,omitempty"`
	Payments    []PaymentRecord    `json:"payments,omitempty"`
	Sources     []string           `json:"sources,omitempty"`
	Diagnostics []Diagnostic       `json:"diagnostics,omitempty"`
}

// Validate checks that the record carries a usable identity.
func (r *PersonYearRecord) Validate() error {
	if r.Person == "" {
		return fmt.Errorf("person is required")
	}
	if r.Year < 1900 || r.Year > 2200 {
		return fmt.Errorf("year %d is out of range", r.Year)
	}
	return nil
}

// HasEvaluations reports whether the record carries at least one scorable
// behavior evaluation.
func (r *PersonYearRecord) HasEvaluations() bool {
	for _, d := range r.Drivers {
		for _, b := range d.Behaviors {
			if len(b.Evaluations) > 0 {
				return true
			}
		}
	}
	return false
}

// EvaluationCount returns the number of group evaluations across all
// drivers and behaviors.
func (r *PersonYearRecord) EvaluationCount() int {
	n := 0
	for _, d := range r.Drivers {
		for _, b := range d.Behaviors {
			n += len(b.Evaluations)
		}
	}
	return n
}

// AttendanceRate returns the percentage of attendance entries marked
// present, or 0 when there are none.
func (r *PersonYearRecord) AttendanceRate() float64 {
	if len(r.Attendance) == 0 {
		return 0
	}
	present := 0
	for _, a := range r.Attendance {
		if a.Present {
			present++
		}
	}
	return float64(present) / float64(len(r.Attendance)) * 100
}

// PaymentTotal returns the sum of all payment amounts on the record.
func (r *PersonYearRecord) PaymentTotal() float64 {
	total := 0.0
	for _, p := range r.Payments {
		total += p.Amount
	}
	return total
}

// Model selects the scoring model applied to frequency vectors. The two
// models are mutually exclusive for a given run.
type Model string

const (
	// ModelLegacy is the historical weighted mean over [1, 4].
	ModelLegacy Model = "legacy"
	// ModelNPS is the valence-amplifying model over [-10, 10].
	ModelNPS Model = "nps"
)

// ErrUnknownModel reports a scoring-model selector outside the supported set.
var ErrUnknownModel = errors.New("unknown scoring model")

// IsValid checks if the model value is valid.
func (m Model) IsValid() bool {
	switch m {
	case ModelLegacy, ModelNPS:
		return true
	}
	return false
}

// ParseModel converts a user-supplied selector into a Model. Unsupported
// selectors are a configuration-time error, not a per-unit fault.
func ParseModel(s string) (Model, error) {
	m := Model(strings.ToLower(strings.TrimSpace(s)))
	if !m.IsValid() {
		return "", fmt.Errorf("%w %q (expected %q or %q)", ErrUnknownModel, s, ModelLegacy, ModelNPS)
	}
	return m, nil
}

// Category is the qualitative band a score falls into. Categories are
// defined on the NPS scale; legacy-model results carry none.
type Category string

const (
	CategoryExcellent      Category = "excellent"
	CategoryGood           Category = "good"
	CategoryRegular        Category = "regular"
	CategoryBelow          Category = "below"
	CategoryUnsatisfactory Category = "unsatisfactory"
	// CategoryNone marks results scored under a model without category bands.
	CategoryNone Category = ""
)

// IsValid checks if the category value is valid.
func (c Category) IsValid() bool {
	switch c {
	case CategoryExcellent, CategoryGood, CategoryRegular, CategoryBelow,
		CategoryUnsatisfactory, CategoryNone:
		return true
	}
	return false
}

// Display returns the human-facing label for the category.
func (c Category) Display() string {
	switch c {
	case CategoryExcellent:
		return "Excellent"
	case CategoryGood:
		return "Good"
	case CategoryRegular:
		return "Regular"
	case CategoryBelow:
		return "Below"
	case CategoryUnsatisfactory:
		return "Unsatisfactory"
	}
	return "-"
}

// ScoreResult is a computed score for one vector, behavior, driver, or
// record aggregate. Normalized is only populated under the NPS model when
// normalization was requested.
type ScoreResult struct {
	Model      Model    `json:"model"`
	Raw        float64  `json:"raw"`
	Normalized *float64 `json:"normalized,omitempty"`
	Category   Category `json:"category,omitempty"`
}

// Value returns the normalized score when present, otherwise the raw score.
func (s ScoreResult) Value() float64 {
	if s.Normalized != nil {
		return *s.Normalized
	}
	return s.Raw
}
