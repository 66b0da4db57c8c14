package types

import "fmt"

// FileStatus classifies one source file after loading and validation.
type FileStatus string

const (
	// FileOK means the document parsed and passed every structural check.
	FileOK FileStatus = "ok"
	// FileIssues means the document parsed but has structural defects.
	FileIssues FileStatus = "issues"
	// FileError means the document could not be read or parsed at all.
	FileError FileStatus = "error"
)

// IsValid checks if the file status value is valid.
func (s FileStatus) IsValid() bool {
	switch s {
	case FileOK, FileIssues, FileError:
		return true
	}
	return false
}

// DiagCode identifies a class of structural defect so tests and callers can
// branch on the cause rather than parse message text.
type DiagCode string

const (
	DiagMissingData        DiagCode = "missing_data"
	DiagMissingDrivers     DiagCode = "missing_drivers"
	DiagEmptyDrivers       DiagCode = "empty_drivers"
	DiagMissingBehaviors   DiagCode = "missing_behaviors"
	DiagMissingEvaluations DiagCode = "missing_evaluations"
	DiagMissingVector      DiagCode = "missing_vector"
	DiagNotAList           DiagCode = "not_a_list"
	DiagBadVector          DiagCode = "bad_vector"
	DiagZeroVector         DiagCode = "zero_vector"
	DiagYearMismatch       DiagCode = "year_mismatch"
)

// Diagnostic is one structural defect found in a source document. Messages
// carry one-based positions so a defect can be traced back to the offending
// entry in the file.
type Diagnostic struct {
	Code    DiagCode `json:"code"`
	Message string   `json:"message"`
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: %s", d.Code, d.Message)
}

// Diag builds a diagnostic with a formatted message.
func Diag(code DiagCode, format string, args ...interface{}) Diagnostic {
	return Diagnostic{Code: code, Message: fmt.Sprintf(format, args...)}
}

// HasCode reports whether any diagnostic in the slice carries the given code.
func HasCode(diags []Diagnostic, code DiagCode) bool {
	for _, d := range diags {
		if d.Code == code {
			return true
		}
	}
	return false
}

// UnitOutcome classifies one (person, year) unit at the end of a sync run.
type UnitOutcome string

const (
	// OutcomeProcessed means the unit was (re)processed cleanly.
	OutcomeProcessed UnitOutcome = "processed"
	// OutcomeUnchanged means the fingerprint matched and the unit was skipped.
	OutcomeUnchanged UnitOutcome = "unchanged"
	// OutcomeIssues means the unit was processed but carries diagnostics.
	OutcomeIssues UnitOutcome = "issues"
	// OutcomeFailed means the unit hit a fatal per-unit fault (I/O, JSON).
	OutcomeFailed UnitOutcome = "failed"
)

// IsValid checks if the unit outcome value is valid.
func (o UnitOutcome) IsValid() bool {
	switch o {
	case OutcomeProcessed, OutcomeUnchanged, OutcomeIssues, OutcomeFailed:
		return true
	}
	return false
}
