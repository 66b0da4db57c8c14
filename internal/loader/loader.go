package loader

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/tidwall/gjson"

	"github.com/evalops/evalsync/internal/types"
)

// ErrMalformed marks files whose contents are not valid JSON.
var ErrMalformed = errors.New("malformed JSON")

// Result is the outcome of loading one evaluation file. Load never fails
// outright; parse and read errors are carried in Err with Status set to
// error, and the abort-or-continue decision stays with the caller.
type Result struct {
	Path        string
	Status      types.FileStatus
	Doc         gjson.Result
	Raw         []byte
	Diagnostics []types.Diagnostic
	Err         error
}

// Fatal reports whether the file could not be read or parsed at all.
func (r *Result) Fatal() bool {
	return r.Status == types.FileError
}

// Message renders the error for display when the result is fatal.
func (r *Result) Message() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// ReadDoc reads and parses any JSON file without shape validation, for
// companion files whose structure varies.
func ReadDoc(path string) (gjson.Result, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("failed to read file: %w", err)
	}
	var probe any
	if err := json.Unmarshal(raw, &probe); err != nil {
		return gjson.Result{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return gjson.ParseBytes(raw), nil
}

// Load reads and validates one evaluation document. Structural defects are
// itemized one diagnostic per defect, indexed by position, and downgrade the
// status to issues; only read and parse failures produce the error status.
func Load(path string) *Result {
	result := &Result{Path: path, Status: types.FileOK}

	raw, err := os.ReadFile(path)
	if err != nil {
		result.Status = types.FileError
		result.Err = fmt.Errorf("failed to read file: %w", err)
		return result
	}
	result.Raw = raw

	var probe any
	if err := json.Unmarshal(raw, &probe); err != nil {
		result.Status = types.FileError
		result.Err = fmt.Errorf("%w: %v", ErrMalformed, err)
		return result
	}

	result.Doc = gjson.ParseBytes(raw)
	result.Diagnostics = diagnose(result.Doc)
	if len(result.Diagnostics) > 0 {
		result.Status = types.FileIssues
	}
	return result
}

// diagnose walks the evaluation document shape: data.direcionadores[] ->
// comportamentos[] -> avaliacoes_grupo[] with two frequency lists per entry.
// Positions in messages are 1-indexed.
func diagnose(doc gjson.Result) []types.Diagnostic {
	var diags []types.Diagnostic

	data := doc.Get("data")
	if !data.Exists() {
		return append(diags, types.Diag(types.DiagMissingData, "missing 'data' field"))
	}

	drivers := data.Get("direcionadores")
	switch {
	case !drivers.Exists():
		return append(diags, types.Diag(types.DiagMissingDrivers, "missing 'direcionadores' field"))
	case !drivers.IsArray():
		return append(diags, types.Diag(types.DiagNotAList, "'direcionadores' is not a list"))
	case len(drivers.Array()) == 0:
		return append(diags, types.Diag(types.DiagEmptyDrivers, "empty 'direcionadores' list"))
	}

	for i, driver := range drivers.Array() {
		behaviors := driver.Get("comportamentos")
		if !behaviors.Exists() {
			diags = append(diags, types.Diag(types.DiagMissingBehaviors,
				"driver %d has no 'comportamentos' field", i+1))
			continue
		}
		if !behaviors.IsArray() {
			diags = append(diags, types.Diag(types.DiagNotAList,
				"'comportamentos' is not a list in driver %d", i+1))
			continue
		}

		for j, behavior := range behaviors.Array() {
			evals := behavior.Get("avaliacoes_grupo")
			if !evals.Exists() {
				diags = append(diags, types.Diag(types.DiagMissingEvaluations,
					"behavior %d in driver %d has no 'avaliacoes_grupo' field", j+1, i+1))
				continue
			}
			if !evals.IsArray() {
				diags = append(diags, types.Diag(types.DiagNotAList,
					"'avaliacoes_grupo' is not a list in behavior %d of driver %d", j+1, i+1))
				continue
			}

			for k, eval := range evals.Array() {
				diags = append(diags, diagnoseVector(eval, "frequencia_colaborador", i, j, k)...)
				diags = append(diags, diagnoseVector(eval, "frequencia_grupo", i, j, k)...)
			}
		}
	}
	return diags
}

func diagnoseVector(eval gjson.Result, field string, i, j, k int) []types.Diagnostic {
	vec := eval.Get(field)
	if !vec.Exists() {
		return []types.Diagnostic{types.Diag(types.DiagMissingVector,
			"evaluation %d in behavior %d of driver %d has no '%s' field", k+1, j+1, i+1, field)}
	}
	if !vec.IsArray() {
		return []types.Diagnostic{types.Diag(types.DiagNotAList,
			"'%s' is not a list in evaluation %d of behavior %d, driver %d", field, k+1, j+1, i+1)}
	}
	return nil
}
