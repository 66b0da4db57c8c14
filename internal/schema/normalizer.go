package schema

import (
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/evalops/evalsync/internal/loader"
	"github.com/evalops/evalsync/internal/structure"
	"github.com/evalops/evalsync/internal/types"
)

// Normalize assembles the canonical record for one (person, year) unit from
// whichever of the unit's files exist. Identity comes from the resolved
// path; an in-file year that disagrees is recorded as a diagnostic and the
// path wins. Structural defects and rejected evaluations collect on the
// record. Only read and parse failures return an error; whether that aborts
// the run is the orchestrator's decision.
func Normalize(unit structure.Unit) (*types.PersonYearRecord, error) {
	record := &types.PersonYearRecord{
		Person:      unit.Person,
		Year:        unit.Year,
		DisplayName: unit.Person,
	}

	var evalData gjson.Result
	if path := unit.File(EvaluationFile); path != "" {
		result := loader.Load(path)
		if result.Fatal() {
			return nil, fmt.Errorf("%s: %w", EvaluationFile, result.Err)
		}
		record.Sources = append(record.Sources, EvaluationFile)
		record.Diagnostics = append(record.Diagnostics, result.Diagnostics...)
		evalData = result.Doc.Get("data")
		mergeEvaluation(record, evalData)
	}

	if path := unit.File(ProfileFile); path != "" {
		doc, err := loader.ReadDoc(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", ProfileFile, err)
		}
		record.Sources = append(record.Sources, ProfileFile)
		record.Profile = profileOf(doc)
		if record.DisplayName == unit.Person && record.Profile.FullName != "" {
			record.DisplayName = record.Profile.FullName
		}
	}

	if path := unit.File(AttendanceFile); path != "" {
		doc, err := loader.ReadDoc(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", AttendanceFile, err)
		}
		record.Sources = append(record.Sources, AttendanceFile)
		record.Attendance = attendanceOf(listNode(doc, aliasAttendanceList))
	} else if inline := pick(evalData, aliasAttendanceList); inline.Exists() {
		record.Attendance = attendanceOf(inline)
	}

	if path := unit.File(PaymentsFile); path != "" {
		doc, err := loader.ReadDoc(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", PaymentsFile, err)
		}
		record.Sources = append(record.Sources, PaymentsFile)
		record.Payments = paymentsOf(listNode(doc, aliasPaymentList))
	} else if inline := pick(evalData, aliasPaymentList); inline.Exists() {
		record.Payments = paymentsOf(inline)
	}

	// data.json is the free-form person file; it only fills gaps.
	if path := unit.File(PersonDataFile); path != "" {
		doc, err := loader.ReadDoc(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", PersonDataFile, err)
		}
		record.Sources = append(record.Sources, PersonDataFile)
		if record.DisplayName == unit.Person {
			record.DisplayName = pickString(doc, aliasName, record.DisplayName)
		}
		if len(record.Attendance) == 0 {
			record.Attendance = attendanceOf(pick(doc, aliasAttendanceList))
		}
		if len(record.Payments) == 0 {
			record.Payments = paymentsOf(pick(doc, aliasPaymentList))
		}
	}

	return record, nil
}

// mergeEvaluation translates the evaluation document's driver tree onto the
// record, rejecting evaluations whose frequency vectors are unusable.
func mergeEvaluation(record *types.PersonYearRecord, data gjson.Result) {
	if !data.Exists() {
		return
	}

	if name := pickString(data, aliasName, ""); name != "" {
		record.DisplayName = name
	}
	if yearField := pick(data, aliasYear); yearField.Exists() {
		if y := int(yearField.Int()); y != 0 && y != record.Year {
			record.Diagnostics = append(record.Diagnostics, types.Diag(types.DiagYearMismatch,
				"document says year %d but the path says %d; using the path", y, record.Year))
		}
	}

	for _, d := range data.Get("direcionadores").Array() {
		driver := types.Driver{
			Name:   pickString(d, aliasName, ""),
			Weight: pick(d, aliasWeight).Float(),
		}
		for _, b := range d.Get("comportamentos").Array() {
			behavior := types.Behavior{
				Name:   pickString(b, aliasName, ""),
				Weight: pick(b, aliasWeight).Float(),
			}
			for k, ev := range b.Get("avaliacoes_grupo").Array() {
				collab, okCollab := vectorOf(ev.Get("frequencia_colaborador"))
				group, okGroup := vectorOf(ev.Get("frequencia_grupo"))
				if !okCollab || !okGroup {
					record.Diagnostics = append(record.Diagnostics, types.Diag(types.DiagBadVector,
						"skipped evaluation %d of behavior %q in driver %q: malformed frequency vector",
						k+1, behavior.Name, driver.Name))
					continue
				}
				if !collab.IsScorable() || !group.IsScorable() {
					record.Diagnostics = append(record.Diagnostics, types.Diag(types.DiagZeroVector,
						"skipped evaluation %d of behavior %q in driver %q: no scorable marks",
						k+1, behavior.Name, driver.Name))
					continue
				}
				behavior.Evaluations = append(behavior.Evaluations, types.GroupEvaluation{
					Evaluator:    pickString(ev, aliasEvaluator, ""),
					Collaborator: collab,
					Group:        group,
					Weight:       pick(ev, aliasWeight).Float(),
				})
			}
			driver.Behaviors = append(driver.Behaviors, behavior)
		}
		record.Drivers = append(record.Drivers, driver)
	}
}

// vectorOf converts a frequency array node. ok is false when the node is
// absent, non-numeric, the wrong length, or carries negative counts.
func vectorOf(node gjson.Result) (types.FrequencyVector, bool) {
	if !node.Exists() || !node.IsArray() {
		return nil, false
	}
	items := node.Array()
	vec := make(types.FrequencyVector, 0, len(items))
	for _, item := range items {
		if item.Type != gjson.Number {
			return nil, false
		}
		vec = append(vec, int(item.Int()))
	}
	if vec.Validate() != nil {
		return nil, false
	}
	return vec, true
}

// listNode unwraps companion files that are either a bare JSON list or an
// object holding the list under a known name.
func listNode(doc gjson.Result, names []string) gjson.Result {
	if doc.IsArray() {
		return doc
	}
	return pick(doc, names)
}

func attendanceOf(list gjson.Result) []types.AttendanceRecord {
	var records []types.AttendanceRecord
	for _, entry := range list.Array() {
		records = append(records, types.AttendanceRecord{
			Date:    pickString(entry, aliasDate, ""),
			Present: presentOf(entry),
			Notes:   pickString(entry, aliasNotes, ""),
		})
	}
	return records
}

func paymentsOf(list gjson.Result) []types.PaymentRecord {
	var records []types.PaymentRecord
	for _, entry := range list.Array() {
		records = append(records, types.PaymentRecord{
			Date:      pickString(entry, aliasDate, ""),
			Amount:    pick(entry, aliasAmount).Float(),
			Reference: pickString(entry, aliasReference, ""),
		})
	}
	return records
}

func profileOf(doc gjson.Result) *types.Profile {
	return &types.Profile{
		FullName:    pickString(doc, aliasFullName, ""),
		EmployeeID:  pickString(doc, aliasEmployeeID, ""),
		Position:    pickString(doc, aliasPosition, ""),
		Department:  pickString(doc, aliasDepartment, ""),
		Manager:     pickString(doc, aliasManager, ""),
		ManagerID:   pickString(doc, aliasManagerID, ""),
		CareerTrack: pickString(doc, aliasCareerTrack, ""),
		IsManager:   pick(doc, aliasIsManager).Bool(),
		Frozen:      pick(doc, aliasFrozen).Bool(),
		FrozenAt:    pickString(doc, aliasFrozenAt, ""),
	}
}
