package schema

import "github.com/tidwall/gjson"

// Canonical file names within a unit directory. The evaluation file is the
// scoring source; the others are optional companions.
const (
	EvaluationFile = "resultado.json"
	ProfileFile    = "perfil.json"
	AttendanceFile = "frequencias.json"
	PaymentsFile   = "pagamentos.json"
	PersonDataFile = "data.json"
)

// Field aliases accepted in source documents, Portuguese first. The
// evaluation structure fields (direcionadores, comportamentos,
// avaliacoes_grupo, frequencia_*) have a single spelling and are not listed.
var (
	aliasName      = []string{"nome", "name"}
	aliasYear      = []string{"ano", "year"}
	aliasWeight    = []string{"peso", "weight"}
	aliasEvaluator = []string{"avaliador", "evaluator"}

	aliasDate      = []string{"data", "date"}
	aliasPresent   = []string{"presente", "present"}
	aliasNotes     = []string{"justificativa", "notas", "notes"}
	aliasAmount    = []string{"valor", "amount"}
	aliasReference = []string{"descricao", "referencia", "reference", "description"}

	aliasAttendanceList = []string{"frequencias", "attendance"}
	aliasPaymentList    = []string{"pagamentos", "payments"}

	aliasFullName    = []string{"nome_completo", "full_name", "nome", "name"}
	aliasEmployeeID  = []string{"funcional", "employee_id"}
	aliasPosition    = []string{"cargo", "position", "role"}
	aliasDepartment  = []string{"nome_departamento", "departamento", "department"}
	aliasManager     = []string{"nome_gestor", "gestor", "manager"}
	aliasManagerID   = []string{"funcional_gestor", "manager_id"}
	aliasCareerTrack = []string{"tipo_carreira", "career_track"}
	aliasIsManager   = []string{"tipo_gestao", "is_manager"}
	aliasFrozen      = []string{"is_congelamento", "frozen"}
	aliasFrozenAt    = []string{"data_congelamento", "frozen_at"}
)

// pick returns the first alias present on the node.
func pick(node gjson.Result, names []string) gjson.Result {
	for _, name := range names {
		if v := node.Get(name); v.Exists() {
			return v
		}
	}
	return gjson.Result{}
}

// pickString returns the first present alias as a string, or fallback.
func pickString(node gjson.Result, names []string, fallback string) string {
	if v := pick(node, names); v.Exists() {
		return v.String()
	}
	return fallback
}

// presentOf resolves the attendance presence flag. Boolean fields win; a
// textual status field counts as present when it says so.
func presentOf(entry gjson.Result) bool {
	if v := pick(entry, aliasPresent); v.Exists() {
		return v.Bool()
	}
	switch entry.Get("status").String() {
	case "presente", "present":
		return true
	}
	return false
}
