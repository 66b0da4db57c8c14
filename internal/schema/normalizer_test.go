package schema

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evalops/evalsync/internal/loader"
	"github.com/evalops/evalsync/internal/structure"
	"github.com/evalops/evalsync/internal/types"
)

// unitWith lays the given files out in a temp directory and wraps them in a
// resolved unit for alice/2023.
func unitWith(t *testing.T, files map[string]string) structure.Unit {
	t.Helper()
	dir := t.TempDir()
	unit := structure.Unit{Person: "alice", Year: 2023, Dir: dir}

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(files[name]), 0644))
		unit.Files = append(unit.Files, path)
	}
	return unit
}

const evaluationDoc = `{
  "data": {
    "nome": "Alice Silva",
    "ano": 2023,
    "direcionadores": [
      {
        "nome": "delivery",
        "peso": 2,
        "comportamentos": [
          {
            "nome": "ships often",
            "peso": 1,
            "avaliacoes_grupo": [
              {
                "avaliador": "manager",
                "frequencia_colaborador": [0, 0, 4, 1, 0, 0],
                "frequencia_grupo": [0, 1, 2, 2, 0, 0],
                "peso": 1
              },
              {
                "avaliador": "peers",
                "frequencia_colaborador": [0, 0, 3, 2, 0, 0],
                "frequencia_grupo": [0, 0, 2, 3, 0, 0],
                "peso": 1
              }
            ]
          }
        ]
      }
    ]
  }
}`

func TestNormalizeFullUnit(t *testing.T) {
	unit := unitWith(t, map[string]string{
		"resultado.json": evaluationDoc,
		"perfil.json": `{
			"nome_completo": "Alice Marie Silva",
			"funcional": "F1234",
			"funcional_gestor": "F0001",
			"nome_gestor": "Grace",
			"cargo": "Engineer",
			"nome_departamento": "Platform",
			"tipo_carreira": "technical",
			"tipo_gestao": false,
			"is_congelamento": true,
			"data_congelamento": "2023-06-01"
		}`,
		"frequencias.json": `[
			{"data": "2023-01-10", "status": "presente", "justificativa": ""},
			{"data": "2023-01-11", "status": "ausente", "justificativa": "medical"}
		]`,
		"pagamentos.json": `[
			{"data": "2023-01-31", "valor": 1500.5, "descricao": "january"}
		]`,
	})

	record, err := Normalize(unit)
	require.NoError(t, err)
	require.NotNil(t, record)

	assert.Equal(t, "alice", record.Person)
	assert.Equal(t, 2023, record.Year)
	assert.Equal(t, "Alice Silva", record.DisplayName)
	assert.Empty(t, record.Diagnostics)
	assert.Equal(t,
		[]string{"resultado.json", "perfil.json", "frequencias.json", "pagamentos.json"},
		record.Sources)

	require.Len(t, record.Drivers, 1)
	driver := record.Drivers[0]
	assert.Equal(t, "delivery", driver.Name)
	assert.Equal(t, 2.0, driver.Weight)
	require.Len(t, driver.Behaviors, 1)
	behavior := driver.Behaviors[0]
	assert.Equal(t, "ships often", behavior.Name)
	require.Len(t, behavior.Evaluations, 2)
	assert.Equal(t, "manager", behavior.Evaluations[0].Evaluator)
	assert.Equal(t, types.FrequencyVector{0, 0, 4, 1, 0, 0}, behavior.Evaluations[0].Collaborator)
	assert.Equal(t, types.FrequencyVector{0, 1, 2, 2, 0, 0}, behavior.Evaluations[0].Group)

	require.NotNil(t, record.Profile)
	assert.Equal(t, "Alice Marie Silva", record.Profile.FullName)
	assert.Equal(t, "F1234", record.Profile.EmployeeID)
	assert.Equal(t, "Grace", record.Profile.Manager)
	assert.Equal(t, "F0001", record.Profile.ManagerID)
	assert.Equal(t, "Platform", record.Profile.Department)
	assert.False(t, record.Profile.IsManager)
	assert.True(t, record.Profile.Frozen)
	assert.Equal(t, "2023-06-01", record.Profile.FrozenAt)

	require.Len(t, record.Attendance, 2)
	assert.True(t, record.Attendance[0].Present)
	assert.False(t, record.Attendance[1].Present)
	assert.Equal(t, "medical", record.Attendance[1].Notes)

	require.Len(t, record.Payments, 1)
	assert.Equal(t, 1500.5, record.Payments[0].Amount)
	assert.Equal(t, "january", record.Payments[0].Reference)
}

func TestNormalizeEnglishVocabulary(t *testing.T) {
	unit := unitWith(t, map[string]string{
		"resultado.json": `{
		  "data": {
		    "name": "Alice Silva",
		    "year": 2023,
		    "direcionadores": [
		      {
		        "name": "delivery",
		        "weight": 1,
		        "comportamentos": [
		          {
		            "name": "ships often",
		            "weight": 1,
		            "avaliacoes_grupo": [
		              {
		                "evaluator": "manager",
		                "frequencia_colaborador": [0, 0, 5, 0, 0, 0],
		                "frequencia_grupo": [0, 0, 4, 1, 0, 0],
		                "weight": 1
		              }
		            ]
		          }
		        ]
		      }
		    ]
		  }
		}`,
		"perfil.json": `{
			"full_name": "Alice Marie Silva",
			"employee_id": "F1234",
			"position": "Engineer",
			"department": "Platform",
			"manager": "Grace",
			"is_manager": true
		}`,
		"frequencias.json": `[{"date": "2023-02-01", "present": true, "notes": "onsite"}]`,
		"pagamentos.json":  `[{"date": "2023-02-28", "amount": 900, "reference": "february"}]`,
	})

	record, err := Normalize(unit)
	require.NoError(t, err)

	assert.Equal(t, "Alice Silva", record.DisplayName)
	require.Len(t, record.Drivers, 1)
	assert.Equal(t, "delivery", record.Drivers[0].Name)
	require.Len(t, record.Drivers[0].Behaviors, 1)
	require.Len(t, record.Drivers[0].Behaviors[0].Evaluations, 1)
	assert.Equal(t, "manager", record.Drivers[0].Behaviors[0].Evaluations[0].Evaluator)

	require.NotNil(t, record.Profile)
	assert.Equal(t, "Alice Marie Silva", record.Profile.FullName)
	assert.Equal(t, "Engineer", record.Profile.Position)
	assert.True(t, record.Profile.IsManager)

	require.Len(t, record.Attendance, 1)
	assert.True(t, record.Attendance[0].Present)
	assert.Equal(t, "onsite", record.Attendance[0].Notes)

	require.Len(t, record.Payments, 1)
	assert.Equal(t, 900.0, record.Payments[0].Amount)
	assert.Equal(t, "february", record.Payments[0].Reference)
}

func TestNormalizeWithoutEvaluationFile(t *testing.T) {
	// Attendance and payments ingest even when resultado.json is absent.
	unit := unitWith(t, map[string]string{
		"frequencias.json": `[{"data": "2023-03-01", "presente": true}]`,
		"pagamentos.json":  `[{"data": "2023-03-31", "valor": 1000}]`,
	})

	record, err := Normalize(unit)
	require.NoError(t, err)
	assert.Equal(t, "alice", record.DisplayName)
	assert.Empty(t, record.Drivers)
	assert.False(t, record.HasEvaluations())
	assert.Len(t, record.Attendance, 1)
	assert.Len(t, record.Payments, 1)
	assert.Equal(t, []string{"frequencias.json", "pagamentos.json"}, record.Sources)
}

func TestNormalizeRejectsUnusableVectors(t *testing.T) {
	unit := unitWith(t, map[string]string{
		"resultado.json": `{
		  "data": {
		    "nome": "Alice",
		    "ano": 2023,
		    "direcionadores": [
		      {
		        "nome": "delivery",
		        "comportamentos": [
		          {
		            "nome": "ships often",
		            "avaliacoes_grupo": [
		              {
		                "avaliador": "manager",
		                "frequencia_colaborador": [0, 0, 5, 0, 0, 0],
		                "frequencia_grupo": [0, 0, 4, 1, 0, 0]
		              },
		              {
		                "avaliador": "short vector",
		                "frequencia_colaborador": [0, 0, 5],
		                "frequencia_grupo": [0, 0, 4, 1, 0, 0]
		              },
		              {
		                "avaliador": "nobody answered",
		                "frequencia_colaborador": [9, 0, 0, 0, 0, 0],
		                "frequencia_grupo": [0, 0, 4, 1, 0, 0]
		              },
		              {
		                "avaliador": "junk entries",
		                "frequencia_colaborador": [0, 0, "five", 0, 0, 0],
		                "frequencia_grupo": [0, 0, 4, 1, 0, 0]
		              }
		            ]
		          }
		        ]
		      }
		    ]
		  }
		}`,
	})

	record, err := Normalize(unit)
	require.NoError(t, err)

	require.Len(t, record.Drivers, 1)
	require.Len(t, record.Drivers[0].Behaviors, 1)
	evals := record.Drivers[0].Behaviors[0].Evaluations
	require.Len(t, evals, 1, "only the well-formed evaluation survives")
	assert.Equal(t, "manager", evals[0].Evaluator)

	assert.True(t, types.HasCode(record.Diagnostics, types.DiagBadVector))
	assert.True(t, types.HasCode(record.Diagnostics, types.DiagZeroVector))

	badCount := 0
	for _, d := range record.Diagnostics {
		if d.Code == types.DiagBadVector {
			badCount++
		}
	}
	assert.Equal(t, 2, badCount, "short vector and junk entries both rejected")
}

func TestNormalizeYearMismatch(t *testing.T) {
	unit := unitWith(t, map[string]string{
		"resultado.json": `{"data": {"nome": "Alice", "ano": 2019, "direcionadores": [
			{"nome": "d", "comportamentos": [{"nome": "b", "avaliacoes_grupo": [
				{"frequencia_colaborador": [0,0,1,0,0,0], "frequencia_grupo": [0,0,1,0,0,0]}
			]}]}
		]}}`,
	})

	record, err := Normalize(unit)
	require.NoError(t, err)
	assert.Equal(t, 2023, record.Year, "path identity wins")
	assert.True(t, types.HasCode(record.Diagnostics, types.DiagYearMismatch))
}

func TestNormalizeMalformedFileIsFatal(t *testing.T) {
	unit := unitWith(t, map[string]string{
		"resultado.json": `{"data": {`,
	})
	_, err := Normalize(unit)
	require.Error(t, err)
	assert.ErrorIs(t, err, loader.ErrMalformed)

	unit = unitWith(t, map[string]string{
		"resultado.json":  `{"data": {"direcionadores": []}}`,
		"pagamentos.json": `not json`,
	})
	_, err = Normalize(unit)
	require.Error(t, err)
	assert.ErrorIs(t, err, loader.ErrMalformed)
}

func TestNormalizeInlineCompanions(t *testing.T) {
	// Attendance and payments can ride inside the evaluation document.
	unit := unitWith(t, map[string]string{
		"resultado.json": `{"data": {
			"nome": "Alice",
			"ano": 2023,
			"direcionadores": [{"nome": "d", "comportamentos": [{"nome": "b", "avaliacoes_grupo": [
				{"frequencia_colaborador": [0,0,1,0,0,0], "frequencia_grupo": [0,0,1,0,0,0]}
			]}]}],
			"frequencias": [{"data": "2023-04-01", "presente": true}],
			"pagamentos": [{"data": "2023-04-30", "valor": 800}]
		}}`,
	})

	record, err := Normalize(unit)
	require.NoError(t, err)
	assert.Len(t, record.Attendance, 1)
	assert.Len(t, record.Payments, 1)
}

func TestNormalizePersonDataFallback(t *testing.T) {
	unit := unitWith(t, map[string]string{
		"data.json": `{
			"nome": "Alice Silva",
			"ano": 2023,
			"frequencias": [{"data": "2023-05-02", "presente": false, "notas": "travel"}],
			"pagamentos": [{"data": "2023-05-31", "valor": 700, "referencia": "may"}]
		}`,
	})

	record, err := Normalize(unit)
	require.NoError(t, err)
	assert.Equal(t, "Alice Silva", record.DisplayName)
	require.Len(t, record.Attendance, 1)
	assert.Equal(t, "travel", record.Attendance[0].Notes)
	require.Len(t, record.Payments, 1)
	assert.Equal(t, "may", record.Payments[0].Reference)
	assert.Equal(t, []string{"data.json"}, record.Sources)
}

func TestNormalizeProfileNameFallback(t *testing.T) {
	unit := unitWith(t, map[string]string{
		"perfil.json": `{"nome_completo": "Alice Marie Silva"}`,
	})

	record, err := Normalize(unit)
	require.NoError(t, err)
	assert.Equal(t, "Alice Marie Silva", record.DisplayName)
}
