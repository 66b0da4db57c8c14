package loader

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evalops/evalsync/internal/types"
)

func writeFixture(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "resultado.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

const validDoc = `{
  "data": {
    "nome": "Alice",
    "ano": 2023,
    "direcionadores": [
      {
        "nome": "delivery",
        "peso": 1,
        "comportamentos": [
          {
            "nome": "ships often",
            "peso": 1,
            "avaliacoes_grupo": [
              {
                "avaliador": "manager",
                "frequencia_colaborador": [0, 0, 5, 0, 0, 0],
                "frequencia_grupo": [0, 1, 3, 1, 0, 0],
                "peso": 1
              }
            ]
          }
        ]
      }
    ]
  }
}`

func TestLoadValidDocument(t *testing.T) {
	result := Load(writeFixture(t, validDoc))
	assert.Equal(t, types.FileOK, result.Status)
	assert.Empty(t, result.Diagnostics)
	assert.False(t, result.Fatal())
	assert.Equal(t, "Alice", result.Doc.Get("data.nome").String())
}

func TestLoadMissingFile(t *testing.T) {
	result := Load(filepath.Join(t.TempDir(), "absent.json"))
	assert.Equal(t, types.FileError, result.Status)
	assert.True(t, result.Fatal())
	assert.ErrorIs(t, result.Err, fs.ErrNotExist)
}

func TestLoadMalformedJSON(t *testing.T) {
	result := Load(writeFixture(t, `{"data": {`))
	assert.Equal(t, types.FileError, result.Status)
	assert.True(t, result.Fatal())
	assert.ErrorIs(t, result.Err, ErrMalformed)
	assert.NotEmpty(t, result.Message())
}

func TestLoadStructuralDiagnostics(t *testing.T) {
	tests := []struct {
		name     string
		doc      string
		wantCode types.DiagCode
	}{
		{"missing data", `{"other": 1}`, types.DiagMissingData},
		{"top-level list", `[1, 2, 3]`, types.DiagMissingData},
		{"missing drivers", `{"data": {"nome": "x"}}`, types.DiagMissingDrivers},
		{"drivers not a list", `{"data": {"direcionadores": {"nome": "x"}}}`, types.DiagNotAList},
		{"empty drivers", `{"data": {"direcionadores": []}}`, types.DiagEmptyDrivers},
		{
			"driver without behaviors",
			`{"data": {"direcionadores": [{"nome": "d1"}]}}`,
			types.DiagMissingBehaviors,
		},
		{
			"behavior without evaluations",
			`{"data": {"direcionadores": [{"comportamentos": [{"nome": "b1"}]}]}}`,
			types.DiagMissingEvaluations,
		},
		{
			"evaluation without collaborator vector",
			`{"data": {"direcionadores": [{"comportamentos": [{"avaliacoes_grupo": [
				{"frequencia_grupo": [0,0,1,0,0,0]}]}]}]}}`,
			types.DiagMissingVector,
		},
		{
			"frequency field not a list",
			`{"data": {"direcionadores": [{"comportamentos": [{"avaliacoes_grupo": [
				{"frequencia_colaborador": "high", "frequencia_grupo": [0,0,1,0,0,0]}]}]}]}}`,
			types.DiagNotAList,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Load(writeFixture(t, tt.doc))
			assert.Equal(t, types.FileIssues, result.Status)
			assert.False(t, result.Fatal())
			assert.True(t, types.HasCode(result.Diagnostics, tt.wantCode),
				"want %s in %v", tt.wantCode, result.Diagnostics)
		})
	}
}

func TestLoadReportsEveryDefect(t *testing.T) {
	// Two drivers, both broken in different ways, plus one evaluation with
	// both frequency fields absent. Each defect gets its own entry.
	doc := `{
	  "data": {
	    "direcionadores": [
	      {"nome": "d1"},
	      {"comportamentos": [
	        {"avaliacoes_grupo": [{"avaliador": "peer"}]}
	      ]}
	    ]
	  }
	}`

	result := Load(writeFixture(t, doc))
	assert.Equal(t, types.FileIssues, result.Status)
	require.Len(t, result.Diagnostics, 3)
	assert.Equal(t, types.DiagMissingBehaviors, result.Diagnostics[0].Code)
	assert.Contains(t, result.Diagnostics[0].Message, "driver 1")
	assert.Equal(t, types.DiagMissingVector, result.Diagnostics[1].Code)
	assert.Contains(t, result.Diagnostics[1].Message, "frequencia_colaborador")
	assert.Equal(t, types.DiagMissingVector, result.Diagnostics[2].Code)
	assert.Contains(t, result.Diagnostics[2].Message, "frequencia_grupo")
}

func TestLoadNeverPanics(t *testing.T) {
	for _, doc := range []string{
		`null`, `42`, `"text"`, `[]`, `{}`,
		`{"data": null}`, `{"data": 7}`, `{"data": {"direcionadores": null}}`,
	} {
		result := Load(writeFixture(t, doc))
		assert.NotEqual(t, types.FileError, result.Status, "doc %s parses", doc)
		assert.NotEmpty(t, result.Diagnostics, "doc %s is structurally incomplete", doc)
	}
}
