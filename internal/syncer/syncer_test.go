package syncer

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evalops/evalsync/internal/loader"
	"github.com/evalops/evalsync/internal/storage"
	"github.com/evalops/evalsync/internal/types"
)

// vec renders a frequency vector with all weight in one slot, so the
// expected raw score is exactly that slot's model weight.
func vec(slot int) string {
	var v [6]int
	v[slot] = 5
	data, _ := json.Marshal(v)
	return string(data)
}

func evalDoc(display string, year, collabSlot, groupSlot int) string {
	return fmt.Sprintf(`{"data": {"nome": %q, "ano": %d, "direcionadores": [
		{"nome": "delivery", "peso": 1, "comportamentos": [
			{"nome": "ships often", "peso": 1, "avaliacoes_grupo": [
				{"avaliador": "peers", "frequencia_colaborador": %s, "frequencia_grupo": %s, "peso": 1}
			]}
		]}
	]}}`, display, year, vec(collabSlot), vec(groupSlot))
}

func writeUnitFile(t *testing.T, root string, year int, person, name, content string) string {
	t.Helper()
	dir := filepath.Join(root, strconv.Itoa(year), person)
	require.NoError(t, os.MkdirAll(dir, 0755))
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// seedTree lays out three 2024 units whose collaborator slots produce raw
// NPS scores of 10 (maria), 5 (joao), and 2 (ana).
func seedTree(t *testing.T, root string) {
	t.Helper()
	writeUnitFile(t, root, 2024, "maria", "resultado.json", evalDoc("Maria", 2024, 2, 3))
	writeUnitFile(t, root, 2024, "joao", "resultado.json", evalDoc("João", 2024, 3, 3))
	writeUnitFile(t, root, 2024, "ana", "resultado.json", evalDoc("Ana", 2024, 1, 3))
}

func newTestStore(t *testing.T) storage.Storage {
	t.Helper()
	store, err := storage.NewStorage(context.Background(), &storage.Config{
		Path: filepath.Join(t.TempDir(), "ledger.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newTestSyncer(t *testing.T, store storage.Storage, opts Options) *Syncer {
	t.Helper()
	if opts.Workers == 0 {
		opts.Workers = 2
	}
	s, err := New(store, opts)
	require.NoError(t, err)
	return s
}

func TestNewValidation(t *testing.T) {
	store := newTestStore(t)

	_, err := New(nil, Options{DataDir: "/data"})
	assert.Error(t, err)

	_, err = New(store, Options{})
	assert.Error(t, err)

	_, err = New(store, Options{DataDir: "/data", Model: types.Model("vibes")})
	assert.ErrorIs(t, err, types.ErrUnknownModel)
}

func TestSyncFirstRun(t *testing.T) {
	root := t.TempDir()
	seedTree(t, root)
	store := newTestStore(t)
	s := newTestSyncer(t, store, Options{DataDir: root})

	ctx := context.Background()
	report, err := s.Sync(ctx)
	require.NoError(t, err)

	assert.Equal(t, 3, report.Discovered)
	assert.Equal(t, 3, report.Processed)
	assert.Equal(t, 0, report.Unchanged)
	assert.Equal(t, 0, report.Issues)
	assert.Equal(t, 0, report.Failed)
	assert.True(t, report.Clean())

	cohort := report.Cohorts[2024]
	require.NotNil(t, cohort)
	require.Len(t, cohort.People, 3)
	assert.Equal(t, "maria", cohort.People[0].Person)
	assert.Equal(t, 1, cohort.People[0].Rank)
	assert.InDelta(t, 10.0, cohort.People[0].Collaborator.Raw, 1e-9)
	assert.Equal(t, "joao", cohort.People[1].Person)
	assert.Equal(t, "ana", cohort.People[2].Person)

	run, err := store.LatestRun(ctx)
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, report.RunID, run.ID)
	require.NotNil(t, run.FinishedAt)
	assert.Equal(t, 3, run.Discovered)
	assert.Equal(t, 3, run.Processed)

	result, err := store.GetUnitResult(ctx, "maria", 2024)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, types.FileOK, result.Status)
	assert.NotEmpty(t, result.Record)
	assert.NotEmpty(t, result.Scores)

	states, err := store.ListUnitStates(ctx)
	require.NoError(t, err)
	assert.Len(t, states, 3)
}

func TestSyncUnchangedRerunIsByteIdentical(t *testing.T) {
	root := t.TempDir()
	seedTree(t, root)
	store := newTestStore(t)
	ctx := context.Background()
	people := []string{"ana", "joao", "maria"}

	s := newTestSyncer(t, store, Options{DataDir: root})
	first, err := s.Sync(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, first.Processed)

	scoresBefore := make(map[string]string)
	runBefore := make(map[string]string)
	for _, person := range people {
		result, err := store.GetUnitResult(ctx, person, 2024)
		require.NoError(t, err)
		require.NotNil(t, result)
		scoresBefore[person] = string(result.Scores)
		runBefore[person] = result.RunID
	}

	second, err := s.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, second.Discovered)
	assert.Equal(t, 0, second.Processed)
	assert.Equal(t, 3, second.Unchanged)

	for _, person := range people {
		result, err := store.GetUnitResult(ctx, person, 2024)
		require.NoError(t, err)
		assert.Equal(t, scoresBefore[person], string(result.Scores),
			"stored scores for %s must not change on an unchanged pass", person)
		assert.Equal(t, runBefore[person], result.RunID,
			"unchanged unit keeps the run that computed it")
	}

	// The unchanged pass still hands back the full cohort.
	require.NotNil(t, second.Cohorts[2024])
	assert.Len(t, second.Cohorts[2024].People, 3)

	// Fingerprint rows are re-stamped with the new run.
	states, err := store.ListUnitStates(ctx)
	require.NoError(t, err)
	require.Len(t, states, 3)
	for _, state := range states {
		assert.Equal(t, second.RunID, state.RunID)
		assert.Equal(t, types.OutcomeUnchanged, state.Outcome)
	}
}

func TestSyncForceReprocessesAll(t *testing.T) {
	root := t.TempDir()
	seedTree(t, root)
	store := newTestStore(t)
	ctx := context.Background()

	s := newTestSyncer(t, store, Options{DataDir: root})
	_, err := s.Sync(ctx)
	require.NoError(t, err)

	forced := newTestSyncer(t, store, Options{DataDir: root, Force: true})
	report, err := forced.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Processed)
	assert.Equal(t, 0, report.Unchanged)
}

func TestSyncDetectsContentChange(t *testing.T) {
	root := t.TempDir()
	seedTree(t, root)
	store := newTestStore(t)
	ctx := context.Background()

	s := newTestSyncer(t, store, Options{DataDir: root})
	_, err := s.Sync(ctx)
	require.NoError(t, err)

	before, err := store.GetUnitResult(ctx, "joao", 2024)
	require.NoError(t, err)

	// João's collaborator vector moves from slot 3 to slot 2.
	writeUnitFile(t, root, 2024, "joao", "resultado.json", evalDoc("João", 2024, 2, 3))

	report, err := s.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Processed)
	assert.Equal(t, 2, report.Unchanged)

	after, err := store.GetUnitResult(ctx, "joao", 2024)
	require.NoError(t, err)
	assert.NotEqual(t, string(before.Scores), string(after.Scores))
	assert.Equal(t, report.RunID, after.RunID)
}

func TestSyncTouchedIdenticalContentStaysUnchanged(t *testing.T) {
	root := t.TempDir()
	seedTree(t, root)
	store := newTestStore(t)
	ctx := context.Background()

	s := newTestSyncer(t, store, Options{DataDir: root})
	_, err := s.Sync(ctx)
	require.NoError(t, err)

	// Rewriting identical bytes bumps the mtime; the content hash decides.
	writeUnitFile(t, root, 2024, "maria", "resultado.json", evalDoc("Maria", 2024, 2, 3))

	report, err := s.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Processed)
	assert.Equal(t, 3, report.Unchanged)
}

func TestSyncPersonFilterKeepsWholeCohort(t *testing.T) {
	root := t.TempDir()
	seedTree(t, root)
	store := newTestStore(t)
	ctx := context.Background()

	s := newTestSyncer(t, store, Options{DataDir: root})
	_, err := s.Sync(ctx)
	require.NoError(t, err)

	writeUnitFile(t, root, 2024, "maria", "resultado.json", evalDoc("Maria", 2024, 3, 3))

	filtered := newTestSyncer(t, store, Options{DataDir: root, Person: "maria"})
	report, err := filtered.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Discovered)
	assert.Equal(t, 1, report.Processed)

	// Ranking still happens against everyone stored for the year.
	cohort := report.Cohorts[2024]
	require.NotNil(t, cohort)
	assert.Len(t, cohort.People, 3)
}

func TestSyncVanishedCompanionReprocesses(t *testing.T) {
	root := t.TempDir()
	writeUnitFile(t, root, 2024, "maria", "resultado.json", evalDoc("Maria", 2024, 2, 3))
	profile := writeUnitFile(t, root, 2024, "maria", "perfil.json", `{"nome_completo": "Maria Silva"}`)
	store := newTestStore(t)
	ctx := context.Background()

	s := newTestSyncer(t, store, Options{DataDir: root})
	first, err := s.Sync(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, first.Processed)

	states, err := store.ListUnitStates(ctx)
	require.NoError(t, err)
	require.Len(t, states, 2)

	require.NoError(t, os.Remove(profile))

	second, err := s.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, second.Processed)
	assert.Equal(t, 0, second.Unchanged)

	// The stale fingerprint row is gone, so the next pass is a clean skip.
	states, err = store.ListUnitStates(ctx)
	require.NoError(t, err)
	assert.Len(t, states, 1)

	third, err := s.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, third.Unchanged)
}

func TestSyncAbortsOnFirstFatal(t *testing.T) {
	root := t.TempDir()
	seedTree(t, root)
	writeUnitFile(t, root, 2024, "zeca", "resultado.json", `{nope`)
	store := newTestStore(t)
	ctx := context.Background()

	s := newTestSyncer(t, store, Options{DataDir: root, Workers: 1})
	_, err := s.Sync(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, loader.ErrMalformed)

	// Nothing landed, so a later pass starts from scratch.
	states, err := store.ListUnitStates(ctx)
	require.NoError(t, err)
	assert.Empty(t, states)

	run, err := store.LatestRun(ctx)
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.NotEmpty(t, run.Error)
}

func TestSyncIgnoreErrorsRecordsFailure(t *testing.T) {
	root := t.TempDir()
	seedTree(t, root)
	writeUnitFile(t, root, 2024, "zeca", "resultado.json", `{nope`)
	store := newTestStore(t)
	ctx := context.Background()

	s := newTestSyncer(t, store, Options{DataDir: root, IgnoreErrors: true})
	report, err := s.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, report.Discovered)
	assert.Equal(t, 3, report.Processed)
	assert.Equal(t, 1, report.Failed)

	failed := report.FailedUnits()
	require.Len(t, failed, 1)
	assert.Equal(t, "zeca", failed[0].Person)
	assert.Error(t, failed[0].Err)

	// No result row for the failed unit, but its fingerprint is recorded.
	result, err := store.GetUnitResult(ctx, "zeca", 2024)
	require.NoError(t, err)
	assert.Nil(t, result)

	state, err := store.GetUnitState(ctx, "2024/zeca/resultado.json")
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, types.OutcomeFailed, state.Outcome)

	// A failed unit is retried even though its content has not changed.
	second, err := s.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, second.Failed)
	assert.Equal(t, 3, second.Unchanged)
}

func TestSyncIssuesCounted(t *testing.T) {
	root := t.TempDir()
	// Valid JSON with no data block is a processed-with-issues unit.
	writeUnitFile(t, root, 2024, "maria", "resultado.json", `{"other": true}`)
	store := newTestStore(t)
	ctx := context.Background()

	s := newTestSyncer(t, store, Options{DataDir: root})
	report, err := s.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Issues)
	assert.Equal(t, 0, report.Processed)

	issues := report.IssueUnits()
	require.Len(t, issues, 1)
	assert.True(t, types.HasCode(issues[0].Diagnostics, types.DiagMissingData))

	result, err := store.GetUnitResult(ctx, "maria", 2024)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, types.FileIssues, result.Status)
}

func TestSyncEmptyDirIsNoOp(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	s := newTestSyncer(t, store, Options{DataDir: t.TempDir()})
	report, err := s.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Discovered)
	assert.Empty(t, report.Units)

	run, err := store.LatestRun(ctx)
	require.NoError(t, err)
	require.NotNil(t, run)
	require.NotNil(t, run.FinishedAt)
	assert.Empty(t, run.Error)
}

func TestSyncBatchedDispatch(t *testing.T) {
	root := t.TempDir()
	seedTree(t, root)
	store := newTestStore(t)

	s := newTestSyncer(t, store, Options{DataDir: root, BatchSize: 1})
	report, err := s.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, report.Processed)
	require.NotNil(t, report.Cohorts[2024])
	assert.Len(t, report.Cohorts[2024].People, 3)
}
