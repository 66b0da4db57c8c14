package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/evalops/evalsync/internal/analysis"
	"github.com/evalops/evalsync/internal/schema"
	"github.com/evalops/evalsync/internal/storage"
	"github.com/evalops/evalsync/internal/structure"
	"github.com/evalops/evalsync/internal/types"
)

// Options configure one sync pass.
type Options struct {
	// DataDir is the root of the evaluation tree.
	DataDir string
	// Orientation overrides layout detection. Empty means auto-detect.
	Orientation structure.Orientation
	// Person and Year filter the discovered units. Zero values match all.
	Person string
	Year   int
	// Force reprocesses every unit regardless of fingerprint matches.
	Force bool
	// IgnoreErrors keeps the run going past per-unit fatal faults instead
	// of aborting on the first one.
	IgnoreErrors bool
	// Workers bounds the worker pool. 0 means runtime.NumCPU().
	Workers int
	// BatchSize caps how many units are in flight before the pool drains.
	// 0 dispatches everything as a single batch.
	BatchSize int
	// Model selects the scoring weights. Empty means the NPS model.
	Model types.Model
	// Normalize adds the 0-100 view to NPS scores.
	Normalize bool
}

// Syncer drives incremental parallel processing of evaluation units and
// records every pass in the ledger.
type Syncer struct {
	store    storage.Storage
	analyzer *analysis.Analyzer
	opts     Options
}

// New validates the options and builds a syncer. An unknown scoring model
// fails here, at configuration time, never per unit.
func New(store storage.Storage, opts Options) (*Syncer, error) {
	if store == nil {
		return nil, fmt.Errorf("storage cannot be nil")
	}
	if opts.DataDir == "" {
		return nil, fmt.Errorf("data directory cannot be empty")
	}
	if opts.Model == "" {
		opts.Model = types.ModelNPS
	}
	analyzer, err := analysis.New(opts.Model, opts.Normalize)
	if err != nil {
		return nil, err
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	return &Syncer{store: store, analyzer: analyzer, opts: opts}, nil
}

// unitKey identifies a (person, year) unit in the ledger.
type unitKey struct {
	person string
	year   int
}

// passState is the read-only view of the ledger taken before the parallel
// phase. Workers consult it freely; nothing writes it until the barrier.
type passState struct {
	byPath map[string]*types.UnitState
	byUnit map[unitKey][]string
}

// unitWork is one unit's slot in a pass. Exactly one worker writes it.
type unitWork struct {
	unit        structure.Unit
	dir         string
	files       []fileState
	outcome     types.UnitOutcome
	status      types.FileStatus
	record      *types.PersonYearRecord
	score       *analysis.PersonScore
	recordJSON  json.RawMessage
	scoresJSON  json.RawMessage
	diagnostics []types.Diagnostic
	reused      bool
	err         error
}

func (w *unitWork) fail(err error) {
	w.outcome = types.OutcomeFailed
	w.status = types.FileError
	w.err = err
}

// Sync runs one pass: discover units, fingerprint their files, reprocess
// what changed on a bounded worker pool, then land the results and run the
// cross-unit aggregation once every worker is past the barrier.
func (s *Syncer) Sync(ctx context.Context) (*Report, error) {
	report := &Report{
		RunID:     uuid.New().String(),
		DataDir:   s.opts.DataDir,
		Model:     s.opts.Model,
		StartedAt: time.Now().UTC(),
		Cohorts:   make(map[int]*analysis.Cohort),
	}

	var units []structure.Unit
	resolver, err := structure.NewResolver(s.opts.DataDir, s.opts.Orientation)
	switch {
	case errors.Is(err, structure.ErrEmptyTree):
		// An empty tree syncs to nothing; it is not a layout fault.
	case err != nil:
		return nil, err
	default:
		units, err = s.discover(resolver)
		if err != nil {
			return nil, err
		}
	}
	report.Discovered = len(units)

	run := &types.SyncRun{
		ID:         report.RunID,
		StartedAt:  report.StartedAt,
		DataDir:    s.opts.DataDir,
		Model:      s.opts.Model,
		Force:      s.opts.Force,
		Workers:    s.opts.Workers,
		Discovered: len(units),
	}
	if err := s.store.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to record run: %w", err)
	}

	if len(units) == 0 {
		fmt.Fprintf(os.Stderr, "Warning: no evaluation units found under %s\n", s.opts.DataDir)
		report.FinishedAt = time.Now().UTC()
		return report, s.finishRun(ctx, run, report, nil)
	}

	pass, err := s.loadPassState(ctx)
	if err != nil {
		return nil, err
	}

	work := make([]*unitWork, len(units))
	for i, unit := range units {
		work[i] = &unitWork{unit: unit, dir: s.relPath(unit.Dir)}
	}

	if err := s.processAll(ctx, work, pass); err != nil {
		// Leave the fingerprints untouched so the next pass reprocesses
		// everything this one did not land.
		s.tally(work, report)
		report.FinishedAt = time.Now().UTC()
		_ = s.finishRun(ctx, run, report, err)
		return report, err
	}

	// Single-threaded from here down.
	if err := s.merge(ctx, work, pass, report.RunID); err != nil {
		s.tally(work, report)
		report.FinishedAt = time.Now().UTC()
		_ = s.finishRun(ctx, run, report, err)
		return report, err
	}
	s.tally(work, report)
	if err := s.aggregate(ctx, work, report); err != nil {
		report.FinishedAt = time.Now().UTC()
		_ = s.finishRun(ctx, run, report, err)
		return report, err
	}

	report.FinishedAt = time.Now().UTC()
	if err := s.finishRun(ctx, run, report, nil); err != nil {
		return report, err
	}
	return report, nil
}

// discover walks the tree and applies the person and year filters.
func (s *Syncer) discover(resolver *structure.Resolver) ([]structure.Unit, error) {
	var units []structure.Unit
	err := resolver.Walk(func(unit structure.Unit) error {
		if s.opts.Person != "" && unit.Person != s.opts.Person {
			return nil
		}
		if s.opts.Year != 0 && unit.Year != s.opts.Year {
			return nil
		}
		units = append(units, unit)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to discover units: %w", err)
	}
	return units, nil
}

// loadPassState snapshots the ledger's fingerprints before the parallel
// phase starts.
func (s *Syncer) loadPassState(ctx context.Context) (*passState, error) {
	states, err := s.store.ListUnitStates(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load sync state: %w", err)
	}

	pass := &passState{
		byPath: make(map[string]*types.UnitState, len(states)),
		byUnit: make(map[unitKey][]string),
	}
	for _, state := range states {
		key := unitKey{person: state.Person, year: state.Year}
		pass.byPath[state.Path] = state
		pass.byUnit[key] = append(pass.byUnit[key], state.Path)
	}
	return pass, nil
}

// processAll dispatches the units to a bounded pool and waits at the
// barrier. When IgnoreErrors is unset, the first per-unit fatal fault
// cancels the pool and is returned.
func (s *Syncer) processAll(ctx context.Context, work []*unitWork, pass *passState) error {
	batch := s.opts.BatchSize
	if batch <= 0 || batch > len(work) {
		batch = len(work)
	}

	for start := 0; start < len(work); start += batch {
		end := start + batch
		if end > len(work) {
			end = len(work)
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.opts.Workers)
		for _, w := range work[start:end] {
			w := w
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				s.processUnit(gctx, w, pass)
				if w.err != nil && !s.opts.IgnoreErrors {
					return fmt.Errorf("%s: %w", w.unit, w.err)
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
	}
	return nil
}

// processUnit decides whether one unit changed and reprocesses it if so.
// Runs on a worker goroutine; touches only its own slot and reads.
func (s *Syncer) processUnit(ctx context.Context, w *unitWork, pass *passState) {
	key := unitKey{person: w.unit.Person, year: w.unit.Year}

	changed := s.opts.Force
	failedBefore := false
	for _, abs := range w.unit.Files {
		rel := s.relPath(abs)
		prior := pass.byPath[rel]
		st, err := fingerprintFile(abs, rel, prior, s.opts.Force)
		if err != nil {
			w.fail(err)
			return
		}
		if st.changed {
			changed = true
		}
		if prior != nil && prior.Outcome == types.OutcomeFailed {
			failedBefore = true
		}
		w.files = append(w.files, st)
	}

	// A vanished companion file never shows up in the loop above, so the
	// ledger's file set for the unit has to agree too.
	if !changed && len(pass.byUnit[key]) != len(w.files) {
		changed = true
	}
	if failedBefore {
		changed = true
	}

	if !changed && s.reuse(ctx, w) {
		return
	}
	s.reprocess(w)
}

// reuse loads the persisted payload for an unchanged unit. Returns false
// when the ledger has nothing usable, which forces a reprocess.
func (s *Syncer) reuse(ctx context.Context, w *unitWork) bool {
	result, err := s.store.GetUnitResult(ctx, w.unit.Person, w.unit.Year)
	if err != nil || result == nil || len(result.Record) == 0 {
		return false
	}
	record, err := result.DecodeRecord()
	if err != nil || record == nil {
		return false
	}

	var score *analysis.PersonScore
	if len(result.Scores) > 0 {
		score = &analysis.PersonScore{}
		if err := json.Unmarshal(result.Scores, score); err != nil {
			return false
		}
	}

	w.outcome = types.OutcomeUnchanged
	w.status = result.Status
	w.record = record
	w.score = score
	w.recordJSON = result.Record
	w.scoresJSON = result.Scores
	w.diagnostics = result.Diagnostics
	w.reused = true
	return true
}

// reprocess runs load, validate, normalize, and score for one unit.
func (s *Syncer) reprocess(w *unitWork) {
	record, err := schema.Normalize(w.unit)
	if err != nil {
		w.fail(err)
		return
	}
	w.record = record
	w.diagnostics = record.Diagnostics
	w.score = s.analyzer.ScorePerson(record)

	recordJSON, err := json.Marshal(record)
	if err != nil {
		w.fail(fmt.Errorf("failed to encode record: %w", err))
		return
	}
	w.recordJSON = recordJSON

	if w.score != nil {
		scoresJSON, err := json.Marshal(w.score)
		if err != nil {
			w.fail(fmt.Errorf("failed to encode scores: %w", err))
			return
		}
		w.scoresJSON = scoresJSON
	}

	if len(record.Diagnostics) > 0 {
		w.outcome = types.OutcomeIssues
		w.status = types.FileIssues
	} else {
		w.outcome = types.OutcomeProcessed
		w.status = types.FileOK
	}
}

// merge lands the pass in the ledger. Runs on the orchestrator goroutine
// once every worker is done. Unchanged units keep their stored result row
// byte for byte; only their fingerprint rows are re-stamped.
func (s *Syncer) merge(ctx context.Context, work []*unitWork, pass *passState, runID string) error {
	now := time.Now().UTC()
	for _, w := range work {
		// Drop rows for files the unit no longer has, or the unit would
		// look changed on every later pass. A failed unit may not have
		// fingerprinted its whole file set, so its rows are left alone.
		if w.outcome != types.OutcomeFailed {
			current := make(map[string]bool, len(w.files))
			for _, f := range w.files {
				current[f.path] = true
			}
			key := unitKey{person: w.unit.Person, year: w.unit.Year}
			for _, stale := range pass.byUnit[key] {
				if current[stale] {
					continue
				}
				if err := s.store.DeleteUnitState(ctx, stale); err != nil {
					return err
				}
			}
		}

		for _, f := range w.files {
			state := &types.UnitState{
				Path:      f.path,
				Person:    w.unit.Person,
				Year:      w.unit.Year,
				SHA256:    f.sha256,
				Size:      f.size,
				ModTime:   f.modTime,
				Outcome:   w.outcome,
				RunID:     runID,
				UpdatedAt: now,
			}
			if err := s.store.PutUnitState(ctx, state); err != nil {
				return err
			}
		}

		if w.reused || w.outcome == types.OutcomeFailed {
			continue
		}
		result := &types.UnitResult{
			Person:      w.unit.Person,
			Year:        w.unit.Year,
			Path:        w.dir,
			Record:      w.recordJSON,
			Scores:      w.scoresJSON,
			Status:      w.status,
			Diagnostics: w.diagnostics,
			RunID:       runID,
			UpdatedAt:   now,
		}
		if err := s.store.PutUnitResult(ctx, result); err != nil {
			return err
		}
	}
	return nil
}

// tally folds the unit outcomes into the report counters.
func (s *Syncer) tally(work []*unitWork, report *Report) {
	for _, w := range work {
		switch w.outcome {
		case types.OutcomeProcessed:
			report.Processed++
		case types.OutcomeUnchanged:
			report.Unchanged++
		case types.OutcomeIssues:
			report.Issues++
		case types.OutcomeFailed:
			report.Failed++
		default:
			// The pass aborted before this unit started.
			continue
		}
		report.Units = append(report.Units, UnitReport{
			Person:      w.unit.Person,
			Year:        w.unit.Year,
			Dir:         w.dir,
			Outcome:     w.outcome,
			Diagnostics: w.diagnostics,
			Score:       w.score,
			Err:         w.err,
		})
	}
}

// aggregate runs the cross-unit pass. Group comparisons need a year's whole
// cohort, so stored records fill in for units this pass filtered out or
// left unchanged.
func (s *Syncer) aggregate(ctx context.Context, work []*unitWork, report *Report) error {
	byYear := make(map[int]map[string]*types.PersonYearRecord)
	for _, w := range work {
		if w.record == nil {
			continue
		}
		people := byYear[w.unit.Year]
		if people == nil {
			people = make(map[string]*types.PersonYearRecord)
			byYear[w.unit.Year] = people
		}
		people[w.unit.Person] = w.record
	}

	for year, people := range byYear {
		stored, err := s.store.ListUnitResultsByYear(ctx, year)
		if err != nil {
			return fmt.Errorf("failed to load %d cohort: %w", year, err)
		}
		for _, result := range stored {
			if _, ok := people[result.Person]; ok {
				continue
			}
			record, err := result.DecodeRecord()
			if err != nil || record == nil {
				continue
			}
			people[result.Person] = record
		}

		names := make([]string, 0, len(people))
		for name := range people {
			names = append(names, name)
		}
		sort.Strings(names)

		records := make([]*types.PersonYearRecord, 0, len(people))
		for _, name := range names {
			records = append(records, people[name])
		}
		report.Cohorts[year] = s.analyzer.CompareYear(year, records)
	}
	return nil
}

// finishRun writes the final counters for the run row.
func (s *Syncer) finishRun(ctx context.Context, run *types.SyncRun, report *Report, cause error) error {
	run.Discovered = report.Discovered
	run.Processed = report.Processed
	run.Unchanged = report.Unchanged
	run.Issues = report.Issues
	run.Failed = report.Failed
	finished := report.FinishedAt
	run.FinishedAt = &finished
	if cause != nil {
		run.Error = cause.Error()
	}
	if err := s.store.FinishRun(ctx, run); err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	return nil
}

// relPath maps an absolute source path to its ledger key.
func (s *Syncer) relPath(abs string) string {
	rel, err := filepath.Rel(s.opts.DataDir, abs)
	if err != nil {
		return filepath.ToSlash(abs)
	}
	return filepath.ToSlash(rel)
}
