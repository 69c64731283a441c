package core

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"curvegraph/pkg/domain"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// TableSource loads one remote table as identity-keyed records.
type TableSource interface {
	Load(ctx context.Context, table Table) (map[Identity]Record, error)
}

type tableState struct {
	models map[Identity]ModelRecord
	inputs map[Identity]InputRecord
	curves map[Identity]CurveRecord
}

func newTableState() tableState {
	return tableState{
		models: make(map[Identity]ModelRecord),
		inputs: make(map[Identity]InputRecord),
		curves: make(map[Identity]CurveRecord),
	}
}

func (s tableState) snapshot() Snapshot {
	return domain.CloneSnapshot(Snapshot{Models: s.models, Inputs: s.inputs, Curves: s.curves})
}

func tableStateFromSnapshot(snap Snapshot) tableState {
	c := domain.CloneSnapshot(snap)
	return tableState{models: c.Models, inputs: c.Inputs, curves: c.Curves}
}

// Store owns the three identity-keyed tables. Tables are only ever replaced
// wholesale by Reload or ImportState; the one in-place edit is SetInputField.
type Store struct {
	mu       sync.RWMutex
	state    tableState
	revision string
	loadedAt time.Time
	nowFn    func() time.Time
	newRev   func() string
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithStoreClock sets the clock stamped on each reload.
func WithStoreClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		if now != nil {
			s.nowFn = now
		}
	}
}

// NewStore constructs an empty store.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		state:  newTableState(),
		nowFn:  func() time.Time { return time.Now().UTC() },
		newRev: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Staged is a loaded, normalized and projected set of tables that has not
// replaced the live tables yet.
type Staged struct {
	state tableState
	info  SnapshotInfo
	view  View
}

// Info summarises the staged tables.
func (st *Staged) Info() SnapshotInfo { return st.info }

// View is the projection of the staged tables.
func (st *Staged) View() View { return st.view }

// Snapshot clones the staged tables.
func (st *Staged) Snapshot() Snapshot {
	snap := st.state.snapshot()
	snap.Revision = st.info.Revision
	snap.LoadedAt = st.info.LoadedAt
	return snap
}

// Stage loads the three tables concurrently, normalizes them and projects
// them with the pins of sel. The live tables are not touched; a dangling
// reference fails the stage like a failed load.
func (s *Store) Stage(ctx context.Context, src TableSource, sel Selection) (*Staged, error) {
	var (
		models map[Identity]ModelRecord
		inputs map[Identity]InputRecord
		curves map[Identity]CurveRecord
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		recs, err := src.Load(gctx, TableModels)
		if err != nil {
			return err
		}
		models, err = normalizeModels(recs)
		return err
	})
	g.Go(func() error {
		recs, err := src.Load(gctx, TableInputs)
		if err != nil {
			return err
		}
		inputs, err = normalizeInputs(recs)
		return err
	})
	g.Go(func() error {
		recs, err := src.Load(gctx, TableCurves)
		if err != nil {
			return err
		}
		curves, err = normalizeCurves(recs)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("reload: %w", err)
	}

	state := tableState{models: models, inputs: inputs, curves: curves}
	info := SnapshotInfo{
		Revision: s.newRev(),
		LoadedAt: s.nowFn(),
		Models:   len(models),
		Inputs:   len(inputs),
		Curves:   len(curves),
	}
	view, err := state.project(info.Revision, sel)
	if err != nil {
		return nil, fmt.Errorf("reload: %w", err)
	}
	return &Staged{state: state, info: info, view: view}, nil
}

// Commit replaces all three tables with st at once.
func (s *Store) Commit(st *Staged) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = st.state
	s.revision = st.info.Revision
	s.loadedAt = st.info.LoadedAt
}

// Reload stages the remote tables and commits them only when every load,
// normalization and reference check succeeds. On failure the previous maps
// are left untouched.
func (s *Store) Reload(ctx context.Context, src TableSource) (SnapshotInfo, error) {
	st, err := s.Stage(ctx, src, Selection{})
	if err != nil {
		return SnapshotInfo{}, err
	}
	s.Commit(st)
	return st.info, nil
}

// Info summarises the current tables.
func (s *Store) Info() SnapshotInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.infoLocked()
}

func (s *Store) infoLocked() SnapshotInfo {
	return SnapshotInfo{
		Revision: s.revision,
		LoadedAt: s.loadedAt,
		Models:   len(s.state.models),
		Inputs:   len(s.state.inputs),
		Curves:   len(s.state.curves),
	}
}

// Revision identifies the last successful reload; empty before the first one.
func (s *Store) Revision() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revision
}

// ExportState clones the current tables.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := s.state.snapshot()
	snap.Revision = s.revision
	snap.LoadedAt = s.loadedAt
	return snap
}

// ImportState replaces the tables with the provided snapshot.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = tableStateFromSnapshot(snapshot)
	s.revision = snapshot.Revision
	s.loadedAt = snapshot.LoadedAt
}

// Model returns the stored model record.
func (s *Store) Model(id Identity) (ModelRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.state.models[id]
	if !ok {
		return ModelRecord{}, false
	}
	return domain.CloneModel(m), true
}

// Input returns the stored input record.
func (s *Store) Input(id Identity) (InputRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	in, ok := s.state.inputs[id]
	if !ok {
		return InputRecord{}, false
	}
	return domain.CloneInput(in), true
}

// Curve returns the stored curve record.
func (s *Store) Curve(id Identity) (CurveRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.state.curves[id]
	if !ok {
		return CurveRecord{}, false
	}
	return domain.CloneCurve(c), true
}

// ListModels returns every model record ordered by identity.
func (s *Store) ListModels() []ModelRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ModelRecord, 0, len(s.state.models))
	for _, id := range sortedIDs(s.state.models) {
		out = append(out, domain.CloneModel(s.state.models[id]))
	}
	return out
}

// ListInputs returns every input record ordered by identity.
func (s *Store) ListInputs() []InputRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]InputRecord, 0, len(s.state.inputs))
	for _, id := range sortedIDs(s.state.inputs) {
		out = append(out, domain.CloneInput(s.state.inputs[id]))
	}
	return out
}

// ListCurves returns every curve record ordered by identity.
func (s *Store) ListCurves() []CurveRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]CurveRecord, 0, len(s.state.curves))
	for _, id := range sortedIDs(s.state.curves) {
		out = append(out, domain.CloneCurve(s.state.curves[id]))
	}
	return out
}

// SetInputField edits one named field of an input in memory only. The edit is
// not written to the remote store and is discarded by the next reload.
func (s *Store) SetInputField(id Identity, field string, value any) (InputRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	in, ok := s.state.inputs[id]
	if !ok {
		return InputRecord{}, domain.MissingReferenceError{Table: TableInputs, ID: id}
	}
	in = domain.CloneInput(in)
	if err := setInputField(&in, field, value); err != nil {
		return InputRecord{}, err
	}
	s.state.inputs[id] = in
	return domain.CloneInput(in), nil
}

func setInputField(in *InputRecord, field string, value any) error {
	switch field {
	case domain.FieldName, domain.FieldNotes:
		text, ok := value.(string)
		if !ok {
			return domain.MalformedRecordError{Table: TableInputs, ID: in.ID, Field: field, Reason: fmt.Sprintf("not text: %v", value)}
		}
		if field == domain.FieldName {
			in.Name = text
		} else {
			in.Notes = text
		}
		return nil
	}
	target := numericInputField(in, field)
	if target == nil {
		return domain.UnknownFieldError{Field: field}
	}
	f, ok := domain.CellNumber(value)
	if !ok {
		return domain.MalformedRecordError{Table: TableInputs, ID: in.ID, Field: field, Reason: fmt.Sprintf("not a number: %v", value)}
	}
	*target = f
	return nil
}

func numericInputField(in *InputRecord, field string) *float64 {
	switch field {
	case domain.FieldFrequency:
		return &in.Frequency
	case domain.FieldSize:
		return &in.Size
	case domain.FieldGrowthPercent:
		return &in.GrowthPercent
	case domain.FieldGrowthFrequency:
		return &in.GrowthFrequency
	case domain.FieldSeed:
		return &in.Seed
	case domain.FieldSaturation:
		return &in.Saturation
	case domain.FieldVariability:
		return &in.Variability
	}
	return nil
}

func sortedIDs[V any](m map[Identity]V) []Identity {
	ids := make([]Identity, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
