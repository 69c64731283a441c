package core

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"curvegraph/internal/blob"
	"curvegraph/pkg/domain"
)

// CellMutator appends or removes one value in a remote table row.
type CellMutator interface {
	Append(ctx context.Context, table Table, row int, value any) (string, error)
	Remove(ctx context.Context, table Table, row int, value any) error
}

// Option configures a Service.
type Option func(*serviceOptions)

type serviceOptions struct {
	clock   Clock
	logger  Logger
	audit   AuditRecorder
	metrics MetricsRecorder
	tracer  Tracer
	store   *Store
	archive domain.Archive
	blobs   blob.Store
}

func defaultServiceOptions() serviceOptions {
	return serviceOptions{
		clock:   ClockFunc(func() time.Time { return time.Now().UTC() }),
		logger:  noopLogger{},
		audit:   noopAuditRecorder{},
		metrics: noopMetricsRecorder{},
		tracer:  noopTracer{},
	}
}

// WithClock overrides the service clock.
func WithClock(clock Clock) Option {
	return func(o *serviceOptions) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(logger Logger) Option {
	return func(o *serviceOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithAuditRecorder sets the audit sink.
func WithAuditRecorder(rec AuditRecorder) Option {
	return func(o *serviceOptions) {
		if rec != nil {
			o.audit = rec
		}
	}
}

// WithMetricsRecorder sets the metrics sink.
func WithMetricsRecorder(rec MetricsRecorder) Option {
	return func(o *serviceOptions) {
		if rec != nil {
			o.metrics = rec
		}
	}
}

// WithTracer sets the tracer.
func WithTracer(tracer Tracer) Option {
	return func(o *serviceOptions) {
		if tracer != nil {
			o.tracer = tracer
		}
	}
}

// WithStore supplies the store instead of a fresh empty one.
func WithStore(store *Store) Option {
	return func(o *serviceOptions) { o.store = store }
}

// WithArchive archives every successfully reloaded snapshot.
func WithArchive(archive domain.Archive) Option {
	return func(o *serviceOptions) { o.archive = archive }
}

// WithBlobStore enables ExportView.
func WithBlobStore(store blob.Store) Option {
	return func(o *serviceOptions) { o.blobs = store }
}

// Service drives reloads, projection with pinned selections, and the
// reference mutations against the remote store.
type Service struct {
	store   *Store
	source  TableSource
	mutator CellMutator
	opts    serviceOptions

	mu   sync.Mutex
	view View
}

// NewService constructs a service reading through source and writing through mutator.
func NewService(source TableSource, mutator CellMutator, opts ...Option) *Service {
	o := defaultServiceOptions()
	for _, opt := range opts {
		opt(&o)
	}
	store := o.store
	if store == nil {
		store = NewStore(WithStoreClock(o.clock.Now))
	}
	return &Service{store: store, source: source, mutator: mutator, opts: o}
}

// Store returns the underlying store.
func (s *Service) Store() *Store { return s.store }

// View returns the most recent projection.
func (s *Service) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view
}

// Reload replaces the three tables from the remote store, re-projects the
// view so pinned selections follow the new records, and archives the
// snapshot. A failed load, projection or archive write leaves tables and
// view untouched.
func (s *Service) Reload(ctx context.Context) (View, error) {
	var out View
	scope := &opScope{}
	err := s.observe(ctx, "reload", scope, func(ctx context.Context) error {
		var err error
		out, err = s.resync(ctx, scope)
		return err
	})
	return out, err
}

// resync stages the remote tables against the current pins, archives the
// staged snapshot and only then publishes tables and view together.
func (s *Service) resync(ctx context.Context, scope *opScope) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	staged, err := s.store.Stage(ctx, s.source, s.view.Selection())
	if err != nil {
		return View{}, err
	}
	if err := s.archive(ctx, staged.Snapshot()); err != nil {
		return View{}, err
	}
	s.store.Commit(staged)
	info := staged.Info()
	scope.revision = info.Revision
	s.opts.logger.Info("tables reloaded", "revision", info.Revision, "models", info.Models, "inputs", info.Inputs, "curves", info.Curves)
	next := staged.View()
	s.warnDropped(next)
	s.view = next
	return next, nil
}

// Project rebuilds the view from the current tables without a remote read.
func (s *Service) Project(ctx context.Context) (View, error) {
	var out View
	err := s.observe(ctx, "project", &opScope{}, func(context.Context) error {
		var err error
		out, err = s.reproject()
		return err
	})
	return out, err
}

func (s *Service) reproject() (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, err := s.store.Project(s.view)
	if err != nil {
		return View{}, err
	}
	s.warnDropped(next)
	s.view = next
	return next, nil
}

func (s *Service) warnDropped(v View) {
	for _, pin := range v.Dropped {
		s.opts.logger.Warn("pinned record no longer exists; selection cleared", "table", pin.Table, "id", pin.ID)
	}
}

func (s *Service) archive(ctx context.Context, snap Snapshot) error {
	if s.opts.archive == nil {
		return nil
	}
	if err := s.opts.archive.Save(ctx, snap); err != nil {
		return fmt.Errorf("archive snapshot: %w", err)
	}
	return nil
}

// ChartModel pins the model with id as the charted model.
func (s *Service) ChartModel(ctx context.Context, id Identity) (View, error) {
	return s.pin(ctx, "chart_model", TableModels, id)
}

// ShowInput pins the input with id as the input shown in detail.
func (s *Service) ShowInput(ctx context.Context, id Identity) (View, error) {
	return s.pin(ctx, "show_input", TableInputs, id)
}

func (s *Service) pin(ctx context.Context, op string, table Table, id Identity) (View, error) {
	var out View
	err := s.observe(ctx, op, &opScope{table: table, entityID: id}, func(context.Context) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		sel := s.view.Selection()
		if table == TableModels {
			sel.ModelID = id
		} else {
			sel.InputID = id
		}
		next, err := s.store.ProjectSelection(sel)
		if err != nil {
			return err
		}
		if (table == TableModels && next.ChartedModel == nil) || (table == TableInputs && next.ShownInput == nil) {
			return pinError(table, id)
		}
		s.view = next
		out = next
		return nil
	})
	return out, err
}

// ClearPins removes both pinned selections.
func (s *Service) ClearPins() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.view.ChartedModel = nil
	s.view.ShownInput = nil
	s.view.Dropped = nil
	return s.view
}

// ResolveInput returns the input with its curves embedded.
func (s *Service) ResolveInput(ctx context.Context, id Identity) (Input, error) {
	var out Input
	err := s.observe(ctx, "resolve_input", &opScope{table: TableInputs, entityID: id}, func(context.Context) error {
		var err error
		out, err = s.store.ResolveInput(id)
		return err
	})
	return out, err
}

// ResolveModel returns the model with its inputs and curves embedded.
func (s *Service) ResolveModel(ctx context.Context, id Identity) (Model, error) {
	var out Model
	err := s.observe(ctx, "resolve_model", &opScope{table: TableModels, entityID: id}, func(context.Context) error {
		var err error
		out, err = s.store.ResolveModel(id)
		return err
	})
	return out, err
}

// PreviewInput applies a local-only edit to one input field and re-projects.
// The remote store is not touched; the next reload discards the edit.
func (s *Service) PreviewInput(ctx context.Context, id Identity, field string, value any) (View, error) {
	var out View
	err := s.observe(ctx, "preview_input", &opScope{table: TableInputs, entityID: id}, func(context.Context) error {
		if _, err := s.store.SetInputField(id, field, value); err != nil {
			return err
		}
		var err error
		out, err = s.reproject()
		return err
	})
	return out, err
}

// AttachInput appends an input reference to a model row, then reloads.
func (s *Service) AttachInput(ctx context.Context, modelID, inputID Identity) (View, error) {
	return s.mutate(ctx, "attach_input", TableModels, modelID, TableInputs, inputID, true)
}

// DetachInput removes the first reference to inputID from a model row, then reloads.
func (s *Service) DetachInput(ctx context.Context, modelID, inputID Identity) (View, error) {
	return s.mutate(ctx, "detach_input", TableModels, modelID, TableInputs, inputID, false)
}

// AttachCurve appends a curve reference to an input row, then reloads.
func (s *Service) AttachCurve(ctx context.Context, inputID, curveID Identity) (View, error) {
	return s.mutate(ctx, "attach_curve", TableInputs, inputID, TableCurves, curveID, true)
}

// DetachCurve removes the first reference to curveID from an input row, then reloads.
func (s *Service) DetachCurve(ctx context.Context, inputID, curveID Identity) (View, error) {
	return s.mutate(ctx, "detach_curve", TableInputs, inputID, TableCurves, curveID, false)
}

// mutate writes one reference change and resynchronises. If the write
// succeeds but the reload fails, the remote change stays in place.
func (s *Service) mutate(ctx context.Context, op string, table Table, owner Identity, refTable Table, ref Identity, add bool) (View, error) {
	var out View
	scope := &opScope{table: table, entityID: owner}
	err := s.observe(ctx, op, scope, func(ctx context.Context) error {
		if err := s.checkExists(table, owner); err != nil {
			return err
		}
		if add {
			if err := s.checkExists(refTable, ref); err != nil {
				return err
			}
			cell, err := s.mutator.Append(ctx, table, int(owner), int(ref))
			if err != nil {
				return err
			}
			s.opts.logger.Info("reference appended", "cell", cell, "ref", ref)
		} else {
			if err := s.mutator.Remove(ctx, table, int(owner), int(ref)); err != nil {
				return err
			}
			s.opts.logger.Info("reference removed", "table", table, "row", owner, "ref", ref)
		}
		var err error
		if out, err = s.resync(ctx, scope); err != nil {
			return fmt.Errorf("resync after %s: %w", op, err)
		}
		return nil
	})
	return out, err
}

func (s *Service) checkExists(table Table, id Identity) error {
	var ok bool
	switch table {
	case TableModels:
		_, ok = s.store.Model(id)
	case TableInputs:
		_, ok = s.store.Input(id)
	case TableCurves:
		_, ok = s.store.Curve(id)
	}
	if !ok {
		return domain.MissingReferenceError{Table: table, ID: id}
	}
	return nil
}

// History lists archived snapshots, newest first.
func (s *Service) History(ctx context.Context) ([]SnapshotInfo, error) {
	if s.opts.archive == nil {
		return nil, fmt.Errorf("history: no archive configured")
	}
	infos, err := s.opts.archive.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	for i, j := 0, len(infos)-1; i < j; i, j = i+1, j-1 {
		infos[i], infos[j] = infos[j], infos[i]
	}
	return infos, nil
}

// ExportView writes the current projection as JSON to the blob store under
// views/<revision>.json.
func (s *Service) ExportView(ctx context.Context) (blob.Info, error) {
	var info blob.Info
	err := s.observe(ctx, "export_view", &opScope{}, func(ctx context.Context) error {
		if s.opts.blobs == nil {
			return fmt.Errorf("export view: no blob store configured")
		}
		view := s.View()
		if view.Revision == "" {
			return fmt.Errorf("export view: nothing loaded")
		}
		payload, err := json.MarshalIndent(view, "", "  ")
		if err != nil {
			return fmt.Errorf("encode view: %w", err)
		}
		key := "views/" + view.Revision + ".json"
		info, err = s.opts.blobs.Put(ctx, key, bytes.NewReader(payload), blob.PutOptions{
			ContentType: "application/json",
			Metadata:    map[string]string{"revision": view.Revision},
		})
		if err != nil {
			return fmt.Errorf("export view %s: %w", key, err)
		}
		return nil
	})
	return info, err
}
