package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"curvegraph/internal/blob"
	"curvegraph/internal/infra/persistence/memory"
	"curvegraph/internal/sheets/sheetstest"
	"curvegraph/pkg/domain"
)

type recordingLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *recordingLogger) add(level, msg string) {
	l.mu.Lock()
	l.lines = append(l.lines, level+" "+msg)
	l.mu.Unlock()
}

func (l *recordingLogger) Debug(msg string, _ ...any) { l.add("DEBUG", msg) }
func (l *recordingLogger) Info(msg string, _ ...any)  { l.add("INFO", msg) }
func (l *recordingLogger) Warn(msg string, _ ...any)  { l.add("WARN", msg) }
func (l *recordingLogger) Error(msg string, _ ...any) { l.add("ERROR", msg) }

func (l *recordingLogger) has(prefix string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, line := range l.lines {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	return false
}

func TestServiceReloadProjectsAndArchives(t *testing.T) {
	archive := memory.NewStore()
	svc := newTestService(t, seededRemote(), WithArchive(archive))
	view, err := svc.Reload(context.Background())
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if len(view.Models) != 2 || view.Revision == "" {
		t.Fatalf("unexpected view %+v", view)
	}
	latest, ok, err := archive.Latest(context.Background())
	if err != nil || !ok || latest.Revision != view.Revision {
		t.Fatalf("snapshot not archived: ok=%v err=%v", ok, err)
	}
	if !latest.LoadedAt.Equal(fixedNow) {
		t.Fatalf("expected service clock on snapshot, got %v", latest.LoadedAt)
	}
}

func TestServiceObservability(t *testing.T) {
	audit := &AuditLog{}
	spans := NewSpanLog(nil, 0)
	metrics := NewExpvarMetricsRecorder("")
	logger := &recordingLogger{}
	remote := seededRemote()
	svc := newTestService(t, remote, WithAuditRecorder(audit), WithTracer(spans), WithMetricsRecorder(metrics), WithLogger(logger))

	if _, err := svc.Reload(context.Background()); err != nil {
		t.Fatalf("reload: %v", err)
	}
	remote.FailOn("", TableModels, &domain.RemoteAPIError{Method: http.MethodGet, Status: 502, Body: "bad gateway"})
	if _, err := svc.Reload(context.Background()); err == nil {
		t.Fatalf("expected reload failure")
	}

	entries := audit.Entries("reload")
	if len(entries) != 2 || entries[0].Status != AuditStatusSuccess || entries[1].Status != AuditStatusError {
		t.Fatalf("unexpected audit entries %+v", entries)
	}
	if entries[0].Revision == "" || entries[1].Error == "" {
		t.Fatalf("audit entries missing details %+v", entries)
	}
	if audit.Failures()["reload"] != 1 {
		t.Fatalf("expected one reload failure")
	}
	stats := metrics.Stats()["reload"]
	if stats.Calls != 2 || stats.Errors != 1 {
		t.Fatalf("unexpected metrics %+v", stats)
	}
	recorded := spans.Spans()
	if len(recorded) != 2 || recorded[0].Failed || !recorded[1].Failed || recorded[1].Seq != 2 {
		t.Fatalf("unexpected spans %+v", recorded)
	}
	if !logger.has("INFO tables reloaded") || !logger.has("ERROR operation failed") {
		t.Fatalf("expected reload logs, got %v", logger.lines)
	}
}

func TestServiceFailedReloadKeepsView(t *testing.T) {
	remote := seededRemote()
	svc := newTestService(t, remote)
	first, err := svc.Reload(context.Background())
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	remote.FailOn(http.MethodGet, TableInputs, &domain.RemoteAPIError{Status: 500})
	if _, err := svc.Reload(context.Background()); !errors.Is(err, domain.ErrRemoteAPI) {
		t.Fatalf("expected remote error, got %v", err)
	}
	if svc.View().Revision != first.Revision {
		t.Fatalf("view changed after failed reload")
	}
}

type failingArchive struct {
	err   error
	saves int
}

func (a *failingArchive) Save(context.Context, domain.Snapshot) error {
	a.saves++
	return a.err
}

func (a *failingArchive) Latest(context.Context) (domain.Snapshot, bool, error) {
	return domain.Snapshot{}, false, nil
}

func (a *failingArchive) List(context.Context) ([]domain.SnapshotInfo, error) { return nil, nil }

func TestServiceArchiveFailurePublishesNothing(t *testing.T) {
	remote := seededRemote()
	archive := &failingArchive{err: errors.New("disk full")}
	svc := newTestService(t, remote, WithArchive(archive))
	ctx := context.Background()

	if _, err := svc.Reload(ctx); err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("expected archive error, got %v", err)
	}
	if svc.Store().Revision() != "" || len(svc.Store().ListModels()) != 0 {
		t.Fatalf("tables published despite archive failure: %+v", svc.Store().Info())
	}
	if v := svc.View(); v.Revision != "" || len(v.Models) != 0 {
		t.Fatalf("view published despite archive failure: %+v", v)
	}

	archive.err = nil
	first, err := svc.Reload(ctx)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	archive.err = errors.New("disk full")
	if _, err := svc.AttachCurve(ctx, 2, 3); err == nil || !strings.Contains(err.Error(), "resync after attach_curve") {
		t.Fatalf("expected resync error, got %v", err)
	}
	if svc.Store().Revision() != first.Revision || svc.View().Revision != first.Revision {
		t.Fatalf("failed resync moved revision")
	}
	if in, _ := svc.Store().Input(2); len(in.Curves) != 1 {
		t.Fatalf("store picked up unarchived tables: %v", in.Curves)
	}
	if archive.saves != 3 {
		t.Fatalf("expected 3 archive attempts, got %d", archive.saves)
	}
}

func TestServiceDanglingReloadKeepsTablesAndPins(t *testing.T) {
	remote := seededRemote()
	svc := newTestService(t, remote)
	ctx := context.Background()
	if _, err := svc.Reload(ctx); err != nil {
		t.Fatalf("reload: %v", err)
	}
	before, err := svc.ChartModel(ctx, 1)
	if err != nil {
		t.Fatalf("chart: %v", err)
	}

	remote.SetTable(TableModels, [][]any{{"name", "notes", "inputs"}, {"Renamed", "", 1, 9}})
	if _, err := svc.Reload(ctx); !errors.Is(err, domain.ErrMissingReference) {
		t.Fatalf("expected missing reference, got %v", err)
	}
	if m, _ := svc.Store().Model(1); m.Name != "Base" {
		t.Fatalf("store committed dangling tables: %q", m.Name)
	}
	after := svc.View()
	if after.Revision != before.Revision || svc.Store().Revision() != before.Revision {
		t.Fatalf("revision moved: view=%q store=%q want %q", after.Revision, svc.Store().Revision(), before.Revision)
	}
	if after.ChartedModel == nil || after.ChartedModel.Name != "Base" {
		t.Fatalf("pin no longer matches store: %+v", after.ChartedModel)
	}
}

func TestServiceKeepsInjectedStoreClock(t *testing.T) {
	storeNow := fixedNow.Add(time.Hour)
	store := NewStore(WithStoreClock(func() time.Time { return storeNow }))
	svc := newTestService(t, seededRemote(), WithStore(store))
	if _, err := svc.Reload(context.Background()); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got := store.Info().LoadedAt; !got.Equal(storeNow) {
		t.Fatalf("service overrode store clock: %v", got)
	}
}

func TestServiceStampsOwnStoreWithClock(t *testing.T) {
	svc := newTestService(t, seededRemote())
	if _, err := svc.Reload(context.Background()); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got := svc.Store().Info().LoadedAt; !got.Equal(fixedNow) {
		t.Fatalf("expected service clock on owned store, got %v", got)
	}
}

func TestServicePinsFollowReload(t *testing.T) {
	remote := seededRemote()
	logger := &recordingLogger{}
	svc := newTestService(t, remote, WithLogger(logger))
	ctx := context.Background()
	if _, err := svc.Reload(ctx); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if _, err := svc.ChartModel(ctx, 2); err != nil {
		t.Fatalf("chart: %v", err)
	}
	view, err := svc.ShowInput(ctx, 1)
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	if view.ChartedModel == nil || view.ChartedModel.ID != 2 || view.ShownInput.ID != 1 {
		t.Fatalf("pins not applied: %+v", view.Selection())
	}
	if _, err := svc.ChartModel(ctx, 9); !errors.Is(err, domain.ErrMissingReference) {
		t.Fatalf("expected missing model, got %v", err)
	}
	if got := svc.View().Selection(); got.ModelID != 2 {
		t.Fatalf("failed pin changed selection: %+v", got)
	}

	remote.SetTable(TableModels, [][]any{{"name", "notes", "inputs"}, {"Base", "", 1, 2}})
	view, err = svc.Reload(ctx)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if view.ChartedModel != nil || len(view.Dropped) != 1 || view.ShownInput == nil {
		t.Fatalf("expected model pin dropped and input pin kept: %+v", view)
	}
	if !logger.has("WARN pinned record no longer exists") {
		t.Fatalf("expected warning for dropped pin")
	}
	if cleared := svc.ClearPins(); cleared.ShownInput != nil {
		t.Fatalf("pins not cleared")
	}
}

func TestServiceAttachAndDetachInput(t *testing.T) {
	remote := seededRemote()
	svc := newTestService(t, remote)
	ctx := context.Background()
	if _, err := svc.Reload(ctx); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if _, err := svc.ChartModel(ctx, 2); err != nil {
		t.Fatalf("chart: %v", err)
	}
	view, err := svc.AttachInput(ctx, 2, 1)
	if err != nil {
		t.Fatalf("attach: %v", err)
	}
	if got := view.ChartedModel; got == nil || len(got.Inputs) != 2 || got.Inputs[1].ID != 1 {
		t.Fatalf("charted model not refreshed after attach: %+v", got)
	}
	if row := remote.Row(TableModels, 3); len(row) != 4 || !domain.CellEqual(row[3], 1) {
		t.Fatalf("unexpected remote row %v", row)
	}

	view, err = svc.DetachInput(ctx, 2, 2)
	if err != nil {
		t.Fatalf("detach: %v", err)
	}
	if got := view.ChartedModel; got == nil || len(got.Inputs) != 1 || got.Inputs[0].ID != 1 {
		t.Fatalf("charted model not refreshed after detach: %+v", got)
	}
	if rec, _ := svc.Store().Model(2); !sameIdentities(rec.Inputs, identities(1)) {
		t.Fatalf("store not resynced: %v", rec.Inputs)
	}
}

func TestServiceAttachAndDetachCurve(t *testing.T) {
	remote := seededRemote()
	svc := newTestService(t, remote)
	ctx := context.Background()
	if _, err := svc.Reload(ctx); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if _, err := svc.AttachCurve(ctx, 2, 3); err != nil {
		t.Fatalf("attach: %v", err)
	}
	in, err := svc.ResolveInput(ctx, 2)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(in.Curves) != 2 || in.Curves[1].Name != "spare" {
		t.Fatalf("curve not attached: %+v", in.Curves)
	}
	if _, err := svc.DetachCurve(ctx, 2, 2); err != nil {
		t.Fatalf("detach: %v", err)
	}
	rec, _ := svc.Store().Input(2)
	if !sameIdentities(rec.Curves, identities(3)) {
		t.Fatalf("unexpected curves after detach %v", rec.Curves)
	}
}

func TestServiceMutationPreconditions(t *testing.T) {
	remote := seededRemote()
	svc := newTestService(t, remote)
	ctx := context.Background()
	if _, err := svc.Reload(ctx); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if _, err := svc.AttachInput(ctx, 7, 1); !errors.Is(err, domain.ErrMissingReference) {
		t.Fatalf("expected missing model, got %v", err)
	}
	if _, err := svc.AttachCurve(ctx, 1, 7); !errors.Is(err, domain.ErrMissingReference) {
		t.Fatalf("expected missing curve, got %v", err)
	}
	if _, err := svc.DetachCurve(ctx, 1, 3); !errors.Is(err, domain.ErrValueNotFound) {
		t.Fatalf("expected value not found, got %v", err)
	}
	if len(remote.Writes()) != 0 {
		t.Fatalf("failed preconditions must not write: %+v", remote.Writes())
	}
}

func TestServiceMutationResyncFailure(t *testing.T) {
	remote := seededRemote()
	svc := newTestService(t, remote)
	ctx := context.Background()
	if _, err := svc.Reload(ctx); err != nil {
		t.Fatalf("reload: %v", err)
	}
	rev := svc.View().Revision
	remote.OnDo(func(req sheetstest.Request) {
		if req.Method == http.MethodPut {
			remote.FailOn(http.MethodGet, TableCurves, &domain.RemoteAPIError{Status: 503})
		}
	})
	_, err := svc.AttachCurve(ctx, 1, 3)
	if err == nil || !strings.Contains(err.Error(), "resync after attach_curve") {
		t.Fatalf("expected resync error, got %v", err)
	}
	if row := remote.Row(TableInputs, 2); !domain.CellEqual(row[len(row)-1], 3) {
		t.Fatalf("remote write should stand: %v", row)
	}
	if svc.View().Revision != rev {
		t.Fatalf("view must keep previous revision")
	}
}

func TestServicePreviewInputIsLocalOnly(t *testing.T) {
	remote := seededRemote()
	svc := newTestService(t, remote)
	ctx := context.Background()
	if _, err := svc.Reload(ctx); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if _, err := svc.ShowInput(ctx, 1); err != nil {
		t.Fatalf("show: %v", err)
	}
	view, err := svc.PreviewInput(ctx, 1, domain.FieldGrowthPercent, 9)
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if view.ShownInput.GrowthPercent != 9 {
		t.Fatalf("preview not projected: %+v", view.ShownInput)
	}
	if len(remote.Writes()) != 0 {
		t.Fatalf("preview must not write remotely")
	}
	view, err = svc.Reload(ctx)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if view.ShownInput.GrowthPercent != 5 {
		t.Fatalf("reload should discard preview, got %v", view.ShownInput.GrowthPercent)
	}
}

func TestServiceResolveModel(t *testing.T) {
	svc := newTestService(t, seededRemote())
	if _, err := svc.Reload(context.Background()); err != nil {
		t.Fatalf("reload: %v", err)
	}
	m, err := svc.ResolveModel(context.Background(), 1)
	if err != nil || len(m.Inputs) != 2 {
		t.Fatalf("resolve: %v %+v", err, m)
	}
}

func TestServiceHistoryNewestFirst(t *testing.T) {
	archive := memory.NewStore()
	svc := newTestService(t, seededRemote(), WithArchive(archive))
	ctx := context.Background()
	if _, err := svc.History(ctx); err != nil {
		t.Fatalf("history on empty archive: %v", err)
	}
	first, err := svc.Reload(ctx)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	second, err := svc.Reload(ctx)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	infos, err := svc.History(ctx)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(infos) != 2 || infos[0].Revision != second.Revision || infos[1].Revision != first.Revision {
		t.Fatalf("unexpected history %+v", infos)
	}
	if _, err := newTestService(t, seededRemote()).History(ctx); err == nil {
		t.Fatalf("expected error without archive")
	}
}

func TestServiceExportView(t *testing.T) {
	blobs := blob.NewMemory()
	svc := newTestService(t, seededRemote(), WithBlobStore(blobs))
	ctx := context.Background()
	if _, err := svc.ExportView(ctx); err == nil {
		t.Fatalf("expected error before first reload")
	}
	view, err := svc.Reload(ctx)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	info, err := svc.ExportView(ctx)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if info.Key != "views/"+view.Revision+".json" || info.ContentType != "application/json" {
		t.Fatalf("unexpected info %+v", info)
	}
	_, rc, err := blobs.Get(ctx, info.Key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer func() { _ = rc.Close() }()
	raw, _ := io.ReadAll(rc)
	var decoded View
	if err := json.NewDecoder(bytes.NewReader(raw)).Decode(&decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Revision != view.Revision || len(decoded.Models) != 2 {
		t.Fatalf("unexpected exported view %+v", decoded)
	}
	if _, err := svc.ExportView(ctx); !errors.Is(err, blob.ErrExists) {
		t.Fatalf("expected ErrExists on re-export, got %v", err)
	}
	if _, err := newTestService(t, seededRemote()).ExportView(ctx); err == nil {
		t.Fatalf("expected error without blob store")
	}
}
