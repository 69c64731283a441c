package core

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"curvegraph/internal/sheets"
	"curvegraph/pkg/domain"
)

func TestStoreReloadPopulatesTables(t *testing.T) {
	remote := seededRemote()
	store := NewStore()
	info, err := store.Reload(context.Background(), sheets.NewLoader(remote))
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if info.Models != 2 || info.Inputs != 2 || info.Curves != 3 {
		t.Fatalf("unexpected counts %+v", info)
	}
	if info.Revision == "" || store.Revision() != info.Revision {
		t.Fatalf("expected revision to be set, got %q", info.Revision)
	}
	models := store.ListModels()
	if len(models) != 2 || models[0].ID != 1 || models[1].ID != 2 {
		t.Fatalf("models not in identity order: %+v", models)
	}
	if !sameIdentities(models[0].Inputs, identities(1, 2)) {
		t.Fatalf("unexpected model inputs %v", models[0].Inputs)
	}
	if curves := store.ListCurves(); len(curves) != 3 || curves[2].Name != "spare" {
		t.Fatalf("unexpected curves %+v", curves)
	}
}

func TestStoreReloadIsAllOrNothing(t *testing.T) {
	remote := seededRemote()
	store := NewStore()
	loader := sheets.NewLoader(remote)
	if _, err := store.Reload(context.Background(), loader); err != nil {
		t.Fatalf("initial reload: %v", err)
	}
	before := store.ExportState()

	remote.SetTable(TableModels, [][]any{{"name", "notes", "inputs"}, {"Changed", "", 1}})
	remote.FailOn(http.MethodGet, TableCurves, &domain.RemoteAPIError{Method: http.MethodGet, Status: 500, Body: "boom"})
	if _, err := store.Reload(context.Background(), loader); !errors.Is(err, domain.ErrRemoteAPI) {
		t.Fatalf("expected remote api error, got %v", err)
	}
	after := store.ExportState()
	if after.Revision != before.Revision || len(after.Models) != 2 || after.Models[1].Name != "Base" {
		t.Fatalf("failed reload leaked partial state: %+v", after.Info())
	}
}

func TestStoreReloadRejectsDanglingReference(t *testing.T) {
	remote := seededRemote()
	store := NewStore()
	loader := sheets.NewLoader(remote)
	if _, err := store.Reload(context.Background(), loader); err != nil {
		t.Fatalf("initial reload: %v", err)
	}
	rev := store.Revision()

	remote.SetTable(TableModels, [][]any{{"name", "notes", "inputs"}, {"Renamed", "", 1, 9}})
	_, err := store.Reload(context.Background(), loader)
	var mr domain.MissingReferenceError
	if !errors.As(err, &mr) || mr.Table != TableInputs || mr.ID != 9 {
		t.Fatalf("expected missing input 9, got %v", err)
	}
	if m, _ := store.Model(1); m.Name != "Base" || store.Revision() != rev {
		t.Fatalf("dangling reload was committed: model=%q rev=%q", m.Name, store.Revision())
	}
}

func TestStoreStageDoesNotTouchLiveTables(t *testing.T) {
	remote := seededRemote()
	store := NewStore(WithStoreClock(func() time.Time { return fixedNow }))
	staged, err := store.Stage(context.Background(), sheets.NewLoader(remote), Selection{ModelID: 2})
	if err != nil {
		t.Fatalf("stage: %v", err)
	}
	if store.Revision() != "" || len(store.ListModels()) != 0 {
		t.Fatalf("stage published tables")
	}
	if v := staged.View(); v.ChartedModel == nil || v.ChartedModel.ID != 2 || v.Revision != staged.Info().Revision {
		t.Fatalf("unexpected staged view %+v", v)
	}
	if snap := staged.Snapshot(); snap.Revision != staged.Info().Revision || len(snap.Inputs) != 2 {
		t.Fatalf("unexpected staged snapshot %+v", snap.Info())
	}
	store.Commit(staged)
	if info := store.Info(); info.Revision != staged.Info().Revision || !info.LoadedAt.Equal(fixedNow) {
		t.Fatalf("commit did not publish staged tables: %+v", info)
	}
}

func TestStoreReloadRejectsMalformedTable(t *testing.T) {
	remote := seededRemote()
	store := NewStore()
	loader := sheets.NewLoader(remote)
	if _, err := store.Reload(context.Background(), loader); err != nil {
		t.Fatalf("initial reload: %v", err)
	}
	rev := store.Revision()
	remote.SetTable(TableCurves, [][]any{{"name", "period", "notes", "curve"}, {"bad", -1, "", 1}})
	if _, err := store.Reload(context.Background(), loader); !errors.Is(err, domain.ErrInvalidPeriod) {
		t.Fatalf("expected invalid period, got %v", err)
	}
	if store.Revision() != rev || len(store.ListCurves()) != 3 {
		t.Fatalf("store changed after failed reload")
	}
}

func TestStoreGettersReturnCopies(t *testing.T) {
	store := NewStore()
	if _, err := store.Reload(context.Background(), sheets.NewLoader(seededRemote())); err != nil {
		t.Fatalf("reload: %v", err)
	}
	c, ok := store.Curve(1)
	if !ok {
		t.Fatalf("curve 1 missing")
	}
	c.Curve[0] = 42
	again, _ := store.Curve(1)
	if again.Curve[0] != 1 {
		t.Fatalf("store aliased curve samples")
	}
	if _, ok := store.Model(9); ok {
		t.Fatalf("unexpected model 9")
	}
}

func TestStoreExportImportRoundTrip(t *testing.T) {
	src := NewStore()
	if _, err := src.Reload(context.Background(), sheets.NewLoader(seededRemote())); err != nil {
		t.Fatalf("reload: %v", err)
	}
	dst := NewStore()
	dst.ImportState(src.ExportState())
	if dst.Revision() != src.Revision() {
		t.Fatalf("revision not imported")
	}
	if got, want := dst.Info(), src.Info(); got != want {
		t.Fatalf("info mismatch %+v vs %+v", got, want)
	}
}

func TestStoreSetInputField(t *testing.T) {
	store := NewStore()
	if _, err := store.Reload(context.Background(), sheets.NewLoader(seededRemote())); err != nil {
		t.Fatalf("reload: %v", err)
	}
	in, err := store.SetInputField(1, domain.FieldSeed, "0.75")
	if err != nil {
		t.Fatalf("set seed: %v", err)
	}
	if in.Seed != 0.75 {
		t.Fatalf("seed not applied: %v", in.Seed)
	}
	if _, err := store.SetInputField(1, domain.FieldName, "Lorries"); err != nil {
		t.Fatalf("set name: %v", err)
	}
	if got, _ := store.Input(1); got.Name != "Lorries" || got.Seed != 0.75 {
		t.Fatalf("edit not stored: %+v", got)
	}
	if _, err := store.SetInputField(1, "colour", 1); !errors.Is(err, domain.ErrUnknownField) {
		t.Fatalf("expected unknown field, got %v", err)
	}
	if _, err := store.SetInputField(1, domain.FieldSize, "big"); !errors.Is(err, domain.ErrMalformedRecord) {
		t.Fatalf("expected malformed value, got %v", err)
	}
	if _, err := store.SetInputField(1, domain.FieldNotes, 3); !errors.Is(err, domain.ErrMalformedRecord) {
		t.Fatalf("expected malformed text, got %v", err)
	}
	if _, err := store.SetInputField(7, domain.FieldSize, 1); !errors.Is(err, domain.ErrMissingReference) {
		t.Fatalf("expected missing input, got %v", err)
	}
}
