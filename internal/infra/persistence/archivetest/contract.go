// Package archivetest holds behaviour checks shared by every snapshot archive.
package archivetest

import (
	"context"
	"testing"
	"time"

	"curvegraph/pkg/domain"
)

// Snapshot builds a small snapshot tagged with revision.
func Snapshot(revision string, curves int) domain.Snapshot {
	snap := domain.Snapshot{
		Revision: revision,
		LoadedAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Models:   map[domain.Identity]domain.ModelRecord{1: {ID: 1, Name: "Base", Inputs: []domain.Identity{1}}},
		Inputs: map[domain.Identity]domain.InputRecord{1: {
			ID:              1,
			Name:            "Trucks",
			InputAttributes: domain.InputAttributes{Frequency: 4, Size: 10, Seed: 0.5},
			Curves:          []domain.Identity{1},
		}},
		Curves: make(map[domain.Identity]domain.CurveRecord, curves),
	}
	for i := 1; i <= curves; i++ {
		id := domain.Identity(i)
		snap.Curves[id] = domain.CurveRecord{ID: id, Name: "c", Period: 3, Curve: []float64{1, 2, 3}}
	}
	return snap
}

// Run exercises Save, Latest and List against archive, which must start empty.
func Run(t *testing.T, archive domain.Archive) {
	t.Helper()
	ctx := context.Background()

	if _, ok, err := archive.Latest(ctx); err != nil || ok {
		t.Fatalf("expected empty archive, ok=%v err=%v", ok, err)
	}
	if err := archive.Save(ctx, domain.Snapshot{}); err == nil {
		t.Fatalf("expected error saving snapshot without revision")
	}
	if err := archive.Save(ctx, Snapshot("rev-a", 1)); err != nil {
		t.Fatalf("save rev-a: %v", err)
	}
	if err := archive.Save(ctx, Snapshot("rev-b", 2)); err != nil {
		t.Fatalf("save rev-b: %v", err)
	}

	latest, ok, err := archive.Latest(ctx)
	if err != nil || !ok {
		t.Fatalf("latest: ok=%v err=%v", ok, err)
	}
	if latest.Revision != "rev-b" || len(latest.Curves) != 2 {
		t.Fatalf("unexpected latest %+v", latest.Info())
	}
	if in := latest.Inputs[1]; in.Name != "Trucks" || in.Seed != 0.5 || len(in.Curves) != 1 {
		t.Fatalf("input did not round trip: %+v", in)
	}

	// Re-saving a revision overwrites it without reordering history.
	if err := archive.Save(ctx, Snapshot("rev-a", 3)); err != nil {
		t.Fatalf("re-save rev-a: %v", err)
	}
	infos, err := archive.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("expected 2 snapshots, got %d", len(infos))
	}
	if infos[0].Revision != "rev-a" || infos[0].Curves != 3 || infos[1].Revision != "rev-b" {
		t.Fatalf("unexpected history %+v", infos)
	}
}
