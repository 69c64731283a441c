package core

import (
	"testing"
	"time"

	"curvegraph/internal/sheets"
	"curvegraph/internal/sheets/sheetstest"
)

var fixedNow = time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)

func modelsGrid() [][]any {
	return [][]any{
		{"name", "notes", "inputs"},
		{"Base", "", 1, 2},
		{"Solo", "single input", 2},
	}
}

func inputsGrid() [][]any {
	return [][]any{
		{"name", "frequency", "size", "growthPercent", "growthFrequency", "seed", "saturation", "variability", "notes", "curves"},
		{"Trucks", 4, 10, 5, 12, 0.5, 100, 0.1, "", 1, 2},
		{"Vans", 2, 3, 0, 0, 0, 0, 0, "n", 2},
	}
}

func curvesGrid() [][]any {
	return [][]any{
		{"name", "period", "notes", "curve"},
		{"ramp", 4, "", 1, 2},
		{"flat", 2, "", 5, 5, 5, 5},
		{"spare", 1, "", 9},
	}
}

// seededRemote returns a fake remote holding the three standard tables.
func seededRemote() *sheetstest.Remote {
	remote := sheetstest.NewRemote()
	remote.SetTable(TableModels, modelsGrid())
	remote.SetTable(TableInputs, inputsGrid())
	remote.SetTable(TableCurves, curvesGrid())
	return remote
}

func newTestService(t *testing.T, remote *sheetstest.Remote, opts ...Option) *Service {
	t.Helper()
	opts = append([]Option{WithClock(ClockFunc(func() time.Time { return fixedNow }))}, opts...)
	return NewService(sheets.NewLoader(remote), sheets.NewMutator(remote), opts...)
}

func identities(ids ...int) []Identity {
	out := make([]Identity, len(ids))
	for i, id := range ids {
		out[i] = Identity(id)
	}
	return out
}

func sameIdentities(a, b []Identity) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
