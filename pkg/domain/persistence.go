package domain

import (
	"context"
	"time"
)

// Snapshot is the full content of the three tables as of one successful reload.
type Snapshot struct {
	Revision string                   `json:"revision"`
	LoadedAt time.Time                `json:"loaded_at"`
	Models   map[Identity]ModelRecord `json:"models"`
	Inputs   map[Identity]InputRecord `json:"inputs"`
	Curves   map[Identity]CurveRecord `json:"curves"`
}

// SnapshotInfo summarises an archived snapshot.
type SnapshotInfo struct {
	Revision string    `json:"revision"`
	LoadedAt time.Time `json:"loaded_at"`
	Models   int       `json:"models"`
	Inputs   int       `json:"inputs"`
	Curves   int       `json:"curves"`
}

// Info summarises s.
func (s Snapshot) Info() SnapshotInfo {
	return SnapshotInfo{
		Revision: s.Revision,
		LoadedAt: s.LoadedAt,
		Models:   len(s.Models),
		Inputs:   len(s.Inputs),
		Curves:   len(s.Curves),
	}
}

// CloneSnapshot returns a deep copy of s.
func CloneSnapshot(s Snapshot) Snapshot {
	out := Snapshot{
		Revision: s.Revision,
		LoadedAt: s.LoadedAt,
		Models:   make(map[Identity]ModelRecord, len(s.Models)),
		Inputs:   make(map[Identity]InputRecord, len(s.Inputs)),
		Curves:   make(map[Identity]CurveRecord, len(s.Curves)),
	}
	for k, v := range s.Models {
		out.Models[k] = CloneModel(v)
	}
	for k, v := range s.Inputs {
		out.Inputs[k] = CloneInput(v)
	}
	for k, v := range s.Curves {
		out.Curves[k] = CloneCurve(v)
	}
	return out
}

// Archive keeps the history of successfully reloaded snapshots. It is never
// used to seed the live tables.
type Archive interface {
	Save(ctx context.Context, snapshot Snapshot) error
	Latest(ctx context.Context) (Snapshot, bool, error)
	List(ctx context.Context) ([]SnapshotInfo, error)
}

// Transport issues one request against the remote tabular store and decodes
// the JSON response into out (when out is non-nil).
type Transport interface {
	Do(ctx context.Context, method, path string, body, out any) error
}
