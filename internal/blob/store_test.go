package blob

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"curvegraph/internal/config"
)

func storesUnderTest(t *testing.T) map[string]Store {
	t.Helper()
	fsStore, err := Open(context.Background(), config.Blob{Driver: string(DriverFilesystem), FSRoot: t.TempDir()})
	if err != nil {
		t.Fatalf("open fs store: %v", err)
	}
	return map[string]Store{
		"memory": NewMemory(),
		"fs":     fsStore,
		"s3":     NewMockS3ForTests(),
	}
}

func TestStoresPutGetListDelete(t *testing.T) {
	ctx := context.Background()
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			payload := []byte(`{"revision":"r1"}`)
			info, err := store.Put(ctx, "views/r1.json", bytes.NewReader(payload), PutOptions{ContentType: "application/json"})
			if err != nil {
				t.Fatalf("put: %v", err)
			}
			if info.Key != "views/r1.json" || info.Size != int64(len(payload)) {
				t.Fatalf("unexpected info %+v", info)
			}
			if _, err := store.Put(ctx, "views/r1.json", bytes.NewReader(payload), PutOptions{}); !errors.Is(err, ErrExists) {
				t.Fatalf("expected ErrExists, got %v", err)
			}
			if _, err := store.Put(ctx, "views/r0.json", bytes.NewReader([]byte("{}")), PutOptions{}); err != nil {
				t.Fatalf("put second: %v", err)
			}
			if _, err := store.Put(ctx, "other/x.json", bytes.NewReader([]byte("{}")), PutOptions{}); err != nil {
				t.Fatalf("put other: %v", err)
			}

			_, rc, err := store.Get(ctx, "views/r1.json")
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			got, _ := io.ReadAll(rc)
			_ = rc.Close()
			if !bytes.Equal(got, payload) {
				t.Fatalf("payload mismatch: %q", got)
			}

			list, err := store.List(ctx, "views/")
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(list) != 2 || list[0].Key != "views/r0.json" || list[1].Key != "views/r1.json" {
				t.Fatalf("unexpected listing %+v", list)
			}

			deleted, err := store.Delete(ctx, "views/r1.json")
			if err != nil || !deleted {
				t.Fatalf("delete: %v %v", deleted, err)
			}
			deleted, err = store.Delete(ctx, "views/r1.json")
			if err != nil || deleted {
				t.Fatalf("second delete: %v %v", deleted, err)
			}
			if _, _, err := store.Get(ctx, "views/r1.json"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
		})
	}
}

func TestMemoryStoreKeepsMetadataCopies(t *testing.T) {
	store := NewMemory()
	meta := map[string]string{"revision": "r1"}
	if _, err := store.Put(context.Background(), "k", bytes.NewReader(nil), PutOptions{Metadata: meta}); err != nil {
		t.Fatalf("put: %v", err)
	}
	meta["revision"] = "mutated"
	info, rc, err := store.Get(context.Background(), "k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	_ = rc.Close()
	if info.Metadata["revision"] != "r1" {
		t.Fatalf("metadata aliased caller map: %+v", info.Metadata)
	}
}

func TestOpenDrivers(t *testing.T) {
	ctx := context.Background()
	store, err := Open(ctx, config.Blob{Driver: "none"})
	if err != nil || store != nil {
		t.Fatalf("none driver: %v %v", store, err)
	}
	store, err = Open(ctx, config.Blob{Driver: "memory"})
	if err != nil || store.Driver() != DriverMemory {
		t.Fatalf("memory driver: %v", err)
	}
	if _, err := Open(ctx, config.Blob{Driver: "gcs"}); err == nil {
		t.Fatalf("expected unknown driver error")
	}
	if _, err := Open(ctx, config.Blob{Driver: "s3"}); err == nil {
		t.Fatalf("expected missing bucket error")
	}
}

func TestFilesystemRejectsEscapingKeys(t *testing.T) {
	store, err := Open(context.Background(), config.Blob{Driver: "fs", FSRoot: t.TempDir()})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := store.Put(context.Background(), "../escape", bytes.NewReader(nil), PutOptions{}); err == nil {
		t.Fatalf("expected invalid key error")
	}
}
