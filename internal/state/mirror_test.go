package state

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

type memoryBlobStore struct {
	data  []byte
	fail  bool
	saves int
}

func (m *memoryBlobStore) Load(_ context.Context) ([]byte, error) {
	if m.fail {
		return nil, errors.New("blob unavailable")
	}
	if m.data == nil {
		return nil, ErrBlobNotFound
	}
	return m.data, nil
}

func (m *memoryBlobStore) Save(_ context.Context, data []byte) error {
	if m.fail {
		return errors.New("blob unavailable")
	}
	m.data = append([]byte(nil), data...)
	m.saves++
	return nil
}

func TestMirrorSavesOnPut(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "cursors.json"), testLogger())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	blob := &memoryBlobStore{}
	mirrored := Mirror(store, blob, testLogger())

	if err := mirrored.Put("vac", Cursor{LastCleanCount: 4}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if blob.saves != 1 {
		t.Fatalf("expected 1 mirror save, got %d", blob.saves)
	}
}

func TestMirrorRestoresEmptyTable(t *testing.T) {
	dir := t.TempDir()

	seed, err := Open(filepath.Join(dir, "seed.json"), testLogger())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := seed.Put("vac", Cursor{LastCleanCount: 11}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	data, err := seed.Bytes()
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}

	fresh, err := Open(filepath.Join(dir, "cursors.json"), testLogger())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	mirrored := Mirror(fresh, &memoryBlobStore{data: data}, testLogger())

	cursor, ok := mirrored.Cursor("vac")
	if !ok || cursor.LastCleanCount != 11 {
		t.Fatalf("expected restored cursor, got %+v ok=%v", cursor, ok)
	}
}

func TestMirrorFailuresAreNotFatal(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "cursors.json"), testLogger())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	mirrored := Mirror(store, &memoryBlobStore{fail: true}, testLogger())

	if err := mirrored.Put("vac", Cursor{LastCleanCount: 2}); err != nil {
		t.Fatalf("mirror failure must not fail the commit: %v", err)
	}
	if cursor, ok := mirrored.Cursor("vac"); !ok || cursor.LastCleanCount != 2 {
		t.Fatalf("local write lost: %+v ok=%v", cursor, ok)
	}
}
