package state

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

const mirrorTimeout = 10 * time.Second

// MirroredStore pushes every cursor rewrite to a blob mirror. Mirror failures
// are logged and swallowed: the local file remains the source of truth.
type MirroredStore struct {
	*Store
	blob BlobStore
	log  *slog.Logger
}

// Mirror wraps store with blob. If the local table is empty and the mirror
// holds one, the mirror copy is restored first.
func Mirror(store *Store, blob BlobStore, log *slog.Logger) *MirroredStore {
	m := &MirroredStore{Store: store, blob: blob, log: log}
	if len(store.Devices()) == 0 {
		m.restore()
	}
	return m
}

func (m *MirroredStore) restore() {
	ctx, cancel := context.WithTimeout(context.Background(), mirrorTimeout)
	defer cancel()

	data, err := m.blob.Load(ctx)
	if err != nil {
		if !errors.Is(err, ErrBlobNotFound) {
			m.log.Warn("state mirror load failed", "error", err)
		}
		return
	}
	if err := m.Store.Replace(data); err != nil {
		m.log.Warn("state mirror restore failed", "error", err)
		return
	}
	m.log.Info("restored state from mirror", "devices", len(m.Store.Devices()))
}

func (m *MirroredStore) Put(deviceID string, cursor Cursor) error {
	if err := m.Store.Put(deviceID, cursor); err != nil {
		return err
	}

	data, err := m.Store.Bytes()
	if err != nil {
		m.log.Warn("state mirror encode failed", "error", err)
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), mirrorTimeout)
	defer cancel()
	if err := m.blob.Save(ctx, data); err != nil {
		m.log.Warn("state mirror save failed", "error", err)
	}
	return nil
}
