package tkey

import (
	"bytes"
	"context"
	"errors"

	"github.com/Web3Auth/mpc-core-kit-sub001/pkg/coreerr"
	"github.com/Web3Auth/mpc-core-kit-sub001/pkg/kvstore"
)

// Atomic runs fn as one all-or-nothing mutation of the record. Nested calls
// join the outermost frame: only the outermost success stages (and, in
// auto-sync mode, flushes) the new record, and any error restores the
// record to its state at the outermost entry.
func (t *TKey) Atomic(ctx context.Context, fn func(ctx context.Context) error) error {
	if t.depth == 0 {
		if t.meta != nil {
			t.snapshot = t.meta.Clone()
		} else {
			t.snapshot = nil
		}
		t.snapDirty = t.dirty
		t.snapHasState = true
	}
	t.depth++
	committed := false
	// The depth counter must close even when fn panics, or the controller
	// would stay open for every later mutation.
	defer func() {
		t.depth--
		if !committed && t.depth == 0 {
			t.rollback()
		}
	}()
	if err := fn(ctx); err != nil {
		return err
	}
	if t.depth > 1 {
		committed = true
		return nil
	}
	t.dirty = true
	if !t.manualSync {
		if err := t.Flush(ctx); err != nil {
			return err
		}
	}
	t.snapshot = nil
	t.snapHasState = false
	committed = true
	return nil
}

func (t *TKey) rollback() {
	if !t.snapHasState {
		return
	}
	if t.meta != nil && t.snapshot != nil {
		t.log.Debug().
			Uint64("from", t.meta.Nonce).
			Uint64("to", t.snapshot.Nonce).
			Msg("rolling back staged metadata")
	}
	t.meta = t.snapshot
	t.dirty = t.snapDirty
	t.snapshot = nil
	t.snapHasState = false
}

// Flush writes the staged record to the metadata store. It refuses to
// overwrite a record another writer advanced since our last sync.
func (t *TKey) Flush(ctx context.Context) error {
	if !t.dirty {
		return nil
	}
	if t.meta == nil {
		return coreerr.New(coreerr.CodeMetadataUninitialized, "nothing staged to flush")
	}
	remote, err := t.store.Get(ctx, t.storeKey)
	switch {
	case errors.Is(err, kvstore.ErrNotFound):
		// fresh record
	case err != nil:
		return err
	case !bytes.Equal(remote, t.lastSynced):
		return coreerr.New(coreerr.CodeEpochConflict, "metadata advanced by another writer")
	}
	data, err := t.meta.MarshalBinary()
	if err != nil {
		return err
	}
	if err := t.store.Set(ctx, t.storeKey, data); err != nil {
		return err
	}
	t.lastSynced = data
	t.dirty = false
	t.history[t.meta.Nonce] = data
	t.log.Debug().Uint64("epoch", t.meta.Nonce).Int("bytes", len(data)).Msg("metadata flushed")
	return nil
}

// Dirty reports whether staged transitions await a flush.
func (t *TKey) Dirty() bool {
	return t.dirty
}

// SetManualSync switches the sync mode. Turning auto-sync back on flushes
// anything staged.
func (t *TKey) SetManualSync(ctx context.Context, manual bool) error {
	t.manualSync = manual
	if !manual && t.dirty {
		return t.Flush(ctx)
	}
	return nil
}

// History returns the flushed record bytes per epoch seen by this handle.
func (t *TKey) History() map[uint64][]byte {
	out := make(map[uint64][]byte, len(t.history))
	for epoch, data := range t.history {
		c := make([]byte, len(data))
		copy(c, data)
		out[epoch] = c
	}
	return out
}
