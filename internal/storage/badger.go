package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/dgraph-io/badger/v3"

	"github.com/hpungsan/leadvault/internal/config"
	"github.com/hpungsan/leadvault/internal/lead"
)

const (
	badgerDir = "kv"

	// KeyPrefix namespaces collection keys in the KV store.
	KeyPrefix = "leadvault:"
)

// Badger keeps the whole collection as one JSON array under a single key,
// the same layout the browser extension uses in localStorage.
type Badger struct {
	kv  *badger.DB
	key []byte
}

// OpenBadger opens the KV store at home/kv.
func OpenBadger(home, storageKey string) (*Badger, error) {
	if storageKey == "" {
		storageKey = config.DefaultConfig().StorageKey
	}
	opts := badger.DefaultOptions(filepath.Join(home, badgerDir)).WithLogger(nil)
	kv, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open kv store: %w", err)
	}
	return &Badger{kv: kv, key: []byte(KeyPrefix + storageKey)}, nil
}

// Name implements Backend.
func (b *Badger) Name() string { return config.BackendBadger }

// Close implements Backend.
func (b *Badger) Close() error { return b.kv.Close() }

// Load implements Backend. A missing key is an empty collection; a value that
// is not a JSON array is treated the same way.
func (b *Badger) Load(ctx context.Context) ([]lead.Raw, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := b.get()
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", b.key, err)
	}

	var raws []lead.Raw
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, nil
	}
	return raws, nil
}

// Save implements Backend.
func (b *Badger) Save(ctx context.Context, leads []lead.Lead) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if leads == nil {
		leads = []lead.Lead{}
	}
	encoded, err := json.Marshal(leads)
	if err != nil {
		return fmt.Errorf("failed to marshal leads: %w", err)
	}
	return b.SetRaw(encoded)
}

// SetRaw writes value verbatim under the collection key.
func (b *Badger) SetRaw(value []byte) error {
	return b.kv.Update(func(txn *badger.Txn) error {
		return txn.Set(b.key, value)
	})
}

func (b *Badger) get() ([]byte, error) {
	var data []byte
	err := b.kv.View(func(txn *badger.Txn) error {
		item, err := txn.Get(b.key)
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	return data, err
}
