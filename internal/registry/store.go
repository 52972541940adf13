package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/agentrust/substrate/internal/identity"
)

// storeFile is the on-disk JSON shape from spec.md §6:
//
//	{ "identities": {"<id>": {...}}, "meta": {"schemaVersion": n},
//	  "lastActionTimestamps": {"<id>": epoch_ms} }
type storeFile struct {
	Identities           map[string]identity.Identity `json:"identities"`
	Meta                 storeMeta                     `json:"meta"`
	LastActionTimestamps map[string]int64              `json:"lastActionTimestamps"`
}

type storeMeta struct {
	SchemaVersion int `json:"schemaVersion"`
}

// loadStore reads and decodes the store file at path. A missing file
// returns an empty, fresh store rather than an error, matching the
// teacher's create-on-first-use posture for persistent stores.
func loadStore(path string) (*storeFile, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &storeFile{
			Identities:           map[string]identity.Identity{},
			Meta:                 storeMeta{SchemaVersion: identity.CurrentSchemaVersion},
			LastActionTimestamps: map[string]int64{},
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("registry: read store %s: %w", path, err)
	}
	var store storeFile
	if err := json.Unmarshal(data, &store); err != nil {
		return nil, fmt.Errorf("registry: corrupt store %s: %w", path, err)
	}
	if store.Identities == nil {
		store.Identities = map[string]identity.Identity{}
	}
	if store.LastActionTimestamps == nil {
		store.LastActionTimestamps = map[string]int64{}
	}
	return &store, nil
}

// saveStore writes store to path atomically: encode to a temp file in the
// same directory, then rename over the destination, following the
// teacher's keystore temp-dir-then-rename pattern (crypto/keystore.go) so a
// crash mid-write never leaves a half-written store file on disk.
func saveStore(path string, store *storeFile) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("registry: create store dir %s: %w", dir, err)
	}
	data, err := json.MarshalIndent(store, "", "  ")
	if err != nil {
		return fmt.Errorf("registry: encode store: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "registry-store-")
	if err != nil {
		return fmt.Errorf("registry: create temp store file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("registry: write temp store file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("registry: close temp store file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("registry: rename temp store file: %w", err)
	}
	return os.Chmod(path, 0o600)
}
