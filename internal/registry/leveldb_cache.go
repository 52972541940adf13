package registry

import (
	"encoding/binary"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/syndtr/goleveldb/leveldb"
)

// LevelDBReplayCache is a goleveldb-backed ReplayCache (C13), grounded
// directly in the teacher's LevelDBNoncePersistence
// (gateway/auth/nonce_leveldb.go). Unlike the nonce store it fronts, each
// accepted action is a single key overwrite rather than a paired
// index+observed write, so no leveldb.Batch is needed here.
type LevelDBReplayCache struct {
	db *leveldb.DB
}

// NewLevelDBReplayCache opens (or creates) a LevelDB database at path.
func NewLevelDBReplayCache(path string) (*LevelDBReplayCache, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, fmt.Errorf("registry: leveldb replay cache path required")
	}
	abs, err := filepath.Abs(trimmed)
	if err != nil {
		return nil, fmt.Errorf("registry: resolve leveldb path: %w", err)
	}
	db, err := leveldb.OpenFile(abs, nil)
	if err != nil {
		return nil, fmt.Errorf("registry: open leveldb replay cache: %w", err)
	}
	return &LevelDBReplayCache{db: db}, nil
}

// Get returns the last accepted action timestamp (epoch milliseconds) for
// id, if one has been recorded.
func (c *LevelDBReplayCache) Get(id string) (int64, bool, error) {
	if c == nil || c.db == nil {
		return 0, false, fmt.Errorf("registry: leveldb replay cache not configured")
	}
	val, err := c.db.Get([]byte(id), nil)
	switch {
	case errors.Is(err, leveldb.ErrNotFound):
		return 0, false, nil
	case err != nil:
		return 0, false, fmt.Errorf("registry: load replay timestamp: %w", err)
	}
	return int64(binary.BigEndian.Uint64(val)), true, nil
}

// Put records epochMillis as the last accepted action timestamp for id.
func (c *LevelDBReplayCache) Put(id string, epochMillis int64) error {
	if c == nil || c.db == nil {
		return fmt.Errorf("registry: leveldb replay cache not configured")
	}
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(epochMillis))
	if err := c.db.Put([]byte(id), buf, nil); err != nil {
		return fmt.Errorf("registry: record replay timestamp: %w", err)
	}
	return nil
}

// Close releases the underlying LevelDB resources.
func (c *LevelDBReplayCache) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}
