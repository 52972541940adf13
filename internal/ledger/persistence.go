package ledger

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ledgerFile is the on-disk JSON shape from spec.md §6:
//
//	{ "createdAt": "<ISO-8601>", "entries": [...] }
type ledgerFile struct {
	CreatedAt string  `json:"createdAt"`
	Entries   []Entry `json:"entries"`
}

// SaveToFile writes the ledger as UTF-8 JSON, pretty-printed with 2-space
// indent (spec.md §6), atomically via a temp-file-then-rename, mirroring
// the teacher's keystore write pattern (crypto/keystore.go).
func (l *Ledger) SaveToFile(path string, now time.Time) error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	file := ledgerFile{
		CreatedAt: now.UTC().Format(time.RFC3339),
		Entries:   l.entries,
	}
	return writeLedgerFile(path, file)
}

// saveLocked persists under an already-held write lock (used by
// AddEntry's autosave path).
func (l *Ledger) saveLocked(now time.Time) error {
	file := ledgerFile{
		CreatedAt: now.UTC().Format(time.RFC3339),
		Entries:   l.entries,
	}
	return writeLedgerFile(l.path, file)
}

func writeLedgerFile(path string, file ledgerFile) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("ledger: create dir %s: %w", dir, err)
	}
	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("ledger: encode: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "ledger-store-")
	if err != nil {
		return fmt.Errorf("ledger: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("ledger: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("ledger: close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("ledger: rename temp file: %w", err)
	}
	return os.Chmod(path, 0o600)
}

// LoadFromFile parses a ledger file and returns a ledger whose entries are
// frozen in the loaded order; loaded ledgers verify identically to their
// in-memory origin (spec.md §4.7, §8 round-trip property).
func LoadFromFile(path string, opts ...Option) (*Ledger, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ledger: read %s: %w", path, err)
	}
	var file ledgerFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("ledger: corrupt ledger file %s: %w", path, err)
	}
	l := New(opts...)
	l.entries = file.Entries
	return l, nil
}
