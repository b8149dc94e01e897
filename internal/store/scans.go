package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/DeusData/es6-module-converter/internal/scan"
)

// ScanEntry is a cached scan record with the content hash it was computed
// from.
type ScanEntry struct {
	RelPath string
	Hash    string
	Record  *scan.Record
}

// GetScans returns every cached record of a corpus keyed by relative path.
// Rows whose record no longer decodes are skipped, so the file is rescanned.
func (s *Store) GetScans(ctx context.Context, corpus string) (map[string]ScanEntry, error) {
	rows, err := s.q.QueryContext(ctx, "SELECT rel_path, hash, record FROM scan_records WHERE corpus=?", corpus)
	if err != nil {
		return nil, fmt.Errorf("get scans: %w", err)
	}
	defer rows.Close()
	result := make(map[string]ScanEntry)
	for rows.Next() {
		var e ScanEntry
		var data string
		if err := rows.Scan(&e.RelPath, &e.Hash, &data); err != nil {
			return nil, err
		}
		var rec scan.Record
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			continue
		}
		e.Record = &rec
		result[e.RelPath] = e
	}
	return result, rows.Err()
}

// UpsertScanBatch stores records for a corpus. The corpus row must exist.
func (s *Store) UpsertScanBatch(ctx context.Context, corpus string, entries []ScanEntry) error {
	for _, e := range entries {
		data, err := json.Marshal(e.Record)
		if err != nil {
			return fmt.Errorf("encode %s: %w", e.RelPath, err)
		}
		_, err = s.q.ExecContext(ctx, `
			INSERT INTO scan_records (corpus, rel_path, hash, record) VALUES (?, ?, ?, ?)
			ON CONFLICT(corpus, rel_path) DO UPDATE SET hash=excluded.hash, record=excluded.record`,
			corpus, e.RelPath, e.Hash, string(data))
		if err != nil {
			return fmt.Errorf("upsert %s: %w", e.RelPath, err)
		}
	}
	return nil
}

// DeleteStaleScans removes cached records whose path is not in keep and
// returns how many were removed.
func (s *Store) DeleteStaleScans(ctx context.Context, corpus string, keep []string) (int, error) {
	cached, err := s.GetScans(ctx, corpus)
	if err != nil {
		return 0, err
	}
	live := make(map[string]bool, len(keep))
	for _, k := range keep {
		live[k] = true
	}
	removed := 0
	for rel := range cached {
		if live[rel] {
			continue
		}
		if _, err := s.q.ExecContext(ctx, "DELETE FROM scan_records WHERE corpus=? AND rel_path=?", corpus, rel); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}
