package store

import (
	"context"
	"database/sql"
	"errors"
)

// Corpus represents a scanned source tree.
type Corpus struct {
	Name        string
	RootPath    string
	ScannedAt   string
	Fingerprint string
}

// UpsertCorpus creates or updates a corpus record.
func (s *Store) UpsertCorpus(ctx context.Context, name, rootPath, fingerprint string) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO corpora (name, root_path, scanned_at, fingerprint) VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET root_path=excluded.root_path,
			scanned_at=excluded.scanned_at, fingerprint=excluded.fingerprint`,
		name, rootPath, Now(), fingerprint)
	return err
}

// GetCorpus returns a corpus by name, or nil if it was never stored.
func (s *Store) GetCorpus(ctx context.Context, name string) (*Corpus, error) {
	var c Corpus
	err := s.q.QueryRowContext(ctx,
		"SELECT name, root_path, scanned_at, fingerprint FROM corpora WHERE name=?", name).
		Scan(&c.Name, &c.RootPath, &c.ScannedAt, &c.Fingerprint)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListCorpora returns all stored corpora, by name.
func (s *Store) ListCorpora(ctx context.Context) ([]*Corpus, error) {
	rows, err := s.q.QueryContext(ctx, "SELECT name, root_path, scanned_at, fingerprint FROM corpora ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []*Corpus
	for rows.Next() {
		var c Corpus
		if err := rows.Scan(&c.Name, &c.RootPath, &c.ScannedAt, &c.Fingerprint); err != nil {
			return nil, err
		}
		result = append(result, &c)
	}
	return result, rows.Err()
}

// DeleteCorpus deletes a corpus and its cached records (CASCADE).
func (s *Store) DeleteCorpus(ctx context.Context, name string) error {
	_, err := s.q.ExecContext(ctx, "DELETE FROM corpora WHERE name=?", name)
	return err
}
