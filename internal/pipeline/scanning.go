package pipeline

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/zeebo/xxh3"
	"golang.org/x/sync/errgroup"

	"github.com/DeusData/es6-module-converter/internal/diag"
	"github.com/DeusData/es6-module-converter/internal/discover"
	"github.com/DeusData/es6-module-converter/internal/scan"
	"github.com/DeusData/es6-module-converter/internal/store"
)

// scanResult is the per-file output of the parallel stage.
type scanResult struct {
	File   discover.FileInfo
	Hash   string
	Record *scan.Record
	Cached bool
	Err    error
}

// scanSet is the merged output of the scan pass, in discovery order.
type scanSet struct {
	records  []*scan.Record
	hashes   map[string]string
	fresh    int
	cached   int
	warnings []diag.Warning
	// pending holds records not yet in the cache.
	pending []store.ScanEntry
}

// fingerprint hashes every (path, content hash) pair, so two runs over the
// same corpus content yield the same value.
func (s *scanSet) fingerprint() string {
	paths := make([]string, 0, len(s.hashes))
	for p := range s.hashes {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	var b strings.Builder
	for _, p := range paths {
		b.WriteString(p)
		b.WriteByte(0)
		b.WriteString(s.hashes[p])
		b.WriteByte('\n')
	}
	return contentHash([]byte(b.String()))
}

func contentHash(data []byte) string {
	sum := xxh3.Hash128(data).Bytes()
	return hex.EncodeToString(sum[:])
}

// scanFiles reads, hashes and scans every file on a bounded worker pool,
// reusing cached records whose hash is unchanged. Results are merged
// sequentially in discovery order. Read and parse failures are collected
// and returned together.
func (p *Pipeline) scanFiles(files []discover.FileInfo) (*scanSet, error) {
	cache := p.loadCache()

	results := make([]*scanResult, len(files))
	numWorkers := p.opts.Workers
	if numWorkers > len(files) {
		numWorkers = len(files)
	}
	if numWorkers < 1 {
		numWorkers = 1
	}

	g, gctx := errgroup.WithContext(p.ctx)
	g.SetLimit(numWorkers)
	for i, f := range files {
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			results[i] = scanOne(f, cache)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	set := &scanSet{hashes: make(map[string]string, len(files))}
	report := &diag.Report{}
	for _, r := range results {
		if r.Err != nil {
			report.Add(fmt.Errorf("scan %s: %w", r.File.RelPath, r.Err))
			continue
		}
		set.records = append(set.records, r.Record)
		set.hashes[r.File.RelPath] = r.Hash
		set.warnings = append(set.warnings, r.Record.Warnings...)
		if r.Cached {
			set.cached++
			continue
		}
		set.fresh++
		set.pending = append(set.pending, store.ScanEntry{RelPath: r.File.RelPath, Hash: r.Hash, Record: r.Record})
	}
	if err := report.Err(); err != nil {
		return nil, err
	}
	return set, nil
}

func scanOne(f discover.FileInfo, cache map[string]store.ScanEntry) *scanResult {
	res := &scanResult{File: f}
	source, err := os.ReadFile(f.Path)
	if err != nil {
		res.Err = err
		return res
	}
	res.Hash = contentHash(source)
	if e, ok := cache[f.RelPath]; ok && e.Hash == res.Hash && e.Record != nil && e.Record.Path == f.RelPath {
		res.Record = e.Record
		res.Cached = true
		return res
	}
	res.Record, res.Err = scan.File(f.RelPath, source)
	return res
}

// loadCache returns the cached records of this corpus, or nil when the cache
// is disabled or unreadable.
func (p *Pipeline) loadCache() map[string]store.ScanEntry {
	if p.Store == nil {
		return nil
	}
	cache, err := p.Store.GetScans(p.ctx, p.CorpusName)
	if err != nil {
		slog.Warn("cache.read.err", "err", err)
		return nil
	}
	return cache
}

// saveScans writes new records and drops records of deleted files, in one
// transaction. Only called after a successful run.
func (p *Pipeline) saveScans(set *scanSet, files []discover.FileInfo) error {
	if p.Store == nil {
		return nil
	}
	live := make([]string, len(files))
	for i, f := range files {
		live[i] = f.RelPath
	}
	return p.Store.WithTransaction(p.ctx, func(tx *store.Store) error {
		if err := tx.UpsertCorpus(p.ctx, p.CorpusName, p.RepoPath, set.fingerprint()); err != nil {
			return fmt.Errorf("upsert corpus: %w", err)
		}
		if err := tx.UpsertScanBatch(p.ctx, p.CorpusName, set.pending); err != nil {
			return err
		}
		removed, err := tx.DeleteStaleScans(p.ctx, p.CorpusName, live)
		if err != nil {
			return err
		}
		slog.Info("cache.write", "records", len(set.pending), "removed", removed)
		return nil
	})
}
