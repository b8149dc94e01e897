package watcher

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/DeusData/es6-module-converter/internal/config"
	"github.com/DeusData/es6-module-converter/internal/discover"
	"github.com/DeusData/es6-module-converter/internal/store"
)

const (
	baseInterval = 1 * time.Second
	maxInterval  = 60 * time.Second
)

type fileSnapshot struct {
	modTime time.Time
	size    int64
}

type corpusState struct {
	snapshot map[string]fileSnapshot
	interval time.Duration
	nextPoll time.Time
}

// Target is one corpus to watch.
type Target struct {
	Name     string
	RootPath string
}

// RunFunc is the callback signature for re-running the pipeline on a corpus.
type RunFunc func(ctx context.Context, corpusName, rootPath string) error

// Watcher polls corpora for file changes and re-runs the pipeline.
type Watcher struct {
	targets func(ctx context.Context) ([]Target, error)
	runFn   RunFunc
	corpora map[string]*corpusState
	ctx     context.Context
}

// New creates a Watcher over every corpus in the scan cache. runFn is
// called when file changes are detected.
func New(s *store.Store, runFn RunFunc) *Watcher {
	return &Watcher{
		targets: func(ctx context.Context) ([]Target, error) {
			corpora, err := s.ListCorpora(ctx)
			if err != nil {
				return nil, err
			}
			out := make([]Target, len(corpora))
			for i, c := range corpora {
				out[i] = Target{Name: c.Name, RootPath: c.RootPath}
			}
			return out, nil
		},
		runFn:   runFn,
		corpora: make(map[string]*corpusState),
		ctx:     context.Background(),
	}
}

// NewForRoot creates a Watcher over a single corpus root.
func NewForRoot(t Target, runFn RunFunc) *Watcher {
	return &Watcher{
		targets: func(context.Context) ([]Target, error) { return []Target{t}, nil },
		runFn:   runFn,
		corpora: make(map[string]*corpusState),
		ctx:     context.Background(),
	}
}

// Run blocks until ctx is cancelled. Ticks at baseInterval, polling each
// corpus only when its adaptive interval has elapsed.
func (w *Watcher) Run(ctx context.Context) {
	w.ctx = ctx
	ticker := time.NewTicker(baseInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.pollAll()
		}
	}
}

// pollAll lists the watched corpora and polls each that is due.
func (w *Watcher) pollAll() {
	targets, err := w.targets(w.ctx)
	if err != nil {
		slog.Warn("watcher.list_corpora", "err", err)
		return
	}

	now := time.Now()
	for _, t := range targets {
		state, exists := w.corpora[t.Name]
		if !exists {
			state = &corpusState{}
			w.corpora[t.Name] = state
		}
		if exists && now.Before(state.nextPoll) {
			continue
		}
		w.pollCorpus(t, state)
	}
}

// pollCorpus captures a snapshot of the file tree and compares it with the
// previous one. The first poll only records a baseline.
func (w *Watcher) pollCorpus(t Target, state *corpusState) {
	if _, err := os.Stat(t.RootPath); err != nil {
		slog.Warn("watcher.root_gone", "corpus", t.Name, "path", t.RootPath)
		state.nextPoll = time.Now().Add(maxInterval)
		return
	}

	snap, err := captureSnapshot(w.ctx, t.RootPath)
	if err != nil {
		slog.Warn("watcher.snapshot", "corpus", t.Name, "err", err)
		state.nextPoll = time.Now().Add(state.interval)
		return
	}

	interval := pollInterval(len(snap))

	if state.snapshot == nil {
		slog.Debug("watcher.baseline", "corpus", t.Name, "files", len(snap))
		state.snapshot = snap
		state.interval = interval
		state.nextPoll = time.Now().Add(interval)
		return
	}

	if snapshotsEqual(state.snapshot, snap) {
		state.interval = interval
		state.nextPoll = time.Now().Add(interval)
		return
	}

	slog.Info("watcher.changed", "corpus", t.Name, "files", len(snap))
	if err := w.runFn(w.ctx, t.Name, t.RootPath); err != nil {
		slog.Warn("watcher.run", "corpus", t.Name, "err", err)
		// keep the old snapshot so the next poll retries
		state.nextPoll = time.Now().Add(interval)
		return
	}

	state.snapshot = snap
	state.interval = interval
	state.nextPoll = time.Now().Add(interval)
}

// captureSnapshot records mtime and size of every source file under
// rootPath, using the same discovery rules as the pipeline.
func captureSnapshot(ctx context.Context, rootPath string) (map[string]fileSnapshot, error) {
	cfg := config.LoadConfig(rootPath)
	files, err := discover.Discover(ctx, rootPath, &discover.Options{IgnoreDirs: cfg.IgnoreDirs})
	if err != nil {
		return nil, err
	}

	snap := make(map[string]fileSnapshot, len(files))
	for _, f := range files {
		info, statErr := os.Stat(f.Path)
		if statErr != nil {
			continue
		}
		snap[f.RelPath] = fileSnapshot{
			modTime: info.ModTime(),
			size:    info.Size(),
		}
	}
	return snap, nil
}

// snapshotsEqual returns true if two snapshots have identical files with same mtime+size.
func snapshotsEqual(a, b map[string]fileSnapshot) bool {
	if len(a) != len(b) {
		return false
	}
	for path, aSnap := range a {
		bSnap, ok := b[path]
		if !ok {
			return false
		}
		if !aSnap.modTime.Equal(bSnap.modTime) || aSnap.size != bSnap.size {
			return false
		}
	}
	return true
}

// pollInterval computes the adaptive interval from file count.
// 1s base + 1s per 500 files, capped at 60s.
func pollInterval(fileCount int) time.Duration {
	ms := 1000 + (fileCount/500)*1000
	if ms > 60000 {
		ms = 60000
	}
	return time.Duration(ms) * time.Millisecond
}
