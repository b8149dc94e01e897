package discover

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/DeusData/es6-module-converter/internal/lang"
)

// IgnoreFileName is the per-corpus ignore file, one glob per line.
const IgnoreFileName = ".es6ignore"

// IGNORE_PATTERNS are directory names to skip during discovery.
var IGNORE_PATTERNS = map[string]bool{
	".cache": true, ".git": true, ".hg": true, ".idea": true,
	".npm": true, ".nyc_output": true, ".pnpm-store": true,
	".svn": true, ".tmp": true, ".vscode": true, ".yarn": true,
	"bower_components": true, "build": true, "coverage": true,
	"dist": true, "node_modules": true, "out": true, "tmp": true,
}

// IGNORE_SUFFIXES are file suffixes to skip.
var IGNORE_SUFFIXES = []string{".min.js", ".tmp", "~"}

// FileInfo represents a discovered source file.
type FileInfo struct {
	Path     string        // absolute path
	RelPath  string        // slash-separated, relative to the corpus root
	Language lang.Language // detected language
}

// Options configures file discovery.
type Options struct {
	IgnoreFile string   // path to an ignore file (default <root>/.es6ignore)
	IgnoreDirs []string // extra directory globs, e.g. from .es6config
}

// shouldSkipDir returns true if the directory should be skipped during discovery.
func shouldSkipDir(name, rel string, extraIgnore []string) bool {
	if IGNORE_PATTERNS[name] {
		return true
	}
	for _, pattern := range extraIgnore {
		if matched, _ := filepath.Match(pattern, name); matched {
			return true
		}
		if matched, _ := filepath.Match(pattern, rel); matched {
			return true
		}
	}
	return false
}

func shouldSkipFile(name, rel string, extraIgnore []string) bool {
	for _, suffix := range IGNORE_SUFFIXES {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	for _, pattern := range extraIgnore {
		if matched, _ := filepath.Match(pattern, rel); matched {
			return true
		}
	}
	return false
}

// Discover walks a corpus and returns every JavaScript source file, sorted by
// relative path.
func Discover(ctx context.Context, repoPath string, opts *Options) ([]FileInfo, error) {
	repoPath, err := filepath.Abs(repoPath)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var extraIgnore []string
	if opts != nil && opts.IgnoreFile != "" {
		extraIgnore, _ = loadIgnoreFile(opts.IgnoreFile)
	} else {
		extraIgnore, _ = loadIgnoreFile(filepath.Join(repoPath, IgnoreFileName))
	}
	if opts != nil {
		extraIgnore = append(extraIgnore, opts.IgnoreDirs...)
	}

	var files []FileInfo

	err = filepath.Walk(repoPath, func(path string, info os.FileInfo, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		if walkErr != nil {
			return filepath.SkipDir
		}

		rel, _ := filepath.Rel(repoPath, path)
		rel = filepath.ToSlash(rel)

		if info.IsDir() {
			if rel != "." && shouldSkipDir(info.Name(), rel, extraIgnore) {
				return filepath.SkipDir
			}
			return nil
		}

		if shouldSkipFile(info.Name(), rel, extraIgnore) {
			return nil
		}

		l, ok := lang.LanguageForExtension(filepath.Ext(path))
		if !ok {
			return nil
		}
		files = append(files, FileInfo{
			Path:     path,
			RelPath:  rel,
			Language: l,
		})
		return nil
	})

	sort.Slice(files, func(i, j int) bool { return files[i].RelPath < files[j].RelPath })
	return files, err
}

func loadIgnoreFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var patterns []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" && !strings.HasPrefix(line, "#") {
			patterns = append(patterns, strings.TrimSuffix(line, "/"))
		}
	}
	return patterns, scanner.Err()
}
