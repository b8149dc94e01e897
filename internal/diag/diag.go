// Package diag holds the error taxonomy shared by the graph passes: typed
// consistency and cycle errors, a batch Report that carries all of them at
// once, and parse-level warnings.
package diag

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// AmbiguousProviderError reports two files providing the same namespace.
type AmbiguousProviderError struct {
	Namespace string
	First     string
	Second    string
}

func (e *AmbiguousProviderError) Error() string {
	return fmt.Sprintf("ambiguous provider for %q: %s and %s", e.Namespace, e.First, e.Second)
}

// UnmatchedDependencyError reports a required namespace with no provider.
type UnmatchedDependencyError struct {
	Namespace  string
	RequiredBy []string // sorted file paths
}

func (e *UnmatchedDependencyError) Error() string {
	return fmt.Sprintf("unmatched dependency %q required by %s", e.Namespace, strings.Join(e.RequiredBy, ", "))
}

// UnknownNamespaceError is returned by graph lookups for a namespace no file provides.
type UnknownNamespaceError struct {
	Namespace string
}

func (e *UnknownNamespaceError) Error() string {
	return fmt.Sprintf("unknown namespace %q", e.Namespace)
}

// UnbreakableCycleError reports a cycle of hard edges none of which can be
// demoted without introducing a use-before-initialization. Path starts and
// ends with the same file.
type UnbreakableCycleError struct {
	Path []string
}

func (e *UnbreakableCycleError) Error() string {
	return "unbreakable cycle: " + strings.Join(e.Path, " -> ")
}

// ExcludedDependencyError reports a selected file whose hard dependency is
// excluded by policy.
type ExcludedDependencyError struct {
	File     string
	Excluded string
}

func (e *ExcludedDependencyError) Error() string {
	if e.File == "" {
		return fmt.Sprintf("root %s is excluded", e.Excluded)
	}
	return fmt.Sprintf("%s requires excluded file %s", e.File, e.Excluded)
}

// EmptyCorpusError reports a corpus that cannot be meaningful input.
type EmptyCorpusError struct {
	Reason string
}

func (e *EmptyCorpusError) Error() string {
	return "empty corpus: " + e.Reason
}

// Report is a batch of errors collected over a full sweep. A nil or empty
// Report means success.
type Report struct {
	Errors []error
}

// Add appends err to the report. Nil errors are ignored.
func (r *Report) Add(err error) {
	if err != nil {
		r.Errors = append(r.Errors, err)
	}
}

// Len returns the number of collected errors.
func (r *Report) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Errors)
}

// Err returns the report as an error, or nil if nothing was collected.
func (r *Report) Err() error {
	if r.Len() == 0 {
		return nil
	}
	r.Sort()
	return r
}

// Sort orders the errors by message for stable output.
func (r *Report) Sort() {
	sort.SliceStable(r.Errors, func(i, j int) bool {
		return r.Errors[i].Error() < r.Errors[j].Error()
	})
}

func (r *Report) Error() string {
	switch r.Len() {
	case 0:
		return "no errors"
	case 1:
		return r.Errors[0].Error()
	}
	lines := make([]string, 0, len(r.Errors)+1)
	lines = append(lines, fmt.Sprintf("%d errors:", len(r.Errors)))
	for _, err := range r.Errors {
		lines = append(lines, "  "+err.Error())
	}
	return strings.Join(lines, "\n")
}

// Unwrap exposes every collected error to errors.Is and errors.As.
func (r *Report) Unwrap() []error {
	return r.Errors
}

// Flatten returns the individual errors inside err, expanding nested
// reports. A plain error yields a one-element slice.
func Flatten(err error) []error {
	if err == nil {
		return nil
	}
	var r *Report
	if !errors.As(err, &r) {
		return []error{err}
	}
	var out []error
	for _, e := range r.Errors {
		out = append(out, Flatten(e)...)
	}
	return out
}

// Merge combines several errors into one report, flattening nested reports.
// Returns nil if all inputs are nil.
func Merge(errs ...error) error {
	r := &Report{}
	for _, err := range errs {
		for _, e := range Flatten(err) {
			r.Add(e)
		}
	}
	return r.Err()
}
