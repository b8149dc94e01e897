package scan

import "github.com/DeusData/es6-module-converter/internal/diag"

// Kind is the load-order strength of a dependency declaration.
type Kind int

const (
	// Hard: the target must be fully initialized before the file executes.
	Hard Kind = iota
	// Forward: only a reference is needed; no load order is imposed.
	Forward
)

func (k Kind) String() string {
	if k == Forward {
		return "forward"
	}
	return "hard"
}

// MarshalText encodes the kind for JSON and YAML output.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes a kind written by MarshalText.
func (k *Kind) UnmarshalText(b []byte) error {
	if string(b) == "forward" {
		*k = Forward
	} else {
		*k = Hard
	}
	return nil
}

// Usage is the strongest way a file uses a required namespace. Values are
// ordered: a higher usage subsumes a lower one.
type Usage int

const (
	// UsageNone: declared but never referenced.
	UsageNone Usage = iota
	// UsageType: referenced only from JSDoc type annotations.
	UsageType
	// UsageDeferred: referenced only inside function bodies that run later.
	UsageDeferred
	// UsageEager: referenced by code that runs while the file loads.
	UsageEager
)

var usageNames = [...]string{"none", "type", "deferred", "eager"}

func (u Usage) String() string {
	if u < 0 || int(u) >= len(usageNames) {
		return "unknown"
	}
	return usageNames[u]
}

// MarshalText encodes the usage for JSON and YAML output.
func (u Usage) MarshalText() ([]byte, error) {
	return []byte(u.String()), nil
}

// UnmarshalText decodes a usage written by MarshalText.
func (u *Usage) UnmarshalText(b []byte) error {
	for i, name := range usageNames {
		if name == string(b) {
			*u = Usage(i)
			return nil
		}
	}
	*u = UsageEager
	return nil
}

// Demotable reports whether an edge with this usage can become a forward
// reference without the file touching the target during load.
func (u Usage) Demotable() bool {
	return u < UsageEager
}

// Dependency is one declaration of a required namespace.
type Dependency struct {
	Namespace string `json:"namespace" yaml:"namespace"`
	Kind      Kind   `json:"kind" yaml:"kind"`
	Usage     Usage  `json:"usage" yaml:"usage"`
	Line      int    `json:"line" yaml:"line"`
}

// Record is the scan result for one file.
type Record struct {
	Path     string         `json:"path" yaml:"path"`
	Provides []string       `json:"provides" yaml:"provides"`
	Deps     []Dependency   `json:"deps" yaml:"deps"`
	Module   bool           `json:"module" yaml:"module"` // declared via goog.module
	Warnings []diag.Warning `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}
