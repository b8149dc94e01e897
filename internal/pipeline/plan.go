package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/DeusData/es6-module-converter/internal/cycles"
	"github.com/DeusData/es6-module-converter/internal/diag"
	"github.com/DeusData/es6-module-converter/internal/fqn"
	"github.com/DeusData/es6-module-converter/internal/graph"
	"github.com/DeusData/es6-module-converter/internal/scan"
)

// Import kinds in a plan.
const (
	ImportStatic   = "static"   // emitted as a static import
	ImportDeferred = "deferred" // resolved lazily at use time
)

// Plan is what the textual rewriter consumes: every selected file in load
// order with its final declarations.
type Plan struct {
	Corpus    string            `json:"corpus" yaml:"corpus"`
	Files     []PlanFile        `json:"files" yaml:"files"`
	Demotions []cycles.Demotion `json:"demotions" yaml:"demotions"`
	Warnings  []diag.Warning    `json:"warnings" yaml:"warnings"`
}

// PlanFile is one selected file.
type PlanFile struct {
	Path     string   `json:"path" yaml:"path"`
	Provides []string `json:"provides" yaml:"provides"`
	Module   bool     `json:"module,omitempty" yaml:"module,omitempty"`
	Imports  []Import `json:"imports" yaml:"imports"`
}

// Import is one declaration after cycle breaking.
type Import struct {
	Namespace string     `json:"namespace" yaml:"namespace"`
	Provider  string     `json:"provider" yaml:"provider"`
	Kind      string     `json:"kind" yaml:"kind"`
	Usage     scan.Usage `json:"usage" yaml:"usage"`
	Specifier string     `json:"specifier" yaml:"specifier"`
	Binding   string     `json:"binding" yaml:"binding"`
	Demoted   bool       `json:"demoted,omitempty" yaml:"demoted,omitempty"`
}

// BuildPlan assembles the plan for files in the given order. Every
// declaration must resolve (validation has passed).
func BuildPlan(corpus string, g *graph.Graph, order []string, demotions []cycles.Demotion, warnings []diag.Warning) *Plan {
	demoted := make(map[string]bool)
	for _, d := range demotions {
		for _, ns := range d.Namespaces {
			demoted[d.From+"\x00"+ns] = true
		}
	}

	plan := &Plan{
		Corpus:    corpus,
		Files:     make([]PlanFile, 0, len(order)),
		Demotions: append([]cycles.Demotion{}, demotions...),
		Warnings:  append([]diag.Warning{}, warnings...),
	}
	for _, path := range order {
		f := g.File(path)
		if f == nil {
			continue
		}
		pf := PlanFile{
			Path:     path,
			Provides: append([]string{}, f.Provides...),
			Module:   f.Module,
			Imports:  []Import{},
		}
		namer := fqn.NewNamer(globalRoots(f.Provides)...)
		for _, d := range f.Deps {
			provider, err := g.Resolve(d.Namespace)
			if err != nil {
				continue
			}
			kind := ImportStatic
			if d.Kind == scan.Forward {
				kind = ImportDeferred
			}
			pf.Imports = append(pf.Imports, Import{
				Namespace: d.Namespace,
				Provider:  provider,
				Kind:      kind,
				Usage:     d.Usage,
				Specifier: fqn.ImportSpecifier(path, provider),
				Binding:   namer.Next(d.Namespace),
				Demoted:   demoted[path+"\x00"+d.Namespace],
			})
		}
		plan.Files = append(plan.Files, pf)
	}
	return plan
}

// globalRoots returns the first segment of each provided namespace; those
// names stay global in the file and cannot be used as import bindings.
func globalRoots(provides []string) []string {
	var out []string
	for _, ns := range provides {
		root, _, _ := strings.Cut(ns, ".")
		out = append(out, root)
	}
	return out
}

// WriteJSON writes the plan as indented JSON.
func (p *Plan) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(p)
}

// WriteYAML writes the plan as YAML.
func (p *Plan) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(p); err != nil {
		return err
	}
	return enc.Close()
}

// Write writes the plan in the named format ("json" or "yaml").
func (p *Plan) Write(w io.Writer, format string) error {
	switch format {
	case "", "json":
		return p.WriteJSON(w)
	case "yaml", "yml":
		return p.WriteYAML(w)
	default:
		return fmt.Errorf("unknown plan format %q", format)
	}
}
