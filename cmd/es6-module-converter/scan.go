package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	"gopkg.in/yaml.v3"

	"github.com/DeusData/es6-module-converter/internal/lang"
	"github.com/DeusData/es6-module-converter/internal/parser"
	"github.com/DeusData/es6-module-converter/internal/scan"
)

func newScanCmd() *cobra.Command {
	var ast bool
	cmd := &cobra.Command{
		Use:   "scan <file.js>...",
		Short: "Print the declarations found in source files",
		Long: `Print the provides, requires, usage classification and warnings the
scanner extracts from each file, as YAML. With --ast the syntax tree is
printed instead, for debugging the scanner.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			for _, path := range args {
				source, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				if ast {
					if err := printAST(stdout, path, source); err != nil {
						return err
					}
					continue
				}
				rec, err := scan.File(filepath.ToSlash(path), source)
				if err != nil {
					return fmt.Errorf("scan %s: %w", path, err)
				}
				enc := yaml.NewEncoder(stdout)
				enc.SetIndent(2)
				if err := enc.Encode(rec); err != nil {
					return err
				}
				if err := enc.Close(); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&ast, "ast", false, "print the syntax tree instead of declarations")
	return cmd
}

func printAST(w io.Writer, path string, source []byte) error {
	tree, err := parser.Parse(lang.JavaScript, source)
	if err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	defer tree.Close()
	fmt.Fprintln(w, titleStyle.Render("=== "+path+" ==="))
	writeNode(w, tree.RootNode(), source, 0)
	return nil
}

func writeNode(w io.Writer, node *tree_sitter.Node, source []byte, indent int) {
	if node == nil {
		return
	}
	text := parser.NodeText(node, source)
	if len(text) > 60 {
		text = text[:60] + "..."
	}
	fmt.Fprintf(w, "%s%s L%d %q\n", strings.Repeat("  ", indent), node.Kind(), parser.Line(node), text)
	for i := uint(0); i < node.ChildCount(); i++ {
		writeNode(w, node.Child(i), source, indent+1)
	}
}
