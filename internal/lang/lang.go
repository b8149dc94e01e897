package lang

// Language represents a supported source language.
type Language string

const (
	JavaScript Language = "javascript"
)

// DeclKind classifies a namespace declaration call.
type DeclKind int

const (
	// DeclProvide declares a namespace defined by the file.
	DeclProvide DeclKind = iota
	// DeclRequire is a hard dependency: the target must be loaded first.
	DeclRequire
	// DeclForward is a weak dependency usable for type references only.
	DeclForward
)

func (k DeclKind) String() string {
	switch k {
	case DeclProvide:
		return "provide"
	case DeclRequire:
		return "require"
	case DeclForward:
		return "forward"
	default:
		return "unknown"
	}
}

// LanguageSpec defines the tree-sitter node types and declaration vocabulary
// for a language.
type LanguageSpec struct {
	Language       Language
	FileExtensions []string

	// DeclarationCallees maps a callee expression (e.g. "goog.require") to
	// the declaration kind it introduces.
	DeclarationCallees map[string]DeclKind

	// FunctionNodeTypes lists node kinds whose bodies run only when invoked.
	FunctionNodeTypes []string
	// CallNodeTypes lists call expression node kinds.
	CallNodeTypes []string
	// CommentNodeTypes lists comment node kinds (scanned for type annotations).
	CommentNodeTypes []string
	// DeclaratorNodeTypes lists variable declarator node kinds.
	DeclaratorNodeTypes []string
	// DeferringCallees are calls that keep their function argument to run
	// later (e.g. "setTimeout"). Any other call is assumed to run it at once.
	// Bare names match a method on any receiver.
	DeferringCallees []string

	// TestSuffixes are base-name suffixes that mark a test file
	// (e.g. "_test.js"). The associated source drops the suffix.
	TestSuffixes []string
	// TestDirs are directory names that hold test files.
	TestDirs []string
}

// registry maps file extensions to language specs.
var registry = map[string]*LanguageSpec{}

// Register adds a LanguageSpec to the global registry.
func Register(spec *LanguageSpec) {
	for _, ext := range spec.FileExtensions {
		registry[ext] = spec
	}
}

// ForExtension returns the LanguageSpec for a file extension (e.g. ".js").
func ForExtension(ext string) *LanguageSpec {
	return registry[ext]
}

// ForLanguage returns the LanguageSpec for a language.
func ForLanguage(lang Language) *LanguageSpec {
	for _, spec := range registry {
		if spec.Language == lang {
			return spec
		}
	}
	return nil
}

// LanguageForExtension returns the Language for a file extension.
func LanguageForExtension(ext string) (Language, bool) {
	spec := ForExtension(ext)
	if spec == nil {
		return "", false
	}
	return spec.Language, true
}
