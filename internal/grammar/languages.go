package grammar

import (
	"context"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/c"
	"github.com/smacker/go-tree-sitter/cpp"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/java"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/rust"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	cgerrors "github.com/Aman-CERP/codegrip/internal/errors"
)

// Grammar is the capability set every supported language exposes.
// Matcher and extractor code only talks to this interface.
type Grammar interface {
	// Name returns the language name (go, rust, python, ...).
	Name() string

	// Extensions returns the file extensions handled by this grammar.
	Extensions() []string

	// Parse parses source and fails with a parse error when the tree
	// contains ERROR or MISSING nodes.
	Parse(ctx context.Context, source []byte) (*Tree, error)

	// ParseLenient returns the tree even when it contains errors.
	ParseLenient(ctx context.Context, source []byte) (*Tree, error)

	// IsExtractableUnit reports whether kind is a function, class, etc.
	IsExtractableUnit(kind string) bool

	// IsExtractableNode applies IsExtractableUnit plus per-node constraints.
	IsExtractableNode(t *Tree, id NodeID) bool

	// UnitKind classifies an extractable kind; empty when not a unit.
	UnitKind(kind string) UnitKind

	// IsStatement reports whether kind is a statement or block.
	IsStatement(kind string) bool

	// IsRoot reports whether kind is a top-level wrapper (source_file, program).
	IsRoot(kind string) bool

	// IsEnclosingWrapper reports whether kind wraps a unit (decorators, export).
	IsEnclosingWrapper(kind string) bool

	// Config returns the raw kind tables.
	Config() *LanguageConfig
}

// LanguageRegistry manages supported languages and their configurations.
type LanguageRegistry struct {
	mu        sync.RWMutex
	grammars  map[string]*treeSitterGrammar // keyed by language name
	extToLang map[string]string             // extension -> language name
}

// NewLanguageRegistry creates a new registry with default language configurations.
func NewLanguageRegistry() *LanguageRegistry {
	r := &LanguageRegistry{
		grammars:  make(map[string]*treeSitterGrammar),
		extToLang: make(map[string]string),
	}

	r.registerGo()
	r.registerRust()
	r.registerPython()
	r.registerJavaScript()
	r.registerTypeScript()
	r.registerJava()
	r.registerC()
	r.registerCPP()

	return r
}

// Resolve returns the grammar for a file extension.
// Unknown extensions fail with an unsupported-language error.
func (r *LanguageRegistry) Resolve(ext string) (Grammar, error) {
	ext = normalizeExt(ext)

	r.mu.RLock()
	defer r.mu.RUnlock()

	name, ok := r.extToLang[ext]
	if !ok {
		return nil, cgerrors.UnsupportedLanguage(ext)
	}
	return r.grammars[name], nil
}

// ForPath resolves the grammar from a file path's extension.
func (r *LanguageRegistry) ForPath(path string) (Grammar, error) {
	ext := filepath.Ext(path)
	if ext == "" {
		return nil, cgerrors.UnsupportedLanguage(filepath.Base(path))
	}
	return r.Resolve(ext)
}

// ByName returns the grammar for a language name or alias.
func (r *LanguageRegistry) ByName(name string) (Grammar, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if alias, ok := languageAliases[name]; ok {
		name = alias
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if g, ok := r.grammars[name]; ok {
		return g, nil
	}
	// Accept an extension as a language hint too
	if lang, ok := r.extToLang[normalizeExt(name)]; ok {
		return r.grammars[lang], nil
	}
	return nil, cgerrors.UnsupportedLanguage(name)
}

// Languages returns the registered language names, sorted.
func (r *LanguageRegistry) Languages() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.grammars))
	for name := range r.grammars {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SupportedExtensions returns all supported file extensions, sorted.
func (r *LanguageRegistry) SupportedExtensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	exts := make([]string, 0, len(r.extToLang))
	for ext := range r.extToLang {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Register adds a language. Registering an existing name replaces it.
func (r *LanguageRegistry) Register(config *LanguageConfig, tsLang *sitter.Language) {
	g := newTreeSitterGrammar(config, tsLang)

	r.mu.Lock()
	defer r.mu.Unlock()

	r.grammars[config.Name] = g
	for _, ext := range config.Extensions {
		r.extToLang[normalizeExt(ext)] = config.Name
	}
}

var languageAliases = map[string]string{
	"golang": "go",
	"rs":     "rust",
	"py":     "python",
	"js":     "javascript",
	"jsx":    "javascript",
	"ts":     "typescript",
	"c++":    "cpp",
	"cc":     "cpp",
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(ext)
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

func (r *LanguageRegistry) registerGo() {
	r.Register(&LanguageConfig{
		Name:          "go",
		Extensions:    []string{".go"},
		FunctionTypes: []string{"function_declaration"},
		MethodTypes:   []string{"method_declaration"},
		TypeDefTypes:  []string{"type_declaration"},
		BlockTypes:    []string{"block"},
		RootTypes:     []string{"source_file"},
		NameField:     "name",
	}, golang.GetLanguage())
}

func (r *LanguageRegistry) registerRust() {
	r.Register(&LanguageConfig{
		Name:          "rust",
		Extensions:    []string{".rs"},
		FunctionTypes: []string{"function_item", "macro_definition"},
		MethodTypes:   []string{"function_signature_item"},
		StructTypes:   []string{"struct_item", "union_item"},
		EnumTypes:     []string{"enum_item"},
		ImplTypes:     []string{"impl_item"},
		TraitTypes:    []string{"trait_item"},
		TypeDefTypes:  []string{"type_item"},
		ModuleTypes:   []string{"mod_item"},
		BodyRequired:  map[string][]string{"mod_item": {"declaration_list"}},
		BlockTypes:    []string{"block"},
		RootTypes:     []string{"source_file"},
		NameField:     "name",
	}, rust.GetLanguage())
}

func (r *LanguageRegistry) registerPython() {
	r.Register(&LanguageConfig{
		Name:              "python",
		Extensions:        []string{".py", ".pyi"},
		FunctionTypes:     []string{"function_definition"},
		ClassTypes:        []string{"class_definition"},
		EnclosingWrappers: []string{"decorated_definition"},
		BlockTypes:        []string{"block"},
		RootTypes:         []string{"module"},
		NameField:         "name",
	}, python.GetLanguage())
}

func (r *LanguageRegistry) registerJavaScript() {
	r.Register(&LanguageConfig{
		Name:       "javascript",
		Extensions: []string{".js", ".mjs", ".cjs", ".jsx"},
		FunctionTypes: []string{
			"function_declaration",
			"generator_function_declaration",
			"function",
			"function_expression",
			"arrow_function",
		},
		MethodTypes:       []string{"method_definition"},
		ClassTypes:        []string{"class_declaration", "class"},
		EnclosingWrappers: []string{"export_statement"},
		BlockTypes:        []string{"statement_block"},
		RootTypes:         []string{"program"},
		NameField:         "name",
	}, javascript.GetLanguage())
}

func (r *LanguageRegistry) registerTypeScript() {
	tsConfig := &LanguageConfig{
		Name:       "typescript",
		Extensions: []string{".ts", ".mts", ".cts"},
		FunctionTypes: []string{
			"function_declaration",
			"generator_function_declaration",
			"function",
			"function_expression",
			"arrow_function",
		},
		MethodTypes:       []string{"method_definition"},
		ClassTypes:        []string{"class_declaration", "abstract_class_declaration", "class"},
		InterfaceTypes:    []string{"interface_declaration"},
		EnumTypes:         []string{"enum_declaration"},
		TypeDefTypes:      []string{"type_alias_declaration"},
		EnclosingWrappers: []string{"export_statement"},
		BlockTypes:        []string{"statement_block"},
		RootTypes:         []string{"program"},
		NameField:         "name",
	}
	r.Register(tsConfig, typescript.GetLanguage())

	// TSX shares the TypeScript tables with its own parser
	tsxConfig := *tsConfig
	tsxConfig.Name = "tsx"
	tsxConfig.Extensions = []string{".tsx"}
	r.Register(&tsxConfig, tsx.GetLanguage())
}

func (r *LanguageRegistry) registerJava() {
	r.Register(&LanguageConfig{
		Name:           "java",
		Extensions:     []string{".java"},
		MethodTypes:    []string{"method_declaration", "constructor_declaration"},
		ClassTypes:     []string{"class_declaration", "record_declaration"},
		InterfaceTypes: []string{"interface_declaration", "annotation_type_declaration"},
		EnumTypes:      []string{"enum_declaration"},
		BlockTypes:     []string{"block", "constructor_body"},
		RootTypes:      []string{"program"},
		NameField:      "name",
	}, java.GetLanguage())
}

func (r *LanguageRegistry) registerC() {
	r.Register(&LanguageConfig{
		Name:          "c",
		Extensions:    []string{".c", ".h"},
		FunctionTypes: []string{"function_definition"},
		StructTypes:   []string{"struct_specifier", "union_specifier"},
		EnumTypes:     []string{"enum_specifier"},
		BodyRequired: map[string][]string{
			"struct_specifier": {"field_declaration_list"},
			"union_specifier":  {"field_declaration_list"},
			"enum_specifier":   {"enumerator_list"},
		},
		BlockTypes: []string{"compound_statement"},
		RootTypes:  []string{"translation_unit"},
		NameField:  "declarator",
	}, c.GetLanguage())
}

func (r *LanguageRegistry) registerCPP() {
	r.Register(&LanguageConfig{
		Name:          "cpp",
		Extensions:    []string{".cc", ".cpp", ".cxx", ".hpp", ".hh", ".hxx"},
		FunctionTypes: []string{"function_definition"},
		ClassTypes:    []string{"class_specifier"},
		StructTypes:   []string{"struct_specifier", "union_specifier"},
		EnumTypes:     []string{"enum_specifier"},
		BodyRequired: map[string][]string{
			"class_specifier":  {"field_declaration_list"},
			"struct_specifier": {"field_declaration_list"},
			"union_specifier":  {"field_declaration_list"},
			"enum_specifier":   {"enumerator_list"},
		},
		EnclosingWrappers: []string{"template_declaration"},
		BlockTypes:        []string{"compound_statement"},
		RootTypes:         []string{"translation_unit"},
		NameField:         "declarator",
	}, cpp.GetLanguage())
}

// defaultRegistry is the global language registry.
var (
	defaultRegistry     *LanguageRegistry
	defaultRegistryOnce sync.Once
)

// DefaultRegistry returns the global language registry.
func DefaultRegistry() *LanguageRegistry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = NewLanguageRegistry()
	})
	return defaultRegistry
}
