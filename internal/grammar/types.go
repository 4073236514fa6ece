// Package grammar maps source languages to tree-sitter parsers and to the
// node kinds each language treats as extractable units.
//
// Parsed trees are stored as flat arenas: nodes are addressed by NodeID and
// linked by index, so a Tree is immutable after parsing and can be shared
// read-only between goroutines.
package grammar

// NodeID addresses a node inside a Tree arena.
type NodeID int32

// NoNode is the parent of the root and the result of failed lookups.
const NoNode NodeID = -1

// Root is the NodeID of every tree's root node.
const Root NodeID = 0

// UnitKind classifies an extractable unit.
type UnitKind string

const (
	UnitFunction  UnitKind = "function"
	UnitMethod    UnitKind = "method"
	UnitClass     UnitKind = "class"
	UnitStruct    UnitKind = "struct"
	UnitInterface UnitKind = "interface"
	UnitEnum      UnitKind = "enum"
	UnitImpl      UnitKind = "impl"
	UnitTrait     UnitKind = "trait"
	UnitType      UnitKind = "type"
	UnitModule    UnitKind = "module"
	UnitStatement UnitKind = "statement"
	UnitFile      UnitKind = "file"
	UnitLines     UnitKind = "lines"
)

// Point represents a position in the source code.
type Point struct {
	Row    uint32 // 0-indexed line number
	Column uint32
}

// Node is one arena entry of a parsed tree.
type Node struct {
	Kind  string
	Field string // field name under the parent, empty when unnamed

	Named   bool
	Extra   bool // comments and other extras; ERROR regions never are
	IsError bool // ERROR or MISSING node

	// HasError is true when this node or any descendant is an error.
	HasError bool

	Parent   NodeID
	Children []NodeID

	StartByte  uint32
	EndByte    uint32
	StartPoint Point
	EndPoint   Point

	// FirstLeaf and EndLeaf delimit the node's span of Tree.Leaves.
	// EndLeaf is exclusive; nodes without significant leaves have an empty span.
	FirstLeaf int32
	EndLeaf   int32
}

// Tree is an immutable parsed AST in arena form.
type Tree struct {
	Nodes    []Node
	Leaves   []NodeID // non-extra, non-blank leaves in source order
	Source   []byte
	Language string
}

// LanguageConfig holds the node kind tables for a supported language.
type LanguageConfig struct {
	Name       string
	Extensions []string

	FunctionTypes  []string
	MethodTypes    []string
	ClassTypes     []string
	StructTypes    []string
	InterfaceTypes []string
	EnumTypes      []string
	ImplTypes      []string
	TraitTypes     []string
	TypeDefTypes   []string
	ModuleTypes    []string

	// BodyRequired lists unit kinds that only count as units when one of
	// the given child kinds is present (C "struct foo" vs "struct foo {...}").
	BodyRequired map[string][]string

	// EnclosingWrappers are parents that belong to a unit, such as
	// decorators or export statements. Extraction widens a unit to them.
	EnclosingWrappers []string

	// BlockTypes are block-like kinds used by the statement fallback.
	BlockTypes []string

	// RootTypes are the top-level kinds (source_file, program, module).
	RootTypes []string

	// NameField is the field holding a unit's name.
	NameField string
}
