package parser

// The syntax tree is a pure tree: every node owns its children and nothing
// points back up. It is consumed (and discarded) by the model builder.

// CompilationUnit is the tree root for one preprocessed file.
type CompilationUnit struct {
	Modules  []*Module
	Packages []*Package
}

// Range is one bracketed dimension. Bounds are raw expression text; Lsb is
// empty for the single-expression unpacked form ([4]).
type Range struct {
	Msb string
	Lsb string
}

// PortItem is one item of an ANSI port list, before default resolution.
// Every field is exactly what the source spelled out; omitted pieces stay
// empty so the model builder can apply the inheritance rule.
type PortItem struct {
	Direction    string // input/output/inout/ref, or empty
	NetType      string // wire/tri/..., or empty
	Var          bool   // explicit var keyword
	TypeKeyword  string // logic/bit/int/..., or empty
	TypeName     string // user-defined (possibly pkg::name) type, or empty
	Modport      string // interface port modport, or empty
	Signing      string // signed/unsigned, or empty
	PackedDims   []Range
	Name         string
	UnpackedDims []Range

	File string
	Line int
	Col  int
}

// HasDecl reports whether the item spelled out any part of a declaration.
// An item with nothing but a name inherits from its predecessor.
func (p *PortItem) HasDecl() bool {
	return p.Direction != "" || p.NetType != "" || p.Var || p.TypeKeyword != "" ||
		p.TypeName != "" || p.Signing != "" || len(p.PackedDims) > 0
}

// DeclName is one declarator in a body declaration.
type DeclName struct {
	Name         string
	UnpackedDims []Range
}

// BodyDecl is a port-relevant declaration in a non-ANSI module body: a
// direction statement (input [7:0] a, b;) or a data declaration
// (logic [7:0] a;).
type BodyDecl struct {
	Direction   string
	NetType     string
	Var         bool
	TypeKeyword string
	TypeName    string
	Signing     string
	PackedDims  []Range
	Names       []DeclName

	File string
	Line int
	Col  int
}

// Param is a parameter or localparam declaration.
type Param struct {
	Local       bool
	TypeKeyword string
	Signing     string
	PackedDims  []Range
	Name        string
	Expr        string // default value text, empty if none

	File string
	Line int
	Col  int
}

// Instance is a module instantiation inside a module body.
type Instance struct {
	Module string
	Name   string
	Conns  [][2]string // (port, expression); port empty for positional

	File string
	Line int
	Col  int
}

// Module is one module declaration. Either Ports (ANSI) or HeaderNames
// (non-ANSI) is populated, never both.
type Module struct {
	Name        string
	Ansi        bool
	Ports       []*PortItem
	HeaderNames []string
	Decls       []*BodyDecl
	Params      []*Param
	Instances   []*Instance

	File string
	Line int
	Col  int
}

// Package is one package declaration.
type Package struct {
	Name   string
	Params []*Param

	File string
	Line int
	Col  int
}
