// Package model resolves the syntax tree into the public result model:
// defaults applied, ANSI inheritance expanded, non-ANSI headers matched
// against body declarations. Every port it emits has a concrete direction,
// kind and type.
package model

import (
	"fmt"

	"github.com/hdlkit/svparse/internal/parser"
	"github.com/hdlkit/svparse/sv"
)

var netTypes = map[string]sv.SvNetType{
	"wire":    sv.NetWire,
	"uwire":   sv.NetUwire,
	"tri":     sv.NetTri,
	"wor":     sv.NetWor,
	"wand":    sv.NetWand,
	"triand":  sv.NetTriand,
	"trior":   sv.NetTrior,
	"trireg":  sv.NetTrireg,
	"tri0":    sv.NetTri0,
	"tri1":    sv.NetTri1,
	"supply0": sv.NetSupply0,
	"supply1": sv.NetSupply1,
}

var dataTypeKinds = map[string]sv.SvDataTypeKind{
	"logic":     sv.DataTypeLogic,
	"bit":       sv.DataTypeBit,
	"reg":       sv.DataTypeReg,
	"int":       sv.DataTypeInt,
	"integer":   sv.DataTypeInteger,
	"shortint":  sv.DataTypeShortInt,
	"longint":   sv.DataTypeLongInt,
	"byte":      sv.DataTypeByte,
	"real":      sv.DataTypeReal,
	"realtime":  sv.DataTypeReal,
	"shortreal": sv.DataTypeShortReal,
	"time":      sv.DataTypeTime,
	"void":      sv.DataTypeVoid,
}

var directions = map[string]sv.SvPortDirection{
	"input":  sv.DirectionInput,
	"output": sv.DirectionOutput,
	"inout":  sv.DirectionInout,
	"ref":    sv.DirectionRef,
}

type builder struct {
	path  string
	diags []sv.Diagnostic
}

// Build resolves a compilation unit into a ParseResult. Diagnostics on the
// returned result are model-level only; the caller prepends the earlier
// pipeline stages' findings.
func Build(unit *parser.CompilationUnit, path string) *sv.ParseResult {
	b := &builder{path: path}
	res := &sv.ParseResult{
		Modules:  []sv.SvModule{},
		Packages: []sv.SvPackage{},
	}

	seenModules := map[string]bool{}
	for _, m := range unit.Modules {
		if seenModules[m.Name] {
			b.errorf(m.File, m.Line, m.Col, "duplicate module %q", m.Name)
		}
		seenModules[m.Name] = true
		res.Modules = append(res.Modules, b.buildModule(m))
	}

	seenPackages := map[string]bool{}
	for _, pkg := range unit.Packages {
		if seenPackages[pkg.Name] {
			b.errorf(pkg.File, pkg.Line, pkg.Col, "duplicate package %q", pkg.Name)
		}
		seenPackages[pkg.Name] = true
		res.Packages = append(res.Packages, b.buildPackage(pkg))
	}

	res.Diagnostics = b.diags
	if res.Diagnostics == nil {
		res.Diagnostics = []sv.Diagnostic{}
	}
	return res
}

func (b *builder) errorf(file string, line, col int, format string, args ...any) {
	b.diags = append(b.diags, sv.Diagnostic{
		Kind:    sv.DiagModel,
		File:    file,
		Line:    line,
		Col:     col,
		Message: fmt.Sprintf(format, args...),
	})
}

func (b *builder) buildModule(m *parser.Module) sv.SvModule {
	out := sv.SvModule{
		Identifier: m.Name,
		Ports:      []sv.SvPort{},
		Filepath:   b.path,
	}
	if m.Ansi {
		out.Ports = b.buildAnsiPorts(m)
	} else {
		out.Ports = b.buildNonAnsiPorts(m)
	}
	for _, p := range m.Params {
		out.Parameters = append(out.Parameters, buildParam(p))
	}
	for _, inst := range m.Instances {
		out.Instances = append(out.Instances, sv.SvInstance{
			ModuleIdentifier:   inst.Module,
			InstanceIdentifier: inst.Name,
			Connections:        inst.Conns,
		})
	}
	return out
}

func (b *builder) buildPackage(pkg *parser.Package) sv.SvPackage {
	out := sv.SvPackage{Identifier: pkg.Name, Filepath: b.path}
	for _, p := range pkg.Params {
		out.Parameters = append(out.Parameters, buildParam(p))
	}
	return out
}

func buildParam(p *parser.Param) sv.SvParameter {
	out := sv.SvParameter{Identifier: p.Name, Expression: p.Expr}
	if p.Local {
		out.ParamType = sv.LocalParam
	}
	if p.TypeKeyword != "" {
		dt := dataTypeFor(p.TypeKeyword, "")
		out.Datatype = &dt
	}
	return out
}

// portSpec is the common shape both port syntaxes reduce to before default
// resolution.
type portSpec struct {
	name        string
	direction   string
	netType     string
	varKeyword  bool
	typeKeyword string
	typeName    string
	modport     string
	signing     string
	packed      []parser.Range
	unpacked    []parser.Range
}

func (s *portSpec) empty() bool {
	return s.direction == "" && s.netType == "" && !s.varKeyword &&
		s.typeKeyword == "" && s.typeName == "" && s.signing == "" &&
		len(s.packed) == 0
}

// buildAnsiPorts resolves an ANSI port list, threading the previous resolved
// port through the list: an item with nothing but a name takes the previous
// port's direction, kind, type, signedness and packed dimensions.
func (b *builder) buildAnsiPorts(m *parser.Module) []sv.SvPort {
	ports := []sv.SvPort{}
	seen := map[string]bool{}
	var prev sv.SvPort
	havePrev := false

	for _, item := range m.Ports {
		if item.Name == "" {
			continue // recovery left a nameless item behind
		}

		var port sv.SvPort
		spec := portSpec{
			name:        item.Name,
			direction:   item.Direction,
			netType:     item.NetType,
			varKeyword:  item.Var,
			typeKeyword: item.TypeKeyword,
			typeName:    item.TypeName,
			modport:     item.Modport,
			signing:     item.Signing,
			packed:      item.PackedDims,
			unpacked:    item.UnpackedDims,
		}
		if spec.empty() && havePrev {
			port = prev
			port.Identifier = item.Name
			port.UnpackedDimensions = unpackedDims(item.UnpackedDims)
		} else {
			var inherit *sv.SvPort
			if havePrev {
				inherit = &prev
			}
			port = b.resolvePort(spec, inherit)
		}

		prev = port
		havePrev = true

		if seen[port.Identifier] {
			b.errorf(item.File, item.Line, item.Col, "duplicate port %q in module %q", port.Identifier, m.Name)
			continue
		}
		seen[port.Identifier] = true
		ports = append(ports, port)
	}
	return ports
}

// buildNonAnsiPorts matches the header name list against the body's
// direction and data declarations and merges the two per port.
func (b *builder) buildNonAnsiPorts(m *parser.Module) []sv.SvPort {
	type declRef struct {
		decl *parser.BodyDecl
		name parser.DeclName
	}
	dirDecls := map[string]declRef{}
	dataDecls := map[string]declRef{}
	inHeader := map[string]bool{}
	for _, name := range m.HeaderNames {
		inHeader[name] = true
	}

	for _, d := range m.Decls {
		for _, n := range d.Names {
			if d.Direction != "" {
				if !inHeader[n.Name] {
					b.errorf(d.File, d.Line, d.Col,
						"direction declaration for %q, which is not a port of module %q", n.Name, m.Name)
					continue
				}
				if _, dup := dirDecls[n.Name]; !dup {
					dirDecls[n.Name] = declRef{decl: d, name: n}
				}
			} else if inHeader[n.Name] {
				// Data declarations for non-ports are ordinary internal
				// signals; only those completing a port are kept.
				if _, dup := dataDecls[n.Name]; !dup {
					dataDecls[n.Name] = declRef{decl: d, name: n}
				}
			}
		}
	}

	ports := []sv.SvPort{}
	seen := map[string]bool{}
	for _, name := range m.HeaderNames {
		if seen[name] {
			b.errorf(m.File, m.Line, m.Col, "duplicate port %q in module %q", name, m.Name)
			continue
		}
		seen[name] = true

		dir, hasDir := dirDecls[name]
		data, hasData := dataDecls[name]
		if !hasDir && !hasData {
			b.errorf(m.File, m.Line, m.Col,
				"port %q of module %q is never declared in the body", name, m.Name)
			ports = append(ports, defaultPort(name))
			continue
		}

		spec := portSpec{name: name}
		if hasDir {
			spec.direction = dir.decl.Direction
			spec.netType = dir.decl.NetType
			spec.varKeyword = dir.decl.Var
			spec.typeKeyword = dir.decl.TypeKeyword
			spec.typeName = dir.decl.TypeName
			spec.signing = dir.decl.Signing
			spec.packed = dir.decl.PackedDims
			spec.unpacked = dir.name.UnpackedDims
		}
		if hasData {
			if spec.netType == "" {
				spec.netType = data.decl.NetType
			}
			spec.varKeyword = spec.varKeyword || data.decl.Var
			if spec.typeKeyword == "" {
				spec.typeKeyword = data.decl.TypeKeyword
			}
			if spec.typeName == "" {
				spec.typeName = data.decl.TypeName
			}
			if spec.signing == "" {
				spec.signing = data.decl.Signing
			}
			if len(spec.packed) == 0 {
				spec.packed = data.decl.PackedDims
			}
			if len(spec.unpacked) == 0 {
				spec.unpacked = data.name.UnpackedDims
			}
		}
		if spec.direction == "" {
			b.errorf(data.decl.File, data.decl.Line, data.decl.Col,
				"port %q of module %q has no direction declaration", name, m.Name)
			spec.direction = "input"
		}

		ports = append(ports, b.resolvePort(spec, nil))
	}
	return ports
}

// resolvePort applies the defaulting rules to a fully gathered spec. prev is
// the previous resolved ANSI port, used for direction inheritance; it is nil
// for non-ANSI ports.
func (b *builder) resolvePort(spec portSpec, prev *sv.SvPort) sv.SvPort {
	port := sv.SvPort{
		Identifier:         spec.name,
		PackedDimensions:   packedDims(spec.packed),
		UnpackedDimensions: unpackedDims(spec.unpacked),
	}

	// An interface port has a type reference but no direction keyword.
	if spec.modport != "" || (spec.direction == "" && spec.typeName != "" &&
		spec.netType == "" && !spec.varKeyword) {
		port.Direction = sv.DirectionInterface
		name := spec.typeName
		if spec.modport != "" {
			name += "." + spec.modport
		}
		port.Datatype = sv.UserDefined(name)
		return port
	}

	switch {
	case spec.direction != "":
		port.Direction = directions[spec.direction]
	case prev != nil:
		port.Direction = prev.Direction
	default:
		port.Direction = sv.DirectionInput
	}

	if nt, ok := netTypes[spec.netType]; ok {
		port.Datakind = sv.KindNet
		port.NetType = nt
	} else {
		port.Datakind = sv.KindVariable
	}

	switch {
	case spec.typeKeyword != "":
		port.Datatype = dataTypeFor(spec.typeKeyword, "")
	case spec.typeName != "":
		port.Datatype = sv.UserDefined(spec.typeName)
	case spec.netType == "wire":
		port.Datatype = sv.SvDataType{Kind: sv.DataTypeWire}
	default:
		port.Datatype = sv.SvDataType{Kind: sv.DataTypeLogic}
	}

	switch spec.signing {
	case "signed":
		port.Signedness = sv.Signed
	case "unsigned":
		port.Signedness = sv.Unsigned
	default:
		port.Signedness = defaultSignedness(port.Datatype.Kind)
	}
	return port
}

// defaultPort is the resolution of a header port with no body declaration.
func defaultPort(name string) sv.SvPort {
	return sv.SvPort{
		Identifier: name,
		Direction:  sv.DirectionInput,
		Datakind:   sv.KindVariable,
		Datatype:   sv.SvDataType{Kind: sv.DataTypeLogic},
		Signedness: sv.Unsigned,
	}
}

// dataTypeFor maps a type keyword to its kind. Keywords outside the closed
// enum (e.g. string) become user-defined types.
func dataTypeFor(keyword, name string) sv.SvDataType {
	if kind, ok := dataTypeKinds[keyword]; ok {
		return sv.SvDataType{Kind: kind, Name: name}
	}
	return sv.UserDefined(keyword)
}

// defaultSignedness follows the language defaults: the integer atom types
// are signed, the vector types unsigned, everything else has no signedness.
func defaultSignedness(k sv.SvDataTypeKind) sv.SvSignedness {
	switch k {
	case sv.DataTypeByte, sv.DataTypeShortInt, sv.DataTypeInt,
		sv.DataTypeLongInt, sv.DataTypeInteger:
		return sv.Signed
	case sv.DataTypeLogic, sv.DataTypeBit, sv.DataTypeReg, sv.DataTypeWire:
		return sv.Unsigned
	}
	return sv.SignednessNone
}

func packedDims(rs []parser.Range) []sv.SvPackedDimension {
	if len(rs) == 0 {
		return nil
	}
	out := make([]sv.SvPackedDimension, len(rs))
	for i, r := range rs {
		out[i] = sv.SvPackedDimension{Msb: r.Msb, Lsb: r.Lsb}
	}
	return out
}

func unpackedDims(rs []parser.Range) []sv.SvUnpackedDimension {
	if len(rs) == 0 {
		return nil
	}
	out := make([]sv.SvUnpackedDimension, len(rs))
	for i, r := range rs {
		out[i] = sv.SvUnpackedDimension{Left: r.Msb, Right: r.Lsb}
	}
	return out
}
