package model

import (
	"testing"

	"github.com/hdlkit/svparse/internal/lexer"
	"github.com/hdlkit/svparse/internal/parser"
	"github.com/hdlkit/svparse/sv"
)

func buildSrc(t *testing.T, src string) *sv.ParseResult {
	t.Helper()
	tokens, lexDiags := lexer.LexSource("test.sv", src)
	if len(lexDiags) != 0 {
		t.Fatalf("unexpected lex diagnostics: %v", lexDiags)
	}
	unit, parseDiags := parser.Parse(tokens)
	if len(parseDiags) != 0 {
		t.Fatalf("unexpected parse diagnostics: %v", parseDiags)
	}
	return Build(unit, "test.sv")
}

func onePort(t *testing.T, res *sv.ParseResult) sv.SvPort {
	t.Helper()
	if len(res.Modules) != 1 || len(res.Modules[0].Ports) != 1 {
		t.Fatalf("expected one module with one port, got %+v", res.Modules)
	}
	return res.Modules[0].Ports[0]
}

func findPort(t *testing.T, m sv.SvModule, name string) sv.SvPort {
	t.Helper()
	for _, p := range m.Ports {
		if p.Identifier == name {
			return p
		}
	}
	t.Fatalf("module %q has no port %q: %+v", m.Identifier, name, m.Ports)
	return sv.SvPort{}
}

func TestSinglePortResolution(t *testing.T) {
	res := buildSrc(t, "module ansi_module_a(input logic a); endmodule")
	if len(res.Diagnostics) != 0 {
		t.Fatalf("unexpected diagnostics: %v", res.Diagnostics)
	}
	m := res.Modules[0]
	if m.Identifier != "ansi_module_a" || m.Filepath != "test.sv" {
		t.Fatalf("module wrong: %+v", m)
	}
	p := onePort(t, res)
	if p.Direction != sv.DirectionInput || p.Datakind != sv.KindVariable {
		t.Fatalf("port wrong: %+v", p)
	}
	if p.Datatype.Kind != sv.DataTypeLogic || p.Signedness != sv.Unsigned {
		t.Fatalf("port type wrong: %+v", p)
	}
}

func TestAnsiInheritanceCopiesPreviousPort(t *testing.T) {
	src := "module m(input logic [7:0] a, b, output wire c); endmodule"
	res := buildSrc(t, src)
	m := res.Modules[0]
	if len(m.Ports) != 3 {
		t.Fatalf("expected 3 ports, got %+v", m.Ports)
	}
	b := findPort(t, m, "b")
	if b.Direction != sv.DirectionInput || b.Datakind != sv.KindVariable {
		t.Fatalf("port b should inherit from a: %+v", b)
	}
	if b.Datatype.Kind != sv.DataTypeLogic || len(b.PackedDimensions) != 1 {
		t.Fatalf("port b should inherit type and dims: %+v", b)
	}
	c := findPort(t, m, "c")
	if c.Direction != sv.DirectionOutput || c.Datakind != sv.KindNet || c.NetType != sv.NetWire {
		t.Fatalf("port c wrong: %+v", c)
	}
	if c.Datatype.Kind != sv.DataTypeWire || len(c.PackedDimensions) != 0 {
		t.Fatalf("port c must not inherit a's type or dims: %+v", c)
	}
}

func TestDirectionInheritsButDimsDoNot(t *testing.T) {
	src := "module m(output logic [1:0] x, logic y); endmodule"
	res := buildSrc(t, src)
	y := findPort(t, res.Modules[0], "y")
	if y.Direction != sv.DirectionOutput {
		t.Fatalf("y should inherit the output direction: %+v", y)
	}
	if len(y.PackedDimensions) != 0 {
		t.Fatalf("y declares its own type, so dims reset: %+v", y)
	}
}

func TestFirstPortWithoutDirectionDefaultsToInput(t *testing.T) {
	res := buildSrc(t, "module m(logic [3:0] sel); endmodule")
	p := onePort(t, res)
	if p.Direction != sv.DirectionInput {
		t.Fatalf("expected Input default, got %v", p.Direction)
	}
}

func TestNetKeywordMakesNetKind(t *testing.T) {
	res := buildSrc(t, "module m(input tri1 t); endmodule")
	p := onePort(t, res)
	if p.Datakind != sv.KindNet || p.NetType != sv.NetTri1 {
		t.Fatalf("tri1 port wrong: %+v", p)
	}
	if p.Datatype.Kind != sv.DataTypeLogic {
		t.Fatalf("non-wire net defaults to Logic datatype: %+v", p)
	}
}

func TestBareWirePortRendersWire(t *testing.T) {
	res := buildSrc(t, "module m(input wire w); endmodule")
	p := onePort(t, res)
	if p.Datakind != sv.KindNet || p.NetType != sv.NetWire {
		t.Fatalf("wire port wrong: %+v", p)
	}
	if p.Datatype.String() != "Wire" {
		t.Fatalf("bare wire should render as Wire, got %q", p.Datatype.String())
	}
}

func TestSignednessDefaults(t *testing.T) {
	src := `module m(
  input int a,
  input logic b,
  input real c,
  input logic unsigned d,
  input bit signed e
);
endmodule`
	res := buildSrc(t, src)
	m := res.Modules[0]
	cases := map[string]sv.SvSignedness{
		"a": sv.Signed,
		"b": sv.Unsigned,
		"c": sv.SignednessNone,
		"d": sv.Unsigned,
		"e": sv.Signed,
	}
	for name, want := range cases {
		if got := findPort(t, m, name).Signedness; got != want {
			t.Fatalf("port %s: signedness %v, want %v", name, got, want)
		}
	}
}

func TestUserDefinedPortType(t *testing.T) {
	res := buildSrc(t, "module m(input my_pkg::word_t w); endmodule")
	p := onePort(t, res)
	if p.Datatype.Kind != sv.DataTypeUserDefined || p.Datatype.Name != "my_pkg::word_t" {
		t.Fatalf("scoped type wrong: %+v", p.Datatype)
	}
	if p.Datatype.String() != "UserDefined" {
		t.Fatalf("rendering wrong: %q", p.Datatype.String())
	}
}

func TestInterfacePortResolution(t *testing.T) {
	res := buildSrc(t, "module m(bus_if.slave port_a, input logic clk); endmodule")
	m := res.Modules[0]
	p := findPort(t, m, "port_a")
	if p.Direction != sv.DirectionInterface {
		t.Fatalf("interface port direction wrong: %+v", p)
	}
	if p.Datatype.Kind != sv.DataTypeUserDefined || p.Datatype.Name != "bus_if.slave" {
		t.Fatalf("interface port type wrong: %+v", p.Datatype)
	}
}

func TestNonAnsiMerge(t *testing.T) {
	src := `module legacy(clk, data, q);
  input clk;
  input [7:0] data;
  output q;
  reg [7:0] q;
endmodule`
	res := buildSrc(t, src)
	if len(res.Diagnostics) != 0 {
		t.Fatalf("unexpected diagnostics: %v", res.Diagnostics)
	}
	m := res.Modules[0]
	if len(m.Ports) != 3 {
		t.Fatalf("expected 3 ports: %+v", m.Ports)
	}

	clk := findPort(t, m, "clk")
	if clk.Direction != sv.DirectionInput || clk.Datatype.Kind != sv.DataTypeLogic {
		t.Fatalf("clk wrong: %+v", clk)
	}

	data := findPort(t, m, "data")
	if len(data.PackedDimensions) != 1 || data.PackedDimensions[0].Msb != "7" {
		t.Fatalf("data dims wrong: %+v", data)
	}

	// The direction statement and the reg declaration merge into one port.
	q := findPort(t, m, "q")
	if q.Direction != sv.DirectionOutput || q.Datatype.Kind != sv.DataTypeReg {
		t.Fatalf("q merge wrong: %+v", q)
	}
	if len(q.PackedDimensions) != 1 {
		t.Fatalf("q should take the reg declaration's dims: %+v", q)
	}
}

func TestNonAnsiUndeclaredPortGetsDefaults(t *testing.T) {
	src := "module m(a, b);\n  input a;\nendmodule"
	res := buildSrc(t, src)
	m := res.Modules[0]
	if len(m.Ports) != 2 {
		t.Fatalf("expected both ports emitted: %+v", m.Ports)
	}
	b := findPort(t, m, "b")
	if b.Direction != sv.DirectionInput || b.Datakind != sv.KindVariable || b.Datatype.Kind != sv.DataTypeLogic {
		t.Fatalf("undeclared port should default to Input/Variable/Logic: %+v", b)
	}
	if len(res.Diagnostics) != 1 || res.Diagnostics[0].Kind != sv.DiagModel {
		t.Fatalf("expected one ModelError, got %v", res.Diagnostics)
	}
}

func TestNonAnsiDirectionForUnknownName(t *testing.T) {
	src := "module m(a);\n  input a;\n  output nope;\nendmodule"
	res := buildSrc(t, src)
	if len(res.Modules[0].Ports) != 1 {
		t.Fatalf("unknown name must not become a port: %+v", res.Modules[0].Ports)
	}
	if len(res.Diagnostics) != 1 || res.Diagnostics[0].Kind != sv.DiagModel {
		t.Fatalf("expected one ModelError, got %v", res.Diagnostics)
	}
}

func TestInternalSignalsAreNotPorts(t *testing.T) {
	src := `module m(a);
  input a;
  logic scratch;
endmodule`
	res := buildSrc(t, src)
	if len(res.Diagnostics) != 0 {
		t.Fatalf("internal signal must not be diagnosed: %v", res.Diagnostics)
	}
	if len(res.Modules[0].Ports) != 1 {
		t.Fatalf("internal signal must not become a port: %+v", res.Modules[0].Ports)
	}
}

func TestDuplicatePortFirstWins(t *testing.T) {
	src := "module m(input logic a, input bit a); endmodule"
	res := buildSrc(t, src)
	m := res.Modules[0]
	if len(m.Ports) != 1 {
		t.Fatalf("expected duplicate dropped: %+v", m.Ports)
	}
	if m.Ports[0].Datatype.Kind != sv.DataTypeLogic {
		t.Fatalf("first occurrence should win: %+v", m.Ports[0])
	}
	if len(res.Diagnostics) != 1 || res.Diagnostics[0].Kind != sv.DiagModel {
		t.Fatalf("expected one ModelError, got %v", res.Diagnostics)
	}
}

func TestDuplicateModulesBothKept(t *testing.T) {
	src := "module m(input logic a); endmodule\nmodule m(input logic b); endmodule"
	res := buildSrc(t, src)
	if len(res.Modules) != 2 {
		t.Fatalf("both modules should be kept: %+v", res.Modules)
	}
	if len(res.Diagnostics) != 1 || res.Diagnostics[0].Kind != sv.DiagModel {
		t.Fatalf("expected one ModelError, got %v", res.Diagnostics)
	}
}

func TestParametersAndInstances(t *testing.T) {
	src := `module top #(parameter int WIDTH = 8, localparam B = WIDTH/8)(input logic clk);
  sub u_sub (.clk(clk), .d(bus));
endmodule`
	res := buildSrc(t, src)
	m := res.Modules[0]
	if len(m.Parameters) != 2 {
		t.Fatalf("expected 2 parameters: %+v", m.Parameters)
	}
	w := m.Parameters[0]
	if w.Identifier != "WIDTH" || w.ParamType != sv.Parameter || w.Expression != "8" {
		t.Fatalf("WIDTH wrong: %+v", w)
	}
	if w.Datatype == nil || w.Datatype.Kind != sv.DataTypeInt {
		t.Fatalf("WIDTH datatype wrong: %+v", w.Datatype)
	}
	b := m.Parameters[1]
	if b.ParamType != sv.LocalParam || b.Datatype != nil {
		t.Fatalf("B wrong: %+v", b)
	}

	if len(m.Instances) != 1 {
		t.Fatalf("expected 1 instance: %+v", m.Instances)
	}
	inst := m.Instances[0]
	if inst.ModuleIdentifier != "sub" || inst.InstanceIdentifier != "u_sub" {
		t.Fatalf("instance wrong: %+v", inst)
	}
	if len(inst.Connections) != 2 || inst.Connections[0] != [2]string{"clk", "clk"} {
		t.Fatalf("connections wrong: %+v", inst.Connections)
	}
}

func TestPackageResolution(t *testing.T) {
	src := "package p;\n  parameter W = 4;\nendpackage"
	res := buildSrc(t, src)
	if len(res.Packages) != 1 {
		t.Fatalf("expected 1 package: %+v", res.Packages)
	}
	pkg := res.Packages[0]
	if pkg.Identifier != "p" || pkg.Filepath != "test.sv" || len(pkg.Parameters) != 1 {
		t.Fatalf("package wrong: %+v", pkg)
	}
}

func TestUnpackedDimensionForms(t *testing.T) {
	res := buildSrc(t, "module m(input logic a [3:0] [2]); endmodule")
	p := onePort(t, res)
	if len(p.UnpackedDimensions) != 2 {
		t.Fatalf("expected 2 unpacked dims: %+v", p.UnpackedDimensions)
	}
	if p.UnpackedDimensions[0] != (sv.SvUnpackedDimension{Left: "3", Right: "0"}) {
		t.Fatalf("range form wrong: %+v", p.UnpackedDimensions[0])
	}
	if p.UnpackedDimensions[1] != (sv.SvUnpackedDimension{Left: "2"}) {
		t.Fatalf("single-expression form wrong: %+v", p.UnpackedDimensions[1])
	}
}
