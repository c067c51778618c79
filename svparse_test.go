package svparse

import (
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"

	"github.com/hdlkit/svparse/sv"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}

func mustRead(t *testing.T, path string) *sv.ParseResult {
	t.Helper()
	res, err := ReadSVFile(path)
	if err != nil {
		t.Fatalf("ReadSVFile(%s): %v", path, err)
	}
	return res
}

func findModule(t *testing.T, res *sv.ParseResult, name string) sv.SvModule {
	t.Helper()
	for _, m := range res.Modules {
		if m.Identifier == name {
			return m
		}
	}
	t.Fatalf("no module %q in result: %+v", name, res.Modules)
	return sv.SvModule{}
}

func TestReadSVFile(t *testing.T) {
	path := filepath.Join("testdata", "ansi_module_a.sv")
	res := mustRead(t, path)
	if len(res.Diagnostics) != 0 {
		t.Fatalf("unexpected diagnostics: %v", res.Diagnostics)
	}

	m := findModule(t, res, "ansi_module_a")
	if m.Filepath != path {
		t.Fatalf("filepath wrong: %q", m.Filepath)
	}
	if len(m.Ports) != 4 {
		t.Fatalf("expected 4 ports, got %+v", m.Ports)
	}

	clk := m.Ports[0]
	if clk.Identifier != "clk_i" || clk.Direction != sv.DirectionInput ||
		clk.Datakind != sv.KindVariable || clk.Datatype.Kind != sv.DataTypeLogic {
		t.Fatalf("clk_i wrong: %+v", clk)
	}

	// rst_ni carries nothing but a name; it copies clk_i's declaration.
	rst := m.Ports[1]
	if rst.Identifier != "rst_ni" || rst.Direction != sv.DirectionInput ||
		rst.Datatype.Kind != sv.DataTypeLogic {
		t.Fatalf("rst_ni wrong: %+v", rst)
	}

	data := m.Ports[2]
	if data.Direction != sv.DirectionOutput || data.Datakind != sv.KindNet ||
		data.NetType != sv.NetWire {
		t.Fatalf("data_o wrong: %+v", data)
	}
	if len(data.PackedDimensions) != 1 || data.PackedDimensions[0].Msb != "7" {
		t.Fatalf("data_o dims wrong: %+v", data.PackedDimensions)
	}

	bus := m.Ports[3]
	if bus.Direction != sv.DirectionInout || bus.NetType != sv.NetTri {
		t.Fatalf("bus_io wrong: %+v", bus)
	}
}

func TestReadSVFileMissing(t *testing.T) {
	res, err := ReadSVFile(filepath.Join("testdata", "no_such_file.sv"))
	if err == nil {
		t.Fatalf("expected an error for a missing file, got %+v", res)
	}
	if res != nil {
		t.Fatalf("result must be nil on read failure, got %+v", res)
	}
}

func TestReadSVFileIsDeterministic(t *testing.T) {
	path := filepath.Join("testdata", "ansi_module_a.sv")
	first := mustRead(t, path)
	second := mustRead(t, path)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("two reads of the same file differ")
	}
}

func TestPartialRecovery(t *testing.T) {
	res := mustRead(t, filepath.Join("testdata", "broken.sv"))
	if len(res.Diagnostics) == 0 {
		t.Fatalf("expected diagnostics for the broken module")
	}
	for _, d := range res.Diagnostics {
		if d.Kind != sv.DiagParse {
			t.Fatalf("expected only ParseErrors, got %v", d)
		}
	}
	m := findModule(t, res, "survivor")
	if len(m.Ports) != 1 || m.Ports[0].Direction != sv.DirectionOutput {
		t.Fatalf("survivor should parse cleanly: %+v", m)
	}
}

func TestUnterminatedStringKeepsValidModules(t *testing.T) {
	src := `module first(input logic a);
  initial $display("never closed;
endmodule
module second(output logic y);
endmodule`
	res := ParseSource("strings.sv", src)

	lexErrs := 0
	for _, d := range res.Diagnostics {
		if d.Kind == sv.DiagLex {
			lexErrs++
		}
	}
	if lexErrs != 1 {
		t.Fatalf("expected exactly one LexError, got %v", res.Diagnostics)
	}

	m := findModule(t, res, "first")
	if len(m.Ports) != 1 || m.Ports[0].Identifier != "a" {
		t.Fatalf("module before the bad string lost its port: %+v", m.Ports)
	}
	m = findModule(t, res, "second")
	if len(m.Ports) != 1 || m.Ports[0].Direction != sv.DirectionOutput {
		t.Fatalf("module after the bad string lost its port: %+v", m.Ports)
	}
}

func TestIncludeAndMacroExpansion(t *testing.T) {
	res := mustRead(t, filepath.Join("testdata", "inc_top.sv"))
	if len(res.Diagnostics) != 0 {
		t.Fatalf("unexpected diagnostics: %v", res.Diagnostics)
	}
	m := findModule(t, res, "inc_top")
	dims := m.Ports[0].PackedDimensions
	if len(dims) != 1 || dims[0].Msb != "8-1" || dims[0].Lsb != "0" {
		t.Fatalf("macro did not expand into the range: %+v", dims)
	}
}

func TestIncludeCycleDiagnosed(t *testing.T) {
	res := mustRead(t, filepath.Join("testdata", "cycle_top.sv"))
	found := false
	for _, d := range res.Diagnostics {
		if d.Kind == sv.DiagPreproc {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a PreprocError for the include cycle, got %v", res.Diagnostics)
	}
	// The cycle must not suppress the module after the includes.
	if m := findModule(t, res, "cycle_top"); len(m.Ports) != 1 {
		t.Fatalf("module after the cycle lost: %+v", m)
	}
}

func TestReadSVFileOptsDefines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cond.sv")
	src := "`ifdef WIDE\nmodule m(input logic [15:0] d);\n`else\nmodule m(input logic [7:0] d);\n`endif\nendmodule\n"
	writeFile(t, path, src)

	res, err := ReadSVFileOpts(path, Options{Defines: map[string]string{"WIDE": "1"}})
	if err != nil {
		t.Fatalf("ReadSVFileOpts: %v", err)
	}
	dims := findModule(t, res, "m").Ports[0].PackedDimensions
	if len(dims) != 1 || dims[0].Msb != "15" {
		t.Fatalf("define did not select the wide branch: %+v", dims)
	}
}

func TestReadSVFileOptsIncludeDirs(t *testing.T) {
	incDir := t.TempDir()
	srcDir := t.TempDir()
	writeFile(t, filepath.Join(incDir, "depth.svh"), "`define DEPTH 4\n")
	path := filepath.Join(srcDir, "top.sv")
	writeFile(t, path, "`include <depth.svh>\nmodule top(input logic [`DEPTH:0] d);\nendmodule\n")

	res, err := ReadSVFileOpts(path, Options{IncludeDirs: []string{incDir}})
	if err != nil {
		t.Fatalf("ReadSVFileOpts: %v", err)
	}
	if len(res.Diagnostics) != 0 {
		t.Fatalf("unexpected diagnostics: %v", res.Diagnostics)
	}
	dims := findModule(t, res, "top").Ports[0].PackedDimensions
	if len(dims) != 1 || dims[0].Msb != "4" {
		t.Fatalf("search-dir include failed: %+v", dims)
	}
}

func TestParseSourceRendering(t *testing.T) {
	res := ParseSource("inline.sv", "module m(input logic a, output wire b); endmodule")
	m := findModule(t, res, "m")

	a := m.Ports[0]
	if a.Direction.String() != "Input" || a.Datakind.String() != "Variable" || a.Datatype.String() != "Logic" {
		t.Fatalf("renderings wrong: %v %v %v", a.Direction, a.Datakind, a.Datatype)
	}
	b := m.Ports[1]
	if b.Direction.String() != "Output" || b.Datakind.String() != "Net" || b.Datatype.String() != "Wire" {
		t.Fatalf("renderings wrong: %v %v %v", b.Direction, b.Datakind, b.Datatype)
	}
}

func TestConcurrentReads(t *testing.T) {
	path := filepath.Join("testdata", "ansi_module_a.sv")
	want := mustRead(t, path)

	var wg sync.WaitGroup
	results := make([]*sv.ParseResult, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := ReadSVFile(path)
			if err != nil {
				t.Errorf("ReadSVFile: %v", err)
				return
			}
			results[i] = res
		}(i)
	}
	wg.Wait()

	for i, res := range results {
		if !reflect.DeepEqual(res, want) {
			t.Fatalf("concurrent read %d differs", i)
		}
	}
}
