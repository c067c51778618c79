// Package svparse reads SystemVerilog source and returns a structured model
// of the declared modules, ports and packages. The pipeline is strictly
// linear: preprocess, lex, parse, resolve. Malformed source never fails a
// call; it degrades into diagnostics on the result. The only error return
// is an unreadable input file.
package svparse

import (
	"fmt"
	"os"

	"github.com/hdlkit/svparse/internal/lexer"
	"github.com/hdlkit/svparse/internal/model"
	"github.com/hdlkit/svparse/internal/parser"
	"github.com/hdlkit/svparse/internal/preproc"
	"github.com/hdlkit/svparse/sv"
)

// Options controls preprocessing of the input file.
type Options struct {
	// IncludeDirs are searched, in order, for `include files that do not
	// resolve relative to the including file.
	IncludeDirs []string
	// Defines seeds the macro table before the first line is read, as if
	// each entry had been `define-d on the command line.
	Defines map[string]string
}

// ReadSVFile parses the SystemVerilog file at path. The error is non-nil
// only when the file cannot be read; everything else, down to a file of
// garbage, produces a ParseResult whose diagnostics describe the damage.
func ReadSVFile(path string) (*sv.ParseResult, error) {
	return ReadSVFileOpts(path, Options{})
}

// ReadSVFileOpts is ReadSVFile with explicit preprocessor options.
func ReadSVFileOpts(path string, opts Options) (*sv.ParseResult, error) {
	text, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return parse(path, string(text), opts), nil
}

// ParseSource parses in-memory source text. name stands in for the file
// path in positions and results; includes resolve relative to it.
func ParseSource(name, text string) *sv.ParseResult {
	return parse(name, text, Options{})
}

func parse(path, text string, opts Options) *sv.ParseResult {
	lines, preprocDiags := preproc.Expand(path, text, preproc.Options{
		IncludeDirs: opts.IncludeDirs,
		Defines:     opts.Defines,
	})
	tokens, lexDiags := lexer.Lex(lines)
	unit, parseDiags := parser.Parse(tokens)
	res := model.Build(unit, path)

	diags := make([]sv.Diagnostic, 0,
		len(preprocDiags)+len(lexDiags)+len(parseDiags)+len(res.Diagnostics))
	diags = append(diags, preprocDiags...)
	diags = append(diags, lexDiags...)
	diags = append(diags, parseDiags...)
	diags = append(diags, res.Diagnostics...)
	res.Diagnostics = diags
	return res
}
