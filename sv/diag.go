package sv

import "fmt"

// DiagKind classifies a diagnostic by the pipeline stage that produced it.
type DiagKind int

const (
	DiagPreproc DiagKind = iota
	DiagLex
	DiagParse
	DiagModel
)

func (k DiagKind) String() string {
	switch k {
	case DiagPreproc:
		return "PreprocError"
	case DiagLex:
		return "LexError"
	case DiagParse:
		return "ParseError"
	case DiagModel:
		return "ModelError"
	}
	return fmt.Sprintf("DiagKind(%d)", int(k))
}

func (k DiagKind) MarshalJSON() ([]byte, error) { return quoted(k.String()) }

// Diagnostic is a non-fatal recorded finding. Only an unreadable input file
// fails a parse outright; everything else ends up here.
type Diagnostic struct {
	Kind    DiagKind `json:"kind"`
	File    string   `json:"file"`
	Line    int      `json:"line"`
	Col     int      `json:"col"`
	Message string   `json:"message"`
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s:%d:%d: %s: %s", d.File, d.Line, d.Col, d.Kind, d.Message)
}
