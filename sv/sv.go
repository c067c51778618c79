// Package sv is the result model emitted by the parser: modules, ports,
// parameters and the closed enumerations describing them. Values are built
// once by the model builder and never mutated afterwards; callers own the
// returned ParseResult outright.
package sv

import "fmt"

// SvPortDirection is the direction of a module port.
type SvPortDirection int

const (
	DirectionInput SvPortDirection = iota
	DirectionOutput
	DirectionInout
	DirectionRef
	DirectionInterface
)

func (d SvPortDirection) String() string {
	switch d {
	case DirectionInput:
		return "Input"
	case DirectionOutput:
		return "Output"
	case DirectionInout:
		return "Inout"
	case DirectionRef:
		return "Ref"
	case DirectionInterface:
		return "Interface"
	}
	return fmt.Sprintf("SvPortDirection(%d)", int(d))
}

func (d SvPortDirection) MarshalJSON() ([]byte, error) { return quoted(d.String()) }

// SvDataKind distinguishes nets (continuously driven connections) from
// variables (procedurally assigned storage).
type SvDataKind int

const (
	KindVariable SvDataKind = iota
	KindNet
)

func (k SvDataKind) String() string {
	switch k {
	case KindNet:
		return "Net"
	case KindVariable:
		return "Variable"
	}
	return fmt.Sprintf("SvDataKind(%d)", int(k))
}

func (k SvDataKind) MarshalJSON() ([]byte, error) { return quoted(k.String()) }

// SvDataTypeKind is the base type of a port or parameter.
type SvDataTypeKind int

const (
	DataTypeLogic SvDataTypeKind = iota
	DataTypeBit
	DataTypeReg
	DataTypeWire
	DataTypeInt
	DataTypeInteger
	DataTypeShortInt
	DataTypeLongInt
	DataTypeByte
	DataTypeReal
	DataTypeShortReal
	DataTypeTime
	DataTypeVoid
	DataTypeUserDefined
)

func (k SvDataTypeKind) String() string {
	switch k {
	case DataTypeLogic:
		return "Logic"
	case DataTypeBit:
		return "Bit"
	case DataTypeReg:
		return "Reg"
	case DataTypeWire:
		return "Wire"
	case DataTypeInt:
		return "Int"
	case DataTypeInteger:
		return "Integer"
	case DataTypeShortInt:
		return "ShortInt"
	case DataTypeLongInt:
		return "LongInt"
	case DataTypeByte:
		return "Byte"
	case DataTypeReal:
		return "Real"
	case DataTypeShortReal:
		return "ShortReal"
	case DataTypeTime:
		return "Time"
	case DataTypeVoid:
		return "Void"
	case DataTypeUserDefined:
		return "UserDefined"
	}
	return fmt.Sprintf("SvDataTypeKind(%d)", int(k))
}

func (k SvDataTypeKind) MarshalJSON() ([]byte, error) { return quoted(k.String()) }

// SvDataType is a resolved data type. Name is populated only for
// UserDefined kinds and holds the referenced type or interface identifier.
type SvDataType struct {
	Kind SvDataTypeKind `json:"kind"`
	Name string         `json:"name,omitempty"`
}

func (t SvDataType) String() string { return t.Kind.String() }

// UserDefined builds a user-defined data type referencing name.
func UserDefined(name string) SvDataType {
	return SvDataType{Kind: DataTypeUserDefined, Name: name}
}

// SvNetType is the concrete net flavour of a Net-kind port. NetNone marks
// Variable-kind ports.
type SvNetType int

const (
	NetNone SvNetType = iota
	NetWire
	NetUwire
	NetTri
	NetWor
	NetWand
	NetTriand
	NetTrior
	NetTrireg
	NetTri0
	NetTri1
	NetSupply0
	NetSupply1
)

func (n SvNetType) String() string {
	switch n {
	case NetNone:
		return "None"
	case NetWire:
		return "Wire"
	case NetUwire:
		return "Uwire"
	case NetTri:
		return "Tri"
	case NetWor:
		return "Wor"
	case NetWand:
		return "Wand"
	case NetTriand:
		return "Triand"
	case NetTrior:
		return "Trior"
	case NetTrireg:
		return "Trireg"
	case NetTri0:
		return "Tri0"
	case NetTri1:
		return "Tri1"
	case NetSupply0:
		return "Supply0"
	case NetSupply1:
		return "Supply1"
	}
	return fmt.Sprintf("SvNetType(%d)", int(n))
}

func (n SvNetType) MarshalJSON() ([]byte, error) { return quoted(n.String()) }

// SvSignedness is the signedness of a port or parameter.
type SvSignedness int

const (
	SignednessNone SvSignedness = iota
	Signed
	Unsigned
)

func (s SvSignedness) String() string {
	switch s {
	case SignednessNone:
		return "None"
	case Signed:
		return "Signed"
	case Unsigned:
		return "Unsigned"
	}
	return fmt.Sprintf("SvSignedness(%d)", int(s))
}

func (s SvSignedness) MarshalJSON() ([]byte, error) { return quoted(s.String()) }

// SvParamType distinguishes overridable parameters from localparams.
type SvParamType int

const (
	Parameter SvParamType = iota
	LocalParam
)

func (p SvParamType) String() string {
	switch p {
	case Parameter:
		return "Parameter"
	case LocalParam:
		return "LocalParam"
	}
	return fmt.Sprintf("SvParamType(%d)", int(p))
}

func (p SvParamType) MarshalJSON() ([]byte, error) { return quoted(p.String()) }

// SvPackedDimension is one packed range, e.g. [7:0]. Bounds are kept as
// unevaluated expression text.
type SvPackedDimension struct {
	Msb string `json:"msb"`
	Lsb string `json:"lsb"`
}

// SvUnpackedDimension is one unpacked range. Right is empty for the
// single-expression form ([4] rather than [0:3]).
type SvUnpackedDimension struct {
	Left  string `json:"left"`
	Right string `json:"right,omitempty"`
}

// SvPort is one resolved module port. Direction, kind and type are always
// concrete; defaults have been applied before the port is emitted.
type SvPort struct {
	Identifier         string                `json:"identifier"`
	Direction          SvPortDirection       `json:"direction"`
	Datakind           SvDataKind            `json:"datakind"`
	Datatype           SvDataType            `json:"datatype"`
	NetType            SvNetType             `json:"nettype"`
	Signedness         SvSignedness          `json:"signedness"`
	PackedDimensions   []SvPackedDimension   `json:"packed_dimensions,omitempty"`
	UnpackedDimensions []SvUnpackedDimension `json:"unpacked_dimensions,omitempty"`
}

// SvParameter is a parameter or localparam declaration. Datatype is nil for
// untyped parameters; Expression is the default value text, empty if none.
type SvParameter struct {
	Identifier string      `json:"identifier"`
	ParamType  SvParamType `json:"paramtype"`
	Datatype   *SvDataType `json:"datatype,omitempty"`
	Expression string      `json:"expression,omitempty"`
}

// SvInstance is a module instantiation inside a module body. Each
// connection is a (port, expression) pair; positional connections carry an
// empty port name.
type SvInstance struct {
	ModuleIdentifier   string      `json:"module_identifier"`
	InstanceIdentifier string      `json:"instance_identifier"`
	Connections        [][2]string `json:"connections,omitempty"`
}

// SvModule is one module declaration. Ports preserves declaration order;
// positional connection at instantiation depends on it.
type SvModule struct {
	Identifier string        `json:"identifier"`
	Ports      []SvPort      `json:"ports"`
	Parameters []SvParameter `json:"parameters,omitempty"`
	Instances  []SvInstance  `json:"instances,omitempty"`
	Filepath   string        `json:"filepath"`
}

// SvPackage is one package declaration.
type SvPackage struct {
	Identifier string        `json:"identifier"`
	Parameters []SvParameter `json:"parameters,omitempty"`
	Filepath   string        `json:"filepath"`
}

// ParseResult is the terminal artifact of one parse: every module and
// package that could be recovered, plus every non-fatal finding.
type ParseResult struct {
	Modules     []SvModule   `json:"modules"`
	Packages    []SvPackage  `json:"packages"`
	Diagnostics []Diagnostic `json:"diagnostics"`
}

func quoted(s string) ([]byte, error) {
	b := make([]byte, 0, len(s)+2)
	b = append(b, '"')
	b = append(b, s...)
	b = append(b, '"')
	return b, nil
}
