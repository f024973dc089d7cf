package algebra

import "github.com/chrontext/chrontext/internal/qcontext"

// FunctionID identifies a built-in or custom function call.
type FunctionID int

const (
	FuncYear FunctionID = iota
	FuncMonth
	FuncDay
	FuncHours
	FuncMinutes
	FuncSeconds
	FuncAbs
	FuncCeil
	FuncFloor
	FuncRound
	FuncConcat
	FuncCustom
)

// Custom function IRIs recognized per spec.md §4.8 / §6.4.
const (
	CustomXSDInteger                     = "http://www.w3.org/2001/XMLSchema#integer"
	CustomXSDString                      = "http://www.w3.org/2001/XMLSchema#string"
	CustomDateTimeAsNanos                = "https://github.com/DataTreehouse/chrontext#DateTimeAsNanos"
	CustomDateTimeAsSeconds              = "https://github.com/DataTreehouse/chrontext#DateTimeAsSeconds"
	CustomNanosAsDateTime                = "https://github.com/DataTreehouse/chrontext#NanosAsDateTime"
	CustomSecondsAsDateTime              = "https://github.com/DataTreehouse/chrontext#SecondsAsDateTime"
	CustomModulus                        = "https://github.com/DataTreehouse/chrontext#modulus"
	CustomFloorDateTimeToSecondsInterval = "https://github.com/DataTreehouse/chrontext#FloorDateTimeToSecondsInterval"
)

// ExprKind discriminates the Expression sum type.
type ExprKind int

const (
	ExprNamedNode ExprKind = iota
	ExprLiteral
	ExprVariable
	ExprAnd
	ExprOr
	ExprNot
	ExprEqual
	ExprSameTerm
	ExprGreater
	ExprGreaterOrEqual
	ExprLess
	ExprLessOrEqual
	ExprIn
	ExprAdd
	ExprSubtract
	ExprMultiply
	ExprDivide
	ExprUnaryPlus
	ExprUnaryMinus
	ExprIf
	ExprCoalesce
	ExprBound
	ExprExists
	ExprFunctionCall
)

// Expression is the graph-query expression sum type. Exactly one field
// group is populated according to Kind; this mirrors spargebra::algebra::Expression
// closely enough that the rewriter and translator can pattern-match on Kind.
type Expression struct {
	Kind ExprKind

	NamedNode string
	Literal   *Literal
	Variable  *qcontext.Variable

	Left  *Expression
	Right *Expression
	Inner *Expression

	// In: left IN (right...)
	InAlternatives []Expression

	// If: {If: cond, Then: left, Else: right} reuses Left=Then, Right=Else, Inner=cond
	// Coalesce
	CoalesceArgs []Expression

	// FunctionCall
	Function  FunctionID
	CustomIRI string
	Args      []Expression

	// Exists: a standalone sub-pattern
	ExistsPattern *Pattern
}
