// Package qcontext implements context addressing: the positional identifier
// that uniquely names every sub-expression in a graph-query algebra tree.
//
// Grounded on chrontext/src/query_context.rs (original_source): a Context is
// a path of PathEntry enumerants, and its string form doubles as the unique
// intermediate column name the combiner uses when materializing expression
// results into a dataframe.
package qcontext

import (
	"fmt"
	"strings"
)

// PathEntry is one step in a Context's path, naming the position of a
// sub-expression relative to its parent algebra node.
type PathEntry struct {
	kind string
	idx  int16 // only meaningful when hasIdx is true
	hasIdx bool
}

// String renders the PathEntry the way the original does, e.g. "InRight(3)".
func (p PathEntry) String() string {
	if p.hasIdx {
		return fmt.Sprintf("%s(%d)", p.kind, p.idx)
	}
	return p.kind
}

// Indexed PathEntry constructors (one entry per distinct index site).
func InRight(i int16) PathEntry          { return PathEntry{kind: "InRight", idx: i, hasIdx: true} }
func FunctionCallEntry(i int16) PathEntry { return PathEntry{kind: "FunctionCall", idx: i, hasIdx: true} }
func CoalesceEntry(i int16) PathEntry    { return PathEntry{kind: "Coalesce", idx: i, hasIdx: true} }
func OrderByExpression(i int16) PathEntry {
	return PathEntry{kind: "OrderByExpression", idx: i, hasIdx: true}
}
func GroupAggregation(i int16) PathEntry {
	return PathEntry{kind: "GroupAggregation", idx: i, hasIdx: true}
}

// Plain (non-indexed) PathEntry values. One per algebra operator position;
// every entry must carry an exposes/maintains classification below — missing
// an entry here is a bug, not a default.
var (
	BGP                 = PathEntry{kind: "BGP"}
	UnionLeftSide        = PathEntry{kind: "UnionLeftSide"}
	UnionRightSide       = PathEntry{kind: "UnionRightSide"}
	JoinLeftSide         = PathEntry{kind: "JoinLeftSide"}
	JoinRightSide        = PathEntry{kind: "JoinRightSide"}
	LeftJoinLeftSide     = PathEntry{kind: "LeftJoinLeftSide"}
	LeftJoinRightSide    = PathEntry{kind: "LeftJoinRightSide"}
	LeftJoinExpression   = PathEntry{kind: "LeftJoinExpression"}
	MinusLeftSide        = PathEntry{kind: "MinusLeftSide"}
	MinusRightSide       = PathEntry{kind: "MinusRightSide"}
	FilterInner          = PathEntry{kind: "FilterInner"}
	FilterExpression     = PathEntry{kind: "FilterExpression"}
	GraphInner           = PathEntry{kind: "GraphInner"}
	ExtendInner          = PathEntry{kind: "ExtendInner"}
	ExtendExpression     = PathEntry{kind: "ExtendExpression"}
	OrderByInner         = PathEntry{kind: "OrderByInner"}
	ProjectInner         = PathEntry{kind: "ProjectInner"}
	DistinctInner        = PathEntry{kind: "DistinctInner"}
	ReducedInner         = PathEntry{kind: "ReducedInner"}
	SliceInner           = PathEntry{kind: "SliceInner"}
	ServiceInner         = PathEntry{kind: "ServiceInner"}
	GroupInner           = PathEntry{kind: "GroupInner"}
	IfLeft               = PathEntry{kind: "IfLeft"}
	IfMiddle             = PathEntry{kind: "IfMiddle"}
	IfRight              = PathEntry{kind: "IfRight"}
	OrLeft               = PathEntry{kind: "OrLeft"}
	OrRight              = PathEntry{kind: "OrRight"}
	AndLeft              = PathEntry{kind: "AndLeft"}
	AndRight             = PathEntry{kind: "AndRight"}
	EqualLeft            = PathEntry{kind: "EqualLeft"}
	EqualRight           = PathEntry{kind: "EqualRight"}
	SameTermLeft         = PathEntry{kind: "SameTermLeft"}
	SameTermRight        = PathEntry{kind: "SameTermRight"}
	GreaterLeft          = PathEntry{kind: "GreaterLeft"}
	GreaterRight         = PathEntry{kind: "GreaterRight"}
	GreaterOrEqualLeft   = PathEntry{kind: "GreaterOrEqualLeft"}
	GreaterOrEqualRight  = PathEntry{kind: "GreaterOrEqualRight"}
	LessLeft             = PathEntry{kind: "LessLeft"}
	LessRight            = PathEntry{kind: "LessRight"}
	LessOrEqualLeft      = PathEntry{kind: "LessOrEqualLeft"}
	LessOrEqualRight     = PathEntry{kind: "LessOrEqualRight"}
	InLeft               = PathEntry{kind: "InLeft"}
	MultiplyLeft         = PathEntry{kind: "MultiplyLeft"}
	MultiplyRight        = PathEntry{kind: "MultiplyRight"}
	AddLeft              = PathEntry{kind: "AddLeft"}
	AddRight             = PathEntry{kind: "AddRight"}
	SubtractLeft         = PathEntry{kind: "SubtractLeft"}
	SubtractRight        = PathEntry{kind: "SubtractRight"}
	DivideLeft           = PathEntry{kind: "DivideLeft"}
	DivideRight          = PathEntry{kind: "DivideRight"}
	UnaryPlus            = PathEntry{kind: "UnaryPlus"}
	UnaryMinus           = PathEntry{kind: "UnaryMinus"}
	Not                  = PathEntry{kind: "Not"}
	Exists               = PathEntry{kind: "Exists"}
	AggregationOperation = PathEntry{kind: "AggregationOperation"}
	OrderingOperation    = PathEntry{kind: "OrderingOperation"}
)

// exposesVariables reports whether sub-solutions of this entry contribute
// visible bindings. Join sides do; filter/extend expressions don't.
func exposesVariables(p PathEntry) bool {
	switch p.kind {
	case "BGP", "UnionLeftSide", "UnionRightSide", "JoinLeftSide", "JoinRightSide",
		"LeftJoinLeftSide", "LeftJoinRightSide", "MinusLeftSide",
		"FilterInner", "GraphInner", "ExtendInner", "OrderByInner",
		"ProjectInner", "DistinctInner", "ReducedInner", "SliceInner",
		"ServiceInner", "GroupInner":
		return true
	default:
		return false
	}
}

// maintainsFullDownwardScope reports whether this entry introduces no new
// scope between its parent and children. Every expression operator does;
// every pattern operator doesn't.
func maintainsFullDownwardScope(p PathEntry) bool {
	switch p.kind {
	case "FilterExpression", "ExtendExpression", "OrderByExpression",
		"GroupAggregation", "IfLeft", "IfMiddle", "IfRight", "OrLeft", "OrRight",
		"AndLeft", "AndRight", "EqualLeft", "EqualRight", "SameTermLeft", "SameTermRight",
		"GreaterLeft", "GreaterRight", "GreaterOrEqualLeft", "GreaterOrEqualRight",
		"LessLeft", "LessRight", "LessOrEqualLeft", "LessOrEqualRight",
		"InLeft", "InRight", "MultiplyLeft", "MultiplyRight", "AddLeft", "AddRight",
		"SubtractLeft", "SubtractRight", "DivideLeft", "DivideRight",
		"UnaryPlus", "UnaryMinus", "Not", "Exists", "Coalesce", "FunctionCall",
		"AggregationOperation", "OrderingOperation":
		return true
	default:
		return false
	}
}

// Context is a positional address of a sub-expression in the algebra tree.
// Its string form is also used as a unique intermediate column name.
type Context struct {
	stringRep string
	path      []PathEntry
}

// Root is the empty context at the top of the algebra tree.
func Root() Context {
	return Context{}
}

// FromPath builds a Context by extending the root with each entry in order.
func FromPath(path []PathEntry) Context {
	ctx := Root()
	for _, p := range path {
		ctx = ctx.ExtensionWith(p)
	}
	return ctx
}

// ExtensionWith returns a new context whose path is the receiver's path with
// entry appended, and whose string form joins the parent's with a hyphen.
func (c Context) ExtensionWith(entry PathEntry) Context {
	path := make([]PathEntry, len(c.path), len(c.path)+1)
	copy(path, c.path)
	path = append(path, entry)

	var sb strings.Builder
	sb.WriteString(c.stringRep)
	if len(c.path) > 0 {
		sb.WriteByte('-')
	}
	sb.WriteString(entry.String())

	return Context{stringRep: sb.String(), path: path}
}

// AsStr returns the context's string form, used verbatim as a dataframe
// column name for intermediate expression results.
func (c Context) AsStr() string {
	return c.stringRep
}

// Path returns the entry path (read-only use expected; callers must not
// mutate the returned slice).
func (c Context) Path() []PathEntry {
	return c.path
}

// Contains reports whether entry appears anywhere on the context's path.
func (c Context) Contains(entry PathEntry) bool {
	for _, p := range c.path {
		if p == entry {
			return true
		}
	}
	return false
}

// InScope decides whether a variable binding from context c reaches other.
// Two contexts agree up to a common prefix; beyond the first divergent
// entry, c's side must all expose variables, and (unless partial) other's
// side must all maintain full downward scope.
func (c Context) InScope(other Context, partialScope bool) bool {
	minLen := len(c.path)
	if len(other.path) < minLen {
		minLen = len(other.path)
	}

	divergeAt := minLen
	for i := 0; i < minLen; i++ {
		if c.path[i] != other.path[i] {
			divergeAt = i
			break
		}
	}

	for _, entry := range c.path[divergeAt:] {
		if !exposesVariables(entry) {
			return false
		}
	}
	if !partialScope {
		for _, entry := range other.path[divergeAt:] {
			if !maintainsFullDownwardScope(entry) {
				return false
			}
		}
	}
	return true
}

// Equal reports structural equality of two contexts.
func (c Context) Equal(other Context) bool {
	return c.stringRep == other.stringRep
}

// Variable is a named symbol with string-equal identity.
type Variable struct {
	Name string
}

func NewVariable(name string) Variable { return Variable{Name: name} }

func (v Variable) String() string { return v.Name }

// VariableInContext pairs a variable with the context where it was bound.
type VariableInContext struct {
	Variable Variable
	Context  Context
}

func NewVariableInContext(v Variable, ctx Context) VariableInContext {
	return VariableInContext{Variable: v, Context: ctx}
}

// SameName reports whether v refers to the same variable name.
func (vc VariableInContext) SameName(v Variable) bool {
	return vc.Variable.Name == v.Name
}

// InScope delegates to the underlying context's InScope.
func (vc VariableInContext) InScope(ctx Context, partialScope bool) bool {
	return vc.Context.InScope(ctx, partialScope)
}

// Equivalent reports whether variable at ctx is the same binding as vc,
// under full downward scope.
func (vc VariableInContext) Equivalent(variable Variable, ctx Context) bool {
	return vc.SameName(variable) && vc.InScope(ctx, false)
}

// Partial reports whether variable at ctx is the same binding as vc, under
// partial scope (a looser equivalence used when matching BVQ subjects).
func (vc VariableInContext) Partial(variable Variable, ctx Context) bool {
	return vc.SameName(variable) && vc.InScope(ctx, true)
}
