package algebra

import "github.com/chrontext/chrontext/internal/qcontext"

// PatternKind discriminates the graph-pattern operator sum type. One
// variant per spargebra::algebra::GraphPattern arm (original_source).
type PatternKind int

const (
	PatternBGP PatternKind = iota
	PatternPath
	PatternJoin
	PatternLeftJoin
	PatternUnion
	PatternMinus
	PatternFilter
	PatternGraph
	PatternExtend
	PatternOrderBy
	PatternProject
	PatternDistinct
	PatternReduced
	PatternSlice
	PatternGroup
	PatternService
	PatternValues
)

// AggregateOp identifies the kind of aggregate expression.
type AggregateOp int

const (
	AggCount AggregateOp = iota
	AggSum
	AggAvg
	AggMin
	AggMax
	AggSample
	AggGroupConcat
	AggCustom
)

// AggregateExpression is one aggregate target in a Group operator's
// aggregate list, e.g. (AVG(?v) AS ?avg) or COUNT(*).
type AggregateExpression struct {
	Op       AggregateOp
	Distinct bool

	// Expr is nil for Count(*) (count-star form).
	Expr *Expression

	// GroupConcat-only separator, empty means the default " ".
	Separator string

	// Custom aggregate function IRI, populated when Op == AggCustom.
	CustomIRI string
}

// OrderExpression is one ORDER BY key: an expression plus its direction.
type OrderExpression struct {
	Expr       Expression
	Descending bool
}

// Pattern is the graph-query algebra operator tree. Exactly one field
// group is populated according to Kind.
type Pattern struct {
	Kind PatternKind

	// BGP
	TriplePatterns []TriplePattern

	// BGP: virtualized sub-queries the rewrite stage extracted from this
	// basic graph pattern's hasDataPoint/hasValue/hasTimestamp triples.
	// They travel with the BGP node itself (rather than bubbling up to
	// an ancestor) so the combiner can join their results in at exactly
	// the point the original pattern required them.
	VQs []*BasicVirtualizedQuery

	// Path
	PathPattern *PathPattern

	// Join, LeftJoin, Union, Minus: Left/Right are the two operands
	Left  *Pattern
	Right *Pattern

	// LeftJoin: optional filter expression evaluated against the join
	LeftJoinExpression *Expression

	// Filter, Extend, OrderBy, Project, Distinct, Reduced, Slice, Group,
	// Graph, Service: Inner is the single child operand
	Inner *Pattern

	// Filter
	FilterExpression *Expression

	// Graph
	GraphName Term

	// Extend: bind Expression as Variable
	ExtendVariable   *qcontext.Variable
	ExtendExpression *Expression

	// OrderBy
	OrderExpressions []OrderExpression

	// Project
	ProjectVariables []qcontext.Variable

	// Slice
	SliceOffset uint64
	SliceLength *uint64 // nil means unbounded

	// Group
	GroupVariables  []qcontext.Variable
	GroupAggregates []GroupAggregateBinding

	// Service: opaque pass-through to an external SPARQL service
	ServiceName  Term
	ServiceInner *Pattern
	ServiceSilent bool

	// Values: an inline VALUES block
	ValuesVariables []qcontext.Variable
	ValuesBindings  [][]*Term
}

// GroupAggregateBinding binds an AggregateExpression to the variable it
// produces, e.g. (AVG(?v) AS ?avg) inside a GROUP BY's aggregate list.
type GroupAggregateBinding struct {
	Variable  qcontext.Variable
	Aggregate AggregateExpression
}
