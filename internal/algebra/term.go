// Package algebra defines the graph-query algebra: triple patterns,
// expressions, aggregate expressions, and the operator tree that the
// preprocessor/rewriter/preparer/combiner pipeline walks.
//
// Grounded on spargebra::algebra (original_source, referenced throughout
// chrontext/src) and shaped like the teacher's federation.Predicate/
// Aggregation/OrderByClause value types in internal/federation/analyzer.go.
package algebra

import "github.com/chrontext/chrontext/internal/qcontext"

// RDFNodeType classifies the kind of RDF term a column holds.
type RDFNodeType int

const (
	NodeTypeNone RDFNodeType = iota
	NodeTypeIRI
	NodeTypeBlank
	NodeTypeLiteral
	NodeTypeMultiple
)

// Literal is an RDF literal: a lexical value, a datatype IRI, and an
// optional language tag.
type Literal struct {
	Value    string
	Datatype string // datatype IRI, e.g. "http://www.w3.org/2001/XMLSchema#integer"
	Lang     string
}

// Term is a graph term: IRI, blank node, literal, or variable.
type Term struct {
	IRI      string
	Blank    string
	Literal  *Literal
	Variable *qcontext.Variable
}

func NewIRITerm(iri string) Term           { return Term{IRI: iri} }
func NewBlankTerm(id string) Term          { return Term{Blank: id} }
func NewLiteralTerm(l Literal) Term        { return Term{Literal: &l} }
func NewVariableTerm(v qcontext.Variable) Term { return Term{Variable: &v} }

func (t Term) IsVariable() bool { return t.Variable != nil }
func (t Term) IsBlank() bool    { return t.Blank != "" }

// TriplePattern is a single (subject, predicate, object) pattern in a BGP.
type TriplePattern struct {
	Subject   Term
	Predicate string // predicate IRI; property paths are carried in Path, not here
	Object    Term
}

// Path represents a property-path expression; it is forwarded to the
// context store unchanged (spec.md §1: "does not implement property-path
// evaluation itself").
type PathPattern struct {
	Subject Term
	Path    string // opaque path expression text, passed through verbatim
	Object  Term
}
