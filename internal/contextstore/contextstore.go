// Package contextstore implements the client side of spec.md §6.1: the
// interface through which the combiner runs the graph-only residual
// query against whatever triple store backs the context graph, plus an
// HTTP (SPARQL 1.1 Protocol) implementation and an in-memory one for
// tests.
//
// Grounded on the teacher's internal/cli.GatewayClient, which talks to
// the canonica gateway with a plain net/http client and JSON bodies;
// the equivalent shape here speaks the W3C SPARQL Protocol instead of a
// bespoke JSON API.
package contextstore

import (
	"context"

	"github.com/chrontext/chrontext/internal/dataframe"
)

// ContextStore executes a SPARQL query against the context graph and
// returns its solution mappings. Implementations only ever receive
// graph-only queries: the rewrite stage has already extracted the
// hasDataPoint/hasValue/hasTimestamp triples, while hasTimeseries,
// hasResource, hasExternalId and hasDatatype triples remain as graph facts.
type ContextStore interface {
	Query(ctx context.Context, sparql string) (*dataframe.SolutionMappings, error)
}
