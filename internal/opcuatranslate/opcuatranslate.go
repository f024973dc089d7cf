// Package opcuatranslate lowers a VirtualizedQuery into an OPC-UA
// HistoryRead or ReadProcessedDetails request, grounded on
// original_source/lib/virtualization/src/opcua.rs. Unlike the warehouse
// backends, OPC-UA's aggregation support is a fixed set of well-known
// node ids rather than arbitrary SQL, so the translator maps spec.md's
// AggregateOp vocabulary onto those ids instead of generating syntax.
package opcuatranslate

import (
	"fmt"
	"time"

	"github.com/chrontext/chrontext/internal/algebra"
	"github.com/chrontext/chrontext/internal/chronerrors"
)

// Well-known OPC-UA aggregate function node ids (namespace 0), per the
// OPC Foundation's Aggregates information model and mirrored by the
// original's OPCUA_AGG_FUNC_* constants.
const (
	AggregateFunctionTotal   = "AggregateFunction_Total"
	AggregateFunctionAverage = "AggregateFunction_Average"
	AggregateFunctionMinimum = "AggregateFunction_Minimum"
	AggregateFunctionMaximum = "AggregateFunction_Maximum"
	AggregateFunctionCount   = "AggregateFunction_Count"
)

func aggregateNodeID(op algebra.AggregateOp) (string, error) {
	switch op {
	case algebra.AggSum:
		return AggregateFunctionTotal, nil
	case algebra.AggAvg:
		return AggregateFunctionAverage, nil
	case algebra.AggMin:
		return AggregateFunctionMinimum, nil
	case algebra.AggMax:
		return AggregateFunctionMaximum, nil
	case algebra.AggCount:
		return AggregateFunctionCount, nil
	default:
		return "", fmt.Errorf("opcuatranslate: aggregate op %d has no OPC-UA aggregation node id", op)
	}
}

// HistoryReadRequest is the request this translator produces: a raw
// HistoryRead when no aggregation is pushed, or a ReadProcessedDetails
// request with a processing interval when vq carries a single Grouped
// aggregate (spec.md §8 scenario 3).
type HistoryReadRequest struct {
	NodeID                 string
	StartTime              time.Time
	EndTime                time.Time
	AggregateNodeID        string // empty for raw reads
	ProcessingIntervalMS   float64
	ReturnBounds           bool
}

// Translate builds the HistoryRead request(s) for a Basic VQ's resources,
// one per identifier/node-id, optionally aggregated.
func Translate(b *algebra.BasicVirtualizedQuery, nodeIDFor func(identifier string) string, start, end time.Time, agg *algebra.AggregateExpression, processingIntervalMS float64) ([]HistoryReadRequest, error) {
	ids := b.IDs
	if len(ids) == 0 {
		return nil, chronerrors.NewMissingResource("identifier")
	}

	var aggNodeID string
	if agg != nil {
		id, err := aggregateNodeID(agg.Op)
		if err != nil {
			return nil, err
		}
		aggNodeID = id
	}

	reqs := make([]HistoryReadRequest, 0, len(ids))
	for _, id := range ids {
		reqs = append(reqs, HistoryReadRequest{
			NodeID:               nodeIDFor(id),
			StartTime:            start,
			EndTime:              end,
			AggregateNodeID:      aggNodeID,
			ProcessingIntervalMS: processingIntervalMS,
		})
	}
	return reqs, nil
}
