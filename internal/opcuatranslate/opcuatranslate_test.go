package opcuatranslate

import (
	"testing"
	"time"

	"github.com/chrontext/chrontext/internal/algebra"
)

// A Basic VQ translated with an Avg aggregate must produce one ReadProcessedDetails
// request per identifier, carrying the AggregateFunction_Average node id
// and the configured processing interval (spec.md §8 scenario 3).
func TestTranslate_GroupingIntervalAggregate(t *testing.T) {
	b := &algebra.BasicVirtualizedQuery{IDs: []string{"ns=2;s=Sensor1", "ns=2;s=Sensor2"}}
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	agg := &algebra.AggregateExpression{Op: algebra.AggAvg}

	reqs, err := Translate(b, func(id string) string { return id }, start, end, agg, 60000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(reqs) != 2 {
		t.Fatalf("expected one request per identifier, got %d", len(reqs))
	}
	for _, r := range reqs {
		if r.AggregateNodeID != AggregateFunctionAverage {
			t.Errorf("expected %s, got %s", AggregateFunctionAverage, r.AggregateNodeID)
		}
		if r.ProcessingIntervalMS != 60000 {
			t.Errorf("expected processing interval 60000, got %v", r.ProcessingIntervalMS)
		}
		if r.StartTime != start || r.EndTime != end {
			t.Errorf("expected the requested time range to be preserved, got %v-%v", r.StartTime, r.EndTime)
		}
	}
}

// With no aggregate expression, Translate produces a raw HistoryRead
// request (empty AggregateNodeID), not a ReadProcessedDetails shape.
func TestTranslate_RawHistoryReadWithoutAggregate(t *testing.T) {
	b := &algebra.BasicVirtualizedQuery{IDs: []string{"ns=2;s=Sensor1"}}
	reqs, err := Translate(b, func(id string) string { return id }, time.Time{}, time.Time{}, nil, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(reqs) != 1 || reqs[0].AggregateNodeID != "" {
		t.Fatalf("expected a raw history read with no aggregate node id, got %+v", reqs)
	}
}

// An aggregate op with no OPC-UA equivalent (e.g. a custom aggregate
// function) must error rather than silently produce an unaggregated read.
func TestTranslate_UnsupportedAggregateErrors(t *testing.T) {
	b := &algebra.BasicVirtualizedQuery{IDs: []string{"ns=2;s=Sensor1"}}
	agg := &algebra.AggregateExpression{Op: algebra.AggCustom, CustomIRI: "http://example.org/myAgg"}
	if _, err := Translate(b, func(id string) string { return id }, time.Time{}, time.Time{}, agg, 1000); err == nil {
		t.Fatal("expected an error for an unsupported aggregate op")
	}
}

// A Basic VQ with no identifiers at all cannot be translated into any
// HistoryRead request.
func TestTranslate_NoIdentifiersErrors(t *testing.T) {
	b := &algebra.BasicVirtualizedQuery{}
	if _, err := Translate(b, func(id string) string { return id }, time.Time{}, time.Time{}, nil, 0); err == nil {
		t.Fatal("expected an error when no identifiers are present")
	}
}
