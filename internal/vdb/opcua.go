package vdb

import (
	"context"
	"fmt"
	"time"

	"github.com/gopcua/opcua"
	"github.com/gopcua/opcua/ua"

	"github.com/chrontext/chrontext/internal/algebra"
	"github.com/chrontext/chrontext/internal/chronerrors"
	"github.com/chrontext/chrontext/internal/dataframe"
	"github.com/chrontext/chrontext/internal/opcuatranslate"
	"github.com/chrontext/chrontext/internal/prepare"
)

// OPCUAAdapter queries process historian data over OPC-UA HistoryRead,
// grounded on original_source/lib/virtualization/src/opcua.rs. Not part
// of the teacher's stack; gopcua is the only mature OPC-UA client in the
// Go ecosystem, so it is pulled in directly rather than reaching for a
// warehouse driver that cannot speak this protocol.
type OPCUAAdapter struct {
	client               *opcua.Client
	namespace            uint16
	processingIntervalMS float64
}

func NewOPCUAAdapter(ctx context.Context, endpointURL string, namespace uint16, processingIntervalMS float64) (*OPCUAAdapter, error) {
	client, err := opcua.NewClient(endpointURL, opcua.SecurityMode(ua.MessageSecurityModeNone))
	if err != nil {
		return nil, chronerrors.NewVirtualizedDatabaseError("opcua", err)
	}
	if err := client.Connect(ctx); err != nil {
		return nil, chronerrors.NewVirtualizedDatabaseError("opcua", err)
	}
	return &OPCUAAdapter{client: client, namespace: namespace, processingIntervalMS: processingIntervalMS}, nil
}

func (a *OPCUAAdapter) Name() string { return "opcua" }

func (a *OPCUAAdapter) PushdownSettings() prepare.Capabilities {
	return prepare.DefaultCapabilities("opcua")
}

func (a *OPCUAAdapter) Ping(ctx context.Context) error {
	_, err := a.client.FindServers(ctx)
	return err
}

func (a *OPCUAAdapter) Close() error {
	return a.client.Close(context.Background())
}

func (a *OPCUAAdapter) nodeIDFor(identifier string) string {
	return fmt.Sprintf("ns=%d;s=%s", a.namespace, identifier)
}

// basicAndAggregate pulls the leaf BasicVirtualizedQuery and, when vq is
// Grouped with a single pushed aggregation, that aggregation, out of vq.
// unwrapToBasic (shared with the database/sql-backed adapters) has no
// notion of Grouped, so that one layer is peeled off here first.
func basicAndAggregate(vq *algebra.VirtualizedQuery) (*algebra.BasicVirtualizedQuery, *algebra.AggregateExpression, error) {
	if vq.Kind == algebra.VQGrouped {
		basic, _, err := unwrapToBasic(vq.Grouped.VQ)
		if err != nil {
			return nil, nil, err
		}
		if len(vq.Grouped.Aggregations) != 1 {
			return nil, nil, chronerrors.NewTimeseriesQueryTypeNotSupported("opcua supports pushing down exactly one aggregation per group")
		}
		return basic, &vq.Grouped.Aggregations[0].Aggregate, nil
	}
	basic, _, err := unwrapToBasic(vq)
	return basic, nil, err
}

// Query executes a HistoryRead (or ReadProcessedDetails, when vq carries
// a pushed aggregate) against the historian for each of vq's resource
// identifiers and stitches the per-identifier results back together.
func (a *OPCUAAdapter) Query(ctx context.Context, vq *algebra.VirtualizedQuery) (*dataframe.SolutionMappings, error) {
	basic, agg, err := basicAndAggregate(vq)
	if err != nil {
		return nil, err
	}

	start, end := extractQueryTimeRange(basic)
	reqs, err := opcuatranslate.Translate(basic, a.nodeIDFor, start, end, agg, a.processingIntervalMS)
	if err != nil {
		return nil, err
	}

	types := map[string]dataframe.RDFNodeTypeSet{}
	if basic.IdentifierVariable != nil {
		types[basic.IdentifierVariable.Name] = dataframe.RDFNodeTypeSet{IRI: true}
	}
	if basic.ValueVariable != nil {
		types[basic.ValueVariable.Variable.Name] = dataframe.RDFNodeTypeSet{Literal: true}
	}
	if basic.TimestampVariable != nil {
		types[basic.TimestampVariable.Variable.Name] = dataframe.RDFNodeTypeSet{Literal: true}
	}
	sm := dataframe.NewSolutionMappings(types)

	for i, req := range reqs {
		dataValues, err := a.historyRead(ctx, req)
		if err != nil {
			return nil, chronerrors.NewVirtualizedDatabaseError("opcua", err)
		}
		identifier := basic.IDs[i]
		for _, dv := range dataValues {
			row := dataframe.Row{}
			if basic.IdentifierVariable != nil {
				row[basic.IdentifierVariable.Name] = dataframe.NewIRIValue(identifier)
			}
			if basic.ValueVariable != nil {
				row[basic.ValueVariable.Variable.Name] = dataframe.NewLiteralValue(fmt.Sprintf("%v", dv.Value), "", "")
			}
			if basic.TimestampVariable != nil {
				row[basic.TimestampVariable.Variable.Name] = dataframe.NewLiteralValue(dv.Timestamp.Format(time.RFC3339Nano), "http://www.w3.org/2001/XMLSchema#dateTime", "")
			}
			sm.Rows = append(sm.Rows, row)
		}
	}
	cols := make([]string, 0, len(sm.RDFNodeTypes))
	for c := range sm.RDFNodeTypes {
		cols = append(cols, c)
	}
	if err := vq.Validate(cols); err != nil {
		return nil, err
	}
	return sm, nil
}

// dataPoint is the minimal shape read back from a HistoryRead response.
type dataPoint struct {
	Value     any
	Timestamp time.Time
}

// historyRead issues the actual HistoryRead/ReadProcessedDetails service
// call. Raw and processed reads share the same response shape: a list of
// timestamped values for one node id.
func (a *OPCUAAdapter) historyRead(ctx context.Context, req opcuatranslate.HistoryReadRequest) ([]dataPoint, error) {
	nodeID, err := ua.ParseNodeID(req.NodeID)
	if err != nil {
		return nil, chronerrors.NewInvalidNodeID(req.NodeID, err)
	}

	var details any
	if req.AggregateNodeID != "" {
		details = &ua.ReadProcessedDetails{
			StartTime:         req.StartTime,
			EndTime:           req.EndTime,
			ProcessingInterval: req.ProcessingIntervalMS,
			AggregateType:     []*ua.NodeID{ua.NewStringNodeID(0, req.AggregateNodeID)},
		}
	} else {
		details = &ua.ReadRawModifiedDetails{
			StartTime: req.StartTime,
			EndTime:   req.EndTime,
		}
	}

	historyReadRequest := &ua.HistoryReadRequest{
		HistoryReadDetails: details,
		TimestampsToReturn: ua.TimestampsToReturnBoth,
		NodesToRead: []*ua.HistoryReadValueID{
			{NodeID: nodeID},
		},
	}

	resp, err := a.client.HistoryRead(ctx, historyReadRequest)
	if err != nil {
		return nil, err
	}

	var out []dataPoint
	for _, result := range resp.Results {
		if result.StatusCode != ua.StatusOK {
			return nil, fmt.Errorf("opcua: history read returned status %v", result.StatusCode)
		}
		historyData, ok := result.HistoryData.(*ua.HistoryData)
		if !ok {
			continue
		}
		for _, dv := range historyData.DataValues {
			out = append(out, dataPoint{Value: dv.Value.Value(), Timestamp: dv.SourceTimestamp})
		}
	}
	return out, nil
}

// extractQueryTimeRange returns the HistoryRead window: always from the
// zero time to now. No filter is consulted, so every identifier's full
// history up to the present is requested.
func extractQueryTimeRange(b *algebra.BasicVirtualizedQuery) (time.Time, time.Time) {
	return time.Time{}, time.Now()
}
