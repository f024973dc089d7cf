package contextstore

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/chrontext/chrontext/internal/chronerrors"
	"github.com/chrontext/chrontext/internal/dataframe"
)

// HTTPContextStore queries a remote triple store over the W3C SPARQL 1.1
// Protocol, parsing the standard application/sparql-results+json
// response format. Grounded on the teacher's internal/cli.GatewayClient,
// which uses the same bare net/http.Client-with-timeout shape for
// talking to another HTTP service.
type HTTPContextStore struct {
	endpoint   string
	httpClient *http.Client
}

func NewHTTPContextStore(endpoint string) *HTTPContextStore {
	return &HTTPContextStore{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// sparqlJSONResults is the application/sparql-results+json envelope.
type sparqlJSONResults struct {
	Head struct {
		Vars []string `json:"vars"`
	} `json:"head"`
	Results struct {
		Bindings []map[string]sparqlJSONTerm `json:"bindings"`
	} `json:"results"`
}

type sparqlJSONTerm struct {
	Type     string `json:"type"` // "uri", "literal", "bnode"
	Value    string `json:"value"`
	Datatype string `json:"datatype,omitempty"`
	Lang     string `json:"xml:lang,omitempty"`
}

func (c *HTTPContextStore) Query(ctx context.Context, sparql string) (*dataframe.SolutionMappings, error) {
	form := url.Values{"query": {sparql}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, chronerrors.NewContextStoreError(sparql, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/sparql-results+json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, chronerrors.NewContextStoreError(sparql, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, chronerrors.NewContextStoreError(sparql, fmt.Errorf("context store returned status %d", resp.StatusCode))
	}

	var results sparqlJSONResults
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, chronerrors.NewContextStoreError(sparql, err)
	}

	types := map[string]dataframe.RDFNodeTypeSet{}
	for _, v := range results.Head.Vars {
		types[v] = dataframe.RDFNodeTypeSet{}
	}
	sm := dataframe.NewSolutionMappings(types)

	for _, binding := range results.Results.Bindings {
		row := dataframe.Row{}
		for _, v := range results.Head.Vars {
			term, ok := binding[v]
			if !ok {
				row[v] = dataframe.Unbound
				continue
			}
			val, set := termToValue(term)
			row[v] = val
			types[v] = types[v].Merge(set)
		}
		sm.Rows = append(sm.Rows, row)
	}
	return sm, nil
}

func termToValue(t sparqlJSONTerm) (dataframe.Value, dataframe.RDFNodeTypeSet) {
	switch t.Type {
	case "uri":
		return dataframe.NewIRIValue(t.Value), dataframe.RDFNodeTypeSet{IRI: true}
	case "bnode":
		return dataframe.NewBlankValue(t.Value), dataframe.RDFNodeTypeSet{Blank: true}
	default:
		return dataframe.NewLiteralValue(t.Value, t.Datatype, t.Lang), dataframe.RDFNodeTypeSet{Literal: true}
	}
}
