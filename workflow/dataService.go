package workflow

import (
	"context"
	"encoding/json"
	"net/url"
	"sort"

	"github.com/mmdatafocus/docgen_backend/params"
	"github.com/mmdatafocus/docgen_backend/render"
	"github.com/mmdatafocus/docgen_backend/resilience"
	"github.com/sirupsen/logrus"
)

// ExternalDataService is the polymorphic external dependency consumed while
// assembling document data. Mock and real implementations are
// interchangeable; the resilience wrapping lives inside the HTTP
// implementation and does not change when the implementation is swapped.
type ExternalDataService interface {
	GetPricing(ctx context.Context, customerId string) (json.RawMessage, error)
	GetForecast(ctx context.Context, fromDate, toDate string) (json.RawMessage, error)
	GetCreditProfile(ctx context.Context, customerId string) (json.RawMessage, error)
}

// HTTPDataService reaches the external system over JSON HTTP through the
// resilience client configured by the target's policy.
type HTTPDataService struct {
	client *resilience.Client
}

func NewHTTPDataService(policy resilience.Policy, logger *logrus.Logger) (*HTTPDataService, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	caller := resilience.NewHTTPCaller(policy, nil)
	return &HTTPDataService{client: resilience.NewClient(policy, caller, logger)}, nil
}

func (s *HTTPDataService) get(ctx context.Context, action, path string, query url.Values) (json.RawMessage, error) {
	if len(query) > 0 {
		path = path + "?" + query.Encode()
	}
	resp, err := s.client.Do(ctx, resilience.Request{Action: action, Method: "GET", Path: path})
	if err != nil {
		return nil, err
	}
	return json.RawMessage(resp.Body), nil
}

func (s *HTTPDataService) GetPricing(ctx context.Context, customerId string) (json.RawMessage, error) {
	return s.get(ctx, "get-pricing", "/v1/pricing", url.Values{"customer_id": {customerId}})
}

func (s *HTTPDataService) GetForecast(ctx context.Context, fromDate, toDate string) (json.RawMessage, error) {
	return s.get(ctx, "get-forecast", "/v1/forecast", url.Values{"from": {fromDate}, "to": {toDate}})
}

func (s *HTTPDataService) GetCreditProfile(ctx context.Context, customerId string) (json.RawMessage, error) {
	return s.get(ctx, "get-credit-profile", "/v1/credit-profile", url.Values{"customer_id": {customerId}})
}

// DataAssembler builds the render payload for a document type from its safe
// parameters. Assembly is the only place outbound calls happen during
// generation.
type DataAssembler interface {
	Assemble(ctx context.Context, documentType string, safe map[string]params.Value) ([]byte, error)
}

// BuilderFunc produces the tabular dataset for one document type. Builders
// may consult the external service; its resilience wrapper bounds every call.
type BuilderFunc func(ctx context.Context, external ExternalDataService, safe map[string]params.Value) (*render.Table, error)

// StandardAssembler routes each document type to its registered builder.
// Types without a builder fall back to a parameter-echo table, which keeps
// newly whitelisted types renderable before their dataset query ships.
type StandardAssembler struct {
	External ExternalDataService
	builders map[string]BuilderFunc
}

func NewStandardAssembler(external ExternalDataService) *StandardAssembler {
	return &StandardAssembler{External: external, builders: map[string]BuilderFunc{}}
}

func (a *StandardAssembler) Register(documentType string, fn BuilderFunc) {
	a.builders[documentType] = fn
}

func (a *StandardAssembler) Assemble(ctx context.Context, documentType string, safe map[string]params.Value) ([]byte, error) {
	if fn, ok := a.builders[documentType]; ok {
		table, err := fn(ctx, a.External, safe)
		if err != nil {
			return nil, err
		}
		return json.Marshal(table)
	}
	return json.Marshal(parameterEchoTable(documentType, safe))
}

func parameterEchoTable(documentType string, safe map[string]params.Value) *render.Table {
	keys := make([]string, 0, len(safe))
	for k := range safe {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	row := make([]interface{}, len(keys))
	for i, k := range keys {
		row[i] = safe[k].Encode()
	}
	return &render.Table{
		Title:   documentType,
		Headers: keys,
		Rows:    [][]interface{}{row},
	}
}
