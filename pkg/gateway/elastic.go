package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/tidwall/gjson"

	"github.com/agentstation/infer/pkg/errors"
	"github.com/agentstation/infer/pkg/query"
)

// Elastic searches reference datasets stored as Elasticsearch indices named
// after the dataset id.
type Elastic struct {
	client *elasticsearch.Client
	opts   *options
}

// NewElastic creates an Elasticsearch gateway. Transport retries are
// disabled: a failed search becomes an error outcome for its task.
func NewElastic(opts ...Option) (*Elastic, error) {
	o, err := defaultOptions().apply(opts...)
	if err != nil {
		return nil, errors.WrapConfig("gateway", err)
	}

	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses:    o.addresses,
		Transport:    o.transport,
		DisableRetry: true,
	})
	if err != nil {
		return nil, errors.NewConfigError("gateway", "cannot create elasticsearch client", err)
	}

	return &Elastic{client: client, opts: o}, nil
}

// Search implements Gateway.
func (e *Elastic) Search(ctx context.Context, dataset string, req query.Request) ([]Candidate, error) {
	body, err := json.Marshal(e.body(req))
	if err != nil {
		return nil, errors.WrapGateway(dataset, err)
	}

	res, err := e.client.Search(
		e.client.Search.WithContext(ctx),
		e.client.Search.WithIndex(dataset),
		e.client.Search.WithBody(bytes.NewReader(body)),
		e.client.Search.WithSize(e.opts.size),
	)
	if err != nil {
		return nil, errors.NewGatewayError(dataset, 0, "request failed", err)
	}
	defer func() { _ = res.Body.Close() }()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, errors.NewGatewayError(dataset, res.StatusCode, "failed to read response", err)
	}

	if res.IsError() {
		return nil, errors.NewGatewayError(dataset, res.StatusCode, errorReason(data), nil)
	}

	if !gjson.ValidBytes(data) {
		return nil, errors.NewGatewayError(dataset, res.StatusCode, "invalid JSON response", nil)
	}
	return e.candidates(data), nil
}

// body renders the request as a bool query: type and distance filters plus a
// scored query_string match on the name field.
func (e *Elastic) body(req query.Request) map[string]any {
	filters := []any{
		map[string]any{"term": map[string]any{e.opts.typeField: req.TargetType}},
	}
	if req.Geo != nil {
		filters = append(filters, map[string]any{
			"geo_distance": map[string]any{
				"distance":      req.Geo.Distance(),
				e.opts.geoField: []float64{req.Geo.Centroid.Lon(), req.Geo.Centroid.Lat()},
			},
		})
	}

	return map[string]any{
		"query": map[string]any{
			"bool": map[string]any{
				"filter": filters,
				"must": map[string]any{
					"query_string": map[string]any{
						"query":  req.QueryString(),
						"fields": []string{e.opts.nameField},
					},
				},
			},
		},
	}
}

func (e *Elastic) candidates(data []byte) []Candidate {
	hits := gjson.GetBytes(data, "hits.hits.#._source")
	out := make([]Candidate, 0, len(hits.Array()))
	hits.ForEach(func(_, src gjson.Result) bool {
		out = append(out, Candidate{
			ID:   src.Get("id").String(),
			URI:  src.Get("uri").String(),
			Type: src.Get(e.opts.typeField).String(),
			Name: src.Get(e.opts.nameField).String(),
		})
		return true
	})
	return out
}

// errorReason extracts the root cause of an Elasticsearch error response.
func errorReason(data []byte) string {
	res := gjson.ParseBytes(data)
	if reason := res.Get("error.root_cause.0.reason"); reason.Exists() {
		return reason.String()
	}
	if reason := res.Get("error.reason"); reason.Exists() {
		return reason.String()
	}
	if errType := res.Get("error.type"); errType.Exists() {
		return errType.String()
	}
	return fmt.Sprintf("unexpected response: %.200s", data)
}
