package gateway

import (
	"net/http"

	"github.com/agentstation/infer/pkg/constants"
	"github.com/agentstation/infer/pkg/errors"
)

type options struct {
	addresses []string
	transport http.RoundTripper
	nameField string
	typeField string
	geoField  string
	size      int
}

func defaultOptions() *options {
	return &options{
		addresses: []string{constants.DefaultElasticsearchURL},
		nameField: constants.DefaultNameField,
		typeField: constants.DefaultTypeField,
		geoField:  constants.DefaultGeoField,
		size:      1,
	}
}

// Option configures an Elastic gateway.
type Option func(*options) error

func (o *options) apply(opts ...Option) (*options, error) {
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// WithAddresses sets the Elasticsearch node URLs.
func WithAddresses(addresses ...string) Option {
	return func(o *options) error {
		if len(addresses) == 0 {
			return &errors.ValidationError{Field: "addresses", Message: "at least one address is required"}
		}
		o.addresses = addresses
		return nil
	}
}

// WithTransport sets the HTTP transport of the client.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *options) error {
		o.transport = rt
		return nil
	}
}

// WithNameField sets the document field the name query runs against.
func WithNameField(field string) Option {
	return func(o *options) error {
		if field == "" {
			return &errors.ValidationError{Field: "name_field", Message: "cannot be empty"}
		}
		o.nameField = field
		return nil
	}
}

// WithTypeField sets the document field holding the candidate type.
func WithTypeField(field string) Option {
	return func(o *options) error {
		if field == "" {
			return &errors.ValidationError{Field: "type_field", Message: "cannot be empty"}
		}
		o.typeField = field
		return nil
	}
}

// WithGeoField sets the geo_point field used by the distance filter.
func WithGeoField(field string) Option {
	return func(o *options) error {
		if field == "" {
			return &errors.ValidationError{Field: "geo_field", Message: "cannot be empty"}
		}
		o.geoField = field
		return nil
	}
}

