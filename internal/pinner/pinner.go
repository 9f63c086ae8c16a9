// Label pinning publishes a short human-readable string to the content store
// behind the graph API and returns a content-addressed URI. The label becomes
// the visible name of the atom; without it the graph renders raw bytes.
package pinner

import (
	"context"
	"fmt"
	"net/http"

	"github.com/Wieedze/Sofia-Attestor-Template/api/schemas"
	"github.com/machinebox/graphql"
	"go.uber.org/zap"
)

const pinThingMutation = `
mutation PinThing($thing: PinThingInput!) {
  pinThing(thing: $thing) {
    uri
  }
}`

// Pinner publishes labels through the pinThing GraphQL mutation.
type Pinner struct {
	gql *graphql.Client
	log *zap.Logger
}

// New creates a Pinner against the given GraphQL endpoint. httpClient may be
// nil to use the default client.
func New(endpoint string, httpClient *http.Client, logger *zap.Logger) *Pinner {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts := []graphql.ClientOption{}
	if httpClient != nil {
		opts = append(opts, graphql.WithHTTPClient(httpClient))
	}
	return &Pinner{
		gql: graphql.NewClient(endpoint, opts...),
		log: logger.Named("pinner"),
	}
}

// Pin publishes the label and returns its content URI. Identical labels are
// repinned on every call; dedup lives with the caller (see the store's
// pin-URI cache).
func (p *Pinner) Pin(ctx context.Context, label, description string) (string, error) {
	if label == "" {
		return "", &schemas.PinError{Label: label, Err: fmt.Errorf("label is empty")}
	}

	req := graphql.NewRequest(pinThingMutation)
	req.Var("thing", map[string]string{
		"name":        label,
		"description": description,
		"image":       "",
		"url":         "",
	})

	var resp struct {
		PinThing struct {
			URI string `json:"uri"`
		} `json:"pinThing"`
	}
	if err := p.gql.Run(ctx, req, &resp); err != nil {
		return "", &schemas.PinError{Label: label, Err: err}
	}
	if resp.PinThing.URI == "" {
		return "", &schemas.PinError{Label: label, Err: fmt.Errorf("pinning API returned no uri")}
	}

	p.log.Debug("Label pinned", zap.String("label", label), zap.String("uri", resp.PinThing.URI))
	return resp.PinThing.URI, nil
}
