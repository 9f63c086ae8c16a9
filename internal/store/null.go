package store

import (
	"context"

	"github.com/Wieedze/Sofia-Attestor-Template/api/schemas"
)

// Null is the store used when no database is configured. Lookups always miss
// and writes vanish, which leaves the pipeline with its stateless behavior:
// every run repins and the ledger alone is consulted.
type Null struct{}

func (Null) CachedPinURI(context.Context, schemas.Platform, string) (string, error) {
	return "", nil
}

func (Null) SavePinURI(context.Context, schemas.Platform, string, string) error {
	return nil
}

func (Null) SaveLink(context.Context, schemas.LinkRecord) error {
	return nil
}
