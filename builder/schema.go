package builder

import (
	"context"

	"github.com/aaronp/go-kerits/event"
	"github.com/aaronp/go-kerits/store"
)

// SchemaInfo is a listing row for a schema.
type SchemaInfo struct {
	Said  string
	Alias string
	Title string
	Raw   []byte
}

// CreateSchema binds a SAID into the author's JSON schema body, stores
// it and names it. Bodies that self-reference under d are rejected.
func (b *Builder) CreateSchema(ctx context.Context, alias string, body []byte) (string, error) {
	withSaid, said, err := event.BuildSchema(body, b.suite.SaidDigest)
	if err != nil {
		return "", err
	}
	if _, err := b.store.PutSchema(ctx, withSaid); err != nil {
		return "", err
	}
	if err := b.store.PutAlias(ctx, store.NsSchema, said, alias); err != nil {
		return "", err
	}
	return said, nil
}

// GetSchema loads a schema by alias or said.
func (b *Builder) GetSchema(ctx context.Context, schema string) ([]byte, error) {
	said, err := b.store.Resolve(ctx, store.NsSchema, schema)
	if err != nil {
		return nil, err
	}
	return b.store.GetSchema(ctx, said)
}

// Schemas lists every stored schema.
func (b *Builder) Schemas(ctx context.Context) ([]SchemaInfo, error) {
	saids, err := b.store.ListSchemaSaids(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]SchemaInfo, 0, len(saids))
	for _, said := range saids {
		raw, err := b.store.GetSchema(ctx, said)
		if err != nil {
			return nil, err
		}
		alias, err := b.store.IdToAlias(ctx, store.NsSchema, said)
		if err != nil {
			return nil, err
		}
		out = append(out, SchemaInfo{Said: said, Alias: alias, Title: event.SchemaTitle(raw), Raw: raw})
	}
	return out, nil
}
