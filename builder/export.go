package builder

import (
	"context"

	"github.com/aaronp/go-kerits/bundle"
	"github.com/aaronp/go-kerits/store"
)

// ExportRegistry bundles a registry with everything a fresh replica
// needs to replay it.
func (b *Builder) ExportRegistry(ctx context.Context, registry string) (*bundle.Bundle, error) {
	registryId, err := b.store.Resolve(ctx, store.NsTel, registry)
	if err != nil {
		return nil, err
	}
	return b.Exporter().ExportRegistry(ctx, registryId)
}

// ExportKel bundles an account's key event log.
func (b *Builder) ExportKel(ctx context.Context, account string) (*bundle.Bundle, error) {
	aid, err := b.resolveAccount(ctx, account)
	if err != nil {
		return nil, err
	}
	return b.Exporter().ExportKel(ctx, aid)
}

// Import ingests a bundle (JSON envelope or raw CESR). The caches are
// not invalidated; imported events arrive through this builder's own
// store.
func (b *Builder) Import(ctx context.Context, data []byte, opts ...bundle.ImporterOption) (*bundle.ImportResult, error) {
	return b.Importer(opts...).Import(ctx, data)
}
