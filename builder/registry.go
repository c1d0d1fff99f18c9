package builder

import (
	"context"

	"github.com/aaronp/go-kerits/store"
	"github.com/aaronp/go-kerits/tel"
)

// RegistryInfo is a listing row for a registry.
type RegistryInfo struct {
	RegistryId       string
	Alias            string
	IssuerAid        string
	ParentRegistryId string
}

// RegistryOptions mirrors the tel engine options.
type RegistryOptions struct {
	Backers          []string
	ParentRegistryId string
}

// CreateRegistry incepts and anchors a registry for the account, binding
// the alias in the tel namespace.
func (b *Builder) CreateRegistry(ctx context.Context, account, alias string, opts RegistryOptions) (string, error) {
	issuer, err := b.resolveAccount(ctx, account)
	if err != nil {
		return "", err
	}
	parent := opts.ParentRegistryId
	if parent != "" {
		if parent, err = b.store.Resolve(ctx, store.NsTel, parent); err != nil {
			return "", err
		}
	}
	registryId, err := b.tel.CreateRegistry(ctx, issuer, tel.RegistryOptions{
		Backers:          opts.Backers,
		ParentRegistryId: parent,
	})
	if err != nil {
		return "", err
	}
	if err := b.store.PutAlias(ctx, store.NsTel, registryId, alias); err != nil {
		return "", err
	}
	return registryId, nil
}

// ListRegistries lists the registries issued by an account.
func (b *Builder) ListRegistries(ctx context.Context, account string) ([]RegistryInfo, error) {
	issuer, err := b.resolveAccount(ctx, account)
	if err != nil {
		return nil, err
	}
	registryIds, err := b.store.ListTelRegistries(ctx)
	if err != nil {
		return nil, err
	}
	var out []RegistryInfo
	for _, registryId := range registryIds {
		vcp, err := tel.RegistryInception(ctx, b.store, registryId)
		if err != nil {
			return nil, err
		}
		if vcp.II != issuer {
			continue
		}
		alias, err := b.store.IdToAlias(ctx, store.NsTel, registryId)
		if err != nil {
			return nil, err
		}
		info := RegistryInfo{RegistryId: registryId, Alias: alias, IssuerAid: vcp.II}
		if vcp.E != nil && vcp.E.Parent != nil {
			info.ParentRegistryId = vcp.E.Parent.N
		}
		out = append(out, info)
	}
	return out, nil
}

// Reanchor repairs an orphaned registry by emitting its missing KEL
// seal.
func (b *Builder) Reanchor(ctx context.Context, registry string) error {
	registryId, err := b.store.Resolve(ctx, store.NsTel, registry)
	if err != nil {
		return err
	}
	return b.tel.Reanchor(ctx, registryId)
}
