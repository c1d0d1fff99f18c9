package builder

import (
	"context"
	"fmt"

	"github.com/aaronp/go-kerits/event"
	"github.com/aaronp/go-kerits/index"
	"github.com/aaronp/go-kerits/store"
	"github.com/aaronp/go-kerits/tel"
)

// IssueParams describes a credential issuance through the builder.
// Registry and Schema accept aliases or identifiers; Edges targets
// accept credential aliases or saids.
type IssueParams struct {
	Registry string
	Schema   string
	Holder   string
	Data     map[string]any
	Edges    map[string]event.Edge
	Alias    string
}

// Issue issues a credential from the registry's issuer, which must be
// unlocked.
func (b *Builder) Issue(ctx context.Context, p IssueParams) (*index.IndexedACDC, error) {
	registryId, err := b.store.Resolve(ctx, store.NsTel, p.Registry)
	if err != nil {
		return nil, err
	}
	schemaSaid, err := b.store.Resolve(ctx, store.NsSchema, p.Schema)
	if err != nil {
		return nil, err
	}
	holder, err := b.store.Resolve(ctx, store.NsKel, p.Holder)
	if err != nil {
		// holders can be foreign aids with no local alias
		holder = p.Holder
	}
	vcp, err := tel.RegistryInception(ctx, b.store, registryId)
	if err != nil {
		return nil, err
	}
	edges := make(map[string]event.Edge, len(p.Edges))
	for label, edge := range p.Edges {
		target, err := b.store.Resolve(ctx, store.NsAcdc, edge.N)
		if err != nil {
			target = edge.N
		}
		edges[label] = event.Edge{N: target, S: edge.S}
	}
	res, err := b.tel.Issue(ctx, tel.IssueParams{
		RegistryId: registryId,
		IssuerAid:  vcp.II,
		SchemaSaid: schemaSaid,
		HolderAid:  holder,
		Data:       p.Data,
		Edges:      edges,
	})
	if err != nil {
		return nil, err
	}
	if p.Alias != "" {
		if err := b.store.PutAlias(ctx, store.NsAcdc, res.CredentialId, p.Alias); err != nil {
			return nil, err
		}
	}
	return b.indexer.IndexAcdc(ctx, res.CredentialId, registryId)
}

// Revoke revokes a credential, signing against the issuer's KEL.
func (b *Builder) Revoke(ctx context.Context, credential, issuer string) error {
	credentialId, err := b.store.Resolve(ctx, store.NsAcdc, credential)
	if err != nil {
		return err
	}
	issuerAid, err := b.resolveAccount(ctx, issuer)
	if err != nil {
		return err
	}
	_, err = b.tel.Revoke(ctx, credentialId, issuerAid)
	return err
}

// AcceptParams carries a credential received from a counterparty: the
// framed ACDC, optionally its iss event, and a local alias.
type AcceptParams struct {
	Credential []byte
	IssEvent   []byte
	Alias      string
}

// Accept stores a received credential on the holder side.
func (b *Builder) Accept(ctx context.Context, p AcceptParams) (string, error) {
	res, err := b.store.PutEvent(ctx, p.Credential)
	if err != nil {
		return "", err
	}
	if res.Type != event.TypeAcdc {
		return "", fmt.Errorf("%w: accept expects a credential, got %q", event.ErrUnknownEventType, res.Type)
	}
	if len(p.IssEvent) > 0 {
		if _, err := b.store.PutEvent(ctx, p.IssEvent); err != nil {
			return "", err
		}
	}
	if p.Alias != "" {
		if err := b.store.PutAlias(ctx, store.NsAcdc, res.Said, p.Alias); err != nil {
			return "", err
		}
	}
	return res.Said, nil
}

// GetCredential returns the indexed state of a credential by alias or
// said, locating its registry through the stored object.
func (b *Builder) GetCredential(ctx context.Context, credential string) (*index.IndexedACDC, error) {
	credentialId, err := b.store.Resolve(ctx, store.NsAcdc, credential)
	if err != nil {
		return nil, err
	}
	acdc, err := b.store.GetAcdc(ctx, credentialId)
	if err != nil {
		return nil, err
	}
	return b.indexer.IndexAcdc(ctx, credentialId, acdc.Ri)
}

// CredentialStatus reports the current issued/revoked state.
func (b *Builder) CredentialStatus(ctx context.Context, credential string) (string, bool, error) {
	indexed, err := b.GetCredential(ctx, credential)
	if err != nil {
		return "", false, err
	}
	return indexed.Status, indexed.Revoked, nil
}

// ListCredentials returns every credential in a registry in issuance
// order.
func (b *Builder) ListCredentials(ctx context.Context, registry string) ([]*index.IndexedACDC, error) {
	registryId, err := b.store.Resolve(ctx, store.NsTel, registry)
	if err != nil {
		return nil, err
	}
	reg, err := b.indexer.IndexRegistry(ctx, registryId)
	if err != nil {
		return nil, err
	}
	out := make([]*index.IndexedACDC, 0, len(reg.Order))
	for _, credentialId := range reg.Order {
		out = append(out, reg.Credentials[credentialId])
	}
	return out, nil
}

// SignedCredentials returns every stored credential issued by the
// account, across all registries.
func (b *Builder) SignedCredentials(ctx context.Context, account string) ([]*event.Acdc, error) {
	aid, err := b.resolveAccount(ctx, account)
	if err != nil {
		return nil, err
	}
	saids, err := b.store.ListAcdcSaids(ctx)
	if err != nil {
		return nil, err
	}
	var out []*event.Acdc
	for _, said := range saids {
		acdc, err := b.store.GetAcdc(ctx, said)
		if err != nil {
			return nil, err
		}
		if acdc.I == aid {
			out = append(out, acdc)
		}
	}
	return out, nil
}
