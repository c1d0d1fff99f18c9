package tel

import (
	"context"
	"errors"
	"fmt"

	"github.com/aaronp/go-kerits/cesr"
	"github.com/aaronp/go-kerits/event"
	"github.com/aaronp/go-kerits/store"
)

// IssueParams describes a credential to issue.
type IssueParams struct {
	RegistryId string
	IssuerAid  string
	SchemaSaid string
	HolderAid  string
	Data       map[string]any
	Edges      map[string]event.Edge
}

// IssueResult reports the stored credential and its issuance event.
type IssueResult struct {
	CredentialId string
	IssSaid      string
}

// Issue validates the edge graph, stores the credential object, then
// appends the iss event to the registry log. The registry must be
// anchored; an orphaned registry surfaces ErrUnanchored and a repair via
// Reanchor.
func (e *Engine) Issue(ctx context.Context, p IssueParams) (IssueResult, error) {
	if _, err := e.keys.Signer(p.IssuerAid); err != nil {
		return IssueResult{}, err
	}
	if _, err := e.Registry(ctx, p.RegistryId); err != nil {
		return IssueResult{}, err
	}
	anchored, err := e.IsAnchored(ctx, p.RegistryId)
	if err != nil {
		return IssueResult{}, err
	}
	if !anchored {
		return IssueResult{}, fmt.Errorf("%w: %s", ErrUnanchored, p.RegistryId)
	}
	if _, err := e.store.GetSchema(ctx, p.SchemaSaid); err != nil {
		return IssueResult{}, err
	}
	if err := e.validateEdges(ctx, p.Edges); err != nil {
		return IssueResult{}, err
	}

	attributes, err := event.BuildAttributes(p.HolderAid, p.Data)
	if err != nil {
		return IssueResult{}, err
	}
	edgeSection, err := event.MarshalEdges(p.Edges)
	if err != nil {
		return IssueResult{}, err
	}
	acdc := &event.Acdc{
		V: cesr.VersionPlaceholder(cesr.FamilyACDC), D: cesr.SaidPlaceholder,
		I: p.IssuerAid, Ri: p.RegistryId, S: p.SchemaSaid,
		A: attributes, E: edgeSection,
	}
	body, err := acdc.Serialize()
	if err != nil {
		return IssueResult{}, err
	}
	acdcFrame, credentialId, err := cesr.EncodeSaidified(body, cesr.FamilyACDC, "d", e.suite.SaidDigest)
	if err != nil {
		return IssueResult{}, err
	}
	signedAcdc, err := e.signAsIssuer(ctx, p.IssuerAid, acdcFrame)
	if err != nil {
		return IssueResult{}, err
	}

	iss := &event.Iss{
		V: cesr.VersionPlaceholder(cesr.FamilyKERI), T: event.TypeIss,
		D: cesr.SaidPlaceholder, I: credentialId, S: "0", Ri: p.RegistryId,
		Dt: e.timestamp(),
	}
	issBody, err := iss.Serialize()
	if err != nil {
		return IssueResult{}, err
	}
	issFrame, issSaid, err := cesr.EncodeSaidified(issBody, cesr.FamilyKERI, "d", e.suite.SaidDigest)
	if err != nil {
		return IssueResult{}, err
	}
	signedIss, err := e.signAsIssuer(ctx, p.IssuerAid, issFrame)
	if err != nil {
		return IssueResult{}, err
	}

	// the credential first so the iss never references a missing object
	if _, err := e.store.PutEvent(ctx, signedAcdc); err != nil {
		return IssueResult{}, err
	}
	if _, err := e.store.PutEvent(ctx, signedIss); err != nil {
		return IssueResult{}, err
	}
	e.log.Debugf("tel.issue: registry=%s credential=%s holder=%s", p.RegistryId, credentialId, p.HolderAid)
	return IssueResult{CredentialId: credentialId, IssSaid: issSaid}, nil
}

// validateEdges checks every edge target exists locally and satisfies
// any schema constraint before the credential is committed.
func (e *Engine) validateEdges(ctx context.Context, edges map[string]event.Edge) error {
	for label, edge := range edges {
		target, err := e.store.GetAcdc(ctx, edge.N)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("%w: edge %q -> %s", ErrEdgeTargetMissing, label, edge.N)
			}
			return err
		}
		if edge.S != "" && target.S != edge.S {
			return fmt.Errorf("%w: edge %q requires schema %s, target has %s", ErrEdgeSchemaMismatch, label, edge.S, target.S)
		}
	}
	return nil
}

// Revoke appends a rev event for the credential. The prior iss is
// located in the credential's registry log; a second revocation fails
// with ErrAlreadyRevoked and leaves the store untouched.
func (e *Engine) Revoke(ctx context.Context, credentialId, issuerAid string) (string, error) {
	if _, err := e.keys.Signer(issuerAid); err != nil {
		return "", err
	}
	acdc, err := e.store.GetAcdc(ctx, credentialId)
	if err != nil {
		return "", err
	}
	issSaid, revoked, err := e.credentialTelState(ctx, acdc.Ri, credentialId)
	if err != nil {
		return "", err
	}
	if revoked {
		return "", fmt.Errorf("%w: %s", ErrAlreadyRevoked, credentialId)
	}
	if issSaid == "" {
		return "", fmt.Errorf("%w: %s in %s", ErrNotIssued, credentialId, acdc.Ri)
	}
	rev := &event.Rev{
		V: cesr.VersionPlaceholder(cesr.FamilyKERI), T: event.TypeRev,
		D: cesr.SaidPlaceholder, I: credentialId, S: "1", P: issSaid,
		Ri: acdc.Ri, Dt: e.timestamp(),
	}
	body, err := rev.Serialize()
	if err != nil {
		return "", err
	}
	frame, revSaid, err := cesr.EncodeSaidified(body, cesr.FamilyKERI, "d", e.suite.SaidDigest)
	if err != nil {
		return "", err
	}
	signed, err := e.signAsIssuer(ctx, issuerAid, frame)
	if err != nil {
		return "", err
	}
	if _, err := e.store.PutEvent(ctx, signed); err != nil {
		return "", err
	}
	e.log.Debugf("tel.revoke: registry=%s credential=%s", acdc.Ri, credentialId)
	return revSaid, nil
}

// credentialTelState scans a registry log for the credential's issuance
// said and whether a revocation follows it.
func (e *Engine) credentialTelState(ctx context.Context, registryId, credentialId string) (string, bool, error) {
	tel, err := e.store.ListTel(ctx, registryId)
	if err != nil {
		return "", false, err
	}
	issSaid := ""
	revoked := false
	for _, stored := range tel {
		if stored.Meta.Identifier != credentialId {
			continue
		}
		switch stored.Meta.Type {
		case event.TypeIss:
			issSaid = stored.Said
		case event.TypeRev:
			revoked = true
		}
	}
	return issSaid, revoked, nil
}
