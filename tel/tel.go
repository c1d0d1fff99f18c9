// Package tel owns the transaction event log per credential registry:
// registry inception coupled to a KEL anchor, credential issuance with
// edge validation, revocation, and repair of orphaned registries.
package tel

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/datatrails/go-datatrails-common/logger"
	"github.com/google/uuid"

	"github.com/aaronp/go-kerits/cesr"
	"github.com/aaronp/go-kerits/crypto"
	"github.com/aaronp/go-kerits/event"
	"github.com/aaronp/go-kerits/kel"
	"github.com/aaronp/go-kerits/store"
)

var (
	ErrAlreadyRevoked    = errors.New("tel: credential is already revoked")
	ErrNotIssued         = errors.New("tel: credential has no issuance event in this registry")
	ErrEdgeTargetMissing = errors.New("tel: edge references a credential that is not in the store")
	ErrEdgeSchemaMismatch = errors.New("tel: edge target does not satisfy the schema constraint")
	ErrUnanchored        = errors.New("tel: registry is not anchored in its issuer's kel")
)

// Engine drives one store's transaction event logs. TEL writes sign with
// the issuer's current keys through the key manager, so every operation
// here requires the issuer to be unlocked.
type Engine struct {
	store *store.Store
	suite crypto.Suite
	kel   *kel.Engine
	keys  *crypto.Manager
	log   logger.Logger
	clock func() time.Time
}

// Option configures the engine.
type Option func(*Engine)

// WithClock overrides the dt timestamp source.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) { e.clock = clock }
}

func New(st *store.Store, suite crypto.Suite, kelEngine *kel.Engine, keys *crypto.Manager, log logger.Logger, opts ...Option) *Engine {
	e := &Engine{store: st, suite: suite, kel: kelEngine, keys: keys, log: log, clock: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RegistryOptions carries the optional vcp configuration.
type RegistryOptions struct {
	Backers          []string
	ParentRegistryId string
}

// CreateRegistry incepts a registry for issuerAid and anchors it in the
// issuer's KEL. The two writes are coupled: if the anchor write fails the
// vcp is left orphaned, invisible to the indexer, and Reanchor repairs
// it.
func (e *Engine) CreateRegistry(ctx context.Context, issuerAid string, opts RegistryOptions) (string, error) {
	if _, err := e.keys.Signer(issuerAid); err != nil {
		return "", err
	}
	nonce, err := e.newNonce()
	if err != nil {
		return "", err
	}
	backers := opts.Backers
	if backers == nil {
		backers = []string{}
	}
	ev := &event.Vcp{
		V: cesr.VersionPlaceholder(cesr.FamilyKERI), T: event.TypeVcp,
		D: cesr.SaidPlaceholder, I: cesr.SaidPlaceholder, II: issuerAid, S: "0",
		B: backers, N: nonce,
	}
	if opts.ParentRegistryId != "" {
		if _, err := e.store.GetEvent(ctx, opts.ParentRegistryId); err != nil {
			return "", fmt.Errorf("parent registry: %w", err)
		}
		ev.E = &event.VcpEdges{Parent: &event.Edge{N: opts.ParentRegistryId}}
	}
	body, err := ev.Serialize()
	if err != nil {
		return "", err
	}
	frame, registryId, err := cesr.EncodeSaidified(body, cesr.FamilyKERI, "d", e.suite.SaidDigest)
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
	if err := e.anchor(ctx, issuerAid, registryId, registryId); err != nil {
		// the vcp is persisted but unanchored; surface that state rather
		// than pretending the registry exists
		return "", fmt.Errorf("%w: %s: anchor failed: %v", ErrUnanchored, registryId, err)
	}
	e.log.Debugf("tel.create: registry=%s issuer=%s", registryId, issuerAid)
	return registryId, nil
}

// Reanchor emits the missing KEL seal for an orphaned registry. It is a
// no-op for a registry that is already anchored.
func (e *Engine) Reanchor(ctx context.Context, registryId string) error {
	vcp, err := e.Registry(ctx, registryId)
	if err != nil {
		return err
	}
	anchored, err := e.IsAnchored(ctx, registryId)
	if err != nil {
		return err
	}
	if anchored {
		return nil
	}
	return e.anchor(ctx, vcp.II, registryId, vcp.D)
}

func (e *Engine) anchor(ctx context.Context, issuerAid, registryId, vcpSaid string) error {
	_, err := e.kel.Interact(ctx, issuerAid, []event.Seal{{I: registryId, S: "0", D: vcpSaid}})
	return err
}

// IsAnchored scans the issuer's KEL for the registry's inception seal.
func (e *Engine) IsAnchored(ctx context.Context, registryId string) (bool, error) {
	return IsAnchored(ctx, e.store, registryId)
}

// IsAnchored reports whether the registry's vcp is sealed into its
// issuer's KEL. The indexer uses this to keep orphaned registries
// invisible.
func IsAnchored(ctx context.Context, st *store.Store, registryId string) (bool, error) {
	vcp, err := RegistryInception(ctx, st, registryId)
	if err != nil {
		return false, err
	}
	kelEvents, err := st.ListKel(ctx, vcp.II)
	if err != nil {
		return false, err
	}
	for _, stored := range kelEvents {
		if stored.Meta.Type != event.TypeIxn {
			continue
		}
		_, body, _, err := cesr.Decode(stored.Raw)
		if err != nil {
			return false, err
		}
		ixn, err := event.ParseIxn(body)
		if err != nil {
			return false, err
		}
		for _, seal := range ixn.A {
			if seal.I == registryId && seal.D == vcp.D {
				return true, nil
			}
		}
	}
	return false, nil
}

// Registry loads and parses a registry's vcp event.
func (e *Engine) Registry(ctx context.Context, registryId string) (*event.Vcp, error) {
	return RegistryInception(ctx, e.store, registryId)
}

// RegistryInception loads and parses a registry's vcp event.
func RegistryInception(ctx context.Context, st *store.Store, registryId string) (*event.Vcp, error) {
	tel, err := st.ListTel(ctx, registryId)
	if err != nil {
		return nil, err
	}
	if len(tel) == 0 {
		return nil, fmt.Errorf("%w: registry %s", store.ErrNotFound, registryId)
	}
	_, body, _, err := cesr.Decode(tel[0].Raw)
	if err != nil {
		return nil, err
	}
	return event.ParseVcp(body)
}

func (e *Engine) newNonce() (string, error) {
	u := uuid.New()
	return cesr.EncodeDigest(e.suite.SaidDigest(u[:]))
}

// signAsIssuer signs a frame with the issuer's unlocked key at its index
// in the current key set.
func (e *Engine) signAsIssuer(ctx context.Context, issuerAid string, frame []byte) ([]byte, error) {
	signer, err := e.keys.Signer(issuerAid)
	if err != nil {
		return nil, err
	}
	st, err := e.kel.State(ctx, issuerAid)
	if err != nil {
		return nil, err
	}
	idx := 0
	found := false
	for i, k := range st.Keys {
		if k == signer.Verfer() {
			idx = i
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: unlocked key is stale for %s", kel.ErrSignatureInvalid, issuerAid)
	}
	sig, err := signer.Sign(frame)
	if err != nil {
		return nil, err
	}
	return cesr.AttachSignatures(frame, []cesr.IndexedSignature{{Index: idx, Signature: sig}})
}

func (e *Engine) timestamp() string {
	return e.clock().UTC().Format("2006-01-02T15:04:05.000000Z")
}
