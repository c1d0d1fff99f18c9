// Package index derives query-time views from the raw logs: per-registry
// credential state, the combined node/edge graph, and cycle-tolerant edge
// traversal. Nothing here is persisted; every query replays.
package index

import (
	"context"
	"fmt"
	"sort"

	"github.com/datatrails/go-datatrails-common/logger"

	"github.com/aaronp/go-kerits/cesr"
	"github.com/aaronp/go-kerits/event"
	"github.com/aaronp/go-kerits/store"
	"github.com/aaronp/go-kerits/tel"
)

// Credential statuses.
const (
	StatusIssued  = "issued"
	StatusRevoked = "revoked"
)

// TelEventRef is one entry of a credential's timeline.
type TelEventRef struct {
	Said string
	Type string
	Sn   uint64
	Dt   string
}

// IndexedACDC is the aggregated state of one credential after a registry
// replay.
type IndexedACDC struct {
	CredentialId string
	IssuerAid    string
	HolderAid    string
	SchemaSaid   string
	Edges        map[string]event.Edge
	LinkedTo     []string
	LinkedFrom   []string
	Status       string
	Revoked      bool
	TelEvents    []TelEventRef
}

// IndexedRegistry is the replayed state of one registry.
type IndexedRegistry struct {
	RegistryId       string
	IssuerAid        string
	ParentRegistryId string
	// Credentials holds per-credential state; Order preserves issuance
	// order for deterministic listings.
	Credentials map[string]*IndexedACDC
	Order       []string
}

// Indexer replays stored logs on demand.
type Indexer struct {
	store *store.Store
	log   logger.Logger
}

func New(st *store.Store, log logger.Logger) *Indexer {
	return &Indexer{store: st, log: log}
}

// IndexRegistry replays a registry's TEL in log order, one forward pass
// for status and linkedTo, one reverse pass for linkedFrom. Unanchored
// registries are invisible and surface ErrUnanchored.
func (x *Indexer) IndexRegistry(ctx context.Context, registryId string) (*IndexedRegistry, error) {
	anchored, err := tel.IsAnchored(ctx, x.store, registryId)
	if err != nil {
		return nil, err
	}
	if !anchored {
		return nil, fmt.Errorf("%w: %s", tel.ErrUnanchored, registryId)
	}
	events, err := x.store.ListTel(ctx, registryId)
	if err != nil {
		return nil, err
	}

	reg := &IndexedRegistry{
		RegistryId:  registryId,
		Credentials: map[string]*IndexedACDC{},
	}
	for _, stored := range events {
		_, body, _, err := cesr.Decode(stored.Raw)
		if err != nil {
			return nil, err
		}
		switch stored.Meta.Type {
		case event.TypeVcp:
			vcp, err := event.ParseVcp(body)
			if err != nil {
				return nil, err
			}
			reg.IssuerAid = vcp.II
			if vcp.E != nil && vcp.E.Parent != nil {
				reg.ParentRegistryId = vcp.E.Parent.N
			}
		case event.TypeIss:
			iss, err := event.ParseIss(body)
			if err != nil {
				return nil, err
			}
			indexed, err := x.indexIssuance(ctx, iss, stored)
			if err != nil {
				return nil, err
			}
			reg.Credentials[indexed.CredentialId] = indexed
			reg.Order = append(reg.Order, indexed.CredentialId)
		case event.TypeRev:
			rev, err := event.ParseRev(body)
			if err != nil {
				return nil, err
			}
			indexed, ok := reg.Credentials[rev.I]
			if !ok {
				return nil, fmt.Errorf("%w: rev for %s without iss", tel.ErrNotIssued, rev.I)
			}
			indexed.Status = StatusRevoked
			indexed.Revoked = true
			indexed.TelEvents = append(indexed.TelEvents, TelEventRef{
				Said: stored.Said, Type: event.TypeRev, Sn: stored.Meta.Sn, Dt: rev.Dt,
			})
		}
	}

	// second pass: linkedFrom is the reverse of linkedTo across the set
	for _, from := range reg.Order {
		for _, target := range reg.Credentials[from].LinkedTo {
			if to, ok := reg.Credentials[target]; ok {
				to.LinkedFrom = append(to.LinkedFrom, from)
			}
		}
	}
	x.log.Debugf("index.registry: id=%s credentials=%d", registryId, len(reg.Credentials))
	return reg, nil
}

func (x *Indexer) indexIssuance(ctx context.Context, iss *event.Iss, stored store.StoredEvent) (*IndexedACDC, error) {
	acdc, err := x.store.GetAcdc(ctx, iss.I)
	if err != nil {
		return nil, err
	}
	holder, err := acdc.HolderAid()
	if err != nil {
		return nil, err
	}
	edges, err := acdc.Edges()
	if err != nil {
		return nil, err
	}
	indexed := &IndexedACDC{
		CredentialId: iss.I,
		IssuerAid:    acdc.I,
		HolderAid:    holder,
		SchemaSaid:   acdc.S,
		Edges:        edges,
		Status:       StatusIssued,
		TelEvents: []TelEventRef{{
			Said: stored.Said, Type: event.TypeIss, Sn: stored.Meta.Sn, Dt: iss.Dt,
		}},
	}
	labels := make([]string, 0, len(edges))
	for l := range edges {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	for _, l := range labels {
		indexed.LinkedTo = append(indexed.LinkedTo, edges[l].N)
	}
	return indexed, nil
}

// IndexAcdc is the single credential subset of IndexRegistry.
func (x *Indexer) IndexAcdc(ctx context.Context, credentialId, registryId string) (*IndexedACDC, error) {
	reg, err := x.IndexRegistry(ctx, registryId)
	if err != nil {
		return nil, err
	}
	indexed, ok := reg.Credentials[credentialId]
	if !ok {
		return nil, fmt.Errorf("%w: credential %s in %s", store.ErrNotFound, credentialId, registryId)
	}
	return indexed, nil
}

// Status returns the current status of a credential in a registry.
func (x *Indexer) Status(ctx context.Context, credentialId, registryId string) (string, bool, error) {
	indexed, err := x.IndexAcdc(ctx, credentialId, registryId)
	if err != nil {
		return "", false, err
	}
	return indexed.Status, indexed.Revoked, nil
}
