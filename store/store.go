// Package store persists raw framed events content addressed by SAID,
// maintains the KEL and TEL secondary indices and the alias namespaces,
// and denormalizes credentials and schemas for query paths. It owns event
// classification: callers hand it frames, not rows.
package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/datatrails/go-datatrails-common/logger"

	"github.com/aaronp/go-kerits/cesr"
	"github.com/aaronp/go-kerits/event"
	"github.com/aaronp/go-kerits/kv"
)

const (
	defaultFilterBits = 1 << 20
	defaultFilterK    = 4
)

// Store is the content addressed event store over a kv capability.
type Store struct {
	kv     kv.Store
	log    logger.Logger
	digest cesr.DigestFn
	codec  metaCodec
	filter *saidFilter
	clock  func() time.Time
}

// Option configures the store at construction.
type Option func(*Store)

// WithClock overrides the ingest timestamp source.
func WithClock(clock func() time.Time) Option {
	return func(s *Store) { s.clock = clock }
}

// StoredEvent is a raw frame with its said and meta record.
type StoredEvent struct {
	Said string
	Raw  []byte
	Meta Meta
}

// PutResult reports what a PutEvent did.
type PutResult struct {
	Said    string
	Type    string
	Created bool
}

// New builds a store over the kv capability. The digest function must
// match the suite that computed the stored SAIDs. The bloom filter is
// warmed from the existing events table.
func New(kvs kv.Store, log logger.Logger, digest cesr.DigestFn, opts ...Option) (*Store, error) {
	codec, err := newMetaCodec()
	if err != nil {
		return nil, err
	}
	s := &Store{
		kv:     kvs,
		log:    log,
		digest: digest,
		codec:  codec,
		filter: newSaidFilter(defaultFilterBits, defaultFilterK, digest),
		clock:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	keys, err := kvs.List([]byte(eventsPrefix))
	if err != nil {
		return nil, err
	}
	for _, k := range keys {
		s.filter.Insert(string(k[len(eventsPrefix):]))
	}
	return s, nil
}

// RefreshFilter rebuilds the bloom filter from the events table. Call it
// after another writer has mutated the backing kv; the filter is only
// maintained incrementally for this store's own writes.
func (s *Store) RefreshFilter(ctx context.Context) error {
	filter := newSaidFilter(defaultFilterBits, defaultFilterK, s.digest)
	keys, err := s.kv.List([]byte(eventsPrefix))
	if err != nil {
		return err
	}
	for _, k := range keys {
		filter.Insert(string(k[len(eventsPrefix):]))
	}
	s.filter = filter
	return nil
}

// PutEvent verifies, stores and indexes one framed event. It is
// idempotent on matching content and fails with ErrSaidConflict when a
// different event occupies the said. Indexing side effects are
// synchronous with the write.
func (s *Store) PutEvent(ctx context.Context, frame []byte) (PutResult, error) {
	raw, env, err := event.DecodeRaw(frame)
	if err != nil {
		return PutResult{}, err
	}
	said, err := cesr.VerifySaid(raw.Body, "d", s.digest)
	if err != nil {
		return PutResult{}, err
	}

	if existing, err := s.kv.Get(eventKey(said)); err == nil {
		if err := s.sameBody(existing, raw.Body, said); err != nil {
			return PutResult{}, err
		}
		return PutResult{Said: said, Type: env.T, Created: false}, nil
	} else if !errors.Is(err, kv.ErrNotFound) {
		return PutResult{}, err
	}

	meta, err := s.classify(ctx, raw, env)
	if err != nil {
		return PutResult{}, err
	}

	if err := s.kv.Put(eventKey(said), frame); err != nil {
		return PutResult{}, err
	}
	if err := s.index(ctx, raw, env, said, meta); err != nil {
		return PutResult{}, err
	}
	metaBytes, err := s.codec.marshal(meta)
	if err != nil {
		return PutResult{}, err
	}
	if err := s.kv.Put(metaKey(said), metaBytes); err != nil {
		return PutResult{}, err
	}
	s.filter.Insert(said)
	s.log.Debugf("store.put: t=%s said=%s sn=%d", env.T, said, meta.Sn)
	return PutResult{Said: said, Type: env.T, Created: true}, nil
}

// sameBody compares the framed body of the stored event with the
// incoming one; attachments may differ (the same event can arrive with a
// different signature set) and the first stored frame wins.
func (s *Store) sameBody(existingFrame, body []byte, said string) error {
	_, existingBody, _, err := cesr.Decode(existingFrame)
	if err != nil {
		return err
	}
	if !bytes.Equal(existingBody, body) {
		return fmt.Errorf("%w: %s", ErrSaidConflict, said)
	}
	return nil
}

func (s *Store) classify(ctx context.Context, raw *event.Raw, env *event.Envelope) (Meta, error) {
	meta := Meta{
		Family:     raw.Family,
		Type:       env.T,
		Identifier: env.I,
		StoredAt:   s.clock().UTC(),
	}
	switch {
	case event.IsKeyEvent(env.T):
		sn, err := event.ParseSn(env.S)
		if err != nil {
			return Meta{}, err
		}
		meta.Sn = sn
	case env.T == event.TypeVcp:
		meta.Registry = env.I
		meta.Sn = 0
	case env.T == event.TypeIss || env.T == event.TypeRev:
		meta.Registry = env.Ri
		position, err := s.TelLength(ctx, env.Ri)
		if err != nil {
			return Meta{}, err
		}
		meta.Sn = position
	case env.T == event.TypeAcdc:
		meta.Registry = env.Ri
	}
	return meta, nil
}

func (s *Store) index(ctx context.Context, raw *event.Raw, env *event.Envelope, said string, meta Meta) error {
	switch {
	case event.IsKeyEvent(env.T):
		key := kelEntryKey(env.I, meta.Sn)
		if occupant, err := s.kv.Get(key); err == nil {
			if string(occupant) != said {
				return fmt.Errorf("%w: kel %s sn %d holds %s", ErrSaidConflict, env.I, meta.Sn, occupant)
			}
			return nil
		} else if !errors.Is(err, kv.ErrNotFound) {
			return err
		}
		return s.kv.Put(key, []byte(said))
	case env.T == event.TypeVcp:
		return s.kv.Put(telEntryKey(env.I, 0, ""), []byte(said))
	case env.T == event.TypeIss || env.T == event.TypeRev:
		return s.kv.Put(telEntryKey(env.Ri, meta.Sn, env.I), []byte(said))
	case env.T == event.TypeAcdc:
		return s.kv.Put(acdcKey(said), raw.Body)
	}
	return nil
}

// GetEvent loads a frame and its meta record by said.
func (s *Store) GetEvent(ctx context.Context, said string) ([]byte, Meta, error) {
	frame, err := s.kv.Get(eventKey(said))
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return nil, Meta{}, fmt.Errorf("%w: event %s", ErrNotFound, said)
		}
		return nil, Meta{}, err
	}
	metaBytes, err := s.kv.Get(metaKey(said))
	if err != nil {
		return nil, Meta{}, err
	}
	meta, err := s.codec.unmarshal(metaBytes)
	if err != nil {
		return nil, Meta{}, err
	}
	return frame, meta, nil
}

// HasEvent reports whether a said is stored, consulting the bloom filter
// first.
func (s *Store) HasEvent(ctx context.Context, said string) (bool, error) {
	if !s.filter.MaybeContains(said) {
		return false, nil
	}
	_, err := s.kv.Get(eventKey(said))
	if errors.Is(err, kv.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ListKel returns an identifier's key events in sequence order. Unknown
// identifiers yield an empty log, not an error.
func (s *Store) ListKel(ctx context.Context, aid string) ([]StoredEvent, error) {
	return s.listLog(ctx, kelScanPrefix(aid))
}

// ListTel returns a registry's events in log order.
func (s *Store) ListTel(ctx context.Context, registryId string) ([]StoredEvent, error) {
	return s.listLog(ctx, telScanPrefix(registryId))
}

// TelLength returns the number of events in a registry's log, which is
// also the next log position.
func (s *Store) TelLength(ctx context.Context, registryId string) (uint64, error) {
	keys, err := s.kv.List(telScanPrefix(registryId))
	if err != nil {
		return 0, err
	}
	return uint64(len(keys)), nil
}

func (s *Store) listLog(ctx context.Context, prefix []byte) ([]StoredEvent, error) {
	keys, err := s.kv.List(prefix)
	if err != nil {
		return nil, err
	}
	out := make([]StoredEvent, 0, len(keys))
	for _, k := range keys {
		said, err := s.kv.Get(k)
		if err != nil {
			return nil, err
		}
		frame, meta, err := s.GetEvent(ctx, string(said))
		if err != nil {
			return nil, err
		}
		out = append(out, StoredEvent{Said: string(said), Raw: frame, Meta: meta})
	}
	return out, nil
}

// GetAcdc loads the denormalized credential body by said.
func (s *Store) GetAcdc(ctx context.Context, said string) (*event.Acdc, error) {
	body, err := s.kv.Get(acdcKey(said))
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return nil, fmt.Errorf("%w: credential %s", ErrNotFound, said)
		}
		return nil, err
	}
	return event.ParseAcdc(body)
}

// ListAcdcSaids returns the saids of every stored credential.
func (s *Store) ListAcdcSaids(ctx context.Context) ([]string, error) {
	keys, err := s.kv.List([]byte(acdcPrefix))
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, string(k[len(acdcPrefix):]))
	}
	return out, nil
}

// PutSchema verifies a schema against the $id convention and stores it.
// Idempotent on matching bytes.
func (s *Store) PutSchema(ctx context.Context, raw []byte) (string, error) {
	said, err := event.VerifySchema(raw, s.digest)
	if err != nil {
		return "", err
	}
	if existing, err := s.kv.Get(schemaKey(said)); err == nil {
		if !bytes.Equal(existing, raw) {
			return "", fmt.Errorf("%w: %s", ErrSchemaExists, said)
		}
		return said, nil
	} else if !errors.Is(err, kv.ErrNotFound) {
		return "", err
	}
	if err := s.kv.Put(schemaKey(said), raw); err != nil {
		return "", err
	}
	return said, nil
}

// GetSchema loads a schema body by said.
func (s *Store) GetSchema(ctx context.Context, said string) ([]byte, error) {
	raw, err := s.kv.Get(schemaKey(said))
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return nil, fmt.Errorf("%w: schema %s", ErrNotFound, said)
		}
		return nil, err
	}
	return raw, nil
}

// ListSchemaSaids returns the saids of every stored schema.
func (s *Store) ListSchemaSaids(ctx context.Context) ([]string, error) {
	keys, err := s.kv.List([]byte(schemaPrefix))
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, string(k[len(schemaPrefix):]))
	}
	return out, nil
}

// ListKelAids returns every identifier with at least one key event.
func (s *Store) ListKelAids(ctx context.Context) ([]string, error) {
	return s.listLogOwners(kelPrefix)
}

// ListTelRegistries returns every registry with at least one event.
func (s *Store) ListTelRegistries(ctx context.Context) ([]string, error) {
	return s.listLogOwners(telPrefix)
}

func (s *Store) listLogOwners(prefix string) ([]string, error) {
	keys, err := s.kv.List([]byte(prefix))
	if err != nil {
		return nil, err
	}
	var out []string
	seen := map[string]bool{}
	for _, k := range keys {
		rest := string(k[len(prefix):])
		for i := 0; i < len(rest); i++ {
			if rest[i] == '/' {
				rest = rest[:i]
				break
			}
		}
		if !seen[rest] {
			seen[rest] = true
			out = append(out, rest)
		}
	}
	return out, nil
}
