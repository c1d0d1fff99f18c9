// Package builder aggregates the codec, store, engines and indexer
// behind the account/registry/schema/credential surface a consumer
// programs against. A Builder owns the kv and crypto capabilities, the
// key manager, and the process-local account cache.
package builder

import (
	"context"
	"errors"
	"time"

	"github.com/datatrails/go-datatrails-common/logger"

	"github.com/aaronp/go-kerits/bundle"
	"github.com/aaronp/go-kerits/crypto"
	"github.com/aaronp/go-kerits/index"
	"github.com/aaronp/go-kerits/kel"
	"github.com/aaronp/go-kerits/kv"
	"github.com/aaronp/go-kerits/store"
	"github.com/aaronp/go-kerits/tel"
)

var (
	ErrUnknownAccount = errors.New("builder: unknown account")
	ErrWrongMnemonic  = errors.New("builder: mnemonic does not control this identifier")
)

// Account is the cached view of a local identifier.
type Account struct {
	Alias string
	Aid   string
}

// Builder is the consumer surface. It is a plain value to pass around,
// not a singleton; two builders over the same kv behave as two replicas.
type Builder struct {
	kv      kv.Store
	store   *store.Store
	suite   crypto.Suite
	keys    *crypto.Manager
	kel     *kel.Engine
	tel     *tel.Engine
	indexer *index.Indexer
	log     logger.Logger
	clock   func() time.Time

	accounts map[string]Account
}

// Option configures a Builder.
type Option func(*config)

type config struct {
	log   logger.Logger
	suite crypto.Suite
	clock func() time.Time
}

// WithLogger sets the logger shared by every component.
func WithLogger(log logger.Logger) Option {
	return func(c *config) { c.log = log }
}

// WithSuite overrides the crypto suite.
func WithSuite(suite crypto.Suite) Option {
	return func(c *config) { c.suite = suite }
}

// WithClock overrides the timestamp source used for TEL events and
// bundle metadata.
func WithClock(clock func() time.Time) Option {
	return func(c *config) { c.clock = clock }
}

// New wires a builder over a kv capability.
func New(kvs kv.Store, opts ...Option) (*Builder, error) {
	cfg := &config{
		suite: crypto.NewSuite(),
		clock: time.Now,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.log == nil {
		logger.New("INFO")
		cfg.log = logger.Sugar.WithServiceName("kerits")
	}
	st, err := store.New(kvs, cfg.log, cfg.suite.SaidDigest)
	if err != nil {
		return nil, err
	}
	keys := crypto.NewManager(cfg.suite)
	kelEngine := kel.New(st, cfg.suite, keys, cfg.log)
	telEngine := tel.New(st, cfg.suite, kelEngine, keys, cfg.log, tel.WithClock(cfg.clock))
	return &Builder{
		kv:       kvs,
		store:    st,
		suite:    cfg.suite,
		keys:     keys,
		kel:      kelEngine,
		tel:      telEngine,
		indexer:  index.New(st, cfg.log),
		log:      cfg.log,
		clock:    cfg.clock,
		accounts: map[string]Account{},
	}, nil
}

// Store exposes the underlying event store for advanced callers.
func (b *Builder) Store() *store.Store { return b.store }

// Keys exposes the key manager.
func (b *Builder) Keys() *crypto.Manager { return b.keys }

// Indexer exposes the query-time indexer.
func (b *Builder) Indexer() *index.Indexer { return b.indexer }

// Exporter builds bundles from this builder's store.
func (b *Builder) Exporter() *bundle.Exporter {
	return bundle.NewExporter(b.store, b.log, bundle.WithClock(b.clock))
}

// Importer ingests bundles into this builder's store.
func (b *Builder) Importer(opts ...bundle.ImporterOption) *bundle.Importer {
	return bundle.NewImporter(b.store, b.kel, b.log, opts...)
}

// Invalidate drops every process-local cache: the account map, the
// unlocked signers, and the store's existence filter. Call it after any
// external mutation of the backing kv.
func (b *Builder) Invalidate(ctx context.Context) error {
	b.accounts = map[string]Account{}
	b.keys.Reset()
	return b.store.RefreshFilter(ctx)
}
