// Package keritesting provides the shared test context used across the
// module's packages: a NOOP logger, a memdb-backed kv, a warmed store,
// the default crypto suite and a key manager, plus deterministic seed
// helpers.
package keritesting

import (
	"bytes"
	"testing"
	"time"

	"github.com/datatrails/go-datatrails-common/logger"
	"github.com/luxfi/database/memdb"
	"github.com/stretchr/testify/require"

	"github.com/aaronp/go-kerits/crypto"
	"github.com/aaronp/go-kerits/kv"
	"github.com/aaronp/go-kerits/store"
)

type TestContext struct {
	T     *testing.T
	Log   logger.Logger
	Kv    kv.Store
	Store *store.Store
	Suite crypto.Suite
	Keys  *crypto.Manager
}

type TestConfig struct {
	TestLabelPrefix string
	// Clock pins the store's ingest timestamps (meta records); nil means
	// the store default. TEL event timestamps are not affected.
	Clock func() time.Time
}

func NewTestContext(t *testing.T, cfg TestConfig) *TestContext {
	t.Helper()
	logger.New("NOOP")
	log := logger.Sugar.WithServiceName(cfg.TestLabelPrefix)
	suite := crypto.NewSuite()

	kvs := kv.FromDatabase(memdb.New())
	var opts []store.Option
	if cfg.Clock != nil {
		opts = append(opts, store.WithClock(cfg.Clock))
	}
	st, err := store.New(kvs, log, suite.SaidDigest, opts...)
	require.NoError(t, err)

	return &TestContext{
		T:     t,
		Log:   log,
		Kv:    kvs,
		Store: st,
		Suite: suite,
		Keys:  crypto.NewManager(suite),
	}
}

func (c *TestContext) GetLog() logger.Logger { return c.Log }

// Seed returns the 32 byte constant-fill seed test vectors use.
func Seed(b byte) []byte {
	return bytes.Repeat([]byte{b}, crypto.SeedSize)
}

// Mnemonic encodes a constant-fill seed.
func (c *TestContext) Mnemonic(b byte) string {
	m, err := crypto.NewMnemonic(Seed(b))
	require.NoError(c.T, err)
	return m
}

// Signer derives a keypair from a constant-fill seed.
func (c *TestContext) Signer(b byte) crypto.Signer {
	s, err := c.Suite.KeypairFromSeed(Seed(b))
	require.NoError(c.T, err)
	return s
}

// FixedClock pins time for deterministic dt fields.
func FixedClock(unix int64) func() time.Time {
	return func() time.Time { return time.Unix(unix, 0) }
}
