package tel

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronp/go-kerits/cesr"
	"github.com/aaronp/go-kerits/crypto"
	"github.com/aaronp/go-kerits/event"
	"github.com/aaronp/go-kerits/kel"
	"github.com/aaronp/go-kerits/keritesting"
	"github.com/aaronp/go-kerits/store"
)

var suite = crypto.NewSuite()

type testRig struct {
	Store *store.Store
	Kel   *kel.Engine
	Tel   *Engine
	Keys  *crypto.Manager
}

func newTestRig(t *testing.T) *testRig {
	t.Helper()
	c := keritesting.NewTestContext(t, keritesting.TestConfig{TestLabelPrefix: "teltest"})
	kelEngine := kel.New(c.Store, c.Suite, c.Keys, c.Log)
	telEngine := New(c.Store, c.Suite, kelEngine, c.Keys, c.Log,
		WithClock(keritesting.FixedClock(1700000000)))
	return &testRig{Store: c.Store, Kel: kelEngine, Tel: telEngine, Keys: c.Keys}
}

func seedOf(b byte) []byte {
	return keritesting.Seed(b)
}

// newIssuer incepts an unlocked account the way the builder does.
func (r *testRig) newIssuer(t *testing.T, seed []byte) string {
	t.Helper()
	signer, err := suite.KeypairFromSeed(seed)
	require.NoError(t, err)
	next, err := suite.KeypairFromSeed(crypto.SuccessorSeed(seed))
	require.NoError(t, err)
	nextDigest, err := crypto.KeyDigest(suite, next.Verfer())
	require.NoError(t, err)
	aid, _, err := r.Kel.Incept(context.Background(), []crypto.Signer{signer}, 1, []string{nextDigest}, 1)
	require.NoError(t, err)
	r.Keys.UnlockSigner(aid, signer)
	return aid
}

func (r *testRig) newSchema(t *testing.T) string {
	t.Helper()
	body := []byte(`{"title":"degree","type":"object","properties":{"name":{"type":"string"}}}`)
	withSaid, said, err := event.BuildSchema(body, suite.SaidDigest)
	require.NoError(t, err)
	_, err = r.Store.PutSchema(context.Background(), withSaid)
	require.NoError(t, err)
	return said
}

func TestCreateRegistryAnchorsInKel(t *testing.T) {
	r := newTestRig(t)
	ctx := context.Background()
	issuer := r.newIssuer(t, seedOf(0x01))

	registryId, err := r.Tel.CreateRegistry(ctx, issuer, RegistryOptions{})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(registryId, "E"))

	// KEL grew to (icp, ixn) and the seal points at the vcp
	kelEvents, err := r.Store.ListKel(ctx, issuer)
	require.NoError(t, err)
	require.Len(t, kelEvents, 2)
	assert.Equal(t, event.TypeIxn, kelEvents[1].Meta.Type)

	tel, err := r.Store.ListTel(ctx, registryId)
	require.NoError(t, err)
	require.Len(t, tel, 1)
	assert.Equal(t, event.TypeVcp, tel[0].Meta.Type)
	assert.Equal(t, registryId, tel[0].Said, "registry id is the vcp said")

	anchored, err := r.Tel.IsAnchored(ctx, registryId)
	require.NoError(t, err)
	assert.True(t, anchored)

	vcp, err := r.Tel.Registry(ctx, registryId)
	require.NoError(t, err)
	assert.Equal(t, issuer, vcp.II)
	assert.Equal(t, registryId, vcp.I)
	assert.NotEmpty(t, vcp.N)
}

func TestCreateRegistryRequiresUnlockedIssuer(t *testing.T) {
	r := newTestRig(t)
	issuer := r.newIssuer(t, seedOf(0x01))
	r.Keys.Lock(issuer)
	_, err := r.Tel.CreateRegistry(context.Background(), issuer, RegistryOptions{})
	require.ErrorIs(t, err, crypto.ErrLocked)
}

func TestRegistriesWithSameConfigAreDistinct(t *testing.T) {
	r := newTestRig(t)
	ctx := context.Background()
	issuer := r.newIssuer(t, seedOf(0x01))

	r1, err := r.Tel.CreateRegistry(ctx, issuer, RegistryOptions{})
	require.NoError(t, err)
	r2, err := r.Tel.CreateRegistry(ctx, issuer, RegistryOptions{})
	require.NoError(t, err)
	assert.NotEqual(t, r1, r2)
}

func TestSubRegistryCarriesParentEdge(t *testing.T) {
	r := newTestRig(t)
	ctx := context.Background()
	issuer := r.newIssuer(t, seedOf(0x01))

	parent, err := r.Tel.CreateRegistry(ctx, issuer, RegistryOptions{})
	require.NoError(t, err)
	child, err := r.Tel.CreateRegistry(ctx, issuer, RegistryOptions{ParentRegistryId: parent})
	require.NoError(t, err)

	vcp, err := r.Tel.Registry(ctx, child)
	require.NoError(t, err)
	require.NotNil(t, vcp.E)
	require.NotNil(t, vcp.E.Parent)
	assert.Equal(t, parent, vcp.E.Parent.N)

	// the sub-registry is anchored in the issuer's KEL like any other
	anchored, err := r.Tel.IsAnchored(ctx, child)
	require.NoError(t, err)
	assert.True(t, anchored)
}

func TestIssueAndRevoke(t *testing.T) {
	r := newTestRig(t)
	ctx := context.Background()
	issuer := r.newIssuer(t, seedOf(0x01))
	holder := r.newIssuer(t, seedOf(0x02))
	registryId, err := r.Tel.CreateRegistry(ctx, issuer, RegistryOptions{})
	require.NoError(t, err)
	schema := r.newSchema(t)

	res, err := r.Tel.Issue(ctx, IssueParams{
		RegistryId: registryId, IssuerAid: issuer, SchemaSaid: schema,
		HolderAid: holder, Data: map[string]any{"name": "BS"},
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(res.CredentialId, "E"))

	acdc, err := r.Store.GetAcdc(ctx, res.CredentialId)
	require.NoError(t, err)
	assert.Equal(t, issuer, acdc.I)
	assert.Equal(t, registryId, acdc.Ri)
	assert.Equal(t, schema, acdc.S)
	gotHolder, err := acdc.HolderAid()
	require.NoError(t, err)
	assert.Equal(t, holder, gotHolder)

	revSaid, err := r.Tel.Revoke(ctx, res.CredentialId, issuer)
	require.NoError(t, err)
	assert.NotEmpty(t, revSaid)

	tel, err := r.Store.ListTel(ctx, registryId)
	require.NoError(t, err)
	require.Len(t, tel, 3)
	assert.Equal(t, event.TypeVcp, tel[0].Meta.Type)
	assert.Equal(t, event.TypeIss, tel[1].Meta.Type)
	assert.Equal(t, event.TypeRev, tel[2].Meta.Type)

	// the rev references the iss it supersedes
	var rev *event.Rev
	revParsed, err := event.ParseRev(mustBody(t, tel[2].Raw))
	require.NoError(t, err)
	rev = revParsed
	assert.Equal(t, tel[1].Said, rev.P)
	assert.Equal(t, "1", rev.S)
}

func TestDoubleRevocationFails(t *testing.T) {
	r := newTestRig(t)
	ctx := context.Background()
	issuer := r.newIssuer(t, seedOf(0x01))
	registryId, err := r.Tel.CreateRegistry(ctx, issuer, RegistryOptions{})
	require.NoError(t, err)
	schema := r.newSchema(t)

	res, err := r.Tel.Issue(ctx, IssueParams{
		RegistryId: registryId, IssuerAid: issuer, SchemaSaid: schema,
		HolderAid: issuer, Data: map[string]any{"name": "BS"},
	})
	require.NoError(t, err)

	_, err = r.Tel.Revoke(ctx, res.CredentialId, issuer)
	require.NoError(t, err)

	before, err := r.Store.TelLength(ctx, registryId)
	require.NoError(t, err)

	_, err = r.Tel.Revoke(ctx, res.CredentialId, issuer)
	require.ErrorIs(t, err, ErrAlreadyRevoked)

	after, err := r.Store.TelLength(ctx, registryId)
	require.NoError(t, err)
	assert.Equal(t, before, after, "failed revocation must not grow the log")
}

func TestIssueValidatesEdges(t *testing.T) {
	r := newTestRig(t)
	ctx := context.Background()
	issuer := r.newIssuer(t, seedOf(0x01))
	registryId, err := r.Tel.CreateRegistry(ctx, issuer, RegistryOptions{})
	require.NoError(t, err)
	schema := r.newSchema(t)

	root, err := r.Tel.Issue(ctx, IssueParams{
		RegistryId: registryId, IssuerAid: issuer, SchemaSaid: schema,
		HolderAid: issuer, Data: map[string]any{"name": "root"},
	})
	require.NoError(t, err)

	t.Run("valid edge", func(t *testing.T) {
		child, err := r.Tel.Issue(ctx, IssueParams{
			RegistryId: registryId, IssuerAid: issuer, SchemaSaid: schema,
			HolderAid: issuer, Data: map[string]any{"name": "child"},
			Edges: map[string]event.Edge{"parent": {N: root.CredentialId}},
		})
		require.NoError(t, err)
		acdc, err := r.Store.GetAcdc(ctx, child.CredentialId)
		require.NoError(t, err)
		edges, err := acdc.Edges()
		require.NoError(t, err)
		assert.Equal(t, root.CredentialId, edges["parent"].N)
	})

	t.Run("edge with matching schema constraint", func(t *testing.T) {
		_, err := r.Tel.Issue(ctx, IssueParams{
			RegistryId: registryId, IssuerAid: issuer, SchemaSaid: schema,
			HolderAid: issuer, Data: map[string]any{"name": "constrained"},
			Edges: map[string]event.Edge{"parent": {N: root.CredentialId, S: schema}},
		})
		require.NoError(t, err)
	})

	t.Run("missing target", func(t *testing.T) {
		missing := strings.Repeat("A", 43)
		_, err := r.Tel.Issue(ctx, IssueParams{
			RegistryId: registryId, IssuerAid: issuer, SchemaSaid: schema,
			HolderAid: issuer, Data: map[string]any{"name": "dangling"},
			Edges: map[string]event.Edge{"parent": {N: "E" + missing}},
		})
		require.ErrorIs(t, err, ErrEdgeTargetMissing)
	})

	t.Run("schema constraint mismatch", func(t *testing.T) {
		otherBody := []byte(`{"title":"other","type":"object"}`)
		otherWithSaid, otherSchema, err := event.BuildSchema(otherBody, suite.SaidDigest)
		require.NoError(t, err)
		_, err = r.Store.PutSchema(ctx, otherWithSaid)
		require.NoError(t, err)

		_, err = r.Tel.Issue(ctx, IssueParams{
			RegistryId: registryId, IssuerAid: issuer, SchemaSaid: schema,
			HolderAid: issuer, Data: map[string]any{"name": "mismatch"},
			Edges: map[string]event.Edge{"parent": {N: root.CredentialId, S: otherSchema}},
		})
		require.ErrorIs(t, err, ErrEdgeSchemaMismatch)
	})
}

func TestIssueRequiresKnownSchema(t *testing.T) {
	r := newTestRig(t)
	ctx := context.Background()
	issuer := r.newIssuer(t, seedOf(0x01))
	registryId, err := r.Tel.CreateRegistry(ctx, issuer, RegistryOptions{})
	require.NoError(t, err)

	_, err = r.Tel.Issue(ctx, IssueParams{
		RegistryId: registryId, IssuerAid: issuer,
		SchemaSaid: "E" + strings.Repeat("A", 43),
		HolderAid:  issuer, Data: map[string]any{},
	})
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestOrphanedRegistryIsRepairedByReanchor(t *testing.T) {
	r := newTestRig(t)
	ctx := context.Background()
	issuer := r.newIssuer(t, seedOf(0x01))
	registryId, err := r.Tel.CreateRegistry(ctx, issuer, RegistryOptions{})
	require.NoError(t, err)
	schema := r.newSchema(t)

	_, err = r.Tel.Issue(ctx, IssueParams{
		RegistryId: registryId, IssuerAid: issuer, SchemaSaid: schema,
		HolderAid: issuer, Data: map[string]any{"name": "BS"},
	})
	require.NoError(t, err)

	// an explicitly orphaned registry: write a vcp without its anchor
	orphan := orphanRegistry(t, r, issuer)
	anchored, err := r.Tel.IsAnchored(ctx, orphan)
	require.NoError(t, err)
	require.False(t, anchored)

	_, err = r.Tel.Issue(ctx, IssueParams{
		RegistryId: orphan, IssuerAid: issuer, SchemaSaid: schema,
		HolderAid: issuer, Data: map[string]any{"name": "BS"},
	})
	require.ErrorIs(t, err, ErrUnanchored)

	require.NoError(t, r.Tel.Reanchor(ctx, orphan))
	anchored, err = r.Tel.IsAnchored(ctx, orphan)
	require.NoError(t, err)
	assert.True(t, anchored)

	// reanchor again is a no-op
	kelBefore, err := r.Store.ListKel(ctx, issuer)
	require.NoError(t, err)
	require.NoError(t, r.Tel.Reanchor(ctx, orphan))
	kelAfter, err := r.Store.ListKel(ctx, issuer)
	require.NoError(t, err)
	assert.Equal(t, len(kelBefore), len(kelAfter))

	_, err = r.Tel.Issue(ctx, IssueParams{
		RegistryId: orphan, IssuerAid: issuer, SchemaSaid: schema,
		HolderAid: issuer, Data: map[string]any{"name": "BS"},
	})
	require.NoError(t, err)
}

// orphanRegistry persists a vcp without emitting its KEL anchor,
// simulating a crash between the coupled writes.
func orphanRegistry(t *testing.T, r *testRig, issuer string) string {
	t.Helper()
	ctx := context.Background()
	// build the vcp through the engine against a scratch rig sharing the
	// same keys, then copy only the vcp frame across
	scratch := newTestRig(t)
	signer, err := suite.KeypairFromSeed(seedOf(0x01))
	require.NoError(t, err)
	scratchAid, _, err := scratch.Kel.Incept(ctx, []crypto.Signer{signer}, 1, nil, 0)
	require.NoError(t, err)
	require.Equal(t, issuer, scratchAid)
	scratch.Keys.UnlockSigner(issuer, signer)
	registryId, err := scratch.Tel.CreateRegistry(ctx, issuer, RegistryOptions{})
	require.NoError(t, err)
	tel, err := scratch.Store.ListTel(ctx, registryId)
	require.NoError(t, err)
	_, err = r.Store.PutEvent(ctx, tel[0].Raw)
	require.NoError(t, err)
	return registryId
}

func mustBody(t *testing.T, frame []byte) []byte {
	t.Helper()
	_, body, _, err := cesr.Decode(frame)
	require.NoError(t, err)
	return body
}
