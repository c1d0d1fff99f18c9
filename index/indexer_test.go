package index

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronp/go-kerits/cesr"
	"github.com/aaronp/go-kerits/crypto"
	"github.com/aaronp/go-kerits/event"
	"github.com/aaronp/go-kerits/kel"
	"github.com/aaronp/go-kerits/keritesting"
	"github.com/aaronp/go-kerits/store"
	"github.com/aaronp/go-kerits/tel"
)

var suite = crypto.NewSuite()

type testRig struct {
	Store   *store.Store
	Kel     *kel.Engine
	Tel     *tel.Engine
	Keys    *crypto.Manager
	Indexer *Indexer
}

func newTestRig(t *testing.T) *testRig {
	t.Helper()
	c := keritesting.NewTestContext(t, keritesting.TestConfig{TestLabelPrefix: "indextest"})
	kelEngine := kel.New(c.Store, c.Suite, c.Keys, c.Log)
	telEngine := tel.New(c.Store, c.Suite, kelEngine, c.Keys, c.Log,
		tel.WithClock(keritesting.FixedClock(1700000000)))
	return &testRig{Store: c.Store, Kel: kelEngine, Tel: telEngine, Keys: c.Keys, Indexer: New(c.Store, c.Log)}
}

func seedOf(b byte) []byte {
	return keritesting.Seed(b)
}

func (r *testRig) newIssuer(t *testing.T, seed []byte) string {
	t.Helper()
	signer, err := suite.KeypairFromSeed(seed)
	require.NoError(t, err)
	aid, _, err := r.Kel.Incept(context.Background(), []crypto.Signer{signer}, 1, nil, 0)
	require.NoError(t, err)
	r.Keys.UnlockSigner(aid, signer)
	return aid
}

func (r *testRig) newSchema(t *testing.T, title string) string {
	t.Helper()
	withSaid, said, err := event.BuildSchema([]byte(`{"title":"`+title+`","type":"object"}`), suite.SaidDigest)
	require.NoError(t, err)
	_, err = r.Store.PutSchema(context.Background(), withSaid)
	require.NoError(t, err)
	return said
}

func (r *testRig) issue(t *testing.T, registry, issuer, schema, holder, name string, edges map[string]event.Edge) string {
	t.Helper()
	res, err := r.Tel.Issue(context.Background(), tel.IssueParams{
		RegistryId: registry, IssuerAid: issuer, SchemaSaid: schema,
		HolderAid: holder, Data: map[string]any{"name": name}, Edges: edges,
	})
	require.NoError(t, err)
	return res.CredentialId
}

func TestIndexRegistryStatusTimeline(t *testing.T) {
	r := newTestRig(t)
	ctx := context.Background()
	issuer := r.newIssuer(t, seedOf(0x01))
	holder := r.newIssuer(t, seedOf(0x02))
	registry, err := r.Tel.CreateRegistry(ctx, issuer, tel.RegistryOptions{})
	require.NoError(t, err)
	schema := r.newSchema(t, "degree")

	keep := r.issue(t, registry, issuer, schema, holder, "keep", nil)
	drop := r.issue(t, registry, issuer, schema, holder, "drop", nil)
	_, err = r.Tel.Revoke(ctx, drop, issuer)
	require.NoError(t, err)

	reg, err := r.Indexer.IndexRegistry(ctx, registry)
	require.NoError(t, err)
	assert.Equal(t, issuer, reg.IssuerAid)
	assert.Equal(t, []string{keep, drop}, reg.Order)

	kept := reg.Credentials[keep]
	require.NotNil(t, kept)
	assert.Equal(t, StatusIssued, kept.Status)
	assert.False(t, kept.Revoked)
	assert.Equal(t, holder, kept.HolderAid)
	assert.Equal(t, schema, kept.SchemaSaid)
	require.Len(t, kept.TelEvents, 1)
	assert.Equal(t, event.TypeIss, kept.TelEvents[0].Type)

	dropped := reg.Credentials[drop]
	require.NotNil(t, dropped)
	assert.Equal(t, StatusRevoked, dropped.Status)
	assert.True(t, dropped.Revoked)
	require.Len(t, dropped.TelEvents, 2)
	assert.Equal(t, event.TypeIss, dropped.TelEvents[0].Type)
	assert.Equal(t, event.TypeRev, dropped.TelEvents[1].Type)

	status, revoked, err := r.Indexer.Status(ctx, drop, registry)
	require.NoError(t, err)
	assert.Equal(t, StatusRevoked, status)
	assert.True(t, revoked)
}

func TestIndexRegistryLinks(t *testing.T) {
	r := newTestRig(t)
	ctx := context.Background()
	issuer := r.newIssuer(t, seedOf(0x01))
	registry, err := r.Tel.CreateRegistry(ctx, issuer, tel.RegistryOptions{})
	require.NoError(t, err)
	schema := r.newSchema(t, "degree")

	root := r.issue(t, registry, issuer, schema, issuer, "root", nil)
	child := r.issue(t, registry, issuer, schema, issuer, "child",
		map[string]event.Edge{"parent": {N: root}})

	childIdx, err := r.Indexer.IndexAcdc(ctx, child, registry)
	require.NoError(t, err)
	assert.Equal(t, []string{root}, childIdx.LinkedTo)
	assert.Empty(t, childIdx.LinkedFrom)

	rootIdx, err := r.Indexer.IndexAcdc(ctx, root, registry)
	require.NoError(t, err)
	assert.Empty(t, rootIdx.LinkedTo)
	assert.Equal(t, []string{child}, rootIdx.LinkedFrom)
}

func TestIndexRegistryInvisibleWhenUnanchored(t *testing.T) {
	r := newTestRig(t)
	ctx := context.Background()
	issuer := r.newIssuer(t, seedOf(0x01))

	// craft a vcp that never gets its KEL anchor
	scratch := newTestRig(t)
	signer, err := suite.KeypairFromSeed(seedOf(0x01))
	require.NoError(t, err)
	scratchAid, _, err := scratch.Kel.Incept(ctx, []crypto.Signer{signer}, 1, nil, 0)
	require.NoError(t, err)
	require.Equal(t, issuer, scratchAid)
	scratch.Keys.UnlockSigner(issuer, signer)
	orphan, err := scratch.Tel.CreateRegistry(ctx, issuer, tel.RegistryOptions{})
	require.NoError(t, err)
	scratchTel, err := scratch.Store.ListTel(ctx, orphan)
	require.NoError(t, err)
	_, err = r.Store.PutEvent(ctx, scratchTel[0].Raw)
	require.NoError(t, err)

	_, err = r.Indexer.IndexRegistry(ctx, orphan)
	require.ErrorIs(t, err, tel.ErrUnanchored)
}

func TestIndexRegistrySubRegistryParent(t *testing.T) {
	r := newTestRig(t)
	ctx := context.Background()
	issuer := r.newIssuer(t, seedOf(0x01))
	parent, err := r.Tel.CreateRegistry(ctx, issuer, tel.RegistryOptions{})
	require.NoError(t, err)
	child, err := r.Tel.CreateRegistry(ctx, issuer, tel.RegistryOptions{ParentRegistryId: parent})
	require.NoError(t, err)

	reg, err := r.Indexer.IndexRegistry(ctx, child)
	require.NoError(t, err)
	assert.Equal(t, parent, reg.ParentRegistryId)
}

func TestBuildGraph(t *testing.T) {
	r := newTestRig(t)
	ctx := context.Background()
	issuer := r.newIssuer(t, seedOf(0x01))
	registry, err := r.Tel.CreateRegistry(ctx, issuer, tel.RegistryOptions{})
	require.NoError(t, err)
	schema := r.newSchema(t, "degree")
	root := r.issue(t, registry, issuer, schema, issuer, "root", nil)
	child := r.issue(t, registry, issuer, schema, issuer, "child",
		map[string]event.Edge{"parent": {N: root}})
	_, err = r.Tel.Revoke(ctx, child, issuer)
	require.NoError(t, err)

	g, err := r.Indexer.BuildGraph(ctx)
	require.NoError(t, err)

	kinds := map[NodeKind]int{}
	for _, n := range g.Nodes {
		kinds[n.Kind]++
	}
	assert.Equal(t, 1, kinds[NodeAID])
	assert.Equal(t, 2, kinds[NodeKelEvt], "icp and the anchoring ixn")
	assert.Equal(t, 1, kinds[NodeTelRegistry])
	assert.Equal(t, 3, kinds[NodeTelEvt], "two iss, one rev")
	assert.Equal(t, 2, kinds[NodeAcdc])
	assert.Equal(t, 1, kinds[NodeSchema])

	hasEdge := func(kind EdgeKind, to string) bool {
		for _, e := range g.Edges {
			if e.Kind == kind && e.To == to {
				return true
			}
		}
		return false
	}
	assert.True(t, hasEdge(EdgeAnchor, registry))
	assert.True(t, hasEdge(EdgeIssues, root))
	assert.True(t, hasEdge(EdgeRevokes, child))
	assert.True(t, hasEdge(EdgeUsesSchema, schema))
	assert.True(t, hasEdge(EdgeEdge, root))
}

func TestGraphDOTRendering(t *testing.T) {
	r := newTestRig(t)
	ctx := context.Background()
	issuer := r.newIssuer(t, seedOf(0x01))
	registry, err := r.Tel.CreateRegistry(ctx, issuer, tel.RegistryOptions{})
	require.NoError(t, err)
	schema := r.newSchema(t, "degree")
	r.issue(t, registry, issuer, schema, issuer, "root", nil)

	g, err := r.Indexer.BuildGraph(ctx)
	require.NoError(t, err)
	rendered := g.DOT()
	assert.Contains(t, rendered, "digraph")
	assert.Contains(t, rendered, "ISSUES")
	assert.Contains(t, rendered, "ANCHOR")
	assert.Contains(t, rendered, "USES_SCHEMA")
}

func TestTraverseEdgeChain(t *testing.T) {
	r := newTestRig(t)
	ctx := context.Background()
	issuer := r.newIssuer(t, seedOf(0x01))
	registry, err := r.Tel.CreateRegistry(ctx, issuer, tel.RegistryOptions{})
	require.NoError(t, err)
	schema := r.newSchema(t, "degree")
	root := r.issue(t, registry, issuer, schema, issuer, "root", nil)
	mid := r.issue(t, registry, issuer, schema, issuer, "mid",
		map[string]event.Edge{"parent": {N: root}})
	leaf := r.issue(t, registry, issuer, schema, issuer, "leaf",
		map[string]event.Edge{"parent": {N: mid}})

	tree, err := r.Indexer.Traverse(ctx, leaf)
	require.NoError(t, err)
	assert.Equal(t, leaf, tree.CredentialId)
	require.Len(t, tree.Children, 1)
	assert.Equal(t, "parent", tree.Children[0].Label)
	assert.Equal(t, mid, tree.Children[0].Node.CredentialId)
	require.Len(t, tree.Children[0].Node.Children, 1)
	assert.Equal(t, root, tree.Children[0].Node.Children[0].Node.CredentialId)
	assert.False(t, tree.Children[0].Node.Children[0].Node.Cycle)
}

func TestTraverseToleratesCycles(t *testing.T) {
	r := newTestRig(t)
	ctx := context.Background()

	// a self-referential credential cannot be produced by issuance, but an
	// import can carry one: the edge target is the placeholder so it
	// resolves to the credential's own said
	a, err := event.BuildAttributes("Dholder", map[string]any{})
	require.NoError(t, err)
	acdc := &event.Acdc{
		V: cesr.VersionPlaceholder(cesr.FamilyACDC), D: cesr.SaidPlaceholder,
		I: "Dissuer", Ri: "Eregistry", S: "Eschema", A: a,
		E: []byte(`{"self":{"n":"` + cesr.SaidPlaceholder + `"}}`),
	}
	body, err := acdc.Serialize()
	require.NoError(t, err)
	frame, said, err := cesr.EncodeSaidified(body, cesr.FamilyACDC, "d", suite.SaidDigest)
	require.NoError(t, err)
	_, err = r.Store.PutEvent(ctx, frame)
	require.NoError(t, err)

	tree, err := r.Indexer.Traverse(ctx, said)
	require.NoError(t, err)
	require.Len(t, tree.Children, 1)
	assert.True(t, tree.Children[0].Node.Cycle, "revisited credential must be a cycle marker, not a loop")
	assert.Empty(t, tree.Children[0].Node.Children)
}

func TestTraverseUnknownTargetTerminatesBranch(t *testing.T) {
	r := newTestRig(t)
	tree, err := r.Indexer.Traverse(context.Background(), "E"+string(bytes.Repeat([]byte{'A'}, 43)))
	require.NoError(t, err)
	assert.Empty(t, tree.Children)
	assert.False(t, tree.Cycle)
}
