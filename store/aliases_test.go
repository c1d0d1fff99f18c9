package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAliasBindResolveDelete(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	aid := testVerfer(t, 0x01)

	require.NoError(t, s.PutAlias(ctx, NsKel, aid, "alice"))

	id, err := s.AliasToId(ctx, NsKel, "alice")
	require.NoError(t, err)
	assert.Equal(t, aid, id)

	alias, err := s.IdToAlias(ctx, NsKel, aid)
	require.NoError(t, err)
	assert.Equal(t, "alice", alias)

	all, err := s.ListAliases(ctx, NsKel)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"alice": aid}, all)

	require.NoError(t, s.DelAlias(ctx, NsKel, "alice"))
	_, err = s.AliasToId(ctx, NsKel, "alice")
	require.ErrorIs(t, err, ErrNotFound)
	alias, err = s.IdToAlias(ctx, NsKel, aid)
	require.NoError(t, err)
	assert.Empty(t, alias)
}

func TestAliasRebindRequiresDelete(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	aid1 := testVerfer(t, 0x01)
	aid2 := testVerfer(t, 0x02)

	require.NoError(t, s.PutAlias(ctx, NsKel, aid1, "alice"))

	// live alias cannot be rebound
	err := s.PutAlias(ctx, NsKel, aid2, "alice")
	require.ErrorIs(t, err, ErrAliasConflict)

	// nor can the identifier take a second name
	err = s.PutAlias(ctx, NsKel, aid1, "alicia")
	require.ErrorIs(t, err, ErrAliasConflict)

	require.NoError(t, s.DelAlias(ctx, NsKel, "alice"))
	require.NoError(t, s.PutAlias(ctx, NsKel, aid2, "alice"))
}

func TestAliasNamespacesAreDisjoint(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	aid := testVerfer(t, 0x01)
	registry := testDigestId(t, "registry")

	require.NoError(t, s.PutAlias(ctx, NsKel, aid, "degrees"))
	require.NoError(t, s.PutAlias(ctx, NsTel, registry, "degrees"))

	id, err := s.AliasToId(ctx, NsTel, "degrees")
	require.NoError(t, err)
	assert.Equal(t, registry, id)
}

func TestAliasRejectsIdentifierShapedNames(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	err := s.PutAlias(ctx, NsKel, testVerfer(t, 0x01), testVerfer(t, 0x02))
	require.ErrorIs(t, err, ErrBadAlias)

	err = s.PutAlias(ctx, NsKel, testVerfer(t, 0x01), "")
	require.ErrorIs(t, err, ErrBadAlias)

	err = s.PutAlias(ctx, NsKel, testVerfer(t, 0x01), "has/slash")
	require.ErrorIs(t, err, ErrBadAlias)
}

func TestAliasUnknownNamespace(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	err := s.PutAlias(ctx, "nope", "id", "name")
	require.ErrorIs(t, err, ErrBadNamespace)
	_, err = s.AliasToId(ctx, "nope", "name")
	require.ErrorIs(t, err, ErrBadNamespace)
}

func TestResolveAcceptsBothForms(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	aid := testVerfer(t, 0x01)
	require.NoError(t, s.PutAlias(ctx, NsKel, aid, "alice"))

	id, err := s.Resolve(ctx, NsKel, "alice")
	require.NoError(t, err)
	assert.Equal(t, aid, id)

	id, err = s.Resolve(ctx, NsKel, aid)
	require.NoError(t, err)
	assert.Equal(t, aid, id)
}
