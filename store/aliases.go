package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aaronp/go-kerits/cesr"
	"github.com/aaronp/go-kerits/kv"
)

// PutAlias binds a human name to an identifier within a namespace. Both
// directions must be free; rebinding requires an explicit delete first.
func (s *Store) PutAlias(ctx context.Context, ns, id, alias string) error {
	if !knownNamespace(ns) {
		return fmt.Errorf("%w: %q", ErrBadNamespace, ns)
	}
	if alias == "" || strings.ContainsRune(alias, '/') {
		return fmt.Errorf("%w: %q", ErrBadAlias, alias)
	}
	if cesr.IsIdentifier(alias) {
		return fmt.Errorf("%w: %q", ErrBadAlias, alias)
	}
	if _, err := s.kv.Get(aliasKey(ns, alias)); err == nil {
		return fmt.Errorf("%w: %s/%s", ErrAliasConflict, ns, alias)
	} else if !errors.Is(err, kv.ErrNotFound) {
		return err
	}
	if _, err := s.kv.Get(aliasRevKey(ns, id)); err == nil {
		return fmt.Errorf("%w: %s already has an alias in %s", ErrAliasConflict, id, ns)
	} else if !errors.Is(err, kv.ErrNotFound) {
		return err
	}
	if err := s.kv.Put(aliasKey(ns, alias), []byte(id)); err != nil {
		return err
	}
	return s.kv.Put(aliasRevKey(ns, id), []byte(alias))
}

// AliasToId resolves an alias within a namespace.
func (s *Store) AliasToId(ctx context.Context, ns, alias string) (string, error) {
	if !knownNamespace(ns) {
		return "", fmt.Errorf("%w: %q", ErrBadNamespace, ns)
	}
	id, err := s.kv.Get(aliasKey(ns, alias))
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return "", fmt.Errorf("%w: alias %s/%s", ErrNotFound, ns, alias)
		}
		return "", err
	}
	return string(id), nil
}

// IdToAlias resolves an identifier back to its alias, "" when unnamed.
func (s *Store) IdToAlias(ctx context.Context, ns, id string) (string, error) {
	if !knownNamespace(ns) {
		return "", fmt.Errorf("%w: %q", ErrBadNamespace, ns)
	}
	alias, err := s.kv.Get(aliasRevKey(ns, id))
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return "", nil
		}
		return "", err
	}
	return string(alias), nil
}

// DelAlias removes both directions of a binding.
func (s *Store) DelAlias(ctx context.Context, ns, alias string) error {
	if !knownNamespace(ns) {
		return fmt.Errorf("%w: %q", ErrBadNamespace, ns)
	}
	id, err := s.kv.Get(aliasKey(ns, alias))
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return fmt.Errorf("%w: alias %s/%s", ErrNotFound, ns, alias)
		}
		return err
	}
	if err := s.kv.Del(aliasKey(ns, alias)); err != nil {
		return err
	}
	return s.kv.Del(aliasRevKey(ns, string(id)))
}

// ListAliases returns alias -> identifier for a namespace.
func (s *Store) ListAliases(ctx context.Context, ns string) (map[string]string, error) {
	if !knownNamespace(ns) {
		return nil, fmt.Errorf("%w: %q", ErrBadNamespace, ns)
	}
	prefix := aliasPrefix + ns + "/"
	keys, err := s.kv.List([]byte(prefix))
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		id, err := s.kv.Get(k)
		if err != nil {
			return nil, err
		}
		out[string(k[len(prefix):])] = string(id)
	}
	return out, nil
}

// Resolve accepts either an identifier or an alias in ns and returns the
// identifier.
func (s *Store) Resolve(ctx context.Context, ns, nameOrId string) (string, error) {
	if cesr.IsIdentifier(nameOrId) {
		return nameOrId, nil
	}
	return s.AliasToId(ctx, ns, nameOrId)
}
