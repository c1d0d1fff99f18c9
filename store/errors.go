package store

import "errors"

var (
	ErrNotFound      = errors.New("store: not found")
	ErrSaidConflict  = errors.New("store: a different event is already stored under this said")
	ErrAliasConflict = errors.New("store: alias already bound in this namespace")
	ErrBadNamespace  = errors.New("store: unknown alias namespace")
	ErrBadAlias      = errors.New("store: alias must not be an identifier string")
	ErrSchemaExists  = errors.New("store: a different schema is already stored under this said")
)
