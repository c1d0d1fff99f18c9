package builder

import (
	"context"

	"github.com/aaronp/go-kerits/store"
)

// Contact names a counterparty identifier.
type Contact struct {
	Alias string
	Aid   string
}

// AddContact names a counterparty AID in the contact namespace.
func (b *Builder) AddContact(ctx context.Context, alias, aid string) error {
	return b.store.PutAlias(ctx, store.NsContact, aid, alias)
}

// DelContact removes a contact by alias.
func (b *Builder) DelContact(ctx context.Context, alias string) error {
	return b.store.DelAlias(ctx, store.NsContact, alias)
}

// Contacts lists the named counterparties.
func (b *Builder) Contacts(ctx context.Context) ([]Contact, error) {
	aliases, err := b.store.ListAliases(ctx, store.NsContact)
	if err != nil {
		return nil, err
	}
	out := make([]Contact, 0, len(aliases))
	for alias, aid := range aliases {
		out = append(out, Contact{Alias: alias, Aid: aid})
	}
	return out, nil
}
