package builder

import (
	"context"
	"fmt"

	"github.com/aaronp/go-kerits/crypto"
	"github.com/aaronp/go-kerits/store"
)

// NewMnemonic encodes a 32 byte seed as the account mnemonic.
func (b *Builder) NewMnemonic(seed []byte) (string, error) {
	return crypto.NewMnemonic(seed)
}

// NewAccount incepts an identifier from a mnemonic, binds the alias,
// and leaves the account unlocked. The inception commits to the
// successor seed's key for the first rotation.
func (b *Builder) NewAccount(ctx context.Context, alias, mnemonic string) (*Account, error) {
	seed, err := crypto.SeedFromMnemonic(mnemonic)
	if err != nil {
		return nil, err
	}
	signer, err := b.suite.KeypairFromSeed(seed)
	if err != nil {
		return nil, err
	}
	next, err := b.suite.KeypairFromSeed(crypto.SuccessorSeed(seed))
	if err != nil {
		return nil, err
	}
	nextDigest, err := crypto.KeyDigest(b.suite, next.Verfer())
	if err != nil {
		return nil, err
	}
	aid, _, err := b.kel.Incept(ctx, []crypto.Signer{signer}, 1, []string{nextDigest}, 1)
	if err != nil {
		return nil, err
	}
	if err := b.store.PutAlias(ctx, store.NsKel, aid, alias); err != nil {
		return nil, err
	}
	b.keys.UnlockSigner(aid, signer)
	account := Account{Alias: alias, Aid: aid}
	b.accounts[alias] = account
	return &account, nil
}

// RotateKeys rotates an account to the keys of a new mnemonic. The new
// keys must match the pre-rotation commitment of the log head, and the
// event commits to the new mnemonic's successor in turn.
func (b *Builder) RotateKeys(ctx context.Context, account, mnemonic string) error {
	aid, err := b.resolveAccount(ctx, account)
	if err != nil {
		return err
	}
	seed, err := crypto.SeedFromMnemonic(mnemonic)
	if err != nil {
		return err
	}
	signer, err := b.suite.KeypairFromSeed(seed)
	if err != nil {
		return err
	}
	next, err := b.suite.KeypairFromSeed(crypto.SuccessorSeed(seed))
	if err != nil {
		return err
	}
	nextDigest, err := crypto.KeyDigest(b.suite, next.Verfer())
	if err != nil {
		return err
	}
	if _, err := b.kel.Rotate(ctx, aid, []crypto.Signer{signer}, 1, []string{nextDigest}, 1); err != nil {
		return err
	}
	b.keys.UnlockSigner(aid, signer)
	return nil
}

// Unlock derives the account's current signing key from its mnemonic
// and caches it. The derived key must be the log head's current key.
func (b *Builder) Unlock(ctx context.Context, account, mnemonic string) error {
	aid, err := b.resolveAccount(ctx, account)
	if err != nil {
		return err
	}
	st, err := b.kel.State(ctx, aid)
	if err != nil {
		return err
	}
	signer, err := b.keys.Unlock(aid, mnemonic, st.Rotations)
	if err != nil {
		return err
	}
	for _, k := range st.Keys {
		if k == signer.Verfer() {
			return nil
		}
	}
	b.keys.Lock(aid)
	return fmt.Errorf("%w: %s", ErrWrongMnemonic, aid)
}

// Lock forgets the account's signer.
func (b *Builder) Lock(ctx context.Context, account string) error {
	aid, err := b.resolveAccount(ctx, account)
	if err != nil {
		return err
	}
	b.keys.Lock(aid)
	return nil
}

// IsUnlocked reports whether the account can sign.
func (b *Builder) IsUnlocked(ctx context.Context, account string) (bool, error) {
	aid, err := b.resolveAccount(ctx, account)
	if err != nil {
		return false, err
	}
	return b.keys.IsUnlocked(aid), nil
}

// PublicKey returns the account's current signing key.
func (b *Builder) PublicKey(ctx context.Context, account string) (string, error) {
	aid, err := b.resolveAccount(ctx, account)
	if err != nil {
		return "", err
	}
	st, err := b.kel.State(ctx, aid)
	if err != nil {
		return "", err
	}
	return st.Keys[0], nil
}

// Accounts lists the locally named identifiers.
func (b *Builder) Accounts(ctx context.Context) ([]Account, error) {
	aliases, err := b.store.ListAliases(ctx, store.NsKel)
	if err != nil {
		return nil, err
	}
	out := make([]Account, 0, len(aliases))
	for alias, aid := range aliases {
		out = append(out, Account{Alias: alias, Aid: aid})
	}
	return out, nil
}

// resolveAccount accepts an account alias or a bare AID.
func (b *Builder) resolveAccount(ctx context.Context, account string) (string, error) {
	if cached, ok := b.accounts[account]; ok {
		return cached.Aid, nil
	}
	aid, err := b.store.Resolve(ctx, store.NsKel, account)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrUnknownAccount, account)
	}
	return aid, nil
}
