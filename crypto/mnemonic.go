package crypto

import (
	"fmt"

	bip39 "github.com/tyler-smith/go-bip39"
)

// NewMnemonic encodes a 32 byte seed as a 24 word mnemonic. The seed is
// used directly as BIP39 entropy so the mapping is bijective.
func NewMnemonic(seed []byte) (string, error) {
	if len(seed) != SeedSize {
		return "", fmt.Errorf("%w: got %d", ErrBadSeed, len(seed))
	}
	m, err := bip39.NewMnemonic(seed)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadMnemonic, err)
	}
	return m, nil
}

// SeedFromMnemonic recovers the 32 byte seed behind a mnemonic.
func SeedFromMnemonic(mnemonic string) ([]byte, error) {
	seed, err := bip39.EntropyFromMnemonic(mnemonic)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadMnemonic, err)
	}
	if len(seed) != SeedSize {
		return nil, fmt.Errorf("%w: mnemonic carries %d bytes of entropy", ErrBadMnemonic, len(seed))
	}
	return seed, nil
}

// SuccessorSeed derives the pre-rotation successor of a seed by
// incrementing every byte. Inception commits to the successor's key
// digest; rotation reveals the successor keys and commits to theirs.
func SuccessorSeed(seed []byte) []byte {
	next := make([]byte, len(seed))
	for i, b := range seed {
		next[i] = b + 1
	}
	return next
}
