package crypto

import "fmt"

// Manager holds the unlocked signers, one per AID. Engines must obtain
// signers through it so a locked identifier can never produce an
// unsigned or mis-signed event. It is process local state; builders
// invalidate it whenever the backing store is mutated externally.
type Manager struct {
	suite   Suite
	signers map[string]Signer
}

func NewManager(suite Suite) *Manager {
	return &Manager{suite: suite, signers: make(map[string]Signer)}
}

// Unlock derives the current signing key for aid from its mnemonic and
// the number of rotations its KEL has seen, and caches the signer.
func (m *Manager) Unlock(aid string, mnemonic string, rotations uint64) (Signer, error) {
	seed, err := SeedFromMnemonic(mnemonic)
	if err != nil {
		return nil, err
	}
	for range rotations {
		seed = SuccessorSeed(seed)
	}
	signer, err := m.suite.KeypairFromSeed(seed)
	if err != nil {
		return nil, err
	}
	m.signers[aid] = signer
	return signer, nil
}

// UnlockSigner caches an externally derived signer for aid.
func (m *Manager) UnlockSigner(aid string, signer Signer) {
	m.signers[aid] = signer
}

// Lock forgets the signer for aid.
func (m *Manager) Lock(aid string) {
	delete(m.signers, aid)
}

// IsUnlocked reports whether aid has a cached signer.
func (m *Manager) IsUnlocked(aid string) bool {
	_, ok := m.signers[aid]
	return ok
}

// Signer returns the cached signer for aid or ErrLocked.
func (m *Manager) Signer(aid string) (Signer, error) {
	s, ok := m.signers[aid]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLocked, aid)
	}
	return s, nil
}

// Reset drops every cached signer.
func (m *Manager) Reset() {
	m.signers = make(map[string]Signer)
}
