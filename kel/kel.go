// Package kel owns the key event log state machine: inception, rotation
// with pre-rotation enforcement, interaction anchoring, and validation of
// externally produced logs on ingest.
package kel

import (
	"context"
	"errors"
	"fmt"

	"github.com/datatrails/go-datatrails-common/logger"

	"github.com/aaronp/go-kerits/cesr"
	"github.com/aaronp/go-kerits/crypto"
	"github.com/aaronp/go-kerits/event"
	"github.com/aaronp/go-kerits/store"
)

var (
	ErrPriorMismatch       = errors.New("kel: prior said does not match the log head")
	ErrSequenceGap         = errors.New("kel: sequence number is not the next in the log")
	ErrPreRotationMismatch = errors.New("kel: revealed key was not committed by the prior event")
	ErrSignatureInvalid    = errors.New("kel: signature verification failed")
	ErrThresholdUnmet      = errors.New("kel: too few valid signatures for the signing threshold")
	ErrNotEstablished      = errors.New("kel: identifier has no inception event")
	ErrAlreadyEstablished  = errors.New("kel: identifier already has a key event log")
)

// State is the derived key state of an identifier after replaying its
// log.
type State struct {
	Aid         string
	Sn          uint64
	LastSaid    string
	Keys        []string
	Kt          int
	NextDigests []string
	Nt          int
	// Rotations counts rot events, which is also the position of the
	// current seed on the successor schedule.
	Rotations uint64
}

// Engine drives one store's key event logs.
type Engine struct {
	store *store.Store
	suite crypto.Suite
	keys  *crypto.Manager
	log   logger.Logger
}

func New(st *store.Store, suite crypto.Suite, keys *crypto.Manager, log logger.Logger) *Engine {
	return &Engine{store: st, suite: suite, keys: keys, log: log}
}

// Incept establishes a new identifier. A single signer yields a
// verifier-derived AID (the coded public key itself); multiple signers
// yield a self-addressing AID equal to the event SAID.
func (e *Engine) Incept(ctx context.Context, signers []crypto.Signer, kt int, nextDigests []string, nt int) (string, string, error) {
	if len(signers) == 0 || kt < 1 || kt > len(signers) {
		return "", "", fmt.Errorf("%w: kt %d with %d keys", ErrThresholdUnmet, kt, len(signers))
	}
	if len(nextDigests) > 0 && (nt < 1 || nt > len(nextDigests)) {
		return "", "", fmt.Errorf("%w: nt %d with %d next digests", ErrThresholdUnmet, nt, len(nextDigests))
	}
	if nextDigests == nil {
		nextDigests = []string{}
	}
	keys := verfers(signers)
	aid := keys[0]
	if len(keys) > 1 {
		aid = cesr.SaidPlaceholder
	}
	ev := &event.Icp{
		V: cesr.VersionPlaceholder(cesr.FamilyKERI), T: event.TypeIcp,
		D: cesr.SaidPlaceholder, I: aid, S: "0",
		Kt: event.FormatThreshold(kt), K: keys,
		Nt: event.FormatThreshold(nt), N: nextDigests,
	}
	body, err := ev.Serialize()
	if err != nil {
		return "", "", err
	}
	frame, said, err := cesr.EncodeSaidified(body, cesr.FamilyKERI, "d", e.suite.SaidDigest)
	if err != nil {
		return "", "", err
	}
	if aid == cesr.SaidPlaceholder {
		aid = said
	}
	if existing, err := e.store.ListKel(ctx, aid); err != nil {
		return "", "", err
	} else if len(existing) > 0 {
		return "", "", fmt.Errorf("%w: %s", ErrAlreadyEstablished, aid)
	}
	signed, err := signFrame(frame, signers)
	if err != nil {
		return "", "", err
	}
	if _, err := e.store.PutEvent(ctx, signed); err != nil {
		return "", "", err
	}
	e.log.Debugf("kel.incept: aid=%s said=%s keys=%d", aid, said, len(keys))
	return aid, said, nil
}

// Rotate rotates the identifier to the revealed keys, which must each
// hash to a digest the prior event committed to.
func (e *Engine) Rotate(ctx context.Context, aid string, signers []crypto.Signer, kt int, nextDigests []string, nt int) (string, error) {
	if len(signers) == 0 || kt < 1 || kt > len(signers) {
		return "", fmt.Errorf("%w: kt %d with %d keys", ErrThresholdUnmet, kt, len(signers))
	}
	st, err := e.State(ctx, aid)
	if err != nil {
		return "", err
	}
	if nextDigests == nil {
		nextDigests = []string{}
	}
	keys := verfers(signers)
	if err := e.checkPreRotation(keys, st.NextDigests); err != nil {
		return "", err
	}
	ev := &event.Rot{
		V: cesr.VersionPlaceholder(cesr.FamilyKERI), T: event.TypeRot,
		D: cesr.SaidPlaceholder, I: aid, S: event.FormatSn(st.Sn + 1), P: st.LastSaid,
		Kt: event.FormatThreshold(kt), K: keys,
		Nt: event.FormatThreshold(nt), N: nextDigests,
		A: []event.Seal{},
	}
	body, err := ev.Serialize()
	if err != nil {
		return "", err
	}
	frame, said, err := cesr.EncodeSaidified(body, cesr.FamilyKERI, "d", e.suite.SaidDigest)
	if err != nil {
		return "", err
	}
	signed, err := signFrame(frame, signers)
	if err != nil {
		return "", err
	}
	if _, err := e.store.PutEvent(ctx, signed); err != nil {
		return "", err
	}
	e.log.Debugf("kel.rotate: aid=%s sn=%d said=%s", aid, st.Sn+1, said)
	return said, nil
}

// Interact anchors seals into the log without changing key state. The
// identifier must be unlocked in the key manager.
func (e *Engine) Interact(ctx context.Context, aid string, seals []event.Seal) (string, error) {
	signer, err := e.keys.Signer(aid)
	if err != nil {
		return "", err
	}
	st, err := e.State(ctx, aid)
	if err != nil {
		return "", err
	}
	idx := keyIndex(st.Keys, signer.Verfer())
	if idx < 0 {
		return "", fmt.Errorf("%w: unlocked key %s is not in the current key set", ErrSignatureInvalid, signer.Verfer())
	}
	if seals == nil {
		seals = []event.Seal{}
	}
	ev := &event.Ixn{
		V: cesr.VersionPlaceholder(cesr.FamilyKERI), T: event.TypeIxn,
		D: cesr.SaidPlaceholder, I: aid, S: event.FormatSn(st.Sn + 1), P: st.LastSaid,
		A: seals,
	}
	body, err := ev.Serialize()
	if err != nil {
		return "", err
	}
	frame, said, err := cesr.EncodeSaidified(body, cesr.FamilyKERI, "d", e.suite.SaidDigest)
	if err != nil {
		return "", err
	}
	sig, err := signer.Sign(frame)
	if err != nil {
		return "", err
	}
	signed, err := cesr.AttachSignatures(frame, []cesr.IndexedSignature{{Index: idx, Signature: sig}})
	if err != nil {
		return "", err
	}
	if _, err := e.store.PutEvent(ctx, signed); err != nil {
		return "", err
	}
	e.log.Debugf("kel.interact: aid=%s sn=%d seals=%d", aid, st.Sn+1, len(seals))
	return said, nil
}

// State replays the stored log into the current key state.
func (e *Engine) State(ctx context.Context, aid string) (*State, error) {
	kel, err := e.store.ListKel(ctx, aid)
	if err != nil {
		return nil, err
	}
	if len(kel) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotEstablished, aid)
	}
	st := &State{Aid: aid}
	for _, stored := range kel {
		_, body, _, err := cesr.Decode(stored.Raw)
		if err != nil {
			return nil, err
		}
		env, err := event.ParseEnvelope(cesr.FamilyKERI, body)
		if err != nil {
			return nil, err
		}
		if err := applyEvent(st, env.T, body, stored.Said, stored.Meta.Sn); err != nil {
			return nil, err
		}
	}
	return st, nil
}

func applyEvent(st *State, t string, body []byte, said string, sn uint64) error {
	switch t {
	case event.TypeIcp:
		ev, err := event.ParseIcp(body)
		if err != nil {
			return err
		}
		kt, err := event.ParseThreshold(ev.Kt, len(ev.K))
		if err != nil {
			return err
		}
		nt := 0
		if len(ev.N) > 0 {
			if nt, err = event.ParseThreshold(ev.Nt, len(ev.N)); err != nil {
				return err
			}
		}
		st.Sn = 0
		st.LastSaid = said
		st.Keys = ev.K
		st.Kt = kt
		st.NextDigests = ev.N
		st.Nt = nt
	case event.TypeRot:
		ev, err := event.ParseRot(body)
		if err != nil {
			return err
		}
		kt, err := event.ParseThreshold(ev.Kt, len(ev.K))
		if err != nil {
			return err
		}
		nt := 0
		if len(ev.N) > 0 {
			if nt, err = event.ParseThreshold(ev.Nt, len(ev.N)); err != nil {
				return err
			}
		}
		st.Sn = sn
		st.LastSaid = said
		st.Keys = ev.K
		st.Kt = kt
		st.NextDigests = ev.N
		st.Nt = nt
		st.Rotations++
	case event.TypeIxn:
		st.Sn = sn
		st.LastSaid = said
	default:
		return fmt.Errorf("%w: %q in a key event log", event.ErrUnknownEventType, t)
	}
	return nil
}

func (e *Engine) checkPreRotation(keys []string, committed []string) error {
	for _, k := range keys {
		digest, err := crypto.KeyDigest(e.suite, k)
		if err != nil {
			return err
		}
		found := false
		for _, c := range committed {
			if c == digest {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("%w: %s", ErrPreRotationMismatch, k)
		}
	}
	return nil
}

func verfers(signers []crypto.Signer) []string {
	keys := make([]string, len(signers))
	for i, s := range signers {
		keys[i] = s.Verfer()
	}
	return keys
}

func keyIndex(keys []string, verfer string) int {
	for i, k := range keys {
		if k == verfer {
			return i
		}
	}
	return -1
}

func signFrame(frame []byte, signers []crypto.Signer) ([]byte, error) {
	sigs := make([]cesr.IndexedSignature, 0, len(signers))
	for i, s := range signers {
		sig, err := s.Sign(frame)
		if err != nil {
			return nil, err
		}
		sigs = append(sigs, cesr.IndexedSignature{Index: i, Signature: sig})
	}
	return cesr.AttachSignatures(frame, sigs)
}
