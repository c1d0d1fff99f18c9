package kel

import (
	"context"
	"errors"
	"fmt"

	"github.com/aaronp/go-kerits/cesr"
	"github.com/aaronp/go-kerits/event"
)

// Ingest validates and stores one externally produced key event. Every
// transition rule is re-checked against the stored log and every
// signature is verified against the keys that are current for the event,
// with the event's threshold enforced. Structural, cryptographic and
// ordering failures abort without mutating the store.
func (e *Engine) Ingest(ctx context.Context, frame []byte) error {
	family, body, att, err := cesr.Decode(frame)
	if err != nil {
		return err
	}
	if family != cesr.FamilyKERI {
		return fmt.Errorf("%w: %s framed body in a key event log", cesr.ErrUnknownFamily, family)
	}
	env, err := event.ParseEnvelope(family, body)
	if err != nil {
		return err
	}
	if !event.IsKeyEvent(env.T) {
		return fmt.Errorf("%w: %q is not a key event", event.ErrUnknownEventType, env.T)
	}
	said, err := cesr.VerifySaid(body, "d", e.suite.SaidDigest)
	if err != nil {
		return err
	}
	sn, err := event.ParseSn(env.S)
	if err != nil {
		return err
	}

	st, err := e.State(ctx, env.I)
	established := err == nil
	if err != nil && !errors.Is(err, ErrNotEstablished) {
		return err
	}

	// signedSpan is the frame without its attachments; that is what the
	// producer signed.
	signedSpan := frame[:len(frame)-len(att)]

	switch env.T {
	case event.TypeIcp:
		// replaying an icp we already hold is fine; a divergent one is a
		// said conflict the store rejects
		if sn != 0 {
			return fmt.Errorf("%w: icp must have sn 0, got %d", ErrSequenceGap, sn)
		}
		if env.P != "" {
			return fmt.Errorf("%w: icp must not reference a prior", ErrPriorMismatch)
		}
		ev, err := event.ParseIcp(body)
		if err != nil {
			return err
		}
		kt, err := event.ParseThreshold(ev.Kt, len(ev.K))
		if err != nil {
			return err
		}
		if err := e.verifySignatures(signedSpan, att, ev.K, kt); err != nil {
			return err
		}
	case event.TypeRot:
		if !established {
			return fmt.Errorf("%w: rot for %s", ErrNotEstablished, env.I)
		}
		if sn != st.Sn+1 {
			return fmt.Errorf("%w: have %d, rot says %d", ErrSequenceGap, st.Sn, sn)
		}
		if env.P != st.LastSaid {
			return fmt.Errorf("%w: head %s, rot says %s", ErrPriorMismatch, st.LastSaid, env.P)
		}
		ev, err := event.ParseRot(body)
		if err != nil {
			return err
		}
		if err := e.checkPreRotation(ev.K, st.NextDigests); err != nil {
			return err
		}
		kt, err := event.ParseThreshold(ev.Kt, len(ev.K))
		if err != nil {
			return err
		}
		if err := e.verifySignatures(signedSpan, att, ev.K, kt); err != nil {
			return err
		}
	case event.TypeIxn:
		if !established {
			return fmt.Errorf("%w: ixn for %s", ErrNotEstablished, env.I)
		}
		if sn != st.Sn+1 {
			return fmt.Errorf("%w: have %d, ixn says %d", ErrSequenceGap, st.Sn, sn)
		}
		if env.P != st.LastSaid {
			return fmt.Errorf("%w: head %s, ixn says %s", ErrPriorMismatch, st.LastSaid, env.P)
		}
		if err := e.verifySignatures(signedSpan, att, st.Keys, st.Kt); err != nil {
			return err
		}
	}

	if _, err := e.store.PutEvent(ctx, frame); err != nil {
		return err
	}
	e.log.Debugf("kel.ingest: aid=%s t=%s sn=%d said=%s", env.I, env.T, sn, said)
	return nil
}

// verifySignatures checks the attached indexed signatures against keys
// and requires at least threshold distinct valid ones.
func (e *Engine) verifySignatures(signedSpan, att []byte, keys []string, threshold int) error {
	if len(att) == 0 {
		return fmt.Errorf("%w: event carries no signatures", ErrThresholdUnmet)
	}
	sigs, err := cesr.ParseIndexedSignatures(att)
	if err != nil {
		return err
	}
	valid := map[int]bool{}
	for _, sig := range sigs {
		if sig.Index >= len(keys) {
			return fmt.Errorf("%w: index %d with %d keys", ErrSignatureInvalid, sig.Index, len(keys))
		}
		ok, err := e.suite.Verify(keys[sig.Index], signedSpan, sig.Signature)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: index %d", ErrSignatureInvalid, sig.Index)
		}
		valid[sig.Index] = true
	}
	if len(valid) < threshold {
		return fmt.Errorf("%w: %d valid of %d required", ErrThresholdUnmet, len(valid), threshold)
	}
	return nil
}
