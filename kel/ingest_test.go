package kel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronp/go-kerits/crypto"
)

// buildForeignKel produces a signed two event log (icp, rot) on a
// scratch engine, as another party would.
func buildForeignKel(t *testing.T, seed []byte) (string, [][]byte) {
	t.Helper()
	e, st, _ := newTestEngine(t)
	ctx := context.Background()

	aid, _ := incept(t, e, seed)
	nextSeed := crypto.SuccessorSeed(seed)
	_, err := e.Rotate(ctx, aid, []crypto.Signer{signerFor(t, nextSeed)}, 1, []string{nextDigestFor(t, nextSeed)}, 1)
	require.NoError(t, err)

	kel, err := st.ListKel(ctx, aid)
	require.NoError(t, err)
	frames := make([][]byte, 0, len(kel))
	for _, ev := range kel {
		frames = append(frames, ev.Raw)
	}
	return aid, frames
}

func TestIngestForeignKel(t *testing.T) {
	aid, frames := buildForeignKel(t, seedOf(0x09))

	e, st, _ := newTestEngine(t)
	ctx := context.Background()
	for _, frame := range frames {
		require.NoError(t, e.Ingest(ctx, frame))
	}

	kel, err := st.ListKel(ctx, aid)
	require.NoError(t, err)
	assert.Len(t, kel, 2)

	state, err := e.State(ctx, aid)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), state.Sn)
}

func TestIngestRotWithoutInceptionFails(t *testing.T) {
	_, frames := buildForeignKel(t, seedOf(0x09))

	e, _, _ := newTestEngine(t)
	err := e.Ingest(context.Background(), frames[1])
	require.ErrorIs(t, err, ErrNotEstablished)
}

func TestIngestDetectsGapAfterEstablishment(t *testing.T) {
	seed := seedOf(0x0a)
	// three event foreign log: icp, rot, rot
	builderEngine, builderStore, _ := newTestEngine(t)
	ctx := context.Background()
	aid, _ := incept(t, builderEngine, seed)
	s1 := crypto.SuccessorSeed(seed)
	_, err := builderEngine.Rotate(ctx, aid, []crypto.Signer{signerFor(t, s1)}, 1, []string{nextDigestFor(t, s1)}, 1)
	require.NoError(t, err)
	s2 := crypto.SuccessorSeed(s1)
	_, err = builderEngine.Rotate(ctx, aid, []crypto.Signer{signerFor(t, s2)}, 1, []string{nextDigestFor(t, s2)}, 1)
	require.NoError(t, err)
	kel, err := builderStore.ListKel(ctx, aid)
	require.NoError(t, err)

	e, _, _ := newTestEngine(t)
	require.NoError(t, e.Ingest(ctx, kel[0].Raw))
	// skip sn 1
	err = e.Ingest(ctx, kel[2].Raw)
	require.ErrorIs(t, err, ErrSequenceGap)
}

func TestIngestRejectsTamperedBody(t *testing.T) {
	_, frames := buildForeignKel(t, seedOf(0x0b))
	e, _, _ := newTestEngine(t)

	mangled := []byte(string(frames[0]))
	// corrupt one byte of the kt value without breaking the frame size
	for i := 0; i+8 <= len(mangled); i++ {
		if string(mangled[i:i+8]) == `"kt":"1"` {
			mangled[i+6] = '2'
			break
		}
	}
	err := e.Ingest(context.Background(), mangled)
	require.Error(t, err)
}

func TestIngestRejectsUnsignedEvent(t *testing.T) {
	_, frames := buildForeignKel(t, seedOf(0x0c))
	e, _, _ := newTestEngine(t)

	// strip the attachment section
	size := len(frames[0]) - (4 + 2 + 1 + 88)
	err := e.Ingest(context.Background(), frames[0][:size])
	require.ErrorIs(t, err, ErrThresholdUnmet)
}

func TestIngestRejectsWrongSignature(t *testing.T) {
	seed := seedOf(0x0d)
	_, frames := buildForeignKel(t, seed)
	e, _, _ := newTestEngine(t)

	// re-sign the icp body with a key that is not in k
	intruder := signerFor(t, seedOf(0x66))
	att := 4 + 2 + 1 + 88
	bare := frames[0][:len(frames[0])-att]
	sig, err := intruder.Sign(bare)
	require.NoError(t, err)
	forged := append([]byte{}, bare...)
	forged = append(forged, []byte("-AAD01A")...)
	forged = append(forged, []byte(sig)...)

	err = e.Ingest(context.Background(), forged)
	require.ErrorIs(t, err, ErrSignatureInvalid)
}

func TestIngestEnforcesMultiKeyThreshold(t *testing.T) {
	ctx := context.Background()

	// a 2-of-2 inception produced elsewhere
	producer, producerStore, _ := newTestEngine(t)
	signers := []crypto.Signer{signerFor(t, seedOf(0x21)), signerFor(t, seedOf(0x22))}
	aid, _, err := producer.Incept(ctx, signers, 2, nil, 0)
	require.NoError(t, err)
	kel, err := producerStore.ListKel(ctx, aid)
	require.NoError(t, err)
	frame := kel[0].Raw

	t.Run("both signatures verify", func(t *testing.T) {
		e, _, _ := newTestEngine(t)
		require.NoError(t, e.Ingest(ctx, frame))
	})

	t.Run("one signature is below threshold", func(t *testing.T) {
		e, _, _ := newTestEngine(t)
		// keep the first entry only and rewrite the count
		entry := 1 + 88
		att := 4 + 2 + 2*entry
		bare := frame[:len(frame)-att]
		section := frame[len(frame)-att:]
		forged := append([]byte{}, bare...)
		forged = append(forged, []byte("-AAD01")...)
		forged = append(forged, section[6:6+entry]...)
		err := e.Ingest(ctx, forged)
		require.ErrorIs(t, err, ErrThresholdUnmet)
	})
}

func TestIngestIsIdempotentAcrossReplay(t *testing.T) {
	aid, frames := buildForeignKel(t, seedOf(0x0e))
	e, st, _ := newTestEngine(t)
	ctx := context.Background()

	for _, frame := range frames {
		require.NoError(t, e.Ingest(ctx, frame))
	}
	// replaying the icp again is benign
	require.NoError(t, e.Ingest(ctx, frames[0]))

	kel, err := st.ListKel(ctx, aid)
	require.NoError(t, err)
	assert.Len(t, kel, 2)
}
