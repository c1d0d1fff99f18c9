// Package crypto wires the module's cryptographic suite: Ed25519 keypairs
// and signatures, Blake3-256 digests, the mnemonic codec, and the key
// manager that gates every signing operation.
package crypto

import (
	"errors"
	"fmt"

	"github.com/cloudflare/circl/sign/ed25519"
	"github.com/zeebo/blake3"

	"github.com/aaronp/go-kerits/cesr"
)

var (
	ErrLocked           = errors.New("crypto: no unlocked signer for identifier")
	ErrUnsupportedSuite = errors.New("crypto: unsupported algorithm")
	ErrBadSeed          = errors.New("crypto: seed must be 32 bytes")
	ErrBadMnemonic      = errors.New("crypto: mnemonic is not valid")
)

// SeedSize is the entropy width behind every keypair and mnemonic.
const SeedSize = 32

// Digest algorithms. Blake3-256 is the default and the only one the E
// derivation code admits.
const (
	AlgBlake3 = "blake3-256"
)

// Signer holds a private key and exposes signing plus the coded public
// verfer.
type Signer interface {
	Sign(msg []byte) (string, error)
	Verfer() string
}

// Suite is the capability consumed by the engines: keypair derivation,
// signing, verification and digests.
type Suite interface {
	KeypairFromSeed(seed []byte) (Signer, error)
	Verify(verfer string, msg []byte, sig string) (bool, error)
	Digest(data []byte, alg string) ([]byte, error)
	// SaidDigest is the Blake3-256 DigestFn handed to the codec.
	SaidDigest(data []byte) []byte
}

// DefaultSuite is Ed25519 + Blake3-256.
type DefaultSuite struct{}

// NewSuite returns the default suite.
func NewSuite() Suite {
	return DefaultSuite{}
}

type ed25519Signer struct {
	key    ed25519.PrivateKey
	verfer string
}

func (s *ed25519Signer) Sign(msg []byte) (string, error) {
	return cesr.EncodeSignature(ed25519.Sign(s.key, msg))
}

func (s *ed25519Signer) Verfer() string { return s.verfer }

func (DefaultSuite) KeypairFromSeed(seed []byte) (Signer, error) {
	if len(seed) != SeedSize {
		return nil, fmt.Errorf("%w: got %d", ErrBadSeed, len(seed))
	}
	key := ed25519.NewKeyFromSeed(seed)
	pub := key.Public().(ed25519.PublicKey)
	verfer, err := cesr.EncodeVerfer(pub)
	if err != nil {
		return nil, err
	}
	return &ed25519Signer{key: key, verfer: verfer}, nil
}

func (DefaultSuite) Verify(verfer string, msg []byte, sig string) (bool, error) {
	code, pub, err := cesr.DecodePrimitive(verfer)
	if err != nil {
		return false, err
	}
	if code != cesr.CodeEd25519Verfer {
		return false, fmt.Errorf("%w: verfer code %q", ErrUnsupportedSuite, code)
	}
	code, rawSig, err := cesr.DecodePrimitive(sig)
	if err != nil {
		return false, err
	}
	if code != cesr.CodeEd25519Sig {
		return false, fmt.Errorf("%w: signature code %q", ErrUnsupportedSuite, code)
	}
	return ed25519.Verify(ed25519.PublicKey(pub), msg, rawSig), nil
}

func (DefaultSuite) Digest(data []byte, alg string) ([]byte, error) {
	if alg != AlgBlake3 {
		return nil, fmt.Errorf("%w: digest %q", ErrUnsupportedSuite, alg)
	}
	sum := blake3.Sum256(data)
	return sum[:], nil
}

func (DefaultSuite) SaidDigest(data []byte) []byte {
	sum := blake3.Sum256(data)
	return sum[:]
}

// KeyDigest commits to a coded verfer for pre-rotation: the Blake3-256
// digest of the qb64 text, digest coded.
func KeyDigest(suite Suite, verfer string) (string, error) {
	raw, err := suite.Digest([]byte(verfer), AlgBlake3)
	if err != nil {
		return "", err
	}
	return cesr.EncodeDigest(raw)
}
