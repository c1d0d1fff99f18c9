package cesr

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// Primitive derivation codes. The code replaces the base64 characters that
// would otherwise encode the leading pad bytes, so the code length always
// equals the pad count for the raw size.
const (
	// CodeEd25519Verfer prefixes a 32 byte Ed25519 public verification key.
	CodeEd25519Verfer = "D"
	// CodeBlake3Digest prefixes a 32 byte Blake3-256 digest. SAIDs and
	// event-derived identifiers use this code.
	CodeBlake3Digest = "E"
	// CodeEd25519Sig prefixes a 64 byte Ed25519 signature.
	CodeEd25519Sig = "0B"
)

const (
	// VerferSize is the qb64 length of a coded 32 byte key or digest.
	VerferSize = 44
	DigestSize = 44
	// SigSize is the qb64 length of a coded 64 byte signature.
	SigSize = 88
)

var b64 = base64.URLEncoding.WithPadding(base64.NoPadding)

// rawSizes maps each code to the raw byte width it fronts.
var rawSizes = map[string]int{
	CodeEd25519Verfer: 32,
	CodeBlake3Digest:  32,
	CodeEd25519Sig:    64,
}

// EncodePrimitive codes raw as qualified base64. The pad bytes implied by
// len(raw) are prepended as zeros, the whole is base64url encoded, and the
// pad characters are overwritten with the code.
func EncodePrimitive(code string, raw []byte) (string, error) {
	want, ok := rawSizes[code]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownCode, code)
	}
	if len(raw) != want {
		return "", fmt.Errorf("%w: code %s requires %d bytes, got %d", ErrBadPrimitive, code, want, len(raw))
	}
	ps := (3 - len(raw)%3) % 3
	if ps != len(code) {
		return "", fmt.Errorf("%w: code %s does not fit a %d byte value", ErrUnknownCode, code, len(raw))
	}
	padded := make([]byte, ps+len(raw))
	copy(padded[ps:], raw)
	return code + b64.EncodeToString(padded)[ps:], nil
}

// DecodePrimitive strips the code from a qualified base64 primitive and
// returns it along with the raw bytes.
func DecodePrimitive(qb64 string) (string, []byte, error) {
	code, err := codeOf(qb64)
	if err != nil {
		return "", nil, err
	}
	ps := len(code)
	decoded, err := b64.DecodeString(strings.Repeat("A", ps) + qb64[ps:])
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrBadPrimitive, err)
	}
	raw := decoded[ps:]
	if len(raw) != rawSizes[code] {
		return "", nil, fmt.Errorf("%w: raw size %d invalid for code %s", ErrBadPrimitive, len(raw), code)
	}
	return code, raw, nil
}

func codeOf(qb64 string) (string, error) {
	switch {
	case strings.HasPrefix(qb64, CodeEd25519Sig):
		if len(qb64) != SigSize {
			return "", fmt.Errorf("%w: signature must be %d chars, got %d", ErrBadPrimitive, SigSize, len(qb64))
		}
		return CodeEd25519Sig, nil
	case strings.HasPrefix(qb64, CodeEd25519Verfer):
		if len(qb64) != VerferSize {
			return "", fmt.Errorf("%w: verfer must be %d chars, got %d", ErrBadPrimitive, VerferSize, len(qb64))
		}
		return CodeEd25519Verfer, nil
	case strings.HasPrefix(qb64, CodeBlake3Digest):
		if len(qb64) != DigestSize {
			return "", fmt.Errorf("%w: digest must be %d chars, got %d", ErrBadPrimitive, DigestSize, len(qb64))
		}
		return CodeBlake3Digest, nil
	}
	return "", fmt.Errorf("%w: %.4q", ErrUnknownCode, qb64)
}

// EncodeVerfer codes a 32 byte Ed25519 public key.
func EncodeVerfer(raw []byte) (string, error) {
	return EncodePrimitive(CodeEd25519Verfer, raw)
}

// EncodeDigest codes a 32 byte Blake3-256 digest.
func EncodeDigest(raw []byte) (string, error) {
	return EncodePrimitive(CodeBlake3Digest, raw)
}

// EncodeSignature codes a 64 byte Ed25519 signature.
func EncodeSignature(raw []byte) (string, error) {
	return EncodePrimitive(CodeEd25519Sig, raw)
}

// IsIdentifier reports whether s parses as a coded AID or SAID. Alias
// handling uses this to keep human names out of the identifier space.
func IsIdentifier(s string) bool {
	if len(s) != VerferSize {
		return false
	}
	if s[0] != 'D' && s[0] != 'E' {
		return false
	}
	_, _, err := DecodePrimitive(s)
	return err == nil
}

const b64Chars = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"

// IndexToChar encodes a signing key index as a single base64url character.
// Events with more than 64 keys are not representable.
func IndexToChar(i int) (byte, error) {
	if i < 0 || i >= len(b64Chars) {
		return 0, fmt.Errorf("%w: %d", ErrBadIndex, i)
	}
	return b64Chars[i], nil
}

// CharToIndex decodes a single character signing index.
func CharToIndex(c byte) (int, error) {
	i := strings.IndexByte(b64Chars, c)
	if i < 0 {
		return 0, fmt.Errorf("%w: %q", ErrBadIndex, c)
	}
	return i, nil
}
