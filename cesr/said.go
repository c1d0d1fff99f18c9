package cesr

import (
	"bytes"
	"fmt"
	"strings"
)

// DigestFn produces the 32 byte digest a SAID commits to. The default
// suite binds this to Blake3-256; the codec itself stays hash agnostic.
type DigestFn func([]byte) []byte

// SaidPlaceholder occupies a self-addressing field while the digest is
// computed. It is the same width as the coded digest that replaces it, so
// substitution never changes the serialized size.
var SaidPlaceholder = strings.Repeat("#", DigestSize)

// Saidify computes the SAID of raw and binds it at label. Every
// occurrence of the placeholder participates: an event whose identifier
// is self-addressing carries the placeholder in both d and i, and both
// are replaced with the digest. The label's value must be the
// placeholder when called.
func Saidify(raw []byte, label string, digest DigestFn) ([]byte, string, error) {
	marker := fieldMarker(label, SaidPlaceholder)
	if !bytes.Contains(raw, marker) {
		return nil, "", fmt.Errorf("%w: field %q is not set to the placeholder", ErrBadSaid, label)
	}
	said, err := EncodeDigest(digest(raw))
	if err != nil {
		return nil, "", err
	}
	out := bytes.ReplaceAll(raw, []byte(SaidPlaceholder), []byte(said))
	return out, said, nil
}

// VerifySaid recomputes the SAID of raw and compares it with the value
// bound at label, returning the said on success. All occurrences of the
// bound value are restored to the placeholder before hashing, mirroring
// Saidify.
func VerifySaid(raw []byte, label string, digest DigestFn) (string, error) {
	said, err := ExtractSaid(raw, label)
	if err != nil {
		return "", err
	}
	restored := bytes.ReplaceAll(raw, []byte(said), []byte(SaidPlaceholder))
	want, err := EncodeDigest(digest(restored))
	if err != nil {
		return "", err
	}
	if want != said {
		return "", fmt.Errorf("%w: field %q holds %s, computed %s", ErrBadSaid, label, said, want)
	}
	return said, nil
}

// EncodeSaidified frames body and then binds its SAID at label. The
// digest covers the framed JSON with the final version token in place and
// the placeholder at label, which is the canonical form every verifier
// reconstructs.
func EncodeSaidified(body []byte, family, label string, digest DigestFn) ([]byte, string, error) {
	frame, err := Encode(body, family)
	if err != nil {
		return nil, "", err
	}
	framed, said, err := Saidify(frame[FrameHeadSize:], label, digest)
	if err != nil {
		return nil, "", err
	}
	return append(frame[:FrameHeadSize:FrameHeadSize], framed...), said, nil
}

// ExtractSaid returns the digest-coded value bound at label without
// verifying it. The first occurrence of the label wins; canonical
// serializers place self-addressing fields ahead of any free-form data.
func ExtractSaid(raw []byte, label string) (string, error) {
	key := []byte(`"` + label + `":"`)
	i := bytes.Index(raw, key)
	if i < 0 {
		return "", fmt.Errorf("%w: no %q field", ErrBadSaid, label)
	}
	start := i + len(key)
	if len(raw) < start+DigestSize {
		return "", fmt.Errorf("%w: %q value truncated", ErrBadSaid, label)
	}
	said := string(raw[start : start+DigestSize])
	if said != SaidPlaceholder {
		if _, _, err := DecodePrimitive(said); err != nil {
			return "", fmt.Errorf("%w: %q value %q is not digest coded", ErrBadSaid, label, said)
		}
	}
	return said, nil
}

func fieldMarker(label, value string) []byte {
	return []byte(`"` + label + `":"` + value + `"`)
}
