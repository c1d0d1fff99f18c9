package cesr

import (
	"fmt"
	"strconv"
)

// attachTag introduces the indexed signature section that follows the
// framed JSON.
const attachTag = "-AAD"

const countDigits = 2

// IndexedSignature pairs a coded signature with the index of the signing
// key in the event's k field.
type IndexedSignature struct {
	Index     int
	Signature string
}

// AttachSignatures appends an indexed signature section to frame. The
// section is the 4 character tag, a 2 hex digit count, then one index
// character and one coded signature per entry.
func AttachSignatures(frame []byte, sigs []IndexedSignature) ([]byte, error) {
	if len(sigs) == 0 {
		return nil, fmt.Errorf("%w: no signatures to attach", ErrBadAttachment)
	}
	if len(sigs) > 0xff {
		return nil, fmt.Errorf("%w: %d signatures exceeds the count field", ErrBadAttachment, len(sigs))
	}
	out := append([]byte{}, frame...)
	out = append(out, attachTag...)
	out = append(out, fmt.Sprintf("%02x", len(sigs))...)
	for _, s := range sigs {
		c, err := IndexToChar(s.Index)
		if err != nil {
			return nil, err
		}
		if len(s.Signature) != SigSize {
			return nil, fmt.Errorf("%w: signature must be %d chars, got %d", ErrBadAttachment, SigSize, len(s.Signature))
		}
		out = append(out, c)
		out = append(out, s.Signature...)
	}
	return out, nil
}

// ParseIndexedSignaturesPrefix decodes a signature section at the start
// of data, tolerating trailing bytes. Stream splitting uses this to find
// the section boundary between concatenated frames.
func ParseIndexedSignaturesPrefix(data []byte) ([]IndexedSignature, error) {
	head := len(attachTag) + countDigits
	if len(data) < head {
		return nil, fmt.Errorf("%w: %d bytes is too short for a signature section", ErrBadAttachment, len(data))
	}
	count64, err := strconv.ParseUint(string(data[len(attachTag):head]), 16, 16)
	if err != nil {
		return nil, fmt.Errorf("%w: count field: %v", ErrBadAttachment, err)
	}
	span := head + int(count64)*(1+SigSize)
	if len(data) < span {
		return nil, fmt.Errorf("%w: truncated signature section", ErrBadAttachment)
	}
	return ParseIndexedSignatures(data[:span])
}

// ParseIndexedSignatures decodes an attachment span produced by
// AttachSignatures. Trailing bytes after the declared count are rejected.
func ParseIndexedSignatures(att []byte) ([]IndexedSignature, error) {
	if len(att) < len(attachTag)+countDigits {
		return nil, fmt.Errorf("%w: %d bytes is too short for a signature section", ErrBadAttachment, len(att))
	}
	if string(att[:len(attachTag)]) != attachTag {
		return nil, fmt.Errorf("%w: expected %s tag, got %q", ErrBadAttachment, attachTag, att[:len(attachTag)])
	}
	count64, err := strconv.ParseUint(string(att[len(attachTag):len(attachTag)+countDigits]), 16, 16)
	if err != nil {
		return nil, fmt.Errorf("%w: count field: %v", ErrBadAttachment, err)
	}
	count := int(count64)
	rest := att[len(attachTag)+countDigits:]
	entry := 1 + SigSize
	if len(rest) != count*entry {
		return nil, fmt.Errorf("%w: %d entries declared, %d bytes of entry data", ErrBadAttachment, count, len(rest))
	}
	sigs := make([]IndexedSignature, 0, count)
	for i := range count {
		e := rest[i*entry : (i+1)*entry]
		idx, err := CharToIndex(e[0])
		if err != nil {
			return nil, err
		}
		sig := string(e[1:])
		if _, _, err := DecodePrimitive(sig); err != nil {
			return nil, fmt.Errorf("%w: entry %d: %v", ErrBadAttachment, i, err)
		}
		sigs = append(sigs, IndexedSignature{Index: idx, Signature: sig})
	}
	return sigs, nil
}
