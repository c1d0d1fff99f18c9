package cesr

import (
	"bytes"
	"fmt"
	"strconv"
)

// Version families. The family tag is fixed width so the frame head and
// the embedded version token are both constant size.
const (
	FamilyKERI = "KERI10JSON"
	FamilyACDC = "ACDC10JSON"
)

const (
	familySize = 10
	sizeDigits = 6
	// FrameHeadSize is '-' + family + 6 hex size digits + '_'.
	FrameHeadSize = 1 + familySize + sizeDigits + 1
	// VersionTokenSize is the width of the embedded v field value,
	// family + 6 hex size digits + '_'.
	VersionTokenSize = familySize + sizeDigits + 1
)

// VersionPlaceholder is the value serializers put in the v field before
// the frame size is known. Encode patches it in place; the token is fixed
// width so patching never changes the body length.
func VersionPlaceholder(family string) string {
	return family + "######_"
}

func knownFamily(family string) bool {
	return family == FamilyKERI || family == FamilyACDC
}

// Encode frames body. The body must contain the family's version
// placeholder (see VersionPlaceholder); it is patched with the final size
// before the head is prepended. The size counts the whole frame from the
// leading '-' through the end of the JSON, excluding attachments.
func Encode(body []byte, family string) ([]byte, error) {
	if !knownFamily(family) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFamily, family)
	}
	placeholder := []byte(VersionPlaceholder(family))
	if !bytes.Contains(body, placeholder) {
		return nil, fmt.Errorf("%w: body has no %s version placeholder", ErrMalformedFrame, family)
	}
	size := FrameHeadSize + len(body)
	if size > 0xffffff {
		return nil, fmt.Errorf("%w: frame size %d exceeds the 6 digit field", ErrMalformedFrame, size)
	}
	token := versionToken(family, size)
	body = bytes.Replace(body, placeholder, []byte(token), 1)

	frame := make([]byte, 0, size)
	frame = append(frame, '-')
	frame = append(frame, token...)
	frame = append(frame, body...)
	return frame, nil
}

func versionToken(family string, size int) string {
	return fmt.Sprintf("%s%06x_", family, size)
}

// Decode validates the frame head and splits a frame into its family, the
// JSON body and the trailing attachment span. The size field must match
// the data exactly; short frames and frames whose embedded version token
// disagrees with the head are rejected.
func Decode(frame []byte) (string, []byte, []byte, error) {
	if len(frame) < FrameHeadSize+2 { // head plus at least "{}"
		return "", nil, nil, fmt.Errorf("%w: %d bytes is too short to frame an event", ErrMalformedFrame, len(frame))
	}
	if frame[0] != '-' {
		return "", nil, nil, fmt.Errorf("%w: frame must start with '-'", ErrMalformedFrame)
	}
	family := string(frame[1 : 1+familySize])
	if !knownFamily(family) {
		return "", nil, nil, fmt.Errorf("%w: %q", ErrUnknownFamily, family)
	}
	sizeField := string(frame[1+familySize : 1+familySize+sizeDigits])
	size64, err := strconv.ParseUint(sizeField, 16, 32)
	if err != nil {
		return "", nil, nil, fmt.Errorf("%w: size field %q: %v", ErrMalformedFrame, sizeField, err)
	}
	size := int(size64)
	if frame[FrameHeadSize-1] != '_' {
		return "", nil, nil, fmt.Errorf("%w: missing '_' separator", ErrMalformedFrame)
	}
	if size < FrameHeadSize+2 || size > len(frame) {
		return "", nil, nil, fmt.Errorf("%w: size field says %d, have %d bytes", ErrSizeMismatch, size, len(frame))
	}
	body := frame[FrameHeadSize:size]
	if body[0] != '{' || body[len(body)-1] != '}' {
		return "", nil, nil, fmt.Errorf("%w: framed body is not a JSON object", ErrSizeMismatch)
	}
	token := []byte(versionToken(family, size))
	if !bytes.Contains(body, token) {
		return "", nil, nil, fmt.Errorf("%w: embedded version token disagrees with the frame head", ErrSizeMismatch)
	}
	return family, body, frame[size:], nil
}

// FrameSize reads just the head of a frame and returns the framed size.
// Stream parsing uses this to split concatenated frames.
func FrameSize(frame []byte) (int, error) {
	if len(frame) < FrameHeadSize {
		return 0, fmt.Errorf("%w: truncated frame head", ErrMalformedFrame)
	}
	if frame[0] != '-' || frame[FrameHeadSize-1] != '_' {
		return 0, fmt.Errorf("%w: bad frame head", ErrMalformedFrame)
	}
	if !knownFamily(string(frame[1 : 1+familySize])) {
		return 0, fmt.Errorf("%w: %q", ErrUnknownFamily, frame[1:1+familySize])
	}
	size64, err := strconv.ParseUint(string(frame[1+familySize:1+familySize+sizeDigits]), 16, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	return int(size64), nil
}
