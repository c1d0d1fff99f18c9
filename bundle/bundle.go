// Package bundle implements the import/export wire artifact: a JSON
// envelope of base64 framed events, or raw concatenated CESR frames.
// Export walks the store in dependency order; import tries each event
// independently and reports aggregate counts.
package bundle

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aaronp/go-kerits/cesr"
)

// Bundle types.
const (
	TypeKel   = "kel"
	TypeTel   = "tel"
	TypeAcdc  = "acdc"
	TypeMixed = "mixed"
)

// Version is the bundle format version.
const Version = "1.0"

var (
	ErrBadBundle = errors.New("bundle: malformed bundle")
)

// Scope narrows what a bundle covers.
type Scope struct {
	Aid          string `json:"aid,omitempty"`
	RegistryId   string `json:"registryId,omitempty"`
	CredentialId string `json:"credentialId,omitempty"`
}

// Metadata describes a bundle's provenance.
type Metadata struct {
	Source  string `json:"source,omitempty"`
	Created string `json:"created"`
	Scope   *Scope `json:"scope,omitempty"`
}

// Bundle is the JSON envelope. Events hold base64 encoded frames in
// dependency order: key events before the registry events they anchor,
// credentials before later references to them.
type Bundle struct {
	Type     string   `json:"type"`
	Version  string   `json:"version"`
	Events   []string `json:"events"`
	Metadata Metadata `json:"metadata"`
}

// Frames decodes the enveloped events back to raw frames.
func (b *Bundle) Frames() ([][]byte, error) {
	frames := make([][]byte, 0, len(b.Events))
	for i, enc := range b.Events {
		frame, err := base64.StdEncoding.DecodeString(enc)
		if err != nil {
			return nil, fmt.Errorf("%w: event %d: %v", ErrBadBundle, i, err)
		}
		frames = append(frames, frame)
	}
	return frames, nil
}

func (b *Bundle) addFrame(frame []byte) {
	b.Events = append(b.Events, base64.StdEncoding.EncodeToString(frame))
}

// Marshal renders the envelope.
func (b *Bundle) Marshal() ([]byte, error) {
	return json.Marshal(b)
}

// ParseBundle accepts either the JSON envelope or raw concatenated CESR
// frames and returns the frames.
func ParseBundle(data []byte) ([][]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrBadBundle)
	}
	if data[0] == '{' {
		var b Bundle
		if err := json.Unmarshal(data, &b); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadBundle, err)
		}
		if b.Version != Version {
			return nil, fmt.Errorf("%w: unsupported version %q", ErrBadBundle, b.Version)
		}
		return b.Frames()
	}
	return SplitStream(data)
}

// SplitStream splits concatenated CESR frames, each optionally followed
// by an indexed signature section. Every frame head is size validated.
func SplitStream(data []byte) ([][]byte, error) {
	var frames [][]byte
	for len(data) > 0 {
		size, err := cesr.FrameSize(data)
		if err != nil {
			return nil, err
		}
		if size > len(data) {
			return nil, fmt.Errorf("%w: frame head says %d bytes, %d remain", cesr.ErrSizeMismatch, size, len(data))
		}
		end := size
		// attachments run to the start of the next frame head
		if len(data) > end && data[end] == '-' && len(data) >= end+4 && string(data[end:end+4]) == "-AAD" {
			attEnd, err := attachmentSpan(data[end:])
			if err != nil {
				return nil, err
			}
			end += attEnd
		}
		frames = append(frames, data[:end])
		data = data[end:]
	}
	return frames, nil
}

// attachmentSpan returns the length of the leading indexed signature
// section.
func attachmentSpan(data []byte) (int, error) {
	sigs, err := cesr.ParseIndexedSignaturesPrefix(data)
	if err != nil {
		return 0, err
	}
	return 4 + 2 + len(sigs)*(1+cesr.SigSize), nil
}
