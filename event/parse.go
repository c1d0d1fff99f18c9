package event

import (
	"encoding/json"
	"fmt"

	"github.com/aaronp/go-kerits/cesr"
)

// Envelope is the pre-classification view of any event body: just the
// fields needed to route, index and order it.
type Envelope struct {
	V  string `json:"v"`
	T  string `json:"t"`
	D  string `json:"d"`
	I  string `json:"i"`
	S  string `json:"s"`
	P  string `json:"p"`
	Ri string `json:"ri"`
}

// Raw is a decoded but not yet classified frame.
type Raw struct {
	Family      string
	Body        []byte
	Attachments []byte
}

// DecodeRaw splits a frame and returns the pre-classification view.
func DecodeRaw(frame []byte) (*Raw, *Envelope, error) {
	family, body, att, err := cesr.Decode(frame)
	if err != nil {
		return nil, nil, err
	}
	env, err := ParseEnvelope(family, body)
	if err != nil {
		return nil, nil, err
	}
	return &Raw{Family: family, Body: body, Attachments: att}, env, nil
}

// ParseEnvelope classifies a body. ACDC framed objects carry no t field
// and classify as TypeAcdc; KERI framed bodies must carry a known tag.
func ParseEnvelope(family string, body []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadJSON, err)
	}
	if family == cesr.FamilyACDC {
		if env.T != "" {
			return nil, fmt.Errorf("%w: ACDC framed body carries t=%q", ErrUnknownEventType, env.T)
		}
		env.T = TypeAcdc
		return &env, nil
	}
	switch env.T {
	case TypeIcp, TypeRot, TypeIxn, TypeVcp, TypeIss, TypeRev:
		return &env, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownEventType, env.T)
}

// IsKeyEvent reports whether t belongs to the KEL family.
func IsKeyEvent(t string) bool {
	return t == TypeIcp || t == TypeRot || t == TypeIxn
}

// IsRegistryEvent reports whether t belongs to the TEL family.
func IsRegistryEvent(t string) bool {
	return t == TypeVcp || t == TypeIss || t == TypeRev
}

func parseInto[T any](body []byte) (*T, error) {
	var ev T
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadJSON, err)
	}
	return &ev, nil
}
