package store

import (
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Meta is the per-event record kept alongside the raw frame. It is
// derived state for fast classification; the frame remains the source of
// truth.
type Meta struct {
	Family     string    `cbor:"1,keyasint"`
	Type       string    `cbor:"2,keyasint"`
	Identifier string    `cbor:"3,keyasint"`
	Registry   string    `cbor:"4,keyasint,omitempty"`
	Sn         uint64    `cbor:"5,keyasint"`
	StoredAt   time.Time `cbor:"6,keyasint"`
}

// metaCodec pins deterministic CBOR encoding for meta records.
type metaCodec struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

func newMetaCodec() (metaCodec, error) {
	enc, err := cbor.EncOptions{
		Sort: cbor.SortCanonical,
		Time: cbor.TimeRFC3339Nano,
	}.EncMode()
	if err != nil {
		return metaCodec{}, err
	}
	dec, err := cbor.DecOptions{}.DecMode()
	if err != nil {
		return metaCodec{}, err
	}
	return metaCodec{enc: enc, dec: dec}, nil
}

func (c metaCodec) marshal(m Meta) ([]byte, error) {
	b, err := c.enc.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("meta encode: %w", err)
	}
	return b, nil
}

func (c metaCodec) unmarshal(data []byte) (Meta, error) {
	var m Meta
	if err := c.dec.Unmarshal(data, &m); err != nil {
		return Meta{}, fmt.Errorf("meta decode: %w", err)
	}
	return m, nil
}
