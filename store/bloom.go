package store

import (
	"encoding/binary"

	"github.com/aaronp/go-kerits/cesr"
)

// saidFilter is a plain in-memory Bloom filter over stored SAIDs, the
// negative cache consulted by HasEvent before touching the backend. Double
// hashing with a domain byte; bit 0 is the least significant bit of byte
// 0.
type saidFilter struct {
	bits   []byte
	mBits  uint64
	k      int
	digest cesr.DigestFn
}

const saidFilterDomain = 0xCE

func newSaidFilter(mBits uint64, k int, digest cesr.DigestFn) *saidFilter {
	return &saidFilter{
		bits:   make([]byte, (mBits+7)/8),
		mBits:  mBits,
		k:      k,
		digest: digest,
	}
}

func (f *saidFilter) hashPair(said string) (uint64, uint64) {
	buf := make([]byte, 0, 1+len(said))
	buf = append(buf, saidFilterDomain)
	buf = append(buf, said...)
	sum := f.digest(buf)
	return binary.BigEndian.Uint64(sum[0:8]), binary.BigEndian.Uint64(sum[8:16])
}

func (f *saidFilter) Insert(said string) {
	h1, h2 := f.hashPair(said)
	for i := 0; i < f.k; i++ {
		bit := (h1 + uint64(i)*h2) % f.mBits
		f.bits[bit/8] |= 1 << (bit % 8)
	}
}

// MaybeContains is definite on false, probabilistic on true.
func (f *saidFilter) MaybeContains(said string) bool {
	h1, h2 := f.hashPair(said)
	for i := 0; i < f.k; i++ {
		bit := (h1 + uint64(i)*h2) % f.mBits
		if f.bits[bit/8]&(1<<(bit%8)) == 0 {
			return false
		}
	}
	return true
}
