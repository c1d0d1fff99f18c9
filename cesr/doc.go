// Package cesr implements the CESR primitive and framing codec used by
// every event in the module: qualified base64 coding of keys, digests and
// signatures, the -FAMILY<size>_ frame envelope, self-addressing
// identifier (SAID) computation, and the indexed signature attachment
// section.
//
// The package is deliberately free of cryptographic dependencies. Digests
// are supplied by the caller as a DigestFn so the hash suite wiring lives
// in one place (the crypto package).
package cesr
