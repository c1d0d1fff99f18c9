// Package event defines the typed event variants carried by the key event
// log (icp, rot, ixn), the transaction event log (vcp, iss, rev), and the
// credential objects (ACDC, schema), together with their canonical
// serialization.
//
// Serialization rides on encoding/json struct marshalling: fields are
// declared in the canonical order, so marshal output is byte stable.
// Free-form sections (credential attributes, edges, schema bodies) are
// held as raw message spans or ordered maps so a parse/serialize round
// trip reproduces the exact bytes the SAID commits to.
package event
