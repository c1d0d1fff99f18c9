package event

import "encoding/json"

// VcpEdges carries the optional hierarchy link of a sub-registry.
type VcpEdges struct {
	Parent *Edge `json:"parent,omitempty"`
}

// Vcp incepts a credential registry. I is self-addressing (equals D) and
// becomes the registry identifier; II is the issuing AID whose KEL must
// anchor this event. N is a nonce so registries with identical
// configuration get distinct identifiers.
type Vcp struct {
	V  string    `json:"v"`
	T  string    `json:"t"`
	D  string    `json:"d"`
	I  string    `json:"i"`
	II string    `json:"ii"`
	S  string    `json:"s"`
	B  []string  `json:"b"`
	N  string    `json:"n"`
	E  *VcpEdges `json:"e,omitempty"`
}

// Iss records issuance of the credential identified by I in registry Ri.
type Iss struct {
	V  string `json:"v"`
	T  string `json:"t"`
	D  string `json:"d"`
	I  string `json:"i"`
	S  string `json:"s"`
	Ri string `json:"ri"`
	Dt string `json:"dt"`
}

// Rev revokes a previously issued credential. P is the SAID of the iss
// event it supersedes.
type Rev struct {
	V  string `json:"v"`
	T  string `json:"t"`
	D  string `json:"d"`
	I  string `json:"i"`
	S  string `json:"s"`
	P  string `json:"p"`
	Ri string `json:"ri"`
	Dt string `json:"dt"`
}

func (e *Vcp) Serialize() ([]byte, error) { return json.Marshal(e) }
func (e *Iss) Serialize() ([]byte, error) { return json.Marshal(e) }
func (e *Rev) Serialize() ([]byte, error) { return json.Marshal(e) }

func ParseVcp(body []byte) (*Vcp, error) { return parseInto[Vcp](body) }
func ParseIss(body []byte) (*Iss, error) { return parseInto[Iss](body) }
func ParseRev(body []byte) (*Rev, error) { return parseInto[Rev](body) }
