package event

import "encoding/json"

// Icp establishes an identifier and its initial key state. For a single
// key account I is the verifier-derived AID; for multi-key events I is
// self-addressing and equals D.
type Icp struct {
	V  string   `json:"v"`
	T  string   `json:"t"`
	D  string   `json:"d"`
	I  string   `json:"i"`
	S  string   `json:"s"`
	Kt string   `json:"kt"`
	K  []string `json:"k"`
	Nt string   `json:"nt"`
	N  []string `json:"n"`
}

// Rot rotates the signing keys. The revealed K must hash to entries of
// the prior event's N (pre-rotation).
type Rot struct {
	V  string   `json:"v"`
	T  string   `json:"t"`
	D  string   `json:"d"`
	I  string   `json:"i"`
	S  string   `json:"s"`
	P  string   `json:"p"`
	Kt string   `json:"kt"`
	K  []string `json:"k"`
	Nt string   `json:"nt"`
	N  []string `json:"n"`
	A  []Seal   `json:"a"`
}

// Ixn anchors seals without changing key state. This is the only
// mechanism by which a KEL commits to TEL content.
type Ixn struct {
	V string `json:"v"`
	T string `json:"t"`
	D string `json:"d"`
	I string `json:"i"`
	S string `json:"s"`
	P string `json:"p"`
	A []Seal `json:"a"`
}

func (e *Icp) Serialize() ([]byte, error) { return json.Marshal(e) }
func (e *Rot) Serialize() ([]byte, error) { return json.Marshal(e) }
func (e *Ixn) Serialize() ([]byte, error) { return json.Marshal(e) }

func ParseIcp(body []byte) (*Icp, error) { return parseInto[Icp](body) }
func ParseRot(body []byte) (*Rot, error) { return parseInto[Rot](body) }
func ParseIxn(body []byte) (*Ixn, error) { return parseInto[Ixn](body) }
