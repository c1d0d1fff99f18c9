package event

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/iancoleman/orderedmap"
)

// Acdc is a credential object. A holds the attribute subject (the holder
// AID under "i" plus issuer-supplied data) and E the optional edge
// section; both are kept as raw spans so re-serialization reproduces the
// bytes the SAID commits to.
type Acdc struct {
	V  string          `json:"v"`
	D  string          `json:"d"`
	I  string          `json:"i"`
	Ri string          `json:"ri"`
	S  string          `json:"s"`
	A  json.RawMessage `json:"a"`
	E  json.RawMessage `json:"e,omitempty"`
}

func (e *Acdc) Serialize() ([]byte, error) { return json.Marshal(e) }

func ParseAcdc(body []byte) (*Acdc, error) { return parseInto[Acdc](body) }

// BuildAttributes assembles the attribute subject: the holder AID first,
// then the issuer data with keys sorted so construction is deterministic.
func BuildAttributes(holder string, data map[string]any) (json.RawMessage, error) {
	om := orderedmap.New()
	om.Set("i", holder)
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		om.Set(k, data[k])
	}
	raw, err := json.Marshal(om)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadJSON, err)
	}
	return raw, nil
}

// HolderAid extracts the holder from a credential's attribute subject.
// Credentials without an "i" attribute (bearer style) yield "".
func (e *Acdc) HolderAid() (string, error) {
	var subject struct {
		I string `json:"i"`
	}
	if err := json.Unmarshal(e.A, &subject); err != nil {
		return "", fmt.Errorf("%w: attribute subject: %v", ErrBadJSON, err)
	}
	return subject.I, nil
}

// MarshalEdges serializes an edge map with labels sorted.
func MarshalEdges(edges map[string]Edge) (json.RawMessage, error) {
	if len(edges) == 0 {
		return nil, nil
	}
	labels := make([]string, 0, len(edges))
	for l := range edges {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	om := orderedmap.New()
	for _, l := range labels {
		om.Set(l, edges[l])
	}
	raw, err := json.Marshal(om)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadEdge, err)
	}
	return raw, nil
}

// Edges parses the credential's edge section. Order is irrelevant to
// validation so a plain map suffices here.
func (e *Acdc) Edges() (map[string]Edge, error) {
	if len(e.E) == 0 {
		return nil, nil
	}
	var edges map[string]Edge
	if err := json.Unmarshal(e.E, &edges); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadEdge, err)
	}
	for label, edge := range edges {
		if edge.N == "" {
			return nil, fmt.Errorf("%w: edge %q has no target", ErrBadEdge, label)
		}
	}
	return edges, nil
}
