package event

import (
	"encoding/json"
	"fmt"

	"github.com/iancoleman/orderedmap"

	"github.com/aaronp/go-kerits/cesr"
)

// SchemaLabel is the self-addressing label for schemas. Schemas that
// self-reference under "d" follow the conflicting convention and are
// rejected.
const SchemaLabel = "$id"

// BuildSchema binds a SAID into an author-supplied JSON schema body. Field
// order is preserved; the $id field is overwritten in place when the
// author included one, appended otherwise.
func BuildSchema(raw []byte, digest cesr.DigestFn) ([]byte, string, error) {
	om := orderedmap.New()
	if err := json.Unmarshal(raw, om); err != nil {
		return nil, "", fmt.Errorf("%w: schema body: %v", ErrBadJSON, err)
	}
	if _, conflicting := om.Get("d"); conflicting {
		return nil, "", fmt.Errorf("%w: top level d field present", ErrSchemaConflict)
	}
	om.Set(SchemaLabel, cesr.SaidPlaceholder)
	canonical, err := json.Marshal(om)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrBadJSON, err)
	}
	return cesr.Saidify(canonical, SchemaLabel, digest)
}

// VerifySchema checks an incoming schema against the $id convention and
// its own SAID, returning the SAID.
func VerifySchema(raw []byte, digest cesr.DigestFn) (string, error) {
	om := orderedmap.New()
	if err := json.Unmarshal(raw, om); err != nil {
		return "", fmt.Errorf("%w: schema body: %v", ErrBadJSON, err)
	}
	if _, conflicting := om.Get("d"); conflicting {
		return "", fmt.Errorf("%w: top level d field present", ErrSchemaConflict)
	}
	if _, ok := om.Get(SchemaLabel); !ok {
		return "", fmt.Errorf("%w: no %s field", ErrSchemaConflict, SchemaLabel)
	}
	said, err := cesr.VerifySaid(raw, SchemaLabel, digest)
	if err != nil {
		return "", err
	}
	return said, nil
}

// SchemaTitle pulls the human readable title, "" when absent.
func SchemaTitle(raw []byte) string {
	var s struct {
		Title string `json:"title"`
	}
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s.Title
}
