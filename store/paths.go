package store

import (
	"fmt"
	"strings"
)

// Key prefixes for the logical tables. Events are content addressed under
// events/; everything else is a secondary index over them except acdc/
// and schema/, which denormalize parsed bodies for fast lookup.
const (
	eventsPrefix    = "events/"
	metaPrefix      = "meta/"
	acdcPrefix      = "acdc/"
	schemaPrefix    = "schema/"
	aliasPrefix     = "aliases/"
	aliasRevPrefix  = "aliases-rev/"
	kelPrefix       = "kel/"
	telPrefix       = "tel/"
	snPathDigits    = 8
)

// Alias namespaces.
const (
	NsKel     = "kel"
	NsTel     = "tel"
	NsSchema  = "schema"
	NsAcdc    = "acdc"
	NsContact = "contact"
)

func knownNamespace(ns string) bool {
	switch ns {
	case NsKel, NsTel, NsSchema, NsAcdc, NsContact:
		return true
	}
	return false
}

// snPath pads a log position so lexicographic key order is numeric order.
func snPath(sn uint64) string {
	return fmt.Sprintf("%0*x", snPathDigits, sn)
}

func eventKey(said string) []byte  { return []byte(eventsPrefix + said) }
func metaKey(said string) []byte   { return []byte(metaPrefix + said) }
func acdcKey(said string) []byte   { return []byte(acdcPrefix + said) }
func schemaKey(said string) []byte { return []byte(schemaPrefix + said) }

func aliasKey(ns, alias string) []byte  { return []byte(aliasPrefix + ns + "/" + alias) }
func aliasRevKey(ns, id string) []byte  { return []byte(aliasRevPrefix + ns + "/" + id) }

func kelEntryKey(aid string, sn uint64) []byte {
	return []byte(kelPrefix + aid + "/" + snPath(sn))
}

func kelScanPrefix(aid string) []byte { return []byte(kelPrefix + aid + "/") }

func telEntryKey(registryId string, position uint64, credentialId string) []byte {
	k := telPrefix + registryId + "/" + snPath(position)
	if credentialId != "" {
		k += "/" + credentialId
	}
	return []byte(k)
}

func telScanPrefix(registryId string) []byte { return []byte(telPrefix + registryId + "/") }

// telKeyCredential recovers the credential component of a tel index key,
// "" for the vcp entry.
func telKeyCredential(key string) string {
	parts := strings.Split(key, "/")
	if len(parts) < 4 {
		return ""
	}
	return parts[3]
}
