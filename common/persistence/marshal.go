package persistence

import "encoding/json"

// marshalPayload canonicalizes a node output/payload map to bytes for CAS
// storage. Keys aren't sorted beyond what encoding/json already does
// (alphabetical for map[string]interface{}), matching the deterministic
// JSON encoding §4.6's manifest hashing already relies on.
func marshalPayload(payload map[string]interface{}) ([]byte, error) {
	return json.Marshal(payload)
}
