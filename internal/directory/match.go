package directory

import (
	"encoding/json"
	"strings"
)

// Identifier selects a worker by field values. Every key must match.
type Identifier map[string]string

// IdentifierFromJSON converts decoded request fields into an Identifier,
// rendering non-string values the same way record fields are rendered.
func IdentifierFromJSON(fields map[string]json.RawMessage) Identifier {
	id := make(Identifier, len(fields))
	for k, v := range fields {
		id[k] = stringify(v)
	}
	return id
}

// Matches reports whether every identifier field equals the record field,
// ignoring case and surrounding whitespace. Absent fields compare as "".
func (id Identifier) Matches(r *Record) bool {
	for key, want := range id {
		if normalize(r.Text(key)) != normalize(want) {
			return false
		}
	}
	return true
}

// Find returns the index of the first list entry matched by id. Entries
// that are not JSON objects never match. When several entries match, the
// earliest one wins.
func Find(list []json.RawMessage, id Identifier) (int, bool) {
	for i, raw := range list {
		rec, err := DecodeRecord(raw)
		if err != nil {
			continue
		}
		if id.Matches(rec) {
			return i, true
		}
	}
	return -1, false
}

func normalize(s string) string {
	return strings.TrimSpace(strings.ToLower(s))
}
