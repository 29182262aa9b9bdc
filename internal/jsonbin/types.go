package jsonbin

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Metadata is the bin description jsonbin returns next to a record.
type Metadata struct {
	ID        string `json:"id,omitempty"`
	ParentID  string `json:"parentId,omitempty"`
	Private   bool   `json:"private"`
	CreatedAt string `json:"createdAt,omitempty"`
}

// envelope is the v3 read/write response body.
type envelope struct {
	Record   json.RawMessage `json:"record"`
	Metadata Metadata        `json:"metadata"`
}

// StatusError is returned when jsonbin answers with a non-2xx status.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Op, e.StatusCode, e.Body)
}

// unwrapRecord returns the record held in a read response. Bodies without
// a usable record field are returned whole.
func unwrapRecord(body []byte) json.RawMessage {
	trimmed := bytes.TrimSpace(body)
	var env envelope
	if len(trimmed) > 0 && trimmed[0] == '{' && json.Unmarshal(trimmed, &env) == nil && truthy(env.Record) {
		return env.Record
	}
	return json.RawMessage(trimmed)
}

func truthy(raw json.RawMessage) bool {
	switch string(bytes.TrimSpace(raw)) {
	case "", "null", "false", "0", `""`:
		return false
	}
	return true
}
