package directory

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// ReviewsField is the record field that holds the review list.
const ReviewsField = "Reviews"

var errNotObject = errors.New("value is not a JSON object")

// Record is one worker entry. Fields keep their document order and their
// values are held as raw JSON, so fields this package knows nothing about
// are written back as they were read, minus insignificant whitespace.
type Record struct {
	fields *orderedmap.OrderedMap[string, json.RawMessage]
}

// NewRecord returns an empty record.
func NewRecord() *Record {
	return &Record{fields: orderedmap.New[string, json.RawMessage]()}
}

// DecodeRecord parses a JSON object into a Record.
func DecodeRecord(data []byte) (*Record, error) {
	r := &Record{}
	if err := r.UnmarshalJSON(data); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Record) UnmarshalJSON(data []byte) error {
	if firstByte(data) != '{' {
		return errNotObject
	}
	fields := orderedmap.New[string, json.RawMessage]()
	if err := fields.UnmarshalJSON(data); err != nil {
		return err
	}
	r.fields = fields
	return nil
}

func (r *Record) MarshalJSON() ([]byte, error) {
	if r == nil || r.fields == nil {
		return []byte("{}"), nil
	}
	return encodeObject(r.fields)
}

// Get returns the raw value of a field.
func (r *Record) Get(key string) (json.RawMessage, bool) {
	if r.fields == nil {
		return nil, false
	}
	return r.fields.Get(key)
}

// Set replaces a field value in place, or appends the field when absent.
func (r *Record) Set(key string, value json.RawMessage) {
	if r.fields == nil {
		r.fields = orderedmap.New[string, json.RawMessage]()
	}
	r.fields.Set(key, value)
}

// Keys returns the field names in document order.
func (r *Record) Keys() []string {
	if r.fields == nil {
		return nil
	}
	keys := make([]string, 0, r.fields.Len())
	for pair := r.fields.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

// Text returns the field rendered as a string. Missing fields, null, false,
// zero and the empty string all render as "".
func (r *Record) Text(key string) string {
	v, _ := r.Get(key)
	return stringify(v)
}

// Reviews returns the review list. A missing or non-list field yields nil.
func (r *Record) Reviews() []json.RawMessage {
	v, ok := r.Get(ReviewsField)
	if !ok || firstByte(v) != '[' {
		return nil
	}
	var reviews []json.RawMessage
	if err := json.Unmarshal(v, &reviews); err != nil {
		return nil
	}
	return reviews
}

// stringify renders a JSON value the way the directory compares it:
// falsy values become "", strings are unquoted, numbers are printed as
// formatNumber does and objects and arrays become compact JSON text.
func stringify(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	switch raw[0] {
	case 'n', 'f':
		return ""
	case 't':
		return "true"
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return ""
		}
		return s
	case '{', '[':
		var buf bytes.Buffer
		if err := json.Compact(&buf, raw); err != nil {
			return string(raw)
		}
		return buf.String()
	default:
		f, err := strconv.ParseFloat(string(raw), 64)
		if err != nil {
			return string(raw)
		}
		if f == 0 {
			return ""
		}
		return formatNumber(f)
	}
}

// formatNumber prints f in its shortest round-trip form, switching to
// exponent notation outside [1e-6, 1e21) with an unpadded exponent
// ("1e+21", "1.5e-7").
func formatNumber(f float64) string {
	if abs := math.Abs(f); abs >= 1e-6 && abs < 1e21 {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	s := strconv.FormatFloat(f, 'e', -1, 64)
	mant, exp, _ := strings.Cut(s, "e")
	sign, digits := exp[:1], strings.TrimLeft(exp[1:], "0")
	return mant + "e" + sign + digits
}

func firstByte(data []byte) byte {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return 0
	}
	return data[0]
}
