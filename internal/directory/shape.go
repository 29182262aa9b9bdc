package directory

import (
	"encoding/json"
	"errors"
	"fmt"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// ErrUnrecognizedShape is returned when a document is neither a list of
// workers nor an object carrying one under a recognised key.
var ErrUnrecognizedShape = errors.New("document format not recognized: expected array or 'workers'/'data' array")

// wrapperKeys are the object keys a worker list may live under, in the
// order they are tried.
var wrapperKeys = []string{"workers", "data"}

// Shape is the structural variant of a document: a bare list, or an object
// with the list under a single key. The zero value is Bare.
type Shape struct {
	key string
}

// Bare is the shape of a document that is itself the worker list.
var Bare = Shape{}

// WrappedAs is the shape of an object document holding the list under key.
func WrappedAs(key string) Shape {
	return Shape{key: key}
}

// ParseShape accepts "bare", "workers" or "data".
func ParseShape(s string) (Shape, error) {
	if s == "bare" || s == "" {
		return Bare, nil
	}
	for _, k := range wrapperKeys {
		if s == k {
			return WrappedAs(k), nil
		}
	}
	return Shape{}, fmt.Errorf("unknown shape %q (want bare, workers or data)", s)
}

// IsBare reports whether the document is the list itself.
func (s Shape) IsBare() bool { return s.key == "" }

// Key is the wrapper key, empty for Bare.
func (s Shape) Key() string { return s.key }

func (s Shape) String() string {
	if s.IsBare() {
		return "bare"
	}
	return s.key
}

// Unwrap extracts the worker list from doc and reports the shape it was
// found in. List elements are returned as raw JSON and are not required to
// be objects.
func Unwrap(doc json.RawMessage) ([]json.RawMessage, Shape, error) {
	switch firstByte(doc) {
	case '[':
		var list []json.RawMessage
		if err := json.Unmarshal(doc, &list); err != nil {
			return nil, Shape{}, fmt.Errorf("%w: %v", ErrUnrecognizedShape, err)
		}
		return list, Bare, nil
	case '{':
		obj := orderedmap.New[string, json.RawMessage]()
		if err := obj.UnmarshalJSON(doc); err != nil {
			return nil, Shape{}, fmt.Errorf("%w: %v", ErrUnrecognizedShape, err)
		}
		for _, key := range wrapperKeys {
			v, ok := obj.Get(key)
			if !ok || firstByte(v) != '[' {
				continue
			}
			var list []json.RawMessage
			if err := json.Unmarshal(v, &list); err != nil {
				return nil, Shape{}, fmt.Errorf("%w: field %q: %v", ErrUnrecognizedShape, key, err)
			}
			return list, WrappedAs(key), nil
		}
	}
	return nil, Shape{}, ErrUnrecognizedShape
}

// Rewrap rebuilds a document of the given shape around list. For a wrapped
// shape the original object is kept field for field and only the wrapper
// key is replaced.
func Rewrap(list []json.RawMessage, shape Shape, original json.RawMessage) (json.RawMessage, error) {
	if list == nil {
		list = []json.RawMessage{}
	}
	encoded, err := encodeArray(list)
	if err != nil {
		return nil, fmt.Errorf("encoding worker list: %w", err)
	}
	if shape.IsBare() {
		return encoded, nil
	}

	obj := orderedmap.New[string, json.RawMessage]()
	if firstByte(original) == '{' {
		if err := obj.UnmarshalJSON(original); err != nil {
			return nil, fmt.Errorf("decoding original document: %w", err)
		}
	}
	obj.Set(shape.key, encoded)
	return encodeObject(obj)
}
