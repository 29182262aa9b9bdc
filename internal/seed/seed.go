// Package seed loads a worker directory from a YAML or JSON file and
// writes it to the document store, replacing what is there.
package seed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"

	orderedmap "github.com/wk8/go-ordered-map/v2"
	"gopkg.in/yaml.v3"

	"github.com/kalambet/karigar/internal/directory"
)

// ErrNotWorkerList is returned when the file is not a list of mappings.
var ErrNotWorkerList = errors.New("directory file must be a list of worker mappings")

// LoadFile reads and decodes a directory file.
func LoadFile(path string) ([]json.RawMessage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return Decode(data)
}

// Decode parses YAML (or JSON, which it also accepts) into a list of worker
// objects encoded as JSON. Mapping keys keep their file order.
func Decode(data []byte) ([]json.RawMessage, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("parsing directory file: %w", err)
	}
	n := &root
	if n.Kind == yaml.DocumentNode {
		if len(n.Content) == 0 {
			return nil, ErrNotWorkerList
		}
		n = n.Content[0]
	}
	n = resolveAlias(n)
	if n.Kind != yaml.SequenceNode {
		return nil, ErrNotWorkerList
	}

	list := make([]json.RawMessage, 0, len(n.Content))
	for i, item := range n.Content {
		if resolveAlias(item).Kind != yaml.MappingNode {
			return nil, fmt.Errorf("%w: entry %d is not a mapping", ErrNotWorkerList, i)
		}
		raw, err := nodeToJSON(item, map[*yaml.Node]bool{})
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		list = append(list, raw)
	}
	return list, nil
}

// Import writes list to document binID in the given shape and returns the
// store's confirmation.
func Import(ctx context.Context, store directory.DocumentStore, binID string, list []json.RawMessage, shape directory.Shape) (json.RawMessage, error) {
	doc, err := directory.Rewrap(list, shape, nil)
	if err != nil {
		return nil, err
	}
	return store.PutDocument(ctx, binID, doc)
}

func resolveAlias(n *yaml.Node) *yaml.Node {
	for n.Kind == yaml.AliasNode && n.Alias != nil {
		n = n.Alias
	}
	return n
}

// nodeToJSON converts n, rejecting aliases that point back at a node still
// being converted. open holds the mappings and sequences on the current path.
func nodeToJSON(n *yaml.Node, open map[*yaml.Node]bool) (json.RawMessage, error) {
	line := n.Line
	n = resolveAlias(n)
	if open[n] {
		return nil, fmt.Errorf("line %d: recursive alias", line)
	}
	switch n.Kind {
	case yaml.MappingNode:
		open[n] = true
		defer delete(open, n)
		obj := orderedmap.New[string, json.RawMessage]()
		for i := 0; i+1 < len(n.Content); i += 2 {
			v, err := nodeToJSON(n.Content[i+1], open)
			if err != nil {
				return nil, err
			}
			obj.Set(n.Content[i].Value, v)
		}
		return obj.MarshalJSON()
	case yaml.SequenceNode:
		open[n] = true
		defer delete(open, n)
		items := make([]json.RawMessage, 0, len(n.Content))
		for _, c := range n.Content {
			v, err := nodeToJSON(c, open)
			if err != nil {
				return nil, err
			}
			items = append(items, v)
		}
		return json.Marshal(items)
	case yaml.ScalarNode:
		return scalarToJSON(n)
	default:
		return nil, fmt.Errorf("line %d: unsupported YAML node", n.Line)
	}
}

func scalarToJSON(n *yaml.Node) (json.RawMessage, error) {
	switch n.ShortTag() {
	case "!!null":
		return json.RawMessage("null"), nil
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err != nil {
			return nil, err
		}
		return json.Marshal(b)
	case "!!int":
		var i int64
		if err := n.Decode(&i); err == nil {
			return json.Marshal(i)
		}
		return json.Marshal(n.Value)
	case "!!float":
		var f float64
		if err := n.Decode(&f); err != nil {
			return nil, err
		}
		if math.IsInf(f, 0) || math.IsNaN(f) {
			return nil, fmt.Errorf("line %d: %s is not representable in JSON", n.Line, n.Value)
		}
		return json.Marshal(f)
	default:
		return json.Marshal(n.Value)
	}
}
