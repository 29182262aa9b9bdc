package seed

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalambet/karigar/internal/directory"
)

const directoryYAML = `
- Name: Ravi
  Category: Plumber
  PhoneNumber: "+91-1"
  Experience: 7
  Verified: true
  Rate: 350.5
  Notes: ~
  Reviews:
    - user: A
      rating: 4
- Name: Sunil
  Category: Electrician
  PhoneNumber: "+91-2"
`

func TestDecode_YAML(t *testing.T) {
	list, err := Decode([]byte(directoryYAML))
	require.NoError(t, err)
	require.Len(t, list, 2)

	assert.Equal(t,
		`{"Name":"Ravi","Category":"Plumber","PhoneNumber":"+91-1","Experience":7,"Verified":true,"Rate":350.5,"Notes":null,"Reviews":[{"user":"A","rating":4}]}`,
		string(list[0]))
	assert.Equal(t, `{"Name":"Sunil","Category":"Electrician","PhoneNumber":"+91-2"}`, string(list[1]))
}

func TestDecode_JSON(t *testing.T) {
	list, err := Decode([]byte(`[{"b":1,"a":"x"}]`))
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, `{"b":1,"a":"x"}`, string(list[0]))
}

func TestDecode_Aliases(t *testing.T) {
	data := `
- &base
  Category: Plumber
- *base
`
	list, err := Decode([]byte(data))
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, string(list[0]), string(list[1]))
}

func TestDecode_RecursiveAlias(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"self mapping", "- &a\n  name: x\n  self: *a\n"},
		{"nested list", "- &w\n  Reviews: &r\n    - *r\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.data))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "recursive alias")
		})
	}
}

func TestDecode_Rejects(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"empty", ``},
		{"mapping", `workers: []`},
		{"scalar entry", "- Ravi\n- Sunil\n"},
		{"infinite float", "- Rate: .inf\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.data))
			assert.Error(t, err)
		})
	}

	_, err := Decode([]byte(`workers: []`))
	assert.True(t, errors.Is(err, ErrNotWorkerList))
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "workers.yaml")
	require.NoError(t, os.WriteFile(path, []byte(directoryYAML), 0o644))

	list, err := LoadFile(path)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

type recordingStore struct {
	id  string
	doc json.RawMessage
}

func (s *recordingStore) FetchDocument(context.Context, string) (json.RawMessage, error) {
	return s.doc, nil
}

func (s *recordingStore) PutDocument(_ context.Context, id string, doc json.RawMessage) (json.RawMessage, error) {
	s.id, s.doc = id, doc
	return json.RawMessage(`{"metadata":{"parentId":"` + id + `"}}`), nil
}

func TestImport_Shapes(t *testing.T) {
	list := []json.RawMessage{json.RawMessage(`{"PhoneNumber":"+91-1"}`)}

	tests := []struct {
		shape directory.Shape
		want  string
	}{
		{directory.Bare, `[{"PhoneNumber":"+91-1"}]`},
		{directory.WrappedAs("workers"), `{"workers":[{"PhoneNumber":"+91-1"}]}`},
		{directory.WrappedAs("data"), `{"data":[{"PhoneNumber":"+91-1"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.shape.String(), func(t *testing.T) {
			store := &recordingStore{}
			conf, err := Import(context.Background(), store, "bin-1", list, tt.shape)
			require.NoError(t, err)
			assert.JSONEq(t, `{"metadata":{"parentId":"bin-1"}}`, string(conf))
			assert.Equal(t, "bin-1", store.id)
			assert.JSONEq(t, tt.want, string(store.doc))

			got, shape, err := directory.Unwrap(store.doc)
			require.NoError(t, err)
			assert.Equal(t, tt.shape, shape)
			assert.Len(t, got, 1)
		})
	}
}
