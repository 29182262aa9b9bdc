package directory

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnwrap_Shapes(t *testing.T) {
	cases := []struct {
		name  string
		doc   string
		shape Shape
		count int
	}{
		{"bare", `[{"Name":"A"},{"Name":"B"}]`, Bare, 2},
		{"workers", `{"workers":[{"Name":"A"}],"updated":"2024-01-01"}`, WrappedAs("workers"), 1},
		{"data", `{"data":[{"Name":"A"},{"Name":"B"},{"Name":"C"}]}`, WrappedAs("data"), 3},
		{"workers wins over data", `{"data":[{}],"workers":[{},{}]}`, WrappedAs("workers"), 2},
		{"non-list workers falls through to data", `{"workers":{"Name":"A"},"data":[{}]}`, WrappedAs("data"), 1},
		{"empty bare list", `[]`, Bare, 0},
		{"leading whitespace", "  \n[{}]", Bare, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			list, shape, err := Unwrap(json.RawMessage(tc.doc))
			require.NoError(t, err)
			assert.Equal(t, tc.shape, shape)
			assert.Len(t, list, tc.count)
		})
	}
}

func TestUnwrap_Unrecognized(t *testing.T) {
	docs := []string{
		`{"foo":"bar"}`,
		`{"workers":"none","data":null}`,
		`"just a string"`,
		`42`,
		`null`,
		``,
		`{"workers":[` + "\n",
	}
	for _, doc := range docs {
		_, _, err := Unwrap(json.RawMessage(doc))
		if !errors.Is(err, ErrUnrecognizedShape) {
			t.Errorf("Unwrap(%q) error = %v, want ErrUnrecognizedShape", doc, err)
		}
	}
}

func TestRewrap_RoundTrip(t *testing.T) {
	docs := []string{
		`[{"Name":"A","Reviews":[{"user":"x","rating":4}]},"stray",7]`,
		`{"workers":[{"Name":"A"}],"owner":{"id":3,"tags":["x"]},"version":2}`,
		`{"title":"Directory","data":[{"Name":"A","Phone":"1"}],"workers":"legacy"}`,
	}
	for _, doc := range docs {
		list, shape, err := Unwrap(json.RawMessage(doc))
		require.NoError(t, err)

		out, err := Rewrap(list, shape, json.RawMessage(doc))
		require.NoError(t, err)
		assert.JSONEq(t, doc, string(out))

		_, again, err := Unwrap(out)
		require.NoError(t, err)
		assert.Equal(t, shape, again, "shape changed across round trip")
	}
}

func TestRewrap_PreservesFieldOrder(t *testing.T) {
	doc := `{"meta":{"v":1},"workers":[{"b":1,"a":2}],"z":true}`
	list, shape, err := Unwrap(json.RawMessage(doc))
	require.NoError(t, err)

	out, err := Rewrap(list, shape, json.RawMessage(doc))
	require.NoError(t, err)
	assert.Equal(t, doc, string(out))
}

func TestRewrap_KeepsHTMLCharacters(t *testing.T) {
	doc := `{"meta":"<a&b>","workers":[{"Name":"R&D <plumbing>","Reviews":[{"comment":"5 > 4"}]}]}`
	list, shape, err := Unwrap(json.RawMessage(doc))
	require.NoError(t, err)

	out, err := Rewrap(list, shape, json.RawMessage(doc))
	require.NoError(t, err)
	assert.Equal(t, doc, string(out))
}

func TestRewrap_EmptyListIsArray(t *testing.T) {
	out, err := Rewrap(nil, Bare, nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(out))

	out, err = Rewrap(nil, WrappedAs("workers"), json.RawMessage(`{"workers":[{}]}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"workers":[]}`, string(out))
}

func TestParseShape(t *testing.T) {
	for in, want := range map[string]Shape{
		"bare":    Bare,
		"":        Bare,
		"workers": WrappedAs("workers"),
		"data":    WrappedAs("data"),
	} {
		got, err := ParseShape(in)
		require.NoError(t, err)
		assert.Equal(t, want, got, "ParseShape(%q)", in)
	}

	if _, err := ParseShape("records"); err == nil {
		t.Error("ParseShape(records) should fail")
	}
}
