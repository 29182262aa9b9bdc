package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalambet/karigar/internal/directory"
	"github.com/kalambet/karigar/internal/storage"
)

const (
	testToken = "test-token-12345"
	testBin   = "bin-1"
)

const testDirectory = `{"workers":[
	{"Name":"Ravi","Category":"Plumber","Address":"Koramangala","PhoneNumber":"+91-1","Reviews":[{"user":"A","rating":4},{"user":"B","rating":5}]},
	{"Name":"Sunil","Category":"Electrician","Address":"Indiranagar","PhoneNumber":"+91-2"}
]}`

// memStore is an in-memory DocumentStore.
type memStore struct {
	mu       sync.Mutex
	docs     map[string]string
	fetchErr error
	putErr   error
	puts     int
}

func newMemStore(id, doc string) *memStore {
	return &memStore{docs: map[string]string{id: doc}}
}

func (s *memStore) FetchDocument(_ context.Context, id string) (json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	doc, ok := s.docs[id]
	if !ok {
		return nil, errors.New("bin not found")
	}
	return json.RawMessage(doc), nil
}

func (s *memStore) PutDocument(_ context.Context, id string, doc json.RawMessage) (json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.puts++
	if s.putErr != nil {
		return nil, s.putErr
	}
	s.docs[id] = string(doc)
	return json.RawMessage(`{"metadata":{"parentId":"` + id + `"}}`), nil
}

func (s *memStore) doc(id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.docs[id]
}

func setupHandler(t *testing.T, store *memStore) (http.Handler, *storage.Store) {
	t.Helper()
	journal, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { journal.Close() })

	h := NewHandler(newTestDeps(store, journal))
	return h, journal
}

func newTestDeps(store *memStore, journal Journal) Deps {
	return Deps{
		Updater:      directory.NewUpdater(store),
		Store:        store,
		Journal:      journal,
		DefaultBinID: testBin,
		Token:        testToken,
	}
}

func doReq(h http.Handler, method, url, body, token string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, url, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeResult(t *testing.T, rr *httptest.ResponseRecorder) directory.Result {
	t.Helper()
	var res directory.Result
	if err := json.Unmarshal(rr.Body.Bytes(), &res); err != nil {
		t.Fatalf("decoding body %q: %v", rr.Body.String(), err)
	}
	return res
}

func TestHealth(t *testing.T) {
	h, _ := setupHandler(t, newMemStore(testBin, testDirectory))

	rr := doReq(h, http.MethodGet, "/health", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if rr.Body.String() != `{"status":"ok"}` {
		t.Errorf("body = %s", rr.Body.String())
	}
}

func TestReview_Success(t *testing.T) {
	store := newMemStore(testBin, `{"workers":[{"PhoneNumber":"+91-1","Reviews":[]}]}`)
	h, journal := setupHandler(t, store)

	body := `{"binId":"bin-1","identifier":{"PhoneNumber":" +91-1 "},"review":{"user":"A","rating":5}}`
	rr := doReq(h, http.MethodPost, "/api/review", body, "")

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	res := decodeResult(t, rr)
	assert.True(t, res.OK)
	assert.JSONEq(t, `{"metadata":{"parentId":"bin-1"}}`, string(res.Confirmation))
	assert.JSONEq(t,
		`{"workers":[{"PhoneNumber":"+91-1","Reviews":[{"user":"A","rating":5}]}]}`,
		store.doc(testBin))

	attempts, err := journal.ListAttempts(testBin, 10, 0)
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	assert.True(t, attempts[0].OK)
	assert.Equal(t, "http", attempts[0].Source)
	assert.JSONEq(t, `{"PhoneNumber":" +91-1 "}`, attempts[0].IdentifierJSON)
}

func TestReview_DefaultBinID(t *testing.T) {
	store := newMemStore(testBin, testDirectory)
	h, _ := setupHandler(t, store)

	body := `{"identifier":{"PhoneNumber":"+91-2"},"review":{"user":"C","rating":3}}`
	rr := doReq(h, http.MethodPost, "/api/review", body, "")

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Contains(t, store.doc(testBin), `"Reviews":[{"user":"C","rating":3}]`)
}

func TestReview_MethodNotAllowed(t *testing.T) {
	h, _ := setupHandler(t, newMemStore(testBin, testDirectory))

	rr := doReq(h, http.MethodGet, "/api/review", "", "")
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rr.Code)
	}
	assert.JSONEq(t, `{"message":"Method not allowed"}`, rr.Body.String())
}

func TestReview_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{`},
		{"missing identifier", `{"binId":"bin-1","review":{"rating":5}}`},
		{"empty identifier", `{"binId":"bin-1","identifier":{},"review":{"rating":5}}`},
		{"missing review", `{"binId":"bin-1","identifier":{"PhoneNumber":"+91-1"}}`},
		{"null review", `{"binId":"bin-1","identifier":{"PhoneNumber":"+91-1"},"review":null}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore(testBin, testDirectory)
			h, _ := setupHandler(t, store)

			rr := doReq(h, http.MethodPost, "/api/review", tt.body, "")
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400; body = %s", rr.Code, rr.Body.String())
			}
			res := decodeResult(t, rr)
			assert.False(t, res.OK)
			assert.NotEmpty(t, res.Message)
			assert.Zero(t, store.puts)
		})
	}
}

func TestReview_MissingBinID(t *testing.T) {
	store := newMemStore(testBin, testDirectory)
	deps := newTestDeps(store, nil)
	deps.DefaultBinID = ""
	h := NewHandler(deps)

	rr := doReq(h, http.MethodPost, "/api/review", `{"identifier":{"PhoneNumber":"+91-1"},"review":{"rating":5}}`, "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestReview_NotFound(t *testing.T) {
	store := newMemStore(testBin, testDirectory)
	h, journal := setupHandler(t, store)

	body := `{"binId":"bin-1","identifier":{"PhoneNumber":"+91-9"},"review":{"rating":5}}`
	rr := doReq(h, http.MethodPost, "/api/review", body, "")

	require.Equal(t, http.StatusNotFound, rr.Code)
	res := decodeResult(t, rr)
	assert.False(t, res.OK)
	assert.Equal(t, directory.StageMatch, res.Stage)
	assert.Equal(t, directory.ErrNotFound.Error(), res.Message)
	assert.Zero(t, store.puts)

	attempts, err := journal.ListAttempts("", 10, 0)
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	assert.False(t, attempts[0].OK)
	assert.Equal(t, "match", attempts[0].Stage)
}

func TestReview_UpstreamFailures(t *testing.T) {
	tests := []struct {
		name  string
		doc   string
		setup func(s *memStore)
		code  int
		stage directory.Stage
	}{
		{"fetch", testDirectory, func(s *memStore) { s.fetchErr = errors.New("connection refused") }, http.StatusBadGateway, directory.StageFetch},
		{"store", testDirectory, func(s *memStore) { s.putErr = errors.New("401 unauthorized") }, http.StatusBadGateway, directory.StageStore},
		{"shape", `{"foo":"bar"}`, func(*memStore) {}, http.StatusInternalServerError, directory.StageShape},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore(testBin, tt.doc)
			tt.setup(store)
			h, _ := setupHandler(t, store)

			body := `{"binId":"bin-1","identifier":{"PhoneNumber":"+91-1"},"review":{"rating":5}}`
			rr := doReq(h, http.MethodPost, "/api/review", body, "")

			require.Equal(t, tt.code, rr.Code, rr.Body.String())
			res := decodeResult(t, rr)
			assert.False(t, res.OK)
			assert.Equal(t, tt.stage, res.Stage)
		})
	}
}

type failingJournal struct{}

func (failingJournal) SaveAttempt(storage.Attempt) error { return errors.New("disk full") }
func (failingJournal) ListAttempts(string, int, int) ([]storage.Attempt, error) {
	return nil, errors.New("disk full")
}

func TestReview_JournalFailureDoesNotChangeResult(t *testing.T) {
	store := newMemStore(testBin, testDirectory)
	h := NewHandler(newTestDeps(store, failingJournal{}))

	body := `{"identifier":{"PhoneNumber":"+91-1"},"review":{"rating":5}}`
	rr := doReq(h, http.MethodPost, "/api/review", body, "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
}

func TestSearchWorkers(t *testing.T) {
	h, _ := setupHandler(t, newMemStore(testBin, testDirectory))

	rr := doReq(h, http.MethodGet, "/api/workers?category=plumber&address=koramangala", "", "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var results []struct {
		Worker        map[string]any `json:"worker"`
		AverageRating *float64       `json:"averageRating"`
		ReviewCount   int            `json:"reviewCount"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &results))
	require.Len(t, results, 1)
	assert.Equal(t, "Ravi", results[0].Worker["Name"])
	require.NotNil(t, results[0].AverageRating)
	assert.Equal(t, 4.5, *results[0].AverageRating)
	assert.Equal(t, 2, results[0].ReviewCount)
}

func TestSearchWorkers_NoReviewsHasNullRating(t *testing.T) {
	h, _ := setupHandler(t, newMemStore(testBin, testDirectory))

	rr := doReq(h, http.MethodGet, "/api/workers?category=Electrician&address=indira", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"averageRating":null`)
}

func TestSearchWorkers_EmptyIsArray(t *testing.T) {
	h, _ := setupHandler(t, newMemStore(testBin, testDirectory))

	rr := doReq(h, http.MethodGet, "/api/workers?category=Carpenter&address=x", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[]`, rr.Body.String())
}

func TestSearchWorkers_RequiresParams(t *testing.T) {
	h, _ := setupHandler(t, newMemStore(testBin, testDirectory))

	rr := doReq(h, http.MethodGet, "/api/workers?category=Plumber", "", "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestSearchWorkers_FetchFailure(t *testing.T) {
	store := newMemStore(testBin, testDirectory)
	store.fetchErr = errors.New("timeout")
	h, _ := setupHandler(t, store)

	rr := doReq(h, http.MethodGet, "/api/workers?category=Plumber&address=k", "", "")
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rr.Code)
	}
}

func TestJournal_RequiresAuth(t *testing.T) {
	h, _ := setupHandler(t, newMemStore(testBin, testDirectory))

	for _, token := range []string{"", "wrong"} {
		rr := doReq(h, http.MethodGet, "/journal", "", token)
		if rr.Code != http.StatusUnauthorized {
			t.Errorf("token %q: status = %d, want 401", token, rr.Code)
		}
		if got := rr.Header().Get("WWW-Authenticate"); !strings.HasPrefix(got, "Bearer") {
			t.Errorf("token %q: WWW-Authenticate = %q", token, got)
		}
	}
}

func TestBearerAuth_EmptyTokenLocks(t *testing.T) {
	h := BearerAuth("")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/journal", nil)
	req.Header.Set("Authorization", "Bearer ")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rr.Code)
	}
}

func TestJournal_List(t *testing.T) {
	h, journal := setupHandler(t, newMemStore(testBin, testDirectory))

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, journal.SaveAttempt(storage.Attempt{ID: id, DocumentID: testBin}))
	}

	rr := doReq(h, http.MethodGet, "/journal?limit=2", "", testToken)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var attempts []storage.Attempt
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &attempts))
	assert.Len(t, attempts, 2)
}

func TestJournal_EmptyIsArray(t *testing.T) {
	h, _ := setupHandler(t, newMemStore(testBin, testDirectory))

	rr := doReq(h, http.MethodGet, "/journal", "", testToken)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[]`, rr.Body.String())
}

func TestParseIntParam(t *testing.T) {
	tests := []struct {
		query string
		want  int
	}{
		{"", 20},
		{"limit=5", 5},
		{"limit=500", 100},
		{"limit=-1", 20},
		{"limit=abc", 20},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/journal?"+tt.query, nil)
		if got := parseIntParam(r, "limit", 20, 100); got != tt.want {
			t.Errorf("parseIntParam(%q) = %d, want %d", tt.query, got, tt.want)
		}
	}
}
