package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/kalambet/karigar/internal/directory"
	"github.com/kalambet/karigar/internal/storage"
)

// ReviewRequest is the body of POST /api/review.
type ReviewRequest struct {
	BinID      string                     `json:"binId"`
	Identifier map[string]json.RawMessage `json:"identifier"`
	Review     json.RawMessage            `json:"review"`
}

func handleReview(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"message": "Method not allowed"})
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req ReviewRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, directory.Result{Message: "invalid request body: " + err.Error()})
			return
		}

		binID := req.BinID
		if binID == "" {
			binID = deps.DefaultBinID
		}
		switch {
		case binID == "":
			writeJSON(w, http.StatusBadRequest, directory.Result{Message: "binId is required"})
			return
		case len(req.Identifier) == 0:
			writeJSON(w, http.StatusBadRequest, directory.Result{Message: "identifier must have at least one field"})
			return
		case isNull(req.Review):
			writeJSON(w, http.StatusBadRequest, directory.Result{Message: "review is required"})
			return
		}

		id := directory.IdentifierFromJSON(req.Identifier)
		res := appendReview(r.Context(), deps, "http", binID, id, req.Review)
		writeJSON(w, reviewStatus(res), res)
	}
}

// appendReview runs one update and journals its outcome.
func appendReview(ctx context.Context, deps Deps, source, binID string, id directory.Identifier, review json.RawMessage) directory.Result {
	conf, err := deps.Updater.UpdateReview(ctx, binID, id, review)
	res := directory.ResultOf(conf, err)
	recordAttempt(deps, source, binID, id, review, res)
	return res
}

func recordAttempt(deps Deps, source, binID string, id directory.Identifier, review json.RawMessage, res directory.Result) {
	if deps.Journal == nil {
		return
	}
	idJSON, err := json.Marshal(id)
	if err != nil {
		idJSON = []byte("{}")
	}
	a := storage.Attempt{
		ID:             uuid.New().String(),
		DocumentID:     binID,
		IdentifierJSON: string(idJSON),
		ReviewJSON:     string(review),
		Source:         source,
		OK:             res.OK,
		Stage:          string(res.Stage),
		Message:        res.Message,
	}
	if err := deps.Journal.SaveAttempt(a); err != nil {
		deps.logger().Warn("journal write failed", "document_id", binID, "error", err)
	}
}

func reviewStatus(res directory.Result) int {
	switch {
	case res.OK:
		return http.StatusOK
	case res.Stage == directory.StageMatch:
		return http.StatusNotFound
	case res.Stage == directory.StageFetch, res.Stage == directory.StageStore:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func isNull(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) == 0 || bytes.Equal(t, []byte("null"))
}
