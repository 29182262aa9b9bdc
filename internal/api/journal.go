package api

import (
	"net/http"

	"github.com/kalambet/karigar/internal/storage"
)

func handleListJournal(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Journal == nil {
			httpError(w, http.StatusServiceUnavailable, "api_error", "journal not configured")
			return
		}
		limit := parseIntParam(r, "limit", 20, 100)
		offset := parseIntParam(r, "offset", 0, 0)

		attempts, err := deps.Journal.ListAttempts(r.URL.Query().Get("binId"), limit, offset)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list journal: %v", err)
			return
		}
		if attempts == nil {
			attempts = []storage.Attempt{}
		}
		writeJSON(w, http.StatusOK, attempts)
	}
}
