package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/kalambet/karigar/internal/directory"
)

// SearchResult is one worker returned by a search. AverageRating is nil
// when the worker has no reviews.
type SearchResult struct {
	Worker        *directory.Record `json:"worker"`
	AverageRating *float64          `json:"averageRating"`
	ReviewCount   int               `json:"reviewCount"`
}

func searchWorkers(ctx context.Context, store directory.DocumentStore, binID, category, address string) ([]SearchResult, error) {
	doc, err := store.FetchDocument(ctx, binID)
	if err != nil {
		return nil, fmt.Errorf("fetching directory: %w", err)
	}
	list, _, err := directory.Unwrap(doc)
	if err != nil {
		return nil, err
	}

	results := []SearchResult{}
	for _, rec := range directory.Search(list, category, address) {
		res := SearchResult{Worker: rec, ReviewCount: len(rec.Reviews())}
		if avg, ok := directory.AverageRating(rec); ok {
			res.AverageRating = &avg
		}
		results = append(results, res)
	}
	return results, nil
}

func handleSearchWorkers(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		category, address := q.Get("category"), q.Get("address")
		if category == "" || address == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "category and address are required")
			return
		}
		binID := q.Get("binId")
		if binID == "" {
			binID = deps.DefaultBinID
		}
		if binID == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "binId is required")
			return
		}

		results, err := searchWorkers(r.Context(), deps.Store, binID, category, address)
		if err != nil {
			httpError(w, http.StatusBadGateway, "api_error", "search failed: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, results)
	}
}
