package directory

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var errEmptyReview = errors.New("review is empty")

// AppendReview adds review as the last element of the record's review
// list, creating the list when it is missing or not a list. The review is
// stored as given.
func (r *Record) AppendReview(review json.RawMessage) error {
	if len(review) == 0 {
		return errEmptyReview
	}
	reviews := append(r.Reviews(), review)
	encoded, err := encodeArray(reviews)
	if err != nil {
		return fmt.Errorf("encoding reviews: %w", err)
	}
	r.Set(ReviewsField, encoded)
	return nil
}

// Review is the shape CLI and MCP callers build reviews from. The HTTP
// endpoint forwards caller JSON verbatim and does not use it.
type Review struct {
	User    string  `json:"user"`
	Rating  float64 `json:"rating"`
	Comment string  `json:"comment"`
	Date    string  `json:"date"`
}

// WithDefaults fills in the values the review form falls back to.
func (rv Review) WithDefaults(now time.Time) Review {
	if rv.User == "" {
		rv.User = "Anon"
	}
	if rv.Rating == 0 {
		rv.Rating = 5
	}
	if rv.Date == "" {
		rv.Date = now.UTC().Format(time.DateOnly)
	}
	return rv
}
