package directory

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// addressAliases pair a fragment of a stored address with a fragment of
// the requested one that should be treated as the same place.
var addressAliases = []struct{ stored, requested string }{
	{stored: "maint", requested: "mai"},
	{stored: "bar", requested: "bar"},
}

// MatchesSearch reports whether r is listed for the given category and
// address. Category must be equal ignoring case; the address matches when
// the stored address contains the requested one or an alias applies.
func MatchesSearch(r *Record, category, address string) bool {
	if strings.ToLower(r.Text("Category")) != strings.ToLower(category) {
		return false
	}
	stored := strings.ToLower(r.Text("Address"))
	requested := strings.ToLower(address)
	for _, a := range addressAliases {
		if strings.Contains(stored, a.stored) && strings.Contains(requested, a.requested) {
			return true
		}
	}
	return strings.Contains(stored, requested)
}

// Search returns the records in list matching category and address, in
// list order. Entries that are not objects are skipped.
func Search(list []json.RawMessage, category, address string) []*Record {
	var out []*Record
	for _, raw := range list {
		rec, err := DecodeRecord(raw)
		if err != nil {
			continue
		}
		if MatchesSearch(rec, category, address) {
			out = append(out, rec)
		}
	}
	return out
}

// AverageRating is the mean review rating rounded to one decimal. Ratings
// that are not numbers count as 0. It reports false when there are no
// reviews.
func AverageRating(r *Record) (float64, bool) {
	reviews := r.Reviews()
	if len(reviews) == 0 {
		return 0, false
	}
	var sum float64
	for _, raw := range reviews {
		sum += ratingOf(raw)
	}
	return math.Round(sum/float64(len(reviews))*10) / 10, true
}

func ratingOf(review json.RawMessage) float64 {
	rec, err := DecodeRecord(review)
	if err != nil {
		return 0
	}
	v, ok := rec.Get("rating")
	if !ok {
		return 0
	}
	switch firstByte(v) {
	case 't':
		return 1
	case '"':
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return 0
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil || math.IsNaN(f) {
			return 0
		}
		return f
	default:
		var f float64
		if err := json.Unmarshal(v, &f); err != nil {
			return 0
		}
		return f
	}
}
