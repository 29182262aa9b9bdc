package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
)

// ErrNotFound is returned when no worker matches the identifier.
var ErrNotFound = errors.New("worker not found to append review")

// Stage names the step of an update that failed.
type Stage string

const (
	StageFetch  Stage = "fetch"
	StageShape  Stage = "shape"
	StageMatch  Stage = "match"
	StageAppend Stage = "append"
	StageStore  Stage = "store"
)

// UpdateError reports the stage an update stopped at. Nothing is written
// when the stage is earlier than StageStore.
type UpdateError struct {
	Stage Stage
	Err   error
}

func (e *UpdateError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *UpdateError) Unwrap() error { return e.Err }

// StageOf returns the failing stage of err, or "" if err is not an
// *UpdateError.
func StageOf(err error) Stage {
	var ue *UpdateError
	if errors.As(err, &ue) {
		return ue.Stage
	}
	return ""
}

// DocumentStore reads and replaces whole documents by id.
type DocumentStore interface {
	FetchDocument(ctx context.Context, id string) (json.RawMessage, error)
	PutDocument(ctx context.Context, id string, doc json.RawMessage) (json.RawMessage, error)
}

// Updater appends reviews to workers held in a remote document.
//
// Each call does one fetch and one store with no version check in between,
// so two concurrent updates of the same document can lose one of the
// reviews. The store API offers no conditional write to prevent this.
type Updater struct {
	store  DocumentStore
	logger *slog.Logger
}

// NewUpdater returns an Updater backed by store.
func NewUpdater(store DocumentStore) *Updater {
	return &Updater{store: store, logger: slog.Default()}
}

// WithLogger returns a copy of u that logs to logger.
func (u *Updater) WithLogger(logger *slog.Logger) *Updater {
	c := *u
	c.logger = logger
	return &c
}

// UpdateReview appends review to the first worker in document documentID
// matched by id and writes the document back in its original shape. It
// returns the store's confirmation. Any failure is an *UpdateError.
func (u *Updater) UpdateReview(ctx context.Context, documentID string, id Identifier, review json.RawMessage) (json.RawMessage, error) {
	log := u.logger.With("document_id", documentID)

	doc, err := u.store.FetchDocument(ctx, documentID)
	if err != nil {
		return nil, u.fail(log, StageFetch, err)
	}

	list, shape, err := Unwrap(doc)
	if err != nil {
		return nil, u.fail(log, StageShape, err)
	}
	log.Debug("document resolved", "shape", shape.String(), "workers", len(list))

	idx, ok := Find(list, id)
	if !ok {
		return nil, u.fail(log, StageMatch, ErrNotFound)
	}

	rec, err := DecodeRecord(list[idx])
	if err != nil {
		return nil, u.fail(log, StageAppend, err)
	}
	if err := rec.AppendReview(review); err != nil {
		return nil, u.fail(log, StageAppend, err)
	}
	encoded, err := rec.MarshalJSON()
	if err != nil {
		return nil, u.fail(log, StageAppend, fmt.Errorf("encoding worker: %w", err))
	}
	list[idx] = encoded
	log.Debug("review appended", "index", idx, "reviews", len(rec.Reviews()))

	updated, err := Rewrap(list, shape, doc)
	if err != nil {
		return nil, u.fail(log, StageShape, err)
	}

	confirmation, err := u.store.PutDocument(ctx, documentID, updated)
	if err != nil {
		return nil, u.fail(log, StageStore, err)
	}
	log.Info("review stored", "shape", shape.String(), "index", idx)
	return confirmation, nil
}

func (u *Updater) fail(log *slog.Logger, stage Stage, err error) error {
	log.Warn("review update failed", "stage", string(stage), "error", err)
	return &UpdateError{Stage: stage, Err: err}
}

// Result is the outcome of an update in the form returned to callers.
type Result struct {
	OK           bool            `json:"ok"`
	Confirmation json.RawMessage `json:"putResult,omitempty"`
	Stage        Stage           `json:"stage,omitempty"`
	Message      string          `json:"message,omitempty"`
}

// ResultOf folds the return values of UpdateReview into a Result.
func ResultOf(confirmation json.RawMessage, err error) Result {
	if err == nil {
		return Result{OK: true, Confirmation: confirmation}
	}
	res := Result{Stage: StageOf(err), Message: err.Error()}
	var ue *UpdateError
	if errors.As(err, &ue) {
		res.Message = ue.Err.Error()
	}
	return res
}
