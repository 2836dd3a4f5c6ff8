package services

import (
	"context"
	"errors"

	"github.com/ahmetcoskunkizilkaya/civic-backend/internal/store"
)

// Error kinds. Every error returned by a service matches exactly one of
// these with errors.Is; handlers map the kind to a status code.
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrForbidden       = errors.New("forbidden")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrInternal        = errors.New("internal error")
)

// Error tags a user-facing message with its kind and, optionally, a cause.
type Error struct {
	Kind error
	Msg  string
	Err  error
}

func (e *Error) Error() string { return e.Msg }

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func invalid(msg string) error { return &Error{Kind: ErrInvalidArgument, Msg: msg} }

var (
	ErrInvalidVoteValue = &Error{Kind: ErrInvalidArgument, Msg: "Invalid vote value"}
	ErrInvalidReportID  = &Error{Kind: ErrInvalidArgument, Msg: "Invalid report id"}
	ErrInvalidPage      = &Error{Kind: ErrInvalidArgument, Msg: "Invalid page number"}
	ErrMissingIdentity  = &Error{Kind: ErrUnauthorized, Msg: "Unauthorized"}
	ErrSelfVote         = &Error{Kind: ErrForbidden, Msg: "You cannot vote on your own report."}
	ErrReportNotFound   = &Error{Kind: ErrNotFound, Msg: "Report not found"}
	ErrVoteConflict     = &Error{Kind: ErrConflict, Msg: "Vote was changed concurrently, please retry"}
	ErrStorage          = &Error{Kind: ErrInternal, Msg: "Storage unavailable"}
)

// fromStore tags a storage error. notFound is used when the store reports a
// missing record.
func fromStore(err error, notFound *Error) error {
	var tagged *Error
	switch {
	case err == nil:
		return nil
	case errors.As(err, &tagged):
		return err
	case errors.Is(err, store.ErrNotFound):
		return &Error{Kind: notFound, Msg: notFound.Msg, Err: err}
	case errors.Is(err, store.ErrConflict):
		return &Error{Kind: ErrVoteConflict, Msg: ErrVoteConflict.Msg, Err: err}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return &Error{Kind: ErrStorage, Msg: "Request cancelled", Err: err}
	default:
		return &Error{Kind: ErrStorage, Msg: ErrStorage.Msg, Err: err}
	}
}
