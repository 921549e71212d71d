// Package apierr defines the error taxonomy surfaced by the core engine.
//
// Every error the supervisor, scheduler, and user/token engine return to a
// caller is either one of the Kinds below (wrapped in *Error) or a raw Go
// error from the standard library (Io/Serde territory), which callers are
// expected to classify with errors.As before mapping to a transport status.
package apierr

import (
	"errors"
	"fmt"
)

// Kind is a closed taxonomy of core-level failure categories (spec.md §7).
type Kind string

const (
	NotFound          Kind = "not_found"
	AlreadyExists     Kind = "already_exists"
	AlreadyRunning    Kind = "already_running"
	NotRunning        Kind = "not_running"
	InvalidID         Kind = "invalid_id"
	PolicyViolation   Kind = "policy_violation"
	InvalidSchedule   Kind = "invalid_schedule"
	SpawnFailed       Kind = "spawn_failed"
	Unauthorized      Kind = "unauthorized"
	Forbidden         Kind = "forbidden"
	TwoFactorRequired Kind = "two_factor_required"
	TooManyRequests   Kind = "too_many_requests"
	IO                Kind = "io"
	Serde             Kind = "serde"
	Other             Kind = "other"
)

// Error is the concrete error type returned by core operations.
type Error struct {
	Kind Kind
	// ID is the service/user id the error pertains to, when applicable.
	ID string
	// Msg is a human-readable detail; for PolicyViolation/InvalidSchedule/
	// SpawnFailed/Unauthorized/Forbidden/TwoFactorRequired/Other it carries
	// the bulk of the message since those kinds have no natural "id".
	Msg string
	// Cause is the underlying error, if any (wrapped for errors.Is/As).
	Cause error
}

func (e *Error) Error() string {
	switch {
	case e.ID != "" && e.Msg != "":
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.ID, e.Msg)
	case e.ID != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.ID)
	case e.Msg != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Cause }

// Is makes errors.Is(err, target) compare Kind only when target is an
// *Error, e.g. a bare sentinel built with New(apierr.NotFound, "", "");
// ID and Msg are ignored.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

func New(kind Kind, id, msg string) *Error {
	return &Error{Kind: kind, ID: id, Msg: msg}
}

func Wrap(kind Kind, id, msg string, cause error) *Error {
	return &Error{Kind: kind, ID: id, Msg: msg, Cause: cause}
}

func NotFoundf(id string) *Error        { return New(NotFound, id, "") }
func AlreadyExistsf(id string) *Error   { return New(AlreadyExists, id, "") }
func AlreadyRunningf(id string) *Error  { return New(AlreadyRunning, id, "") }
func NotRunningf(id string) *Error      { return New(NotRunning, id, "") }
func InvalidIDf(msg string) *Error      { return New(InvalidID, "", msg) }
func PolicyViolationf(msg string) *Error {
	return New(PolicyViolation, "", msg)
}
func InvalidSchedulef(msg string) *Error { return New(InvalidSchedule, "", msg) }
func SpawnFailedf(msg string) *Error     { return New(SpawnFailed, "", msg) }
func Unauthorizedf(msg string) *Error    { return New(Unauthorized, "", msg) }
func Forbiddenf(msg string) *Error       { return New(Forbidden, "", msg) }
func TwoFactorRequiredf(msg string) *Error {
	return New(TwoFactorRequired, "", msg)
}
func TooManyRequestsf(msg string) *Error { return New(TooManyRequests, "", msg) }
func Otherf(format string, a ...any) *Error {
	return New(Other, "", fmt.Sprintf(format, a...))
}

// KindOf extracts the Kind from err if it is (or wraps) an *Error, else Other.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Other
}

// HTTPStatus maps a Kind to the status pinned by spec.md §6/§7.
func HTTPStatus(k Kind) int {
	switch k {
	case NotFound:
		return 404
	case AlreadyExists, AlreadyRunning, NotRunning:
		return 409
	case InvalidID, PolicyViolation, InvalidSchedule, Serde:
		return 400
	case SpawnFailed, IO, Other:
		return 500
	case Unauthorized, TwoFactorRequired:
		return 401
	case Forbidden:
		return 403
	case TooManyRequests:
		return 429
	default:
		return 500
	}
}
