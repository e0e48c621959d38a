package ws

import (
	"errors"
	"net/http"
)

// wsError carries the status code surfaced to the client in the uniform
// error event. Anything else maps to 500.
type wsError struct {
	status int
	msg    string
}

func (e *wsError) Error() string { return e.msg }

var (
	errAuthFailed   = &wsError{status: http.StatusUnauthorized, msg: "authentication failed"}
	errJoinDenied   = &wsError{status: http.StatusForbidden, msg: "join denied"}
	errNotInRoom    = &wsError{status: http.StatusConflict, msg: "not in a room"}
	errRateLimited  = &wsError{status: http.StatusTooManyRequests, msg: "rate limited"}
	errBadEnvelope  = &wsError{status: http.StatusBadRequest, msg: "malformed frame"}
	errUnknownEvent = &wsError{status: http.StatusBadRequest, msg: "unknown event"}
)

// errorBodyFor flattens any error into the client-facing error body.
func errorBodyFor(err error) ErrorBody {
	var we *wsError
	if errors.As(err, &we) {
		return ErrorBody{Error: we.msg, Status: we.status}
	}
	return ErrorBody{Error: "internal error", Status: http.StatusInternalServerError}
}
