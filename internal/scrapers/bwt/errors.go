package bwt

import "errors"

var (
	// ErrAuthentication is returned when the portal rejects the credentials, or
	// when the login form is still present after submitting them.
	ErrAuthentication = errors.New("bwt: authentication failed")
	// ErrConnection wraps transport errors, timeouts and unexpected statuses.
	ErrConnection = errors.New("bwt: connection failed")
	// ErrDataNotFound is returned when a successful response does not contain
	// the expected structure.
	ErrDataNotFound = errors.New("bwt: data not found")
)

// errSessionExpired is returned by a single scrape when the portal answers
// 401/403. It never leaves the package, the caller re-authenticates and
// retries once, and converts a second occurrence into ErrConnection.
var errSessionExpired = errors.New("bwt: session expired")
