package errors

import "fmt"

var (
	// ErrHostNotReady is a retry condition, not a failure: the host
	// conferencing client has not exposed its connection object yet.
	ErrHostNotReady = fmt.Errorf("host connection not available")

	// ErrMediaNotAllowed is returned by the media gate when the current
	// role carries no presenting permission. It must reach the caller
	// unswallowed so the host UI can react to it.
	ErrMediaNotAllowed = fmt.Errorf("media access denied for observer role")

	ErrNoStoredToken  = fmt.Errorf("no stored token")
	ErrNoSessionToken = fmt.Errorf("no session token")
	ErrWorkerPanic    = fmt.Errorf("worker panic")
)
