package token

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized is the single signal callers see when no usable token exists.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNoSession is returned when the session holds no record at all.
	ErrNoSession = fmt.Errorf("%w: no session", ErrUnauthorized)

	// ErrRefreshRejected is returned when a refresh failed, now or on an earlier request.
	ErrRefreshRejected = fmt.Errorf("%w: refresh rejected", ErrUnauthorized)

	// ErrAuthExchange is returned when the provider rejects an authorization code.
	ErrAuthExchange = errors.New("authorization code exchange failed")

	// ErrNoRecord is returned by a Repository that holds nothing for the session.
	ErrNoRecord = errors.New("token record not found")
)
