package services

import "errors"

// Sentinel errors returned by the auth, sync and query services. Handlers map
// these to HTTP status codes with errors.Is.
var (
	ErrOriginNotAllowed    = errors.New("origin not allowed")
	ErrMissingCode         = errors.New("missing authorization code")
	ErrUnauthorizedAccount = errors.New("unauthorized account")
	ErrUpstreamExchange    = errors.New("upstream exchange failed")
	ErrRefreshFailed       = errors.New("token refresh failed")
	ErrSyncFailed          = errors.New("media sync failed")
	ErrNotFound            = errors.New("not found")
)
