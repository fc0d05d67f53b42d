package feed

import "errors"

var (
	// ErrFetchFailed wraps every content provider failure at the feed boundary.
	ErrFetchFailed = errors.New("fetch failed")

	// ErrNoContent is returned when a page fetch that was meant to grow the
	// window came back empty. The window is unchanged and Advance may be retried.
	ErrNoContent = errors.New("provider returned no content")

	ErrNodeNotFound      = errors.New("node not found")
	ErrPlaceholder       = errors.New("placeholder nodes cannot be toggled")
	ErrNotRetryable      = errors.New("node has no failed fetch to retry")
	ErrPageFetchInFlight = errors.New("page fetch already in flight")
	ErrAlreadyStarted    = errors.New("session already started")
	ErrInvalidPageSize   = errors.New("page size must be positive")
)
