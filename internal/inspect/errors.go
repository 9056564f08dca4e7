package inspect

import "errors"

// Error taxonomy for the inspection pipeline.
var (
	// ErrMalformedURL is returned when input cannot be normalized or validated.
	ErrMalformedURL = errors.New("malformed url")

	// ErrProbeTimeout is returned when a single probe exceeds its time budget.
	ErrProbeTimeout = errors.New("probe timeout")

	// ErrFetchFailed is returned when the primary probe fails for any reason.
	ErrFetchFailed = errors.New("fetch failed")

	// ErrCacheUnavailable is returned by storage backends on read/write failure.
	ErrCacheUnavailable = errors.New("cache unavailable")
)
