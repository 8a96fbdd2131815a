// Package docerr defines the typed error variants surfaced across docsvault,
// matching the error table in §7. Callers use
// errors.Is/errors.As rather than string matching.
package docerr

import "errors"

// Sentinel kinds. Wrap with fmt.Errorf("...: %w", ErrX) to add context.
var (
	// ErrInvalidURL: the URL cannot be parsed and scheme-validated.
	ErrInvalidURL = errors.New("invalid url")

	// ErrInvalidVersion: a version string violates the best-version regex.
	ErrInvalidVersion = errors.New("invalid version")

	// ErrVersionNotFound: best-version resolution yielded an empty set.
	ErrVersionNotFound = errors.New("version not found")

	// ErrDimensionMismatch: the embedder's native dimension exceeds D.
	ErrDimensionMismatch = errors.New("embedder dimension exceeds store dimension")

	// ErrEmptyURL: a chunk is missing a non-blank URL.
	ErrEmptyURL = errors.New("document metadata missing url")

	// ErrMigrationFailed: a schema migration failed to apply.
	ErrMigrationFailed = errors.New("schema migration failed")

	// ErrBusy: transient SQLite lock contention, retried with backoff.
	ErrBusy = errors.New("database busy")

	// ErrJobNotFound: no job exists with the given id.
	ErrJobNotFound = errors.New("job not found")

	// ErrJobTerminal: an operation that requires a non-terminal job was
	// attempted against a job already in COMPLETED/FAILED/CANCELLED.
	ErrJobTerminal = errors.New("job already in a terminal state")
)

// Retriable reports whether err represents a condition worth retrying
// (BUSY, or a classified SCRAPE_4XX/SCRAPE_5XX carried by *FetchError).
func Retriable(err error) bool {
	if errors.Is(err, ErrBusy) {
		return true
	}
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Retriable
	}
	return false
}

// FetchError classifies an HTTP/transport failure from a fetcher per §7's
// SCRAPE_4XX / SCRAPE_5XX kinds.
type FetchError struct {
	URL        string
	StatusCode int // 0 for network-level failures
	Retriable  bool
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return "fetch " + e.URL + ": http " + itoa(e.StatusCode)
	}
	return "fetch " + e.URL + ": " + e.Err.Error()
}

func (e *FetchError) Unwrap() error { return e.Err }

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [8]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
