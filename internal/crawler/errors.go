package crawler

import "errors"

var (
	// ErrInvalidSeed reports a seed URL that cannot be parsed or has no host.
	ErrInvalidSeed = errors.New("invalid seed url")
	// ErrSiteNotFound is returned by document stores for unknown origins.
	ErrSiteNotFound = errors.New("site not found")
)
