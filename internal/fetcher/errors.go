package fetcher

import (
	"errors"
	"fmt"

	"github.com/rotisserie/eris"
)

// ErrUpstream matches any UpstreamError with errors.Is.
var ErrUpstream = eris.New("upstream failure")

// UpstreamError reports a non-2xx response, a transport failure, or a
// payload that could not be decoded. StatusCode is 0 when no response arrived.
type UpstreamError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("upstream %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("upstream %s (status %d): %v", e.URL, e.StatusCode, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrUpstream) match.
func (e *UpstreamError) Is(target error) bool {
	return target == ErrUpstream
}

// StatusOf returns the upstream HTTP status carried in err's chain, or 0.
func StatusOf(err error) int {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue.StatusCode
	}
	return 0
}
