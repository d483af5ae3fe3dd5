package arxiv

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotFound is returned when the API has no entry for an identifier.
	ErrNotFound = errors.New("paper not found")
	// ErrEmptyPage is returned when a feed reports results but carries no entries.
	ErrEmptyPage = errors.New("unexpected empty page")
)

// HTTPError is a non-2xx response from arXiv.
type HTTPError struct {
	URL    string
	Status int
	Retry  bool
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("page request resulted in HTTP %d (%s)", e.Status, e.URL)
}

func newHTTPError(url string, status int) *HTTPError {
	return &HTTPError{
		URL:    url,
		Status: status,
		Retry:  status == http.StatusTooManyRequests || status >= 500,
	}
}
