package loader

import (
	"errors"
	"fmt"

	"github.com/local/llmarxiv/internal/arxiv"
	"github.com/local/llmarxiv/internal/assembler"
)

// ErrInvalidIdentifier is returned when the argument is neither an arXiv
// identifier nor an arXiv URL.
var ErrInvalidIdentifier = errors.New("invalid arXiv identifier or URL")

// Error is a user-facing failure that keeps its cause for errors.Is/As.
type Error struct {
	msg string
	err error
}

func (e *Error) Error() string { return e.msg }
func (e *Error) Unwrap() error { return e.err }

func invalidIdentifier(arg string) error {
	return &Error{
		msg: fmt.Sprintf("%s: %s. Expected format like '2310.06825', 'cs.CL/1234567', or 'https://arxiv.org/abs/...'", ErrInvalidIdentifier, arg),
		err: ErrInvalidIdentifier,
	}
}

// wrapFailure maps a pipeline failure for paper id to its user-facing form.
func wrapFailure(id string, err error) error {
	var (
		loadErr *Error
		extErr  *assembler.ExtractionError
		httpErr *arxiv.HTTPError
	)
	switch {
	case errors.As(err, &loadErr), errors.As(err, &extErr):
		return err
	case errors.Is(err, arxiv.ErrNotFound):
		return &Error{msg: "no paper found for arXiv ID: " + id, err: err}
	case errors.Is(err, arxiv.ErrEmptyPage):
		return &Error{msg: "arXiv search returned an unexpected empty page for ID: " + id, err: err}
	case errors.As(err, &httpErr):
		return fmt.Errorf("failed to fetch paper details from arXiv for ID %s: %w", id, err)
	}
	return fmt.Errorf("error processing arXiv paper %s: %w", id, err)
}

// failureResult is the papers_processed_total label for a failure.
func failureResult(err error) string {
	var (
		extErr  *assembler.ExtractionError
		httpErr *arxiv.HTTPError
	)
	switch {
	case errors.Is(err, arxiv.ErrNotFound), errors.Is(err, arxiv.ErrEmptyPage):
		return "not_found"
	case errors.As(err, &httpErr):
		return "fetch_error"
	case errors.As(err, &extErr):
		return "extract_error"
	}
	return "error"
}
