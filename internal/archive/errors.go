package archive

import "errors"

var (
	// ErrNotFound marks a fetch that completed with a non-200 status.
	ErrNotFound = errors.New("document not found")
	// ErrMalformedPath marks a file whose name or location does not follow the archive layout.
	ErrMalformedPath = errors.New("malformed archive path")
	// ErrRendererUnavailable indicates the configured renderer could not be started.
	ErrRendererUnavailable = errors.New("renderer unavailable")
	// ErrCorruptDocument marks a PDF the processor could not make sense of.
	ErrCorruptDocument = errors.New("corrupt document")
)
