package model

import "github.com/rotisserie/eris"

// Fatal document-level errors. Any of these aborts the pipeline for the
// whole document with no partial persistence; line-level problems are never
// expressed as errors.
var (
	// ErrUnreadableDocument: the container is corrupt or password-protected.
	ErrUnreadableDocument = eris.New("unreadable document")

	// ErrEmptyDocument: a non-empty file yielded zero extractable lines.
	ErrEmptyDocument = eris.New("no lines extracted from document")

	// ErrFormatMismatch: the file cannot be parsed as its declared container
	// format. The pipeline never sniffs an alternative format.
	ErrFormatMismatch = eris.New("declared container format mismatch")
)
