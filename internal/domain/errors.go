package domain

import "errors"

// Error taxonomy for ingestion and retrieval. Callers classify with
// errors.Is; every wrapped error carries file- or call-specific detail.
var (
	// ErrInvalidInput means the ingestion root is missing or not a directory.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedContent marks a soft per-file skip: extension not on the
	// allow-list, undecodable text, or failed PDF extraction.
	ErrUnsupportedContent = errors.New("unsupported content")

	// ErrExtractionMismatch means the embedding batch returned a different
	// number of vectors than chunks requested. Fatal for the file only.
	ErrExtractionMismatch = errors.New("embedding count does not match chunk count")

	// ErrGraphWrite means the per-file transaction failed and rolled back.
	// Fatal for the file only; the run continues.
	ErrGraphWrite = errors.New("graph write failed")

	// ErrRetrieval covers embedding, vector-search, traversal and completion
	// failures during a question. Fatal for that call; no partial answer.
	ErrRetrieval = errors.New("retrieval failed")
)
