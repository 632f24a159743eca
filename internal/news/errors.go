package news

import "errors"

// Error categories. Call sites wrap these so callers can match with errors.Is.
var (
	// ErrSessionCreation means the pool could not produce a session.
	ErrSessionCreation = errors.New("session creation failed")
	// ErrNavigation means a page could not be loaded after all retries.
	ErrNavigation = errors.New("navigation failed")
	// ErrExtraction means a single article could not be read from the markup.
	ErrExtraction = errors.New("article extraction failed")
	// ErrTimeParse means an article's date/time text could not be normalized.
	ErrTimeParse = errors.New("time parse failed")
	// ErrWorkerTimeout means a source did not finish within its time budget.
	ErrWorkerTimeout = errors.New("worker timed out")
	// ErrPersistence means an artifact could not be written.
	ErrPersistence = errors.New("persistence failed")
	// ErrInteractionUnsupported is returned by sessions that cannot click or scroll.
	ErrInteractionUnsupported = errors.New("session does not support interaction")
	// ErrPoolClosed is returned by Acquire after the pool was drained.
	ErrPoolClosed = errors.New("session pool closed")
)
