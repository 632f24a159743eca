package news

import (
	"context"
	"time"
)

// Session is an expensive, stateful handle able to load and interact with
// remote pages. A Session is owned by exactly one caller at a time and is not
// safe for concurrent use.
type Session interface {
	// Navigate loads url, giving up after timeout or when ctx is done.
	Navigate(ctx context.Context, url string, timeout time.Duration) error
	// HTML returns the currently rendered markup.
	HTML(ctx context.Context) (string, error)
	// Click activates the first element matching selector.
	Click(ctx context.Context, selector string) error
	// ScrollIntoView scrolls the first element matching selector into the viewport.
	ScrollIntoView(ctx context.Context, selector string) error
	// Remove deletes every element matching selector from the current document.
	Remove(ctx context.Context, selector string) error
	// Close disposes of the session and any process or connection behind it.
	Close() error
}

// SessionFactory creates new sessions.
type SessionFactory interface {
	New(ctx context.Context) (Session, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}
