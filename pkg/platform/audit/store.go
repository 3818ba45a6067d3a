package audit

import "context"

// Store persists audit events. Implementations: memory (tests, single
// process), postgres (queryable history), kafka (fan-out to consumers).
type Store interface {
	Append(ctx context.Context, event Event) error
}

// Reader is implemented by stores that can serve audit history.
type Reader interface {
	ListBySubject(ctx context.Context, subject string) ([]Event, error)
	ListRecent(ctx context.Context, limit int) ([]Event, error)
}
