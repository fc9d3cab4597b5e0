package audit

import "context"

// Store persists audit entries in the CollectionName table.
type Store interface {
	// Add appends one entry.
	Add(ctx context.Context, entry Entry) error
	// Query returns matching entries ordered by timestamp, newest first.
	Query(ctx context.Context, filter Filter) ([]Entry, error)
	// AnonymizeUser overwrites the user id and email of every entry belonging
	// to userID and reports how many entries changed. Entries are kept.
	AnonymizeUser(ctx context.Context, userID, replacementID, replacementEmail string) (int, error)
}

// AlertSink receives critical entries after they are persisted.
type AlertSink interface {
	Alert(ctx context.Context, entry Entry) error
}
