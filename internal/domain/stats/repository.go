package stats

import (
	"context"
)

// Repository defines persistence for user stats documents.
// Implementations live in the infrastructure layer.
type Repository interface {
	// Get returns a copy of the stored document or an error matching
	// shared.ErrNotFound.
	Get(ctx context.Context, userID string) (*UserStats, error)

	// Save writes the document conditionally on s.Version.
	// Version 0 inserts only if no document exists; any other version updates
	// only if the stored version still matches. A mismatch returns an error
	// matching shared.ErrTransactionConflict. On success s.Version is advanced.
	Save(ctx context.Context, s *UserStats) error

	// ScanPage returns up to limit documents with user IDs strictly greater
	// than afterUserID, ordered by user ID.
	ScanPage(ctx context.Context, afterUserID string, limit int) ([]*UserStats, error)
}
