package repositories

import (
	"context"

	"muebles/internal/models"
)

// DraftRepository holds at most one draft per owner. Implementations must
// serialize mutations of the same owner's draft.
type DraftRepository interface {
	// Ensure returns the owner's draft, creating an empty one if needed.
	Ensure(ctx context.Context, ownerID int64) (*models.Draft, error)
	// Get returns the owner's draft or nil when none was started.
	Get(ctx context.Context, ownerID int64) (*models.Draft, error)
	// AddLine numbers and appends a line, creating the draft if needed.
	AddLine(ctx context.Context, ownerID int64, line models.LineItem) (*models.Draft, *models.LineItem, error)
	// Clear removes the owner's draft. Clearing a missing draft is a no-op.
	Clear(ctx context.Context, ownerID int64) error
	// Take detaches and returns the owner's draft, or nil when none exists.
	// Lines added afterwards start a new draft.
	Take(ctx context.Context, ownerID int64) (*models.Draft, error)
	// Restore puts a taken draft back. Lines added since the take are kept
	// after the restored ones and renumbered to follow them.
	Restore(ctx context.Context, draft *models.Draft) error
}
