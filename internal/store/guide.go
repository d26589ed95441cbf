package store

import (
	"context"

	"github.com/phrazzld/studyguide-api/internal/domain"
)

// UpdateFn mutates a guide inside GuideStore.Update. Returning an error
// aborts the update and leaves the stored record unchanged.
type UpdateFn func(guide *domain.Guide) error

// GuideStore persists study guides as whole documents keyed by ID.
type GuideStore interface {
	// Put stores a new guide. It returns ErrDuplicate if the ID is taken.
	Put(ctx context.Context, guide *domain.Guide) error

	// Get returns the guide with id, or ErrGuideNotFound.
	Get(ctx context.Context, id string) (*domain.Guide, error)

	// ListByOwner returns every guide recorded for owner, in no particular order.
	ListByOwner(ctx context.Context, owner string) ([]*domain.Guide, error)

	// Update applies fn to the current record and saves the result atomically
	// with respect to other Update calls on the same id. It returns the
	// saved guide, ErrGuideNotFound, or fn's error unchanged.
	Update(ctx context.Context, id string, fn UpdateFn) (*domain.Guide, error)

	// Delete removes the guide. Deleting a missing guide is not an error.
	Delete(ctx context.Context, id string) error
}
