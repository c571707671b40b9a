package previewcache

import (
	"context"

	"github.com/tripwell/crew-planner-api/internal/domain"
)

// Cache stores crew previews shown on the unauthenticated invite page.
//
// Entries are invalidated whenever membership or trip counts change. Implementations may also
// expire entries on their own; a miss is never an error.
type Cache interface {
	Get(ctx context.Context, id domain.CrewID) (domain.CrewPreview, bool, error)
	Set(ctx context.Context, p domain.CrewPreview) error
	Invalidate(ctx context.Context, id domain.CrewID) error
}

// Nop is a Cache that stores nothing.
type Nop struct{}

func (Nop) Get(context.Context, domain.CrewID) (domain.CrewPreview, bool, error) {
	return domain.CrewPreview{}, false, nil
}
func (Nop) Set(context.Context, domain.CrewPreview) error   { return nil }
func (Nop) Invalidate(context.Context, domain.CrewID) error { return nil }
