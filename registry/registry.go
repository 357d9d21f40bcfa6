// Package registry persists user-registered data sources and display
// title overrides. Callers depend on the Repository interface rather
// than a module-level singleton, and every mutation is an atomic
// read-modify-write of the backing file to avoid lost updates.
package registry

import (
	"context"
	"errors"

	"github.com/churryboy/sheet-llm-chatbot/source"
)

// ErrDuplicate is returned when adding a descriptor whose GID is
// already registered.
var ErrDuplicate = errors.New("source already registered")

// ErrNotFound is returned when updating a descriptor that does not
// exist.
var ErrNotFound = errors.New("source not found")

// Repository manages the persisted collection of custom source
// descriptors plus the display-title overrides for default sources.
type Repository interface {
	// List returns all custom descriptors, in registration order.
	List(ctx context.Context) ([]source.Descriptor, error)

	// Add registers a new custom descriptor.
	Add(ctx context.Context, desc source.Descriptor) error

	// Update renames the descriptor with the given GID. Descriptors
	// are never auto-deleted.
	Update(ctx context.Context, gid, displayName string) error

	// Titles returns the GID-to-title override map for default sources.
	Titles(ctx context.Context) (map[string]string, error)

	// SetTitle stores a title override for a default source.
	SetTitle(ctx context.Context, gid, title string) error
}
