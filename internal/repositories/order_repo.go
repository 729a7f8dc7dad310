package repositories

import (
	"context"
	"time"

	"orderdesk/internal/models"
)

// OrderFilter narrows a List call. Zero values mean "no restriction".
type OrderFilter struct {
	OwnerID string     // restrict to orders owned by this user
	Status  string     // exact status match
	From    *time.Time // order date, inclusive
	To      *time.Time // order date, exclusive
}

// OrderMutation edits a loaded order in place. It reports whether the
// order's item set was replaced and must be rewritten.
type OrderMutation func(order *models.Order) (replaceItems bool, err error)

// OrderRepository defines the interface for order data access.
// An empty ownerID means the call is not restricted to one owner.
type OrderRepository interface {
	Create(ctx context.Context, order *models.Order) error
	GetByID(ctx context.Context, id, ownerID string) (*models.Order, error)
	List(ctx context.Context, filter OrderFilter) ([]models.Order, error)
	Update(ctx context.Context, id, ownerID string, mutate OrderMutation) (*models.Order, error)
	Delete(ctx context.Context, id, ownerID string) error
}
