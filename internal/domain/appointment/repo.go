package appointment

import (
	"context"
	"time"
)

type Repository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id int64) (*Appointment, error)
	// GetForUpdate locks the row until the surrounding transaction ends.
	GetForUpdate(ctx context.Context, id int64) (*Appointment, error)
	List(ctx context.Context, f Filter) ([]*Appointment, int, error)
	UpdateStatus(ctx context.Context, id int64, status Status, at time.Time) error
	Delete(ctx context.Context, id int64) error
	RecordStatusChange(ctx context.Context, sc *StatusChange) error
	ListStatusChanges(ctx context.Context, appointmentID int64) ([]*StatusChange, error)
	// ListOverdue returns non-final appointments dated before today, or
	// dated today and starting before sinceMidnight.
	ListOverdue(ctx context.Context, today time.Time, sinceMidnight time.Duration) ([]*Appointment, error)
}

// Store is a Repository that can also run a callback inside one
// transaction. The callback's Repository is bound to that transaction.
type Store interface {
	Repository
	Do(ctx context.Context, fn func(ctx context.Context, repo Repository) error) error
}
