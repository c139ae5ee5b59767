package odontogram

import (
	"context"

	"github.com/nzlopez07/Florens/internal/platform/db"
)

type unitOfWorkPG struct {
	beginner db.TxBeginner
}

// NewUnitOfWorkPG opens a transaction per Do and hands fn a Repository
// bound to it.
func NewUnitOfWorkPG(beginner db.TxBeginner) UnitOfWork {
	return &unitOfWorkPG{beginner: beginner}
}

func (u *unitOfWorkPG) Do(ctx context.Context, fn func(ctx context.Context, repo Repository) error) error {
	return db.WithTx(ctx, u.beginner, func(tx db.Querier) error {
		return fn(ctx, NewRepoPG(tx))
	})
}
