package appointment

import (
	"context"

	"github.com/nzlopez07/Florens/internal/platform/db"
)

type storePG struct {
	Repository
	conn db.Conn
}

// NewStorePG serves plain reads from conn and runs Do in a transaction.
func NewStorePG(conn db.Conn) Store {
	return &storePG{Repository: NewRepoPG(conn), conn: conn}
}

func (s *storePG) Do(ctx context.Context, fn func(ctx context.Context, repo Repository) error) error {
	return db.WithTx(ctx, s.conn, func(tx db.Querier) error {
		return fn(ctx, NewRepoPG(tx))
	})
}
