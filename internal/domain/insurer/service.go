package insurer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/nzlopez07/Florens/internal/platform/apperr"
	"github.com/nzlopez07/Florens/internal/platform/db"
)

type Service struct {
	insurers Repository
}

func NewService(repo Repository) *Service {
	return &Service{insurers: repo}
}

func (s *Service) Create(ctx context.Context, i *Insurer) error {
	i.Name = strings.Join(strings.Fields(i.Name), " ")
	if i.Name == "" {
		return apperr.Validation("name is required")
	}
	if i.Code != nil {
		code := strings.ToUpper(strings.TrimSpace(*i.Code))
		if code == "" {
			i.Code = nil
		} else {
			i.Code = &code
		}
	}
	err := s.insurers.Create(ctx, i)
	if db.IsUniqueViolation(err, "") {
		return apperr.Conflict(apperr.CodeInsurerDuplicate,
			fmt.Sprintf("insurer %s already exists", i.Name), err)
	}
	if err != nil {
		return fmt.Errorf("create insurer: %w", err)
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id int64) (*Insurer, error) {
	i, err := s.insurers.GetByID(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, NotFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("get insurer %d: %w", id, err)
	}
	return i, nil
}

func (s *Service) Exists(ctx context.Context, id int64) (bool, error) {
	_, err := s.Get(ctx, id)
	if apperr.IsNotFound(err) {
		return false, nil
	}
	return err == nil, err
}

// Search matches term against the name. A blank term lists every insurer,
// ordered by name.
func (s *Service) Search(ctx context.Context, term string, limit, offset int) ([]*Insurer, int, error) {
	return s.insurers.Search(ctx, term, limit, offset)
}

func NotFound(id int64) error {
	return apperr.NotFound(apperr.CodeInsurerNotFound, fmt.Sprintf("insurer %d not found", id))
}
