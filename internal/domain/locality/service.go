package locality

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/nzlopez07/Florens/internal/platform/apperr"
)

type Service struct {
	localities Repository
}

func NewService(repo Repository) *Service {
	return &Service{localities: repo}
}

// GetOrCreate normalizes name and returns the matching locality, creating it
// when no locality has that name.
func (s *Service) GetOrCreate(ctx context.Context, name string) (*Locality, bool, error) {
	l := &Locality{Name: NormalizeName(name)}
	if l.Name == "" {
		return nil, false, apperr.Validation("name is required")
	}
	if len([]rune(l.Name)) > 120 {
		return nil, false, apperr.Validation("name must be at most 120 characters")
	}
	created, err := s.localities.Insert(ctx, l)
	if err != nil {
		return nil, false, err
	}
	return l, created, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*Locality, error) {
	l, err := s.localities.GetByID(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound(apperr.CodeLocalityNotFound, fmt.Sprintf("locality %d not found", id))
	}
	if err != nil {
		return nil, fmt.Errorf("get locality %d: %w", id, err)
	}
	return l, nil
}

func (s *Service) Search(ctx context.Context, term string, limit, offset int) ([]*Locality, int, error) {
	return s.localities.Search(ctx, term, limit, offset)
}

func (s *Service) Exists(ctx context.Context, id int64) (bool, error) {
	_, err := s.Get(ctx, id)
	if apperr.IsNotFound(err) {
		return false, nil
	}
	return err == nil, err
}

// ResolveID is GetOrCreate for callers that only keep the id.
func (s *Service) ResolveID(ctx context.Context, name string) (int64, error) {
	l, _, err := s.GetOrCreate(ctx, name)
	if err != nil {
		return 0, err
	}
	return l.ID, nil
}
