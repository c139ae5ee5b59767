package practice

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/nzlopez07/Florens/internal/platform/apperr"
	"github.com/nzlopez07/Florens/internal/platform/db"
)

// InsurerLookup is the part of the insurer service practices depend on.
type InsurerLookup interface {
	Exists(ctx context.Context, id int64) (bool, error)
}

type Service struct {
	practices Repository
	insurers  InsurerLookup
}

func NewService(repo Repository, insurers InsurerLookup) *Service {
	return &Service{practices: repo, insurers: insurers}
}

func (s *Service) Create(ctx context.Context, p *Practice) error {
	if err := s.normalize(ctx, p); err != nil {
		return err
	}
	if err := s.practices.Create(ctx, p); err != nil {
		return mapWriteError(err, p)
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id int64) (*Practice, error) {
	p, err := s.practices.GetByID(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound(fmt.Sprintf("practice %d not found", id))
	}
	if err != nil {
		return nil, fmt.Errorf("get practice %d: %w", id, err)
	}
	return p, nil
}

// GetByCode looks a practice up by code, ignoring case and surrounding space.
func (s *Service) GetByCode(ctx context.Context, code string) (*Practice, error) {
	code = NormalizeCode(code)
	p, err := s.practices.GetByCode(ctx, code)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound(fmt.Sprintf("practice %s not found", code))
	}
	if err != nil {
		return nil, fmt.Errorf("get practice %s: %w", code, err)
	}
	return p, nil
}

func (s *Service) Update(ctx context.Context, p *Practice) error {
	if p.ID == 0 {
		return apperr.Validation("id is required")
	}
	if err := s.normalize(ctx, p); err != nil {
		return err
	}
	err := s.practices.Update(ctx, p)
	if errors.Is(err, pgx.ErrNoRows) {
		return notFound(fmt.Sprintf("practice %d not found", p.ID))
	}
	if err != nil {
		return mapWriteError(err, p)
	}
	return nil
}

// Delete removes a practice no procedure references.
func (s *Service) Delete(ctx context.Context, id int64) error {
	err := s.practices.Delete(ctx, id)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return notFound(fmt.Sprintf("practice %d not found", id))
	case db.IsForeignKeyViolation(err, ""):
		return apperr.Conflict(apperr.CodePracticeInUse,
			fmt.Sprintf("practice %d is referenced by recorded procedures", id), err)
	case err != nil:
		return fmt.Errorf("delete practice %d: %w", id, err)
	}
	return nil
}

func (s *Service) List(ctx context.Context, f Filter, limit, offset int) ([]*Practice, int, error) {
	return s.practices.List(ctx, f, limit, offset)
}

// NormalizeCode trims and upper-cases a practice code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (s *Service) normalize(ctx context.Context, p *Practice) error {
	p.Code = NormalizeCode(p.Code)
	if p.Code == "" {
		return apperr.Validation("code is required")
	}
	p.Description = strings.TrimSpace(p.Description)
	if p.Description == "" {
		return apperr.Validation("description is required")
	}
	if p.Amount <= 0 {
		return apperr.Validation("amount must be greater than 0")
	}

	p.ProviderType = strings.ToUpper(strings.TrimSpace(p.ProviderType))
	switch p.ProviderType {
	case ProviderPrivate:
		p.InsurerID = nil
	case ProviderInsurer:
		if p.InsurerID == nil {
			return apperr.Validation("insurer_id is required for provider_type OBRA_SOCIAL")
		}
		ok, err := s.insurers.Exists(ctx, *p.InsurerID)
		if err != nil {
			return fmt.Errorf("check insurer: %w", err)
		}
		if !ok {
			return insurerNotFound(*p.InsurerID)
		}
	default:
		return apperr.Validation("provider_type must be OBRA_SOCIAL or PARTICULAR")
	}
	return nil
}

func mapWriteError(err error, p *Practice) error {
	switch {
	case db.IsUniqueViolation(err, ""):
		return apperr.Conflict(apperr.CodePracticeDuplicate,
			fmt.Sprintf("a practice with code %s already exists", p.Code), err)
	case db.IsForeignKeyViolation(err, "") && p.InsurerID != nil:
		return insurerNotFound(*p.InsurerID)
	}
	return fmt.Errorf("save practice: %w", err)
}

func notFound(msg string) error {
	return apperr.NotFound(apperr.CodePracticeNotFound, msg)
}

func insurerNotFound(id int64) error {
	return apperr.NotFound(apperr.CodeInsurerNotFound, fmt.Sprintf("insurer %d not found", id))
}
