package patient

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/nzlopez07/Florens/internal/platform/apperr"
	"github.com/nzlopez07/Florens/internal/platform/db"
)

// LocalityResolver checks locality ids and resolves free-text names,
// creating the locality on first use.
type LocalityResolver interface {
	Exists(ctx context.Context, id int64) (bool, error)
	ResolveID(ctx context.Context, name string) (int64, error)
}

// InsurerLookup checks insurer ids.
type InsurerLookup interface {
	Exists(ctx context.Context, id int64) (bool, error)
}

type Service struct {
	patients   Repository
	localities LocalityResolver
	insurers   InsurerLookup
}

type Option func(*Service)

func WithLocalities(l LocalityResolver) Option { return func(s *Service) { s.localities = l } }
func WithInsurers(i InsurerLookup) Option      { return func(s *Service) { s.insurers = i } }

func NewService(repo Repository, opts ...Option) *Service {
	s := &Service{patients: repo}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Create(ctx context.Context, p *Patient) error {
	if err := normalize(p); err != nil {
		return err
	}
	if err := s.checkReferences(ctx, p); err != nil {
		return err
	}
	if err := s.patients.Create(ctx, p); err != nil {
		return mapWriteError(err, p)
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id int64) (*Patient, error) {
	p, err := s.patients.GetByID(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("get patient %d: %w", id, err)
	}
	return p, nil
}

func (s *Service) Update(ctx context.Context, p *Patient) error {
	if p.ID == 0 {
		return apperr.Validation("id is required")
	}
	if err := normalize(p); err != nil {
		return err
	}
	if err := s.checkReferences(ctx, p); err != nil {
		return err
	}
	err := s.patients.Update(ctx, p)
	if errors.Is(err, pgx.ErrNoRows) {
		return notFound(p.ID)
	}
	if err != nil {
		return mapWriteError(err, p)
	}
	return nil
}

func (s *Service) Search(ctx context.Context, term string, limit, offset int) ([]*Patient, int, error) {
	return s.patients.Search(ctx, term, limit, offset)
}

func (s *Service) Exists(ctx context.Context, id int64) (bool, error) {
	return s.patients.Exists(ctx, id)
}

// ResolveLocality returns the id of the locality called name, creating it
// when it does not exist yet.
func (s *Service) ResolveLocality(ctx context.Context, name string) (int64, error) {
	if s.localities == nil {
		return 0, apperr.Validation("locality_name is not supported")
	}
	return s.localities.ResolveID(ctx, name)
}

func (s *Service) checkReferences(ctx context.Context, p *Patient) error {
	if p.LocalityID != nil {
		if err := checkExists(ctx, s.localities, *p.LocalityID, localityNotFound); err != nil {
			return err
		}
	}
	if p.InsurerID != nil {
		if err := checkExists(ctx, s.insurers, *p.InsurerID, insurerNotFound); err != nil {
			return err
		}
	} else if p.AffiliateNumber != nil {
		return apperr.Validation("affiliate_number requires insurer_id")
	}
	return nil
}

type existsChecker interface {
	Exists(ctx context.Context, id int64) (bool, error)
}

// checkExists skips the lookup when no checker is configured; the foreign
// key still rejects unknown ids on write.
func checkExists(ctx context.Context, c existsChecker, id int64, missing func(int64) error) error {
	if c == nil {
		return nil
	}
	ok, err := c.Exists(ctx, id)
	if err != nil {
		return fmt.Errorf("check reference %d: %w", id, err)
	}
	if !ok {
		return missing(id)
	}
	return nil
}

func normalize(p *Patient) error {
	p.FirstName = strings.TrimSpace(p.FirstName)
	p.LastName = strings.TrimSpace(p.LastName)
	if p.FirstName == "" {
		return apperr.Validation("first_name is required")
	}
	if p.LastName == "" {
		return apperr.Validation("last_name is required")
	}

	dni, ok := NormalizeDocument(p.DocumentNumber)
	if !ok {
		return apperr.Validation("document_number must have 7 or 8 digits")
	}
	p.DocumentNumber = dni

	if p.Phone != nil {
		if strings.TrimSpace(*p.Phone) == "" {
			p.Phone = nil
		} else {
			phone, ok := NormalizePhone(*p.Phone)
			if !ok {
				return apperr.Validation("phone must have at least 7 digits")
			}
			p.Phone = &phone
		}
	}
	p.Address = trimmedOrNil(p.Address)
	p.AffiliateNumber = trimmedOrNil(p.AffiliateNumber)
	return nil
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func mapWriteError(err error, p *Patient) error {
	switch {
	case db.IsUniqueViolation(err, ""):
		return apperr.Conflict(apperr.CodePatientDuplicate,
			fmt.Sprintf("a patient with document %s already exists", p.DocumentNumber), err)
	case db.IsForeignKeyViolation(err, "patients_locality_id_fkey") && p.LocalityID != nil:
		return localityNotFound(*p.LocalityID)
	case db.IsForeignKeyViolation(err, "patients_insurer_id_fkey") && p.InsurerID != nil:
		return insurerNotFound(*p.InsurerID)
	}
	return fmt.Errorf("save patient: %w", err)
}

func notFound(id int64) error {
	return apperr.NotFound(apperr.CodePatientNotFound, fmt.Sprintf("patient %d not found", id))
}

func localityNotFound(id int64) error {
	return apperr.NotFound(apperr.CodeLocalityNotFound, fmt.Sprintf("locality %d not found", id))
}

func insurerNotFound(id int64) error {
	return apperr.NotFound(apperr.CodeInsurerNotFound, fmt.Sprintf("insurer %d not found", id))
}
