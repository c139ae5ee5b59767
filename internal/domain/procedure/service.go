package procedure

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nzlopez07/Florens/internal/domain/practice"
	"github.com/nzlopez07/Florens/internal/platform/apperr"
)

// PatientLookup is the part of the patient service procedures depend on.
type PatientLookup interface {
	Exists(ctx context.Context, id int64) (bool, error)
}

// PracticeLookup resolves the catalog entry a procedure references.
type PracticeLookup interface {
	Get(ctx context.Context, id int64) (*practice.Practice, error)
}

type Service struct {
	procedures Repository
	patients   PatientLookup
	practices  PracticeLookup
	now        func() time.Time
}

type Option func(*Service)

// WithPractices lets Record resolve practice_id. Without it a procedure
// naming a practice is rejected.
func WithPractices(p PracticeLookup) Option { return func(s *Service) { s.practices = p } }

func NewService(repo Repository, patients PatientLookup, opts ...Option) *Service {
	s := &Service{procedures: repo, patients: patients, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Record(ctx context.Context, p *Procedure) error {
	if err := s.requirePatient(ctx, p.PatientID); err != nil {
		return err
	}
	if err := s.applyPractice(ctx, p); err != nil {
		return err
	}
	p.Description = strings.TrimSpace(p.Description)
	if p.Description == "" {
		return apperr.Validation("description is required")
	}
	if p.Amount < 0 {
		return apperr.Validation("amount must not be negative")
	}
	if p.PerformedAt.IsZero() {
		p.PerformedAt = s.now().UTC()
	}
	if err := s.procedures.Create(ctx, p); err != nil {
		return fmt.Errorf("record procedure: %w", err)
	}
	return nil
}

func (s *Service) ListByPatient(ctx context.Context, patientID int64, limit, offset int) ([]*Procedure, int, error) {
	if err := s.requirePatient(ctx, patientID); err != nil {
		return nil, 0, err
	}
	return s.procedures.ListByPatient(ctx, patientID, limit, offset)
}

func (s *Service) LatestPerformedAt(ctx context.Context, patientID int64) (*time.Time, error) {
	return s.procedures.LatestPerformedAt(ctx, patientID)
}

// applyPractice copies the practice code onto p and fills a blank
// description and a zero amount from the catalog.
func (s *Service) applyPractice(ctx context.Context, p *Procedure) error {
	if p.PracticeID == nil {
		return nil
	}
	if s.practices == nil {
		return apperr.Validation("practice_id is not supported")
	}
	pr, err := s.practices.Get(ctx, *p.PracticeID)
	if err != nil {
		return err
	}
	code := pr.Code
	p.Code = &code
	if strings.TrimSpace(p.Description) == "" {
		p.Description = pr.Description
	}
	if p.Amount == 0 {
		p.Amount = pr.Amount
	}
	return nil
}

func (s *Service) requirePatient(ctx context.Context, patientID int64) error {
	ok, err := s.patients.Exists(ctx, patientID)
	if err != nil {
		return fmt.Errorf("check patient: %w", err)
	}
	if !ok {
		return apperr.NotFound(apperr.CodePatientNotFound, fmt.Sprintf("patient %d not found", patientID))
	}
	return nil
}
