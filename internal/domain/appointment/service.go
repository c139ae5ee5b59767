package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/nzlopez07/Florens/internal/platform/apperr"
	"github.com/nzlopez07/Florens/internal/platform/events"
)

// PatientLookup is the part of the patient service appointments depend on.
type PatientLookup interface {
	Exists(ctx context.Context, id int64) (bool, error)
}

type Service struct {
	store     Store
	patients  PatientLookup
	publisher events.Publisher
	logger    zerolog.Logger
	tracer    trace.Tracer
	now       func() time.Time
	loc       *time.Location
}

type Option func(*Service)

func WithPublisher(p events.Publisher) Option { return func(s *Service) { s.publisher = p } }
func WithLogger(l zerolog.Logger) Option { return func(s *Service) { s.logger = l } }
func WithTracer(t trace.Tracer) Option { return func(s *Service) { s.tracer = t } }
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// WithLocation sets the clinic's time zone. Dates and opening hours are
// judged in it.
func WithLocation(loc *time.Location) Option { return func(s *Service) { s.loc = loc } }

func NewService(store Store, patients PatientLookup, opts ...Option) *Service {
	s := &Service{
		store:     store,
		patients:  patients,
		publisher: events.Nop{},
		logger:    zerolog.Nop(),
		tracer:    noop.NewTracerProvider().Tracer(""),
		now:       time.Now,
		loc:       time.Local,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With().Str("component", "appointment").Logger()
	return s
}

func (s *Service) localNow() time.Time {
	return s.now().In(s.loc)
}

func (s *Service) validateNew(a *Appointment) error {
	if a.PatientID <= 0 {
		return apperr.Validation("patient_id is required")
	}
	if a.Date.IsZero() {
		return apperr.Validation("date is required")
	}
	a.Date = CivilDate(a.Date)
	if a.Date.Before(CivilDate(s.localNow())) {
		return apperr.Validation("date must not be in the past")
	}
	if a.Date.Weekday() == time.Sunday {
		return apperr.Validation("appointments are only booked Monday to Saturday")
	}

	start, err := ParseClock(a.Time)
	if err != nil {
		return apperr.Validation(err.Error())
	}
	if start < openMinute || start >= closeMinute {
		return apperr.Validation(fmt.Sprintf("time must be between %s and %s",
			FormatClock(openMinute), FormatClock(closeMinute)))
	}
	a.Time = FormatClock(start)

	if a.DurationMinutes == 0 {
		a.DurationMinutes = DefaultDuration
	}
	if a.DurationMinutes < MinDuration || a.DurationMinutes > MaxDuration {
		return apperr.Validation(fmt.Sprintf("duration %d min is invalid; must be between %d and %d",
			a.DurationMinutes, MinDuration, MaxDuration))
	}

	if a.Detail != nil && strings.TrimSpace(*a.Detail) == "" {
		a.Detail = nil
	}
	return nil
}

func (s *Service) Create(ctx context.Context, a *Appointment) error {
	if err := s.validateNew(a); err != nil {
		return err
	}
	ok, err := s.patients.Exists(ctx, a.PatientID)
	if err != nil {
		return fmt.Errorf("check patient: %w", err)
	}
	if !ok {
		return apperr.NotFound(apperr.CodePatientNotFound, fmt.Sprintf("patient %d not found", a.PatientID))
	}

	a.Status = StatusPending
	return s.store.Do(ctx, func(ctx context.Context, repo Repository) error {
		if err := repo.Create(ctx, a); err != nil {
			return fmt.Errorf("create appointment: %w", err)
		}
		return repo.RecordStatusChange(ctx, &StatusChange{
			AppointmentID: a.ID,
			To:            StatusPending,
			ChangedAt:     a.CreatedAt,
		})
	})
}

func (s *Service) Get(ctx context.Context, id int64) (*Appointment, error) {
	a, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, mapNotFound(err, id)
	}
	return a, nil
}

// List sweeps overdue appointments first so listed statuses are current.
func (s *Service) List(ctx context.Context, f Filter) ([]*Appointment, int, error) {
	if _, err := s.SweepOverdue(ctx, s.now()); err != nil {
		return nil, 0, err
	}
	return s.store.List(ctx, f)
}

func (s *Service) History(ctx context.Context, id int64) ([]*StatusChange, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.store.ListStatusChanges(ctx, id)
}

// ChangeStatus moves an appointment to status to and records the change in
// the same transaction.
func (s *Service) ChangeStatus(ctx context.Context, id int64, to Status, reason *string) (*Appointment, error) {
	ctx, span := s.tracer.Start(ctx, "appointment.change_status",
		trace.WithAttributes(attribute.Int64("appointment.id", id), attribute.String("appointment.to", string(to))))
	defer span.End()

	if _, ok := ParseStatus(string(to)); !ok {
		return nil, apperr.ValidationCode(apperr.CodeInvalidStatusTransition, fmt.Sprintf("unknown status %q", to))
	}

	var a *Appointment
	var from Status
	err := s.store.Do(ctx, func(ctx context.Context, repo Repository) error {
		var err error
		a, err = repo.GetForUpdate(ctx, id)
		if err != nil {
			return mapNotFound(err, id)
		}
		from = a.Status
		if err := CheckTransition(from, to); err != nil {
			return err
		}

		now := s.now().UTC()
		if err := repo.UpdateStatus(ctx, id, to, now); err != nil {
			return err
		}
		a.Status = to
		a.UpdatedAt = now
		return repo.RecordStatusChange(ctx, &StatusChange{
			AppointmentID: id,
			From:          &from,
			To:            to,
			Reason:        reason,
			ChangedAt:     now,
		})
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.publishStatusChange(ctx, a, from)
	s.logger.Info().Int64("appointment_id", id).Str("from", string(from)).Str("to", string(to)).Msg("appointment status changed")
	return a, nil
}

// Delete removes an appointment that is still Pendiente.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.store.Do(ctx, func(ctx context.Context, repo Repository) error {
		a, err := repo.GetForUpdate(ctx, id)
		if err != nil {
			return mapNotFound(err, id)
		}
		if a.Status != StatusPending {
			return apperr.ValidationCode(apperr.CodeAppointmentNotDeletable,
				fmt.Sprintf("only Pendiente appointments can be deleted; this one is %s", a.Status))
		}
		return repo.Delete(ctx, id)
	})
}

// SweepOverdue marks every non-final appointment that has already started
// as NoAtendido, in one transaction, and returns how many changed.
func (s *Service) SweepOverdue(ctx context.Context, now time.Time) (int, error) {
	ctx, span := s.tracer.Start(ctx, "appointment.sweep_overdue")
	defer span.End()

	local := now.In(s.loc)
	reason := ReasonOverdue
	var swept []*Appointment
	var prev []Status

	err := s.store.Do(ctx, func(ctx context.Context, repo Repository) error {
		overdue, err := repo.ListOverdue(ctx, CivilDate(local), SinceMidnight(local))
		if err != nil {
			return err
		}
		at := now.UTC()
		for _, a := range overdue {
			from := a.Status
			if err := repo.UpdateStatus(ctx, a.ID, StatusNoShow, at); err != nil {
				return err
			}
			if err := repo.RecordStatusChange(ctx, &StatusChange{
				AppointmentID: a.ID,
				From:          &from,
				To:            StatusNoShow,
				Reason:        &reason,
				ChangedAt:     at,
			}); err != nil {
				return err
			}
			a.Status = StatusNoShow
			a.UpdatedAt = at
			swept = append(swept, a)
			prev = append(prev, from)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("sweep overdue appointments: %w", err)
	}

	for i, a := range swept {
		s.publishStatusChange(ctx, a, prev[i])
	}
	span.SetAttributes(attribute.Int("appointment.swept", len(swept)))
	if len(swept) > 0 {
		s.logger.Info().Int("count", len(swept)).Msg("overdue appointments marked NoAtendido")
	}
	return len(swept), nil
}

func (s *Service) publishStatusChange(ctx context.Context, a *Appointment, from Status) {
	events.PublishLogged(ctx, s.publisher, s.logger, events.New(events.AppointmentStatusChanged, map[string]interface{}{
		"appointment_id": a.ID,
		"patient_id":     a.PatientID,
		"from":           string(from),
		"to":             string(a.Status),
	}))
}

func mapNotFound(err error, id int64) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound(apperr.CodeAppointmentNotFound, fmt.Sprintf("appointment %d not found", id))
	}
	if _, ok := apperr.As(err); ok {
		return err
	}
	return fmt.Errorf("load appointment %d: %w", id, err)
}
