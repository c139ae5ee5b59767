package odontogram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/nzlopez07/Florens/internal/platform/apperr"
	"github.com/nzlopez07/Florens/internal/platform/db"
	"github.com/nzlopez07/Florens/internal/platform/events"
)

// Manager owns the lifecycle of chart versions. Every operation runs inside
// a single UnitOfWork call.
type Manager struct {
	uow       UnitOfWork
	retention int
	now       func() time.Time
	publisher events.Publisher
	logger    zerolog.Logger
	tracer    trace.Tracer
}

type Option func(*Manager)

// WithRetention sets how many versions per patient are kept. Values below
// one are ignored.
func WithRetention(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.retention = n
		}
	}
}

func WithClock(now func() time.Time) Option { return func(m *Manager) { m.now = now } }
func WithPublisher(p events.Publisher) Option { return func(m *Manager) { m.publisher = p } }
func WithLogger(l zerolog.Logger) Option { return func(m *Manager) { m.logger = l } }
func WithTracer(t trace.Tracer) Option { return func(m *Manager) { m.tracer = t } }

func NewManager(uow UnitOfWork, opts ...Option) *Manager {
	m := &Manager{
		uow:       uow,
		retention: DefaultRetention,
		now:       time.Now,
		publisher: events.Nop{},
		logger:    zerolog.Nop(),
		tracer:    noop.NewTracerProvider().Tracer(""),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With().Str("component", "odontogram").Logger()
	return m
}

func (m *Manager) Retention() int { return m.retention }

// View is what the read operations return.
type View struct {
	Version           *Version
	History           []*Version
	Stale             bool
	LatestProcedureAt *time.Time
}

func (v *View) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"odontogram":          v.Version.ToMap(),
		"versions":            MapVersions(v.History),
		"stale":               v.Stale,
		"latest_procedure_at": formatTimePtr(v.LatestProcedureAt),
	}
}

// GetOrCreateCurrent returns the patient's current version, creating an
// empty one when the patient has none.
func (m *Manager) GetOrCreateCurrent(ctx context.Context, patientID int64) (*View, error) {
	ctx, span := m.startSpan(ctx, "odontogram.get_or_create_current", patientID)
	defer span.End()

	var view *View
	var created *Version
	err := m.uow.Do(ctx, func(ctx context.Context, repo Repository) error {
		if err := requirePatient(ctx, repo, patientID); err != nil {
			return err
		}

		v, err := repo.GetCurrent(ctx, patientID)
		if errors.Is(err, ErrNotFound) {
			if err := repo.LockPatient(ctx, patientID); err != nil {
				return err
			}
			v, err = repo.GetCurrent(ctx, patientID)
			if errors.Is(err, ErrNotFound) {
				v, err = m.createEmpty(ctx, repo, patientID)
				created = v
			}
		}
		if err != nil {
			return err
		}

		if v.Faces == nil {
			if v.Faces, err = repo.ListFaces(ctx, v.ID); err != nil {
				return err
			}
		}
		view, err = m.buildView(ctx, repo, v)
		return err
	})
	if err != nil {
		return nil, m.fail(span, err, "could not load odontogram")
	}

	if created != nil {
		m.versionCreated(ctx, created, 0)
	}
	return view, nil
}

// GetVersion returns a specific version. A version owned by another patient
// is reported as not found.
func (m *Manager) GetVersion(ctx context.Context, patientID, versionID int64) (*View, error) {
	ctx, span := m.startSpan(ctx, "odontogram.get_version", patientID)
	defer span.End()
	span.SetAttributes(attribute.Int64("odontogram.version_id", versionID))

	var view *View
	err := m.uow.Do(ctx, func(ctx context.Context, repo Repository) error {
		v, err := m.ownedVersion(ctx, repo, patientID, versionID)
		if err != nil {
			return err
		}
		if v.Faces, err = repo.ListFaces(ctx, v.ID); err != nil {
			return err
		}
		view, err = m.buildView(ctx, repo, v)
		return err
	})
	if err != nil {
		return nil, m.fail(span, err, "could not load odontogram")
	}
	return view, nil
}

// CreateVersionFrom derives a new current version from baseVersionID (or the
// current version) plus changes, then prunes history beyond the retention
// limit. Everything happens in one transaction.
func (m *Manager) CreateVersionFrom(ctx context.Context, patientID int64, changes []FaceChange, generalNote *string, baseVersionID *int64) (*Version, []*Version, error) {
	ctx, span := m.startSpan(ctx, "odontogram.create_version_from", patientID)
	defer span.End()

	if err := ValidateChanges(changes); err != nil {
		return nil, nil, m.fail(span, err, "could not create version")
	}

	var created *Version
	var history []*Version
	var pruned int
	err := m.uow.Do(ctx, func(ctx context.Context, repo Repository) error {
		if err := requirePatient(ctx, repo, patientID); err != nil {
			return err
		}
		if err := repo.LockPatient(ctx, patientID); err != nil {
			return err
		}

		base, err := m.resolveBase(ctx, repo, patientID, baseVersionID)
		if err != nil {
			return err
		}
		baseFaces, err := repo.ListFaces(ctx, base.ID)
		if err != nil {
			return err
		}

		seq, err := repo.MaxVersionSeq(ctx, patientID)
		if err != nil {
			return err
		}
		now := m.now().UTC()
		seenAt := now
		v := &Version{
			PatientID:           patientID,
			VersionSeq:          seq + 1,
			IsCurrent:           true,
			GeneralNote:         cleanNote(generalNote),
			LastProcedureSeenAt: &seenAt,
			CreatedAt:           now,
			UpdatedAt:           now,
		}
		if err := repo.CreateVersion(ctx, v); err != nil {
			return err
		}

		v.Faces = ApplyChanges(baseFaces, changes)
		if err := repo.InsertFaces(ctx, v.ID, v.Faces); err != nil {
			return err
		}
		if err := repo.DemoteOthers(ctx, patientID, v.ID); err != nil {
			return err
		}

		if pruned, err = m.prune(ctx, repo, patientID); err != nil {
			return err
		}
		if history, err = repo.ListVersions(ctx, patientID, m.retention); err != nil {
			return err
		}
		created = v
		return nil
	})
	if err != nil {
		return nil, nil, m.fail(span, err, "could not create version")
	}

	span.SetAttributes(
		attribute.Int64("odontogram.version_id", created.ID),
		attribute.Int("odontogram.pruned", pruned),
	)
	m.versionCreated(ctx, created, pruned)
	return created, history, nil
}

func (m *Manager) createEmpty(ctx context.Context, repo Repository, patientID int64) (*Version, error) {
	seq, err := repo.MaxVersionSeq(ctx, patientID)
	if err != nil {
		return nil, err
	}
	latest, err := repo.LatestProcedureAt(ctx, patientID)
	if err != nil {
		return nil, err
	}

	now := m.now().UTC()
	v := &Version{
		PatientID:           patientID,
		VersionSeq:          seq + 1,
		IsCurrent:           true,
		LastProcedureSeenAt: latest,
		CreatedAt:           now,
		UpdatedAt:           now,
		Faces:               []*Face{},
	}
	if err := repo.CreateVersion(ctx, v); err != nil {
		return nil, err
	}
	if err := repo.DemoteOthers(ctx, patientID, v.ID); err != nil {
		return nil, err
	}
	return v, nil
}

func (m *Manager) resolveBase(ctx context.Context, repo Repository, patientID int64, baseVersionID *int64) (*Version, error) {
	if baseVersionID != nil {
		return m.ownedVersion(ctx, repo, patientID, *baseVersionID)
	}
	v, err := repo.GetCurrent(ctx, patientID)
	if errors.Is(err, ErrNotFound) {
		return m.createEmpty(ctx, repo, patientID)
	}
	return v, err
}

func (m *Manager) ownedVersion(ctx context.Context, repo Repository, patientID, versionID int64) (*Version, error) {
	v, err := repo.GetByID(ctx, versionID)
	if errors.Is(err, ErrNotFound) || (err == nil && v.PatientID != patientID) {
		return nil, apperr.NotFound(apperr.CodeOdontogramNotFound,
			fmt.Sprintf("odontogram version %d not found for patient %d", versionID, patientID))
	}
	return v, err
}

func (m *Manager) buildView(ctx context.Context, repo Repository, v *Version) (*View, error) {
	history, err := repo.ListVersions(ctx, v.PatientID, m.retention)
	if err != nil {
		return nil, err
	}
	latest, err := repo.LatestProcedureAt(ctx, v.PatientID)
	if err != nil {
		return nil, err
	}
	return &View{
		Version:           v,
		History:           history,
		Stale:             IsStale(latest, v.CreatedAt),
		LatestProcedureAt: latest,
	}, nil
}

// prune deletes every version past the retention limit and returns how many
// went.
func (m *Manager) prune(ctx context.Context, repo Repository, patientID int64) (int, error) {
	ids, err := repo.ListVersionIDs(ctx, patientID)
	if err != nil {
		return 0, err
	}
	if len(ids) <= m.retention {
		return 0, nil
	}
	doomed := ids[m.retention:]
	if err := repo.DeleteVersions(ctx, doomed); err != nil {
		return 0, err
	}
	return len(doomed), nil
}

func requirePatient(ctx context.Context, repo Repository, patientID int64) error {
	ok, err := repo.PatientExists(ctx, patientID)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.NotFound(apperr.CodePatientNotFound, fmt.Sprintf("patient %d not found", patientID))
	}
	return nil
}

func cleanNote(note *string) *string {
	if note == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*note)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func (m *Manager) startSpan(ctx context.Context, name string, patientID int64) (context.Context, trace.Span) {
	return m.tracer.Start(ctx, name, trace.WithAttributes(attribute.Int64("patient.id", patientID)))
}

// fail records err on the span and maps it to an application error. Typed
// errors pass through; a unique violation means a concurrent writer won.
func (m *Manager) fail(span trace.Span, err error, msg string) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, msg)

	if _, ok := apperr.As(err); ok {
		return err
	}
	if db.IsUniqueViolation(err, "") {
		return apperr.Conflict(apperr.CodeOdontogramConflict, "the chart was changed concurrently; retry", err)
	}
	m.logger.Error().Err(err).Msg(msg)
	return apperr.Internal(apperr.CodeTransaction, msg, err)
}

func (m *Manager) versionCreated(ctx context.Context, v *Version, pruned int) {
	m.logger.Info().
		Int64("patient_id", v.PatientID).
		Int64("version_id", v.ID).
		Int("version_seq", v.VersionSeq).
		Int("faces", len(v.Faces)).
		Int("pruned", pruned).
		Msg("odontogram version created")

	events.PublishLogged(ctx, m.publisher, m.logger, events.New(events.OdontogramVersionCreated, map[string]interface{}{
		"patient_id":  v.PatientID,
		"version_id":  v.ID,
		"version_seq": v.VersionSeq,
		"faces":       len(v.Faces),
		"pruned":      pruned,
	}))
}
