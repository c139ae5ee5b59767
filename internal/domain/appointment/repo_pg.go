package appointment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/nzlopez07/Florens/internal/platform/db"
)

type appointmentRepoPG struct{ q db.Querier }

func NewRepoPG(q db.Querier) Repository { return &appointmentRepoPG{q: q} }

const appointmentCols = `id, patient_id, date, time, duration_minutes, detail, status, created_at, updated_at`

var finalStatuses = []interface{}{string(StatusAttended), string(StatusNoShow), string(StatusCancelled)}

// clockParam converts "HH:MM" to a TIME parameter.
func clockParam(clock string) (pgtype.Time, error) {
	minutes, err := ParseClock(clock)
	if err != nil {
		return pgtype.Time{}, err
	}
	return pgtype.Time{Microseconds: int64(minutes) * 60 * 1_000_000, Valid: true}, nil
}

// clockText renders a time of day in the text form TIME accepts.
func clockText(d time.Duration) string {
	us := d.Microseconds()
	return fmt.Sprintf("%02d:%02d:%02d.%06d", us/3_600_000_000, us/60_000_000%60, us/1_000_000%60, us%1_000_000)
}

func scanAppointment(row pgx.Row, extra ...any) (*Appointment, error) {
	var a Appointment
	var clock pgtype.Time
	var status string
	dest := []any{&a.ID, &a.PatientID, &a.Date, &clock, &a.DurationMinutes, &a.Detail, &status, &a.CreatedAt, &a.UpdatedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	a.Time = FormatClock(int(clock.Microseconds / 60_000_000))
	a.Status = Status(status)
	return &a, nil
}

func (r *appointmentRepoPG) Create(ctx context.Context, a *Appointment) error {
	clock, err := clockParam(a.Time)
	if err != nil {
		return err
	}
	return r.q.QueryRow(ctx, `
		INSERT INTO appointments (patient_id, date, time, duration_minutes, detail, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`,
		a.PatientID, a.Date, clock, a.DurationMinutes, a.Detail, string(a.Status),
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
}

func (r *appointmentRepoPG) GetByID(ctx context.Context, id int64) (*Appointment, error) {
	return scanAppointment(r.q.QueryRow(ctx, `SELECT `+appointmentCols+` FROM appointments WHERE id = $1`, id))
}

func (r *appointmentRepoPG) GetForUpdate(ctx context.Context, id int64) (*Appointment, error) {
	return scanAppointment(r.q.QueryRow(ctx, `SELECT `+appointmentCols+` FROM appointments WHERE id = $1 FOR UPDATE`, id))
}

func listFilters(f Filter) []exp.Expression {
	var where []exp.Expression
	if f.Date != nil {
		where = append(where, goqu.I("a.date").Eq(CivilDate(*f.Date)))
	}
	if f.From != nil {
		where = append(where, goqu.I("a.date").Gte(CivilDate(*f.From)))
	}
	if f.Status != "" {
		where = append(where, goqu.I("a.status").Eq(string(f.Status)))
	}
	if f.PatientID != 0 {
		where = append(where, goqu.I("a.patient_id").Eq(f.PatientID))
	}
	if term := strings.TrimSpace(f.Term); term != "" {
		pattern := "%" + term + "%"
		where = append(where, goqu.Or(
			goqu.I("p.first_name").ILike(pattern),
			goqu.I("p.last_name").ILike(pattern),
			goqu.I("p.document_number").ILike(pattern),
			goqu.I("a.detail").ILike(pattern),
		))
	}
	return where
}

func (r *appointmentRepoPG) List(ctx context.Context, f Filter) ([]*Appointment, int, error) {
	base := db.PG.From(goqu.T("appointments").As("a")).
		Join(goqu.T("patients").As("p"), goqu.On(goqu.I("p.id").Eq(goqu.I("a.patient_id")))).
		Where(listFilters(f)...).
		Prepared(true)

	countSQL, countArgs, err := base.Select(goqu.COUNT("*")).ToSQL()
	if err != nil {
		return nil, 0, fmt.Errorf("build appointment count: %w", err)
	}
	var total int
	if err := r.q.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count appointments: %w", err)
	}

	listSQL, listArgs, err := base.Select(
		"a.id", "a.patient_id", "a.date", "a.time", "a.duration_minutes", "a.detail",
		"a.status", "a.created_at", "a.updated_at",
		goqu.L("p.first_name || ' ' || p.last_name"),
	).
		Order(goqu.I("a.date").Asc(), goqu.I("a.time").Asc(), goqu.I("a.id").Asc()).
		Limit(uint(f.Limit)).Offset(uint(f.Offset)).
		ToSQL()
	if err != nil {
		return nil, 0, fmt.Errorf("build appointment list: %w", err)
	}

	rows, err := r.q.Query(ctx, listSQL, listArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("list appointments: %w", err)
	}
	defer rows.Close()

	var items []*Appointment
	for rows.Next() {
		var name string
		a, err := scanAppointment(rows, &name)
		if err != nil {
			return nil, 0, err
		}
		a.PatientName = name
		items = append(items, a)
	}
	return items, total, rows.Err()
}

func (r *appointmentRepoPG) UpdateStatus(ctx context.Context, id int64, status Status, at time.Time) error {
	tag, err := r.q.Exec(ctx, `UPDATE appointments SET status = $2, updated_at = $3 WHERE id = $1`,
		id, string(status), at)
	if err != nil {
		return fmt.Errorf("update appointment status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *appointmentRepoPG) Delete(ctx context.Context, id int64) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete appointment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *appointmentRepoPG) RecordStatusChange(ctx context.Context, sc *StatusChange) error {
	var from *string
	if sc.From != nil {
		s := string(*sc.From)
		from = &s
	}
	return r.q.QueryRow(ctx, `
		INSERT INTO appointment_status_changes (appointment_id, from_status, to_status, reason, changed_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		sc.AppointmentID, from, string(sc.To), sc.Reason, sc.ChangedAt,
	).Scan(&sc.ID)
}

func (r *appointmentRepoPG) ListStatusChanges(ctx context.Context, appointmentID int64) ([]*StatusChange, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, appointment_id, from_status, to_status, reason, changed_at
		FROM appointment_status_changes
		WHERE appointment_id = $1
		ORDER BY changed_at, id`, appointmentID)
	if err != nil {
		return nil, fmt.Errorf("list status changes: %w", err)
	}
	defer rows.Close()

	var items []*StatusChange
	for rows.Next() {
		var sc StatusChange
		var from *string
		var to string
		if err := rows.Scan(&sc.ID, &sc.AppointmentID, &from, &to, &sc.Reason, &sc.ChangedAt); err != nil {
			return nil, err
		}
		if from != nil {
			s := Status(*from)
			sc.From = &s
		}
		sc.To = Status(to)
		items = append(items, &sc)
	}
	return items, rows.Err()
}

func (r *appointmentRepoPG) ListOverdue(ctx context.Context, today time.Time, sinceMidnight time.Duration) ([]*Appointment, error) {
	day := CivilDate(today)
	query, args, err := db.PG.From("appointments").Prepared(true).
		Select("id", "patient_id", "date", "time", "duration_minutes", "detail", "status", "created_at", "updated_at").
		Where(
			goqu.C("status").NotIn(finalStatuses...),
			goqu.Or(
				goqu.C("date").Lt(day),
				goqu.And(goqu.C("date").Eq(day), goqu.C("time").Lt(clockText(sinceMidnight))),
			),
		).
		Order(goqu.C("date").Asc(), goqu.C("time").Asc()).
		ForUpdate(exp.Wait).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build overdue query: %w", err)
	}

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list overdue appointments: %w", err)
	}
	defer rows.Close()

	var items []*Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}
