package appointment

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type Status string

const (
	StatusPending   Status = "Pendiente"
	StatusConfirmed Status = "Confirmado"
	StatusAttended  Status = "Atendido"
	StatusNoShow    Status = "NoAtendido"
	StatusCancelled Status = "Cancelado"
)

// AllStatuses is the display order used by list filters.
var AllStatuses = []Status{StatusPending, StatusConfirmed, StatusAttended, StatusNoShow, StatusCancelled}

func (s Status) IsFinal() bool {
	return s == StatusAttended || s == StatusNoShow || s == StatusCancelled
}

func ParseStatus(raw string) (Status, bool) {
	for _, s := range AllStatuses {
		if string(s) == raw {
			return s, true
		}
	}
	return "", false
}

const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"

	MinDuration     = 5
	MaxDuration     = 480
	DefaultDuration = 30

	// ReasonOverdue is recorded when the sweep closes a missed appointment.
	ReasonOverdue = "vencido"
)

// Opening hours, as minutes since midnight. Close is exclusive.
const (
	openMinute  = 8 * 60
	closeMinute = 21 * 60
)

// Appointment is a booked slot ("turno"). Date is a civil date stored at UTC
// midnight; Time is the local start time as "HH:MM".
type Appointment struct {
	ID              int64     `db:"id" json:"id"`
	PatientID       int64     `db:"patient_id" json:"patient_id"`
	Date            time.Time `db:"date" json:"date"`
	Time            string    `db:"time" json:"time"`
	DurationMinutes int       `db:"duration_minutes" json:"duration_minutes"`
	Detail          *string   `db:"detail" json:"detail,omitempty"`
	Status          Status    `db:"status" json:"status"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`

	// PatientName is filled by list queries only.
	PatientName string `db:"-" json:"patient_name,omitempty"`
}

func (a *Appointment) ToMap() map[string]interface{} {
	m := map[string]interface{}{
		"id":               a.ID,
		"patient_id":       a.PatientID,
		"date":             a.Date.Format(DateLayout),
		"time":             a.Time,
		"duration_minutes": a.DurationMinutes,
		"detail":           a.Detail,
		"status":           a.Status,
		"created_at":       a.CreatedAt.Format(time.RFC3339),
		"updated_at":       a.UpdatedAt.Format(time.RFC3339),
	}
	if a.PatientName != "" {
		m["patient_name"] = a.PatientName
	}
	return m
}

// StatusChange is one entry in an appointment's status history.
type StatusChange struct {
	ID            int64     `db:"id" json:"id"`
	AppointmentID int64     `db:"appointment_id" json:"appointment_id"`
	From          *Status   `db:"from_status" json:"from"`
	To            Status    `db:"to_status" json:"to"`
	Reason        *string   `db:"reason" json:"reason,omitempty"`
	ChangedAt     time.Time `db:"changed_at" json:"changed_at"`
}

// Filter narrows List. Zero values mean "no filter".
type Filter struct {
	Date      *time.Time
	From      *time.Time
	Status    Status
	PatientID int64
	Term      string
	Limit     int
	Offset    int
}

// ParseClock parses "HH:MM" into minutes since midnight.
func ParseClock(raw string) (int, error) {
	parts := strings.Split(strings.TrimSpace(raw), ":")
	if len(parts) != 2 || len(parts[0]) == 0 || len(parts[1]) != 2 {
		return 0, fmt.Errorf("time %q must be HH:MM", raw)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("time %q has an invalid hour", raw)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("time %q has invalid minutes", raw)
	}
	return h*60 + m, nil
}

func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// CivilDate drops the clock and zone from t, keeping its calendar day.
func CivilDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// SinceMidnight is how far into its own day t is.
func SinceMidnight(t time.Time) time.Duration {
	h, m, s := t.Clock()
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute +
		time.Duration(s)*time.Second + time.Duration(t.Nanosecond())
}

// IsOverdue reports whether a non-final appointment has already started at
// local time now.
func (a *Appointment) IsOverdue(now time.Time) bool {
	if a.Status.IsFinal() {
		return false
	}
	today := CivilDate(now)
	day := CivilDate(a.Date)
	if day.Before(today) {
		return true
	}
	if !day.Equal(today) {
		return false
	}
	start, err := ParseClock(a.Time)
	if err != nil {
		return false
	}
	return time.Duration(start)*time.Minute < SinceMidnight(now)
}
