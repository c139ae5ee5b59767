package odontogram

import (
	"context"
	"time"
)

// Repository is the persistence boundary of the version manager. The
// manager only ever receives one bound to an open transaction.
type Repository interface {
	PatientExists(ctx context.Context, patientID int64) (bool, error)
	// LatestProcedureAt returns nil when the patient has no procedures.
	LatestProcedureAt(ctx context.Context, patientID int64) (*time.Time, error)
	// LockPatient serializes chart writers for one patient until the
	// transaction ends.
	LockPatient(ctx context.Context, patientID int64) error

	GetCurrent(ctx context.Context, patientID int64) (*Version, error)
	GetByID(ctx context.Context, id int64) (*Version, error)
	MaxVersionSeq(ctx context.Context, patientID int64) (int, error)
	CreateVersion(ctx context.Context, v *Version) error
	ListFaces(ctx context.Context, versionID int64) ([]*Face, error)
	InsertFaces(ctx context.Context, versionID int64, faces []*Face) error
	// DemoteOthers clears IsCurrent on every version of the patient but keepID.
	DemoteOthers(ctx context.Context, patientID, keepID int64) error
	// ListVersionIDs returns ids ordered by version_seq, newest first.
	ListVersionIDs(ctx context.Context, patientID int64) ([]int64, error)
	DeleteVersions(ctx context.Context, ids []int64) error
	// ListVersions returns up to limit versions with their faces, newest first.
	ListVersions(ctx context.Context, patientID int64, limit int) ([]*Version, error)
}

// UnitOfWork runs fn in one transaction. It commits only when fn returns
// nil; any error or panic rolls everything back.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(ctx context.Context, repo Repository) error) error
}
