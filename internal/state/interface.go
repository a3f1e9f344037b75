package state

import (
	"context"
	"errors"
	"time"

	"github.com/pitangainnovare/scielo-usage-counter/internal/domain"
)

// ErrDuplicatePath signals an attempt to register a log file whose
// filesystem path is already known.
var ErrDuplicatePath = errors.New("log file path already registered")

// Store persists per-log-file and per-(collection, date) pipeline
// status. Lookups that find no row return empty results, never errors:
// an absent row means "nothing to do".
//
// Implementations: MySQL (primary, shared between collection runs),
// BoltDB (embedded fallback for single-host deployments).
type Store interface {
	// RegisterLogFile records a raw log for ingestion, in QUEUE status.
	// The file's path is unique across the store.
	RegisterLogFile(ctx context.Context, lf *domain.LogFile) error

	// LogFile fetches one registered file by id; nil when unknown
	LogFile(ctx context.Context, id string) (*domain.LogFile, error)

	// SetLogFileStatus records the outcome of a parse attempt
	SetLogFileStatus(ctx context.Context, id string, status domain.LogFileStatus) error

	// QueuedLogFiles lists files in QUEUE status for a collection,
	// ordered by calendar date
	QueuedLogFiles(ctx context.Context, collection string) ([]domain.LogFile, error)

	// UnfinishedFileCount counts a date's registered files not yet
	// LOADED (used to decide when the date itself becomes LOADED)
	UnfinishedFileCount(ctx context.Context, collection string, day time.Time) (int, error)

	// DateState fetches the status row for one (collection, date);
	// nil when the date was never observed
	DateState(ctx context.Context, collection string, day time.Time) (*domain.DateState, error)

	// SetDateStatus upserts the status of one (collection, date)
	SetDateStatus(ctx context.Context, collection string, day time.Time, status domain.DateStatus) error

	// TransitionDate advances a date from expected to next in a single
	// conditional update. It reports false when the row was not at the
	// expected stage, which means another run got there first.
	TransitionDate(ctx context.Context, collection string, day time.Time, expected, next domain.DateStatus) (bool, error)

	// DatesAtStatus lists the dates currently at a given status for a
	// collection, ascending
	DatesAtStatus(ctx context.Context, collection string, status domain.DateStatus) ([]time.Time, error)

	// Close releases the underlying store
	Close() error
}

// Locker serializes work on a shared key across independent pipeline
// runs. Stores without cross-process locking return true uncontended.
type Locker interface {
	Lock(ctx context.Context, key string) (bool, error)
	Unlock(ctx context.Context, key string) error
}
