package state

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.etcd.io/bbolt"

	"github.com/pitangainnovare/scielo-usage-counter/internal/domain"
)

const (
	bucketLogFiles = "log_files"
	bucketLogPaths = "log_paths"
	bucketDates    = "date_status"
)

// BoltStore implements Store on an embedded BoltDB file. Every write
// runs inside one bbolt update transaction, so the read-compare-write
// of a status transition is atomic without extra locking.
type BoltStore struct {
	db *bbolt.DB
}

// NewBoltStore opens (or creates) the control database at dbPath
func NewBoltStore(dbPath string) (*BoltStore, error) {
	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{
		Timeout: 1 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open boltdb (file may be locked by another process): %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{bucketLogFiles, bucketLogPaths, bucketDates} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create buckets: %w", err)
	}

	log.Info().
		Str("db_path", dbPath).
		Msg("BoltDB control store initialized")

	return &BoltStore{db: db}, nil
}

type boltLogFile struct {
	ID         string `json:"id"`
	Collection string `json:"collection"`
	Path       string `json:"path"`
	CreatedAt  string `json:"created_at"`
	Size       int64  `json:"size"`
	Server     string `json:"server"`
	Date       string `json:"date"`
	Status     int    `json:"status"`
}

type boltDateState struct {
	Status    int    `json:"status"`
	UpdatedAt string `json:"updated_at"`
}

// RegisterLogFile stores a new log file row in QUEUE status
func (s *BoltStore) RegisterLogFile(ctx context.Context, lf *domain.LogFile) error {
	if lf.ID == "" {
		lf.ID = uuid.NewString()
	}
	if lf.CreatedAt.IsZero() {
		lf.CreatedAt = time.Now().UTC()
	}
	lf.Status = domain.LogFileQueue

	return s.db.Update(func(tx *bbolt.Tx) error {
		paths := tx.Bucket([]byte(bucketLogPaths))
		if paths.Get([]byte(lf.Path)) != nil {
			return fmt.Errorf("%w: %s", ErrDuplicatePath, lf.Path)
		}

		encoded, err := sonic.Marshal(encodeLogFile(lf))
		if err != nil {
			return fmt.Errorf("failed to encode log file: %w", err)
		}

		if err := tx.Bucket([]byte(bucketLogFiles)).Put([]byte(lf.ID), encoded); err != nil {
			return err
		}
		return paths.Put([]byte(lf.Path), []byte(lf.ID))
	})
}

// LogFile fetches one registered file by id
func (s *BoltStore) LogFile(ctx context.Context, id string) (*domain.LogFile, error) {
	var lf *domain.LogFile

	err := s.db.View(func(tx *bbolt.Tx) error {
		val := tx.Bucket([]byte(bucketLogFiles)).Get([]byte(id))
		if val == nil {
			return nil
		}

		decoded, err := decodeLogFile(val)
		if err != nil {
			return err
		}
		lf = decoded
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get log file: %w", err)
	}

	return lf, nil
}

// SetLogFileStatus records the outcome of a parse attempt
func (s *BoltStore) SetLogFileStatus(ctx context.Context, id string, status domain.LogFileStatus) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketLogFiles))

		val := b.Get([]byte(id))
		if val == nil {
			return fmt.Errorf("unknown log file id %s", id)
		}

		lf, err := decodeLogFile(val)
		if err != nil {
			return err
		}
		lf.Status = status

		encoded, err := sonic.Marshal(encodeLogFile(lf))
		if err != nil {
			return err
		}
		return b.Put([]byte(id), encoded)
	})
	if err != nil {
		return fmt.Errorf("failed to set log file status: %w", err)
	}

	log.Debug().
		Str("id", id).
		Int("status", int(status)).
		Msg("Log file status updated")

	return nil
}

// QueuedLogFiles lists QUEUE files for a collection, ordered by date
func (s *BoltStore) QueuedLogFiles(ctx context.Context, collection string) ([]domain.LogFile, error) {
	var files []domain.LogFile

	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketLogFiles)).ForEach(func(_, v []byte) error {
			lf, err := decodeLogFile(v)
			if err != nil {
				return err
			}
			if lf.Collection == collection && lf.Status == domain.LogFileQueue {
				files = append(files, *lf)
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list queued log files: %w", err)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Date.Before(files[j].Date) })
	return files, nil
}

// UnfinishedFileCount counts a date's files not yet LOADED
func (s *BoltStore) UnfinishedFileCount(ctx context.Context, collection string, day time.Time) (int, error) {
	day = domain.Day(day)
	count := 0

	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketLogFiles)).ForEach(func(_, v []byte) error {
			lf, err := decodeLogFile(v)
			if err != nil {
				return err
			}
			if lf.Collection == collection && domain.Day(lf.Date).Equal(day) &&
				lf.Status != domain.LogFileLoaded && lf.Status != domain.LogFileInvalidated {
				count++
			}
			return nil
		})
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count unfinished files: %w", err)
	}

	return count, nil
}

// DateState fetches the status row for one (collection, date)
func (s *BoltStore) DateState(ctx context.Context, collection string, day time.Time) (*domain.DateState, error) {
	var result *domain.DateState

	err := s.db.View(func(tx *bbolt.Tx) error {
		val := tx.Bucket([]byte(bucketDates)).Get(dateKey(collection, day))
		if val == nil {
			return nil
		}

		ds, err := decodeDateState(collection, day, val)
		if err != nil {
			return err
		}
		result = ds
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get date status: %w", err)
	}

	return result, nil
}

// SetDateStatus upserts the status of one (collection, date)
func (s *BoltStore) SetDateStatus(ctx context.Context, collection string, day time.Time, status domain.DateStatus) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		return putDateState(tx, collection, day, status)
	})
	if err != nil {
		return fmt.Errorf("failed to set date status: %w", err)
	}

	return nil
}

// TransitionDate performs a conditional advance inside one write
// transaction: the row must currently hold the expected stage.
func (s *BoltStore) TransitionDate(ctx context.Context, collection string, day time.Time, expected, next domain.DateStatus) (bool, error) {
	swapped := false

	err := s.db.Update(func(tx *bbolt.Tx) error {
		val := tx.Bucket([]byte(bucketDates)).Get(dateKey(collection, day))
		if val == nil {
			return nil
		}

		ds, err := decodeDateState(collection, day, val)
		if err != nil {
			return err
		}
		if ds.Status != expected {
			return nil
		}

		swapped = true
		return putDateState(tx, collection, day, next)
	})
	if err != nil {
		return false, fmt.Errorf("failed to transition date status: %w", err)
	}

	return swapped, nil
}

// DatesAtStatus lists the dates at one status for a collection
func (s *BoltStore) DatesAtStatus(ctx context.Context, collection string, status domain.DateStatus) ([]time.Time, error) {
	var dates []time.Time
	prefix := []byte(collection + "|")

	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(bucketDates)).Cursor()
		for k, v := c.Seek(prefix); k != nil && len(k) > len(prefix) && string(k[:len(prefix)]) == string(prefix); k, v = c.Next() {
			var ds boltDateState
			if err := sonic.Unmarshal(v, &ds); err != nil {
				return err
			}
			if domain.DateStatus(ds.Status) != status {
				continue
			}

			day, err := time.Parse(domain.DayFormat, string(k[len(prefix):]))
			if err != nil {
				return err
			}
			dates = append(dates, day)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list dates at status: %w", err)
	}

	return dates, nil
}

// Lock is uncontended: a Bolt store is exclusive to one process anyway
func (s *BoltStore) Lock(ctx context.Context, key string) (bool, error) {
	return true, nil
}

// Unlock releases nothing for the embedded store
func (s *BoltStore) Unlock(ctx context.Context, key string) error {
	return nil
}

// Close closes the BoltDB database
func (s *BoltStore) Close() error {
	log.Info().Msg("Closing BoltDB control store")
	return s.db.Close()
}

func dateKey(collection string, day time.Time) []byte {
	return []byte(collection + "|" + domain.Day(day).Format(domain.DayFormat))
}

func putDateState(tx *bbolt.Tx, collection string, day time.Time, status domain.DateStatus) error {
	encoded, err := sonic.Marshal(boltDateState{
		Status:    int(status),
		UpdatedAt: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	return tx.Bucket([]byte(bucketDates)).Put(dateKey(collection, day), encoded)
}

func encodeLogFile(lf *domain.LogFile) boltLogFile {
	return boltLogFile{
		ID:         lf.ID,
		Collection: lf.Collection,
		Path:       lf.Path,
		CreatedAt:  lf.CreatedAt.UTC().Format(time.RFC3339),
		Size:       lf.Size,
		Server:     lf.Server,
		Date:       domain.Day(lf.Date).Format(domain.DayFormat),
		Status:     int(lf.Status),
	}
}

func decodeLogFile(val []byte) (*domain.LogFile, error) {
	var raw boltLogFile
	if err := sonic.Unmarshal(val, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode log file: %w", err)
	}

	createdAt, err := time.Parse(time.RFC3339, raw.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("invalid created_at: %w", err)
	}
	date, err := time.Parse(domain.DayFormat, raw.Date)
	if err != nil {
		return nil, fmt.Errorf("invalid date: %w", err)
	}

	return &domain.LogFile{
		ID:         raw.ID,
		Collection: raw.Collection,
		Path:       raw.Path,
		CreatedAt:  createdAt,
		Size:       raw.Size,
		Server:     raw.Server,
		Date:       date,
		Status:     domain.LogFileStatus(raw.Status),
	}, nil
}

func decodeDateState(collection string, day time.Time, val []byte) (*domain.DateState, error) {
	var raw boltDateState
	if err := sonic.Unmarshal(val, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode date status: %w", err)
	}

	updatedAt, err := time.Parse(time.RFC3339, raw.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("invalid updated_at: %w", err)
	}

	return &domain.DateState{
		Collection: collection,
		Date:       domain.Day(day),
		Status:     domain.DateStatus(raw.Status),
		UpdatedAt:  updatedAt,
	}, nil
}
