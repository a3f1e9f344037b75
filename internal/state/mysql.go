package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/pitangainnovare/scielo-usage-counter/internal/domain"
)

const mysqlDuplicateEntry = 1062

// MySQLStore implements Store on the control tables shared between
// collection runs. Date transitions are single conditional UPDATEs, so
// concurrent runs cannot both advance the same date.
//
// Advisory locks are per-connection in MySQL, so each held lock pins
// its own *sql.Conn until released.
type MySQLStore struct {
	db *sql.DB

	mu        sync.Mutex
	lockConns map[string]*sql.Conn
}

// NewMySQLStore opens a connection pool against dsn and verifies it
func NewMySQLStore(dsn string) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open mysql connection: %w", err)
	}

	db.SetMaxOpenConns(8)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping mysql: %w", err)
	}

	log.Info().Msg("MySQL control store initialized")
	return &MySQLStore{
		db:        db,
		lockConns: make(map[string]*sql.Conn),
	}, nil
}

// InitSchema creates the control tables when they do not exist yet
func (s *MySQLStore) InitSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS control_log_file (
			id CHAR(36) NOT NULL PRIMARY KEY,
			collection VARCHAR(3) NOT NULL,
			full_path VARCHAR(500) NOT NULL,
			created_at DATETIME NOT NULL,
			size BIGINT NOT NULL DEFAULT 0,
			server VARCHAR(255) NOT NULL DEFAULT '',
			year_month_day DATE NOT NULL,
			status INT NOT NULL DEFAULT 0,
			UNIQUE KEY uniq_full_path (full_path),
			KEY idx_collection_status (collection, status),
			KEY idx_collection_date (collection, year_month_day)
		)`,
		`CREATE TABLE IF NOT EXISTS control_date_status (
			collection VARCHAR(3) NOT NULL,
			year_month_day DATE NOT NULL,
			status INT NOT NULL DEFAULT 0,
			updated_at DATETIME NOT NULL,
			PRIMARY KEY (collection, year_month_day)
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create control tables: %w", err)
		}
	}

	log.Info().Msg("Control tables ready")
	return nil
}

// RegisterLogFile stores a new log file row in QUEUE status
func (s *MySQLStore) RegisterLogFile(ctx context.Context, lf *domain.LogFile) error {
	if lf.ID == "" {
		lf.ID = uuid.NewString()
	}
	if lf.CreatedAt.IsZero() {
		lf.CreatedAt = time.Now().UTC()
	}
	lf.Status = domain.LogFileQueue

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO control_log_file
			(id, collection, full_path, created_at, size, server, year_month_day, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		lf.ID, lf.Collection, lf.Path,
		lf.CreatedAt.Format("2006-01-02 15:04:05"),
		lf.Size, lf.Server,
		domain.Day(lf.Date).Format(domain.DayFormat),
		int(lf.Status),
	)
	if err != nil {
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlDuplicateEntry {
			return fmt.Errorf("%w: %s", ErrDuplicatePath, lf.Path)
		}
		return fmt.Errorf("failed to register log file: %w", err)
	}

	return nil
}

// LogFile fetches one registered file by id
func (s *MySQLStore) LogFile(ctx context.Context, id string) (*domain.LogFile, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, collection, full_path, created_at, size, server, year_month_day, status
		 FROM control_log_file WHERE id = ?`, id)

	lf, err := scanLogFile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get log file: %w", err)
	}

	return lf, nil
}

// SetLogFileStatus records the outcome of a parse attempt
func (s *MySQLStore) SetLogFileStatus(ctx context.Context, id string, status domain.LogFileStatus) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE control_log_file SET status = ? WHERE id = ?", int(status), id)
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
func (s *MySQLStore) QueuedLogFiles(ctx context.Context, collection string) ([]domain.LogFile, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, collection, full_path, created_at, size, server, year_month_day, status
		 FROM control_log_file
		 WHERE collection = ? AND status = ?
		 ORDER BY year_month_day`,
		collection, int(domain.LogFileQueue))
	if err != nil {
		return nil, fmt.Errorf("failed to list queued log files: %w", err)
	}
	defer rows.Close()

	var files []domain.LogFile
	for rows.Next() {
		lf, err := scanLogFile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan log file: %w", err)
		}
		files = append(files, *lf)
	}

	return files, rows.Err()
}

// UnfinishedFileCount counts a date's files not yet LOADED
func (s *MySQLStore) UnfinishedFileCount(ctx context.Context, collection string, day time.Time) (int, error) {
	var count int

	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM control_log_file
		 WHERE collection = ? AND year_month_day = ? AND status NOT IN (?, ?)`,
		collection,
		domain.Day(day).Format(domain.DayFormat),
		int(domain.LogFileLoaded), int(domain.LogFileInvalidated),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count unfinished files: %w", err)
	}

	return count, nil
}

// DateState fetches the status row for one (collection, date)
func (s *MySQLStore) DateState(ctx context.Context, collection string, day time.Time) (*domain.DateState, error) {
	var status int
	var updatedAt string

	err := s.db.QueryRowContext(ctx,
		`SELECT status, updated_at FROM control_date_status
		 WHERE collection = ? AND year_month_day = ?`,
		collection, domain.Day(day).Format(domain.DayFormat),
	).Scan(&status, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get date status: %w", err)
	}

	parsed, err := time.Parse("2006-01-02 15:04:05", updatedAt)
	if err != nil {
		return nil, fmt.Errorf("invalid updated_at: %w", err)
	}

	return &domain.DateState{
		Collection: collection,
		Date:       domain.Day(day),
		Status:     domain.DateStatus(status),
		UpdatedAt:  parsed,
	}, nil
}

// SetDateStatus upserts the status of one (collection, date)
func (s *MySQLStore) SetDateStatus(ctx context.Context, collection string, day time.Time, status domain.DateStatus) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO control_date_status (collection, year_month_day, status, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON DUPLICATE KEY UPDATE status = VALUES(status), updated_at = VALUES(updated_at)`,
		collection,
		domain.Day(day).Format(domain.DayFormat),
		int(status),
		time.Now().UTC().Format("2006-01-02 15:04:05"),
	)
	if err != nil {
		return fmt.Errorf("failed to set date status: %w", err)
	}

	return nil
}

// TransitionDate advances a date with one conditional UPDATE; false
// means the row was not at the expected stage.
func (s *MySQLStore) TransitionDate(ctx context.Context, collection string, day time.Time, expected, next domain.DateStatus) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE control_date_status SET status = ?, updated_at = ?
		 WHERE collection = ? AND year_month_day = ? AND status = ?`,
		int(next),
		time.Now().UTC().Format("2006-01-02 15:04:05"),
		collection,
		domain.Day(day).Format(domain.DayFormat),
		int(expected),
	)
	if err != nil {
		return false, fmt.Errorf("failed to transition date status: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}

	return affected == 1, nil
}

// DatesAtStatus lists the dates at one status for a collection
func (s *MySQLStore) DatesAtStatus(ctx context.Context, collection string, status domain.DateStatus) ([]time.Time, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT year_month_day FROM control_date_status
		 WHERE collection = ? AND status = ?
		 ORDER BY year_month_day`,
		collection, int(status))
	if err != nil {
		return nil, fmt.Errorf("failed to list dates at status: %w", err)
	}
	defer rows.Close()

	var dates []time.Time
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan date: %w", err)
		}

		day, err := time.Parse(domain.DayFormat, raw)
		if err != nil {
			return nil, fmt.Errorf("invalid date %q: %w", raw, err)
		}
		dates = append(dates, day)
	}

	return dates, rows.Err()
}

// Lock takes a named MySQL advisory lock (GET_LOCK), serializing work
// on a date across independent pipeline runs. The lock lives on one
// pinned connection, since RELEASE_LOCK through a different pooled
// connection would not release it.
func (s *MySQLStore) Lock(ctx context.Context, key string) (bool, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to pin connection for lock %s: %w", key, err)
	}

	var res sql.NullInt64
	if err := conn.QueryRowContext(ctx, "SELECT GET_LOCK(?, 0)", key).Scan(&res); err != nil {
		conn.Close()
		return false, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}
	if !res.Valid || res.Int64 != 1 {
		conn.Close()
		return false, nil
	}

	s.mu.Lock()
	s.lockConns[key] = conn
	s.mu.Unlock()

	return true, nil
}

// Unlock releases a named advisory lock on the connection that holds it
func (s *MySQLStore) Unlock(ctx context.Context, key string) error {
	s.mu.Lock()
	conn, ok := s.lockConns[key]
	delete(s.lockConns, key)
	s.mu.Unlock()

	if !ok {
		return nil
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "SELECT RELEASE_LOCK(?)", key); err != nil {
		return fmt.Errorf("failed to release lock %s: %w", key, err)
	}
	return nil
}

// Close closes the connection pool
func (s *MySQLStore) Close() error {
	log.Info().Msg("Closing MySQL control store")
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLogFile(row rowScanner) (*domain.LogFile, error) {
	var lf domain.LogFile
	var createdAt, ymd string
	var status int

	if err := row.Scan(&lf.ID, &lf.Collection, &lf.Path, &createdAt, &lf.Size, &lf.Server, &ymd, &status); err != nil {
		return nil, err
	}

	parsedCreated, err := time.Parse("2006-01-02 15:04:05", createdAt)
	if err != nil {
		return nil, fmt.Errorf("invalid created_at: %w", err)
	}
	parsedDate, err := time.Parse(domain.DayFormat, ymd)
	if err != nil {
		return nil, fmt.Errorf("invalid year_month_day: %w", err)
	}

	lf.CreatedAt = parsedCreated
	lf.Date = parsedDate
	lf.Status = domain.LogFileStatus(status)
	return &lf, nil
}
