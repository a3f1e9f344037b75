package writer

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/rs/zerolog/log"

	"github.com/pitangainnovare/scielo-usage-counter/internal/logparser"
	"github.com/pitangainnovare/scielo-usage-counter/internal/retry"
)

// ClickHouseMirror copies per-file parse summaries into a ClickHouse
// table so rejection rates can be queried across collections. The
// tab-separated summary artifact on disk stays the source of truth.
type ClickHouseMirror struct {
	conn       clickhouse.Conn
	collection string
	retryCfg   retry.Config
}

// NewClickHouseMirror connects to ClickHouse and verifies the
// connection before returning.
func NewClickHouseMirror(host string, port int, database, collection string) (*ClickHouseMirror, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", host, port)},
		Auth: clickhouse.Auth{
			Database: database,
			Username: "default",
			Password: "",
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}

	retryCfg := retry.DefaultConfig()

	ctx := context.Background()
	if err := retry.Do(ctx, retryCfg, func() error {
		return conn.Ping(ctx)
	}); err != nil {
		return nil, fmt.Errorf("failed to ping clickhouse: %w", err)
	}

	log.Info().
		Str("host", host).
		Int("port", port).
		Str("database", database).
		Msg("Connected to ClickHouse")

	return &ClickHouseMirror{
		conn:       conn,
		collection: collection,
		retryCfg:   retryCfg,
	}, nil
}

// EnsureTable creates the summary table when it does not exist yet
func (m *ClickHouseMirror) EnsureTable(ctx context.Context) error {
	ddl := `CREATE TABLE IF NOT EXISTS parse_summary (
		collection LowCardinality(String),
		log_file_id String,
		recorded_at DateTime,
		ignored_lines_static_resources Int64,
		ignored_lines_bot Int64,
		ignored_lines_invalid_method Int64,
		ignored_lines_invalid_user_agent Int64,
		ignored_lines_invalid_client_name Int64,
		ignored_lines_invalid_client_version Int64,
		ignored_lines_invalid_geolocation Int64,
		ignored_lines_invalid_local_datetime Int64,
		ignored_lines_http_redirects Int64,
		ignored_lines_http_errors Int64,
		total_ignored_lines Int64,
		total_imported_lines Int64,
		lines_parsed Int64,
		total_time_seconds Float64
	) ENGINE = MergeTree()
	ORDER BY (collection, recorded_at)`

	if err := m.conn.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("failed to create parse_summary table: %w", err)
	}

	return nil
}

// MirrorRunStats inserts one parse-run summary row
func (m *ClickHouseMirror) MirrorRunStats(ctx context.Context, logFileID string, stats *logparser.Stats) error {
	return retry.Do(ctx, m.retryCfg, func() error {
		batch, err := m.conn.PrepareBatch(ctx, "INSERT INTO parse_summary")
		if err != nil {
			return fmt.Errorf("failed to prepare batch: %w", err)
		}

		err = batch.Append(
			m.collection,
			logFileID,
			time.Now().UTC(),
			stats.IgnoredStaticResources,
			stats.IgnoredBot,
			stats.IgnoredInvalidMethod,
			stats.IgnoredInvalidUserAgent,
			stats.IgnoredInvalidClientName,
			stats.IgnoredInvalidClientVersion,
			stats.IgnoredInvalidGeolocation,
			stats.IgnoredInvalidLocalDatetime,
			stats.IgnoredHTTPRedirects,
			stats.IgnoredHTTPErrors,
			stats.TotalIgnoredLines,
			stats.TotalImportedLines,
			stats.LinesParsed,
			stats.TotalTime.Seconds(),
		)
		if err != nil {
			return fmt.Errorf("failed to append to batch: %w", err)
		}

		if err := batch.Send(); err != nil {
			return fmt.Errorf("failed to send batch: %w", err)
		}

		log.Debug().
			Str("log_file_id", logFileID).
			Int64("lines_parsed", stats.LinesParsed).
			Int64("imported", stats.TotalImportedLines).
			Msg("Parse summary mirrored to ClickHouse")

		return nil
	})
}

// Close closes the connection
func (m *ClickHouseMirror) Close() error {
	log.Info().Msg("Closing ClickHouse connection")
	return m.conn.Close()
}
