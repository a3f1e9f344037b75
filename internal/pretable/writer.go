package pretable

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/pitangainnovare/scielo-usage-counter/internal/domain"
	"github.com/pitangainnovare/scielo-usage-counter/internal/fileutil"
)

const (
	// UnsortedPosfix marks a day bucket that has not been promoted yet
	UnsortedPosfix = "unsorted"

	// Extension of every pretable file
	Extension = "tsv"
)

// Writer appends normalized records into per-day unsorted bucket files.
// One handle per day is created lazily and kept open for the duration of
// one source file's processing; Close releases every handle, including
// on early-error exits.
type Writer struct {
	dir   string
	files map[string]*os.File
}

// NewWriter prepares a bucket writer rooted at dir
func NewWriter(dir string) (*Writer, error) {
	if err := fileutil.EnsureDir(dir); err != nil {
		return nil, fmt.Errorf("failed to create unsorted pretable directory: %w", err)
	}

	return &Writer{
		dir:   dir,
		files: make(map[string]*os.File),
	}, nil
}

// Append writes one record to the bucket of its calendar day. The
// header row is written once, when the bucket file is first created.
func (w *Writer) Append(record domain.Record) error {
	day := record.Day()

	f, ok := w.files[day]
	if !ok {
		var err error
		f, err = w.openBucket(day)
		if err != nil {
			return err
		}
		w.files[day] = f
	}

	if _, err := f.WriteString(record.TSV() + "\n"); err != nil {
		return fmt.Errorf("failed to append record for %s: %w", day, err)
	}

	return nil
}

// Days lists the calendar days touched by this run, sorted
func (w *Writer) Days() []string {
	days := make([]string, 0, len(w.files))
	for day := range w.files {
		days = append(days, day)
	}
	sort.Strings(days)
	return days
}

// Close closes every open bucket handle, returning the first error
func (w *Writer) Close() error {
	var firstErr error

	for day, f := range w.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close bucket for %s: %w", day, err)
		}
		delete(w.files, day)
	}

	return firstErr
}

func (w *Writer) openBucket(day string) (*os.File, error) {
	path := fileutil.PretablePath(w.dir, day, UnsortedPosfix, Extension)

	_, statErr := os.Stat(path)
	created := os.IsNotExist(statErr)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open bucket for %s: %w", day, err)
	}

	if created {
		if _, err := f.WriteString(strings.Join(domain.PretableHeader, "\t") + "\n"); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to write bucket header for %s: %w", day, err)
		}
		log.Info().Str("path", path).Msg("Created unsorted pretable bucket")
	}

	return f, nil
}
