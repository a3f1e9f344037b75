package pipeline

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"regexp"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pitangainnovare/scielo-usage-counter/internal/domain"
	"github.com/pitangainnovare/scielo-usage-counter/internal/state"
)

// logFileDate extracts the calendar day embedded in raw log file names,
// e.g. "2021-05-21_scielo.br.log.gz".
var logFileDate = regexp.MustCompile(`(\d{4}-\d{2}-\d{2})`)

// RegisterDirectory walks dir and queues every log file whose name
// carries a calendar date. Files already registered are skipped, so the
// walk can be re-run as new logs arrive. The parent directory name is
// taken as the origin server.
func (ctl *Controller) RegisterDirectory(ctx context.Context, dir string) (int, error) {
	registered := 0

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		match := logFileDate.FindString(d.Name())
		if match == "" {
			log.Debug().Str("path", path).Msg("Skipping file without a date in its name")
			return nil
		}

		day, err := time.Parse(domain.DayFormat, match)
		if err != nil {
			log.Debug().Str("path", path).Msg("Skipping file with unparseable date")
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		lf := domain.LogFile{
			Collection: ctl.cfg.Collection,
			Path:       path,
			Size:       info.Size(),
			Server:     filepath.Base(filepath.Dir(path)),
			Date:       day,
		}

		if err := ctl.store.RegisterLogFile(ctx, &lf); err != nil {
			if errors.Is(err, state.ErrDuplicatePath) {
				return nil
			}
			return err
		}

		registered++
		log.Info().
			Str("path", path).
			Str("date", match).
			Msg("Log file queued")

		return nil
	})
	if err != nil {
		return registered, err
	}

	log.Info().
		Str("dir", dir).
		Int("registered", registered).
		Msg("Log directory scanned")

	return registered, nil
}
