package fetch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pitangainnovare/scielo-usage-counter/internal/fileutil"
)

// geoMapURLTemplate points at the monthly db-ip.com city-level free
// database, keyed by yyyy-mm.
const geoMapURLTemplate = "https://download.db-ip.com/free/dbip-city-lite-%s.mmdb.gz"

// GeoMap downloads the geolocation database for yearMonth ("2006-01";
// empty means the current month) and installs the decompressed mmdb at
// path. The download lands next to the target and is promoted with a
// rename, so a half-written file never replaces a working map.
func GeoMap(ctx context.Context, yearMonth, path string) error {
	if yearMonth == "" {
		yearMonth = time.Now().UTC().Format("2006-01")
	}
	if !validYearMonth(yearMonth) {
		return fmt.Errorf("invalid year-month %q, want yyyy-mm", yearMonth)
	}

	url := fmt.Sprintf(geoMapURLTemplate, yearMonth)

	body, err := download(ctx, url)
	if err != nil {
		return fmt.Errorf("failed to download geolocation map: %w", err)
	}

	if err := fileutil.EnsureDir(filepath.Dir(path)); err != nil {
		return err
	}

	gzPath := path + ".gz"
	if err := os.WriteFile(gzPath, body, 0644); err != nil {
		return fmt.Errorf("failed to write geolocation archive: %w", err)
	}
	defer os.Remove(gzPath)

	tmpPath := path + ".download"
	if err := fileutil.ExtractGzip(gzPath, tmpPath); err != nil {
		return fmt.Errorf("failed to extract geolocation map: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to install geolocation map: %w", err)
	}

	log.Info().
		Str("year_month", yearMonth).
		Str("path", path).
		Msg("Geolocation map updated")

	return nil
}

func validYearMonth(s string) bool {
	if _, err := time.Parse("2006-01", s); err != nil {
		return false
	}
	return strings.Count(s, "-") == 1
}
