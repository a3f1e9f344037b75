package logparser

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pitangainnovare/scielo-usage-counter/internal/domain"
)

// Stats accumulates running counters for one parse run. It is persisted
// as a two-row tab-separated summary artifact at end of run.
type Stats struct {
	IgnoredStaticResources      int64
	IgnoredBot                  int64
	IgnoredInvalidMethod        int64
	IgnoredInvalidUserAgent     int64
	IgnoredInvalidClientName    int64
	IgnoredInvalidClientVersion int64
	IgnoredInvalidGeolocation   int64
	IgnoredInvalidLocalDatetime int64
	IgnoredHTTPRedirects        int64
	IgnoredHTTPErrors           int64
	TotalIgnoredLines           int64
	TotalImportedLines          int64
	LinesParsed                 int64
	TotalTime                   time.Duration
}

// CountReason increments the counter matching one rejection reason
func (s *Stats) CountReason(r domain.RejectionReason) {
	switch r {
	case domain.ReasonStaticResource:
		s.IgnoredStaticResources++
	case domain.ReasonBot:
		s.IgnoredBot++
	case domain.ReasonInvalidMethod:
		s.IgnoredInvalidMethod++
	case domain.ReasonInvalidUserAgent:
		s.IgnoredInvalidUserAgent++
	case domain.ReasonInvalidClientName:
		s.IgnoredInvalidClientName++
	case domain.ReasonInvalidClientVersion:
		s.IgnoredInvalidClientVersion++
	case domain.ReasonInvalidGeolocation:
		s.IgnoredInvalidGeolocation++
	case domain.ReasonInvalidLocalDatetime:
		s.IgnoredInvalidLocalDatetime++
	case domain.ReasonHTTPRedirect:
		s.IgnoredHTTPRedirects++
	case domain.ReasonHTTPError:
		s.IgnoredHTTPErrors++
	}
}

// Rows returns the summary key row and value row, in the fixed artifact
// column order.
func (s *Stats) Rows() ([]string, []string) {
	keys := []string{
		"ignored_lines_static_resources",
		"ignored_lines_bot",
		"ignored_lines_invalid_method",
		"ignored_lines_invalid_user_agent",
		"ignored_lines_invalid_client_name",
		"ignored_lines_invalid_client_version",
		"ignored_lines_invalid_geolocation",
		"ignored_lines_invalid_local_datetime",
		"ignored_lines_http_redirects",
		"ignored_lines_http_errors",
		"total_ignored_lines",
		"total_imported_lines",
		"lines_parsed",
		"total_time",
	}

	values := []string{
		fmt.Sprintf("%d", s.IgnoredStaticResources),
		fmt.Sprintf("%d", s.IgnoredBot),
		fmt.Sprintf("%d", s.IgnoredInvalidMethod),
		fmt.Sprintf("%d", s.IgnoredInvalidUserAgent),
		fmt.Sprintf("%d", s.IgnoredInvalidClientName),
		fmt.Sprintf("%d", s.IgnoredInvalidClientVersion),
		fmt.Sprintf("%d", s.IgnoredInvalidGeolocation),
		fmt.Sprintf("%d", s.IgnoredInvalidLocalDatetime),
		fmt.Sprintf("%d", s.IgnoredHTTPRedirects),
		fmt.Sprintf("%d", s.IgnoredHTTPErrors),
		fmt.Sprintf("%d", s.TotalIgnoredLines),
		fmt.Sprintf("%d", s.TotalImportedLines),
		fmt.Sprintf("%d", s.LinesParsed),
		fmt.Sprintf("%.6f", s.TotalTime.Seconds()),
	}

	return keys, values
}

// Save writes the summary artifact to path, tab-separated
func (s *Stats) Save(path string) error {
	keys, values := s.Rows()

	content := strings.Join(keys, "\t") + "\n" + strings.Join(values, "\t") + "\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write stats summary: %w", err)
	}

	return nil
}
