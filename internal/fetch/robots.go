package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/rs/zerolog/log"

	"github.com/pitangainnovare/scielo-usage-counter/internal/retry"
	"github.com/pitangainnovare/scielo-usage-counter/internal/robots"
)

// DefaultRobotsURL is the COUNTER-maintained bot pattern list
const DefaultRobotsURL = "https://raw.githubusercontent.com/atmire/COUNTER-Robots/master/COUNTER_Robots_list.json"

var httpClient = &http.Client{Timeout: 2 * time.Minute}

// RobotsList downloads the COUNTER robots JSON from url and writes the
// patterns, one per line, to path. The plain-text output is what
// robots.Load consumes at parse time.
func RobotsList(ctx context.Context, url, path string) error {
	if url == "" {
		url = DefaultRobotsURL
	}

	body, err := download(ctx, url)
	if err != nil {
		return fmt.Errorf("failed to download robots list: %w", err)
	}

	var rules []robots.Rule
	if err := sonic.Unmarshal(body, &rules); err != nil {
		return fmt.Errorf("failed to decode robots list: %w", err)
	}
	if len(rules) == 0 {
		return fmt.Errorf("robots list at %s is empty", url)
	}

	var sb strings.Builder
	for _, rule := range rules {
		sb.WriteString(rule.Pattern)
		sb.WriteByte('\n')
	}

	if err := os.WriteFile(path, []byte(sb.String()), 0644); err != nil {
		return fmt.Errorf("failed to write robots list: %w", err)
	}

	log.Info().
		Int("patterns", len(rules)).
		Str("path", path).
		Msg("Robots list updated")

	return nil
}

// download fetches url with the shared retry policy
func download(ctx context.Context, url string) ([]byte, error) {
	return retry.DoWithResult(ctx, retry.DefaultConfig(), func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}

		resp, err := httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
		}

		return io.ReadAll(resp.Body)
	})
}
