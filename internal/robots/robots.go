package robots

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Rule is one bot pattern entry as published in the COUNTER-Robots list
type Rule struct {
	Pattern     string `json:"pattern" yaml:"pattern"`
	LastChanged string `json:"last_changed,omitempty" yaml:"last_changed,omitempty"`
}

// Matcher tests user agents against a set of compiled bot patterns.
// All patterns are case-insensitive and compiled once at startup.
type Matcher struct {
	patterns []*regexp.Regexp
}

// Load builds a matcher from a pattern file. Plain text files carry one
// regular expression per line; .json and .yaml/.yml files carry a list
// of Rule entries. A missing file yields an empty matcher (never a bot)
// with a warning, so the pipeline still runs.
func Load(path string) (*Matcher, error) {
	if path == "" {
		log.Warn().Msg("No robots list configured, no line will be rejected as bot traffic")
		return &Matcher{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warn().
				Str("robots_path", path).
				Msg("Robots list not found, no line will be rejected as bot traffic")
			return &Matcher{}, nil
		}
		return nil, err
	}

	var rules []Rule
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := sonic.Unmarshal(data, &rules); err != nil {
			return nil, fmt.Errorf("failed to decode robots json: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &rules); err != nil {
			return nil, fmt.Errorf("failed to decode robots yaml: %w", err)
		}
	default:
		scanner := bufio.NewScanner(strings.NewReader(string(data)))
		for scanner.Scan() {
			if p := strings.TrimSpace(scanner.Text()); p != "" {
				rules = append(rules, Rule{Pattern: p})
			}
		}
	}

	return FromPatterns(patternsOf(rules))
}

// FromPatterns compiles an explicit pattern list
func FromPatterns(patterns []string) (*Matcher, error) {
	m := &Matcher{patterns: make([]*regexp.Regexp, 0, len(patterns))}

	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if !strings.HasPrefix(p, "(?i)") {
			p = "(?i)" + p
		}
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("failed to compile robot pattern %q: %w", p, err)
		}
		m.patterns = append(m.patterns, re)
	}

	log.Debug().Int("patterns", len(m.patterns)).Msg("Robot patterns compiled")
	return m, nil
}

// IsBot reports whether ua matches any bot pattern
func (m *Matcher) IsBot(ua string) bool {
	for _, re := range m.patterns {
		if re.MatchString(ua) {
			return true
		}
	}
	return false
}

// Len returns the number of compiled patterns
func (m *Matcher) Len() int {
	return len(m.patterns)
}

func patternsOf(rules []Rule) []string {
	patterns := make([]string, 0, len(rules))
	for _, r := range rules {
		patterns = append(patterns, r.Pattern)
	}
	return patterns
}
