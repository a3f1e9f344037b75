package logparser

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pitangainnovare/scielo-usage-counter/internal/device"
	"github.com/pitangainnovare/scielo-usage-counter/internal/domain"
	"github.com/pitangainnovare/scielo-usage-counter/internal/fileutil"
	"github.com/pitangainnovare/scielo-usage-counter/internal/geo"
	"github.com/pitangainnovare/scielo-usage-counter/internal/robots"
)

// maxLineSize bounds a single log line; anything longer is hostile input
const maxLineSize = 1024 * 1024

// Parser turns one raw access log into a stream of normalized usage
// records, counting every accepted and rejected line. One Parser serves
// one run; stats reset with a new Parser.
type Parser struct {
	matcher   *Matcher
	validator *Validator
	stats     *Stats
}

// New builds a parser around the injected collaborators
func New(r *robots.Matcher, c device.Classifier, g *geo.Lookup, countryOnly bool) *Parser {
	return &Parser{
		matcher:   NewMatcher(),
		validator: NewValidator(r, c, g, countryOnly),
		stats:     &Stats{},
	}
}

// Stats exposes the running counters of this parse run
func (p *Parser) Stats() *Stats {
	return p.stats
}

// ParseLine evaluates one raw line. It returns the normalized record
// and true when the line qualifies; a rejected or unmatched line only
// moves counters.
func (p *Parser) ParseLine(line string) (domain.Record, bool) {
	p.stats.LinesParsed++

	fields, ok := p.matcher.Match(strings.TrimSpace(line))
	if !ok {
		p.stats.TotalIgnoredLines++
		return domain.Record{}, false
	}

	hit, reasons, valid := p.validator.Validate(fields, line)
	for _, r := range reasons {
		p.stats.CountReason(r)
	}

	if !valid {
		p.stats.TotalIgnoredLines++
		return domain.Record{}, false
	}

	p.stats.TotalImportedLines++
	return hit.Record(), true
}

// ParseFile streams the log at path through the matcher and validator,
// invoking emit for every accepted record in input order. An unsupported
// file encoding is fatal for the file and surfaces to the caller; the
// file should then be invalidated, not retried. A line over maxLineSize
// is counted as ignored, never aborting the file.
func (p *Parser) ParseFile(path string, emit func(domain.Record) error) error {
	start := time.Now()

	f, err := fileutil.OpenLogFile(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer f.Close()

	reader := bufio.NewReaderSize(f, 64*1024)

	for {
		line, tooLong, err := readFullLine(reader)
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("failed to read log file %s: %w", path, err)
		}

		atEOF := errors.Is(err, io.EOF)
		if atEOF && line == "" && !tooLong {
			break
		}

		if tooLong {
			p.stats.LinesParsed++
			p.stats.TotalIgnoredLines++
			log.Warn().Str("file", path).Msg("Ignoring oversized log line")
		} else if record, ok := p.ParseLine(line); ok {
			if err := emit(record); err != nil {
				return fmt.Errorf("failed to emit record: %w", err)
			}
		}

		if atEOF {
			break
		}
	}

	p.stats.TotalTime = time.Since(start)

	log.Info().
		Str("file", path).
		Int64("lines_parsed", p.stats.LinesParsed).
		Int64("imported", p.stats.TotalImportedLines).
		Int64("ignored", p.stats.TotalIgnoredLines).
		Dur("took", p.stats.TotalTime).
		Msg("Log file parsed")

	return nil
}

// readFullLine reads one line of any length, keeping at most
// maxLineSize bytes of it. The flag reports a line that exceeded the
// cap; its content is discarded.
func readFullLine(r *bufio.Reader) (string, bool, error) {
	var b strings.Builder

	for {
		chunk, err := r.ReadSlice('\n')
		if b.Len() <= maxLineSize {
			b.Write(chunk)
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}

		line := strings.TrimRight(b.String(), "\r\n")
		if len(line) > maxLineSize {
			return "", true, err
		}
		return line, false, err
	}
}
