package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/pitangainnovare/scielo-usage-counter/internal/config"
	"github.com/pitangainnovare/scielo-usage-counter/internal/device"
	"github.com/pitangainnovare/scielo-usage-counter/internal/domain"
	"github.com/pitangainnovare/scielo-usage-counter/internal/fileutil"
	"github.com/pitangainnovare/scielo-usage-counter/internal/geo"
	"github.com/pitangainnovare/scielo-usage-counter/internal/logparser"
	"github.com/pitangainnovare/scielo-usage-counter/internal/pretable"
	"github.com/pitangainnovare/scielo-usage-counter/internal/robots"
	"github.com/pitangainnovare/scielo-usage-counter/internal/state"
)

// StatsMirror receives the per-file parse summary for out-of-band
// analytics. Implementations must tolerate being called once per file.
type StatsMirror interface {
	MirrorRunStats(ctx context.Context, logFileID string, stats *logparser.Stats) error
}

// Controller drives the staged pipeline for one collection: parse
// queued log files into unsorted day buckets, mark window-ready dates
// for extraction, then merge and promote their pretables.
type Controller struct {
	cfg        *config.Config
	store      state.Store
	locker     state.Locker
	robots     *robots.Matcher
	classifier device.Classifier
	geoLookup  *geo.Lookup
	merger     *pretable.Merger
	mirror     StatsMirror
	tracer     trace.Tracer
}

// NewController wires the pipeline dependencies. mirror may be nil.
func NewController(cfg *config.Config, store state.Store, locker state.Locker,
	r *robots.Matcher, c device.Classifier, g *geo.Lookup, mirror StatsMirror) (*Controller, error) {

	merger, err := pretable.NewMerger(cfg.UnsortedDir, cfg.PretableDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create pretable merger: %w", err)
	}

	if err := fileutil.EnsureDir(cfg.SummaryDir); err != nil {
		return nil, fmt.Errorf("failed to create summary directory: %w", err)
	}

	return &Controller{
		cfg:        cfg,
		store:      store,
		locker:     locker,
		robots:     r,
		classifier: c,
		geoLookup:  g,
		merger:     merger,
		mirror:     mirror,
		tracer:     otel.Tracer("pipeline"),
	}, nil
}

// IngestQueuedFiles parses every QUEUE log file of the collection into
// unsorted day buckets. Each file's status is settled exactly once per
// attempt: LOADED on success, INVALIDATED when the content type is not
// a supported log encoding. Other errors leave the file in QUEUE for a
// later run; dedup on merge makes the retry safe.
func (ctl *Controller) IngestQueuedFiles(ctx context.Context) error {
	ctx, span := ctl.tracer.Start(ctx, "pipeline.IngestQueuedFiles")
	defer span.End()

	files, err := ctl.store.QueuedLogFiles(ctx, ctl.cfg.Collection)
	if err != nil {
		return fmt.Errorf("failed to list queued log files: %w", err)
	}

	if len(files) == 0 {
		log.Info().Str("collection", ctl.cfg.Collection).Msg("No queued log files")
		return nil
	}

	span.SetAttributes(attribute.Int("files.queued", len(files)))

	for _, lf := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := ctl.ingestFile(ctx, lf); err != nil {
			return err
		}
	}

	return nil
}

func (ctl *Controller) ingestFile(ctx context.Context, lf domain.LogFile) error {
	ctx, span := ctl.tracer.Start(ctx, "pipeline.ingestFile",
		trace.WithAttributes(attribute.String("logfile.path", lf.Path)))
	defer span.End()

	log.Info().
		Str("collection", lf.Collection).
		Str("path", lf.Path).
		Msg("Parsing log file")

	if err := ctl.markDatePartial(ctx, lf.Date); err != nil {
		return err
	}

	writer, err := pretable.NewWriter(ctl.cfg.UnsortedDir)
	if err != nil {
		return fmt.Errorf("failed to open unsorted bucket writer: %w", err)
	}

	parser := logparser.New(ctl.robots, ctl.classifier, ctl.geoLookup, ctl.cfg.CountryOnly)
	parseErr := parser.ParseFile(lf.Path, writer.Append)

	if closeErr := writer.Close(); closeErr != nil && parseErr == nil {
		parseErr = closeErr
	}

	if parseErr != nil {
		if errors.Is(parseErr, fileutil.ErrUnsupportedMime) {
			log.Warn().
				Str("path", lf.Path).
				Msg("Unsupported log file content, invalidating")
			return ctl.store.SetLogFileStatus(ctx, lf.ID, domain.LogFileInvalidated)
		}
		return fmt.Errorf("failed to parse %s: %w", lf.Path, parseErr)
	}

	if err := ctl.saveSummary(ctx, lf, parser.Stats()); err != nil {
		return err
	}

	if err := ctl.store.SetLogFileStatus(ctx, lf.ID, domain.LogFileLoaded); err != nil {
		return err
	}

	return ctl.settleDate(ctx, lf.Date)
}

// markDatePartial records the first activity for a date and flags it
// as in flight while its files are being parsed. A date past PARTIAL is
// left alone; so is one being merged right now, or the merge would log
// a lost transition and the date would need a fresh cycle.
func (ctl *Controller) markDatePartial(ctx context.Context, day time.Time) error {
	ds, err := ctl.store.DateState(ctx, ctl.cfg.Collection, day)
	if err != nil {
		return err
	}
	if ds != nil && (ds.Status > domain.DatePartial || ds.Status == domain.DateExtractingPretable) {
		return nil
	}
	return ctl.store.SetDateStatus(ctx, ctl.cfg.Collection, day, domain.DatePartial)
}

// settleDate promotes a date to LOADED once none of its registered
// files remain unparsed.
func (ctl *Controller) settleDate(ctx context.Context, day time.Time) error {
	pending, err := ctl.store.UnfinishedFileCount(ctx, ctl.cfg.Collection, day)
	if err != nil {
		return err
	}
	if pending > 0 {
		return nil
	}

	ok, err := ctl.store.TransitionDate(ctx, ctl.cfg.Collection, day,
		domain.DatePartial, domain.DateLoaded)
	if err != nil {
		return err
	}
	if ok {
		log.Info().
			Str("collection", ctl.cfg.Collection).
			Str("date", domain.Day(day).Format(domain.DayFormat)).
			Msg("Date fully loaded")
	}
	return nil
}

func (ctl *Controller) saveSummary(ctx context.Context, lf domain.LogFile, stats *logparser.Stats) error {
	path := filepath.Join(ctl.cfg.SummaryDir, filepath.Base(lf.Path)+".summary.tsv")
	if err := stats.Save(path); err != nil {
		return fmt.Errorf("failed to save parse summary: %w", err)
	}

	if ctl.mirror != nil {
		if err := ctl.mirror.MirrorRunStats(ctx, lf.ID, stats); err != nil {
			log.Error().Err(err).Str("id", lf.ID).Msg("Failed to mirror parse summary")
		}
	}
	return nil
}

// ExtractPretables marks every window-ready LOADED date as
// EXTRACTING_PRETABLE. The conditional transition makes the claim safe
// against a concurrent run of the same collection.
func (ctl *Controller) ExtractPretables(ctx context.Context) ([]time.Time, error) {
	ctx, span := ctl.tracer.Start(ctx, "pipeline.ExtractPretables")
	defer span.End()

	statuses, err := ctl.dateStatusMap(ctx)
	if err != nil {
		return nil, err
	}

	var claimed []time.Time
	for _, day := range EligibleDates(statuses, domain.DateLoaded) {
		ok, err := ctl.store.TransitionDate(ctx, ctl.cfg.Collection, day,
			domain.DateLoaded, domain.DateExtractingPretable)
		if err != nil {
			return claimed, err
		}
		if !ok {
			log.Debug().
				Str("date", day.Format(domain.DayFormat)).
				Msg("Date already claimed by another run")
			continue
		}
		claimed = append(claimed, day)
	}

	span.SetAttributes(attribute.Int("dates.claimed", len(claimed)))
	return claimed, nil
}

// SortPretables merges, deduplicates and sorts the pretable of every
// EXTRACTING_PRETABLE date, then advances it to PRETABLE. Each merge
// runs under a per-date advisory lock.
func (ctl *Controller) SortPretables(ctx context.Context) error {
	ctx, span := ctl.tracer.Start(ctx, "pipeline.SortPretables")
	defer span.End()

	dates, err := ctl.store.DatesAtStatus(ctx, ctl.cfg.Collection, domain.DateExtractingPretable)
	if err != nil {
		return err
	}

	for _, day := range dates {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := ctl.sortDate(ctx, day); err != nil {
			return err
		}
	}

	return nil
}

func (ctl *Controller) sortDate(ctx context.Context, day time.Time) error {
	dayKey := domain.Day(day).Format(domain.DayFormat)

	ctx, span := ctl.tracer.Start(ctx, "pipeline.sortDate",
		trace.WithAttributes(attribute.String("date", dayKey)))
	defer span.End()

	lockKey := ctl.cfg.Collection + "|" + dayKey
	acquired, err := ctl.locker.Lock(ctx, lockKey)
	if err != nil {
		return err
	}
	if !acquired {
		log.Info().Str("date", dayKey).Msg("Pretable locked by another run, skipping")
		return nil
	}
	defer func() {
		if err := ctl.locker.Unlock(ctx, lockKey); err != nil {
			log.Error().Err(err).Str("date", dayKey).Msg("Failed to release pretable lock")
		}
	}()

	if err := ctl.merger.Promote(dayKey); err != nil {
		return fmt.Errorf("failed to promote pretable for %s: %w", dayKey, err)
	}

	ok, err := ctl.store.TransitionDate(ctx, ctl.cfg.Collection, day,
		domain.DateExtractingPretable, domain.DatePretable)
	if err != nil {
		return err
	}
	if !ok {
		log.Warn().Str("date", dayKey).Msg("Date moved underneath the sorter")
		return nil
	}

	log.Info().
		Str("collection", ctl.cfg.Collection).
		Str("date", dayKey).
		Msg("Pretable promoted")

	return nil
}

// dateStatusMap assembles the full per-date picture the readiness
// window needs: every stage from PARTIAL onward plus the extracting
// marker.
func (ctl *Controller) dateStatusMap(ctx context.Context) (map[time.Time]domain.DateStatus, error) {
	stages := []domain.DateStatus{
		domain.DatePartial,
		domain.DateLoaded,
		domain.DateExtractingPretable,
		domain.DatePretable,
		domain.DateComputed,
		domain.DateCompleted,
	}

	statuses := make(map[time.Time]domain.DateStatus)
	for _, stage := range stages {
		dates, err := ctl.store.DatesAtStatus(ctx, ctl.cfg.Collection, stage)
		if err != nil {
			return nil, fmt.Errorf("failed to list dates at status %d: %w", stage, err)
		}
		for _, day := range dates {
			statuses[domain.Day(day)] = stage
		}
	}

	return statuses, nil
}
