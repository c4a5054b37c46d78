package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"curtailment-alerts/internal/alerting"
	"curtailment-alerts/internal/artifact"
	"curtailment-alerts/internal/config"
	"curtailment-alerts/internal/dedupe"
	"curtailment-alerts/internal/evaluate"
	"curtailment-alerts/internal/portal"
	"curtailment-alerts/internal/projection"
	"curtailment-alerts/internal/scheduler"
	"curtailment-alerts/internal/schema"
	"curtailment-alerts/internal/storage"
)

// Service orchestrates one resolution → normalization → alerting pass per poll.
type Service struct {
	scheduler  *scheduler.Scheduler
	portal     portal.Client
	resolver   *artifact.Resolver
	normalizer *schema.Normalizer
	projector  *projection.Projector
	ledger     storage.NotificationLedger
	notifier   alerting.Notifier
	logger     zerolog.Logger

	threshold     decimal.Decimal
	comparator    evaluate.Comparator
	window        evaluate.WindowPolicy
	timezoneLabel string
	sheetLabel    string
	keyMode       dedupe.Mode
	formatHint    string

	locker  storage.AdvisoryLocker
	lockKey int64
}

// New constructs the watcher service.
func New(cfg *config.Config, sched *scheduler.Scheduler, portalClient portal.Client, ledger storage.NotificationLedger, notifier alerting.Notifier, logger zerolog.Logger) *Service {
	window := evaluate.WindowPolicy{
		Mode:      evaluate.WindowMode(cfg.Pipeline.Window.Mode),
		Rows:      cfg.Pipeline.Window.Rows,
		Lookahead: cfg.Pipeline.Window.Lookahead,
	}

	keyMode := dedupe.ModeContentAddressed
	if cfg.Pipeline.DedupeBypass {
		keyMode = dedupe.ModeBypassUnique
	}

	var loc *time.Location
	if cfg.Pipeline.TimezoneLabel != "" {
		if parsed, err := time.LoadLocation(cfg.Pipeline.TimezoneLabel); err == nil {
			loc = parsed
		}
	}

	var locker storage.AdvisoryLocker
	if l, ok := ledger.(storage.AdvisoryLocker); ok {
		locker = l
	}

	return &Service{
		scheduler:     sched,
		portal:        portalClient,
		resolver:      artifact.NewResolver(artifact.Options{DisableTimestampParse: cfg.Portal.DisableTimestampParse}, logger),
		normalizer:    schema.NewNormalizer(logger),
		projector:     projection.New(loc),
		ledger:        ledger,
		notifier:      notifier,
		logger:        logger.With().Str("component", "service").Logger(),
		threshold:     decimal.NewFromFloat(cfg.Pipeline.Threshold),
		comparator:    evaluate.Comparator(cfg.Pipeline.Comparator),
		window:        window,
		timezoneLabel: cfg.Pipeline.TimezoneLabel,
		sheetLabel:    cfg.Pipeline.SheetLabel,
		keyMode:       keyMode,
		formatHint:    cfg.Portal.Format,
		locker:        locker,
		lockKey:       cfg.Scheduler.AdvisoryLockKey,
	}
}

// Run begins the aligned polling loop.
func (s *Service) Run(ctx context.Context) error {
	if s.scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	return s.scheduler.Run(ctx, s.ProcessPoll)
}

// ProcessPoll 执行单次轮询。
func (s *Service) ProcessPoll(ctx context.Context, pollAt time.Time) error {
	unlock, proceed, err := s.acquireLock(ctx)
	if err != nil {
		return err
	}
	if !proceed {
		s.logger.Debug().Time("poll_at", pollAt).Msg("skip poll because advisory lock held elsewhere")
		return nil
	}
	if unlock != nil {
		defer unlock()
	}

	return s.executePoll(ctx, pollAt)
}

func (s *Service) executePoll(ctx context.Context, pollAt time.Time) error {
	descriptors, err := s.portal.ListArtifacts(ctx)
	if err != nil {
		return fmt.Errorf("list portal artifacts: %w", err)
	}

	sel, err := s.resolver.Resolve(descriptors)
	if err != nil {
		s.reportFailure(ctx, "resolve", err, "", "")
		return fmt.Errorf("resolve artifact: %w", err)
	}

	art, err := s.portal.Fetch(ctx, sel.Descriptor)
	if err != nil {
		s.reportFailure(ctx, "fetch", err, sel.Descriptor.DisplayText, sel.Descriptor.BytesRef)
		return fmt.Errorf("fetch artifact: %w", err)
	}

	return s.deliverArtifact(ctx, pollAt, art, sel)
}

// Deliver pushes a pre-fetched artifact through the normalization and
// alerting stages. Used by the poll loop and the delivery-path test command.
func (s *Service) Deliver(ctx context.Context, now time.Time, art portal.Artifact) error {
	sel := artifact.Selection{
		Descriptor: artifact.Descriptor{DisplayText: art.FileName},
		Strategy:   artifact.StrategyFallbackLast,
	}
	return s.deliverArtifact(ctx, now, art, sel)
}

func (s *Service) deliverArtifact(ctx context.Context, now time.Time, art portal.Artifact, sel artifact.Selection) error {
	rows, err := s.normalizer.Normalize(art.Bytes, DetectFormat(s.formatHint, art.FileName))
	if err != nil {
		s.reportFailure(ctx, "normalize", err, art.FileName, sel.Descriptor.BytesRef)
		return fmt.Errorf("normalize artifact: %w", err)
	}

	series := s.projector.Project(rows)
	result := evaluate.Evaluate(series, now, s.window, s.threshold, s.comparator)
	key := dedupe.BuildKey(art.Bytes, s.keyMode)

	if s.ledger != nil && s.keyMode == dedupe.ModeContentAddressed {
		seen, err := s.ledger.SeenKey(ctx, key)
		if err != nil {
			s.logger.Error().Err(err).Msg("ledger lookup failed; delivering anyway")
		} else if seen {
			s.logger.Info().
				Str("idempotency_key", key).
				Str("file_name", art.FileName).
				Msg("unchanged artifact already notified; skipping delivery")
			return nil
		}
	}

	payload := alerting.Payload{
		IdempotencyKey: key,
		FileName:       art.FileName,
		Threshold:      s.threshold.InexactFloat64(),
		TimezoneLabel:  s.timezoneLabel,
		SheetLabel:     s.sheetLabel,
		GeneratedAtUTC: now.UTC(),
		WindowStartUTC: result.WindowStart,
		WindowEndUTC:   result.WindowEnd,
		RowsEvaluated:  len(result.Considered),
		FlaggedCount:   len(result.Flagged),
		Flagged:        alerting.IntervalsPayload(result.Flagged),
		RawIntervals:   alerting.IntervalsPayload(series),
		ReportText:     result.Report(),
	}

	if err := s.notifier.Notify(ctx, payload); err != nil {
		return fmt.Errorf("deliver notification: %w", err)
	}

	s.logger.Info().
		Str("strategy", string(sel.Strategy)).
		Str("file_name", art.FileName).
		Int("rows_evaluated", payload.RowsEvaluated).
		Int("flagged_count", payload.FlaggedCount).
		Str("flagged", result.InlineFlagged()).
		Msg("notification delivered")

	if s.ledger != nil {
		rec := storage.DeliveryRecord{
			IdempotencyKey: key,
			FileName:       art.FileName,
			Strategy:       string(sel.Strategy),
			RowsEvaluated:  payload.RowsEvaluated,
			FlaggedCount:   payload.FlaggedCount,
		}
		if err := s.ledger.RecordDelivery(ctx, rec); err != nil {
			s.logger.Error().Err(err).Msg("failed to persist delivery record")
		}
	}

	return nil
}

// reportFailure sends the reduced diagnostic payload. Delivery of the error
// document is best effort; the original failure still aborts the run.
func (s *Service) reportFailure(ctx context.Context, stage string, cause error, fileName, portalRef string) {
	if s.notifier == nil {
		return
	}
	payload := alerting.ErrorPayload{
		Error:           alerting.ErrorDetail{Message: cause.Error(), Stage: stage},
		FileName:        fileName,
		PortalReference: portalRef,
	}
	if err := s.notifier.NotifyError(ctx, payload); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error().Err(err).Str("stage", stage).Msg("failed to deliver error payload")
	}
}

func (s *Service) acquireLock(ctx context.Context) (func(), bool, error) {
	if s.lockKey == 0 || s.locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := s.locker.TryAdvisoryLock(ctx, s.lockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}

// DetectFormat maps the configured hint and the resolved file name onto a
// concrete tabular format. Spreadsheet extensions win under "auto"; anything
// else is treated as delimited text.
func DetectFormat(hint, fileName string) schema.Format {
	switch hint {
	case "delimited":
		return schema.FormatDelimited
	case "spreadsheet":
		return schema.FormatSpreadsheet
	}
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".xlsx", ".xlsm":
		return schema.FormatSpreadsheet
	default:
		return schema.FormatDelimited
	}
}
