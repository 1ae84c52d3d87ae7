package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/kalshibot/internal/domain"
)

// Archiver moves settled journal rows out of Postgres and into object
// storage as newline-delimited JSON, keeping the hot trade journal bounded.
// Rows are deleted from the journal only after the upload succeeded.
type Archiver struct {
	writer    domain.BlobWriter
	trades    domain.TradeStore
	namespace domain.Namespace
	retention time.Duration
	hourUTC   int
	logger    *slog.Logger
}

// ArchiverConfig configures the archive schedule and retention window.
type ArchiverConfig struct {
	// Namespace selects which journal rows are archived.
	Namespace domain.Namespace
	// RetentionDays is how long rows stay in the hot journal before they are
	// eligible for archival.
	RetentionDays int
	// HourUTC is the UTC hour (0-23) at which the daily run starts.
	HourUTC int
}

// NewArchiver creates an Archiver.
func NewArchiver(writer domain.BlobWriter, trades domain.TradeStore, cfg ArchiverConfig, logger *slog.Logger) *Archiver {
	return &Archiver{
		writer:    writer,
		trades:    trades,
		namespace: cfg.Namespace,
		retention: time.Duration(cfg.RetentionDays) * 24 * time.Hour,
		hourUTC:   cfg.HourUTC,
		logger:    logger.With(slog.String("component", "archiver")),
	}
}

// Run executes one archive pass per day at the configured UTC hour until ctx
// is cancelled. Failures are logged and retried on the next scheduled run.
func (a *Archiver) Run(ctx context.Context) error {
	for {
		wait := time.Until(a.nextRun(time.Now().UTC()))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}

		count, err := a.ArchiveOnce(ctx)
		if err != nil {
			a.logger.ErrorContext(ctx, "archive run failed", slog.String("error", err.Error()))
			continue
		}
		a.logger.InfoContext(ctx, "archive run complete", slog.Int64("archived", count))
	}
}

// ArchiveOnce archives every journal row older than the retention window:
// list, serialise to JSONL, upload, and only then delete. Returns the number
// of rows archived.
func (a *Archiver) ArchiveOnce(ctx context.Context) (int64, error) {
	before := time.Now().UTC().Add(-a.retention)

	trades, err := a.trades.ListBefore(ctx, a.namespace, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive query: %w", err)
	}
	if len(trades) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(trades)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive marshal: %w", err)
	}

	key := archiveKey(a.namespace, before)
	if err := a.writer.Write(ctx, key, buf, "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive upload: %w", err)
	}

	deleted, err := a.trades.DeleteBefore(ctx, a.namespace, before)
	if err != nil {
		// Rows are uploaded but not pruned; the next run re-archives them,
		// overwriting the same key.
		return int64(len(trades)), fmt.Errorf("s3blob: archive prune: %w", err)
	}

	a.logger.InfoContext(ctx, "journal rows archived",
		slog.String("key", key),
		slog.Int("uploaded", len(trades)),
		slog.Int64("deleted", deleted),
	)
	return int64(len(trades)), nil
}

// nextRun returns the next scheduled run time strictly after now.
func (a *Archiver) nextRun(now time.Time) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), a.hourUTC, 0, 0, 0, time.UTC)
	if !next.After(now) {
		next = next.Add(24 * time.Hour)
	}
	return next
}

// archiveKey builds the object key for an archive file, partitioned by
// namespace and the cutoff date.
//
//	archive/trades/live/2025-08-29.jsonl
func archiveKey(ns domain.Namespace, before time.Time) string {
	return fmt.Sprintf("archive/trades/%s/%s.jsonl", ns, before.Format("2006-01-02"))
}

// marshalJSONL serialises records as newline-delimited JSON, one compact
// line per record.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
