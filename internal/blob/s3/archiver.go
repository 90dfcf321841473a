package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/updownlabs/updownd/internal/domain"
)

// predictionLister provides read access to a market's predictions for
// archival. The archiver only needs this one query, not the full prediction
// store.
type predictionLister interface {
	ListByMarket(ctx context.Context, marketID uint64, opts domain.ListOpts) ([]domain.Prediction, error)
}

// archivedMarket is one JSONL record: a settled market together with every
// prediction placed on it.
type archivedMarket struct {
	Market      domain.Market       `json:"market"`
	Predictions []domain.Prediction `json:"predictions"`
}

// ArchiveImpl implements domain.Archiver by querying the stores for settled
// markets, serializing them with their predictions to JSONL, and uploading
// the result to S3.
//
// Deletion of the archived records from the primary store is intentionally
// NOT performed here -- that is a separate, explicit step to be executed
// after the archive has been verified.
type ArchiveImpl struct {
	writer      domain.BlobWriter
	markets     domain.SettledMarketStore
	predictions predictionLister
	audit       domain.AuditStore
}

// NewArchiver creates a new ArchiveImpl.
func NewArchiver(
	writer domain.BlobWriter,
	markets domain.SettledMarketStore,
	predictions predictionLister,
	audit domain.AuditStore,
) *ArchiveImpl {
	return &ArchiveImpl{
		writer:      writer,
		markets:     markets,
		predictions: predictions,
		audit:       audit,
	}
}

// ArchiveSettled queries markets resolved before the cutoff, serializes each
// with its predictions to JSONL, and uploads the file to S3 at
// archive/settled/YYYY-MM.jsonl. The archival event is recorded in the audit
// log and the count of archived markets is returned.
func (a *ArchiveImpl) ArchiveSettled(ctx context.Context, before time.Time) (int64, error) {
	markets, err := a.markets.ListResolvedBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive settled query: %w", err)
	}
	if len(markets) == 0 {
		return 0, nil
	}

	records := make([]archivedMarket, 0, len(markets))
	for _, m := range markets {
		preds, err := a.predictions.ListByMarket(ctx, m.ID, domain.ListOpts{})
		if err != nil {
			return 0, fmt.Errorf("s3blob: archive settled predictions for market %d: %w", m.ID, err)
		}
		records = append(records, archivedMarket{Market: m, Predictions: preds})
	}

	buf, err := marshalJSONL(records)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive settled marshal: %w", err)
	}

	path := archivePath("settled", before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive settled upload: %w", err)
	}

	count := int64(len(records))

	if err := a.audit.Log(ctx, "archive.settled", map[string]any{
		"path":   path,
		"count":  count,
		"before": before.Format(time.RFC3339),
	}); err != nil {
		return count, fmt.Errorf("s3blob: archive settled audit log: %w", err)
	}

	return count, nil
}

// archivePath builds the S3 key for an archive file, partitioned by the
// year-month of the cutoff time.
//
//	archive/settled/2025-01.jsonl
func archivePath(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, before.Format("2006-01"))
}

// marshalJSONL serialises a slice of values as newline-delimited JSON (JSONL).
// Each element is marshalled as a single compact JSON line followed by '\n'.
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

// Compile-time interface check.
var _ domain.Archiver = (*ArchiveImpl)(nil)
