package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/anttijankeri/object-image-server/internal/ledger"
	"github.com/anttijankeri/object-image-server/internal/storage"
)

type FileIndex interface {
	ExistsByFilePath(ctx context.Context, filePath string) (bool, error)
}

type SweepReport struct {
	Checked   int
	Confirmed int
	Removed   int
	Failed    int
}

// Sweeper removes blobs that were uploaded but never got a metadata
// document. Only ledger entries older than the grace period are examined so
// that in-flight creates are left alone.
type Sweeper struct {
	ledger UploadLedger
	images FileIndex
	blobs  storage.Store
	grace  time.Duration
	batch  int
	log    zerolog.Logger
	now    func() time.Time
}

func NewSweeper(ledger UploadLedger, images FileIndex, blobs storage.Store, grace time.Duration, batch int, log zerolog.Logger) *Sweeper {
	if batch <= 0 {
		batch = 100
	}
	return &Sweeper{
		ledger: ledger,
		images: images,
		blobs:  blobs,
		grace:  grace,
		batch:  batch,
		log:    log.With().Str("component", "sweeper").Logger(),
		now:    time.Now,
	}
}

func (s *Sweeper) Run(ctx context.Context) (SweepReport, error) {
	var report SweepReport

	due, err := s.ledger.Due(ctx, s.now().Add(-s.grace), s.batch)
	if err != nil {
		return report, fmt.Errorf("list due uploads: %w", err)
	}

	for _, entry := range due {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Checked++

		removed, err := s.sweep(ctx, entry)
		if err != nil {
			report.Failed++
			s.log.Warn().Err(err).Str("file_path", entry.FilePath).Msg("sweep entry failed")
			continue
		}
		if removed {
			report.Removed++
		} else {
			report.Confirmed++
		}
	}

	s.log.Info().
		Int("checked", report.Checked).
		Int("confirmed", report.Confirmed).
		Int("removed", report.Removed).
		Int("failed", report.Failed).
		Msg("orphan sweep finished")

	return report, nil
}

// sweep settles one ledger entry and reports whether its blob was removed.
func (s *Sweeper) sweep(ctx context.Context, entry ledger.Entry) (bool, error) {
	exists, err := s.images.ExistsByFilePath(ctx, entry.FilePath)
	if err != nil {
		return false, fmt.Errorf("lookup metadata: %w", err)
	}

	if !exists {
		err := s.blobs.Remove(ctx, entry.Tenant, storage.FileName(entry.FilePath))
		if err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
			return false, fmt.Errorf("remove orphan: %w", err)
		}
		s.log.Info().Str("file_path", entry.FilePath).Str("tenant", entry.Tenant).Msg("orphaned blob removed")
	}

	if err := s.ledger.Resolve(ctx, entry); err != nil {
		return false, fmt.Errorf("resolve ledger entry: %w", err)
	}
	return !exists, nil
}
