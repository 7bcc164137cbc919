// Package services – retention janitor
//
// Optional background cleanup of old Message rows. The connection invariants
// hold whether or not this runs; retention is a deployment choice, disabled
// by default.
package services

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/bridgeos/go-bridge-backend/internal/repo"
)

// janitorInterval is how often the sweep runs while enabled.
const janitorInterval = 6 * time.Hour

// RetentionJanitor deletes messages older than the configured window.
type RetentionJanitor struct {
	DB            *gorm.DB
	RetentionDays int
}

// Run sweeps on a ticker until the context is cancelled. With a
// non-positive retention the janitor exits immediately.
func (j *RetentionJanitor) Run(ctx context.Context) {
	if j.RetentionDays <= 0 {
		return
	}
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()

	j.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.sweep(ctx)
		}
	}
}

func (j *RetentionJanitor) sweep(ctx context.Context) {
	cutoff := time.Now().UTC().AddDate(0, 0, -j.RetentionDays)
	n, err := repo.DeleteMessagesBefore(ctx, j.DB, cutoff)
	if err != nil {
		log.Warn().Err(err).Msg("retention sweep failed")
		return
	}
	if n > 0 {
		log.Info().Int64("deleted", n).Int("retention_days", j.RetentionDays).Msg("expired messages removed")
	}
}
