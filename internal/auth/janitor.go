// AngelaMos | 2026
// janitor.go

package auth

import (
	"context"
	"log/slog"
	"time"
)

type Purger interface {
	PurgeExpiredTokens(ctx context.Context) (int64, error)
}

// Janitor deletes expired refresh token records once a day at local
// midnight.
type Janitor struct {
	purger Purger
	logger *slog.Logger
	now    func() time.Time
}

func NewJanitor(purger Purger, logger *slog.Logger) *Janitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Janitor{purger: purger, logger: logger, now: time.Now}
}

// Run blocks until ctx is cancelled.
func (j *Janitor) Run(ctx context.Context) {
	for {
		timer := time.NewTimer(untilNextMidnight(j.now()))

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			j.RunOnce(ctx)
		}
	}
}

func (j *Janitor) RunOnce(ctx context.Context) {
	n, err := j.purger.PurgeExpiredTokens(ctx)
	if err != nil {
		j.logger.ErrorContext(ctx, "purge expired refresh tokens failed",
			"error", err,
		)
		return
	}

	j.logger.InfoContext(ctx, "purged expired refresh tokens", "count", n)
}

func untilNextMidnight(now time.Time) time.Duration {
	y, m, d := now.Date()
	next := time.Date(y, m, d+1, 0, 0, 0, 0, now.Location())
	return next.Sub(now)
}
