package repository

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// RunRetention purges messages older than keep once at start and then every
// interval until ctx is done.
func (r *MessageRepository) RunRetention(ctx context.Context, keep, every time.Duration, log logrus.FieldLogger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		n, err := r.PurgeBefore(ctx, time.Now().Add(-keep))
		switch {
		case err != nil && ctx.Err() == nil:
			log.WithError(err).Warn("archive purge failed")
		case n > 0:
			log.WithField("deleted", n).Info("archive purged")
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
