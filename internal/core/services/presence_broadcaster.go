package services

import (
	"context"
	"sync/atomic"

	"reelhub/internal/core/domain"
	"reelhub/internal/core/ports"
	"reelhub/pkg/tracing"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

// presenceSource is the part of the registry the broadcaster reads.
type presenceSource interface {
	ListOnline() []domain.UserID
	Sessions() []ports.SessionHandle
	Changes() <-chan struct{}
}

// PresenceBroadcaster pushes the online user set to every live session
// after each membership change. Delivery is best effort: a failed send is
// logged and skipped, and never blocks other sessions.
type PresenceBroadcaster struct {
	source  presenceSource
	workers int
	metrics ports.PresenceMetrics
	logger  *zap.SugaredLogger
}

func NewPresenceBroadcaster(source presenceSource, workers int, metrics ports.PresenceMetrics, logger *zap.SugaredLogger) *PresenceBroadcaster {
	if workers <= 0 {
		workers = 1
	}
	if metrics == nil {
		metrics = noopPresenceMetrics{}
	}
	return &PresenceBroadcaster{
		source:  source,
		workers: workers,
		metrics: metrics,
		logger:  logger,
	}
}

// Run broadcasts on every change signal until ctx is done.
func (b *PresenceBroadcaster) Run(ctx context.Context) {
	b.logger.Infow("Presence broadcaster started", "workers", b.workers)
	for {
		select {
		case <-ctx.Done():
			b.logger.Info("Presence broadcaster stopped")
			return
		case <-b.source.Changes():
			b.Broadcast(ctx)
		}
	}
}

// Broadcast sends the current online set to all sessions and returns the
// number of failed deliveries.
func (b *PresenceBroadcaster) Broadcast(ctx context.Context) int {
	online := b.source.ListOnline()
	sessions := b.source.Sessions()

	_, span := tracing.TracePresenceBroadcast(ctx, len(online), len(sessions))
	defer span.End()

	msg := domain.NewOnlineUsersMessage(online)
	var failed atomic.Int64

	p := pool.New().WithMaxGoroutines(b.workers)
	for _, session := range sessions {
		session := session
		p.Go(func() {
			if err := session.Send(msg); err != nil {
				failed.Add(1)
				b.metrics.RecordDelivery(false)
				b.logger.Debugw("Presence delivery failed",
					"session_id", session.ID(),
					"error", err,
				)
				return
			}
			b.metrics.RecordDelivery(true)
		})
	}
	p.Wait()

	if n := failed.Load(); n > 0 {
		b.logger.Warnw("Presence broadcast had failed deliveries",
			"failed", n,
			"sessions", len(sessions),
			"online_users", len(online),
		)
	}
	return int(failed.Load())
}
