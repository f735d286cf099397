package worker

import (
    "context"
    "time"

    "github.com/rs/zerolog/log"
)

// SessionSweeper cancels idle scan sessions.
type SessionSweeper interface {
    CleanupIdleSessions(ctx context.Context) (int, error)
}

// PositionRepairer re-packs directory listings left with negative positions.
type PositionRepairer interface {
    RepairPositions(ctx context.Context) (int, error)
}

// ScanCleanupWorker periodically cancels idle scan sessions and repairs
// directory photo positions.
type ScanCleanupWorker struct {
    sessions SessionSweeper
    photos   PositionRepairer
    interval time.Duration
}

// NewScanCleanupWorker constructs a ScanCleanupWorker. photos may be nil.
func NewScanCleanupWorker(sessions SessionSweeper, photos PositionRepairer, interval time.Duration) *ScanCleanupWorker {
    return &ScanCleanupWorker{
        sessions: sessions,
        photos:   photos,
        interval: interval,
    }
}

// Start begins the periodic cleanup loop until context is canceled.
func (w *ScanCleanupWorker) Start(ctx context.Context) {
    log.Info().Dur("interval", w.interval).Msg("Starting scan cleanup worker")

    ticker := time.NewTicker(w.interval)
    defer ticker.Stop()

    for {
        select {
        case <-ticker.C:
            w.run(ctx)
        case <-ctx.Done():
            log.Info().Msg("Scan cleanup worker stopped")
            return
        }
    }
}

func (w *ScanCleanupWorker) run(ctx context.Context) {
    if _, err := w.sessions.CleanupIdleSessions(ctx); err != nil {
        log.Error().Err(err).Msg("Failed to clean up idle scan sessions")
    }

    // Respect cancellation between steps
    if ctx.Err() != nil || w.photos == nil {
        return
    }
    if _, err := w.photos.RepairPositions(ctx); err != nil {
        log.Error().Err(err).Msg("Failed to repair directory photo positions")
    }
}
