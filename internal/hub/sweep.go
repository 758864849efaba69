package hub

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/jvlax/motord/internal/lobby"
)

// SweepOnce asks every lobby to drop idle players and removes the lobbies
// left with neither players nor connections. Such a lobby closes itself while
// answering the sweep, so a join racing the removal fails instead of vanishing.
func (h *Hub) SweepOnce(ctx context.Context, now time.Time, idle time.Duration) (removed int, err error) {
	lobbies, err := h.List(ctx)
	if err != nil {
		return 0, err
	}
	for _, lb := range lobbies {
		res, err := lb.Sweep(ctx, now, idle)
		switch {
		case errors.Is(err, lobby.ErrClosed):
			// Closed by an earlier sweep but still registered.
		case err != nil:
			return removed, err
		case !res.Disposable:
			continue
		}
		ok, err := h.Remove(ctx, lb)
		if err != nil {
			return removed, err
		}
		if ok {
			removed++
		}
	}
	return removed, nil
}

// RunSweeper sweeps every interval until ctx is done.
func (h *Hub) RunSweeper(ctx context.Context, interval, idle time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			removed, err := h.SweepOnce(ctx, h.cfg.Now(), idle)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				h.log.Warn("sweep failed", zap.Error(err))
				continue
			}
			if removed > 0 {
				h.log.Info("swept empty lobbies", zap.Int("removed", removed))
			}
		}
	}
}
