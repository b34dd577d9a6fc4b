package peer

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// RunMaintenance drives periodic ring upkeep: every tick it spawns a
// stabilize and a check-successors pass without waiting for the
// previous tick's passes to finish, matching the teacher's fire-and-go
// maintenance loop — a slow peer on one tick does not stall the next.
func (p *Peer) RunMaintenance(ctx context.Context, period time.Duration) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			go func() {
				if err := p.Stabilize(); err != nil {
					p.log.Debug("maintenance: stabilize failed", zap.Error(err))
				}
			}()
			go p.CheckSuccessors()
		}
	}
}
