//go:build !linux

package collector

import (
	"context"
	"log/slog"
	"time"
)

// RunFocusProbe is a no-op on platforms without a desktop idle service;
// the session stays focused and the input idle threshold alone gates
// active time.
func RunFocusProbe(ctx context.Context, session *Session, idleThreshold time.Duration, log *slog.Logger) {
	log.Debug("focus probe not available on this platform")
	<-ctx.Done()
}
