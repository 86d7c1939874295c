//go:build linux

package collector

import (
	"context"
	"log/slog"
	"time"

	"github.com/godbus/dbus/v5"
)

// screensaver well-known name and object path. GNOME, KDE, and most
// desktops answer GetSessionIdleTime on this interface.
const (
	screensaverDest = "org.freedesktop.ScreenSaver"
	screensaverPath = "/org/freedesktop/ScreenSaver"
	idleTimeMethod  = "org.freedesktop.ScreenSaver.GetSessionIdleTime"
)

// focusPollInterval is how often the desktop idle time is sampled.
const focusPollInterval = 2 * time.Second

// RunFocusProbe samples the desktop session's idle time over D-Bus and
// gates the session's focus accordingly: a desktop idle beyond the
// session's threshold means the writer cannot be at the keyboard. The
// probe degrades to a no-op when no session bus or screensaver service
// is available, leaving the session permanently focused.
func RunFocusProbe(ctx context.Context, session *Session, idleThreshold time.Duration, log *slog.Logger) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		log.Debug("no session bus, focus probe disabled", "error", err)
		return
	}
	defer conn.Close()

	obj := conn.Object(screensaverDest, dbus.ObjectPath(screensaverPath))

	ticker := time.NewTicker(focusPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			var idleSeconds uint32
			call := obj.CallWithContext(ctx, idleTimeMethod, 0)
			if call.Err != nil || call.Store(&idleSeconds) != nil {
				continue
			}
			session.SetFocused(time.Duration(idleSeconds)*time.Second < idleThreshold)
		}
	}
}
