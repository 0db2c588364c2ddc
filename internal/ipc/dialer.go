package ipc

import (
	"fmt"
	"net"
	"time"

	"github.com/bryanchriswhite/parallaxd/internal/logger"
)

// DialRetry dials a Unix-domain socket, retrying up to maxAttempts times with
// delay between attempts. Desktop sessions launch the wallpaper client
// concurrently with the compositor's IPC listener, so the first connects can
// race a socket that does not exist yet; the retry loop absorbs that startup
// window deterministically instead of failing fast.
//
// A single "waiting" notice is logged on the first failure to keep startup
// logs quiet, and a summary is logged when a connection succeeds after at
// least one retry.
func DialRetry(path, label string, maxAttempts int, delay time.Duration) (net.Conn, error) {
	log := logger.WithComponent("ipc")

	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	notified := false
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		conn, err := net.Dial("unix", path)
		if err == nil {
			if attempt > 1 {
				log.Info().
					Str("compositor", label).
					Int("retries", attempt-1).
					Msg("connected after retries")
			}
			return conn, nil
		}
		lastErr = err

		if !notified {
			log.Info().
				Str("compositor", label).
				Str("socket", path).
				Msg("waiting for compositor socket")
			notified = true
		}

		if attempt < maxAttempts {
			time.Sleep(delay)
		}
	}

	return nil, fmt.Errorf("ipc: %s socket %s unreachable after %d attempts: %w",
		label, path, maxAttempts, lastErr)
}
