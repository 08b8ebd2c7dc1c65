package mcp

import (
	"context"
	"os"
	"time"

	"kbexport/internal/logging"
)

// WatchParent calls cancelFn when the parent process goes away, so a server
// orphaned by its client does not linger. It polls the parent PID and never
// reads stdin, which belongs to the stdio transport.
//
// The goroutine exits when ctx is canceled or parent death is detected.
func WatchParent(ctx context.Context, interval time.Duration, cancelFn context.CancelFunc) {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ppid := os.Getppid()
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if os.Getppid() != ppid {
					logging.New("mcp").Warn("parent process exited, shutting down", "ppid", ppid)
					cancelFn()
					return
				}
			}
		}
	}()
}
