package mcp

import (
	"context"
	"os"
	"time"

	"testforge/internal/logging"
)

// watchInterval is how often the watchdog re-checks the parent PID.
var watchInterval = 2 * time.Second

// WatchStdin monitors for parent process death in a background goroutine.
// When the parent PID changes (the MCP client disconnected or was
// restarted), it calls cancelFn to trigger graceful shutdown instead of
// leaving an orphaned server behind.
//
// It must NOT read from stdin: the SDK's StdioTransport owns stdin
// exclusively, and stealing bytes here would corrupt the JSON-RPC stream.
//
// The goroutine exits when ctx is canceled or parent death is detected.
func WatchStdin(ctx context.Context, cancelFn context.CancelFunc) {
	ppid := os.Getppid()
	logger := logging.New("mcp")
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-time.After(watchInterval):
				if os.Getppid() != ppid {
					logger.Warn("parent process died, shutting down", "was_pid", ppid)
					cancelFn()
					return
				}
			}
		}
	}()
}
