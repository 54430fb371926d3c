//go:build !unix

package debug

import (
	"context"
	"log/slog"
	"time"
)

// StartMemLogger is a no-op where rusage is unavailable.
func StartMemLogger(_ context.Context, _ time.Duration, logger *slog.Logger) {
	if logger != nil {
		logger.Debug("memlog: unsupported on this platform")
	}
}
