//go:build unix

package debug

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sys/unix"
)

// maxRSS returns the peak resident set size in bytes.
func maxRSS() (uint64, error) {
	var ru unix.Rusage
	if err := unix.Getrusage(unix.RUSAGE_SELF, &ru); err != nil {
		return 0, err
	}
	rss := uint64(ru.Maxrss)
	if runtime.GOOS != "darwin" {
		rss *= 1024 // kilobytes elsewhere
	}
	return rss, nil
}

// StartMemLogger logs peak RSS next to Go heap stats every interval until ctx
// is done, to tell native (OpenCV, Tk) growth from heap growth. A failing
// rusage query is logged once.
func StartMemLogger(ctx context.Context, interval time.Duration, logger *slog.Logger) {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		var rssErrLogged bool
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			var ms runtime.MemStats
			runtime.ReadMemStats(&ms)
			rss, err := maxRSS()
			if err != nil && !rssErrLogged {
				logger.Warn("memlog: getrusage failed", slog.String("err", err.Error()))
				rssErrLogged = true
			}
			logger.Debug("memstats",
				slog.Int("goroutines", runtime.NumGoroutine()),
				slog.String("heap_alloc", humanize.IBytes(ms.HeapAlloc)),
				slog.Uint64("heap_inuse", ms.HeapInuse),
				slog.Uint64("heap_idle", ms.HeapIdle),
				slog.Uint64("next_gc", ms.NextGC),
				slog.String("max_rss", humanize.IBytes(rss)),
				slog.Uint64("num_gc", uint64(ms.NumGC)),
			)
		}
	}()
}
