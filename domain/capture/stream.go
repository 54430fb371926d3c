package capture

import (
	"context"
	"errors"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/soocke/leafscan-go/domain/camera"
)

const (
	captureStatsLogInterval = 5 * time.Second
	defaultFrameInterval    = time.Second / 30
)

var errStreamClosed = errors.New("capture: stream closed")

// pumpStream turns a Grabber into a camera.Stream by polling it on a
// goroutine and keeping the freshest frame.
type pumpStream struct {
	grab     Grabber
	interval time.Duration
	release  func() error
	logger   *slog.Logger

	running  atomic.Bool
	latest   atomic.Pointer[FrameSnapshot]
	captures atomic.Uint64
	skipped  atomic.Uint64
	nanos    atomic.Uint64
	sequence atomic.Uint64

	width, height atomic.Int64

	mu       sync.Mutex
	started  bool
	closed   bool
	closeErr error

	first     chan struct{}
	firstOnce sync.Once
	done      chan struct{}
	exited    chan struct{}
}

var _ camera.Stream = (*pumpStream)(nil)

func newPumpStream(grab Grabber, interval time.Duration, release func() error, logger *slog.Logger) *pumpStream {
	if interval <= 0 {
		interval = defaultFrameInterval
	}
	return &pumpStream{
		grab:     grab,
		interval: interval,
		release:  release,
		logger:   logger,
		first:    make(chan struct{}),
		done:     make(chan struct{}),
		exited:   make(chan struct{}),
	}
}

// Play starts the pump and waits for the first frame.
func (s *pumpStream) Play(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errStreamClosed
	}
	if !s.started {
		s.started = true
		s.running.Store(true)
		go s.loop()
	}
	s.mu.Unlock()
	select {
	case <-s.first:
		return nil
	case <-s.done:
		return errStreamClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *pumpStream) Frame() (image.Image, error) {
	snap := s.latest.Load()
	if snap == nil || snap.Image == nil {
		return nil, errors.New("capture: no frame yet")
	}
	return snap.Image, nil
}

func (s *pumpStream) Size() (int, int) {
	return int(s.width.Load()), int(s.height.Load())
}

// LatestFrame returns the freshest snapshot.
func (s *pumpStream) LatestFrame() FrameSnapshot {
	snap := s.latest.Load()
	if snap == nil {
		return FrameSnapshot{}
	}
	return *snap
}

func (s *pumpStream) Running() bool { return s.running.Load() }

// Close stops the pump, waits for an in-flight grab and releases the backend.
func (s *pumpStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return s.closeErr
	}
	s.closed = true
	close(s.done)
	if s.started {
		<-s.exited
	}
	s.running.Store(false)
	if s.release != nil {
		s.closeErr = s.release()
	}
	s.logStats()
	return s.closeErr
}

func (s *pumpStream) Stats() CaptureStats {
	captures := s.captures.Load()
	total := s.nanos.Load()
	var avg time.Duration
	if captures > 0 && total > 0 {
		avg = time.Duration(total / captures)
	}
	snapshot := s.LatestFrame()
	age := time.Duration(0)
	if !snapshot.CapturedAt.IsZero() {
		age = time.Since(snapshot.CapturedAt)
	}
	return CaptureStats{
		Captures:       captures,
		Skipped:        s.skipped.Load(),
		AvgCapture:     avg,
		LastCapture:    snapshot.CapturedAt,
		LatestFrameAge: age,
		Sequence:       snapshot.Sequence,
	}
}

func (s *pumpStream) loop() {
	defer close(s.exited)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	logTicker := time.NewTicker(captureStatsLogInterval)
	defer logTicker.Stop()
	for {
		s.pumpOnce()
		select {
		case <-s.done:
			return
		case <-logTicker.C:
			s.logStats()
		case <-ticker.C:
		}
	}
}

func (s *pumpStream) pumpOnce() {
	start := time.Now()
	img, err := s.grab()
	if err != nil || img == nil || img.Bounds().Empty() {
		s.skipped.Add(1)
		if err != nil && s.logger != nil {
			s.logger.Debug("capture grab", "error", err)
		}
		return
	}
	s.nanos.Add(uint64(time.Since(start).Nanoseconds()))
	s.captures.Add(1)
	seq := s.sequence.Add(1)
	b := img.Bounds()
	s.width.Store(int64(b.Dx()))
	s.height.Store(int64(b.Dy()))
	s.latest.Store(&FrameSnapshot{Image: img, CapturedAt: time.Now(), Sequence: seq})
	s.firstOnce.Do(func() { close(s.first) })
}

func (s *pumpStream) logStats() {
	if s.logger == nil {
		return
	}
	stats := s.Stats()
	s.logger.Debug("capture.stats",
		"captures", stats.Captures,
		"skipped", stats.Skipped,
		"avg_capture", stats.AvgCapture,
		"age", stats.LatestFrameAge,
	)
}
