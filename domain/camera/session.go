package camera

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Options configures a Session. Only Device is required for live capture; a
// Session without a Device still accepts selected files.
type Options struct {
	Device      Device
	Preview     PreviewSink
	Surface     Surface
	Encode      Encoder
	Constraints Constraints
	// Handheld selects the rear camera.
	Handheld bool
	Logger   *slog.Logger
	Now      func() time.Time
}

// Session owns one capture device and the current image for a single screen.
// It is safe for concurrent use. PreviewSink methods and listeners must not
// call back into the Session synchronously.
type Session struct {
	mu sync.Mutex
	// opening is held while a stream is being opened, so the permission probe
	// and a start never hold two streams at once. Acquired before mu.
	opening chan struct{}

	device      Device
	preview     PreviewSink
	surface     Surface
	encode      Encoder
	constraints Constraints
	logger      *slog.Logger
	now         func() time.Time

	state      DeviceState
	permission Permission
	stream     Stream
	current    *Artifact
	gen        uint64 // bumped whenever a pending start is invalidated
	cancel     context.CancelFunc
	closed     bool

	pending    []Snapshot
	delivering bool

	listeners map[uint64]Listener
	nextID    uint64
}

// NewSession constructs an idle session.
func NewSession(opts Options) *Session {
	c := opts.Constraints
	def := DefaultConstraints()
	if c.Width <= 0 || c.Height <= 0 {
		c.Width, c.Height = def.Width, def.Height
	}
	if c.Framerate <= 0 {
		c.Framerate = def.Framerate
	}
	c.Facing = FacingFront
	if opts.Handheld {
		c.Facing = FacingRear
	}
	s := &Session{
		device:      opts.Device,
		preview:     opts.Preview,
		surface:     opts.Surface,
		encode:      opts.Encode,
		constraints: c,
		logger:      opts.Logger,
		now:         opts.Now,
		opening:     make(chan struct{}, 1),
		listeners:   make(map[uint64]Listener),
	}
	if s.surface == nil {
		s.surface = NewRGBASurface()
	}
	if s.encode == nil {
		s.encode = JPEGEncoder
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Subscribe registers l for state changes and returns a cancel function.
// Snapshots reach listeners in commit order. A change made while another
// goroutine is delivering is handed to that goroutine, so the caller may
// return before its own notification is seen.
func (s *Session) Subscribe(l Listener) (cancel func()) {
	if l == nil {
		return func() {}
	}
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.listeners[id] = l
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// Snapshot returns the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Current returns the current artifact, or nil.
func (s *Session) Current() *Artifact {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Discard clears the current artifact.
func (s *Session) Discard() {
	s.mu.Lock()
	if s.current == nil {
		s.mu.Unlock()
		return
	}
	s.current = nil
	s.unlockAndNotify()
}

// CheckPermission probes camera permission by opening and immediately closing
// a stream. It never fails; only an explicit denial moves the permission to
// denied, other errors leave it untouched.
func (s *Session) CheckPermission(ctx context.Context) Permission {
	s.mu.Lock()
	switch {
	case s.state == StateActive:
		s.mu.Unlock()
		return PermissionGranted
	case s.state == StateStarting, s.device == nil, s.closed:
		p := s.permission
		s.mu.Unlock()
		return p
	}
	dev, c := s.device, s.constraints
	s.mu.Unlock()

	if err := s.lockOpening(ctx); err != nil {
		return s.Snapshot().Permission
	}
	s.mu.Lock()
	if s.state != StateIdle || s.closed {
		// A start won the race; its outcome decides the permission.
		p := s.permission
		if s.state == StateActive {
			p = PermissionGranted
		}
		s.mu.Unlock()
		s.unlockOpening()
		return p
	}
	s.mu.Unlock()

	stream, err := dev.Open(ctx, c)
	if err == nil && stream != nil {
		if cerr := stream.Close(); cerr != nil && s.logger != nil {
			s.logger.Warn("permission probe close", "error", cerr)
		}
	}
	s.unlockOpening()

	s.mu.Lock()
	prev := s.permission
	switch {
	case err == nil:
		s.permission = PermissionGranted
	case errors.Is(err, ErrPermissionDenied):
		s.permission = PermissionDenied
	default:
		if s.logger != nil {
			s.logger.Debug("permission probe inconclusive", "error", err)
		}
	}
	p := s.permission
	if p == prev {
		s.mu.Unlock()
		return p
	}
	s.unlockAndNotify()
	return p
}

// Start acquires a stream and begins playback. It is a no-op while the device
// is starting or active.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.state != StateIdle {
		s.mu.Unlock()
		return nil
	}
	if s.device == nil {
		s.mu.Unlock()
		if s.logger != nil {
			s.logger.Warn("camera start without capture device")
		}
		return ErrCameraUnavailable
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.state = StateStarting
	s.gen++
	gen := s.gen
	s.cancel = cancel
	dev, c := s.device, s.constraints
	s.unlockAndNotify()

	var stream Stream
	err := s.lockOpening(ctx)
	opened := err == nil
	if opened {
		stream, err = acquire(ctx, dev, c)
	}

	s.mu.Lock()
	if s.gen != gen || s.state != StateStarting {
		s.mu.Unlock()
		if stream != nil {
			s.closeStream(stream)
		}
		if opened {
			s.unlockOpening()
		}
		if s.logger != nil {
			s.logger.Debug("camera start aborted")
		}
		return ErrStartAborted
	}
	s.cancel = nil
	if opened {
		s.unlockOpening()
	}
	if err != nil {
		s.state = StateIdle
		if errors.Is(err, ErrPermissionDenied) {
			s.permission = PermissionDenied
		}
		s.unlockAndNotify()
		if s.logger != nil {
			s.logger.Warn("camera start failed", "error", err)
		}
		return err
	}
	s.stream = stream
	s.state = StateActive
	s.permission = PermissionGranted
	if s.preview != nil {
		s.preview.Attach(stream)
	}
	s.unlockAndNotify()
	if s.logger != nil {
		w, h := stream.Size()
		s.logger.Info("camera started", "facing", c.Facing.String(), "width", w, "height", h)
	}
	return nil
}

// acquire opens and plays a stream, classifying failures into the session's
// error taxonomy. A stream that fails to play is released.
func acquire(ctx context.Context, dev Device, c Constraints) (Stream, error) {
	stream, err := dev.Open(ctx, c)
	if err != nil {
		if errors.Is(err, ErrPermissionDenied) || errors.Is(err, ErrCameraUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrCameraUnavailable, err)
	}
	if stream == nil {
		return nil, ErrCameraUnavailable
	}
	if err := stream.Play(ctx); err != nil {
		_ = stream.Close()
		return nil, fmt.Errorf("%w: %w", ErrStreamStartFailed, err)
	}
	return stream, nil
}

// lockOpening waits for exclusive use of the device open path.
func (s *Session) lockOpening(ctx context.Context) error {
	select {
	case s.opening <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) unlockOpening() { <-s.opening }

// Stop releases the stream and detaches the preview. It is idempotent; a stop
// while starting aborts the pending start.
func (s *Session) Stop() {
	s.mu.Lock()
	if !s.stopLocked() {
		s.mu.Unlock()
		return
	}
	s.unlockAndNotify()
	if s.logger != nil {
		s.logger.Debug("camera stopped")
	}
}

// Close tears the session down. Further starts fail with ErrSessionClosed.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	if !s.stopLocked() {
		s.mu.Unlock()
		return
	}
	s.unlockAndNotify()
}

func (s *Session) stopLocked() bool {
	switch s.state {
	case StateStarting:
		s.gen++
		s.state = StateIdle
		if s.cancel != nil {
			s.cancel()
			s.cancel = nil
		}
		return true
	case StateActive:
		if s.preview != nil {
			s.preview.Detach()
		}
		if s.stream != nil {
			s.closeStream(s.stream)
			s.stream = nil
		}
		s.state = StateIdle
		return true
	default:
		return false
	}
}

func (s *Session) closeStream(st Stream) {
	if err := st.Close(); err != nil && s.logger != nil {
		s.logger.Warn("camera stream close", "error", err)
	}
}

// Capture samples the live frame into a JPEG artifact, makes it current and
// stops the device. On encode failure the device stays active.
func (s *Session) Capture(ctx context.Context) (*Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	if s.state != StateActive || s.stream == nil {
		s.mu.Unlock()
		return nil, ErrNotActive
	}
	art, err := s.captureLocked()
	if err != nil {
		s.mu.Unlock()
		if s.logger != nil {
			s.logger.Warn("capture failed", "error", err)
		}
		return nil, err
	}
	s.current = art
	s.stopLocked()
	s.unlockAndNotify()
	if s.logger != nil {
		s.logger.Info("image captured", "artifact", art.String(), "width", art.Width, "height", art.Height)
	}
	return art, nil
}

func (s *Session) captureLocked() (*Artifact, error) {
	frame, err := s.stream.Frame()
	if err != nil {
		return nil, fmt.Errorf("%w: read frame: %w", ErrCaptureEncodeFailed, err)
	}
	w, h := s.stream.Size()
	s.surface.Resize(w, h)
	if err := s.surface.Draw(frame); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCaptureEncodeFailed, err)
	}
	var buf bytes.Buffer
	if err := s.encode(&buf, s.surface.Image()); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCaptureEncodeFailed, err)
	}
	if buf.Len() == 0 {
		return nil, fmt.Errorf("%w: empty output", ErrCaptureEncodeFailed)
	}
	now := s.now()
	return newArtifact(capturedName(now), "image/jpeg", buf.Bytes(), OriginCaptured, now), nil
}

// CaptureOrStart is the shutter action: it captures when active and otherwise
// starts the device, returning ErrNotActive without an artifact. Capture is
// not retried after the start.
func (s *Session) CaptureOrStart(ctx context.Context) (*Artifact, error) {
	art, err := s.Capture(ctx)
	if !errors.Is(err, ErrNotActive) {
		return art, err
	}
	if serr := s.Start(ctx); serr != nil {
		return nil, errors.Join(ErrNotActive, serr)
	}
	return nil, ErrNotActive
}

// SelectFile validates f and makes it the current artifact, stopping the
// device first. Rejected files leave the session untouched.
func (s *Session) SelectFile(f File) (*Artifact, error) {
	if err := f.Validate(); err != nil {
		if s.logger != nil {
			s.logger.Warn("file rejected", "name", f.Name, "mime", f.MIMEType, "error", err)
		}
		return nil, err
	}
	name := f.Name
	if name == "" {
		name = "upload"
	}
	art := newArtifact(name, f.MIMEType, bytes.Clone(f.Data), OriginSelected, s.now())

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}
	s.stopLocked()
	s.current = art
	s.unlockAndNotify()
	if s.logger != nil {
		s.logger.Info("image selected", "artifact", art.String())
	}
	return art, nil
}

func (s *Session) snapshotLocked() Snapshot {
	return Snapshot{
		State:      s.state,
		Permission: s.permission,
		Facing:     s.constraints.Facing,
		Current:    s.current,
	}
}

// unlockAndNotify queues the post-change snapshot and releases s.mu. The
// first goroutine to find the queue idle delivers every queued snapshot in
// order, dropping s.mu around each listener call.
func (s *Session) unlockAndNotify() {
	s.pending = append(s.pending, s.snapshotLocked())
	if s.delivering {
		s.mu.Unlock()
		return
	}
	s.delivering = true
	for len(s.pending) > 0 {
		snap := s.pending[0]
		s.pending = s.pending[1:]
		ls := make([]Listener, 0, len(s.listeners))
		for _, l := range s.listeners {
			ls = append(ls, l)
		}
		s.mu.Unlock()
		for _, l := range ls {
			l(snap)
		}
		s.mu.Lock()
	}
	s.pending = nil
	s.delivering = false
	s.mu.Unlock()
}
