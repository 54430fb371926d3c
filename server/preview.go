package server

import (
	"bytes"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"github.com/gorilla/websocket"

	"github.com/soocke/leafscan-go/domain/camera"
)

const (
	previewQuality = 70
	writeTimeout   = 2 * time.Second
)

// PreviewHub is a camera.PreviewSink that broadcasts downscaled JPEG frames of
// the attached stream to WebSocket clients.
type PreviewHub struct {
	logger   *slog.Logger
	interval time.Duration
	width    int
	upgrader websocket.Upgrader

	connsMu sync.Mutex
	conns   map[*websocket.Conn]struct{}

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

var _ camera.PreviewSink = (*PreviewHub)(nil)

func NewPreviewHub(logger *slog.Logger, fps, width int) *PreviewHub {
	if fps <= 0 {
		fps = 10
	}
	if width <= 0 {
		width = 480
	}
	return &PreviewHub{
		logger:   logger,
		interval: time.Second / time.Duration(fps),
		width:    width,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		conns: make(map[*websocket.Conn]struct{}),
	}
}

// Attach starts broadcasting frames from s.
func (h *PreviewHub) Attach(s camera.Stream) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.detachLocked()
	h.stop = make(chan struct{})
	h.done = make(chan struct{})
	go h.pump(s, h.stop, h.done)
}

// Detach stops broadcasting and waits for the pump to exit.
func (h *PreviewHub) Detach() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.detachLocked()
}

func (h *PreviewHub) detachLocked() {
	if h.stop == nil {
		return
	}
	close(h.stop)
	<-h.done
	h.stop, h.done = nil, nil
}

func (h *PreviewHub) pump(s camera.Stream, stop, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	var buf bytes.Buffer
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
		if h.Clients() == 0 {
			continue
		}
		frame, err := s.Frame()
		if err != nil {
			continue
		}
		thumb := imaging.Resize(frame, h.width, 0, imaging.Linear)
		buf.Reset()
		if err := imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(previewQuality)); err != nil {
			if h.logger != nil {
				h.logger.Warn("preview encode", "error", err)
			}
			continue
		}
		h.Broadcast(buf.Bytes())
	}
}

// Clients returns the number of connected viewers.
func (h *PreviewHub) Clients() int {
	h.connsMu.Lock()
	defer h.connsMu.Unlock()
	return len(h.conns)
}

// ServeHTTP upgrades the request and keeps the viewer registered until it
// disconnects.
func (h *PreviewHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		if h.logger != nil {
			h.logger.Warn("preview upgrade", "remote", r.RemoteAddr, "error", err)
		}
		return
	}
	h.connsMu.Lock()
	h.conns[conn] = struct{}{}
	h.connsMu.Unlock()
	if h.logger != nil {
		h.logger.Debug("preview viewer connected", "remote", r.RemoteAddr)
	}
	defer func() {
		h.connsMu.Lock()
		delete(h.conns, conn)
		h.connsMu.Unlock()
		conn.Close()
	}()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Broadcast sends one binary frame to every viewer, dropping viewers whose
// write fails.
func (h *PreviewHub) Broadcast(frame []byte) {
	h.connsMu.Lock()
	defer h.connsMu.Unlock()
	for conn := range h.conns {
		_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
			if h.logger != nil {
				h.logger.Debug("preview write", "error", err)
			}
			conn.Close()
			delete(h.conns, conn)
		}
	}
}

// Close disconnects all viewers.
func (h *PreviewHub) Close() {
	h.Detach()
	h.connsMu.Lock()
	defer h.connsMu.Unlock()
	for conn := range h.conns {
		conn.Close()
		delete(h.conns, conn)
	}
}
