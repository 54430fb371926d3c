// Package server exposes a camera session and the diagnosis pipeline over
// HTTP, with live preview frames over WebSocket.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/soocke/leafscan-go/domain/camera"
	"github.com/soocke/leafscan-go/domain/diagnosis"
	"github.com/soocke/leafscan-go/domain/fertilizer"
	"github.com/soocke/leafscan-go/store"
)

// Diagnoser is the remote prediction service.
type Diagnoser interface {
	Predict(ctx context.Context, a *camera.Artifact) (diagnosis.Prediction, error)
	Recommend(ctx context.Context, disease string) (fertilizer.Recommendation, error)
}

// History records completed scans. Optional.
type History interface {
	Record(ctx context.Context, sc store.Scan) error
	Recent(ctx context.Context, limit int) ([]store.Scan, error)
	Get(ctx context.Context, id string) (store.Scan, error)
	DiseaseCounts(ctx context.Context, since time.Time) (map[string]int, error)
}

type Options struct {
	Session   *camera.Session
	Preview   *PreviewHub
	Diagnoser Diagnoser
	Catalog   *fertilizer.Catalog
	History   History
	Logger    *slog.Logger
}

type Server struct {
	session   *camera.Session
	preview   *PreviewHub
	diagnoser Diagnoser
	catalog   *fertilizer.Catalog
	history   History
	logger    *slog.Logger
	router    *mux.Router
}

func New(opts Options) *Server {
	s := &Server{
		session:   opts.Session,
		preview:   opts.Preview,
		diagnoser: opts.Diagnoser,
		catalog:   opts.Catalog,
		history:   opts.History,
		logger:    opts.Logger,
	}
	if s.catalog == nil {
		s.catalog = fertilizer.Default()
	}
	s.router = s.routes()
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.requestID)
	r.HandleFunc("/health", s.handleHealth).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/session", s.handleSnapshot).Methods("GET")
	api.HandleFunc("/session/permission", s.handlePermission).Methods("POST")
	api.HandleFunc("/session/start", s.handleStart).Methods("POST")
	api.HandleFunc("/session/stop", s.handleStop).Methods("POST")
	api.HandleFunc("/session/capture", s.handleCapture).Methods("POST")
	api.HandleFunc("/session/shutter", s.handleShutter).Methods("POST")
	api.HandleFunc("/session/discard", s.handleDiscard).Methods("POST")
	api.HandleFunc("/session/file", s.handleFile).Methods("POST")
	api.HandleFunc("/session/image", s.handleImage).Methods("GET")
	api.HandleFunc("/scan", s.handleScan).Methods("POST")
	api.HandleFunc("/fertilizer/{disease}", s.handleFertilizer).Methods("GET")
	api.HandleFunc("/history", s.handleHistory).Methods("GET")
	api.HandleFunc("/history/stats", s.handleHistoryStats).Methods("GET")
	api.HandleFunc("/history/{id}", s.handleHistoryItem).Methods("GET")

	if s.preview != nil {
		r.Handle("/ws/preview", s.preview).Methods("GET")
	}
	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		if s.logger != nil {
			s.logger.Info("http server listening", "addr", addr)
		}
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if s.preview != nil {
		s.preview.Close()
	}
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		start := time.Now()
		next.ServeHTTP(w, r)
		if s.logger != nil {
			s.logger.Debug("http request", "id", id, "method", r.Method, "path", r.URL.Path, "took", time.Since(start))
		}
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newSessionView(s.session.Snapshot()))
}

func (s *Server) handlePermission(w http.ResponseWriter, r *http.Request) {
	p := s.session.CheckPermission(r.Context())
	writeJSON(w, http.StatusOK, map[string]string{"permission": p.String()})
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if err := s.session.Start(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newSessionView(s.session.Snapshot()))
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.session.Stop()
	writeJSON(w, http.StatusOK, newSessionView(s.session.Snapshot()))
}

func (s *Server) handleCapture(w http.ResponseWriter, r *http.Request) {
	a, err := s.session.Capture(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newArtifactView(a))
}

// handleShutter answers 202 when the press only started the camera.
func (s *Server) handleShutter(w http.ResponseWriter, r *http.Request) {
	a, err := s.session.CaptureOrStart(r.Context())
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, newArtifactView(a))
	case errors.Is(err, camera.ErrNotActive) && s.session.Snapshot().Active():
		writeJSON(w, http.StatusAccepted, newSessionView(s.session.Snapshot()))
	default:
		s.writeError(w, err)
	}
}

func (s *Server) handleDiscard(w http.ResponseWriter, r *http.Request) {
	s.session.Discard()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, camera.MaxFileSize+1<<20)
	file, hdr, err := r.FormFile("file")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			s.writeError(w, camera.ErrFileTooLarge)
			return
		}
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "multipart field \"file\" is required"})
		return
	}
	defer file.Close()

	f := camera.File{
		Name:     hdr.Filename,
		MIMEType: hdr.Header.Get("Content-Type"),
		Size:     hdr.Size,
	}
	if err := f.Validate(); err != nil {
		s.writeError(w, err)
		return
	}
	buf := make([]byte, hdr.Size)
	if _, err := io.ReadFull(file, buf); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}
	f.Data = buf
	a, err := s.session.SelectFile(f)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newArtifactView(a))
}

func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	a := s.session.Current()
	if a == nil {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "no current image"})
		return
	}
	w.Header().Set("Content-Type", a.MIMEType)
	w.Header().Set("Content-Length", strconv.Itoa(len(a.Data)))
	w.Header().Set("Content-Disposition", "inline; filename=\""+a.Name+"\"")
	_, _ = w.Write(a.Data)
}

type scanRequest struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

type scanResponse struct {
	Artifact        artifactView               `json:"artifact"`
	Prediction      diagnosis.Prediction       `json:"prediction"`
	Fertilizer      *fertilizer.Recommendation `json:"fertilizer,omitempty"`
	FertilizerError string                     `json:"fertilizerError,omitempty"`
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	if s.diagnoser == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "prediction service not configured"})
		return
	}
	var req scanRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid JSON body"})
			return
		}
	}
	a := s.session.Current()
	if a == nil {
		s.writeError(w, diagnosis.ErrNoImage)
		return
	}
	pred, err := s.diagnoser.Predict(r.Context(), a)
	if err != nil {
		s.writeError(w, err)
		return
	}
	resp := scanResponse{Artifact: newArtifactView(a), Prediction: pred}
	if rec, err := s.diagnoser.Recommend(r.Context(), pred.Disease); err != nil {
		if s.logger != nil {
			s.logger.Warn("fertilizer recommendation failed", "disease", pred.Disease, "error", err)
		}
		resp.FertilizerError = err.Error()
	} else {
		resp.Fertilizer = &rec
	}

	if s.history != nil {
		sc := store.NewScan(a, pred)
		sc.Latitude, sc.Longitude = req.Latitude, req.Longitude
		if resp.Fertilizer != nil {
			sc.Fertilizer = resp.Fertilizer.Fertilizer
		}
		if err := s.history.Record(r.Context(), sc); err != nil && s.logger != nil {
			s.logger.Error("record scan", "error", err)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

type fertilizerResponse struct {
	Disease        *fertilizer.Disease       `json:"disease,omitempty"`
	Recommendation fertilizer.Recommendation `json:"recommendation"`
	Known          bool                      `json:"known"`
}

func (s *Server) handleFertilizer(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["disease"]
	rec, known := s.catalog.Recommend(name)
	resp := fertilizerResponse{Recommendation: rec, Known: known}
	if d, ok := s.catalog.Disease(name); ok {
		resp.Disease = &d
	}
	status := http.StatusOK
	if !known {
		status = http.StatusNotFound
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeJSON(w, http.StatusOK, []store.Scan{})
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	scans, err := s.history.Recent(r.Context(), limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if scans == nil {
		scans = []store.Scan{}
	}
	writeJSON(w, http.StatusOK, scans)
}

func (s *Server) handleHistoryItem(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.writeError(w, store.ErrNotFound)
		return
	}
	sc, err := s.history.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sc)
}

type historyStats struct {
	Since    time.Time      `json:"since"`
	Diseases map[string]int `json:"diseases"`
}

// handleHistoryStats counts scans per disease over the last ?days= (default 30).
func (s *Server) handleHistoryStats(w http.ResponseWriter, r *http.Request) {
	days, err := strconv.Atoi(r.URL.Query().Get("days"))
	if err != nil || days <= 0 {
		days = 30
	}
	resp := historyStats{Since: time.Now().UTC().AddDate(0, 0, -days), Diseases: map[string]int{}}
	if s.history != nil {
		counts, err := s.history.DiseaseCounts(r.Context(), resp.Since)
		if err != nil {
			s.writeError(w, err)
			return
		}
		resp.Diseases = counts
	}
	writeJSON(w, http.StatusOK, resp)
}
