package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/soocke/leafscan-go/domain/camera"
	"github.com/soocke/leafscan-go/domain/diagnosis"
	"github.com/soocke/leafscan-go/store"
)

type sessionView struct {
	State      string        `json:"state"`
	Active     bool          `json:"active"`
	Loading    bool          `json:"loading"`
	Permission string        `json:"permission"`
	Facing     string        `json:"facing"`
	Current    *artifactView `json:"current,omitempty"`
}

func newSessionView(s camera.Snapshot) sessionView {
	v := sessionView{
		State:      s.State.String(),
		Active:     s.Active(),
		Loading:    s.Loading(),
		Permission: s.Permission.String(),
		Facing:     s.Facing.String(),
	}
	if s.Current != nil {
		a := newArtifactView(s.Current)
		v.Current = &a
	}
	return v
}

type artifactView struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	MIMEType  string    `json:"mimeType"`
	Size      int64     `json:"size"`
	Width     int       `json:"width,omitempty"`
	Height    int       `json:"height,omitempty"`
	Origin    string    `json:"origin"`
	CreatedAt time.Time `json:"createdAt"`
}

func newArtifactView(a *camera.Artifact) artifactView {
	return artifactView{
		ID:        a.ID,
		Name:      a.Name,
		MIMEType:  a.MIMEType,
		Size:      a.Size(),
		Width:     a.Width,
		Height:    a.Height,
		Origin:    a.Origin.String(),
		CreatedAt: a.CreatedAt,
	}
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

var errorStatus = []struct {
	err    error
	status int
	code   string
}{
	{camera.ErrInvalidFileType, http.StatusBadRequest, "invalid_file_type"},
	{camera.ErrEmptyFile, http.StatusBadRequest, "empty_file"},
	{camera.ErrFileTooLarge, http.StatusRequestEntityTooLarge, "file_too_large"},
	{camera.ErrPermissionDenied, http.StatusForbidden, "permission_denied"},
	{camera.ErrCameraUnavailable, http.StatusServiceUnavailable, "camera_unavailable"},
	{camera.ErrStreamStartFailed, http.StatusServiceUnavailable, "stream_start_failed"},
	{camera.ErrNotActive, http.StatusConflict, "not_active"},
	{camera.ErrStartAborted, http.StatusConflict, "start_aborted"},
	{camera.ErrCaptureEncodeFailed, http.StatusInternalServerError, "capture_failed"},
	{camera.ErrSessionClosed, http.StatusGone, "session_closed"},
	{diagnosis.ErrNoImage, http.StatusConflict, "no_image"},
	{diagnosis.ErrInvalidResponse, http.StatusBadGateway, "invalid_upstream_response"},
	{store.ErrNotFound, http.StatusNotFound, "not_found"},
}

// statusFor maps a domain error to an HTTP status. Joined errors resolve to
// the first match in table order.
func statusFor(err error) (int, string) {
	var ue *diagnosis.UpstreamError
	if errors.As(err, &ue) {
		return http.StatusBadGateway, "upstream_error"
	}
	for _, e := range errorStatus {
		if errors.Is(err, e.err) {
			return e.status, e.code
		}
	}
	return http.StatusInternalServerError, ""
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status, code := statusFor(err)
	if s.logger != nil {
		if status >= 500 {
			s.logger.Error("request failed", "status", status, "error", err)
		} else {
			s.logger.Debug("request rejected", "status", status, "error", err)
		}
	}
	writeJSON(w, status, errorBody{Error: err.Error(), Code: code})
}
