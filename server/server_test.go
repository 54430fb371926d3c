package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soocke/leafscan-go/domain/camera"
	"github.com/soocke/leafscan-go/domain/camera/cameratest"
	"github.com/soocke/leafscan-go/domain/diagnosis"
	"github.com/soocke/leafscan-go/domain/fertilizer"
	"github.com/soocke/leafscan-go/store"
)

type fakeDiagnoser struct {
	disease    string
	predictErr error
	recErr     error
}

func (f *fakeDiagnoser) Predict(ctx context.Context, a *camera.Artifact) (diagnosis.Prediction, error) {
	if f.predictErr != nil {
		return diagnosis.Prediction{}, f.predictErr
	}
	return diagnosis.Prediction{Disease: f.disease, Confidence: 88}, nil
}

func (f *fakeDiagnoser) Recommend(ctx context.Context, disease string) (fertilizer.Recommendation, error) {
	if f.recErr != nil {
		return fertilizer.Recommendation{}, f.recErr
	}
	r, _ := fertilizer.Default().Recommend(disease)
	return r, nil
}

type harness struct {
	srv     *httptest.Server
	dev     *cameratest.Device
	session *camera.Session
	hub     *PreviewHub
	history *store.Store
}

func newHarness(t *testing.T, diag Diagnoser) *harness {
	t.Helper()
	dev := &cameratest.Device{}
	hub := NewPreviewHub(nil, 30, 64)
	session := camera.NewSession(camera.Options{Device: dev, Preview: hub})
	hist, err := store.Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	s := New(Options{Session: session, Preview: hub, Diagnoser: diag, History: hist})
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		srv.Close()
		session.Close()
		hub.Close()
		hist.Close()
	})
	return &harness{srv: srv, dev: dev, session: session, hub: hub, history: hist}
}

func (h *harness) post(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := http.Post(h.srv.URL+path, "application/json", nil)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func uploadFile(t *testing.T, url, name, mimeType string, data []byte) *http.Response {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="`+name+`"`)
	h.Set("Content-Type", mimeType)
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	resp, err := http.Post(url, mw.FormDataContentType(), &body)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHealth(t *testing.T) {
	h := newHarness(t, nil)
	resp, err := http.Get(h.srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestSessionLifecycle(t *testing.T) {
	h := newHarness(t, nil)

	resp := h.post(t, "/api/session/capture")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "not_active", decode[errorBody](t, resp).Code)

	resp = h.post(t, "/api/session/start")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	view := decode[sessionView](t, resp)
	assert.True(t, view.Active)
	assert.Equal(t, "granted", view.Permission)

	resp = h.post(t, "/api/session/capture")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	art := decode[artifactView](t, resp)
	assert.Equal(t, "image/jpeg", art.MIMEType)
	assert.Equal(t, "captured", art.Origin)
	assert.Equal(t, 0, h.dev.Live())

	img, err := http.Get(h.srv.URL + "/api/session/image")
	require.NoError(t, err)
	defer img.Body.Close()
	assert.Equal(t, "image/jpeg", img.Header.Get("Content-Type"))
	data, _ := io.ReadAll(img.Body)
	assert.EqualValues(t, art.Size, len(data))

	resp = h.post(t, "/api/session/discard")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	img2, err := http.Get(h.srv.URL + "/api/session/image")
	require.NoError(t, err)
	img2.Body.Close()
	assert.Equal(t, http.StatusNotFound, img2.StatusCode)
}

func TestShutter(t *testing.T) {
	h := newHarness(t, nil)
	resp := h.post(t, "/api/session/shutter")
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.True(t, h.session.Snapshot().Active())

	resp = h.post(t, "/api/session/shutter")
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	h.dev.SetOpenErr(camera.ErrPermissionDenied)
	resp = h.post(t, "/api/session/shutter")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = h.post(t, "/api/session/permission")
	assert.Equal(t, "denied", decode[map[string]string](t, resp)["permission"])
}

func TestFileUpload(t *testing.T) {
	h := newHarness(t, nil)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, cameratest.Solid(4, 3, color.RGBA{B: 255, A: 255})))

	require.NoError(t, h.session.Start(context.Background()))
	resp := uploadFile(t, h.srv.URL+"/api/session/file", "leaf.png", "image/png", buf.Bytes())
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	art := decode[artifactView](t, resp)
	assert.Equal(t, "selected", art.Origin)
	assert.Equal(t, 4, art.Width)
	assert.False(t, h.session.Snapshot().Active())

	resp = uploadFile(t, h.srv.URL+"/api/session/file", "notes.txt", "text/plain", []byte("hello"))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_file_type", decode[errorBody](t, resp).Code)

	resp = uploadFile(t, h.srv.URL+"/api/session/file", "huge.png", "image/png", make([]byte, camera.MaxFileSize+1))
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
	assert.Equal(t, art.ID, h.session.Current().ID)

	resp = uploadFile(t, h.srv.URL+"/api/session/file", "blank.png", "image/png", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "empty_file", decode[errorBody](t, resp).Code)
	assert.Equal(t, art.ID, h.session.Current().ID)
}

func TestScanRecordsHistory(t *testing.T) {
	h := newHarness(t, &fakeDiagnoser{disease: "Sheath Blight"})

	resp := h.post(t, "/api/scan")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	require.NoError(t, h.session.Start(context.Background()))
	_, err := h.session.Capture(context.Background())
	require.NoError(t, err)

	body := strings.NewReader(`{"latitude": 10.5, "longitude": 122.25}`)
	raw, err := http.Post(h.srv.URL+"/api/scan", "application/json", body)
	require.NoError(t, err)
	defer raw.Body.Close()
	require.Equal(t, http.StatusOK, raw.StatusCode)
	out := decode[scanResponse](t, raw)
	assert.Equal(t, "Sheath Blight", out.Prediction.Disease)
	require.NotNil(t, out.Fertilizer)
	assert.Equal(t, "Hexaconazole", out.Fertilizer.Fertilizer)

	hist, err := http.Get(h.srv.URL + "/api/history?limit=5")
	require.NoError(t, err)
	defer hist.Body.Close()
	scans := decode[[]store.Scan](t, hist)
	require.Len(t, scans, 1)
	assert.Equal(t, "Hexaconazole", scans[0].Fertilizer)
	require.NotNil(t, scans[0].Longitude)
	assert.Equal(t, 122.25, *scans[0].Longitude)

	item, err := http.Get(h.srv.URL + "/api/history/" + scans[0].ID)
	require.NoError(t, err)
	defer item.Body.Close()
	require.Equal(t, http.StatusOK, item.StatusCode)
	assert.Equal(t, out.Artifact.ID, decode[store.Scan](t, item).ID)

	missing, err := http.Get(h.srv.URL + "/api/history/nope")
	require.NoError(t, err)
	missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)

	stats, err := http.Get(h.srv.URL + "/api/history/stats?days=7")
	require.NoError(t, err)
	defer stats.Body.Close()
	assert.Equal(t, map[string]int{"Sheath Blight": 1}, decode[historyStats](t, stats).Diseases)
}

func TestScanUpstreamFailure(t *testing.T) {
	h := newHarness(t, &fakeDiagnoser{predictErr: &diagnosis.UpstreamError{Status: 500, Message: "model missing"}})
	_, err := h.session.SelectFile(camera.File{Name: "a.png", MIMEType: "image/png", Data: []byte{1, 2, 3}})
	require.NoError(t, err)
	resp := h.post(t, "/api/scan")
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)

	h2 := newHarness(t, &fakeDiagnoser{disease: "Blast", recErr: errors.New("timeout")})
	_, err = h2.session.SelectFile(camera.File{Name: "a.png", MIMEType: "image/png", Data: []byte{1, 2, 3}})
	require.NoError(t, err)
	resp = h2.post(t, "/api/scan")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decode[scanResponse](t, resp)
	assert.Nil(t, out.Fertilizer)
	assert.Equal(t, "timeout", out.FertilizerError)
}

func TestFertilizerLookup(t *testing.T) {
	h := newHarness(t, nil)
	resp, err := http.Get(h.srv.URL + "/api/fertilizer/Brown%20Spot")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decode[fertilizerResponse](t, resp)
	assert.True(t, out.Known)
	assert.Equal(t, "Mancozeb", out.Recommendation.Fertilizer)
	require.NotNil(t, out.Disease)

	resp2, err := http.Get(h.srv.URL + "/api/fertilizer/Tungro")
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp2.StatusCode)
	assert.Equal(t, "General Purpose Fertilizer", decode[fertilizerResponse](t, resp2).Recommendation.Fertilizer)
}

func TestPreviewBroadcast(t *testing.T) {
	h := newHarness(t, nil)
	wsURL := "ws" + strings.TrimPrefix(h.srv.URL, "http") + "/ws/preview"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	deadline := time.Now().Add(time.Second)
	for h.hub.Clients() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	require.NoError(t, h.session.Start(context.Background()))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	kind, frame, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.BinaryMessage, kind)
	assert.Equal(t, []byte{0xFF, 0xD8}, frame[:2], "expected a JPEG frame")

	h.session.Stop()
	assert.Equal(t, 0, h.dev.Live())
}

func TestStatusFor(t *testing.T) {
	st, _ := statusFor(errors.Join(camera.ErrNotActive, camera.ErrCameraUnavailable))
	assert.Equal(t, http.StatusServiceUnavailable, st)
	st, _ = statusFor(errors.New("other"))
	assert.Equal(t, http.StatusInternalServerError, st)
}
