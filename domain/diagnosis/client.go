// Package diagnosis is the client for the remote disease prediction and
// fertilizer recommendation service.
package diagnosis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/soocke/leafscan-go/assets"
	"github.com/soocke/leafscan-go/domain/camera"
	"github.com/soocke/leafscan-go/domain/fertilizer"
)

const (
	predictPath    = "/predict-disease"
	recommendPath  = "/recommend-fertilizer"
	maxResponse    = 1 << 20
	defaultTimeout = 30 * time.Second
)

var (
	ErrNoImage         = errors.New("diagnosis: no image")
	ErrInvalidResponse = errors.New("diagnosis: invalid response")
)

// UpstreamError carries a non-2xx status from the service.
type UpstreamError struct {
	Status  int
	Message string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("diagnosis: upstream %d: %s", e.Status, e.Message)
}

// Temporary reports whether retrying may help.
func (e *UpstreamError) Temporary() bool {
	return e.Status/100 == 5 || e.Status == http.StatusRequestTimeout
}

// Prediction is an enriched disease prediction.
type Prediction struct {
	Disease         string   `json:"disease"`
	Confidence      float64  `json:"confidence"`
	Description     string   `json:"description"`
	Recommendations string   `json:"recommendations"`
	Symptoms        []string `json:"symptoms"`
	Healthy         bool     `json:"healthy"`
}

type Options struct {
	BaseURL   string
	Timeout   time.Duration
	CacheSize int
	Catalog   *fertilizer.Catalog
	Logger    *slog.Logger
}

func (o *Options) defaults() {
	if o.BaseURL == "" {
		o.BaseURL = "http://localhost:8000"
	}
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	if o.CacheSize <= 0 {
		o.CacheSize = 64
	}
	if o.Catalog == nil {
		o.Catalog = fertilizer.Default()
	}
}

type Client struct {
	base      string
	catalog   *fertilizer.Catalog
	logger    *slog.Logger
	cache     *lru.Cache[[32]byte, Prediction]
	predictV  *jsonschema.Schema
	recommend *jsonschema.Schema
	do        func(*http.Request) (*http.Response, error)
}

func New(opts Options) (*Client, error) {
	opts.defaults()
	cache, err := lru.New[[32]byte, Prediction](opts.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("diagnosis: cache: %w", err)
	}
	ps, err := jsonschema.CompileString("prediction.schema.json", assets.PredictionSchema)
	if err != nil {
		return nil, fmt.Errorf("diagnosis: prediction schema: %w", err)
	}
	fs, err := jsonschema.CompileString("fertilizer.schema.json", assets.FertilizerSchema)
	if err != nil {
		return nil, fmt.Errorf("diagnosis: fertilizer schema: %w", err)
	}
	hc := &http.Client{Timeout: opts.Timeout}
	return &Client{
		base:      strings.TrimRight(opts.BaseURL, "/"),
		catalog:   opts.Catalog,
		logger:    opts.Logger,
		cache:     cache,
		predictV:  ps,
		recommend: fs,
		do:        hc.Do,
	}, nil
}

// Predict uploads the artifact and returns the enriched prediction. Results
// are cached by content digest.
func (c *Client) Predict(ctx context.Context, a *camera.Artifact) (Prediction, error) {
	if a == nil || len(a.Data) == 0 {
		return Prediction{}, ErrNoImage
	}
	key := a.Digest()
	if p, ok := c.cache.Get(key); ok {
		if c.logger != nil {
			c.logger.Debug("prediction cache hit", "artifact", a.ID)
		}
		return p, nil
	}

	body, contentType, err := multipartBody(a)
	if err != nil {
		return Prediction{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+predictPath, body)
	if err != nil {
		return Prediction{}, err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	raw, status, err := c.roundTrip(req)
	if err != nil {
		return Prediction{}, err
	}
	if status/100 != 2 {
		return Prediction{}, &UpstreamError{Status: status, Message: upstreamMessage(raw)}
	}
	var wire struct {
		Result          string   `json:"result"`
		Disease         string   `json:"disease"`
		Confidence      float64  `json:"confidence"`
		Description     string   `json:"description"`
		Recommendations string   `json:"recommendations"`
		Symptoms        []string `json:"symptoms"`
	}
	if err := c.decode(c.predictV, raw, &wire); err != nil {
		return Prediction{}, err
	}
	p := Prediction{
		Disease:         wire.Disease,
		Confidence:      wire.Confidence,
		Description:     wire.Description,
		Recommendations: wire.Recommendations,
		Symptoms:        wire.Symptoms,
	}
	if p.Disease == "" {
		p.Disease = wire.Result
	}
	p = c.enrich(p)
	c.cache.Add(key, p)
	if c.logger != nil {
		c.logger.Info("prediction", "artifact", a.ID, "disease", p.Disease, "confidence", p.Confidence, "took", time.Since(start))
	}
	return p, nil
}

// Recommend asks the service for a treatment. The service answers unknown
// diseases with 404 and a general purpose recommendation, which is returned
// as a normal result.
func (c *Client) Recommend(ctx context.Context, disease string) (fertilizer.Recommendation, error) {
	disease = strings.TrimSpace(disease)
	if disease == "" {
		return fertilizer.Recommendation{}, errors.New("diagnosis: disease name is required")
	}
	payload, err := json.Marshal(map[string]string{"disease": disease})
	if err != nil {
		return fertilizer.Recommendation{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+recommendPath, bytes.NewReader(payload))
	if err != nil {
		return fertilizer.Recommendation{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	raw, status, err := c.roundTrip(req)
	if err != nil {
		return fertilizer.Recommendation{}, err
	}
	if status/100 != 2 && status != http.StatusNotFound {
		return fertilizer.Recommendation{}, &UpstreamError{Status: status, Message: upstreamMessage(raw)}
	}
	var r fertilizer.Recommendation
	if err := c.decode(c.recommend, raw, &r); err != nil {
		if status == http.StatusNotFound {
			return fertilizer.Recommendation{}, &UpstreamError{Status: status, Message: upstreamMessage(raw)}
		}
		return fertilizer.Recommendation{}, err
	}
	if status == http.StatusNotFound && c.logger != nil {
		c.logger.Debug("no specific fertilizer", "disease", disease)
	}
	return c.enrichRecommendation(disease, r), nil
}

func (c *Client) roundTrip(req *http.Request) ([]byte, int, error) {
	resp, err := c.do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("diagnosis: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponse))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("diagnosis: read response: %w", err)
	}
	return raw, resp.StatusCode, nil
}

func (c *Client) decode(schema *jsonschema.Schema, raw []byte, v any) error {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidResponse, err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidResponse, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidResponse, err)
	}
	return nil
}

func (c *Client) enrich(p Prediction) Prediction {
	d, ok := c.catalog.Disease(p.Disease)
	if !ok {
		return p
	}
	p.Healthy = d.Healthy
	if p.Description == "" {
		p.Description = d.Description
	}
	if p.Recommendations == "" {
		p.Recommendations = d.Recommendations
	}
	if len(p.Symptoms) == 0 {
		p.Symptoms = append([]string(nil), d.Symptoms...)
	}
	return p
}

// enrichRecommendation fills detail the service does not send from the
// catalog entry for the same product, then from generic defaults.
func (c *Client) enrichRecommendation(disease string, r fertilizer.Recommendation) fertilizer.Recommendation {
	if local, ok := c.catalog.Recommend(disease); ok && strings.EqualFold(local.Fertilizer, r.Fertilizer) {
		if r.Effectiveness == 0 {
			r.Effectiveness = local.Effectiveness
		}
		if len(r.SuitableFor) == 0 {
			r.SuitableFor = local.SuitableFor
		}
		if len(r.Benefits) == 0 {
			r.Benefits = local.Benefits
		}
		r.Organic = r.Organic || local.Organic
	}
	return fertilizer.Complete(r)
}

func multipartBody(a *camera.Artifact) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, a.Name))
	h.Set("Content-Type", a.MIMEType)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(a.Data); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

func upstreamMessage(raw []byte) string {
	var body struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(raw, &body) == nil && body.Detail != "" {
		return body.Detail
	}
	msg := strings.TrimSpace(string(raw))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}
