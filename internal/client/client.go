// Package client talks to the model training API. Each call is a single
// request; nothing is retried.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/yungbote/mlcompare/internal/observability"
	"github.com/yungbote/mlcompare/internal/platform/apierr"
	"github.com/yungbote/mlcompare/internal/platform/envutil"
	"github.com/yungbote/mlcompare/internal/platform/logger"
)

const DefaultBaseURL = "http://localhost:8000/api"

type Options struct {
	BaseURL string

	// Timeout bounds each call when positive; zero leaves calls bounded only
	// by the caller's context.
	Timeout time.Duration

	// MaxResponseBytes caps how much of a response body is read.
	MaxResponseBytes int64

	HTTPClient *http.Client
	Log        *logger.Logger
}

type Client struct {
	baseURL  string
	timeout  time.Duration
	maxBytes int64

	httpClient *http.Client
	log        *logger.Logger
	tracer     trace.Tracer
}

func New(opts Options) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("baseURL required")
	}
	if u, err := url.Parse(baseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid baseURL %q", opts.BaseURL)
	}
	timeout := max(opts.Timeout, 0)
	maxBytes := opts.MaxResponseBytes
	if maxBytes <= 0 {
		maxBytes = 8 << 20
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	log := opts.Log
	if log == nil {
		log = logger.Nop()
	}
	return &Client{
		baseURL:    baseURL,
		timeout:    timeout,
		maxBytes:   maxBytes,
		httpClient: hc,
		log:        log.With("service", "TrainingAPIClient"),
		tracer:     otel.Tracer("github.com/yungbote/mlcompare/internal/client"),
	}, nil
}

func NewFromEnv(log *logger.Logger) (*Client, error) {
	return New(Options{
		BaseURL: envutil.String("MLCOMPARE_API_BASE_URL", DefaultBaseURL),
		Timeout: envutil.Duration("MLCOMPARE_API_TIMEOUT", 0),
		Log:     log,
	})
}

func (c *Client) BaseURL() string { return c.baseURL }

func (c *Client) UploadDataset(ctx context.Context, name string, file io.Reader) (*Dataset, error) {
	body, contentType, err := encodeMultipart(func(w *multipart.Writer) error {
		return writeFilePart(w, name, file)
	})
	if err != nil {
		return nil, err
	}
	var out Dataset
	if err := c.do(ctx, "upload dataset", http.MethodPost, "/datasets/upload/", contentType, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListDatasets(ctx context.Context) ([]Dataset, error) {
	out := []Dataset{}
	if err := c.do(ctx, "fetch datasets", http.MethodGet, "/datasets/", "", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListModels(ctx context.Context) ([]MLModel, error) {
	out := []MLModel{}
	if err := c.do(ctx, "fetch models", http.MethodGet, "/models/", "", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListTrainingResults(ctx context.Context) ([]TrainedModel, error) {
	out := []TrainedModel{}
	if err := c.do(ctx, "fetch training results", http.MethodGet, "/results/", "", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetResultDetails(ctx context.Context, id string) (*TrainedModel, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.New("result id required")
	}
	var out TrainedModel
	path := "/results/" + url.PathEscape(id) + "/"
	if err := c.do(ctx, "fetch result details", http.MethodGet, path, "", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SubmitTraining posts the dataset, model configs and target columns as one
// multipart request to /train/.
func (c *Client) SubmitTraining(ctx context.Context, req TrainingRequest) (*TrainingResponse, error) {
	models := req.Models
	if models == nil {
		models = []ModelConfig{}
	}
	modelsJSON, err := json.Marshal(models)
	if err != nil {
		return nil, fmt.Errorf("encode models: %w", err)
	}
	targets := req.TargetColumns
	if targets == nil {
		targets = []string{}
	}
	targetsJSON, err := json.Marshal(targets)
	if err != nil {
		return nil, fmt.Errorf("encode target columns: %w", err)
	}
	body, contentType, err := encodeMultipart(func(w *multipart.Writer) error {
		if err := writeFilePart(w, req.FileName, bytes.NewReader(req.File)); err != nil {
			return err
		}
		if err := w.WriteField("models", string(modelsJSON)); err != nil {
			return err
		}
		return w.WriteField("target_columns", string(targetsJSON))
	})
	if err != nil {
		return nil, err
	}
	var out TrainingResponse
	if err := c.do(ctx, "train models", http.MethodPost, "/train/", contentType, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, op, method, path, contentType string, body []byte, out any) (err error) {
	start := time.Now()
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = string(apierr.KindOf(err))
			if outcome == "" {
				outcome = "error"
			}
		}
		observability.Current().ObserveUpstream(op, outcome, time.Since(start))
	}()

	ctx, span := c.tracer.Start(ctx, "mlcompare.client "+op, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("http.request.method", method),
		attribute.String("url.path", path),
	)

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport")
		// a caller that went away gets its own error back, not a server fault
		if errors.Is(err, context.Canceled) {
			return err
		}
		c.log.Warn("training API unreachable", "op", op, "path", path, "error", err)
		return apierr.Unreachable(err)
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	raw, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes))
	if err != nil {
		span.RecordError(err)
		return apierr.Unreachable(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := parseHTTPError(op, resp.StatusCode, raw)
		span.SetStatus(codes.Error, apiErr.Message)
		c.log.Debug("training API error", "op", op, "status", resp.StatusCode, "message", apiErr.Message)
		return apiErr
	}
	c.log.Debug("training API call", "op", op, "status", resp.StatusCode, "duration_ms", time.Since(start).Milliseconds())
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return apierr.Generic(resp.StatusCode, fmt.Sprintf("Failed to %s: invalid response: %v", op, err))
	}
	return nil
}

func encodeMultipart(write func(w *multipart.Writer) error) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := write(w); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

func writeFilePart(w *multipart.Writer, name string, file io.Reader) error {
	if file == nil {
		return errors.New("file required")
	}
	name = filepath.Base(strings.TrimSpace(name))
	if name == "" || name == "." || name == "/" {
		name = "dataset.csv"
	}
	part, err := w.CreateFormFile("file", name)
	if err != nil {
		return err
	}
	_, err = io.Copy(part, file)
	return err
}
