package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/talentvibe/tui/internal/obs"
)

const (
	analyzePath = "/api/analyze"
	// bodyPrefixBytes is how much of an unexpected body an error keeps.
	bodyPrefixBytes = 2 << 10
)

// maxResponseBytes caps how much of a response body is read.
var maxResponseBytes int64 = 8 << 20

// Client submits analysis jobs to the backend.
type Client struct {
	baseURL string
	timeout time.Duration
	http    *http.Client
	logger  *logrus.Logger
}

// NewClient creates a client for the backend described by cfg.
func NewClient(cfg Config, logger *logrus.Logger) *Client {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	timeout := cfg.Submit.Timeout
	if timeout <= 0 {
		timeout = DefaultSubmitTimeout
	}
	// The per-request context carries the ceiling, not the http.Client.
	httpClient := &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	return &Client{
		baseURL: strings.TrimRight(cfg.Server.BaseURL, "/"),
		timeout: timeout,
		http:    httpClient,
		logger:  logger,
	}
}

// BaseURL returns the backend base URL.
func (c *Client) BaseURL() string { return c.baseURL }

// Timeout returns the hard ceiling applied to each analysis request.
func (c *Client) Timeout() time.Duration { return c.timeout }

// Analyze uploads job as multipart form data and classifies the response.
func (c *Client) Analyze(ctx context.Context, job JobSubmission) (JobOutcome, error) {
	if len(job.Files) == 0 {
		return JobOutcome{}, &ValidationError{Field: "resumes", Message: "no files selected"}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	ctx, span := obs.Tracer("backend").Start(ctx, "analyze.submit")
	defer span.End()

	reqID := uuid.NewString()
	start := time.Now()
	log := c.logger.WithFields(logrus.Fields{
		"req_id": reqID,
		"files":  len(job.Files),
	})
	span.SetAttributes(
		attribute.String("req_id", reqID),
		attribute.Int("files", len(job.Files)),
	)

	outcome, err := c.analyze(ctx, job, reqID, log)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.WithError(err).WithField("elapsed_ms", time.Since(start).Milliseconds()).Warn("analyze.failed")
		obs.RecordSubmission(failureLabel(err), start)
		return JobOutcome{}, err
	}

	span.SetAttributes(attribute.String("job_id", outcome.JobID), attribute.String("outcome", outcome.Kind.String()))
	log.WithFields(logrus.Fields{
		"job_id":     outcome.JobID,
		"outcome":    outcome.Kind.String(),
		"elapsed_ms": time.Since(start).Milliseconds(),
	}).Info("analyze.done")
	obs.RecordSubmission(outcome.Kind.String(), start)
	return outcome, nil
}

func (c *Client) analyze(ctx context.Context, job JobSubmission, reqID string, log *logrus.Entry) (JobOutcome, error) {
	body, contentType := multipartBody(job)
	defer body.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+analyzePath, body)
	if err != nil {
		return JobOutcome{}, &TransportError{Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", reqID)

	log.WithField("url", req.URL.String()).Info("analyze.request")

	resp, err := c.http.Do(req)
	if err != nil {
		return JobOutcome{}, c.requestError(ctx, err)
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			log.WithError(err).Warn("analyze.response_body_close_error")
		}
	}(resp.Body)

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return JobOutcome{}, c.requestError(ctx, err)
	}

	log.WithFields(logrus.Fields{
		"status":       resp.StatusCode,
		"content_type": resp.Header.Get("Content-Type"),
		"bytes":        len(raw),
	}).Info("analyze.response")

	return decodeAnalyzeResponse(resp.StatusCode, resp.Header.Get("Content-Type"), raw)
}

// requestError tells an expired ceiling apart from other transport failures.
func (c *Client) requestError(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &TimeoutError{After: c.timeout, Err: err}
	}
	return &TransportError{Err: err}
}

// decodeAnalyzeResponse classifies a response by content type first, then by
// status. A JSON parse failure never escapes as an opaque error.
func decodeAnalyzeResponse(status int, contentType string, raw []byte) (JobOutcome, error) {
	if !isJSON(contentType) {
		return JobOutcome{}, &MalformedResponseError{StatusCode: status, Body: bodyPrefix(raw)}
	}
	if err := validateAnalyzeResponse(raw); err != nil {
		return JobOutcome{}, &MalformedResponseError{StatusCode: status, Body: bodyPrefix(raw), Err: err}
	}

	var r analyzeResponse
	if err := json.Unmarshal(raw, &r); err != nil {
		return JobOutcome{}, &MalformedResponseError{StatusCode: status, Body: bodyPrefix(raw), Err: err}
	}

	if status < 200 || status > 299 {
		msg := r.Error
		if msg == "" {
			msg = genericAnalysisError
		}
		return JobOutcome{}, &ApplicationError{StatusCode: status, Message: msg, JobID: r.JobID}
	}
	return r.outcome(), nil
}

func bodyPrefix(raw []byte) string {
	if len(raw) > bodyPrefixBytes {
		raw = raw[:bodyPrefixBytes]
	}
	return string(raw)
}

func isJSON(contentType string) bool {
	if contentType == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}

// multipartBody streams the form through a pipe so large résumé batches are
// never buffered in memory.
func multipartBody(job JobSubmission) (io.ReadCloser, string) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		err := writeForm(mw, job)
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	return pr, mw.FormDataContentType()
}

func writeForm(mw *multipart.Writer, job JobSubmission) error {
	if err := mw.WriteField("job_description", job.Description); err != nil {
		return fmt.Errorf("write job_description: %w", err)
	}
	for _, f := range job.Files {
		if err := writeFile(mw, f); err != nil {
			return err
		}
	}
	return nil
}

func writeFile(mw *multipart.Writer, f FileRef) error {
	src, err := os.Open(f.Path)
	if err != nil {
		return fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer src.Close()

	name := f.Name
	if name == "" {
		name = baseName(f.Path)
	}
	part, err := mw.CreateFormFile("resumes", name)
	if err != nil {
		return fmt.Errorf("create part %s: %w", name, err)
	}
	if _, err := io.Copy(part, src); err != nil {
		return fmt.Errorf("copy %s: %w", name, err)
	}
	return nil
}

func failureLabel(err error) string {
	var (
		valErr     *ValidationError
		timeoutErr *TimeoutError
		malformed  *MalformedResponseError
		appErr     *ApplicationError
	)
	switch {
	case errors.As(err, &valErr):
		return "validation"
	case errors.As(err, &timeoutErr):
		return "timeout"
	case errors.As(err, &malformed):
		return "malformed"
	case errors.As(err, &appErr):
		return "application"
	}
	return "transport"
}
