package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// userMarker is the fixed value of the outbound "user" field.
const userMarker = "user"

// ErrTimeout is returned when the backend does not answer within the budget.
var ErrTimeout = errors.New("request timed out")

// UpstreamStatusError reports a non-success status from the backend.
type UpstreamStatusError struct {
	StatusCode int
}

func (e *UpstreamStatusError) Error() string {
	return fmt.Sprintf("backend request failed: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// Forwarder sends normalized turns to the external backend.
type Forwarder struct {
	client  *resty.Client
	url     string
	timeout time.Duration
}

// NewForwarder creates a forwarder for the backend message endpoint.
// The outbound call is made exactly once; resty retries stay disabled.
func NewForwarder(url string, timeout time.Duration, logger *slog.Logger) *Forwarder {
	if logger == nil {
		logger = slog.Default()
	}

	client := resty.New().
		SetRetryCount(0).
		SetHeader("User-Agent", "auditsseus-relay/1.0").
		SetLogger(restyLogger{logger: logger})

	return &Forwarder{
		client:  client,
		url:     url,
		timeout: timeout,
	}
}

// Forward posts p as multipart to the backend and returns its JSON body.
func (f *Forwarder) Forward(ctx context.Context, p *Payload) ([]byte, error) {
	callCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req := f.client.R().
		SetContext(callCtx).
		SetMultipartFormData(map[string]string{
			"text": p.Text,
			"user": userMarker,
		})

	if p.File != nil {
		req.SetMultipartField("file", p.File.Name, p.File.ContentType, bytes.NewReader(p.File.Data))
	}

	resp, err := req.Post(f.url)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return nil, ErrTimeout
		}
		return nil, fmt.Errorf("call backend: %w", err)
	}

	if !resp.IsSuccess() {
		return nil, &UpstreamStatusError{StatusCode: resp.StatusCode()}
	}

	body := resp.Body()
	if !json.Valid(body) {
		return nil, fmt.Errorf("backend returned invalid JSON")
	}
	return body, nil
}

// restyLogger routes resty diagnostics into slog.
type restyLogger struct {
	logger *slog.Logger
}

func (l restyLogger) Errorf(format string, v ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, v...), "component", "resty")
}

func (l restyLogger) Warnf(format string, v ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, v...), "component", "resty")
}

func (l restyLogger) Debugf(format string, v ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, v...), "component", "resty")
}
