package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"
)

// MessagePath is the relay endpoint the widget talks to.
const MessagePath = "/api/message"

// Request is the outbound half of one turn.
type Request struct {
	Text string
	File *File
}

// Sender delivers a request to the relay and returns the raw response body.
type Sender interface {
	Send(ctx context.Context, req Request) (string, error)
}

// RelayClient is the HTTP Sender used by the chat front-ends.
type RelayClient struct {
	client *resty.Client
	url    string
}

// Ensure RelayClient implements Sender.
var _ Sender = (*RelayClient)(nil)

// NewRelayClient creates a client for the relay at baseURL.
func NewRelayClient(baseURL string) *RelayClient {
	return &RelayClient{
		client: resty.New().
			SetRetryCount(0).
			SetHeader("User-Agent", "auditsseus-chat/1.0"),
		url: baseURL + MessagePath,
	}
}

// Send posts one turn. Files go out as multipart; text-only turns as JSON.
func (c *RelayClient) Send(ctx context.Context, req Request) (string, error) {
	r := c.client.R().SetContext(ctx)
	if req.File != nil {
		r.SetMultipartFormData(map[string]string{"text": req.Text}).
			SetMultipartField("file", req.File.Name, req.File.ContentType, bytes.NewReader(req.File.Data))
	} else {
		r.SetHeader("Content-Type", "application/json").
			SetBody(map[string]string{"text": req.Text})
	}

	resp, err := r.Post(c.url)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", fmt.Errorf("send message: %w", err)
	}

	if !resp.IsSuccess() {
		return "", newStatusError(resp.StatusCode(), resp.Body())
	}
	return string(resp.Body()), nil
}

func newStatusError(code int, body []byte) *StatusError {
	var envelope struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error != "" {
		return &StatusError{StatusCode: code, Message: envelope.Error}
	}
	return &StatusError{
		StatusCode: code,
		Message:    fmt.Sprintf("API request failed: %d %s", code, http.StatusText(code)),
	}
}
