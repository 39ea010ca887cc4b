package chat

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// Fixed transcript wording.
const (
	LoadingText        = "Generating a response..."
	NoResponseText     = "No response."
	MalformedText      = "The response format is invalid."
	TimeoutText        = "The request timed out. Please try again later."
	GatewayTimeoutText = "The server took too long to respond. Please try again shortly."
	failurePrefix      = "An error occurred: "
)

var (
	// ErrUnsupportedFile is returned for attachments other than images and PDFs.
	ErrUnsupportedFile = errors.New("unsupported file type: only images and PDF files can be uploaded")
	// ErrBusy is returned when the widget is waiting for a reply.
	ErrBusy = errors.New("a message is already being sent")
)

// StatusError is a non-success answer from the relay.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return e.Message
}

// FailureText returns the single assistant message shown for a failed turn.
func FailureText(err error) string {
	if err == nil {
		return failurePrefix + "unknown error"
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return TimeoutText
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusGatewayTimeout {
		return GatewayTimeoutText
	}
	if strings.Contains(err.Error(), "504") {
		return GatewayTimeoutText
	}
	return failurePrefix + err.Error()
}
