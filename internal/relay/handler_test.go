package relay

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/ashureev/auditsseus-chat/internal/monitoring"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// capturedRequest is what the fake backend saw.
type capturedRequest struct {
	Path        string
	Text        string
	HasText     bool
	User        string
	FileName    string
	FileType    string
	FileData    []byte
	ContentType string
}

func newBackend(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) (*httptest.Server, <-chan capturedRequest) {
	t.Helper()
	seen := make(chan capturedRequest, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := capturedRequest{Path: r.URL.Path, ContentType: r.Header.Get("Content-Type")}
		if err := r.ParseMultipartForm(1 << 20); err == nil {
			if v, ok := r.MultipartForm.Value["text"]; ok {
				got.HasText = true
				got.Text = v[0]
			}
			if v, ok := r.MultipartForm.Value["user"]; ok {
				got.User = v[0]
			}
			if f, h, err := r.FormFile("file"); err == nil {
				got.FileName = h.Filename
				got.FileType = h.Header.Get("Content-Type")
				got.FileData, _ = io.ReadAll(f)
				_ = f.Close()
			}
		}
		select {
		case seen <- got:
		default:
		}
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, seen
}

func newTestHandler(t *testing.T, backendURL string, timeout time.Duration) (*Handler, *monitoring.Metrics) {
	t.Helper()
	metrics := monitoring.NewMetrics(prometheus.NewRegistry())
	fwd := NewForwarder(backendURL+"/Sseus/message", timeout, nil)
	return NewHandlerWithBackend(fwd, 1<<20, metrics, nil, nil), metrics
}

func replyJSON(body string) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body)
	}
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var got map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	return got["error"]
}

func TestHandleMessageJSONWithoutTextForwardsEmptyText(t *testing.T) {
	backend, seen := newBackend(t, replyJSON(`{"response":"ok"}`))
	h, _ := newTestHandler(t, backend.URL, time.Second)

	req := httptest.NewRequest(http.MethodPost, "/api/message", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.HandleMessage(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	got := <-seen
	assert.Equal(t, "/Sseus/message", got.Path)
	assert.True(t, strings.HasPrefix(got.ContentType, "multipart/form-data"))
	assert.True(t, got.HasText)
	assert.Equal(t, "", got.Text)
	assert.Equal(t, "user", got.User)
	assert.Empty(t, got.FileName)
}

func TestHandleMessageEmptyBodyIsTolerated(t *testing.T) {
	backend, seen := newBackend(t, replyJSON(`{"response":"ok"}`))
	h, _ := newTestHandler(t, backend.URL, time.Second)

	req := httptest.NewRequest(http.MethodPost, "/api/message", http.NoBody)
	rr := httptest.NewRecorder()
	h.HandleMessage(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	got := <-seen
	assert.True(t, got.HasText)
	assert.Equal(t, "", got.Text)
}

func TestHandleMessageJSONPassesResponseThrough(t *testing.T) {
	const body = `[{"text":"a"},{"text":"b","action":{"type":"link","url":"https://x.test"}}]`
	backend, seen := newBackend(t, replyJSON(body))
	h, metrics := newTestHandler(t, backend.URL, time.Second)

	req := httptest.NewRequest(http.MethodPost, "/api/message", strings.NewReader(`{"text":"hello"}`))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.HandleMessage(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.Equal(t, body, rr.Body.String())
	assert.Equal(t, "hello", (<-seen).Text)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.RequestsTotal.WithLabelValues(monitoring.OutcomeSuccess)), 0)
}

func TestHandleMessageMultipartForwardsFileUnchanged(t *testing.T) {
	backend, seen := newBackend(t, replyJSON(`{"response":"ok"}`))
	h, metrics := newTestHandler(t, backend.URL, time.Second)

	fileData := []byte("%PDF-1.4\n%fake pdf body\n")
	body, contentType := multipartBody(t, "check this", "report.pdf", "application/pdf", fileData)

	req := httptest.NewRequest(http.MethodPost, "/api/message", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	h.HandleMessage(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	got := <-seen
	assert.Equal(t, "check this", got.Text)
	assert.Equal(t, "user", got.User)
	assert.Equal(t, "report.pdf", got.FileName)
	assert.Equal(t, "application/pdf", got.FileType)
	assert.Equal(t, fileData, got.FileData)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.AttachmentsTotal.WithLabelValues("pdf")), 0)
}

func TestHandleMessageMultipartSniffsUntypedFile(t *testing.T) {
	backend, seen := newBackend(t, replyJSON(`{"response":"ok"}`))
	h, _ := newTestHandler(t, backend.URL, time.Second)

	png := append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 32)...)
	body, contentType := multipartBody(t, "", "shot", "application/octet-stream", png)

	req := httptest.NewRequest(http.MethodPost, "/api/message", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	h.HandleMessage(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	got := <-seen
	assert.Equal(t, "image/png", got.FileType)
	assert.Equal(t, "", got.Text)
}

func TestHandleMessageTimeoutReturns504(t *testing.T) {
	release := make(chan struct{})
	backend, _ := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	})
	defer close(release)

	const timeout = 100 * time.Millisecond
	h, metrics := newTestHandler(t, backend.URL, timeout)

	req := httptest.NewRequest(http.MethodPost, "/api/message", strings.NewReader(`{"text":"slow"}`))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()

	start := time.Now()
	h.HandleMessage(rr, req)
	elapsed := time.Since(start)

	require.Equal(t, http.StatusGatewayTimeout, rr.Code)
	assert.NotEmpty(t, decodeError(t, rr))
	assert.Less(t, elapsed, timeout+time.Second)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.RequestsTotal.WithLabelValues(monitoring.OutcomeTimeout)), 0)
}

func TestHandleMessageUpstreamStatusReturns500(t *testing.T) {
	backend, _ := newBackend(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	h, _ := newTestHandler(t, backend.URL, time.Second)

	req := httptest.NewRequest(http.MethodPost, "/api/message", strings.NewReader(`{"text":"hi"}`))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.HandleMessage(rr, req)

	require.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, decodeError(t, rr), "502")
}

func TestHandleMessageInvalidBackendJSON(t *testing.T) {
	backend, _ := newBackend(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "plain text, not json")
	})
	h, _ := newTestHandler(t, backend.URL, time.Second)

	req := httptest.NewRequest(http.MethodPost, "/api/message", strings.NewReader(`{"text":"hi"}`))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.HandleMessage(rr, req)

	require.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, decodeError(t, rr), "invalid JSON")
}

func TestHandleMessageMalformedJSONBody(t *testing.T) {
	backend, _ := newBackend(t, replyJSON(`{}`))
	h, _ := newTestHandler(t, backend.URL, time.Second)

	req := httptest.NewRequest(http.MethodPost, "/api/message", strings.NewReader(`{"text":`))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.HandleMessage(rr, req)

	require.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.NotEmpty(t, decodeError(t, rr))
}

func TestHandleMessageUnreachableBackend(t *testing.T) {
	backend := httptest.NewServer(http.NotFoundHandler())
	url := backend.URL
	backend.Close()

	h, _ := newTestHandler(t, url, time.Second)

	req := httptest.NewRequest(http.MethodPost, "/api/message", strings.NewReader(`{"text":"hi"}`))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.HandleMessage(rr, req)

	require.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, decodeError(t, rr), "call backend")
}

func TestTextField(t *testing.T) {
	tests := []struct {
		in   interface{}
		want string
	}{
		{nil, ""},
		{"hello", "hello"},
		{false, ""},
		{float64(0), ""},
		{float64(42), "42"},
		{[]interface{}{"a"}, `["a"]`},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.in), func(t *testing.T) {
			assert.Equal(t, tt.want, textField(tt.in))
		})
	}
}

func multipartBody(t *testing.T, text, fileName, fileType string, data []byte) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("text", text))

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, fileName))
	header.Set("Content-Type", fileType)
	part, err := mw.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}
