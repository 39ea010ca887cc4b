package relay

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// multipartMemory is how much of a multipart body is kept in memory before
// spilling file parts to disk.
const multipartMemory = 8 << 20

// Payload is one chat turn, normalized from either request shape.
type Payload struct {
	Text string
	File *Upload
}

// Upload is a file forwarded unchanged to the backend.
type Upload struct {
	Name        string
	ContentType string
	Data        []byte
}

// Kind groups uploads for metrics and logs.
func (u *Upload) Kind() string {
	switch {
	case u == nil:
		return "none"
	case strings.HasPrefix(u.ContentType, "image/"):
		return "image"
	case strings.HasPrefix(u.ContentType, "application/pdf"):
		return "pdf"
	default:
		return "other"
	}
}

// parsePayload reads the inbound request. Missing fields fall back to
// defaults; only unreadable bodies are reported as errors.
func parsePayload(w http.ResponseWriter, r *http.Request, maxBytes int64) (*Payload, error) {
	if maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	}

	if strings.Contains(r.Header.Get("Content-Type"), "multipart/form-data") {
		return parseMultipart(r)
	}
	return parseJSON(r.Body)
}

func parseMultipart(r *http.Request) (*Payload, error) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		return nil, fmt.Errorf("parse multipart form: %w", err)
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	p := &Payload{}
	if values := r.MultipartForm.Value["text"]; len(values) > 0 {
		p.Text = values[0]
	}

	file, header, err := r.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		return p, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read file part: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read file part: %w", err)
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = mimetype.Detect(data).String()
	}

	p.File = &Upload{
		Name:        header.Filename,
		ContentType: contentType,
		Data:        data,
	}
	return p, nil
}

func parseJSON(body io.Reader) (*Payload, error) {
	var doc interface{}
	if err := json.NewDecoder(body).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return &Payload{}, nil
		}
		return nil, fmt.Errorf("parse json body: %w", err)
	}

	obj, ok := doc.(map[string]interface{})
	if !ok {
		return &Payload{}, nil
	}
	return &Payload{Text: textField(obj["text"])}, nil
}

// textField mirrors a loose "value || ''" read of the text field.
func textField(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		if !t {
			return ""
		}
		return "true"
	case float64:
		if t == 0 {
			return ""
		}
		return fmt.Sprint(t)
	default:
		raw, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(raw)
	}
}
