// Package domain contains core domain types for the chat front-end.
package domain

import (
	"strings"
	"time"
)

// ActionTypeLink is the only action type that is rendered.
const ActionTypeLink = "link"

// DefaultActionTitle is shown when a link action carries no title.
const DefaultActionTitle = "View result"

// Message is one entry of the chat transcript.
type Message struct {
	ID          string       `json:"id"`
	Text        string       `json:"text"`
	IsUser      bool         `json:"is_user"`
	IsLoading   bool         `json:"is_loading,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	Attachments []Attachment `json:"attachments,omitempty"`
	Action      *Action      `json:"action,omitempty"`
}

// Attachment is a file shown alongside a message.
type Attachment struct {
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
	Title       string `json:"title"`
}

// AttachmentKind tells the renderer how to show an attachment.
type AttachmentKind int

const (
	// AttachmentUnknown renders nothing.
	AttachmentUnknown AttachmentKind = iota
	// AttachmentImage renders as an image preview.
	AttachmentImage
	// AttachmentPDF renders as a document link.
	AttachmentPDF
)

// Kind classifies the attachment by content type.
func (a Attachment) Kind() AttachmentKind {
	switch {
	case strings.HasPrefix(a.ContentType, "image/"):
		return AttachmentImage
	case a.ContentType == "application/pdf":
		return AttachmentPDF
	default:
		return AttachmentUnknown
	}
}

// Action is an optional call to action surfaced with an assistant message.
type Action struct {
	Type  string `json:"type"`
	URL   string `json:"url,omitempty"`
	Title string `json:"title,omitempty"`
}

// IsRenderableLink reports whether the action should be shown as a link.
func (a *Action) IsRenderableLink() bool {
	return a != nil && a.Type == ActionTypeLink && a.URL != ""
}

// LinkTitle returns the title to display for a link action.
func (a *Action) LinkTitle() string {
	if a == nil || a.Title == "" {
		return DefaultActionTitle
	}
	return a.Title
}
