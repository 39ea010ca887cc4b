package tui

import (
	"strings"

	"github.com/ashureev/auditsseus-chat/internal/domain"
)

// renderMessage renders one transcript entry. Loading entries show the
// spinner frame; resolved entries show text, then attachments, then a link
// action. Attachments of unknown type render nothing.
func renderMessage(msg domain.Message, spinnerFrame string) string {
	var b strings.Builder

	if msg.IsUser {
		b.WriteString(userStyle.Render("You"))
	} else {
		b.WriteString(assistantStyle.Render("Assistant"))
	}
	b.WriteString("\n")

	if msg.IsLoading {
		b.WriteString(loadingStyle.Render(spinnerFrame + " " + msg.Text))
		return b.String()
	}

	if msg.Text != "" {
		b.WriteString(msg.Text)
		b.WriteString("\n")
	}

	for _, att := range msg.Attachments {
		switch att.Kind() {
		case domain.AttachmentImage:
			b.WriteString(attachmentStyle.Render("[image] " + att.Title))
			b.WriteString("\n")
		case domain.AttachmentPDF:
			b.WriteString(attachmentStyle.Render("[pdf] " + att.Title))
			b.WriteString("\n")
		}
	}

	if msg.Action.IsRenderableLink() {
		b.WriteString(linkStyle.Render(msg.Action.LinkTitle()))
		b.WriteString(" ")
		b.WriteString(msg.Action.URL)
		b.WriteString("\n")
	}

	return strings.TrimRight(b.String(), "\n")
}

func renderTranscript(msgs []domain.Message, spinnerFrame string) string {
	parts := make([]string, 0, len(msgs))
	for _, m := range msgs {
		parts = append(parts, renderMessage(m, spinnerFrame))
	}
	return strings.Join(parts, "\n\n")
}
