package services

import (
	"fmt"
	"strings"

	"memodesk-backend/internal/models"
)

// AttachedDocument pairs an attachment with whatever text was extracted from it.
type AttachedDocument struct {
	Attachment models.Attachment
	Text       string
}

// withAttachmentContext appends the extracted memo text to a user message so
// the model can answer about it. Documents without text are listed by name.
func withAttachmentContext(content string, docs []AttachedDocument) string {
	if len(docs) == 0 {
		return content
	}

	size := len(content) + 128
	for _, d := range docs {
		size += len(d.Attachment.Name) + len(d.Text) + 64
	}

	var b strings.Builder
	b.Grow(size)

	b.WriteString(content)
	b.WriteString("\n\n---\nATTACHMENTS CONTEXT BEGIN\n")

	for i, d := range docs {
		title := strings.TrimSpace(d.Attachment.Name)
		if title == "" {
			title = fmt.Sprintf("file_%d", i+1)
		}

		if d.Text == "" {
			b.WriteString("\n[Non-text attachment] ")
			b.WriteString(title)
			if d.Attachment.ContentType != "" {
				b.WriteString(" (")
				b.WriteString(d.Attachment.ContentType)
				b.WriteString(")")
			}
			b.WriteString("\n")
			continue
		}

		b.WriteString("\n<<<FILE ")
		b.WriteString(title)
		b.WriteString(">>>:\n")
		b.WriteString(d.Text)
		b.WriteString("\n<<<END FILE ")
		b.WriteString(title)
		b.WriteString(">>>\n")
	}

	b.WriteString("\nATTACHMENTS CONTEXT END\n---\n")
	return b.String()
}
