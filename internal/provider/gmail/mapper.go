package gmail

import (
	"encoding/base64"
	"strings"
	"time"

	gmailapi "google.golang.org/api/gmail/v1"

	"github.com/lu-zhengda/mailrules/internal/domain"
)

// mapMessage converts a Gmail API Message to a domain Email.
func mapMessage(msg *gmailapi.Message) *domain.Email {
	var headers []*gmailapi.MessagePartHeader
	if msg.Payload != nil {
		headers = msg.Payload.Headers
	}

	text, html := extractBody(msg.Payload)
	body := text
	if body == "" {
		body = html
	}
	if body == "" {
		body = msg.Snippet
	}

	return &domain.Email{
		ID:         msg.Id,
		ThreadID:   msg.ThreadId,
		From:       findHeader(headers, "From"),
		To:         findHeader(headers, "To"),
		Subject:    findHeader(headers, "Subject"),
		Body:       domain.TruncateBody(body),
		ReceivedAt: receivedAt(findHeader(headers, "Date"), msg.InternalDate),
		Labels:     msg.LabelIds,
	}
}

// findHeader performs a case-insensitive lookup for a header value.
func findHeader(headers []*gmailapi.MessagePartHeader, name string) string {
	for _, h := range headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// receivedAt parses the Date header and falls back to Gmail's internal
// timestamp (milliseconds since the epoch) when the header is unusable.
func receivedAt(header string, internalDate int64) *time.Time {
	if header != "" {
		if t, err := domain.ParseDate(header, time.Local); err == nil {
			return &t
		}
	}
	if internalDate > 0 {
		t := time.UnixMilli(internalDate).UTC()
		return &t
	}
	return nil
}

// extractBody recursively extracts text/plain and text/html content from a message payload.
func extractBody(payload *gmailapi.MessagePart) (text, html string) {
	if payload == nil {
		return "", ""
	}

	if len(payload.Parts) > 0 {
		for _, part := range payload.Parts {
			t, h := extractBody(part)
			if text == "" && t != "" {
				text = t
			}
			if html == "" && h != "" {
				html = h
			}
		}
		return text, html
	}

	data := ""
	if payload.Body != nil {
		data = decodeBase64URL(payload.Body.Data)
	}

	switch payload.MimeType {
	case "text/plain":
		return data, ""
	case "text/html":
		return "", data
	}
	return "", ""
}

// decodeBase64URL decodes Gmail's URL-safe base64 encoded strings (without padding).
func decodeBase64URL(s string) string {
	if s == "" {
		return ""
	}
	data, err := base64.URLEncoding.WithPadding(base64.NoPadding).DecodeString(strings.TrimRight(s, "="))
	if err != nil {
		return ""
	}
	return string(data)
}
