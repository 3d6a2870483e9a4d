package gmail

import (
	"encoding/base64"
	"fmt"
	"strings"

	gmail "google.golang.org/api/gmail/v1"
)

// HeaderValue returns the value of the named header on a message, or
// the empty string. Header names compare case-insensitively.
func HeaderValue(msg *gmail.Message, name string) string {
	if msg == nil || msg.Payload == nil {
		return ""
	}
	for _, h := range msg.Payload.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// MessageBody extracts the text or HTML body from a fetched message.
// format is "text" (the default when empty) or "html".
func MessageBody(msg *gmail.Message, format string) (string, error) {
	if format == "" {
		format = "text"
	}

	var targetMimeType string
	switch format {
	case "text":
		targetMimeType = "text/plain"
	case "html":
		targetMimeType = "text/html"
	default:
		return "", fmt.Errorf("invalid format %q, must be 'text' or 'html'", format)
	}

	var body string
	if msg.Payload != nil {
		if msg.Payload.MimeType == targetMimeType && msg.Payload.Body != nil && msg.Payload.Body.Data != "" {
			body = msg.Payload.Body.Data
		} else {
			walkParts(msg.Payload, func(part *gmail.MessagePart) {
				if body == "" && part.MimeType == targetMimeType && part.Body != nil && part.Body.Data != "" {
					body = part.Body.Data
				}
			})
		}
	}
	if body == "" {
		return "", fmt.Errorf("no %s body found in message", format)
	}

	decoded, err := decodeBase64(body)
	if err != nil {
		return "", fmt.Errorf("failed to decode message body: %w", err)
	}
	return string(decoded), nil
}

// MessageSummary is the compact representation tools render for a
// single message.
type MessageSummary struct {
	ID      string
	From    string
	To      string
	Subject string
	Date    string
	Snippet string
	Labels  []string
}

// SummarizeMessage builds a summary from a fetched message.
func SummarizeMessage(msg *gmail.Message) MessageSummary {
	return MessageSummary{
		ID:      msg.Id,
		From:    HeaderValue(msg, "From"),
		To:      HeaderValue(msg, "To"),
		Subject: HeaderValue(msg, "Subject"),
		Date:    HeaderValue(msg, "Date"),
		Snippet: msg.Snippet,
		Labels:  msg.LabelIds,
	}
}

// Format renders the summary as the multi-line block tools return.
func (s MessageSummary) Format() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Message ID: %s\n", s.ID)
	fmt.Fprintf(&sb, "From: %s\n", s.From)
	if s.To != "" {
		fmt.Fprintf(&sb, "To: %s\n", s.To)
	}
	fmt.Fprintf(&sb, "Subject: %s\n", s.Subject)
	if s.Date != "" {
		fmt.Fprintf(&sb, "Date: %s\n", s.Date)
	}
	if len(s.Labels) > 0 {
		fmt.Fprintf(&sb, "Labels: %s\n", strings.Join(s.Labels, ", "))
	}
	if s.Snippet != "" {
		fmt.Fprintf(&sb, "Snippet: %s\n", s.Snippet)
	}
	return sb.String()
}

// walkParts visits every part of a message payload, depth first.
func walkParts(part *gmail.MessagePart, fn func(*gmail.MessagePart)) {
	if part == nil {
		return
	}
	fn(part)
	for _, subpart := range part.Parts {
		walkParts(subpart, fn)
	}
}

// decodeBase64 decodes Gmail body and attachment data, which is
// base64url per the API; some payloads show up standard-encoded.
func decodeBase64(data string) ([]byte, error) {
	decoded, err := base64.URLEncoding.DecodeString(data)
	if err == nil {
		return decoded, nil
	}
	return base64.StdEncoding.DecodeString(data)
}
