package email

import (
	"bytes"
	"fmt"
	"mime"
	"strings"
	"time"
)

// TemplateHeader names the template a message was rendered from. Mock
// senders key stored mail by it.
const TemplateHeader = "X-Catalog-Template"

// Message is a rendered plain-text mail.
type Message struct {
	From     string
	To       []string
	ReplyTo  string
	Subject  string
	Body     string
	Template string
	Date     time.Time
}

// Compose renders m as an RFC 5322 message with CRLF line endings.
func Compose(m Message) []byte {
	date := m.Date
	if date.IsZero() {
		date = time.Now()
	}

	var b bytes.Buffer
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(m.To, ", "))
	fmt.Fprintf(&b, "From: %s\r\n", m.From)
	if m.ReplyTo != "" {
		fmt.Fprintf(&b, "Reply-To: %s\r\n", m.ReplyTo)
	}
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", m.Subject))
	fmt.Fprintf(&b, "Date: %s\r\n", date.Format(time.RFC1123Z))
	if m.Template != "" {
		fmt.Fprintf(&b, "%s: %s\r\n", TemplateHeader, m.Template)
	}
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(strings.ReplaceAll(m.Body, "\r\n", "\n"), "\n", "\r\n"))
	b.WriteString("\r\n")
	return b.Bytes()
}

// templateOf extracts TemplateHeader from a composed message.
func templateOf(raw []byte) string {
	headers, _, _ := bytes.Cut(raw, []byte("\r\n\r\n"))
	for _, line := range strings.Split(string(headers), "\r\n") {
		if name, value, ok := strings.Cut(line, ":"); ok && strings.EqualFold(name, TemplateHeader) {
			return strings.TrimSpace(value)
		}
	}
	return ""
}
