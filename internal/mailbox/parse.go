package mailbox

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/emersion/go-message/mail"
)

// noContentPlaceholder is returned as the body of a message that has
// neither an HTML nor a plain text representation.
const noContentPlaceholder = "No content available"

// parseMessage parses raw RFC 5322 message bytes into a Message using
// go-message. It fills everything except SeqNum and IsRead, which come
// from the fetch envelope. A message that cannot be parsed is reported
// as an error so the caller can drop it from the page.
func parseMessage(raw []byte) (Message, error) {
	if len(raw) == 0 {
		return Message{}, fmt.Errorf("empty message body")
	}

	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return Message{}, fmt.Errorf("reading message: %w", err)
	}
	defer mr.Close()

	var msg Message

	if from, err := mr.Header.AddressList("From"); err == nil {
		msg.From = formatAddressList(from)
	}
	if msg.From == "" {
		msg.From = "Unknown"
	}
	if to, err := mr.Header.AddressList("To"); err == nil {
		msg.To = formatAddressList(to)
	}
	if subject, err := mr.Header.Subject(); err == nil && subject != "" {
		msg.Subject = subject
	} else {
		msg.Subject = "No Subject"
	}
	if date, err := mr.Header.Date(); err == nil {
		msg.Date = date
	}

	var textBody, htmlBody string
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}

		switch h := part.Header.(type) {
		case *mail.InlineHeader:
			contentType, _, _ := h.ContentType()
			body, readErr := io.ReadAll(part.Body)
			if readErr != nil {
				continue
			}

			switch {
			case strings.HasPrefix(contentType, "text/plain"):
				textBody = string(body)
			case strings.HasPrefix(contentType, "text/html"):
				htmlBody = string(body)
			}

		case *mail.AttachmentHeader:
			filename, _ := h.Filename()
			contentType, _, _ := h.ContentType()

			// Read to get size without storing content.
			body, readErr := io.ReadAll(part.Body)
			if readErr != nil {
				continue
			}

			msg.Attachments = append(msg.Attachments, Attachment{
				Filename: filename,
				Size:     int64(len(body)),
				MIMEType: contentType,
			})
		}
	}

	msg.Body = selectBody(htmlBody, textBody)
	return msg, nil
}

// selectBody picks the display representation: the HTML part when
// present, the plain text part otherwise, and a literal placeholder
// when the message carries neither.
func selectBody(htmlBody, textBody string) string {
	switch {
	case htmlBody != "":
		return htmlBody
	case textBody != "":
		return textBody
	default:
		return noContentPlaceholder
	}
}

// formatAddressList renders addresses the way a mail client shows them:
// "Name <addr>" when a display name exists, the bare address otherwise.
func formatAddressList(addrs []*mail.Address) string {
	parts := make([]string, 0, len(addrs))
	for _, a := range addrs {
		if a.Name != "" {
			parts = append(parts, fmt.Sprintf("%s <%s>", a.Name, a.Address))
		} else {
			parts = append(parts, a.Address)
		}
	}
	return strings.Join(parts, ", ")
}
