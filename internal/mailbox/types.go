package mailbox

import "time"

// Config holds the IMAP endpoint plus the credential pair forwarded
// from the user record.
type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	TLS      bool
}

// Message is a session-scoped view of one remote message. SeqNum is a
// sequence number relative to the selected folder of the session that
// produced it; it is not a stable identifier across sessions.
type Message struct {
	SeqNum      uint32
	From        string
	To          string
	Subject     string
	Date        time.Time
	Body        string
	IsRead      bool
	Attachments []Attachment
}

// Attachment holds metadata about a message attachment. Content is
// never retained, only size, name, and type.
type Attachment struct {
	Filename string
	Size     int64
	MIMEType string
}

// Page is one reverse-chronological page of a folder. Total is the
// folder's message count at selection time, regardless of how many
// messages survived parsing.
type Page struct {
	Messages []Message
	Total    int
}
