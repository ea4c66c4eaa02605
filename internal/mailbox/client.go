package mailbox

import (
	"context"
	"fmt"

	"github.com/emersion/go-imap/v2/imapclient"
)

// Client holds the connection settings for a remote IMAP mailbox.
// It is cheap to construct; each operation dials its own session.
type Client struct {
	cfg Config
}

// NewClient creates a client for the given endpoint and credentials.
func NewClient(cfg Config) *Client {
	return &Client{cfg: cfg}
}

// Dial connects to the IMAP server and authenticates, returning an open
// Session. The caller owns the session and must call Close on every
// exit path.
func (c *Client) Dial(_ context.Context) (*Session, error) {
	addr := c.cfg.Host + ":" + c.cfg.Port

	var client *imapclient.Client
	var err error

	if c.cfg.TLS {
		client, err = imapclient.DialTLS(addr, nil)
	} else {
		client, err = imapclient.DialStartTLS(addr, nil)
	}
	if err != nil {
		return nil, &ConnectionError{Addr: addr, Err: err}
	}

	if err := client.Login(c.cfg.Username, c.cfg.Password).Wait(); err != nil {
		_ = client.Logout().Wait()
		return nil, &AuthError{
			User:    c.cfg.Username,
			Message: fmt.Sprintf("authentication failed: %v", err),
		}
	}

	return &Session{client: client}, nil
}

// Validate verifies the credentials by connecting, authenticating, and
// selecting INBOX. It performs no other operation and leaves no state
// behind.
func (c *Client) Validate(ctx context.Context) error {
	session, err := c.Dial(ctx)
	if err != nil {
		return err
	}
	defer session.Close()

	if err := session.selectFolder("INBOX"); err != nil {
		return err
	}

	return nil
}
