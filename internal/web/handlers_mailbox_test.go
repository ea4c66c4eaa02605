package web

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/nhle/mailtrace/internal/mailbox"
)

func TestInboxRendersPage(t *testing.T) {
	srv, st := newTestServer(t)
	if _, err := st.UpsertUser(context.Background(), "owner@example.com", "owner", "pw"); err != nil {
		t.Fatalf("UpsertUser: %v", err)
	}

	session := &fakeSession{page: mailbox.Page{
		Messages: []mailbox.Message{
			{
				SeqNum:  42,
				From:    "Alice <alice@example.com>",
				To:      "owner@example.com",
				Subject: "hi",
				Date:    time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC),
				Body:    "<p>hello</p><script>alert(1)</script>",
				IsRead:  true,
			},
			{
				SeqNum:  41,
				From:    "bob@example.com",
				Subject: "plain",
				Date:    time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC),
				Body:    "line one\nline two",
			},
		},
		Total: 55,
	}}
	useMailbox(srv, &fakeMailbox{session: session})

	rec := doJSON(t, srv, http.MethodGet, "/api/inbox?limit=20&page=1", "",
		loginCookie(t, srv, "owner@example.com"))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if session.closed != 1 {
		t.Errorf("session closed %d times, want 1", session.closed)
	}

	var resp struct {
		Emails     []messageView `json:"emails"`
		Total      int           `json:"total"`
		Page       int           `json:"page"`
		Limit      int           `json:"limit"`
		TotalPages int           `json:"totalPages"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Total != 55 || resp.Page != 1 || resp.Limit != 20 || resp.TotalPages != 3 {
		t.Errorf("pagination = %+v", resp)
	}
	if len(resp.Emails) != 2 {
		t.Fatalf("len(emails) = %d", len(resp.Emails))
	}

	html := resp.Emails[0]
	if html.ID != "42" || !html.IsRead {
		t.Errorf("envelope = %+v", html)
	}
	if html.Body != "<p>hello</p>" {
		t.Errorf("HTML body not sanitized: %q", html.Body)
	}

	plain := resp.Emails[1]
	if plain.Body != "line one<br>line two" {
		t.Errorf("plain body not formatted: %q", plain.Body)
	}
}

func TestInboxMarkRead(t *testing.T) {
	srv, st := newTestServer(t)
	if _, err := st.UpsertUser(context.Background(), "owner@example.com", "owner", "pw"); err != nil {
		t.Fatalf("UpsertUser: %v", err)
	}
	session := &fakeSession{}
	useMailbox(srv, &fakeMailbox{session: session})

	rec := doJSON(t, srv, http.MethodPost, "/api/inbox",
		`{"action":"mark_read","emailId":"17"}`,
		loginCookie(t, srv, "owner@example.com"))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if len(session.setCalls) != 1 || session.setCalls[0] != 17 {
		t.Errorf("setCalls = %v, want [17]", session.setCalls)
	}
	if session.closed != 1 {
		t.Errorf("session closed %d times, want 1", session.closed)
	}
}

func TestInboxMapsMailboxErrors(t *testing.T) {
	srv, st := newTestServer(t)
	if _, err := st.UpsertUser(context.Background(), "owner@example.com", "owner", "pw"); err != nil {
		t.Fatalf("UpsertUser: %v", err)
	}
	cookie := loginCookie(t, srv, "owner@example.com")

	useMailbox(srv, &fakeMailbox{
		dialErr: &mailbox.AuthError{User: "owner@example.com", Message: "rejected"},
	})
	rec := doJSON(t, srv, http.MethodGet, "/api/inbox", "", cookie)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("auth failure status = %d, want 401", rec.Code)
	}

	useMailbox(srv, &fakeMailbox{
		dialErr: &mailbox.ConnectionError{Addr: "imap.test:993", Err: context.DeadlineExceeded},
	})
	rec = doJSON(t, srv, http.MethodGet, "/api/inbox", "", cookie)
	if rec.Code != http.StatusBadGateway {
		t.Errorf("connection failure status = %d, want 502", rec.Code)
	}

	rec = doJSON(t, srv, http.MethodGet, "/api/inbox", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("missing session status = %d, want 401", rec.Code)
	}
}
