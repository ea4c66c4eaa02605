package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/nhle/mailtrace/internal/mailbox"
	"github.com/nhle/mailtrace/internal/store"
)

// fakeSession serves canned pages so handlers can be tested without a
// remote mailbox.
type fakeSession struct {
	page    mailbox.Page
	listErr error
	setErr  error

	closed   int
	setCalls []uint32
}

func (f *fakeSession) ListMessages(_ context.Context, _ string, _, _ int) (mailbox.Page, error) {
	if f.listErr != nil {
		return mailbox.Page{}, f.listErr
	}
	return f.page, nil
}

func (f *fakeSession) SetReadState(_ context.Context, _ string, seqNum uint32, _ bool) error {
	f.setCalls = append(f.setCalls, seqNum)
	return f.setErr
}

func (f *fakeSession) Close() error {
	f.closed++
	return nil
}

type fakeMailbox struct {
	validateErr error
	dialErr     error
	session     *fakeSession
}

func (f *fakeMailbox) Validate(context.Context) error { return f.validateErr }

func (f *fakeMailbox) Dial(context.Context) (mailboxSession, error) {
	if f.dialErr != nil {
		return nil, f.dialErr
	}
	return f.session, nil
}

func useMailbox(srv *Server, conn *fakeMailbox) {
	srv.newMailbox = func(username, password string) mailboxConn { return conn }
}

func TestLoginVerifiesBeforePersisting(t *testing.T) {
	srv, st := newTestServer(t)
	useMailbox(srv, &fakeMailbox{})

	rec := doJSON(t, srv, http.MethodPost, "/api/login",
		`{"email":"Owner@Example.com","password":"app-password"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	user, err := st.GetUserByEmail(context.Background(), "owner@example.com")
	if err != nil {
		t.Fatalf("user not persisted: %v", err)
	}
	if user.Secret != "app-password" {
		t.Errorf("Secret = %q", user.Secret)
	}
	if user.DisplayName != "owner" {
		t.Errorf("DisplayName = %q", user.DisplayName)
	}

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != srv.sessions.CookieName() || cookies[0].Value == "" {
		t.Fatalf("session cookie not set: %v", cookies)
	}
}

func TestLoginRejectionPersistsNothing(t *testing.T) {
	srv, st := newTestServer(t)
	useMailbox(srv, &fakeMailbox{
		validateErr: &mailbox.AuthError{User: "owner@example.com", Message: "bad credentials"},
	})

	rec := doJSON(t, srv, http.MethodPost, "/api/login",
		`{"email":"owner@example.com","password":"wrong"}`, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if len(rec.Result().Cookies()) != 0 {
		t.Error("rejected login set a cookie")
	}
	if _, err := st.GetUserByEmail(context.Background(), "owner@example.com"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("rejected login touched the user table: %v", err)
	}
}

func TestLoginProviderUnreachable(t *testing.T) {
	srv, st := newTestServer(t)
	useMailbox(srv, &fakeMailbox{
		validateErr: &mailbox.ConnectionError{Addr: "imap.test:993", Err: errors.New("refused")},
	})

	rec := doJSON(t, srv, http.MethodPost, "/api/login",
		`{"email":"owner@example.com","password":"pw"}`, nil)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
	if _, err := st.GetUserByEmail(context.Background(), "owner@example.com"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("failed verification touched the user table: %v", err)
	}
}

func TestLoginReplacesSecretOnReverification(t *testing.T) {
	srv, st := newTestServer(t)
	useMailbox(srv, &fakeMailbox{})

	for _, password := range []string{"first-password", "second-password"} {
		rec := doJSON(t, srv, http.MethodPost, "/api/login",
			`{"email":"owner@example.com","password":"`+password+`"}`, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
		}
	}

	user, err := st.GetUserByEmail(context.Background(), "owner@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	if user.Secret != "second-password" {
		t.Errorf("Secret = %q, want replaced", user.Secret)
	}
}

func TestMeRequiresSession(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doJSON(t, srv, http.MethodGet, "/api/me", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestMeReturnsSessionUser(t *testing.T) {
	srv, st := newTestServer(t)
	if _, err := st.UpsertUser(context.Background(), "owner@example.com", "owner", "pw"); err != nil {
		t.Fatalf("UpsertUser: %v", err)
	}

	rec := doJSON(t, srv, http.MethodGet, "/api/me", "", loginCookie(t, srv, "owner@example.com"))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	var resp map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp["email"] != "owner@example.com" || resp["displayName"] != "owner" {
		t.Errorf("response = %v", resp)
	}
}

func TestMeRejectsUnknownUser(t *testing.T) {
	srv, _ := newTestServer(t)
	// Valid signature, but no persisted identity behind it.
	rec := doJSON(t, srv, http.MethodGet, "/api/me", "", loginCookie(t, srv, "ghost@example.com"))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestLogoutExpiresCookie(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doJSON(t, srv, http.MethodPost, "/api/logout", "", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("cookies = %d, want 1", len(cookies))
	}
	if cookies[0].MaxAge >= 0 {
		t.Errorf("MaxAge = %d, want negative", cookies[0].MaxAge)
	}
}
