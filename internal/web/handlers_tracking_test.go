package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/nhle/mailtrace/internal/model"
)

func loginCookie(t *testing.T, srv *Server, email string) *http.Cookie {
	t.Helper()
	token, err := srv.sessions.Issue(email, time.Now())
	if err != nil {
		t.Fatalf("issuing session: %v", err)
	}
	return &http.Cookie{Name: srv.sessions.CookieName(), Value: token}
}

func doJSON(t *testing.T, srv *Server, method, path, body string, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func TestTrackURLRequiresSession(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doJSON(t, srv, http.MethodPost, "/api/track-url",
		`{"recipientEmail":"r@example.com"}`, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestTrackURLIssuesToken(t *testing.T) {
	srv, st := newTestServer(t)
	if _, err := st.UpsertUser(context.Background(), "owner@example.com", "owner", "pw"); err != nil {
		t.Fatalf("UpsertUser: %v", err)
	}
	cookie := loginCookie(t, srv, "owner@example.com")

	rec := doJSON(t, srv, http.MethodPost, "/api/track-url",
		`{"recipientEmail":"r@example.com","subject":"s","content":"c"}`, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		EmailID     string `json:"emailId"`
		TrackingID  string `json:"trackingId"`
		TrackingURL string `json:"trackingUrl"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.EmailID == "" || resp.TrackingID == "" {
		t.Fatalf("incomplete response: %+v", resp)
	}
	if want := "http://tracker.test/api/track/" + resp.TrackingID; resp.TrackingURL != want {
		t.Errorf("trackingUrl = %q, want %q", resp.TrackingURL, want)
	}

	te, err := st.GetTrackedEmailByTrackingID(context.Background(), resp.TrackingID)
	if err != nil {
		t.Fatalf("token not persisted: %v", err)
	}
	if te.RecipientEmail != "r@example.com" {
		t.Errorf("RecipientEmail = %q", te.RecipientEmail)
	}
}

func TestEmailsDashboard(t *testing.T) {
	srv, st := newTestServer(t)
	ctx := context.Background()
	user, err := st.UpsertUser(ctx, "owner@example.com", "owner", "pw")
	if err != nil {
		t.Fatalf("UpsertUser: %v", err)
	}
	te, err := srv.ledger.Track(ctx, user.ID, "r@example.com", "s", "c")
	if err != nil {
		t.Fatalf("Track: %v", err)
	}
	if _, err := st.CreateOpen(ctx, te.ID, "203.0.113.1", "ua"); err != nil {
		t.Fatalf("CreateOpen: %v", err)
	}
	cookie := loginCookie(t, srv, "owner@example.com")

	rec := doJSON(t, srv, http.MethodGet, "/api/emails", "", cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Emails     []trackedEmailView `json:"emails"`
		Statistics model.Statistics   `json:"statistics"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(resp.Emails) != 1 {
		t.Fatalf("len(emails) = %d", len(resp.Emails))
	}
	if resp.Emails[0].OpenCount != 1 {
		t.Errorf("OpenCount = %d", resp.Emails[0].OpenCount)
	}
	if resp.Statistics.TotalEmails != 1 || resp.Statistics.UniqueOpens != 1 {
		t.Errorf("statistics = %+v", resp.Statistics)
	}
	if resp.Statistics.OpenRate != "100.00" {
		t.Errorf("OpenRate = %q", resp.Statistics.OpenRate)
	}
}

func TestResetOpensOverHTTP(t *testing.T) {
	srv, st := newTestServer(t)
	ctx := context.Background()
	owner, err := st.UpsertUser(ctx, "owner@example.com", "owner", "pw")
	if err != nil {
		t.Fatalf("UpsertUser: %v", err)
	}
	if _, err := st.UpsertUser(ctx, "other@example.com", "other", "pw"); err != nil {
		t.Fatalf("UpsertUser: %v", err)
	}
	te, err := srv.ledger.Track(ctx, owner.ID, "r@example.com", "s", "c")
	if err != nil {
		t.Fatalf("Track: %v", err)
	}
	if _, err := st.CreateOpen(ctx, te.ID, "203.0.113.1", "ua"); err != nil {
		t.Fatalf("CreateOpen: %v", err)
	}

	// Someone else's reset looks exactly like a missing email.
	rec := doJSON(t, srv, http.MethodPost, "/api/emails",
		`{"action":"reset_opens","emailId":"`+te.ID+`"}`,
		loginCookie(t, srv, "other@example.com"))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("foreign reset status = %d, want 404", rec.Code)
	}

	rec = doJSON(t, srv, http.MethodPost, "/api/emails",
		`{"action":"reset_opens","emailId":"`+te.ID+`"}`,
		loginCookie(t, srv, "owner@example.com"))
	if rec.Code != http.StatusOK {
		t.Fatalf("reset status = %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Success bool  `json:"success"`
		Cleared int64 `json:"cleared"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if !resp.Success || resp.Cleared != 1 {
		t.Errorf("response = %+v", resp)
	}

	opens, err := st.ListOpens(ctx, te.ID, false)
	if err != nil {
		t.Fatalf("ListOpens: %v", err)
	}
	if len(opens) != 0 {
		t.Errorf("active opens after reset = %d", len(opens))
	}
}

func TestEmailDetail(t *testing.T) {
	srv, st := newTestServer(t)
	ctx := context.Background()
	owner, err := st.UpsertUser(ctx, "owner@example.com", "owner", "pw")
	if err != nil {
		t.Fatalf("UpsertUser: %v", err)
	}
	if _, err := st.UpsertUser(ctx, "other@example.com", "other", "pw"); err != nil {
		t.Fatalf("UpsertUser: %v", err)
	}
	te, err := srv.ledger.Track(ctx, owner.ID, "r@example.com", "s", "c")
	if err != nil {
		t.Fatalf("Track: %v", err)
	}

	// Two opens, reset both, then one fresh open: the history keeps all
	// three rows while only the last stays active.
	for i := 0; i < 2; i++ {
		if _, err := st.CreateOpen(ctx, te.ID, "203.0.113.1", "ua"); err != nil {
			t.Fatalf("CreateOpen: %v", err)
		}
	}
	if _, err := st.ResetOpens(ctx, te.ID, owner.ID); err != nil {
		t.Fatalf("ResetOpens: %v", err)
	}
	if _, err := st.CreateOpen(ctx, te.ID, "203.0.113.2", "ua"); err != nil {
		t.Fatalf("CreateOpen: %v", err)
	}

	rec := doJSON(t, srv, http.MethodGet, "/api/emails/"+te.ID, "",
		loginCookie(t, srv, "owner@example.com"))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Email struct {
			ID         string `json:"id"`
			TrackingID string `json:"trackingId"`
		} `json:"email"`
		Opens []struct {
			IsDeleted bool    `json:"isDeleted"`
			DeletedAt *string `json:"deletedAt"`
		} `json:"opens"`
		ActiveOpens int `json:"activeOpens"`
		TotalOpens  int `json:"totalOpens"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Email.ID != te.ID || resp.Email.TrackingID != te.TrackingID {
		t.Errorf("email = %+v", resp.Email)
	}
	if resp.TotalOpens != 3 || resp.ActiveOpens != 1 {
		t.Errorf("counts = %d total, %d active, want 3/1", resp.TotalOpens, resp.ActiveOpens)
	}
	if len(resp.Opens) != 3 {
		t.Fatalf("len(opens) = %d, want full history", len(resp.Opens))
	}
	deleted := 0
	for _, open := range resp.Opens {
		if open.IsDeleted {
			deleted++
			if open.DeletedAt == nil {
				t.Error("soft-deleted open has no deletedAt")
			}
		}
	}
	if deleted != 2 {
		t.Errorf("deleted rows = %d, want 2", deleted)
	}

	// Someone else's detail view looks exactly like a missing email.
	rec = doJSON(t, srv, http.MethodGet, "/api/emails/"+te.ID, "",
		loginCookie(t, srv, "other@example.com"))
	if rec.Code != http.StatusNotFound {
		t.Errorf("foreign detail status = %d, want 404", rec.Code)
	}

	rec = doJSON(t, srv, http.MethodGet, "/api/emails/no-such-id", "",
		loginCookie(t, srv, "owner@example.com"))
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing detail status = %d, want 404", rec.Code)
	}
}

func TestEmailsRejectsUnknownAction(t *testing.T) {
	srv, st := newTestServer(t)
	if _, err := st.UpsertUser(context.Background(), "owner@example.com", "owner", "pw"); err != nil {
		t.Fatalf("UpsertUser: %v", err)
	}
	rec := doJSON(t, srv, http.MethodPost, "/api/emails",
		`{"action":"drop_everything","emailId":"x"}`,
		loginCookie(t, srv, "owner@example.com"))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
