// Package web exposes the webmail and tracking API over HTTP.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/nhle/mailtrace/internal/auth"
	"github.com/nhle/mailtrace/internal/mailbox"
	"github.com/nhle/mailtrace/internal/model"
	"github.com/nhle/mailtrace/internal/sender"
	"github.com/nhle/mailtrace/internal/store"
	"github.com/nhle/mailtrace/internal/tracker"
)

// mailboxTimeout bounds one whole mailbox-session lifecycle: dial,
// operate, logout. The remote protocol itself has no deadline.
const mailboxTimeout = 30 * time.Second

// mailboxSession is the slice of a mailbox session the handlers use.
type mailboxSession interface {
	ListMessages(ctx context.Context, folder string, limit, offset int) (mailbox.Page, error)
	SetReadState(ctx context.Context, folder string, seqNum uint32, read bool) error
	Close() error
}

// mailboxConn verifies and dials sessions for one credential pair.
type mailboxConn interface {
	Validate(ctx context.Context) error
	Dial(ctx context.Context) (mailboxSession, error)
}

// imapConn adapts the IMAP client to the mailboxConn interface.
type imapConn struct {
	client *mailbox.Client
}

func (c imapConn) Validate(ctx context.Context) error {
	return c.client.Validate(ctx)
}

func (c imapConn) Dial(ctx context.Context) (mailboxSession, error) {
	session, err := c.client.Dial(ctx)
	if err != nil {
		return nil, err
	}
	return session, nil
}

// Server wires the HTTP handlers to the mailbox, ledger, and sender.
type Server struct {
	cfg      *model.AppConfig
	store    *store.SQLiteStore
	ledger   *tracker.Ledger
	sender   *sender.Service
	sessions *auth.Manager
	logger   *slog.Logger
	mux      *http.ServeMux

	// newMailbox builds a connection for one credential pair;
	// overridable in tests.
	newMailbox func(username, password string) mailboxConn
}

// NewServer creates the HTTP server and registers all routes.
func NewServer(
	cfg *model.AppConfig,
	st *store.SQLiteStore,
	ledger *tracker.Ledger,
	send *sender.Service,
	sessions *auth.Manager,
	logger *slog.Logger,
) *Server {
	s := &Server{
		cfg:      cfg,
		store:    st,
		ledger:   ledger,
		sender:   send,
		sessions: sessions,
		logger:   logger,
		newMailbox: func(username, password string) mailboxConn {
			return imapConn{client: mailbox.NewClient(mailbox.Config{
				Host:     cfg.Mail.IMAPHost,
				Port:     cfg.Mail.IMAPPort,
				Username: username,
				Password: password,
				TLS:      cfg.Mail.TLS,
			})}
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/login", s.handleLogin)
	mux.HandleFunc("/api/logout", s.handleLogout)
	mux.HandleFunc("/api/me", s.handleMe)
	mux.HandleFunc("/api/inbox", s.handleInbox)
	mux.HandleFunc("/api/send", s.handleSend)
	mux.HandleFunc("/api/track-url", s.handleTrackURL)
	mux.HandleFunc("/api/track/", s.handleTrackPixel)
	mux.HandleFunc("/api/emails", s.handleEmails)
	mux.HandleFunc("/api/emails/", s.handleEmailDetail)
	mux.HandleFunc("/health", s.handleHealth)
	s.mux = mux

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// sessionUser resolves the request's session cookie to the persisted
// user record.
func (s *Server) sessionUser(r *http.Request) (*model.User, error) {
	cookie, err := r.Cookie(s.sessions.CookieName())
	if err != nil {
		return nil, errors.New("missing session")
	}
	email, err := s.sessions.Parse(cookie.Value, time.Now())
	if err != nil {
		return nil, err
	}
	user, err := s.store.GetUserByEmail(r.Context(), email)
	if err != nil {
		return nil, errors.New("unknown session user")
	}
	return user, nil
}

func (s *Server) setSessionCookie(w http.ResponseWriter, value string, now time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.sessions.CookieName(),
		Value:    value,
		Path:     "/",
		MaxAge:   int(s.sessions.MaxAge().Seconds()),
		Expires:  now.Add(s.sessions.MaxAge()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

// mailboxContext derives the deadline covering one mailbox session.
func mailboxContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), mailboxTimeout)
}
