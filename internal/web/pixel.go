package web

import (
	"errors"
	"net/http"
	"strings"

	"github.com/nhle/mailtrace/internal/tracker"
)

// pixelPNG is a 1x1 transparent PNG served for every pixel request.
var pixelPNG = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x02, 0x00, 0x00, 0x00, 0x90, 0x77, 0x53, 0xde, 0x00, 0x00, 0x00,
	0x0c, 0x49, 0x44, 0x41, 0x54, 0x08, 0xd7, 0x63, 0xf8, 0x0f, 0x00, 0x00,
	0x01, 0x00, 0x01, 0x00, 0x18, 0xdd, 0x8d, 0xb4, 0x00, 0x00, 0x00, 0x00,
	0x49, 0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
}

// handleTrackPixel records an open and serves the pixel. The response
// is byte-identical for known and unknown tokens so the image gives a
// recipient's client no way to probe which tokens exist. Recording
// failures are logged and swallowed for the same reason.
func (s *Server) handleTrackPixel(w http.ResponseWriter, r *http.Request) {
	trackingID := strings.TrimPrefix(r.URL.Path, "/api/track/")
	if trackingID != "" && !strings.Contains(trackingID, "/") {
		s.recordPixelOpen(r, trackingID)
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pixelPNG)
}

func (s *Server) recordPixelOpen(r *http.Request, trackingID string) {
	sourceIP := clientIP(r)
	userAgent := r.Header.Get("User-Agent")
	if userAgent == "" {
		userAgent = "unknown"
	}

	if _, err := s.ledger.RecordOpen(r.Context(), trackingID, sourceIP, userAgent); err != nil {
		if errors.Is(err, tracker.ErrUnknownTrackingID) {
			s.logger.Debug("pixel fetch for unknown tracking id", "trackingId", trackingID)
			return
		}
		s.logger.Error("recording open", "trackingId", trackingID, "error", err)
	}
}

// clientIP resolves the requester's address from proxy headers, in
// priority order, falling back to "unknown". The first hop of
// X-Forwarded-For is the original client.
func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first := strings.TrimSpace(strings.SplitN(forwarded, ",", 2)[0])
		if first != "" {
			return first
		}
	}
	for _, header := range []string{"X-Real-Ip", "Cf-Connecting-Ip", "X-Client-Ip"} {
		if value := strings.TrimSpace(r.Header.Get(header)); value != "" {
			return value
		}
	}
	return "unknown"
}
