package auth

import (
	"testing"
	"time"
)

func TestIssueParseRoundtrip(t *testing.T) {
	m, err := New("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	now := time.Now()
	token, err := m.Issue("Alice@Example.com", now)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	email, err := m.Parse(token, now.Add(30*time.Minute))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if email != "alice@example.com" {
		t.Errorf("Parse = %q, want normalized address", email)
	}
}

func TestParseExpired(t *testing.T) {
	m, _ := New("test-secret", time.Hour)
	now := time.Now()
	token, err := m.Issue("alice@example.com", now)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := m.Parse(token, now.Add(2*time.Hour)); err == nil {
		t.Fatal("Parse accepted an expired token")
	}
}

func TestParseRejectsTampering(t *testing.T) {
	m, _ := New("test-secret", time.Hour)
	now := time.Now()
	token, err := m.Issue("alice@example.com", now)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	tampered := token[:len(token)-2] + "XX"
	if tampered == token {
		tampered = token[:len(token)-2] + "YY"
	}
	if _, err := m.Parse(tampered, now); err == nil {
		t.Fatal("Parse accepted a tampered token")
	}

	other, _ := New("other-secret", time.Hour)
	if _, err := other.Parse(token, now); err == nil {
		t.Fatal("Parse accepted a token signed with another secret")
	}

	if _, err := m.Parse("", now); err == nil {
		t.Fatal("Parse accepted an empty token")
	}
	if _, err := m.Parse("not-base64!!!", now); err == nil {
		t.Fatal("Parse accepted garbage")
	}
}

func TestNormalizeEmail(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"Alice@Example.com", "alice@example.com", false},
		{"  bob@example.com  ", "bob@example.com", false},
		{"", "", true},
		{"not-an-address", "", true},
	}
	for _, tt := range tests {
		got, err := NormalizeEmail(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("NormalizeEmail(%q) succeeded, want error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("NormalizeEmail(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("NormalizeEmail(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
