package services_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/studylog/core/internal/adapters/repository"
	"github.com/studylog/core/internal/application/services"
	"github.com/studylog/core/internal/infrastructure/config"
	"github.com/studylog/core/internal/infrastructure/logger"
)

func newSessionService(t *testing.T, secret string) *services.SessionService {
	t.Helper()
	log := logger.FromZap(zaptest.NewLogger(t))
	cfg := config.SessionConfig{Secret: secret, MaxAge: time.Hour}
	svc, err := services.NewSessionService(repository.NewMemorySelectionRepository(), cfg, "data.json", log)
	if err != nil {
		t.Fatalf("NewSessionService: %v", err)
	}
	return svc
}

func TestSessionTokenRoundTrip(t *testing.T) {
	svc := newSessionService(t, "test-secret")
	sid := svc.NewSessionID()

	token, err := svc.IssueToken(sid)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	got, err := svc.ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if got != sid {
		t.Errorf("ParseToken = %q, want %q", got, sid)
	}
}

func TestSessionTokenRejected(t *testing.T) {
	svc := newSessionService(t, "test-secret")
	other := newSessionService(t, "other-secret")

	token, err := svc.IssueToken(svc.NewSessionID())
	if err != nil {
		t.Fatal(err)
	}
	foreign, err := other.IssueToken(other.NewSessionID())
	if err != nil {
		t.Fatal(err)
	}

	// change one character inside the signature
	i := len(token) - 5
	flipped := byte('A')
	if token[i] == 'A' {
		flipped = 'B'
	}
	tampered := token[:i] + string(flipped) + token[i+1:]

	for name, value := range map[string]string{
		"tampered":     tampered,
		"other secret": foreign,
		"garbage":      "not-a-token",
		"empty":        "",
		"no signature": strings.Join(strings.Split(token, ".")[:2], ".") + ".",
	} {
		if _, err := svc.ParseToken(value); !errors.Is(err, services.ErrInvalidSession) {
			t.Errorf("%s: ParseToken err = %v, want ErrInvalidSession", name, err)
		}
	}
}

func TestRandomSecretWhenUnset(t *testing.T) {
	a := newSessionService(t, "")
	b := newSessionService(t, "")

	token, err := a.IssueToken(a.NewSessionID())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := a.ParseToken(token); err != nil {
		t.Errorf("same process rejected its own token: %v", err)
	}
	if _, err := b.ParseToken(token); err == nil {
		t.Error("independent random secrets accepted each other's token")
	}
}

func TestCurrentSelectAndReassign(t *testing.T) {
	svc := newSessionService(t, "s")
	ctx := context.Background()
	sid := svc.NewSessionID()

	if got := svc.Current(ctx, sid); got != "data.json" {
		t.Errorf("Current unset = %q, want data.json", got)
	}
	if got := svc.Current(ctx, ""); got != "data.json" {
		t.Errorf("Current without session = %q, want data.json", got)
	}

	if err := svc.Select(ctx, sid, "midterm2.json"); err != nil {
		t.Fatalf("Select: %v", err)
	}
	if got := svc.Current(ctx, sid); got != "midterm2.json" {
		t.Errorf("Current = %q, want midterm2.json", got)
	}

	moved, err := svc.Reassign(ctx, "midterm2.json", "final.json")
	if err != nil {
		t.Fatalf("Reassign: %v", err)
	}
	if moved != 1 || svc.Current(ctx, sid) != "final.json" {
		t.Errorf("after Reassign moved=%d current=%q", moved, svc.Current(ctx, sid))
	}
}
