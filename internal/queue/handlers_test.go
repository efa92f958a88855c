package queue

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/spf13/afero"

	"github.com/ecodeli/ecodeli-backend/internal/model"
)

type recordingWelcomer struct{ users []model.User }

func (r *recordingWelcomer) SendWelcome(_ context.Context, u *model.User) { r.users = append(r.users, *u) }

func TestWelcomeHandler(t *testing.T) {
	w := &recordingWelcomer{}
	h := WelcomeHandler(w)
	body, _ := json.Marshal(UserCreatedEvent{UserID: 3, Role: "CLIENT", FirstName: "Alice", Email: "alice@example.com", CreatedAt: "2025-06-02T14:30:00Z"})

	if err := h(context.Background(), body); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(w.users) != 1 || w.users[0].FirstName != "Alice" || w.users[0].Email != "alice@example.com" {
		t.Fatalf("unexpected welcomes %+v", w.users)
	}
	if w.users[0].CreatedAt.IsZero() {
		t.Fatalf("created_at not parsed")
	}

	if err := h(context.Background(), []byte("{")); err == nil {
		t.Fatalf("expected malformed body to be rejected")
	}
	if err := h(context.Background(), []byte(`{"user_id":4}`)); err == nil {
		t.Fatalf("expected event without email to be rejected")
	}
}

func TestApplicationLogHandlerAppends(t *testing.T) {
	fsys := afero.NewMemMapFs()
	h := ApplicationLogHandler(fsys, "logs")
	delay := 2
	for _, id := range []uint64{10, 11} {
		body, _ := json.Marshal(ApplicationCreatedEvent{
			ApplicationID: id, ProviderID: 2, RequestID: 5, ClientID: 1,
			RequestTitle: "Ménage 2h", Category: "HOME_SERVICES", ProposedPrice: "30.00",
			ProposedDelay: &delay, CreatedAt: "2025-06-02T14:30:00Z",
		})
		if err := h(context.Background(), body); err != nil {
			t.Fatalf("handle: %v", err)
		}
	}

	data, err := afero.ReadFile(fsys, "logs/applications.log")
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d:\n%s", len(lines), data)
	}
	if !strings.Contains(lines[0], "application_id=10") || !strings.Contains(lines[0], `title="Ménage 2h"`) || !strings.Contains(lines[0], "delay=2d") {
		t.Fatalf("unexpected line %q", lines[0])
	}
}
