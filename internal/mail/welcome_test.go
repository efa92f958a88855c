package mail

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ecodeli/ecodeli-backend/internal/model"
)

type fakeTransport struct {
	sent []Message
	err  error
}

func (f *fakeTransport) Send(_ context.Context, m Message) error {
	f.sent = append(f.sent, m)
	return f.err
}

func TestRenderWelcomeIsDeterministic(t *testing.T) {
	a, err := RenderWelcome("Alice")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	b, _ := RenderWelcome("Alice")
	if a != b {
		t.Fatalf("render is not deterministic")
	}
	if !strings.Contains(a, "Bienvenue chez EcoDeli, Alice !") {
		t.Fatalf("first name missing from body:\n%s", a)
	}

	escaped, _ := RenderWelcome("<b>Bob</b>")
	if strings.Contains(escaped, "<b>Bob</b>") {
		t.Fatalf("first name was not escaped")
	}
}

func TestSendWelcome(t *testing.T) {
	tr := &fakeTransport{}
	m := NewWelcomeMailer(tr, "noreply@ecodeli.fr", zap.NewNop())

	m.SendWelcome(context.Background(), &model.User{ID: 7, FirstName: "Alice", Email: "alice@example.com"})
	if len(tr.sent) != 1 {
		t.Fatalf("expected one message, got %d", len(tr.sent))
	}
	got := tr.sent[0]
	if got.From != "noreply@ecodeli.fr" || got.FromName != "EcoDeli" || got.To != "alice@example.com" {
		t.Fatalf("unexpected envelope %+v", got)
	}
	if got.Subject != "Bienvenue chez EcoDeli ! 🌱" {
		t.Fatalf("unexpected subject %q", got.Subject)
	}
	want, _ := RenderWelcome("Alice")
	if got.HTMLBody != want {
		t.Fatalf("unexpected body")
	}
}

func TestSendWelcomeSwallowsFailures(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	tr := &fakeTransport{err: errors.New("connection refused")}
	m := NewWelcomeMailer(tr, "noreply@ecodeli.fr", zap.New(core))

	m.SendWelcome(context.Background(), &model.User{ID: 9, FirstName: "Bob", Email: "bob@example.com"})
	if logs.Len() != 1 {
		t.Fatalf("expected one error log, got %d", logs.Len())
	}
	if logs.All()[0].Message != "send welcome email" {
		t.Fatalf("unexpected log %q", logs.All()[0].Message)
	}
}

func TestBuildMessage(t *testing.T) {
	msg, err := buildMessage(Message{
		From: "noreply@ecodeli.fr", FromName: "EcoDeli", To: "alice@example.com",
		Subject: "Bienvenue chez EcoDeli ! 🌱", HTMLBody: "<p>Bonjour</p>",
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	var buf bytes.Buffer
	if _, err := msg.WriteTo(&buf); err != nil {
		t.Fatalf("write: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"noreply@ecodeli.fr", "alice@example.com", "text/html", "UTF-8", "<p>Bonjour</p>"} {
		if !strings.Contains(out, want) {
			t.Fatalf("message missing %q:\n%s", want, out)
		}
	}

	if _, err := buildMessage(Message{From: "not an address", To: "alice@example.com"}); err == nil {
		t.Fatalf("expected invalid sender to fail")
	}
}
