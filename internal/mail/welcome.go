// Package mail renders and sends transactional emails.
package mail

import (
	"bytes"
	"context"
	"embed"
	"html/template"

	"go.uber.org/zap"

	"github.com/ecodeli/ecodeli-backend/internal/model"
)

const (
	senderName     = "EcoDeli"
	welcomeSubject = "Bienvenue chez EcoDeli ! 🌱"
)

//go:embed templates/*.html
var templateFS embed.FS

var welcomeTmpl = template.Must(template.ParseFS(templateFS, "templates/welcome.html"))

// RenderWelcome returns the HTML body of the welcome email.
func RenderWelcome(firstName string) (string, error) {
	var buf bytes.Buffer
	if err := welcomeTmpl.Execute(&buf, struct{ FirstName string }{firstName}); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// WelcomeMailer sends the welcome email through a Transport.  Failures are
// logged and never returned.
type WelcomeMailer struct {
	transport Transport
	from      string
	log       *zap.Logger
}

func NewWelcomeMailer(t Transport, from string, log *zap.Logger) *WelcomeMailer {
	return &WelcomeMailer{transport: t, from: from, log: log}
}

func (m *WelcomeMailer) SendWelcome(ctx context.Context, u *model.User) {
	if u == nil || u.Email == "" {
		m.log.Error("welcome email skipped: no recipient")
		return
	}
	body, err := RenderWelcome(u.FirstName)
	if err != nil {
		m.log.Error("render welcome email", zap.Uint64("user_id", u.ID), zap.Error(err))
		return
	}
	msg := Message{
		From:     m.from,
		FromName: senderName,
		To:       u.Email,
		Subject:  welcomeSubject,
		HTMLBody: body,
	}
	if err := m.transport.Send(ctx, msg); err != nil {
		m.log.Error("send welcome email", zap.Uint64("user_id", u.ID), zap.String("to", u.Email), zap.Error(err))
		return
	}
	m.log.Info("welcome email sent", zap.Uint64("user_id", u.ID))
}
