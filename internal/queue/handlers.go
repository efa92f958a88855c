package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	"github.com/ecodeli/ecodeli-backend/internal/model"
)

// Welcomer sends the account welcome email.
type Welcomer interface {
	SendWelcome(ctx context.Context, u *model.User)
}

// WelcomeHandler sends the welcome email for each user.created event.
func WelcomeHandler(w Welcomer) HandlerFunc {
	return func(ctx context.Context, body []byte) error {
		var ev UserCreatedEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return fmt.Errorf("unmarshal: %w", err)
		}
		if ev.Email == "" {
			return fmt.Errorf("user %d: event without email", ev.UserID)
		}
		u := &model.User{
			ID:        ev.UserID,
			Role:      model.Role(ev.Role),
			FirstName: ev.FirstName,
			LastName:  ev.LastName,
			Email:     ev.Email,
		}
		if t, err := time.Parse(time.RFC3339, ev.CreatedAt); err == nil {
			u.CreatedAt = t
		}
		w.SendWelcome(ctx, u)
		return nil
	}
}

// ApplicationLogHandler appends one line per application.created event to
// dir/applications.log.
func ApplicationLogHandler(fsys afero.Fs, dir string) HandlerFunc {
	return func(_ context.Context, body []byte) error {
		var ev ApplicationCreatedEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return fmt.Errorf("unmarshal: %w", err)
		}
		if err := fsys.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir %s: %w", dir, err)
		}
		f, err := fsys.OpenFile(filepath.Join(dir, "applications.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer f.Close()

		delay := "-"
		if ev.ProposedDelay != nil {
			delay = fmt.Sprintf("%dd", *ev.ProposedDelay)
		}
		line := fmt.Sprintf("[%s] Application created | application_id=%d | provider_id=%d | request_id=%d | client_id=%d | category=%s | title=%q | price=%s | delay=%s\n",
			ev.CreatedAt, ev.ApplicationID, ev.ProviderID, ev.RequestID, ev.ClientID, ev.Category, ev.RequestTitle, ev.ProposedPrice, delay)
		if _, err := f.WriteString(line); err != nil {
			return fmt.Errorf("write log: %w", err)
		}
		return nil
	}
}
