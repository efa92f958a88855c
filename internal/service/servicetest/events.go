package servicetest

import (
	"context"

	"github.com/ecodeli/ecodeli-backend/internal/model"
)

// Message is one event handed to a Publisher.
type Message struct {
	Queue   string
	Payload any
}

// Publisher records published events and forwards them on Sent so tests
// can wait for asynchronous publishes.  Err, when set, is returned by
// every call.
type Publisher struct {
	Err  error
	Sent chan Message
}

func NewPublisher() *Publisher { return &Publisher{Sent: make(chan Message, 16)} }

func (p *Publisher) Publish(_ context.Context, queue string, payload any) error {
	p.Sent <- Message{Queue: queue, Payload: payload}
	return p.Err
}

// Welcomes records the users a welcome email was requested for.
type Welcomes struct {
	Users chan model.User
}

func NewWelcomes() *Welcomes { return &Welcomes{Users: make(chan model.User, 16)} }

func (w *Welcomes) SendWelcome(_ context.Context, u *model.User) {
	w.Users <- *u
}
