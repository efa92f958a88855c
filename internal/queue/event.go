// Package queue defines message payloads exchanged over the message broker
// together with the publisher and the background consumers.
package queue

// Queue names.  Each queue is durable and fed through the default exchange.
const (
	UserCreatedQueue        = "ecodeli.user.created"
	ApplicationCreatedQueue = "ecodeli.application.created"
)

// UserCreatedEvent is published after an account has been stored.  The
// consumer uses it to send the welcome email without querying the database.
type UserCreatedEvent struct {
	UserID    uint64 `json:"user_id"`
	Role      string `json:"role"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	CreatedAt string `json:"created_at"`
}

// ApplicationCreatedEvent is published when a provider applied to a request.
type ApplicationCreatedEvent struct {
	ApplicationID uint64 `json:"application_id"`
	ProviderID    uint64 `json:"provider_id"`
	RequestID     uint64 `json:"request_id"`
	ClientID      uint64 `json:"client_id"`
	RequestTitle  string `json:"request_title"`
	Category      string `json:"category"`
	ProposedPrice string `json:"proposed_price"`
	ProposedDelay *int   `json:"proposed_delay,omitempty"`
	CreatedAt     string `json:"created_at"`
}
