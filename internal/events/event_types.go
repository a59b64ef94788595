package events

import (
	"time"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated  EventType = "ticket_created"
	EventTicketAssigned EventType = "ticket_assigned"
	EventTicketResolved EventType = "ticket_resolved"
	EventTicketEdited   EventType = "ticket_edited"
	EventTicketDeleted  EventType = "ticket_deleted"
)

// Event represents a domain event emitted after a committed transition.
type Event struct {
	ID        string        `json:"id"`
	Type      EventType     `json:"type"`
	ActorID   string        `json:"actor_id"`
	Ticket    domain.Ticket `json:"ticket"`
	Timestamp time.Time     `json:"timestamp"`
}
