package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "open"
	TicketStatusInProgress TicketStatus = "in_progress"
	TicketStatusResolved   TicketStatus = "resolved"
	TicketStatusClosed     TicketStatus = "closed"
)

// ParseTicketStatus validates a status string from external input.
func ParseTicketStatus(s string) (TicketStatus, bool) {
	switch status := TicketStatus(s); status {
	case TicketStatusOpen, TicketStatusInProgress, TicketStatusResolved, TicketStatusClosed:
		return status, true
	}
	return "", false
}

// Ticket is the aggregate for support requests. CreatedBy is immutable after
// creation; AssignedTo, when set, must reference an engineer; UpdatedAt is
// bumped on every mutation and doubles as the optimistic concurrency token.
type Ticket struct {
	ID          string
	Title       string
	Description string
	Status      TicketStatus
	CreatedBy   string
	AssignedTo  *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
