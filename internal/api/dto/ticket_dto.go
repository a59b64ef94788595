package dto

import (
	"time"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Status      *string `json:"status,omitempty"`
}

// AssignTicketRequest payload.
type AssignTicketRequest struct {
	AssigneeID string `json:"assignee_id"`
}

// AdminEditTicketRequest is a partial patch; absent fields are untouched.
type AdminEditTicketRequest struct {
	Title           *string `json:"title"`
	Description     *string `json:"description"`
	Status          *string `json:"status"`
	AssignedTo      *string `json:"assigned_to"`
	ClearAssignedTo bool    `json:"clear_assigned_to"`
}

// TicketResponse mirrors the ticket aggregate.
type TicketResponse struct {
	ID          string              `json:"id"`
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Status      domain.TicketStatus `json:"status"`
	CreatedBy   string              `json:"created_by"`
	AssignedTo  *string             `json:"assigned_to"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

// AuditRecordResponse mirrors an audit trail entry.
type AuditRecordResponse struct {
	ID        string             `json:"id"`
	Action    domain.AuditAction `json:"action"`
	ActorID   string             `json:"actor_id"`
	Details   string             `json:"details"`
	CreatedAt time.Time          `json:"created_at"`
}
