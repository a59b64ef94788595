package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/policy"
	"github.com/spec-kit/helpdesk/internal/repository"
	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

// WorkflowService is the sole entry point for ticket mutations. It sequences
// the authorization guard, the status transition, the audit append and the
// notification event: guard failures short-circuit before storage is
// touched, the mutation and its audit record commit in one transaction, and
// events are published only after that commit succeeds.
type WorkflowService struct {
	store      repository.Store
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// WorkflowDependencies bundles requirements for the workflow service.
type WorkflowDependencies struct {
	Store      repository.Store
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// NewWorkflowService constructs the service.
func NewWorkflowService(deps WorkflowDependencies) *WorkflowService {
	return &WorkflowService{
		store:      deps.Store,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
	}
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Title       string
	Description string
	Status      *domain.TicketStatus
}

// TicketPatch describes an administrative partial edit. Nil fields are left
// untouched; ClearAssignedTo removes the assignee.
type TicketPatch struct {
	Title           *string
	Description     *string
	Status          *domain.TicketStatus
	AssignedTo      *string
	ClearAssignedTo bool
}

// Create opens a new ticket on behalf of the principal.
func (s *WorkflowService) Create(ctx context.Context, principal domain.Principal, input TicketCreateInput) (*domain.Ticket, error) {
	if !policy.CanPerform(principal.Role, domain.ActionCreateTicket, nil, principal.ID) {
		return nil, apperrors.NewForbidden("role may not create tickets")
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, apperrors.NewValidationError("title is required", nil)
	}
	status := domain.TicketStatusOpen
	if input.Status != nil {
		status = *input.Status
	}

	ticket := &domain.Ticket{
		Title:       title,
		Description: strings.TrimSpace(input.Description),
		Status:      status,
		CreatedBy:   principal.ID,
	}

	err := s.store.InTx(ctx, func(r repository.Repositories) error {
		if err := r.Tickets.Create(ctx, ticket); err != nil {
			return err
		}
		return r.Audits.Create(ctx, &domain.AuditRecord{
			Action:  domain.AuditActionCreate,
			ActorID: principal.ID,
			Details: fmt.Sprintf("Ticket %s created: %s", ticket.ID, ticket.Title),
		})
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	s.publishEvent(ctx, events.EventTicketCreated, principal.ID, ticket)
	return ticket, nil
}

// List returns tickets visible to the principal.
func (s *WorkflowService) List(ctx context.Context, principal domain.Principal, limit, offset int) ([]domain.Ticket, error) {
	scope := policy.Visibility(principal.Role, principal.ID)
	filter := repository.TicketFilter{
		CreatedBy:  scope.CreatedBy,
		AssignedTo: scope.AssignedTo,
		Status:     scope.Status,
		Limit:      limit,
		Offset:     offset,
	}
	tickets, err := s.store.Repos().Tickets.List(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tickets, nil
}

// Get fetches a single ticket, enforcing visibility.
func (s *WorkflowService) Get(ctx context.Context, principal domain.Principal, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.store.Repos().Tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	if !policy.CanPerform(principal.Role, domain.ActionViewTicket, ticket, principal.ID) {
		return nil, apperrors.NewForbidden("ticket not visible to caller")
	}
	return ticket, nil
}

// Assign hands the ticket to an engineer and forces it into in_progress.
// Re-assignment of an already in_progress ticket is allowed and advances the
// status idempotently.
func (s *WorkflowService) Assign(ctx context.Context, principal domain.Principal, ticketID, assigneeID string) (*domain.Ticket, error) {
	if !policy.CanPerform(principal.Role, domain.ActionAssignTicket, nil, principal.ID) {
		return nil, apperrors.NewForbidden("only admins may assign tickets")
	}

	var ticket *domain.Ticket
	err := s.store.InTx(ctx, func(r repository.Repositories) error {
		assignee, err := r.Users.GetByID(ctx, assigneeID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperrors.NewNotFound("assignee", map[string]any{"user_id": assigneeID})
			}
			return err
		}
		if assignee.Role != domain.RoleEngineer {
			return apperrors.NewValidationError("assignee must be an engineer", map[string]any{"user_id": assigneeID})
		}

		ticket, err = r.Tickets.GetByID(ctx, ticketID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
			}
			return err
		}

		expected := ticket.UpdatedAt
		ticket.AssignedTo = &assignee.ID
		ticket.Status = domain.TicketStatusInProgress
		if err := s.updateTicket(ctx, r, ticket, expected); err != nil {
			return err
		}
		return r.Audits.Create(ctx, &domain.AuditRecord{
			Action:  domain.AuditActionAssign,
			ActorID: principal.ID,
			Details: fmt.Sprintf("Ticket %s assigned to user %s", ticket.ID, assignee.ID),
		})
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	s.publishEvent(ctx, events.EventTicketAssigned, principal.ID, ticket)
	return ticket, nil
}

// Resolve marks the ticket resolved. Only the assigned engineer may do so,
// and only while the ticket is in progress.
func (s *WorkflowService) Resolve(ctx context.Context, principal domain.Principal, ticketID string) (*domain.Ticket, error) {
	if !policy.CanPerform(principal.Role, domain.ActionResolveTicket, nil, principal.ID) {
		return nil, apperrors.NewForbidden("only engineers may resolve tickets")
	}

	var ticket *domain.Ticket
	err := s.store.InTx(ctx, func(r repository.Repositories) error {
		var err error
		ticket, err = r.Tickets.GetByID(ctx, ticketID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
			}
			return err
		}
		if !policy.CanPerform(principal.Role, domain.ActionResolveTicket, ticket, principal.ID) {
			return apperrors.NewForbidden("only the assigned engineer can resolve this ticket")
		}
		switch ticket.Status {
		case domain.TicketStatusResolved, domain.TicketStatusClosed:
			return apperrors.NewConflict("ticket already resolved or closed", map[string]any{"status": ticket.Status})
		case domain.TicketStatusInProgress:
		default:
			return apperrors.NewConflict("ticket is not in progress", map[string]any{"status": ticket.Status})
		}

		expected := ticket.UpdatedAt
		ticket.Status = domain.TicketStatusResolved
		if err := s.updateTicket(ctx, r, ticket, expected); err != nil {
			return err
		}
		return r.Audits.Create(ctx, &domain.AuditRecord{
			Action:  domain.AuditActionResolve,
			ActorID: principal.ID,
			Details: fmt.Sprintf("Ticket %s marked as resolved", ticket.ID),
		})
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	s.publishEvent(ctx, events.EventTicketResolved, principal.ID, ticket)
	return ticket, nil
}

// AdminEdit applies an unrestricted field patch. Changing the assignee
// re-validates the target; the status never changes as a side effect.
func (s *WorkflowService) AdminEdit(ctx context.Context, principal domain.Principal, ticketID string, patch TicketPatch) (*domain.Ticket, error) {
	if !policy.CanPerform(principal.Role, domain.ActionAdminEditTicket, nil, principal.ID) {
		return nil, apperrors.NewForbidden("only admins may edit tickets")
	}
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		return nil, apperrors.NewValidationError("title must not be empty", nil)
	}

	var ticket *domain.Ticket
	err := s.store.InTx(ctx, func(r repository.Repositories) error {
		var err error
		ticket, err = r.Tickets.GetByID(ctx, ticketID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
			}
			return err
		}

		expected := ticket.UpdatedAt
		if patch.Title != nil {
			ticket.Title = strings.TrimSpace(*patch.Title)
		}
		if patch.Description != nil {
			ticket.Description = strings.TrimSpace(*patch.Description)
		}
		if patch.Status != nil {
			ticket.Status = *patch.Status
		}
		if patch.ClearAssignedTo {
			ticket.AssignedTo = nil
		} else if patch.AssignedTo != nil {
			assignee, err := r.Users.GetByID(ctx, *patch.AssignedTo)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return apperrors.NewNotFound("assignee", map[string]any{"user_id": *patch.AssignedTo})
				}
				return err
			}
			if assignee.Role != domain.RoleEngineer {
				return apperrors.NewValidationError("assignee must be an engineer", map[string]any{"user_id": assignee.ID})
			}
			ticket.AssignedTo = &assignee.ID
		}

		if err := s.updateTicket(ctx, r, ticket, expected); err != nil {
			return err
		}
		return r.Audits.Create(ctx, &domain.AuditRecord{
			Action:  domain.AuditActionAdminEdit,
			ActorID: principal.ID,
			Details: fmt.Sprintf("Ticket %s updated by admin", ticket.ID),
		})
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	s.publishEvent(ctx, events.EventTicketEdited, principal.ID, ticket)
	return ticket, nil
}

// Delete removes the ticket permanently, recording its final state in the
// audit trail.
func (s *WorkflowService) Delete(ctx context.Context, principal domain.Principal, ticketID string) error {
	if !policy.CanPerform(principal.Role, domain.ActionDeleteTicket, nil, principal.ID) {
		return apperrors.NewForbidden("only admins may delete tickets")
	}

	var ticket *domain.Ticket
	err := s.store.InTx(ctx, func(r repository.Repositories) error {
		var err error
		ticket, err = r.Tickets.GetByID(ctx, ticketID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
			}
			return err
		}
		if err := r.Tickets.Delete(ctx, ticket.ID); err != nil {
			return err
		}
		assignee := "none"
		if ticket.AssignedTo != nil {
			assignee = *ticket.AssignedTo
		}
		return r.Audits.Create(ctx, &domain.AuditRecord{
			Action:  domain.AuditActionDelete,
			ActorID: principal.ID,
			Details: fmt.Sprintf("Ticket %s deleted (title=%q status=%s assigned_to=%s)", ticket.ID, ticket.Title, ticket.Status, assignee),
		})
	})
	if err != nil {
		return apperrors.MapError(err)
	}

	s.publishEvent(ctx, events.EventTicketDeleted, principal.ID, ticket)
	return nil
}

// ListAudit returns the audit trail, admin only.
func (s *WorkflowService) ListAudit(ctx context.Context, principal domain.Principal, limit, offset int) ([]domain.AuditRecord, error) {
	if principal.Role != domain.RoleAdmin {
		return nil, apperrors.NewForbidden("only admins may read the audit trail")
	}
	records, err := s.store.Repos().Audits.List(ctx, limit, offset)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return records, nil
}

func (s *WorkflowService) updateTicket(ctx context.Context, r repository.Repositories, ticket *domain.Ticket, expected time.Time) error {
	if err := r.Tickets.Update(ctx, ticket, expected); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			return apperrors.NewConflict("ticket was modified concurrently", map[string]any{"ticket_id": ticket.ID})
		}
		return err
	}
	return nil
}

func (s *WorkflowService) publishEvent(ctx context.Context, eventType events.EventType, actorID string, ticket *domain.Ticket) {
	if s.dispatcher == nil || ticket == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		ActorID:   actorID,
		Ticket:    *ticket,
		Timestamp: time.Now(),
	})
}
