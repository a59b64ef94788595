package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

type workflowFixture struct {
	store      *memStore
	dispatcher *capturingDispatcher
	svc        *WorkflowService

	admin    domain.Principal
	agent    domain.Principal
	engineer domain.Principal
	user     domain.Principal

	engineerID string
}

func newWorkflowFixture(t *testing.T) *workflowFixture {
	t.Helper()
	store := newMemStore()
	dispatcher := &capturingDispatcher{}
	svc := NewWorkflowService(WorkflowDependencies{
		Store:      store,
		Dispatcher: dispatcher,
		Logger:     zap.NewNop(),
	})

	admin := store.addUser("alice", domain.RoleAdmin)
	agent := store.addUser("bob", domain.RoleSupportAgent)
	engineer := store.addUser("carol", domain.RoleEngineer)
	user := store.addUser("dave", domain.RoleUser)

	return &workflowFixture{
		store:      store,
		dispatcher: dispatcher,
		svc:        svc,
		admin:      domain.Principal{ID: admin.ID, Role: domain.RoleAdmin},
		agent:      domain.Principal{ID: agent.ID, Role: domain.RoleSupportAgent},
		engineer:   domain.Principal{ID: engineer.ID, Role: domain.RoleEngineer},
		user:       domain.Principal{ID: user.ID, Role: domain.RoleUser},
		engineerID: engineer.ID,
	}
}

func errorCode(t *testing.T, err error) string {
	t.Helper()
	require.Error(t, err)
	return apperrors.ToDomainError(err).Code
}

func TestWorkflowCreate(t *testing.T) {
	fx := newWorkflowFixture(t)
	ctx := context.Background()

	ticket, err := fx.svc.Create(ctx, fx.user, TicketCreateInput{Title: "  printer jam  ", Description: "third floor"})
	require.NoError(t, err)
	assert.Equal(t, "printer jam", ticket.Title)
	assert.Equal(t, domain.TicketStatusOpen, ticket.Status)
	assert.Equal(t, fx.user.ID, ticket.CreatedBy)
	assert.Nil(t, ticket.AssignedTo)

	records := fx.store.auditRecords()
	require.Len(t, records, 1)
	assert.Equal(t, domain.AuditActionCreate, records[0].Action)
	assert.Equal(t, fx.user.ID, records[0].ActorID)

	published := fx.dispatcher.published()
	require.Len(t, published, 1)
	assert.Equal(t, events.EventTicketCreated, published[0].Type)
}

func TestWorkflowCreateValidation(t *testing.T) {
	fx := newWorkflowFixture(t)
	ctx := context.Background()

	_, err := fx.svc.Create(ctx, fx.user, TicketCreateInput{Title: "   "})
	assert.Equal(t, "VALIDATION_FAILED", errorCode(t, err))

	_, err = fx.svc.Create(ctx, fx.engineer, TicketCreateInput{Title: "nope"})
	assert.Equal(t, "FORBIDDEN", errorCode(t, err))

	_, err = fx.svc.Create(ctx, fx.agent, TicketCreateInput{Title: "nope"})
	assert.Equal(t, "FORBIDDEN", errorCode(t, err))

	// Denied attempts leave no trace.
	assert.Empty(t, fx.store.auditRecords())
	assert.Empty(t, fx.dispatcher.published())
}

func TestWorkflowAssign(t *testing.T) {
	fx := newWorkflowFixture(t)
	ctx := context.Background()

	ticket, err := fx.svc.Create(ctx, fx.user, TicketCreateInput{Title: "vpn down"})
	require.NoError(t, err)

	assigned, err := fx.svc.Assign(ctx, fx.admin, ticket.ID, fx.engineerID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusInProgress, assigned.Status)
	require.NotNil(t, assigned.AssignedTo)
	assert.Equal(t, fx.engineerID, *assigned.AssignedTo)

	records := fx.store.auditRecords()
	require.Len(t, records, 2)
	assert.Equal(t, domain.AuditActionAssign, records[1].Action)
	assert.Equal(t, fx.admin.ID, records[1].ActorID)
	assert.Equal(t, fmt.Sprintf("Ticket %s assigned to user %s", ticket.ID, fx.engineerID), records[1].Details)
}

func TestWorkflowAssignGuards(t *testing.T) {
	fx := newWorkflowFixture(t)
	ctx := context.Background()

	ticket, err := fx.svc.Create(ctx, fx.user, TicketCreateInput{Title: "vpn down"})
	require.NoError(t, err)

	_, err = fx.svc.Assign(ctx, fx.agent, ticket.ID, fx.engineerID)
	assert.Equal(t, "FORBIDDEN", errorCode(t, err))

	_, err = fx.svc.Assign(ctx, fx.admin, ticket.ID, fx.user.ID)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(t, err))

	_, err = fx.svc.Assign(ctx, fx.admin, ticket.ID, "00000000-0000-0000-0000-000000000000")
	assert.Equal(t, "NOT_FOUND", errorCode(t, err))

	_, err = fx.svc.Assign(ctx, fx.admin, "00000000-0000-0000-0000-000000000000", fx.engineerID)
	assert.Equal(t, "NOT_FOUND", errorCode(t, err))

	// Denied assignments never mutate the ticket or the trail.
	assert.Equal(t, domain.TicketStatusOpen, fx.store.getTicket(ticket.ID).Status)
	assert.Len(t, fx.store.auditRecords(), 1)
}

func TestWorkflowResolve(t *testing.T) {
	fx := newWorkflowFixture(t)
	ctx := context.Background()

	ticket, err := fx.svc.Create(ctx, fx.user, TicketCreateInput{Title: "vpn down"})
	require.NoError(t, err)
	_, err = fx.svc.Assign(ctx, fx.admin, ticket.ID, fx.engineerID)
	require.NoError(t, err)

	resolved, err := fx.svc.Resolve(ctx, fx.engineer, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusResolved, resolved.Status)

	records := fx.store.auditRecords()
	require.Len(t, records, 3)
	assert.Equal(t, domain.AuditActionResolve, records[2].Action)
	assert.Equal(t, fx.engineer.ID, records[2].ActorID)
	assert.Equal(t, fmt.Sprintf("Ticket %s marked as resolved", ticket.ID), records[2].Details)

	published := fx.dispatcher.published()
	require.Len(t, published, 3)
	assert.Equal(t, events.EventTicketResolved, published[2].Type)
}

func TestWorkflowResolveGuards(t *testing.T) {
	fx := newWorkflowFixture(t)
	ctx := context.Background()

	ticket, err := fx.svc.Create(ctx, fx.user, TicketCreateInput{Title: "vpn down"})
	require.NoError(t, err)

	// Not assigned yet: the assignee gate fires before the status gate.
	_, err = fx.svc.Resolve(ctx, fx.engineer, ticket.ID)
	assert.Equal(t, "FORBIDDEN", errorCode(t, err))

	_, err = fx.svc.Assign(ctx, fx.admin, ticket.ID, fx.engineerID)
	require.NoError(t, err)

	other := fx.store.addUser("erin", domain.RoleEngineer)
	otherEngineer := domain.Principal{ID: other.ID, Role: domain.RoleEngineer}
	_, err = fx.svc.Resolve(ctx, otherEngineer, ticket.ID)
	assert.Equal(t, "FORBIDDEN", errorCode(t, err))

	_, err = fx.svc.Resolve(ctx, fx.admin, ticket.ID)
	assert.Equal(t, "FORBIDDEN", errorCode(t, err))

	_, err = fx.svc.Resolve(ctx, fx.engineer, ticket.ID)
	require.NoError(t, err)

	// Double resolve conflicts for the assignee, but a non-assignee is
	// still rejected on role/ownership first.
	_, err = fx.svc.Resolve(ctx, fx.engineer, ticket.ID)
	assert.Equal(t, "CONFLICT", errorCode(t, err))
	_, err = fx.svc.Resolve(ctx, otherEngineer, ticket.ID)
	assert.Equal(t, "FORBIDDEN", errorCode(t, err))

	assert.Equal(t, domain.TicketStatusResolved, fx.store.getTicket(ticket.ID).Status)
}

func TestWorkflowAdminEdit(t *testing.T) {
	fx := newWorkflowFixture(t)
	ctx := context.Background()

	ticket, err := fx.svc.Create(ctx, fx.user, TicketCreateInput{Title: "vpn down"})
	require.NoError(t, err)

	newTitle := "vpn outage, building B"
	edited, err := fx.svc.AdminEdit(ctx, fx.admin, ticket.ID, TicketPatch{
		Title:      &newTitle,
		AssignedTo: &fx.engineerID,
	})
	require.NoError(t, err)
	assert.Equal(t, newTitle, edited.Title)
	require.NotNil(t, edited.AssignedTo)
	assert.Equal(t, fx.engineerID, *edited.AssignedTo)
	// Assigning through an edit does not force a status change.
	assert.Equal(t, domain.TicketStatusOpen, edited.Status)

	cleared, err := fx.svc.AdminEdit(ctx, fx.admin, ticket.ID, TicketPatch{ClearAssignedTo: true})
	require.NoError(t, err)
	assert.Nil(t, cleared.AssignedTo)

	_, err = fx.svc.AdminEdit(ctx, fx.user, ticket.ID, TicketPatch{Title: &newTitle})
	assert.Equal(t, "FORBIDDEN", errorCode(t, err))

	_, err = fx.svc.AdminEdit(ctx, fx.admin, ticket.ID, TicketPatch{AssignedTo: &fx.user.ID})
	assert.Equal(t, "VALIDATION_FAILED", errorCode(t, err))

	empty := " "
	_, err = fx.svc.AdminEdit(ctx, fx.admin, ticket.ID, TicketPatch{Title: &empty})
	assert.Equal(t, "VALIDATION_FAILED", errorCode(t, err))
}

func TestWorkflowDelete(t *testing.T) {
	fx := newWorkflowFixture(t)
	ctx := context.Background()

	ticket, err := fx.svc.Create(ctx, fx.user, TicketCreateInput{Title: "old ticket"})
	require.NoError(t, err)
	_, err = fx.svc.Assign(ctx, fx.admin, ticket.ID, fx.engineerID)
	require.NoError(t, err)

	err = fx.svc.Delete(ctx, fx.engineer, ticket.ID)
	assert.Equal(t, "FORBIDDEN", errorCode(t, err))

	require.NoError(t, fx.svc.Delete(ctx, fx.admin, ticket.ID))
	_, err = fx.svc.Get(ctx, fx.admin, ticket.ID)
	assert.Equal(t, "NOT_FOUND", errorCode(t, err))

	// The final audit entry captures the ticket state at deletion time.
	records := fx.store.auditRecords()
	require.Len(t, records, 3)
	last := records[2]
	assert.Equal(t, domain.AuditActionDelete, last.Action)
	assert.Equal(t, fx.admin.ID, last.ActorID)
	expected := fmt.Sprintf("Ticket %s deleted (title=%q status=%s assigned_to=%s)",
		ticket.ID, "old ticket", domain.TicketStatusInProgress, fx.engineerID)
	assert.Equal(t, expected, last.Details)
}

func TestWorkflowVisibility(t *testing.T) {
	fx := newWorkflowFixture(t)
	ctx := context.Background()

	mine, err := fx.svc.Create(ctx, fx.user, TicketCreateInput{Title: "mine"})
	require.NoError(t, err)
	otherUser := fx.store.addUser("frank", domain.RoleUser)
	theirs, err := fx.svc.Create(ctx, domain.Principal{ID: otherUser.ID, Role: domain.RoleUser}, TicketCreateInput{Title: "theirs"})
	require.NoError(t, err)
	_, err = fx.svc.Assign(ctx, fx.admin, theirs.ID, fx.engineerID)
	require.NoError(t, err)

	// Admin sees everything.
	tickets, err := fx.svc.List(ctx, fx.admin, 0, 0)
	require.NoError(t, err)
	assert.Len(t, tickets, 2)

	// A user sees only their own tickets, in any status.
	tickets, err = fx.svc.List(ctx, fx.user, 0, 0)
	require.NoError(t, err)
	require.Len(t, tickets, 1)
	assert.Equal(t, mine.ID, tickets[0].ID)

	// Support agents see open tickets only; "theirs" moved to in_progress.
	tickets, err = fx.svc.List(ctx, fx.agent, 0, 0)
	require.NoError(t, err)
	require.Len(t, tickets, 1)
	assert.Equal(t, mine.ID, tickets[0].ID)

	// Engineers see what is assigned to them.
	tickets, err = fx.svc.List(ctx, fx.engineer, 0, 0)
	require.NoError(t, err)
	require.Len(t, tickets, 1)
	assert.Equal(t, theirs.ID, tickets[0].ID)

	// Get enforces the same scope.
	_, err = fx.svc.Get(ctx, fx.user, theirs.ID)
	assert.Equal(t, "FORBIDDEN", errorCode(t, err))
	_, err = fx.svc.Get(ctx, fx.engineer, mine.ID)
	assert.Equal(t, "FORBIDDEN", errorCode(t, err))
	_, err = fx.svc.Get(ctx, fx.agent, mine.ID)
	require.NoError(t, err)
}

func TestWorkflowVersionConflict(t *testing.T) {
	fx := newWorkflowFixture(t)
	ctx := context.Background()

	ticket, err := fx.svc.Create(ctx, fx.user, TicketCreateInput{Title: "racy"})
	require.NoError(t, err)

	// Simulate a concurrent writer bumping the row version between the
	// service's read and its guarded update.
	fx.store.mu.Lock()
	stored := fx.store.tickets[ticket.ID]
	stored.UpdatedAt = stored.UpdatedAt.Add(time.Minute)
	fx.store.tickets[ticket.ID] = stored
	fx.store.mu.Unlock()

	stale := *ticket
	err = fx.svc.updateTicket(ctx, fx.store.Repos(), &stale, ticket.UpdatedAt)
	assert.Equal(t, "CONFLICT", errorCode(t, err))
}

func TestWorkflowAuditFailureRollsBackMutation(t *testing.T) {
	fx := newWorkflowFixture(t)
	ctx := context.Background()

	fx.store.auditErr = errors.New("audit table unavailable")
	_, err := fx.svc.Create(ctx, fx.user, TicketCreateInput{Title: "doomed"})
	assert.Equal(t, "STORAGE_ERROR", errorCode(t, err))

	// The ticket write rolls back with the failed audit append: no ticket,
	// no audit record, no event.
	fx.store.auditErr = nil
	tickets, err := fx.svc.List(ctx, fx.admin, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, tickets)
	assert.Empty(t, fx.store.auditRecords())
	assert.Empty(t, fx.dispatcher.published())

	// Same discipline on a state transition over an existing ticket.
	ticket, err := fx.svc.Create(ctx, fx.user, TicketCreateInput{Title: "survivor"})
	require.NoError(t, err)

	fx.store.auditErr = errors.New("audit table unavailable")
	_, err = fx.svc.Assign(ctx, fx.admin, ticket.ID, fx.engineerID)
	assert.Equal(t, "STORAGE_ERROR", errorCode(t, err))
	fx.store.auditErr = nil

	current := fx.store.getTicket(ticket.ID)
	assert.Equal(t, domain.TicketStatusOpen, current.Status)
	assert.Nil(t, current.AssignedTo)
	assert.Len(t, fx.store.auditRecords(), 1)
	assert.Len(t, fx.dispatcher.published(), 1)
}

func TestWorkflowListAudit(t *testing.T) {
	fx := newWorkflowFixture(t)
	ctx := context.Background()

	_, err := fx.svc.Create(ctx, fx.user, TicketCreateInput{Title: "audited"})
	require.NoError(t, err)

	records, err := fx.svc.ListAudit(ctx, fx.admin, 0, 0)
	require.NoError(t, err)
	assert.Len(t, records, 1)

	for _, principal := range []domain.Principal{fx.agent, fx.engineer, fx.user} {
		_, err := fx.svc.ListAudit(ctx, principal, 0, 0)
		assert.Equal(t, "FORBIDDEN", errorCode(t, err))
	}
}
