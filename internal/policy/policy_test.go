package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spec-kit/helpdesk/internal/domain"
)

func TestCanPerformRoleGate(t *testing.T) {
	cases := []struct {
		action  domain.Action
		allowed []domain.Role
	}{
		{domain.ActionCreateTicket, []domain.Role{domain.RoleUser, domain.RoleAdmin}},
		{domain.ActionViewTicket, []domain.Role{domain.RoleAdmin, domain.RoleSupportAgent, domain.RoleEngineer, domain.RoleUser}},
		{domain.ActionAdminEditTicket, []domain.Role{domain.RoleAdmin}},
		{domain.ActionAssignTicket, []domain.Role{domain.RoleAdmin}},
		{domain.ActionResolveTicket, []domain.Role{domain.RoleEngineer}},
		{domain.ActionDeleteTicket, []domain.Role{domain.RoleAdmin}},
		{domain.ActionUserCRUD, []domain.Role{domain.RoleAdmin}},
	}

	for _, tc := range cases {
		allowed := map[domain.Role]bool{}
		for _, role := range tc.allowed {
			allowed[role] = true
		}
		for _, role := range domain.Roles {
			got := CanPerform(role, tc.action, nil, "p1")
			assert.Equal(t, allowed[role], got, "action=%s role=%s", tc.action, role)
		}
	}
}

func TestCanPerformUnknownActionDenied(t *testing.T) {
	for _, role := range domain.Roles {
		assert.False(t, CanPerform(role, domain.Action("escalate_ticket"), nil, "p1"))
	}
}

func TestCanPerformResolveOwnership(t *testing.T) {
	assignee := "eng-1"
	ticket := &domain.Ticket{ID: "t1", Status: domain.TicketStatusInProgress, AssignedTo: &assignee}

	assert.True(t, CanPerform(domain.RoleEngineer, domain.ActionResolveTicket, ticket, "eng-1"))
	assert.False(t, CanPerform(domain.RoleEngineer, domain.ActionResolveTicket, ticket, "eng-2"))

	unassigned := &domain.Ticket{ID: "t2", Status: domain.TicketStatusOpen}
	assert.False(t, CanPerform(domain.RoleEngineer, domain.ActionResolveTicket, unassigned, "eng-1"))
}

func TestVisibility(t *testing.T) {
	assignee := "eng-1"
	open := &domain.Ticket{ID: "t1", Status: domain.TicketStatusOpen, CreatedBy: "user-1"}
	inProgress := &domain.Ticket{ID: "t2", Status: domain.TicketStatusInProgress, CreatedBy: "user-1", AssignedTo: &assignee}
	resolved := &domain.Ticket{ID: "t3", Status: domain.TicketStatusResolved, CreatedBy: "user-2", AssignedTo: &assignee}

	admin := Visibility(domain.RoleAdmin, "admin-1")
	assert.True(t, admin.Allows(open))
	assert.True(t, admin.Allows(inProgress))
	assert.True(t, admin.Allows(resolved))

	agent := Visibility(domain.RoleSupportAgent, "agent-1")
	assert.True(t, agent.Allows(open))
	assert.False(t, agent.Allows(inProgress))
	assert.False(t, agent.Allows(resolved))

	engineer := Visibility(domain.RoleEngineer, "eng-1")
	assert.False(t, engineer.Allows(open))
	assert.True(t, engineer.Allows(inProgress))
	assert.True(t, engineer.Allows(resolved))
	assert.False(t, Visibility(domain.RoleEngineer, "eng-2").Allows(inProgress))

	user := Visibility(domain.RoleUser, "user-1")
	assert.True(t, user.Allows(open))
	assert.True(t, user.Allows(inProgress))
	assert.False(t, user.Allows(resolved))

	assert.False(t, admin.Allows(nil))
	assert.False(t, user.Allows(nil))
}
