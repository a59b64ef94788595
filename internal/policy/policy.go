// Package policy is the pure authorization layer: it maps a role and an
// action (plus resource-ownership facts) to an allow/deny decision, and a
// role to the subset of tickets that role may see. It has no dependencies
// beyond the domain types and performs no IO.
package policy

import "github.com/spec-kit/helpdesk/internal/domain"

// roleSet is a membership set over the closed role enumeration.
type roleSet map[domain.Role]struct{}

func roles(list ...domain.Role) roleSet {
	set := make(roleSet, len(list))
	for _, role := range list {
		set[role] = struct{}{}
	}
	return set
}

// actionRoles is the exhaustive action/role table. Any pair not present is
// denied; ownership and state guards for view/resolve are layered on top in
// CanPerform.
var actionRoles = map[domain.Action]roleSet{
	domain.ActionCreateTicket:    roles(domain.RoleUser, domain.RoleAdmin),
	domain.ActionViewTicket:      roles(domain.RoleAdmin, domain.RoleSupportAgent, domain.RoleEngineer, domain.RoleUser),
	domain.ActionAdminEditTicket: roles(domain.RoleAdmin),
	domain.ActionAssignTicket:    roles(domain.RoleAdmin),
	domain.ActionResolveTicket:   roles(domain.RoleEngineer),
	domain.ActionDeleteTicket:    roles(domain.RoleAdmin),
	domain.ActionUserCRUD:        roles(domain.RoleAdmin),
}

// CanPerform reports whether the role may perform action. For actions with
// ownership guards the ticket must be supplied; a nil ticket only passes the
// role gate (used for create and user CRUD, which target no existing ticket).
func CanPerform(role domain.Role, action domain.Action, ticket *domain.Ticket, principalID string) bool {
	allowed, ok := actionRoles[action]
	if !ok {
		return false
	}
	if _, ok := allowed[role]; !ok {
		return false
	}
	if ticket == nil {
		return true
	}

	switch action {
	case domain.ActionViewTicket:
		return Visibility(role, principalID).Allows(ticket)
	case domain.ActionResolveTicket:
		return ticket.AssignedTo != nil && *ticket.AssignedTo == principalID
	}
	return true
}

// Scope describes the subset of tickets visible to a principal. Zero-value
// fields mean unconstrained; the repository translates a Scope into filter
// clauses so listing never loads invisible rows.
type Scope struct {
	All        bool
	Status     *domain.TicketStatus
	AssignedTo *string
	CreatedBy  *string
}

// Visibility returns the ticket visibility scope for a role.
func Visibility(role domain.Role, principalID string) Scope {
	switch role {
	case domain.RoleAdmin:
		return Scope{All: true}
	case domain.RoleSupportAgent:
		status := domain.TicketStatusOpen
		return Scope{Status: &status}
	case domain.RoleEngineer:
		return Scope{AssignedTo: &principalID}
	default:
		return Scope{CreatedBy: &principalID}
	}
}

// Allows reports whether a single ticket falls inside the scope.
func (s Scope) Allows(ticket *domain.Ticket) bool {
	if ticket == nil {
		return false
	}
	if s.All {
		return true
	}
	if s.Status != nil {
		return ticket.Status == *s.Status
	}
	if s.AssignedTo != nil {
		return ticket.AssignedTo != nil && *ticket.AssignedTo == *s.AssignedTo
	}
	if s.CreatedBy != nil {
		return ticket.CreatedBy == *s.CreatedBy
	}
	return false
}
