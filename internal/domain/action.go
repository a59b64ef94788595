package domain

// Action identifies an operation subject to the authorization policy.
type Action string

const (
	ActionCreateTicket    Action = "create_ticket"
	ActionViewTicket      Action = "view_ticket"
	ActionAdminEditTicket Action = "admin_edit_ticket"
	ActionAssignTicket    Action = "assign_ticket"
	ActionResolveTicket   Action = "resolve_ticket"
	ActionDeleteTicket    Action = "delete_ticket"
	ActionUserCRUD        Action = "user_crud"
)
