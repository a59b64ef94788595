package domain

import "time"

// AuditAction tags what kind of mutation an audit record describes.
type AuditAction string

const (
	AuditActionCreate     AuditAction = "create"
	AuditActionAssign     AuditAction = "assign"
	AuditActionResolve    AuditAction = "resolve"
	AuditActionAdminEdit  AuditAction = "admin_edit"
	AuditActionDelete     AuditAction = "delete"
	AuditActionUserCreate AuditAction = "user_create"
	AuditActionUserUpdate AuditAction = "user_update"
	AuditActionUserDelete AuditAction = "user_delete"
)

// AuditRecord is an immutable trail entry. Exactly one record exists per
// accepted mutation; records are never updated or deleted.
type AuditRecord struct {
	ID        string
	Action    AuditAction
	ActorID   string
	Details   string
	CreatedAt time.Time
}
