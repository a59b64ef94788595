package repository

import (
	"context"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// AuditRepository stores immutable audit entries. Append-only: there are no
// update or delete operations.
type AuditRepository interface {
	Create(ctx context.Context, record *domain.AuditRecord) error
	List(ctx context.Context, limit, offset int) ([]domain.AuditRecord, error)
}

type auditRepository struct {
	db DBTX
}

// NewAuditRepository builds repository.
func NewAuditRepository(db DBTX) AuditRepository {
	return &auditRepository{db: db}
}

func (r *auditRepository) Create(ctx context.Context, record *domain.AuditRecord) error {
	const query = `
        INSERT INTO audit_records (action, actor_id, details)
        VALUES ($1,$2,$3)
        RETURNING id, created_at`
	return r.db.QueryRow(ctx, query,
		record.Action,
		record.ActorID,
		record.Details,
	).Scan(&record.ID, &record.CreatedAt)
}

func (r *auditRepository) List(ctx context.Context, limit, offset int) ([]domain.AuditRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	const query = `
        SELECT id, action, actor_id, details, created_at
        FROM audit_records ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.AuditRecord
	for rows.Next() {
		var record domain.AuditRecord
		if err := rows.Scan(
			&record.ID,
			&record.Action,
			&record.ActorID,
			&record.Details,
			&record.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, record)
	}
	return result, rows.Err()
}
