package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/refcheckai/refcheck-backend/internal/models"
)

type AuditLogRepository interface {
	Create(ctx context.Context, entry *models.AuditLog) error
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*models.AuditLog, error)
}

type auditLogRepo struct {
	db DB
}

func NewAuditLogRepository(db DB) AuditLogRepository {
	return &auditLogRepo{db: db}
}

func (r *auditLogRepo) Create(ctx context.Context, entry *models.AuditLog) error {
	_, err := r.db.Exec(ctx, `
        INSERT INTO audit_logs (id, user_id, action, entity_type, entity_id, created_at)
        VALUES ($1,$2,$3,$4,$5,NOW())
    `, entry.ID, entry.UserID, entry.Action, entry.EntityType, entry.EntityID)
	return err
}

func (r *auditLogRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*models.AuditLog, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.Query(ctx, `
        SELECT id, user_id, action, entity_type, entity_id, created_at
        FROM audit_logs
        WHERE user_id=$1
        ORDER BY created_at DESC
        LIMIT $2
    `, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.AuditLog
	for rows.Next() {
		var e models.AuditLog
		if scanErr := rows.Scan(&e.ID, &e.UserID, &e.Action, &e.EntityType, &e.EntityID, &e.CreatedAt); scanErr != nil {
			return nil, scanErr
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}
