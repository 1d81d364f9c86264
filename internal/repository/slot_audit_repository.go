package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/nitro-academy/turma-scheduler/internal/models"
)

// SlotAuditRepository persists the slot mutation trail.
type SlotAuditRepository struct {
	db *sqlx.DB
}

// NewSlotAuditRepository creates a new audit repository.
func NewSlotAuditRepository(db *sqlx.DB) *SlotAuditRepository {
	return &SlotAuditRepository{db: db}
}

// Create stores an audit entry.
func (r *SlotAuditRepository) Create(ctx context.Context, entry *models.SlotAuditLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO slot_audit_logs (id, course_id, action, actor_id, version, before_json, after_json, created_at) VALUES (:id, :course_id, :action, :actor_id, :version, :before_json, :after_json, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("create slot audit log: %w", err)
	}
	return nil
}

// ListByCourse returns the newest entries first.
func (r *SlotAuditRepository) ListByCourse(ctx context.Context, courseID string, limit int) ([]models.SlotAuditLog, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	const query = `SELECT id, course_id, action, actor_id, version, before_json, after_json, created_at FROM slot_audit_logs WHERE course_id = $1 ORDER BY created_at DESC LIMIT $2`
	entries := make([]models.SlotAuditLog, 0)
	if err := r.db.SelectContext(ctx, &entries, query, courseID, limit); err != nil {
		return nil, fmt.Errorf("list slot audit logs: %w", err)
	}
	return entries, nil
}
