package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/nitro-academy/turma-scheduler/internal/models"
	appErrors "github.com/nitro-academy/turma-scheduler/pkg/errors"
	"github.com/nitro-academy/turma-scheduler/pkg/jobs"
)

const auditJobType = "slot_audit"

type slotAuditRepository interface {
	Create(ctx context.Context, entry *models.SlotAuditLog) error
	ListByCourse(ctx context.Context, courseID string, limit int) ([]models.SlotAuditLog, error)
}

// SlotAuditService writes the slot mutation trail asynchronously through a job queue so a slow
// audit table never delays a mutation.
type SlotAuditService struct {
	repo   slotAuditRepository
	queue  *jobs.Queue
	logger *zap.Logger
}

// NewSlotAuditService builds the service and its worker queue. Call Start before Record.
func NewSlotAuditService(repo slotAuditRepository, cfg jobs.QueueConfig, logger *zap.Logger) *SlotAuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &SlotAuditService{repo: repo, logger: logger}
	cfg.Logger = logger
	cfg.OnExhausted = func(job jobs.Job, err error) {
		if entry, ok := job.Payload.(models.SlotAuditLog); ok {
			logger.Error("slot audit entry lost",
				zap.String("course_id", entry.CourseID),
				zap.String("action", string(entry.Action)),
				zap.Int64("version", entry.Version),
				zap.Error(err))
		}
	}
	svc.queue = jobs.NewQueue("slot-audit", svc.handle, cfg)
	return svc
}

// Start launches the audit workers.
func (s *SlotAuditService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop waits for the workers to exit.
func (s *SlotAuditService) Stop() {
	s.queue.Stop()
}

// Record enqueues an entry. Failures are logged, never returned.
func (s *SlotAuditService) Record(ctx context.Context, entry models.SlotAuditLog) {
	if s == nil {
		return
	}
	if err := s.queue.Enqueue(jobs.Job{Type: auditJobType, Payload: entry}); err != nil {
		s.logger.Warn("slot audit enqueue failed",
			zap.String("course_id", entry.CourseID),
			zap.String("action", string(entry.Action)),
			zap.Error(err))
	}
}

// History returns the newest audit entries of a course.
func (s *SlotAuditService) History(ctx context.Context, courseID string, limit int) ([]models.SlotAuditLog, error) {
	entries, err := s.repo.ListByCourse(ctx, courseID, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load slot history")
	}
	return entries, nil
}

// Stats exposes the audit queue counters.
func (s *SlotAuditService) Stats() jobs.Stats {
	return s.queue.Stats()
}

func (s *SlotAuditService) handle(ctx context.Context, job jobs.Job) error {
	entry, ok := job.Payload.(models.SlotAuditLog)
	if !ok {
		return fmt.Errorf("unexpected audit payload %T", job.Payload)
	}
	return s.repo.Create(ctx, &entry)
}
