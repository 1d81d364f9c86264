package service

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/nitro-academy/turma-scheduler/internal/dto"
	"github.com/nitro-academy/turma-scheduler/internal/models"
	"github.com/nitro-academy/turma-scheduler/internal/scheduling"
	appErrors "github.com/nitro-academy/turma-scheduler/pkg/errors"
	"github.com/nitro-academy/turma-scheduler/pkg/lock"
	"github.com/nitro-academy/turma-scheduler/pkg/logger"
)

// Slot operations, used for metrics and logs.
const (
	opList      = "list"
	opAdd       = "add"
	opReorder   = "reorder"
	opDelete    = "delete"
	opAdmission = "admission"
)

// SlotStore owns the ordered slot list of each course and the enrollment tally derived from it.
type SlotStore interface {
	ListSlots(ctx context.Context, courseID string) (*models.CourseSchedule, error)
	CountEnrollmentsPerSlot(ctx context.Context, courseID string) (map[int]int, error)
	// Persist replaces the slot list if the course is still at expectedVersion and returns the
	// new version, or models.ErrVersionConflict.
	Persist(ctx context.Context, courseID string, expectedVersion int64, slots []models.CourseSlot) (int64, error)
}

type timeOptionsProvider interface {
	Options(ctx context.Context, courseID string) *dto.ScheduleOptions
}

type slotAuditRecorder interface {
	Record(ctx context.Context, entry models.SlotAuditLog)
}

// CourseSlotConfig tunes CourseSlotService.
type CourseSlotConfig struct {
	MaxCapacity          int
	NearlyFullRatio      float64
	StoreTimeout         time.Duration
	PromotionalBadgeText string
}

// CourseSlotService lists and mutates the class slots of a course. Mutations on one course are
// serialized by the locker and guarded by the store version, so they are linearizable per course.
type CourseSlotService struct {
	store     SlotStore
	options   timeOptionsProvider
	locker    lock.Locker
	audit     slotAuditRecorder
	metrics   *MetricsService
	validator *validator.Validate
	rules     scheduling.Validator
	projector scheduling.Projector
	timeout   time.Duration
	promoText string
	now       func() time.Time
	logger    *zap.Logger
}

// NewCourseSlotService wires the slot service. audit and metrics may be nil.
func NewCourseSlotService(store SlotStore, options timeOptionsProvider, locker lock.Locker, audit slotAuditRecorder, metrics *MetricsService, cfg CourseSlotConfig, validate *validator.Validate, logger *zap.Logger) *CourseSlotService {
	if locker == nil {
		locker = lock.NewKeyedMutex()
	}
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = 5 * time.Second
	}
	return &CourseSlotService{
		store:     store,
		options:   options,
		locker:    locker,
		audit:     audit,
		metrics:   metrics,
		validator: validate,
		rules:     scheduling.NewValidator(scheduling.SessionDurationMinutes),
		projector: scheduling.NewProjector(cfg.MaxCapacity, cfg.NearlyFullRatio),
		timeout:   cfg.StoreTimeout,
		promoText: cfg.PromotionalBadgeText,
		now:       time.Now,
		logger:    logger,
	}
}

// List returns the course slots annotated with their capacity state.
func (s *CourseSlotService) List(ctx context.Context, courseID string) (*dto.CourseSlotList, error) {
	schedule, err := s.listSlots(ctx, courseID)
	if err != nil {
		return nil, s.translate(opList, err)
	}
	counts, err := s.countEnrollments(ctx, courseID)
	if err != nil {
		return nil, s.translate(opList, err)
	}
	return s.project(schedule, counts), nil
}

// Add appends a slot after checking the offered times, duplicates and same-day overlaps.
func (s *CourseSlotService) Add(ctx context.Context, courseID string, req dto.AddSlotRequest) (result *dto.CourseSlotList, err error) {
	defer func() { s.recordOutcome(opAdd, err) }()

	if err := s.validateRequest(req); err != nil {
		return nil, err
	}
	day, err := scheduling.ParseWeekday(req.DayOfWeek)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid day_of_week")
	}
	if _, err := scheduling.ToMinutes(req.StartTime); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "start_time must be HH:MM")
	}
	if req.StartDate != nil && req.EndDate != nil && *req.EndDate < *req.StartDate {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end_date must not be before start_date")
	}

	candidate := models.CourseSlot{
		ID:        uuid.NewString(),
		DayOfWeek: day,
		StartTime: scheduling.InternalTimeLabel(req.StartTime),
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		JoinLink:  req.JoinLink,
	}

	offered := scheduling.FallbackTimeLabels
	if s.options != nil {
		if opts := s.options.Options(ctx, courseID); opts != nil {
			offered = opts.TimeLabels
		}
	}
	if err := s.rules.CheckKnownTime(candidate.StartTime, offered); err != nil {
		return nil, s.translate(opAdd, err)
	}

	release, err := s.lockCourse(ctx, courseID)
	if err != nil {
		return nil, s.translate(opAdd, err)
	}
	defer release()

	schedule, err := s.listSlots(ctx, courseID)
	if err != nil {
		return nil, s.translate(opAdd, err)
	}
	if err := checkIfMatch(req.IfMatch, schedule.Version); err != nil {
		return nil, err
	}
	if err := s.rules.CheckNoDuplicate(schedule.Slots, candidate); err != nil {
		return nil, s.translate(opAdd, err)
	}
	if err := s.rules.CheckNoOverlap(schedule.Slots, candidate); err != nil {
		return nil, s.translate(opAdd, err)
	}

	next := make([]models.CourseSlot, 0, len(schedule.Slots)+1)
	next = append(next, schedule.Slots...)
	next = append(next, candidate)

	return s.commit(ctx, opAdd, models.SlotAuditAdded, req.ActorID, schedule, next)
}

// Reorder moves slots so that position i holds the slot currently at Order[i]. Slots with
// enrolled students must keep their position.
func (s *CourseSlotService) Reorder(ctx context.Context, courseID string, req dto.ReorderSlotsRequest) (result *dto.CourseSlotList, err error) {
	defer func() { s.recordOutcome(opReorder, err) }()

	if err := s.validateRequest(req); err != nil {
		return nil, err
	}

	release, err := s.lockCourse(ctx, courseID)
	if err != nil {
		return nil, s.translate(opReorder, err)
	}
	defer release()

	schedule, err := s.listSlots(ctx, courseID)
	if err != nil {
		return nil, s.translate(opReorder, err)
	}
	if err := checkIfMatch(req.IfMatch, schedule.Version); err != nil {
		return nil, err
	}
	if err := s.rules.CheckValidPermutation(req.Order, len(schedule.Slots)); err != nil {
		return nil, s.translate(opReorder, err)
	}

	affected := scheduling.AffectedByReorder(req.Order)
	counts, err := s.countEnrollments(ctx, courseID)
	if err != nil {
		return nil, s.translate(opReorder, err)
	}
	if len(affected) == 0 {
		return s.project(schedule, counts), nil
	}
	if err := s.rules.CheckNoEnrolledStudentsAffected(schedule.Slots, counts, affected); err != nil {
		return nil, s.translate(opReorder, err)
	}

	return s.commit(ctx, opReorder, models.SlotAuditReordered, req.ActorID, schedule, scheduling.ApplyOrder(schedule.Slots, req.Order))
}

// Delete removes the slot at a zero-based index. Later slots shift down one position, so their
// display numbers change.
func (s *CourseSlotService) Delete(ctx context.Context, courseID string, req dto.DeleteSlotRequest) (result *dto.CourseSlotList, err error) {
	defer func() { s.recordOutcome(opDelete, err) }()

	if req.Index == nil || *req.Index < 0 {
		return nil, appErrors.ErrMissingIndex
	}
	idx := *req.Index

	release, err := s.lockCourse(ctx, courseID)
	if err != nil {
		return nil, s.translate(opDelete, err)
	}
	defer release()

	schedule, err := s.listSlots(ctx, courseID)
	if err != nil {
		return nil, s.translate(opDelete, err)
	}
	if err := checkIfMatch(req.IfMatch, schedule.Version); err != nil {
		return nil, err
	}
	if idx >= len(schedule.Slots) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "slot "+strconv.Itoa(idx)+" does not exist")
	}

	counts, err := s.countEnrollments(ctx, courseID)
	if err != nil {
		return nil, s.translate(opDelete, err)
	}
	if err := s.rules.CheckNoEnrolledStudentsAffected(schedule.Slots, counts, []int{idx}); err != nil {
		return nil, s.translate(opDelete, err)
	}

	return s.commit(ctx, opDelete, models.SlotAuditDeleted, req.ActorID, schedule, scheduling.RemoveAt(schedule.Slots, idx))
}

// CheckAdmission reports whether a new student may be assigned to a slot. A full slot yields
// SLOT_FULL.
func (s *CourseSlotService) CheckAdmission(ctx context.Context, courseID string, displayNumber int) (*dto.AdmissionResult, error) {
	schedule, err := s.listSlots(ctx, courseID)
	if err != nil {
		return nil, s.translate(opAdmission, err)
	}
	if displayNumber < 1 || displayNumber > len(schedule.Slots) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "class "+strconv.Itoa(displayNumber)+" does not exist")
	}
	counts, err := s.countEnrollments(ctx, courseID)
	if err != nil {
		return nil, s.translate(opAdmission, err)
	}

	state := s.projector.Project(counts[displayNumber])
	if state.IsFull {
		return nil, appErrors.WithDetails(appErrors.ErrSlotFull, map[string]interface{}{
			"display_number":     displayNumber,
			"current_enrollment": state.CurrentEnrollment,
			"max_capacity":       state.MaxCapacity,
		})
	}
	return &dto.AdmissionResult{
		CourseID:      courseID,
		DisplayNumber: displayNumber,
		Capacity:      state,
		Admissible:    true,
	}, nil
}

// commit persists next, records the audit entry and returns the re-read projection.
func (s *CourseSlotService) commit(ctx context.Context, op string, action models.SlotAuditAction, actorID string, before *models.CourseSchedule, next []models.CourseSlot) (*dto.CourseSlotList, error) {
	courseID := before.CourseID
	version, err := s.persist(ctx, courseID, before.Version, next)
	if err != nil {
		return nil, s.translate(op, err)
	}

	logger.FromContext(s.logger, ctx).Info("course slots updated",
		zap.String("course_id", courseID),
		zap.String("operation", op),
		zap.Int64("version", version),
		zap.Int("slots", len(next)))
	s.recordAudit(ctx, action, actorID, courseID, version, before.Slots, next)

	schedule, err := s.listSlots(ctx, courseID)
	if err == nil {
		var counts map[int]int
		if counts, err = s.countEnrollments(ctx, courseID); err == nil {
			return s.project(schedule, counts), nil
		}
	}
	// The write is committed; tell the caller so it does not repeat it.
	appErr := appErrors.FromError(s.translate(op, err))
	return nil, appErrors.WithDetails(appErrors.Clone(appErr, "slots saved but reloading them failed"), map[string]interface{}{
		appErrors.DetailPersisted: true,
		"version":                 version,
	})
}

func (s *CourseSlotService) project(schedule *models.CourseSchedule, counts map[int]int) *dto.CourseSlotList {
	views := make([]dto.CourseSlotView, 0, len(schedule.Slots))
	states := make([]scheduling.CapacityState, 0, len(schedule.Slots))
	for i, slot := range schedule.Slots {
		state := s.projector.Project(counts[i+1])
		states = append(states, state)
		views = append(views, dto.CourseSlotView{
			DisplayNumber:     i + 1,
			Index:             i,
			SlotID:            slot.ID,
			DayOfWeek:         string(slot.DayOfWeek),
			DayKey:            scheduling.UIKey(slot.DayOfWeek),
			StartTime:         scheduling.DisplayTimeLabel(slot.StartTime),
			StartDate:         slot.StartDate,
			EndDate:           slot.EndDate,
			JoinLink:          slot.JoinLink,
			CurrentEnrollment: state.CurrentEnrollment,
			MaxCapacity:       state.MaxCapacity,
			IsFull:            state.IsFull,
			Availability:      state.Availability,
		})
	}

	list := &dto.CourseSlotList{
		CourseID:    schedule.CourseID,
		Version:     schedule.Version,
		Slots:       views,
		FullyBooked: scheduling.AggregateCourseFullness(states),
	}
	if idx, ok := scheduling.AutoSelectSlot(states); ok {
		displayNumber := idx + 1
		list.AutoSelectedSlot = &displayNumber
	}

	badge := scheduling.BadgeInput{
		FullyBooked:      list.FullyBooked,
		PromotionEnabled: schedule.PromoBadgeEnabled,
		PromotionText:    schedule.PromoBadgeText,
		Now:              s.now(),
	}
	if badge.PromotionText == "" {
		badge.PromotionText = s.promoText
	}
	if schedule.StartsOn != nil {
		if start, err := scheduling.ParseCourseDate(*schedule.StartsOn); err == nil {
			badge.StartsOn = &start
		}
	}
	list.Badge = scheduling.ChooseBadge(badge)
	return list
}

func (s *CourseSlotService) listSlots(ctx context.Context, courseID string) (*models.CourseSchedule, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	start := time.Now()
	schedule, err := s.store.ListSlots(callCtx, courseID)
	s.metrics.ObserveStoreCall("list_slots", err, time.Since(start))
	if err != nil {
		return nil, err
	}
	return schedule, nil
}

func (s *CourseSlotService) countEnrollments(ctx context.Context, courseID string) (map[int]int, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	start := time.Now()
	counts, err := s.store.CountEnrollmentsPerSlot(callCtx, courseID)
	s.metrics.ObserveStoreCall("count_enrollments", err, time.Since(start))
	if err != nil {
		return nil, err
	}
	return counts, nil
}

func (s *CourseSlotService) persist(ctx context.Context, courseID string, expected int64, slots []models.CourseSlot) (int64, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	start := time.Now()
	version, err := s.store.Persist(callCtx, courseID, expected, slots)
	s.metrics.ObserveStoreCall("persist", err, time.Since(start))
	return version, err
}

func (s *CourseSlotService) lockCourse(ctx context.Context, courseID string) (func(), error) {
	lockCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	start := time.Now()
	release, err := s.locker.Acquire(lockCtx, "course:"+courseID)
	s.metrics.ObserveLockWait(time.Since(start))
	if err != nil {
		return nil, err
	}
	return func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		if err := release(releaseCtx); err != nil {
			s.logger.Warn("release course lock failed", zap.String("course_id", courseID), zap.Error(err))
		}
	}, nil
}

func (s *CourseSlotService) validateRequest(req interface{}) error {
	if err := s.validator.Struct(req); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			for _, fe := range fieldErrs {
				if fe.Tag() == "required" {
					return appErrors.Wrap(err, appErrors.ErrMissingField.Code, appErrors.ErrMissingField.Status, "missing required field "+fe.Field())
				}
			}
		}
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid slot payload")
	}
	return nil
}

func (s *CourseSlotService) recordAudit(ctx context.Context, action models.SlotAuditAction, actorID, courseID string, version int64, before, after []models.CourseSlot) {
	if s.audit == nil {
		return
	}
	beforeJSON, errBefore := json.Marshal(before)
	afterJSON, errAfter := json.Marshal(after)
	if errBefore != nil || errAfter != nil {
		s.logger.Warn("encode slot audit entry failed", zap.String("course_id", courseID))
		return
	}
	entry := models.SlotAuditLog{
		CourseID:  courseID,
		Action:    action,
		Version:   version,
		Before:    types.JSONText(beforeJSON),
		After:     types.JSONText(afterJSON),
		CreatedAt: s.now().UTC(),
	}
	if actorID != "" {
		entry.ActorID = &actorID
	}
	s.audit.Record(ctx, entry)
}

func (s *CourseSlotService) recordOutcome(op string, err error) {
	outcome := OutcomeSuccess
	if err != nil {
		switch appErrors.FromError(err).Code {
		case appErrors.ErrConflict.Code, appErrors.ErrPreconditionFailed.Code:
			outcome = OutcomeConflict
		case appErrors.ErrUpstream.Code, appErrors.ErrUpstreamTimeout.Code, appErrors.ErrInternal.Code:
			outcome = OutcomeFailed
		default:
			outcome = OutcomeRejected
		}
	}
	s.metrics.RecordSlotMutation(op, outcome)
}

var slotErrorCodes = map[error]*appErrors.Error{
	scheduling.ErrDuplicateSlot:      appErrors.ErrDuplicateSlot,
	scheduling.ErrOverlappingSlot:    appErrors.ErrOverlappingSlot,
	scheduling.ErrSlotHasStudents:    appErrors.ErrSlotHasStudents,
	scheduling.ErrInvalidPermutation: appErrors.ErrInvalidPermutation,
	scheduling.ErrUnknownTimeSlot:    appErrors.ErrUnknownTimeSlot,
}

// translate maps store and rule errors onto the caller-facing taxonomy.
func (s *CourseSlotService) translate(op string, err error) error {
	if err == nil {
		return nil
	}
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}

	var slotErr *scheduling.SlotError
	if errors.As(err, &slotErr) {
		base, ok := slotErrorCodes[slotErr.Kind]
		if !ok {
			base = appErrors.ErrValidation
		}
		out := appErrors.Clone(base, slotErr.Message)
		out.Err = err
		if len(slotErr.DisplayNumbers) > 0 {
			out = appErrors.WithDetails(out, map[string]interface{}{"display_numbers": slotErr.DisplayNumbers})
		}
		return out
	}

	switch {
	case errors.Is(err, models.ErrCourseNotFound):
		return appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "course not found")
	case errors.Is(err, models.ErrVersionConflict):
		return appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "course slots changed concurrently, reload and retry")
	case errors.Is(err, lock.ErrNotAcquired):
		return appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "another change to this course is in progress")
	case errors.Is(err, scheduling.ErrInvalidTimeFormat), errors.Is(err, scheduling.ErrUnknownWeekday):
		// Request input is parsed before the store is read, so this is a malformed stored slot.
		s.logger.Error("stored slot is malformed", zap.String("operation", op), zap.Error(err))
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "stored course slots are malformed")
	case errors.Is(err, context.DeadlineExceeded):
		s.logger.Warn("slot store timed out", zap.String("operation", op), zap.Error(err))
		return appErrors.Wrap(err, appErrors.ErrUpstreamTimeout.Code, appErrors.ErrUpstreamTimeout.Status, appErrors.ErrUpstreamTimeout.Message)
	default:
		s.logger.Error("slot store failure", zap.String("operation", op), zap.Error(err))
		return appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, appErrors.ErrUpstream.Message)
	}
}

// checkIfMatch compares an If-Match value ("7", "\"7\"", W/"7" or *) with the current version.
func checkIfMatch(ifMatch string, version int64) error {
	ifMatch = strings.TrimSpace(ifMatch)
	if ifMatch == "" || ifMatch == "*" {
		return nil
	}
	tag := strings.Trim(strings.TrimPrefix(ifMatch, "W/"), `"`)
	if tag == strconv.FormatInt(version, 10) {
		return nil
	}
	return appErrors.WithDetails(
		appErrors.Clone(appErrors.ErrPreconditionFailed, "course slots changed since they were read, reload them first"),
		map[string]interface{}{"current_version": version},
	)
}
