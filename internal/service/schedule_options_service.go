package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/nitro-academy/turma-scheduler/internal/dto"
	"github.com/nitro-academy/turma-scheduler/internal/scheduling"
	"github.com/nitro-academy/turma-scheduler/pkg/cache"
)

type scheduleTimesSource interface {
	ListScheduleTimes(ctx context.Context, courseID string) ([]string, error)
}

// ScheduleOptionsService resolves the start times a course may offer. It never fails: when the
// source is unreachable or returns nothing, the fallback list is used.
type ScheduleOptionsService struct {
	source   scheduleTimesSource
	cache    *CacheService
	fallback []string
	ttl      time.Duration
	timeout  time.Duration
	logger   *zap.Logger
}

// NewScheduleOptionsService builds the service. source may be nil.
func NewScheduleOptionsService(source scheduleTimesSource, cacheSvc *CacheService, fallback []string, ttl, timeout time.Duration, logger *zap.Logger) *ScheduleOptionsService {
	if len(fallback) == 0 {
		fallback = scheduling.FallbackTimeLabels
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScheduleOptionsService{
		source:   source,
		cache:    cacheSvc,
		fallback: displayLabels(fallback),
		ttl:      ttl,
		timeout:  timeout,
		logger:   logger,
	}
}

// Options returns the offerable start times of a course in UI form.
func (s *ScheduleOptionsService) Options(ctx context.Context, courseID string) *dto.ScheduleOptions {
	key := cache.Key("schedule-options", courseID)

	var cached []string
	if s.cache.Get(ctx, key, &cached) && len(cached) > 0 {
		return &dto.ScheduleOptions{CourseID: courseID, TimeLabels: cached, Source: dto.ScheduleOptionsSourceCache}
	}

	if s.source != nil {
		callCtx, cancel := context.WithTimeout(ctx, s.timeout)
		labels, err := s.source.ListScheduleTimes(callCtx, courseID)
		cancel()
		switch {
		case err != nil:
			s.logger.Warn("schedule options unavailable, using fallback", zap.String("course_id", courseID), zap.Error(err))
		case len(labels) == 0:
			s.logger.Info("course has no schedule options, using fallback", zap.String("course_id", courseID))
		default:
			labels = displayLabels(labels)
			s.cache.Set(ctx, key, labels, s.ttl)
			return &dto.ScheduleOptions{CourseID: courseID, TimeLabels: labels, Source: dto.ScheduleOptionsSourceStore}
		}
	}

	return &dto.ScheduleOptions{
		CourseID:   courseID,
		TimeLabels: append([]string(nil), s.fallback...),
		Source:     dto.ScheduleOptionsSourceFallback,
	}
}

// Refresh drops the cached options of a course and resolves them again.
func (s *ScheduleOptionsService) Refresh(ctx context.Context, courseID string) *dto.ScheduleOptions {
	s.cache.Invalidate(ctx, cache.Key("schedule-options", courseID))
	return s.Options(ctx, courseID)
}

func displayLabels(labels []string) []string {
	out := make([]string, 0, len(labels))
	for _, label := range labels {
		out = append(out, scheduling.DisplayTimeLabel(label))
	}
	return out
}
