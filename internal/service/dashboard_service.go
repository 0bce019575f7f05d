package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mentorlink/mentorlink-api/internal/models"
	appErrors "github.com/mentorlink/mentorlink-api/pkg/errors"
)

type dashboardAssignmentReader interface {
	ListAssignedStudents(ctx context.Context, teacherID string) ([]models.AssignedAccount, error)
	ListAssignedTeachers(ctx context.Context, studentID string) ([]models.AssignedAccount, error)
	CountForTeacher(ctx context.Context, teacherID string) (int, error)
	CountForStudent(ctx context.Context, studentID string) (int, error)
}

type dashboardAccountReader interface {
	FindByID(ctx context.Context, id string) (*models.Account, error)
}

type dashboardCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// DashboardSummary is the role-specific landing payload.
type DashboardSummary struct {
	AccountID     string                   `json:"account_id"`
	FullName      string                   `json:"full_name"`
	Role          models.Role              `json:"role"`
	AssignedCount int                      `json:"assigned_count"`
	Recent        []models.AssignedAccount `json:"recent"`
	GeneratedAt   time.Time                `json:"generated_at"`
}

// DashboardService builds cached role-specific summaries.
type DashboardService struct {
	accounts    dashboardAccountReader
	assignments dashboardAssignmentReader
	cache       dashboardCache
	ttl         time.Duration
	logger      *zap.Logger
}

// NewDashboardService creates a dashboard service.
func NewDashboardService(accounts dashboardAccountReader, assignments dashboardAssignmentReader, cache dashboardCache, ttl time.Duration, logger *zap.Logger) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{accounts: accounts, assignments: assignments, cache: cache, ttl: ttl, logger: logger}
}

const recentLimit = 5

// Summary returns the dashboard for the account, serving from cache when
// possible. The second return value reports a cache hit.
func (s *DashboardService) Summary(ctx context.Context, accountID string) (*DashboardSummary, bool, error) {
	key := dashboardCacheKey(accountID)
	if s.cache != nil {
		var cached DashboardSummary
		hit, err := s.cache.Get(ctx, key, &cached)
		if err != nil {
			s.logger.Warn("dashboard cache read failed", zap.Error(err))
		}
		if hit {
			return &cached, true, nil
		}
	}

	account, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, appErrors.Clone(appErrors.ErrNotFound, "account not found")
		}
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load account")
	}

	var (
		assigned []models.AssignedAccount
		count    int
	)
	switch account.Role {
	case models.RoleTeacher:
		if count, err = s.assignments.CountForTeacher(ctx, accountID); err == nil {
			assigned, err = s.assignments.ListAssignedStudents(ctx, accountID)
		}
	case models.RoleStudent:
		if count, err = s.assignments.CountForStudent(ctx, accountID); err == nil {
			assigned, err = s.assignments.ListAssignedTeachers(ctx, accountID)
		}
	default:
		return nil, false, appErrors.Clone(appErrors.ErrForbidden, "unknown role")
	}
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignments")
	}

	recent := assigned
	if len(recent) > recentLimit {
		recent = recent[len(recent)-recentLimit:]
	}

	summary := &DashboardSummary{
		AccountID:     account.ID,
		FullName:      account.FullName,
		Role:          account.Role,
		AssignedCount: count,
		Recent:        recent,
		GeneratedAt:   time.Now().UTC(),
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, summary, s.ttl); err != nil {
			s.logger.Warn("dashboard cache write failed", zap.Error(err))
		}
	}

	return summary, false, nil
}

func dashboardCacheKey(accountID string) string {
	return fmt.Sprintf("dashboard:%s", accountID)
}
