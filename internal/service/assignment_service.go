package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/mentorlink/mentorlink-api/internal/models"
	"github.com/mentorlink/mentorlink-api/internal/repository"
	appErrors "github.com/mentorlink/mentorlink-api/pkg/errors"
)

type assignmentRepo interface {
	ListUnassignedStudents(ctx context.Context, teacherID string) ([]models.AccountInfo, error)
	ListAssignedStudents(ctx context.Context, teacherID string) ([]models.AssignedAccount, error)
	ListAssignedTeachers(ctx context.Context, studentID string) ([]models.AssignedAccount, error)
	AssignBatch(ctx context.Context, teacherID string, studentIDs []string) (int, error)
	Unassign(ctx context.Context, teacherID, studentID string) (bool, error)
}

type accountReader interface {
	FindByID(ctx context.Context, id string) (*models.Account, error)
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type cacheInvalidator interface {
	Invalidate(ctx context.Context, pattern string) error
}

// AssignStudentsRequest carries the batch assignment payload.
type AssignStudentsRequest struct {
	StudentIDs []string `json:"student_ids" validate:"required,min=1,dive,required"`
}

// AssignStudentsResult summarises a batch outcome.
type AssignStudentsResult struct {
	Requested int `json:"requested"`
	Assigned  int `json:"assigned"`
}

// AssignmentService applies the role-checked assignment operations.
type AssignmentService struct {
	accounts    accountReader
	assignments assignmentRepo
	cache       cacheInvalidator
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewAssignmentService creates a service instance.
func NewAssignmentService(accounts accountReader, assignments assignmentRepo, cache cacheInvalidator, validate *validator.Validate, logger *zap.Logger) *AssignmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssignmentService{
		accounts:    accounts,
		assignments: assignments,
		cache:       cache,
		validator:   validate,
		logger:      logger,
	}
}

// ListUnassignedStudents returns students not yet assigned to the teacher.
func (s *AssignmentService) ListUnassignedStudents(ctx context.Context, teacherID string) ([]models.AccountInfo, error) {
	if err := s.requireRole(ctx, teacherID, models.RoleTeacher); err != nil {
		return nil, err
	}
	students, err := s.assignments.ListUnassignedStudents(ctx, teacherID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list unassigned students")
	}
	return students, nil
}

// ListAssignedStudents returns the teacher's assigned students.
func (s *AssignmentService) ListAssignedStudents(ctx context.Context, teacherID string) ([]models.AssignedAccount, error) {
	if err := s.requireRole(ctx, teacherID, models.RoleTeacher); err != nil {
		return nil, err
	}
	students, err := s.assignments.ListAssignedStudents(ctx, teacherID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assigned students")
	}
	return students, nil
}

// ListAssignedTeachers returns the student's assigned teachers.
func (s *AssignmentService) ListAssignedTeachers(ctx context.Context, studentID string) ([]models.AssignedAccount, error) {
	if err := s.requireRole(ctx, studentID, models.RoleStudent); err != nil {
		return nil, err
	}
	teachers, err := s.assignments.ListAssignedTeachers(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assigned teachers")
	}
	return teachers, nil
}

// AssignStudents links each requested student to the teacher. Already-linked
// pairs are silent no-ops. The batch is all-or-nothing: a target id that is
// not a student account rejects the whole request.
func (s *AssignmentService) AssignStudents(ctx context.Context, teacherID string, req AssignStudentsRequest, meta models.LoginRequest) (*AssignStudentsResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}
	if err := s.requireRole(ctx, teacherID, models.RoleTeacher); err != nil {
		return nil, err
	}

	assigned, err := s.assignments.AssignBatch(ctx, teacherID, req.StudentIDs)
	if err != nil {
		if errors.Is(err, repository.ErrNotAllStudents) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "target accounts must hold the student role")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to assign students")
	}

	s.invalidateDashboards(ctx, teacherID, req.StudentIDs)

	payload, _ := json.Marshal(map[string]interface{}{"student_ids": req.StudentIDs, "assigned": assigned})
	if err := s.accounts.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &teacherID,
		Action:     models.AuditActionStudentsAssign,
		Resource:   "assignments",
		ResourceID: &teacherID,
		NewValues:  payload,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	}); err != nil {
		s.logger.Warn("failed to record assignment audit log", zap.Error(err))
	}

	return &AssignStudentsResult{Requested: len(req.StudentIDs), Assigned: assigned}, nil
}

// UnassignStudent removes the assignment for the pair. A missing row is a
// no-op, not an error.
func (s *AssignmentService) UnassignStudent(ctx context.Context, teacherID, studentID string, meta models.LoginRequest) error {
	if err := s.requireRole(ctx, teacherID, models.RoleTeacher); err != nil {
		return err
	}

	removed, err := s.assignments.Unassign(ctx, teacherID, studentID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to unassign student")
	}
	if !removed {
		return nil
	}

	s.invalidateDashboards(ctx, teacherID, []string{studentID})

	payload, _ := json.Marshal(map[string]interface{}{"student_id": studentID})
	if err := s.accounts.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &teacherID,
		Action:     models.AuditActionStudentUnassign,
		Resource:   "assignments",
		ResourceID: &studentID,
		OldValues:  payload,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	}); err != nil {
		s.logger.Warn("failed to record unassignment audit log", zap.Error(err))
	}

	return nil
}

func (s *AssignmentService) requireRole(ctx context.Context, accountID string, want models.Role) error {
	account, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "account not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load account")
	}
	if account.Role != want {
		return appErrors.Clone(appErrors.ErrForbidden, fmt.Sprintf("operation requires the %s role", want))
	}
	return nil
}

func (s *AssignmentService) invalidateDashboards(ctx context.Context, teacherID string, studentIDs []string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, dashboardCacheKey(teacherID)); err != nil {
		s.logger.Warn("failed to invalidate teacher dashboard cache", zap.Error(err))
	}
	for _, studentID := range studentIDs {
		if err := s.cache.Invalidate(ctx, dashboardCacheKey(studentID)); err != nil {
			s.logger.Warn("failed to invalidate student dashboard cache", zap.Error(err))
		}
	}
}
