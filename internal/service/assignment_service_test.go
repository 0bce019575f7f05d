package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mentorlink/mentorlink-api/internal/models"
	"github.com/mentorlink/mentorlink-api/internal/repository"
	appErrors "github.com/mentorlink/mentorlink-api/pkg/errors"
)

type mockAssignmentRepo struct {
	unassigned   []models.AccountInfo
	assigned     []models.AssignedAccount
	teachers     []models.AssignedAccount
	totals       map[string]int
	batchErr     error
	batchCount   int
	batchCalled  bool
	unassignHit  bool
	unassignFlag bool
}

func (m *mockAssignmentRepo) ListUnassignedStudents(ctx context.Context, teacherID string) ([]models.AccountInfo, error) {
	return m.unassigned, nil
}

func (m *mockAssignmentRepo) ListAssignedStudents(ctx context.Context, teacherID string) ([]models.AssignedAccount, error) {
	return m.assigned, nil
}

func (m *mockAssignmentRepo) ListAssignedTeachers(ctx context.Context, studentID string) ([]models.AssignedAccount, error) {
	return m.teachers, nil
}

func (m *mockAssignmentRepo) AssignBatch(ctx context.Context, teacherID string, studentIDs []string) (int, error) {
	m.batchCalled = true
	if m.batchErr != nil {
		return 0, m.batchErr
	}
	return m.batchCount, nil
}

func (m *mockAssignmentRepo) Unassign(ctx context.Context, teacherID, studentID string) (bool, error) {
	m.unassignHit = true
	return m.unassignFlag, nil
}

func (m *mockAssignmentRepo) CountForTeacher(ctx context.Context, teacherID string) (int, error) {
	if total, ok := m.totals[teacherID]; ok {
		return total, nil
	}
	return len(m.assigned), nil
}

func (m *mockAssignmentRepo) CountForStudent(ctx context.Context, studentID string) (int, error) {
	if total, ok := m.totals[studentID]; ok {
		return total, nil
	}
	return len(m.teachers), nil
}

type mockAccountReader struct {
	accounts  map[string]*models.Account
	auditLogs []*models.AuditLog
}

func (m *mockAccountReader) FindByID(ctx context.Context, id string) (*models.Account, error) {
	account, ok := m.accounts[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return account, nil
}

func (m *mockAccountReader) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.auditLogs = append(m.auditLogs, log)
	return nil
}

type mockInvalidator struct {
	patterns []string
}

func (m *mockInvalidator) Invalidate(ctx context.Context, pattern string) error {
	m.patterns = append(m.patterns, pattern)
	return nil
}

func assignmentFixtures() *mockAccountReader {
	return &mockAccountReader{accounts: map[string]*models.Account{
		"teacher-1": {ID: "teacher-1", Role: models.RoleTeacher, FullName: "Grace Hopper"},
		"student-1": {ID: "student-1", Role: models.RoleStudent, FullName: "Ada Lovelace"},
	}}
}

func TestListUnassignedStudentsRequiresTeacher(t *testing.T) {
	accounts := assignmentFixtures()
	svc := NewAssignmentService(accounts, &mockAssignmentRepo{}, nil, validator.New(), zap.NewNop())

	_, err := svc.ListUnassignedStudents(context.Background(), "student-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Status, appErrors.FromError(err).Status)
}

func TestListUnassignedStudentsSuccess(t *testing.T) {
	accounts := assignmentFixtures()
	repo := &mockAssignmentRepo{unassigned: []models.AccountInfo{{ID: "student-1", FullName: "Ada Lovelace"}}}
	svc := NewAssignmentService(accounts, repo, nil, validator.New(), zap.NewNop())

	students, err := svc.ListUnassignedStudents(context.Background(), "teacher-1")
	require.NoError(t, err)
	require.Len(t, students, 1)
	assert.Equal(t, "student-1", students[0].ID)
}

func TestListAssignedTeachersRequiresStudent(t *testing.T) {
	accounts := assignmentFixtures()
	svc := NewAssignmentService(accounts, &mockAssignmentRepo{}, nil, validator.New(), zap.NewNop())

	_, err := svc.ListAssignedTeachers(context.Background(), "teacher-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Status, appErrors.FromError(err).Status)
}

func TestListAssignedTeachersSuccess(t *testing.T) {
	accounts := assignmentFixtures()
	repo := &mockAssignmentRepo{teachers: []models.AssignedAccount{{AccountID: "teacher-1", FullName: "Grace Hopper", AssignedAt: time.Now()}}}
	svc := NewAssignmentService(accounts, repo, nil, validator.New(), zap.NewNop())

	teachers, err := svc.ListAssignedTeachers(context.Background(), "student-1")
	require.NoError(t, err)
	require.Len(t, teachers, 1)
	assert.Equal(t, "Grace Hopper", teachers[0].FullName)
}

func TestAssignStudentsSuccess(t *testing.T) {
	accounts := assignmentFixtures()
	repo := &mockAssignmentRepo{batchCount: 2}
	cache := &mockInvalidator{}
	svc := NewAssignmentService(accounts, repo, cache, validator.New(), zap.NewNop())

	result, err := svc.AssignStudents(context.Background(), "teacher-1", AssignStudentsRequest{StudentIDs: []string{"student-1", "student-2"}}, models.LoginRequest{})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Requested)
	assert.Equal(t, 2, result.Assigned)
	assert.Contains(t, cache.patterns, "dashboard:teacher-1")
	assert.Contains(t, cache.patterns, "dashboard:student-1")
	require.Len(t, accounts.auditLogs, 1)
	assert.Equal(t, models.AuditActionStudentsAssign, accounts.auditLogs[0].Action)
}

func TestAssignStudentsEmptyPayload(t *testing.T) {
	accounts := assignmentFixtures()
	repo := &mockAssignmentRepo{}
	svc := NewAssignmentService(accounts, repo, nil, validator.New(), zap.NewNop())

	_, err := svc.AssignStudents(context.Background(), "teacher-1", AssignStudentsRequest{}, models.LoginRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Status, appErrors.FromError(err).Status)
	assert.False(t, repo.batchCalled)
}

func TestAssignStudentsRejectsNonStudentTargets(t *testing.T) {
	accounts := assignmentFixtures()
	repo := &mockAssignmentRepo{batchErr: repository.ErrNotAllStudents}
	svc := NewAssignmentService(accounts, repo, nil, validator.New(), zap.NewNop())

	_, err := svc.AssignStudents(context.Background(), "teacher-1", AssignStudentsRequest{StudentIDs: []string{"teacher-2"}}, models.LoginRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Status, appErrors.FromError(err).Status)
}

func TestAssignStudentsRequiresTeacherRole(t *testing.T) {
	accounts := assignmentFixtures()
	repo := &mockAssignmentRepo{}
	svc := NewAssignmentService(accounts, repo, nil, validator.New(), zap.NewNop())

	_, err := svc.AssignStudents(context.Background(), "student-1", AssignStudentsRequest{StudentIDs: []string{"student-2"}}, models.LoginRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Status, appErrors.FromError(err).Status)
	assert.False(t, repo.batchCalled)
}

func TestUnassignStudentRemoves(t *testing.T) {
	accounts := assignmentFixtures()
	repo := &mockAssignmentRepo{unassignFlag: true}
	cache := &mockInvalidator{}
	svc := NewAssignmentService(accounts, repo, cache, validator.New(), zap.NewNop())

	err := svc.UnassignStudent(context.Background(), "teacher-1", "student-1", models.LoginRequest{})
	require.NoError(t, err)
	assert.True(t, repo.unassignHit)
	assert.Contains(t, cache.patterns, "dashboard:student-1")
	require.Len(t, accounts.auditLogs, 1)
	assert.Equal(t, models.AuditActionStudentUnassign, accounts.auditLogs[0].Action)
}

func TestUnassignStudentMissingPairIsNoop(t *testing.T) {
	accounts := assignmentFixtures()
	repo := &mockAssignmentRepo{unassignFlag: false}
	cache := &mockInvalidator{}
	svc := NewAssignmentService(accounts, repo, cache, validator.New(), zap.NewNop())

	err := svc.UnassignStudent(context.Background(), "teacher-1", "ghost", models.LoginRequest{})
	require.NoError(t, err)
	assert.Empty(t, cache.patterns)
	assert.Empty(t, accounts.auditLogs)
}

func TestUnknownAccountIsNotFound(t *testing.T) {
	svc := NewAssignmentService(&mockAccountReader{}, &mockAssignmentRepo{}, nil, validator.New(), zap.NewNop())

	_, err := svc.ListAssignedStudents(context.Background(), "ghost")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Status, appErrors.FromError(err).Status)
}
