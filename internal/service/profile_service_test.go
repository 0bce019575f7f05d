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
	"golang.org/x/crypto/bcrypt"

	"github.com/mentorlink/mentorlink-api/internal/models"
	appErrors "github.com/mentorlink/mentorlink-api/pkg/errors"
)

type mockProfileRepo struct {
	account      *models.Account
	emailTaken   bool
	nameTaken    bool
	updateErr    error
	updated      bool
	revokedAll   bool
	auditLogs    []*models.AuditLog
	updatedName  string
	updatedEmail string
}

func (m *mockProfileRepo) FindByID(ctx context.Context, id string) (*models.Account, error) {
	if m.account == nil || m.account.ID != id {
		return nil, sql.ErrNoRows
	}
	return m.account, nil
}

func (m *mockProfileRepo) ExistsByEmail(ctx context.Context, email, excludeID string) (bool, error) {
	return m.emailTaken, nil
}

func (m *mockProfileRepo) ExistsByName(ctx context.Context, fullName, excludeID string) (bool, error) {
	return m.nameTaken, nil
}

func (m *mockProfileRepo) UpdateProfile(ctx context.Context, id, fullName, email, passwordHash string, updatedAt time.Time) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	m.updated = true
	m.updatedName = fullName
	m.updatedEmail = email
	return nil
}

func (m *mockProfileRepo) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	m.revokedAll = true
	return nil
}

func (m *mockProfileRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.auditLogs = append(m.auditLogs, log)
	return nil
}

type mockTokenIssuer struct {
	issued bool
}

func (m *mockTokenIssuer) IssueTokenPair(ctx context.Context, account *models.Account, ip, userAgent string) (string, string, error) {
	m.issued = true
	return "access", "refresh", nil
}

func (m *mockTokenIssuer) AccessTokenExpiry() int64 {
	return 3600
}

func profileFixture(t *testing.T) *models.Account {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("secret123"), bcrypt.DefaultCost)
	require.NoError(t, err)
	return &models.Account{
		ID:           "u1",
		Role:         models.RoleStudent,
		FullName:     "Ada Lovelace",
		Email:        "ada@example.com",
		PasswordHash: string(hash),
	}
}

func TestProfileGet(t *testing.T) {
	repo := &mockProfileRepo{account: profileFixture(t)}
	svc := NewProfileService(repo, &mockTokenIssuer{}, validator.New(), zap.NewNop())

	account, err := svc.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", account.Email)
}

func TestProfileGetNotFound(t *testing.T) {
	svc := NewProfileService(&mockProfileRepo{}, &mockTokenIssuer{}, validator.New(), zap.NewNop())

	_, err := svc.Get(context.Background(), "ghost")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Status, appErrors.FromError(err).Status)
}

func TestProfileUpdateSuccess(t *testing.T) {
	repo := &mockProfileRepo{account: profileFixture(t)}
	tokens := &mockTokenIssuer{}
	svc := NewProfileService(repo, tokens, validator.New(), zap.NewNop())

	res, err := svc.Update(context.Background(), "u1", models.UpdateProfileRequest{
		FullName:        "Ada King",
		Email:           "Ada.King@Example.com",
		CurrentPassword: "secret123",
		NewPassword:     "newsecret",
	}, models.LoginRequest{})
	require.NoError(t, err)
	assert.True(t, repo.updated)
	assert.Equal(t, "Ada King", repo.updatedName)
	assert.Equal(t, "ada.king@example.com", repo.updatedEmail)
	assert.True(t, repo.revokedAll)
	assert.True(t, tokens.issued)
	assert.Equal(t, "access", res.AccessToken)
	assert.Equal(t, "Ada King", res.User.FullName)
	require.Len(t, repo.auditLogs, 1)
	assert.Equal(t, models.AuditActionProfileUpdate, repo.auditLogs[0].Action)
}

func TestProfileUpdateWrongCurrentPassword(t *testing.T) {
	repo := &mockProfileRepo{account: profileFixture(t)}
	svc := NewProfileService(repo, &mockTokenIssuer{}, validator.New(), zap.NewNop())

	_, err := svc.Update(context.Background(), "u1", models.UpdateProfileRequest{
		FullName:        "Ada King",
		Email:           "ada@example.com",
		CurrentPassword: "wrong",
		NewPassword:     "newsecret",
	}, models.LoginRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Status, appErrors.FromError(err).Status)
	assert.False(t, repo.updated)
}

func TestProfileUpdateEmailTaken(t *testing.T) {
	repo := &mockProfileRepo{account: profileFixture(t), emailTaken: true}
	svc := NewProfileService(repo, &mockTokenIssuer{}, validator.New(), zap.NewNop())

	_, err := svc.Update(context.Background(), "u1", models.UpdateProfileRequest{
		FullName:        "Ada King",
		Email:           "taken@example.com",
		CurrentPassword: "secret123",
		NewPassword:     "newsecret",
	}, models.LoginRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Status, appErrors.FromError(err).Status)
	assert.False(t, repo.updated)
}

func TestProfileUpdateNameTaken(t *testing.T) {
	repo := &mockProfileRepo{account: profileFixture(t), nameTaken: true}
	svc := NewProfileService(repo, &mockTokenIssuer{}, validator.New(), zap.NewNop())

	_, err := svc.Update(context.Background(), "u1", models.UpdateProfileRequest{
		FullName:        "Taken Name",
		Email:           "ada@example.com",
		CurrentPassword: "secret123",
		NewPassword:     "newsecret",
	}, models.LoginRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Status, appErrors.FromError(err).Status)
}

func TestProfileUpdateValidation(t *testing.T) {
	svc := NewProfileService(&mockProfileRepo{}, &mockTokenIssuer{}, validator.New(), zap.NewNop())

	_, err := svc.Update(context.Background(), "u1", models.UpdateProfileRequest{
		FullName:        "",
		Email:           "not-an-email",
		CurrentPassword: "secret123",
		NewPassword:     "short",
	}, models.LoginRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Status, appErrors.FromError(err).Status)
}
