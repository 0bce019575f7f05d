package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/mentorlink/mentorlink-api/internal/models"
	appErrors "github.com/mentorlink/mentorlink-api/pkg/errors"
)

type profileAccountRepository interface {
	FindByID(ctx context.Context, id string) (*models.Account, error)
	ExistsByEmail(ctx context.Context, email, excludeID string) (bool, error)
	ExistsByName(ctx context.Context, fullName, excludeID string) (bool, error)
	UpdateProfile(ctx context.Context, id, fullName, email, passwordHash string, updatedAt time.Time) error
	RevokeUserRefreshTokens(ctx context.Context, userID string) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type tokenIssuer interface {
	IssueTokenPair(ctx context.Context, account *models.Account, ip, userAgent string) (string, string, error)
	AccessTokenExpiry() int64
}

// ProfileService handles profile reads and the guarded profile overwrite.
type ProfileService struct {
	repo      profileAccountRepository
	tokens    tokenIssuer
	validator *validator.Validate
	logger    *zap.Logger
}

// NewProfileService creates an instance of ProfileService.
func NewProfileService(repo profileAccountRepository, tokens tokenIssuer, validate *validator.Validate, logger *zap.Logger) *ProfileService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ProfileService{repo: repo, tokens: tokens, validator: validate, logger: logger}
}

// Get returns the account behind the session.
func (s *ProfileService) Get(ctx context.Context, accountID string) (*models.Account, error) {
	account, err := s.repo.FindByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "account not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load account")
	}
	return account, nil
}

// Update overwrites name, email and password hash after verifying the current
// password. Email and name uniqueness are re-validated against other accounts
// before the single UPDATE. Outstanding refresh tokens are revoked and a new
// token pair is returned carrying the updated display name.
func (s *ProfileService) Update(ctx context.Context, accountID string, req models.UpdateProfileRequest, meta models.LoginRequest) (*models.UpdateProfileResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid profile payload")
	}

	account, err := s.repo.FindByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "account not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load account")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(req.CurrentPassword)); err != nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "current password does not match")
	}

	email := strings.ToLower(req.Email)
	if taken, err := s.repo.ExistsByEmail(ctx, email, accountID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email uniqueness")
	} else if taken {
		return nil, appErrors.Clone(appErrors.ErrConflict, "email already in use by another account")
	}
	if taken, err := s.repo.ExistsByName(ctx, req.FullName, accountID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check name uniqueness")
	} else if taken {
		return nil, appErrors.Clone(appErrors.ErrConflict, "name already in use by another account")
	}

	newHash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	oldPayload, _ := json.Marshal(map[string]interface{}{"full_name": account.FullName, "email": account.Email})

	if err := s.repo.UpdateProfile(ctx, accountID, req.FullName, email, string(newHash), time.Now().UTC()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "account not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update profile")
	}

	if err := s.repo.RevokeUserRefreshTokens(ctx, accountID); err != nil {
		s.logger.Warn("failed to revoke refresh tokens after profile update", zap.Error(err))
	}

	account.FullName = req.FullName
	account.Email = email
	account.PasswordHash = string(newHash)

	accessToken, refreshToken, err := s.tokens.IssueTokenPair(ctx, account, meta.IP, meta.UserAgent)
	if err != nil {
		return nil, err
	}

	newPayload, _ := json.Marshal(map[string]interface{}{"full_name": account.FullName, "email": account.Email})
	if err := s.repo.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &accountID,
		Action:     models.AuditActionProfileUpdate,
		Resource:   "accounts",
		ResourceID: &accountID,
		OldValues:  oldPayload,
		NewValues:  newPayload,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	}); err != nil {
		s.logger.Warn("failed to record profile update audit log", zap.Error(err))
	}

	return &models.UpdateProfileResponse{
		User: models.AccountView{
			ID:       account.ID,
			Email:    account.Email,
			FullName: account.FullName,
			Role:     account.Role,
		},
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    s.tokens.AccessTokenExpiry(),
	}, nil
}
