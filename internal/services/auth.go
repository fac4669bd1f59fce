package services

import (
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/google/uuid"
	"github.com/mediagen/backend/internal/models"
	"github.com/mediagen/backend/pkg/logger"
	"github.com/mediagen/backend/pkg/utils"
	"gorm.io/gorm"
)

type AuthService struct {
	DB     *gorm.DB
	Quotas *QuotaService
	ttl    time.Duration
}

func NewAuthService(db *gorm.DB, quotas *QuotaService, sessionTTL time.Duration) *AuthService {
	return &AuthService{DB: db, Quotas: quotas, ttl: sessionTTL}
}

// LoginResult is returned by Login and SetPassword. When
// RequirePasswordSetup is true no session was issued and Token is empty.
type LoginResult struct {
	Token                string
	User                 *models.User
	RequirePasswordSetup bool
}

func (s *AuthService) Login(email, password string) (*LoginResult, error) {
	var user models.User
	if err := s.DB.First(&user, "email = ?", normalizeEmail(email)).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !user.IsActive {
		return nil, ErrAccountInactive
	}

	// First login or an admin-forced reset: the caller must go through the
	// password-setup path. This is not an error and no token is issued.
	if !user.HasPassword() || user.RequirePasswordReset {
		return &LoginResult{User: &user, RequirePasswordSetup: true}, nil
	}

	if !utils.CheckPassword(password, *user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	token, err := s.createSession(&user)
	if err != nil {
		return nil, err
	}

	return &LoginResult{Token: token, User: &user}, nil
}

// SetPassword completes first-login setup or an admin-forced reset. It is
// rejected for an account that already has a usable password, so the
// change-password old-credential check cannot be bypassed.
func (s *AuthService) SetPassword(email, password string) (*LoginResult, error) {
	var user models.User
	if err := s.DB.First(&user, "email = ?", normalizeEmail(email)).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	if !user.IsActive {
		return nil, ErrAccountInactive
	}

	if user.HasPassword() && !user.RequirePasswordReset {
		return nil, ErrPasswordAlreadySet
	}

	if err := utils.ValidatePasswordStrength(password); err != nil {
		return nil, Validationf(err.Error())
	}

	hash, err := utils.HashPassword(password)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{
		"password_hash":          hash,
		"require_password_reset": false,
	}
	if err := s.DB.Model(&models.User{}).Where("id = ?", user.ID).Updates(updates).Error; err != nil {
		return nil, err
	}
	hashCopy := hash
	user.PasswordHash = &hashCopy
	user.RequirePasswordReset = false

	if err := s.Quotas.EnsureDefaults(user.ID); err != nil {
		return nil, err
	}

	token, err := s.createSession(&user)
	if err != nil {
		return nil, err
	}

	logger.InfoWithUser(user.ID.String(), "password_setup_completed", map[string]interface{}{
		"email": user.Email,
	})

	return &LoginResult{Token: token, User: &user}, nil
}

func (s *AuthService) ChangePassword(userID uuid.UUID, oldPassword, newPassword string) error {
	var user models.User
	if err := s.DB.First(&user, "id = ?", userID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return ErrUserNotFound
		}
		return err
	}

	if !user.HasPassword() || !utils.CheckPassword(oldPassword, *user.PasswordHash) {
		return ErrInvalidCredentials
	}

	if err := utils.ValidatePasswordStrength(newPassword); err != nil {
		return Validationf(err.Error())
	}

	hash, err := utils.HashPassword(newPassword)
	if err != nil {
		return err
	}

	return s.DB.Model(&models.User{}).Where("id = ?", user.ID).
		Update("password_hash", hash).Error
}

// ResolveSession returns the owning user for a live token. Expired rows are
// deleted on lookup; a valid token for a deactivated account is rejected.
// Side effect: LastActivityAt is refreshed.
func (s *AuthService) ResolveSession(token string) (*models.User, error) {
	if token == "" {
		return nil, ErrSessionInvalid
	}

	var session models.Session
	if err := s.DB.Preload("User").First(&session, "token = ?", token).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrSessionInvalid
		}
		return nil, err
	}

	now := time.Now().UTC()
	if session.Expired(now) {
		_ = s.DB.Delete(&models.Session{}, "token = ?", token).Error
		return nil, ErrSessionInvalid
	}

	if !session.User.IsActive {
		return nil, ErrSessionInvalid
	}

	if err := s.DB.Model(&models.Session{}).Where("token = ?", token).
		Update("last_activity_at", now).Error; err != nil {
		return nil, err
	}

	user := session.User
	return &user, nil
}

// Logout is idempotent: deleting an unknown token is not an error.
func (s *AuthService) Logout(token string) error {
	if token == "" {
		return nil
	}
	return s.DB.Delete(&models.Session{}, "token = ?", token).Error
}

func (s *AuthService) SweepExpired() (int64, error) {
	result := s.DB.Delete(&models.Session{}, "expires_at <= ?", time.Now().UTC())
	return result.RowsAffected, result.Error
}

func (s *AuthService) createSession(user *models.User) (string, error) {
	token, err := newSessionToken()
	if err != nil {
		return "", err
	}

	now := time.Now().UTC()
	session := models.Session{
		Token:          token,
		UserID:         user.ID,
		CreatedAt:      now,
		ExpiresAt:      now.Add(s.ttl),
		LastActivityAt: now,
	}
	if err := s.DB.Create(&session).Error; err != nil {
		return "", err
	}

	if err := s.DB.Model(&models.User{}).Where("id = ?", user.ID).
		Update("last_login_at", now).Error; err != nil {
		return "", err
	}

	return token, nil
}

func newSessionToken() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}
