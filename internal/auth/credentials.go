package auth

import (
	"context"
	"errors"
	"log/slog"

	"deepvision-backend/internal/database"
	"deepvision-backend/internal/messaging"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrUserExists         = errors.New("username already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidResetToken  = errors.New("invalid reset token")
)

// CredentialStore persists user identities and password hashes. Plaintext
// passwords never leave this package.
type CredentialStore struct {
	db        *gorm.DB
	publisher messaging.Publisher
}

func NewCredentialStore(db *gorm.DB, publisher messaging.Publisher) *CredentialStore {
	return &CredentialStore{db: db, publisher: publisher}
}

func (s *CredentialStore) Register(ctx context.Context, username, password string) (database.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return database.User{}, err
	}

	user := database.User{Username: username, PasswordHash: string(hash)}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		var existing database.User
		if s.db.WithContext(ctx).First(&existing, "username = ?", username).Error == nil {
			return database.User{}, ErrUserExists
		}
		return database.User{}, err
	}
	return user, nil
}

func (s *CredentialStore) Authenticate(ctx context.Context, username, password string) (database.User, error) {
	var user database.User
	if err := s.db.WithContext(ctx).First(&user, "username = ?", username).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return database.User{}, ErrInvalidCredentials
		}
		return database.User{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return database.User{}, ErrInvalidCredentials
	}
	return user, nil
}

func (s *CredentialStore) GetUser(ctx context.Context, userId int64) (database.User, error) {
	var user database.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", userId).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return database.User{}, ErrUserNotFound
		}
		return database.User{}, err
	}
	return user, nil
}

// RequestReset stores an opaque reset token for the user and hands it to the
// delivery queue. The token is also returned so callers that deliver it
// themselves (dev setups, tests) can use it directly.
func (s *CredentialStore) RequestReset(ctx context.Context, username string) (string, error) {
	var user database.User
	if err := s.db.WithContext(ctx).First(&user, "username = ?", username).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrUserNotFound
		}
		return "", err
	}

	token := uuid.NewString()
	if err := s.db.WithContext(ctx).Create(&database.PasswordReset{Username: username, Token: token}).Error; err != nil {
		return "", err
	}

	if s.publisher != nil {
		payload := messaging.ResetTokenPayload{Username: username, Token: token}
		if err := s.publisher.PublishResetToken(ctx, payload); err != nil {
			// Delivery is best effort; the caller still gets the token.
			slog.Error("error publishing reset token event", "username", username, "error", err)
		}
	}

	return token, nil
}

func (s *CredentialStore) CompleteReset(ctx context.Context, username, token, newPassword string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(txn *gorm.DB) error {
		var reset database.PasswordReset
		if err := txn.First(&reset, "username = ? AND token = ?", username, token).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrInvalidResetToken
			}
			return err
		}

		if err := txn.Model(&database.User{}).Where("username = ?", username).
			Update("password_hash", string(hash)).Error; err != nil {
			return err
		}

		return txn.Delete(&database.PasswordReset{}, "username = ?", username).Error
	})
}

// EnsureDefaultUser creates the bootstrap account if it does not exist yet.
// Safe to call on every startup.
func (s *CredentialStore) EnsureDefaultUser(ctx context.Context, username, password string) error {
	var existing database.User
	err := s.db.WithContext(ctx).First(&existing, "username = ?", username).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	if _, err := s.Register(ctx, username, password); err != nil && !errors.Is(err, ErrUserExists) {
		return err
	}
	slog.Info("bootstrap user created", "username", username)
	return nil
}
