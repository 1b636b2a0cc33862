package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/JojayD/codecanvas-sub000/internal/domain"
	"github.com/JojayD/codecanvas-sub000/internal/repository"
)

// AuthService owns account registration, login (including streak
// accounting) and guest identities.
type AuthService struct {
	userRepo  repository.UserRepository
	jwtSecret []byte
	jwtExpiry time.Duration
}

// NewAuthService creates the service. jwtSecretKey must come from
// configuration; jwtExpiryHours defaults to 24 when non-positive.
func NewAuthService(userRepo repository.UserRepository, jwtSecretKey string, jwtExpiryHours int) (*AuthService, error) {
	if userRepo == nil {
		panic("UserRepository cannot be nil for AuthService")
	}
	if jwtSecretKey == "" {
		return nil, fmt.Errorf("JWT secret key cannot be empty")
	}
	if jwtExpiryHours <= 0 {
		jwtExpiryHours = 24
	}
	return &AuthService{
		userRepo:  userRepo,
		jwtSecret: []byte(jwtSecretKey),
		jwtExpiry: time.Duration(jwtExpiryHours) * time.Hour,
	}, nil
}

// ActorID is the identity string a registered account uses inside rooms
// (creator id, participant tokens).
func ActorID(userID uint) string {
	return fmt.Sprintf("user-%d", userID)
}

// Register creates an account.
func (s *AuthService) Register(ctx context.Context, username, password, email string) (*domain.User, error) {
	logCtx := logrus.WithFields(logrus.Fields{"username": username, "email": email})

	if username == "" || password == "" {
		return nil, ErrInvalidInput
	}
	hashed, err := hashPassword(password)
	if err != nil {
		logCtx.WithError(err).Error("Failed to hash password during registration")
		return nil, ErrInternalServer
	}

	user := &domain.User{Username: username, Password: hashed, Email: email}
	if err := s.userRepo.Save(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEntry) {
			logCtx.WithError(err).Warn("Registration failed: username or email already exists")
			return nil, ErrRegistrationFailed
		}
		logCtx.WithError(err).Error("Database error during user creation")
		return nil, ErrInternalServer
	}

	logCtx.WithField("user_id", user.ID).Info("User registered successfully")
	user.Password = ""
	return user, nil
}

// Login authenticates an account, advances its streak counters and
// returns a signed token. A failed streak save is logged but never fails
// the login itself.
func (s *AuthService) Login(ctx context.Context, username, password string) (string, *domain.User, error) {
	logCtx := logrus.WithField("username", username)

	user, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			logCtx.WithError(err).Warn("Login attempt failed: user not found")
		} else {
			logCtx.WithError(err).Warn("Login attempt failed: error finding user")
		}
		return "", nil, ErrAuthenticationFailed
	}
	if user == nil {
		logCtx.Warn("Login attempt failed: repo returned nil user without error")
		return "", nil, ErrAuthenticationFailed
	}
	if !checkPassword(password, user.Password) {
		logCtx.Warn("Login attempt failed: invalid password")
		return "", nil, ErrAuthenticationFailed
	}

	streak := domain.CalculateStreak(user.LastLoginAt, user.CurrentStreak, user.LongestStreak)
	now := time.Now()
	user.CurrentStreak = streak.Current
	user.LongestStreak = streak.Longest
	user.LastLoginAt = &now
	if err := s.userRepo.Save(ctx, user); err != nil {
		logCtx.WithError(err).Warn("Failed to persist streak update on login")
	}

	token, err := s.generateJWT(ActorID(user.ID), user.ID)
	if err != nil {
		logCtx.WithError(err).Error("Failed to generate JWT token during login")
		return "", nil, ErrInternalServer
	}

	logCtx.WithFields(logrus.Fields{"user_id": user.ID, "streak": streak.Current}).Info("User logged in successfully")
	user.Password = ""
	return token, user, nil
}

// GuestIdentity mints an anonymous identity with a signed token. Guests
// have no account row; the id lives only in tokens and participant
// lists.
func (s *AuthService) GuestIdentity(ctx context.Context) (string, string, error) {
	guestID := "guest-" + uuid.NewString()[:8]
	token, err := s.generateJWT(guestID, 0)
	if err != nil {
		logrus.WithError(err).Error("Failed to generate guest token")
		return "", "", ErrInternalServer
	}
	logrus.WithField("actor_id", guestID).Debug("Guest identity issued")
	return guestID, token, nil
}

// Me loads the account behind a session.
func (s *AuthService) Me(ctx context.Context, userID uint) (*domain.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		logrus.WithField("user_id", userID).WithError(err).Error("Failed to load account")
		return nil, ErrInternalServer
	}
	user.Password = ""
	return user, nil
}

func hashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("generate hash from password: %w", err)
	}
	return string(bytes), nil
}

func checkPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// generateJWT signs a token carrying the room-facing actor id and, for
// registered accounts, the numeric user id.
func (s *AuthService) generateJWT(actorID string, userID uint) (string, error) {
	claims := jwt.MapClaims{
		"uid": actorID,
		"exp": time.Now().Add(s.jwtExpiry).Unix(),
		"iat": time.Now().Unix(),
	}
	if userID != 0 {
		claims["user_id"] = userID
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return tokenString, nil
}
