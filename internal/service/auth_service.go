package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/HugPhiluu/PhilCard/internal/logger"
	"github.com/HugPhiluu/PhilCard/internal/repository"
)

// Auth setting keys
const (
	keyAdminPasswordHash = "admin.password_hash"
	keyAdminJWTSecret    = "admin.jwt_secret"
)

const (
	tokenIssuer       = "philcard"
	tokenSubject      = "admin"
	minPasswordLength = 6
	// bcrypt only hashes the first 72 bytes and rejects anything longer
	maxPasswordBytes = 72
)

// Auth errors
var (
	ErrAlreadyConfigured = errors.New("admin password already configured")
	ErrNotConfigured     = errors.New("admin password not configured")
	ErrInvalidPassword   = errors.New("invalid password")
	ErrInvalidToken      = errors.New("invalid token")
	ErrPasswordRequired  = errors.New("password is required")
	ErrPasswordTooShort  = errors.New("password must be at least 6 characters")
	ErrPasswordTooLong   = errors.New("password must be at most 72 bytes")
)

// Session is a signed admin token and its expiry.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// AuthService guards the single admin account.
type AuthService interface {
	IsConfigured(ctx context.Context) (bool, error)
	// Setup stores the first password; ErrAlreadyConfigured afterwards.
	Setup(ctx context.Context, password string) (*Session, error)
	Login(ctx context.Context, password string) (*Session, error)
	// ChangePassword rotates the signing secret, so every older token dies.
	ChangePassword(ctx context.Context, currentPassword, newPassword string) (*Session, error)
	// ValidateToken returns the token expiry when it is valid.
	ValidateToken(ctx context.Context, token string) (time.Time, error)
	// Bootstrap sets password only when none is configured yet.
	Bootstrap(ctx context.Context, password string) (bool, error)
	// ImportHash adopts an existing bcrypt hash when none is configured yet.
	ImportHash(ctx context.Context, hash string) (bool, error)
}

type authService struct {
	repo repository.SettingsRepository
	ttl  time.Duration
	now  func() time.Time
}

func NewAuthService(repo repository.SettingsRepository, ttl time.Duration) AuthService {
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &authService{repo: repo, ttl: ttl, now: time.Now}
}

func (s *authService) IsConfigured(ctx context.Context) (bool, error) {
	hash, err := s.getString(ctx, keyAdminPasswordHash)
	if err != nil {
		return false, fmt.Errorf("check admin configured: %w", err)
	}
	return hash != "", nil
}

func (s *authService) Setup(ctx context.Context, password string) (*Session, error) {
	if err := validatePassword(password); err != nil {
		return nil, err
	}
	configured, err := s.IsConfigured(ctx)
	if err != nil {
		return nil, err
	}
	if configured {
		return nil, ErrAlreadyConfigured
	}

	secret, err := s.storeCredentials(ctx, password)
	if err != nil {
		return nil, err
	}
	logger.Info("admin password configured", "module", "service", "action", "setup", "resource", "auth", "result", "ok")
	return s.issue(secret)
}

func (s *authService) Login(ctx context.Context, password string) (*Session, error) {
	if password == "" {
		return nil, ErrPasswordRequired
	}
	hash, err := s.getString(ctx, keyAdminPasswordHash)
	if err != nil {
		return nil, err
	}
	if hash == "" {
		return nil, ErrNotConfigured
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return nil, ErrInvalidPassword
	}

	secret, err := s.ensureSecret(ctx)
	if err != nil {
		return nil, err
	}
	return s.issue(secret)
}

func (s *authService) ChangePassword(ctx context.Context, currentPassword, newPassword string) (*Session, error) {
	if currentPassword == "" {
		return nil, ErrPasswordRequired
	}
	if err := validatePassword(newPassword); err != nil {
		return nil, err
	}
	hash, err := s.getString(ctx, keyAdminPasswordHash)
	if err != nil {
		return nil, err
	}
	if hash == "" {
		return nil, ErrNotConfigured
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(currentPassword)); err != nil {
		return nil, ErrInvalidPassword
	}

	secret, err := s.storeCredentials(ctx, newPassword)
	if err != nil {
		return nil, err
	}
	logger.Info("admin password changed", "module", "service", "action", "update", "resource", "auth", "result", "ok")
	return s.issue(secret)
}

func (s *authService) ValidateToken(ctx context.Context, tokenString string) (time.Time, error) {
	secretHex, err := s.getString(ctx, keyAdminJWTSecret)
	if err != nil || secretHex == "" {
		return time.Time{}, ErrInvalidToken
	}
	secret, err := hex.DecodeString(secretHex)
	if err != nil {
		return time.Time{}, ErrInvalidToken
	}

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithSubject(tokenSubject),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !token.Valid {
		return time.Time{}, ErrInvalidToken
	}
	return claims.ExpiresAt.Time, nil
}

func (s *authService) Bootstrap(ctx context.Context, password string) (bool, error) {
	if password == "" {
		return false, nil
	}
	if err := validatePassword(password); err != nil {
		return false, err
	}
	configured, err := s.IsConfigured(ctx)
	if err != nil || configured {
		return false, err
	}
	if _, err := s.storeCredentials(ctx, password); err != nil {
		return false, err
	}
	logger.Info("admin password bootstrapped", "module", "service", "action", "setup", "resource", "auth", "result", "ok")
	return true, nil
}

func (s *authService) ImportHash(ctx context.Context, hash string) (bool, error) {
	hash = strings.TrimSpace(hash)
	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		return false, nil
	}
	configured, err := s.IsConfigured(ctx)
	if err != nil || configured {
		return false, err
	}
	secret, err := newSecret()
	if err != nil {
		return false, err
	}
	if err := s.repo.SetMany(ctx, map[string]string{
		keyAdminPasswordHash: hash,
		keyAdminJWTSecret:    secret,
	}); err != nil {
		return false, fmt.Errorf("save imported credentials: %w", err)
	}
	return true, nil
}

// storeCredentials hashes password and writes it together with a fresh secret.
func (s *authService) storeCredentials(ctx context.Context, password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	secret, err := newSecret()
	if err != nil {
		return "", err
	}
	if err := s.repo.SetMany(ctx, map[string]string{
		keyAdminPasswordHash: string(hash),
		keyAdminJWTSecret:    secret,
	}); err != nil {
		return "", fmt.Errorf("save credentials: %w", err)
	}
	return secret, nil
}

func (s *authService) ensureSecret(ctx context.Context) (string, error) {
	secret, err := s.getString(ctx, keyAdminJWTSecret)
	if err != nil {
		return "", err
	}
	if secret != "" {
		return secret, nil
	}
	secret, err = newSecret()
	if err != nil {
		return "", err
	}
	if err := s.repo.Set(ctx, keyAdminJWTSecret, secret); err != nil {
		return "", fmt.Errorf("save jwt secret: %w", err)
	}
	return secret, nil
}

func (s *authService) issue(secretHex string) (*Session, error) {
	secret, err := hex.DecodeString(secretHex)
	if err != nil {
		return nil, fmt.Errorf("decode jwt secret: %w", err)
	}

	now := s.now()
	expiresAt := now.Add(s.ttl).Truncate(time.Second)
	claims := jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		Subject:   tokenSubject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	return &Session{Token: token, ExpiresAt: expiresAt.UTC()}, nil
}

func (s *authService) getString(ctx context.Context, key string) (string, error) {
	setting, err := s.repo.Get(ctx, key)
	if err != nil {
		return "", err
	}
	if setting == nil {
		return "", nil
	}
	return setting.Value, nil
}

func validatePassword(password string) error {
	if password == "" {
		return ErrPasswordRequired
	}
	if len(password) < minPasswordLength {
		return ErrPasswordTooShort
	}
	if len(password) > maxPasswordBytes {
		return ErrPasswordTooLong
	}
	return nil
}

func newSecret() (string, error) {
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return "", fmt.Errorf("generate jwt secret: %w", err)
	}
	return hex.EncodeToString(secret), nil
}
