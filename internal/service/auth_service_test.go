package service_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/HugPhiluu/PhilCard/internal/repository"
	"github.com/HugPhiluu/PhilCard/internal/repository/testutil"
	"github.com/HugPhiluu/PhilCard/internal/service"
)

func newAuthService(t *testing.T) (service.AuthService, repository.SettingsRepository) {
	t.Helper()
	repo := repository.NewSettingsRepository(testutil.NewTestDB(t))
	return service.NewAuthService(repo, time.Hour), repo
}

func TestAuthService_SetupAndLogin(t *testing.T) {
	svc, repo := newAuthService(t)
	ctx := context.Background()

	configured, err := svc.IsConfigured(ctx)
	require.NoError(t, err)
	require.False(t, configured)

	_, err = svc.Login(ctx, "secret123")
	require.ErrorIs(t, err, service.ErrNotConfigured)

	session, err := svc.Setup(ctx, "secret123")
	require.NoError(t, err)
	require.NotEmpty(t, session.Token)
	require.WithinDuration(t, time.Now().Add(time.Hour), session.ExpiresAt, 5*time.Second)

	configured, err = svc.IsConfigured(ctx)
	require.NoError(t, err)
	require.True(t, configured)

	// the password is stored hashed
	stored, err := repo.Get(ctx, "admin.password_hash")
	require.NoError(t, err)
	require.NotEqual(t, "secret123", stored.Value)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.Value), []byte("secret123")))

	_, err = svc.Setup(ctx, "another1")
	require.ErrorIs(t, err, service.ErrAlreadyConfigured)

	_, err = svc.Login(ctx, "wrong-password")
	require.ErrorIs(t, err, service.ErrInvalidPassword)

	login, err := svc.Login(ctx, "secret123")
	require.NoError(t, err)

	expiresAt, err := svc.ValidateToken(ctx, login.Token)
	require.NoError(t, err)
	require.True(t, expiresAt.Equal(login.ExpiresAt))
}

func TestAuthService_PasswordRules(t *testing.T) {
	svc, _ := newAuthService(t)
	ctx := context.Background()

	_, err := svc.Setup(ctx, "")
	require.ErrorIs(t, err, service.ErrPasswordRequired)

	_, err = svc.Setup(ctx, "12345")
	require.ErrorIs(t, err, service.ErrPasswordTooShort)

	_, err = svc.Login(ctx, "")
	require.ErrorIs(t, err, service.ErrPasswordRequired)
}

func TestAuthService_ValidateToken_Rejects(t *testing.T) {
	svc, _ := newAuthService(t)
	ctx := context.Background()

	_, err := svc.ValidateToken(ctx, "anything")
	require.ErrorIs(t, err, service.ErrInvalidToken)

	session, err := svc.Setup(ctx, "secret123")
	require.NoError(t, err)

	_, err = svc.ValidateToken(ctx, "not-a-jwt")
	require.ErrorIs(t, err, service.ErrInvalidToken)

	_, err = svc.ValidateToken(ctx, session.Token+"x")
	require.ErrorIs(t, err, service.ErrInvalidToken)

	service.SetAuthClockForTest(svc, func() time.Time { return time.Now().Add(2 * time.Hour) })
	_, err = svc.ValidateToken(ctx, session.Token)
	require.ErrorIs(t, err, service.ErrInvalidToken)
}

func TestAuthService_ChangePasswordRotatesSecret(t *testing.T) {
	svc, _ := newAuthService(t)
	ctx := context.Background()

	old, err := svc.Setup(ctx, "secret123")
	require.NoError(t, err)

	_, err = svc.ChangePassword(ctx, "wrong-one", "newsecret")
	require.ErrorIs(t, err, service.ErrInvalidPassword)

	_, err = svc.ChangePassword(ctx, "secret123", "short")
	require.ErrorIs(t, err, service.ErrPasswordTooShort)

	fresh, err := svc.ChangePassword(ctx, "secret123", "newsecret")
	require.NoError(t, err)

	_, err = svc.ValidateToken(ctx, old.Token)
	require.ErrorIs(t, err, service.ErrInvalidToken)
	_, err = svc.ValidateToken(ctx, fresh.Token)
	require.NoError(t, err)

	_, err = svc.Login(ctx, "secret123")
	require.ErrorIs(t, err, service.ErrInvalidPassword)
	_, err = svc.Login(ctx, "newsecret")
	require.NoError(t, err)
}

func TestAuthService_Bootstrap(t *testing.T) {
	svc, _ := newAuthService(t)
	ctx := context.Background()

	applied, err := svc.Bootstrap(ctx, "")
	require.NoError(t, err)
	require.False(t, applied)

	applied, err = svc.Bootstrap(ctx, "bootpass")
	require.NoError(t, err)
	require.True(t, applied)

	// an existing password is never overwritten
	applied, err = svc.Bootstrap(ctx, "otherpass")
	require.NoError(t, err)
	require.False(t, applied)

	_, err = svc.Login(ctx, "bootpass")
	require.NoError(t, err)
}

func TestAuthService_RejectsPasswordsOverBcryptLimit(t *testing.T) {
	svc, _ := newAuthService(t)
	ctx := context.Background()
	long := strings.Repeat("p", 80)

	_, err := svc.Bootstrap(ctx, long)
	require.ErrorIs(t, err, service.ErrPasswordTooLong)

	_, err = svc.Setup(ctx, long)
	require.ErrorIs(t, err, service.ErrPasswordTooLong)

	// exactly 72 bytes is still accepted
	_, err = svc.Setup(ctx, strings.Repeat("p", 72))
	require.NoError(t, err)

	_, err = svc.ChangePassword(ctx, strings.Repeat("p", 72), long)
	require.ErrorIs(t, err, service.ErrPasswordTooLong)
}

func TestAuthService_ImportHash(t *testing.T) {
	svc, _ := newAuthService(t)
	ctx := context.Background()

	imported, err := svc.ImportHash(ctx, "plaintext-password")
	require.NoError(t, err)
	require.False(t, imported)

	hash, err := bcrypt.GenerateFromPassword([]byte("legacy-pass"), bcrypt.MinCost)
	require.NoError(t, err)

	imported, err = svc.ImportHash(ctx, string(hash))
	require.NoError(t, err)
	require.True(t, imported)

	_, err = svc.Login(ctx, "legacy-pass")
	require.NoError(t, err)

	imported, err = svc.ImportHash(ctx, string(hash))
	require.NoError(t, err)
	require.False(t, imported)
}

func TestLoginLimiter(t *testing.T) {
	limiter := service.NewLoginLimiter(2)

	require.True(t, limiter.Allow("1.2.3.4"))
	require.True(t, limiter.Allow("1.2.3.4"))
	require.False(t, limiter.Allow("1.2.3.4"))
	require.True(t, limiter.Allow("5.6.7.8"))

	limiter.Reset("1.2.3.4")
	require.True(t, limiter.Allow("1.2.3.4"))

	unlimited := service.NewLoginLimiter(0)
	for i := 0; i < 100; i++ {
		require.True(t, unlimited.Allow("x"))
	}
}
