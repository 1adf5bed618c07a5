package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yungbote/studyhub-backend/internal/data/repos"
	"github.com/yungbote/studyhub-backend/internal/platform/apierr"
)

// Access tokens are verified against the wall clock, so the service clock starts now.
func newAuthForTest(t *testing.T, f *fixture) (AuthService, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Now().UTC()}
	svc := NewAuthService(f.db, f.log, f.users, repos.NewUserTokenRepo(f.db, f.log), nil, "test-secret", time.Hour, 24*time.Hour)
	svc.(*authService).now = clock.Now
	return svc, clock
}

func errCode(err error) string {
	var ae *apierr.Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}

func TestRegisterValidation(t *testing.T) {
	f := newFixture(t)
	auth, _ := newAuthForTest(t, f)
	ctx := context.Background()

	_, err := auth.RegisterUser(ctx, RegisterInput{Email: "not-an-email", Password: "long-enough", FirstName: "A"})
	require.Equal(t, "invalid_email", errCode(err))

	_, err = auth.RegisterUser(ctx, RegisterInput{Email: "a@example.com", Password: "short", FirstName: "A"})
	require.Error(t, err)

	u, err := auth.RegisterUser(ctx, RegisterInput{Email: " A@Example.com ", Password: "long-enough", FirstName: "Ada"})
	require.NoError(t, err)
	require.Equal(t, "a@example.com", u.Email)

	_, err = auth.RegisterUser(ctx, RegisterInput{Email: "a@example.com", Password: "long-enough", FirstName: "Ada"})
	require.Equal(t, "email_taken", errCode(err))
}

func TestRefreshRotatesTokens(t *testing.T) {
	f := newFixture(t)
	auth, _ := newAuthForTest(t, f)
	ctx := context.Background()

	_, err := auth.RegisterUser(ctx, RegisterInput{Email: "b@example.com", Password: "long-enough", FirstName: "Bo"})
	require.NoError(t, err)
	first, err := auth.LoginUser(ctx, "b@example.com", "long-enough")
	require.NoError(t, err)
	require.Equal(t, 3600, first.ExpiresIn)

	second, err := auth.RefreshUser(ctx, first.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, first.RefreshToken, second.RefreshToken)

	// The rotated pair is gone.
	_, err = auth.RefreshUser(ctx, first.RefreshToken)
	require.Equal(t, "refresh_failed", errCode(err))
	_, err = auth.SetContextFromToken(ctx, first.AccessToken, false)
	require.Equal(t, "session_revoked", errCode(err))

	authed, err := auth.SetContextFromToken(ctx, second.AccessToken, false)
	require.NoError(t, err)

	// A refresh with no explicit token falls back to the session on the context.
	third, err := auth.RefreshUser(authed, "")
	require.NoError(t, err)
	require.NotEmpty(t, third.AccessToken)
}

func TestRefreshTokenExpires(t *testing.T) {
	f := newFixture(t)
	auth, clock := newAuthForTest(t, f)
	ctx := context.Background()

	_, err := auth.RegisterUser(ctx, RegisterInput{Email: "c@example.com", Password: "long-enough", FirstName: "Cy"})
	require.NoError(t, err)
	tokens, err := auth.LoginUser(ctx, "c@example.com", "long-enough")
	require.NoError(t, err)

	clock.Advance(25 * time.Hour)
	_, err = auth.RefreshUser(ctx, tokens.RefreshToken)
	require.Equal(t, "refresh_expired", errCode(err))

	// The failed refresh rolls back, so the row is left for the purge.
	n, err := auth.PurgeExpired(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
}

func TestLogoutRevokesSession(t *testing.T) {
	f := newFixture(t)
	auth, _ := newAuthForTest(t, f)
	ctx := context.Background()

	_, err := auth.RegisterUser(ctx, RegisterInput{Email: "d@example.com", Password: "long-enough", FirstName: "Di"})
	require.NoError(t, err)
	tokens, err := auth.LoginUser(ctx, "d@example.com", "long-enough")
	require.NoError(t, err)

	require.Error(t, auth.LogoutUser(ctx))

	authed, err := auth.SetContextFromToken(ctx, tokens.AccessToken, false)
	require.NoError(t, err)
	require.NoError(t, auth.LogoutUser(authed))

	_, err = auth.SetContextFromToken(ctx, tokens.AccessToken, false)
	require.Equal(t, "session_revoked", errCode(err))
}
