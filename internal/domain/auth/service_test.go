package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staffbook/internal/platform/docstore"
	"staffbook/internal/platform/docstore/memstore"
)

func newService(t *testing.T) *Service {
	t.Helper()
	docs := docstore.New(memstore.New())
	t.Cleanup(func() { _ = docs.Close() })
	return NewService(NewStore(docs), "test-secret", time.Hour)
}

func TestLoginAuthenticateLogout(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	uid, created, err := svc.EnsureAccount(ctx, "Admin@Test.local", "ChangeMe123!", RoleAdmin)
	require.NoError(t, err)
	require.True(t, created)

	again, created, err := svc.EnsureAccount(ctx, "admin@test.local", "other", RoleAdmin)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, uid, again)

	_, err = svc.Login(ctx, "admin@test.local", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Login(ctx, "nobody@test.local", "ChangeMe123!")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	token, err := svc.Login(ctx, "admin@test.local", "ChangeMe123!")
	require.NoError(t, err)
	assert.Equal(t, "Admin", token.Profile.DisplayName)
	assert.NotEmpty(t, token.Profile.LastLoginAt)

	user, err := svc.Authenticate(ctx, token.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, uid, user.UserID)
	assert.Equal(t, RoleAdmin, user.Role)

	require.NoError(t, svc.Logout(ctx, user.SessionID))
	_, err = svc.Authenticate(ctx, token.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestAccountWithoutEmailIsSignedOut(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	uid, _, err := svc.EnsureAccount(ctx, "editor@test.local", "pw-123456", RoleEditor)
	require.NoError(t, err)
	first, err := svc.Login(ctx, "editor@test.local", "pw-123456")
	require.NoError(t, err)
	second, err := svc.Login(ctx, "editor@test.local", "pw-123456")
	require.NoError(t, err)

	require.NoError(t, svc.Store.Docs.Remove(ctx, docstore.Join(usersCollection, uid, "email")))

	_, err = svc.Authenticate(ctx, first.AccessToken)
	assert.ErrorIs(t, err, ErrEmailRequired)

	_, err = svc.Authenticate(ctx, second.AccessToken)
	assert.True(t, errors.Is(err, ErrInvalidSession), "every session was revoked, got %v", err)
}

func TestPurgeSessions(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)
	_, _, err := svc.EnsureAccount(ctx, "viewer@test.local", "pw-123456", RoleViewer)
	require.NoError(t, err)

	token, err := svc.Login(ctx, "viewer@test.local", "pw-123456")
	require.NoError(t, err)

	purged, err := svc.PurgeSessions(ctx, time.Now())
	require.NoError(t, err)
	assert.Zero(t, purged)

	purged, err = svc.PurgeSessions(ctx, token.ExpiresAt.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, purged)
}

func TestEnsureAccountValidation(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	_, _, err := svc.EnsureAccount(ctx, "x@test.local", "pw", "root")
	assert.ErrorIs(t, err, ErrInvalidRole)
	_, _, err = svc.EnsureAccount(ctx, " ", "pw", RoleViewer)
	assert.ErrorIs(t, err, ErrEmailRequired)
}

func TestPermissions(t *testing.T) {
	ok, err := Permissions{}.HasPermission(context.Background(), RoleViewer, PermEmployeesWrite)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = Permissions{}.HasPermission(context.Background(), RoleEditor, PermRecycleRestore)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = Permissions{}.HasPermission(context.Background(), RoleEditor, PermRecyclePurge)
	require.NoError(t, err)
	assert.False(t, ok)
}
