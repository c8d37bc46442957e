package service

import (
	"Parley/internal/api/dto"
	"Parley/internal/pkg/security"
	"Parley/internal/testutil"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAuthenticate(t *testing.T) {
	users := testutil.NewUserRepo()
	tokens := testutil.NewTokenStore()
	auth := NewAuthService(users, tokens, nil)
	alice := users.Add("Alice")

	token, err := security.GenerateToken(alice.ID)
	require.NoError(t, err)
	got, err := auth.Authenticate(context.Background(), token)
	require.NoError(t, err)
	require.Equal(t, alice.ID, got.ID)

	_, err = auth.Authenticate(context.Background(), "  ")
	require.ErrorIs(t, err, ErrUnauthenticated)

	_, err = auth.Authenticate(context.Background(), "not.a.jwt")
	require.ErrorIs(t, err, ErrInvalidCredential)

	ghost, err := security.GenerateToken(404)
	require.NoError(t, err)
	_, err = auth.Authenticate(context.Background(), ghost)
	require.ErrorIs(t, err, ErrUnknownIdentity)

	require.NoError(t, auth.Logout(context.Background(), token))
	_, err = auth.Authenticate(context.Background(), token)
	require.ErrorIs(t, err, ErrInvalidCredential)
}

func TestAuthenticateStoreFailureIsNotAnIdentityError(t *testing.T) {
	users := testutil.NewUserRepo()
	auth := NewAuthService(users, nil, nil)
	token, err := security.GenerateToken(1)
	require.NoError(t, err)

	users.Fail = true
	_, err = auth.Authenticate(context.Background(), token)
	require.ErrorIs(t, err, testutil.ErrStoreDown)
	_, code, known := Classify(err)
	require.False(t, known)
	require.Equal(t, InternalServerError, code)
}

func TestRegisterAndLogin(t *testing.T) {
	users := testutil.NewUserRepo()
	auth := NewAuthService(users, testutil.NewTokenStore(), nil)

	reg, err := auth.Register(context.Background(), &dto.RegisterDTO{Email: " Alice@Example.com ", Password: "secret1", Name: "Alice"})
	require.NoError(t, err)
	require.NotEmpty(t, reg.Token)
	require.Equal(t, "alice@example.com", reg.User.Email)
	require.NotNil(t, reg.User.BlockedUsers)

	_, err = auth.Register(context.Background(), &dto.RegisterDTO{Email: "alice@example.com", Password: "secret2", Name: "Other"})
	require.ErrorIs(t, err, ErrUserExist)

	login, err := auth.Login(context.Background(), &dto.CredentialDTO{Email: "ALICE@example.com", Password: "secret1"})
	require.NoError(t, err)
	require.Equal(t, reg.User.ID, login.User.ID)

	_, err = auth.Login(context.Background(), &dto.CredentialDTO{Email: "alice@example.com", Password: "wrong"})
	require.ErrorIs(t, err, ErrPasswordIncorrect)
	_, err = auth.Login(context.Background(), &dto.CredentialDTO{Email: "nobody@example.com", Password: "secret1"})
	require.ErrorIs(t, err, ErrPasswordIncorrect)
}
