package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmailLookupIsCaseInsensitive(t *testing.T) {
	f := newFixtures(t)
	ctx := context.Background()
	f.user(t, "citizen@example.com")

	user, err := f.users.GetByEmail(ctx, "Citizen@Example.COM")
	require.NoError(t, err)
	assert.Equal(t, "citizen@example.com", user.EmailAddress())

	found, err := f.users.GetManyByEmails(ctx, []string{"CITIZEN@example.com", "missing@example.com"})
	require.NoError(t, err)
	assert.Len(t, found, 1)
	assert.Contains(t, found, "citizen@example.com")
}

func TestDuplicateEmailRejected(t *testing.T) {
	f := newFixtures(t)
	email := "dup@example.com"
	f.user(t, email)

	_, err := f.users.CreateUser(context.Background(), CreateUserParams{Email: &email, Name: "Dup"})
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestPlaceholderAccountCannotAuthenticate(t *testing.T) {
	f := newFixtures(t)
	ctx := context.Background()
	email := "ghost@example.com"
	_, err := f.users.CreateUser(ctx, CreateUserParams{Email: &email, Name: "ghost"})
	require.NoError(t, err)

	_, err = f.users.Authenticate(ctx, email, "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthenticate(t *testing.T) {
	f := newFixtures(t)
	ctx := context.Background()
	f.user(t, "login@example.com")

	user, err := f.users.Authenticate(ctx, "login@example.com", "secret123")
	require.NoError(t, err)
	assert.True(t, user.HasPassword())

	_, err = f.users.Authenticate(ctx, "login@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = f.users.Authenticate(ctx, "nobody@example.com", "secret123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}
