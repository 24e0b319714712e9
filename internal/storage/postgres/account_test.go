package postgres_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/lobby/internal/storage/postgres"
	"github.com/cory-johannsen/lobby/internal/testutil"
)

func TestHashPassword(t *testing.T) {
	hash, err := postgres.HashPassword("secret123")
	assert.NoError(t, err)
	assert.NotEmpty(t, hash)
	assert.NotEqual(t, "secret123", hash)
}

func TestCheckPassword_Correct(t *testing.T) {
	hash, err := postgres.HashPassword("mypassword")
	assert.NoError(t, err)
	assert.True(t, postgres.CheckPassword("mypassword", hash))
}

func TestCheckPassword_Wrong(t *testing.T) {
	hash, err := postgres.HashPassword("mypassword")
	assert.NoError(t, err)
	assert.False(t, postgres.CheckPassword("wrongpassword", hash))
}

// Property: HashPassword always produces a hash that CheckPassword verifies.
func TestPropertyHashAndCheck(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		// bcrypt has a max input length of 72 bytes
		password := rapid.StringMatching(`[a-zA-Z0-9!@#$%^&*]{1,64}`).Draw(t, "password")
		hash, err := postgres.HashPassword(password)
		if err != nil {
			t.Fatalf("HashPassword failed: %v", err)
		}
		if !postgres.CheckPassword(password, hash) {
			t.Fatalf("CheckPassword failed for password %q", password)
		}
	})
}

func TestAccountRepository_CreateAndAuthenticate(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(t)
	pc.ApplyMigrations(t)

	repo := postgres.NewAccountRepository(pc.RawPool)

	acct, err := repo.Create(ctx, "etheller", "hunter22")
	require.NoError(t, err)
	assert.NotZero(t, acct.ID)
	assert.Equal(t, "etheller", acct.Username)
	assert.NotEqual(t, "hunter22", acct.PasswordHash)

	got, err := repo.Authenticate(ctx, "etheller", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, acct.ID, got.ID)
}

func TestAccountRepository_DuplicateUsername(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(t)
	pc.ApplyMigrations(t)

	repo := postgres.NewAccountRepository(pc.RawPool)

	_, err := repo.Create(ctx, "dupe", "password1")
	require.NoError(t, err)

	_, err = repo.Create(ctx, "dupe", "password2")
	assert.ErrorIs(t, err, postgres.ErrAccountExists)
}

func TestAccountRepository_AuthenticateFailures(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(t)
	pc.ApplyMigrations(t)

	repo := postgres.NewAccountRepository(pc.RawPool)

	_, err := repo.Authenticate(ctx, "nobody", "whatever")
	assert.ErrorIs(t, err, postgres.ErrAccountNotFound)

	_, err = repo.Create(ctx, "bram", "correcthorse")
	require.NoError(t, err)

	_, err = repo.Authenticate(ctx, "bram", "batterystaple")
	assert.ErrorIs(t, err, postgres.ErrInvalidCredentials)
}
