package services

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/shaggydog-ai/shaggydog/internal/db/repos"
)

func TestUserService_RegisterAndAuthenticate(t *testing.T) {
	ts := NewTestSetup(t)
	defer ts.CleanUp()

	user, err := ts.UserService.Register(ts.ctx, "alice", "secret123")
	assert.NoError(t, err)
	assert.NotZero(t, user.ID)
	assert.NotEqual(t, "secret123", user.PasswordHash, "Password is never stored in clear")

	token, err := ts.UserService.Authenticate(ts.ctx, "alice", "secret123")
	assert.NoError(t, err)
	assert.NotEmpty(t, token)

	resolved, err := ts.UserService.GetByToken(ts.ctx, token)
	assert.NoError(t, err)
	assert.Equal(t, user.ID, resolved.ID)
}

func TestUserService_Register_Validation(t *testing.T) {
	ts := NewTestSetup(t)
	defer ts.CleanUp()

	_, err := ts.UserService.Register(ts.ctx, "", "secret123")
	assert.Error(t, err)

	_, err = ts.UserService.Register(ts.ctx, "alice", "short")
	assert.Error(t, err)
}

func TestUserService_Register_DuplicateUsername(t *testing.T) {
	ts := NewTestSetup(t)
	defer ts.CleanUp()

	_, err := ts.UserService.Register(ts.ctx, "alice", "secret123")
	assert.NoError(t, err)

	_, err = ts.UserService.Register(ts.ctx, "alice", "othersecret")
	assert.True(t, errors.Is(err, repos.ErrUsernameTaken))
}

func TestUserService_Authenticate_BadCredentials(t *testing.T) {
	ts := NewTestSetup(t)
	defer ts.CleanUp()

	_, err := ts.UserService.Register(ts.ctx, "alice", "secret123")
	assert.NoError(t, err)

	// Wrong password and unknown username are indistinguishable
	_, err = ts.UserService.Authenticate(ts.ctx, "alice", "wrong-password")
	assert.True(t, errors.Is(err, ErrInvalidCredentials))

	_, err = ts.UserService.Authenticate(ts.ctx, "nobody", "secret123")
	assert.True(t, errors.Is(err, ErrInvalidCredentials))
}

func TestUserService_Authenticate_RotatesToken(t *testing.T) {
	ts := NewTestSetup(t)
	defer ts.CleanUp()

	_, err := ts.UserService.Register(ts.ctx, "alice", "secret123")
	assert.NoError(t, err)

	first, err := ts.UserService.Authenticate(ts.ctx, "alice", "secret123")
	assert.NoError(t, err)
	second, err := ts.UserService.Authenticate(ts.ctx, "alice", "secret123")
	assert.NoError(t, err)
	assert.NotEqual(t, first, second)

	// Only the newest token resolves
	_, err = ts.UserService.GetByToken(ts.ctx, first)
	assert.True(t, errors.Is(err, repos.ErrUserNotFound))
	resolved, err := ts.UserService.GetByToken(ts.ctx, second)
	assert.NoError(t, err)
	assert.Equal(t, "alice", resolved.Username)
}

func TestUserService_Delete(t *testing.T) {
	ts := NewTestSetup(t)
	defer ts.CleanUp()

	user, err := ts.UserService.Register(ts.ctx, "alice", "secret123")
	assert.NoError(t, err)
	job := ts.submitTestJob(t, user.ID)

	assert.NoError(t, ts.UserService.Delete(ts.ctx, user.ID))

	_, err = ts.UserRepo.GetByID(ts.ctx, user.ID)
	assert.True(t, errors.Is(err, repos.ErrUserNotFound))
	_, err = ts.JobRepo.GetAny(ts.ctx, job.ID)
	assert.True(t, errors.Is(err, repos.ErrJobNotFound))
}
