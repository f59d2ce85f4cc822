package postgres

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	"github.com/openfield/notify-api/internal/repository"
)

func TestPromoteByEmailUnknownUserIsNotFound(t *testing.T) {
	base, mock := newMockRepo(t)
	repo := NewUserRepository(base)

	mock.ExpectExec(`UPDATE users`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.PromoteByEmail(context.Background(), "nobody@example.org")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestGetByEmailUnknownUserIsNotFound(t *testing.T) {
	base, mock := newMockRepo(t)
	repo := NewUserRepository(base)

	mock.ExpectQuery(`SELECT[\s\S]*FROM users`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "name", "role", "availability_alerts_enabled", "created_at", "updated_at"}))

	_, err := repo.GetByEmail(context.Background(), "nobody@example.org")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
