package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/ajaykrishnavemula/Campus-Pass-sub001/internal/models"
)

func TestUserRepositoryFindByEmail(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewUserRepository(db)
	rows := sqlmock.NewRows([]string{"id", "email", "password_hash", "full_name", "role", "hostel", "active", "last_login", "created_at", "updated_at"}).
		AddRow("u-1", "warden@campus.edu", "hash", "Warden One", "WARDEN", "H1", true, nil, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE email = $1")).
		WithArgs("warden@campus.edu").
		WillReturnRows(rows)

	user, err := repo.FindByEmail(context.Background(), "warden@campus.edu")
	require.NoError(t, err)
	require.Equal(t, models.RoleWarden, user.Role)
	require.Equal(t, "H1", user.Hostel)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryFindByIDNotFound(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewUserRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id = $1")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "missing")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryListIDsByRoleAndHostel(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewUserRepository(db)
	rows := sqlmock.NewRows([]string{"id"}).AddRow("warden-1").AddRow("warden-2")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM users WHERE role = $1 AND active = TRUE AND hostel = $2")).
		WithArgs("WARDEN", "H1").
		WillReturnRows(rows)

	ids, err := repo.ListIDsByRoleAndHostel(context.Background(), models.RoleWarden, "H1")
	require.NoError(t, err)
	require.Equal(t, []string{"warden-1", "warden-2"}, ids)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryRefreshTokenRoundTrip(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewUserRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO refresh_tokens")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	token := &models.RefreshToken{
		UserID:    "u-1",
		Token:     "opaque",
		ExpiresAt: time.Now().Add(time.Hour),
	}
	require.NoError(t, repo.CreateRefreshToken(context.Background(), token))
	require.NotEmpty(t, token.ID)

	rows := sqlmock.NewRows([]string{"id", "user_id", "token", "expires_at", "created_at", "revoked", "revoked_at", "ip_address", "user_agent"}).
		AddRow(token.ID, "u-1", "opaque", token.ExpiresAt, time.Now(), false, nil, "", "")
	mock.ExpectQuery(regexp.QuoteMeta("FROM refresh_tokens WHERE token = $1")).
		WithArgs("opaque").
		WillReturnRows(rows)

	found, err := repo.FindRefreshToken(context.Background(), "opaque")
	require.NoError(t, err)
	require.Equal(t, "u-1", found.UserID)
	require.NoError(t, mock.ExpectationsWereMet())
}
