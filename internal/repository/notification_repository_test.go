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

func TestNotificationRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewNotificationRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO notifications")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	notification := &models.Notification{
		UserID:    "student-1",
		Type:      models.NotificationOutpassApproved,
		Title:     "Outpass approved",
		Message:   "Outpass #7 has been approved",
		OutpassID: "op-1",
	}
	require.NoError(t, repo.Create(context.Background(), notification))
	require.NotEmpty(t, notification.ID)
	require.False(t, notification.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationRepositoryListUnreadOnly(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewNotificationRepository(db)
	rows := sqlmock.NewRows([]string{"id", "user_id", "type", "title", "message", "outpass_id", "read", "created_at"}).
		AddRow("n-1", "student-1", "OUTPASS_APPROVED", "Outpass approved", "msg", "op-1", false, time.Now())

	mock.ExpectQuery(regexp.QuoteMeta("FROM notifications WHERE user_id = $1 AND read = FALSE")).
		WithArgs("student-1").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM notifications")).
		WithArgs("student-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	list, total, err := repo.List(context.Background(), models.NotificationFilter{
		UserID:     "student-1",
		UnreadOnly: true,
	})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Len(t, list, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationRepositoryMarkReadOwnerGuard(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewNotificationRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE notifications SET read = TRUE WHERE id = $1 AND user_id = $2")).
		WithArgs("n-1", "intruder").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.MarkRead(context.Background(), "n-1", "intruder")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationRepositoryCountUnread(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewNotificationRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND read = FALSE")).
		WithArgs("student-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	count, err := repo.CountUnread(context.Background(), "student-1")
	require.NoError(t, err)
	require.Equal(t, 3, count)
	require.NoError(t, mock.ExpectationsWereMet())
}
