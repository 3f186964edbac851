package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/ajaykrishnavemula/Campus-Pass-sub001/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestOutpassRepositoryCreateAssignsNumber(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewOutpassRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO outpasses")).
		WillReturnRows(sqlmock.NewRows([]string{"number"}).AddRow(int64(42)))

	outpass := &models.Outpass{
		StudentID:     "student-1",
		StudentHostel: "H1",
		Type:          models.OutpassTypeLocal,
		Reason:        "grocery run",
		Destination:   "city center",
		FromDate:      time.Now().Add(time.Hour),
		ToDate:        time.Now().Add(5 * time.Hour),
	}
	require.NoError(t, repo.Create(context.Background(), outpass))
	require.Equal(t, int64(42), outpass.Number)
	require.NotEmpty(t, outpass.ID)
	require.Equal(t, models.OutpassStatusPending, outpass.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOutpassRepositoryUpdateWhereStatusConflict(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewOutpassRepository(db)
	// Zero rows affected means another transition already moved the pass.
	mock.ExpectExec(regexp.QuoteMeta("UPDATE outpasses SET")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	approved := models.OutpassStatusApproved
	err := repo.UpdateWhereStatus(context.Background(), "op-1", models.OutpassStatusPending, OutpassPatch{
		Status: &approved,
	})
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOutpassRepositoryUpdateWhereStatusApplied(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewOutpassRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE outpasses SET")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	checkedIn := models.OutpassStatusCheckedIn
	now := time.Now().UTC()
	securityID := "security-1"
	overdue := true
	err := repo.UpdateWhereStatus(context.Background(), "op-1", models.OutpassStatusCheckedOut, OutpassPatch{
		Status:       &checkedIn,
		SecurityInID: &securityID,
		CheckInTime:  &now,
		ClearQRCode:  true,
		IsOverdue:    &overdue,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOutpassRepositoryMarkOverdueNoOpAfterCheckIn(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewOutpassRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE outpasses SET is_overdue = TRUE")).
		WithArgs("op-1", sqlmock.AnyArg(), string(models.OutpassStatusCheckedOut)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.MarkOverdue(context.Background(), "op-1")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOutpassRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewOutpassRepository(db)
	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "number", "student_id", "student_hostel", "type", "reason", "destination", "from_date", "to_date",
		"status", "warden_id", "warden_remarks", "approved_at", "rejected_at", "cancelled_at",
		"security_out_id", "security_in_id", "security_remarks", "check_out_time", "check_in_time", "qr_code", "is_overdue", "created_at", "updated_at",
	}).AddRow("op-1", int64(7), "student-1", "H1", "LOCAL", "errand", "market", now, now.Add(4*time.Hour),
		"PENDING", nil, nil, nil, nil, nil, nil, nil, nil, nil, nil, nil, false, now, now)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, number, student_id")).
		WithArgs("PENDING", "H1").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM outpasses")).
		WithArgs("PENDING", "H1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	list, total, err := repo.List(context.Background(), models.OutpassFilter{
		Status: []models.OutpassStatus{models.OutpassStatusPending},
		Hostel: "H1",
	})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Len(t, list, 1)
	require.Equal(t, int64(7), list[0].Number)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOutpassRepositoryListOverdueCandidates(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewOutpassRepository(db)
	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "number", "student_id", "student_hostel", "type", "reason", "destination", "from_date", "to_date",
		"status", "warden_id", "warden_remarks", "approved_at", "rejected_at", "cancelled_at",
		"security_out_id", "security_in_id", "security_remarks", "check_out_time", "check_in_time", "qr_code", "is_overdue", "created_at", "updated_at",
	}).AddRow("op-2", int64(8), "student-2", "H2", "HOME", "weekend", "home", now.Add(-8*time.Hour), now.Add(-time.Hour),
		"CHECKED_OUT", nil, nil, nil, nil, nil, nil, nil, nil, nil, nil, nil, false, now, now)

	mock.ExpectQuery(regexp.QuoteMeta("FROM outpasses")).
		WithArgs(string(models.OutpassStatusCheckedOut), sqlmock.AnyArg()).
		WillReturnRows(rows)

	candidates, err := repo.ListOverdueCandidates(context.Background(), now, 50)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	require.Equal(t, "op-2", candidates[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}
