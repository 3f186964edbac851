package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ajaykrishnavemula/Campus-Pass-sub001/internal/models"
)

const outpassColumns = `id, number, student_id, student_hostel, type, reason, destination, from_date, to_date,
       status, warden_id, warden_remarks, approved_at, rejected_at, cancelled_at,
       security_out_id, security_in_id, security_remarks, check_out_time, check_in_time, qr_code, is_overdue, created_at, updated_at`

// OutpassRepository persists outpasses. All workflow writes go through
// UpdateWhereStatus so concurrent transition attempts on the same pass
// serialize at the row level.
type OutpassRepository struct {
	db *sqlx.DB
}

// NewOutpassRepository constructs the repository.
func NewOutpassRepository(db *sqlx.DB) *OutpassRepository {
	return &OutpassRepository{db: db}
}

// Create inserts a new outpass row. The human-readable number comes
// from the outpass_number_seq sequence.
func (r *OutpassRepository) Create(ctx context.Context, outpass *models.Outpass) error {
	if outpass.ID == "" {
		outpass.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if outpass.CreatedAt.IsZero() {
		outpass.CreatedAt = now
	}
	outpass.UpdatedAt = now
	if outpass.Status == "" {
		outpass.Status = models.OutpassStatusPending
	}
	const query = `INSERT INTO outpasses
	(id, number, student_id, student_hostel, type, reason, destination, from_date, to_date, status, is_overdue, created_at, updated_at)
	VALUES ($1, nextval('outpass_number_seq'), $2, $3, $4, $5, $6, $7, $8, $9, FALSE, $10, $11)
	RETURNING number`
	if err := r.db.QueryRowxContext(ctx, query,
		outpass.ID,
		outpass.StudentID,
		outpass.StudentHostel,
		outpass.Type,
		outpass.Reason,
		outpass.Destination,
		outpass.FromDate,
		outpass.ToDate,
		outpass.Status,
		outpass.CreatedAt,
		outpass.UpdatedAt,
	).Scan(&outpass.Number); err != nil {
		return fmt.Errorf("create outpass: %w", err)
	}
	return nil
}

// GetByID fetches an outpass by identifier.
func (r *OutpassRepository) GetByID(ctx context.Context, id string) (*models.Outpass, error) {
	query := `SELECT ` + outpassColumns + ` FROM outpasses WHERE id = $1`
	var outpass models.Outpass
	if err := r.db.GetContext(ctx, &outpass, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get outpass: %w", err)
	}
	return &outpass, nil
}

// GetDetail fetches an outpass with its student and warden resolved.
func (r *OutpassRepository) GetDetail(ctx context.Context, id string) (*models.OutpassDetail, error) {
	outpass, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	detail := &models.OutpassDetail{Outpass: *outpass}

	const userQuery = `SELECT id, full_name, email, role, hostel FROM users WHERE id = $1`
	var student models.UserView
	if err := r.db.GetContext(ctx, &student, userQuery, outpass.StudentID); err == nil {
		detail.Student = &student
	} else if err != sql.ErrNoRows {
		return nil, fmt.Errorf("resolve outpass student: %w", err)
	}
	if outpass.WardenID != nil {
		var warden models.UserView
		if err := r.db.GetContext(ctx, &warden, userQuery, *outpass.WardenID); err == nil {
			detail.Warden = &warden
		} else if err != sql.ErrNoRows {
			return nil, fmt.Errorf("resolve outpass warden: %w", err)
		}
	}
	return detail, nil
}

// List returns outpasses matching the filter (newest first) with total count.
func (r *OutpassRepository) List(ctx context.Context, filter models.OutpassFilter) ([]models.Outpass, int, error) {
	conditions := make([]string, 0, 6)
	args := make([]interface{}, 0, 8)

	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.StudentID != "" {
		args = append(args, filter.StudentID)
		conditions = append(conditions, fmt.Sprintf("student_id = $%d", len(args)))
	}
	if filter.Hostel != "" {
		args = append(args, filter.Hostel)
		conditions = append(conditions, fmt.Sprintf("student_hostel = $%d", len(args)))
	}
	if filter.Type != "" {
		args = append(args, filter.Type)
		conditions = append(conditions, fmt.Sprintf("type = $%d", len(args)))
	}
	if filter.OverdueOnly {
		conditions = append(conditions, "is_overdue = TRUE")
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		conditions = append(conditions, fmt.Sprintf("from_date >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		conditions = append(conditions, fmt.Sprintf("to_date <= $%d", len(args)))
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT %s FROM outpasses%s ORDER BY created_at DESC LIMIT %d OFFSET %d",
		outpassColumns, where, pageSize, offset)

	var outpasses []models.Outpass
	if err := r.db.SelectContext(ctx, &outpasses, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list outpasses: %w", err)
	}

	countQuery := "SELECT COUNT(*) FROM outpasses" + where
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count outpasses: %w", err)
	}

	return outpasses, total, nil
}

// OutpassPatch groups the mutable workflow columns a transition writes.
// Nil fields are left untouched; ClearQRCode nulls the stored code.
type OutpassPatch struct {
	Status          *models.OutpassStatus
	WardenID        *string
	WardenRemarks   *string
	ApprovedAt      *time.Time
	RejectedAt      *time.Time
	CancelledAt     *time.Time
	SecurityOutID   *string
	SecurityInID    *string
	SecurityRemarks *string
	CheckOutTime    *time.Time
	CheckInTime     *time.Time
	QRCode          *string
	ClearQRCode     bool
	IsOverdue       *bool
}

// UpdateWhereStatus applies the patch only if the row still holds the
// expected status. This compare-and-set is the atomicity primitive every
// transition relies on: zero rows affected means another transition won
// the race, surfaced as sql.ErrNoRows.
func (r *OutpassRepository) UpdateWhereStatus(ctx context.Context, id string, expected models.OutpassStatus, patch OutpassPatch) error {
	setParts := []string{"updated_at = $1"}
	args := []interface{}{time.Now().UTC()}

	add := func(column string, value interface{}) {
		args = append(args, value)
		setParts = append(setParts, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.Status != nil {
		add("status", *patch.Status)
	}
	if patch.WardenID != nil {
		add("warden_id", *patch.WardenID)
	}
	if patch.WardenRemarks != nil {
		add("warden_remarks", *patch.WardenRemarks)
	}
	if patch.ApprovedAt != nil {
		add("approved_at", *patch.ApprovedAt)
	}
	if patch.RejectedAt != nil {
		add("rejected_at", *patch.RejectedAt)
	}
	if patch.CancelledAt != nil {
		add("cancelled_at", *patch.CancelledAt)
	}
	if patch.SecurityOutID != nil {
		add("security_out_id", *patch.SecurityOutID)
	}
	if patch.SecurityInID != nil {
		add("security_in_id", *patch.SecurityInID)
	}
	if patch.SecurityRemarks != nil {
		add("security_remarks", *patch.SecurityRemarks)
	}
	if patch.CheckOutTime != nil {
		add("check_out_time", *patch.CheckOutTime)
	}
	if patch.CheckInTime != nil {
		add("check_in_time", *patch.CheckInTime)
	}
	if patch.QRCode != nil {
		add("qr_code", *patch.QRCode)
	} else if patch.ClearQRCode {
		setParts = append(setParts, "qr_code = NULL")
	}
	if patch.IsOverdue != nil {
		add("is_overdue", *patch.IsOverdue)
	}

	args = append(args, id)
	idPos := len(args)
	args = append(args, expected)
	statusPos := len(args)

	query := fmt.Sprintf("UPDATE outpasses SET %s WHERE id = $%d AND status = $%d",
		strings.Join(setParts, ", "), idPos, statusPos)

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update outpass: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check outpass update rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// MarkOverdue flips the overdue flag on a still-checked-out pass. The
// status guard makes the sweep lose cleanly against a concurrent
// check-in: zero rows affected is reported as sql.ErrNoRows and the
// caller treats it as a no-op.
func (r *OutpassRepository) MarkOverdue(ctx context.Context, id string) error {
	const query = `UPDATE outpasses SET is_overdue = TRUE, updated_at = $2
	WHERE id = $1 AND status = $3 AND is_overdue = FALSE`
	result, err := r.db.ExecContext(ctx, query, id, time.Now().UTC(), models.OutpassStatusCheckedOut)
	if err != nil {
		return fmt.Errorf("mark outpass overdue: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check overdue rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListOverdueCandidates returns checked-out passes whose return time has
// lapsed and that are not yet flagged.
func (r *OutpassRepository) ListOverdueCandidates(ctx context.Context, now time.Time, limit int) ([]models.Outpass, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query := fmt.Sprintf(`SELECT %s FROM outpasses
	WHERE status = $1 AND is_overdue = FALSE AND to_date < $2
	ORDER BY to_date ASC LIMIT %d`, outpassColumns, limit)
	var outpasses []models.Outpass
	if err := r.db.SelectContext(ctx, &outpasses, query, models.OutpassStatusCheckedOut, now); err != nil {
		return nil, fmt.Errorf("list overdue candidates: %w", err)
	}
	return outpasses, nil
}

// CountByStatus aggregates pass counts for the stats endpoint.
func (r *OutpassRepository) CountByStatus(ctx context.Context, hostel string) (*models.OutpassStats, error) {
	query := `SELECT status, COUNT(*) AS count FROM outpasses`
	args := []interface{}{}
	if hostel != "" {
		query += ` WHERE student_hostel = $1`
		args = append(args, hostel)
	}
	query += ` GROUP BY status`

	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("count outpasses by status: %w", err)
	}
	defer rows.Close()

	stats := &models.OutpassStats{GeneratedAt: time.Now().UTC()}
	for rows.Next() {
		var status models.OutpassStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		stats.Total += count
		switch status {
		case models.OutpassStatusPending:
			stats.Pending = count
		case models.OutpassStatusApproved:
			stats.Approved = count
		case models.OutpassStatusRejected:
			stats.Rejected = count
		case models.OutpassStatusCancelled:
			stats.Cancelled = count
		case models.OutpassStatusCheckedOut:
			stats.CheckedOut = count
		case models.OutpassStatusCheckedIn:
			stats.CheckedIn = count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate status counts: %w", err)
	}

	overdueQuery := `SELECT COUNT(*) FROM outpasses WHERE is_overdue = TRUE`
	overdueArgs := []interface{}{}
	if hostel != "" {
		overdueQuery += ` AND student_hostel = $1`
		overdueArgs = append(overdueArgs, hostel)
	}
	if err := r.db.GetContext(ctx, &stats.Overdue, overdueQuery, overdueArgs...); err != nil {
		return nil, fmt.Errorf("count overdue outpasses: %w", err)
	}

	return stats, nil
}
