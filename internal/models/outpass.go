package models

import "time"

// OutpassStatus is the workflow state of an outpass.
type OutpassStatus string

const (
	OutpassStatusPending    OutpassStatus = "PENDING"
	OutpassStatusApproved   OutpassStatus = "APPROVED"
	OutpassStatusRejected   OutpassStatus = "REJECTED"
	OutpassStatusCancelled  OutpassStatus = "CANCELLED"
	OutpassStatusCheckedOut OutpassStatus = "CHECKED_OUT"
	OutpassStatusCheckedIn  OutpassStatus = "CHECKED_IN"
)

// Terminal reports whether no further transition can leave this status.
func (s OutpassStatus) Terminal() bool {
	switch s {
	case OutpassStatusRejected, OutpassStatusCancelled, OutpassStatusCheckedIn:
		return true
	default:
		return false
	}
}

// OutpassType classifies the purpose of the exit.
type OutpassType string

const (
	OutpassTypeLocal     OutpassType = "LOCAL"
	OutpassTypeHome      OutpassType = "HOME"
	OutpassTypeEmergency OutpassType = "EMERGENCY"
	OutpassTypeMedical   OutpassType = "MEDICAL"
	OutpassTypeOther     OutpassType = "OTHER"
)

// ValidOutpassType reports whether t is a known outpass type.
func ValidOutpassType(t OutpassType) bool {
	switch t {
	case OutpassTypeLocal, OutpassTypeHome, OutpassTypeEmergency, OutpassTypeMedical, OutpassTypeOther:
		return true
	default:
		return false
	}
}

// Outpass is a time-boxed authorization for a student to leave campus.
// Number is a monotone human-readable identifier assigned by the
// database sequence on insert, distinct from the storage key ID.
// Rows are never deleted; rejection and cancellation are terminal
// states, not removals.
type Outpass struct {
	ID            string      `db:"id" json:"id"`
	Number        int64       `db:"number" json:"number"`
	StudentID     string      `db:"student_id" json:"student_id"`
	StudentHostel string      `db:"student_hostel" json:"student_hostel"`
	Type          OutpassType `db:"type" json:"type"`
	Reason        string      `db:"reason" json:"reason"`
	Destination   string      `db:"destination" json:"destination"`
	FromDate      time.Time   `db:"from_date" json:"from_date"`
	ToDate        time.Time   `db:"to_date" json:"to_date"`

	Status        OutpassStatus `db:"status" json:"status"`
	WardenID      *string       `db:"warden_id" json:"warden_id,omitempty"`
	WardenRemarks *string       `db:"warden_remarks" json:"warden_remarks,omitempty"`
	ApprovedAt    *time.Time    `db:"approved_at" json:"approved_at,omitempty"`
	RejectedAt    *time.Time    `db:"rejected_at" json:"rejected_at,omitempty"`
	CancelledAt   *time.Time    `db:"cancelled_at" json:"cancelled_at,omitempty"`

	SecurityOutID   *string    `db:"security_out_id" json:"security_out_id,omitempty"`
	SecurityInID    *string    `db:"security_in_id" json:"security_in_id,omitempty"`
	SecurityRemarks *string    `db:"security_remarks" json:"security_remarks,omitempty"`
	CheckOutTime    *time.Time `db:"check_out_time" json:"check_out_time,omitempty"`
	CheckInTime     *time.Time `db:"check_in_time" json:"check_in_time,omitempty"`

	// QRCode is the single-use gate verification token. Non-nil only
	// while status is APPROVED or CHECKED_OUT; consumed by check-in.
	QRCode    *string   `db:"qr_code" json:"-"`
	IsOverdue bool      `db:"is_overdue" json:"is_overdue"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// OutpassDetail is an outpass with its related users resolved.
type OutpassDetail struct {
	Outpass
	Student *UserView `json:"student,omitempty"`
	Warden  *UserView `json:"warden,omitempty"`
}

// OutpassFilter captures filtering criteria for listing outpasses.
type OutpassFilter struct {
	Status      []OutpassStatus
	StudentID   string
	Hostel      string
	Type        OutpassType
	OverdueOnly bool
	From        *time.Time
	To          *time.Time
	Page        int
	PageSize    int
}

// OutpassStats aggregates counts per status for dashboards.
type OutpassStats struct {
	Pending     int       `json:"pending"`
	Approved    int       `json:"approved"`
	Rejected    int       `json:"rejected"`
	Cancelled   int       `json:"cancelled"`
	CheckedOut  int       `json:"checked_out"`
	CheckedIn   int       `json:"checked_in"`
	Overdue     int       `json:"overdue"`
	Total       int       `json:"total"`
	GeneratedAt time.Time `json:"generated_at"`
}
