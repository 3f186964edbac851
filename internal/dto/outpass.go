package dto

import (
	"time"

	"github.com/ajaykrishnavemula/Campus-Pass-sub001/internal/models"
)

// CreateOutpassRequest is the student-facing creation payload.
type CreateOutpassRequest struct {
	Type        models.OutpassType `json:"type" validate:"required"`
	Reason      string             `json:"reason" validate:"required"`
	Destination string             `json:"destination" validate:"required"`
	FromDate    time.Time          `json:"from_date" validate:"required"`
	ToDate      time.Time          `json:"to_date" validate:"required"`
}

// ApproveOutpassRequest carries the warden decision for approval.
type ApproveOutpassRequest struct {
	Remarks string `json:"remarks"`
}

// RejectOutpassRequest carries the warden decision for rejection.
// Reason is mandatory.
type RejectOutpassRequest struct {
	Reason string `json:"reason" validate:"required"`
}

// CheckOutRequest is presented by security at the gate. Code must match
// the pass's minted verification token.
type CheckOutRequest struct {
	Code    string `json:"code" validate:"required"`
	Remarks string `json:"remarks"`
}

// CheckInRequest records the student's return.
type CheckInRequest struct {
	Remarks string `json:"remarks"`
}

// OutpassQuery captures listing filters from query parameters.
type OutpassQuery struct {
	Status      []models.OutpassStatus
	Type        models.OutpassType
	Hostel      string
	OverdueOnly bool
	From        *time.Time
	To          *time.Time
	Page        int
	PageSize    int
}
