package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/ajaykrishnavemula/Campus-Pass-sub001/internal/dto"
	"github.com/ajaykrishnavemula/Campus-Pass-sub001/internal/models"
	"github.com/ajaykrishnavemula/Campus-Pass-sub001/internal/repository"
	appErrors "github.com/ajaykrishnavemula/Campus-Pass-sub001/pkg/errors"
)

type outpassStore interface {
	Create(ctx context.Context, outpass *models.Outpass) error
	GetByID(ctx context.Context, id string) (*models.Outpass, error)
	GetDetail(ctx context.Context, id string) (*models.OutpassDetail, error)
	List(ctx context.Context, filter models.OutpassFilter) ([]models.Outpass, int, error)
	UpdateWhereStatus(ctx context.Context, id string, expected models.OutpassStatus, patch repository.OutpassPatch) error
	MarkOverdue(ctx context.Context, id string) error
	ListOverdueCandidates(ctx context.Context, now time.Time, limit int) ([]models.Outpass, error)
	CountByStatus(ctx context.Context, hostel string) (*models.OutpassStats, error)
}

// passCodeSigner is the token capability minting and verifying the
// single-use gate codes.
type passCodeSigner interface {
	Mint(outpassID string) (string, error)
	Verify(outpassID, presented, stored string) bool
}

// transitionPublisher receives committed transition events. Publishing
// is fire-and-forget relative to the transition response path.
type transitionPublisher interface {
	Publish(event models.TransitionEvent)
}

type statsCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

type transitionRecorder interface {
	ObserveTransition(action string, outcome string)
}

const statsCacheKeyPrefix = "outpass:stats:"

// OutpassService is the lifecycle engine. Every transition is
// validated, authorized, and applied through the store's conditional
// update as one serializable unit; the loser of a concurrent race on
// the same pass receives a conflict, never a stale write.
type OutpassService struct {
	store     outpassStore
	codes     passCodeSigner
	events    transitionPublisher
	cache     statsCache
	metrics   transitionRecorder
	validator *validator.Validate
	logger    *zap.Logger
	statsTTL  time.Duration
	now       func() time.Time
}

// OutpassServiceOption configures the service.
type OutpassServiceOption func(*OutpassService)

// WithStatsCache wires the redis-backed stats cache.
func WithStatsCache(cache statsCache, ttl time.Duration) OutpassServiceOption {
	return func(s *OutpassService) {
		s.cache = cache
		if ttl > 0 {
			s.statsTTL = ttl
		}
	}
}

// WithTransitionRecorder wires transition metrics.
func WithTransitionRecorder(metrics transitionRecorder) OutpassServiceOption {
	return func(s *OutpassService) {
		s.metrics = metrics
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) OutpassServiceOption {
	return func(s *OutpassService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewOutpassService constructs the lifecycle engine.
func NewOutpassService(store outpassStore, codes passCodeSigner, events transitionPublisher, logger *zap.Logger, opts ...OutpassServiceOption) *OutpassService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &OutpassService{
		store:     store,
		codes:     codes,
		events:    events,
		validator: validator.New(),
		logger:    logger,
		statsTTL:  5 * time.Minute,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// Create opens a new pending outpass owned by the acting student.
func (s *OutpassService) Create(ctx context.Context, actor models.Actor, req dto.CreateOutpassRequest) (*models.Outpass, error) {
	if err := canPerform(ActionCreate, actor, nil); err != nil {
		s.record(ActionCreate, err)
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid outpass payload")
	}
	if !models.ValidOutpassType(req.Type) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported outpass type")
	}
	if strings.TrimSpace(req.Reason) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "reason is required")
	}
	if strings.TrimSpace(req.Destination) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "destination is required")
	}
	if !req.FromDate.Before(req.ToDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "fromDate must be before toDate")
	}
	if req.FromDate.Before(s.now()) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "fromDate must not be in the past")
	}

	outpass := &models.Outpass{
		StudentID:     actor.ID,
		StudentHostel: actor.Hostel,
		Type:          req.Type,
		Reason:        strings.TrimSpace(req.Reason),
		Destination:   strings.TrimSpace(req.Destination),
		FromDate:      req.FromDate.UTC(),
		ToDate:        req.ToDate.UTC(),
		Status:        models.OutpassStatusPending,
	}
	if err := s.store.Create(ctx, outpass); err != nil {
		s.record(ActionCreate, err)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create outpass")
	}

	s.record(ActionCreate, nil)
	s.afterTransition(ctx, models.TransitionCreated, outpass, actor.ID)
	return outpass, nil
}

// Approve moves a pending pass to approved and mints its gate code.
func (s *OutpassService) Approve(ctx context.Context, actor models.Actor, id string, req dto.ApproveOutpassRequest) (*models.Outpass, error) {
	outpass, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := canPerform(ActionApprove, actor, outpass); err != nil {
		s.record(ActionApprove, err)
		return nil, err
	}
	if outpass.Status != models.OutpassStatusPending {
		err := appErrors.Clone(appErrors.ErrConflict, "outpass already decided")
		s.record(ActionApprove, err)
		return nil, err
	}

	code, err := s.codes.Mint(outpass.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mint pass code")
	}

	now := s.now()
	approved := models.OutpassStatusApproved
	patch := repository.OutpassPatch{
		Status:     &approved,
		WardenID:   &actor.ID,
		ApprovedAt: &now,
		QRCode:     &code,
	}
	if remarks := optionalTrimmed(req.Remarks); remarks != nil {
		patch.WardenRemarks = remarks
	}
	if err := s.apply(ctx, ActionApprove, outpass.ID, models.OutpassStatusPending, patch, "outpass already decided"); err != nil {
		return nil, err
	}

	outpass.Status = approved
	outpass.WardenID = &actor.ID
	outpass.WardenRemarks = patch.WardenRemarks
	outpass.ApprovedAt = &now
	outpass.QRCode = &code

	s.afterTransition(ctx, models.TransitionApproved, outpass, actor.ID)
	return outpass, nil
}

// Reject moves a pending pass to rejected. The reason is mandatory and
// validation failures leave the pass untouched.
func (s *OutpassService) Reject(ctx context.Context, actor models.Actor, id string, req dto.RejectOutpassRequest) (*models.Outpass, error) {
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "rejection reason is required")
	}

	outpass, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := canPerform(ActionReject, actor, outpass); err != nil {
		s.record(ActionReject, err)
		return nil, err
	}
	if outpass.Status != models.OutpassStatusPending {
		err := appErrors.Clone(appErrors.ErrConflict, "outpass already decided")
		s.record(ActionReject, err)
		return nil, err
	}

	now := s.now()
	rejected := models.OutpassStatusRejected
	patch := repository.OutpassPatch{
		Status:        &rejected,
		WardenID:      &actor.ID,
		WardenRemarks: &reason,
		RejectedAt:    &now,
	}
	if err := s.apply(ctx, ActionReject, outpass.ID, models.OutpassStatusPending, patch, "outpass already decided"); err != nil {
		return nil, err
	}

	outpass.Status = rejected
	outpass.WardenID = &actor.ID
	outpass.WardenRemarks = &reason
	outpass.RejectedAt = &now

	s.afterTransition(ctx, models.TransitionRejected, outpass, actor.ID)
	return outpass, nil
}

// Cancel lets the owning student withdraw a pending or approved pass.
func (s *OutpassService) Cancel(ctx context.Context, actor models.Actor, id string) (*models.Outpass, error) {
	outpass, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := canPerform(ActionCancel, actor, outpass); err != nil {
		s.record(ActionCancel, err)
		return nil, err
	}
	if outpass.Status != models.OutpassStatusPending && outpass.Status != models.OutpassStatusApproved {
		err := appErrors.Clone(appErrors.ErrConflict, "outpass can no longer be cancelled")
		s.record(ActionCancel, err)
		return nil, err
	}

	now := s.now()
	cancelled := models.OutpassStatusCancelled
	patch := repository.OutpassPatch{
		Status:      &cancelled,
		CancelledAt: &now,
		ClearQRCode: outpass.Status == models.OutpassStatusApproved,
	}
	if err := s.apply(ctx, ActionCancel, outpass.ID, outpass.Status, patch, "outpass can no longer be cancelled"); err != nil {
		return nil, err
	}

	outpass.Status = cancelled
	outpass.CancelledAt = &now
	outpass.QRCode = nil

	s.afterTransition(ctx, models.TransitionCancelled, outpass, actor.ID)
	return outpass, nil
}

// CheckOut records the student leaving campus after verifying the
// presented gate code against the minted one.
func (s *OutpassService) CheckOut(ctx context.Context, actor models.Actor, id string, req dto.CheckOutRequest) (*models.Outpass, error) {
	outpass, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := canPerform(ActionCheckOut, actor, outpass); err != nil {
		s.record(ActionCheckOut, err)
		return nil, err
	}
	if outpass.Status != models.OutpassStatusApproved {
		err := appErrors.Clone(appErrors.ErrConflict, "outpass is not approved for check-out")
		s.record(ActionCheckOut, err)
		return nil, err
	}
	if outpass.QRCode == nil || !s.codes.Verify(outpass.ID, req.Code, *outpass.QRCode) {
		err := appErrors.Clone(appErrors.ErrForbidden, "invalid pass code")
		s.record(ActionCheckOut, err)
		return nil, err
	}

	now := s.now()
	checkedOut := models.OutpassStatusCheckedOut
	patch := repository.OutpassPatch{
		Status:        &checkedOut,
		SecurityOutID: &actor.ID,
		CheckOutTime:  &now,
	}
	if remarks := optionalTrimmed(req.Remarks); remarks != nil {
		patch.SecurityRemarks = remarks
	}
	if err := s.apply(ctx, ActionCheckOut, outpass.ID, models.OutpassStatusApproved, patch, "outpass already checked out"); err != nil {
		return nil, err
	}

	outpass.Status = checkedOut
	outpass.SecurityOutID = &actor.ID
	outpass.SecurityRemarks = patch.SecurityRemarks
	outpass.CheckOutTime = &now

	s.afterTransition(ctx, models.TransitionCheckedOut, outpass, actor.ID)
	return outpass, nil
}

// CheckIn records the student's return, computes the overdue flag, and
// consumes the gate code.
func (s *OutpassService) CheckIn(ctx context.Context, actor models.Actor, id string, req dto.CheckInRequest) (*models.Outpass, error) {
	outpass, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := canPerform(ActionCheckIn, actor, outpass); err != nil {
		s.record(ActionCheckIn, err)
		return nil, err
	}
	if outpass.Status != models.OutpassStatusCheckedOut {
		err := appErrors.Clone(appErrors.ErrConflict, "outpass is not checked out")
		s.record(ActionCheckIn, err)
		return nil, err
	}

	now := s.now()
	overdue := now.After(outpass.ToDate)
	checkedIn := models.OutpassStatusCheckedIn
	patch := repository.OutpassPatch{
		Status:       &checkedIn,
		SecurityInID: &actor.ID,
		CheckInTime:  &now,
		ClearQRCode:  true,
		IsOverdue:    &overdue,
	}
	if remarks := optionalTrimmed(req.Remarks); remarks != nil {
		patch.SecurityRemarks = remarks
	}
	if err := s.apply(ctx, ActionCheckIn, outpass.ID, models.OutpassStatusCheckedOut, patch, "outpass already checked in"); err != nil {
		return nil, err
	}

	outpass.Status = checkedIn
	outpass.SecurityInID = &actor.ID
	if patch.SecurityRemarks != nil {
		outpass.SecurityRemarks = patch.SecurityRemarks
	}
	outpass.CheckInTime = &now
	outpass.IsOverdue = overdue
	outpass.QRCode = nil

	s.afterTransition(ctx, models.TransitionCheckedIn, outpass, actor.ID)
	return outpass, nil
}

// MarkOverdue flags a still-checked-out pass whose return time has
// lapsed. Invoked only by the overdue sweep; losing the race against a
// concurrent check-in is a silent no-op. Returns whether the flag was
// applied.
func (s *OutpassService) MarkOverdue(ctx context.Context, id string) (bool, error) {
	outpass, err := s.load(ctx, id)
	if err != nil {
		return false, err
	}
	if outpass.Status != models.OutpassStatusCheckedOut || outpass.IsOverdue || !s.now().After(outpass.ToDate) {
		return false, nil
	}
	if err := s.store.MarkOverdue(ctx, outpass.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Check-in landed between the read and the flag update.
			return false, nil
		}
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark outpass overdue")
	}

	outpass.IsOverdue = true
	s.afterTransition(ctx, models.TransitionOverdue, outpass, "")
	return true, nil
}

// Get returns an outpass with related users resolved, enforcing the
// actor's read scope.
func (s *OutpassService) Get(ctx context.Context, actor models.Actor, id string) (*models.OutpassDetail, error) {
	detail, err := s.store.GetDetail(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load outpass")
	}
	if err := canView(actor, &detail.Outpass); err != nil {
		return nil, err
	}
	return detail, nil
}

// List returns outpasses narrowed to the actor's scope.
func (s *OutpassService) List(ctx context.Context, actor models.Actor, query dto.OutpassQuery) ([]models.Outpass, *models.Pagination, error) {
	filter := models.OutpassFilter{
		Status:      query.Status,
		Type:        query.Type,
		OverdueOnly: query.OverdueOnly,
		From:        query.From,
		To:          query.To,
		Page:        query.Page,
		PageSize:    query.PageSize,
	}
	switch actor.Role {
	case models.RoleStudent:
		filter.StudentID = actor.ID
	case models.RoleWarden:
		filter.Hostel = actor.Hostel
	case models.RoleSecurity, models.RoleAdmin:
		filter.Hostel = query.Hostel
	default:
		return nil, nil, appErrors.ErrForbidden
	}

	outpasses, total, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list outpasses")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return outpasses, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Stats aggregates pass counts for dashboards, cached in redis and
// invalidated on every transition.
func (s *OutpassService) Stats(ctx context.Context, actor models.Actor) (*models.OutpassStats, error) {
	var hostel string
	switch actor.Role {
	case models.RoleWarden:
		hostel = actor.Hostel
	case models.RoleSecurity, models.RoleAdmin:
		hostel = ""
	default:
		return nil, appErrors.ErrForbidden
	}

	key := statsCacheKeyPrefix + hostel
	if s.cache != nil {
		var cached models.OutpassStats
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return &cached, nil
		}
	}

	stats, err := s.store.CountByStatus(ctx, hostel)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate outpass stats")
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, key, stats, s.statsTTL); err != nil {
			s.logger.Warn("failed to cache outpass stats", zap.Error(err))
		}
	}
	return stats, nil
}

func (s *OutpassService) load(ctx context.Context, id string) (*models.Outpass, error) {
	outpass, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load outpass")
	}
	return outpass, nil
}

// apply runs the conditional update and normalises the CAS miss into a
// conflict. A retried transition that already succeeded lands here too:
// the expected status no longer matches, so the retry conflicts instead
// of re-applying and double-notifying.
func (s *OutpassService) apply(ctx context.Context, action Action, id string, expected models.OutpassStatus, patch repository.OutpassPatch, conflictMsg string) error {
	err := s.store.UpdateWhereStatus(ctx, id, expected, patch)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			conflict := appErrors.Clone(appErrors.ErrConflict, conflictMsg)
			s.record(action, conflict)
			return conflict
		}
		s.record(action, err)
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to apply outpass transition")
	}
	s.record(action, nil)
	return nil
}

// afterTransition runs once a transition has committed: stats cache
// invalidation and event publication. Neither may fail the transition.
func (s *OutpassService) afterTransition(ctx context.Context, kind models.TransitionKind, outpass *models.Outpass, actorID string) {
	if s.cache != nil {
		if err := s.cache.DeleteByPattern(ctx, statsCacheKeyPrefix+"*"); err != nil {
			s.logger.Warn("failed to invalidate stats cache", zap.Error(err))
		}
	}
	if s.events == nil {
		return
	}
	s.events.Publish(models.TransitionEvent{
		Kind:       kind,
		Outpass:    *outpass,
		ActorID:    actorID,
		OccurredAt: s.now(),
	})
}

func (s *OutpassService) record(action Action, err error) {
	if s.metrics == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = appErrors.FromError(err).Code
	}
	s.metrics.ObserveTransition(string(action), outcome)
}

func optionalTrimmed(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
