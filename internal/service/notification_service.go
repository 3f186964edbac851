package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ajaykrishnavemula/Campus-Pass-sub001/internal/dto"
	"github.com/ajaykrishnavemula/Campus-Pass-sub001/internal/models"
	"github.com/ajaykrishnavemula/Campus-Pass-sub001/internal/realtime"
	appErrors "github.com/ajaykrishnavemula/Campus-Pass-sub001/pkg/errors"
)

type notificationStore interface {
	Create(ctx context.Context, notification *models.Notification) error
	List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, int, error)
	CountUnread(ctx context.Context, userID string) (int, error)
	MarkRead(ctx context.Context, id, userID string) error
	MarkAllRead(ctx context.Context, userID string) error
}

// recipientDirectory resolves role-and-hostel audiences to user IDs.
type recipientDirectory interface {
	ListIDsByRoleAndHostel(ctx context.Context, role models.UserRole, hostel string) ([]string, error)
}

type liveBroadcaster interface {
	Broadcast(targets realtime.Targets, event realtime.Event) int
}

type notificationRecorder interface {
	ObserveNotification(kind string, outcome string)
}

// NotificationService turns committed transition events into persistent
// per-recipient records and best-effort live pushes. The two channels
// are independent: a failed push never rolls back a stored record, and
// a failed store never suppresses the push.
type NotificationService struct {
	store   notificationStore
	users   recipientDirectory
	live    liveBroadcaster
	metrics notificationRecorder
	logger  *zap.Logger
}

// NotificationServiceOption configures the service.
type NotificationServiceOption func(*NotificationService)

// WithLiveBroadcaster wires the websocket hub.
func WithLiveBroadcaster(live liveBroadcaster) NotificationServiceOption {
	return func(s *NotificationService) { s.live = live }
}

// WithNotificationRecorder wires fan-out metrics.
func WithNotificationRecorder(metrics notificationRecorder) NotificationServiceOption {
	return func(s *NotificationService) { s.metrics = metrics }
}

// NewNotificationService constructs the fan-out service.
func NewNotificationService(store notificationStore, users recipientDirectory, logger *zap.Logger, opts ...NotificationServiceOption) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &NotificationService{
		store:  store,
		users:  users,
		logger: logger,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// HandleEvent fans one committed transition out to its audience. It
// always reports success to the queue: a retry would re-push live
// events that already went out, so partial failures are logged and
// absorbed here instead.
func (s *NotificationService) HandleEvent(ctx context.Context, event models.TransitionEvent) error {
	recipients, err := s.recipients(ctx, event)
	if err != nil {
		s.logger.Error("failed to resolve notification recipients",
			zap.String("kind", string(event.Kind)),
			zap.String("outpass_id", event.Outpass.ID),
			zap.Error(err))
		s.record(event.Kind, "recipient_error")
		return nil
	}

	title, message := notificationContent(event)
	for _, userID := range recipients {
		notification := &models.Notification{
			UserID:    userID,
			Type:      notificationTypeFor(event.Kind),
			Title:     title,
			Message:   message,
			OutpassID: event.Outpass.ID,
		}
		if err := s.store.Create(ctx, notification); err != nil {
			s.logger.Error("failed to store notification",
				zap.String("kind", string(event.Kind)),
				zap.String("user_id", userID),
				zap.Error(err))
			s.record(event.Kind, "store_error")
			continue
		}
		s.record(event.Kind, "stored")
	}

	if s.live != nil {
		s.live.Broadcast(s.targets(event, recipients), realtime.Event{
			Event: string(event.Kind),
			Data:  event.Outpass,
		})
	}
	return nil
}

// recipients maps a transition to the users who get a stored record.
func (s *NotificationService) recipients(ctx context.Context, event models.TransitionEvent) ([]string, error) {
	switch event.Kind {
	case models.TransitionCreated, models.TransitionCancelled:
		return s.hostelWardens(ctx, event.Outpass.StudentHostel)
	case models.TransitionApproved, models.TransitionRejected,
		models.TransitionCheckedOut, models.TransitionCheckedIn:
		return []string{event.Outpass.StudentID}, nil
	case models.TransitionOverdue:
		wardens, err := s.hostelWardens(ctx, event.Outpass.StudentHostel)
		if err != nil {
			return nil, err
		}
		return append([]string{event.Outpass.StudentID}, wardens...), nil
	default:
		return nil, fmt.Errorf("unknown transition kind %q", event.Kind)
	}
}

func (s *NotificationService) hostelWardens(ctx context.Context, hostel string) ([]string, error) {
	wardens, err := s.users.ListIDsByRoleAndHostel(ctx, models.RoleWarden, hostel)
	if err != nil {
		return nil, fmt.Errorf("list wardens for hostel %s: %w", hostel, err)
	}
	return wardens, nil
}

// targets widens the live audience beyond the stored recipients: admin
// dashboards follow everything, security desks follow gate movement.
func (s *NotificationService) targets(event models.TransitionEvent, recipients []string) realtime.Targets {
	targets := realtime.Targets{
		Users: recipients,
		Roles: []models.UserRole{models.RoleAdmin},
	}
	switch event.Kind {
	case models.TransitionCheckedOut, models.TransitionCheckedIn, models.TransitionOverdue:
		targets.Roles = append(targets.Roles, models.RoleSecurity)
	}
	return targets
}

// List returns the recipient's notification feed, newest first.
func (s *NotificationService) List(ctx context.Context, userID string, query dto.NotificationQuery) ([]models.Notification, *models.Pagination, error) {
	filter := models.NotificationFilter{
		UserID:     userID,
		UnreadOnly: query.UnreadOnly,
		Page:       query.Page,
		PageSize:   query.PageSize,
	}
	notifications, total, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notifications")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return notifications, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// UnreadCount returns the recipient's unread total.
func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int, error) {
	count, err := s.store.CountUnread(ctx, userID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count unread notifications")
	}
	return count, nil
}

// MarkRead acknowledges one of the recipient's notifications.
func (s *NotificationService) MarkRead(ctx context.Context, id, userID string) error {
	if err := s.store.MarkRead(ctx, id, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.ErrNotFound
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark notification read")
	}
	return nil
}

// MarkAllRead acknowledges every unread notification for the recipient.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) error {
	if err := s.store.MarkAllRead(ctx, userID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark notifications read")
	}
	return nil
}

func (s *NotificationService) record(kind models.TransitionKind, outcome string) {
	if s.metrics != nil {
		s.metrics.ObserveNotification(string(kind), outcome)
	}
}

func notificationTypeFor(kind models.TransitionKind) models.NotificationType {
	switch kind {
	case models.TransitionCreated:
		return models.NotificationOutpassCreated
	case models.TransitionApproved:
		return models.NotificationOutpassApproved
	case models.TransitionRejected:
		return models.NotificationOutpassRejected
	case models.TransitionCancelled:
		return models.NotificationOutpassCancelled
	case models.TransitionCheckedOut:
		return models.NotificationOutpassCheckedOut
	case models.TransitionCheckedIn:
		return models.NotificationOutpassCheckedIn
	case models.TransitionOverdue:
		return models.NotificationOutpassOverdue
	default:
		return models.NotificationType(kind)
	}
}

func notificationContent(event models.TransitionEvent) (string, string) {
	number := event.Outpass.Number
	switch event.Kind {
	case models.TransitionCreated:
		return "New outpass request",
			fmt.Sprintf("Outpass #%d is awaiting your decision.", number)
	case models.TransitionApproved:
		return "Outpass approved",
			fmt.Sprintf("Outpass #%d has been approved. Present your pass code at the gate.", number)
	case models.TransitionRejected:
		return "Outpass rejected",
			fmt.Sprintf("Outpass #%d was rejected.", number)
	case models.TransitionCancelled:
		return "Outpass cancelled",
			fmt.Sprintf("Outpass #%d was cancelled by the student.", number)
	case models.TransitionCheckedOut:
		return "Checked out",
			fmt.Sprintf("Outpass #%d: exit recorded at the gate.", number)
	case models.TransitionCheckedIn:
		return "Checked in",
			fmt.Sprintf("Outpass #%d: return recorded at the gate.", number)
	case models.TransitionOverdue:
		return "Outpass overdue",
			fmt.Sprintf("Outpass #%d has passed its return time without a check-in.", number)
	default:
		return "Outpass update", fmt.Sprintf("Outpass #%d was updated.", number)
	}
}
