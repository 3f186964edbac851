package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ajaykrishnavemula/Campus-Pass-sub001/internal/dto"
	"github.com/ajaykrishnavemula/Campus-Pass-sub001/internal/models"
	"github.com/ajaykrishnavemula/Campus-Pass-sub001/internal/realtime"
	appErrors "github.com/ajaykrishnavemula/Campus-Pass-sub001/pkg/errors"
)

type stubNotificationStore struct {
	createFn func(ctx context.Context, notification *models.Notification) error
	created  []models.Notification

	listFn        func(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, int, error)
	countUnreadFn func(ctx context.Context, userID string) (int, error)
	markReadFn    func(ctx context.Context, id, userID string) error
	markAllReadFn func(ctx context.Context, userID string) error
}

func (s *stubNotificationStore) Create(ctx context.Context, notification *models.Notification) error {
	if s.createFn != nil {
		if err := s.createFn(ctx, notification); err != nil {
			return err
		}
	}
	s.created = append(s.created, *notification)
	return nil
}

func (s *stubNotificationStore) List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, int, error) {
	return s.listFn(ctx, filter)
}

func (s *stubNotificationStore) CountUnread(ctx context.Context, userID string) (int, error) {
	return s.countUnreadFn(ctx, userID)
}

func (s *stubNotificationStore) MarkRead(ctx context.Context, id, userID string) error {
	return s.markReadFn(ctx, id, userID)
}

func (s *stubNotificationStore) MarkAllRead(ctx context.Context, userID string) error {
	return s.markAllReadFn(ctx, userID)
}

type stubDirectory struct {
	wardensByHostel map[string][]string
	err             error
}

func (s *stubDirectory) ListIDsByRoleAndHostel(ctx context.Context, role models.UserRole, hostel string) ([]string, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.wardensByHostel[hostel], nil
}

type captureBroadcaster struct {
	targets []realtime.Targets
	events  []realtime.Event
}

func (b *captureBroadcaster) Broadcast(targets realtime.Targets, event realtime.Event) int {
	b.targets = append(b.targets, targets)
	b.events = append(b.events, event)
	return len(targets.Users)
}

func transitionEvent(kind models.TransitionKind) models.TransitionEvent {
	return models.TransitionEvent{
		Kind: kind,
		Outpass: models.Outpass{
			ID:            "op-1",
			Number:        7,
			StudentID:     "student-1",
			StudentHostel: "H1",
			Status:        models.OutpassStatusPending,
		},
		ActorID:    "student-1",
		OccurredAt: time.Now().UTC(),
	}
}

func TestNotificationServiceCreatedGoesToOwnHostelWardensOnly(t *testing.T) {
	store := &stubNotificationStore{}
	directory := &stubDirectory{wardensByHostel: map[string][]string{
		"H1": {"warden-h1"},
		"H2": {"warden-h2"},
	}}
	live := &captureBroadcaster{}
	svc := NewNotificationService(store, directory, nil, WithLiveBroadcaster(live))

	require.NoError(t, svc.HandleEvent(context.Background(), transitionEvent(models.TransitionCreated)))

	require.Len(t, store.created, 1)
	require.Equal(t, "warden-h1", store.created[0].UserID)
	require.Equal(t, models.NotificationOutpassCreated, store.created[0].Type)
	require.Equal(t, "op-1", store.created[0].OutpassID)

	require.Len(t, live.events, 1)
	require.Equal(t, "outpass:created", live.events[0].Event)
	require.Equal(t, []string{"warden-h1"}, live.targets[0].Users)
}

func TestNotificationServiceApprovedNotifiesStudentExactlyOnce(t *testing.T) {
	store := &stubNotificationStore{}
	directory := &stubDirectory{wardensByHostel: map[string][]string{"H1": {"warden-h1"}}}
	svc := NewNotificationService(store, directory, nil)

	require.NoError(t, svc.HandleEvent(context.Background(), transitionEvent(models.TransitionApproved)))

	require.Len(t, store.created, 1)
	require.Equal(t, "student-1", store.created[0].UserID)
	require.Equal(t, models.NotificationOutpassApproved, store.created[0].Type)
}

func TestNotificationServiceOverdueFansOutToStudentAndWardens(t *testing.T) {
	store := &stubNotificationStore{}
	directory := &stubDirectory{wardensByHostel: map[string][]string{"H1": {"warden-a", "warden-b"}}}
	svc := NewNotificationService(store, directory, nil)

	require.NoError(t, svc.HandleEvent(context.Background(), transitionEvent(models.TransitionOverdue)))

	recipients := make([]string, 0, len(store.created))
	for _, n := range store.created {
		recipients = append(recipients, n.UserID)
	}
	require.ElementsMatch(t, []string{"student-1", "warden-a", "warden-b"}, recipients)
}

func TestNotificationServiceStoreFailureStillBroadcasts(t *testing.T) {
	store := &stubNotificationStore{
		createFn: func(ctx context.Context, notification *models.Notification) error {
			return errors.New("db down")
		},
	}
	directory := &stubDirectory{wardensByHostel: map[string][]string{"H1": {"warden-h1"}}}
	live := &captureBroadcaster{}
	svc := NewNotificationService(store, directory, nil, WithLiveBroadcaster(live))

	// The queue must never retry: live pushes already went out.
	require.NoError(t, svc.HandleEvent(context.Background(), transitionEvent(models.TransitionCreated)))
	require.Empty(t, store.created)
	require.Len(t, live.events, 1)
}

func TestNotificationServiceRecipientLookupFailureIsAbsorbed(t *testing.T) {
	store := &stubNotificationStore{}
	directory := &stubDirectory{err: errors.New("db down")}
	svc := NewNotificationService(store, directory, nil)

	require.NoError(t, svc.HandleEvent(context.Background(), transitionEvent(models.TransitionCreated)))
	require.Empty(t, store.created)
}

func TestNotificationServiceGateEventsReachSecurityDashboards(t *testing.T) {
	store := &stubNotificationStore{}
	directory := &stubDirectory{}
	live := &captureBroadcaster{}
	svc := NewNotificationService(store, directory, nil, WithLiveBroadcaster(live))

	require.NoError(t, svc.HandleEvent(context.Background(), transitionEvent(models.TransitionCheckedOut)))

	require.Len(t, live.targets, 1)
	require.Contains(t, live.targets[0].Roles, models.RoleSecurity)
	require.Contains(t, live.targets[0].Roles, models.RoleAdmin)
}

func TestNotificationServiceMarkReadNotFound(t *testing.T) {
	store := &stubNotificationStore{
		markReadFn: func(ctx context.Context, id, userID string) error {
			return sql.ErrNoRows
		},
	}
	svc := NewNotificationService(store, &stubDirectory{}, nil)

	err := svc.MarkRead(context.Background(), "n-1", "student-1")
	require.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestNotificationServiceListDefaultsPagination(t *testing.T) {
	store := &stubNotificationStore{
		listFn: func(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, int, error) {
			require.Equal(t, "student-1", filter.UserID)
			require.True(t, filter.UnreadOnly)
			return []models.Notification{{ID: "n-1", UserID: "student-1"}}, 1, nil
		},
	}
	svc := NewNotificationService(store, &stubDirectory{}, nil)

	notifications, pagination, err := svc.List(context.Background(), "student-1", dto.NotificationQuery{UnreadOnly: true})
	require.NoError(t, err)
	require.Len(t, notifications, 1)
	require.Equal(t, 1, pagination.Page)
	require.Equal(t, 20, pagination.PageSize)
	require.Equal(t, 1, pagination.TotalCount)
}
