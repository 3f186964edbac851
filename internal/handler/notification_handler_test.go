package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajaykrishnavemula/Campus-Pass-sub001/internal/dto"
	"github.com/ajaykrishnavemula/Campus-Pass-sub001/internal/models"
	appErrors "github.com/ajaykrishnavemula/Campus-Pass-sub001/pkg/errors"
)

type fakeNotificationSrv struct {
	notifications []models.Notification
	unread        int
	err           error
	lastUser      string
	lastQuery     dto.NotificationQuery
	markedID      string
	markedAll     bool
}

func (f *fakeNotificationSrv) List(_ context.Context, userID string, query dto.NotificationQuery) ([]models.Notification, *models.Pagination, error) {
	f.lastUser = userID
	f.lastQuery = query
	if f.err != nil {
		return nil, nil, f.err
	}
	return f.notifications, &models.Pagination{Page: 1, PageSize: 20, TotalCount: len(f.notifications)}, nil
}

func (f *fakeNotificationSrv) UnreadCount(_ context.Context, userID string) (int, error) {
	f.lastUser = userID
	return f.unread, f.err
}

func (f *fakeNotificationSrv) MarkRead(_ context.Context, id, userID string) error {
	f.markedID = id
	f.lastUser = userID
	return f.err
}

func (f *fakeNotificationSrv) MarkAllRead(_ context.Context, userID string) error {
	f.markedAll = true
	f.lastUser = userID
	return f.err
}

func TestNotificationHandlerListScopesToCaller(t *testing.T) {
	srv := &fakeNotificationSrv{notifications: []models.Notification{{ID: "n-1", UserID: "student-1"}}}
	handler := NewNotificationHandler(srv)

	c, rec := authedContext(t, http.MethodGet, "/notifications?unread=true", nil, studentClaims())
	handler.List(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "student-1", srv.lastUser)
	assert.True(t, srv.lastQuery.UnreadOnly)
}

func TestNotificationHandlerUnreadCount(t *testing.T) {
	srv := &fakeNotificationSrv{unread: 3}
	handler := NewNotificationHandler(srv)

	c, rec := authedContext(t, http.MethodGet, "/notifications/unread-count", nil, studentClaims())
	handler.UnreadCount(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	var envelope struct {
		Data dto.UnreadCountResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, 3, envelope.Data.Unread)
}

func TestNotificationHandlerMarkReadNotFound(t *testing.T) {
	srv := &fakeNotificationSrv{err: appErrors.ErrNotFound}
	handler := NewNotificationHandler(srv)

	c, rec := authedContext(t, http.MethodPost, "/notifications/n-9/read", nil, studentClaims())
	c.Params = gin.Params{{Key: "id", Value: "n-9"}}
	handler.MarkRead(c)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "n-9", srv.markedID)
}

func TestNotificationHandlerMarkAllRead(t *testing.T) {
	srv := &fakeNotificationSrv{}
	handler := NewNotificationHandler(srv)

	c, rec := authedContext(t, http.MethodPost, "/notifications/read-all", nil, studentClaims())
	handler.MarkAllRead(c)
	c.Writer.WriteHeaderNow()

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.True(t, srv.markedAll)
}

func TestNotificationHandlerRequiresAuth(t *testing.T) {
	handler := NewNotificationHandler(&fakeNotificationSrv{})

	c, rec := authedContext(t, http.MethodGet, "/notifications", nil, nil)
	handler.List(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
