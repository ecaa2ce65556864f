// Notification HTTP handlers: the caller's in-app inbox.
package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/group-chat-backend/internal/domain"
	"github.com/tbourn/group-chat-backend/internal/sysutil"
)

// ListNotificationsResponse wraps a page of notifications.
type ListNotificationsResponse struct {
	Notifications []domain.Notification `json:"notifications"`
	Pagination    Pagination            `json:"pagination"`
}

// UnreadCountResponse reports the caller's unread notifications.
type UnreadCountResponse struct {
	Unread int64 `json:"unread" example:"3"`
}

// MarkAllReadResponse reports how many notifications changed state.
type MarkAllReadResponse struct {
	Updated int64 `json:"updated" example:"3"`
}

// ListNotifications godoc
// @ID          listNotifications
// @Summary     List my notifications
// @Description Newest first. unread=true restricts the page to unread items. Supports weak ETag via If-None-Match.
// @Tags        Notifications
// @Produce     json
// @Param       unread     query  bool  false  "Only unread"
// @Param       page       query  int   false  "Page number"     minimum(1) default(1)
// @Param       page_size  query  int   false  "Items per page"  minimum(1) maximum(100) default(20)
// @Success     200  {object}  handlers.ListNotificationsResponse
// @Success     304  {string}  string  "Not Modified"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Security    BearerAuth
// @Router      /notifications [get]
func (h *Handlers) ListNotifications(c *gin.Context) {
	ctx := c.Request.Context()
	uid := userID(c)
	unreadOnly := sysutil.IsTruthy(c.Query("unread"))
	page, pageSize := clampPagination(c)

	// Read state changes do not move the total, so unread joins the tag.
	if total, unread, err := h.notifSvc.Stats(ctx, uid); err == nil {
		scope := fmt.Sprintf("%s:%t:%d", uid, unreadOnly, unread)
		if notModified(c, "notifications", scope, total, nil) {
			c.Status(http.StatusNotModified)
			return
		}
	}

	items, total, err := h.notifSvc.ListPage(ctx, uid, unreadOnly, page, pageSize)
	if err != nil {
		failService(c, err, ErrCodeListFailed)
		return
	}
	ok(c, http.StatusOK, ListNotificationsResponse{Notifications: items, Pagination: newPagination(page, pageSize, total)})
}

// UnreadCount godoc
// @ID          unreadCount
// @Summary     Count unread notifications
// @Tags        Notifications
// @Produce     json
// @Success     200  {object}  handlers.UnreadCountResponse
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Security    BearerAuth
// @Router      /notifications/unread-count [get]
func (h *Handlers) UnreadCount(c *gin.Context) {
	n, err := h.notifSvc.UnreadCount(c.Request.Context(), userID(c))
	if err != nil {
		failService(c, err, ErrCodeInternal)
		return
	}
	c.Header("X-Unread-Count", strconv.FormatInt(n, 10))
	ok(c, http.StatusOK, UnreadCountResponse{Unread: n})
}

// MarkNotificationRead godoc
// @ID          markNotificationRead
// @Summary     Mark a notification read
// @Description Read state only moves forward; repeating the call is a no-op.
// @Tags        Notifications
// @Param       id   path  string  true  "Notification ID (UUID)"  format(uuid)
// @Success     204  {string}  string  "No Content"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Notification not found"
// @Security    BearerAuth
// @Router      /notifications/{id}/read [post]
func (h *Handlers) MarkNotificationRead(c *gin.Context) {
	id := c.Param("id")
	if !validID(id) {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "notification id must be a UUID")
		return
	}
	if err := h.notifSvc.MarkRead(c.Request.Context(), userID(c), id); err != nil {
		failService(c, err, ErrCodeInternal)
		return
	}
	noContent(c)
}

// MarkAllNotificationsRead godoc
// @ID          markAllNotificationsRead
// @Summary     Mark all notifications read
// @Tags        Notifications
// @Produce     json
// @Success     200  {object}  handlers.MarkAllReadResponse
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Security    BearerAuth
// @Router      /notifications/read-all [post]
func (h *Handlers) MarkAllNotificationsRead(c *gin.Context) {
	n, err := h.notifSvc.MarkAllRead(c.Request.Context(), userID(c))
	if err != nil {
		failService(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, MarkAllReadResponse{Updated: n})
}
