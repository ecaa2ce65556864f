// Message HTTP handlers.
//
//   - POST /chats/{id}/messages   (store a message, fan-out runs in background)
//   - GET  /chats/{id}/messages   (oldest first, paginated, ETag)
//
// Idempotency: when the client supplies an Idempotency-Key and the same
// (user, chat, key) already stored a message, that message is returned again
// with `Idempotency-Replayed: true` and no second fan-out is scheduled.
package handlers

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/group-chat-backend/internal/domain"
	"github.com/tbourn/group-chat-backend/internal/http/middleware"
)

// PostMessageRequest is the JSON payload for sending a message.
type PostMessageRequest struct {
	Content string `json:"content" binding:"required,min=1" example:"Who is in for Saturday?"`
}

// PostMessageResponse wraps the stored message.
type PostMessageResponse struct {
	Message *domain.Message `json:"message"`
}

// ListMessagesResponse contains a page of messages and pagination metadata.
type ListMessagesResponse struct {
	Messages   []domain.Message `json:"messages"`
	Pagination Pagination       `json:"pagination"`
}

// nlCollapseRE collapses runs of 3+ newlines to two, preserving paragraphs.
var nlCollapseRE = regexp.MustCompile(`\n{3,}`)

// sanitizeContent converts CRLF/CR to LF, collapses blank-line runs and trims.
func sanitizeContent(raw string) string {
	s := strings.ReplaceAll(raw, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = nlCollapseRE.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// PostMessage godoc
// @ID          postMessage
// @Summary     Post a message
// @Description Stores a message in the room and schedules notification fan-out for the other members.
// @Description Supports idempotency via the Idempotency-Key header (same key, same message).
// @Tags        Messages
// @Accept      json
// @Produce     json
// @Param       Idempotency-Key  header  string  false  "Idempotency key for safe retries"  example(7a8d9f4c-1b2a-4c3d-8e9f-0123456789ab)
// @Param       id               path    string  true   "Chat ID (UUID)"  format(uuid)
// @Param       body             body    handlers.PostMessageRequest  true  "Message payload"
// @Success     201  {object}  handlers.PostMessageResponse
// @Header      201  {string}  Idempotency-Replayed  "true when an earlier result was returned"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     403  {object}  handlers.ErrorResponse  "Not a member"
// @Failure     404  {object}  handlers.ErrorResponse  "Chat not found"
// @Failure     409  {object}  handlers.ErrorResponse  "Chat inactive"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Security    BearerAuth
// @Router      /chats/{id}/messages [post]
func (h *Handlers) PostMessage(c *gin.Context) {
	chatID := c.Param("id")
	if !validID(chatID) {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "chat id must be a UUID")
		return
	}

	var req PostMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "content required")
		return
	}
	content := sanitizeContent(req.Content)
	if content == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "content required")
		return
	}
	if utf8.RuneCountInString(content) > h.maxContentRunes {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, fmt.Sprintf("content too long: max %d runes", h.maxContentRunes))
		return
	}

	var (
		msg      *domain.Message
		replayed bool
		err      error
	)
	if key, has := middleware.GetIdempotencyKey(c); has {
		msg, replayed, err = h.msgSvc.PostIdempotent(c.Request.Context(), userID(c), chatID, key, content)
	} else {
		msg, err = h.msgSvc.Post(c.Request.Context(), userID(c), chatID, content)
	}
	if err != nil {
		failService(c, err, ErrCodePostFailed)
		return
	}
	if replayed {
		c.Header("Idempotency-Replayed", "true")
	}
	ok(c, http.StatusCreated, PostMessageResponse{Message: msg})
}

// ListMessages godoc
// @ID          listMessages
// @Summary     List messages in a chat
// @Description Returns a page of the room's messages, oldest first. Members only.
// @Tags        Messages
// @Produce     json
// @Param       id             path    string  true   "Chat ID (UUID)"  format(uuid)
// @Param       If-None-Match  header  string  false  "Return 304 if ETag matches"
// @Param       page           query   int     false  "Page number"     minimum(1) default(1)
// @Param       page_size      query   int     false  "Items per page"  minimum(1) maximum(100) default(20)
// @Success     200  {object}  handlers.ListMessagesResponse
// @Success     304  {string}  string  "Not Modified"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     403  {object}  handlers.ErrorResponse  "Not a member"
// @Failure     404  {object}  handlers.ErrorResponse  "Chat not found"
// @Security    BearerAuth
// @Router      /chats/{id}/messages [get]
func (h *Handlers) ListMessages(c *gin.Context) {
	ctx := c.Request.Context()
	chatID := c.Param("id")
	if !validID(chatID) {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "chat id must be a UUID")
		return
	}
	uid := userID(c)

	// Stats also enforces membership, so its error is the list's error.
	count, maxTS, err := h.msgSvc.Stats(ctx, uid, chatID)
	if err != nil {
		failService(c, err, ErrCodeListFailed)
		return
	}
	if notModified(c, "messages", chatID, count, maxTS) {
		c.Status(http.StatusNotModified)
		return
	}

	page, pageSize := clampPagination(c)
	items, total, err := h.msgSvc.ListPage(ctx, uid, chatID, page, pageSize)
	if err != nil {
		failService(c, err, ErrCodeListFailed)
		return
	}
	ok(c, http.StatusOK, ListMessagesResponse{Messages: items, Pagination: newPagination(page, pageSize, total)})
}
