// Chat HTTP handlers.
//
//   - POST   /chats                   (create, creator becomes first member)
//   - GET    /chats                   (rooms the caller belongs to, ETag)
//   - GET    /chats/by-slug/{slug}
//   - GET    /chats/{id}
//   - POST   /chats/{id}/join
//   - DELETE /chats/{id}/members/me   (leave)
//   - POST   /chats/{id}/deactivate   (creator only)
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/group-chat-backend/internal/domain"
)

// CreateChatRequest is the JSON payload for creating a chat room.
type CreateChatRequest struct {
	// Title optionally names the room; "New chat" is used when empty.
	Title string `json:"title" binding:"max=255" example:"Weekend hikers"`
}

// ListChatsResponse wraps a page of rooms and pagination information.
type ListChatsResponse struct {
	Chats      []domain.ChatRoom `json:"chats"`
	Pagination Pagination        `json:"pagination"`
}

// CreateChat godoc
// @ID          createChat
// @Summary     Create a chat room
// @Description Creates a room with a unique slug derived from the title. The caller becomes its creator and first member.
// @Tags        Chats
// @Accept      json
// @Produce     json
// @Param       body  body      handlers.CreateChatRequest  true  "Create chat payload"
// @Success     201   {object}  domain.ChatRoom
// @Failure     400   {object}  handlers.ErrorResponse  "Bad request"
// @Failure     409   {object}  handlers.ErrorResponse  "Slug unavailable"
// @Failure     500   {object}  handlers.ErrorResponse  "Internal error"
// @Security    BearerAuth
// @Router      /chats [post]
func (h *Handlers) CreateChat(c *gin.Context) {
	var req CreateChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	room, err := h.chatSvc.Create(c.Request.Context(), userID(c), strings.TrimSpace(req.Title))
	if err != nil {
		failService(c, err, ErrCodeCreateFailed)
		return
	}
	c.Header("Location", c.FullPath()+"/"+room.ID)
	ok(c, http.StatusCreated, room)
}

// ListChats godoc
// @ID          listChats
// @Summary     List my chat rooms
// @Description Returns a page of the rooms the caller belongs to, newest first. Supports weak ETag via If-None-Match.
// @Tags        Chats
// @Produce     json
// @Param       If-None-Match  header  string  false  "Return 304 if ETag matches"
// @Param       page           query   int     false  "Page number"     minimum(1) default(1)
// @Param       page_size      query   int     false  "Items per page"  minimum(1) maximum(100) default(20)
// @Success     200  {object}  handlers.ListChatsResponse
// @Header      200  {string}  ETag  "Weak ETag for current result"
// @Success     304  {string}  string  "Not Modified"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Security    BearerAuth
// @Router      /chats [get]
func (h *Handlers) ListChats(c *gin.Context) {
	ctx := c.Request.Context()
	uid := userID(c)
	page, pageSize := clampPagination(c)

	if count, maxTS, err := h.chatSvc.Stats(ctx, uid); err == nil {
		if notModified(c, "chats", uid, count, maxTS) {
			c.Status(http.StatusNotModified)
			return
		}
	}

	items, total, err := h.chatSvc.ListPage(ctx, uid, page, pageSize)
	if err != nil {
		failService(c, err, ErrCodeListFailed)
		return
	}
	ok(c, http.StatusOK, ListChatsResponse{Chats: items, Pagination: newPagination(page, pageSize, total)})
}

// GetChat godoc
// @ID          getChat
// @Summary     Get a chat room
// @Tags        Chats
// @Produce     json
// @Param       id   path      string  true  "Chat ID (UUID)"  format(uuid)
// @Success     200  {object}  domain.ChatRoom
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     403  {object}  handlers.ErrorResponse  "Not a member"
// @Failure     404  {object}  handlers.ErrorResponse  "Chat not found"
// @Security    BearerAuth
// @Router      /chats/{id} [get]
func (h *Handlers) GetChat(c *gin.Context) {
	chatID := c.Param("id")
	if !validID(chatID) {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "chat id must be a UUID")
		return
	}
	room, err := h.chatSvc.Get(c.Request.Context(), userID(c), chatID)
	if err != nil {
		failService(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, room)
}

// GetChatBySlug godoc
// @ID          getChatBySlug
// @Summary     Get a chat room by slug
// @Tags        Chats
// @Produce     json
// @Param       slug  path      string  true  "Room slug"  example(weekend-hikers)
// @Success     200   {object}  domain.ChatRoom
// @Failure     403   {object}  handlers.ErrorResponse  "Not a member"
// @Failure     404   {object}  handlers.ErrorResponse  "Chat not found"
// @Security    BearerAuth
// @Router      /chats/by-slug/{slug} [get]
func (h *Handlers) GetChatBySlug(c *gin.Context) {
	room, err := h.chatSvc.GetBySlug(c.Request.Context(), userID(c), c.Param("slug"))
	if err != nil {
		failService(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, room)
}

// JoinChat godoc
// @ID          joinChat
// @Summary     Join a chat room
// @Description Adds the caller to the room. Joining twice is a no-op.
// @Tags        Chats
// @Produce     json
// @Param       id   path      string  true  "Chat ID (UUID)"  format(uuid)
// @Success     200  {object}  domain.ChatRoom
// @Failure     404  {object}  handlers.ErrorResponse  "Chat not found"
// @Failure     409  {object}  handlers.ErrorResponse  "Chat inactive"
// @Security    BearerAuth
// @Router      /chats/{id}/join [post]
func (h *Handlers) JoinChat(c *gin.Context) {
	chatID := c.Param("id")
	if !validID(chatID) {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "chat id must be a UUID")
		return
	}
	room, err := h.chatSvc.Join(c.Request.Context(), userID(c), chatID)
	if err != nil {
		failService(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, room)
}

// LeaveChat godoc
// @ID          leaveChat
// @Summary     Leave a chat room
// @Tags        Chats
// @Param       id   path  string  true  "Chat ID (UUID)"  format(uuid)
// @Success     204  {string}  string  "No Content"
// @Failure     403  {object}  handlers.ErrorResponse  "Not a member"
// @Failure     404  {object}  handlers.ErrorResponse  "Chat not found"
// @Security    BearerAuth
// @Router      /chats/{id}/members/me [delete]
func (h *Handlers) LeaveChat(c *gin.Context) {
	chatID := c.Param("id")
	if !validID(chatID) {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "chat id must be a UUID")
		return
	}
	if err := h.chatSvc.Leave(c.Request.Context(), userID(c), chatID); err != nil {
		failService(c, err, ErrCodeInternal)
		return
	}
	noContent(c)
}

// DeactivateChat godoc
// @ID          deactivateChat
// @Summary     Deactivate a chat room
// @Description Marks the room inactive so it accepts no new messages or members. Creator only.
// @Tags        Chats
// @Param       id   path  string  true  "Chat ID (UUID)"  format(uuid)
// @Success     204  {string}  string  "No Content"
// @Failure     403  {object}  handlers.ErrorResponse  "Not the creator"
// @Failure     404  {object}  handlers.ErrorResponse  "Chat not found"
// @Security    BearerAuth
// @Router      /chats/{id}/deactivate [post]
func (h *Handlers) DeactivateChat(c *gin.Context) {
	chatID := c.Param("id")
	if !validID(chatID) {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "chat id must be a UUID")
		return
	}
	if err := h.chatSvc.Deactivate(c.Request.Context(), userID(c), chatID); err != nil {
		failService(c, err, ErrCodeInternal)
		return
	}
	noContent(c)
}
