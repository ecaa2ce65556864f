// Push subscription HTTP handlers.
//
// Endpoints are bearer capabilities for the push service, so responses and
// logs only ever expose the endpoint host.
package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/group-chat-backend/internal/push"
)

// SubscribeRequest mirrors the JSON of a browser PushSubscription.
type SubscribeRequest struct {
	Endpoint string `json:"endpoint" binding:"required" example:"https://fcm.googleapis.com/fcm/send/abc123"`
	Keys     struct {
		P256dh string `json:"p256dh" binding:"required"`
		Auth   string `json:"auth"   binding:"required"`
	} `json:"keys"`
	ContentEncoding string `json:"contentEncoding,omitempty" example:"aes128gcm"`
}

// SubscribeResponse returns the stored subscription ID.
type SubscribeResponse struct {
	ID string `json:"id"`
}

// UnsubscribeRequest names the endpoint to forget.
type UnsubscribeRequest struct {
	Endpoint string `json:"endpoint" binding:"required"`
}

// SubscriptionView is a subscription as shown to its owner.
type SubscriptionView struct {
	ID              string    `json:"id"`
	EndpointHost    string    `json:"endpoint_host" example:"fcm.googleapis.com"`
	ContentEncoding string    `json:"content_encoding"`
	CreatedAt       time.Time `json:"created_at"`
}

// ListSubscriptionsResponse lists the caller's push subscriptions.
type ListSubscriptionsResponse struct {
	Subscriptions []SubscriptionView `json:"subscriptions"`
}

// VAPIDKeyResponse carries the application server key for PushManager.subscribe.
type VAPIDKeyResponse struct {
	PublicKey string `json:"public_key"`
}

// VAPIDPublicKey godoc
// @ID          vapidPublicKey
// @Summary     Get the VAPID public key
// @Tags        Push
// @Produce     json
// @Success     200  {object}  handlers.VAPIDKeyResponse
// @Failure     503  {object}  handlers.ErrorResponse  "Push disabled"
// @Security    BearerAuth
// @Router      /push/vapid-public-key [get]
func (h *Handlers) VAPIDPublicKey(c *gin.Context) {
	if h.vapidPublicKey == "" {
		fail(c, http.StatusServiceUnavailable, ErrCodePushDisabled, "web push is not configured")
		return
	}
	ok(c, http.StatusOK, VAPIDKeyResponse{PublicKey: h.vapidPublicKey})
}

// ListSubscriptions godoc
// @ID          listSubscriptions
// @Summary     List my push subscriptions
// @Tags        Push
// @Produce     json
// @Success     200  {object}  handlers.ListSubscriptionsResponse
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Security    BearerAuth
// @Router      /push/subscriptions [get]
func (h *Handlers) ListSubscriptions(c *gin.Context) {
	subs, err := h.pushReg.ListForUser(c.Request.Context(), userID(c))
	if err != nil {
		failService(c, err, ErrCodeListFailed)
		return
	}
	views := make([]SubscriptionView, 0, len(subs))
	for _, s := range subs {
		views = append(views, SubscriptionView{
			ID:              s.ID,
			EndpointHost:    push.EndpointHost(s.Endpoint),
			ContentEncoding: s.ContentEncoding,
			CreatedAt:       s.CreatedAt,
		})
	}
	ok(c, http.StatusOK, ListSubscriptionsResponse{Subscriptions: views})
}

// Subscribe godoc
// @ID          subscribePush
// @Summary     Register a push subscription
// @Description Stores the browser subscription. Registering the same endpoint again replaces its keys.
// @Tags        Push
// @Accept      json
// @Produce     json
// @Param       body  body      handlers.SubscribeRequest  true  "PushSubscription JSON"
// @Success     201   {object}  handlers.SubscribeResponse
// @Failure     400   {object}  handlers.ErrorResponse  "Invalid subscription"
// @Failure     500   {object}  handlers.ErrorResponse  "Internal error"
// @Security    BearerAuth
// @Router      /push/subscriptions [post]
func (h *Handlers) Subscribe(c *gin.Context) {
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "could not read body")
		return
	}
	c.Request.Body = io.NopCloser(bytes.NewReader(raw))

	var req SubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "endpoint, keys.p256dh and keys.auth are required")
		return
	}
	if !json.Valid(raw) {
		raw = nil
	}

	id, err := h.pushReg.Upsert(c.Request.Context(), userID(c), push.SubscriptionInput{
		Endpoint:        req.Endpoint,
		PublicKey:       req.Keys.P256dh,
		AuthSecret:      req.Keys.Auth,
		ContentEncoding: req.ContentEncoding,
		Raw:             raw,
	})
	if err != nil {
		failService(c, err, ErrCodeCreateFailed)
		return
	}
	ok(c, http.StatusCreated, SubscribeResponse{ID: id})
}

// Unsubscribe godoc
// @ID          unsubscribePush
// @Summary     Remove a push subscription
// @Description Forgetting an unknown endpoint is a no-op.
// @Tags        Push
// @Accept      json
// @Param       body  body  handlers.UnsubscribeRequest  true  "Endpoint to remove"
// @Success     204   {string}  string  "No Content"
// @Failure     400   {object}  handlers.ErrorResponse  "Bad request"
// @Security    BearerAuth
// @Router      /push/subscriptions [delete]
func (h *Handlers) Unsubscribe(c *gin.Context) {
	var req UnsubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "endpoint required")
		return
	}
	if _, err := h.pushReg.Remove(c.Request.Context(), userID(c), req.Endpoint); err != nil {
		failService(c, err, ErrCodeInternal)
		return
	}
	noContent(c)
}
