// Package docs registers the OpenAPI description served by Swagger UI.
// Regenerate with `swag init -g internal/http/router.go` after changing
// handler annotations.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/chats": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["Chats"], "summary": "List my chat rooms", "operationId": "listChats",
                "parameters": [
                    {"type": "integer", "default": 1, "minimum": 1, "name": "page", "in": "query"},
                    {"type": "integer", "default": 20, "maximum": 100, "minimum": 1, "name": "page_size", "in": "query"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.ListChatsResponse"}}, "304": {"description": "Not Modified"}}},
            "post": {"security": [{"BearerAuth": []}], "tags": ["Chats"], "summary": "Create a chat room", "operationId": "createChat",
                "parameters": [{"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.CreateChatRequest"}}],
                "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/domain.ChatRoom"}}, "400": {"description": "Bad request", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}}}
        },
        "/chats/by-slug/{slug}": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["Chats"], "summary": "Get a chat room by slug", "operationId": "getChatBySlug",
                "parameters": [{"type": "string", "name": "slug", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/domain.ChatRoom"}}, "404": {"description": "Chat not found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}}}
        },
        "/chats/{id}": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["Chats"], "summary": "Get a chat room", "operationId": "getChat",
                "parameters": [{"type": "string", "format": "uuid", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/domain.ChatRoom"}}, "403": {"description": "Not a member", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}}}
        },
        "/chats/{id}/join": {
            "post": {"security": [{"BearerAuth": []}], "tags": ["Chats"], "summary": "Join a chat room", "operationId": "joinChat",
                "parameters": [{"type": "string", "format": "uuid", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/domain.ChatRoom"}}, "409": {"description": "Chat inactive", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}}}
        },
        "/chats/{id}/members/me": {
            "delete": {"security": [{"BearerAuth": []}], "tags": ["Chats"], "summary": "Leave a chat room", "operationId": "leaveChat",
                "parameters": [{"type": "string", "format": "uuid", "name": "id", "in": "path", "required": true}],
                "responses": {"204": {"description": "No Content"}}}
        },
        "/chats/{id}/deactivate": {
            "post": {"security": [{"BearerAuth": []}], "tags": ["Chats"], "summary": "Deactivate a chat room", "operationId": "deactivateChat",
                "parameters": [{"type": "string", "format": "uuid", "name": "id", "in": "path", "required": true}],
                "responses": {"204": {"description": "No Content"}, "403": {"description": "Not the creator", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}}}
        },
        "/chats/{id}/messages": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["Messages"], "summary": "List messages in a chat", "operationId": "listMessages",
                "parameters": [{"type": "string", "format": "uuid", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.ListMessagesResponse"}}, "304": {"description": "Not Modified"}}},
            "post": {"security": [{"BearerAuth": []}], "tags": ["Messages"], "summary": "Post a message", "operationId": "postMessage",
                "parameters": [
                    {"type": "string", "name": "Idempotency-Key", "in": "header"},
                    {"type": "string", "format": "uuid", "name": "id", "in": "path", "required": true},
                    {"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.PostMessageRequest"}}
                ],
                "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/handlers.PostMessageResponse"}}, "409": {"description": "Chat inactive", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}}}
        },
        "/notifications": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["Notifications"], "summary": "List my notifications", "operationId": "listNotifications",
                "parameters": [{"type": "boolean", "name": "unread", "in": "query"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.ListNotificationsResponse"}}}}
        },
        "/notifications/unread-count": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["Notifications"], "summary": "Count unread notifications", "operationId": "unreadCount",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.UnreadCountResponse"}}}}
        },
        "/notifications/{id}/read": {
            "post": {"security": [{"BearerAuth": []}], "tags": ["Notifications"], "summary": "Mark a notification read", "operationId": "markNotificationRead",
                "parameters": [{"type": "string", "format": "uuid", "name": "id", "in": "path", "required": true}],
                "responses": {"204": {"description": "No Content"}, "404": {"description": "Notification not found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}}}
        },
        "/notifications/read-all": {
            "post": {"security": [{"BearerAuth": []}], "tags": ["Notifications"], "summary": "Mark all notifications read", "operationId": "markAllNotificationsRead",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.MarkAllReadResponse"}}}}
        },
        "/push/vapid-public-key": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["Push"], "summary": "Get the VAPID public key", "operationId": "vapidPublicKey",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.VAPIDKeyResponse"}}, "503": {"description": "Push disabled", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}}}
        },
        "/push/subscriptions": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["Push"], "summary": "List my push subscriptions", "operationId": "listSubscriptions",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.ListSubscriptionsResponse"}}}},
            "post": {"security": [{"BearerAuth": []}], "tags": ["Push"], "summary": "Register a push subscription", "operationId": "subscribePush",
                "parameters": [{"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.SubscribeRequest"}}],
                "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/handlers.SubscribeResponse"}}, "400": {"description": "Invalid subscription", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}}},
            "delete": {"security": [{"BearerAuth": []}], "tags": ["Push"], "summary": "Remove a push subscription", "operationId": "unsubscribePush",
                "parameters": [{"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.UnsubscribeRequest"}}],
                "responses": {"204": {"description": "No Content"}}}
        }
    },
    "definitions": {
        "domain.ChatRoom": {"type": "object", "properties": {
            "id": {"type": "string"}, "title": {"type": "string"}, "slug": {"type": "string"},
            "creator_id": {"type": "string"}, "active": {"type": "boolean"},
            "created_at": {"type": "string"}, "updated_at": {"type": "string"}}},
        "domain.Message": {"type": "object", "properties": {
            "id": {"type": "string"}, "chat_room_id": {"type": "string"}, "user_id": {"type": "string"},
            "content": {"type": "string"}, "created_at": {"type": "string"}, "updated_at": {"type": "string"}}},
        "domain.Notification": {"type": "object", "properties": {
            "id": {"type": "string"}, "user_id": {"type": "string"}, "type": {"type": "string"},
            "title": {"type": "string"}, "body": {"type": "string"}, "data": {"type": "object"},
            "chat_room_id": {"type": "string"}, "message_id": {"type": "string"},
            "read_at": {"type": "string"}, "created_at": {"type": "string"}}},
        "handlers.Pagination": {"type": "object", "properties": {
            "page": {"type": "integer"}, "page_size": {"type": "integer"}, "total": {"type": "integer"},
            "total_pages": {"type": "integer"}, "has_next": {"type": "boolean"}}},
        "handlers.ErrorResponse": {"type": "object", "properties": {
            "request_id": {"type": "string"}, "code": {"type": "string"}, "message": {"type": "string"}}},
        "handlers.CreateChatRequest": {"type": "object", "properties": {"title": {"type": "string", "maxLength": 255}}},
        "handlers.ListChatsResponse": {"type": "object", "properties": {
            "chats": {"type": "array", "items": {"$ref": "#/definitions/domain.ChatRoom"}},
            "pagination": {"$ref": "#/definitions/handlers.Pagination"}}},
        "handlers.PostMessageRequest": {"type": "object", "required": ["content"], "properties": {"content": {"type": "string", "minLength": 1}}},
        "handlers.PostMessageResponse": {"type": "object", "properties": {"message": {"$ref": "#/definitions/domain.Message"}}},
        "handlers.ListMessagesResponse": {"type": "object", "properties": {
            "messages": {"type": "array", "items": {"$ref": "#/definitions/domain.Message"}},
            "pagination": {"$ref": "#/definitions/handlers.Pagination"}}},
        "handlers.ListNotificationsResponse": {"type": "object", "properties": {
            "notifications": {"type": "array", "items": {"$ref": "#/definitions/domain.Notification"}},
            "pagination": {"$ref": "#/definitions/handlers.Pagination"}}},
        "handlers.UnreadCountResponse": {"type": "object", "properties": {"unread": {"type": "integer"}}},
        "handlers.MarkAllReadResponse": {"type": "object", "properties": {"updated": {"type": "integer"}}},
        "handlers.VAPIDKeyResponse": {"type": "object", "properties": {"public_key": {"type": "string"}}},
        "handlers.SubscribeRequest": {"type": "object", "required": ["endpoint"], "properties": {
            "endpoint": {"type": "string"}, "contentEncoding": {"type": "string"},
            "keys": {"type": "object", "properties": {"p256dh": {"type": "string"}, "auth": {"type": "string"}}}}},
        "handlers.SubscribeResponse": {"type": "object", "properties": {"id": {"type": "string"}}},
        "handlers.UnsubscribeRequest": {"type": "object", "required": ["endpoint"], "properties": {"endpoint": {"type": "string"}}},
        "handlers.SubscriptionView": {"type": "object", "properties": {
            "id": {"type": "string"}, "endpoint_host": {"type": "string"},
            "content_encoding": {"type": "string"}, "created_at": {"type": "string"}}},
        "handlers.ListSubscriptionsResponse": {"type": "object", "properties": {
            "subscriptions": {"type": "array", "items": {"$ref": "#/definitions/handlers.SubscriptionView"}}}}
    },
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Group Chat API",
	Description:      "Group chat rooms with in-app and Web Push notifications.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
