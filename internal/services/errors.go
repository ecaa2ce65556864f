// Package services defines the business logic for chat rooms, messages and
// notifications. This file centralizes common service-level error values so
// that they can be consistently returned by service methods and checked by
// callers.
//
// Translation into user-facing messages or HTTP status codes is performed at
// the handler layer.
package services

import "errors"

// Chat-related errors.
var (
	// ErrChatNotFound indicates that the requested chat room does not exist.
	ErrChatNotFound = errors.New("chat not found")

	// ErrNotMember is returned when the caller is not a member of the room.
	ErrNotMember = errors.New("not a member of this chat")

	// ErrChatInactive is returned when posting to a deactivated room.
	ErrChatInactive = errors.New("chat is inactive")

	// ErrNotCreator is returned when someone other than the creator tries to
	// deactivate a room.
	ErrNotCreator = errors.New("only the chat creator can do this")

	// ErrSlugUnavailable is returned when a unique slug could not be claimed
	// after repeated insert races.
	ErrSlugUnavailable = errors.New("could not allocate a unique slug")
)

// Message-related errors.
var (
	// ErrEmptyContent is returned when a message has no content after trimming.
	ErrEmptyContent = errors.New("content is empty")

	// ErrTooLong is returned when a message exceeds the configured rune limit.
	ErrTooLong = errors.New("content too long")

	// ErrMessageNotFound indicates that a referenced message does not exist.
	ErrMessageNotFound = errors.New("message not found")
)

// ErrNotificationNotFound indicates that the notification does not exist or
// belongs to another user.
var ErrNotificationNotFound = errors.New("notification not found")
