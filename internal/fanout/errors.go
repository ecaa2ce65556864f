// Package fanout turns one posted message into per-recipient notifications
// and push deliveries.
//
// The Coordinator resolves the room's members minus the author, stores one
// Notification per recipient (idempotent on message and recipient), and then
// asks the push worker to deliver it. Recipients are processed independently
// on a bounded pool; one recipient failing never affects another, and nothing
// here can fail the already committed message write.
package fanout

import (
	"errors"
	"fmt"
)

// ErrMissingReference is the cause carried by DataIntegrityError when a
// referenced row does not exist.
var ErrMissingReference = errors.New("referenced row does not exist")

// DataIntegrityError reports a message whose room, author or own row is
// missing at fan-out time. It aborts that message's fan-out and is not
// retried.
type DataIntegrityError struct {
	MessageID string
	ChatID    string
	AuthorID  string
	Field     string // "message", "chat" or "author"
	Err       error
}

func (e *DataIntegrityError) Error() string {
	return fmt.Sprintf("data integrity: message %s references missing %s (chat=%s author=%s): %v",
		e.MessageID, e.Field, e.ChatID, e.AuthorID, e.Err)
}

func (e *DataIntegrityError) Unwrap() error { return e.Err }

// IsDataIntegrity reports whether err is, or wraps, a DataIntegrityError.
func IsDataIntegrity(err error) bool {
	var die *DataIntegrityError
	return errors.As(err, &die)
}
