// Package push delivers Web Push notifications to the browser endpoints a
// user has registered, and keeps that registry clean.
//
// Every attempt is classified per endpoint. 2xx responses are delivered,
// 404 and 410 mean the endpoint is gone and the subscription is pruned,
// 429, 5xx and network errors are transient, and any other 4xx is rejected.
// One endpoint failing never stops delivery to the others.
package push

import (
	"errors"
	"net/http"
)

var (
	// ErrSubscriptionNotFound is returned when no subscription matches.
	ErrSubscriptionNotFound = errors.New("push subscription not found")

	// ErrInvalidSubscription marks a subscription the client sent that cannot
	// be stored or encrypted to (bad endpoint URL, malformed keys).
	ErrInvalidSubscription = errors.New("invalid push subscription")

	// ErrDeliveryTransient wraps failures that may succeed on a later attempt.
	ErrDeliveryTransient = errors.New("push delivery failed transiently")

	// ErrDeliveryPermanent wraps 404/410 responses: the endpoint is gone.
	ErrDeliveryPermanent = errors.New("push endpoint is gone")

	// ErrDeliveryRejected wraps other 4xx responses.
	ErrDeliveryRejected = errors.New("push service rejected the request")
)

// Outcome is the classification of one delivery attempt.
type Outcome string

const (
	OutcomeDelivered Outcome = "delivered"
	OutcomeTransient Outcome = "transient"
	OutcomePruned    Outcome = "pruned"
	OutcomeRejected  Outcome = "rejected"
)

// Classify maps a push service response to an Outcome. A non-nil err means
// no HTTP response was obtained.
func Classify(status int, err error) Outcome {
	if err != nil {
		if errors.Is(err, ErrInvalidSubscription) {
			return OutcomeRejected
		}
		return OutcomeTransient
	}
	switch {
	case status >= 200 && status < 300:
		return OutcomeDelivered
	case status == http.StatusNotFound, status == http.StatusGone:
		return OutcomePruned
	case status == http.StatusTooManyRequests, status >= 500, status == 0:
		return OutcomeTransient
	default:
		return OutcomeRejected
	}
}

// outcomeErr returns the sentinel matching a failed outcome.
func outcomeErr(o Outcome) error {
	switch o {
	case OutcomeTransient:
		return ErrDeliveryTransient
	case OutcomePruned:
		return ErrDeliveryPermanent
	case OutcomeRejected:
		return ErrDeliveryRejected
	}
	return nil
}
