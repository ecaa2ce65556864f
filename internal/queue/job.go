// Package queue carries dispatch jobs from the message write path to the
// fan-out workers.
//
// Two backends implement Queue: MemoryQueue, a bounded in-process worker pool
// used by single-binary deployments, and RabbitPublisher, which hands jobs to
// a durable RabbitMQ queue drained by cmd/dispatch-worker through
// RabbitConsumer. Jobs travel as JSON in both cases.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	// ErrClosed is returned by Enqueue after Close has been called.
	ErrClosed = errors.New("queue closed")
	// ErrFull is returned when a bounded queue has no room left.
	ErrFull = errors.New("queue full")
	// ErrMalformedJob marks a payload that cannot be decoded into a Job.
	ErrMalformedJob = errors.New("malformed job")
)

// Job asks the fan-out workers to notify the members of a message's room.
type Job struct {
	ID         string    `json:"id"`
	MessageID  string    `json:"message_id"`
	EnqueuedAt time.Time `json:"enqueued_at"`
	Attempt    int       `json:"attempt"`
}

// NewJob builds a first-attempt job for messageID.
func NewJob(messageID string) Job {
	return Job{
		ID:         ulid.Make().String(),
		MessageID:  messageID,
		EnqueuedAt: time.Now().UTC(),
		Attempt:    1,
	}
}

// Handler processes one job. Returning an error marks the job failed.
type Handler func(ctx context.Context, job Job) error

// Queue accepts jobs for background processing.
type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Close(ctx context.Context) error
}

// Encode serializes a job for transport.
func Encode(job Job) ([]byte, error) {
	return json.Marshal(job)
}

// Decode parses a transported job. Payloads without a message ID are rejected.
func Decode(body []byte) (Job, error) {
	var job Job
	if err := json.Unmarshal(body, &job); err != nil {
		return Job{}, fmt.Errorf("%w: %v", ErrMalformedJob, err)
	}
	if strings.TrimSpace(job.MessageID) == "" {
		return Job{}, fmt.Errorf("%w: missing message_id", ErrMalformedJob)
	}
	if job.Attempt < 1 {
		job.Attempt = 1
	}
	return job, nil
}
