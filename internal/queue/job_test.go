package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJob_AssignsULIDAndFirstAttempt(t *testing.T) {
	a := NewJob("m1")
	b := NewJob("m1")

	assert.Len(t, a.ID, 26)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, "m1", a.MessageID)
	assert.Equal(t, 1, a.Attempt)
	assert.False(t, a.EnqueuedAt.IsZero())
}

func TestEncodeDecode(t *testing.T) {
	job := NewJob("m42")
	body, err := Encode(job)
	require.NoError(t, err)

	got, err := Decode(body)
	require.NoError(t, err)
	assert.Equal(t, job.ID, got.ID)
	assert.Equal(t, "m42", got.MessageID)
	assert.True(t, job.EnqueuedAt.Equal(got.EnqueuedAt))
}

func TestDecode_Rejects(t *testing.T) {
	for _, body := range []string{`not json`, `{}`, `{"message_id":"  "}`} {
		_, err := Decode([]byte(body))
		assert.ErrorIs(t, err, ErrMalformedJob, body)
	}
}

func TestDecode_DefaultsAttempt(t *testing.T) {
	got, err := Decode([]byte(`{"id":"x","message_id":"m1"}`))
	require.NoError(t, err)
	assert.Equal(t, 1, got.Attempt)
}
