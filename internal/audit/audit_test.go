package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "appraiser-gateway/pkg/domain"
)

func TestPublisherStampsTimestamp(t *testing.T) {
	store := NewInMemoryStore()
	pub := NewPublisher(store)
	attemptID := id.NewAttemptID()

	err := pub.Emit(context.Background(), Event{AttemptID: attemptID, Action: ActionAttemptStarted})
	require.NoError(t, err)

	events, err := pub.List(context.Background(), attemptID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.False(t, events[0].Timestamp.IsZero())
}

func TestStoreFiltersByAttempt(t *testing.T) {
	store := NewInMemoryStore()
	a, b := id.NewAttemptID(), id.NewAttemptID()

	require.NoError(t, store.Append(context.Background(), Event{AttemptID: a, Action: ActionAttemptStarted}))
	require.NoError(t, store.Append(context.Background(), Event{AttemptID: b, Action: ActionAttemptStarted}))
	require.NoError(t, store.Append(context.Background(), Event{AttemptID: a, Action: ActionIdentityVerified}))

	events, err := store.ListByAttempt(context.Background(), a)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, ActionIdentityVerified, events[1].Action)
}

func TestWorkerDrainsInbox(t *testing.T) {
	store := NewInMemoryStore()
	inbox := make(chan Event, 8)
	worker := NewWorker(store, inbox)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- worker.Run(ctx) }()

	attemptID := id.NewAttemptID()
	pub := NewAsyncPublisher(inbox)
	require.NoError(t, pub.Emit(context.Background(), Event{AttemptID: attemptID, Action: ActionAttemptStarted}))

	require.Eventually(t, func() bool {
		events, err := store.ListByAttempt(context.Background(), attemptID)
		return err == nil && len(events) == 1
	}, time.Second, 10*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
