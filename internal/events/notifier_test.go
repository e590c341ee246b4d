package events

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/husaynirfan1/lukisan-api/internal/domain"
)

func newTestNotifier() *Notifier {
	return NewNotifier(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestNotifier_DeliversInPublishOrder(t *testing.T) {
	t.Parallel()

	notifier := newTestNotifier()
	taskID := uuid.New()

	var received []int
	unsubscribe := notifier.Subscribe(taskID, func(e TaskEvent) {
		received = append(received, e.Progress)
	})
	defer unsubscribe()

	for _, progress := range []int{10, 40, 95, 100} {
		notifier.Publish(context.Background(), TaskEvent{
			TaskID:   taskID,
			Status:   domain.TaskStatusProcessing,
			Progress: progress,
		})
	}

	assert.Equal(t, []int{10, 40, 95, 100}, received)
}

func TestNotifier_OnlyMatchingTaskReceives(t *testing.T) {
	t.Parallel()

	notifier := newTestNotifier()
	taskA := uuid.New()
	taskB := uuid.New()

	var gotA, gotB int
	defer notifier.Subscribe(taskA, func(TaskEvent) { gotA++ })()
	defer notifier.Subscribe(taskB, func(TaskEvent) { gotB++ })()

	notifier.Publish(context.Background(), TaskEvent{TaskID: taskA})
	notifier.Publish(context.Background(), TaskEvent{TaskID: taskA})
	notifier.Publish(context.Background(), TaskEvent{TaskID: taskB})

	assert.Equal(t, 2, gotA)
	assert.Equal(t, 1, gotB)
}

func TestNotifier_PublishWithoutSubscribersIsHarmless(t *testing.T) {
	t.Parallel()

	notifier := newTestNotifier()

	assert.NotPanics(t, func() {
		notifier.Publish(context.Background(), TaskEvent{TaskID: uuid.New()})
	})
}

func TestNotifier_UnsubscribeStopsDeliveryAndIsIdempotent(t *testing.T) {
	t.Parallel()

	notifier := newTestNotifier()
	taskID := uuid.New()

	var got int
	unsubscribe := notifier.Subscribe(taskID, func(TaskEvent) { got++ })

	notifier.Publish(context.Background(), TaskEvent{TaskID: taskID})
	unsubscribe()
	unsubscribe() // second call must be a no-op
	notifier.Publish(context.Background(), TaskEvent{TaskID: taskID})

	assert.Equal(t, 1, got)
}

func TestNotifier_ConcurrentSubscribersAllReceive(t *testing.T) {
	t.Parallel()

	notifier := newTestNotifier()
	taskID := uuid.New()

	const subscribers = 8
	received := make(chan struct{}, subscribers)

	for i := 0; i < subscribers; i++ {
		defer notifier.Subscribe(taskID, func(TaskEvent) {
			received <- struct{}{}
		})()
	}

	notifier.Publish(context.Background(), TaskEvent{TaskID: taskID})

	for i := 0; i < subscribers; i++ {
		select {
		case <-received:
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d never received the event", i)
		}
	}
}

func TestEventFromTask(t *testing.T) {
	t.Parallel()

	task, err := domain.NewTask(uuid.New(), domain.TaskKindTextToVideo, "prompt")
	require.NoError(t, err)
	task.Status = domain.TaskStatusCompleted
	task.Progress = 100
	task.ResultURL = "https://cdn/a.mp4"

	event := EventFromTask(task)

	assert.Equal(t, task.ID, event.TaskID)
	assert.Equal(t, task.OwnerID, event.OwnerID)
	assert.Equal(t, domain.TaskStatusCompleted, event.Status)
	assert.Equal(t, 100, event.Progress)
	assert.Equal(t, "https://cdn/a.mp4", event.ResultURL)
	assert.Equal(t, task.UpdatedAt, event.At)
}
