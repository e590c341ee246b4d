package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/husaynirfan1/lukisan-api/internal/domain"
	"github.com/husaynirfan1/lukisan-api/internal/store"
)

func TestBuildPatchAssignments(t *testing.T) {
	t.Parallel()

	t.Run("single field", func(t *testing.T) {
		t.Parallel()

		assignments, args := buildPatchAssignments(store.TaskPatch{
			Progress: store.IntPtr(40),
		})

		assert.Equal(t, []string{"progress = $1"}, assignments)
		assert.Equal(t, []any{40}, args)
	})

	t.Run("all fields keep declaration order", func(t *testing.T) {
		t.Parallel()

		assignments, args := buildPatchAssignments(store.TaskPatch{
			RemoteTaskID: store.StringPtr("rt-1"),
			Status:       store.StatusPtr(domain.TaskStatusProcessing),
			Progress:     store.IntPtr(40),
			ResultURL:    store.StringPtr("https://cdn/x.mp4"),
			ErrorMessage: store.StringPtr("oops"),
			AttemptCount: store.IntPtr(2),
		})

		assert.Equal(t, []string{
			"remote_task_id = $1",
			"status = $2",
			"progress = $3",
			"result_url = $4",
			"error_message = $5",
			"attempt_count = $6",
		}, assignments)
		require.Len(t, args, 6)
		assert.Equal(t, "rt-1", args[0])
		assert.Equal(t, domain.TaskStatusProcessing, args[1])
		assert.Equal(t, 40, args[2])
		assert.Equal(t, "https://cdn/x.mp4", args[3])
		assert.Equal(t, "oops", args[4])
		assert.Equal(t, 2, args[5])
	})

	t.Run("explicit empty strings become NULL", func(t *testing.T) {
		t.Parallel()

		_, args := buildPatchAssignments(store.TaskPatch{
			ResultURL:    store.StringPtr(""),
			ErrorMessage: store.StringPtr(""),
		})

		require.Len(t, args, 2)
		assert.Nil(t, args[0], "clearing result_url must write NULL, not empty string")
		assert.Nil(t, args[1], "clearing error_message must write NULL, not empty string")
	})

	t.Run("empty patch yields nothing", func(t *testing.T) {
		t.Parallel()

		assignments, args := buildPatchAssignments(store.TaskPatch{})
		assert.Empty(t, assignments)
		assert.Empty(t, args)
	})
}

func TestNullIfEmpty(t *testing.T) {
	t.Parallel()

	assert.Nil(t, nullIfEmpty(""))
	assert.Equal(t, "x", nullIfEmpty("x"))
}
