package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stewardhq/steward/internal/constants"
	"github.com/stewardhq/steward/internal/domain"
)

func TestBuildSystemPrompt(t *testing.T) {
	t.Run("includes task fields and type hint", func(t *testing.T) {
		prompt := buildSystemPrompt(&domain.Task{
			TaskType:    constants.TaskTypeScheduleMeeting,
			Title:       "Quarterly review",
			Description: "Get everyone in one room",
		})

		assert.Contains(t, prompt, "schedule_meeting")
		assert.Contains(t, prompt, "Quarterly review")
		assert.Contains(t, prompt, "Get everyone in one room")
		assert.Contains(t, prompt, "calendar")
		assert.Contains(t, prompt, `"action": "request_input"`)
		assert.Contains(t, prompt, `"action": "complete"`)
	})

	t.Run("unknown task type gets no hint", func(t *testing.T) {
		prompt := buildSystemPrompt(&domain.Task{
			TaskType: constants.TaskType("bespoke_thing"),
			Title:    "Do the thing",
		})

		assert.Contains(t, prompt, "bespoke_thing")
		assert.NotContains(t, prompt, "Focus on")
	})

	t.Run("empty description omitted", func(t *testing.T) {
		prompt := buildSystemPrompt(&domain.Task{
			TaskType: constants.TaskTypeResearch,
			Title:    "Find prior art",
		})

		assert.NotContains(t, prompt, "Task description:")
	})
}

func TestBuildContextMessage(t *testing.T) {
	t.Run("renders context as json", func(t *testing.T) {
		msg := buildContextMessage(&domain.Task{
			Context: domain.Document{"attendee": "dana@acme.test"},
		})

		assert.Contains(t, msg, "Current task context:")
		assert.Contains(t, msg, `"attendee": "dana@acme.test"`)
	})

	t.Run("empty context yields empty message", func(t *testing.T) {
		assert.Empty(t, buildContextMessage(&domain.Task{}))
		assert.Empty(t, buildContextMessage(&domain.Task{Context: domain.Document{}}))
	})
}
