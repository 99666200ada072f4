package prompts

import "fmt"

// PauseNotice is delivered when the model stops with empty content
// after executing tools, leaving automation in an ambiguous state.
const PauseNotice = `Automation paused without a final message. Send "continue" to resume.`

// ContinuePrompt replaces the user's original text when a new batch
// starts after a step-limit, so the model picks up where it left off.
const ContinuePrompt = "(Continuing execution...)"

// OriginalGoalLabel prefixes the pinned first user turn when older
// history is windowed out.
const OriginalGoalLabel = "Original Goal"

// SkippedMessages is the synthetic system turn standing in for turns
// dropped between the pinned goal and the recent window.
func SkippedMessages(n int) string {
	return fmt.Sprintf("(Skipped %d messages)", n)
}

// TruncatedSuffix marks content cut down to the per-turn budget.
func TruncatedSuffix(droppedChars int) string {
	return fmt.Sprintf(" [Truncated %d chars]", droppedChars)
}

// AutoContinueNotice tells the user a new batch is starting
// automatically.
func AutoContinueNotice(batch, max int) string {
	return fmt.Sprintf("Auto-continuing (batch %d of %d)...", batch, max)
}

// StepLimitNotice reports that the loop stopped at its configured
// turn limit with auto-continue exhausted.
func StepLimitNotice(limit int) string {
	return fmt.Sprintf("Stopped after reaching the step limit (%d turns). Send \"continue\" to keep going.", limit)
}

// EmptyResponseFallback is the user-facing message when the model
// produces no content and no tools were executed.
const EmptyResponseFallback = "I processed your request but wasn't able to compose a response. Please try again."
