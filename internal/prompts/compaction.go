package prompts

import "fmt"

// compactionTemplate asks the model to condense older conversation
// turns into a factual summary. The single format verb is the
// serialized conversation text (role-labeled, pre-truncated by the
// caller).
const compactionTemplate = `Condense the following conversation into 6-12 factual bullet points. Cover, in this order:
1. The user's goal
2. Decisions made or preferences expressed
3. Actions taken (tool calls, their outcomes)
4. Open tasks or unresolved questions

State facts only. No commentary, no speculation, no preamble.

Conversation:
%s

Summary:`

// CompactionPrompt returns the interpolated summarization prompt.
func CompactionPrompt(conversationText string) string {
	return fmt.Sprintf(compactionTemplate, conversationText)
}
