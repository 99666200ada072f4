package prompts

import (
	"strings"
	"testing"
	"time"
)

func TestIdentityNameSubstitution(t *testing.T) {
	p := Identity("Reeve")
	if !strings.HasPrefix(p, "You are Reeve,") {
		t.Errorf("identity prompt does not open with the agent name: %q", p[:40])
	}
}

func TestAssembleSkipsEmptySections(t *testing.T) {
	got := Assemble("first", "", "  ", "second")
	want := "first\n\nsecond"
	if got != want {
		t.Errorf("Assemble = %q, want %q", got, want)
	}
}

func TestWorkspaceContextEmpty(t *testing.T) {
	if got := WorkspaceContext("   \n"); got != "" {
		t.Errorf("blank workspace produced %q", got)
	}
	if got := WorkspaceContext("prefer metric units"); !strings.Contains(got, "prefer metric units") {
		t.Errorf("workspace body missing: %q", got)
	}
}

func TestTimeBlock(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 26, 0, 0, time.UTC)
	got := TimeBlock(now)
	if !strings.Contains(got, "Saturday, 14 March 2026 09:26") {
		t.Errorf("TimeBlock = %q", got)
	}
}

func TestNotesBlock(t *testing.T) {
	if got := NotesBlock(nil); got != "" {
		t.Errorf("empty notes produced %q", got)
	}
	got := NotesBlock([]string{"birthday is 12 May", "allergic to shellfish"})
	if !strings.Contains(got, "- birthday is 12 May") || !strings.Contains(got, "- allergic to shellfish") {
		t.Errorf("NotesBlock = %q", got)
	}
}

func TestLoopNotices(t *testing.T) {
	if got := SkippedMessages(42); got != "(Skipped 42 messages)" {
		t.Errorf("SkippedMessages = %q", got)
	}
	if got := TruncatedSuffix(1200); got != " [Truncated 1200 chars]" {
		t.Errorf("TruncatedSuffix = %q", got)
	}
	if got := StepLimitNotice(15); !strings.Contains(got, "15") {
		t.Errorf("StepLimitNotice does not name the limit: %q", got)
	}
}

func TestCompactionPromptEmbedsConversation(t *testing.T) {
	p := CompactionPrompt("user: hello\nassistant: hi")
	if !strings.Contains(p, "user: hello\nassistant: hi") {
		t.Error("conversation text missing from prompt")
	}
	if !strings.Contains(p, "6-12 factual bullet points") {
		t.Error("bullet instruction missing from prompt")
	}
}
