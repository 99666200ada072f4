package commands

import (
	"context"
	"fmt"
	"strings"
	"testing"
)

type fakeLoop struct {
	thinking map[string]bool
	plan     map[string]bool
}

func newFakeLoop() *fakeLoop {
	return &fakeLoop{thinking: map[string]bool{}, plan: map[string]bool{}}
}

func (f *fakeLoop) Stats() map[string]any { return map[string]any{"model": "mock/test"} }

func (f *fakeLoop) SetThinking(sid string, on bool) { f.thinking[sid] = on }
func (f *fakeLoop) SetPlan(sid string, on bool)     { f.plan[sid] = on }
func (f *fakeLoop) Modes(sid string) (bool, bool)   { return f.thinking[sid], f.plan[sid] }

type fakeLog struct {
	cleared []string
	err     error
}

func (f *fakeLog) Clear(sid string) error {
	f.cleared = append(f.cleared, sid)
	return f.err
}

type fakeCompactor struct {
	forced int
	err    error
}

func (f *fakeCompactor) Force(context.Context, string) error {
	f.forced++
	return f.err
}

func buildRouter(t *testing.T) (*Router, *fakeLoop, *fakeLog, *fakeCompactor) {
	t.Helper()
	loop := newFakeLoop()
	log := &fakeLog{}
	comp := &fakeCompactor{}
	r := NewRouter(nil)
	RegisterBuiltin(r, Deps{Loop: loop, Store: log, Compactor: comp})
	return r, loop, log, comp
}

func TestNonSlashTextNotHandled(t *testing.T) {
	r, _, _, _ := buildRouter(t)
	if _, handled := r.Dispatch(context.Background(), "s1", "what time is it?"); handled {
		t.Fatal("plain text must fall through to the orchestrator")
	}
}

func TestUnknownCommandNotHandled(t *testing.T) {
	r, _, _, _ := buildRouter(t)
	if _, handled := r.Dispatch(context.Background(), "s1", "/frobnicate now"); handled {
		t.Fatal("unknown command should fall through")
	}
}

func TestNewClearsSession(t *testing.T) {
	r, _, log, _ := buildRouter(t)
	reply, handled := r.Dispatch(context.Background(), "s7", "/new")
	if !handled || !strings.Contains(reply, "new conversation") {
		t.Fatalf("reply = %q handled = %v", reply, handled)
	}
	if len(log.cleared) != 1 || log.cleared[0] != "s7" {
		t.Fatalf("cleared = %v", log.cleared)
	}
}

func TestCompactForcesCompaction(t *testing.T) {
	r, _, _, comp := buildRouter(t)
	reply, handled := r.Dispatch(context.Background(), "s1", "/compact")
	if !handled || comp.forced != 1 {
		t.Fatalf("reply = %q forced = %d", reply, comp.forced)
	}
}

func TestCompactErrorSurfaced(t *testing.T) {
	r, _, _, comp := buildRouter(t)
	comp.err = fmt.Errorf("nothing to compact")
	reply, handled := r.Dispatch(context.Background(), "s1", "/compact")
	if !handled || !strings.Contains(reply, "nothing to compact") {
		t.Fatalf("reply = %q", reply)
	}
}

func TestThinkToggle(t *testing.T) {
	r, loop, _, _ := buildRouter(t)

	reply, handled := r.Dispatch(context.Background(), "s1", "/think")
	if !handled || !strings.Contains(reply, "on") || !loop.thinking["s1"] {
		t.Fatalf("first toggle: reply=%q thinking=%v", reply, loop.thinking["s1"])
	}

	reply, _ = r.Dispatch(context.Background(), "s1", "/think off")
	if !strings.Contains(reply, "off") || loop.thinking["s1"] {
		t.Fatalf("explicit off: reply=%q thinking=%v", reply, loop.thinking["s1"])
	}

	reply, handled = r.Dispatch(context.Background(), "s1", "/think maybe")
	if !handled || !strings.Contains(reply, "failed") {
		t.Fatalf("bad argument should error: %q", reply)
	}
}

func TestPlanToggleIndependentOfThink(t *testing.T) {
	r, loop, _, _ := buildRouter(t)
	r.Dispatch(context.Background(), "s1", "/plan on")
	if loop.thinking["s1"] || !loop.plan["s1"] {
		t.Fatalf("modes crossed: thinking=%v plan=%v", loop.thinking["s1"], loop.plan["s1"])
	}
}

func TestStatusIncludesModes(t *testing.T) {
	r, loop, _, _ := buildRouter(t)
	loop.SetThinking("s1", true)
	reply, handled := r.Dispatch(context.Background(), "s1", "/status")
	if !handled {
		t.Fatal("not handled")
	}
	for _, want := range []string{"model: mock/test", "thinking_mode: true", "plan_mode: false"} {
		if !strings.Contains(reply, want) {
			t.Errorf("status missing %q: %q", want, reply)
		}
	}
}

func TestHelpListsCommands(t *testing.T) {
	r, _, _, _ := buildRouter(t)
	reply, handled := r.Dispatch(context.Background(), "s1", "/help")
	if !handled {
		t.Fatal("not handled")
	}
	for _, name := range []string{"/new", "/compact", "/status", "/think", "/plan", "/help"} {
		if !strings.Contains(reply, name) {
			t.Errorf("help missing %s", name)
		}
	}
}

func TestCaseInsensitiveMatch(t *testing.T) {
	r, _, log, _ := buildRouter(t)
	if _, handled := r.Dispatch(context.Background(), "s1", "/NEW"); !handled {
		t.Fatal("command match should be case-insensitive")
	}
	if len(log.cleared) != 1 {
		t.Fatalf("cleared = %v", log.cleared)
	}
}

func TestRegistrationOrderWins(t *testing.T) {
	r := NewRouter(nil)
	r.Register(
		&Command{Name: "x", Run: func(context.Context, string, string) (string, error) { return "first", nil }},
		&Command{Name: "x", Run: func(context.Context, string, string) (string, error) { return "second", nil }},
	)
	reply, _ := r.Dispatch(context.Background(), "s1", "/x")
	if reply != "first" {
		t.Fatalf("reply = %q", reply)
	}
}
