package memory

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"testing"
)

// backends runs a subtest against both store implementations.
func backends(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Helper()
	t.Run("file", func(t *testing.T) {
		s, err := OpenFileStore(filepath.Join(t.TempDir(), "memory.json"))
		if err != nil {
			t.Fatalf("open: %v", err)
		}
		defer s.Close()
		fn(t, s)
	})
	t.Run("sqlite", func(t *testing.T) {
		s, err := OpenSQLite(filepath.Join(t.TempDir(), "memory.db"))
		if err != nil {
			t.Fatalf("open: %v", err)
		}
		defer s.Close()
		fn(t, s)
	})
}

func TestAppendPreservesOrder(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		for i := 0; i < 20; i++ {
			if err := s.Append("s", Turn{Role: RoleUser, Content: fmt.Sprintf("turn %d", i)}); err != nil {
				t.Fatalf("append %d: %v", i, err)
			}
		}

		turns := s.ReadAll("s")
		if len(turns) != 20 {
			t.Fatalf("got %d turns, want 20", len(turns))
		}
		for i, turn := range turns {
			if want := fmt.Sprintf("turn %d", i); turn.Content != want {
				t.Errorf("turn[%d] = %q, want %q", i, turn.Content, want)
			}
		}
	})
}

func TestTimestampsStrictlyIncreasing(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		// Appending faster than millisecond resolution must still yield
		// strictly increasing timestamps.
		for i := 0; i < 50; i++ {
			s.Append("s", Turn{Role: RoleUser, Content: "x"})
		}

		turns := s.ReadAll("s")
		for i := 1; i < len(turns); i++ {
			if turns[i].Timestamp <= turns[i-1].Timestamp {
				t.Fatalf("timestamp[%d]=%d not after timestamp[%d]=%d",
					i, turns[i].Timestamp, i-1, turns[i-1].Timestamp)
			}
		}
	})
}

func TestExplicitTimestampBumpedPastLast(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		s.Append("s", Turn{Role: RoleUser, Content: "a", Timestamp: 1000})
		s.Append("s", Turn{Role: RoleUser, Content: "b", Timestamp: 500})

		turns := s.ReadAll("s")
		if turns[1].Timestamp != 1001 {
			t.Fatalf("stale timestamp bumped to %d, want 1001", turns[1].Timestamp)
		}
	})
}

func TestReadWindowed(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		for i := 0; i < 10; i++ {
			s.Append("s", Turn{Role: RoleUser, Content: fmt.Sprintf("turn %d", i)})
		}

		tail := s.ReadWindowed("s", 3)
		if len(tail) != 3 || tail[0].Content != "turn 7" || tail[2].Content != "turn 9" {
			t.Fatalf("window = %+v", tail)
		}
		if all := s.ReadWindowed("s", 0); len(all) != 10 {
			t.Fatalf("n<=0 returned %d turns, want 10", len(all))
		}
		if all := s.ReadWindowed("s", 50); len(all) != 10 {
			t.Fatalf("oversized window returned %d turns, want 10", len(all))
		}
	})
}

func TestSessionsIsolated(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		s.Append("a", Turn{Role: RoleUser, Content: "for a"})
		s.Append("b", Turn{Role: RoleUser, Content: "for b"})

		if got := s.ReadAll("a"); len(got) != 1 || got[0].Content != "for a" {
			t.Fatalf("session a = %+v", got)
		}
		if ids := s.Sessions(); len(ids) != 2 {
			t.Fatalf("sessions = %v", ids)
		}
	})
}

func TestClearRemovesSession(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		s.Append("a", Turn{Role: RoleUser, Content: "x"})
		s.Append("b", Turn{Role: RoleUser, Content: "y"})

		if err := s.Clear("a"); err != nil {
			t.Fatalf("clear: %v", err)
		}
		if got := s.ReadAll("a"); len(got) != 0 {
			t.Fatalf("cleared session still has %d turns", len(got))
		}
		if got := s.ReadAll("b"); len(got) != 1 {
			t.Fatalf("other session lost turns: %d", len(got))
		}
	})
}

func TestFileStoreSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory.json")
	s, err := OpenFileStore(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	s.Append("s", Turn{Role: RoleUser, Content: "persisted"})
	s.Append("s", CompactionMarker("summary", 42, 7))
	s.Close()

	s2, err := OpenFileStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()

	turns := s2.ReadAll("s")
	if len(turns) != 2 || turns[0].Content != "persisted" {
		t.Fatalf("reloaded turns = %+v", turns)
	}
	// Metadata numbers round-trip through JSON as float64; the accessors
	// must still decode them.
	if !turns[1].IsCompactionMarker() || turns[1].CompactionUpto() != 42 || turns[1].CompactionCount() != 7 {
		t.Fatalf("marker did not survive reload: %+v", turns[1])
	}
}

func TestSQLiteSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory.db")
	s, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	s.Append("s", Turn{Role: RoleUser, Content: "persisted"})
	s.Close()

	s2, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()

	if turns := s2.ReadAll("s"); len(turns) != 1 || turns[0].Content != "persisted" {
		t.Fatalf("reloaded turns = %+v", turns)
	}
}

func TestFilterCompactedNoMarker(t *testing.T) {
	turns := []Turn{
		{Role: RoleUser, Content: "a", Timestamp: 1},
		{Role: RoleAssistant, Content: "b", Timestamp: 2},
	}
	if got := FilterCompacted(turns); len(got) != 2 {
		t.Fatalf("got %d turns, want passthrough", len(got))
	}
}

func TestFilterCompactedHidesOldTurns(t *testing.T) {
	turns := []Turn{
		{Role: RoleUser, Content: "old 1", Timestamp: 1},
		{Role: RoleUser, Content: "old 2", Timestamp: 2},
		CompactionMarker("summary", 2, 2),
		{Role: RoleUser, Content: "new", Timestamp: 3},
	}

	got := FilterCompacted(turns)
	if len(got) != 2 {
		t.Fatalf("got %d turns, want marker + 1", len(got))
	}
	if !got[0].IsCompactionMarker() || got[0].Content != "summary" {
		t.Fatalf("first turn = %+v, want marker", got[0])
	}
	if got[1].Content != "new" {
		t.Fatalf("second turn = %+v", got[1])
	}
}

func TestFilterCompactedKeepsLatestMarkerOnly(t *testing.T) {
	turns := []Turn{
		{Role: RoleUser, Content: "a", Timestamp: 1},
		CompactionMarker("first summary", 1, 1),
		{Role: RoleUser, Content: "b", Timestamp: 2},
		CompactionMarker("second summary", 2, 2),
		{Role: RoleUser, Content: "c", Timestamp: 3},
	}

	got := FilterCompacted(turns)
	if len(got) != 2 {
		t.Fatalf("got %d turns: %+v", len(got), got)
	}
	if got[0].Content != "second summary" {
		t.Fatalf("surviving marker = %q, want second", got[0].Content)
	}
	if got[1].Content != "c" {
		t.Fatalf("surviving turn = %q, want c", got[1].Content)
	}
}

func TestOpenUnknownBackend(t *testing.T) {
	if _, err := Open("bolt", t.TempDir(), "", slog.Default()); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}
