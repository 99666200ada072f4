package usage

import (
	"context"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir() + "/usage.db")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAppendAndTotal(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := s.Append(ctx, Record{
			SessionID:    "s1",
			Model:        "gpt-4o",
			Kind:         "chat",
			InputTokens:  100,
			OutputTokens: 50,
		}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	sum, err := s.Total(ctx)
	if err != nil {
		t.Fatalf("total: %v", err)
	}
	if sum.Calls != 3 || sum.InputTokens != 300 || sum.OutputTokens != 150 {
		t.Fatalf("summary = %+v", sum)
	}
}

func TestSessionIsolation(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	s.Append(ctx, Record{SessionID: "a", Model: "m", Kind: "chat", InputTokens: 10, OutputTokens: 1})
	s.Append(ctx, Record{SessionID: "b", Model: "m", Kind: "chat", InputTokens: 20, OutputTokens: 2})

	sum, err := s.Session(ctx, "a")
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	if sum.Calls != 1 || sum.InputTokens != 10 {
		t.Fatalf("summary = %+v", sum)
	}
}

func TestSinceWindow(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	old := Record{Timestamp: time.Now().Add(-48 * time.Hour), Model: "m", Kind: "chat", InputTokens: 5}
	recent := Record{Model: "m", Kind: "compaction", InputTokens: 7}
	s.Append(ctx, old)
	s.Append(ctx, recent)

	sum, err := s.Since(ctx, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("since: %v", err)
	}
	if sum.Calls != 1 || sum.InputTokens != 7 {
		t.Fatalf("summary = %+v", sum)
	}
}

func TestEmptyStoreTotals(t *testing.T) {
	s := openTestStore(t)
	sum, err := s.Total(context.Background())
	if err != nil {
		t.Fatalf("total: %v", err)
	}
	if sum.Calls != 0 || sum.InputTokens != 0 {
		t.Fatalf("summary = %+v", sum)
	}
}
