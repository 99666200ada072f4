package jsonstore

import (
	"path/filepath"
	"testing"
)

type record struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestPutGetDelete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.json")
	s, err := Open[record](path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	if err := s.Put("a", record{Name: "first", Count: 1}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	got, ok := s.Get("a")
	if !ok || got.Name != "first" {
		t.Errorf("Get = %+v, %v", got, ok)
	}

	if err := s.Delete("a"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, ok := s.Get("a"); ok {
		t.Error("record survived delete")
	}
	if err := s.Delete("missing"); err != nil {
		t.Errorf("deleting missing id errored: %v", err)
	}
}

func TestPersistenceAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.json")

	s1, err := Open[record](path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	s1.Put("x", record{Name: "kept", Count: 7})
	s1.Put("y", record{Name: "also", Count: 8})

	s2, err := Open[record](path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	if s2.Len() != 2 {
		t.Fatalf("Len = %d, want 2", s2.Len())
	}
	got, _ := s2.Get("x")
	if got.Count != 7 {
		t.Errorf("reloaded record = %+v", got)
	}

	ids := s2.IDs()
	if len(ids) != 2 || ids[0] != "x" || ids[1] != "y" {
		t.Errorf("IDs = %v", ids)
	}
}

func TestOpenMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "dir", "new.json")
	s, err := Open[record](path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if s.Len() != 0 {
		t.Errorf("new store not empty")
	}
}
