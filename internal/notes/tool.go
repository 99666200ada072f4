package notes

import (
	"context"
	"fmt"
	"strings"

	"github.com/tindale/reeve/internal/tools"
)

// RegisterTools exposes save_note, list_notes, and delete_note.
func RegisterTools(r *tools.Registry, s *Store) {
	r.Register(&tools.Tool{
		Name:        "save_note",
		Description: "Save a short fact to long-term memory. Saved notes appear in your context in every future conversation. Use for durable facts about the user, not transient task state.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"text": map[string]any{
					"type":        "string",
					"description": "The fact to remember, one or two sentences.",
				},
			},
			"required": []string{"text"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			text, _ := args["text"].(string)
			n, err := s.Save(text, tools.SessionIDFromContext(ctx))
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("Saved note %s.", shortID(n.ID)), nil
		},
	})

	r.Register(&tools.Tool{
		Name:        "list_notes",
		Description: "List all long-term notes with their IDs.",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			all := s.List()
			if len(all) == 0 {
				return "No notes saved.", nil
			}
			var sb strings.Builder
			fmt.Fprintf(&sb, "%d note(s):\n", len(all))
			for _, n := range all {
				fmt.Fprintf(&sb, "- [%s] %s\n", shortID(n.ID), n.Text)
			}
			return sb.String(), nil
		},
	})

	r.Register(&tools.Tool{
		Name:        "delete_note",
		Description: "Delete a long-term note by ID (full ID or prefix from list_notes).",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"id": map[string]any{
					"type":        "string",
					"description": "The note ID to delete.",
				},
			},
			"required": []string{"id"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			id, _ := args["id"].(string)
			if id == "" {
				return "", fmt.Errorf("id is required")
			}
			if err := s.Delete(id); err != nil {
				return "", err
			}
			return "Note deleted.", nil
		},
	})
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
