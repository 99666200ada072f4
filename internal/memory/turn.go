// Package memory provides the append-only per-session conversation log.
package memory

// Turn roles. The log only ever contains these three.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Metadata keys used by compaction markers.
const (
	metaType      = "type"
	metaUpto      = "upto_timestamp"
	metaCount     = "message_count"
	typeCompaction = "compaction"
)

// Turn is one role-tagged message in a session's conversation log.
// Turns are immutable once appended; Timestamp is unix milliseconds,
// strictly increasing within a session (the store bumps duplicates).
type Turn struct {
	Role      string         `json:"role"`
	Content   string         `json:"content"`
	Timestamp int64          `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// CompactionMarker builds a system turn that summarizes and supersedes
// every non-system turn with Timestamp <= upto. The summary text goes
// in Content; count records how many turns it replaced.
func CompactionMarker(summary string, upto int64, count int) Turn {
	return Turn{
		Role:    RoleSystem,
		Content: summary,
		Metadata: map[string]any{
			metaType:  typeCompaction,
			metaUpto:  upto,
			metaCount: count,
		},
	}
}

// IsCompactionMarker reports whether the turn is a compaction marker.
func (t Turn) IsCompactionMarker() bool {
	if t.Metadata == nil {
		return false
	}
	typ, _ := t.Metadata[metaType].(string)
	return typ == typeCompaction
}

// CompactionUpto returns the marker's cutoff timestamp. Returns 0 for
// non-marker turns. Metadata round-trips through JSON, so the value may
// arrive as int64 or float64.
func (t Turn) CompactionUpto() int64 {
	if t.Metadata == nil {
		return 0
	}
	return asInt64(t.Metadata[metaUpto])
}

// CompactionCount returns how many turns the marker summarized.
func (t Turn) CompactionCount() int {
	if t.Metadata == nil {
		return 0
	}
	return int(asInt64(t.Metadata[metaCount]))
}

func asInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	}
	return 0
}

// FilterCompacted applies the compaction view to a full turn log: only
// the most recent marker survives, followed by every non-marker turn
// newer than its cutoff. Turns at or before the cutoff are visible only
// through the marker itself. With no marker present, the input is
// returned unchanged.
func FilterCompacted(turns []Turn) []Turn {
	latest := -1
	for i, t := range turns {
		if t.IsCompactionMarker() {
			latest = i
		}
	}
	if latest < 0 {
		return turns
	}

	marker := turns[latest]
	upto := marker.CompactionUpto()

	out := make([]Turn, 0, len(turns))
	out = append(out, marker)
	for _, t := range turns {
		if t.IsCompactionMarker() {
			continue
		}
		if t.Timestamp > upto {
			out = append(out, t)
		}
	}
	return out
}
