package memory

import "time"

// stampTurn assigns a timestamp if the turn has none and bumps it past
// last so per-session ordering stays strict.
func stampTurn(t Turn, last int64) Turn {
	if t.Timestamp == 0 {
		t.Timestamp = time.Now().UnixMilli()
	}
	if t.Timestamp <= last {
		t.Timestamp = last + 1
	}
	return t
}
