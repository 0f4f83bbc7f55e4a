package syscmdservice

import (
	"encoding/json"
	"fmt"

	"github.com/dbcalm/dbcalm/internal/db"
)

// decodeSchedules converts the "schedules" bus arg — a []any of
// map[string]any produced by the request's JSON round-trip — back into
// []db.Schedule via a re-marshal, rather than hand-walking the map.
func decodeSchedules(raw any) ([]db.Schedule, error) {
	if raw == nil {
		return nil, fmt.Errorf("syscmdservice: missing schedules arg")
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("syscmdservice: re-marshaling schedules arg: %w", err)
	}
	var schedules []db.Schedule
	if err := json.Unmarshal(b, &schedules); err != nil {
		return nil, fmt.Errorf("syscmdservice: decoding schedules: %w", err)
	}
	return schedules, nil
}
