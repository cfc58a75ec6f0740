package journal

import (
	"encoding/json"
	"fmt"
)

// marshalMarkers converts marker ids to JSON TEXT. A nil slice is stored as
// "[]" so the column never holds null.
func marshalMarkers(ids []int) (string, error) {
	if ids == nil {
		ids = []int{}
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return "", fmt.Errorf("marshal markers: %w", err)
	}
	return string(data), nil
}

// unmarshalMarkers parses JSON TEXT from the database.
func unmarshalMarkers(s string) ([]int, error) {
	var ids []int
	if err := json.Unmarshal([]byte(s), &ids); err != nil {
		return nil, fmt.Errorf("unmarshal markers: %w", err)
	}
	if ids == nil {
		ids = []int{}
	}
	return ids, nil
}
