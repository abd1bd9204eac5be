package cart

import (
	"encoding/json"
	"fmt"
	"time"
)

// Snapshot is the persisted form of a cart. Totals are not stored.
type Snapshot struct {
	ID        string     `json:"id"`
	Items     []LineItem `json:"items"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Snapshot captures the cart's lines.
func (c *Cart) Snapshot() Snapshot {
	return Snapshot{ID: c.id, Items: c.Items(), UpdatedAt: c.updatedAt}
}

// Restore rebuilds a cart from a snapshot. Lines are re-added through Add so
// duplicates merge and quantities are clamped; lines that no longer satisfy
// the invariants are dropped.
func Restore(s Snapshot, rules Rules) *Cart {
	c := New(s.ID, rules)
	for _, item := range s.Items {
		_ = c.Add(item)
	}
	c.updatedAt = s.UpdatedAt
	return c
}

// MarshalSnapshot encodes a snapshot as JSON.
func MarshalSnapshot(s Snapshot) ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal cart snapshot: %w", err)
	}
	return data, nil
}

// UnmarshalSnapshot decodes a snapshot from JSON.
func UnmarshalSnapshot(data []byte) (Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return Snapshot{}, fmt.Errorf("unmarshal cart snapshot: %w", err)
	}
	return s, nil
}
