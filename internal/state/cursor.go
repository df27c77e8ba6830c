package state

import "time"

// Cursor is the persisted progress marker for one device. It is overwritten,
// never merged: every successful commit replaces the whole record.
type Cursor struct {
	LastCleanCount   int       `json:"last_clean_count"`
	LastRecordStart  time.Time `json:"last_record_start,omitzero"`
	LastTotalArea    float64   `json:"last_total_area"`
	LastTotalTimeMin int       `json:"last_total_time"`
	UpdatedAt        time.Time `json:"last_updated"`
}
