package pipeline

import (
	"log/slog"
	"time"

	"github.com/nkratastr/roborock-data-pipeline/internal/state"
)

// CursorStore is the persistence the tracker needs: read one cursor, or
// overwrite one and durably rewrite the table.
type CursorStore interface {
	Cursor(deviceID string) (state.Cursor, bool)
	Put(deviceID string, cursor state.Cursor) error
}

// Tracker decides what is new since the last successful commit. The primary
// signal is the device's lifetime clean counter; record-level novelty falls
// back to comparing history start timestamps against the cursor.
type Tracker struct {
	log   *slog.Logger
	store CursorStore

	// OnRegression, when set, is called once per detected counter regression.
	OnRegression func(deviceID string)
}

func NewTracker(store CursorStore, log *slog.Logger) *Tracker {
	return &Tracker{log: log, store: store}
}

// HasNew reports whether currentCount is ahead of the stored cursor. A device
// with no cursor yet compares against zero.
func (t *Tracker) HasNew(deviceID string, currentCount int) bool {
	return t.NewCount(deviceID, currentCount) > 0
}

// NewCount returns how many cleanings happened since the last commit, never
// negative. A counter regression (factory reset) is reported as zero.
func (t *Tracker) NewCount(deviceID string, currentCount int) int {
	last := 0
	if cursor, ok := t.store.Cursor(deviceID); ok {
		last = cursor.LastCleanCount
	}
	if currentCount < last {
		t.log.Warn("lifetime clean counter went backwards",
			"device", deviceID,
			"stored", last,
			"current", currentCount)
		if t.OnRegression != nil {
			t.OnRegression(deviceID)
		}
		return 0
	}
	return currentCount - last
}

// Commit overwrites the count cursor for a device and persists the table.
// The record-sync timestamp is carried over untouched; the two cursors advance
// independently.
func (t *Tracker) Commit(deviceID string, currentCount int, totalArea float64, totalTimeMin int) error {
	cursor, _ := t.store.Cursor(deviceID)
	cursor.LastCleanCount = currentCount
	cursor.LastTotalArea = totalArea
	cursor.LastTotalTimeMin = totalTimeMin
	return t.store.Put(deviceID, cursor)
}

// SelectNewRecords filters a newest-first history page down to the records not
// yet delivered, returned oldest-first for delivery. With no prior timestamp
// only the single most recent record is selected, so a first run does not bulk
// import the device's entire history.
func (t *Tracker) SelectNewRecords(deviceID string, fetched []HistoryRecord) []HistoryRecord {
	if len(fetched) == 0 {
		return nil
	}

	var lastSeen time.Time
	if cursor, ok := t.store.Cursor(deviceID); ok {
		lastSeen = cursor.LastRecordStart
	}

	var selected []HistoryRecord
	if lastSeen.IsZero() {
		selected = []HistoryRecord{fetched[0]}
	} else {
		for _, record := range fetched {
			if record.Start.After(lastSeen) {
				selected = append(selected, record)
			}
		}
	}

	// Reverse fetch order so delivery runs oldest-first.
	for i, j := 0, len(selected)-1; i < j; i, j = i+1, j-1 {
		selected[i], selected[j] = selected[j], selected[i]
	}
	return selected
}

// CommitRecords advances the record cursor to the newest delivered-or-attempted
// record. Count fields are carried over untouched.
func (t *Tracker) CommitRecords(deviceID string, newestStart time.Time) error {
	cursor, _ := t.store.Cursor(deviceID)
	cursor.LastRecordStart = newestStart
	return t.store.Put(deviceID, cursor)
}
