package pipeline

import "time"

// Snapshot is one polled read of a device's instantaneous status.
// It is immutable once captured.
type Snapshot struct {
	DeviceID    string
	DeviceName  string
	State       string
	Battery     int
	CleanTime   int     // minutes
	CleanArea   float64 // square meters
	FanPower    string
	MopMode     string
	WaterLevel  string
	ErrorCode   string
	CapturedAt  time.Time
}

// SessionEvent is derived from a completed active→idle transition and is
// emitted exactly once per transition.
type SessionEvent struct {
	DeviceID     string
	DeviceName   string
	DurationMin  int
	AreaSquareM  float64
	BatteryStart *int // nil when monitoring began mid-session
	BatteryEnd   int
	FanPower     string
	MopMode      string
	WaterLevel   string
	ErrorCode    string
}

// HistoryRecord is one historical cleaning entry fetched from the device.
type HistoryRecord struct {
	DeviceID    string
	DeviceName  string
	Start       time.Time
	End         time.Time
	DurationMin int
	AreaSquareM float64
	Complete    bool
	ErrorCode   string
}

// LifetimeSummary carries the device's lifetime counters.
type LifetimeSummary struct {
	CleanCount  int
	AreaSquareM float64
	TimeMin     int
}

// Row converts a session event into an ordered sink row. Column order matches
// the Cleaning_History sheet headers.
func (e SessionEvent) Row(loggedAt time.Time) []any {
	var batteryStart any
	if e.BatteryStart != nil {
		batteryStart = *e.BatteryStart
	}
	return []any{
		loggedAt.Format(time.RFC3339),
		e.DeviceName,
		e.DurationMin,
		e.AreaSquareM,
		batteryStart,
		e.BatteryEnd,
		e.FanPower,
		e.WaterLevel,
		e.MopMode,
		"completed",
		e.ErrorCode,
	}
}

// Row converts a history record into an ordered sink row.
func (r HistoryRecord) Row() []any {
	state := "completed"
	if !r.Complete {
		state = "interrupted"
	}
	return []any{
		r.Start.Format(time.RFC3339),
		r.DeviceName,
		r.DurationMin,
		r.AreaSquareM,
		nil,
		nil,
		"",
		"",
		"",
		state,
		r.ErrorCode,
	}
}

// Row converts a snapshot into an ordered sink row. Column order matches the
// Device_Status sheet headers.
func (s Snapshot) Row() []any {
	return []any{
		s.CapturedAt.Format(time.RFC3339),
		s.DeviceName,
		s.State,
		s.Battery,
		s.FanPower,
		s.WaterLevel,
		s.MopMode,
		s.ErrorCode,
		s.CleanTime,
		s.CleanArea,
	}
}

// CleaningHistoryHeaders is the header row for the session/record sheet.
var CleaningHistoryHeaders = []string{
	"Timestamp",
	"Device Name",
	"Clean Time (min)",
	"Clean Area (m²)",
	"Battery Start (%)",
	"Battery End (%)",
	"Fan Power",
	"Water Level",
	"Mop Mode",
	"State",
	"Error Code",
}

// DeviceStatusHeaders is the header row for the status sheet.
var DeviceStatusHeaders = []string{
	"Timestamp",
	"Device Name",
	"State",
	"Battery (%)",
	"Fan Power",
	"Water Level",
	"Mop Mode",
	"Error Code",
	"Clean Time (min)",
	"Clean Area (m²)",
}

// CleanSummaryHeaders is the header row for the lifetime counter sheet.
var CleanSummaryHeaders = []string{
	"Timestamp",
	"Device Name",
	"Total Cleanings",
	"New Cleanings",
	"Total Area (m²)",
	"Total Time (min)",
}
