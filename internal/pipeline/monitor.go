package pipeline

import "log/slog"

// Monitor detects completed cleaning sessions from a stream of polled
// snapshots. It is edge-triggered on the active→idle boundary so a session is
// reported once, not on every idle poll that follows it. Not safe for
// concurrent use; the poller calls Observe sequentially.
type Monitor struct {
	log *slog.Logger

	previous     map[string]Snapshot
	startBattery map[string]int
}

func NewMonitor(log *slog.Logger) *Monitor {
	return &Monitor{
		log:          log,
		previous:     make(map[string]Snapshot),
		startBattery: make(map[string]int),
	}
}

// Observe feeds one snapshot into the monitor. It returns a SessionEvent when
// the previous snapshot for the device classified as active and the current
// one classifies as idle, and nil otherwise. The previous snapshot is always
// replaced, regardless of classification.
func (m *Monitor) Observe(snap Snapshot) *SessionEvent {
	current := Classify(snap.State)

	if current == ClassActive {
		if _, ok := m.startBattery[snap.DeviceID]; !ok {
			m.startBattery[snap.DeviceID] = snap.Battery
			m.log.Info("cleaning started",
				"device", snap.DeviceName,
				"battery", snap.Battery)
		}
	}

	var event *SessionEvent
	prev, hasPrev := m.previous[snap.DeviceID]
	if hasPrev && Classify(prev.State) == ClassActive && current == ClassIdle {
		event = m.completeSession(snap)
	}

	m.previous[snap.DeviceID] = snap
	return event
}

func (m *Monitor) completeSession(snap Snapshot) *SessionEvent {
	event := &SessionEvent{
		DeviceID:    snap.DeviceID,
		DeviceName:  snap.DeviceName,
		DurationMin: snap.CleanTime,
		AreaSquareM: snap.CleanArea,
		BatteryEnd:  snap.Battery,
		FanPower:    snap.FanPower,
		MopMode:     snap.MopMode,
		WaterLevel:  snap.WaterLevel,
		ErrorCode:   snap.ErrorCode,
	}
	if start, ok := m.startBattery[snap.DeviceID]; ok {
		event.BatteryStart = &start
		delete(m.startBattery, snap.DeviceID)
	}
	m.log.Info("cleaning completed",
		"device", snap.DeviceName,
		"minutes", snap.CleanTime,
		"area_m2", snap.CleanArea)
	return event
}
