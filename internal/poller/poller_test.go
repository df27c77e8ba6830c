package poller

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nkratastr/roborock-data-pipeline/internal/pipeline"
	"github.com/nkratastr/roborock-data-pipeline/internal/roborock"
	"github.com/nkratastr/roborock-data-pipeline/internal/sheets"
	"github.com/nkratastr/roborock-data-pipeline/internal/state"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeCollector struct {
	devices    []roborock.Device
	devicesErr error

	snapshots   map[string][]pipeline.Snapshot
	snapshotErr error

	summaries   map[string]pipeline.LifetimeSummary
	records     map[string][]pipeline.HistoryRecord
	consumables map[string]roborock.Consumables
}

func (f *fakeCollector) Devices(_ context.Context) ([]roborock.Device, error) {
	return f.devices, f.devicesErr
}

func (f *fakeCollector) Snapshot(_ context.Context, device roborock.Device) (pipeline.Snapshot, error) {
	if f.snapshotErr != nil {
		return pipeline.Snapshot{}, f.snapshotErr
	}
	queue := f.snapshots[device.ID]
	if len(queue) == 0 {
		return pipeline.Snapshot{}, errors.New("no snapshot queued")
	}
	snap := queue[0]
	f.snapshots[device.ID] = queue[1:]
	return snap, nil
}

func (f *fakeCollector) Consumables(_ context.Context, device roborock.Device) (roborock.Consumables, error) {
	return f.consumables[device.ID], nil
}

func (f *fakeCollector) Summary(_ context.Context, device roborock.Device) (pipeline.LifetimeSummary, error) {
	return f.summaries[device.ID], nil
}

func (f *fakeCollector) Records(_ context.Context, device roborock.Device, _ int) ([]pipeline.HistoryRecord, error) {
	return f.records[device.ID], nil
}

type appendCall struct {
	table string
	row   []any
}

type fakeSink struct {
	calls    []appendCall
	failNext int
}

func (f *fakeSink) Append(_ context.Context, table string, row []any) error {
	if f.failNext > 0 {
		f.failNext--
		return errors.New("sink unavailable")
	}
	f.calls = append(f.calls, appendCall{table: table, row: row})
	return nil
}

type memoryCursorStore struct {
	cursors map[string]state.Cursor
}

func newMemoryCursorStore() *memoryCursorStore {
	return &memoryCursorStore{cursors: make(map[string]state.Cursor)}
}

func (m *memoryCursorStore) Cursor(deviceID string) (state.Cursor, bool) {
	c, ok := m.cursors[deviceID]
	return c, ok
}

func (m *memoryCursorStore) Put(deviceID string, cursor state.Cursor) error {
	m.cursors[deviceID] = cursor
	return nil
}

func newTestPoller(collector *fakeCollector, sink *fakeSink, store *memoryCursorStore) *Poller {
	log := testLogger()
	monitor := pipeline.NewMonitor(log)
	tracker := pipeline.NewTracker(store, log)
	metrics := NewMetrics(prometheus.NewRegistry())
	return New(collector, sink, monitor, tracker, metrics, time.Minute, 10, log)
}

func vacDevice() roborock.Device {
	return roborock.Device{ID: "vac1", Name: "Rocky"}
}

func snap(deviceState string, battery int) pipeline.Snapshot {
	return pipeline.Snapshot{
		DeviceID:   "vac1",
		DeviceName: "Rocky",
		State:      deviceState,
		Battery:    battery,
		CapturedAt: time.Now(),
	}
}

func TestMonitorCycleAppendsSessionRow(t *testing.T) {
	collector := &fakeCollector{
		devices: []roborock.Device{vacDevice()},
		snapshots: map[string][]pipeline.Snapshot{
			"vac1": {snap("cleaning", 95), snap("charging", 80)},
		},
	}
	sink := &fakeSink{}
	p := newTestPoller(collector, sink, newMemoryCursorStore())

	ctx := context.Background()
	if err := p.MonitorCycle(ctx); err != nil {
		t.Fatalf("first cycle: %v", err)
	}
	if len(sink.calls) != 0 {
		t.Fatalf("no session should complete while active: %v", sink.calls)
	}
	if err := p.MonitorCycle(ctx); err != nil {
		t.Fatalf("second cycle: %v", err)
	}
	if len(sink.calls) != 1 {
		t.Fatalf("expected 1 append, got %d", len(sink.calls))
	}
	if sink.calls[0].table != sheets.TableCleaningHistory {
		t.Fatalf("table = %q", sink.calls[0].table)
	}
	if sink.calls[0].row[1] != "Rocky" {
		t.Fatalf("row = %v", sink.calls[0].row)
	}
}

func TestMonitorCycleSkipsFailingDevice(t *testing.T) {
	collector := &fakeCollector{
		devices:     []roborock.Device{vacDevice()},
		snapshotErr: errors.New("device offline"),
	}
	sink := &fakeSink{}
	p := newTestPoller(collector, sink, newMemoryCursorStore())

	if err := p.MonitorCycle(context.Background()); err != nil {
		t.Fatalf("a single unreachable device must not fail the cycle: %v", err)
	}
	if len(sink.calls) != 0 {
		t.Fatalf("unexpected appends: %v", sink.calls)
	}
}

func TestMonitorCycleExportsConsumableWear(t *testing.T) {
	collector := &fakeCollector{
		devices: []roborock.Device{vacDevice()},
		snapshots: map[string][]pipeline.Snapshot{
			"vac1": {snap("idle", 100)},
		},
		consumables: map[string]roborock.Consumables{
			"vac1": {MainBrushHours: 50, SideBrushHours: 25, FilterHours: 15, SensorDirtyHours: 2},
		},
	}
	log := testLogger()
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)
	p := New(collector, &fakeSink{}, pipeline.NewMonitor(log),
		pipeline.NewTracker(newMemoryCursorStore(), log), metrics, time.Minute, 10, log)

	if err := p.MonitorCycle(context.Background()); err != nil {
		t.Fatalf("MonitorCycle: %v", err)
	}

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	hours := make(map[string]float64)
	for _, family := range families {
		if family.GetName() != "pipeline_device_consumable_hours" {
			continue
		}
		for _, metric := range family.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "consumable" {
					hours[label.GetValue()] = metric.GetGauge().GetValue()
				}
			}
		}
	}
	if hours["main_brush"] != 50 || hours["side_brush"] != 25 {
		t.Fatalf("brush hours = %v", hours)
	}
	if hours["filter"] != 15 || hours["sensor"] != 2 {
		t.Fatalf("filter/sensor hours = %v", hours)
	}
}

func TestMonitorCycleFailsWhenDeviceListFails(t *testing.T) {
	collector := &fakeCollector{devicesErr: errors.New("cloud down")}
	p := newTestPoller(collector, &fakeSink{}, newMemoryCursorStore())

	if err := p.MonitorCycle(context.Background()); err == nil {
		t.Fatal("expected cycle error")
	}
}

func TestSyncCycleAppendsAndCommits(t *testing.T) {
	store := newMemoryCursorStore()
	collector := &fakeCollector{
		devices: []roborock.Device{vacDevice()},
		summaries: map[string]pipeline.LifetimeSummary{
			"vac1": {CleanCount: 12, AreaSquareM: 340.5, TimeMin: 800},
		},
	}
	sink := &fakeSink{}
	p := newTestPoller(collector, sink, store)

	ctx := context.Background()
	if err := p.SyncCycle(ctx); err != nil {
		t.Fatalf("SyncCycle: %v", err)
	}
	if len(sink.calls) != 1 || sink.calls[0].table != sheets.TableCleanSummary {
		t.Fatalf("calls = %v", sink.calls)
	}
	row := sink.calls[0].row
	if row[2] != 12 || row[3] != 12 {
		t.Fatalf("summary row = %v", row)
	}
	if cursor, ok := store.Cursor("vac1"); !ok || cursor.LastCleanCount != 12 {
		t.Fatalf("cursor = %+v ok=%v", cursor, ok)
	}

	// Unchanged counter: nothing new.
	if err := p.SyncCycle(ctx); err != nil {
		t.Fatalf("SyncCycle: %v", err)
	}
	if len(sink.calls) != 1 {
		t.Fatalf("expected no new appends, got %d", len(sink.calls))
	}
}

func TestSyncCycleRetriesAfterAppendFailure(t *testing.T) {
	store := newMemoryCursorStore()
	collector := &fakeCollector{
		devices: []roborock.Device{vacDevice()},
		summaries: map[string]pipeline.LifetimeSummary{
			"vac1": {CleanCount: 5},
		},
	}
	sink := &fakeSink{failNext: 1}
	p := newTestPoller(collector, sink, store)

	ctx := context.Background()
	if err := p.SyncCycle(ctx); err != nil {
		t.Fatalf("SyncCycle: %v", err)
	}
	if _, ok := store.Cursor("vac1"); ok {
		t.Fatal("cursor must not advance past a failed append")
	}

	if err := p.SyncCycle(ctx); err != nil {
		t.Fatalf("SyncCycle retry: %v", err)
	}
	if len(sink.calls) != 1 {
		t.Fatalf("expected the retried append, got %d calls", len(sink.calls))
	}
	if cursor, ok := store.Cursor("vac1"); !ok || cursor.LastCleanCount != 5 {
		t.Fatalf("cursor = %+v ok=%v", cursor, ok)
	}
}

func TestRecordCycleDeliversOldestFirst(t *testing.T) {
	store := newMemoryCursorStore()
	base := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	_ = store.Put("vac1", state.Cursor{LastRecordStart: base})

	collector := &fakeCollector{
		devices: []roborock.Device{vacDevice()},
		records: map[string][]pipeline.HistoryRecord{
			"vac1": {
				{DeviceID: "vac1", DeviceName: "Rocky", Start: base.Add(48 * time.Hour), Complete: true},
				{DeviceID: "vac1", DeviceName: "Rocky", Start: base.Add(24 * time.Hour), Complete: true},
				{DeviceID: "vac1", DeviceName: "Rocky", Start: base, Complete: true},
			},
		},
	}
	sink := &fakeSink{}
	p := newTestPoller(collector, sink, store)

	if err := p.RecordCycle(context.Background()); err != nil {
		t.Fatalf("RecordCycle: %v", err)
	}
	if len(sink.calls) != 2 {
		t.Fatalf("expected 2 appends, got %d", len(sink.calls))
	}
	first, _ := sink.calls[0].row[0].(string)
	second, _ := sink.calls[1].row[0].(string)
	if first >= second {
		t.Fatalf("records must deliver oldest first: %q then %q", first, second)
	}
	cursor, _ := store.Cursor("vac1")
	if !cursor.LastRecordStart.Equal(base.Add(48 * time.Hour)) {
		t.Fatalf("record cursor = %v", cursor.LastRecordStart)
	}
}

func TestRecordCycleAdvancesCursorPastFailedAppends(t *testing.T) {
	store := newMemoryCursorStore()
	base := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	_ = store.Put("vac1", state.Cursor{LastRecordStart: base})

	collector := &fakeCollector{
		devices: []roborock.Device{vacDevice()},
		records: map[string][]pipeline.HistoryRecord{
			"vac1": {
				{DeviceID: "vac1", DeviceName: "Rocky", Start: base.Add(48 * time.Hour)},
				{DeviceID: "vac1", DeviceName: "Rocky", Start: base.Add(24 * time.Hour)},
			},
		},
	}
	sink := &fakeSink{failNext: 1}
	p := newTestPoller(collector, sink, store)

	ctx := context.Background()
	if err := p.RecordCycle(ctx); err != nil {
		t.Fatalf("RecordCycle: %v", err)
	}
	if len(sink.calls) != 1 {
		t.Fatalf("expected 1 successful append, got %d", len(sink.calls))
	}
	cursor, _ := store.Cursor("vac1")
	if !cursor.LastRecordStart.Equal(base.Add(48 * time.Hour)) {
		t.Fatalf("cursor must advance past the whole batch: %v", cursor.LastRecordStart)
	}

	// The failed record is not re-delivered.
	if err := p.RecordCycle(ctx); err != nil {
		t.Fatalf("RecordCycle: %v", err)
	}
	if len(sink.calls) != 1 {
		t.Fatalf("expected no re-delivery, got %d calls", len(sink.calls))
	}
}

func TestRecordCycleBootstrapSelectsNewestOnly(t *testing.T) {
	store := newMemoryCursorStore()
	base := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	collector := &fakeCollector{
		devices: []roborock.Device{vacDevice()},
		records: map[string][]pipeline.HistoryRecord{
			"vac1": {
				{DeviceID: "vac1", DeviceName: "Rocky", Start: base.Add(48 * time.Hour)},
				{DeviceID: "vac1", DeviceName: "Rocky", Start: base.Add(24 * time.Hour)},
				{DeviceID: "vac1", DeviceName: "Rocky", Start: base},
			},
		},
	}
	sink := &fakeSink{}
	p := newTestPoller(collector, sink, store)

	if err := p.RecordCycle(context.Background()); err != nil {
		t.Fatalf("RecordCycle: %v", err)
	}
	if len(sink.calls) != 1 {
		t.Fatalf("bootstrap must deliver only the newest record, got %d", len(sink.calls))
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	collector := &fakeCollector{devices: []roborock.Device{}}
	p := newTestPoller(collector, &fakeSink{}, newMemoryCursorStore())

	ctx, cancel := context.WithCancel(context.Background())
	ran := 0
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	err := p.Run(ctx, func(context.Context) error {
		ran++
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run returned %v", err)
	}
	if ran == 0 {
		t.Fatal("cycle never ran")
	}
}
