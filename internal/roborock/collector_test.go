package roborock

import (
	"context"
	"testing"
	"time"
)

type fakeDeviceClient struct {
	status     any
	summary    any
	records    map[int64]any
	consumable any
	calls      []int64
}

func (f *fakeDeviceClient) Devices(_ context.Context) ([]Device, error) {
	return []Device{{ID: "vac1", Name: "Rocky"}}, nil
}

func (f *fakeDeviceClient) GetStatus(_ context.Context, _ string) (any, error) {
	return f.status, nil
}

func (f *fakeDeviceClient) GetCleanSummary(_ context.Context, _ string) (any, error) {
	return f.summary, nil
}

func (f *fakeDeviceClient) GetCleanRecord(_ context.Context, _ string, recordID int64) (any, error) {
	f.calls = append(f.calls, recordID)
	return f.records[recordID], nil
}

func (f *fakeDeviceClient) GetConsumable(_ context.Context, _ string) (any, error) {
	return f.consumable, nil
}

func testDevice() Device {
	return Device{ID: "vac1", Name: "Rocky"}
}

func TestCollectorSnapshot(t *testing.T) {
	fake := &fakeDeviceClient{
		status: []any{map[string]any{
			"state":          float64(18),
			"battery":        float64(76),
			"clean_time":     float64(1500),
			"clean_area":     float64(22500000),
			"fan_power":      float64(102),
			"mop_mode":       float64(300),
			"water_box_mode": float64(202),
			"error_code":     float64(0),
		}},
	}
	collector := NewCollector(fake)
	captured := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	collector.now = func() time.Time { return captured }

	snap, err := collector.Snapshot(context.Background(), testDevice())
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.State != "segment_cleaning" {
		t.Fatalf("state = %q", snap.State)
	}
	if snap.Battery != 76 {
		t.Fatalf("battery = %d", snap.Battery)
	}
	if snap.CleanTime != 25 {
		t.Fatalf("clean time = %d min", snap.CleanTime)
	}
	if snap.CleanArea != 22.5 {
		t.Fatalf("clean area = %v m2", snap.CleanArea)
	}
	if snap.FanPower != "102" || snap.WaterLevel != "202" {
		t.Fatalf("modes = %q/%q", snap.FanPower, snap.WaterLevel)
	}
	if !snap.CapturedAt.Equal(captured) {
		t.Fatalf("captured at = %v", snap.CapturedAt)
	}
}

func TestCollectorSnapshotUnknownStateCode(t *testing.T) {
	fake := &fakeDeviceClient{
		status: map[string]any{"state": float64(9999), "battery": float64(50)},
	}
	snap, err := NewCollector(fake).Snapshot(context.Background(), testDevice())
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.State != "unknown" {
		t.Fatalf("state = %q", snap.State)
	}
}

func TestCollectorSummaryDict(t *testing.T) {
	fake := &fakeDeviceClient{
		summary: map[string]any{
			"clean_time":  float64(7200),
			"clean_area":  float64(120000000),
			"clean_count": float64(42),
			"records":     []any{float64(1700000300), float64(1700000200)},
		},
	}
	summary, err := NewCollector(fake).Summary(context.Background(), testDevice())
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if summary.CleanCount != 42 || summary.TimeMin != 120 || summary.AreaSquareM != 120 {
		t.Fatalf("summary = %+v", summary)
	}
}

func TestCollectorSummaryLegacyArray(t *testing.T) {
	fake := &fakeDeviceClient{
		summary: []any{float64(3600), float64(60000000), float64(7), []any{float64(1700000100)}},
	}
	summary, err := NewCollector(fake).Summary(context.Background(), testDevice())
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if summary.CleanCount != 7 || summary.TimeMin != 60 || summary.AreaSquareM != 60 {
		t.Fatalf("summary = %+v", summary)
	}
}

func TestCollectorConsumables(t *testing.T) {
	fake := &fakeDeviceClient{
		consumable: []any{map[string]any{
			"main_brush_work_time": float64(180000),
			"side_brush_work_time": float64(90000),
			"filter_work_time":     float64(54000),
			"sensor_dirty_time":    float64(7200),
		}},
	}
	wear, err := NewCollector(fake).Consumables(context.Background(), testDevice())
	if err != nil {
		t.Fatalf("Consumables: %v", err)
	}
	if wear.MainBrushHours != 50 || wear.SideBrushHours != 25 {
		t.Fatalf("brush hours = %v / %v", wear.MainBrushHours, wear.SideBrushHours)
	}
	if wear.FilterHours != 15 || wear.SensorDirtyHours != 2 {
		t.Fatalf("filter/sensor hours = %v / %v", wear.FilterHours, wear.SensorDirtyHours)
	}
}

func TestCollectorRecords(t *testing.T) {
	fake := &fakeDeviceClient{
		summary: map[string]any{
			"clean_count": float64(3),
			"records":     []any{float64(1700000300), float64(1700000200), float64(1700000100)},
		},
		records: map[int64]any{
			1700000300: map[string]any{
				"begin": float64(1700000300), "end": float64(1700001800),
				"duration": float64(1500), "area": float64(18000000),
				"error": float64(0), "complete": float64(1),
			},
			1700000200: []any{
				float64(1700000200), float64(1700000900),
				float64(700), float64(9000000), float64(5), float64(0),
			},
		},
	}
	records, err := NewCollector(fake).Records(context.Background(), testDevice(), 2)
	if err != nil {
		t.Fatalf("Records: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records", len(records))
	}
	if len(fake.calls) != 2 || fake.calls[0] != 1700000300 {
		t.Fatalf("record fetches = %v", fake.calls)
	}

	first := records[0]
	if !first.Start.Equal(time.Unix(1700000300, 0)) || first.DurationMin != 25 {
		t.Fatalf("first record = %+v", first)
	}
	if first.AreaSquareM != 18 || !first.Complete || first.ErrorCode != "" {
		t.Fatalf("first record = %+v", first)
	}
	if first.DeviceName != "Rocky" {
		t.Fatalf("device name = %q", first.DeviceName)
	}

	second := records[1]
	if second.Complete {
		t.Fatal("legacy record should be incomplete")
	}
	if second.ErrorCode != "5" {
		t.Fatalf("error code = %q", second.ErrorCode)
	}
}
