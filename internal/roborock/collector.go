package roborock

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/nkratastr/roborock-data-pipeline/internal/pipeline"
)

// DeviceClient is the subset of Client the collector needs. Tests substitute
// a fake returning canned RPC results.
type DeviceClient interface {
	Devices(ctx context.Context) ([]Device, error)
	GetStatus(ctx context.Context, deviceID string) (any, error)
	GetCleanSummary(ctx context.Context, deviceID string) (any, error)
	GetCleanRecord(ctx context.Context, deviceID string, recordID int64) (any, error)
	GetConsumable(ctx context.Context, deviceID string) (any, error)
}

// Consumables holds the accumulated wear of each replaceable part, in hours.
type Consumables struct {
	MainBrushHours   float64
	SideBrushHours   float64
	FilterHours      float64
	SensorDirtyHours float64
}

// Collector normalizes raw device RPC results into pipeline values. The
// device reports areas in square millimeters and durations in seconds;
// pipeline values use square meters and minutes.
type Collector struct {
	client DeviceClient
	now    func() time.Time
}

func NewCollector(client DeviceClient) *Collector {
	return &Collector{client: client, now: time.Now}
}

func (c *Collector) Devices(ctx context.Context) ([]Device, error) {
	return c.client.Devices(ctx)
}

// Snapshot polls the device's live status.
func (c *Collector) Snapshot(ctx context.Context, device Device) (pipeline.Snapshot, error) {
	raw, err := c.client.GetStatus(ctx, device.ID)
	if err != nil {
		return pipeline.Snapshot{}, err
	}
	status, ok := normalizeMap(raw)
	if !ok {
		return pipeline.Snapshot{}, fmt.Errorf("unexpected get_status result %T", raw)
	}

	snap := pipeline.Snapshot{
		DeviceID:   device.ID,
		DeviceName: device.Name,
		Battery:    intFrom(status["battery"]),
		CleanTime:  intFrom(status["clean_time"]) / 60,
		FanPower:   stringFrom(status["fan_power"]),
		MopMode:    stringFrom(status["mop_mode"]),
		WaterLevel: stringFrom(status["water_box_mode"]),
		ErrorCode:  stringFrom(status["error_code"]),
		CapturedAt: c.now(),
	}
	if code := intFrom(status["state"]); code != 0 {
		snap.State = stateName(code)
	} else {
		snap.State = stringFrom(status["state"])
	}
	if area := intFrom(status["clean_area"]); area > 0 {
		snap.CleanArea = float64(area) / 1e6
	}
	return snap, nil
}

// Summary fetches the device's lifetime counters.
func (c *Collector) Summary(ctx context.Context, device Device) (pipeline.LifetimeSummary, error) {
	raw, err := c.client.GetCleanSummary(ctx, device.ID)
	if err != nil {
		return pipeline.LifetimeSummary{}, err
	}
	summary, _, err := parseCleanSummary(raw)
	return summary, err
}

// Records fetches up to limit historical records, newest first. The summary
// lists record ids (begin timestamps) newest first; each is resolved with a
// separate get_clean_record call.
func (c *Collector) Records(ctx context.Context, device Device, limit int) ([]pipeline.HistoryRecord, error) {
	raw, err := c.client.GetCleanSummary(ctx, device.ID)
	if err != nil {
		return nil, err
	}
	_, recordIDs, err := parseCleanSummary(raw)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(recordIDs) > limit {
		recordIDs = recordIDs[:limit]
	}

	records := make([]pipeline.HistoryRecord, 0, len(recordIDs))
	for _, id := range recordIDs {
		raw, err := c.client.GetCleanRecord(ctx, device.ID, id)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", id, err)
		}
		record, err := parseCleanRecord(raw)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", id, err)
		}
		record.DeviceID = device.ID
		record.DeviceName = device.Name
		records = append(records, record)
	}
	return records, nil
}

// Consumables fetches the device's consumable wear counters. The device
// reports accumulated work time in seconds.
func (c *Collector) Consumables(ctx context.Context, device Device) (Consumables, error) {
	raw, err := c.client.GetConsumable(ctx, device.ID)
	if err != nil {
		return Consumables{}, err
	}
	wear, ok := normalizeMap(raw)
	if !ok {
		return Consumables{}, fmt.Errorf("unexpected get_consumable result %T", raw)
	}
	return Consumables{
		MainBrushHours:   float64(intFrom(wear["main_brush_work_time"])) / 3600,
		SideBrushHours:   float64(intFrom(wear["side_brush_work_time"])) / 3600,
		FilterHours:      float64(intFrom(wear["filter_work_time"])) / 3600,
		SensorDirtyHours: float64(intFrom(wear["sensor_dirty_time"])) / 3600,
	}, nil
}

// parseCleanSummary handles both summary shapes: newer firmwares return a
// dict, older ones a positional array [time, area, count, records].
func parseCleanSummary(raw any) (pipeline.LifetimeSummary, []int64, error) {
	var timeSec, areaMM2, count int
	var rawRecords []any

	switch v := raw.(type) {
	case map[string]any:
		timeSec = intFrom(v["clean_time"])
		areaMM2 = intFrom(v["clean_area"])
		count = intFrom(v["clean_count"])
		rawRecords, _ = v["records"].([]any)
	case []any:
		if len(v) == 1 {
			if inner, ok := v[0].(map[string]any); ok {
				return parseCleanSummary(inner)
			}
		}
		if len(v) < 3 {
			return pipeline.LifetimeSummary{}, nil, fmt.Errorf("short clean summary of %d fields", len(v))
		}
		timeSec = intFrom(v[0])
		areaMM2 = intFrom(v[1])
		count = intFrom(v[2])
		if len(v) > 3 {
			rawRecords, _ = v[3].([]any)
		}
	default:
		return pipeline.LifetimeSummary{}, nil, fmt.Errorf("unexpected clean summary result %T", raw)
	}

	summary := pipeline.LifetimeSummary{
		CleanCount:  count,
		AreaSquareM: float64(areaMM2) / 1e6,
		TimeMin:     timeSec / 60,
	}
	recordIDs := make([]int64, 0, len(rawRecords))
	for _, r := range rawRecords {
		recordIDs = append(recordIDs, int64From(r))
	}
	return summary, recordIDs, nil
}

// parseCleanRecord handles both record shapes: a dict with named fields or a
// positional array [begin, end, duration, area, error, complete].
func parseCleanRecord(raw any) (pipeline.HistoryRecord, error) {
	var begin, end, durationSec, areaMM2, errCode, complete int

	switch v := raw.(type) {
	case map[string]any:
		begin = intFrom(v["begin"])
		end = intFrom(v["end"])
		durationSec = intFrom(v["duration"])
		areaMM2 = intFrom(v["area"])
		errCode = intFrom(v["error"])
		complete = intFrom(v["complete"])
	case []any:
		if len(v) == 1 {
			if inner, ok := v[0].(map[string]any); ok {
				return parseCleanRecord(inner)
			}
		}
		if len(v) < 6 {
			return pipeline.HistoryRecord{}, fmt.Errorf("short clean record of %d fields", len(v))
		}
		begin = intFrom(v[0])
		end = intFrom(v[1])
		durationSec = intFrom(v[2])
		areaMM2 = intFrom(v[3])
		errCode = intFrom(v[4])
		complete = intFrom(v[5])
	default:
		return pipeline.HistoryRecord{}, fmt.Errorf("unexpected clean record result %T", raw)
	}

	record := pipeline.HistoryRecord{
		Start:       time.Unix(int64(begin), 0),
		End:         time.Unix(int64(end), 0),
		DurationMin: durationSec / 60,
		AreaSquareM: float64(areaMM2) / 1e6,
		Complete:    complete == 1,
	}
	if errCode != 0 {
		record.ErrorCode = strconv.Itoa(errCode)
	}
	return record, nil
}

func normalizeMap(value any) (map[string]any, bool) {
	switch v := value.(type) {
	case map[string]any:
		return v, true
	case []any:
		if len(v) > 0 {
			if item, ok := v[0].(map[string]any); ok {
				return item, true
			}
		}
	}
	return nil, false
}

func stringFrom(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return fmt.Sprintf("%.0f", t)
	default:
		return ""
	}
}

func intFrom(v any) int {
	switch t := v.(type) {
	case float64:
		return int(t)
	case int:
		return t
	case int64:
		return int(t)
	case string:
		i, _ := strconv.Atoi(t)
		return i
	default:
		return 0
	}
}

func int64From(v any) int64 {
	switch t := v.(type) {
	case float64:
		return int64(t)
	case int:
		return int64(t)
	case int64:
		return t
	case string:
		i, _ := strconv.ParseInt(t, 10, 64)
		return i
	default:
		return 0
	}
}
