package remeha

import (
	"fmt"
	"testing"
	"time"

	"github.com/evcc-io/evcc/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHotWaterAPI struct {
	calls []string
	err   error
}

func (f *fakeHotWaterAPI) record(format string, args ...any) error {
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
	return f.err
}

func (f *fakeHotWaterAPI) SetHotWaterBoost(hotWaterZoneID string) error {
	return f.record("boost %s", hotWaterZoneID)
}

func (f *fakeHotWaterAPI) SetHotWaterSchedule(hotWaterZoneID string) error {
	return f.record("schedule %s", hotWaterZoneID)
}

func (f *fakeHotWaterAPI) SetHotWaterComfort(hotWaterZoneID string) error {
	return f.record("comfort %s", hotWaterZoneID)
}

func (f *fakeHotWaterAPI) SetHotWaterEco(hotWaterZoneID string) error {
	return f.record("eco %s", hotWaterZoneID)
}

func (f *fakeHotWaterAPI) SetHotWaterComfortSetpoint(hotWaterZoneID string, temperature float64) error {
	return f.record("comfort-setpoint %s %.1f", hotWaterZoneID, temperature)
}

func (f *fakeHotWaterAPI) SetHotWaterReducedSetpoint(hotWaterZoneID string, temperature float64) error {
	return f.record("reduced-setpoint %s %.1f", hotWaterZoneID, temperature)
}

func hotWaterFixture(mode string) (*HotWaterZone, *fakeStore, *fakeHotWaterAPI) {
	store := &fakeStore{
		hotWaterZones: map[string]HotWaterZoneStatus{
			"hwz-1": {
				HotWaterZoneID:  "hwz-1",
				Name:            "Hot water",
				DhwTemperature:  48.5,
				TargetSetpoint:  55,
				ReducedSetpoint: 15,
				ComfortSetPoint: 60,
				DhwZoneMode:     mode,
				SetPointMin:     10,
				SetPointMax:     65,
			},
		},
	}
	api := &fakeHotWaterAPI{}
	zone := NewHotWaterZone(util.NewLogger("test"), api, store, "hwz-1")

	return zone, store, api
}

func TestOperationMapping(t *testing.T) {
	tc := []struct {
		raw      string
		expected string
	}{
		{"scheduling", "Scheduled"},
		{"Scheduling", "Scheduled"},
		{"continuouscomfort", "Comfort"},
		{"ContinuousComfort", "Comfort"},
		{"off", "Eco"},
		{"boost", "Boost"},
		{"HolidayMode", "HolidayMode"}, // unrecognized values pass through
	}

	for _, tt := range tc {
		zone, _, _ := hotWaterFixture(tt.raw)
		assert.Equal(t, tt.expected, zone.Operation(), "raw mode %q", tt.raw)
	}
}

func TestHotWaterTargetTemperature(t *testing.T) {
	tc := []struct {
		mode     string
		expected float64
		ok       bool
	}{
		{"scheduling", 55, true},
		{"off", 15, true},
		{"continuouscomfort", 60, true},
		{"boost", 0, false},
	}

	for _, tt := range tc {
		zone, _, _ := hotWaterFixture(tt.mode)
		setpoint, ok := zone.TargetTemperature()
		assert.Equal(t, tt.ok, ok, "mode %q", tt.mode)
		assert.Equal(t, tt.expected, setpoint, "mode %q", tt.mode)
	}
}

func TestHotWaterTemperatureBounds(t *testing.T) {
	ranges := &SetPointRanges{
		ComfortSetpointMin: ptr(40.0),
		ComfortSetpointMax: ptr(65.0),
		ReducedSetpointMin: ptr(10.0),
		ReducedSetpointMax: ptr(60.0),
	}

	tc := []struct {
		mode     string
		ranges   *SetPointRanges
		min, max float64
	}{
		{"continuouscomfort", ranges, 40, 65},
		{"off", ranges, 10, 60},
		// modes without specific bounds use the generic ones
		{"scheduling", ranges, 10, 65},
		{"boost", ranges, 10, 65},
		// missing ranges fall back to the generic bounds
		{"continuouscomfort", nil, 10, 65},
		// partially populated ranges fall back per field
		{"continuouscomfort", &SetPointRanges{ComfortSetpointMax: ptr(70.0)}, 10, 70},
	}

	for _, tt := range tc {
		zone, store, _ := hotWaterFixture(tt.mode)
		status := store.hotWaterZones["hwz-1"]
		status.SetPointRanges = tt.ranges
		store.hotWaterZones["hwz-1"] = status

		assert.Equal(t, tt.min, zone.MinTemp(), "min for mode %q", tt.mode)
		assert.Equal(t, tt.max, zone.MaxTemp(), "max for mode %q", tt.mode)
	}
}

func ptr(f float64) *float64 {
	return &f
}

func TestOperationList(t *testing.T) {
	zone, _, _ := hotWaterFixture("scheduling")
	assert.Equal(t, []string{"Boost", "Scheduled", "Comfort", "Eco"}, zone.OperationList())

	zone, _, _ = hotWaterFixture("continuouscomfort")
	assert.Equal(t, []string{"Scheduled", "Comfort", "Eco"}, zone.OperationList())
}

func TestBoostRejectedOutsideScheduled(t *testing.T) {
	zone, store, api := hotWaterFixture("continuouscomfort")

	require.NoError(t, zone.SetOperationMode("boost"))
	assert.Empty(t, api.calls)
	assert.Zero(t, store.refreshes)
}

func TestBoostFromScheduled(t *testing.T) {
	zone, store, api := hotWaterFixture("scheduling")

	require.NoError(t, zone.SetOperationMode("Boost"))
	assert.Equal(t, []string{"boost hwz-1"}, api.calls)
	assert.Equal(t, 1, store.refreshes)
}

func TestSetOperationModeDispatch(t *testing.T) {
	tc := []struct {
		operation string
		expected  string
	}{
		{"scheduled", "schedule hwz-1"},
		{"Comfort", "comfort hwz-1"},
		{"ECO", "eco hwz-1"},
	}

	for _, tt := range tc {
		zone, store, api := hotWaterFixture("boost")

		require.NoError(t, zone.SetOperationMode(tt.operation))
		assert.Equal(t, []string{tt.expected}, api.calls, "operation %q", tt.operation)
		assert.Equal(t, 1, store.refreshes, "operation %q", tt.operation)
	}
}

func TestSetOperationModeUnknownDropped(t *testing.T) {
	zone, store, api := hotWaterFixture("scheduling")

	require.NoError(t, zone.SetOperationMode("vacation"))
	assert.Empty(t, api.calls)
	assert.Zero(t, store.refreshes)
}

func TestSetHotWaterTemperatureDispatch(t *testing.T) {
	// no write while following the schedule
	zone, store, api := hotWaterFixture("scheduling")
	require.NoError(t, zone.SetTemperature(45))
	assert.Empty(t, api.calls)
	assert.Zero(t, store.refreshes)

	zone, store, api = hotWaterFixture("continuouscomfort")
	require.NoError(t, zone.SetTemperature(45))
	assert.Equal(t, []string{"comfort-setpoint hwz-1 45.0"}, api.calls)
	assert.Equal(t, 1, store.refreshes)

	zone, store, api = hotWaterFixture("off")
	require.NoError(t, zone.SetTemperature(12))
	assert.Equal(t, []string{"reduced-setpoint hwz-1 12.0"}, api.calls)
	assert.Equal(t, 1, store.refreshes)
}

func TestBoostRemainingMinutes(t *testing.T) {
	zone, store, _ := hotWaterFixture("boost")
	status := store.hotWaterZones["hwz-1"]
	status.BoostModeEndTime = time.Now().UTC().Add(12*time.Minute + 30*time.Second).Format(time.RFC3339)
	store.hotWaterZones["hwz-1"] = status

	minutes, ok := zone.BoostRemainingMinutes()
	require.True(t, ok)
	assert.Equal(t, 12, minutes)
}

func TestBoostRemainingMinutesExpired(t *testing.T) {
	zone, store, _ := hotWaterFixture("boost")
	status := store.hotWaterZones["hwz-1"]
	status.BoostModeEndTime = time.Now().UTC().Add(-time.Minute).Format(time.RFC3339)
	store.hotWaterZones["hwz-1"] = status

	_, ok := zone.BoostRemainingMinutes()
	assert.False(t, ok)
}

func TestBoostRemainingMinutesUnparseable(t *testing.T) {
	zone, store, _ := hotWaterFixture("boost")
	status := store.hotWaterZones["hwz-1"]
	status.BoostModeEndTime = "soon"
	store.hotWaterZones["hwz-1"] = status

	_, ok := zone.BoostRemainingMinutes()
	assert.False(t, ok)
}

func TestBoostRemainingMinutesOutsideBoost(t *testing.T) {
	zone, store, _ := hotWaterFixture("scheduling")
	status := store.hotWaterZones["hwz-1"]
	status.BoostModeEndTime = time.Now().UTC().Add(10 * time.Minute).Format(time.RFC3339)
	store.hotWaterZones["hwz-1"] = status

	_, ok := zone.BoostRemainingMinutes()
	assert.False(t, ok)
}
