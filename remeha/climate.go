package remeha

import (
	"fmt"
	"strings"

	"github.com/evcc-io/evcc/util"
)

// climateAPI is the slice of the vendor API a climate zone needs.
type climateAPI interface {
	SetOperatingMode(applianceID, mode string) error
	SetManual(climateZoneID string, setpoint float64) error
	SetSchedule(climateZoneID string, heatingProgramID int) error
	SetOff(climateZoneID string) error
	SetTemporaryOverride(climateZoneID string, setpoint float64) error
}

// ClimateZone exposes a climate zone as a controllable entity. All state is
// a projection of the latest snapshot plus at most one pending requested
// mode that bridges the gap between a write and the next poll.
type ClimateZone struct {
	log   *util.Logger
	api   climateAPI
	store SnapshotStore

	applianceID   string
	climateZoneID string

	// requested holds a locally-issued mode until a fresh snapshot settles it
	requested *HVACMode
}

func NewClimateZone(log *util.Logger, api climateAPI, store SnapshotStore, applianceID, climateZoneID string) *ClimateZone {
	return &ClimateZone{
		log:           log,
		api:           api,
		store:         store,
		applianceID:   applianceID,
		climateZoneID: climateZoneID,
	}
}

func (z *ClimateZone) ID() string {
	return z.climateZoneID
}

func (z *ClimateZone) Name() string {
	zone, _ := z.store.ClimateZone(z.climateZoneID)
	return zone.Name
}

func (z *ClimateZone) CurrentTemperature() float64 {
	zone, _ := z.store.ClimateZone(z.climateZoneID)
	return zone.RoomTemperature
}

// TargetTemperature returns the setpoint. There is no target while the zone
// is off.
func (z *ClimateZone) TargetTemperature() (float64, bool) {
	if z.HVACMode() == HVACOff {
		return 0, false
	}
	zone, ok := z.store.ClimateZone(z.climateZoneID)
	return zone.SetPoint, ok
}

func (z *ClimateZone) MinTemp() float64 {
	zone, _ := z.store.ClimateZone(z.climateZoneID)
	return zone.SetPointMin
}

func (z *ClimateZone) MaxTemp() float64 {
	zone, _ := z.store.ClimateZone(z.climateZoneID)
	return zone.SetPointMax
}

// HVACMode resolves the externally visible mode. A pending requested mode
// wins until the next snapshot. A zone in frost protection is off no matter
// what the appliance operating mode says; otherwise the appliance-level
// operating mode decides, defaulting to off when missing or unrecognized.
func (z *ClimateZone) HVACMode() HVACMode {
	if z.requested != nil {
		return *z.requested
	}

	if zone, ok := z.store.ClimateZone(z.climateZoneID); ok && parseZoneMode(zone.ZoneMode) == ZoneModeFrostProtection {
		return HVACOff
	}

	appliance, ok := z.store.Appliance(z.applianceID)
	if !ok {
		return HVACOff
	}

	return hvacModeForOperatingMode(parseOperatingMode(appliance.OperatingMode))
}

func hvacModeForOperatingMode(mode OperatingMode) HVACMode {
	switch mode {
	case OperatingModeAutomaticCoolingHeating:
		return HVACHeat
	case OperatingModeForcedCooling:
		return HVACCool
	}
	return HVACOff
}

func (z *ClimateZone) HVACModes() []HVACMode {
	return []HVACMode{HVACHeat, HVACCool, HVACOff}
}

// HVACAction reports the zone's current activity from the comfort demand,
// falling back to a mode-derived default when the demand is absent or
// unrecognized.
func (z *ClimateZone) HVACAction() HVACAction {
	zone, _ := z.store.ClimateZone(z.climateZoneID)

	switch parseComfortDemand(zone.ActiveComfortDemand) {
	case ComfortDemandProducingHeat:
		return ActionHeating
	case ComfortDemandIdle:
		return ActionIdle
	case ComfortDemandProducingCold:
		return ActionCooling
	}

	switch z.HVACMode() {
	case HVACOff:
		return ActionOff
	case HVACHeat:
		return ActionHeating
	case HVACCool:
		return ActionCooling
	}
	return ActionIdle
}

// PresetMode reports "manual" while the zone is in manual mode and
// "schedule1".."schedule3" while a time program is active. An off zone has
// no preset.
func (z *ClimateZone) PresetMode() (string, bool) {
	if z.HVACMode() == HVACOff {
		return "", false
	}

	zone, _ := z.store.ClimateZone(z.climateZoneID)
	switch parseZoneMode(zone.ZoneMode) {
	case ZoneModeManual:
		return PresetManual, true
	case ZoneModeScheduling, ZoneModeTemporaryOverride:
		if preset, ok := presetForProgram(zone.ActiveHeatingClimateTimeProgramNumber); ok {
			return preset, true
		}
	}
	return "", false
}

func (z *ClimateZone) PresetModes() []string {
	return []string{PresetManual, PresetSchedule1, PresetSchedule2, PresetSchedule3}
}

// SetTemperature writes a manual setpoint. The setpoint of an off zone
// cannot be changed; the request is dropped with a warning.
func (z *ClimateZone) SetTemperature(temperature float64) error {
	if z.HVACMode() == HVACOff {
		z.log.WARN.Printf("ignoring setpoint %.1f for climate zone %s: zone is off", temperature, z.climateZoneID)
		return nil
	}

	z.log.DEBUG.Printf("setting temperature to %.1f", temperature)
	if err := z.api.SetManual(z.climateZoneID, temperature); err != nil {
		return err
	}

	z.store.RequestRefresh()
	return nil
}

// SetHVACMode switches the zone on (heating or cooling, via the appliance
// operating mode) or off (zone anti-frost). The requested mode is kept as a
// pending override until the next snapshot settles it.
func (z *ClimateZone) SetHVACMode(mode HVACMode) error {
	z.log.DEBUG.Printf("setting hvac mode to %s", mode)

	switch mode {
	case HVACHeat, HVACCool:
		if err := z.api.SetOperatingMode(z.applianceID, operatingModeForHVAC(mode).String()); err != nil {
			return err
		}
	case HVACOff:
		if err := z.api.SetOff(z.climateZoneID); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unsupported hvac mode: %d", mode)
	}

	z.requested = &mode
	z.store.RequestRefresh()
	return nil
}

func operatingModeForHVAC(mode HVACMode) OperatingMode {
	if mode == HVACCool {
		return OperatingModeForcedCooling
	}
	return OperatingModeAutomaticCoolingHeating
}

// SetPresetMode selects manual mode or one of the three schedule programs.
// Unknown presets are logged and dropped so a misbehaving caller cannot
// crash the command handler.
func (z *ClimateZone) SetPresetMode(preset string) error {
	z.log.DEBUG.Printf("setting preset mode to %s", preset)

	switch strings.ToLower(preset) {
	case PresetManual:
		zone, _ := z.store.ClimateZone(z.climateZoneID)
		if err := z.api.SetManual(z.climateZoneID, zone.SetPoint); err != nil {
			return err
		}
	case PresetSchedule1, PresetSchedule2, PresetSchedule3:
		program := int(preset[len(preset)-1] - '0')
		if err := z.api.SetSchedule(z.climateZoneID, program); err != nil {
			return err
		}
	default:
		z.log.ERROR.Printf("preset mode %s is not allowed", preset)
		return nil
	}

	z.store.RequestRefresh()
	return nil
}

// reconcile settles the pending requested mode against a fresh snapshot.
// The snapshot either confirms the request or overrules it; in both cases
// snapshot-derived state takes over from here on.
func (z *ClimateZone) reconcile() {
	if z.requested == nil {
		return
	}

	if _, ok := z.store.Appliance(z.applianceID); ok {
		z.requested = nil
	}
}
