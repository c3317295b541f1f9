package remeha

import (
	"strings"
	"time"

	"github.com/evcc-io/evcc/util"
)

// hotWaterAPI is the slice of the vendor API a hot-water zone needs.
type hotWaterAPI interface {
	SetHotWaterBoost(hotWaterZoneID string) error
	SetHotWaterSchedule(hotWaterZoneID string) error
	SetHotWaterComfort(hotWaterZoneID string) error
	SetHotWaterEco(hotWaterZoneID string) error
	SetHotWaterComfortSetpoint(hotWaterZoneID string, temperature float64) error
	SetHotWaterReducedSetpoint(hotWaterZoneID string, temperature float64) error
}

// HotWaterZone exposes a domestic hot-water zone as a water heater entity.
type HotWaterZone struct {
	log   *util.Logger
	api   hotWaterAPI
	store SnapshotStore

	hotWaterZoneID string
}

func NewHotWaterZone(log *util.Logger, api hotWaterAPI, store SnapshotStore, hotWaterZoneID string) *HotWaterZone {
	return &HotWaterZone{
		log:            log,
		api:            api,
		store:          store,
		hotWaterZoneID: hotWaterZoneID,
	}
}

func (z *HotWaterZone) ID() string {
	return z.hotWaterZoneID
}

func (z *HotWaterZone) Name() string {
	zone, _ := z.store.HotWaterZone(z.hotWaterZoneID)
	return zone.Name
}

func parseDHWMode(raw string) DHWMode {
	switch strings.ToLower(raw) {
	case "continuouscomfort":
		return DHWModeComfort
	case "off":
		return DHWModeEco
	case "scheduling":
		return DHWModeScheduled
	case "boost":
		return DHWModeBoost
	}
	return DHWModeUnknown
}

func (z *HotWaterZone) mode() DHWMode {
	zone, _ := z.store.HotWaterZone(z.hotWaterZoneID)
	return parseDHWMode(zone.DhwZoneMode)
}

// Operation returns the resolved operation mode. Unrecognized vendor values
// pass through unchanged.
func (z *HotWaterZone) Operation() string {
	zone, _ := z.store.HotWaterZone(z.hotWaterZoneID)
	if mode := parseDHWMode(zone.DhwZoneMode); mode != DHWModeUnknown {
		return mode.String()
	}
	return zone.DhwZoneMode
}

// OperationList returns the selectable modes. Boost is only reachable from
// Scheduled.
func (z *HotWaterZone) OperationList() []string {
	if z.mode() == DHWModeScheduled {
		return []string{"Boost", "Scheduled", "Comfort", "Eco"}
	}
	return []string{"Scheduled", "Comfort", "Eco"}
}

func (z *HotWaterZone) CurrentTemperature() float64 {
	zone, _ := z.store.HotWaterZone(z.hotWaterZoneID)
	return zone.DhwTemperature
}

// TargetTemperature returns the setpoint the zone currently heats towards.
// Boost has no adjustable target.
func (z *HotWaterZone) TargetTemperature() (float64, bool) {
	zone, _ := z.store.HotWaterZone(z.hotWaterZoneID)

	switch parseDHWMode(zone.DhwZoneMode) {
	case DHWModeScheduled:
		return zone.TargetSetpoint, true
	case DHWModeEco:
		return zone.ReducedSetpoint, true
	case DHWModeComfort:
		return zone.ComfortSetPoint, true
	}
	return 0, false
}

// MinTemp returns the lower setpoint bound for the active mode, falling
// back to the generic bound when the vendor omits the mode-specific one.
func (z *HotWaterZone) MinTemp() float64 {
	zone, _ := z.store.HotWaterZone(z.hotWaterZoneID)

	if ranges := zone.SetPointRanges; ranges != nil {
		switch parseDHWMode(zone.DhwZoneMode) {
		case DHWModeEco:
			if ranges.ReducedSetpointMin != nil {
				return *ranges.ReducedSetpointMin
			}
		case DHWModeComfort:
			if ranges.ComfortSetpointMin != nil {
				return *ranges.ComfortSetpointMin
			}
		}
	}
	return zone.SetPointMin
}

// MaxTemp returns the upper setpoint bound for the active mode, falling
// back to the generic bound when the vendor omits the mode-specific one.
func (z *HotWaterZone) MaxTemp() float64 {
	zone, _ := z.store.HotWaterZone(z.hotWaterZoneID)

	if ranges := zone.SetPointRanges; ranges != nil {
		switch parseDHWMode(zone.DhwZoneMode) {
		case DHWModeEco:
			if ranges.ReducedSetpointMax != nil {
				return *ranges.ReducedSetpointMax
			}
		case DHWModeComfort:
			if ranges.ComfortSetpointMax != nil {
				return *ranges.ComfortSetpointMax
			}
		}
	}
	return zone.SetPointMax
}

// BoostRemainingMinutes reports the minutes left of an active boost. It
// yields nothing outside boost mode, once the end time has passed, or when
// the end time does not parse.
func (z *HotWaterZone) BoostRemainingMinutes() (int, bool) {
	if z.mode() != DHWModeBoost {
		return 0, false
	}

	zone, _ := z.store.HotWaterZone(z.hotWaterZoneID)
	if zone.BoostModeEndTime == "" {
		return 0, false
	}

	end, err := time.Parse(time.RFC3339, zone.BoostModeEndTime)
	if err != nil {
		z.log.WARN.Printf("could not parse boost end time %q: %v", zone.BoostModeEndTime, err)
		return 0, false
	}

	remaining := int(time.Until(end).Minutes())
	if remaining <= 0 {
		return 0, false
	}
	return remaining, true
}

// SetTemperature adjusts the setpoint of the active mode. Only the comfort
// and reduced setpoints are writable; in any other mode the request is
// dropped with a warning.
func (z *HotWaterZone) SetTemperature(temperature float64) error {
	mode := z.mode()
	z.log.DEBUG.Printf("setting hot water temperature to %.1f in mode %s", temperature, mode)

	switch mode {
	case DHWModeComfort:
		if err := z.api.SetHotWaterComfortSetpoint(z.hotWaterZoneID, temperature); err != nil {
			return err
		}
	case DHWModeEco:
		if err := z.api.SetHotWaterReducedSetpoint(z.hotWaterZoneID, temperature); err != nil {
			return err
		}
	default:
		z.log.WARN.Printf("temperature cannot be set in mode %s", z.Operation())
		return nil
	}

	z.store.RequestRefresh()
	return nil
}

// SetOperationMode dispatches a mode change. Boost is rejected unless the
// zone is currently in Scheduled mode; unknown modes are rejected. Rejected
// requests are logged, not surfaced.
func (z *HotWaterZone) SetOperationMode(operation string) error {
	z.log.DEBUG.Printf("setting hot water operation mode to %s", operation)

	switch strings.ToLower(operation) {
	case "boost":
		if current := z.mode(); current != DHWModeScheduled {
			z.log.WARN.Printf("boost can only be activated from Scheduled mode, current mode: %s", z.Operation())
			return nil
		}
		if err := z.api.SetHotWaterBoost(z.hotWaterZoneID); err != nil {
			return err
		}
	case "scheduled":
		if err := z.api.SetHotWaterSchedule(z.hotWaterZoneID); err != nil {
			return err
		}
	case "comfort":
		if err := z.api.SetHotWaterComfort(z.hotWaterZoneID); err != nil {
			return err
		}
	case "eco":
		if err := z.api.SetHotWaterEco(z.hotWaterZoneID); err != nil {
			return err
		}
	default:
		z.log.ERROR.Printf("unknown hot water mode: %s", operation)
		return nil
	}

	z.store.RequestRefresh()
	return nil
}
