package remeha

import (
	"errors"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

const (
	CLIENT_ID    = "6ce007c6-0628-419e-88f4-bee2e6418eec"
	REDIRECT_URI = "com.b2c.remehaapp://login-callback"

	// The B2C policy name is spelled with a capital V on the authorize and
	// token endpoints but with a lowercase v on the SelfAsserted and
	// confirmed endpoints. Both spellings are required.
	POLICY       = "B2C_1A_RPSignUpSignInNewRoomV3.1"
	POLICY_LOWER = "B2C_1A_RPSignUpSignInNewRoomv3.1"

	AUTH_BASE_URL     = "https://remehalogin.bdrthermea.net/bdrb2cprod.onmicrosoft.com"
	AUTHORIZE_URL     = AUTH_BASE_URL + "/oauth2/v2.0/authorize"
	TOKEN_URL         = AUTH_BASE_URL + "/oauth2/v2.0/token"
	SELF_ASSERTED_URL = AUTH_BASE_URL + "/" + POLICY_LOWER + "/SelfAsserted"
	CONFIRMED_URL     = AUTH_BASE_URL + "/" + POLICY_LOWER + "/api/CombinedSigninAndSignup/confirmed"

	API_URL_BASE = "https://api.bdrthermea.net/Mobile/api"

	OCP_APIM_SUBSCRIPTION_KEY = "df605c5470d846fc91e848b1cc653ddf"

	SCOPE_IMPERSONATION = "https://bdrb2cprod.onmicrosoft.com/iotdevice/user_impersonation"
)

var Oauth2Config = &oauth2.Config{
	ClientID:    CLIENT_ID,
	RedirectURL: REDIRECT_URI,
	Endpoint: oauth2.Endpoint{
		AuthURL:  AUTHORIZE_URL,
		TokenURL: TOKEN_URL,
	},
	Scopes: []string{oidc.ScopeOpenID, SCOPE_IMPERSONATION, oidc.ScopeOfflineAccess},
}

var (
	// ErrAuthFailed means the vendor rejected the credentials during the
	// interactive login. The user has to re-enter them.
	ErrAuthFailed = errors.New("authentication failed")

	// ErrAuthExpired means a token refresh got a definitive 400 from the
	// token endpoint. Not retriable; a new interactive login is required.
	ErrAuthExpired = errors.New("reauthentication required")
)

type TokenRequestStruct struct {
	oauth2.Token
	IDToken       string `json:"id_token"`
	NotBefore     int64  `json:"not_before"`
	Scope         string `json:"scope"`
	ProfileInfo   string `json:"profile_info"`
	RefreshExpiry int64  `json:"refresh_token_expires_in"`
}

type Dashboard struct {
	Appliances []Appliance `json:"appliances"`
}

type Appliance struct {
	ApplianceID     string               `json:"applianceId"`
	HouseName       string               `json:"houseName"`
	OperatingMode   string               `json:"operatingMode"`
	Online          bool                 `json:"applianceOnline"`
	ClimateZones    []ClimateZoneStatus  `json:"climateZones"`
	HotWaterZones   []HotWaterZoneStatus `json:"hotWaterZones"`
}

type ClimateZoneStatus struct {
	ClimateZoneID                         string  `json:"climateZoneId"`
	Name                                  string  `json:"name"`
	RoomTemperature                       float64 `json:"roomTemperature"`
	SetPoint                              float64 `json:"setPoint"`
	SetPointMin                           float64 `json:"setPointMin"`
	SetPointMax                           float64 `json:"setPointMax"`
	ZoneMode                              string  `json:"zoneMode"`
	ActiveComfortDemand                   string  `json:"activeComfortDemand"`
	ActiveHeatingClimateTimeProgramNumber int     `json:"activeHeatingClimateTimeProgramNumber"`
}

type HotWaterZoneStatus struct {
	HotWaterZoneID   string          `json:"hotWaterZoneId"`
	Name             string          `json:"name"`
	DhwTemperature   float64         `json:"dhwTemperature"`
	TargetSetpoint   float64         `json:"targetSetpoint"`
	ReducedSetpoint  float64         `json:"reducedSetpoint"`
	ComfortSetPoint  float64         `json:"comfortSetPoint"`
	DhwZoneMode      string          `json:"dhwZoneMode"`
	SetPointMin      float64         `json:"setPointMin"`
	SetPointMax      float64         `json:"setPointMax"`
	SetPointRanges   *SetPointRanges `json:"setPointRanges"`
	BoostModeEndTime string          `json:"boostModeEndTime"`
}

// SetPointRanges carries the per-mode setpoint bounds. Fields are pointers
// because the vendor omits bounds for modes the zone does not support.
type SetPointRanges struct {
	ComfortSetpointMin *float64 `json:"comfortSetpointMin"`
	ComfortSetpointMax *float64 `json:"comfortSetpointMax"`
	ReducedSetpointMin *float64 `json:"reducedSetpointMin"`
	ReducedSetpointMax *float64 `json:"reducedSetpointMax"`
}

type TechnicalInformation struct {
	ApplianceName   string `json:"applianceName"`
	SerialNumber    string `json:"serialNumber"`
	SoftwareVersion string `json:"softwareVersion"`
	HardwareVersion string `json:"hardwareVersion"`
}

type DailyConsumption struct {
	Data []struct {
		Timestamp                    string  `json:"timeStamp"`
		HeatingEnergyConsumed        float64 `json:"heatingEnergyConsumed"`
		HotWaterEnergyConsumed       float64 `json:"hotWaterEnergyConsumed"`
		CoolingEnergyConsumed        float64 `json:"coolingEnergyConsumed"`
		HeatingEnergyDelivered       float64 `json:"heatingEnergyDelivered"`
		HotWaterEnergyDelivered      float64 `json:"hotWaterEnergyDelivered"`
		CoolingEnergyDelivered       float64 `json:"coolingEnergyDelivered"`
		ProducedElectricalEnergy     float64 `json:"producedElectricalEnergy"`
		SelfConsumedElectricalEnergy float64 `json:"selfConsumedElectricalEnergy"`
	} `json:"data"`
}

// DeviceInfo identifies the appliance a zone belongs to.
type DeviceInfo struct {
	Identifier      string
	Name            string
	Manufacturer    string
	SerialNumber    string
	SoftwareVersion string
	HardwareVersion string
}

// HVACMode is the externally visible mode of a climate zone.
type HVACMode int

const (
	HVACOff HVACMode = iota
	HVACHeat
	HVACCool
)

func (m HVACMode) String() string {
	switch m {
	case HVACHeat:
		return "heat"
	case HVACCool:
		return "cool"
	}
	return "off"
}

// HVACAction is what the zone is currently doing, as opposed to what it is
// set to.
type HVACAction int

const (
	ActionOff HVACAction = iota
	ActionHeating
	ActionCooling
	ActionIdle
)

func (a HVACAction) String() string {
	switch a {
	case ActionHeating:
		return "heating"
	case ActionCooling:
		return "cooling"
	case ActionIdle:
		return "idle"
	}
	return "off"
}

// OperatingMode is the appliance-level operating mode.
type OperatingMode int

const (
	OperatingModeUnknown OperatingMode = iota
	OperatingModeAutomaticCoolingHeating
	OperatingModeForcedCooling
	OperatingModeFrostProtection
)

func parseOperatingMode(s string) OperatingMode {
	switch s {
	case "AutomaticCoolingHeating":
		return OperatingModeAutomaticCoolingHeating
	case "ForcedCooling":
		return OperatingModeForcedCooling
	case "FrostProtection":
		return OperatingModeFrostProtection
	}
	return OperatingModeUnknown
}

func (m OperatingMode) String() string {
	switch m {
	case OperatingModeAutomaticCoolingHeating:
		return "AutomaticCoolingHeating"
	case OperatingModeForcedCooling:
		return "ForcedCooling"
	case OperatingModeFrostProtection:
		return "FrostProtection"
	}
	return "Unknown"
}

// ZoneMode is the per-zone mode reported in the dashboard.
type ZoneMode int

const (
	ZoneModeUnknown ZoneMode = iota
	ZoneModeManual
	ZoneModeScheduling
	ZoneModeTemporaryOverride
	ZoneModeFrostProtection
)

func parseZoneMode(s string) ZoneMode {
	switch s {
	case "Manual":
		return ZoneModeManual
	case "Scheduling":
		return ZoneModeScheduling
	case "TemporaryOverride":
		return ZoneModeTemporaryOverride
	case "FrostProtection":
		return ZoneModeFrostProtection
	}
	return ZoneModeUnknown
}

// ComfortDemand is the reported heating/cooling activity of a climate zone.
type ComfortDemand int

const (
	ComfortDemandUnknown ComfortDemand = iota
	ComfortDemandProducingHeat
	ComfortDemandIdle
	ComfortDemandProducingCold
)

func parseComfortDemand(s string) ComfortDemand {
	switch s {
	case "ProducingHeat":
		return ComfortDemandProducingHeat
	case "Idle":
		return ComfortDemandIdle
	case "ProducingCold":
		return ComfortDemandProducingCold
	}
	return ComfortDemandUnknown
}

// DHWMode is the resolved operation mode of a hot-water zone.
type DHWMode int

const (
	DHWModeUnknown DHWMode = iota
	DHWModeScheduled
	DHWModeComfort
	DHWModeEco
	DHWModeBoost
)

func (m DHWMode) String() string {
	switch m {
	case DHWModeScheduled:
		return "Scheduled"
	case DHWModeComfort:
		return "Comfort"
	case DHWModeEco:
		return "Eco"
	case DHWModeBoost:
		return "Boost"
	}
	return "Unknown"
}

// Presets selectable on a climate zone. scheduleN selects heating time
// program N.
const (
	PresetManual    = "manual"
	PresetSchedule1 = "schedule1"
	PresetSchedule2 = "schedule2"
	PresetSchedule3 = "schedule3"
)

func presetForProgram(program int) (string, bool) {
	if program < 1 || program > 3 {
		return "", false
	}
	return fmt.Sprintf("schedule%d", program), true
}
