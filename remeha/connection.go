package remeha

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/evcc-io/evcc/util"
	"github.com/evcc-io/evcc/util/request"
	"golang.org/x/oauth2"
)

// Connection is the authenticated Remeha Home API connection. It attaches
// the subscription key and a valid bearer token to every request and knows
// one method per vendor operation. Retry policy belongs to the caller.
type Connection struct {
	client  *request.Helper
	log     *util.Logger
	apiBase string
}

// NewConnection creates a new Remeha Home API connection. Token refresh is
// handled transparently by the token source.
func NewConnection(log *util.Logger, ts oauth2.TokenSource) (*Connection, error) {
	client := request.NewHelper(log)
	client.Transport = &oauth2.Transport{
		Source: ts,
		Base:   client.Transport,
	}

	conn := &Connection{
		client:  client,
		log:     log,
		apiBase: API_URL_BASE,
	}

	return conn, nil
}

// Returns the http header for http requests to the Remeha Home API
func (c *Connection) getRemehaHttpHeader() http.Header {
	return http.Header{
		"Accept":                    {"application/json, text/plain, */*"},
		"Ocp-Apim-Subscription-Key": {OCP_APIM_SUBSCRIPTION_KEY},
	}
}

func (c *Connection) getJSON(path string, res any) error {
	req, _ := http.NewRequest("GET", c.apiBase+path, nil)
	req.Header = c.getRemehaHttpHeader()

	return c.client.DoJSON(req, res)
}

// post issues a write. The vendor does not define a response body contract
// for writes, so the body is discarded.
func (c *Connection) post(path string, body any) error {
	var rd io.Reader
	if body != nil {
		rd = request.MarshalJSON(body)
	}

	req, _ := http.NewRequest("POST", c.apiBase+path, rd)
	req.Header = c.getRemehaHttpHeader()
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	_, err := c.client.DoBody(req)
	return err
}

// GetDashboard returns the dashboard snapshot for all appliances. A
// timestamp query parameter defeats the vendor's response cache.
func (c *Connection) GetDashboard() (Dashboard, error) {
	var res Dashboard
	err := c.getJSON(fmt.Sprintf("/homes/dashboard?t=%d", time.Now().Unix()), &res)
	if err != nil {
		err = fmt.Errorf("error getting dashboard: %w", err)
	}
	return res, err
}

// GetTechnicalInformation returns static technical details for an appliance.
func (c *Connection) GetTechnicalInformation(applianceID string) (TechnicalInformation, error) {
	var res TechnicalInformation
	err := c.getJSON(fmt.Sprintf("/appliances/%s/technicaldetails", applianceID), &res)
	if err != nil {
		err = fmt.Errorf("error getting technical details: %w", err)
	}
	return res, err
}

// GetDailyConsumptionForToday returns consumption data for today's
// 00:00:00-23:59:59 window.
func (c *Connection) GetDailyConsumptionForToday(applianceID string) (DailyConsumption, error) {
	now := time.Now()
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	end := start.Add(23*time.Hour + 59*time.Minute + 59*time.Second)

	const layout = "2006-01-02 15:04:05.000000Z"
	params := url.Values{
		"startDate": {start.Format(layout)},
		"endDate":   {end.Format(layout)},
	}

	var res DailyConsumption
	err := c.getJSON(fmt.Sprintf("/appliances/%s/energyconsumption/daily?%s", applianceID, params.Encode()), &res)
	if err != nil {
		err = fmt.Errorf("error getting daily consumption: %w", err)
	}
	return res, err
}

// SetOperatingMode sets the appliance-level operating mode
// ("AutomaticCoolingHeating", "ForcedCooling" or "FrostProtection").
func (c *Connection) SetOperatingMode(applianceID, mode string) error {
	return c.post(fmt.Sprintf("/appliances/%s/operatingmode", applianceID), map[string]string{
		"operatingMode": mode,
	})
}

// SetManual puts a climate zone in manual mode with the given setpoint.
func (c *Connection) SetManual(climateZoneID string, setpoint float64) error {
	return c.post(fmt.Sprintf("/climate-zones/%s/modes/manual", climateZoneID), map[string]float64{
		"roomTemperatureSetPoint": setpoint,
	})
}

// SetSchedule puts a climate zone in schedule mode following heating time
// program 1, 2 or 3.
func (c *Connection) SetSchedule(climateZoneID string, heatingProgramID int) error {
	return c.post(fmt.Sprintf("/climate-zones/%s/modes/schedule", climateZoneID), map[string]int{
		"heatingProgramId": heatingProgramID,
	})
}

// SetOff puts a climate zone in anti-frost mode.
func (c *Connection) SetOff(climateZoneID string) error {
	return c.post(fmt.Sprintf("/climate-zones/%s/modes/anti-frost", climateZoneID), nil)
}

// SetTemporaryOverride overrides the scheduled setpoint of a climate zone
// until the next program switch point.
func (c *Connection) SetTemporaryOverride(climateZoneID string, setpoint float64) error {
	return c.post(fmt.Sprintf("/climate-zones/%s/modes/temporary-override", climateZoneID), map[string]float64{
		"roomTemperatureSetPoint": setpoint,
	})
}

// SetHotWaterBoost boosts a hot-water zone to the comfort setpoint for 30
// minutes. The vendor only accepts this while the zone is in scheduling
// mode.
func (c *Connection) SetHotWaterBoost(hotWaterZoneID string) error {
	return c.post(fmt.Sprintf("/hot-water-zones/%s/modes/boost", hotWaterZoneID), nil)
}

// SetHotWaterSchedule puts a hot-water zone in scheduling mode.
func (c *Connection) SetHotWaterSchedule(hotWaterZoneID string) error {
	return c.post(fmt.Sprintf("/hot-water-zones/%s/modes/schedule", hotWaterZoneID), nil)
}

// SetHotWaterComfort puts a hot-water zone in continuous comfort mode.
func (c *Connection) SetHotWaterComfort(hotWaterZoneID string) error {
	return c.post(fmt.Sprintf("/hot-water-zones/%s/modes/continuous-comfort", hotWaterZoneID), nil)
}

// SetHotWaterEco puts a hot-water zone in reduced (anti-frost) mode.
func (c *Connection) SetHotWaterEco(hotWaterZoneID string) error {
	return c.post(fmt.Sprintf("/hot-water-zones/%s/modes/anti-frost", hotWaterZoneID), nil)
}

// SetHotWaterComfortSetpoint sets the comfort setpoint of a hot-water zone.
func (c *Connection) SetHotWaterComfortSetpoint(hotWaterZoneID string, temperature float64) error {
	return c.post(fmt.Sprintf("/hot-water-zones/%s/comfort-setpoint", hotWaterZoneID), map[string]float64{
		"comfortSetpoint": temperature,
	})
}

// SetHotWaterReducedSetpoint sets the reduced setpoint of a hot-water zone.
func (c *Connection) SetHotWaterReducedSetpoint(hotWaterZoneID string, temperature float64) error {
	return c.post(fmt.Sprintf("/hot-water-zones/%s/reduced-setpoint", hotWaterZoneID), map[string]float64{
		"reducedSetpoint": temperature,
	})
}
