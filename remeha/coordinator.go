package remeha

import (
	"fmt"
	"time"

	"github.com/evcc-io/evcc/provider"
	"github.com/evcc-io/evcc/util"
)

// SnapshotStore is the poller contract the entities consume. Entities only
// ever read the latest snapshot and ask for a refresh; they never mutate it.
type SnapshotStore interface {
	Appliance(id string) (Appliance, bool)
	ClimateZone(id string) (ClimateZoneStatus, bool)
	HotWaterZone(id string) (HotWaterZoneStatus, bool)
	RequestRefresh()
}

type reconciler interface {
	reconcile()
}

// Coordinator polls the dashboard and hands out indexed snapshot data to
// the entities. It owns the only writer of the snapshot; all entity methods
// are expected to run on the host's single update loop.
type Coordinator struct {
	log  *util.Logger
	conn *Connection

	cache provider.Cacheable[Dashboard]

	data          Dashboard
	appliances    map[string]Appliance
	climateZones  map[string]ClimateZoneStatus
	hotWaterZones map[string]HotWaterZoneStatus
	applianceFor  map[string]string

	techInfo map[string]TechnicalInformation
	entities []reconciler
}

// NewCoordinator creates a coordinator caching dashboard reads for the
// given duration. A zero duration selects a 60s default.
func NewCoordinator(log *util.Logger, conn *Connection, cache time.Duration) *Coordinator {
	if cache == 0 {
		cache = 60 * time.Second
	}

	c := &Coordinator{
		log:      log,
		conn:     conn,
		techInfo: make(map[string]TechnicalInformation),
	}
	c.cache = provider.ResettableCached(conn.GetDashboard, cache)

	return c
}

// Refresh invalidates the cached dashboard, fetches a new snapshot and
// reconciles all registered entities against it.
func (c *Coordinator) Refresh() error {
	c.cache.Reset()
	return c.update()
}

func (c *Coordinator) update() error {
	dash, err := c.cache.Get()
	if err != nil {
		return fmt.Errorf("could not refresh dashboard: %w", err)
	}

	c.data = dash
	c.appliances = make(map[string]Appliance, len(dash.Appliances))
	c.climateZones = make(map[string]ClimateZoneStatus)
	c.hotWaterZones = make(map[string]HotWaterZoneStatus)
	c.applianceFor = make(map[string]string)

	for _, appliance := range dash.Appliances {
		c.appliances[appliance.ApplianceID] = appliance
		c.applianceFor[appliance.ApplianceID] = appliance.ApplianceID

		for _, zone := range appliance.ClimateZones {
			c.climateZones[zone.ClimateZoneID] = zone
			c.applianceFor[zone.ClimateZoneID] = appliance.ApplianceID
		}
		for _, zone := range appliance.HotWaterZones {
			c.hotWaterZones[zone.HotWaterZoneID] = zone
			c.applianceFor[zone.HotWaterZoneID] = appliance.ApplianceID
		}
	}

	for _, e := range c.entities {
		e.reconcile()
	}

	return nil
}

// RequestRefresh implements the fire-and-forget refresh request entities
// issue after a write. Failures are logged, not surfaced; the next poll
// cycle will catch up.
func (c *Coordinator) RequestRefresh() {
	if err := c.Refresh(); err != nil {
		c.log.ERROR.Println("refresh request failed:", err)
	}
}

func (c *Coordinator) Appliance(id string) (Appliance, bool) {
	appliance, ok := c.appliances[id]
	return appliance, ok
}

func (c *Coordinator) ClimateZone(id string) (ClimateZoneStatus, bool) {
	zone, ok := c.climateZones[id]
	return zone, ok
}

func (c *Coordinator) HotWaterZone(id string) (HotWaterZoneStatus, bool) {
	zone, ok := c.hotWaterZones[id]
	return zone, ok
}

// DeviceInfo returns device details for the appliance owning the given
// entity id. Technical details are fetched once per appliance and memoized.
func (c *Coordinator) DeviceInfo(id string) (DeviceInfo, error) {
	applianceID, ok := c.applianceFor[id]
	if !ok {
		return DeviceInfo{}, fmt.Errorf("unknown entity id: %s", id)
	}

	info, ok := c.techInfo[applianceID]
	if !ok {
		var err error
		info, err = c.conn.GetTechnicalInformation(applianceID)
		if err != nil {
			return DeviceInfo{}, err
		}
		c.techInfo[applianceID] = info
	}

	name := info.ApplianceName
	if name == "" {
		name = c.appliances[applianceID].HouseName
	}

	return DeviceInfo{
		Identifier:      applianceID,
		Name:            name,
		Manufacturer:    "Remeha",
		SerialNumber:    info.SerialNumber,
		SoftwareVersion: info.SoftwareVersion,
		HardwareVersion: info.HardwareVersion,
	}, nil
}

// ClimateZones builds one climate entity per climate zone in the current
// snapshot and registers it for snapshot reconciliation.
func (c *Coordinator) ClimateZones() []*ClimateZone {
	var res []*ClimateZone
	for _, appliance := range c.data.Appliances {
		for _, zone := range appliance.ClimateZones {
			entity := NewClimateZone(c.log, c.conn, c, appliance.ApplianceID, zone.ClimateZoneID)
			c.entities = append(c.entities, entity)
			res = append(res, entity)
		}
	}
	return res
}

// HotWaterZones builds one water heater entity per hot-water zone in the
// current snapshot.
func (c *Coordinator) HotWaterZones() []*HotWaterZone {
	var res []*HotWaterZone
	for _, appliance := range c.data.Appliances {
		for _, zone := range appliance.HotWaterZones {
			res = append(res, NewHotWaterZone(c.log, c.conn, c, zone.HotWaterZoneID))
		}
	}
	return res
}
