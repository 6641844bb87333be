package config

import (
	"fmt"

	"github.com/juju/collections/set"

	"github.com/rflorenc/racktables-migrator/internal/models"
)

// Toggles enables or disables the migration of each entity type.
type Toggles struct {
	CustomFields    bool `yaml:"custom_fields"`
	Tags            bool `yaml:"tags"`
	Tenants         bool `yaml:"tenants"`
	Sites           bool `yaml:"sites"`
	Racks           bool `yaml:"racks"`
	VLANGroups      bool `yaml:"vlan_groups"`
	VLANs           bool `yaml:"vlans"`
	Manufacturers   bool `yaml:"manufacturers"`
	DeviceRoles     bool `yaml:"device_roles"`
	DeviceTypes     bool `yaml:"device_types"`
	Devices         bool `yaml:"devices"`
	ClusterTypes    bool `yaml:"cluster_types"`
	Clusters        bool `yaml:"clusters"`
	VirtualMachines bool `yaml:"virtual_machines"`
	Interfaces      bool `yaml:"interfaces"`
	VMInterfaces    bool `yaml:"vm_interfaces"`
	Prefixes        bool `yaml:"prefixes"`
	IPAddresses     bool `yaml:"ip_addresses"`
	IPRanges        bool `yaml:"ip_ranges"`
	Cables          bool `yaml:"cables"`
	Services        bool `yaml:"services"`
}

// AllEnabled turns every entity type on.
func AllEnabled() Toggles {
	return Toggles{
		CustomFields: true, Tags: true, Tenants: true, Sites: true, Racks: true,
		VLANGroups: true, VLANs: true, Manufacturers: true, DeviceRoles: true,
		DeviceTypes: true, Devices: true, ClusterTypes: true, Clusters: true,
		VirtualMachines: true, Interfaces: true, VMInterfaces: true, Prefixes: true,
		IPAddresses: true, IPRanges: true, Cables: true, Services: true,
	}
}

// Enabled reports whether records of type t are migrated.
func (t Toggles) Enabled(et models.EntityType) bool {
	switch et {
	case models.CustomField:
		return t.CustomFields
	case models.Tag:
		return t.Tags
	case models.Tenant:
		return t.Tenants
	case models.Site:
		return t.Sites
	case models.Rack:
		return t.Racks
	case models.VLANGroup:
		return t.VLANGroups
	case models.VLAN:
		return t.VLANs
	case models.Manufacturer:
		return t.Manufacturers
	case models.DeviceRole:
		return t.DeviceRoles
	case models.DeviceType:
		return t.DeviceTypes
	case models.Device:
		return t.Devices
	case models.ClusterType:
		return t.ClusterTypes
	case models.Cluster:
		return t.Clusters
	case models.VirtualMachine:
		return t.VirtualMachines
	case models.Interface:
		return t.Interfaces
	case models.VMInterface:
		return t.VMInterfaces
	case models.Prefix:
		return t.Prefixes
	case models.IPAddress:
		return t.IPAddresses
	case models.IPRange:
		return t.IPRanges
	case models.Cable:
		return t.Cables
	case models.Service:
		return t.Services
	}
	return false
}

// Exclusions parses the exclude section into natural-key sets per type.
func (c Config) Exclusions() (map[models.EntityType]set.Strings, error) {
	out := make(map[models.EntityType]set.Strings, len(c.Exclude))
	for name, keys := range c.Exclude {
		et, err := models.ParseEntityType(name)
		if err != nil {
			return nil, fmt.Errorf("exclude: %w", err)
		}
		out[et] = set.NewStrings(keys...)
	}
	return out, nil
}
