package models

import (
	"fmt"
	"strings"
)

// EntityType identifies one kind of inventory object. The set is closed:
// every record variant in records.go maps to exactly one value.
type EntityType int

const (
	CustomField EntityType = iota
	Tag
	Tenant
	Site
	Rack
	VLANGroup
	VLAN
	Manufacturer
	DeviceRole
	DeviceType
	Device
	ClusterType
	Cluster
	VirtualMachine
	Interface
	VMInterface
	Prefix
	IPAddress
	IPRange
	Cable
	Service

	numEntityTypes
)

var entityTypeNames = [numEntityTypes]string{
	CustomField:    "custom_field",
	Tag:            "tag",
	Tenant:         "tenant",
	Site:           "site",
	Rack:           "rack",
	VLANGroup:      "vlan_group",
	VLAN:           "vlan",
	Manufacturer:   "manufacturer",
	DeviceRole:     "device_role",
	DeviceType:     "device_type",
	Device:         "device",
	ClusterType:    "cluster_type",
	Cluster:        "cluster",
	VirtualMachine: "virtual_machine",
	Interface:      "interface",
	VMInterface:    "vm_interface",
	Prefix:         "prefix",
	IPAddress:      "ip_address",
	IPRange:        "ip_range",
	Cable:          "cable",
	Service:        "service",
}

func (t EntityType) String() string {
	if t < 0 || t >= numEntityTypes {
		return fmt.Sprintf("entity_type(%d)", int(t))
	}
	return entityTypeNames[t]
}

// MarshalText lets entity types be used as JSON and YAML map keys.
func (t EntityType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *EntityType) UnmarshalText(b []byte) error {
	parsed, err := ParseEntityType(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ParseEntityType accepts the snake_case name of an entity type.
func ParseEntityType(s string) (EntityType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range entityTypeNames {
		if name == s {
			return EntityType(i), nil
		}
	}
	return 0, fmt.Errorf("unknown entity type %q", s)
}

// AllEntityTypes returns every entity type in declaration order.
func AllEntityTypes() []EntityType {
	all := make([]EntityType, numEntityTypes)
	for i := range all {
		all[i] = EntityType(i)
	}
	return all
}

// IsExtended reports whether the type belongs to the extended stage subset.
func (t EntityType) IsExtended() bool {
	switch t {
	case Cable, Service, IPRange:
		return true
	}
	return false
}

// Subset selects which stages a run processes.
type Subset string

const (
	SubsetAll      Subset = "all"
	SubsetBasic    Subset = "basic"
	SubsetExtended Subset = "extended"
)

// Includes reports whether records of type t are processed under s.
func (s Subset) Includes(t EntityType) bool {
	switch s {
	case SubsetBasic:
		return !t.IsExtended()
	case SubsetExtended:
		return t.IsExtended()
	}
	return true
}

// IncludesAnalysis reports whether the address-space analysis runs under s.
func (s Subset) IncludesAnalysis() bool {
	return s != SubsetBasic
}

// Filters is the structured input of one migration run.
type Filters struct {
	Site   string `json:"site,omitempty" yaml:"site,omitempty"`
	Tenant string `json:"tenant,omitempty" yaml:"tenant,omitempty"`
	Subset Subset `json:"subset,omitempty" yaml:"subset,omitempty"`
	DryRun bool   `json:"dry_run,omitempty" yaml:"dry_run,omitempty"`
}

// TargetEntity is an object as it exists on the target system.
type TargetEntity struct {
	RemoteID   int        `json:"remote_id"`
	Type       EntityType `json:"entity_type"`
	NaturalKey string     `json:"natural_key"`
}
