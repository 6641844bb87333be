package netbox

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/gosimple/slug"

	"github.com/rflorenc/racktables-migrator/internal/models"
)

// endpoints maps each entity type to its list endpoint.
var endpoints = map[models.EntityType]string{
	models.CustomField:    "/api/extras/custom-fields/",
	models.Tag:            "/api/extras/tags/",
	models.Tenant:         "/api/tenancy/tenants/",
	models.Site:           "/api/dcim/sites/",
	models.Rack:           "/api/dcim/racks/",
	models.VLANGroup:      "/api/ipam/vlan-groups/",
	models.VLAN:           "/api/ipam/vlans/",
	models.Manufacturer:   "/api/dcim/manufacturers/",
	models.DeviceRole:     "/api/dcim/device-roles/",
	models.DeviceType:     "/api/dcim/device-types/",
	models.Device:         "/api/dcim/devices/",
	models.ClusterType:    "/api/virtualization/cluster-types/",
	models.Cluster:        "/api/virtualization/clusters/",
	models.VirtualMachine: "/api/virtualization/virtual-machines/",
	models.Interface:      "/api/dcim/interfaces/",
	models.VMInterface:    "/api/virtualization/interfaces/",
	models.Prefix:         "/api/ipam/prefixes/",
	models.IPAddress:      "/api/ipam/ip-addresses/",
	models.IPRange:        "/api/ipam/ip-ranges/",
	models.Cable:          "/api/dcim/cables/",
	models.Service:        "/api/ipam/services/",
}

// Endpoint returns the list endpoint of an entity type.
func Endpoint(t models.EntityType) (string, error) {
	path, ok := endpoints[t]
	if !ok {
		return "", fmt.Errorf("no endpoint for entity type %v", t)
	}
	return path, nil
}

// lookupQuery turns a natural key into the list filters that select the
// object it names.
func lookupQuery(t models.EntityType, key string) (url.Values, error) {
	switch t {
	case models.DeviceType:
		return url.Values{"model": {key}}, nil
	case models.VLAN:
		i := strings.LastIndex(key, "/")
		if i <= 0 {
			return nil, fmt.Errorf("malformed vlan key %q", key)
		}
		if _, err := strconv.Atoi(key[i+1:]); err != nil {
			return nil, fmt.Errorf("malformed vlan key %q", key)
		}
		return url.Values{"group": {slug.Make(key[:i])}, "vid": {key[i+1:]}}, nil
	case models.Interface, models.VMInterface:
		parent, name, ok := models.SplitInterfaceKey(key)
		if !ok {
			return nil, fmt.Errorf("malformed interface key %q", key)
		}
		if t == models.VMInterface {
			return url.Values{"virtual_machine": {parent}, "name": {name}}, nil
		}
		return url.Values{"device": {parent}, "name": {name}}, nil
	case models.Prefix:
		return url.Values{"prefix": {key}}, nil
	case models.IPAddress:
		return url.Values{"address": {key}}, nil
	case models.IPRange:
		start, end, ok := strings.Cut(key, "-")
		if !ok {
			return nil, fmt.Errorf("malformed ip range key %q", key)
		}
		return url.Values{"start_address": {start}, "end_address": {end}}, nil
	case models.Cable:
		return url.Values{"label": {key}}, nil
	case models.Service:
		return serviceQuery(key)
	}
	return url.Values{"name": {key}}, nil
}

// serviceQuery selects the service named by a models.ServiceRecord key.
func serviceQuery(key string) (url.Values, error) {
	kind, parent, name, proto, ok := models.SplitServiceKey(key)
	if !ok {
		return nil, fmt.Errorf("malformed service key %q", key)
	}
	q := url.Values{"name": {name}, "protocol": {proto}}
	if kind == "vm" {
		q.Set("virtual_machine", parent)
	} else {
		q.Set("device", parent)
	}
	return q, nil
}
