package schedule

import "github.com/rflorenc/racktables-migrator/internal/models"

// DefaultEdges is the dependency graph of the RackTables to NetBox migration.
var DefaultEdges = join(
	fanOut(models.CustomField, models.VLANGroup, models.Device, models.VirtualMachine, models.Prefix, models.IPAddress),
	fanOut(models.Tag, models.Site, models.Rack, models.Device, models.Cluster, models.VirtualMachine, models.Prefix, models.IPAddress, models.IPRange, models.Cable),
	fanOut(models.Tenant, models.Site, models.Rack, models.VLAN, models.Device, models.Cluster, models.VirtualMachine, models.Prefix, models.IPAddress),
	fanOut(models.Site, models.Rack, models.Device, models.Cluster, models.Prefix),
	fanOut(models.Rack, models.Device),
	fanOut(models.VLANGroup, models.VLAN),
	fanOut(models.VLAN, models.Prefix),
	fanOut(models.Manufacturer, models.DeviceType),
	fanOut(models.DeviceType, models.Device),
	fanOut(models.DeviceRole, models.Device),
	fanOut(models.ClusterType, models.Cluster),
	fanOut(models.Cluster, models.VirtualMachine, models.Device),
	fanOut(models.Device, models.Interface, models.Service),
	fanOut(models.VirtualMachine, models.VMInterface, models.Service),
	fanOut(models.Interface, models.IPAddress, models.Cable),
	fanOut(models.VMInterface, models.IPAddress),
)

func fanOut(before models.EntityType, after ...models.EntityType) []Edge {
	edges := make([]Edge, 0, len(after))
	for _, a := range after {
		edges = append(edges, Edge{Before: before, After: a})
	}
	return edges
}

func join(groups ...[]Edge) []Edge {
	var all []Edge
	for _, g := range groups {
		all = append(all, g...)
	}
	return all
}
