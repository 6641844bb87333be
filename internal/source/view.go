package source

import (
	"context"
	"sort"

	"github.com/juju/collections/set"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/rflorenc/racktables-migrator/internal/models"
)

// View is the source restricted to the filters of one run.
type View struct {
	r       *Reader
	filters models.Filters
	snap    *snapshot
	log     logrus.FieldLogger

	sites     []string
	racks     []int
	devices   set.Ints
	clusters  set.Ints
	vms       set.Ints
	unmounted bool

	ports *portIndex
	ip    *ipData
}

func newView(r *Reader, f models.Filters, snap *snapshot) *View {
	return &View{
		r:        r,
		filters:  f,
		snap:     snap,
		log:      r.log.WithField("component", "source"),
		devices:  set.NewInts(),
		clusters: set.NewInts(),
		vms:      set.NewInts(),
	}
}

func (v *View) filtered() bool {
	return v.filters.Site != "" || v.filters.Tenant != ""
}

// tenantOK reports whether an object passes the tenant filter.
func (v *View) tenantOK(id int) bool {
	return v.filters.Tenant == "" || v.snap.hasTag(realmObject, id, v.filters.Tenant)
}

// deviceSite is the site of the rack a device sits in, the site of a racked
// parent (blades in a chassis), or the configured site for unracked gear.
func (v *View) deviceSite(id int) string {
	if p := v.snap.placement[id]; p != nil {
		return v.snap.racks[p.rack].site
	}
	for _, parent := range v.snap.parents[id] {
		if p := v.snap.placement[parent]; p != nil {
			return v.snap.racks[p.rack].site
		}
	}
	return v.r.cfg.UnrackedSite
}

// clusterOf returns the first cluster an object is linked under, or 0.
func (v *View) clusterOf(id int) int {
	for _, parent := range v.snap.parents[id] {
		if o := v.snap.objects[parent]; o != nil && o.ObjtypeID == objtypeCluster {
			return parent
		}
	}
	return 0
}

func (v *View) computeScope() {
	s := v.snap
	for _, id := range s.order {
		o := s.objects[id]
		if !isDevice(o) {
			continue
		}
		if s.names[id] == "" {
			v.log.Debugf("SKIP: object %d has no name", id)
			continue
		}
		if v.filters.Site != "" && v.deviceSite(id) != v.filters.Site {
			continue
		}
		if v.tenantOK(id) {
			v.devices.Add(id)
		}
	}

	for _, id := range s.order {
		o := s.objects[id]
		if o.ObjtypeID != objtypeCluster || s.names[id] == "" {
			continue
		}
		if !v.filtered() {
			v.clusters.Add(id)
			continue
		}
		for _, c := range s.children[id] {
			if v.devices.Contains(c) {
				v.clusters.Add(id)
				break
			}
		}
	}

	for _, id := range s.order {
		o := s.objects[id]
		if o.ObjtypeID != objtypeVM || s.names[id] == "" {
			continue
		}
		cluster := v.clusterOf(id)
		if v.filters.Site != "" && !v.clusters.Contains(cluster) {
			continue
		}
		if !v.tenantOK(id) {
			continue
		}
		v.vms.Add(id)
		if cluster == 0 {
			v.unmounted = true
		} else {
			v.clusters.Add(cluster)
		}
	}

	sites := set.NewStrings()
	switch {
	case v.filters.Site != "":
		sites.Add(v.filters.Site)
	case v.filters.Tenant != "":
		for _, id := range v.devices.Values() {
			if site := v.deviceSite(id); site != "" {
				sites.Add(site)
			}
		}
	default:
		for name := range s.locations {
			sites.Add(name)
		}
		for _, id := range v.devices.Values() {
			if site := v.deviceSite(id); site != "" {
				sites.Add(site)
			}
		}
	}
	v.sites = sites.SortedValues()

	var hosting set.Ints
	if v.filters.Tenant != "" {
		hosting = set.NewInts()
		for _, id := range v.devices.Values() {
			if p := s.placement[id]; p != nil {
				hosting.Add(p.rack)
			}
		}
	}
	for _, id := range s.order {
		place, ok := s.racks[id]
		if !ok || !sites.Contains(place.site) {
			continue
		}
		if hosting != nil && !hosting.Contains(id) {
			continue
		}
		v.racks = append(v.racks, id)
	}
}

// objectInScope reports whether allocations and ports of id are migrated.
func (v *View) objectInScope(id int) bool {
	return v.devices.Contains(id) || v.vms.Contains(id)
}

// Query returns the records of one entity type in dependency-safe form.
func (v *View) Query(ctx context.Context, t models.EntityType) ([]models.Record, error) {
	switch t {
	case models.CustomField:
		return v.customFieldRecords(), nil
	case models.Tag:
		return v.tagRecords(), nil
	case models.Tenant:
		if v.filters.Tenant == "" {
			return nil, nil
		}
		return []models.Record{&models.TenantRecord{Name: v.filters.Tenant}}, nil
	case models.Site:
		return v.siteRecords(), nil
	case models.Rack:
		return v.rackRecords(), nil
	case models.VLANGroup:
		return v.vlanGroupRecords(ctx)
	case models.VLAN:
		return v.vlanRecords(ctx)
	case models.Manufacturer, models.DeviceRole, models.DeviceType:
		return v.deviceTypeRecords(t), nil
	case models.Device:
		return v.deviceRecords(), nil
	case models.ClusterType, models.Cluster:
		return v.clusterRecords(t), nil
	case models.VirtualMachine:
		return v.vmRecords(), nil
	case models.Interface:
		return v.interfaceRecords(ctx)
	case models.VMInterface:
		return v.vmInterfaceRecords(ctx)
	case models.Prefix:
		return v.prefixRecords(ctx)
	case models.IPAddress:
		return v.addressRecords(ctx)
	case models.IPRange:
		// RackTables has no ranges; they only come from the analysis.
		return nil, nil
	case models.Cable:
		return v.cableRecords(ctx)
	case models.Service:
		return v.serviceRecords(ctx)
	}
	return nil, errors.Errorf("no source query for %s", t)
}

// customFieldRecords are the fields every migration writes, then the ones
// the enabled extras need.
func (v *View) customFieldRecords() []models.Record {
	out := []models.Record{
		&models.CustomFieldRecord{
			Name: models.CustomFieldVLANDomain, Label: "VLAN Domain ID", Kind: "integer",
			ObjectTypes: []string{"ipam.vlangroup"}, Description: "RackTables VLAN domain id",
		},
		&models.CustomFieldRecord{
			Name: models.CustomFieldPrefixName, Label: "Prefix Name", Kind: "text",
			ObjectTypes: []string{"ipam.prefix"}, Description: "RackTables network name",
		},
		&models.CustomFieldRecord{
			Name: models.CustomFieldIPName, Label: "IP Name", Kind: "text",
			ObjectTypes: []string{"ipam.ipaddress"}, Description: "RackTables address name",
		},
	}
	return append(out, v.snap.notes.fields...)
}

func (v *View) tagRecords() []models.Record {
	ids := make([]int, 0, len(v.snap.tagNames))
	for id := range v.snap.tagNames {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	seen := set.NewStrings()
	var out []models.Record
	for _, id := range ids {
		name := v.snap.tagNames[id]
		if name == "" || seen.Contains(name) {
			continue
		}
		seen.Add(name)
		out = append(out, &models.TagRecord{Name: name})
	}
	return out
}

func (v *View) siteRecords() []models.Record {
	out := make([]models.Record, 0, len(v.sites))
	for _, name := range v.sites {
		rec := &models.SiteRecord{Name: name, Tenant: v.filters.Tenant}
		if id, ok := v.snap.locations[name]; ok {
			o := v.snap.objects[id]
			rec.Description = truncate(o.Label, maxDescription)
			rec.Comments = o.Comment
			rec.Tags = v.snap.tagged(realmObject, id)
		}
		out = append(out, rec)
	}
	return out
}

func (v *View) rackRecords() []models.Record {
	out := make([]models.Record, 0, len(v.racks))
	for _, id := range v.racks {
		place := v.snap.racks[id]
		rec := &models.RackRecord{
			Name:     place.name,
			Site:     place.site,
			Comments: v.snap.objects[id].Comment,
			Tenant:   v.filters.Tenant,
			Tags:     v.snap.tagged(realmObject, id),
		}
		if a, ok := v.snap.attr(id, attrRackHeight); ok {
			rec.Height = int(a.UintValue)
		}
		out = append(out, rec)
	}
	return out
}

// deviceType is the derived type information of one device.
type deviceType struct {
	role, model, manufacturer string
	height                    int
	fullDepth                 bool
}

func (v *View) deviceTypeOf(id int) deviceType {
	o := v.snap.objects[id]
	dt := deviceType{role: v.snap.objtypeName(o.ObjtypeID)}
	if p := v.snap.placement[id]; p != nil {
		dt.height = p.units.Size()
		dt.fullDepth = p.fullDepth()
	}
	hw := ""
	if a, ok := v.snap.attr(id, attrHWType); ok && a.UintValue != 0 {
		hw = v.snap.dict[int(a.UintValue)]
	}
	dt.model, dt.manufacturer = deviceTypeModel(hw, dt.role, dt.height, dt.fullDepth)
	return dt
}

// deviceTypeRecords derives manufacturers, roles and device types from the
// in-scope devices.
func (v *View) deviceTypeRecords(t models.EntityType) []models.Record {
	seen := set.NewStrings()
	var out []models.Record
	for _, id := range v.devices.SortedValues() {
		dt := v.deviceTypeOf(id)
		var rec models.Record
		switch t {
		case models.Manufacturer:
			rec = &models.ManufacturerRecord{Name: dt.manufacturer}
		case models.DeviceRole:
			rec = &models.DeviceRoleRecord{Name: dt.role}
		default:
			rec = &models.DeviceTypeRecord{
				Model:        dt.model,
				Manufacturer: dt.manufacturer,
				Height:       dt.height,
				FullDepth:    dt.fullDepth,
			}
		}
		if seen.Contains(rec.NaturalKey()) {
			continue
		}
		seen.Add(rec.NaturalKey())
		out = append(out, rec)
	}
	return out
}

func (v *View) deviceRecords() []models.Record {
	out := make([]models.Record, 0, v.devices.Size())
	for _, id := range v.devices.SortedValues() {
		o := v.snap.objects[id]
		dt := v.deviceTypeOf(id)
		rec := &models.DeviceRecord{
			Name:         v.snap.names[id],
			Role:         dt.role,
			DeviceType:   dt.model,
			Site:         v.deviceSite(id),
			AssetTag:     o.AssetNo,
			Label:        o.Label,
			Comments:     o.Comment,
			Tenant:       v.filters.Tenant,
			Tags:         v.snap.tagged(realmObject, id),
			CustomFields: v.snap.notes.objects[id],
		}
		if p := v.snap.placement[id]; p != nil {
			if place, ok := v.snap.racks[p.rack]; ok {
				rec.Rack = place.name
				rec.Position = p.position()
				rec.Face = p.face()
			}
		}
		if a, ok := v.snap.attr(id, attrSerial); ok {
			rec.Serial = a.StringValue
		}
		if c := v.clusterOf(id); c != 0 && v.clusters.Contains(c) {
			rec.Cluster = v.snap.names[c]
		}
		out = append(out, rec)
	}
	return out
}

// clusterRecords also yields the cluster types; RackTables has none, so
// every cluster is its own type.
func (v *View) clusterRecords(t models.EntityType) []models.Record {
	var out []models.Record
	add := func(name, site, comments string, tags []string) {
		if t == models.ClusterType {
			out = append(out, &models.ClusterTypeRecord{Name: name})
			return
		}
		out = append(out, &models.ClusterRecord{
			Name: name, ClusterType: name, Site: site, Comments: comments,
			Tenant: v.filters.Tenant, Tags: tags,
		})
	}
	for _, id := range v.clusters.SortedValues() {
		o := v.snap.objects[id]
		add(v.snap.names[id], v.clusterSite(id), o.Comment, v.snap.tagged(realmObject, id))
	}
	if v.unmounted {
		add(UnmountedCluster, "", "", nil)
	}
	return out
}

// clusterSite is the one site all in-scope hosts of a cluster share, or
// empty.
func (v *View) clusterSite(id int) string {
	if v.filters.Site != "" {
		return v.filters.Site
	}
	site := ""
	for _, c := range v.snap.children[id] {
		if !v.devices.Contains(c) {
			continue
		}
		s := v.deviceSite(c)
		if site != "" && s != site {
			return ""
		}
		site = s
	}
	return site
}

func (v *View) vmRecords() []models.Record {
	out := make([]models.Record, 0, v.vms.Size())
	for _, id := range v.vms.SortedValues() {
		cluster := UnmountedCluster
		if c := v.clusterOf(id); c != 0 {
			cluster = v.snap.names[c]
		}
		out = append(out, &models.VirtualMachineRecord{
			Name:         v.snap.names[id],
			Cluster:      cluster,
			Comments:     v.snap.objects[id].Comment,
			Tenant:       v.filters.Tenant,
			Tags:         v.snap.tagged(realmObject, id),
			CustomFields: v.snap.notes.objects[id],
		})
	}
	return out
}
