package source

import (
	"context"
	"fmt"
	"net/netip"
	"sort"

	"github.com/juju/collections/set"
	"github.com/pkg/errors"
	"go4.org/netipx"

	"github.com/rflorenc/racktables-migrator/internal/models"
)

type vlanRef struct {
	domain, vid int
}

// ipData is the address space of a view, loaded once and shared by the
// prefix, address, VLAN and interface stages.
type ipData struct {
	nets      []network
	allocs    []allocation
	addrs     map[netip.Addr]address
	extra     []netip.Addr
	netVLAN   map[string]vlanRef
	vlans     []vlanRef
	vlanNames map[vlanRef]string
	domains   map[int]string
	domainIDs []int
	// occupied is every network and every allocated, named, reserved or
	// annotated address of the database, regardless of the filters.
	occupied []netipx.IPRange
}

func netKey(realm string, id int) string {
	return fmt.Sprintf("%s:%d", realm, id)
}

func (v *View) families() []int {
	if v.r.cfg.IPv6 {
		return []int{4, 6}
	}
	return []int{4}
}

func (v *View) loadIP(ctx context.Context) (*ipData, error) {
	if v.ip != nil {
		return v.ip, nil
	}
	d := &ipData{addrs: make(map[netip.Addr]address), netVLAN: make(map[string]vlanRef)}

	var nets []network
	var allocs []allocation
	for _, fam := range v.families() {
		n, err := v.loadNetworks(ctx, fam)
		if err != nil {
			return nil, err
		}
		nets = append(nets, n...)
		a, err := v.loadAllocations(ctx, fam)
		if err != nil {
			return nil, err
		}
		allocs = append(allocs, a...)
		if err := v.loadAddresses(ctx, fam, d.addrs); err != nil {
			return nil, err
		}
	}

	var ab netipx.IPSetBuilder
	allocated := make(map[netip.Addr]bool, len(allocs))
	for _, a := range allocs {
		allocated[a.addr] = true
		if v.objectInScope(a.objectID) {
			d.allocs = append(d.allocs, a)
			ab.Add(a.addr)
		}
	}
	allocSet, err := ab.IPSet()
	if err != nil {
		return nil, errors.Wrap(err, "building allocation set")
	}

	var nb netipx.IPSetBuilder
	for _, n := range nets {
		d.occupied = append(d.occupied, netipx.RangeOfPrefix(n.prefix))
		if v.filtered() && !allocSet.OverlapsPrefix(n.prefix) {
			continue
		}
		nb.AddPrefix(n.prefix)
		// host networks only hold their address
		if n.prefix.IsSingleIP() {
			v.log.Debugf("SKIP: host network %s", n.prefix)
			continue
		}
		d.nets = append(d.nets, n)
	}
	netSet, err := nb.IPSet()
	if err != nil {
		return nil, errors.Wrap(err, "building network set")
	}

	for addr := range allocated {
		d.occupied = append(d.occupied, netipx.IPRangeFrom(addr, addr))
	}
	// named, reserved or annotated addresses nobody allocated, inside
	// migrated networks
	unallocated := set.NewStrings()
	var candidates []netip.Addr
	for addr, info := range d.addrs {
		if !allocated[addr] && (info.name != "" || info.reserved) {
			candidates = append(candidates, addr)
		}
	}
	for addr := range v.snap.notes.addrs {
		if !allocated[addr] {
			candidates = append(candidates, addr)
		}
	}
	for _, addr := range candidates {
		if unallocated.Contains(addr.String()) {
			continue
		}
		unallocated.Add(addr.String())
		d.occupied = append(d.occupied, netipx.IPRangeFrom(addr, addr))
		if netSet.Contains(addr) {
			d.extra = append(d.extra, addr)
		}
	}
	sortAddrs(d.extra)

	if err := v.loadVLANs(ctx, d); err != nil {
		return nil, err
	}
	v.ip = d
	v.log.Debugf("%d networks, %d allocations, %d unallocated addresses, %d vlans in scope",
		len(d.nets), len(d.allocs), len(d.extra), len(d.vlans))
	return d, nil
}

// Occupied lists the address space of the whole database, so that an
// analysis of a filtered view does not report other sites' space as free.
func (v *View) Occupied(ctx context.Context) ([]netipx.IPRange, error) {
	d, err := v.loadIP(ctx)
	if err != nil {
		return nil, err
	}
	return d.occupied, nil
}

func sortAddrs(addrs []netip.Addr) {
	sort.Slice(addrs, func(i, j int) bool { return addrs[i].Less(addrs[j]) })
}

func (v *View) loadNetworks(ctx context.Context, fam int) ([]network, error) {
	q := fmt.Sprintf(networksSQL, fam)
	var out []network
	if fam == 4 {
		var rows []network4Row
		if err := v.r.raw(ctx, &rows, q); err != nil {
			return nil, errors.Wrap(err, "reading IPv4 networks")
		}
		for _, r := range rows {
			p, err := addr4(r.IP).Prefix(r.Mask)
			if err != nil {
				v.log.Warnf("SKIP: network %d: %v", r.ID, err)
				continue
			}
			out = append(out, network{id: r.ID, realm: realmIPv4Net, prefix: p, name: r.Name, comment: r.Comment})
		}
		return out, nil
	}
	var rows []network6Row
	if err := v.r.raw(ctx, &rows, q); err != nil {
		return nil, errors.Wrap(err, "reading IPv6 networks")
	}
	for _, r := range rows {
		a, ok := addr6(r.IP)
		if !ok {
			v.log.Warnf("SKIP: network %d: malformed address", r.ID)
			continue
		}
		p, err := a.Prefix(r.Mask)
		if err != nil {
			v.log.Warnf("SKIP: network %d: %v", r.ID, err)
			continue
		}
		out = append(out, network{id: r.ID, realm: realmIPv6Net, prefix: p, name: r.Name, comment: r.Comment})
	}
	return out, nil
}

func (v *View) loadAllocations(ctx context.Context, fam int) ([]allocation, error) {
	q := fmt.Sprintf(allocationsSQL, fam)
	var out []allocation
	keep := func(objectID int, a netip.Addr, name, kind string) {
		if v.snap.objects[objectID] == nil {
			return
		}
		out = append(out, allocation{objectID: objectID, addr: a, name: name, kind: kind})
	}
	if fam == 4 {
		var rows []allocation4Row
		if err := v.r.raw(ctx, &rows, q); err != nil {
			return nil, errors.Wrap(err, "reading IPv4 allocations")
		}
		for _, r := range rows {
			keep(r.ObjectID, addr4(r.IP), r.Name, r.Type)
		}
		return out, nil
	}
	var rows []allocation6Row
	if err := v.r.raw(ctx, &rows, q); err != nil {
		return nil, errors.Wrap(err, "reading IPv6 allocations")
	}
	for _, r := range rows {
		if a, ok := addr6(r.IP); ok {
			keep(r.ObjectID, a, r.Name, r.Type)
		}
	}
	return out, nil
}

func (v *View) loadAddresses(ctx context.Context, fam int, into map[netip.Addr]address) error {
	q := fmt.Sprintf(addressesSQL, fam)
	if fam == 4 {
		var rows []address4Row
		if err := v.r.raw(ctx, &rows, q); err != nil {
			return errors.Wrap(err, "reading IPv4 addresses")
		}
		for _, r := range rows {
			into[addr4(r.IP)] = address{name: r.Name, comment: r.Comment, reserved: r.Reserved == "yes"}
		}
		return nil
	}
	var rows []address6Row
	if err := v.r.raw(ctx, &rows, q); err != nil {
		return errors.Wrap(err, "reading IPv6 addresses")
	}
	for _, r := range rows {
		if a, ok := addr6(r.IP); ok {
			into[a] = address{name: r.Name, comment: r.Comment, reserved: r.Reserved == "yes"}
		}
	}
	return nil
}

// loadVLANs reads domains, VLANs and their network links. VLAN names are
// made unique within a domain over the whole database so that a filtered
// run names them the same way a full one does.
func (v *View) loadVLANs(ctx context.Context, d *ipData) error {
	var domains []vlanDomainRow
	if err := v.r.raw(ctx, &domains, vlanDomainsSQL); err != nil {
		return errors.Wrap(err, "reading VLAN domains")
	}
	d.domains = make(map[int]string, len(domains))
	for _, dom := range domains {
		name := dom.Description
		if name == "" {
			name = fmt.Sprintf("domain-%d", dom.ID)
		}
		d.domains[dom.ID] = name
		d.domainIDs = append(d.domainIDs, dom.ID)
	}

	var rows []vlanRow
	if err := v.r.raw(ctx, &rows, vlansSQL); err != nil {
		return errors.Wrap(err, "reading VLANs")
	}
	d.vlanNames = make(map[vlanRef]string, len(rows))
	byDomain := make(map[int][]vlanRow)
	for _, r := range rows {
		byDomain[r.DomainID] = append(byDomain[r.DomainID], r)
	}
	for _, group := range byDomain {
		names := make([]string, len(group))
		for i, r := range group {
			names[i] = r.Descr
			if names[i] == "" {
				names[i] = fmt.Sprintf("VLAN%d", r.VLANID)
			}
		}
		for i, n := range dedupe(names, "-") {
			d.vlanNames[vlanRef{group[i].DomainID, group[i].VLANID}] = n
		}
	}

	for _, fam := range v.families() {
		var links []vlanLinkRow
		if err := v.r.raw(ctx, &links, fmt.Sprintf(vlanLinksSQL, fam, fam)); err != nil {
			return errors.Wrapf(err, "reading IPv%d VLAN links", fam)
		}
		realm := realmIPv4Net
		if fam == 6 {
			realm = realmIPv6Net
		}
		for _, l := range links {
			k := netKey(realm, l.NetID)
			if _, dup := d.netVLAN[k]; !dup {
				d.netVLAN[k] = vlanRef{l.DomainID, l.VLANID}
			}
		}
	}

	inScope := make(map[vlanRef]bool)
	for _, n := range d.nets {
		if ref, ok := d.netVLAN[netKey(n.realm, n.id)]; ok {
			inScope[ref] = true
		}
	}
	for _, r := range rows {
		ref := vlanRef{r.DomainID, r.VLANID}
		if _, known := d.domains[r.DomainID]; !known {
			continue
		}
		if !v.filtered() || inScope[ref] {
			d.vlans = append(d.vlans, ref)
		}
	}
	return nil
}

func (d *ipData) vlanKey(ref vlanRef) string {
	return models.VLANKey(d.domains[ref.domain], ref.vid)
}

func (v *View) vlanGroupRecords(ctx context.Context) ([]models.Record, error) {
	d, err := v.loadIP(ctx)
	if err != nil {
		return nil, err
	}
	used := set.NewInts()
	for _, ref := range d.vlans {
		used.Add(ref.domain)
	}
	var out []models.Record
	for _, id := range d.domainIDs {
		if v.filtered() && !used.Contains(id) {
			continue
		}
		out = append(out, &models.VLANGroupRecord{Name: d.domains[id], DomainID: id})
	}
	return out, nil
}

func (v *View) vlanRecords(ctx context.Context) ([]models.Record, error) {
	d, err := v.loadIP(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.Record, 0, len(d.vlans))
	for _, ref := range d.vlans {
		out = append(out, &models.VLANRecord{
			Group:  d.domains[ref.domain],
			VID:    ref.vid,
			Name:   d.vlanNames[ref],
			Tenant: v.filters.Tenant,
		})
	}
	return out, nil
}

func (v *View) prefixRecords(ctx context.Context) ([]models.Record, error) {
	d, err := v.loadIP(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.Record, 0, len(d.nets))
	for _, n := range d.nets {
		tags := v.snap.tagged(n.realm, n.id)
		rec := &models.PrefixRecord{
			Prefix:      n.prefix.String(),
			Status:      PrefixStatus(n.name, n.comment),
			Description: PrefixDescription(n.name, tags, n.comment),
			Name:        n.name,
			Site:        v.filters.Site,
			Tenant:      v.filters.Tenant,
			Tags:        tags,
		}
		if ref, ok := d.netVLAN[netKey(n.realm, n.id)]; ok {
			rec.VLAN = d.vlanKey(ref)
		}
		out = append(out, rec)
	}
	return out, nil
}

func (v *View) addressRecords(ctx context.Context) ([]models.Record, error) {
	d, err := v.loadIP(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.Record, 0, len(d.allocs)+len(d.extra))
	for _, a := range d.allocs {
		info := d.addrs[a.addr]
		rec := &models.IPAddressRecord{
			Address:     a.addr.String(),
			Role:        allocationRole(a.kind),
			Description: truncate(info.comment, maxDescription),
			Name:        info.name,
			Tenant:      v.filters.Tenant,
		}
		if info.reserved {
			rec.Status = "reserved"
		}
		v.annotate(rec, a.addr)
		key := models.InterfaceKey(v.snap.names[a.objectID], v.allocationInterface(a))
		if v.vms.Contains(a.objectID) {
			rec.VMInterface = key
		} else {
			rec.Interface = key
		}
		out = append(out, rec)
	}
	for _, addr := range d.extra {
		info := d.addrs[addr]
		rec := &models.IPAddressRecord{
			Address:     addr.String(),
			Description: truncate(info.comment, maxDescription),
			Name:        info.name,
			Tenant:      v.filters.Tenant,
		}
		if info.reserved {
			rec.Status = "reserved"
		}
		v.annotate(rec, addr)
		out = append(out, rec)
	}
	return out, nil
}

// annotate adds NAT and load balancer data. A virtual IP keeps the role of
// its allocation if it has one.
func (v *View) annotate(rec *models.IPAddressRecord, addr netip.Addr) {
	rec.CustomFields = v.snap.notes.addrs[addr]
	if rec.Role == "" && v.snap.notes.vips[addr] {
		rec.Role = "vip"
	}
}
