package source

import (
	"context"
	"sort"
	"strings"

	"github.com/juju/collections/set"
	"github.com/pkg/errors"

	"github.com/rflorenc/racktables-migrator/internal/models"
)

// port is a Port row with its owner and normalized name.
type port struct {
	objectID int
	name     string
	row      portRow
}

type portIndex struct {
	byID  map[int]port
	order []int
	names map[int]set.Strings
}

func (idx *portIndex) has(objectID int, name string) bool {
	return idx.names[objectID].Contains(name)
}

// loadPorts reads every port once per view. Duplicate names on one object
// collapse onto the first port.
func (v *View) loadPorts(ctx context.Context) (*portIndex, error) {
	if v.ports != nil {
		return v.ports, nil
	}
	var rows []portRow
	if err := v.r.raw(ctx, &rows, portsSQL); err != nil {
		return nil, errors.Wrap(err, "reading ports")
	}
	idx := &portIndex{byID: make(map[int]port), names: make(map[int]set.Strings)}
	for _, p := range rows {
		o := v.snap.objects[p.ObjectID]
		if o == nil || strings.TrimSpace(p.Name) == "" {
			continue
		}
		name := NormalizeInterfaceName(o.ObjtypeID, strings.TrimSpace(p.Name))
		if idx.names[p.ObjectID] == nil {
			idx.names[p.ObjectID] = set.NewStrings()
		}
		idx.byID[p.ID] = port{objectID: p.ObjectID, name: name, row: p}
		if idx.names[p.ObjectID].Contains(name) {
			v.log.Debugf("SKIP: duplicate port %s on %s", name, v.snap.names[p.ObjectID])
			continue
		}
		idx.names[p.ObjectID].Add(name)
		idx.order = append(idx.order, p.ID)
	}
	v.ports = idx
	return idx, nil
}

// allocationInterface names the interface an address allocation sits on.
func (v *View) allocationInterface(a allocation) string {
	name := strings.TrimSpace(a.name)
	if name == "" {
		name = "unnamed"
	}
	return NormalizeInterfaceName(v.snap.objects[a.objectID].ObjtypeID, name)
}

func (v *View) interfaceRecords(ctx context.Context) ([]models.Record, error) {
	return v.portRecords(ctx, v.devices, func(p port) models.Record {
		return &models.InterfaceRecord{
			Device:      v.snap.names[p.objectID],
			Name:        p.name,
			Kind:        interfaceKind(p.row.OIFName),
			Label:       truncate(p.row.Label, 64),
			Description: truncate(p.row.ReservationComment, maxDescription),
		}
	}, func(objectID int, name string) models.Record {
		return &models.InterfaceRecord{Device: v.snap.names[objectID], Name: name, Kind: "virtual"}
	})
}

func (v *View) vmInterfaceRecords(ctx context.Context) ([]models.Record, error) {
	return v.portRecords(ctx, v.vms, func(p port) models.Record {
		return &models.VMInterfaceRecord{
			VirtualMachine: v.snap.names[p.objectID],
			Name:           p.name,
			Description:    truncate(p.row.ReservationComment, maxDescription),
		}
	}, func(objectID int, name string) models.Record {
		return &models.VMInterfaceRecord{VirtualMachine: v.snap.names[objectID], Name: name}
	})
}

// portRecords converts the ports of owners and synthesizes virtual
// interfaces for allocations that name an interface with no port row.
func (v *View) portRecords(ctx context.Context, owners set.Ints,
	fromPort func(port) models.Record, virtual func(objectID int, name string) models.Record) ([]models.Record, error) {
	idx, err := v.loadPorts(ctx)
	if err != nil {
		return nil, err
	}
	var out []models.Record
	for _, id := range idx.order {
		p := idx.byID[id]
		if owners.Contains(p.objectID) {
			out = append(out, fromPort(p))
		}
	}

	ip, err := v.loadIP(ctx)
	if err != nil {
		return nil, err
	}
	added := set.NewStrings()
	for _, a := range ip.allocs {
		if !owners.Contains(a.objectID) {
			continue
		}
		name := v.allocationInterface(a)
		key := models.InterfaceKey(v.snap.names[a.objectID], name)
		if idx.has(a.objectID, name) || added.Contains(key) {
			continue
		}
		added.Add(key)
		v.log.Debugf("VIRTUAL: %s for %s", key, a.addr)
		out = append(out, virtual(a.objectID, name))
	}
	return out, nil
}

func (v *View) cableRecords(ctx context.Context) ([]models.Record, error) {
	idx, err := v.loadPorts(ctx)
	if err != nil {
		return nil, err
	}
	var links []cableLinkRow
	if err := v.r.raw(ctx, &links, linkSQL); err != nil {
		return nil, errors.Wrap(err, "reading links")
	}
	heap := make(map[int]cableHeapRow)
	if v.r.hasTable("PatchCableHeap") {
		var rows []cableHeapRow
		if err := v.r.raw(ctx, &rows, cableHeapSQL); err != nil {
			return nil, errors.Wrap(err, "reading patch cables")
		}
		for _, c := range rows {
			heap[c.ID] = c
		}
	}

	var out []models.Record
	for _, l := range links {
		a, okA := idx.byID[l.PortA]
		b, okB := idx.byID[l.PortB]
		if !okA || !okB || !v.devices.Contains(a.objectID) || !v.devices.Contains(b.objectID) {
			continue
		}
		rec := &models.CableRecord{
			A: models.InterfaceKey(v.snap.names[a.objectID], a.name),
			B: models.InterfaceKey(v.snap.names[b.objectID], b.name),
		}
		if c, ok := heap[l.Cable]; ok && l.Cable != 0 {
			rec.Length = c.Length
			rec.Comments = c.Description
			if color, ok := hexColor(c.Color); ok {
				rec.Color = color
			} else if c.Color != "" {
				rec.Comments = strings.TrimSpace(rec.Comments + " (color " + c.Color + ")")
			}
		}
		out = append(out, rec)
	}
	return out, nil
}

// hexColor accepts "ff0000" and "#FF0000".
func hexColor(s string) (string, bool) {
	s = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), "#"))
	if len(s) != 6 {
		return "", false
	}
	for _, r := range s {
		if !strings.ContainsRune("0123456789abcdef", r) {
			return "", false
		}
	}
	return s, true
}

// serviceRecords reads the load balancer virtual services enabled on
// objects. Each (object, service, protocol) becomes one record.
func (v *View) serviceRecords(ctx context.Context) ([]models.Record, error) {
	if !v.r.hasTable("VS") || !v.r.hasTable("VSEnabledPorts") {
		v.log.Debug("no virtual service tables, skipping services")
		return nil, nil
	}
	var rows []serviceRow
	if err := v.r.raw(ctx, &rows, servicesSQL); err != nil {
		return nil, errors.Wrap(err, "reading virtual services")
	}
	type key struct {
		object      int
		name, proto string
	}
	ports := make(map[key]set.Ints)
	var order []key
	for _, r := range rows {
		proto := strings.ToLower(r.Proto)
		if proto != "tcp" && proto != "udp" {
			continue
		}
		if !v.objectInScope(r.ObjectID) || r.VPort <= 0 {
			continue
		}
		k := key{r.ObjectID, r.VSName, proto}
		if ports[k] == nil {
			ports[k] = set.NewInts()
			order = append(order, k)
		}
		ports[k].Add(r.VPort)
	}
	sort.SliceStable(order, func(i, j int) bool { return order[i].object < order[j].object })

	out := make([]models.Record, 0, len(order))
	for _, k := range order {
		rec := &models.ServiceRecord{Name: k.name, Protocol: k.proto, Ports: ports[k].SortedValues()}
		if v.vms.Contains(k.object) {
			rec.VirtualMachine = v.snap.names[k.object]
		} else {
			rec.Device = v.snap.names[k.object]
		}
		out = append(out, rec)
	}
	return out, nil
}
