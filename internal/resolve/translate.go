package resolve

import (
	"fmt"
	"net/netip"
	"strings"

	"github.com/gosimple/slug"

	"github.com/rflorenc/racktables-migrator/internal/models"
	"github.com/rflorenc/racktables-migrator/internal/netbox"
)

const (
	maxCableLabel  = 100
	defaultRoleHex = "9e9e9e"
)

type payload = map[string]interface{}

// boundRefs holds the remote ids of a record's resolved references, keyed by
// payload field.
type boundRefs struct {
	ids   map[string]int
	types map[string]models.EntityType
	tags  []int
}

func newBoundRefs() *boundRefs {
	return &boundRefs{ids: make(map[string]int), types: make(map[string]models.EntityType)}
}

func (b *boundRefs) set(ref models.Ref, id int) {
	if ref.Field == models.FieldTags {
		b.tags = append(b.tags, id)
		return
	}
	b.ids[ref.Field] = id
	b.types[ref.Field] = ref.Type
}

func (b *boundRefs) id(field string) (int, bool) {
	id, ok := b.ids[field]
	return id, ok
}

// apply writes every bound reference into p.
func (b *boundRefs) apply(p payload) {
	if len(b.tags) > 0 {
		tags := make([]map[string]int, 0, len(b.tags))
		for _, id := range b.tags {
			tags = append(tags, map[string]int{"id": id})
		}
		p["tags"] = tags
	}
	for field, id := range b.ids {
		switch field {
		case models.FieldAssignedObject:
			p["assigned_object_type"] = objectType(b.types[field])
			p["assigned_object_id"] = id
		case models.FieldATerminations, models.FieldBTerminations:
			p[field] = []map[string]interface{}{{"object_type": objectType(b.types[field]), "object_id": id}}
		default:
			p[field] = id
		}
	}
}

// objectType is the content type label the API uses for generic relations.
func objectType(t models.EntityType) string {
	switch t {
	case models.Interface:
		return "dcim.interface"
	case models.VMInterface:
		return "virtualization.vminterface"
	case models.Device:
		return "dcim.device"
	case models.Site:
		return "dcim.site"
	case models.Prefix:
		return "ipam.prefix"
	case models.IPAddress:
		return "ipam.ipaddress"
	case models.IPRange:
		return "ipam.iprange"
	case models.VLANGroup:
		return "ipam.vlangroup"
	case models.VirtualMachine:
		return "virtualization.virtualmachine"
	}
	return ""
}

// translate builds the create/update body of a record.
func translate(rec models.Record, b *boundRefs, opts Options) (payload, error) {
	p := payload{}
	b.apply(p)
	legacy := opts.TargetVersion != "" && !netbox.VersionAtLeast(opts.TargetVersion, "4.0")
	scoped := opts.TargetVersion != "" && netbox.VersionAtLeast(opts.TargetVersion, "4.2")

	switch r := rec.(type) {
	case *models.CustomFieldRecord:
		p["name"] = r.Name
		p["label"] = r.Label
		p["type"] = r.Kind
		p["description"] = r.Description
		if legacy {
			p["content_types"] = r.ObjectTypes
		} else {
			p["object_types"] = r.ObjectTypes
		}
	case *models.TagRecord:
		p["name"] = r.Name
		p["slug"] = slug.Make(r.Name)
		p["description"] = r.Description
		if r.Color != "" {
			p["color"] = strings.ToLower(r.Color)
		}
	case *models.TenantRecord:
		named(p, r.Name)
		p["description"] = r.Description
	case *models.SiteRecord:
		named(p, r.Name)
		p["status"] = "active"
		p["description"] = r.Description
		p["comments"] = r.Comments
	case *models.RackRecord:
		p["name"] = r.Name
		p["status"] = "active"
		p["comments"] = r.Comments
		if r.Height > 0 {
			p["u_height"] = r.Height
		}
	case *models.VLANGroupRecord:
		named(p, r.Name)
		if r.DomainID > 0 {
			p["custom_fields"] = payload{models.CustomFieldVLANDomain: r.DomainID}
		}
	case *models.VLANRecord:
		p["vid"] = r.VID
		p["name"] = r.Name
		p["status"] = "active"
	case *models.ManufacturerRecord:
		named(p, r.Name)
	case *models.DeviceRoleRecord:
		named(p, r.Name)
		p["color"] = defaultRoleHex
		if r.Color != "" {
			p["color"] = strings.ToLower(r.Color)
		}
	case *models.DeviceTypeRecord:
		p["model"] = r.Model
		p["slug"] = slug.Make(r.Model)
		p["u_height"] = r.Height
		p["is_full_depth"] = r.FullDepth
	case *models.DeviceRecord:
		p["name"] = r.Name
		p["status"] = "active"
		p["serial"] = r.Serial
		p["label"] = r.Label
		p["comments"] = r.Comments
		if r.AssetTag != "" {
			// asset tags are unique; an empty string would collide
			p["asset_tag"] = r.AssetTag
		}
		if legacy {
			p["device_role"] = p["role"]
			delete(p, "role")
		}
		setCustomFields(p, r.CustomFields, nil)
		if _, racked := b.id("rack"); racked && r.Position > 0 {
			p["position"] = r.Position
			face := r.Face
			if face == "" {
				face = "front"
			}
			p["face"] = face
		}
	case *models.ClusterTypeRecord:
		named(p, r.Name)
	case *models.ClusterRecord:
		p["name"] = r.Name
		p["status"] = "active"
		p["comments"] = r.Comments
		if scoped {
			scopeToSite(p)
		}
	case *models.VirtualMachineRecord:
		p["name"] = r.Name
		p["status"] = "active"
		p["comments"] = r.Comments
		setCustomFields(p, r.CustomFields, nil)
	case *models.InterfaceRecord:
		p["name"] = r.Name
		p["type"] = r.Kind
		p["label"] = r.Label
		p["description"] = r.Description
		p["mgmt_only"] = r.MgmtOnly
	case *models.VMInterfaceRecord:
		p["name"] = r.Name
		p["description"] = r.Description
	case *models.PrefixRecord:
		p["prefix"] = r.Prefix
		p["status"] = statusOr(r.Status, "active")
		p["description"] = r.Description
		if r.Name != "" {
			p["custom_fields"] = payload{models.CustomFieldPrefixName: r.Name}
		}
		if scoped {
			scopeToSite(p)
		}
	case *models.IPAddressRecord:
		addr, err := withMask(r.Address, r.PrefixLen)
		if err != nil {
			return nil, err
		}
		p["address"] = addr
		p["status"] = statusOr(r.Status, "active")
		p["description"] = r.Description
		if r.Role != "" {
			p["role"] = r.Role
		}
		fixed := payload{}
		if r.Name != "" {
			fixed[models.CustomFieldIPName] = r.Name
		}
		setCustomFields(p, r.CustomFields, fixed)
	case *models.IPRangeRecord:
		start, err := withMask(r.Start, r.PrefixLen)
		if err != nil {
			return nil, err
		}
		end, err := withMask(r.End, r.PrefixLen)
		if err != nil {
			return nil, err
		}
		p["start_address"] = start
		p["end_address"] = end
		p["status"] = statusOr(r.Status, "active")
		p["description"] = r.Description
	case *models.CableRecord:
		label := r.NaturalKey()
		if len(label) > maxCableLabel {
			return nil, fmt.Errorf("cable label %q is longer than %d characters", label, maxCableLabel)
		}
		p["label"] = label
		p["status"] = "connected"
		p["comments"] = r.Comments
		if r.Kind != "" {
			p["type"] = r.Kind
		}
		if r.Color != "" {
			p["color"] = strings.ToLower(r.Color)
		}
		if r.Length > 0 {
			p["length"] = r.Length
			p["length_unit"] = statusOr(r.LengthUnit, "m")
		}
	case *models.ServiceRecord:
		p["name"] = r.Name
		p["protocol"] = r.Protocol
		p["ports"] = r.Ports
		p["description"] = r.Description
	default:
		return nil, fmt.Errorf("no translation for %T", rec)
	}
	return p, nil
}

func named(p payload, name string) {
	p["name"] = name
	p["slug"] = slug.Make(name)
}

func statusOr(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// scopeToSite moves a site reference to the generic scope fields.
func scopeToSite(p payload) {
	id, ok := p["site"]
	if !ok {
		return
	}
	delete(p, "site")
	p["scope_type"] = objectType(models.Site)
	p["scope_id"] = id
}

// withMask formats an address with its prefix length; zero means host mask.
func withMask(address string, bits int) (string, error) {
	a, err := netip.ParseAddr(address)
	if err != nil {
		return "", fmt.Errorf("parsing address %q: %w", address, err)
	}
	if bits == 0 {
		bits = a.BitLen()
	}
	p, err := a.Prefix(bits)
	if err != nil {
		return "", fmt.Errorf("address %s/%d: %w", address, bits, err)
	}
	// keep the host bits: Prefix masks them
	return netip.PrefixFrom(a, p.Bits()).String(), nil
}

// setCustomFields writes carried values, then fixed ones. The record's map
// is copied, never written to.
func setCustomFields(p payload, carried models.CustomFields, fixed payload) {
	cf := make(payload, len(carried)+len(fixed))
	for k, v := range carried {
		cf[k] = v
	}
	for k, v := range fixed {
		cf[k] = v
	}
	if len(cf) > 0 {
		p["custom_fields"] = cf
	}
}
