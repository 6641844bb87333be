package models

import (
	"fmt"
	"strings"
)

// Record is a source row converted into one of the typed variants below.
// Variants carry `validate` tags which Validate checks before any remote call.
type Record interface {
	Type() EntityType
	NaturalKey() string
	Refs() []Ref
}

// Ref is a natural-key reference from one record to another entity. Field
// names the payload attribute that receives the resolved remote id.
type Ref struct {
	Field    string
	Type     EntityType
	Key      string
	Required bool
}

// Payload fields that are not a plain id.
const (
	FieldTags           = "tags"
	FieldAssignedObject = "assigned_object"
	FieldATerminations  = "a_terminations"
	FieldBTerminations  = "b_terminations"
)

func tagRefs(tags []string) []Ref {
	refs := make([]Ref, 0, len(tags))
	for _, t := range tags {
		refs = append(refs, Ref{Field: FieldTags, Type: Tag, Key: t})
	}
	return refs
}

func optRef(refs []Ref, field string, t EntityType, key string) []Ref {
	if key == "" {
		return refs
	}
	return append(refs, Ref{Field: field, Type: t, Key: key})
}

func reqRef(refs []Ref, field string, t EntityType, key string) []Ref {
	return append(refs, Ref{Field: field, Type: t, Key: key, Required: true})
}

// Custom fields carried from the source that have no native target attribute.
const (
	CustomFieldVLANDomain = "VLAN_Domain_ID"
	CustomFieldPrefixName = "Prefix_Name"
	CustomFieldIPName     = "IP_Name"

	CustomFieldNATType     = "NAT_Type"
	CustomFieldNATMatch    = "NAT_Match_IP"
	CustomFieldLBPool      = "LB_Pool"
	CustomFieldLBServices  = "LB_Virtual_Services"
	CustomFieldMonitoring  = "Monitoring_URL"
	CustomFieldCactiGraphs = "Cacti_Graphs"
	CustomFieldFileRefs    = "File_References"
)

// CustomFields are values for custom fields defined by CustomFieldRecords.
type CustomFields map[string]interface{}

type CustomFieldRecord struct {
	Name        string   `validate:"required,max=50"`
	Label       string   `validate:"max=50"`
	Kind        string   `validate:"oneof=text integer decimal date url boolean"`
	ObjectTypes []string `validate:"min=1,dive,required"`
	Description string
}

func (r *CustomFieldRecord) Type() EntityType   { return CustomField }
func (r *CustomFieldRecord) NaturalKey() string { return r.Name }
func (r *CustomFieldRecord) Refs() []Ref        { return nil }

type TagRecord struct {
	Name        string `validate:"required,max=100"`
	Color       string `validate:"omitempty,len=6,hexadecimal"`
	Description string `validate:"max=200"`
}

func (r *TagRecord) Type() EntityType   { return Tag }
func (r *TagRecord) NaturalKey() string { return r.Name }
func (r *TagRecord) Refs() []Ref        { return nil }

type TenantRecord struct {
	Name        string `validate:"required,max=100"`
	Description string `validate:"max=200"`
}

func (r *TenantRecord) Type() EntityType   { return Tenant }
func (r *TenantRecord) NaturalKey() string { return r.Name }
func (r *TenantRecord) Refs() []Ref        { return nil }

type SiteRecord struct {
	Name        string `validate:"required,max=100"`
	Description string `validate:"max=200"`
	Comments    string
	Tenant      string
	Tags        []string
}

func (r *SiteRecord) Type() EntityType   { return Site }
func (r *SiteRecord) NaturalKey() string { return r.Name }
func (r *SiteRecord) Refs() []Ref {
	return optRef(tagRefs(r.Tags), "tenant", Tenant, r.Tenant)
}

type RackRecord struct {
	// Name is the formatted site.row.rack name; it is unique across sites.
	Name     string `validate:"required,max=100"`
	Site     string `validate:"required"`
	Height   int    `validate:"gte=0,lte=100"`
	Comments string
	Tenant   string
	Tags     []string
}

func (r *RackRecord) Type() EntityType   { return Rack }
func (r *RackRecord) NaturalKey() string { return r.Name }
func (r *RackRecord) Refs() []Ref {
	refs := reqRef(tagRefs(r.Tags), "site", Site, r.Site)
	return optRef(refs, "tenant", Tenant, r.Tenant)
}

type VLANGroupRecord struct {
	Name     string `validate:"required,max=100"`
	DomainID int    `validate:"gte=0"`
}

func (r *VLANGroupRecord) Type() EntityType   { return VLANGroup }
func (r *VLANGroupRecord) NaturalKey() string { return r.Name }
func (r *VLANGroupRecord) Refs() []Ref        { return nil }

type VLANRecord struct {
	Group  string `validate:"required"`
	VID    int    `validate:"min=1,max=4094"`
	Name   string `validate:"required,max=64"`
	Tenant string
}

func (r *VLANRecord) Type() EntityType { return VLAN }

// NaturalKey is group/vid; the VLAN id is only unique inside its group.
func (r *VLANRecord) NaturalKey() string { return VLANKey(r.Group, r.VID) }
func (r *VLANRecord) Refs() []Ref {
	refs := reqRef(nil, "group", VLANGroup, r.Group)
	return optRef(refs, "tenant", Tenant, r.Tenant)
}

func VLANKey(group string, vid int) string {
	if group == "" || vid == 0 {
		return ""
	}
	return fmt.Sprintf("%s/%d", group, vid)
}

type ManufacturerRecord struct {
	Name string `validate:"required,max=100"`
}

func (r *ManufacturerRecord) Type() EntityType   { return Manufacturer }
func (r *ManufacturerRecord) NaturalKey() string { return r.Name }
func (r *ManufacturerRecord) Refs() []Ref        { return nil }

type DeviceRoleRecord struct {
	Name  string `validate:"required,max=100"`
	Color string `validate:"omitempty,len=6,hexadecimal"`
}

func (r *DeviceRoleRecord) Type() EntityType   { return DeviceRole }
func (r *DeviceRoleRecord) NaturalKey() string { return r.Name }
func (r *DeviceRoleRecord) Refs() []Ref        { return nil }

type DeviceTypeRecord struct {
	Model        string `validate:"required,max=100"`
	Manufacturer string `validate:"required"`
	Height       int    `validate:"gte=0,lte=100"`
	FullDepth    bool
}

func (r *DeviceTypeRecord) Type() EntityType   { return DeviceType }
func (r *DeviceTypeRecord) NaturalKey() string { return r.Model }
func (r *DeviceTypeRecord) Refs() []Ref {
	return reqRef(nil, "manufacturer", Manufacturer, r.Manufacturer)
}

type DeviceRecord struct {
	Name       string `validate:"required,max=64"`
	Role       string `validate:"required"`
	DeviceType string `validate:"required"`
	Site       string `validate:"required"`
	Rack       string
	// Position is the lowest rack unit occupied; zero when unracked.
	Position int    `validate:"gte=0"`
	Face     string `validate:"omitempty,oneof=front rear"`
	Cluster  string
	Serial   string `validate:"max=50"`
	AssetTag string `validate:"max=50"`
	Label    string
	Comments string
	Tenant   string
	Tags     []string
	// CustomFields carries RackTables attributes and annotations.
	CustomFields CustomFields
}

func (r *DeviceRecord) Type() EntityType   { return Device }
func (r *DeviceRecord) NaturalKey() string { return r.Name }
func (r *DeviceRecord) Refs() []Ref {
	refs := tagRefs(r.Tags)
	refs = reqRef(refs, "role", DeviceRole, r.Role)
	refs = reqRef(refs, "device_type", DeviceType, r.DeviceType)
	refs = reqRef(refs, "site", Site, r.Site)
	refs = optRef(refs, "rack", Rack, r.Rack)
	refs = optRef(refs, "cluster", Cluster, r.Cluster)
	return optRef(refs, "tenant", Tenant, r.Tenant)
}

type ClusterTypeRecord struct {
	Name string `validate:"required,max=100"`
}

func (r *ClusterTypeRecord) Type() EntityType   { return ClusterType }
func (r *ClusterTypeRecord) NaturalKey() string { return r.Name }
func (r *ClusterTypeRecord) Refs() []Ref        { return nil }

type ClusterRecord struct {
	Name        string `validate:"required,max=100"`
	ClusterType string `validate:"required"`
	Site        string
	Comments    string
	Tenant      string
	Tags        []string
}

func (r *ClusterRecord) Type() EntityType   { return Cluster }
func (r *ClusterRecord) NaturalKey() string { return r.Name }
func (r *ClusterRecord) Refs() []Ref {
	refs := reqRef(tagRefs(r.Tags), "type", ClusterType, r.ClusterType)
	refs = optRef(refs, "site", Site, r.Site)
	return optRef(refs, "tenant", Tenant, r.Tenant)
}

type VirtualMachineRecord struct {
	Name         string `validate:"required,max=64"`
	Cluster      string `validate:"required"`
	Comments     string
	Tenant       string
	Tags         []string
	CustomFields CustomFields
}

func (r *VirtualMachineRecord) Type() EntityType   { return VirtualMachine }
func (r *VirtualMachineRecord) NaturalKey() string { return r.Name }
func (r *VirtualMachineRecord) Refs() []Ref {
	refs := reqRef(tagRefs(r.Tags), "cluster", Cluster, r.Cluster)
	return optRef(refs, "tenant", Tenant, r.Tenant)
}

type InterfaceRecord struct {
	Device      string `validate:"required"`
	Name        string `validate:"required,max=64"`
	Kind        string `validate:"required"`
	Label       string `validate:"max=64"`
	Description string `validate:"max=200"`
	MgmtOnly    bool
}

func (r *InterfaceRecord) Type() EntityType   { return Interface }
func (r *InterfaceRecord) NaturalKey() string { return InterfaceKey(r.Device, r.Name) }
func (r *InterfaceRecord) Refs() []Ref {
	return reqRef(nil, "device", Device, r.Device)
}

// InterfaceKey is the natural key of a device or VM interface: the parent
// name with slashes escaped, a slash, then the interface name. Both names
// are free text and interface names often hold slashes (Gi1/0/1).
func InterfaceKey(parent, name string) string {
	if parent == "" || name == "" {
		return ""
	}
	return parentEscaper.Replace(parent) + "/" + name
}

var parentEscaper = strings.NewReplacer(`\`, `\\`, `/`, `\/`)

// SplitInterfaceKey is the inverse of InterfaceKey.
func SplitInterfaceKey(key string) (parent, name string, ok bool) {
	return cutParent(key)
}

// cutParent splits key at the first unescaped slash and unescapes the part
// before it.
func cutParent(key string) (parent, rest string, ok bool) {
	var b strings.Builder
	for i := 0; i < len(key); i++ {
		c := key[i]
		switch {
		case c == '\\' && i+1 < len(key):
			i++
			b.WriteByte(key[i])
		case c == '/':
			if b.Len() == 0 || i+1 == len(key) {
				return "", "", false
			}
			return b.String(), key[i+1:], true
		default:
			b.WriteByte(c)
		}
	}
	return "", "", false
}

type VMInterfaceRecord struct {
	VirtualMachine string `validate:"required"`
	Name           string `validate:"required,max=64"`
	Description    string `validate:"max=200"`
}

func (r *VMInterfaceRecord) Type() EntityType { return VMInterface }
func (r *VMInterfaceRecord) NaturalKey() string {
	return InterfaceKey(r.VirtualMachine, r.Name)
}
func (r *VMInterfaceRecord) Refs() []Ref {
	return reqRef(nil, "virtual_machine", VirtualMachine, r.VirtualMachine)
}

type PrefixRecord struct {
	Prefix      string `validate:"required,cidr"`
	Status      string `validate:"omitempty,oneof=container active reserved deprecated"`
	Description string `validate:"max=200"`
	// Name is the source network name, kept as a custom field.
	Name   string
	VLAN   string
	Site   string
	Tenant string
	Tags   []string
}

func (r *PrefixRecord) Type() EntityType   { return Prefix }
func (r *PrefixRecord) NaturalKey() string { return r.Prefix }
func (r *PrefixRecord) Refs() []Ref {
	refs := optRef(tagRefs(r.Tags), "vlan", VLAN, r.VLAN)
	refs = optRef(refs, "site", Site, r.Site)
	return optRef(refs, "tenant", Tenant, r.Tenant)
}

type IPAddressRecord struct {
	Address string `validate:"required,ip"`
	// PrefixLen is the mask written to the target; zero means host mask.
	PrefixLen   int    `validate:"gte=0,lte=128"`
	Status      string `validate:"omitempty,oneof=active reserved deprecated dhcp slaac"`
	Role        string `validate:"omitempty,oneof=loopback secondary anycast vip vrrp hsrp glbp carp"`
	Description string `validate:"max=200"`
	Name        string
	// Interface and VMInterface are interface natural keys; at most one is set.
	Interface    string
	VMInterface  string `validate:"excluded_with=Interface"`
	Tenant       string
	Tags         []string
	CustomFields CustomFields
}

func (r *IPAddressRecord) Type() EntityType   { return IPAddress }
func (r *IPAddressRecord) NaturalKey() string { return r.Address }
func (r *IPAddressRecord) Refs() []Ref {
	refs := optRef(tagRefs(r.Tags), FieldAssignedObject, Interface, r.Interface)
	refs = optRef(refs, FieldAssignedObject, VMInterface, r.VMInterface)
	return optRef(refs, "tenant", Tenant, r.Tenant)
}

type IPRangeRecord struct {
	Start       string `validate:"required,ip"`
	End         string `validate:"required,ip"`
	PrefixLen   int    `validate:"gte=0,lte=128"`
	Status      string `validate:"omitempty,oneof=active reserved deprecated"`
	Description string `validate:"max=200"`
	Tags        []string
}

func (r *IPRangeRecord) Type() EntityType   { return IPRange }
func (r *IPRangeRecord) NaturalKey() string { return r.Start + "-" + r.End }
func (r *IPRangeRecord) Refs() []Ref        { return tagRefs(r.Tags) }

type CableRecord struct {
	// A and B are interface natural keys.
	A          string `validate:"required"`
	B          string `validate:"required,nefield=A"`
	Kind       string
	Color      string  `validate:"omitempty,len=6,hexadecimal"`
	Length     float64 `validate:"gte=0"`
	LengthUnit string  `validate:"omitempty,oneof=m cm ft in"`
	Comments   string
	Tags       []string
}

func (r *CableRecord) Type() EntityType { return Cable }

// NaturalKey orders the two ends so that A<->B and B<->A are the same cable.
func (r *CableRecord) NaturalKey() string {
	a, b := r.A, r.B
	if b < a {
		a, b = b, a
	}
	return a + "<->" + b
}

func (r *CableRecord) Refs() []Ref {
	a, b := r.A, r.B
	if b < a {
		a, b = b, a
	}
	refs := reqRef(tagRefs(r.Tags), FieldATerminations, Interface, a)
	return reqRef(refs, FieldBTerminations, Interface, b)
}

type ServiceRecord struct {
	Device         string
	VirtualMachine string `validate:"required_without=Device,excluded_with=Device"`
	Name           string `validate:"required,max=100"`
	Protocol       string `validate:"oneof=tcp udp sctp"`
	Ports          []int  `validate:"min=1,dive,min=1,max=65535"`
	Description    string `validate:"max=200"`
}

func (r *ServiceRecord) Type() EntityType { return Service }

// NaturalKey is device:<parent>/<name>/<protocol> or vm:..., the parent
// escaped as in InterfaceKey.
func (r *ServiceRecord) NaturalKey() string {
	if r.Device != "" {
		return "device:" + InterfaceKey(r.Device, r.Name) + "/" + r.Protocol
	}
	return "vm:" + InterfaceKey(r.VirtualMachine, r.Name) + "/" + r.Protocol
}

// SplitServiceKey is the inverse of ServiceRecord.NaturalKey. kind is
// "device" or "vm".
func SplitServiceKey(key string) (kind, parent, name, protocol string, ok bool) {
	kind, rest, found := strings.Cut(key, ":")
	if !found || (kind != "device" && kind != "vm") {
		return "", "", "", "", false
	}
	parent, rest, ok = cutParent(rest)
	if !ok {
		return "", "", "", "", false
	}
	i := strings.LastIndex(rest, "/")
	if i <= 0 || i == len(rest)-1 {
		return "", "", "", "", false
	}
	return kind, parent, rest[:i], rest[i+1:], true
}

func (r *ServiceRecord) Refs() []Ref {
	if r.Device != "" {
		return reqRef(nil, "device", Device, r.Device)
	}
	return reqRef(nil, "virtual_machine", VirtualMachine, r.VirtualMachine)
}
