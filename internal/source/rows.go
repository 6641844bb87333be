package source

import (
	"net/netip"
)

// RackTables object types the reader treats specially.
const (
	objtypeRouter   = 7
	objtypeSwitch   = 8
	objtypeVM       = 1504
	objtypeCluster  = 1505
	objtypeRack     = 1560
	objtypeRow      = 1561
	objtypeLocation = 1562
)

// Attribute ids.
const (
	attrHWType     = 2
	attrRackHeight = 27
	attrSerial     = 10014
)

// Tag realms in TagStorage.
const (
	realmObject  = "object"
	realmIPv4Net = "ipv4net"
	realmIPv6Net = "ipv6net"
)

// UnmountedCluster holds virtual machines that belong to no cluster.
const UnmountedCluster = "Unmounted VMs"

const (
	objectsSQL = `SELECT id, COALESCE(name, '') AS name, COALESCE(label, '') AS label, objtype_id,
	COALESCE(asset_no, '') AS asset_no, COALESCE(comment, '') AS comment
FROM Object ORDER BY id`

	linksSQL = `SELECT parent_entity_type, parent_entity_id, child_entity_type, child_entity_id
FROM EntityLink ORDER BY id`

	rackSpaceSQL = `SELECT rack_id, unit_no, atom, object_id
FROM RackSpace WHERE object_id IS NOT NULL ORDER BY object_id, rack_id, unit_no`

	attributesSQL = `SELECT object_id, attr_id, COALESCE(string_value, '') AS string_value, COALESCE(uint_value, 0) AS uint_value
FROM AttributeValue WHERE attr_id IN (?)`

	dictionarySQL = `SELECT dict_key, dict_value FROM Dictionary`

	tagsSQL = `SELECT id, tag FROM TagTree ORDER BY id`

	tagStorageSQL = `SELECT entity_realm, entity_id, tag_id FROM TagStorage`

	portsSQL = `SELECT p.id, p.object_id, COALESCE(p.name, '') AS name, COALESCE(p.label, '') AS label,
	COALESCE(p.reservation_comment, '') AS reservation_comment, COALESCE(oif.oif_name, '') AS oif_name
FROM Port p LEFT JOIN PortOuterInterface oif ON oif.id = p.type ORDER BY p.id`

	linkSQL = `SELECT porta, portb, COALESCE(cable, 0) AS cable FROM Link ORDER BY porta, portb`

	cableHeapSQL = `SELECT id, COALESCE(length, 0) AS length, COALESCE(color, '') AS color,
	COALESCE(description, '') AS description FROM PatchCableHeap`

	vlanDomainsSQL = `SELECT id, COALESCE(description, '') AS description FROM VLANDomain ORDER BY id`

	vlansSQL = `SELECT domain_id, vlan_id, COALESCE(vlan_descr, '') AS vlan_descr
FROM VLANDescription ORDER BY domain_id, vlan_id`

	servicesSQL = `SELECT ep.object_id, vs.name AS vs_name, ep.proto, ep.vport
FROM VSEnabledPorts ep JOIN VS vs ON vs.id = ep.vs_id ORDER BY ep.object_id, vs.name, ep.proto, ep.vport`
)

// Per-family queries; %d is the address family.
const (
	networksSQL = `SELECT id, ip, mask, COALESCE(name, '') AS name, COALESCE(comment, '') AS comment
FROM IPv%dNetwork ORDER BY ip, mask`

	allocationsSQL = `SELECT object_id, ip, COALESCE(name, '') AS name, type
FROM IPv%dAllocation ORDER BY ip, object_id`

	addressesSQL = `SELECT ip, COALESCE(name, '') AS name, COALESCE(comment, '') AS comment, COALESCE(reserved, 'no') AS reserved
FROM IPv%dAddress ORDER BY ip`

	vlanLinksSQL = `SELECT domain_id, vlan_id, ipv%dnet_id AS net_id FROM VLANIPv%d`
)

type objectRow struct {
	ID        int    `gorm:"column:id"`
	Name      string `gorm:"column:name"`
	Label     string `gorm:"column:label"`
	ObjtypeID int    `gorm:"column:objtype_id"`
	AssetNo   string `gorm:"column:asset_no"`
	Comment   string `gorm:"column:comment"`
}

type linkRow struct {
	ParentType string `gorm:"column:parent_entity_type"`
	ParentID   int    `gorm:"column:parent_entity_id"`
	ChildType  string `gorm:"column:child_entity_type"`
	ChildID    int    `gorm:"column:child_entity_id"`
}

type rackSpaceRow struct {
	RackID   int    `gorm:"column:rack_id"`
	UnitNo   int    `gorm:"column:unit_no"`
	Atom     string `gorm:"column:atom"`
	ObjectID int    `gorm:"column:object_id"`
}

type attributeRow struct {
	ObjectID    int     `gorm:"column:object_id"`
	AttrID      int     `gorm:"column:attr_id"`
	StringValue string  `gorm:"column:string_value"`
	UintValue   int64   `gorm:"column:uint_value"`
	FloatValue  float64 `gorm:"column:float_value"`
}

type dictionaryRow struct {
	Key   int    `gorm:"column:dict_key"`
	Value string `gorm:"column:dict_value"`
}

type tagRow struct {
	ID  int    `gorm:"column:id"`
	Tag string `gorm:"column:tag"`
}

type tagStorageRow struct {
	Realm    string `gorm:"column:entity_realm"`
	EntityID int    `gorm:"column:entity_id"`
	TagID    int    `gorm:"column:tag_id"`
}

type portRow struct {
	ID                 int    `gorm:"column:id"`
	ObjectID           int    `gorm:"column:object_id"`
	Name               string `gorm:"column:name"`
	Label              string `gorm:"column:label"`
	ReservationComment string `gorm:"column:reservation_comment"`
	OIFName            string `gorm:"column:oif_name"`
}

type cableLinkRow struct {
	PortA int `gorm:"column:porta"`
	PortB int `gorm:"column:portb"`
	Cable int `gorm:"column:cable"`
}

type cableHeapRow struct {
	ID          int     `gorm:"column:id"`
	Length      float64 `gorm:"column:length"`
	Color       string  `gorm:"column:color"`
	Description string  `gorm:"column:description"`
}

type vlanDomainRow struct {
	ID          int    `gorm:"column:id"`
	Description string `gorm:"column:description"`
}

type vlanRow struct {
	DomainID int    `gorm:"column:domain_id"`
	VLANID   int    `gorm:"column:vlan_id"`
	Descr    string `gorm:"column:vlan_descr"`
}

type vlanLinkRow struct {
	DomainID int `gorm:"column:domain_id"`
	VLANID   int `gorm:"column:vlan_id"`
	NetID    int `gorm:"column:net_id"`
}

type serviceRow struct {
	ObjectID int    `gorm:"column:object_id"`
	VSName   string `gorm:"column:vs_name"`
	Proto    string `gorm:"column:proto"`
	VPort    int    `gorm:"column:vport"`
}

// IPv4 addresses are stored as unsigned integers, IPv6 as 16 raw bytes.
type (
	network4Row struct {
		ID      int    `gorm:"column:id"`
		IP      int64  `gorm:"column:ip"`
		Mask    int    `gorm:"column:mask"`
		Name    string `gorm:"column:name"`
		Comment string `gorm:"column:comment"`
	}
	network6Row struct {
		ID      int    `gorm:"column:id"`
		IP      []byte `gorm:"column:ip"`
		Mask    int    `gorm:"column:mask"`
		Name    string `gorm:"column:name"`
		Comment string `gorm:"column:comment"`
	}
	allocation4Row struct {
		ObjectID int    `gorm:"column:object_id"`
		IP       int64  `gorm:"column:ip"`
		Name     string `gorm:"column:name"`
		Type     string `gorm:"column:type"`
	}
	allocation6Row struct {
		ObjectID int    `gorm:"column:object_id"`
		IP       []byte `gorm:"column:ip"`
		Name     string `gorm:"column:name"`
		Type     string `gorm:"column:type"`
	}
	address4Row struct {
		IP       int64  `gorm:"column:ip"`
		Name     string `gorm:"column:name"`
		Comment  string `gorm:"column:comment"`
		Reserved string `gorm:"column:reserved"`
	}
	address6Row struct {
		IP       []byte `gorm:"column:ip"`
		Name     string `gorm:"column:name"`
		Comment  string `gorm:"column:comment"`
		Reserved string `gorm:"column:reserved"`
	}
)

func addr4(v int64) netip.Addr {
	u := uint32(v)
	return netip.AddrFrom4([4]byte{byte(u >> 24), byte(u >> 16), byte(u >> 8), byte(u)})
}

func addr6(b []byte) (netip.Addr, bool) {
	if len(b) != 16 {
		return netip.Addr{}, false
	}
	return netip.AddrFrom16([16]byte(b)), true
}

// network is a RackTables network of either family.
type network struct {
	id      int
	realm   string
	prefix  netip.Prefix
	name    string
	comment string
}

type allocation struct {
	objectID int
	addr     netip.Addr
	name     string
	kind     string
}

type address struct {
	name     string
	comment  string
	reserved bool
}
