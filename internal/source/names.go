package source

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

const maxDescription = 200

// interfacePrefixes expands the abbreviations network gear uses in port
// names. Longer abbreviations come first so "Loop" wins over "Lo".
var interfacePrefixes = []struct{ short, long string }{
	{"Port-channel", "Port-Channel"},
	{"ethernet", "Ethernet"},
	{"Loop", "Loopback"},
	{"Vlan", "VLAN"},
	{"Eth", "Ethernet"},
	{"eth", "Ethernet"},
	{"BE", "Bundle-Ether"},
	{"Po", "Port-Channel"},
	{"Lo", "Loopback"},
	{"Vl", "VLAN"},
	{"Mg", "MgmtEth"},
	{"Se", "Serial"},
	{"Gi", "GigabitEthernet"},
	{"Te", "TenGigE"},
	{"Tw", "TwentyFiveGigE"},
	{"Fo", "FortyGigE"},
	{"Hu", "HundredGigE"},
}

// NormalizeInterfaceName expands abbreviated port names on routers and
// switches. The abbreviation must be followed by a digit, a dash or a space,
// so "Gi0/1" becomes "GigabitEthernet0/1" while "Gig" is left alone.
func NormalizeInterfaceName(objtype int, name string) string {
	if objtype != objtypeRouter && objtype != objtypeSwitch {
		return name
	}
	for _, p := range interfacePrefixes {
		if len(name) <= len(p.short) || !strings.HasPrefix(name, p.short) {
			continue
		}
		next := name[len(p.short)]
		if (next >= '0' && next <= '9') || next == '-' || next == ' ' {
			return p.long + name[len(p.short):]
		}
	}
	return name
}

// dedupe renames repeated names by appending sep and a counter. The first
// occurrence keeps its name, so results are stable as long as the input
// order is.
func dedupe(names []string, sep string) []string {
	seen := make(map[string]int, len(names))
	taken := make(map[string]bool, len(names))
	for _, n := range names {
		taken[n] = true
	}
	out := make([]string, len(names))
	for i, n := range names {
		if n == "" {
			continue
		}
		c, dup := seen[n]
		if !dup {
			seen[n] = 0
			out[i] = n
			continue
		}
		for {
			c++
			candidate := fmt.Sprintf("%s%s%d", n, sep, c)
			if !taken[candidate] {
				seen[n] = c
				taken[candidate] = true
				out[i] = candidate
				break
			}
		}
	}
	return out
}

var prefixStatusWords = []struct {
	status string
	words  []string
}{
	{"reserved", []string{"reserved", "hold", "future", "planned"}},
	{"deprecated", []string{"deprecated", "obsolete", "old", "inactive", "decommissioned"}},
	{"container", []string{"container", "parent", "supernet", "aggregate"}},
	{"container", []string{"available", "unused", "free", "unallocated"}},
}

// PrefixStatus derives a prefix status from keywords in the network name
// and comment. Unnamed networks without a comment are treated as reserved.
func PrefixStatus(name, comment string) string {
	if strings.TrimSpace(name) == "" && strings.TrimSpace(comment) == "" {
		return "reserved"
	}
	words := make(map[string]bool)
	for _, w := range strings.FieldsFunc(strings.ToLower(name+" "+comment), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		words[w] = true
	}
	for _, rule := range prefixStatusWords {
		for _, w := range rule.words {
			if words[w] {
				return rule.status
			}
		}
	}
	return "active"
}

// PrefixDescription renders "name [tag1, tag2] - comment", truncated to what
// the target accepts.
func PrefixDescription(name string, tags []string, comment string) string {
	s := strings.TrimSpace(name)
	if len(tags) > 0 {
		s = strings.TrimSpace(s + " [" + strings.Join(tags, ", ") + "]")
	}
	if c := strings.TrimSpace(comment); c != "" {
		if s == "" {
			s = c
		} else {
			s += " - " + c
		}
	}
	return truncate(s, maxDescription)
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}

// cleanDictValue strips the wiki markup RackTables keeps in dictionary
// values: "[[Juniper%GPASS%EX4300 | http://...]]" becomes "Juniper EX4300".
func cleanDictValue(v string) string {
	v = strings.TrimPrefix(strings.TrimSpace(v), "[[")
	v = strings.TrimSuffix(v, "]]")
	if i := strings.Index(v, " | "); i >= 0 {
		v = v[:i]
	}
	v = strings.NewReplacer("%GPASS%", " ", "%GSKIP%", " ").Replace(v)
	return strings.Join(strings.Fields(v), " ")
}

// knownManufacturers are the vendor names found at the start of stock
// RackTables hardware types.
var knownManufacturers = []string{
	"3Com", "ALT_Linux", "APC", "Alcatel-Lucent", "Allied", "Arista", "Aten",
	"Avocent", "Brocade", "CentOS", "Cisco", "Cronyx", "Cyclades", "D-Link",
	"Debian", "Dell", "Dell/EMC", "EMC", "Edge-Core", "Enterasys", "Extreme",
	"ExtremeXOS", "F5", "Fiberstore", "Force10", "Fortigate", "Fortinet",
	"Foundry", "FreeBSD", "Fujitsu", "Generic", "Gentoo", "HP", "Hitachi",
	"Huawei", "IBM", "Infortrend", "Intel", "IronWare", "JunOS", "Juniper",
	"Lantronix", "Linksys", "Marvell", "Mellanox", "MicroSoft", "MikroTik",
	"Motorola", "Moxa", "NEC", "NETGEAR", "NS-OS", "NetApp", "NetBSD", "Netapp",
	"Nortel", "Open Solaris", "OpenBSD", "OpenGear", "OpenSUSE", "PROXMOX",
	"Palo", "Pica8", "Promise", "QLogic", "RAD", "RH", "Raisecom", "Raritan",
	"Red", "SGI", "SMC", "SUSE", "SciLin", "SlackWare", "SonicWall", "Sun",
	"TPLink", "Tainet", "Ubuntu", "Univention", "VMWare", "VMware", "Vyatta",
	"Xen", "noname/unknown",
}

func init() {
	// longest first so "Dell/EMC" is matched before "Dell"
	sort.SliceStable(knownManufacturers, func(i, j int) bool {
		return len(knownManufacturers[i]) > len(knownManufacturers[j])
	})
}

// deviceTypeModel derives the device type model and its manufacturer. The
// hardware type wins when set; otherwise the object type name stands in for
// both. Height and depth are part of the model because RackTables records
// them per object, not per hardware type.
func deviceTypeModel(hwType, objtype string, height int, fullDepth bool) (model, manufacturer string) {
	base, manufacturer := objtype, objtype
	if hwType != "" {
		base = hwType
		for _, m := range knownManufacturers {
			if strings.HasPrefix(hwType, m+" ") {
				base, manufacturer = strings.TrimSpace(hwType[len(m):]), m
				break
			}
		}
	}
	model = fmt.Sprintf("%s-%dU", base, height)
	if fullDepth {
		model += "-full"
	}
	return model, manufacturer
}

// interfaceKinds maps RackTables outer interface names onto target
// interface types.
var interfaceKinds = map[string]string{
	"virtual port":   "virtual",
	"10base-t":       "10base-t",
	"100base-tx":     "100base-tx",
	"1000base-t":     "1000base-t",
	"10gbase-t":      "10gbase-t",
	"1000base-sx":    "1000base-x-sfp",
	"1000base-lx":    "1000base-x-sfp",
	"empty sfp-1000": "1000base-x-sfp",
	"10gbase-sr":     "10gbase-x-sfpp",
	"10gbase-lr":     "10gbase-x-sfpp",
	"empty sfp+":     "10gbase-x-sfpp",
	"40gbase-sr4":    "40gbase-x-qsfpp",
	"empty qsfp":     "40gbase-x-qsfpp",
	"100gbase-sr4":   "100gbase-x-qsfp28",
	"empty qsfp28":   "100gbase-x-qsfp28",
}

func interfaceKind(oif string) string {
	if k, ok := interfaceKinds[strings.ToLower(strings.TrimSpace(oif))]; ok {
		return k
	}
	return "other"
}

// allocationRole maps RackTables allocation types onto address roles.
func allocationRole(kind string) string {
	switch kind {
	case "shared", "sharedrouter":
		return "vrrp"
	case "loopback":
		return "loopback"
	}
	return ""
}
