package models

import (
	"errors"
	"testing"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		rec     Record
		wantErr bool
	}{
		{"site ok", &SiteRecord{Name: "DC1"}, false},
		{"site missing name", &SiteRecord{}, true},
		{"rack missing site", &RackRecord{Name: "DC1.A.R1"}, true},
		{"vlan vid out of range", &VLANRecord{Group: "core", VID: 4095, Name: "x"}, true},
		{"vlan ok", &VLANRecord{Group: "core", VID: 10, Name: "mgmt"}, false},
		{"prefix bad cidr", &PrefixRecord{Prefix: "10.0.0.0/33"}, true},
		{"prefix ok", &PrefixRecord{Prefix: "10.0.0.0/24", Status: "active"}, false},
		{"prefix bad status", &PrefixRecord{Prefix: "10.0.0.0/24", Status: "available"}, true},
		{"ip ok", &IPAddressRecord{Address: "10.0.0.1", Interface: "sw1/Gi1/0/1"}, false},
		{"ip both interfaces", &IPAddressRecord{Address: "10.0.0.1", Interface: "a/b", VMInterface: "c/d"}, true},
		{"cable same ends", &CableRecord{A: "sw1/Gi1", B: "sw1/Gi1"}, true},
		{"service without parent", &ServiceRecord{Name: "web", Protocol: "tcp", Ports: []int{80}}, true},
		{"service no ports", &ServiceRecord{Device: "lb1", Name: "web", Protocol: "tcp"}, true},
		{"service ok", &ServiceRecord{Device: "lb1", Name: "web", Protocol: "tcp", Ports: []int{80, 443}}, false},
		{"tag bad color", &TagRecord{Name: "x", Color: "red"}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(tc.rec)
			if (err != nil) != tc.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}
			if err != nil {
				var me *MappingError
				if !errors.As(err, &me) {
					t.Errorf("error %T is not a *MappingError", err)
				}
			}
		})
	}
}

func TestNaturalKeys(t *testing.T) {
	tests := []struct {
		name string
		rec  Record
		want string
	}{
		{"vlan", &VLANRecord{Group: "core", VID: 10}, "core/10"},
		{"interface", &InterfaceRecord{Device: "sw1", Name: "GigabitEthernet1/0/1"}, "sw1/GigabitEthernet1/0/1"},
		{"ip range", &IPRangeRecord{Start: "10.0.0.64", End: "10.0.0.127"}, "10.0.0.64-10.0.0.127"},
		{"service device", &ServiceRecord{Device: "lb1", Name: "web", Protocol: "tcp"}, "device:lb1/web/tcp"},
		{"service vm", &ServiceRecord{VirtualMachine: "vm1", Name: "dns", Protocol: "udp"}, "vm:vm1/dns/udp"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.rec.NaturalKey(); got != tc.want {
				t.Errorf("NaturalKey() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestCableKey_Symmetric(t *testing.T) {
	ab := &CableRecord{A: "sw1/Gi1", B: "sw2/Gi2"}
	ba := &CableRecord{A: "sw2/Gi2", B: "sw1/Gi1"}
	if ab.NaturalKey() != ba.NaturalKey() {
		t.Errorf("keys differ: %q vs %q", ab.NaturalKey(), ba.NaturalKey())
	}
	refs := ba.Refs()
	if refs[0].Key != "sw1/Gi1" || refs[0].Field != FieldATerminations {
		t.Errorf("first termination = %+v, want sw1/Gi1 on %s", refs[0], FieldATerminations)
	}
}

func TestDeviceRefs(t *testing.T) {
	d := &DeviceRecord{Name: "srv1", Role: "Server", DeviceType: "R640", Site: "DC1", Tags: []string{"prod"}}
	var required, optional int
	for _, r := range d.Refs() {
		if r.Required {
			required++
		} else {
			optional++
		}
	}
	if required != 3 {
		t.Errorf("required refs = %d, want 3", required)
	}
	// only the tag; empty rack, cluster and tenant produce no ref
	if optional != 1 {
		t.Errorf("optional refs = %d, want 1", optional)
	}
}

func TestSplitInterfaceKey(t *testing.T) {
	tests := []struct {
		parent, name string
	}{
		{"sw1", "Gi1/0/1"},
		{"dc1/sw1", "eth0"},
		{`core\1`, "ae0"},
		{`odd\/name/`, "Te1/1"},
	}
	for _, tc := range tests {
		key := InterfaceKey(tc.parent, tc.name)
		parent, name, ok := SplitInterfaceKey(key)
		if !ok || parent != tc.parent || name != tc.name {
			t.Errorf("SplitInterfaceKey(%q) = (%q, %q, %v), want (%q, %q, true)", key, parent, name, ok, tc.parent, tc.name)
		}
	}
	if got := InterfaceKey("sw1", "Gi1/0/1"); got != "sw1/Gi1/0/1" {
		t.Errorf("InterfaceKey = %q, want sw1/Gi1/0/1", got)
	}
	if _, _, ok := SplitInterfaceKey("noslash"); ok {
		t.Error("SplitInterfaceKey(noslash) should fail")
	}
}

func TestSplitServiceKey(t *testing.T) {
	rec := &ServiceRecord{Device: "dc1/sw1", Name: "http/alt", Protocol: "tcp"}
	kind, parent, name, proto, ok := SplitServiceKey(rec.NaturalKey())
	if !ok || kind != "device" || parent != "dc1/sw1" || name != "http/alt" || proto != "tcp" {
		t.Errorf("SplitServiceKey(%q) = (%q, %q, %q, %q, %v)", rec.NaturalKey(), kind, parent, name, proto, ok)
	}
	vm := &ServiceRecord{VirtualMachine: "db1", Name: "pg", Protocol: "tcp"}
	if got := vm.NaturalKey(); got != "vm:db1/pg/tcp" {
		t.Errorf("NaturalKey() = %q, want vm:db1/pg/tcp", got)
	}
	if _, _, _, _, ok := SplitServiceKey("host:x/y/z"); ok {
		t.Error("SplitServiceKey(host:...) should fail")
	}
}

func TestParseEntityType(t *testing.T) {
	for _, et := range AllEntityTypes() {
		got, err := ParseEntityType(et.String())
		if err != nil {
			t.Fatalf("ParseEntityType(%q): %v", et, err)
		}
		if got != et {
			t.Errorf("ParseEntityType(%q) = %v, want %v", et.String(), got, et)
		}
	}
	if _, err := ParseEntityType("widget"); err == nil {
		t.Error("expected error for unknown type")
	}
}

func TestSubset(t *testing.T) {
	if SubsetBasic.Includes(Cable) {
		t.Error("basic subset includes cables")
	}
	if !SubsetBasic.Includes(Device) {
		t.Error("basic subset excludes devices")
	}
	if SubsetExtended.Includes(Site) {
		t.Error("extended subset includes sites")
	}
	if !Subset("").Includes(Service) || !Subset("").IncludesAnalysis() {
		t.Error("empty subset should include everything")
	}
	if SubsetBasic.IncludesAnalysis() {
		t.Error("basic subset runs the analysis")
	}
}
