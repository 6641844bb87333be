package netbox

import (
	"net/url"
	"reflect"
	"testing"

	"github.com/rflorenc/racktables-migrator/internal/models"
)

func TestEndpoint_EveryType(t *testing.T) {
	for _, et := range models.AllEntityTypes() {
		if _, err := Endpoint(et); err != nil {
			t.Errorf("Endpoint(%v) returned error: %v", et, err)
		}
	}
	if _, err := Endpoint(models.EntityType(99)); err == nil {
		t.Error("Endpoint(99) should fail")
	}
}

func TestLookupQuery(t *testing.T) {
	tests := []struct {
		name string
		t    models.EntityType
		key  string
		want url.Values
	}{
		{"site", models.Site, "DC 1", url.Values{"name": {"DC 1"}}},
		{"device type", models.DeviceType, "EX4300-48T", url.Values{"model": {"EX4300-48T"}}},
		{"vlan", models.VLAN, "Core Domain/100", url.Values{"group": {"core-domain"}, "vid": {"100"}}},
		{"interface", models.Interface, "sw1/Gi1/0/1", url.Values{"device": {"sw1"}, "name": {"Gi1/0/1"}}},
		{"vm interface", models.VMInterface, "vm1/eth0", url.Values{"virtual_machine": {"vm1"}, "name": {"eth0"}}},
		{"prefix", models.Prefix, "10.0.0.0/24", url.Values{"prefix": {"10.0.0.0/24"}}},
		{"address", models.IPAddress, "10.0.0.1", url.Values{"address": {"10.0.0.1"}}},
		{"range", models.IPRange, "10.0.0.64-10.0.0.191", url.Values{"start_address": {"10.0.0.64"}, "end_address": {"10.0.0.191"}}},
		{"cable", models.Cable, "a/1<->b/2", url.Values{"label": {"a/1<->b/2"}}},
		{"device service", models.Service, "device:web1/https/tcp", url.Values{"device": {"web1"}, "name": {"https"}, "protocol": {"tcp"}}},
		{"vm service", models.Service, "vm:db1/pg/tcp", url.Values{"virtual_machine": {"db1"}, "name": {"pg"}, "protocol": {"tcp"}}},
		{"slashed device interface", models.Interface, models.InterfaceKey("dc1/sw1", "eth0"), url.Values{"device": {"dc1/sw1"}, "name": {"eth0"}}},
		{"slashed vm interface", models.VMInterface, models.InterfaceKey(`a\b/c`, "eth0/1"), url.Values{"virtual_machine": {`a\b/c`}, "name": {"eth0/1"}}},
		{"slashed device service", models.Service,
			(&models.ServiceRecord{Device: "dc1/sw1", Name: "http/alt", Protocol: "tcp"}).NaturalKey(),
			url.Values{"device": {"dc1/sw1"}, "name": {"http/alt"}, "protocol": {"tcp"}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := lookupQuery(tc.t, tc.key)
			if err != nil {
				t.Fatalf("lookupQuery returned error: %v", err)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("lookupQuery(%v, %q) = %v, want %v", tc.t, tc.key, got, tc.want)
			}
		})
	}
}

func TestLookupQuery_Malformed(t *testing.T) {
	tests := []struct {
		t   models.EntityType
		key string
	}{
		{models.VLAN, "novid"},
		{models.VLAN, "group/abc"},
		{models.Interface, "noslash"},
		{models.IPRange, "10.0.0.1"},
		{models.Service, "host:x/y/z"},
		{models.Service, "device:x"},
		{models.Service, "device:x/y/"},
		{models.Interface, "/eth0"},
		{models.Interface, `sw1\/eth0`},
	}
	for _, tc := range tests {
		if _, err := lookupQuery(tc.t, tc.key); err == nil {
			t.Errorf("lookupQuery(%v, %q) should fail", tc.t, tc.key)
		}
	}
}
