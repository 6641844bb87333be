package source

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeInterfaceName(t *testing.T) {
	tests := []struct {
		objtype int
		in      string
		want    string
	}{
		{objtypeSwitch, "Gi0/1", "GigabitEthernet0/1"},
		{objtypeSwitch, "Te1/0/1", "TenGigE1/0/1"},
		{objtypeRouter, "Po10", "Port-Channel10"},
		{objtypeRouter, "Port-channel10", "Port-Channel10"},
		{objtypeRouter, "Loop0", "Loopback0"},
		{objtypeRouter, "Lo0", "Loopback0"},
		{objtypeRouter, "BE-1", "Bundle-Ether-1"},
		{objtypeSwitch, "eth 1", "Ethernet 1"},
		{objtypeSwitch, "ethernet1", "Ethernet1"},
		{objtypeSwitch, "Vl100", "VLAN100"},
		{objtypeSwitch, "Gig0/1", "Gig0/1"},
		{objtypeSwitch, "GigabitEthernet0/1", "GigabitEthernet0/1"},
		{objtypeSwitch, "Gi", "Gi"},
		{objtypeSwitch, "ge-0/0/0", "ge-0/0/0"},
		{4, "Gi0/1", "Gi0/1"},
		{4, "eth0", "eth0"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, NormalizeInterfaceName(tc.objtype, tc.in), tc.in)
	}
}

func TestDedupe(t *testing.T) {
	assert.Equal(t,
		[]string{"sw1", "sw2", "sw1.1", "sw1.2", ""},
		dedupe([]string{"sw1", "sw2", "sw1", "sw1", ""}, "."))

	// a generated name never shadows an existing one
	assert.Equal(t,
		[]string{"web", "web-1", "web-2"},
		dedupe([]string{"web", "web-1", "web"}, "-"))
}

func TestPrefixStatus(t *testing.T) {
	tests := []struct {
		name, comment, want string
	}{
		{"", "", "reserved"},
		{"  ", "", "reserved"},
		{"office", "", "active"},
		{"future DMZ", "", "reserved"},
		{"mgmt", "on hold", "reserved"},
		{"old-servers", "", "deprecated"},
		{"servers", "Decommissioned 2019", "deprecated"},
		{"DC1 supernet", "", "container"},
		{"unused", "", "container"},
		{"golden", "", "active"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, PrefixStatus(tc.name, tc.comment), "%q/%q", tc.name, tc.comment)
	}
}

func TestPrefixDescription(t *testing.T) {
	assert.Equal(t, "servers [prod, web] - rack A", PrefixDescription("servers", []string{"prod", "web"}, "rack A"))
	assert.Equal(t, "servers", PrefixDescription("servers", nil, ""))
	assert.Equal(t, "[prod]", PrefixDescription("", []string{"prod"}, ""))
	assert.Equal(t, "only a comment", PrefixDescription("", nil, "only a comment"))

	long := PrefixDescription(strings.Repeat("n", 150), nil, strings.Repeat("c", 150))
	assert.Len(t, long, maxDescription)
}

func TestCleanDictValue(t *testing.T) {
	assert.Equal(t, "Juniper EX4300", cleanDictValue("Juniper%GPASS%EX4300"))
	assert.Equal(t, "Cisco Catalyst 2960", cleanDictValue("[[Cisco%GSKIP%Catalyst 2960 | http://example.com/2960]]"))
	assert.Equal(t, "Server", cleanDictValue("Server"))
}

func TestDeviceTypeModel(t *testing.T) {
	tests := []struct {
		hw, objtype string
		height      int
		full        bool
		model, mfr  string
	}{
		{"Juniper EX4300", "Network switch", 1, true, "EX4300-1U-full", "Juniper"},
		{"Dell/EMC Unity 300", "Storage", 2, false, "Unity 300-2U", "Dell/EMC"},
		{"Dell PowerEdge R640", "Server", 1, false, "PowerEdge R640-1U", "Dell"},
		{"Homebrew box", "Server", 4, false, "Homebrew box-4U", "Server"},
		{"", "Server", 2, false, "Server-2U", "Server"},
		{"", "Server", 0, false, "Server-0U", "Server"},
	}
	for _, tc := range tests {
		model, mfr := deviceTypeModel(tc.hw, tc.objtype, tc.height, tc.full)
		assert.Equal(t, tc.model, model, tc.hw)
		assert.Equal(t, tc.mfr, mfr, tc.hw)
	}
}

func TestInterfaceKindAndRole(t *testing.T) {
	assert.Equal(t, "1000base-t", interfaceKind("1000Base-T"))
	assert.Equal(t, "10gbase-x-sfpp", interfaceKind("empty SFP+"))
	assert.Equal(t, "virtual", interfaceKind("virtual port"))
	assert.Equal(t, "other", interfaceKind("KVM (host)"))

	assert.Equal(t, "vrrp", allocationRole("shared"))
	assert.Equal(t, "loopback", allocationRole("loopback"))
	assert.Equal(t, "", allocationRole("regular"))
}

func TestHexColor(t *testing.T) {
	c, ok := hexColor("#FF0000")
	assert.True(t, ok)
	assert.Equal(t, "ff0000", c)
	_, ok = hexColor("red")
	assert.False(t, ok)
}
