package resolve

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rflorenc/racktables-migrator/internal/models"
)

func bind(rec models.Record, ids map[models.EntityType]int) *boundRefs {
	b := newBoundRefs()
	for _, ref := range rec.Refs() {
		if id, ok := ids[ref.Type]; ok {
			b.set(ref, id)
		}
	}
	return b
}

func TestTranslate_DeviceRoleField(t *testing.T) {
	rec := &models.DeviceRecord{
		Name: "sw1", Role: "switch", DeviceType: "EX4300", Site: "DC1",
		Rack: "DC1.A.R1", Position: 10,
	}
	ids := map[models.EntityType]int{models.DeviceRole: 1, models.DeviceType: 2, models.Site: 3, models.Rack: 4}

	tests := []struct {
		version string
		field   string
		absent  string
	}{
		{"4.1.0", "role", "device_role"},
		{"", "role", "device_role"},
		{"3.7.8", "device_role", "role"},
	}
	for _, tc := range tests {
		t.Run("v"+tc.version, func(t *testing.T) {
			p, err := translate(rec, bind(rec, ids), Options{TargetVersion: tc.version})
			require.NoError(t, err)
			assert.Equal(t, 1, p[tc.field])
			assert.NotContains(t, p, tc.absent)
			assert.Equal(t, 10, p["position"])
			assert.Equal(t, "front", p["face"])
			assert.NotContains(t, p, "asset_tag")
		})
	}
}

func TestTranslate_UnrackedDeviceHasNoPosition(t *testing.T) {
	rec := &models.DeviceRecord{Name: "srv", Role: "server", DeviceType: "x", Site: "DC1", Position: 3}
	ids := map[models.EntityType]int{models.DeviceRole: 1, models.DeviceType: 2, models.Site: 3}
	p, err := translate(rec, bind(rec, ids), Options{})
	require.NoError(t, err)
	assert.NotContains(t, p, "position")
	assert.NotContains(t, p, "face")
}

func TestTranslate_PrefixScope(t *testing.T) {
	rec := &models.PrefixRecord{Prefix: "10.1.0.0/16", Site: "DC1", Name: "office", Tags: []string{"IPv4"}}
	ids := map[models.EntityType]int{models.Site: 3, models.Tag: 8}

	p, err := translate(rec, bind(rec, ids), Options{TargetVersion: "4.2.1"})
	require.NoError(t, err)
	assert.Equal(t, "dcim.site", p["scope_type"])
	assert.Equal(t, 3, p["scope_id"])
	assert.NotContains(t, p, "site")
	assert.Equal(t, "active", p["status"])
	assert.Equal(t, payload{models.CustomFieldPrefixName: "office"}, p["custom_fields"])
	assert.Equal(t, []map[string]int{{"id": 8}}, p["tags"])

	p, err = translate(rec, bind(rec, ids), Options{TargetVersion: "4.1"})
	require.NoError(t, err)
	assert.Equal(t, 3, p["site"])
	assert.NotContains(t, p, "scope_type")
}

func TestTranslate_Cable(t *testing.T) {
	rec := &models.CableRecord{A: "sw2/eth1", B: "sw1/eth0", Length: 2.5}
	b := newBoundRefs()
	refs := rec.Refs()
	require.Len(t, refs, 2)
	b.set(refs[0], 11)
	b.set(refs[1], 12)

	p, err := translate(rec, b, Options{})
	require.NoError(t, err)
	assert.Equal(t, "sw1/eth0<->sw2/eth1", p["label"])
	assert.Equal(t, []map[string]interface{}{{"object_type": "dcim.interface", "object_id": 11}}, p["a_terminations"])
	assert.Equal(t, []map[string]interface{}{{"object_type": "dcim.interface", "object_id": 12}}, p["b_terminations"])
	assert.Equal(t, "m", p["length_unit"])

	long := &models.CableRecord{A: "a/" + strings.Repeat("x", 60), B: "b/" + strings.Repeat("y", 60)}
	_, err = translate(long, newBoundRefs(), Options{})
	assert.Error(t, err)
}

func TestTranslate_CustomFieldObjectTypes(t *testing.T) {
	rec := &models.CustomFieldRecord{Name: models.CustomFieldIPName, Kind: "text", ObjectTypes: []string{"ipam.ipaddress"}}

	p, err := translate(rec, newBoundRefs(), Options{TargetVersion: "4.0.0"})
	require.NoError(t, err)
	assert.Equal(t, []string{"ipam.ipaddress"}, p["object_types"])

	p, err = translate(rec, newBoundRefs(), Options{TargetVersion: "3.6"})
	require.NoError(t, err)
	assert.Equal(t, []string{"ipam.ipaddress"}, p["content_types"])
}

func TestTranslate_IPRange(t *testing.T) {
	rec := &models.IPRangeRecord{Start: "10.0.0.64", End: "10.0.0.191", PrefixLen: 24, Status: "reserved"}
	p, err := translate(rec, newBoundRefs(), Options{})
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.64/24", p["start_address"])
	assert.Equal(t, "10.0.0.191/24", p["end_address"])
	assert.Equal(t, "reserved", p["status"])
}

func TestWithMask(t *testing.T) {
	tests := []struct {
		addr string
		bits int
		want string
		err  bool
	}{
		{"10.0.0.5", 0, "10.0.0.5/32", false},
		{"10.0.0.5", 24, "10.0.0.5/24", false},
		{"2001:db8::1", 0, "2001:db8::1/128", false},
		{"10.0.0.5", 33, "", true},
		{"bogus", 0, "", true},
	}
	for _, tc := range tests {
		got, err := withMask(tc.addr, tc.bits)
		if tc.err {
			assert.Error(t, err, tc.addr)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tc.want, got)
	}
}

func TestTranslate_CarriedCustomFields(t *testing.T) {
	carried := models.CustomFields{"fqdn": "sw1.example.com", "dram_mb": int64(4096)}
	dev := &models.DeviceRecord{Name: "sw1", Role: "switch", DeviceType: "EX4300", Site: "DC1", CustomFields: carried}
	p, err := translate(dev, bind(dev, map[models.EntityType]int{models.DeviceRole: 1, models.DeviceType: 2, models.Site: 3}), Options{})
	require.NoError(t, err)
	assert.Equal(t, payload{"fqdn": "sw1.example.com", "dram_mb": int64(4096)}, p["custom_fields"])

	addr := &models.IPAddressRecord{Address: "10.0.0.1", Name: "mgmt",
		CustomFields: models.CustomFields{models.CustomFieldNATType: "Static NAT"}}
	p, err = translate(addr, newBoundRefs(), Options{})
	require.NoError(t, err)
	assert.Equal(t, payload{models.CustomFieldNATType: "Static NAT", models.CustomFieldIPName: "mgmt"}, p["custom_fields"])
	assert.Len(t, addr.CustomFields, 1, "record map was written to")

	vm := &models.VirtualMachineRecord{Name: "vm1", Cluster: "cl1"}
	p, err = translate(vm, bind(vm, map[models.EntityType]int{models.Cluster: 4}), Options{})
	require.NoError(t, err)
	assert.NotContains(t, p, "custom_fields")
}
