package ipam

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go4.org/netipx"
)

func parsePrefixes(ss ...string) []netip.Prefix {
	out := make([]netip.Prefix, len(ss))
	for i, s := range ss {
		out[i] = netip.MustParsePrefix(s)
	}
	return out
}

func parseAddrs(ss ...string) []netip.Addr {
	out := make([]netip.Addr, len(ss))
	for i, s := range ss {
		out[i] = netip.MustParseAddr(s)
	}
	return out
}

func TestBlocks_TopLevelOnly(t *testing.T) {
	prefixes := parsePrefixes("10.0.1.0/24", "10.0.0.0/16", "10.0.1.128/25", "172.16.0.0/24", "2001:db8::/48")
	addrs := parseAddrs("10.0.2.1", "172.16.0.9", "8.8.8.8")

	blocks := Blocks(prefixes, addrs, Options{Policy: PolicyLarger}, quietLogger())
	require.Len(t, blocks, 3)

	assert.Equal(t, "10.0.0.0/16", blocks[0].Prefix.String())
	// the /25 is nested in the /24 and dropped; the address stands alone
	require.Len(t, blocks[0].Allocations, 2)
	assert.Equal(t, "10.0.1.0-10.0.1.255", blocks[0].Allocations[0].String())
	assert.Equal(t, "10.0.2.1-10.0.2.1", blocks[0].Allocations[1].String())

	assert.Equal(t, "172.16.0.0/24", blocks[1].Prefix.String())
	assert.Len(t, blocks[1].Allocations, 1)
	assert.Equal(t, "2001:db8::/48", blocks[2].Prefix.String())
	assert.Empty(t, blocks[2].Allocations)
}

func TestBlocks_Recurse(t *testing.T) {
	prefixes := parsePrefixes("10.0.0.0/16", "10.0.1.0/24")
	addrs := parseAddrs("10.0.1.1")

	blocks := Blocks(prefixes, addrs, Options{Recurse: true}, quietLogger())
	require.Len(t, blocks, 2)
	assert.Equal(t, "10.0.1.0/24", blocks[1].Prefix.String())
	require.Len(t, blocks[1].Allocations, 1)

	// gaps of the two levels are disjoint
	outer := ComputeGaps(blocks[0])
	inner := ComputeGaps(blocks[1])
	for _, o := range outer {
		for _, i := range inner {
			assert.False(t, o.Overlaps(i.IPRange), "%s overlaps %s", o, i)
		}
	}
}

func TestBlocks_Threshold(t *testing.T) {
	prefixes := parsePrefixes("10.0.0.0/30", "10.0.1.0/24", "2001:db8::/127")
	blocks := Blocks(prefixes, nil, Options{MaxPrefixLenV4: 29, MaxPrefixLenV6: 126}, quietLogger())
	require.Len(t, blocks, 1)
	assert.Equal(t, "10.0.1.0/24", blocks[0].Prefix.String())
}

func TestBlocks_DeduplicatesAndMasks(t *testing.T) {
	prefixes := parsePrefixes("10.0.0.5/24", "10.0.0.0/24")
	blocks := Blocks(prefixes, parseAddrs("10.0.0.1", "10.0.0.1"), Options{}, quietLogger())
	require.Len(t, blocks, 1)
	assert.Len(t, blocks[0].Allocations, 1)
}

func TestBlocks_OccupiedSpace(t *testing.T) {
	prefixes := parsePrefixes("10.0.0.0/16")
	// an enclosing prefix, the block itself, another site's subnet, space
	// outside the block and an allocated address
	occupied := []netipx.IPRange{
		netipx.RangeOfPrefix(netip.MustParsePrefix("10.0.0.0/8")),
		netipx.RangeOfPrefix(netip.MustParsePrefix("10.0.0.0/16")),
		netipx.RangeOfPrefix(netip.MustParsePrefix("10.0.5.0/24")),
		netipx.RangeOfPrefix(netip.MustParsePrefix("10.1.0.0/24")),
		netipx.IPRangeFrom(netip.MustParseAddr("10.0.9.9"), netip.MustParseAddr("10.0.9.9")),
	}

	blocks := Blocks(prefixes, nil, Options{Occupied: occupied}, quietLogger())
	require.Len(t, blocks, 1)
	require.Len(t, blocks[0].Allocations, 2)
	assert.Equal(t, "10.0.5.0-10.0.5.255", blocks[0].Allocations[0].String())
	assert.Equal(t, "10.0.9.9-10.0.9.9", blocks[0].Allocations[1].String())

	for _, g := range ComputeGaps(blocks[0]) {
		assert.False(t, g.Contains(netip.MustParseAddr("10.0.5.1")), "gap %s covers occupied space", g)
	}

	// occupied space never adds a block
	assert.Empty(t, Blocks(nil, nil, Options{Occupied: occupied}, quietLogger()))
}
