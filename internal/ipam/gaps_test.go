package ipam

import (
	"net/netip"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go4.org/netipx"
)

func quietLogger() logrus.FieldLogger {
	l, _ := test.NewNullLogger()
	return l
}

func pfx(s string) netipx.IPRange {
	return netipx.RangeOfPrefix(netip.MustParsePrefix(s))
}

func rng(from, to string) netipx.IPRange {
	return netipx.IPRangeFrom(netip.MustParseAddr(from), netip.MustParseAddr(to))
}

func block(t *testing.T, p string, allocs ...netipx.IPRange) AddressBlock {
	t.Helper()
	return NewAddressBlock(netip.MustParsePrefix(p), allocs, PolicyLarger, quietLogger())
}

func prefixStrings(ps []netip.Prefix) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.String()
	}
	return out
}

func TestComputeGaps_HalfAllocated(t *testing.T) {
	gaps := ComputeGaps(block(t, "10.0.0.0/24", pfx("10.0.0.0/25")))
	require.Len(t, gaps, 1)
	assert.Equal(t, []string{"10.0.0.128/25"}, prefixStrings(gaps[0].Prefixes()))
}

func TestComputeGaps_InternalHole(t *testing.T) {
	gaps := ComputeGaps(block(t, "10.0.0.0/24", pfx("10.0.0.0/26"), pfx("10.0.0.192/26")))
	require.Len(t, gaps, 1)
	assert.Equal(t, "10.0.0.64", gaps[0].From().String())
	assert.Equal(t, "10.0.0.191", gaps[0].To().String())
	// .64 is not /25-aligned, so the hole is two /26 networks
	assert.Equal(t, []string{"10.0.0.64/26", "10.0.0.128/26"}, prefixStrings(gaps[0].Prefixes()))
}

func TestComputeGaps_FullCoverage(t *testing.T) {
	gaps := ComputeGaps(block(t, "10.0.0.0/24",
		pfx("10.0.0.0/26"), pfx("10.0.0.64/26"), pfx("10.0.0.128/25")))
	assert.Empty(t, gaps)
}

func TestComputeGaps_NoAllocations(t *testing.T) {
	gaps := ComputeGaps(block(t, "192.168.0.0/16"))
	require.Len(t, gaps, 1)
	assert.Equal(t, []string{"192.168.0.0/16"}, prefixStrings(gaps[0].Prefixes()))
}

func TestComputeGaps_SingleAddresses(t *testing.T) {
	gaps := ComputeGaps(block(t, "10.1.0.0/29", rng("10.1.0.1", "10.1.0.1"), rng("10.1.0.6", "10.1.0.6")))
	require.Len(t, gaps, 3)
	assert.Equal(t, "10.1.0.0-10.1.0.0", gaps[0].String())
	assert.Equal(t, "10.1.0.2-10.1.0.5", gaps[1].String())
	assert.Equal(t, "10.1.0.7-10.1.0.7", gaps[2].String())
	assert.Equal(t, []string{"10.1.0.2/31", "10.1.0.4/31"}, prefixStrings(gaps[1].Prefixes()))
}

func TestComputeGaps_SingleAddressBlock(t *testing.T) {
	b := block(t, "10.9.9.9/32")
	gaps := ComputeGaps(b)
	require.Len(t, gaps, 1)
	assert.Equal(t, []string{"10.9.9.9/32"}, prefixStrings(gaps[0].Prefixes()))
}

func TestComputeGaps_IPv6(t *testing.T) {
	gaps := ComputeGaps(block(t, "2001:db8::/48", pfx("2001:db8::/64"), pfx("2001:db8:0:ffff::/64")))
	require.Len(t, gaps, 1)
	got := gaps[0].Prefixes()
	// 2001:db8:0:1::/64 up to 2001:db8:0:fffe::/64: 15 growing then 15 shrinking blocks
	assert.Len(t, got, 30)
	assert.Equal(t, "2001:db8:0:1::/64", got[0].String())
	assert.Equal(t, "2001:db8:0:fffe::/64", got[len(got)-1].String())
}

func TestComputeGaps_TopOfAddressSpace(t *testing.T) {
	gaps := ComputeGaps(block(t, "::/0", pfx("::/1")))
	require.Len(t, gaps, 1)
	assert.Equal(t, []string{"8000::/1"}, prefixStrings(gaps[0].Prefixes()))

	gaps = ComputeGaps(block(t, "255.255.255.0/24", pfx("255.255.255.128/25")))
	require.Len(t, gaps, 1)
	assert.Equal(t, []string{"255.255.255.0/25"}, prefixStrings(gaps[0].Prefixes()))
}

func TestPrefixes_MatchesNetipx(t *testing.T) {
	cases := []netipx.IPRange{
		rng("10.0.0.1", "10.0.0.254"),
		rng("10.0.0.3", "10.0.1.17"),
		rng("0.0.0.0", "255.255.255.255"),
		rng("2001:db8::3", "2001:db8::1:0"),
		rng("::1", "ffff::"),
	}
	for _, r := range cases {
		t.Run(r.String(), func(t *testing.T) {
			assert.Equal(t, r.Prefixes(), GapRange{r}.Prefixes())
		})
	}
}

func TestNewAddressBlock_DropsNestedAndForeign(t *testing.T) {
	b := block(t, "10.0.0.0/16",
		pfx("10.0.1.0/24"),
		rng("10.0.1.5", "10.0.1.5"), // inside the /24
		pfx("10.0.0.0/16"),          // the block itself
		pfx("192.168.0.0/24"),       // outside
		pfx("2001:db8::/64"),        // other family
	)
	require.Len(t, b.Allocations, 1)
	assert.Equal(t, "10.0.1.0-10.0.1.255", b.Allocations[0].String())
}

func TestNewAddressBlock_ClipsToBlock(t *testing.T) {
	b := block(t, "10.0.0.0/24", rng("10.0.0.250", "10.0.1.10"))
	require.Len(t, b.Allocations, 1)
	assert.Equal(t, "10.0.0.250-10.0.0.255", b.Allocations[0].String())
}

func TestNewAddressBlock_OverlapPolicy(t *testing.T) {
	small := rng("10.0.0.10", "10.0.0.20")
	large := rng("10.0.0.15", "10.0.0.100")

	logger, hook := test.NewNullLogger()
	b := NewAddressBlock(netip.MustParsePrefix("10.0.0.0/24"), []netipx.IPRange{small, large}, PolicyLarger, logger)
	require.Len(t, b.Allocations, 1)
	assert.Equal(t, large, b.Allocations[0])
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)

	b = NewAddressBlock(netip.MustParsePrefix("10.0.0.0/24"), []netipx.IPRange{large, small}, PolicyFirst, logger)
	require.Len(t, b.Allocations, 1)
	assert.Equal(t, small, b.Allocations[0])

	gaps := ComputeGaps(b)
	require.Len(t, gaps, 2)
	assert.Equal(t, "10.0.0.21-10.0.0.255", gaps[1].String())
}

func TestParseOverlapPolicy(t *testing.T) {
	p, err := ParseOverlapPolicy("")
	require.NoError(t, err)
	assert.Equal(t, PolicyLarger, p)
	p, err = ParseOverlapPolicy("first")
	require.NoError(t, err)
	assert.Equal(t, PolicyFirst, p)
	_, err = ParseOverlapPolicy("merge")
	assert.Error(t, err)
}

func TestUint128(t *testing.T) {
	top := uint128{hi: ^uint64(0), lo: ^uint64(0)}
	assert.Equal(t, uint128{}, top.addOne())
	assert.Equal(t, uint128{hi: 1}, uint128{lo: ^uint64(0)}.addOne())
	assert.Equal(t, uint128{lo: ^uint64(0)}, uint128{hi: 1}.subOne())
	assert.Equal(t, 128, uint128{}.trailingZeros())
	assert.Equal(t, 64, uint128{hi: 1}.trailingZeros())
	assert.Equal(t, top, lowMask(128))
	assert.Equal(t, uint128{hi: 1, lo: ^uint64(0)}, lowMask(65))

	a := netip.MustParseAddr("2001:db8::1")
	assert.Equal(t, a, fromAddr(a).addr(false))
	v4 := netip.MustParseAddr("10.20.30.40")
	assert.Equal(t, v4, fromAddr(v4).addr(true))
}
