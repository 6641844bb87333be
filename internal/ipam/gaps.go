package ipam

import (
	"net/netip"

	"go4.org/netipx"
)

// GapRange is a maximal span of a block not covered by any allocation.
type GapRange struct {
	netipx.IPRange
}

// ComputeGaps sweeps the block's sorted allocations and returns the
// uncovered spans in address order. No allocations yields the whole block;
// full coverage yields none.
func ComputeGaps(b AddressBlock) []GapRange {
	is4 := b.Prefix.Addr().Is4()
	whole := netipx.RangeOfPrefix(b.Prefix.Masked())
	cursor := fromAddr(whole.From())
	last := fromAddr(whole.To())

	var gaps []GapRange
	for _, a := range b.Allocations {
		start, end := fromAddr(a.From()), fromAddr(a.To())
		if start.cmp(cursor) > 0 {
			gaps = append(gaps, gap(cursor, start.subOne(), is4))
		}
		if end.cmp(cursor) >= 0 {
			if end.cmp(last) >= 0 {
				// covered to the end of the block; end+1 may not exist
				return gaps
			}
			cursor = end.addOne()
		}
	}
	if cursor.cmp(last) <= 0 {
		gaps = append(gaps, gap(cursor, last, is4))
	}
	return gaps
}

func gap(from, to uint128, is4 bool) GapRange {
	return GapRange{netipx.IPRangeFrom(from.addr(is4), to.addr(is4))}
}

// Prefixes splits the gap into the minimal list of CIDR-aligned prefixes,
// taking at each step the largest aligned block that starts at the cursor
// and does not pass the end of the gap.
func (g GapRange) Prefixes() []netip.Prefix {
	return splitAligned(g.From(), g.To())
}

func splitAligned(from, to netip.Addr) []netip.Prefix {
	is4 := from.Is4()
	width := from.BitLen()
	cursor, end := fromAddr(from), fromAddr(to)

	var out []netip.Prefix
	for cursor.cmp(end) <= 0 {
		k := cursor.trailingZeros()
		if k > width {
			k = width
		}
		for k > 0 && cursor.or(lowMask(k)).cmp(end) > 0 {
			k--
		}
		out = append(out, netip.PrefixFrom(cursor.addr(is4), width-k))
		blockEnd := cursor.or(lowMask(k))
		if blockEnd.cmp(end) >= 0 {
			break
		}
		cursor = blockEnd.addOne()
	}
	return out
}
