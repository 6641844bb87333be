package ipam

import (
	"net/netip"
	"sort"

	"github.com/sirupsen/logrus"
	"go4.org/netipx"
)

// Options controls which blocks Blocks builds.
type Options struct {
	Policy OverlapPolicy
	// Recurse analyzes every prefix against its children, not only the
	// top-level ones. Gaps of nested levels never overlap each other.
	Recurse bool
	// Blocks longer than these prefix lengths are not analyzed.
	MaxPrefixLenV4 int
	MaxPrefixLenV6 int
	// Occupied is space allocated outside the analyzed prefixes, e.g. by
	// inventory a filtered run leaves out. Ranges strictly inside a block
	// count as its allocations; they never become blocks themselves.
	Occupied []netipx.IPRange
}

// Blocks builds the address blocks to analyze from migrated prefixes and
// addresses. A top-level block is a prefix not contained in any other one;
// its allocations are the prefixes and addresses inside it.
func Blocks(prefixes []netip.Prefix, addrs []netip.Addr, opts Options, log logrus.FieldLogger) []AddressBlock {
	ps := normalizePrefixes(prefixes)
	as := normalizeAddrs(addrs)

	var roots []netip.Prefix
	if opts.Recurse {
		roots = ps
	} else {
		for _, p := range ps {
			// sorted by address then shorter first: a container always
			// precedes its contents, so the last root is the only candidate
			if n := len(roots); n > 0 && roots[n-1].Contains(p.Addr()) {
				continue
			}
			roots = append(roots, p)
		}
	}

	occ := make([]netipx.IPRange, 0, len(opts.Occupied))
	for _, o := range opts.Occupied {
		if o.IsValid() {
			occ = append(occ, o)
		}
	}
	sort.Slice(occ, func(i, j int) bool { return occ[i].From().Less(occ[j].From()) })

	var blocks []AddressBlock
	for _, root := range roots {
		if tooSmall(root, opts) {
			log.WithField("block", root.String()).Debug("block below analysis threshold")
			continue
		}
		whole := netipx.RangeOfPrefix(root)
		var allocs []netipx.IPRange

		i := sort.Search(len(ps), func(i int) bool { return !ps[i].Addr().Less(whole.From()) })
		for ; i < len(ps) && !whole.To().Less(ps[i].Addr()); i++ {
			if ps[i].Bits() > root.Bits() {
				allocs = append(allocs, netipx.RangeOfPrefix(ps[i]))
			}
		}
		j := sort.Search(len(as), func(j int) bool { return !as[j].Less(whole.From()) })
		for ; j < len(as) && !whole.To().Less(as[j]); j++ {
			allocs = append(allocs, netipx.IPRangeFrom(as[j], as[j]))
		}
		k := sort.Search(len(occ), func(k int) bool { return !occ[k].From().Less(whole.From()) })
		for ; k < len(occ) && !whole.To().Less(occ[k].From()); k++ {
			if occ[k] != whole && !whole.To().Less(occ[k].To()) {
				allocs = append(allocs, occ[k])
			}
		}
		blocks = append(blocks, NewAddressBlock(root, allocs, opts.Policy, log))
	}
	return blocks
}

func tooSmall(p netip.Prefix, opts Options) bool {
	if p.Addr().Is4() {
		return opts.MaxPrefixLenV4 > 0 && p.Bits() > opts.MaxPrefixLenV4
	}
	return opts.MaxPrefixLenV6 > 0 && p.Bits() > opts.MaxPrefixLenV6
}

// normalizePrefixes masks, unmaps, de-duplicates and sorts by address then
// prefix length.
func normalizePrefixes(in []netip.Prefix) []netip.Prefix {
	seen := make(map[netip.Prefix]bool, len(in))
	out := make([]netip.Prefix, 0, len(in))
	for _, p := range in {
		if !p.IsValid() {
			continue
		}
		if p.Addr().Is4In6() && p.Bits() >= 96 {
			p = netip.PrefixFrom(p.Addr().Unmap(), p.Bits()-96)
		}
		p = p.Masked()
		if seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Addr().Compare(out[j].Addr()); c != 0 {
			return c < 0
		}
		return out[i].Bits() < out[j].Bits()
	})
	return out
}

func normalizeAddrs(in []netip.Addr) []netip.Addr {
	seen := make(map[netip.Addr]bool, len(in))
	out := make([]netip.Addr, 0, len(in))
	for _, a := range in {
		if !a.IsValid() {
			continue
		}
		a = a.Unmap().WithZone("")
		if seen[a] {
			continue
		}
		seen[a] = true
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}
