package ipam

import (
	"fmt"
	"net/netip"
	"sort"

	"github.com/sirupsen/logrus"
	"go4.org/netipx"
)

// OverlapPolicy decides which of two partially overlapping allocations is kept.
type OverlapPolicy string

const (
	// PolicyLarger keeps the larger range and skips the smaller one.
	PolicyLarger OverlapPolicy = "larger"
	// PolicyFirst keeps whichever range sorts first by start address.
	PolicyFirst OverlapPolicy = "first"
)

// ParseOverlapPolicy validates a policy name; empty selects PolicyLarger.
func ParseOverlapPolicy(s string) (OverlapPolicy, error) {
	switch OverlapPolicy(s) {
	case "", PolicyLarger:
		return PolicyLarger, nil
	case PolicyFirst:
		return PolicyFirst, nil
	}
	return "", fmt.Errorf("unknown overlap policy %q (want %q or %q)", s, PolicyLarger, PolicyFirst)
}

// AddressBlock is a CIDR-bounded network with its allocated sub-ranges,
// sorted by start address and pairwise disjoint.
type AddressBlock struct {
	Prefix      netip.Prefix
	Allocations []netipx.IPRange
}

// NewAddressBlock normalizes allocations into a valid block. Ranges of the
// other family, ranges outside the block and the block itself are dropped;
// ranges sticking out of the block are clipped. Overlaps are never merged:
// a range nested in a kept range is skipped, and of two partially
// overlapping ranges the policy keeps one and the other is logged.
func NewAddressBlock(p netip.Prefix, allocs []netipx.IPRange, policy OverlapPolicy, log logrus.FieldLogger) AddressBlock {
	p = p.Masked()
	whole := netipx.RangeOfPrefix(p)
	b := AddressBlock{Prefix: p}

	candidates := make([]netipx.IPRange, 0, len(allocs))
	for _, r := range allocs {
		if !r.IsValid() || r.From().Is4() != p.Addr().Is4() {
			continue
		}
		if r.To().Less(whole.From()) || whole.To().Less(r.From()) {
			continue
		}
		from, to := r.From(), r.To()
		if from.Less(whole.From()) {
			from = whole.From()
		}
		if whole.To().Less(to) {
			to = whole.To()
		}
		if from == whole.From() && to == whole.To() {
			continue
		}
		candidates = append(candidates, netipx.IPRangeFrom(from, to))
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if c := candidates[i].From().Compare(candidates[j].From()); c != 0 {
			return c < 0
		}
		return candidates[j].To().Less(candidates[i].To())
	})

	for _, r := range candidates {
		n := len(b.Allocations)
		if n == 0 || b.Allocations[n-1].To().Less(r.From()) {
			b.Allocations = append(b.Allocations, r)
			continue
		}
		last := b.Allocations[n-1]
		if !last.To().Less(r.To()) {
			log.WithFields(logrus.Fields{
				"block": p.String(), "kept": last.String(), "skipped": r.String(),
			}).Debug("nested allocation")
			continue
		}
		kept, skipped := last, r
		if policy == PolicyLarger && rangeSize(last).cmp(rangeSize(r)) < 0 {
			kept, skipped = r, last
			b.Allocations[n-1] = r
		}
		log.WithFields(logrus.Fields{
			"block": p.String(), "kept": kept.String(), "skipped": skipped.String(), "policy": string(policy),
		}).Warn("overlapping allocations")
	}
	return b
}

// rangeSize is the number of addresses minus one.
func rangeSize(r netipx.IPRange) uint128 {
	return fromAddr(r.To()).sub(fromAddr(r.From()))
}
