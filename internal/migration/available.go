package migration

import (
	"context"
	"fmt"
	"net/netip"

	"github.com/pkg/errors"
	"go4.org/netipx"

	"github.com/rflorenc/racktables-migrator/internal/ipam"
	"github.com/rflorenc/racktables-migrator/internal/models"
	"github.com/rflorenc/racktables-migrator/internal/netbox"
)

// AvailableTag marks synthesized free space.
const AvailableTag = "Available"

// Analysis output modes.
const (
	ModePrefix = "prefix"
	ModeRange  = "range"
	ModeBoth   = "both"
)

// SpaceView is implemented by views that can list the address space their
// filters leave out.
type SpaceView interface {
	Occupied(ctx context.Context) ([]netipx.IPRange, error)
}

// analyze computes the free space of every migrated block and writes it
// back as prefixes and/or IP ranges through the resolver, so reruns find
// what earlier runs created.
func (s *Session) analyze(ctx context.Context, r *run) error {
	occupied, ok, err := s.occupied(ctx, r)
	if err != nil || !ok {
		return err
	}
	prefixKeys, err := s.analysisKeys(ctx, r, models.Prefix)
	if err != nil {
		return err
	}
	addrKeys, err := s.analysisKeys(ctx, r, models.IPAddress)
	if err != nil {
		return err
	}
	prefixes, addrs := parseKeys(prefixKeys, addrKeys, r)

	policy, err := ipam.ParseOverlapPolicy(s.cfg.Available.OverlapPolicy)
	if err != nil {
		return err
	}
	blocks := ipam.Blocks(prefixes, addrs, ipam.Options{
		Policy:         policy,
		Recurse:        s.cfg.Available.Recurse,
		MaxPrefixLenV4: s.cfg.Available.MaxPrefixLenV4,
		MaxPrefixLenV6: s.cfg.Available.MaxPrefixLenV6,
		Occupied:       occupied,
	}, r.log)
	r.log.Infof("  %d address blocks from %d prefixes and %d addresses", len(blocks), len(prefixes), len(addrs))
	if len(blocks) == 0 {
		return nil
	}

	tags := []string{AvailableTag, netbox.AutoGeneratedTag}
	tagsResolved := false
	mode := s.cfg.Available.Mode
	for _, b := range blocks {
		gaps := partialGaps(b)
		if len(gaps) == 0 {
			continue
		}
		if !tagsResolved {
			for _, name := range tags {
				tag := &models.TagRecord{Name: name, Description: "Synthesized by the address-space analysis"}
				if err := s.book(ctx, r, tag, r.resolver.Ensure); err != nil {
					return err
				}
			}
			tagsResolved = true
		}
		r.report.Gaps += len(gaps)
		if s.observer != nil {
			s.observer.Gaps(family(b.Prefix), len(gaps))
		}
		for _, g := range gaps {
			for _, rec := range gapRecords(b, g, mode, s.cfg.Available.Status, tags) {
				if err := ctx.Err(); err != nil {
					return err
				}
				// an object with a gap's key that exists already was not
				// made by the analysis and is never patched
				if err := s.book(ctx, r, rec, r.resolver.Ensure); err != nil {
					return err
				}
			}
		}
	}
	r.log.Infof("  %d gaps found", r.report.Gaps)
	return nil
}

// occupied returns the space outside the filters of a filtered run. ok is
// false when the analysis must be skipped.
func (s *Session) occupied(ctx context.Context, r *run) ([]netipx.IPRange, bool, error) {
	f := r.report.Filters
	if f.Site == "" && f.Tenant == "" {
		return nil, true, nil
	}
	sv, ok := r.view.(SpaceView)
	if !ok {
		r.log.Warn("  SKIP: the source cannot list address space outside the filters")
		return nil, false, nil
	}
	occupied, err := sv.Occupied(ctx)
	if err != nil {
		if models.IsFatal(err) || ctx.Err() != nil {
			return nil, false, err
		}
		r.report.Fail(models.Prefix, "", errors.Wrap(err, "reading address space for analysis"))
		return nil, false, nil
	}
	return occupied, true, nil
}

// partialGaps drops a gap spanning the whole block: an empty block is
// already on the target under its own key.
func partialGaps(b ipam.AddressBlock) []ipam.GapRange {
	whole := netipx.RangeOfPrefix(b.Prefix.Masked())
	gaps := ipam.ComputeGaps(b)
	out := gaps[:0]
	for _, g := range gaps {
		if g.IPRange != whole {
			out = append(out, g)
		}
	}
	return out
}

// analysisKeys returns the natural keys of t the analysis works on: what the
// run resolved, or the source view when this run skipped the type (e.g. an
// extended-only run over a previous full migration).
func (s *Session) analysisKeys(ctx context.Context, r *run, t models.EntityType) ([]string, error) {
	if r.processed[t] {
		return r.resolver.Cache().Keys(t), nil
	}
	records, err := r.view.Query(ctx, t)
	if err != nil {
		if models.IsFatal(err) || ctx.Err() != nil {
			return nil, err
		}
		r.report.Fail(t, "", errors.Wrapf(err, "reading %s for analysis", t))
		return nil, nil
	}
	keys := make([]string, 0, len(records))
	for _, rec := range records {
		keys = append(keys, rec.NaturalKey())
	}
	return keys, nil
}

func parseKeys(prefixKeys, addrKeys []string, r *run) ([]netip.Prefix, []netip.Addr) {
	prefixes := make([]netip.Prefix, 0, len(prefixKeys))
	for _, k := range prefixKeys {
		p, err := netip.ParsePrefix(k)
		if err != nil {
			r.log.Warnf("  SKIP prefix %q: %v", k, err)
			continue
		}
		prefixes = append(prefixes, p)
	}
	addrs := make([]netip.Addr, 0, len(addrKeys))
	for _, k := range addrKeys {
		a, err := netip.ParseAddr(k)
		if err != nil {
			r.log.Warnf("  SKIP address %q: %v", k, err)
			continue
		}
		addrs = append(addrs, a)
	}
	return prefixes, addrs
}

// gapRecords renders one gap as records in the configured mode.
func gapRecords(b ipam.AddressBlock, g ipam.GapRange, mode, status string, tags []string) []models.Record {
	var out []models.Record
	if mode == ModePrefix || mode == ModeBoth {
		for _, p := range g.Prefixes() {
			out = append(out, &models.PrefixRecord{
				Prefix:      p.String(),
				Status:      status,
				Description: fmt.Sprintf("Available subnet in %s", b.Prefix),
				Tags:        tags,
			})
		}
	}
	if mode == ModeRange || mode == ModeBoth {
		out = append(out, &models.IPRangeRecord{
			Start:       g.From().String(),
			End:         g.To().String(),
			PrefixLen:   b.Prefix.Bits(),
			Status:      rangeStatus(status),
			Description: fmt.Sprintf("Available IP range in %s", b.Prefix),
			Tags:        tags,
		})
	}
	return out
}

// rangeStatus maps a prefix status onto the statuses IP ranges support.
func rangeStatus(status string) string {
	if status == "container" {
		return "reserved"
	}
	return status
}

func family(p netip.Prefix) string {
	if p.Addr().Is4() {
		return "ipv4"
	}
	return "ipv6"
}
