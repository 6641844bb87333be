package netbox

import (
	"context"
	"fmt"
	"net/url"

	"github.com/gosimple/slug"
	"github.com/sirupsen/logrus"

	"github.com/rflorenc/racktables-migrator/internal/models"
)

// AutoGeneratedTag marks objects synthesized by the address-space analysis.
const AutoGeneratedTag = "Auto-Generated"

// PruneAvailable deletes every IP range and prefix carrying the
// Auto-Generated tag, so the next run recomputes them from scratch.
func (c *Client) PruneAvailable(ctx context.Context, log logrus.FieldLogger) (deleted, failed int, err error) {
	// ranges first: they may sit inside synthesized prefixes
	for _, t := range []models.EntityType{models.IPRange, models.Prefix} {
		path, _ := Endpoint(t)
		log.Infof("--- Pruning %s ---", t)

		objects, err := c.GetAll(ctx, path, url.Values{"tag": {slug.Make(AutoGeneratedTag)}})
		if err != nil {
			return deleted, failed, fmt.Errorf("listing %s: %w", t, err)
		}
		for _, obj := range objects {
			if ctx.Err() != nil {
				return deleted, failed, ctx.Err()
			}
			id, name := resourceID(obj), resourceName(obj)
			if !hasSlug(tagSlugs(obj), slug.Make(AutoGeneratedTag)) {
				// the tag filter is ignored by some proxies; never delete untagged objects
				log.Warnf("  SKIP %s (id=%d): not tagged %s", name, id, AutoGeneratedTag)
				continue
			}
			if err := c.Delete(ctx, fmt.Sprintf("%s%d/", path, id)); err != nil {
				log.Errorf("  FAIL %s (id=%d): %v", name, id, err)
				failed++
				continue
			}
			log.Infof("  DELETED %s (id=%d)", name, id)
			deleted++
		}
	}
	log.Infof("Prune complete: %d deleted, %d failed", deleted, failed)
	return deleted, failed, nil
}

func hasSlug(slugs []string, want string) bool {
	for _, s := range slugs {
		if s == want {
			return true
		}
	}
	return false
}
