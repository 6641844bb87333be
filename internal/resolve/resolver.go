package resolve

import (
	"context"
	"fmt"

	"github.com/juju/collections/set"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/rflorenc/racktables-migrator/internal/models"
)

// Target is the remote inventory the resolver writes to.
type Target interface {
	Find(ctx context.Context, t models.EntityType, key string) (*models.TargetEntity, error)
	Create(ctx context.Context, t models.EntityType, key string, payload map[string]interface{}) (*models.TargetEntity, error)
	Update(ctx context.Context, t models.EntityType, id int, payload map[string]interface{}) (*models.TargetEntity, error)
}

// conflict is implemented by target errors that signal a uniqueness
// violation on create.
type conflict interface {
	Conflict() bool
}

// Options tune how records are written.
type Options struct {
	// UpdateExisting patches objects that already exist instead of leaving
	// them untouched.
	UpdateExisting bool
	// DryRun plans creates without performing them.
	DryRun bool
	// TargetVersion is the server version; it selects payload field names.
	TargetVersion string
}

// Outcome is the result of resolving one record.
type Outcome struct {
	ID       int
	Action   models.Action
	Warnings []string
}

// Resolver performs find-or-create for records against a Target.
type Resolver struct {
	target  Target
	cache   *Cache
	opts    Options
	log     logrus.FieldLogger
	missing map[models.EntityType]set.Strings
	// nextPlaceholder hands out negative ids for planned objects.
	nextPlaceholder int
}

// New creates a Resolver writing to target and remembering ids in cache.
func New(target Target, cache *Cache, opts Options, log logrus.FieldLogger) *Resolver {
	return &Resolver{
		target:  target,
		cache:   cache,
		opts:    opts,
		log:     log,
		missing: make(map[models.EntityType]set.Strings),
	}
}

// Cache returns the resolution cache of the run.
func (r *Resolver) Cache() *Cache { return r.cache }

// ResolveOrCreate makes sure the object a record describes exists on the
// target and returns its remote id. Errors are per-record unless they wrap
// one of the fatal classes in models.
func (r *Resolver) ResolveOrCreate(ctx context.Context, rec models.Record) (Outcome, error) {
	return r.resolve(ctx, rec, r.opts.UpdateExisting)
}

// Ensure is ResolveOrCreate that never patches an existing object, whatever
// UpdateExisting says. Synthesized records use it: an existing object with
// their key was not made by them.
func (r *Resolver) Ensure(ctx context.Context, rec models.Record) (Outcome, error) {
	return r.resolve(ctx, rec, false)
}

func (r *Resolver) resolve(ctx context.Context, rec models.Record, update bool) (Outcome, error) {
	if err := models.Validate(rec); err != nil {
		return Outcome{Action: models.ActionFailed}, err
	}
	t, key := rec.Type(), rec.NaturalKey()
	log := r.log.WithFields(logrus.Fields{"type": t.String(), "key": key})

	if id, ok := r.cache.Get(t, key); ok {
		return Outcome{ID: id, Action: models.ActionCached}, nil
	}

	bound, warnings, err := r.bindRefs(ctx, rec)
	if err != nil {
		return Outcome{Action: models.ActionFailed, Warnings: warnings}, err
	}
	for _, w := range warnings {
		log.Warn(w)
	}

	existing, err := r.target.Find(ctx, t, key)
	if err != nil {
		return Outcome{Action: models.ActionFailed, Warnings: warnings}, errors.Wrapf(err, "looking up %s %s", t, key)
	}
	if existing != nil {
		r.cache.Put(t, key, existing.RemoteID)
		if !update || r.opts.DryRun {
			log.Debugf("SKIP (exists): %s (ID %d)", key, existing.RemoteID)
			return Outcome{ID: existing.RemoteID, Action: models.ActionFound, Warnings: warnings}, nil
		}
		payload, err := translate(rec, bound, r.opts)
		if err != nil {
			return Outcome{Action: models.ActionFailed, Warnings: warnings}, err
		}
		if _, err := r.target.Update(ctx, t, existing.RemoteID, payload); err != nil {
			return Outcome{Action: models.ActionFailed, Warnings: warnings}, errors.Wrapf(err, "updating %s %s", t, key)
		}
		log.Infof("UPDATED: %s (ID %d)", key, existing.RemoteID)
		return Outcome{ID: existing.RemoteID, Action: models.ActionUpdated, Warnings: warnings}, nil
	}

	payload, err := translate(rec, bound, r.opts)
	if err != nil {
		return Outcome{Action: models.ActionFailed, Warnings: warnings}, err
	}

	if r.opts.DryRun {
		r.nextPlaceholder--
		r.cache.Put(t, key, r.nextPlaceholder)
		log.Infof("PLAN: create %s", key)
		return Outcome{ID: r.nextPlaceholder, Action: models.ActionPlanned, Warnings: warnings}, nil
	}

	created, err := r.target.Create(ctx, t, key, payload)
	if err != nil {
		var c conflict
		if !errors.As(err, &c) || !c.Conflict() {
			return Outcome{Action: models.ActionFailed, Warnings: warnings}, errors.Wrapf(err, "creating %s %s", t, key)
		}
		// someone else created it between our lookup and the write
		again, ferr := r.target.Find(ctx, t, key)
		if ferr != nil {
			return Outcome{Action: models.ActionFailed, Warnings: warnings}, errors.Wrapf(ferr, "looking up %s %s after conflict", t, key)
		}
		if again == nil {
			return Outcome{Action: models.ActionFailed, Warnings: warnings}, errors.Errorf("conflict unresolved: %v", err)
		}
		r.cache.Put(t, key, again.RemoteID)
		log.Infof("SKIP (exists): %s (ID %d) after conflict", key, again.RemoteID)
		return Outcome{ID: again.RemoteID, Action: models.ActionFound, Warnings: warnings}, nil
	}

	r.cache.Put(t, key, created.RemoteID)
	log.Infof("CREATED: %s (ID %d)", key, created.RemoteID)
	return Outcome{ID: created.RemoteID, Action: models.ActionCreated, Warnings: warnings}, nil
}

// bindRefs resolves every reference of rec to a remote id. Unresolvable
// optional references are dropped with a warning; an unresolvable required
// reference fails the record.
func (r *Resolver) bindRefs(ctx context.Context, rec models.Record) (*boundRefs, []string, error) {
	bound := newBoundRefs()
	var warnings []string
	for _, ref := range rec.Refs() {
		id, ok, err := r.lookup(ctx, ref.Type, ref.Key)
		if err != nil {
			return nil, warnings, err
		}
		if ok {
			bound.set(ref, id)
			continue
		}
		if ref.Required {
			return nil, warnings, errors.Errorf("required %s %s %q not resolved", ref.Field, ref.Type, ref.Key)
		}
		warnings = append(warnings, fmt.Sprintf("created without %s: %s %q not resolved", ref.Field, ref.Type, ref.Key))
	}
	return bound, warnings, nil
}

// lookup resolves a referenced key through the cache, then the target. Keys
// the target does not know are remembered so they are asked for only once.
func (r *Resolver) lookup(ctx context.Context, t models.EntityType, key string) (int, bool, error) {
	if id, ok := r.cache.Get(t, key); ok {
		return id, true, nil
	}
	if r.missing[t].Contains(key) {
		return 0, false, nil
	}
	found, err := r.target.Find(ctx, t, key)
	if err != nil {
		return 0, false, errors.Wrapf(err, "looking up %s %s", t, key)
	}
	if found == nil {
		if r.missing[t] == nil {
			r.missing[t] = set.NewStrings()
		}
		r.missing[t].Add(key)
		return 0, false, nil
	}
	r.cache.Put(t, key, found.RemoteID)
	return found.RemoteID, true, nil
}
