// Package migration drives one run: it walks the dependency stages, feeds
// every source record through the resolver and finishes with the
// address-space analysis.
package migration

import (
	"context"
	"time"

	"github.com/juju/collections/set"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/rflorenc/racktables-migrator/internal/config"
	"github.com/rflorenc/racktables-migrator/internal/models"
	"github.com/rflorenc/racktables-migrator/internal/resolve"
	"github.com/rflorenc/racktables-migrator/internal/schedule"
)

// View is the source restricted to the filters of one run.
type View interface {
	Query(ctx context.Context, t models.EntityType) ([]models.Record, error)
}

// Source opens a filtered view of the source inventory. Unknown filter
// values are reported as models.ErrUnknownFilter.
type Source interface {
	Scope(ctx context.Context, f models.Filters) (View, error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(ctx context.Context, f models.Filters) (View, error)

func (fn SourceFunc) Scope(ctx context.Context, f models.Filters) (View, error) {
	return fn(ctx, f)
}

// Target is the remote inventory.
type Target interface {
	resolve.Target
	Preflight(ctx context.Context) error
	Version() string
}

// Observer receives every resolution outcome and the end of each run.
type Observer interface {
	Outcome(t models.EntityType, a models.Action)
	Gaps(family string, n int)
	RunFinished(report *models.RunReport, err error)
}

// Options are the optional collaborators of a Session.
type Options struct {
	Log      logrus.FieldLogger
	Observer Observer
	// Edges overrides the default dependency edges.
	Edges []schedule.Edge
}

// Session runs migrations with a fixed configuration.
type Session struct {
	cfg        config.Config
	source     Source
	target     Target
	sched      *schedule.Scheduler
	exclusions map[models.EntityType]set.Strings
	log        logrus.FieldLogger
	observer   Observer
}

// NewSession validates the dependency graph and the exclusion list. A cycle
// in the graph is fatal.
func NewSession(cfg config.Config, src Source, tgt Target, opts Options) (*Session, error) {
	edges := opts.Edges
	if edges == nil {
		edges = schedule.DefaultEdges
	}
	sched, err := schedule.New(edges)
	if err != nil {
		return nil, err
	}
	excl, err := cfg.Exclusions()
	if err != nil {
		return nil, err
	}
	log := opts.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Session{
		cfg:        cfg,
		source:     src,
		target:     tgt,
		sched:      sched,
		exclusions: excl,
		log:        log,
		observer:   opts.Observer,
	}, nil
}

// Stages returns the processing order the session uses.
func (s *Session) Stages() [][]models.EntityType {
	return s.sched.OrderedStages()
}

// run is the state of one Run call.
type run struct {
	report    *models.RunReport
	resolver  *resolve.Resolver
	view      View
	processed map[models.EntityType]bool
	log       logrus.FieldLogger
}

// Run performs one migration. The returned report is never nil. The error is
// non-nil only when the run was aborted: a fatal class from models, a failed
// preflight or a cancelled context. Per-record problems are in the report.
func (s *Session) Run(ctx context.Context, f models.Filters) (report *models.RunReport, err error) {
	report = models.NewRunReport(f)
	report.Stages = s.sched.Names()
	log := s.log.WithField("run", report.ID)
	defer func() {
		report.Finish(err)
		if s.observer != nil {
			s.observer.RunFinished(report, err)
		}
	}()

	log.Info("Checking target...")
	if err := s.target.Preflight(ctx); err != nil {
		return report, errors.Wrap(err, "target preflight")
	}
	log.Infof("Target OK (version %s)", versionOrUnknown(s.target.Version()))

	view, err := s.source.Scope(ctx, f)
	if err != nil {
		return report, errors.Wrap(err, "scoping source")
	}

	r := &run{
		report: report,
		resolver: resolve.New(s.target, resolve.NewCache(), resolve.Options{
			UpdateExisting: s.cfg.UpdateExisting,
			DryRun:         f.DryRun,
			TargetVersion:  s.target.Version(),
		}, log),
		view:      view,
		processed: make(map[models.EntityType]bool),
		log:       log,
	}

	start := time.Now()
	for i, stage := range s.sched.OrderedStages() {
		for _, t := range stage {
			if !s.enabled(t, f.Subset) {
				continue
			}
			log.Infof("=== Stage %d: %s ===", i+1, t)
			if err := s.runType(ctx, r, t); err != nil {
				return report, err
			}
		}
	}

	if f.Subset.IncludesAnalysis() && s.cfg.Available.Enabled {
		log.Info("=== Address-space analysis ===")
		if err := s.analyze(ctx, r); err != nil {
			return report, err
		}
	}

	for _, fl := range report.SortedFailures() {
		log.WithFields(logrus.Fields{"type": fl.Type.String(), "key": fl.Key}).Errorf("FAIL: %s", fl.Error)
	}
	tot := report.Totals()
	log.Infof("Migration complete in %s: %d created, %d updated, %d existing, %d planned, %d skipped, %d failed, %d warnings",
		time.Since(start).Round(time.Millisecond), tot.Created, tot.Updated, tot.Found+tot.Cached, tot.Planned, tot.Skipped, tot.Failed, len(report.Warnings))
	return report, nil
}

// enabled reports whether records of t are processed under the config
// toggles and the requested subset.
func (s *Session) enabled(t models.EntityType, subset models.Subset) bool {
	return s.cfg.Migrate.Enabled(t) && subset.Includes(t)
}

func (s *Session) runType(ctx context.Context, r *run, t models.EntityType) error {
	r.processed[t] = true
	records, err := r.view.Query(ctx, t)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if models.IsFatal(err) {
			return err
		}
		r.log.WithField("type", t.String()).Errorf("FAIL: reading %s: %v", t, err)
		r.report.Fail(t, "", errors.Wrapf(err, "reading %s", t))
		return nil
	}
	r.log.Infof("  %d %s records", len(records), t)

	excluded := s.exclusions[t]
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			r.log.Warn("Migration cancelled")
			return err
		}
		if excluded.Contains(rec.NaturalKey()) {
			r.log.Infof("  EXCLUDED: %s (user exclusion)", rec.NaturalKey())
			s.count(r, t, models.ActionSkipped)
			continue
		}
		if err := s.resolveOne(ctx, r, rec); err != nil {
			return err
		}
	}
	return nil
}

// resolveOne resolves a record and books the outcome. Only fatal errors are
// returned.
func (s *Session) resolveOne(ctx context.Context, r *run, rec models.Record) error {
	return s.book(ctx, r, rec, r.resolver.ResolveOrCreate)
}

func (s *Session) book(ctx context.Context, r *run, rec models.Record,
	resolveFn func(context.Context, models.Record) (resolve.Outcome, error)) error {
	t, key := rec.Type(), rec.NaturalKey()
	out, err := resolveFn(ctx, rec)
	for _, w := range out.Warnings {
		r.report.Warn(t, key, w)
	}
	if err != nil {
		if models.IsFatal(err) {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		r.log.WithFields(logrus.Fields{"type": t.String(), "key": key}).Errorf("  FAIL: %s: %v", key, err)
		r.report.Fail(t, key, err)
		if s.observer != nil {
			s.observer.Outcome(t, models.ActionFailed)
		}
		return nil
	}
	s.count(r, t, out.Action)
	return nil
}

func (s *Session) count(r *run, t models.EntityType, a models.Action) {
	r.report.Record(t, a)
	if s.observer != nil {
		s.observer.Outcome(t, a)
	}
}

func versionOrUnknown(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}

// Plan runs the migration without writing anything.
func (s *Session) Plan(ctx context.Context, f models.Filters) (*models.RunReport, error) {
	f.DryRun = true
	return s.Run(ctx, f)
}
