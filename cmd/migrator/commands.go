package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"
	"gopkg.in/yaml.v3"

	"github.com/rflorenc/racktables-migrator/internal/api"
	"github.com/rflorenc/racktables-migrator/internal/config"
	"github.com/rflorenc/racktables-migrator/internal/logging"
	"github.com/rflorenc/racktables-migrator/internal/metrics"
	"github.com/rflorenc/racktables-migrator/internal/migration"
	"github.com/rflorenc/racktables-migrator/internal/models"
	"github.com/rflorenc/racktables-migrator/internal/netbox"
	"github.com/rflorenc/racktables-migrator/internal/source"
)

// env is what every command needs after startup.
type env struct {
	cfg      config.Config
	log      *logrus.Logger
	closeLog func() error
}

func setup(c *cli.Context) (*env, error) {
	cfg, err := config.Load(c.GlobalString("config"))
	if err != nil {
		return nil, cli.NewExitError(err.Error(), 2)
	}
	if lvl := c.GlobalString("log-level"); lvl != "" {
		cfg.Log.Level = lvl
	}
	if err := cfg.Validate(); err != nil {
		return nil, cli.NewExitError(err.Error(), 2)
	}
	log, closeLog, err := logging.New(cfg.Log, os.Stdout)
	if err != nil {
		return nil, cli.NewExitError(err.Error(), 2)
	}
	return &env{cfg: cfg, log: log, closeLog: closeLog}, nil
}

// signalContext is cancelled on SIGINT or SIGTERM. The session stops after
// the record in flight.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// endpoints opens both sides of the migration.
func endpoints(e *env) (*source.Reader, *netbox.Client, error) {
	reader, err := source.Open(e.cfg.Source, e.log.WithField("component", "source"))
	if err != nil {
		return nil, nil, err
	}
	client, err := netbox.NewClient(e.cfg.Target)
	if err != nil {
		closeReader(e, reader)
		return nil, nil, err
	}
	return reader, client, nil
}

func closeReader(e *env, reader *source.Reader) {
	if err := reader.Close(); err != nil {
		e.log.Warnf("Closing source: %v", err)
	}
}

func sourceOf(reader *source.Reader) migration.Source {
	return migration.SourceFunc(func(ctx context.Context, f models.Filters) (migration.View, error) {
		v, err := reader.Scope(ctx, f)
		if err != nil {
			return nil, err
		}
		return v, nil
	})
}

func migrateAction(c *cli.Context) error {
	if c.Bool("basic-only") && c.Bool("extended-only") {
		return cli.NewExitError("--basic-only and --extended-only are mutually exclusive", 2)
	}
	e, err := setup(c)
	if err != nil {
		return err
	}
	defer e.closeLog()

	cfg := e.cfg
	if c.Bool("skip-bootstrap") {
		cfg = cfg.WithoutBootstrap()
	}
	f := models.Filters{
		Site:   c.String("site"),
		Tenant: c.String("tenant"),
		Subset: models.SubsetAll,
		DryRun: c.Bool("dry-run"),
	}
	switch {
	case c.Bool("basic-only"):
		f.Subset = models.SubsetBasic
	case c.Bool("extended-only"):
		f.Subset = models.SubsetExtended
	}

	reader, client, err := endpoints(e)
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	defer closeReader(e, reader)

	sess, err := migration.NewSession(cfg, sourceOf(reader), client, migration.Options{Log: e.log})
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}

	ctx, stop := signalContext()
	defer stop()
	report, runErr := sess.Run(ctx, f)

	if path := c.String("report"); path != "" {
		if err := writeReport(path, report); err != nil {
			e.log.Errorf("Writing report: %v", err)
		} else {
			e.log.Infof("Report written to %s", path)
		}
	}
	summarize(e.log, report)
	if runErr != nil {
		return cli.NewExitError(runErr.Error(), 1)
	}
	return nil
}

func writeReport(path string, report *models.RunReport) error {
	data, err := yaml.Marshal(report)
	if err != nil {
		return errors.Wrap(err, "encoding report")
	}
	return errors.Wrap(os.WriteFile(path, data, 0o644), "writing report")
}

func summarize(log logrus.FieldLogger, report *models.RunReport) {
	t := report.Totals()
	log.Infof("Totals: %d created, %d updated, %d found, %d cached, %d planned, %d skipped, %d failed, %d gaps",
		t.Created, t.Updated, t.Found, t.Cached, t.Planned, t.Skipped, t.Failed, report.Gaps)
	if report.Fatal != "" {
		log.Errorf("Run aborted: %s", report.Fatal)
	}
}

func checkAction(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return err
	}
	defer e.closeLog()

	reader, client, err := endpoints(e)
	if err != nil {
		fmt.Printf("  PING FAILED: source: %v\n", err)
		return cli.NewExitError("check failed", 1)
	}
	defer closeReader(e, reader)

	ctx, stop := signalContext()
	defer stop()

	failed := false
	if err := reader.Ping(ctx); err != nil {
		failed = true
		fmt.Printf("  PING FAILED: source (%s): %v\n", e.cfg.Source.Driver, err)
	} else {
		fmt.Printf("  PING OK: source (%s): reachable\n", e.cfg.Source.Driver)
	}
	if err := client.Preflight(ctx); err != nil {
		failed = true
		fmt.Printf("  PING FAILED: target %s: %v\n", e.cfg.Target.URL, err)
	} else {
		fmt.Printf("  PING OK: target %s: NetBox %s\n", e.cfg.Target.URL, client.Version())
	}
	if failed {
		return cli.NewExitError("check failed", 1)
	}
	return nil
}

func pruneAction(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return err
	}
	defer e.closeLog()

	client, err := netbox.NewClient(e.cfg.Target)
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	ctx, stop := signalContext()
	defer stop()
	if _, failed, err := client.PruneAvailable(ctx, e.log); err != nil {
		return cli.NewExitError(err.Error(), 1)
	} else if failed > 0 {
		return cli.NewExitError(fmt.Sprintf("%d deletions failed", failed), 1)
	}
	return nil
}

func serveAction(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return err
	}
	defer e.closeLog()

	listen := e.cfg.Listen
	if l := c.String("listen"); l != "" {
		listen = l
	}

	reader, client, err := endpoints(e)
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	defer closeReader(e, reader)

	collector := metrics.NewCollector()
	server := &api.Server{
		Jobs: models.NewJobStore(),
		NewRunner: func(log logrus.FieldLogger) (api.Runner, error) {
			return migration.NewSession(e.cfg, sourceOf(reader), client, migration.Options{
				Log:      log,
				Observer: collector,
			})
		},
		Metrics: metrics.NewRegistry(collector),
		Log:     e.log,
	}
	srv := &http.Server{Addr: listen, Handler: api.NewRouter(server)}

	ctx, stop := signalContext()
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		for _, job := range server.Jobs.List() {
			job.Cancel()
		}
		if err := srv.Shutdown(shutdownCtx); err != nil {
			e.log.Errorf("HTTP server shutdown: %v", err)
		}
	}()

	e.log.Infof("RackTables migrator %s starting on %s", version, listen)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return cli.NewExitError(err.Error(), 1)
	}
	return nil
}
