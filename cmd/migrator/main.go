package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	app := cli.NewApp()
	app.Name = "migrator"
	app.Usage = "copy a RackTables inventory into NetBox"
	app.Version = fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date)
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "config, c",
			Usage: "YAML configuration file (default: migrator.yaml when present)",
		},
		cli.StringFlag{
			Name:  "log-level",
			Usage: "override log.level (debug, info, warn, error)",
		},
	}
	app.Commands = []cli.Command{
		{
			Name:  "migrate",
			Usage: "run a migration",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "site", Usage: "only migrate objects at this site"},
				cli.StringFlag{Name: "tenant", Usage: "only migrate objects tagged with this tenant"},
				cli.BoolFlag{Name: "basic-only", Usage: "skip cables, services, ranges and the address-space analysis"},
				cli.BoolFlag{Name: "extended-only", Usage: "only cables, services, ranges and the address-space analysis"},
				cli.BoolFlag{Name: "skip-bootstrap", Usage: "do not create custom fields"},
				cli.BoolFlag{Name: "dry-run", Usage: "look up everything, write nothing"},
				cli.StringFlag{Name: "report", Usage: "write the run report as YAML to `FILE`"},
			},
			Action: migrateAction,
		},
		{
			Name:   "check",
			Usage:  "check source and target connectivity",
			Action: checkAction,
		},
		{
			Name:   "prune-available",
			Usage:  "delete prefixes and ranges created by the address-space analysis",
			Action: pruneAction,
		},
		{
			Name:  "serve",
			Usage: "serve the HTTP API",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "listen", Usage: "listen address (overrides listen)"},
			},
			Action: serveAction,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "ERROR:", err)
		os.Exit(1)
	}
}
