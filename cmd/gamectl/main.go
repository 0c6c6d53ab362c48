// Package main is gamectl, the operator CLI for the gamification engine.
//
// Every command builds the same App the worker runs and executes one
// operation against it, printing the result as JSON on stdout. Logs go to
// stderr.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "gamectl: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "gamectl"
	app.Usage = "Inspect and operate the gamification engine"
	app.Action = cli.ShowAppHelp
	app.Flags = []cli.Flag{
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
			Usage:   "log at debug level",
		},
	}
	app.Commands = []*cli.Command{
		{
			Name:      "record",
			Usage:     "Record a learning activity for a user",
			ArgsUsage: " ",
			Category:  "Activity",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "user", Aliases: []string{"u"}, Required: true},
				&cli.StringFlag{Name: "type", Aliases: []string{"t"}, Required: true, Usage: "quiz_completed, flashcard_review, evaluation_submitted or guide_completed"},
				&cli.StringFlag{Name: "payload", Aliases: []string{"p"}, Value: "{}", Usage: "activity payload as a JSON object"},
				&cli.TimestampFlag{Name: "at", Layout: "2006-01-02T15:04:05Z07:00", Usage: "when the activity happened (default: now)"},
			},
			Action: recordActivity,
		},
		{
			Name:     "stats",
			Usage:    "Show a user's XP, level and streak",
			Category: "Activity",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "user", Aliases: []string{"u"}, Required: true},
			},
			Action: showStats,
		},
		{
			Name:     "badges",
			Usage:    "Badge catalog and user badges",
			Category: "Badges",
			Subcommands: []*cli.Command{
				{
					Name:  "list",
					Usage: "List the catalog with a user's earned badges",
					Flags: []cli.Flag{
						&cli.StringFlag{Name: "user", Aliases: []string{"u"}, Required: true},
						&cli.BoolFlag{Name: "all", Usage: "include inactive definitions"},
					},
					Action: listBadges,
				},
				{
					Name:  "seed",
					Usage: "Upsert badge definitions from a YAML catalog",
					Flags: []cli.Flag{
						&cli.PathFlag{Name: "file", Aliases: []string{"f"}, Value: "config/badges.yaml"},
					},
					Action: seedBadges,
				},
			},
		},
		{
			Name:     "maintenance",
			Usage:    "Streak maintenance",
			Category: "Worker",
			Subcommands: []*cli.Command{
				{
					Name:        "run",
					Usage:       "Run streak maintenance once, now",
					Description: `Applies freezes and breaks streaks for every user who missed yesterday. Safe to rerun.`,
					Action:      runMaintenance,
				},
			},
		},
		{
			Name:     "migrate",
			Usage:    "Apply pending database migrations",
			Category: "Database",
			Action:   migrate,
			Subcommands: []*cli.Command{
				{
					Name:   "status",
					Usage:  "Show which migrations are applied",
					Action: migrationStatus,
				},
			},
		},
		{
			Name:     "flags",
			Usage:    "Show feature flags after environment overrides",
			Category: "Config",
			Action:   listFlags,
		},
	}
	return app
}
