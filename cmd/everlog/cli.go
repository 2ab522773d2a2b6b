package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/pronoun-studio/everlog/internal/config"
	"github.com/pronoun-studio/everlog/internal/engine"
	"github.com/pronoun-studio/everlog/internal/logging"
	"github.com/pronoun-studio/everlog/internal/source"
	"github.com/pronoun-studio/everlog/internal/timeutil"
	evlog "github.com/pronoun-studio/everlog/pkg/everlog"
)

// newApp creates the CLI application with all commands.
func newApp() *cli.App {
	return &cli.App{
		Name:    "everlog",
		Usage:   "Distill screen-capture OCR logs into daily work logs",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "home", Usage: "everlog home directory (default: EVERLOG_HOME or ~/everlog)"},
			&cli.StringFlag{Name: "log-level", Value: "info", Usage: "Log level: debug|info|warn|error"},
		},
		Commands: []*cli.Command{
			summarizeCmd(),
			segmentsCmd(),
			hoursCmd(),
			configCmd(),
		},
	}
}

// summarizeCmd runs the full pipeline and writes the markdown report.
func summarizeCmd() *cli.Command {
	return &cli.Command{
		Name:      "summarize",
		Usage:     "Generate the markdown work log for a date",
		ArgsUsage: "[date]",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "trace", Usage: "Dump per-stage JSONL under trace/<date>/<run>/"},
			&cli.BoolFlag{Name: "llm", Usage: "Force LLM labeling on"},
			&cli.BoolFlag{Name: "no-llm", Usage: "Force LLM labeling off"},
			&cli.StringFlag{Name: "model", Usage: "Override the LLM model"},
			&cli.BoolFlag{Name: "quiet", Aliases: []string{"q"}, Usage: "Suppress progress output"},
		},
		Action: func(c *cli.Context) error {
			logging.Init(false, logging.ParseLevel(c.String("log-level")))

			opts := []evlog.Option{}
			if home := c.String("home"); home != "" {
				opts = append(opts, evlog.WithHome(home))
			}
			if c.Bool("trace") {
				opts = append(opts, evlog.WithTrace(true))
			}
			if c.Bool("llm") {
				opts = append(opts, evlog.WithLLM(true))
			}
			if c.Bool("no-llm") {
				opts = append(opts, evlog.WithLLM(false))
			}
			if model := c.String("model"); model != "" {
				opts = append(opts, evlog.WithModel(model))
			}
			if !c.Bool("quiet") {
				opts = append(opts, evlog.WithProgress(func(percent int, stage string) {
					fmt.Fprintf(os.Stderr, "[%3d%%] %s\n", percent, stage)
				}))
			}

			ev, err := evlog.Open(opts...)
			if err != nil {
				return err
			}
			run, err := ev.SummarizeDay(c.Context, c.Args().First())
			if err != nil {
				return err
			}
			fmt.Printf("%s\n", run.Path)
			return nil
		},
	}
}

// segmentsCmd prints the compacted segments for a date as JSONL.
func segmentsCmd() *cli.Command {
	return &cli.Command{
		Name:      "segments",
		Usage:     "Print compacted segments for a date as JSONL",
		ArgsUsage: "[date]",
		Action: func(c *cli.Context) error {
			res, err := runStage(c, engine.StageCompacted)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			for _, seg := range res.Compacted {
				if err := enc.Encode(seg); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

// hoursCmd prints the hour packs for a date as JSONL.
func hoursCmd() *cli.Command {
	return &cli.Command{
		Name:      "hours",
		Usage:     "Print hour packs for a date as JSONL",
		ArgsUsage: "[date]",
		Action: func(c *cli.Context) error {
			res, err := runStage(c, engine.StageHourPacks)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			for _, p := range res.HourPacks {
				if err := enc.Encode(p); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

// configCmd inspects and edits config.json.
func configCmd() *cli.Command {
	show := func(c *cli.Context) error {
		logging.Init(true, logging.ParseLevel(c.String("log-level")))
		home, err := resolveHome(c)
		if err != nil {
			return err
		}
		cfg, err := config.Load(home)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(cfg)
	}
	return &cli.Command{
		Name:   "config",
		Usage:  "Inspect or edit the configuration",
		Action: show,
		Subcommands: []*cli.Command{
			{
				Name:   "show",
				Usage:  "Print the effective configuration as JSON",
				Action: show,
			},
			{
				Name:      "set",
				Usage:     "Set one configuration key and save config.json",
				ArgsUsage: "<key> <value>",
				Action: func(c *cli.Context) error {
					logging.Init(true, logging.ParseLevel(c.String("log-level")))
					if c.NArg() != 2 {
						return cli.Exit("usage: everlog config set <key> <value>", 1)
					}
					home, err := resolveHome(c)
					if err != nil {
						return err
					}
					cfg, err := config.LoadFile(home)
					if err != nil {
						return err
					}
					if err := config.Set(&cfg, c.Args().Get(0), c.Args().Get(1)); err != nil {
						return err
					}
					return config.Save(home, cfg)
				},
			},
		},
	}
}

// runStage reads a day log and runs the pipeline up to the given
// stage. Used by the machine-output inspection commands, so logs go
// to stderr as JSON.
func runStage(c *cli.Context, stage engine.Stage) (*engine.Result, error) {
	logging.Init(true, logging.ParseLevel(c.String("log-level")))

	home, err := resolveHome(c)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(home)
	if err != nil {
		return nil, err
	}
	paths := config.NewPaths(home)
	date := timeutil.NormalizeDateArg(c.Args().First())

	events, err := source.ReadDay(paths.DayLog(date))
	if err != nil {
		return nil, err
	}

	interval := cfg.IntervalSec
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].IntervalSec > 0 {
			interval = events[i].IntervalSec
			break
		}
	}
	eng := engine.New(engine.Config{
		IntervalSec:     interval,
		GapThresholdSec: cfg.GapThreshold(),
	})
	return eng.Run(events, stage)
}

func resolveHome(c *cli.Context) (string, error) {
	if home := c.String("home"); home != "" {
		return home, nil
	}
	return config.DefaultHome()
}
