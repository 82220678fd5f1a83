/*
	stacktile-scale derives the scale pyramid of an existing scale level
	0 tile set.  Sections are processed independently, so pyramid
	generation can be partitioned by z-range once the level 0 export of
	those sections is complete.
*/
package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"

	"github.com/janelia-flyem/stacktile/jobs"
	"github.com/janelia-flyem/stacktile/stacktile"
)

func main() {
	app := cli.NewApp()
	app.Name = "stacktile-scale"
	app.Usage = "build the scale pyramid of a level 0 tile set"

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "TOML file with pyramid build parameters",
		},
		&cli.StringFlag{
			Name:  "base-path",
			Usage: "base path or URL of the tile set",
		},
		&cli.StringFlag{
			Name:  "tile-pattern",
			Usage: "tile naming pattern, e.g. \"{z}/{row}_{col}_{s}.jpg\"",
		},
		&cli.Int64Flag{
			Name:  "min-z",
			Usage: "first section to scale",
		},
		&cli.Int64Flag{
			Name:  "max-z",
			Usage: "last section to scale; negative scans until a section is missing",
		},
		&cli.Int64Flag{
			Name:  "width",
			Usage: "bounded level 0 width in pixels; non-positive probes tile existence",
		},
		&cli.Int64Flag{
			Name:  "height",
			Usage: "bounded level 0 height in pixels; non-positive probes tile existence",
		},
		&cli.StringFlag{
			Name:  "format",
			Usage: "tile format: jpg, png, tiff, or bmp",
		},
		&cli.BoolFlag{
			Name:  "ignore-empty-tiles",
			Usage: "do not write tiles that are uniformly background",
		},
		&cli.StringFlag{
			Name:  "logfile",
			Usage: "log to a rotating file instead of stdout",
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
			Usage:   "enable debug logging",
		},
	}

	app.Action = runScale

	if err := app.Run(os.Args); err != nil {
		stacktile.Criticalf("%v\n", err)
		stacktile.Shutdown()
		os.Exit(1)
	}
	stacktile.Shutdown()
}

func runScale(c *cli.Context) error {
	if c.Bool("verbose") {
		stacktile.SetLogMode(stacktile.DebugMode)
	} else {
		stacktile.SetLogMode(stacktile.InfoMode)
	}
	logConfig := stacktile.LogConfig{Logfile: c.String("logfile")}
	logConfig.SetLogger()

	p := jobs.DefaultScaleParams()
	if path := c.String("config"); path != "" {
		var err error
		if p, err = jobs.LoadScaleParams(path); err != nil {
			return err
		}
	}
	if c.IsSet("base-path") {
		p.BasePath = c.String("base-path")
	}
	if c.IsSet("tile-pattern") {
		p.TilePattern = c.String("tile-pattern")
	}
	if c.IsSet("min-z") {
		p.MinZ = c.Int64("min-z")
	}
	if c.IsSet("max-z") {
		p.MaxZ = c.Int64("max-z")
	}
	if c.IsSet("width") {
		p.Width = c.Int64("width")
	}
	if c.IsSet("height") {
		p.Height = c.Int64("height")
	}
	if c.IsSet("format") {
		p.Format = c.String("format")
	}
	if c.IsSet("ignore-empty-tiles") {
		p.IgnoreEmpty = c.Bool("ignore-empty-tiles")
	}

	builder, err := p.Builder()
	if err != nil {
		return err
	}

	timelog := stacktile.NewTimeLog()
	stats, err := builder.Build()
	if err != nil {
		return fmt.Errorf("pyramid build failed after %s written tiles: %v",
			humanize.Comma(stats.Written), err)
	}
	timelog.Infof("Pyramid complete: %s sections, %s tiles written, %s skipped",
		humanize.Comma(stats.Sections), humanize.Comma(stats.Written),
		humanize.Comma(stats.Skipped))
	return nil
}
