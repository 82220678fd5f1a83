/*
	stacktile-export writes the scale level 0 tile set of a stack,
	optionally cropped, resliced, and restricted to a tile subset so the
	export can be partitioned across workers by z-range.
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
	app.Name = "stacktile-export"
	app.Usage = "export the scale level 0 tile set of a stack"

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "TOML file with export job parameters",
		},
		&cli.StringFlag{
			Name:  "source-base-url",
			Usage: "base URL or path of the source tile stack",
		},
		&cli.StringFlag{
			Name:  "export-base-path",
			Usage: "base path or URL for the exported tiles",
		},
		&cli.Int64Flag{
			Name:  "source-width",
			Usage: "source stack width in scale level 0 pixels",
		},
		&cli.Int64Flag{
			Name:  "source-height",
			Usage: "source stack height in scale level 0 pixels",
		},
		&cli.Int64Flag{
			Name:  "source-depth",
			Usage: "source stack depth in sections",
		},
		&cli.StringFlag{
			Name:  "orientation",
			Usage: "export orientation: xy, xz, or zy",
		},
		&cli.StringFlag{
			Name:  "interpolation",
			Usage: "resampling: nn or nl",
		},
		&cli.StringFlag{
			Name:  "format",
			Usage: "tile format: jpg, png, tiff, or bmp",
		},
		&cli.Int64Flag{
			Name:  "export-min-z",
			Usage: "first section to export, for partitioned runs",
		},
		&cli.Int64Flag{
			Name:  "export-max-z",
			Usage: "last section to export, for partitioned runs",
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

	app.Action = runExport

	if err := app.Run(os.Args); err != nil {
		stacktile.Criticalf("%v\n", err)
		stacktile.Shutdown()
		os.Exit(1)
	}
	stacktile.Shutdown()
}

func runExport(c *cli.Context) error {
	if c.Bool("verbose") {
		stacktile.SetLogMode(stacktile.DebugMode)
	} else {
		stacktile.SetLogMode(stacktile.InfoMode)
	}
	logConfig := stacktile.LogConfig{Logfile: c.String("logfile")}
	logConfig.SetLogger()

	p := jobs.DefaultExportParams()
	if path := c.String("config"); path != "" {
		var err error
		if p, err = jobs.LoadExportParams(path); err != nil {
			return err
		}
	}
	if c.IsSet("source-base-url") {
		p.SourceBaseURL = c.String("source-base-url")
	}
	if c.IsSet("export-base-path") {
		p.ExportBasePath = c.String("export-base-path")
	}
	if c.IsSet("source-width") {
		p.SourceWidth = c.Int64("source-width")
	}
	if c.IsSet("source-height") {
		p.SourceHeight = c.Int64("source-height")
	}
	if c.IsSet("source-depth") {
		p.SourceDepth = c.Int64("source-depth")
	}
	if c.IsSet("orientation") {
		p.Orientation = c.String("orientation")
	}
	if c.IsSet("interpolation") {
		p.Interpolation = c.String("interpolation")
	}
	if c.IsSet("format") {
		p.Format = c.String("format")
	}
	if c.IsSet("export-min-z") {
		p.ExportMinZ = c.Int64("export-min-z")
	}
	if c.IsSet("export-max-z") {
		p.ExportMaxZ = c.Int64("export-max-z")
	}
	if c.IsSet("ignore-empty-tiles") {
		p.IgnoreEmpty = c.Bool("ignore-empty-tiles")
	}

	job, err := p.Job()
	if err != nil {
		return err
	}
	r := job.Range
	stacktile.Infof("Exporting sections %d-%d, rows %d-%d, cols %d-%d\n",
		r.MinZ, r.MaxZ, r.MinRow, r.MaxRow, r.MinCol, r.MaxCol)

	timelog := stacktile.NewTimeLog()
	stats, err := job.Exporter.Export(r)
	if err != nil {
		return fmt.Errorf("export failed after %s written tiles: %v",
			humanize.Comma(stats.Written), err)
	}
	timelog.Infof("Export complete: %s tiles written, %s skipped",
		humanize.Comma(stats.Written), humanize.Comma(stats.Skipped))
	return nil
}
