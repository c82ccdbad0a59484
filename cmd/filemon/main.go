// Package main is the entry point for the filemon application.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alexflint/go-arg"

	"github.com/joe/filemon/internal/config"
	"github.com/joe/filemon/internal/monitoring"
	"github.com/joe/filemon/pkg/tree"
)

// ScanCmd runs a single on-demand scan of a location.
type ScanCmd struct {
	Location string        `arg:"positional,required" help:"Location to scan"`
	Wait     bool          `arg:"-w,--wait" help:"Process events synchronously instead of queueing"`
	Timeout  time.Duration `arg:"--timeout" help:"Abort the scan after this duration"`
	Filter   string        `arg:"--filter" help:"Keep only events of one type: added|changed|deleted|unchanged"`
	MaxFiles int           `arg:"--max-files" help:"Stop after examining this many files (0 = unlimited)"`
}

// WatchCmd monitors a location continuously.
type WatchCmd struct {
	Location string `arg:"positional,required" help:"Location to watch"`
}

// TreeCmd renders a location's directory tree.
type TreeCmd struct {
	Location string `arg:"positional,required" help:"Location to render"`
	HTML     bool   `arg:"--html" help:"Render as an HTML fragment instead of text"`
	DirsOnly bool   `arg:"--dirs-only" help:"Show directories only"`
}

// Args holds the parsed command line.
type Args struct {
	Config string    `arg:"-c,--config" default:"filemon.yaml" help:"Path to the configuration file"`
	Scan   *ScanCmd  `arg:"subcommand:scan" help:"Scan a location once"`
	Watch  *WatchCmd `arg:"subcommand:watch" help:"Watch a location continuously"`
	Tree   *TreeCmd  `arg:"subcommand:tree" help:"Render a location's directory tree"`
}

// Description returns the program description for go-arg.
func (Args) Description() string {
	return "A file monitoring tool: scans storage locations, records file events and dispatches them to processors"
}

// Version returns the version string for go-arg.
func (Args) Version() string {
	return "filemon 1.0.0"
}

func main() {
	var args Args

	parser := arg.MustParse(&args)

	if err := run(&args, parser); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run executes the selected subcommand.
func run(args *Args, parser *arg.Parser) error {
	cfg, err := config.Load(args.Config)
	if err != nil {
		return err
	}

	logger, err := config.NewLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	engine, cleanup, err := cfg.BuildEngine(logger)
	if err != nil {
		return err
	}
	defer func() { _ = cleanup() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch {
	case args.Scan != nil:
		return runScan(ctx, engine, args.Scan)
	case args.Watch != nil:
		return runWatch(ctx, engine, args.Watch)
	case args.Tree != nil:
		return runTree(ctx, engine, args.Tree)
	default:
		parser.WriteHelp(os.Stderr)

		return fmt.Errorf("no command given")
	}
}

// runScan performs one scan and prints its event counts.
func runScan(ctx context.Context, engine *monitoring.Engine, cmd *ScanCmd) error {
	opts := monitoring.ScanOptions{
		WaitForProcessing: cmd.Wait,
		Timeout:           cmd.Timeout,
		MaxFiles:          cmd.MaxFiles,
	}

	if cmd.Filter != "" {
		eventType, err := monitoring.ParseEventType(cmd.Filter)
		if err != nil {
			return err
		}

		opts.EventFilter = &eventType
	}

	scan, err := engine.ScanLocation(ctx, cmd.Location, opts, printProgress)
	if scan != nil {
		printScan(scan)
	}

	return err
}

// printProgress writes one progress report line.
func printProgress(p monitoring.ScanProgress) {
	fmt.Printf("%s: %d%% (%d/%d files, %s)\n", p.LocationName, p.Percent, p.FilesScanned, p.TotalFiles, p.Elapsed.Round(time.Millisecond))
}

// printScan summarizes a finished (or cancelled) scan, including the
// partial counts of an interrupted one.
func printScan(scan *monitoring.ScanContext) {
	fmt.Println(scan.Message)

	counts := scan.Counts()
	for _, eventType := range []monitoring.EventType{
		monitoring.EventAdded,
		monitoring.EventChanged,
		monitoring.EventDeleted,
		monitoring.EventUnchanged,
	} {
		if counts[eventType] > 0 {
			fmt.Printf("  %s: %d\n", eventType, counts[eventType])
		}
	}
}

// runWatch monitors a location until interrupted.
func runWatch(ctx context.Context, engine *monitoring.Engine, cmd *WatchCmd) error {
	watcher, err := engine.NewWatcher(cmd.Location)
	if err != nil {
		return err
	}

	fmt.Printf("watching %s (ctrl-c to stop)\n", cmd.Location)

	err = watcher.Watch(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}

	return err
}

// runTree renders a location's directory tree to stdout.
func runTree(ctx context.Context, engine *monitoring.Engine, cmd *TreeCmd) error {
	location, err := engine.Location(cmd.Location)
	if err != nil {
		return err
	}

	root, err := tree.Walk(ctx, location.Provider(), "", tree.WalkOptions{
		Pattern:         location.Pattern(),
		DirectoriesOnly: cmd.DirsOnly,
	}, nil)
	if err != nil {
		return err
	}

	var renderer tree.Renderer = tree.TextRenderer{}
	if cmd.HTML {
		renderer = tree.HTMLRenderer{}
	}

	return renderer.Render(os.Stdout, root)
}
