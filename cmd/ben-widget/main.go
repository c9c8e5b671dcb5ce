// Command ben-widget is the out-of-process widget: each invocation taps one
// widget button by dropping an intent into the running player's spool.
package main

import (
	"benwidget/internal/broadcast"
	"benwidget/internal/config"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
)

type options struct {
	SpoolDir string
	Action   string
	Quiet    bool
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, out io.Writer, errOut io.Writer) int {
	opts, err := parseArgs(args, errOut)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if opts.SpoolDir == "" {
		dir, err := defaultSpoolDir()
		if err != nil {
			fmt.Fprintf(errOut, "ben-widget: %v\n", err)
			return 1
		}
		opts.SpoolDir = dir
	}

	intent, err := broadcast.NewPendingIntent(opts.Action).Fire(opts.SpoolDir)
	if err != nil {
		fmt.Fprintf(errOut, "ben-widget: %v\n", err)
		return 1
	}

	if !opts.Quiet {
		fmt.Fprintf(out, "%s %s\n", intent.Action, intent.ID)
	}
	return 0
}

func parseArgs(args []string, errOut io.Writer) (options, error) {
	var opts options

	fs := flag.NewFlagSet("ben-widget", flag.ContinueOnError)
	fs.SetOutput(errOut)
	fs.StringVar(&opts.SpoolDir, "spool", "", "intent spool directory (default: the player's config dir)")
	fs.BoolVar(&opts.Quiet, "q", false, "do not print the intent id")
	fs.Usage = func() {
		fmt.Fprintln(errOut, "usage: ben-widget [-spool dir] [-q] PLAY|NEXT|<tag>")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	if fs.NArg() != 1 {
		fs.Usage()
		return options{}, errors.New("exactly one action is required")
	}

	// Tags go out verbatim; the player decides what it understands.
	opts.Action = strings.TrimSpace(fs.Arg(0))
	return opts, nil
}

func defaultSpoolDir() (string, error) {
	paths, err := config.ResolvePaths("ben")
	if err != nil {
		return "", err
	}

	settings, err := config.Load(paths)
	if err != nil {
		return "", err
	}

	return settings.Spool.Dir, nil
}
