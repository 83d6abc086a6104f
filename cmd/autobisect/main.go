package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	cli "github.com/urfave/cli/v2"
	"go.skia.org/infra/go/sklog"

	"github.com/funfuzz/autobisect/go/bisect"
	"github.com/funfuzz/autobisect/go/facts"
	"github.com/funfuzz/autobisect/go/hg"
)

func main() {
	// Make sklog happy so it doesn't log errors.
	flag.Parse()

	app := &cli.App{
		Name:  "autobisect",
		Usage: "Resolve and query the changeset search space for shell regression bisection.",
		Commands: []*cli.Command{
			rangeCommand(),
			ancestorCommand(),
			statusCommand(),
		},
	}
	app.RunAndExitOnError()
}

func optionFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringSliceFlag{
			Name:  "flag",
			Usage: "Shell flag in effect for this run; repeatable.",
		},
		&cli.BoolFlag{
			Name:  "enable-dbg",
			Usage: "Bisect debug builds.",
		},
		&cli.BoolFlag{
			Name:  "enable-32",
			Usage: "Bisect 32-bit builds.",
		},
		&cli.BoolFlag{
			Name:  "enable-more-deterministic",
			Usage: "Bisect more-deterministic builds.",
		},
		&cli.BoolFlag{
			Name:  "enable-simulator-arm32",
			Usage: "Bisect 32-bit ARM-simulator builds.",
		},
		&cli.BoolFlag{
			Name:  "disable-profiling",
			Usage: "Bisect builds without profiler hooks.",
		},
	}
}

func optionsFromCli(c *cli.Context) facts.Options {
	return facts.Options{
		EnableDbg:               c.Bool("enable-dbg"),
		Enable32:                c.Bool("enable-32"),
		EnableMoreDeterministic: c.Bool("enable-more-deterministic"),
		EnableSimulatorArm32:    c.Bool("enable-simulator-arm32"),
		Profiling:               !c.Bool("disable-profiling"),
	}
}

func rangeCommand() *cli.Command {
	return &cli.Command{
		Name:  "range",
		Usage: "Print the revset expression describing the valid search space.",
		Flags: append(optionFlags(), &cli.StringFlag{
			Name:  "working-range",
			Usage: "Known-working upper-boundary revision; bounds the space to its ancestors.",
		}),
		Action: func(c *cli.Context) error {
			f := facts.Current(nil, optionsFromCli(c))
			space, err := bisect.SearchSpace(f, c.StringSlice("flag"), c.String("working-range"))
			if err != nil {
				return err
			}
			fmt.Fprintln(c.App.Writer, space)
			return nil
		},
	}
}

func ancestorCommand() *cli.Command {
	return &cli.Command{
		Name:      "ancestor",
		Usage:     "Report whether revision A is an ancestor of (or equal to) revision B.",
		ArgsUsage: "<rev-a> <rev-b>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "repo",
				Usage:    "Path to the Mercurial checkout.",
				Required: true,
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 2 {
				return fmt.Errorf("expected exactly two revisions, got %d", c.NArg())
			}
			checkout := hg.Checkout(c.String("repo"))
			ok, err := checkout.IsAncestorOrSelf(c.Context, c.Args().Get(0), c.Args().Get(1))
			if err != nil {
				return err
			}
			fmt.Fprintln(c.App.Writer, ok)
			return nil
		},
	}
}

func statusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Print the current checkout position and repository name.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "repo",
				Usage:    "Path to the Mercurial checkout.",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "on-ambiguous",
				Usage: "Policy when not on the default branch: prompt, abort, update, or use.",
				Value: "prompt",
			},
		},
		Action: func(c *cli.Context) error {
			checkout := hg.Checkout(c.String("repo"))

			var decider hg.Decider
			switch c.String("on-ambiguous") {
			case "prompt":
				decider = hg.PromptDecider(os.Stdin, c.App.Writer)
			case "abort":
				decider = hg.PolicyDecider(hg.Abort)
			case "update":
				decider = hg.PolicyDecider(hg.UpdateToDefault)
			case "use":
				decider = hg.PolicyDecider(hg.UseCurrent)
			default:
				return fmt.Errorf("unknown --on-ambiguous policy %q", c.String("on-ambiguous"))
			}

			pos, err := checkout.ResolvePosition(c.Context, decider)
			if errors.Is(err, hg.ErrAborted) {
				sklog.Infof("Aborting...")
				return nil
			}
			if err != nil {
				return err
			}

			name, err := checkout.RepoName()
			if err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "%s %s %d on-default=%t\n", name, pos.Hash, pos.LocalNum, pos.OnDefault)
			return nil
		},
	}
}
