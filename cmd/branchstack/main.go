// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Command branchstack groups commits in a range by their "[topic]"
// subject tags and replays each topic, and its declared dependencies,
// onto a synthetic base as its own branch.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/antgroup/branchstack/pkg/orchestrator"
	"github.com/antgroup/branchstack/pkg/replay"
	"github.com/antgroup/branchstack/pkg/tr"
	"github.com/antgroup/branchstack/pkg/vcsgw"
)

func die(format string, a ...any) {
	fmt.Fprint(os.Stderr, tr.W("fatal: "))
	fmt.Fprintf(os.Stderr, format, a...)
	fmt.Fprintln(os.Stderr)
}

func warn(format string, a ...any) {
	fmt.Fprint(os.Stderr, tr.W("warning: "))
	fmt.Fprintf(os.Stderr, format, a...)
	fmt.Fprintln(os.Stderr)
}

func newLogger(verbose bool) *logrus.Entry {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	if verbose {
		l.SetLevel(logrus.DebugLevel)
	} else {
		l.SetLevel(logrus.WarnLevel)
	}
	return l.WithField("cmd", "branchstack")
}

func parseKeepTags(value string) (replay.Policy, error) {
	switch value {
	case "", "none":
		return replay.PolicyNone, nil
	case "dependencies":
		return replay.PolicyDependencies, nil
	case "all":
		return replay.PolicyAll, nil
	default:
		return replay.PolicyNone, fmt.Errorf("invalid --keep-tags value %q (want dependencies or all)", value)
	}
}

// exitCode maps an error returned by orchestrator.Run to the process
// exit status per spec.md §6-7: every named error kind
// (BranchWasModified, CalledProcessError, EditorError, InvalidRange,
// MergeConflict, TopicNotFound, ValueError) exits 1. TopicNotFound is
// normalized to 1 rather than the reference implementation's 0, which
// its own authors flag as likely a bug (spec.md §9 Open Question 1).
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	return 1
}

func newRootCommand() *cobra.Command {
	var (
		force     bool
		keepTags  string
		rangeSpec string
		verbose   bool
	)

	cmd := &cobra.Command{
		Use:   "branchstack [topic...]",
		Short: tr.W("Replay tagged commits onto independent topic branches"),
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			policy, err := parseKeepTags(keepTags)
			if err != nil {
				return err
			}

			wd, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("resolve working directory: %w", err)
			}
			gw, err := vcsgw.Open(wd)
			if err != nil {
				return err
			}
			defer gw.Close()

			log := newLogger(verbose)
			summaries, runErr := orchestrator.Run(context.Background(), gw, orchestrator.Options{
				Topics: args,
				Force:  force,
				Policy: policy,
				Range:  rangeSpec,
			}, log, cmd.OutOrStdout())

			for _, s := range summaries {
				if s.Updated {
					fmt.Fprintf(cmd.OutOrStdout(), "%s: %s -> %s (%d commit(s))\n", s.Ref, tr.W("Updating"), s.New.Short(), s.CommitCount)
				}
			}
			return runErr
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite branches modified since the last run")
	cmd.Flags().StringVarP(&keepTags, "keep-tags", "k", "", "tag-retention policy: dependencies or all (bare -k means dependencies)")
	cmd.Flags().Lookup("keep-tags").NoOptDefVal = "dependencies"
	cmd.Flags().StringVarP(&rangeSpec, "range", "r", "", "use this commit range instead of @{upstream}..HEAD")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "print debug tracing to stderr")

	return cmd
}

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		die("%v", err)
		var notFound *orchestrator.ErrTopicNotFound
		if errors.As(err, &notFound) {
			warn("topic %q was requested but never appeared in the scanned range", notFound.Topic)
		}
		os.Exit(exitCode(err))
	}
}
