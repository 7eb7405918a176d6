package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"solana-nft-lab/internal/scenario"
)

type scenarioCmdOptions struct {
	Local  bool
	List   bool
	Report string
	CSV    string
}

func NewScenarioCommand(root *rootOptions) *cobra.Command {
	opts := &scenarioCmdOptions{}

	cmd := &cobra.Command{
		Use:   "scenario [names...]",
		Short: "Run lifecycle scenarios against a cluster, all of them when no name is given",
		RunE: func(cmd *cobra.Command, args []string) error {
			return scenarioHandler(root, opts, cmd, args)
		},
	}

	flags := cmd.Flags()
	flags.BoolVar(&opts.Local, "local", false, "run against an in-process validator instead of --rpc-endpoint")
	flags.BoolVar(&opts.List, "list", false, "list scenarios and exit")
	flags.StringVar(&opts.Report, "report", "", "write a markdown report to this file")
	flags.StringVar(&opts.CSV, "csv", "", "write a CSV report to this file")
	flags.Int("parallel", 0, "scenarios run at once")
	flags.String("airdrop", "", "SOL funded to each scenario wallet")

	bindFlag(root.v, "scenario.parallel", flags.Lookup("parallel"))
	bindFlag(root.v, "scenario.airdrop", flags.Lookup("airdrop"))

	return cmd
}

func scenarioHandler(root *rootOptions, opts *scenarioCmdOptions, cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	if opts.List {
		w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		for _, sc := range scenario.All() {
			fmt.Fprintf(w, "%s\t%s\n", sc.Name, sc.Description)
		}
		return w.Flush()
	}

	selected, err := scenario.Select(args)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := root.connect(ctx, opts.Local)
	if err != nil {
		return err
	}
	defer c.Close()

	runner, err := scenario.NewRunner(c.Harness, root.cfg.Scenario, root.log)
	if err != nil {
		return err
	}
	report := runner.Run(ctx, selected)

	md := scenario.RenderMarkdown(report)
	fmt.Fprint(out, md)
	if opts.Report != "" {
		if err := os.WriteFile(opts.Report, []byte(md), 0o644); err != nil {
			return errors.Wrap(err, "write report")
		}
	}
	if opts.CSV != "" {
		if err := os.WriteFile(opts.CSV, []byte(scenario.RenderCSV(report)), 0o644); err != nil {
			return errors.Wrap(err, "write csv")
		}
	}

	if !report.OK() {
		return errors.Errorf("%d of %d scenarios failed", report.Failed(), len(report.Results))
	}
	return nil
}
