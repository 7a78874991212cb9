package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dyike/forexcell/internal/display"
	"github.com/dyike/forexcell/internal/service"
	"github.com/dyike/forexcell/internal/workflow"
)

func newRunCmd() *cobra.Command {
	var flags runFlags
	cmd := &cobra.Command{
		Use:   "run <workflow>",
		Short: "Execute a workflow by name or path",
		Example: `  forexcell run forex_analysis -c EUR/USD -q "Should I buy ahead of NFP?"
  forexcell run workflows/weekly.yaml -p analysis_days=14 -Q`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorkflow(cmd, args[0], flags)
		},
	}

	cmd.Flags().BoolVarP(&flags.verbose, "verbose", "v", false, "Print step details")
	cmd.Flags().BoolVarP(&flags.quiet, "quiet", "Q", false, "Only print errors and the final summary")
	cmd.Flags().BoolVarP(&flags.interactive, "interactive", "i", false, "Prompt for input steps")
	cmd.Flags().StringVarP(&flags.pair, "currency-pair", "c", "", "Currency pair, sets currency_pair")
	cmd.Flags().StringVarP(&flags.query, "query", "q", "", "Question for the analysis, sets user_query")
	cmd.Flags().IntVarP(&flags.days, "days", "d", 0, "Days of history, sets analysis_days")
	cmd.Flags().StringArrayVarP(&flags.params, "param", "p", nil, "Workflow parameter as key=value (repeatable)")

	return cmd
}

func runWorkflow(cmd *cobra.Command, ref string, flags runFlags) error {
	params, err := flags.buildParams()
	if err != nil {
		return err
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := service.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initialize services: %w", err)
	}
	defer svc.Close()

	out := cmd.OutOrStdout()
	quiet := flags.quiet
	verbose := flags.verbose && !quiet
	opts := []workflow.Option{
		workflow.WithOutput(out),
		workflow.WithQuiet(quiet),
		workflow.WithVerbose(verbose),
	}
	if flags.interactive {
		opts = append(opts, workflow.WithPrompter(SurveyPrompter{}))
	}

	if !quiet {
		display.Header(out, "Running "+ref)
	}
	outcome, runErr := svc.RunWorkflow(ctx, ref, params, opts...)
	if outcome == nil {
		return runErr
	}
	display.RunSummary(out, outcome.Report)
	if verbose {
		display.Stored(out, outcome.Report.Stored)
	}
	if outcome.ReportPath != "" {
		display.Info(out, "Report saved to "+outcome.ReportPath)
	}
	if runErr != nil {
		if ctx.Err() == context.Canceled {
			return fmt.Errorf("run interrupted: %w", runErr)
		}
		return runErr
	}
	return nil
}
